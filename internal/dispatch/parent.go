package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/playbeacon/beacon/internal/report"
)

// analyticsPath is the endpoint reports are posted to under the parent
// origin.
const analyticsPath = "/analytics"

// WildcardOrigin is the unconfigured parent target. It has no HTTP
// analog, so a channel targeting it reports unavailable until a
// handshake supplies a concrete origin.
const WildcardOrigin = "*"

// ParentChannel posts payloads to the embedding page's origin. The
// origin may be updated at runtime through a host handshake.
type ParentChannel struct {
	mu     sync.Mutex
	origin string
	client *http.Client
}

// NewParentChannel creates a parent channel. Origin may be empty or the
// wildcard, leaving the channel unavailable until configured.
func NewParentChannel(origin string) *ParentChannel {
	return &ParentChannel{origin: origin, client: http.DefaultClient}
}

// Name implements Channel.
func (c *ParentChannel) Name() string { return "parent" }

// Available implements Channel.
func (c *ParentChannel) Available() bool {
	if c == nil {
		return false
	}
	origin := c.Origin()
	return origin != "" && origin != WildcardOrigin
}

// Origin returns the current target origin.
func (c *ParentChannel) Origin() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin
}

// SetOrigin updates the target origin.
func (c *ParentChannel) SetOrigin(origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origin = origin
}

// Send implements Channel.
func (c *ParentChannel) Send(ctx context.Context, p report.Payload) error {
	if !c.Available() {
		return fmt.Errorf("no parent origin configured")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	url := strings.TrimRight(c.Origin(), "/") + analyticsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post report: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		// Response body is informational only.
		_ = err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("parent rejected report: %s", resp.Status)
	}
	return nil
}
