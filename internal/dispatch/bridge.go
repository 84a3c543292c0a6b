package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"

	"github.com/playbeacon/beacon/internal/report"
)

// BridgeChannel forwards payloads over the host's websocket message
// bridge, serialized to text. The connection is dialed lazily on first
// send and re-dialed after write failures.
type BridgeChannel struct {
	url  string
	conn *websocket.Conn
}

// NewBridgeChannel creates a bridge channel for the given websocket URL.
// An empty URL produces a channel that is never available.
func NewBridgeChannel(url string) *BridgeChannel {
	return &BridgeChannel{url: url}
}

// Name implements Channel.
func (c *BridgeChannel) Name() string { return "bridge" }

// Available implements Channel.
func (c *BridgeChannel) Available() bool { return c != nil && c.url != "" }

// Send implements Channel.
func (c *BridgeChannel) Send(ctx context.Context, p report.Payload) error {
	if c == nil || c.url == "" {
		return fmt.Errorf("no bridge URL configured")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if c.conn == nil {
		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			return fmt.Errorf("failed to dial bridge: %w", err)
		}
		c.conn = conn
	}
	if err := c.conn.Write(ctx, websocket.MessageText, body); err != nil {
		c.drop()
		return fmt.Errorf("failed to write to bridge: %w", err)
	}
	return nil
}

// Close releases the bridge connection if one is open.
func (c *BridgeChannel) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close(websocket.StatusNormalClosure, "done")
}

func (c *BridgeChannel) drop() {
	if c.conn == nil {
		return
	}
	if cerr := c.conn.Close(websocket.StatusInternalError, "write failed"); cerr != nil {
		// Best-effort close of a broken connection.
		_ = cerr
	}
	c.conn = nil
}
