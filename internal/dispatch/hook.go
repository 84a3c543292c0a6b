package dispatch

import (
	"context"
	"fmt"

	"github.com/playbeacon/beacon/internal/report"
)

// HookChannel delivers payloads to a tracking function provided by the
// host shell.
type HookChannel struct {
	Fn func(p report.Payload) error
}

// Name implements Channel.
func (c *HookChannel) Name() string { return "hook" }

// Available implements Channel.
func (c *HookChannel) Available() bool { return c != nil && c.Fn != nil }

// Send implements Channel.
func (c *HookChannel) Send(_ context.Context, p report.Payload) error {
	if c == nil || c.Fn == nil {
		return fmt.Errorf("no tracking function attached")
	}
	return c.Fn(p)
}
