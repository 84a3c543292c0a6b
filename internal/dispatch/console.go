package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/playbeacon/beacon/internal/report"
)

// ConsoleChannel writes payloads to the log as a diagnostic last resort.
// The dispatcher only consults it when no other channel is available,
// and it never counts as successful delivery.
type ConsoleChannel struct {
	Log *slog.Logger
}

// Name implements Channel.
func (c *ConsoleChannel) Name() string { return "console" }

// Available implements Channel.
func (c *ConsoleChannel) Available() bool { return c != nil }

// Send implements Channel.
func (c *ConsoleChannel) Send(_ context.Context, p report.Payload) error {
	log := slog.Default()
	if c != nil && c.Log != nil {
		log = c.Log
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	log.Info("analytics report", "session", p.SessionID, "payload", string(body))
	return nil
}
