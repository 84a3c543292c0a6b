// Package dispatch delivers report payloads across host transport
// channels, with a durable queue fallback for offline retry.
package dispatch

import (
	"context"

	"github.com/playbeacon/beacon/internal/report"
)

// Channel is one transport capable of accepting a report payload. Host
// bridges may attach after startup, so Available must be consulted on
// every delivery, not once.
type Channel interface {
	Name() string
	Available() bool
	Send(ctx context.Context, p report.Payload) error
}
