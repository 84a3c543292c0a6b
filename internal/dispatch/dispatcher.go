package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/playbeacon/beacon/internal/model"
	"github.com/playbeacon/beacon/internal/report"
	"github.com/playbeacon/beacon/internal/store"
)

const (
	defaultSendTimeout = 3 * time.Second
	defaultFlushDelay  = 2 * time.Second
)

// ConfigMessageType identifies the host handshake that configures the
// parent origin.
const ConfigMessageType = "ANALYTICS_CONFIG"

// ConfigMessage is the inbound handshake shape.
type ConfigMessage struct {
	Type         string `json:"type"`
	ParentOrigin string `json:"parentOrigin"`
}

// Options configures a Dispatcher.
type Options struct {
	// Channels are tried in order on every delivery.
	Channels []Channel
	// Fallback is the diagnostic last resort, consulted only when no
	// channel in Channels is available. It never counts as delivery.
	Fallback Channel
	// Store is the durable queue for undelivered payloads. Nil disables
	// queuing.
	Store *store.Store
	// SendTimeout bounds each channel send; a channel that would block
	// longer is treated as failed. Zero means a 3s default.
	SendTimeout time.Duration
	// FlushDelay schedules an opportunistic flush after every Submit,
	// to catch host bridges that attach shortly after page load. Zero
	// means a 2s default; negative disables it.
	FlushDelay time.Duration
	Logger     *slog.Logger
}

// Dispatcher fans out finalized report payloads across the configured
// channels, queueing on total failure and retrying opportunistically.
type Dispatcher struct {
	mu       sync.Mutex // guards queue read-modify-write
	channels []Channel
	fallback Channel
	parent   *ParentChannel
	store    *store.Store
	log      *slog.Logger
	clock    func() time.Time

	sendTimeout time.Duration
	flushDelay  time.Duration
}

// New constructs a dispatcher from options.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		channels:    opts.Channels,
		fallback:    opts.Fallback,
		store:       opts.Store,
		log:         opts.Logger,
		clock:       time.Now,
		sendTimeout: opts.SendTimeout,
		flushDelay:  opts.FlushDelay,
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.sendTimeout == 0 {
		d.sendTimeout = defaultSendTimeout
	}
	if d.flushDelay == 0 {
		d.flushDelay = defaultFlushDelay
	}
	for _, ch := range d.channels {
		if parent, ok := ch.(*ParentChannel); ok {
			d.parent = parent
		}
	}
	return d
}

// Submit builds the payload for a snapshot, attempts delivery, queues it
// on total failure, and returns the payload regardless of outcome.
func (d *Dispatcher) Submit(ctx context.Context, snap model.Snapshot) report.Payload {
	p := report.Build(snap, d.clock())
	if !d.deliver(ctx, p) {
		d.enqueue(ctx, p)
	}
	d.scheduleFlush()
	return p
}

// FlushPending drains the durable queue and re-attempts delivery of each
// payload once, oldest first. Payloads that fail again are dropped; the
// queue never grows from a flush.
func (d *Dispatcher) FlushPending(ctx context.Context) {
	if d.store == nil {
		return
	}
	d.mu.Lock()
	pending, err := d.store.Drain(ctx)
	d.mu.Unlock()
	if err != nil {
		// An unreadable queue is treated as empty.
		d.log.Warn("failed to read pending reports", "err", err)
		return
	}
	for _, p := range pending {
		if !d.deliver(ctx, p) {
			d.log.Warn("pending report dropped", "session", p.SessionID)
		}
	}
}

// HandleReconnect is invoked by the host when connectivity returns.
func (d *Dispatcher) HandleReconnect(ctx context.Context) {
	d.FlushPending(ctx)
}

// HandleVisible is invoked by the host when the page or app becomes
// visible again.
func (d *Dispatcher) HandleVisible(ctx context.Context) {
	d.FlushPending(ctx)
}

// HandleConfigMessage applies an inbound host handshake. Messages of any
// other shape are ignored.
func (d *Dispatcher) HandleConfigMessage(data []byte) {
	var msg ConfigMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.log.Debug("ignoring malformed host message", "err", err)
		return
	}
	if msg.Type != ConfigMessageType || msg.ParentOrigin == "" {
		return
	}
	if d.parent == nil {
		d.log.Debug("no parent channel to configure")
		return
	}
	d.parent.SetOrigin(msg.ParentOrigin)
	d.log.Info("parent origin updated", "origin", msg.ParentOrigin)
}

// deliver fans the payload out across every available channel and
// reports whether at least one accepted it. The fallback is consulted
// only when no channel was available and never counts.
func (d *Dispatcher) deliver(ctx context.Context, p report.Payload) bool {
	delivered := false
	tried := false
	for _, ch := range d.channels {
		if ch == nil || !ch.Available() {
			continue
		}
		tried = true
		if d.trySend(ctx, ch, p) {
			delivered = true
		}
	}
	if !tried && d.fallback != nil && d.fallback.Available() {
		_ = d.trySend(ctx, d.fallback, p)
	}
	return delivered
}

// trySend sends through one channel, containing errors and panics so a
// misbehaving channel can never abort the remaining ones.
func (d *Dispatcher) trySend(ctx context.Context, ch Channel, p report.Payload) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("channel panicked", "channel", ch.Name(), "panic", r)
			ok = false
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := ch.Send(sendCtx, p); err != nil {
		d.log.Warn("channel send failed", "channel", ch.Name(), "err", err)
		return false
	}
	return true
}

func (d *Dispatcher) enqueue(ctx context.Context, p report.Payload) {
	if d.store == nil {
		d.log.Warn("report dropped, no durable queue configured", "session", p.SessionID)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.Enqueue(ctx, p); err != nil {
		d.log.Warn("failed to queue report", "err", err)
	}
}

func (d *Dispatcher) scheduleFlush() {
	if d.flushDelay < 0 {
		return
	}
	time.AfterFunc(d.flushDelay, func() {
		d.FlushPending(context.Background())
	})
}
