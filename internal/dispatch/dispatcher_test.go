package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/playbeacon/beacon/internal/model"
	"github.com/playbeacon/beacon/internal/report"
	"github.com/playbeacon/beacon/internal/store"
)

type fakeChannel struct {
	name        string
	unavailable bool
	err         error
	panicOnSend bool
	sent        []report.Payload
}

func (c *fakeChannel) Name() string    { return c.name }
func (c *fakeChannel) Available() bool { return !c.unavailable }

func (c *fakeChannel) Send(_ context.Context, p report.Payload) error {
	if c.panicOnSend {
		panic("broken channel")
	}
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, p)
	return nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pending.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func testSnapshot(sessionID string) model.Snapshot {
	return model.Snapshot{
		Session: model.Session{
			GameID:    "g",
			SessionID: sessionID,
			Name:      "s",
			Levels: map[string]*model.LevelAggregate{
				"level_1": {Attempts: 1, Wins: 1, TotalElapsedMs: 1000, BestElapsedMs: 1000, AverageElapsedMs: 1000},
			},
		},
		CapturedAt: time.Unix(1700000000, 0),
	}
}

func newTestDispatcher(st *store.Store, channels []Channel, fallback Channel) *Dispatcher {
	return New(Options{
		Channels:    channels,
		Fallback:    fallback,
		Store:       st,
		SendTimeout: time.Second,
		FlushDelay:  -1,
	})
}

func queueSize(t *testing.T, st *store.Store) int {
	t.Helper()
	count, err := st.Count(context.Background())
	if err != nil {
		t.Fatalf("count queue: %v", err)
	}
	return count
}

func TestSubmitDeliversWithoutQueueing(t *testing.T) {
	st := openTestStore(t)
	ch := &fakeChannel{name: "hook"}
	d := newTestDispatcher(st, []Channel{ch}, nil)

	p := d.Submit(context.Background(), testSnapshot("s1"))
	if p.SessionID != "s1" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(ch.sent))
	}
	if n := queueSize(t, st); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestSubmitTriesEveryAvailableChannel(t *testing.T) {
	st := openTestStore(t)
	failing := &fakeChannel{name: "a", err: errors.New("boom")}
	skipped := &fakeChannel{name: "b", unavailable: true}
	working := &fakeChannel{name: "c"}
	d := newTestDispatcher(st, []Channel{failing, skipped, working}, nil)

	d.Submit(context.Background(), testSnapshot("s1"))
	if len(skipped.sent) != 0 {
		t.Fatalf("unavailable channel must not be called")
	}
	if len(working.sent) != 1 {
		t.Fatalf("expected later channel to still receive the payload")
	}
	if n := queueSize(t, st); n != 0 {
		t.Fatalf("any-success delivery must not queue, got %d", n)
	}
}

func TestSubmitWithNoAvailableChannelsQueuesOnce(t *testing.T) {
	st := openTestStore(t)
	fallback := &fakeChannel{name: "console"}
	d := newTestDispatcher(st, nil, fallback)

	p := d.Submit(context.Background(), testSnapshot("s1"))
	if p.SessionID != "s1" {
		t.Fatalf("submit must return the payload, got %+v", p)
	}
	// The diagnostic fallback never counts as delivery.
	if len(fallback.sent) != 1 {
		t.Fatalf("expected fallback to receive the payload")
	}
	pending, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(pending) != 1 || pending[0].Payload.SessionID != "s1" {
		t.Fatalf("expected exactly the submitted payload queued, got %+v", pending)
	}
}

func TestSubmitSkipsFallbackWhenChannelsWereAvailable(t *testing.T) {
	st := openTestStore(t)
	failing := &fakeChannel{name: "hook", err: errors.New("boom")}
	fallback := &fakeChannel{name: "console"}
	d := newTestDispatcher(st, []Channel{failing}, fallback)

	d.Submit(context.Background(), testSnapshot("s1"))
	if len(fallback.sent) != 0 {
		t.Fatalf("fallback is for absent channels only")
	}
	if n := queueSize(t, st); n != 1 {
		t.Fatalf("failed delivery must queue, got %d", n)
	}
}

func TestSubmitContainsPanickingChannel(t *testing.T) {
	st := openTestStore(t)
	panicking := &fakeChannel{name: "a", panicOnSend: true}
	working := &fakeChannel{name: "b"}
	d := newTestDispatcher(st, []Channel{panicking, working}, nil)

	d.Submit(context.Background(), testSnapshot("s1"))
	if len(working.sent) != 1 {
		t.Fatalf("panic in one channel must not abort the rest")
	}
	if n := queueSize(t, st); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestSubmitWithoutStoreStillReturnsPayload(t *testing.T) {
	d := newTestDispatcher(nil, nil, nil)
	p := d.Submit(context.Background(), testSnapshot("s1"))
	if p.SessionID != "s1" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestFlushPendingEmptyQueueIsSilent(t *testing.T) {
	st := openTestStore(t)
	ch := &fakeChannel{name: "hook"}
	d := newTestDispatcher(st, []Channel{ch}, nil)

	d.FlushPending(context.Background())
	if len(ch.sent) != 0 {
		t.Fatalf("empty flush must produce no channel calls, got %d", len(ch.sent))
	}
}

func TestFlushPendingDeliversOldestFirstAndClears(t *testing.T) {
	st := openTestStore(t)
	offline := newTestDispatcher(st, nil, nil)
	offline.Submit(context.Background(), testSnapshot("first"))
	offline.Submit(context.Background(), testSnapshot("second"))

	ch := &fakeChannel{name: "hook"}
	d := newTestDispatcher(st, []Channel{ch}, nil)
	d.HandleReconnect(context.Background())

	if len(ch.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(ch.sent))
	}
	if ch.sent[0].SessionID != "first" || ch.sent[1].SessionID != "second" {
		t.Fatalf("unexpected order: %+v", ch.sent)
	}
	if n := queueSize(t, st); n != 0 {
		t.Fatalf("expected cleared queue, got %d", n)
	}
}

func TestFlushPendingDropsPayloadsThatFailAgain(t *testing.T) {
	st := openTestStore(t)
	offline := newTestDispatcher(st, nil, nil)
	offline.Submit(context.Background(), testSnapshot("s1"))

	failing := &fakeChannel{name: "hook", err: errors.New("still down")}
	d := newTestDispatcher(st, []Channel{failing}, nil)
	d.HandleVisible(context.Background())

	if n := queueSize(t, st); n != 0 {
		t.Fatalf("flush must clear the queue regardless of outcome, got %d", n)
	}
}

func TestHandleConfigMessageUpdatesParentOrigin(t *testing.T) {
	parent := NewParentChannel(WildcardOrigin)
	d := newTestDispatcher(nil, []Channel{parent}, nil)

	if parent.Available() {
		t.Fatalf("wildcard origin must not be available")
	}
	d.HandleConfigMessage([]byte(`{"type":"ANALYTICS_CONFIG","parentOrigin":"https://host.example"}`))
	if got := parent.Origin(); got != "https://host.example" {
		t.Fatalf("origin not updated: %q", got)
	}
	if !parent.Available() {
		t.Fatalf("configured parent channel must be available")
	}

	d.HandleConfigMessage([]byte(`{"type":"OTHER","parentOrigin":"https://evil.example"}`))
	if got := parent.Origin(); got != "https://host.example" {
		t.Fatalf("unrelated message must not change origin: %q", got)
	}
	d.HandleConfigMessage([]byte(`not json`))
	if got := parent.Origin(); got != "https://host.example" {
		t.Fatalf("malformed message must not change origin: %q", got)
	}
}

func TestHookChannelAvailability(t *testing.T) {
	var ch *HookChannel
	if ch.Available() {
		t.Fatalf("nil hook must be unavailable")
	}
	empty := &HookChannel{}
	if empty.Available() {
		t.Fatalf("hook without function must be unavailable")
	}
	var got report.Payload
	hooked := &HookChannel{Fn: func(p report.Payload) error {
		got = p
		return nil
	}}
	if !hooked.Available() {
		t.Fatalf("hook with function must be available")
	}
	if err := hooked.Send(context.Background(), report.Payload{SessionID: "s"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.SessionID != "s" {
		t.Fatalf("tracking function not invoked: %+v", got)
	}
}
