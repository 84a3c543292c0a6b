package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/playbeacon/beacon/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "pending.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func testPayload(sessionID string) report.Payload {
	return report.Payload{
		GameID:    "g",
		SessionID: sessionID,
		Timestamp: time.Unix(1700000000, 0).UTC().Format(time.RFC3339),
		Name:      "s",
		PerLevelAnalytics: map[string]report.LevelAnalytics{
			"level_1": {Attempts: 1, Wins: 1, TotalTimeMs: 1000, BestTimeMs: 1000, AverageTimeMs: 1000},
		},
		RawData: []report.RawDatum{},
	}
}

func TestEnqueueDrainClearsQueue(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := st.Enqueue(ctx, testPayload(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	count, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 queued, got %d", count)
	}

	pending, err := st.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 payloads, got %d", len(pending))
	}
	// Oldest first.
	if pending[0].SessionID != "a" || pending[2].SessionID != "c" {
		t.Fatalf("unexpected order: %+v", pending)
	}

	count, err = st.Count(ctx)
	if err != nil {
		t.Fatalf("count after drain: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty queue after drain, got %d", count)
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	st := openTestStore(t)
	pending, err := st.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no payloads, got %d", len(pending))
	}
}

func TestDrainSkipsCorruptRows(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.Enqueue(ctx, testPayload("ok")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := st.db.ExecContext(ctx,
		`INSERT INTO pending_reports (enqueued_at, game_id, session_id, payload) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), "g", "bad", "{not json"); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	pending, err := st.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pending) != 1 || pending[0].SessionID != "ok" {
		t.Fatalf("expected only the valid payload, got %+v", pending)
	}
	count, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("corrupt rows must be cleared too, got %d", count)
	}
}

func TestListPreservesQueue(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.Enqueue(ctx, testPayload("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := st.Enqueue(ctx, testPayload("b")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(pending))
	}
	if pending[0].Payload.SessionID != "a" || pending[1].Payload.SessionID != "b" {
		t.Fatalf("unexpected order: %+v", pending)
	}
	if pending[0].EnqueuedAt.IsZero() {
		t.Fatalf("expected enqueue time to be recorded")
	}

	count, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("list must not consume the queue, got %d", count)
	}
}
