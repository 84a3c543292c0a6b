package report

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRenderLevelTable(t *testing.T) {
	p := Build(testSnapshot(), time.Now())
	var buf bytes.Buffer
	if err := RenderLevelTable(&buf, p); err != nil {
		t.Fatalf("render level table: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level_3_push") {
		t.Fatalf("missing level row: %s", out)
	}
	if !strings.Contains(out, "22500") {
		t.Fatalf("missing average column: %s", out)
	}
}

func TestRenderAttemptsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderAttempts(&buf, Payload{}); err != nil {
		t.Fatalf("render attempts: %v", err)
	}
	if !strings.Contains(buf.String(), "No attempts recorded.") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil); got != "" {
		t.Fatalf("expected empty sparkline, got %q", got)
	}
	flat := Sparkline([]float64{5, 5, 5})
	if len(flat) != 3 {
		t.Fatalf("expected 3 chars, got %q", flat)
	}
	varied := Sparkline([]float64{0, 10})
	if varied[0] == varied[1] {
		t.Fatalf("expected distinct levels, got %q", varied)
	}
}
