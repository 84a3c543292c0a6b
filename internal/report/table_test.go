package report

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	lines := FormatTable(
		[]string{"Level", "XP"},
		[][]string{{"level_1", "5"}, {"a", "120"}},
		map[int]bool{1: true},
	)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Level    XP" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "level_1   5" {
		t.Fatalf("unexpected row: %q", lines[1])
	}
	if lines[2] != "a       120" {
		t.Fatalf("unexpected row: %q", lines[2])
	}
}

func TestFormatTableEmpty(t *testing.T) {
	if lines := FormatTable(nil, nil, nil); lines != nil {
		t.Fatalf("expected nil, got %v", lines)
	}
}
