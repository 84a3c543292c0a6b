package session

import "testing"

func TestLevelNumber(t *testing.T) {
	cases := []struct {
		id   string
		want int
	}{
		{"", 0},
		{"intro", 0},
		{"level_3_push", 3},
		{"level_12", 12},
		{"42", 42},
		{"stage7b9", 7},
		{"a0b", 0},
	}
	for _, tc := range cases {
		if got := LevelNumber(tc.id); got != tc.want {
			t.Fatalf("LevelNumber(%q) = %d, want %d", tc.id, got, tc.want)
		}
	}
}
