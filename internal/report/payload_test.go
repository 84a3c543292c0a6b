package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/playbeacon/beacon/internal/model"
)

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Session: model.Session{
			GameID:            "g",
			SessionID:         "123-abc",
			Name:              "s",
			RewardEarnedTotal: 120,
			LastPlayedLevelID: "level_3_push",
			HighestLevelID:    "level_3_push",
			Attempts: []model.Attempt{
				{LevelID: "level_3_push", ElapsedMs: 25000},
				{
					LevelID:    "level_3_push",
					Successful: true,
					ElapsedMs:  20000,
					Reward:     120,
					SubEvents: []model.SubEvent{
						{ID: "t1", Label: "push crate", Expected: "left", Actual: "left", Successful: true, ElapsedMs: 700, Reward: 20},
					},
				},
			},
			Levels: map[string]*model.LevelAggregate{
				"level_3_push": {
					Attempts:         2,
					Wins:             1,
					Losses:           1,
					TotalElapsedMs:   45000,
					BestElapsedMs:    20000,
					TotalReward:      120,
					AverageElapsedMs: 22500,
				},
			},
			RawMetrics: []model.RawMetric{{Key: "difficulty", Value: "hard"}},
		},
		CapturedAt: time.Unix(1700000000, 0),
	}
}

func TestBuildMirrorsTotals(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := Build(testSnapshot(), now)

	if p.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", p.Timestamp)
	}
	if p.RewardEarnedTotal != 120 || p.RewardEarned != 120 || p.RewardTotal != 120 || p.BestReward != 120 {
		t.Fatalf("reward mirrors diverged: %+v", p)
	}
	if p.LastPlayedLevel != "level_3_push" || p.HighestLevelPlayed != "level_3_push" {
		t.Fatalf("unexpected markers: %+v", p)
	}
	agg := p.PerLevelAnalytics["level_3_push"]
	if agg.Attempts != 2 || agg.BestTimeMs != 20000 || agg.TotalXP != 120 || agg.AverageTimeMs != 22500 {
		t.Fatalf("unexpected analytics: %+v", agg)
	}
}

func TestBuildTimestampIgnoresSnapshotCapture(t *testing.T) {
	snap := testSnapshot()
	now := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Build(snap, now)
	if p.Timestamp != "2030-01-02T03:04:05Z" {
		t.Fatalf("timestamp not regenerated at build time: %q", p.Timestamp)
	}
}

func TestBuildDiagnostics(t *testing.T) {
	p := Build(testSnapshot(), time.Now())
	if len(p.Diagnostics.Levels) != 2 {
		t.Fatalf("expected 2 diagnostic levels, got %d", len(p.Diagnostics.Levels))
	}
	win := p.Diagnostics.Levels[1]
	if !win.Successful || win.TimeTaken != 20000 || win.XPEarned != 120 {
		t.Fatalf("unexpected level entry: %+v", win)
	}
	if win.TimeDirection != TimeDirectionUp {
		t.Fatalf("unexpected time direction %q", win.TimeDirection)
	}
	if len(win.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(win.Tasks))
	}
	task := win.Tasks[0]
	if task.Options != "[]" {
		t.Fatalf("options must serialize as %q, got %q", "[]", task.Options)
	}
	if task.CorrectChoice != "left" || task.ChoiceMade != "left" || !task.Successful {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestBuildEmptySnapshotMarshalsEmptyCollections(t *testing.T) {
	snap := model.Snapshot{Session: model.Session{GameID: "g", SessionID: "id", Name: "s"}}
	p := Build(snap, time.Now())
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body := string(data)
	for _, want := range []string{`"rawData":[]`, `"levels":[]`, `"perLevelAnalytics":{}`} {
		if !strings.Contains(body, want) {
			t.Fatalf("payload JSON missing %s: %s", want, body)
		}
	}
}

func TestTopLevelsByAttempts(t *testing.T) {
	analytics := map[string]LevelAnalytics{
		"level_1": {Attempts: 2},
		"level_2": {Attempts: 5},
		"level_3": {Attempts: 2},
	}
	top := TopLevelsByAttempts(analytics, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(top))
	}
	if top[0] != "level_2" || top[1] != "level_1" {
		t.Fatalf("unexpected order: %v", top)
	}
}
