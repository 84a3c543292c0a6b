// Package report builds and renders delivery payloads.
package report

import (
	"sort"
	"time"

	"github.com/playbeacon/beacon/internal/model"
)

// TimeDirectionUp marks attempts timed with a count-up timer.
const TimeDirectionUp = "UP"

// optionsPlaceholder is emitted verbatim for task options; hosts expect a
// serialized empty list here.
const optionsPlaceholder = "[]"

// Payload is the JSON report handed to delivery channels.
type Payload struct {
	GameID             string                    `json:"gameId"`
	SessionID          string                    `json:"sessionId"`
	Timestamp          string                    `json:"timestamp"`
	Name               string                    `json:"name"`
	RewardEarnedTotal  int64                     `json:"rewardEarnedTotal"`
	RewardEarned       int64                     `json:"rewardEarned"`
	RewardTotal        int64                     `json:"rewardTotal"`
	BestReward         int64                     `json:"bestReward"`
	LastPlayedLevel    string                    `json:"lastPlayedLevel"`
	HighestLevelPlayed string                    `json:"highestLevelPlayed"`
	PerLevelAnalytics  map[string]LevelAnalytics `json:"perLevelAnalytics"`
	RawData            []RawDatum                `json:"rawData"`
	Diagnostics        Diagnostics               `json:"diagnostics"`
}

// LevelAnalytics mirrors one per-level aggregate on the wire.
type LevelAnalytics struct {
	Attempts      int   `json:"attempts"`
	Wins          int   `json:"wins"`
	Losses        int   `json:"losses"`
	TotalTimeMs   int64 `json:"totalTimeMs"`
	BestTimeMs    int64 `json:"bestTimeMs"`
	TotalXP       int64 `json:"totalXp"`
	AverageTimeMs int64 `json:"averageTimeMs"`
}

// RawDatum is one raw metric entry.
type RawDatum struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Diagnostics carries the full attempt log.
type Diagnostics struct {
	Levels []DiagLevel `json:"levels"`
}

// DiagLevel is one attempt in the diagnostics log.
type DiagLevel struct {
	LevelID       string     `json:"levelId"`
	Successful    bool       `json:"successful"`
	TimeTaken     int64      `json:"timeTaken"`
	TimeDirection string     `json:"timeDirection"`
	XPEarned      int64      `json:"xpEarned"`
	Tasks         []DiagTask `json:"tasks"`
}

// DiagTask is one sub-event of an attempt.
type DiagTask struct {
	TaskID        string `json:"taskId"`
	Question      string `json:"question"`
	Options       string `json:"options"`
	CorrectChoice string `json:"correctChoice"`
	ChoiceMade    string `json:"choiceMade"`
	Successful    bool   `json:"successful"`
	TimeTaken     int64  `json:"timeTaken"`
	XPEarned      int64  `json:"xpEarned"`
}

// Build converts a snapshot into the wire payload. The timestamp is
// generated from now, not taken from the snapshot.
func Build(snap model.Snapshot, now time.Time) Payload {
	p := Payload{
		GameID:             snap.GameID,
		SessionID:          snap.SessionID,
		Timestamp:          now.UTC().Format(time.RFC3339),
		Name:               snap.Name,
		RewardEarnedTotal:  snap.RewardEarnedTotal,
		RewardEarned:       snap.RewardEarnedTotal,
		RewardTotal:        snap.RewardEarnedTotal,
		BestReward:         snap.RewardEarnedTotal,
		LastPlayedLevel:    snap.LastPlayedLevelID,
		HighestLevelPlayed: snap.HighestLevelID,
		PerLevelAnalytics:  make(map[string]LevelAnalytics, len(snap.Levels)),
		RawData:            make([]RawDatum, 0, len(snap.RawMetrics)),
	}
	for id, agg := range snap.Levels {
		if agg == nil {
			continue
		}
		p.PerLevelAnalytics[id] = LevelAnalytics{
			Attempts:      agg.Attempts,
			Wins:          agg.Wins,
			Losses:        agg.Losses,
			TotalTimeMs:   agg.TotalElapsedMs,
			BestTimeMs:    agg.BestElapsedMs,
			TotalXP:       agg.TotalReward,
			AverageTimeMs: agg.AverageElapsedMs,
		}
	}
	for _, metric := range snap.RawMetrics {
		p.RawData = append(p.RawData, RawDatum{Key: metric.Key, Value: metric.Value})
	}
	p.Diagnostics.Levels = make([]DiagLevel, 0, len(snap.Attempts))
	for _, attempt := range snap.Attempts {
		level := DiagLevel{
			LevelID:       attempt.LevelID,
			Successful:    attempt.Successful,
			TimeTaken:     attempt.ElapsedMs,
			TimeDirection: TimeDirectionUp,
			XPEarned:      attempt.Reward,
			Tasks:         make([]DiagTask, 0, len(attempt.SubEvents)),
		}
		for _, sub := range attempt.SubEvents {
			level.Tasks = append(level.Tasks, DiagTask{
				TaskID:        sub.ID,
				Question:      sub.Label,
				Options:       optionsPlaceholder,
				CorrectChoice: sub.Expected,
				ChoiceMade:    sub.Actual,
				Successful:    sub.Successful,
				TimeTaken:     sub.ElapsedMs,
				XPEarned:      sub.Reward,
			})
		}
		p.Diagnostics.Levels = append(p.Diagnostics.Levels, level)
	}
	return p
}

// TopLevelsByAttempts returns up to n level ids ordered by attempt count,
// ties broken by id.
func TopLevelsByAttempts(analytics map[string]LevelAnalytics, n int) []string {
	if n <= 0 || len(analytics) == 0 {
		return nil
	}
	ids := make([]string, 0, len(analytics))
	for id := range analytics {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ai := analytics[ids[i]].Attempts
		aj := analytics[ids[j]].Attempts
		if ai == aj {
			return ids[i] < ids[j]
		}
		return ai > aj
	})
	if n > len(ids) {
		n = len(ids)
	}
	return ids[:n]
}
