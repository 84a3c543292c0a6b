// Package model defines shared data structures.
package model

import "time"

// SubEvent records one granular user action inside an attempt, e.g. a
// single move or answered task. Immutable once appended.
type SubEvent struct {
	ID         string
	Label      string
	Expected   string
	Actual     string
	Successful bool
	ElapsedMs  int64
	Reward     int64
}

// Attempt is one play-through of a level, open between start and close.
type Attempt struct {
	LevelID    string
	Successful bool
	ElapsedMs  int64
	Reward     int64
	SubEvents  []SubEvent
}

// LevelAggregate holds running statistics over all attempts of a level.
type LevelAggregate struct {
	Attempts         int
	Wins             int
	Losses           int
	TotalElapsedMs   int64
	BestElapsedMs    int64 // 0 until the first successful attempt
	TotalReward      int64
	AverageElapsedMs int64
}

// RawMetric is an arbitrary key/value pair recorded outside the attempt
// lifecycle.
type RawMetric struct {
	Key   string
	Value string
}

// Session composes all mutable telemetry state for one play session.
type Session struct {
	GameID    string
	SessionID string
	Name      string
	CreatedAt time.Time

	RewardEarnedTotal int64
	LastPlayedLevelID string
	HighestLevelID    string

	Attempts   []Attempt
	Levels     map[string]*LevelAggregate
	RawMetrics []RawMetric
}

// Snapshot is an immutable point-in-time copy of session state taken for
// report delivery.
type Snapshot struct {
	Session
	CapturedAt time.Time
}

// Event is one line of a JSONL attempt event log.
type Event struct {
	Type       string `json:"type"` // start|end|task|metric
	LevelID    string `json:"levelId,omitempty"`
	Successful bool   `json:"successful,omitempty"`
	ElapsedMs  int64  `json:"elapsedMs,omitempty"`
	Reward     int64  `json:"reward,omitempty"`
	TaskID     string `json:"taskId,omitempty"`
	Label      string `json:"label,omitempty"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Key        string `json:"key,omitempty"`
	Value      string `json:"value,omitempty"`
}
