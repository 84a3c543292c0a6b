// Package session implements the per-attempt telemetry recorder.
package session

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/playbeacon/beacon/internal/model"
)

// Recorder owns all mutable state for the current telemetry session: the
// append-only attempt log, the per-level aggregate table, and the
// session-wide totals. It is not safe for concurrent use; the intended
// caller is a single game-loop goroutine. Every operation before
// Initialize is a no-op that logs a diagnostic.
type Recorder struct {
	session model.Session
	ready   bool
	clock   func() time.Time
	log     *slog.Logger
}

// New constructs a recorder. A nil logger falls back to slog.Default().
func New(log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{clock: time.Now, log: log}
}

// Initialize starts a fresh session for the given game, discarding any
// prior state. Safe to call again to begin a new session.
func (r *Recorder) Initialize(gameID, name string) {
	now := r.clock()
	r.session = model.Session{
		GameID:    gameID,
		SessionID: newSessionID(now),
		Name:      name,
		CreatedAt: now,
		Levels:    map[string]*model.LevelAggregate{},
	}
	r.ready = true
}

// newSessionID derives an id from the creation time plus a random
// fragment, so sessions within one process cannot collide.
func newSessionID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// StartAttempt appends a new open attempt for the level. Attempts are
// never deduplicated; repeated starts create independent entries.
func (r *Recorder) StartAttempt(levelID string) {
	if !r.guard("start attempt") {
		return
	}
	r.session.Attempts = append(r.session.Attempts, model.Attempt{LevelID: levelID})
}

// EndAttempt closes the most recent attempt for the level and folds its
// outcome into the session totals and the level aggregate. An unknown
// level leaves all state untouched.
func (r *Recorder) EndAttempt(levelID string, successful bool, elapsedMs, reward int64) {
	if !r.guard("end attempt") {
		return
	}
	attempt := r.findAttempt(levelID)
	if attempt == nil {
		r.log.Warn("no attempt recorded for level", "level", levelID)
		return
	}
	attempt.Successful = successful
	attempt.ElapsedMs = elapsedMs
	attempt.Reward = reward

	r.session.RewardEarnedTotal += reward
	r.session.LastPlayedLevelID = levelID
	if LevelNumber(levelID) > LevelNumber(r.session.HighestLevelID) {
		r.session.HighestLevelID = levelID
	}
	r.updateAggregate(levelID, successful, elapsedMs, reward)
}

// AttachSubEvent appends a sub-event to the most recent attempt for the
// level. The success flag is derived from expected == actual.
func (r *Recorder) AttachSubEvent(levelID, subEventID, label, expected, actual string, elapsedMs, reward int64) {
	if !r.guard("attach sub-event") {
		return
	}
	attempt := r.findAttempt(levelID)
	if attempt == nil {
		r.log.Warn("no attempt recorded for level", "level", levelID)
		return
	}
	attempt.SubEvents = append(attempt.SubEvents, model.SubEvent{
		ID:         subEventID,
		Label:      label,
		Expected:   expected,
		Actual:     actual,
		Successful: expected == actual,
		ElapsedMs:  elapsedMs,
		Reward:     reward,
	})
}

// AddRawMetric records an arbitrary key/value pair on the session. The
// value is stringified.
func (r *Recorder) AddRawMetric(key string, value any) {
	if !r.guard("add raw metric") {
		return
	}
	r.session.RawMetrics = append(r.session.RawMetrics, model.RawMetric{
		Key:   key,
		Value: fmt.Sprint(value),
	})
}

// Snapshot returns a deep copy of the session state stamped with a fresh
// capture time. Mutating the returned value never affects the recorder.
func (r *Recorder) Snapshot() model.Snapshot {
	snap := model.Snapshot{Session: r.session, CapturedAt: r.clock()}
	snap.Attempts = make([]model.Attempt, len(r.session.Attempts))
	for i, attempt := range r.session.Attempts {
		attempt.SubEvents = append([]model.SubEvent(nil), attempt.SubEvents...)
		snap.Attempts[i] = attempt
	}
	snap.Levels = make(map[string]*model.LevelAggregate, len(r.session.Levels))
	for id, agg := range r.session.Levels {
		copied := *agg
		snap.Levels[id] = &copied
	}
	snap.RawMetrics = append([]model.RawMetric(nil), r.session.RawMetrics...)
	return snap
}

// Reset re-zeroes all counters and tables while keeping the session
// identity fields.
func (r *Recorder) Reset() {
	if !r.guard("reset") {
		return
	}
	r.session.RewardEarnedTotal = 0
	r.session.LastPlayedLevelID = ""
	r.session.HighestLevelID = ""
	r.session.Attempts = nil
	r.session.Levels = map[string]*model.LevelAggregate{}
	r.session.RawMetrics = nil
}

func (r *Recorder) guard(op string) bool {
	if r.ready {
		return true
	}
	r.log.Warn("recorder not initialized", "op", op)
	return false
}

// findAttempt searches the attempt log from the end backward, so repeated
// starts of the same level resolve to the latest entry.
func (r *Recorder) findAttempt(levelID string) *model.Attempt {
	for i := len(r.session.Attempts) - 1; i >= 0; i-- {
		if r.session.Attempts[i].LevelID == levelID {
			return &r.session.Attempts[i]
		}
	}
	return nil
}

func (r *Recorder) updateAggregate(levelID string, successful bool, elapsedMs, reward int64) {
	agg := r.session.Levels[levelID]
	if agg == nil {
		agg = &model.LevelAggregate{}
		r.session.Levels[levelID] = agg
	}
	agg.Attempts++
	if successful {
		agg.Wins++
		agg.TotalReward += reward
		if agg.Wins == 1 || elapsedMs < agg.BestElapsedMs {
			agg.BestElapsedMs = elapsedMs
		}
	} else {
		agg.Losses++
	}
	agg.TotalElapsedMs += elapsedMs
	agg.AverageElapsedMs = int64(math.Round(float64(agg.TotalElapsedMs) / float64(agg.Attempts)))
}
