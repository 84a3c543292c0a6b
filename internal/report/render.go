package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const sparkChars = " .:-=+*#%@"

// RenderSummary prints the session identity and totals of a payload.
func RenderSummary(w io.Writer, p Payload) error {
	lines := []string{
		fmt.Sprintf("Game: %s", p.GameID),
		fmt.Sprintf("Session: %s (%s)", p.Name, p.SessionID),
		fmt.Sprintf("Generated: %s", p.Timestamp),
		fmt.Sprintf("Total XP: %d", p.RewardEarnedTotal),
		fmt.Sprintf("Last played: %s", orNone(p.LastPlayedLevel)),
		fmt.Sprintf("Highest played: %s", orNone(p.HighestLevelPlayed)),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderLevelTable prints per-level analytics, most-attempted first.
func RenderLevelTable(w io.Writer, p Payload) error {
	if len(p.PerLevelAnalytics) == 0 {
		_, err := fmt.Fprintln(w, "No levels recorded.")
		return err
	}
	headers := []string{"Level", "Attempts", "Wins", "Losses", "Best (ms)", "Avg (ms)", "XP"}
	ids := TopLevelsByAttempts(p.PerLevelAnalytics, len(p.PerLevelAnalytics))
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		agg := p.PerLevelAnalytics[id]
		rows = append(rows, []string{
			id,
			strconv.Itoa(agg.Attempts),
			strconv.Itoa(agg.Wins),
			strconv.Itoa(agg.Losses),
			strconv.FormatInt(agg.BestTimeMs, 10),
			strconv.FormatInt(agg.AverageTimeMs, 10),
			strconv.FormatInt(agg.TotalXP, 10),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	for _, line := range FormatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderAttempts prints the diagnostics attempt log with an
// attempt-duration sparkline.
func RenderAttempts(w io.Writer, p Payload) error {
	if len(p.Diagnostics.Levels) == 0 {
		_, err := fmt.Fprintln(w, "No attempts recorded.")
		return err
	}
	durations := make([]float64, len(p.Diagnostics.Levels))
	for i, level := range p.Diagnostics.Levels {
		durations[i] = float64(level.TimeTaken)
	}
	if _, err := fmt.Fprintf(w, "Attempt durations: %s\n", Sparkline(durations)); err != nil {
		return err
	}
	for _, level := range p.Diagnostics.Levels {
		outcome := "loss"
		if level.Successful {
			outcome = "win"
		}
		if _, err := fmt.Fprintf(w, "%s  %s  %dms  %dxp\n", level.LevelID, outcome, level.TimeTaken, level.XPEarned); err != nil {
			return err
		}
		for _, task := range level.Tasks {
			mark := "x"
			if task.Successful {
				mark = "ok"
			}
			if _, err := fmt.Fprintf(w, "  %s %s (%dms) %s\n", mark, task.TaskID, task.TimeTaken, task.Question); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func orNone(v string) string {
	if v == "" {
		return "<none>"
	}
	return v
}
