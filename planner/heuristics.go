package planner

import (
	"fmt"
	"time"

	"github.com/Deepreo/reportsched/schedule"
)

// ExecutionSample is one historical execution observation used by the
// frequency advisor.
type ExecutionSample struct {
	ExecutedAt     time.Time     `json:"executed_at"`
	Success        bool          `json:"success"`
	AccessCount    int           `json:"access_count"`
	AvgAccessDelay time.Duration `json:"avg_access_delay"`
}

// FrequencyRecommendation is the advisor's verdict: a frequency, a confidence
// in [0,1] and human-readable reasoning.
type FrequencyRecommendation struct {
	Frequency  schedule.Frequency `json:"frequency"`
	Confidence float64            `json:"confidence"`
	Reasons    []string           `json:"reasons"`
}

// Advisor thresholds. Heuristic values, not measured.
const (
	minSamples          = 5
	lowAccessThreshold  = 5.0
	highAccessThreshold = 20.0
	longAccessDelay     = 24 * time.Hour
	lowSuccessRate      = 0.8
)

// SuggestFrequency recommends a cadence from execution history. With fewer
// than five samples it falls back to a low-confidence DAILY default. The
// confidence is discounted when the historical success rate is below 80%,
// since an unreliable schedule's access pattern is itself unreliable.
func SuggestFrequency(history []ExecutionSample) FrequencyRecommendation {
	if len(history) < minSamples {
		return FrequencyRecommendation{
			Frequency:  schedule.FrequencyDaily,
			Confidence: 0.3,
			Reasons:    []string{fmt.Sprintf("only %d execution(s) recorded; at least %d are needed for a data-driven recommendation", len(history), minSamples)},
		}
	}

	var (
		successes int
		accessSum float64
		delaySum  time.Duration
	)
	for _, s := range history {
		if s.Success {
			successes++
		}
		accessSum += float64(s.AccessCount)
		delaySum += s.AvgAccessDelay
	}
	successRate := float64(successes) / float64(len(history))
	avgAccess := accessSum / float64(len(history))
	avgDelay := delaySum / time.Duration(len(history))

	rec := FrequencyRecommendation{Confidence: 0.85}

	switch {
	case avgAccess < lowAccessThreshold:
		rec.Frequency = schedule.FrequencyWeekly
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("average of %.1f accesses per run is low; a weekly cadence avoids generating unread reports", avgAccess))
	case avgDelay > longAccessDelay:
		rec.Frequency = schedule.FrequencyWeekly
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("readers open the report %s after generation on average; freshness is not driving usage", avgDelay.Round(time.Hour)))
	case avgAccess > highAccessThreshold:
		rec.Frequency = schedule.FrequencyDaily
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("average of %.1f accesses per run is high; a daily cadence keeps the report fresh", avgAccess))
	default:
		rec.Frequency = schedule.FrequencyDaily
		rec.Reasons = append(rec.Reasons, "access pattern shows no strong signal; keeping a daily cadence")
	}

	if successRate < lowSuccessRate {
		rec.Confidence *= successRate
		rec.Reasons = append(rec.Reasons, fmt.Sprintf("success rate is %.0f%%; recommendation confidence reduced until executions stabilize", successRate*100))
	}

	return rec
}

// ShouldPauseForFailures recommends pausing a schedule whose executions are
// mostly failing, or that is accumulating failures fast in its early life
// (more than 5 failures before reaching 10 executions).
func ShouldPauseForFailures(sr *schedule.ScheduledReport) bool {
	if sr.HasHighFailureRate() {
		return true
	}
	return sr.FailureCount > 5 && sr.ExecutionCount < 10
}
