package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/Deepreo/reportsched/errors"
	"github.com/Deepreo/reportsched/schedule"
)

// Priority orders plan entries that share an occurrence time.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Window is a closed time interval for execution planning.
type Window struct {
	Start time.Time
	End   time.Time
}

// PlanEntry is one planned occurrence of one schedule.
type PlanEntry struct {
	ScheduleID        string        `json:"schedule_id"`
	Name              string        `json:"name"`
	ScheduledAt       time.Time     `json:"scheduled_at"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Priority          Priority      `json:"priority"`
	// DependsOn is reserved for cross-report dependency resolution; it is
	// always empty today.
	DependsOn []string `json:"depends_on,omitempty"`
}

// Duration heuristic per frequency. Placeholder values, not measured.
var estimatedDurations = map[schedule.Frequency]time.Duration{
	schedule.FrequencyDaily:   5 * time.Minute,
	schedule.FrequencyWeekly:  15 * time.Minute,
	schedule.FrequencyMonthly: 30 * time.Minute,
}

const defaultEstimatedDuration = 10 * time.Minute

func estimateDuration(f schedule.Frequency) time.Duration {
	if d, ok := estimatedDurations[f]; ok {
		return d
	}
	return defaultEstimatedDuration
}

func classifyPriority(sr *schedule.ScheduledReport) Priority {
	rate := sr.SuccessRate()
	switch {
	case rate > 0.95 && sr.ExecutionCount > 50:
		return PriorityHigh
	case rate > 0.80:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// BuildExecutionPlan enumerates every occurrence of every ACTIVE schedule that
// falls inside the window, sorted by occurrence time with priority as the
// tie-break. Non-active schedules are skipped.
func BuildExecutionPlan(schedules []*schedule.ScheduledReport, window Window) ([]PlanEntry, error) {
	if window.End.Before(window.Start) {
		return nil, errors.ValidationError(errors.New("plan window end precedes start")).WithField("window")
	}

	var plan []PlanEntry
	for _, sr := range schedules {
		if !sr.IsActive() {
			continue
		}

		duration := estimateDuration(sr.Schedule.Frequency)
		priority := classifyPriority(sr)

		cursor := sr.NextExecutionAt
		if cursor.Before(window.Start) {
			cursor = window.Start
		} else if !cursor.After(window.End) {
			// The schedule's own next fire lands inside the window.
			plan = append(plan, PlanEntry{
				ScheduleID:        sr.ID,
				Name:              sr.Name,
				ScheduledAt:       cursor,
				EstimatedDuration: duration,
				Priority:          priority,
			})
		}

		for {
			next, err := NextOccurrence(sr.Schedule, cursor)
			if err != nil {
				return nil, fmt.Errorf("planning schedule %s: %w", sr.ID, err)
			}
			if next.After(window.End) {
				break
			}
			plan = append(plan, PlanEntry{
				ScheduleID:        sr.ID,
				Name:              sr.Name,
				ScheduledAt:       next,
				EstimatedDuration: duration,
				Priority:          priority,
			})
			cursor = next
		}
	}

	sort.SliceStable(plan, func(i, j int) bool {
		if !plan[i].ScheduledAt.Equal(plan[j].ScheduledAt) {
			return plan[i].ScheduledAt.Before(plan[j].ScheduledAt)
		}
		return plan[i].Priority.rank() < plan[j].Priority.rank()
	})

	return plan, nil
}

// conflictBucket is the granularity used to group simultaneous executions.
const conflictBucket = 5 * time.Minute

// Conflict is a time bucket holding more due schedules than the concurrency
// ceiling allows.
type Conflict struct {
	Bucket      time.Time `json:"bucket"`
	ScheduleIDs []string  `json:"schedule_ids"`
}

// Suggestion recommends a staggered start for one schedule in a conflicting
// bucket.
type Suggestion struct {
	ScheduleID    string    `json:"schedule_id"`
	CurrentTime   time.Time `json:"current_time"`
	SuggestedTime time.Time `json:"suggested_time"`
	Reason        string    `json:"reason"`
}

// OptimizationResult is the outcome of a conflict scan.
type OptimizationResult struct {
	Conflicts   []Conflict   `json:"conflicts"`
	Suggestions []Suggestion `json:"suggestions"`
}

// OptimizeSchedule groups ACTIVE schedules by the 5-minute bucket of their
// next execution and reports every bucket whose population exceeds
// maxConcurrent. Each schedule beyond the capacity threshold gets a suggestion
// staggered 5 minutes per overflow position past the bucket.
func OptimizeSchedule(schedules []*schedule.ScheduledReport, maxConcurrent int) (OptimizationResult, error) {
	if maxConcurrent < 1 {
		return OptimizationResult{}, errors.ValidationError(errors.New("max concurrent executions must be at least 1")).WithField("max_concurrent")
	}

	buckets := make(map[time.Time][]*schedule.ScheduledReport)
	for _, sr := range schedules {
		if !sr.IsActive() || sr.NextExecutionAt.IsZero() {
			continue
		}
		bucket := sr.NextExecutionAt.Truncate(conflictBucket)
		buckets[bucket] = append(buckets[bucket], sr)
	}

	var bucketTimes []time.Time
	for t := range buckets {
		bucketTimes = append(bucketTimes, t)
	}
	sort.Slice(bucketTimes, func(i, j int) bool { return bucketTimes[i].Before(bucketTimes[j]) })

	var result OptimizationResult
	for _, bucket := range bucketTimes {
		members := buckets[bucket]
		if len(members) <= maxConcurrent {
			continue
		}

		sort.SliceStable(members, func(i, j int) bool {
			if !members[i].NextExecutionAt.Equal(members[j].NextExecutionAt) {
				return members[i].NextExecutionAt.Before(members[j].NextExecutionAt)
			}
			return members[i].ID < members[j].ID
		})

		conflict := Conflict{Bucket: bucket}
		for _, sr := range members {
			conflict.ScheduleIDs = append(conflict.ScheduleIDs, sr.ID)
		}
		result.Conflicts = append(result.Conflicts, conflict)

		for i := maxConcurrent; i < len(members); i++ {
			position := i - maxConcurrent + 1
			offset := time.Duration(position) * conflictBucket
			result.Suggestions = append(result.Suggestions, Suggestion{
				ScheduleID:    members[i].ID,
				CurrentTime:   members[i].NextExecutionAt,
				SuggestedTime: bucket.Add(offset),
				Reason: fmt.Sprintf("%d schedules start within the same 5-minute window (capacity %d); staggering by %s",
					len(members), maxConcurrent, offset),
			})
		}
	}

	return result, nil
}
