// Package planner holds the stateless scheduling algorithms: next-occurrence
// calculation, schedule preview, execution planning, conflict optimization and
// the frequency/health heuristics.
package planner

import (
	"fmt"
	"time"

	"github.com/Deepreo/reportsched/errors"
	"github.com/Deepreo/reportsched/schedule"
)

// NextOccurrence computes the next firing instant strictly after from. All
// arithmetic happens in the configured timezone.
//
// Policies (see also the package tests):
//   - WEEKLY occurrences always land on the configured weekday. If today is
//     that weekday but the time already passed, the result is a full 7 days
//     out, never "later today".
//   - MONTHLY day-of-month values beyond the length of the target month clamp
//     to that month's last day (day 31 in April fires on April 30).
//   - HOURLY fires at the configured minute of every hour; the configured
//     hour is ignored.
func NextOccurrence(cfg schedule.ScheduleConfig, from time.Time) (time.Time, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return time.Time{}, errors.ValidationError(errors.New(errs[0].Message)).WithField(errs[0].Field)
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, errors.ValidationError(err).WithField("timezone")
	}

	local := from.In(loc)

	switch cfg.Frequency {
	case schedule.FrequencyHourly:
		candidate := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), cfg.Minute, 0, 0, loc)
		if !candidate.After(from) {
			candidate = candidate.Add(time.Hour)
		}
		return candidate, nil

	case schedule.FrequencyDaily:
		candidate := dayAt(local, cfg, loc)
		if !candidate.After(from) {
			candidate = dayAt(local.AddDate(0, 0, 1), cfg, loc)
		}
		return candidate, nil

	case schedule.FrequencyWeekly:
		target := *cfg.DayOfWeek
		candidate := dayAt(local, cfg, loc)
		days := (7 + target - int(candidate.Weekday())) % 7
		candidate = candidate.AddDate(0, 0, days)
		if !candidate.After(from) {
			// Today is the target weekday but the slot passed: a full week out.
			candidate = candidate.AddDate(0, 0, 7)
		}
		return candidate, nil

	case schedule.FrequencyMonthly:
		dom := *cfg.DayOfMonth
		candidate := monthDay(local.Year(), local.Month(), dom, cfg, loc)
		if !candidate.After(from) {
			y, m := addMonths(local.Year(), local.Month(), 1)
			candidate = monthDay(y, m, dom, cfg, loc)
		}
		return candidate, nil

	case schedule.FrequencyQuarterly:
		candidate := dayAt(local, cfg, loc)
		if !candidate.After(from) {
			y, m := addMonths(local.Year(), local.Month(), 3)
			candidate = monthDay(y, m, local.Day(), cfg, loc)
		}
		return candidate, nil

	case schedule.FrequencyYearly:
		candidate := dayAt(local, cfg, loc)
		if !candidate.After(from) {
			candidate = monthDay(local.Year()+1, local.Month(), local.Day(), cfg, loc)
		}
		return candidate, nil
	}

	return time.Time{}, errors.ValidationError(fmt.Errorf("unknown frequency: %q", cfg.Frequency)).WithField("frequency")
}

// dayAt returns ref's calendar day at the configured hour and minute.
func dayAt(ref time.Time, cfg schedule.ScheduleConfig, loc *time.Location) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), cfg.Hour, cfg.Minute, 0, 0, loc)
}

// monthDay returns the given day of the given month at the configured time,
// clamping the day to the month's last day when the month is shorter.
func monthDay(year int, month time.Month, day int, cfg schedule.ScheduleConfig, loc *time.Location) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, cfg.Hour, cfg.Minute, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	m := int(month) - 1 + n
	return year + m/12, time.Month(m%12 + 1)
}

// SchedulePreview is the result of a dry-run validation.
type SchedulePreview struct {
	Valid           bool                  `json:"valid"`
	Issues          []schedule.FieldError `json:"issues,omitempty"`
	Warnings        []string              `json:"warnings,omitempty"`
	NextOccurrences []time.Time           `json:"next_occurrences,omitempty"`
}

const previewOccurrences = 5

// PreviewSchedule validates a config without constructing anything and, when
// valid, projects the next occurrences from the given anchor together with
// non-fatal warnings (weekend runs, off-hours runs, February-risk days).
func PreviewSchedule(cfg schedule.ScheduleConfig, from time.Time) SchedulePreview {
	if issues := cfg.Validate(); len(issues) > 0 {
		return SchedulePreview{Valid: false, Issues: issues}
	}

	preview := SchedulePreview{Valid: true}

	cursor := from
	for i := 0; i < previewOccurrences; i++ {
		next, err := NextOccurrence(cfg, cursor)
		if err != nil {
			preview.Valid = false
			preview.Issues = append(preview.Issues, schedule.FieldError{Field: "schedule_config", Message: err.Error()})
			return preview
		}
		preview.NextOccurrences = append(preview.NextOccurrences, next)
		cursor = next
	}

	if cfg.Frequency == schedule.FrequencyWeekly && cfg.DayOfWeek != nil {
		if *cfg.DayOfWeek == 0 || *cfg.DayOfWeek == 6 {
			preview.Warnings = append(preview.Warnings, "schedule fires on a weekend day; recipients may not see the report until the next business day")
		}
	}
	if cfg.Hour < 6 || cfg.Hour > 22 {
		preview.Warnings = append(preview.Warnings, fmt.Sprintf("schedule fires off-hours (%02d:%02d); verify this is intentional", cfg.Hour, cfg.Minute))
	}
	if cfg.Frequency == schedule.FrequencyMonthly && cfg.DayOfMonth != nil && *cfg.DayOfMonth > 28 {
		preview.Warnings = append(preview.Warnings, fmt.Sprintf("day %d does not exist in every month; short months fire on their last day", *cfg.DayOfMonth))
	}

	return preview
}
