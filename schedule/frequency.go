package schedule

import (
	"fmt"
	"strings"
)

// Frequency is the cadence of a recurring schedule.
type Frequency string

const (
	FrequencyHourly    Frequency = "HOURLY"
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
)

func (f Frequency) String() string {
	return string(f)
}

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// ParseFrequency parses a case-insensitive frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unknown frequency: %q", s)
	}
	return f, nil
}

// DeliveryMethod is how a generated report artifact reaches its audience.
type DeliveryMethod string

const (
	DeliveryEmail    DeliveryMethod = "EMAIL"
	DeliveryWebhook  DeliveryMethod = "WEBHOOK"
	DeliveryDownload DeliveryMethod = "DOWNLOAD"
)

func (m DeliveryMethod) IsValid() bool {
	switch m {
	case DeliveryEmail, DeliveryWebhook, DeliveryDownload:
		return true
	}
	return false
}

func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	m := DeliveryMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown delivery method: %q", s)
	}
	return m, nil
}

// ReportFormat is the output format of the generated artifact.
type ReportFormat string

const (
	FormatPDF   ReportFormat = "PDF"
	FormatExcel ReportFormat = "EXCEL"
	FormatCSV   ReportFormat = "CSV"
)

func (f ReportFormat) IsValid() bool {
	switch f {
	case FormatPDF, FormatExcel, FormatCSV:
		return true
	}
	return false
}

func ParseReportFormat(s string) (ReportFormat, error) {
	f := ReportFormat(strings.ToUpper(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unknown report format: %q", s)
	}
	return f, nil
}

// Status is the lifecycle state of a scheduled report. There is no terminal
// state; INACTIVE schedules can be re-activated.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusPaused   Status = "PAUSED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPaused:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown status: %q", s)
	}
	return st, nil
}

// ExecutionStatus is the state of a single execution, from start to its
// terminal outcome.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionRunning, ExecutionCompleted, ExecutionFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a completion outcome.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

func ParseExecutionStatus(s string) (ExecutionStatus, error) {
	st := ExecutionStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown execution status: %q", s)
	}
	return st, nil
}
