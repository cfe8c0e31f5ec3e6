package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Event is the domain-event contract satisfied by every schedule event. It is
// structurally identical to core.Event so pending events can be handed to any
// event bus without coupling the aggregate to one.
type Event interface {
	EventID() string
	EventName() string
	OccurredOn() time.Time
}

const (
	EventNameCreated  = "scheduledreport.created"
	EventNameUpdated  = "scheduledreport.updated"
	EventNameExecuted = "scheduledreport.executed"
)

// CreatedEvent is emitted once when a scheduled report is created.
type CreatedEvent struct {
	ID                string    `json:"id"`
	ScheduledReportID string    `json:"scheduled_report_id"`
	ReportID          string    `json:"report_id"`
	CreatedBy         string    `json:"created_by"`
	At                time.Time `json:"at"`
}

func (e CreatedEvent) EventID() string       { return e.ID }
func (e CreatedEvent) EventName() string     { return EventNameCreated }
func (e CreatedEvent) OccurredOn() time.Time { return e.At }

// UpdatedEvent is emitted on every mutation, carrying the logical field that
// changed (name, description, status, schedule_config, delivery_config,
// next_execution).
type UpdatedEvent struct {
	ID                string    `json:"id"`
	ScheduledReportID string    `json:"scheduled_report_id"`
	Field             string    `json:"field"`
	At                time.Time `json:"at"`
}

func (e UpdatedEvent) EventID() string       { return e.ID }
func (e UpdatedEvent) EventName() string     { return EventNameUpdated }
func (e UpdatedEvent) OccurredOn() time.Time { return e.At }

// ExecutedEvent is emitted when an execution reaches a terminal outcome.
type ExecutedEvent struct {
	ID                string          `json:"id"`
	ScheduledReportID string          `json:"scheduled_report_id"`
	ExecutionID       string          `json:"execution_id"`
	Status            ExecutionStatus `json:"status"`
	Duration          time.Duration   `json:"duration"`
	At                time.Time       `json:"at"`
}

func (e ExecutedEvent) EventID() string       { return e.ID }
func (e ExecutedEvent) EventName() string     { return EventNameExecuted }
func (e ExecutedEvent) OccurredOn() time.Time { return e.At }

func newCreatedEvent(sr *ScheduledReport, at time.Time) CreatedEvent {
	return CreatedEvent{
		ID:                uuid.NewString(),
		ScheduledReportID: sr.ID,
		ReportID:          sr.ReportID,
		CreatedBy:         sr.CreatedBy,
		At:                at,
	}
}

func newUpdatedEvent(sr *ScheduledReport, field string, at time.Time) UpdatedEvent {
	return UpdatedEvent{
		ID:                uuid.NewString(),
		ScheduledReportID: sr.ID,
		Field:             field,
		At:                at,
	}
}

func newExecutedEvent(sr *ScheduledReport, executionID string, status ExecutionStatus, duration time.Duration, at time.Time) ExecutedEvent {
	return ExecutedEvent{
		ID:                uuid.NewString(),
		ScheduledReportID: sr.ID,
		ExecutionID:       executionID,
		Status:            status,
		Duration:          duration,
		At:                at,
	}
}
