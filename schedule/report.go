package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Deepreo/reportsched/errors"
)

const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1000
)

// Business-rule violation codes surfaced on errors.ExtendError.
const (
	CodeAlreadyActive        = "ALREADY_ACTIVE"
	CodeAlreadyInactive      = "ALREADY_INACTIVE"
	CodeNotActive            = "NOT_ACTIVE"
	CodeNotPaused            = "NOT_PAUSED"
	CodeExecutionMismatch    = "EXECUTION_MISMATCH"
	CodeReportNotSchedulable = "REPORT_NOT_SCHEDULABLE"
)

// ScheduledReport is the aggregate root of the engine: a recurring instruction
// to regenerate and deliver a report artifact. All mutation goes through the
// business methods below; each one validates its input first, bumps UpdatedAt
// and appends a pending domain event. Nothing is mutated when a method returns
// an error.
type ScheduledReport struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ReportID    string `json:"report_id"`

	Schedule ScheduleConfig `json:"schedule_config"`
	Delivery DeliveryConfig `json:"delivery_config"`
	Status   Status         `json:"status"`

	CreatedBy      string `json:"created_by"`
	OrganizationID string `json:"organization_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	NextExecutionAt time.Time  `json:"next_execution_at"`
	ExecutionCount  int        `json:"execution_count"`
	FailureCount    int        `json:"failure_count"`

	// In-flight execution tracking. CurrentExecutionID is a state marker, not
	// a lock; the orchestration layer serializes execute/record-completion.
	CurrentExecutionID    string          `json:"current_execution_id,omitempty"`
	ExecutionStartedAt    *time.Time      `json:"execution_started_at,omitempty"`
	LastExecutionStatus   ExecutionStatus `json:"last_execution_status,omitempty"`
	LastExecutionDuration time.Duration   `json:"last_execution_duration,omitempty"`
	LastExecutionRecords  int64           `json:"last_execution_records,omitempty"`
	LastExecutionFileSize int64           `json:"last_execution_file_size,omitempty"`
	LastExecutionError    string          `json:"last_execution_error,omitempty"`

	pending []Event
}

// CreateParams carries everything needed to construct a new scheduled report.
type CreateParams struct {
	Name           string
	Description    string
	ReportID       string
	Schedule       ScheduleConfig
	Delivery       DeliveryConfig
	CreatedBy      string
	OrganizationID string
}

// NewScheduledReport validates all fields and builds a new ACTIVE schedule.
// firstRun is the first occurrence, computed by the caller from "now" (the
// occurrence arithmetic lives in the planner package).
func NewScheduledReport(p CreateParams, firstRun time.Time) (*ScheduledReport, error) {
	if err := validateName(p.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(p.Description); err != nil {
		return nil, err
	}
	if p.ReportID == "" {
		return nil, errors.ValidationError(errors.New("report id is required")).WithField("report_id")
	}
	if p.CreatedBy == "" {
		return nil, errors.ValidationError(errors.New("created by is required")).WithField("created_by")
	}
	if err := firstViolation(p.Schedule.Validate()); err != nil {
		return nil, err
	}
	if err := firstViolation(p.Delivery.Validate()); err != nil {
		return nil, err
	}
	if firstRun.IsZero() {
		return nil, errors.ValidationError(errors.New("first run time is required")).WithField("next_execution_at")
	}

	now := time.Now().UTC()
	sr := &ScheduledReport{
		ID:              uuid.NewString(),
		Name:            p.Name,
		Description:     p.Description,
		ReportID:        p.ReportID,
		Schedule:        p.Schedule,
		Delivery:        p.Delivery,
		Status:          StatusActive,
		CreatedBy:       p.CreatedBy,
		OrganizationID:  p.OrganizationID,
		CreatedAt:       now,
		UpdatedAt:       now,
		NextExecutionAt: firstRun,
	}
	sr.record(newCreatedEvent(sr, now))
	return sr, nil
}

func validateName(name string) error {
	if name == "" {
		return errors.ValidationError(errors.New("name is required")).WithField("name")
	}
	if len(name) > MaxNameLength {
		return errors.ValidationError(fmt.Errorf("name must be at most %d characters", MaxNameLength)).WithField("name")
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) > MaxDescriptionLength {
		return errors.ValidationError(fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)).WithField("description")
	}
	return nil
}

// firstViolation converts the first entry of a validation result into a
// throwing error. Dry-run callers use Validate directly to get the full list.
func firstViolation(errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.ValidationError(errors.New(errs[0].Message)).WithField(errs[0].Field)
}

/**--------------------------------------------
 *          STATE MACHINE TRANSITIONS
 *---------------------------------------------**/

// Pause stops future occurrences. Only an ACTIVE schedule can be paused; an
// execution already marked RUNNING is not interrupted.
func (sr *ScheduledReport) Pause() error {
	if sr.Status != StatusActive {
		return errors.DomainError(fmt.Errorf("cannot pause schedule in status %s", sr.Status)).WithCode(CodeNotActive)
	}
	sr.Status = StatusPaused
	sr.touch("status")
	return nil
}

// Activate moves the schedule to ACTIVE from any other state. The caller must
// re-anchor NextExecutionAt afterwards via UpdateNextExecution.
func (sr *ScheduledReport) Activate() error {
	if sr.Status == StatusActive {
		return errors.DomainError(errors.New("schedule is already active")).WithCode(CodeAlreadyActive)
	}
	sr.Status = StatusActive
	sr.touch("status")
	return nil
}

// Deactivate turns the schedule off. Soft deletion ends here.
func (sr *ScheduledReport) Deactivate() error {
	if sr.Status == StatusInactive {
		return errors.DomainError(errors.New("schedule is already inactive")).WithCode(CodeAlreadyInactive)
	}
	sr.Status = StatusInactive
	sr.touch("status")
	return nil
}

// Resume reactivates a PAUSED schedule. The caller must re-anchor
// NextExecutionAt afterwards via UpdateNextExecution.
func (sr *ScheduledReport) Resume() error {
	if sr.Status != StatusPaused {
		return errors.DomainError(fmt.Errorf("cannot resume schedule in status %s", sr.Status)).WithCode(CodeNotPaused)
	}
	sr.Status = StatusActive
	sr.touch("status")
	return nil
}

/**--------------------------------------------
 *            MUTATING METHODS
 *---------------------------------------------**/

func (sr *ScheduledReport) Rename(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	sr.Name = name
	sr.touch("name")
	return nil
}

func (sr *ScheduledReport) UpdateDescription(desc string) error {
	if err := validateDescription(desc); err != nil {
		return err
	}
	sr.Description = desc
	sr.touch("description")
	return nil
}

// UpdateScheduleConfig replaces the schedule configuration. Changing the
// schedule always re-anchors the next fire time, so the caller must follow up
// with UpdateNextExecution computed from "now".
func (sr *ScheduledReport) UpdateScheduleConfig(cfg ScheduleConfig) error {
	if err := firstViolation(cfg.Validate()); err != nil {
		return err
	}
	sr.Schedule = cfg
	sr.touch("schedule_config")
	return nil
}

// UpdateDeliveryConfig replaces the delivery configuration. NextExecutionAt is
// unaffected.
func (sr *ScheduledReport) UpdateDeliveryConfig(cfg DeliveryConfig) error {
	if err := firstViolation(cfg.Validate()); err != nil {
		return err
	}
	sr.Delivery = cfg
	sr.touch("delivery_config")
	return nil
}

// UpdateNextExecution sets the next occurrence. Used by the orchestration
// layer after it computed a new occurrence with the planner.
func (sr *ScheduledReport) UpdateNextExecution(at time.Time) error {
	if at.IsZero() {
		return errors.ValidationError(errors.New("next execution time is required")).WithField("next_execution_at")
	}
	sr.NextExecutionAt = at
	sr.touch("next_execution")
	return nil
}

// RecordExecutionStart marks an execution as in flight. The entity performs no
// concurrent-start check; the orchestration layer holds the per-schedule lease
// while calling this.
func (sr *ScheduledReport) RecordExecutionStart(executionID string, startedAt time.Time) error {
	if executionID == "" {
		return errors.ValidationError(errors.New("execution id is required")).WithField("execution_id")
	}
	sr.CurrentExecutionID = executionID
	sr.ExecutionStartedAt = &startedAt
	sr.LastExecutionStatus = ExecutionRunning
	sr.touch("execution_started")
	return nil
}

// ExecutionResult carries the terminal outcome of one execution.
type ExecutionResult struct {
	Status       ExecutionStatus
	Duration     time.Duration
	RecordCount  int64
	FileSize     int64
	ErrorMessage string
}

// RecordExecutionCompletion records a terminal outcome for the currently
// tracked execution. A stale or duplicate callback (execution id not matching
// the tracked one) is rejected with CodeExecutionMismatch and mutates nothing;
// silently accepting it would corrupt the execution counters.
//
// This method deliberately does not recompute NextExecutionAt: the
// orchestration layer reschedules, and only on COMPLETED, so a failed run does
// not silently skip forward past its missed slot.
func (sr *ScheduledReport) RecordExecutionCompletion(executionID string, result ExecutionResult) error {
	if !result.Status.IsTerminal() {
		return errors.ValidationError(fmt.Errorf("completion status must be COMPLETED or FAILED; got %q", result.Status)).WithField("status")
	}
	if sr.CurrentExecutionID == "" || executionID != sr.CurrentExecutionID {
		return errors.DomainError(fmt.Errorf("execution %q does not match current execution %q", executionID, sr.CurrentExecutionID)).
			WithCode(CodeExecutionMismatch).
			WithMetadata("execution_id", executionID)
	}

	now := time.Now().UTC()
	sr.LastExecutedAt = &now
	sr.LastExecutionStatus = result.Status
	sr.LastExecutionDuration = result.Duration
	sr.LastExecutionRecords = result.RecordCount
	sr.LastExecutionFileSize = result.FileSize
	sr.LastExecutionError = result.ErrorMessage

	sr.ExecutionCount++
	if result.Status == ExecutionFailed {
		sr.FailureCount++
	}

	sr.CurrentExecutionID = ""
	sr.ExecutionStartedAt = nil

	sr.UpdatedAt = now
	sr.record(newExecutedEvent(sr, executionID, result.Status, result.Duration, now))
	return nil
}

func (sr *ScheduledReport) touch(field string) {
	now := time.Now().UTC()
	sr.UpdatedAt = now
	sr.record(newUpdatedEvent(sr, field, now))
}

/**--------------------------------------------
 *              QUERY METHODS
 *---------------------------------------------**/

func (sr *ScheduledReport) IsActive() bool   { return sr.Status == StatusActive }
func (sr *ScheduledReport) IsPaused() bool   { return sr.Status == StatusPaused }
func (sr *ScheduledReport) IsInactive() bool { return sr.Status == StatusInactive }

// IsDue reports whether the schedule should fire: ACTIVE and the next
// occurrence is at or before now.
func (sr *ScheduledReport) IsDue(now time.Time) bool {
	return sr.Status == StatusActive && !sr.NextExecutionAt.IsZero() && !sr.NextExecutionAt.After(now)
}

func (sr *ScheduledReport) BelongsToOrganization(orgID string) bool {
	return orgID != "" && sr.OrganizationID == orgID
}

func (sr *ScheduledReport) IsCreatedBy(userID string) bool {
	return userID != "" && sr.CreatedBy == userID
}

// HasHighFailureRate reports whether more than half of all executions failed.
// A schedule that never ran is not failing.
func (sr *ScheduledReport) HasHighFailureRate() bool {
	if sr.ExecutionCount == 0 {
		return false
	}
	return float64(sr.FailureCount)/float64(sr.ExecutionCount) > 0.5
}

// SuccessRate defaults to 1.0 before the first execution.
func (sr *ScheduledReport) SuccessRate() float64 {
	if sr.ExecutionCount == 0 {
		return 1.0
	}
	return float64(sr.ExecutionCount-sr.FailureCount) / float64(sr.ExecutionCount)
}

/**--------------------------------------------
 *              PENDING EVENTS
 *---------------------------------------------**/

func (sr *ScheduledReport) record(e Event) {
	sr.pending = append(sr.pending, e)
}

// PendingEvents returns the events recorded since the last drain.
func (sr *ScheduledReport) PendingEvents() []Event {
	return sr.pending
}

// DrainEvents returns the pending events and clears the list. The
// orchestration layer drains after a successful save.
func (sr *ScheduledReport) DrainEvents() []Event {
	evts := sr.pending
	sr.pending = nil
	return evts
}
