// Package service is the orchestration layer of the scheduling engine: it
// coordinates the ScheduledReport aggregate and the planner algorithms with
// the injected collaborators (repository, report directory, access decider,
// export trigger, event bus, locker).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/errors"
	"github.com/Deepreo/reportsched/planner"
	"github.com/Deepreo/reportsched/schedule"
)

const (
	// DefaultLeaseTTL bounds how long the per-schedule exclusive section may
	// be held if a holder crashes without releasing.
	DefaultLeaseTTL = 2 * time.Minute

	// DefaultStaleAfter is how long an execution may stay RUNNING before the
	// reconciliation sweep fails it out.
	DefaultStaleAfter = time.Hour

	exportTriggerTimeout = 30 * time.Second
)

// Deps are the collaborators the service is wired with. Repository, Reports,
// Access, Exporter and Locker are required; Bus is optional (pending domain
// events are dropped with a log line when absent).
type Deps struct {
	Repository core.Repository
	Reports    core.ReportDirectory
	Access     core.AccessDecider
	Exporter   core.ExportTrigger
	Locker     core.Locker
	Bus        core.EventBus
	Logger     *slog.Logger

	LeaseTTL   time.Duration
	StaleAfter time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	repo       core.Repository
	reports    core.ReportDirectory
	access     core.AccessDecider
	exporter   core.ExportTrigger
	locker     core.Locker
	bus        core.EventBus
	logger     *slog.Logger
	leaseTTL   time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func New(deps Deps) (*Service, error) {
	if deps.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if deps.Reports == nil {
		return nil, errors.New("report directory is required")
	}
	if deps.Access == nil {
		return nil, errors.New("access decider is required")
	}
	if deps.Exporter == nil {
		return nil, errors.New("export trigger is required")
	}
	if deps.Locker == nil {
		return nil, errors.New("locker is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.LeaseTTL <= 0 {
		deps.LeaseTTL = DefaultLeaseTTL
	}
	if deps.StaleAfter <= 0 {
		deps.StaleAfter = DefaultStaleAfter
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		repo:       deps.Repository,
		reports:    deps.Reports,
		access:     deps.Access,
		exporter:   deps.Exporter,
		locker:     deps.Locker,
		bus:        deps.Bus,
		logger:     deps.Logger,
		leaseTTL:   deps.LeaseTTL,
		staleAfter: deps.StaleAfter,
		now:        deps.Now,
	}, nil
}

/**--------------------------------------------
 *              OPERATIONS
 *---------------------------------------------**/

// Schedule validates the request and creates a new ACTIVE scheduled report.
// Config validation runs before the report-eligibility check so malformed
// input is always reported as such, regardless of the target report's state.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (*ScheduledReportDTO, error) {
	if issues := req.Schedule.Validate(); len(issues) > 0 {
		return nil, errors.ValidationError(errors.New(issues[0].Message)).WithField(issues[0].Field)
	}
	if issues := req.Delivery.Validate(); len(issues) > 0 {
		return nil, errors.ValidationError(errors.New(issues[0].Message)).WithField(issues[0].Field)
	}

	scope := core.NameScope{CreatedBy: req.CreatedBy, OrganizationID: req.OrganizationID}
	if exists, err := s.repo.ExistsByName(ctx, req.Name, scope); err != nil {
		return nil, errors.InfraError(err)
	} else if exists {
		return nil, errors.DomainError(fmt.Errorf("a scheduled report named %q already exists", req.Name)).WithCode("DUPLICATE_NAME")
	}

	info, err := s.reports.FindReport(ctx, req.ReportID)
	if err != nil {
		return nil, errors.NotFoundError(fmt.Errorf("report %s: %w", req.ReportID, err))
	}
	if !info.Schedulable() {
		return nil, errors.DomainError(fmt.Errorf("report %s must be published and not archived to be scheduled", req.ReportID)).
			WithCode(schedule.CodeReportNotSchedulable)
	}

	firstRun, err := planner.NextOccurrence(req.Schedule, s.now())
	if err != nil {
		return nil, err
	}

	sr, err := schedule.NewScheduledReport(schedule.CreateParams{
		Name:           req.Name,
		Description:    req.Description,
		ReportID:       req.ReportID,
		Schedule:       req.Schedule,
		Delivery:       req.Delivery,
		CreatedBy:      req.CreatedBy,
		OrganizationID: req.OrganizationID,
	}, firstRun)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, sr); err != nil {
		return nil, err
	}
	return toDTO(sr), nil
}

// Get returns a single scheduled report after a read-permission check.
func (s *Service) Get(ctx context.Context, id, actingUserID string) (*ScheduledReportDTO, error) {
	sr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actingUserID, core.ActionRead, sr); err != nil {
		return nil, err
	}
	return toDTO(sr), nil
}

// List returns a filtered, sorted page of scheduled reports.
func (s *Service) List(ctx context.Context, filter core.ListFilter, page, pageSize int64, sortField string, order core.SortOrder) (*ListResult, error) {
	result, err := s.repo.FindWithPagination(ctx, filter, page, pageSize, sortField, order)
	if err != nil {
		return nil, errors.InfraError(err)
	}
	return &ListResult{Items: toDTOs(result.Items), Total: result.Total}, nil
}

// Preview runs a dry-run validation of a schedule config: the full issue
// list, the next five occurrences and non-fatal warnings.
func (s *Service) Preview(cfg schedule.ScheduleConfig) planner.SchedulePreview {
	return planner.PreviewSchedule(cfg, s.now())
}

// Execute starts one execution of an ACTIVE schedule: it records the start,
// persists, and fires the export trigger out-of-band. A trigger failure is
// logged and never fails the call; the execution outcome arrives later via
// RecordCompletion.
func (s *Service) Execute(ctx context.Context, id, actingUserID string) (string, error) {
	sr, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.authorize(ctx, actingUserID, core.ActionExecute, sr); err != nil {
		return "", err
	}
	if !sr.IsActive() {
		return "", errors.DomainError(fmt.Errorf("cannot execute schedule in status %s", sr.Status)).WithCode(schedule.CodeNotActive)
	}
	if _, err := s.reports.FindReport(ctx, sr.ReportID); err != nil {
		return "", errors.NotFoundError(fmt.Errorf("report %s: %w", sr.ReportID, err))
	}

	release, err := s.locker.Acquire(ctx, leaseKey(id), s.leaseTTL)
	if err != nil {
		return "", errors.InfraError(err)
	}
	defer s.release(ctx, release)

	// Reload under the lease so a concurrent execute cannot interleave.
	sr, err = s.load(ctx, id)
	if err != nil {
		return "", err
	}

	executionID := uuid.NewString()
	if err := sr.RecordExecutionStart(executionID, s.now()); err != nil {
		return "", err
	}
	if err := s.save(ctx, sr); err != nil {
		return "", err
	}

	go s.triggerExport(ctx, sr, executionID)

	return executionID, nil
}

func (s *Service) triggerExport(parent context.Context, sr *schedule.ScheduledReport, executionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), exportTriggerTimeout)
	defer cancel()

	metadata := map[string]string{
		"scheduled_report_id": sr.ID,
		"execution_id":        executionID,
		"delivery_method":     string(sr.Delivery.Method),
	}
	if err := s.exporter.TriggerExport(ctx, sr.ReportID, sr.Delivery.Format, sr.CreatedBy, metadata); err != nil {
		// Best-effort: the execution stays RUNNING until the worker reports
		// back or the stale sweep fails it out.
		s.logger.Error("export trigger failed",
			"scheduled_report_id", sr.ID,
			"execution_id", executionID,
			"error", err)
	}
}

// RecordCompletion records the terminal outcome of an execution. Only a
// COMPLETED outcome advances NextExecutionAt; a failed run keeps its missed
// slot so the retry decision stays with the caller.
func (s *Service) RecordCompletion(ctx context.Context, id, executionID string, result schedule.ExecutionResult) error {
	release, err := s.locker.Acquire(ctx, leaseKey(id), s.leaseTTL)
	if err != nil {
		return errors.InfraError(err)
	}
	defer s.release(ctx, release)

	sr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := sr.RecordExecutionCompletion(executionID, result); err != nil {
		return err
	}
	if result.Status == schedule.ExecutionCompleted {
		next, err := planner.NextOccurrence(sr.Schedule, s.now())
		if err != nil {
			return err
		}
		if err := sr.UpdateNextExecution(next); err != nil {
			return err
		}
	}
	return s.save(ctx, sr)
}

// Pause stops future occurrences of an ACTIVE schedule.
func (s *Service) Pause(ctx context.Context, id, actingUserID string) error {
	return s.transition(ctx, id, actingUserID, core.ActionPause, (*schedule.ScheduledReport).Pause, false)
}

// Resume reactivates a PAUSED schedule and re-anchors its next occurrence.
func (s *Service) Resume(ctx context.Context, id, actingUserID string) error {
	return s.transition(ctx, id, actingUserID, core.ActionResume, (*schedule.ScheduledReport).Resume, true)
}

// Activate turns a schedule back on from any non-ACTIVE state and re-anchors
// its next occurrence.
func (s *Service) Activate(ctx context.Context, id, actingUserID string) error {
	return s.transition(ctx, id, actingUserID, core.ActionUpdate, (*schedule.ScheduledReport).Activate, true)
}

// Deactivate turns a schedule off.
func (s *Service) Deactivate(ctx context.Context, id, actingUserID string) error {
	return s.transition(ctx, id, actingUserID, core.ActionUpdate, (*schedule.ScheduledReport).Deactivate, false)
}

func (s *Service) transition(ctx context.Context, id, actingUserID, action string, mutate func(*schedule.ScheduledReport) error, reanchor bool) error {
	sr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actingUserID, action, sr); err != nil {
		return err
	}
	if err := mutate(sr); err != nil {
		return err
	}
	if reanchor {
		next, err := planner.NextOccurrence(sr.Schedule, s.now())
		if err != nil {
			return err
		}
		if err := sr.UpdateNextExecution(next); err != nil {
			return err
		}
	}
	return s.save(ctx, sr)
}

// Delete removes a schedule: soft deletion deactivates it, hard deletion
// removes it from the store permanently.
func (s *Service) Delete(ctx context.Context, id, actingUserID string, hard bool) error {
	sr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actingUserID, core.ActionDelete, sr); err != nil {
		return err
	}
	if hard {
		if err := s.repo.PermanentlyDelete(ctx, id); err != nil {
			return errors.InfraError(err)
		}
		return nil
	}
	if err := sr.Deactivate(); err != nil {
		return err
	}
	return s.save(ctx, sr)
}

// Rename changes the display name.
func (s *Service) Rename(ctx context.Context, id, actingUserID, name string) error {
	sr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actingUserID, core.ActionUpdate, sr); err != nil {
		return err
	}
	if err := sr.Rename(name); err != nil {
		return err
	}
	return s.save(ctx, sr)
}

// UpdateDescription changes the description.
func (s *Service) UpdateDescription(ctx context.Context, id, actingUserID, description string) error {
	sr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actingUserID, core.ActionUpdate, sr); err != nil {
		return err
	}
	if err := sr.UpdateDescription(description); err != nil {
		return err
	}
	return s.save(ctx, sr)
}

// UpdateSchedule replaces the schedule config and re-anchors the next fire
// time from "now".
func (s *Service) UpdateSchedule(ctx context.Context, id, actingUserID string, cfg schedule.ScheduleConfig) error {
	sr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actingUserID, core.ActionUpdate, sr); err != nil {
		return err
	}
	if err := sr.UpdateScheduleConfig(cfg); err != nil {
		return err
	}
	next, err := planner.NextOccurrence(cfg, s.now())
	if err != nil {
		return err
	}
	if err := sr.UpdateNextExecution(next); err != nil {
		return err
	}
	return s.save(ctx, sr)
}

// UpdateDelivery replaces the delivery config; the next fire time is
// unaffected.
func (s *Service) UpdateDelivery(ctx context.Context, id, actingUserID string, cfg schedule.DeliveryConfig) error {
	sr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actingUserID, core.ActionUpdate, sr); err != nil {
		return err
	}
	if err := sr.UpdateDeliveryConfig(cfg); err != nil {
		return err
	}
	return s.save(ctx, sr)
}

// FindDue returns every schedule due as of the given instant.
func (s *Service) FindDue(ctx context.Context, asOf time.Time) ([]*ScheduledReportDTO, error) {
	due, err := s.repo.FindDue(ctx, asOf)
	if err != nil {
		return nil, errors.InfraError(err)
	}
	return toDTOs(due), nil
}

/**--------------------------------------------
 *              BACKGROUND SWEEPS
 *---------------------------------------------**/

// RunDueSweep executes every due schedule best-effort, on behalf of each
// schedule's owner. Individual failures are logged and do not stop the sweep.
func (s *Service) RunDueSweep(ctx context.Context) error {
	now := s.now()
	due, err := s.repo.FindDue(ctx, now)
	if err != nil {
		return errors.InfraError(err)
	}

	for _, sr := range due {
		if sr.CurrentExecutionID != "" {
			s.logger.Warn("skipping due schedule with execution still in flight",
				"scheduled_report_id", sr.ID,
				"execution_id", sr.CurrentExecutionID)
			continue
		}
		if _, err := s.Execute(ctx, sr.ID, sr.CreatedBy); err != nil {
			s.logger.Error("due sweep execution failed",
				"scheduled_report_id", sr.ID,
				"error", err)
		}
	}
	return nil
}

// ReconcileStale fails out executions that have been RUNNING longer than the
// stale threshold, so a crashed worker cannot leave a schedule stuck in
// flight forever.
func (s *Service) ReconcileStale(ctx context.Context) error {
	now := s.now()
	stale, err := s.repo.FindStaleExecutions(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return errors.InfraError(err)
	}

	for _, sr := range stale {
		if sr.CurrentExecutionID == "" || sr.ExecutionStartedAt == nil {
			continue
		}
		result := schedule.ExecutionResult{
			Status:       schedule.ExecutionFailed,
			Duration:     now.Sub(*sr.ExecutionStartedAt),
			ErrorMessage: fmt.Sprintf("execution exceeded the %s stale threshold without reporting completion", s.staleAfter),
		}
		if err := s.RecordCompletion(ctx, sr.ID, sr.CurrentExecutionID, result); err != nil {
			s.logger.Error("stale execution reconciliation failed",
				"scheduled_report_id", sr.ID,
				"execution_id", sr.CurrentExecutionID,
				"error", err)
		}
	}
	return nil
}

/**--------------------------------------------
 *              HELPERS
 *---------------------------------------------**/

func leaseKey(id string) string {
	return "scheduledreport:" + id
}

func (s *Service) load(ctx context.Context, id string) (*schedule.ScheduledReport, error) {
	if id == "" {
		return nil, errors.ValidationError(errors.New("scheduled report id is required")).WithField("id")
	}
	sr, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.InfraError(err)
	}
	if sr == nil {
		return nil, errors.NotFoundError(fmt.Errorf("scheduled report %s not found", id))
	}
	return sr, nil
}

func (s *Service) authorize(ctx context.Context, userID, action string, sr *schedule.ScheduledReport) error {
	decision, err := s.access.Authorize(ctx, userID, action, sr)
	if err != nil {
		return errors.InfraError(err)
	}
	if !decision.Allowed {
		return errors.PermissionError(fmt.Errorf("user %s is not allowed to perform %s: %s", userID, action, decision.Reason))
	}
	return nil
}

// save persists the aggregate and publishes its pending events. Persistence
// failures are wrapped so store errors never leak un-mapped; event publishing
// is best-effort after a successful save.
func (s *Service) save(ctx context.Context, sr *schedule.ScheduledReport) error {
	if err := s.repo.Save(ctx, sr); err != nil {
		return errors.InfraError(err)
	}
	for _, evt := range sr.DrainEvents() {
		if s.bus == nil {
			s.logger.Debug("no event bus configured; dropping domain event", "event", evt.EventName())
			continue
		}
		if err := s.bus.Publish(ctx, evt); err != nil {
			s.logger.Warn("publishing domain event failed",
				"event", evt.EventName(),
				"scheduled_report_id", sr.ID,
				"error", err)
		}
	}
	return nil
}

func (s *Service) release(ctx context.Context, release core.ReleaseFunc) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("releasing schedule lease failed", "error", err)
	}
}
