package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/errors"
	"github.com/Deepreo/reportsched/schedule"
)

/**--------------------------------------------
 *              TEST DOUBLES
 *---------------------------------------------**/

type fakeRepo struct {
	mu    sync.Mutex
	items map[string]*schedule.ScheduledReport
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[string]*schedule.ScheduledReport)}
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*schedule.ScheduledReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id], nil
}

func (r *fakeRepo) Save(ctx context.Context, sr *schedule.ScheduledReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[sr.ID] = sr
	return nil
}

func (r *fakeRepo) FindDue(ctx context.Context, asOf time.Time) ([]*schedule.ScheduledReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*schedule.ScheduledReport
	for _, sr := range r.items {
		if sr.IsDue(asOf) {
			due = append(due, sr)
		}
	}
	return due, nil
}

func (r *fakeRepo) FindStaleExecutions(ctx context.Context, startedBefore time.Time) ([]*schedule.ScheduledReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []*schedule.ScheduledReport
	for _, sr := range r.items {
		if sr.CurrentExecutionID != "" && sr.ExecutionStartedAt != nil && !sr.ExecutionStartedAt.After(startedBefore) {
			stale = append(stale, sr)
		}
	}
	return stale, nil
}

func (r *fakeRepo) FindWithPagination(ctx context.Context, filter core.ListFilter, page, pageSize int64, sortField string, order core.SortOrder) (*core.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*schedule.ScheduledReport
	for _, sr := range r.items {
		if filter.Status != "" && sr.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && sr.CreatedBy != filter.CreatedBy {
			continue
		}
		items = append(items, sr)
	}
	return &core.Page{Items: items, Total: int64(len(items))}, nil
}

func (r *fakeRepo) PermanentlyDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) ExistsByName(ctx context.Context, name string, scope core.NameScope) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sr := range r.items {
		if sr.Name == name && sr.CreatedBy == scope.CreatedBy {
			return true, nil
		}
	}
	return false, nil
}

type fakeDirectory struct {
	reports map[string]core.ReportInfo
}

func (d *fakeDirectory) FindReport(ctx context.Context, reportID string) (core.ReportInfo, error) {
	info, ok := d.reports[reportID]
	if !ok {
		return core.ReportInfo{}, fmt.Errorf("report %s not found", reportID)
	}
	return info, nil
}

// ownerOnlyAccess allows owners everything and denies everyone else.
type ownerOnlyAccess struct{}

func (ownerOnlyAccess) Authorize(ctx context.Context, userID, action string, sr *schedule.ScheduledReport) (core.Decision, error) {
	if sr.IsCreatedBy(userID) {
		return core.Decision{Allowed: true, Reason: "owner"}, nil
	}
	return core.Decision{Reason: "not the owner"}, nil
}

type fakeExporter struct {
	mu        sync.Mutex
	calls     []string
	err       error
	triggered chan struct{}
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{triggered: make(chan struct{}, 16)}
}

func (e *fakeExporter) TriggerExport(ctx context.Context, reportID string, format schedule.ReportFormat, requestedBy string, metadata map[string]string) error {
	e.mu.Lock()
	e.calls = append(e.calls, reportID)
	err := e.err
	e.mu.Unlock()
	e.triggered <- struct{}{}
	return err
}

func (e *fakeExporter) waitForTrigger(t *testing.T) {
	t.Helper()
	select {
	case <-e.triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("export trigger was never called")
	}
}

type fakeLocker struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (core.ReleaseFunc, error) {
	l.mu.Lock()
	l.acquired++
	l.mu.Unlock()
	return func(ctx context.Context) error {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
		return nil
	}, nil
}

/**--------------------------------------------
 *              FIXTURE
 *---------------------------------------------**/

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	dir      *fakeDirectory
	exporter *fakeExporter
	locker   *fakeLocker
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newFakeRepo(),
		dir: &fakeDirectory{reports: map[string]core.ReportInfo{
			"report-1": {ID: "report-1", Published: true},
		}},
		exporter: newFakeExporter(),
		locker:   &fakeLocker{},
		now:      time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	svc, err := New(Deps{
		Repository: f.repo,
		Reports:    f.dir,
		Access:     ownerOnlyAccess{},
		Exporter:   f.exporter,
		Locker:     f.locker,
		Logger:     slog.New(slog.DiscardHandler),
		Now:        func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func validRequest() ScheduleRequest {
	return ScheduleRequest{
		Name:      "Daily Sales",
		ReportID:  "report-1",
		CreatedBy: "user-1",
		Schedule: schedule.ScheduleConfig{
			Frequency: schedule.FrequencyDaily,
			Hour:      9,
			Minute:    0,
			Timezone:  "UTC",
		},
		Delivery: schedule.DeliveryConfig{
			Method:     schedule.DeliveryEmail,
			Recipients: []string{"team@example.com"},
			Format:     schedule.FormatPDF,
		},
	}
}

func (f *fixture) mustSchedule(t *testing.T) *ScheduledReportDTO {
	t.Helper()
	dto, err := f.svc.Schedule(context.Background(), validRequest())
	require.NoError(t, err)
	return dto
}

/**--------------------------------------------
 *              TESTS
 *---------------------------------------------**/

func TestScheduleCreatesActiveReport(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	assert.Equal(t, schedule.StatusActive, dto.Status)
	// 10:00 is past the 09:00 slot: first run is tomorrow.
	assert.Equal(t, time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC), dto.NextExecutionAt)

	stored, err := f.repo.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestScheduleRejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	f.mustSchedule(t)

	_, err := f.svc.Schedule(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, errors.IsDomainError(err))
	assert.Equal(t, "DUPLICATE_NAME", errors.GetCode(err))
}

func TestScheduleValidatesConfigBeforeReportEligibility(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.ReportID = "missing-report"
	req.Schedule.Timezone = "Nope/Nowhere"

	_, err := f.svc.Schedule(context.Background(), req)
	require.Error(t, err)
	// Malformed input must be reported as validation, not as a missing report.
	assert.True(t, errors.IsValidationError(err))
}

func TestScheduleRejectsUnschedulableReport(t *testing.T) {
	f := newFixture(t)
	f.dir.reports["report-2"] = core.ReportInfo{ID: "report-2", Published: true, Archived: true}

	req := validRequest()
	req.ReportID = "report-2"
	_, err := f.svc.Schedule(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, schedule.CodeReportNotSchedulable, errors.GetCode(err))
}

func TestGetEnforcesPermissions(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	got, err := f.svc.Get(context.Background(), dto.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, dto.ID, got.ID)

	_, err = f.svc.Get(context.Background(), dto.ID, "intruder")
	require.Error(t, err)
	assert.True(t, errors.IsPermissionError(err))
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "nope", "user-1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestExecuteRecordsStartAndTriggersExport(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	executionID, err := f.svc.Execute(context.Background(), dto.ID, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, executionID)

	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	assert.Equal(t, executionID, stored.CurrentExecutionID)
	assert.Equal(t, schedule.ExecutionRunning, stored.LastExecutionStatus)

	f.exporter.waitForTrigger(t)
	assert.Equal(t, []string{"report-1"}, f.exporter.calls)
	assert.Equal(t, 1, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
}

func TestExecuteRequiresActiveStatus(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)
	require.NoError(t, f.svc.Pause(context.Background(), dto.ID, "user-1"))

	_, err := f.svc.Execute(context.Background(), dto.ID, "user-1")
	require.Error(t, err)
	assert.Equal(t, schedule.CodeNotActive, errors.GetCode(err))
}

func TestExecuteSurvivesExportTriggerFailure(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)
	f.exporter.err = fmt.Errorf("downstream unavailable")

	executionID, err := f.svc.Execute(context.Background(), dto.ID, "user-1")
	require.NoError(t, err)
	f.exporter.waitForTrigger(t)

	// The execution stays RUNNING; the stale sweep or the worker resolves it.
	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	assert.Equal(t, executionID, stored.CurrentExecutionID)
}

func TestRecordCompletionAdvancesOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)
	before := dto.NextExecutionAt

	executionID, err := f.svc.Execute(context.Background(), dto.ID, "user-1")
	require.NoError(t, err)
	f.exporter.waitForTrigger(t)

	// Failed completion keeps the missed slot.
	err = f.svc.RecordCompletion(context.Background(), dto.ID, executionID, schedule.ExecutionResult{
		Status:       schedule.ExecutionFailed,
		ErrorMessage: "render crashed",
	})
	require.NoError(t, err)
	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	assert.Equal(t, before, stored.NextExecutionAt)
	assert.Equal(t, 1, stored.FailureCount)

	// Successful completion advances the next occurrence.
	executionID, err = f.svc.Execute(context.Background(), dto.ID, "user-1")
	require.NoError(t, err)
	f.exporter.waitForTrigger(t)

	err = f.svc.RecordCompletion(context.Background(), dto.ID, executionID, schedule.ExecutionResult{
		Status:   schedule.ExecutionCompleted,
		Duration: 20 * time.Second,
	})
	require.NoError(t, err)
	stored, _ = f.repo.FindByID(context.Background(), dto.ID)
	assert.Equal(t, time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC), stored.NextExecutionAt)
	assert.Empty(t, stored.CurrentExecutionID)
}

func TestRecordCompletionRejectsMismatchedExecution(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	_, err := f.svc.Execute(context.Background(), dto.ID, "user-1")
	require.NoError(t, err)
	f.exporter.waitForTrigger(t)

	err = f.svc.RecordCompletion(context.Background(), dto.ID, "stale-id", schedule.ExecutionResult{
		Status: schedule.ExecutionCompleted,
	})
	require.Error(t, err)
	assert.Equal(t, schedule.CodeExecutionMismatch, errors.GetCode(err))
}

func TestPauseResumeReanchorsNextExecution(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	require.NoError(t, f.svc.Pause(context.Background(), dto.ID, "user-1"))
	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	assert.True(t, stored.IsPaused())

	// Time moves past the old slot while paused.
	f.now = time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.svc.Resume(context.Background(), dto.ID, "user-1"))

	stored, _ = f.repo.FindByID(context.Background(), dto.ID)
	assert.True(t, stored.IsActive())
	assert.Equal(t, time.Date(2026, 1, 21, 9, 0, 0, 0, time.UTC), stored.NextExecutionAt)
}

func TestSoftAndHardDelete(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	require.NoError(t, f.svc.Delete(context.Background(), dto.ID, "user-1", false))
	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.IsInactive())

	require.NoError(t, f.svc.Delete(context.Background(), dto.ID, "user-1", true))
	stored, _ = f.repo.FindByID(context.Background(), dto.ID)
	assert.Nil(t, stored)
}

func TestUpdateScheduleReanchors(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	cfg := dto.Schedule
	cfg.Hour = 14
	require.NoError(t, f.svc.UpdateSchedule(context.Background(), dto.ID, "user-1", cfg))

	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	// 14:00 today is still ahead of the fixed 10:00 clock.
	assert.Equal(t, time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC), stored.NextExecutionAt)
}

func TestRunDueSweepExecutesDueSchedules(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	// Move the clock past the first occurrence.
	f.now = time.Date(2026, 1, 16, 9, 30, 0, 0, time.UTC)
	require.NoError(t, f.svc.RunDueSweep(context.Background()))
	f.exporter.waitForTrigger(t)

	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	assert.NotEmpty(t, stored.CurrentExecutionID)

	// A second sweep skips the schedule while its execution is in flight.
	require.NoError(t, f.svc.RunDueSweep(context.Background()))
	assert.Len(t, f.exporter.calls, 1)
}

func TestReconcileStaleFailsOutStuckExecutions(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	_, err := f.svc.Execute(context.Background(), dto.ID, "user-1")
	require.NoError(t, err)
	f.exporter.waitForTrigger(t)

	// Two hours later the execution never reported back.
	f.now = f.now.Add(2 * time.Hour)
	require.NoError(t, f.svc.ReconcileStale(context.Background()))

	stored, _ := f.repo.FindByID(context.Background(), dto.ID)
	assert.Empty(t, stored.CurrentExecutionID)
	assert.Equal(t, schedule.ExecutionFailed, stored.LastExecutionStatus)
	assert.Equal(t, 1, stored.FailureCount)
	assert.NotEmpty(t, stored.LastExecutionError)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	dto := f.mustSchedule(t)

	req := validRequest()
	req.Name = "Paused One"
	other, err := f.svc.Schedule(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, f.svc.Pause(context.Background(), other.ID, "user-1"))

	result, err := f.svc.List(context.Background(), core.ListFilter{Status: schedule.StatusActive}, 1, 20, "created_at", core.SortAsc)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, dto.ID, result.Items[0].ID)
	assert.Equal(t, int64(1), result.Total)
}

func TestPreviewDryRun(t *testing.T) {
	f := newFixture(t)

	preview := f.svc.Preview(schedule.ScheduleConfig{
		Frequency: schedule.FrequencyDaily,
		Hour:      9,
		Minute:    0,
		Timezone:  "UTC",
	})
	require.True(t, preview.Valid)
	assert.Len(t, preview.NextOccurrences, 5)

	preview = f.svc.Preview(schedule.ScheduleConfig{Frequency: "SOMETIMES"})
	assert.False(t, preview.Valid)
	assert.NotEmpty(t, preview.Issues)
}
