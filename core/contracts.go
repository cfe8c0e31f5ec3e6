package core

import (
	"context"
	"time"

	"github.com/Deepreo/reportsched/schedule"
)

// SortOrder for paginated listing.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ListFilter narrows a paginated listing. Zero values mean "no constraint".
type ListFilter struct {
	Status         schedule.Status
	CreatedBy      string
	OrganizationID string
	ReportID       string
}

// Page is one page of a listing plus the unpaginated total.
type Page struct {
	Items []*schedule.ScheduledReport
	Total int64
}

// NameScope scopes a name-uniqueness check to an owner or organization.
type NameScope struct {
	CreatedBy      string
	OrganizationID string
}

// Repository is the persistence boundary required by the engine. Save has
// upsert semantics; the engine performs load-mutate-save cycles and holds a
// Locker lease around execution mutations instead of relying on store-level
// locking.
// FindByID returns (nil, nil) when no schedule with that id exists; the
// orchestration layer maps that to a not-found error.
type Repository interface {
	FindByID(ctx context.Context, id string) (*schedule.ScheduledReport, error)
	Save(ctx context.Context, sr *schedule.ScheduledReport) error
	FindDue(ctx context.Context, asOf time.Time) ([]*schedule.ScheduledReport, error)
	FindStaleExecutions(ctx context.Context, startedBefore time.Time) ([]*schedule.ScheduledReport, error)
	FindWithPagination(ctx context.Context, filter ListFilter, page, pageSize int64, sortField string, order SortOrder) (*Page, error)
	PermanentlyDelete(ctx context.Context, id string) error
	ExistsByName(ctx context.Context, name string, scope NameScope) (bool, error)
}

// ReportInfo is what the engine needs to know about the report a schedule
// points at. Scheduling is only legal for published, non-archived reports.
type ReportInfo struct {
	ID        string
	Published bool
	Archived  bool
}

// Schedulable reports whether a schedule may legally point at this report.
func (r ReportInfo) Schedulable() bool {
	return r.Published && !r.Archived
}

// ReportDirectory looks up and validates the reports schedules point at. The
// engine never owns or renders reports.
type ReportDirectory interface {
	FindReport(ctx context.Context, reportID string) (ReportInfo, error)
}

// Decision is an access-control verdict.
type Decision struct {
	Allowed bool
	Reason  string
}

// AccessDecider decides whether a user may perform an action on a scheduled
// report. Only the decision contract is consumed here; how it is computed
// (roles, grants, ownership) is up to the implementation.
type AccessDecider interface {
	Authorize(ctx context.Context, userID, action string, sr *schedule.ScheduledReport) (Decision, error)
}

// Actions checked through the AccessDecider.
const (
	ActionRead    = "scheduled_report:read"
	ActionUpdate  = "scheduled_report:update"
	ActionPause   = "scheduled_report:pause"
	ActionResume  = "scheduled_report:resume"
	ActionExecute = "scheduled_report:execute"
	ActionDelete  = "scheduled_report:delete"
)

// ExportTrigger starts report generation and delivery out-of-band. The engine
// records that an execution was requested and later learns its outcome via
// RecordCompletion; it never renders or transmits the report itself.
type ExportTrigger interface {
	TriggerExport(ctx context.Context, reportID string, format schedule.ReportFormat, requestedBy string, metadata map[string]string) error
}

// ReleaseFunc releases an acquired lease. Safe to call once.
type ReleaseFunc func(ctx context.Context) error

// Locker is the exclusive-section abstraction the orchestration layer acquires
// around execute and record-completion for one schedule, so two concurrent
// load-mutate-save cycles cannot interleave.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}
