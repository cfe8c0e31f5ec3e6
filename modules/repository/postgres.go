// Package repository provides the Postgres implementation of the engine's
// persistence boundary.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/schedule"
)

type Config struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Postgres is a pgxpool-backed core.Repository.
type Postgres struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *Config) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// NewWithPool wraps an existing pool, e.g. one shared with other components.
func NewWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (r *Postgres) Close() {
	r.pool.Close()
}

// HealthCheck returns nil if the database is reachable.
func (r *Postgres) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	return r.pool.Ping(ctx)
}

const scheduledReportColumns = `
	id, name, description, report_id,
	frequency, day_of_week, day_of_month, hour, minute, timezone,
	delivery_method, recipients, webhook_url, format, include_charts,
	status, created_by, organization_id, created_at, updated_at,
	last_executed_at, next_execution_at, execution_count, failure_count,
	current_execution_id, execution_started_at, last_execution_status,
	last_execution_duration_ms, last_execution_records,
	last_execution_file_size, last_execution_error`

func (r *Postgres) FindByID(ctx context.Context, id string) (*schedule.ScheduledReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT`+scheduledReportColumns+` FROM scheduled_reports WHERE id = $1`, id)
	sr, err := scanScheduledReport(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return sr, err
}

func (r *Postgres) Save(ctx context.Context, sr *schedule.ScheduledReport) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_reports (`+scheduledReportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
		        $27, $28, $29, $30, $31)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			frequency = EXCLUDED.frequency,
			day_of_week = EXCLUDED.day_of_week,
			day_of_month = EXCLUDED.day_of_month,
			hour = EXCLUDED.hour,
			minute = EXCLUDED.minute,
			timezone = EXCLUDED.timezone,
			delivery_method = EXCLUDED.delivery_method,
			recipients = EXCLUDED.recipients,
			webhook_url = EXCLUDED.webhook_url,
			format = EXCLUDED.format,
			include_charts = EXCLUDED.include_charts,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			last_executed_at = EXCLUDED.last_executed_at,
			next_execution_at = EXCLUDED.next_execution_at,
			execution_count = EXCLUDED.execution_count,
			failure_count = EXCLUDED.failure_count,
			current_execution_id = EXCLUDED.current_execution_id,
			execution_started_at = EXCLUDED.execution_started_at,
			last_execution_status = EXCLUDED.last_execution_status,
			last_execution_duration_ms = EXCLUDED.last_execution_duration_ms,
			last_execution_records = EXCLUDED.last_execution_records,
			last_execution_file_size = EXCLUDED.last_execution_file_size,
			last_execution_error = EXCLUDED.last_execution_error`,
		sr.ID, sr.Name, sr.Description, sr.ReportID,
		string(sr.Schedule.Frequency), sr.Schedule.DayOfWeek, sr.Schedule.DayOfMonth,
		sr.Schedule.Hour, sr.Schedule.Minute, sr.Schedule.Timezone,
		string(sr.Delivery.Method), sr.Delivery.Recipients, sr.Delivery.WebhookURL,
		string(sr.Delivery.Format), sr.Delivery.IncludeCharts,
		string(sr.Status), sr.CreatedBy, sr.OrganizationID, sr.CreatedAt, sr.UpdatedAt,
		sr.LastExecutedAt, sr.NextExecutionAt, sr.ExecutionCount, sr.FailureCount,
		sr.CurrentExecutionID, sr.ExecutionStartedAt, string(sr.LastExecutionStatus),
		sr.LastExecutionDuration.Milliseconds(), sr.LastExecutionRecords,
		sr.LastExecutionFileSize, sr.LastExecutionError)
	if err != nil {
		return fmt.Errorf("failed to save scheduled report %s: %w", sr.ID, err)
	}
	return nil
}

func (r *Postgres) FindDue(ctx context.Context, asOf time.Time) ([]*schedule.ScheduledReport, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+scheduledReportColumns+`
		 FROM scheduled_reports
		 WHERE status = $1 AND next_execution_at <= $2
		 ORDER BY next_execution_at`,
		string(schedule.StatusActive), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reports: %w", err)
	}
	defer rows.Close()
	return collectScheduledReports(rows)
}

func (r *Postgres) FindStaleExecutions(ctx context.Context, startedBefore time.Time) ([]*schedule.ScheduledReport, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+scheduledReportColumns+`
		 FROM scheduled_reports
		 WHERE current_execution_id <> '' AND execution_started_at <= $1
		 ORDER BY execution_started_at`,
		startedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale executions: %w", err)
	}
	defer rows.Close()
	return collectScheduledReports(rows)
}

// Sortable columns for FindWithPagination. Anything else falls back to
// created_at to keep the sort field out of the SQL text.
var sortColumns = map[string]string{
	"name":              "name",
	"status":            "status",
	"created_at":        "created_at",
	"updated_at":        "updated_at",
	"next_execution_at": "next_execution_at",
	"execution_count":   "execution_count",
}

func (r *Postgres) FindWithPagination(ctx context.Context, filter core.ListFilter, page, pageSize int64, sortField string, order core.SortOrder) (*core.Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	where := " WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where += " AND status = " + arg(string(filter.Status))
	}
	if filter.CreatedBy != "" {
		where += " AND created_by = " + arg(filter.CreatedBy)
	}
	if filter.OrganizationID != "" {
		where += " AND organization_id = " + arg(filter.OrganizationID)
	}
	if filter.ReportID != "" {
		where += " AND report_id = " + arg(filter.ReportID)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM scheduled_reports"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count scheduled reports: %w", err)
	}

	column, ok := sortColumns[sortField]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if order == core.SortDesc {
		direction = "DESC"
	}

	query := "SELECT" + scheduledReportColumns + " FROM scheduled_reports" + where +
		fmt.Sprintf(" ORDER BY %s %s LIMIT %s OFFSET %s",
			column, direction, arg(pageSize), arg((page-1)*pageSize))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled reports: %w", err)
	}
	defer rows.Close()

	items, err := collectScheduledReports(rows)
	if err != nil {
		return nil, err
	}
	return &core.Page{Items: items, Total: total}, nil
}

func (r *Postgres) PermanentlyDelete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM scheduled_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled report %s: %w", id, err)
	}
	return nil
}

func (r *Postgres) ExistsByName(ctx context.Context, name string, scope core.NameScope) (bool, error) {
	var query string
	var args []any
	if scope.OrganizationID != "" {
		query = `SELECT EXISTS(SELECT 1 FROM scheduled_reports WHERE name = $1 AND organization_id = $2)`
		args = []any{name, scope.OrganizationID}
	} else {
		query = `SELECT EXISTS(SELECT 1 FROM scheduled_reports WHERE name = $1 AND created_by = $2)`
		args = []any{name, scope.CreatedBy}
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check name existence: %w", err)
	}
	return exists, nil
}

func scanScheduledReport(row pgx.Row) (*schedule.ScheduledReport, error) {
	var (
		sr         schedule.ScheduledReport
		durationMs int64
		lastStatus string
	)
	err := row.Scan(
		&sr.ID, &sr.Name, &sr.Description, &sr.ReportID,
		&sr.Schedule.Frequency, &sr.Schedule.DayOfWeek, &sr.Schedule.DayOfMonth,
		&sr.Schedule.Hour, &sr.Schedule.Minute, &sr.Schedule.Timezone,
		&sr.Delivery.Method, &sr.Delivery.Recipients, &sr.Delivery.WebhookURL,
		&sr.Delivery.Format, &sr.Delivery.IncludeCharts,
		&sr.Status, &sr.CreatedBy, &sr.OrganizationID, &sr.CreatedAt, &sr.UpdatedAt,
		&sr.LastExecutedAt, &sr.NextExecutionAt, &sr.ExecutionCount, &sr.FailureCount,
		&sr.CurrentExecutionID, &sr.ExecutionStartedAt, &lastStatus,
		&durationMs, &sr.LastExecutionRecords,
		&sr.LastExecutionFileSize, &sr.LastExecutionError)
	if err != nil {
		return nil, err
	}
	sr.LastExecutionStatus = schedule.ExecutionStatus(lastStatus)
	sr.LastExecutionDuration = time.Duration(durationMs) * time.Millisecond
	return &sr, nil
}

func collectScheduledReports(rows pgx.Rows) ([]*schedule.ScheduledReport, error) {
	var items []*schedule.ScheduledReport
	for rows.Next() {
		sr, err := scanScheduledReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled report: %w", err)
		}
		items = append(items, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scheduled reports: %w", err)
	}
	return items, nil
}
