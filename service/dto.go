package service

import (
	"time"

	"github.com/Deepreo/reportsched/schedule"
)

// ScheduledReportDTO is the read model handed to callers of the engine. It is
// a plain snapshot; mutating it has no effect on the stored schedule.
type ScheduledReportDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ReportID    string `json:"report_id"`

	Schedule schedule.ScheduleConfig `json:"schedule_config"`
	Delivery schedule.DeliveryConfig `json:"delivery_config"`
	Status   schedule.Status         `json:"status"`

	CreatedBy      string `json:"created_by"`
	OrganizationID string `json:"organization_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	NextExecutionAt time.Time  `json:"next_execution_at"`
	ExecutionCount  int        `json:"execution_count"`
	FailureCount    int        `json:"failure_count"`
	SuccessRate     float64    `json:"success_rate"`

	CurrentExecutionID  string                   `json:"current_execution_id,omitempty"`
	ExecutionStartedAt  *time.Time               `json:"execution_started_at,omitempty"`
	LastExecutionStatus schedule.ExecutionStatus `json:"last_execution_status,omitempty"`
	LastExecutionError  string                   `json:"last_execution_error,omitempty"`
}

func toDTO(sr *schedule.ScheduledReport) *ScheduledReportDTO {
	return &ScheduledReportDTO{
		ID:                  sr.ID,
		Name:                sr.Name,
		Description:         sr.Description,
		ReportID:            sr.ReportID,
		Schedule:            sr.Schedule,
		Delivery:            sr.Delivery,
		Status:              sr.Status,
		CreatedBy:           sr.CreatedBy,
		OrganizationID:      sr.OrganizationID,
		CreatedAt:           sr.CreatedAt,
		UpdatedAt:           sr.UpdatedAt,
		LastExecutedAt:      sr.LastExecutedAt,
		NextExecutionAt:     sr.NextExecutionAt,
		ExecutionCount:      sr.ExecutionCount,
		FailureCount:        sr.FailureCount,
		SuccessRate:         sr.SuccessRate(),
		CurrentExecutionID:  sr.CurrentExecutionID,
		ExecutionStartedAt:  sr.ExecutionStartedAt,
		LastExecutionStatus: sr.LastExecutionStatus,
		LastExecutionError:  sr.LastExecutionError,
	}
}

func toDTOs(srs []*schedule.ScheduledReport) []*ScheduledReportDTO {
	dtos := make([]*ScheduledReportDTO, 0, len(srs))
	for _, sr := range srs {
		dtos = append(dtos, toDTO(sr))
	}
	return dtos
}

// ListResult is one page of scheduled reports plus the unpaginated total.
type ListResult struct {
	Items []*ScheduledReportDTO `json:"items"`
	Total int64                 `json:"total"`
}

// ScheduleRequest carries everything needed to create a new scheduled report.
type ScheduleRequest struct {
	Name           string                  `json:"name"`
	Description    string                  `json:"description,omitempty"`
	ReportID       string                  `json:"report_id"`
	Schedule       schedule.ScheduleConfig `json:"schedule_config"`
	Delivery       schedule.DeliveryConfig `json:"delivery_config"`
	CreatedBy      string                  `json:"created_by"`
	OrganizationID string                  `json:"organization_id,omitempty"`
}
