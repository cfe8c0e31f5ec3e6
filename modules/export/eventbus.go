// Package export provides the core.ExportTrigger that hands report
// generation off to whatever consumes the event bus. The engine never renders
// or delivers reports itself; it only announces that an export is wanted.
package export

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/schedule"
)

const EventNameExportRequested = "report.export.requested"

// ExportRequestedEvent is published for each export request. Metadata carries
// correlation data such as the scheduled report id and execution id.
type ExportRequestedEvent struct {
	ID          string                `json:"id"`
	ReportID    string                `json:"report_id"`
	Format      schedule.ReportFormat `json:"format"`
	RequestedBy string                `json:"requested_by"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
	At          time.Time             `json:"at"`
}

func (e ExportRequestedEvent) EventID() string       { return e.ID }
func (e ExportRequestedEvent) EventName() string     { return EventNameExportRequested }
func (e ExportRequestedEvent) OccurredOn() time.Time { return e.At }

// EventBusTrigger publishes export requests on the engine's event bus.
type EventBusTrigger struct {
	bus core.EventBus
	now func() time.Time
}

var _ core.ExportTrigger = (*EventBusTrigger)(nil)

func NewEventBusTrigger(bus core.EventBus) *EventBusTrigger {
	return &EventBusTrigger{bus: bus, now: time.Now}
}

func (t *EventBusTrigger) TriggerExport(ctx context.Context, reportID string, format schedule.ReportFormat, requestedBy string, metadata map[string]string) error {
	return t.bus.Publish(ctx, ExportRequestedEvent{
		ID:          uuid.NewString(),
		ReportID:    reportID,
		Format:      format,
		RequestedBy: requestedBy,
		Metadata:    metadata,
		At:          t.now(),
	})
}
