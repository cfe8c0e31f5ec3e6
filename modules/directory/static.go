// Package directory provides an in-memory core.ReportDirectory for
// deployments where the report catalog lives in the same process, and as the
// test double used throughout the engine's tests.
package directory

import (
	"context"
	"sync"

	"github.com/Deepreo/reportsched/core"
	"github.com/Deepreo/reportsched/errors"
)

// Static holds a fixed catalog of reports keyed by id.
type Static struct {
	reports map[string]core.ReportInfo
	mutex   sync.RWMutex
}

var _ core.ReportDirectory = (*Static)(nil)

func NewStatic() *Static {
	return &Static{reports: make(map[string]core.ReportInfo)}
}

// Register adds or replaces a report in the catalog.
func (d *Static) Register(info core.ReportInfo) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.reports[info.ID] = info
}

// Remove deletes a report from the catalog.
func (d *Static) Remove(reportID string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.reports, reportID)
}

func (d *Static) FindReport(ctx context.Context, reportID string) (core.ReportInfo, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	info, ok := d.reports[reportID]
	if !ok {
		return core.ReportInfo{}, errors.NotFoundError(errors.New("report not found")).WithMetadata("report_id", reportID)
	}
	return info, nil
}
