package jobs

import (
	"context"
	"time"

	"github.com/emrgen/impact/internal/service"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 5 * time.Minute

// OrphanSweepTask removes impacts, evidence and history rows left behind by
// failed analyses.
type OrphanSweepTask struct {
	maintenance *service.MaintenanceService
	schedule    string
}

func NewOrphanSweepTask(maintenance *service.MaintenanceService, schedule string) *OrphanSweepTask {
	return &OrphanSweepTask{maintenance: maintenance, schedule: schedule}
}

func (o *OrphanSweepTask) Schedule() string {
	return o.schedule
}

func (o *OrphanSweepTask) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	report, err := o.maintenance.SweepOrphans(ctx)
	if err != nil {
		logrus.Errorf("orphan sweep failed: %v", err)
		return
	}
	logrus.Debugf("orphan sweep done, removed %d rows", report.Total())
}
