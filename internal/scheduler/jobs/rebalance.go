package jobs

import (
	"context"

	"github.com/quantbr/indice/internal/index"
	"github.com/quantbr/indice/pkg/logger"
)

// RebalanceJob re-screens every index and applies membership changes. It is
// scheduled after MarkToMarketJob on the same day, so the day's point always
// used the pre-rebalance membership.
type RebalanceJob struct {
	service  *index.Service
	schedule string
	logger   *logger.Logger
}

// NewRebalanceJob creates the screening/rebalance job.
func NewRebalanceJob(service *index.Service, schedule string, log *logger.Logger) *RebalanceJob {
	return &RebalanceJob{
		service:  service,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name.
func (j *RebalanceJob) Name() string {
	return index.JobRebalance
}

// Schedule returns the cron schedule expression.
func (j *RebalanceJob) Schedule() string {
	return j.schedule
}

// Run re-screens and rebalances every index.
func (j *RebalanceJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled screening/rebalance")
	return j.service.RebalanceAll(ctx)
}
