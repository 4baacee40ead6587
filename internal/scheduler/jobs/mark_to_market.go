package jobs

import (
	"context"

	"github.com/quantbr/indice/internal/index"
	"github.com/quantbr/indice/pkg/logger"
)

// MarkToMarketJob computes the daily point for every index.
type MarkToMarketJob struct {
	service  *index.Service
	schedule string
	logger   *logger.Logger
}

// NewMarkToMarketJob creates the mark-to-market job.
func NewMarkToMarketJob(service *index.Service, schedule string, log *logger.Logger) *MarkToMarketJob {
	return &MarkToMarketJob{
		service:  service,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name.
func (j *MarkToMarketJob) Name() string {
	return index.JobMarkToMarket
}

// Schedule returns the cron schedule expression.
func (j *MarkToMarketJob) Schedule() string {
	return j.schedule
}

// Run computes today's point for every index.
func (j *MarkToMarketJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled mark-to-market")
	return j.service.MarkToMarketAll(ctx)
}
