package handlers

import (
	"net/http"

	"github.com/quantbr/indice/internal/scheduler"
	"github.com/quantbr/indice/pkg/logger"
)

// JobHandler exposes scheduler job statistics.
type JobHandler struct {
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(sched *scheduler.Scheduler, log *logger.Logger) *JobHandler {
	return &JobHandler{
		scheduler: sched,
		logger:    log,
	}
}

// List returns run statistics for every registered job.
// GET /api/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}
