package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbr/indice/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	runs     int
	err      error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func newTestScheduler() *Scheduler {
	s := New(logger.NewNop())
	s.maxRetries = 1
	s.retryDelay = time.Millisecond
	return s
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	job := &fakeJob{name: "mark_to_market", schedule: "0 30 18 * * MON-FRI"}
	require.NoError(t, s.AddJob(job))

	assert.Contains(t, s.GetAllJobs(), "mark_to_market")
}

func TestAddJob_DuplicateRejected(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "job", schedule: "0 0 12 * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "job", schedule: "0 0 13 * * *"}))
}

func TestAddJob_InvalidScheduleRejected(t *testing.T) {
	s := newTestScheduler()

	assert.Error(t, s.AddJob(&fakeJob{name: "job", schedule: "not a cron expression"}))
}

func TestRunJobSync_RecordsHistory(t *testing.T) {
	s := newTestScheduler()

	job := &fakeJob{name: "job", schedule: "0 0 12 * * *"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJobSync("job"))

	assert.Equal(t, 1, job.runs)

	stats := s.GetJobStats()
	require.Contains(t, stats, "job")
	assert.Equal(t, 1, stats["job"].TotalRuns)
	assert.Equal(t, 1.0, stats["job"].SuccessRate)
	require.NotNil(t, stats["job"].LastResultOK)
	assert.True(t, *stats["job"].LastResultOK)
}

func TestRunJobSync_RetriesOnFailure(t *testing.T) {
	s := newTestScheduler()

	job := &fakeJob{name: "job", schedule: "0 0 12 * * *", err: errors.New("boom")}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJobSync("job"))

	// Initial attempt plus one retry.
	assert.Equal(t, 2, job.runs)

	stats := s.GetJobStats()
	assert.Equal(t, 0.0, stats["job"].SuccessRate)
	require.NotNil(t, stats["job"].LastResultOK)
	assert.False(t, *stats["job"].LastResultOK)
}

func TestRunJob_UnknownJob(t *testing.T) {
	s := newTestScheduler()

	assert.Error(t, s.RunJob("missing"))
	assert.Error(t, s.RunJobSync("missing"))
}

func TestJobHistory_CapAndSuccessRate(t *testing.T) {
	h := &JobHistory{}

	assert.Nil(t, h.LatestResult())
	assert.Zero(t, h.SuccessRate())

	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{
			JobName: fmt.Sprintf("run-%d", i),
			Success: i%2 == 0,
		})
	}

	assert.Len(t, h.Results, 100)
	assert.Equal(t, "run-149", h.LatestResult().JobName)
	assert.InDelta(t, 0.5, h.SuccessRate(), 0.01)
}
