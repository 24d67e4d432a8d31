package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonexiaolei/tuzhan-data/pkg/logger"
)

// stubJob fails its first N runs, then succeeds
type stubJob struct {
	name     string
	schedule string
	failures int
	runs     int
	started  chan struct{}
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	if j.started != nil {
		close(j.started)
		j.started = nil
	}
	if j.runs <= j.failures {
		return errors.New("boom")
	}
	return nil
}

func testScheduler() *Scheduler {
	return New(logger.NewWithWriter(io.Discard))
}

func TestAddJobDuplicate(t *testing.T) {
	s := testScheduler()

	require.NoError(t, s.AddJob(&stubJob{name: "daily_report", schedule: "@every 1h"}))
	err := s.AddJob(&stubJob{name: "daily_report", schedule: "@every 1h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.Equal(t, []string{"daily_report"}, s.Jobs())
}

func TestAddJobBadSchedule(t *testing.T) {
	s := testScheduler()

	err := s.AddJob(&stubJob{name: "daily_report", schedule: "not-a-cron"})
	require.Error(t, err)
}

func TestRunJobRetriesUntilSuccess(t *testing.T) {
	s := testScheduler()
	s.SetRetry(2, time.Millisecond)

	job := &stubJob{name: "daily_report", schedule: "@every 1h", failures: 2}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, 3, job.runs)

	history, err := s.History("daily_report")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.Empty(t, history.Results[0].Error)
	assert.Equal(t, 1.0, history.SuccessRate())
}

func TestRunJobRecordsExhaustedRetries(t *testing.T) {
	s := testScheduler()
	s.SetRetry(1, time.Millisecond)

	job := &stubJob{name: "daily_report", schedule: "@every 1h", failures: 10}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	// Initial attempt plus one retry
	assert.Equal(t, 2, job.runs)

	history, err := s.History("daily_report")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, "boom", history.Results[0].Error)
	assert.Equal(t, 0.0, history.SuccessRate())
}

func TestRunJobByName(t *testing.T) {
	s := testScheduler()
	s.SetRetry(0, time.Millisecond)

	started := make(chan struct{})
	job := &stubJob{name: "daily_report", schedule: "@every 1h", started: started}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("daily_report"))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dispatched")
	}
}

func TestRunJobUnknown(t *testing.T) {
	s := testScheduler()

	err := s.RunJob("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestHistoryUnknownJob(t *testing.T) {
	s := testScheduler()

	_, err := s.History("nope")
	require.Error(t, err)
}

func TestJobHistoryLatestResults(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 5; i++ {
		h.AddResult(JobResult{JobName: "daily_report", Success: i%2 == 0})
	}

	latest := h.LatestResults(2)
	require.Len(t, latest, 2)
	assert.False(t, latest[0].Success)
	assert.True(t, latest[1].Success)

	// Asking for more than recorded returns everything
	assert.Len(t, h.LatestResults(10), 5)
	assert.Empty(t, h.LatestResults(0))
	assert.InDelta(t, 0.6, h.SuccessRate(), 1e-9)
}

func TestJobHistoryBounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{JobName: "daily_report", Success: true})
	}

	assert.Len(t, h.Results, 100)
}
