package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name     string
	schedule string
	fails    int32
	runs     atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= j.fails {
		return errors.New("transient")
	}
	return nil
}

func TestScheduler_AddRemove(t *testing.T) {
	s := New(nil)

	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}))
	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 */5 * * * *"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}), "duplicate name")
	assert.Error(t, s.AddJob(&countingJob{name: "c", schedule: "not a schedule"}))

	assert.Equal(t, []string{"a", "b"}, s.Jobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.Jobs())
}

func TestScheduler_RunJobRetries(t *testing.T) {
	s := New(nil, WithRetries(2, time.Millisecond))
	job := &countingJob{name: "flaky", schedule: "@hourly", fails: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)

	stats := s.Stats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	require.NotNil(t, stats.LastRun)

	_, err = s.RunJob("missing")
	assert.Error(t, err)
}

func TestScheduler_RunJobGivesUp(t *testing.T) {
	s := New(nil, WithRetries(1, time.Millisecond))
	job := &countingJob{name: "broken", schedule: "@hourly", fails: 100}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "transient", result.Error)
	assert.Equal(t, 0.0, s.Stats()["broken"].SuccessRate)
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	s := New(nil)
	job := &countingJob{name: "tick", schedule: "@every 1s"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestJobHistory(t *testing.T) {
	var h JobHistory
	_, ok := h.Last()
	assert.False(t, ok)
	assert.Equal(t, 0.0, h.SuccessRate())

	for i := 0; i < historySize+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historySize)
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-9)
}
