package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/pkg/logger"
)

type countingJob struct {
	name string
	runs atomic.Int32
}

func (j *countingJob) Name() string              { return j.name }
func (j *countingJob) Schedule() string          { return "0 0 3 * * *" }
func (j *countingJob) Run(context.Context) error { j.runs.Add(1); return nil }

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(&countingJob{name: "prune"}))
	err := s.AddJob(&countingJob{name: "prune"})
	assert.Error(t, err)
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	err := s.AddJob(&badScheduleJob{})
	assert.Error(t, err)
}

type badScheduleJob struct{}

func (j *badScheduleJob) Name() string              { return "bad" }
func (j *badScheduleJob) Schedule() string          { return "not a schedule" }
func (j *badScheduleJob) Run(context.Context) error { return nil }

func TestRunJobExecutesImmediately(t *testing.T) {
	s := New(logger.NewNop())
	job := &countingJob{name: "prune"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("prune"))

	deadline := time.After(2 * time.Second)
	for {
		if results := s.LastResults(); len(results) > 0 {
			require.Contains(t, results, "prune")
			assert.True(t, results["prune"].Success)
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunJobUnknownName(t *testing.T) {
	s := New(logger.NewNop())
	assert.Error(t, s.RunJob("missing"))
}
