package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n int) []ItemRequest {
	out := make([]ItemRequest, n)
	for i := range out {
		out[i] = ItemRequest{URL: "https://example.com", Format: "png"}
	}
	return out
}

func TestCreateJob_RejectsTooManyItems(t *testing.T) {
	s := NewStore(StoreConfig{})
	_, err := s.CreateJob(items(51), JobConfig{Parallel: 2, TimeoutSeconds: 10})
	require.Error(t, err)
}

func TestCreateJob_RejectsEmptyItems(t *testing.T) {
	s := NewStore(StoreConfig{})
	_, err := s.CreateJob(nil, JobConfig{Parallel: 2, TimeoutSeconds: 10})
	require.Error(t, err)
}

func TestCreateJob_RejectsBadParallelAndTimeout(t *testing.T) {
	s := NewStore(StoreConfig{})
	_, err := s.CreateJob(items(1), JobConfig{Parallel: 0, TimeoutSeconds: 10})
	require.Error(t, err)

	_, err = s.CreateJob(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 100})
	require.Error(t, err)
}

func TestCreateJob_RejectsPastScheduledTime(t *testing.T) {
	s := NewStore(StoreConfig{})
	past := time.Now().Add(-time.Hour)
	_, err := s.CreateJob(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10, ScheduledTime: &past})
	require.Error(t, err)
}

func TestCreateJob_ImmediateGoesToPendingHeap(t *testing.T) {
	s := NewStore(StoreConfig{})
	job, err := s.CreateJob(items(2), JobConfig{Parallel: 1, TimeoutSeconds: 10, Priority: PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)

	id, ok := s.PopNextPending()
	require.True(t, ok)
	assert.Equal(t, job.JobID, id)
}

func TestCreateJob_ScheduledGoesToScheduledHeap(t *testing.T) {
	s := NewStore(StoreConfig{})
	future := time.Now().Add(time.Hour)
	job, err := s.CreateJob(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10, ScheduledTime: &future})
	require.NoError(t, err)
	assert.Equal(t, JobScheduled, job.Status)

	due := s.PopDueScheduled(time.Now())
	assert.Empty(t, due)

	due = s.PopDueScheduled(future.Add(time.Minute))
	require.Len(t, due, 1)
	assert.Equal(t, job.JobID, due[0].jobID)
}

func TestStore_EvictsTerminalJobsPastTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(StoreConfig{TerminalTTL: time.Minute})
	s.now = func() time.Time { return now }

	job, err := s.CreateJob(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10})
	require.NoError(t, err)
	job.Status = JobCompleted
	job.CompletedAt = now.Add(-2 * time.Minute)

	s.Cleanup()
	_, ok := s.Get(job.JobID)
	assert.False(t, ok)
}

func TestStore_EvictsOldestTerminalJobsOverCapacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(StoreConfig{MaxJobs: 2, TerminalTTL: time.Hour})
	s.now = func() time.Time { return now }

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := s.CreateJob(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10})
		require.NoError(t, err)
		job.Status = JobCompleted
		job.CompletedAt = now.Add(time.Duration(i) * time.Minute)
		ids = append(ids, job.JobID)
	}

	s.Cleanup()
	_, ok := s.Get(ids[0])
	assert.False(t, ok, "oldest completed job should be evicted first")
	_, ok = s.Get(ids[2])
	assert.True(t, ok)
}

func TestStore_RemoveScheduled(t *testing.T) {
	s := NewStore(StoreConfig{})
	future := time.Now().Add(time.Hour)
	job, err := s.CreateJob(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10, ScheduledTime: &future})
	require.NoError(t, err)

	assert.True(t, s.RemoveScheduled(job.JobID))
	due := s.PopDueScheduled(future.Add(time.Minute))
	assert.Empty(t, due)
}
