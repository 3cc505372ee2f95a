package batch

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shotpool/shotpool/internal/apierrors"
)

// StoreConfig tunes the job store's capacity and terminal-job retention.
type StoreConfig struct {
	MaxJobs         int
	TerminalTTL     time.Duration
	CleanupInterval time.Duration
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.TerminalTTL <= 0 {
		c.TerminalTTL = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
	return c
}

// Store owns every BatchJob plus the priority and scheduled heaps that feed
// the engine's submission and scheduler paths (spec §4.9, §3.2).
type Store struct {
	mu sync.Mutex

	cfg  StoreConfig
	jobs map[string]*BatchJob

	pending   priorityHeap
	scheduled scheduledHeap

	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{cfg: cfg.withDefaults(), jobs: make(map[string]*BatchJob), now: time.Now}
	heap.Init(&s.pending)
	heap.Init(&s.scheduled)
	return s
}

// ValidateItems enforces the 1..50 item-count bound.
func ValidateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return apierrors.New(apierrors.KindValidation, "at least one item is required")
	}
	if len(items) > 50 {
		return apierrors.New(apierrors.KindValidation, "at most 50 items are allowed per batch")
	}
	for i, it := range items {
		if it.URL == "" {
			return apierrors.New(apierrors.KindValidation, fmt.Sprintf("item %d: url is required", i))
		}
	}
	return nil
}

// ValidateConfig enforces spec §4.9's submission-time config bounds.
func ValidateConfig(cfg JobConfig, now time.Time) error {
	if cfg.Parallel < 1 || cfg.Parallel > 10 {
		return apierrors.New(apierrors.KindValidation, "parallel must be between 1 and 10")
	}
	if cfg.TimeoutSeconds < 5 || cfg.TimeoutSeconds > 60 {
		return apierrors.New(apierrors.KindValidation, "timeout must be between 5 and 60 seconds")
	}
	switch cfg.Priority {
	case PriorityHigh, PriorityNormal, PriorityLow, "":
	default:
		return apierrors.New(apierrors.KindValidation, "invalid priority")
	}
	switch cfg.Recurrence {
	case RecurrenceNone, RecurrenceHourly, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, "":
	case RecurrenceCustom:
		return apierrors.New(apierrors.KindValidation, "custom cron recurrence is not implemented")
	default:
		return apierrors.New(apierrors.KindValidation, "invalid recurrence pattern")
	}
	if cfg.ScheduledTime != nil && !cfg.ScheduledTime.After(now) {
		return apierrors.New(apierrors.KindValidation, "scheduled_time must be in the future")
	}
	return nil
}

// CreateJob validates and stores a new BatchJob, pushing it to the
// appropriate heap (scheduled if ScheduledTime is set, else pending).
func (s *Store) CreateJob(items []ItemRequest, cfg JobConfig) (*BatchJob, error) {
	now := s.now()
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	if cfg.Priority == "" {
		cfg.Priority = PriorityNormal
	}
	if err := ValidateConfig(cfg, now); err != nil {
		return nil, err
	}

	job := &BatchJob{
		JobID:     uuid.NewString(),
		Items:     make(map[string]*JobItem, len(items)),
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, it := range items {
		id := uuid.NewString()
		job.Items[id] = &JobItem{ID: id, Request: it, Status: ItemPending}
		job.Order = append(job.Order, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	if cfg.ScheduledTime != nil {
		job.Status = JobScheduled
		heap.Push(&s.scheduled, scheduledEntry{fireAt: *cfg.ScheduledTime, jobID: job.JobID})
	} else {
		job.Status = JobPending
		heap.Push(&s.pending, priorityEntry{rank: cfg.Priority.rank(), enqueued: now, jobID: job.JobID})
	}
	s.evictIfOverCapacityLocked()
	return job, nil
}

// Get returns the job by id.
func (s *Store) Get(jobID string) (*BatchJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	return j, ok
}

// Put stores or overwrites a job (used by the scheduler for synthesized
// recurring jobs).
func (s *Store) Put(job *BatchJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
}

// PushScheduled pushes jobID onto the scheduled heap for fireAt.
func (s *Store) PushScheduled(jobID string, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.scheduled, scheduledEntry{fireAt: fireAt, jobID: jobID})
}

// PushPending pushes jobID onto the pending priority heap.
func (s *Store) PushPending(jobID string, priority Priority, enqueuedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.pending, priorityEntry{rank: priority.rank(), enqueued: enqueuedAt, jobID: jobID})
}

// PopDueScheduled pops and returns every scheduled entry with fireAt <= now.
func (s *Store) PopDueScheduled(now time.Time) []scheduledEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []scheduledEntry
	for s.scheduled.Len() > 0 && !s.scheduled[0].fireAt.After(now) {
		due = append(due, heap.Pop(&s.scheduled).(scheduledEntry))
	}
	return due
}

// PopNextPending pops the highest-priority pending job, or ok=false if empty.
func (s *Store) PopNextPending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() == 0 {
		return "", false
	}
	entry := heap.Pop(&s.pending).(priorityEntry)
	return entry.jobID, true
}

// RemoveScheduled deletes jobID from the scheduled heap (used by Cancel when
// a future job is simply dropped).
func (s *Store) RemoveScheduled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.scheduled {
		if e.jobID == jobID {
			heap.Remove(&s.scheduled, i)
			return true
		}
	}
	return false
}

// evictIfOverCapacityLocked removes the oldest terminal jobs past
// TerminalTTL, and if still over MaxJobs, the oldest terminal jobs overall.
// Caller must hold s.mu.
func (s *Store) evictIfOverCapacityLocked() {
	now := s.now()
	for id, job := range s.jobs {
		job.mu.Lock()
		terminal := job.Status.IsTerminal()
		completedAt := job.CompletedAt
		job.mu.Unlock()
		if terminal && now.Sub(completedAt) > s.cfg.TerminalTTL {
			delete(s.jobs, id)
		}
	}
	if s.cfg.MaxJobs <= 0 || len(s.jobs) <= s.cfg.MaxJobs {
		return
	}
	type kv struct {
		id        string
		completed time.Time
	}
	var terminal []kv
	for id, job := range s.jobs {
		job.mu.Lock()
		isTerminal := job.Status.IsTerminal()
		completedAt := job.CompletedAt
		job.mu.Unlock()
		if isTerminal {
			terminal = append(terminal, kv{id, completedAt})
		}
	}
	for len(s.jobs) > s.cfg.MaxJobs && len(terminal) > 0 {
		oldestIdx := 0
		for i := range terminal {
			if terminal[i].completed.Before(terminal[oldestIdx].completed) {
				oldestIdx = i
			}
		}
		delete(s.jobs, terminal[oldestIdx].id)
		terminal = append(terminal[:oldestIdx], terminal[oldestIdx+1:]...)
	}
}

// Cleanup runs one opportunistic TTL-eviction pass (spec §4.9).
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictIfOverCapacityLocked()
}

// RunCleanupLoop runs Cleanup every CleanupInterval until stop is closed.
func (s *Store) RunCleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
