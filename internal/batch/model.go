// Package batch implements the batch screenshot engine (spec §4.9): job
// creation/validation, priority/scheduled queuing, recurrence, a bounded
// worker pool per job, and webhook delivery.
package batch

import (
	"sync"
	"time"
)

// ItemStatus is a JobItem's lifecycle state.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemSuccess    ItemStatus = "success"
	ItemError      ItemStatus = "error"
)

// JobStatus is a BatchJob's lifecycle state.
type JobStatus string

const (
	JobPending             JobStatus = "pending"
	JobScheduled           JobStatus = "scheduled"
	JobProcessing          JobStatus = "processing"
	JobCompleted           JobStatus = "completed"
	JobCompletedWithErrors JobStatus = "completed_with_errors"
	JobFailed              JobStatus = "failed"
	JobCancelled           JobStatus = "cancelled"
)

// IsTerminal reports whether s is one of the job's terminal states.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobCompletedWithErrors, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Priority is a submission's scheduling priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// rank returns the heap ordering rank for a priority (lower sorts first).
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// RecurrencePattern is the job's repeat schedule.
type RecurrencePattern string

const (
	RecurrenceNone    RecurrencePattern = "none"
	RecurrenceHourly  RecurrencePattern = "hourly"
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceCustom  RecurrencePattern = "custom"
)

// ItemRequest is the validated input for one screenshot within a batch.
type ItemRequest struct {
	URL      string
	Width    int
	Height   int
	Format   string
	UseCache bool
}

// ItemResult is populated once an item finishes successfully.
type ItemResult struct {
	URL    string
	Cached bool
}

// JobItem is one screenshot request inside a BatchJob.
type JobItem struct {
	ID        string
	Request   ItemRequest
	Status    ItemStatus
	Result    *ItemResult
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
}

// ProcessingTime returns how long the item ran, zero if not yet started.
func (i *JobItem) ProcessingTime() time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	end := i.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(i.StartedAt)
}

// WebhookConfig describes where/how to POST terminal job results.
type WebhookConfig struct {
	URL  string
	Auth string // optional bearer/Authorization header value
}

// JobConfig holds every submission-time tunable (spec §3.1 BatchJob.config).
type JobConfig struct {
	Parallel           int
	TimeoutSeconds     int
	FailFast           bool
	UseCache           bool
	Webhook            *WebhookConfig
	Priority           Priority
	ScheduledTime      *time.Time
	Recurrence         RecurrencePattern
	RecurrenceInterval int
	RecurrenceCount    int // 0 = unlimited
	CronExpr           string
	UserID             string
}

// BatchJob is the aggregate root for one batch submission (spec §3.1).
type BatchJob struct {
	JobID  string
	Items  map[string]*JobItem
	Order  []string // insertion order, for stable result output
	Config JobConfig

	// mu guards Status/UpdatedAt/CompletedAt, which RecomputeStatus may write
	// concurrently from multiple per-item worker goroutines.
	mu          sync.Mutex
	Status      JobStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
	StartTime   time.Time

	NextScheduledTime *time.Time
	ParentJobID       string

	cancel func()
}

// Item fields are mutated by one worker goroutine per item but read by every
// sibling's RecomputeStatus call, so every access goes through the job lock.

func (j *BatchJob) setItemProcessing(item *JobItem, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	item.Status = ItemProcessing
	item.StartedAt = now
}

func (j *BatchJob) setItemSuccess(item *JobItem, result *ItemResult, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	item.Status = ItemSuccess
	item.Result = result
	item.EndedAt = now
}

func (j *BatchJob) setItemError(item *JobItem, message string, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	item.Status = ItemError
	item.Error = message
	item.EndedAt = now
}

func (j *BatchJob) itemStatus(item *JobItem) ItemStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return item.Status
}

// GetStatus returns the job's current status under lock, for callers (such
// as the admin HTTP surface) observing a job from outside the engine.
func (j *BatchJob) GetStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// RecomputeStatus derives the job's aggregate status from its items'
// statuses, applying the invariants of spec §3.1.
func (j *BatchJob) RecomputeStatus(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobCancelled {
		return
	}
	total, done, failed, succeeded := 0, 0, 0, 0
	for _, it := range j.Items {
		total++
		switch it.Status {
		case ItemSuccess:
			done++
			succeeded++
		case ItemError:
			done++
			failed++
		}
	}
	j.UpdatedAt = now

	if done < total {
		j.Status = JobProcessing
		return
	}
	j.CompletedAt = now
	switch {
	case failed == 0:
		j.Status = JobCompleted
	case succeeded == 0:
		j.Status = JobFailed
	default:
		j.Status = JobCompletedWithErrors
	}
}
