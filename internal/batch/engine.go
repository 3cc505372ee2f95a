package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shotpool/shotpool/internal/apierrors"
)

// Capturer is the subset of pipeline.Pipeline the engine drives items through.
type Capturer interface {
	Capture(ctx context.Context, rawURL string, width, height int, format string, useCache bool) (string, error)
}

// Mirror persists a best-effort snapshot of a job's terminal state so it
// survives a screenshotd restart. It never gates engine progress: a Mirror
// error is logged and otherwise ignored.
type Mirror interface {
	Save(ctx context.Context, jobID, status string, snapshot []byte, updatedAt time.Time) error
}

// EngineConfig tunes the scheduler's polling cadence, the webhook HTTP client
// and the optional durable mirror. Per-item retry backoffs are fixed in the
// engine, not configured here.
type EngineConfig struct {
	ScanInterval time.Duration
	WebhookHTTP  *http.Client
	Mirror       Mirror // optional durable mirror (internal/storage/sql/repository.Store)
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.ScanInterval <= 0 {
		c.ScanInterval = time.Second
	}
	if c.WebhookHTTP == nil {
		c.WebhookHTTP = &http.Client{Timeout: 10 * time.Second}
	}
	return c
}

// Engine runs the batch scheduler and per-job workers (spec §4.9).
type Engine struct {
	cfg      EngineConfig
	store    *Store
	capturer Capturer
	log      *slog.Logger

	wg  sync.WaitGroup
	now func() time.Time
}

// NewEngine wires a scheduler around store and capturer.
func NewEngine(cfg EngineConfig, store *Store, capturer Capturer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg.withDefaults(), store: store, capturer: capturer, log: log, now: time.Now}
}

// Submit validates and enqueues a new batch job.
func (e *Engine) Submit(items []ItemRequest, cfg JobConfig) (*BatchJob, error) {
	return e.store.CreateJob(items, cfg)
}

// Get returns a job snapshot by id.
func (e *Engine) Get(jobID string) (*BatchJob, error) {
	job, ok := e.store.Get(jobID)
	if !ok {
		return nil, apierrors.ErrJobNotFound
	}
	return job, nil
}

// Cancel stops a pending/processing job, or drops a not-yet-due scheduled one.
func (e *Engine) Cancel(jobID string) error {
	job, ok := e.store.Get(jobID)
	if !ok {
		return apierrors.ErrJobNotFound
	}
	status := job.GetStatus()
	if status.IsTerminal() {
		return nil
	}
	if status == JobScheduled {
		e.store.RemoveScheduled(jobID)
	}
	if job.cancel != nil {
		job.cancel()
	}
	now := e.now()
	for _, it := range job.Items {
		if s := job.itemStatus(it); s == ItemPending || s == ItemProcessing {
			job.setItemError(it, "Job cancelled", now)
		}
	}
	job.mu.Lock()
	job.Status = JobCancelled
	job.CompletedAt = now
	job.UpdatedAt = now
	job.mu.Unlock()
	return nil
}

// Run drives the scheduler loop until ctx is cancelled or stop is closed.
func (e *Engine) Run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return
		case <-stop:
			e.wg.Wait()
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	now := e.now()
	for _, due := range e.store.PopDueScheduled(now) {
		job, ok := e.store.Get(due.jobID)
		if !ok {
			continue
		}
		job.mu.Lock()
		job.Status = JobPending
		job.UpdatedAt = now
		job.mu.Unlock()
		e.store.PushPending(job.JobID, job.Config.Priority, now)
	}

	for {
		jobID, ok := e.store.PopNextPending()
		if !ok {
			return
		}
		job, ok := e.store.Get(jobID)
		if !ok {
			continue
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runJob(ctx, job)
		}()
	}
}

func (e *Engine) runJob(ctx context.Context, job *BatchJob) {
	now := e.now()
	job.mu.Lock()
	job.Status = JobProcessing
	job.StartTime = now
	job.UpdatedAt = now
	job.mu.Unlock()

	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	sem := make(chan struct{}, job.Config.Parallel)
	var wg sync.WaitGroup
	var failFastTripped sync.Once
	failedFast := false

	for _, id := range job.Order {
		item := job.Items[id]
		if jobCtx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(item *JobItem) {
			defer wg.Done()
			defer func() { <-sem }()

			if jobCtx.Err() != nil {
				return
			}

			e.processItem(jobCtx, job, item)
			job.RecomputeStatus(e.now())

			if job.itemStatus(item) == ItemError && job.Config.FailFast {
				failFastTripped.Do(func() {
					failedFast = true
					cancel()
				})
			}
		}(item)
	}
	wg.Wait()

	finishNow := e.now()
	if failedFast {
		for _, id := range job.Order {
			it := job.Items[id]
			if s := job.itemStatus(it); s == ItemPending || s == ItemProcessing {
				job.setItemError(it, "Job cancelled", finishNow)
			}
		}
	}
	job.RecomputeStatus(finishNow)

	if job.Config.Recurrence != "" && job.Config.Recurrence != RecurrenceNone {
		e.scheduleNext(job, finishNow)
	}

	if job.Config.Webhook != nil {
		e.dispatchWebhook(job)
	}

	if e.cfg.Mirror != nil {
		e.mirrorSnapshot(job)
	}
}

func (e *Engine) mirrorSnapshot(job *BatchJob) {
	snapshot, err := json.Marshal(job)
	if err != nil {
		e.log.Error("batch job snapshot marshal failed", "job_id", job.JobID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.cfg.Mirror.Save(ctx, job.JobID, string(job.GetStatus()), snapshot, e.now()); err != nil {
		e.log.Error("batch job mirror save failed", "job_id", job.JobID, "error", err)
	}
}

func (e *Engine) processItem(ctx context.Context, job *BatchJob, item *JobItem) {
	job.setItemProcessing(item, e.now())

	timeout := time.Duration(job.Config.TimeoutSeconds) * time.Second
	backoffs := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for attempt := 0; ; attempt++ {
		itemCtx, cancel := context.WithTimeout(ctx, timeout)
		url, err := e.capturer.Capture(itemCtx, item.Request.URL, item.Request.Width, item.Request.Height, item.Request.Format, item.Request.UseCache || job.Config.UseCache)
		retriable := err != nil && isRetriableItemError(itemCtx, err)
		cancel()
		if err == nil {
			job.setItemSuccess(item, &ItemResult{URL: url}, e.now())
			return
		}
		lastErr = err
		if !retriable || attempt == len(backoffs) {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = len(backoffs)
		case <-time.After(backoffs[attempt]):
			continue
		}
		break
	}

	message := "unknown error"
	if lastErr != nil {
		message = lastErr.Error()
	}
	job.setItemError(item, message, e.now())
}

func isRetriableItemError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "has been closed") ||
		strings.Contains(msg, "target page, context or browser has been closed")
}

func (e *Engine) scheduleNext(job *BatchJob, now time.Time) {
	cfg := job.Config
	if cfg.RecurrenceCount > 0 && job.recurrenceOccurrence() >= cfg.RecurrenceCount {
		return
	}
	base := now
	if job.Config.ScheduledTime != nil {
		base = RecurrenceBase(*job.Config.ScheduledTime, now)
	}
	next, ok := NextFireTime(cfg.Recurrence, base, cfg.RecurrenceInterval)
	if !ok {
		return
	}

	items := make([]ItemRequest, 0, len(job.Order))
	for _, id := range job.Order {
		items = append(items, job.Items[id].Request)
	}
	childCfg := cfg
	childCfg.ScheduledTime = &next
	child := &BatchJob{
		JobID:       fmt.Sprintf("%s-next", job.JobID),
		Items:       make(map[string]*JobItem, len(items)),
		Config:      childCfg,
		CreatedAt:   now,
		UpdatedAt:   now,
		ParentJobID: job.JobID,
		Status:      JobScheduled,
	}
	for i, it := range items {
		id := fmt.Sprintf("%s-item-%d", child.JobID, i)
		child.Items[id] = &JobItem{ID: id, Request: it, Status: ItemPending}
		child.Order = append(child.Order, id)
	}
	job.NextScheduledTime = &next
	e.store.Put(child)
	e.store.PushScheduled(child.JobID, next)
}

// recurrenceOccurrence reports how many times this lineage has already fired,
// counted via the parent-chain depth rooted at the original job. Synthesized
// children carry a "-next" suffix per hop, so depth is inferred from length.
func (j *BatchJob) recurrenceOccurrence() int {
	n := 0
	id := j.JobID
	for strings.HasSuffix(id, "-next") {
		id = strings.TrimSuffix(id, "-next")
		n++
	}
	return n
}

type webhookResultPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
	Cached *bool  `json:"cached,omitempty"`
}

type webhookPayload struct {
	JobID          string                 `json:"job_id"`
	Status         string                 `json:"status"`
	Priority       string                 `json:"priority"`
	Total          int                    `json:"total"`
	Succeeded      int                    `json:"succeeded"`
	Failed         int                    `json:"failed"`
	ProcessingTime float64                `json:"processing_time"`
	ScheduledTime  *string                `json:"scheduled_time"`
	Recurrence     *string                `json:"recurrence"`
	Results        []webhookResultPayload `json:"results"`
}

func (e *Engine) dispatchWebhook(job *BatchJob) {
	payload := buildWebhookPayload(job)
	body, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("webhook payload marshal failed", "job_id", job.JobID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.Config.Webhook.URL, bytes.NewReader(body))
	if err != nil {
		e.log.Error("webhook request build failed", "job_id", job.JobID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if job.Config.Webhook.Auth != "" {
		req.Header.Set("Authorization", job.Config.Webhook.Auth)
	}

	resp, err := e.cfg.WebhookHTTP.Do(req)
	if err != nil {
		e.log.Error("webhook delivery failed", "job_id", job.JobID, "error", err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		e.log.Error("webhook returned server error", "job_id", job.JobID, "status", resp.StatusCode)
	case resp.StatusCode >= 400:
		e.log.Warn("webhook returned client error", "job_id", job.JobID, "status", resp.StatusCode)
	default:
		e.log.Info("webhook delivered", "job_id", job.JobID, "status", resp.StatusCode)
	}
}

func buildWebhookPayload(job *BatchJob) webhookPayload {
	total, succeeded, failed := 0, 0, 0
	results := make([]webhookResultPayload, 0, len(job.Order))
	for _, id := range job.Order {
		it := job.Items[id]
		total++
		r := webhookResultPayload{ID: it.ID, Status: string(it.Status)}
		switch it.Status {
		case ItemSuccess:
			succeeded++
			if it.Result != nil {
				r.URL = it.Result.URL
				cached := it.Result.Cached
				r.Cached = &cached
			}
		case ItemError:
			failed++
			r.Error = it.Error
		}
		results = append(results, r)
	}

	var scheduled *string
	if job.Config.ScheduledTime != nil {
		s := job.Config.ScheduledTime.UTC().Format(time.RFC3339)
		scheduled = &s
	}
	var recurrence *string
	if job.Config.Recurrence != "" && job.Config.Recurrence != RecurrenceNone {
		r := string(job.Config.Recurrence)
		recurrence = &r
	}

	processingSeconds := 0.0
	if !job.StartTime.IsZero() {
		end := job.CompletedAt
		if end.IsZero() {
			end = time.Now()
		}
		processingSeconds = end.Sub(job.StartTime).Seconds()
	}
	rounded := float64(int(processingSeconds*100+0.5)) / 100

	return webhookPayload{
		JobID:          job.JobID,
		Status:         string(job.Status),
		Priority:       string(job.Config.Priority),
		Total:          total,
		Succeeded:      succeeded,
		Failed:         failed,
		ProcessingTime: rounded,
		ScheduledTime:  scheduled,
		Recurrence:     recurrence,
		Results:        results,
	}
}
