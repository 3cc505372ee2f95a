package batch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCapturer struct {
	mu      sync.Mutex
	calls   int
	perURL  map[string][]error // queued errors per url, nil/empty -> success
}

func newScriptedCapturer() *scriptedCapturer {
	return &scriptedCapturer{perURL: make(map[string][]error)}
}

func (c *scriptedCapturer) fail(url string, errs ...error) {
	c.perURL[url] = errs
}

func (c *scriptedCapturer) Capture(ctx context.Context, rawURL string, width, height int, format string, useCache bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	queue := c.perURL[rawURL]
	if len(queue) > 0 {
		err := queue[0]
		c.perURL[rawURL] = queue[1:]
		return "", err
	}
	return "https://cdn.example.com/" + rawURL, nil
}

func (c *scriptedCapturer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func waitForTerminal(t *testing.T, store *Store, jobID string, timeout time.Duration) *BatchJob {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, ok := store.Get(jobID)
		require.True(t, ok)
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach terminal status in time", jobID)
	return nil
}

func TestEngine_ProcessesAllItemsSuccessfully(t *testing.T) {
	store := NewStore(StoreConfig{})
	fakeCap := newScriptedCapturer()
	eng := NewEngine(EngineConfig{ScanInterval: 5 * time.Millisecond}, store, fakeCap, nil)

	job, err := eng.Submit(items(3), JobConfig{Parallel: 2, TimeoutSeconds: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx, nil)

	done := waitForTerminal(t, store, job.JobID, time.Second)
	assert.Equal(t, JobCompleted, done.Status)
	for _, id := range done.Order {
		assert.Equal(t, ItemSuccess, done.Items[id].Status)
	}
}

func TestEngine_RetriesTimeoutErrorsThenSucceeds(t *testing.T) {
	store := NewStore(StoreConfig{})
	fakeCap := newScriptedCapturer()
	fakeCap.fail("https://example.com", errors.New("navigation timeout exceeded"))
	eng := NewEngine(EngineConfig{ScanInterval: 5 * time.Millisecond}, store, fakeCap, nil)

	job, err := eng.Submit(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx, nil)

	done := waitForTerminal(t, store, job.JobID, 3*time.Second)
	assert.Equal(t, JobCompleted, done.Status)
	assert.GreaterOrEqual(t, fakeCap.callCount(), 2)
}

func TestEngine_NonRetriableErrorFailsImmediately(t *testing.T) {
	store := NewStore(StoreConfig{})
	fakeCap := newScriptedCapturer()
	fakeCap.fail("https://example.com", errors.New("invalid url"))
	eng := NewEngine(EngineConfig{ScanInterval: 5 * time.Millisecond}, store, fakeCap, nil)

	job, err := eng.Submit(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx, nil)

	done := waitForTerminal(t, store, job.JobID, time.Second)
	assert.Equal(t, JobFailed, done.Status)
	assert.Equal(t, 1, fakeCap.callCount())
}

func TestEngine_FailFastCancelsRemainingItems(t *testing.T) {
	store := NewStore(StoreConfig{})
	fakeCap := newScriptedCapturer()

	reqs := make([]ItemRequest, 5)
	for i := range reqs {
		reqs[i] = ItemRequest{URL: "https://site.example/page", Format: "png"}
	}
	fakeCap.fail("https://site.example/page", errors.New("permission denied"))

	eng := NewEngine(EngineConfig{ScanInterval: 5 * time.Millisecond}, store, fakeCap, nil)
	job, err := eng.Submit(reqs, JobConfig{Parallel: 1, TimeoutSeconds: 10, FailFast: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx, nil)

	done := waitForTerminal(t, store, job.JobID, time.Second)
	assert.Contains(t, []JobStatus{JobFailed, JobCompletedWithErrors}, done.Status)

	cancelled := 0
	for _, id := range done.Order {
		if done.Items[id].Error == "Job cancelled" {
			cancelled++
		}
	}
	assert.GreaterOrEqual(t, cancelled, 2)
}

func TestEngine_DispatchesWebhookWithExpectedPayload(t *testing.T) {
	var gotStatus string
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var payload struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotStatus = payload.Status
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewStore(StoreConfig{})
	fakeCap := newScriptedCapturer()
	eng := NewEngine(EngineConfig{ScanInterval: 5 * time.Millisecond}, store, fakeCap, nil)

	job, err := eng.Submit(items(1), JobConfig{
		Parallel: 1, TimeoutSeconds: 10,
		Webhook: &WebhookConfig{URL: srv.URL},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx, nil)

	waitForTerminal(t, store, job.JobID, time.Second)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "completed", gotStatus)
}

func TestEngine_CancelStopsScheduledJob(t *testing.T) {
	store := NewStore(StoreConfig{})
	fakeCap := newScriptedCapturer()
	eng := NewEngine(EngineConfig{}, store, fakeCap, nil)

	future := time.Now().Add(time.Hour)
	job, err := eng.Submit(items(1), JobConfig{Parallel: 1, TimeoutSeconds: 10, ScheduledTime: &future})
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(job.JobID))
	got, ok := store.Get(job.JobID)
	require.True(t, ok)
	assert.Equal(t, JobCancelled, got.Status)

	due := store.PopDueScheduled(future.Add(time.Minute))
	assert.Empty(t, due)
}
