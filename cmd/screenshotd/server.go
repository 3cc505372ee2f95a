package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shotpool/shotpool/internal/apierrors"
	"github.com/shotpool/shotpool/internal/batch"
	"github.com/shotpool/shotpool/internal/browserpool"
	"github.com/shotpool/shotpool/internal/metrics"
	"github.com/shotpool/shotpool/internal/pipeline"
	"github.com/shotpool/shotpool/internal/ratelimit"
	"github.com/shotpool/shotpool/internal/resultcache"
)

// adminServerDeps bundles the collaborators the thin HTTP surface calls
// through to. Its routing and validation are not part of the tested core —
// it exists so cmd/shotctl and other HTTP clients have something to drive.
type adminServerDeps struct {
	pipeline    *pipeline.Pipeline
	engine      *batch.Engine
	browserPool *browserpool.Pool
	metrics     *metrics.Collector
	cache       *resultcache.Cache
	limiters    *ratelimit.Registry
	logger      *slog.Logger
}

func newAdminServer(deps adminServerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/capture", instrument("capture", deps, handleCapture(deps)))
	mux.HandleFunc("/submit_batch", instrument("submit_batch", deps, handleSubmitBatch(deps)))
	mux.HandleFunc("/get_job", instrument("get_job", deps, handleGetJob(deps)))
	mux.HandleFunc("/cancel_job", instrument("cancel_job", deps, handleCancelJob(deps)))
	mux.HandleFunc("/invalidate_cache", instrument("invalidate_cache", deps, handleInvalidateCache(deps)))
	mux.HandleFunc("/get_metrics", instrument("get_metrics", deps, handleGetMetrics(deps)))
	mux.HandleFunc("/force_recycle", instrument("force_recycle", deps, handleForceRecycle(deps)))
	mux.HandleFunc("/pool_stats", instrument("pool_stats", deps, handlePoolStats(deps)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return otelhttp.NewHandler(mux, "screenshotd")
}

func instrument(name string, deps adminServerDeps, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		deps.metrics.RecordRequest(name, rec.status, float64(time.Since(start).Milliseconds()))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type captureRequest struct {
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	UseCache bool   `json:"use_cache"`
	UserID   string `json:"user_id"`
}

func handleCapture(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req captureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apierrors.New(apierrors.KindValidation, "invalid JSON body"))
			return
		}
		if req.URL == "" {
			writeError(w, apierrors.New(apierrors.KindValidation, "url is required"))
			return
		}
		if deps.limiters != nil && !deps.limiters.Get(req.UserID).Acquire(1) {
			writeError(w, apierrors.New(apierrors.KindRateLimited, "rate limit exceeded"))
			return
		}

		artifactURL, err := deps.pipeline.Capture(r.Context(), req.URL, req.Width, req.Height, req.Format, req.UseCache)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": artifactURL})
	}
}

type submitBatchRequest struct {
	Items []batch.ItemRequest `json:"items"`
	Job   batch.JobConfig     `json:"job"`
}

func handleSubmitBatch(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apierrors.New(apierrors.KindValidation, "invalid JSON body"))
			return
		}
		if deps.limiters != nil && !deps.limiters.Get(req.Job.UserID).Acquire(1) {
			writeError(w, apierrors.New(apierrors.KindRateLimited, "rate limit exceeded"))
			return
		}

		job, err := deps.engine.Submit(req.Items, req.Job)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	}
}

func handleGetJob(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := r.URL.Query().Get("job_id")
		job, err := deps.engine.Get(jobID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func handleCancelJob(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := r.URL.Query().Get("job_id")
		if err := deps.engine.Cancel(jobID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
	}
}

func handleInvalidateCache(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			writeError(w, apierrors.New(apierrors.KindValidation, "url is required"))
			return
		}
		n := deps.cache.Invalidate(url)
		writeJSON(w, http.StatusOK, map[string]any{"invalidated": n})
	}
}

func handleGetMetrics(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.metrics.GetMetrics())
	}
}

func handlePoolStats(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.browserPool.Stats())
	}
}

type forceRecycleRequest struct {
	Count int `json:"count"`
}

func handleForceRecycle(deps adminServerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forceRecycleRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if req.Count <= 0 {
			req.Count = 1
		}
		deps.browserPool.ForceRecycle(r.Context(), req.Count)
		writeJSON(w, http.StatusOK, map[string]any{"recycled": req.Count})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierrors.As(err)
	switch {
	case ok:
	case err == apierrors.ErrJobNotFound:
		apiErr = apierrors.Wrap(apierrors.KindValidation, err, "job not found")
	default:
		apiErr = apierrors.Wrap(apierrors.KindInternal, err, "internal error")
	}
	writeJSON(w, apiErr.Kind.HTTPStatus(), map[string]any{
		"error":      true,
		"error_code": apiErr.Kind,
		"message":    apiErr.Message,
		"details":    apiErr.Details,
	})
}
