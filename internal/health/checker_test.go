package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_RecordsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker(CheckerConfig{TestURL: srv.URL, Timeout: time.Second}, nil)
	c.runOnce(context.Background())

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Successes)
	assert.Equal(t, float64(1), stats.SuccessRate())
}

func TestChecker_RecordsFailureOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChecker(CheckerConfig{TestURL: srv.URL, Timeout: time.Second}, nil)
	c.runOnce(context.Background())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.NotEmpty(t, stats.LastError)
}
