package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// RetryConfig controls Execute's backoff schedule (spec §4.1).
type RetryConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// DefaultRetryConfig mirrors the teacher's DefaultRetryConfig-style constructor.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.2,
	}
}

// adaptiveMultipliers scales the base exponential delay depending on what
// kind of failure occurred, so transient resource exhaustion backs off harder
// than a plain network blip.
var adaptiveMultipliers = []struct {
	substr     string
	multiplier float64
}{
	{"timeout", 1.5},
	{"memory", 2.0},
	{"resource", 2.0},
	{"connection", 1.2},
	{"network", 1.2},
}

func delayFor(cfg RetryConfig, attempt int, err error) time.Duration {
	base := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(cfg.MaxDelay); base > max {
		base = max
	}

	if err != nil {
		lower := strings.ToLower(err.Error())
		for _, m := range adaptiveMultipliers {
			if strings.Contains(lower, m.substr) {
				base *= m.multiplier
				break
			}
		}
	}
	if max := float64(cfg.MaxDelay); base > max {
		base = max
	}

	if cfg.JitterFraction > 0 {
		amount := base * cfg.JitterFraction
		base += (rand.Float64()*2 - 1) * amount
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

// MaxRetriesExceededError is returned by Execute when an operation is still
// failing after RetryConfig.MaxRetries attempts.
type MaxRetriesExceededError struct {
	Operation string
	Attempts  int
	Cause     error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("%s: max retries (%d) exceeded: %v", e.Operation, e.Attempts, e.Cause)
}

func (e *MaxRetriesExceededError) Unwrap() error { return e.Cause }

// CircuitBreakerOpenError is returned by Execute when the breaker for the
// operation's domain refuses admission.
type CircuitBreakerOpenError struct {
	Domain      string
	TimeToRetry time.Duration
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %q, retry in %s", e.Domain, e.TimeToRetry)
}

// Kind lets callers classify an error for Execute without constructing a
// typed wrapper; Execute calls Classify(err, kind(err), attempt).
type Kind interface {
	RetryKind() string
}

// Op is the function Execute calls; errors it returns are classified and,
// when transient, retried according to cfg.
type Op func(ctx context.Context) error

// Execute runs op, retrying transient failures per cfg's backoff schedule and
// consulting breaker (if non-nil) for admission before every attempt,
// including a navigation-class fail-fast rule: if opName is navigation-class
// and the breaker is open, Execute returns immediately without burning a
// retry budget (spec §4.1).
func Execute(ctx context.Context, cfg RetryConfig, breaker *CircuitBreaker, domain, opName string, op Op) error {
	var lastErr error
	navClass := IsNavigationClass(opName)
	maxRetries := cfg.MaxRetries

	for attempt := 0; ; attempt++ {
		if breaker != nil && !breaker.CanExecute() {
			if navClass {
				return &CircuitBreakerOpenError{Domain: domain, TimeToRetry: breaker.TimeToRetry()}
			}
			// Non-navigation ops still get at least one attempt against an
			// open breaker, but don't keep hammering a tripped domain.
			if maxRetries > attempt {
				maxRetries = attempt
			}
		}

		err := op(ctx)
		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			return nil
		}
		lastErr = err
		if breaker != nil {
			breaker.RecordFailure()
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s: context ended during retry: %w", opName, ctx.Err())
		}

		kind := ""
		if k, ok := err.(Kind); ok {
			kind = k.RetryKind()
		}
		if Classify(err, kind, attempt) == Permanent {
			return err
		}

		if attempt >= maxRetries {
			return &MaxRetriesExceededError{Operation: opName, Attempts: attempt + 1, Cause: lastErr}
		}

		delay := delayFor(cfg, attempt, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: context ended while waiting to retry: %w", opName, ctx.Err())
		case <-timer.C:
		}
	}
}

// IsMaxRetriesExceeded reports whether err is a *MaxRetriesExceededError.
func IsMaxRetriesExceeded(err error) bool {
	var target *MaxRetriesExceededError
	return errors.As(err, &target)
}

// IsCircuitBreakerOpen reports whether err is a *CircuitBreakerOpenError.
func IsCircuitBreakerOpen(err error) bool {
	var target *CircuitBreakerOpenError
	return errors.As(err, &target)
}
