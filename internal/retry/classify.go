package retry

import "strings"

// Classification describes how an error should be handled by Execute.
type Classification int

const (
	// Permanent errors are never retried.
	Permanent Classification = iota
	// Transient errors are retried up to RetryConfig.MaxRetries.
	Transient
)

// permanentSubstrings are lowercased fragments that identify a non-retriable
// error regardless of its concrete type (spec §4.1 rule 1).
var permanentSubstrings = []string{
	"permission-denied",
	"permission denied",
	"file-not-found",
	"file not found",
	"invalid-value",
	"invalid value",
	"invalid-type",
	"invalid type",
}

// transientSubstrings are lowercased fragments that always mark an error as
// transient (spec §4.1 rule 3).
var transientSubstrings = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"temporary failure",
	"resource temporarily unavailable",
	"browser context",
	"page closed",
	"target closed",
}

// alwaysTransientKinds are browser-layer error kinds that are transient
// regardless of message text (spec §4.1 rule 2).
var alwaysTransientKinds = map[string]bool{
	"target-closed":        true,
	"page-closed":          true,
	"context-closed":       true,
	"timeout":              true,
	"connection-refused":   true,
	"connection-reset":     true,
	"navigation-timeout":   true,
}

// Classify applies the spec §4.1 rules in order and reports whether err
// should be retried. unknownRetryCount is the 0-based attempt number already
// made, used only to resolve rule 4 ("unknown" errors retry while count < 3).
func Classify(err error, kind string, unknownRetryCount int) Classification {
	if err == nil {
		return Permanent
	}
	lowerKind := strings.ToLower(kind)
	lowerMsg := strings.ToLower(err.Error())

	for _, frag := range permanentSubstrings {
		if strings.Contains(lowerMsg, frag) || strings.Contains(lowerKind, frag) {
			return Permanent
		}
	}

	if alwaysTransientKinds[lowerKind] {
		return Transient
	}

	for _, frag := range transientSubstrings {
		if strings.Contains(lowerMsg, frag) {
			return Transient
		}
	}

	if unknownRetryCount < 3 {
		return Transient
	}
	return Permanent
}

// IsNavigationClass reports whether an operation name should be treated as
// navigation-class for the circuit-breaker fail-fast rule (spec §4.1).
func IsNavigationClass(opName string) bool {
	lower := strings.ToLower(opName)
	return strings.Contains(lower, "navigat") || strings.Contains(lower, "goto") || strings.Contains(lower, "load")
}
