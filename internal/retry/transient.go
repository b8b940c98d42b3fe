package retry

import (
	"context"
	"errors"
	"strings"
)

// IsTransient reports whether an error looks like a temporary network,
// database, or upstream-API failure worth retrying. Context cancellation is
// never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()

	// SQLite concurrency errors.
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return true
	}
	// Rate limit (429) and overload (529).
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return true
	}
	if strings.Contains(msg, "529") || strings.Contains(msg, "overloaded") {
		return true
	}
	// Server errors (500, 502, 503, 504).
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	// Network errors.
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "temporary failure") {
		return true
	}
	return false
}
