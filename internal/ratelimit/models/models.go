package models

import (
	"time"

	id "skillproof/pkg/domain"
)

// RateLimitResult is the outcome of one Allow check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in whole seconds, set when the request was denied.
	RetryAfter int
}

// Limit is a request budget per sliding window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// Enabled reports whether the limit restricts anything.
func (l Limit) Enabled() bool {
	return l.RequestsPerWindow > 0 && l.Window > 0
}

// NewCallerWriteKey is the bucket key for a caller's ledger writes.
func NewCallerWriteKey(caller id.Principal) string {
	return "writes:" + caller.String()
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Denied builds the result for a request over budget. resetAt is when the
// oldest counted request leaves the window.
func Denied(limit int, resetAt, now time.Time) *RateLimitResult {
	return &RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfterSeconds(resetAt.Sub(now)),
	}
}
