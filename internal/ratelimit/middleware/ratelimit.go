package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"skillproof/internal/ratelimit/models"
	"skillproof/internal/ratelimit/store/bucket"
	dErrors "skillproof/pkg/domain-errors"
	"skillproof/pkg/platform/httputil"
	"skillproof/pkg/requestcontext"
)

// HeaderStatus is set to "degraded" while the fallback store is serving.
const HeaderStatus = "X-RateLimit-Status"

// BucketStore counts requests per key over a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

type Middleware struct {
	store    BucketStore
	fallback *bucket.InMemoryBucketStore
	breaker  *CircuitBreaker
	limit    models.Limit
	logger   *slog.Logger
}

type Option func(*Middleware)

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// WithFallback replaces the in-memory store used while the primary is failing.
func WithFallback(fallback *bucket.InMemoryBucketStore) Option {
	return func(m *Middleware) {
		m.fallback = fallback
	}
}

func New(store BucketStore, limit models.Limit, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		fallback: bucket.New(),
		breaker:  newCircuitBreaker(),
		limit:    limit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RateLimitCaller throttles requests per authenticated caller. It must run
// after the caller has been resolved. Requests pass unthrottled when the limit
// is disabled or both stores fail.
func (m *Middleware) RateLimitCaller() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.limit.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			caller := requestcontext.Caller(ctx)
			if caller.IsNil() {
				next.ServeHTTP(w, r)
				return
			}

			result, degraded, err := m.check(ctx, models.NewCallerWriteKey(caller))
			if err != nil {
				m.logger.Error("failed to check write rate limit", "error", err, "caller", caller.String())
				next.ServeHTTP(w, r)
				return
			}
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				m.logger.Warn("write rate limit exceeded", "caller", caller.String(), "retry_after", result.RetryAfter)
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many writes, retry later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	if !m.breaker.IsOpen() {
		result, err := m.store.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
		if err == nil {
			m.breaker.RecordSuccess()
			return result, false, nil
		}
		if m.breaker.RecordFailure() {
			m.logger.Warn("rate limit store failing, using in-memory fallback", "error", err)
		} else {
			return nil, false, err
		}
	} else if _, err := m.store.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window); err == nil {
		// Probe the primary while open; the fallback still answers this request.
		if m.breaker.RecordSuccess() {
			m.logger.Info("rate limit store recovered")
		}
	} else {
		m.breaker.RecordFailure()
	}

	result, err := m.fallback.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
