package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillproof/internal/ratelimit/models"
	"skillproof/internal/ratelimit/store/bucket"
	"skillproof/pkg/testutil"
)

type failingStore struct{ calls int }

func (f *failingStore) Allow(context.Context, string, int, time.Duration) (*models.RateLimitResult, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func (f *failingStore) Reset(context.Context, string) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, m *Middleware, caller string) *httptest.ResponseRecorder {
	t.Helper()
	h := m.RateLimitCaller()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/skills", nil)
	if caller != "" {
		req = testutil.WithCaller(req, caller)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimitCaller(t *testing.T) {
	limit := models.Limit{RequestsPerWindow: 2, Window: time.Minute}

	t.Run("rejects the caller once over budget", func(t *testing.T) {
		m := New(bucket.New(), limit, WithLogger(quietLogger()))

		rr := serve(t, m, "alice")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))

		require.Equal(t, http.StatusOK, serve(t, m, "alice").Code)

		rr = serve(t, m, "alice")
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		testutil.AssertErrorCode(t, rr, "rate_limited")

		assert.Equal(t, http.StatusOK, serve(t, m, "bob").Code, "other callers keep their own budget")
	})

	t.Run("disabled limit passes everything", func(t *testing.T) {
		m := New(bucket.New(), models.Limit{}, WithLogger(quietLogger()))
		for range 5 {
			rr := serve(t, m, "alice")
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("anonymous requests are not counted", func(t *testing.T) {
		m := New(bucket.New(), limit, WithLogger(quietLogger()))
		for range 3 {
			assert.Equal(t, http.StatusOK, serve(t, m, "").Code)
		}
	})

	t.Run("fails open below the breaker threshold", func(t *testing.T) {
		store := &failingStore{}
		m := New(store, limit, WithLogger(quietLogger()))

		rr := serve(t, m, "alice")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
		assert.Empty(t, rr.Header().Get(HeaderStatus))
	})

	t.Run("open breaker enforces the in-memory fallback", func(t *testing.T) {
		store := &failingStore{}
		m := New(store, limit, WithLogger(quietLogger()))
		for range 4 {
			serve(t, m, "carol")
		}

		rr := serve(t, m, "carol")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "degraded", rr.Header().Get(HeaderStatus))
		require.True(t, m.breaker.IsOpen())

		require.Equal(t, http.StatusOK, serve(t, m, "carol").Code)
		rr = serve(t, m, "carol")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "degraded", rr.Header().Get(HeaderStatus))
		assert.Equal(t, 7, store.calls)
	})
}

func TestCircuitBreaker(t *testing.T) {
	c := newCircuitBreaker()
	for range 4 {
		assert.False(t, c.RecordFailure())
	}
	assert.True(t, c.RecordFailure())
	assert.True(t, c.IsOpen())

	assert.False(t, c.RecordSuccess())
	assert.False(t, c.RecordSuccess())
	assert.True(t, c.RecordSuccess())
	assert.False(t, c.IsOpen())
}
