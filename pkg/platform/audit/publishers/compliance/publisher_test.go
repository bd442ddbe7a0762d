package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "skillproof/pkg/platform/audit"
	"skillproof/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestPublisher_Emit(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("persists a ledger event", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		m := NewMetrics(prometheus.NewRegistry())
		pub := New(store, WithMetrics(m), WithClock(func() time.Time { return fixed }))

		err := pub.Emit(ctx, audit.ComplianceEvent{
			Subject:  "alice",
			Action:   audit.EventUserRegistered,
			Height:   2,
			Resource: "user:alice",
		})
		require.NoError(t, err)

		events, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.Equal(t, "user_registered", events[0].Action)
		assert.Equal(t, uint64(2), events[0].Height)
		assert.Equal(t, fixed, events[0].Timestamp)
		assert.Equal(t, "alice", events[0].ActorID, "self-service calls are attributed to the subject")
		assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsEmitted.WithLabelValues("user_registered")))
	})

	t.Run("keeps the acting validator", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)

		require.NoError(t, pub.Emit(ctx, audit.ComplianceEvent{
			Subject: "alice",
			ActorID: "bob",
			Action:  audit.EventSkillValidated,
			Height:  5,
		}))
		events, err := store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "bob", events[0].ActorID)
	})

	t.Run("rejects incomplete or foreign events", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		assert.Error(t, pub.Emit(ctx, audit.ComplianceEvent{Action: audit.EventUserRegistered}))
		assert.Error(t, pub.Emit(ctx, audit.ComplianceEvent{Subject: "alice"}))
		assert.Error(t, pub.Emit(ctx, audit.ComplianceEvent{Subject: "alice", Action: "session_started"}))
	})

	t.Run("fails closed when the store fails", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		pub := New(failingStore{}, WithMetrics(m))

		err := pub.Emit(ctx, audit.ComplianceEvent{Subject: "alice", Action: audit.EventUserRegistered})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outbox unavailable")
		assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures.WithLabelValues("user_registered")))
	})
}
