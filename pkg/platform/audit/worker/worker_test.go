package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "skillproof/pkg/platform/audit"
)

type fakeOutbox struct {
	mu        sync.Mutex
	entries   []audit.OutboxEntry
	published map[uuid.UUID]bool
}

func newFakeOutbox(n int) *fakeOutbox {
	o := &fakeOutbox{published: map[uuid.UUID]bool{}}
	for range n {
		o.entries = append(o.entries, audit.OutboxEntry{ID: uuid.New(), EventType: string(audit.EventUserRegistered)})
	}
	return o
}

func (o *fakeOutbox) FetchPending(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []audit.OutboxEntry
	for _, e := range o.entries {
		if !o.published[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (o *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.published[id] = true
	}
	return nil
}

func (o *fakeOutbox) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries) - len(o.published)
}

type recordingProducer struct {
	mu       sync.Mutex
	sent     []uuid.UUID
	failFrom int
}

func (p *recordingProducer) Publish(_ context.Context, entry audit.OutboxEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFrom > 0 && len(p.sent) >= p.failFrom {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, entry.ID)
	return nil
}

func TestDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes everything across batches in order", func(t *testing.T) {
		outbox := newFakeOutbox(7)
		producer := &recordingProducer{}
		w := NewWorker(outbox, producer, WithBatchSize(3))

		n, err := w.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		assert.Zero(t, outbox.pending())
		for i, e := range outbox.entries {
			assert.Equal(t, e.ID, producer.sent[i])
		}
	})

	t.Run("marks only acknowledged entries on failure", func(t *testing.T) {
		outbox := newFakeOutbox(5)
		producer := &recordingProducer{failFrom: 2}
		w := NewWorker(outbox, producer)

		n, err := w.Drain(ctx)
		require.Error(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 3, outbox.pending())
	})
}

func TestRunDrainsOnWake(t *testing.T) {
	outbox := newFakeOutbox(0)
	producer := &recordingProducer{}
	wake := make(chan struct{}, 1)
	w := NewWorker(outbox, producer, WithWake(wake), WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	outbox.mu.Lock()
	outbox.entries = append(outbox.entries, audit.OutboxEntry{ID: uuid.New()})
	outbox.mu.Unlock()
	wake <- struct{}{}

	require.Eventually(t, func() bool { return outbox.pending() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
