// Package worker ships committed outbox entries to the event stream.
//
// Delivery is at-least-once: an entry is marked published only after the
// producer acknowledged it, so a crash between the two re-sends the entry.
// Consumers de-duplicate on the entry ID carried as the message key.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "skillproof/pkg/platform/audit"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 5 * time.Second
)

// Source is the outbox the worker drains.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes one outbox entry to the event stream.
type Producer interface {
	Publish(ctx context.Context, entry audit.OutboxEntry) error
}

// Metrics is optional instrumentation for the worker.
type Metrics interface {
	IncPublished(n int)
	IncPublishFailures()
}

// Worker drains the outbox on every wake-up signal and on a fixed poll interval.
type Worker struct {
	source       Source
	producer     Producer
	wake         <-chan struct{}
	logger       *slog.Logger
	metrics      Metrics
	batchSize    int
	pollInterval time.Duration
}

type Option func(*Worker)

// WithWake sets a channel that triggers an immediate drain, typically fed by
// a LISTEN/NOTIFY listener.
func WithWake(wake <-chan struct{}) Option {
	return func(w *Worker) { w.wake = wake }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func NewWorker(source Source, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		source:       source,
		producer:     producer,
		logger:       slog.New(slog.DiscardHandler),
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains until ctx is cancelled. Transient failures are logged and
// retried on the next tick; Run only returns the context error.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "outbox drain failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// Drain publishes pending entries batch by batch until the outbox is empty
// or a publish fails. It returns the number of entries published.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		entries, err := w.source.FetchPending(ctx, w.batchSize)
		if err != nil {
			return total, err
		}
		if len(entries) == 0 {
			return total, nil
		}

		published := make([]uuid.UUID, 0, len(entries))
		var publishErr error
		for _, entry := range entries {
			if err := w.producer.Publish(ctx, entry); err != nil {
				publishErr = err
				if w.metrics != nil {
					w.metrics.IncPublishFailures()
				}
				break
			}
			published = append(published, entry.ID)
		}

		if err := w.source.MarkPublished(ctx, published); err != nil {
			return total, err
		}
		total += len(published)
		if w.metrics != nil && len(published) > 0 {
			w.metrics.IncPublished(len(published))
		}
		if publishErr != nil {
			return total, publishErr
		}
		if len(entries) < w.batchSize {
			return total, nil
		}
	}
}
