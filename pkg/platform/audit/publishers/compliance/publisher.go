// Package compliance records ledger mutations in the audit store. Emit runs
// inside the mutation's transaction: if the event cannot be written the
// mutation must fail with it.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "skillproof/pkg/platform/audit"
)

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithClock stamps events that arrive without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and persists event. Only ledger actions are accepted, and
// an event without an actor is attributed to its subject.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := validate(event); err != nil {
		return err
	}
	if event.ActorID == "" {
		event.ActorID = event.Subject
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	start := time.Now()
	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		if p.metrics != nil {
			p.metrics.PersistFailures.WithLabelValues(string(event.Action)).Inc()
		}
		p.logger.ErrorContext(ctx, "compliance audit write failed, aborting ledger call",
			"action", event.Action,
			"subject", event.Subject,
			"height", event.Height,
			"error", err,
		)
		return fmt.Errorf("persist %s audit event: %w", event.Action, err)
	}

	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		p.metrics.EventsEmitted.WithLabelValues(string(event.Action)).Inc()
	}
	return nil
}

func validate(event audit.ComplianceEvent) error {
	switch {
	case event.Subject == "":
		return fmt.Errorf("compliance event %q has no subject", event.Action)
	case event.Action == "":
		return fmt.Errorf("compliance event has no action")
	case event.Action.Category() != audit.CategoryCompliance:
		return fmt.Errorf("%q is not a ledger action", event.Action)
	}
	return nil
}
