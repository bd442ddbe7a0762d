package postgres

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListenerSignalCoalesces(t *testing.T) {
	l := NewListener("postgres://unused", "ledger_outbox", slog.New(slog.DiscardHandler))

	l.signal()
	l.signal()
	l.signal()

	select {
	case <-l.Wake():
	default:
		t.Fatal("expected a pending wake-up")
	}
	select {
	case <-l.Wake():
		t.Fatal("expected signals to coalesce into one")
	default:
	}
}

func TestListenerRunStopsOnCancel(t *testing.T) {
	l := NewListener("postgres://127.0.0.1:1/none?connect_timeout=1", "ledger_outbox", slog.New(slog.DiscardHandler))
	l.backoff = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
