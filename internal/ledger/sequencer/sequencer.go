// Package sequencer owns the ledger's write path. Calls are queued, grouped
// into blocks and executed one after another by a single goroutine; every
// call in a block sees the same height.
package sequencer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	"skillproof/pkg/platform/sentinel"
)

const (
	defaultBlockInterval = 50 * time.Millisecond
	defaultMaxBlockSize  = 64
	defaultQueueSize     = 1024
)

// ErrStopped is returned for calls submitted after the sequencer stopped.
var ErrStopped = dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "ledger is shutting down")

// HeightStore persists the block height across restarts.
type HeightStore interface {
	CurrentHeight(ctx context.Context) (id.Height, error)
	AdvanceHeight(ctx context.Context) (id.Height, error)
}

// BlockObserver is optional instrumentation.
type BlockObserver interface {
	ObserveBlock(height id.Height, size int)
}

// Func is one ledger call. It runs on the sequencer goroutine.
type Func func(ctx context.Context, call models.Call) error

type request struct {
	ctx    context.Context
	caller id.Principal
	fn     Func
	done   chan error
}

type Sequencer struct {
	heights  HeightStore
	queue    chan request
	interval time.Duration
	maxBlock int
	height   atomic.Uint64
	logger   *slog.Logger
	observer BlockObserver
	started  chan struct{}
	stopped  chan struct{}
}

type Option func(*Sequencer)

func WithBlockInterval(d time.Duration) Option {
	return func(s *Sequencer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithMaxBlockSize(n int) Option {
	return func(s *Sequencer) {
		if n > 0 {
			s.maxBlock = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(s *Sequencer) {
		if n > 0 {
			s.queue = make(chan request, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

func WithObserver(o BlockObserver) Option {
	return func(s *Sequencer) {
		s.observer = o
	}
}

func New(heights HeightStore, opts ...Option) *Sequencer {
	s := &Sequencer{
		heights:  heights,
		queue:    make(chan request, defaultQueueSize),
		interval: defaultBlockInterval,
		maxBlock: defaultMaxBlockSize,
		logger:   slog.New(slog.DiscardHandler),
		started:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Height is the height of the most recently sealed block.
func (s *Sequencer) Height() id.Height {
	return id.Height(s.height.Load())
}

// Ready is closed once Run has loaded the persisted height.
func (s *Sequencer) Ready() <-chan struct{} {
	return s.started
}

// Submit queues fn for caller and waits for its result. Once queued, the
// call is either executed or rejected with a timeout if ctx ended first.
func (s *Sequencer) Submit(ctx context.Context, caller id.Principal, fn Func) error {
	r := request{ctx: ctx, caller: caller, fn: fn, done: make(chan error, 1)}
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	select {
	case s.queue <- r:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "ledger queue is full")
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case err := <-r.done:
		return err
	case <-s.stopped:
		select {
		case err := <-r.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// Run executes blocks until ctx is cancelled. Calls still queued at that
// point fail with ErrStopped.
func (s *Sequencer) Run(ctx context.Context) error {
	defer close(s.stopped)

	h, err := s.heights.CurrentHeight(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load block height")
	}
	s.height.Store(uint64(h))
	close(s.started)
	s.logger.InfoContext(ctx, "sequencer started", "height", h)

	for {
		var first request
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case first = <-s.queue:
		}

		block := s.collect(ctx, first)
		if ctx.Err() != nil {
			fail(block, ErrStopped)
			s.drain()
			return ctx.Err()
		}
		s.execute(ctx, block)
	}
}

// collect gathers calls for one block until it is full or the interval elapses.
func (s *Sequencer) collect(ctx context.Context, first request) []request {
	block := []request{first}
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for len(block) < s.maxBlock {
		select {
		case r := <-s.queue:
			block = append(block, r)
		case <-timer.C:
			return block
		case <-ctx.Done():
			return block
		}
	}
	return block
}

func (s *Sequencer) execute(ctx context.Context, block []request) {
	height, err := s.heights.AdvanceHeight(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to seal block", "error", err)
		fail(block, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal block"))
		return
	}
	s.height.Store(uint64(height))

	for _, r := range block {
		if err := r.ctx.Err(); err != nil {
			r.done <- dErrors.Wrap(err, dErrors.CodeTimeout, "call abandoned before execution")
			continue
		}
		r.done <- r.fn(r.ctx, models.Call{Caller: r.caller, Height: height})
	}
	if s.observer != nil {
		s.observer.ObserveBlock(height, len(block))
	}
}

func (s *Sequencer) drain() {
	for {
		select {
		case r := <-s.queue:
			r.done <- ErrStopped
		default:
			return
		}
	}
}

func fail(block []request, err error) {
	for _, r := range block {
		r.done <- err
	}
}
