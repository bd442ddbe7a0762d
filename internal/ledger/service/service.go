package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledgermetrics "skillproof/internal/ledger/metrics"
	"skillproof/internal/ledger/models"
	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
	"skillproof/pkg/platform/sentinel"
	"skillproof/pkg/requestcontext"
)

const tracerName = "skillproof/internal/ledger"

// Service implements the ledger entry points. Every mutating call runs in a
// single store transaction: all checks pass before the first write, and any
// failure discards the writes made so far.
type Service struct {
	store   Store
	reads   Reader
	cache   Cache
	policy  models.Policy
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *ledgermetrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache serves the read-only queries from cache and invalidates it
// after every committed mutation.
func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithPolicy(policy models.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: models.DefaultPolicy(),
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.Categories == nil {
		s.policy.Categories = models.DefaultCategories()
	}
	s.reads = store
	if s.cache != nil {
		s.reads = s.cache
	}
	return s
}

func (s *Service) Policy() models.Policy {
	return s.policy
}

// mutate runs fn as one atomic ledger call and takes care of tracing,
// logging, metrics and cache invalidation around it.
func (s *Service) mutate(ctx context.Context, op string, call models.Call, fn func(txCtx context.Context, changes *models.ChangeSet) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.caller", call.Caller.String()),
		attribute.Int64("ledger.height", int64(call.Height)),
	))
	defer span.End()

	var changes models.ChangeSet
	err := s.store.RunInTx(ctx, func(txCtx context.Context) error {
		changes = models.ChangeSet{}
		return fn(txCtx, &changes)
	})
	err = normalizeErr(err)
	s.observe(ctx, op, call, err, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return err
	}
	s.invalidate(ctx, changes)
	return nil
}

func (s *Service) observe(ctx context.Context, op string, call models.Call, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCall(op, err, start)
	}
	attrs := []any{
		"operation", op,
		"caller", call.Caller,
		"height", call.Height,
		"request_id", requestcontext.RequestID(ctx),
	}
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "ledger call committed", attrs...)
	case dErrors.CodeOf(err).IsLedger():
		s.logger.WarnContext(ctx, "ledger call rejected", append(attrs, "error", dErrors.CodeOf(err))...)
	default:
		s.logger.ErrorContext(ctx, "ledger call failed", append(attrs, "error", err)...)
	}
}

func (s *Service) invalidate(ctx context.Context, changes models.ChangeSet) {
	if s.cache == nil || changes.IsEmpty() {
		return
	}
	if err := s.cache.Invalidate(ctx, changes); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// normalizeErr makes sure every failure leaving the service carries a code.
func normalizeErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger call aborted")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger call failed")
}

// Lookups used inside a transaction. A missing row is (nil, nil) so the
// access predicates can decide what absence means.

func (s *Service) loadUser(ctx context.Context, owner id.Principal) (*models.UserProfile, error) {
	profile, err := s.store.FindUser(ctx, owner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return profile, nil
}

func (s *Service) loadValidator(ctx context.Context, owner id.Principal) (*models.ValidatorProfile, error) {
	profile, err := s.store.FindValidator(ctx, owner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load validator")
	}
	return profile, nil
}

func (s *Service) loadPlatform(ctx context.Context) (*models.PlatformConfig, error) {
	cfg, err := s.store.FindPlatformConfig(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load platform config")
	}
	return cfg, nil
}

func wrapStoreErr(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
