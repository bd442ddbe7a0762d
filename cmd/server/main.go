package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "skillproof/internal/jwt_token"
	"skillproof/internal/ledger"
	"skillproof/internal/ledger/handler"
	ledgermetrics "skillproof/internal/ledger/metrics"
	"skillproof/internal/ledger/sequencer"
	"skillproof/internal/ledger/service"
	"skillproof/internal/platform/config"
	"skillproof/internal/platform/httpserver"
	"skillproof/internal/platform/logger"
	platformmetrics "skillproof/internal/platform/metrics"
	id "skillproof/pkg/domain"
	"skillproof/pkg/platform/audit/publishers/compliance"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/ledger.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "skillproof: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	policy, err := buildPolicy(cfg.Ledger)
	if err != nil {
		return err
	}
	owner, err := id.ParsePrincipal(cfg.Ledger.PlatformOwner)
	if err != nil {
		return fmt.Errorf("LEDGER_PLATFORM_OWNER: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := ledgermetrics.New(reg)

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithPolicy(policy),
		service.WithAuditPublisher(compliance.New(infra.auditStore,
			compliance.WithLogger(log),
			compliance.WithMetrics(compliance.NewMetrics(reg)),
		)),
	}
	if infra.cache != nil {
		opts = append(opts, service.WithCache(infra.cache))
	}
	svc := service.New(infra.store, opts...)

	platform, err := ledger.Bootstrap(ctx, infra.store, svc, owner, cfg.Ledger.InitialFeeBasisPoints)
	if err != nil {
		return fmt.Errorf("bootstrap platform: %w", err)
	}
	log.InfoContext(ctx, "platform ready",
		"owner", platform.Owner,
		"fee_basis_points", platform.FeeBasisPoints,
		"storage", infra.storageKind(),
	)

	seq := sequencer.New(infra.store,
		sequencer.WithBlockInterval(cfg.Sequencer.BlockInterval),
		sequencer.WithMaxBlockSize(cfg.Sequencer.MaxBlockSize),
		sequencer.WithQueueSize(cfg.Sequencer.QueueSize),
		sequencer.WithLogger(log),
		sequencer.WithObserver(metrics),
	)

	tokens := jwttoken.NewJWTService(cfg.Auth.SigningKey(), cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	router := chi.NewRouter()
	router.Use(platformmetrics.NewHTTP(reg).Middleware)
	handler.New(ledger.New(svc, seq), log, jwttoken.NewJWTServiceAdapter(tokens),
		handler.WithRequestTimeout(cfg.RequestTimeout),
		handler.WithWriteLimiter(infra.writeLimiter(cfg.RateLimit, log).RateLimitCaller()),
	).Register(router)
	router.Get("/healthz", infra.healthHandler(seq))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return seq.Run(gctx) })
	if err := infra.startRelay(gctx, g, cfg.Kafka, metrics, log); err != nil {
		return err
	}
	g.Go(func() error {
		log.InfoContext(gctx, "starting skillproof", "addr", cfg.Addr)
		return httpserver.Run(gctx, httpserver.New(cfg.Addr, router), cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("skillproof stopped")
	return nil
}
