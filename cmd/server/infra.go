package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"skillproof/internal/ledger/models"
	"skillproof/internal/ledger/sequencer"
	"skillproof/internal/ledger/service"
	"skillproof/internal/ledger/store/cache"
	"skillproof/internal/ledger/store/memory"
	pgstore "skillproof/internal/ledger/store/postgres"
	"skillproof/internal/platform/config"
	"skillproof/internal/platform/kafka"
	"skillproof/internal/platform/postgres"
	platformredis "skillproof/internal/platform/redis"
	ratelimitmw "skillproof/internal/ratelimit/middleware"
	ratelimitmodels "skillproof/internal/ratelimit/models"
	"skillproof/internal/ratelimit/store/bucket"
	audit "skillproof/pkg/platform/audit"
	auditpostgres "skillproof/pkg/platform/audit/store/postgres"
	"skillproof/pkg/platform/audit/worker"
	"skillproof/pkg/platform/httputil"
)

// ledgerStore is what both the service and the sequencer need from storage.
type ledgerStore interface {
	service.Store
	sequencer.HeightStore
}

type infra struct {
	db         *sql.DB
	dbURL      string
	redis      *platformredis.Client
	producer   *kafka.Producer
	store      ledgerStore
	auditStore audit.Store
	outbox     *auditpostgres.Store
	cache      *cache.Cache
}

// openInfra picks Postgres when DATABASE_URL is set and memory otherwise,
// and adds the Redis cache when REDIS_URL is set.
func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}

	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		in.db = db
		in.dbURL = cfg.Postgres.URL
		in.store = pgstore.New(db, cfg.Postgres.TxTimeout)
		in.outbox = auditpostgres.New(db)
		in.auditStore = in.outbox
	} else {
		log.WarnContext(ctx, "DATABASE_URL not set; ledger state is kept in memory")
		mem := memory.New()
		in.store = mem
		in.auditStore = mem.Audit()
	}

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	if client != nil {
		in.redis = client
		in.cache = cache.New(client.Client, in.store, cfg.Redis.CacheTTL, cache.WithLogger(log))
	}
	return in, nil
}

// startRelay ships the Postgres outbox to Kafka. It needs both a database
// and brokers; otherwise outbox rows stay put.
func (in *infra) startRelay(ctx context.Context, g *errgroup.Group, cfg config.KafkaConfig, metrics worker.Metrics, log *slog.Logger) error {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	if in.outbox == nil {
		log.WarnContext(ctx, "KAFKA_BROKERS set without DATABASE_URL; audit relay disabled")
		return nil
	}

	producer, err := kafka.NewProducer(cfg.Brokers, cfg.AuditTopic)
	if err != nil {
		return err
	}
	in.producer = producer
	if err := producer.EnsureTopic(ctx, cfg.TopicPartitions); err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}

	listener := postgres.NewListener(in.dbURL, auditpostgres.NotifyChannel, log)
	relay := worker.NewWorker(in.outbox, producer,
		worker.WithWake(listener.Wake()),
		worker.WithLogger(log),
		worker.WithMetrics(metrics),
		worker.WithBatchSize(cfg.OutboxBatchSize),
		worker.WithPollInterval(cfg.OutboxPollPeriod),
	)
	g.Go(func() error { return listener.Run(ctx) })
	g.Go(func() error { return relay.Run(ctx) })
	log.InfoContext(ctx, "audit relay started", "topic", cfg.AuditTopic)
	return nil
}

// writeLimiter shares the per-caller window through Redis when available.
func (in *infra) writeLimiter(cfg config.RateLimitConfig, log *slog.Logger) *ratelimitmw.Middleware {
	limit := ratelimitmodels.Limit{RequestsPerWindow: cfg.WriteLimit, Window: cfg.WriteWindow}
	var store ratelimitmw.BucketStore = bucket.New()
	if in.redis != nil {
		store = bucket.NewRedis(in.redis.Client)
	}
	return ratelimitmw.New(store, limit, ratelimitmw.WithLogger(log))
}

func (in *infra) storageKind() string {
	if in.db != nil {
		return "postgres"
	}
	return "memory"
}

type healthResponse struct {
	Status string            `json:"status"`
	Height uint64            `json:"height"`
	Checks map[string]string `json:"checks"`
}

// healthHandler reports every configured backend; any failure turns the
// response into a 503.
func (in *infra) healthHandler(seq *sequencer.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := healthResponse{Status: "ok", Height: uint64(seq.Height()), Checks: map[string]string{}}
		check := func(name string, err error) {
			if err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				return
			}
			resp.Checks[name] = "ok"
		}
		if in.db != nil {
			check("postgres", in.db.PingContext(ctx))
		}
		if in.redis != nil {
			check("redis", in.redis.Health(ctx))
		}
		if in.producer != nil {
			check("kafka", in.producer.Ping(ctx))
		}
		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}

func (in *infra) Close() {
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}

func buildPolicy(cfg config.LedgerConfig) (models.Policy, error) {
	categories, err := models.ParseCategoryTable(cfg.Categories)
	if err != nil {
		return models.Policy{}, fmt.Errorf("LEDGER_CATEGORIES: %w", err)
	}
	return models.Policy{
		DefaultReputation:      cfg.DefaultReputation,
		ValidatorMinReputation: cfg.ValidatorMinReputation,
		ValidationReward:       cfg.ValidationReward,
		ValidatorReward:        cfg.ValidatorReward,
		Categories:             categories,
	}, nil
}
