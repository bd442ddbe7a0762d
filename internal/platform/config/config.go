package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process level configuration. Every field is read from the
// environment; see the env tags for names and defaults.
type Server struct {
	Addr     string `env:"LEDGER_ADDR"      envDefault:":8080"`
	Env      string `env:"LEDGER_ENV"       envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"        envDefault:"info"`

	ShutdownTimeout time.Duration `env:"LEDGER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"LEDGER_REQUEST_TIMEOUT"  envDefault:"30s"`

	Auth      AuthConfig
	Ledger    LedgerConfig
	Sequencer SequencerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

// AuthConfig configures bearer-token caller authentication.
type AuthConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER"   envDefault:"skillproof"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"skillproof-ledger"`
}

// LedgerConfig holds the policy constants and genesis parameters.
type LedgerConfig struct {
	PlatformOwner          string `env:"LEDGER_PLATFORM_OWNER,required"`
	InitialFeeBasisPoints  uint64 `env:"LEDGER_INITIAL_FEE_BPS"          envDefault:"100"`
	DefaultReputation      uint64 `env:"LEDGER_DEFAULT_REPUTATION"       envDefault:"100"`
	ValidatorMinReputation uint64 `env:"LEDGER_VALIDATOR_MIN_REPUTATION" envDefault:"100"`
	ValidationReward       uint64 `env:"LEDGER_VALIDATION_REWARD"        envDefault:"10"`
	ValidatorReward        uint64 `env:"LEDGER_VALIDATOR_REWARD"         envDefault:"0"`
	// Categories is the closed category table as "id:name" pairs.
	Categories string `env:"LEDGER_CATEGORIES" envDefault:"1:blockchain,2:web-development,3:data-science,4:design,5:devops,6:security,7:mobile,8:machine-learning"`
}

// SequencerConfig controls how calls are grouped into blocks.
type SequencerConfig struct {
	BlockInterval time.Duration `env:"LEDGER_BLOCK_INTERVAL"  envDefault:"50ms"`
	MaxBlockSize  int           `env:"LEDGER_MAX_BLOCK_SIZE"  envDefault:"64"`
	QueueSize     int           `env:"LEDGER_QUEUE_SIZE"      envDefault:"1024"`
}

// PostgresConfig selects durable storage. An empty URL keeps state in memory.
type PostgresConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"10"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout       time.Duration `env:"DATABASE_TX_TIMEOUT"        envDefault:"5s"`
}

// RedisConfig enables the read-through profile cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
	CacheTTL     time.Duration `env:"REDIS_CACHE_TTL"      envDefault:"5m"`
}

// KafkaConfig enables the audit outbox relay. Empty brokers leave outbox
// rows unshipped.
type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS"            envSeparator:","`
	AuditTopic       string        `env:"KAFKA_AUDIT_TOPIC"        envDefault:"ledger.audit"`
	TopicPartitions  int32         `env:"KAFKA_TOPIC_PARTITIONS"   envDefault:"3"`
	OutboxBatchSize  int           `env:"OUTBOX_BATCH_SIZE"        envDefault:"100"`
	OutboxPollPeriod time.Duration `env:"OUTBOX_POLL_PERIOD"       envDefault:"5s"`
}

// RateLimitConfig throttles mutations per caller. A zero limit disables it.
// The window is shared through Redis when REDIS_URL is set.
type RateLimitConfig struct {
	WriteLimit  int           `env:"LEDGER_WRITE_LIMIT"  envDefault:"60"`
	WriteWindow time.Duration `env:"LEDGER_WRITE_WINDOW" envDefault:"1m"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (s Server) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

func (s Server) validate() error {
	if strings.TrimSpace(s.Ledger.PlatformOwner) == "" {
		return fmt.Errorf("LEDGER_PLATFORM_OWNER must not be blank")
	}
	if s.IsProduction() && s.Auth.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required in production")
	}
	if s.Sequencer.MaxBlockSize <= 0 {
		return fmt.Errorf("LEDGER_MAX_BLOCK_SIZE must be positive")
	}
	if s.RateLimit.WriteLimit < 0 {
		return fmt.Errorf("LEDGER_WRITE_LIMIT must not be negative")
	}
	if s.Sequencer.QueueSize <= 0 {
		return fmt.Errorf("LEDGER_QUEUE_SIZE must be positive")
	}
	return nil
}

// SigningKey returns the configured JWT key, falling back to a development
// key outside production.
func (a AuthConfig) SigningKey() string {
	if a.JWTSigningKey == "" {
		return "dev-secret-key-change-in-production"
	}
	return a.JWTSigningKey
}
