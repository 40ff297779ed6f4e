package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the bank-gateway.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Resource backend. When BackendSecretName is set the base URL and API key
	// are resolved from AWS Secrets Manager instead of the static values below.
	BackendBaseURL    string
	BackendAPIKey     string
	BackendSecretName string
	BackendTimeout    time.Duration
	BackendRetryMax   int
	BackendRPS        int
	BackendBurst      int
	BackendWriteRPS   int
	AWSRegion         string
	CacheTTL          time.Duration
	CleanupFreq       time.Duration

	// Operation journal (Redis). Empty RedisAddr disables it.
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	OperationTTL time.Duration

	// Audit ledger (Postgres). Empty DatabaseURL disables it.
	DatabaseURL         string
	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration
	AuditRetention      time.Duration
	AuditPruneInterval  time.Duration

	// Event sinks. Empty URLs disable them.
	NATSURL    string
	NATSStream string
	AMQPURL    string
	AMQPQueue  string

	// Per-notifier delivery bound for persisted-record events.
	NotifyTimeout time.Duration
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:         GetEnv("SERVICE_NAME", "bank-gateway"),
		Env:                 GetEnv("ENV", "dev"),
		LogLevel:            GetEnv("LOG_LEVEL", "info"),
		Port:                GetEnvInt("PORT", 8080),
		HTTPReadTimeout:     GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout:    GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:     GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:       GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),
		BackendBaseURL:      GetEnv("BACKEND_BASE_URL", "http://localhost:9000"),
		BackendAPIKey:       GetEnv("BACKEND_API_KEY", ""),
		BackendSecretName:   GetEnv("BACKEND_SECRET_NAME", ""),
		BackendTimeout:      GetEnvDuration("BACKEND_TIMEOUT", 30*time.Second),
		BackendRetryMax:     GetEnvInt("BACKEND_RETRY_MAX", 2),
		BackendRPS:          GetEnvInt("BACKEND_RPS", 50),
		BackendBurst:        GetEnvInt("BACKEND_BURST", 100),
		BackendWriteRPS:     GetEnvInt("BACKEND_WRITE_RPS", 0),
		AWSRegion:           GetEnv("AWS_REGION", "us-east-2"),
		CacheTTL:            GetEnvDuration("CACHE_TTL", 15*time.Minute),
		CleanupFreq:         GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
		RedisAddr:           GetEnv("REDIS_ADDR", ""),
		RedisDB:             GetEnvInt("REDIS_DB", 0),
		RedisPass:           GetEnv("REDIS_PASS", ""),
		OperationTTL:        GetEnvDuration("OPERATION_TTL", 24*time.Hour),
		DatabaseURL:         GetEnv("DATABASE_URL", ""),
		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 10),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 2),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),
		AuditRetention:      GetEnvDuration("AUDIT_RETENTION", 0),
		AuditPruneInterval:  GetEnvDuration("AUDIT_PRUNE_INTERVAL", 24*time.Hour),
		NATSURL:             GetEnv("NATS_URL", ""),
		NATSStream:          GetEnv("NATS_STREAM", "BANK_EVENTS"),
		AMQPURL:             GetEnv("AMQP_URL", ""),
		AMQPQueue:           GetEnv("AMQP_QUEUE", "bank.operations"),
		NotifyTimeout:       GetEnvDuration("NOTIFY_TIMEOUT", 5*time.Second),
	}
}
