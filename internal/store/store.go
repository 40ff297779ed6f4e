package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// ErrOperationNotFound is returned when no journal entry exists for an id.
var ErrOperationNotFound = errors.New("operation not found")

const operationKeyPrefix = "bank:operation:"

// Store defines the contract for the operation journal.
type Store interface {
	SaveOperation(ctx context.Context, rec model.OperationRecord) error
	GetOperation(ctx context.Context, id string) (*model.OperationRecord, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

var _ Store = (*HybridStore)(nil)

// HybridStore keeps the operation journal in Redis and, when configured,
// holds the Postgres pool used by the audit ledger.
type HybridStore struct {
	redis        *redis.Client
	PG           *pgxpool.Pool
	logger       *zap.Logger
	operationTTL time.Duration
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis journal, optionally with a Postgres pool.
// An empty pgURL leaves PG nil.
func NewHybrid(redisAddr, redisPass string, redisDB int, operationTTL time.Duration, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPass,
		DB:       redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger, operationTTL: operationTTL}, nil
}

// SaveOperation writes rec under bank:operation:{id} with the configured TTL.
func (s *HybridStore) SaveOperation(ctx context.Context, rec model.OperationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("operation record has no id")
	}
	if err := s.setJSON(ctx, operationKeyPrefix+rec.ID, rec, s.operationTTL); err != nil {
		s.logger.Warn("store.save_operation_failed",
			zap.String("operation_id", rec.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// GetOperation loads the journal entry for id.
func (s *HybridStore) GetOperation(ctx context.Context, id string) (*model.OperationRecord, error) {
	var rec model.OperationRecord
	if err := s.getJSON(ctx, operationKeyPrefix+id, &rec); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOperationNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// setJSON stores value as JSON. A zero ttl keeps the key forever.
func (s *HybridStore) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

// getJSON decodes the JSON stored at key into dest. A missing key returns redis.Nil.
func (s *HybridStore) getJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// HealthCheck pings Redis and, when present, Postgres.
func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

// Close releases the Redis client and the Postgres pool.
func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
