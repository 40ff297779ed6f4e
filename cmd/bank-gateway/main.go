package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/bank-gateway/internal/api"
	"github.com/Checker-Finance/bank-gateway/internal/audit"
	"github.com/Checker-Finance/bank-gateway/internal/bank"
	"github.com/Checker-Finance/bank-gateway/internal/jobs"
	"github.com/Checker-Finance/bank-gateway/internal/publisher"
	"github.com/Checker-Finance/bank-gateway/internal/rate"
	internalsecrets "github.com/Checker-Finance/bank-gateway/internal/secrets"
	"github.com/Checker-Finance/bank-gateway/internal/store"
	"github.com/Checker-Finance/bank-gateway/pkg/config"
	"github.com/Checker-Finance/bank-gateway/pkg/logger"
	"github.com/Checker-Finance/bank-gateway/pkg/secrets"
	"github.com/Checker-Finance/bank-gateway/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)

	// --- Backend location (static or AWS Secrets Manager) ---
	stopCleaner := make(chan struct{})
	var resolver bank.ConfigResolver = bank.StaticResolver{
		BaseURL: cfg.BackendBaseURL,
		APIKey:  cfg.BackendAPIKey,
	}
	if cfg.BackendSecretName != "" {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		backendCache := secrets.NewCache[bank.BackendConfig](cfg.CacheTTL)
		go backendCache.StartCleaner(cfg.CleanupFreq, stopCleaner)
		resolver = internalsecrets.NewBackendResolver(logger.L(), cfg.BackendSecretName, awsProvider, backendCache)
		logg.Infow("backend config from secrets manager", "secret", cfg.BackendSecretName)
	} else {
		logg.Infow("backend config from environment",
			"base_url", cfg.BackendBaseURL,
			"api_key", utils.MaskSecret(cfg.BackendAPIKey))
	}

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.BackendRPS,
		Burst:             cfg.BackendBurst,
	})
	if cfg.BackendWriteRPS > 0 {
		// composite operations write purchases and transactions
		for _, key := range []string{bank.CollectionPurchases, bank.CollectionTransactions} {
			rateMgr.Override(key, rate.Config{RequestsPerSecond: cfg.BackendWriteRPS, Burst: cfg.BackendWriteRPS})
		}
	}

	// --- Resource backend client ---
	client := bank.NewClient(logger.L(), resolver, rateMgr, bank.ClientOptions{
		Timeout:  cfg.BackendTimeout,
		RetryMax: cfg.BackendRetryMax,
	})

	checks := map[string]api.HealthChecker{}
	var notifiers []bank.Notifier

	// --- Store (Redis journal + optional Postgres audit pool) ---
	var journal api.Journal
	var st *store.HybridStore
	var pruner *jobs.AuditPruner
	if cfg.RedisAddr != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		var err error
		st, err = store.NewHybrid(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.OperationTTL, cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		}, logger.L())
		if err != nil {
			logg.Fatalw("failed to init store", "error", err)
		}
		journal = st
		checks["store"] = st

		// --- Audit ledger ---
		if st.PG != nil {
			notifiers = append(notifiers, audit.NewWriter(st.PG, logger.L(), cfg.ServiceName))
			if cfg.AuditRetention > 0 {
				pruner = jobs.NewAuditPruner(logger.L(), st.PG, cfg.AuditPruneInterval, cfg.AuditRetention)
				go pruner.Start(ctx)
			}
		}
	} else if cfg.DatabaseURL != "" {
		logg.Warn("DATABASE_URL set without REDIS_ADDR; audit ledger disabled")
	}

	// --- NATS JetStream events ---
	var natsPub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		natsPub, err = publisher.NewNATS(nc, cfg.NATSStream, cfg.ServiceName, logger.L())
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		notifiers = append(notifiers, natsPub)
		checks["nats"] = natsPub
	}

	// --- AMQP events ---
	var amqpPub *publisher.AMQPPublisher
	if cfg.AMQPURL != "" {
		var err error
		amqpPub, err = publisher.NewAMQP(cfg.AMQPURL, cfg.AMQPQueue, logger.L())
		if err != nil {
			logg.Fatalw("failed to init amqp publisher", "error", err)
		}
		notifiers = append(notifiers, amqpPub)
	}

	// --- Composite operation engine ---
	engine := bank.NewEngine(logger.L(), client, notifiers...).WithNotifyTimeout(cfg.NotifyTimeout)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	opsHandler := api.NewOperationHandler(logger.L(), engine, journal)
	api.RegisterRoutes(app, logger.L(), checks, api.ResourcesFrom(client), opsHandler)

	// Start HTTP server
	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("["+cfg.ServiceName+"] running",
		"env", cfg.Env,
		"journal", st != nil,
		"notifiers", len(notifiers))

	<-ctx.Done()
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	close(stopCleaner)
	if pruner != nil {
		pruner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if natsPub != nil {
		natsPub.Close()
	}
	if amqpPub != nil {
		if err := amqpPub.Close(); err != nil {
			logg.Warnw("amqp.close_failed", "error", err)
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			logg.Warnw("store.close_failed", "error", err)
		}
	}
}
