// Command server starts the Intake QA Agent webhook server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/intake-qa-agent/internal/adapter/ai"
	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/cache"
	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/crm"
	httpserver "github.com/fairyhunter13/intake-qa-agent/internal/adapter/httpserver"
	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/observability"
	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/intake-qa-agent/internal/app"
	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
	"github.com/fairyhunter13/intake-qa-agent/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	pol, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Dedup cache: Redis when configured, in-process otherwise.
	var decisionCache domain.DecisionCache
	var redisCheck func(context.Context) error
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		decisionCache = cache.NewRedis(rdb)
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		slog.Info("dedup cache: redis", slog.String("addr", cfg.RedisAddr))
	} else {
		mem := cache.NewMemory()
		mem.StartSweeper(ctx, cfg.CacheSweepInterval)
		decisionCache = mem
		slog.Info("dedup cache: in-memory", slog.Duration("ttl", cfg.DedupTTL), slog.Duration("sweep", cfg.CacheSweepInterval))
	}

	// Optional decision audit trail.
	var audit domain.DecisionAuditRepo
	var dbCheck func(context.Context) error
	if cfg.AuditEnabled() {
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			slog.Error("db connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		audit = postgres.NewDecisionRepo(pool)
		dbCheck = pool.Ping
		cleanup := postgres.NewCleanupService(pool, cfg.DataRetentionDays)
		go cleanup.RunPeriodic(ctx, cfg.CleanupInterval)
		slog.Info("decision audit enabled", slog.Int("retention_days", cfg.DataRetentionDays))
	}

	// Optional decision event publishing.
	var events domain.DecisionPublisher
	var kafkaCheck func(context.Context) error
	if cfg.EventsEnabled() {
		producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			slog.Error("redpanda producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer producer.Close()
		events = producer
		kafkaCheck = producer.Ping
		slog.Info("decision events enabled", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Optional CRM client for enrichment and write-back.
	var crmClient domain.CRMClient
	if cfg.CRMEnabled() {
		crmClient = crm.New(cfg)
		slog.Info("crm client enabled", slog.Bool("writeback", cfg.CRMWritebackOn))
	}

	decider := ai.New(cfg, pol)
	intake := usecase.NewIntakeService(cfg, pol, decider, decisionCache, crmClient, audit, events)
	srv := httpserver.NewServer(cfg, intake, redisCheck, dbCheck, kafkaCheck)
	handler := app.BuildRouter(cfg, srv)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		slog.Info("intake qa agent listening", slog.Int("port", cfg.Port), slog.String("env", cfg.AppEnv))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
