// cmd/placement-core/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	commonaws "placement-core/internal/common/aws"
	"placement-core/internal/common/config"
	"placement-core/internal/common/database"
	"placement-core/internal/common/logger"
	"placement-core/internal/common/observability"
	"placement-core/internal/notify"
	"placement-core/internal/portal"
	"placement-core/internal/score"
	"placement-core/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting placement core...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Store.Driver),
	)

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		Registerer:     prometheus.DefaultRegisterer,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()

	st, err := openStore(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("store init failed", zap.Error(err))
	}
	defer st.Close()

	cache, closeCache, err := openScoreCache(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("score cache init failed", zap.Error(err))
	}
	defer closeCache()

	sink, err := buildSink(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("notification sink init failed", zap.Error(err))
	}

	core, err := portal.New(portal.Deps{
		Store:         st,
		ScoreCache:    cache,
		Sink:          sink,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("portal init failed", zap.Error(err))
	}

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Observability.MetricsAddress,
		Handler:           newServeMux(core, time.Now),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping placement core...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Placement core stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (store.Store, error) {
	if cfg.Store.Driver != config.StoreDriverPostgres {
		zapLog.Warn("Using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("PostgreSQL connected successfully")

	ps := store.NewPostgresStore(pg)
	if cfg.Store.EnsureSchema {
		if err := ps.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		zapLog.Info("PostgreSQL schema ensured")
	}
	return ps, nil
}

func openScoreCache(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (score.Cache, func(), error) {
	if !cfg.Score.CacheEnabled {
		return score.NewMemoryCache(), func() {}, nil
	}

	var rc *database.RedisClient
	err := retryWithBackoff(func() error {
		var err error
		rc, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rc.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		return nil, nil, err
	}
	zapLog.Info("Redis connected successfully")

	closeFn := func() {
		if err := rc.Close(); err != nil {
			zapLog.Error("Error closing Redis", zap.Error(err))
		}
	}
	return score.NewRedisCache(rc.GetClient(), cfg.Score.CachePrefix, cfg.ScoreCacheTTL()), closeFn, nil
}

func buildSink(ctx context.Context, cfg *config.Config, log logger.Logger) (notify.Sink, error) {
	var sinks notify.MultiSink
	if cfg.Notifications.LogEvents {
		sinks = append(sinks, notify.NewLogSink(log))
	}
	if cfg.Notifications.SNS.Enabled {
		client, err := commonaws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.NewSNSSink(client, cfg.Notifications.SNS.TopicARN,
			config.GetDuration(cfg.Notifications.SNS.Timeout)))
	}
	if len(sinks) == 0 {
		return notify.NewLogSink(log), nil
	}
	return sinks, nil
}
