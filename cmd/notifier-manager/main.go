// cmd/notifier-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"subtrack-notifier/internal/common/config"
	"subtrack-notifier/internal/common/database"
	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/common/observability"
	"subtrack-notifier/internal/engine/aggregate"
	"subtrack-notifier/internal/engine/audit"
	"subtrack-notifier/internal/engine/deliverylog"
	"subtrack-notifier/internal/engine/directory"
	"subtrack-notifier/internal/engine/dispatch"
	"subtrack-notifier/internal/engine/matrix"
	"subtrack-notifier/internal/engine/notifier"
	"subtrack-notifier/internal/engine/store"
	"subtrack-notifier/pkg/registry"
)

const (
	claimCacheTTL     = 48 * time.Hour
	directoryCacheTTL = 5 * time.Minute
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// A matrix hole is a programming error; refuse to start on one.
	if err := matrix.Validate(); err != nil {
		zapLog.Fatal("recipient matrix validation failed", zap.Error(err))
	}

	templates, err := registry.LoadRegistry(cfg.Templates.RegistryPath)
	if err != nil {
		zapLog.Fatal("template registry load failed", zap.Error(err))
	}
	zapLog.Info("Template registry loaded", zap.String("path", cfg.Templates.RegistryPath))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch audit sink (optional) ---
	var auditSink notifier.AuditSink
	if cfg.Audit.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		auditSink = audit.NewSink(esClient.Client, cfg.Audit.Index, log)
	}

	// --- Init email transport ---
	// Missing email configuration is a valid degraded state: in-app
	// notifications still flow, email delivery is skipped.
	var transport notifier.EmailTransport = notifier.UnconfiguredTransport{}
	if cfg.Notifications.Email.Enabled {
		sesTransport, err := notifier.NewSESTransportFromConfig(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Warn("SES client initialization failed, email delivery disabled", zap.Error(err))
		} else {
			transport = sesTransport
			zapLog.Info("SES transport configured", zap.String("region", cfg.Notifications.AWS.Region))
		}
	} else {
		zapLog.Warn("Email delivery disabled by configuration")
	}

	// --- Wire the pipeline ---
	dirStore := directory.NewCachedStore(store.NewDirectoryStore(pg.GetDB()), redis.GetClient(), directoryCacheTTL, log)
	resolver := directory.NewResolver(dirStore, log)
	aggregator := aggregate.New(resolver, log)

	claimCache := deliverylog.NewClaimCache(redis.GetClient(), claimCacheTTL)
	gate := deliverylog.New(pg.GetDB(), claimCache, log)

	inAppStore := store.NewNotificationStore(pg.GetDB())
	deliverer := notifier.New(gate, inAppStore, transport, templates, auditSink, log)

	entityStore := store.NewEntityStore(pg.GetDB())
	dispatcher := dispatch.New(aggregator, deliverer, entityStore, obs, log).
		WithTenantBatch(cfg.Sweep.TenantBatch)

	zapLog.Info("Notification pipeline wired")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Reminder sweep scheduler ---
	sweepCtx, cancelSweeps := context.WithCancel(ctx)
	defer cancelSweeps()

	interval := config.GetDuration(cfg.Sweep.Interval)
	go func() {
		// Run once at startup so a restart never pushes reminders a full
		// interval into the future; the delivery log makes reruns no-ops.
		runSweep(sweepCtx, dispatcher, zapLog)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runSweep(sweepCtx, dispatcher, zapLog)
			case <-sweepCtx.Done():
				return
			}
		}
	}()
	zapLog.Info("Reminder sweep scheduler started", zap.Duration("interval", interval))

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping sweeps...")
	cancelSweeps()

	zapLog.Info("Notifier manager stopped gracefully")
}

func runSweep(ctx context.Context, dispatcher *dispatch.Dispatcher, log *zap.Logger) {
	if err := dispatcher.RunReminderSweep(ctx); err != nil {
		log.Error("Reminder sweep failed", zap.Error(err))
	}
}
