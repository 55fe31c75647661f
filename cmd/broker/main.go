// Command broker is the composition root for the fulfillment sync engine
// (spec.md §6.1, §9): one binary, three process roles selected by
// PROCESS_ROLE (worker, scheduler, all), wired together with go.uber.org/fx
// the way the teacher's cmd/server/main.go wires its own components.
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/commerce"
	"github.com/shipbridge/sync-engine/internal/config"
	"github.com/shipbridge/sync-engine/internal/events"
	"github.com/shipbridge/sync-engine/internal/ffn"
	"github.com/shipbridge/sync-engine/internal/lifecycle"
	"github.com/shipbridge/sync-engine/internal/logging"
	"github.com/shipbridge/sync-engine/internal/queue"
	"github.com/shipbridge/sync-engine/internal/scheduler"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
	"github.com/shipbridge/sync-engine/internal/vault"
	"github.com/shipbridge/sync-engine/internal/webhook"
	"github.com/shipbridge/sync-engine/internal/worker"
)

const (
	defaultOrderFFNConcurrency = 3
	defaultLowVolumeConcurrency = 1
	defaultMaxConcurrentSyncs   = 3
	httpShutdownTimeout         = 5 * time.Second
)

func newDatabase(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) error {
	if err := postgres.OpenDatabase(cfg.Database.URL, logger); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return postgres.CloseDatabase()
		},
	})
	return nil
}

func newVault(cfg config.Config) (*vault.Vault, error) {
	return vault.New(cfg.Encryption.KeyHex)
}

func newFFNClient(cfg config.Config, v *vault.Vault) *ffn.Client {
	store := postgres.NewTokenStore(v)
	return ffn.New(cfg.FFN.BaseURL(), store)
}

func newCommerceResolver(v *vault.Vault) *commerce.Resolver {
	return commerce.NewResolver(v)
}

func newQueueClient() *queue.Client {
	return queue.New()
}

func newAuditProducer(lc fx.Lifecycle, cfg config.Config) *events.Producer {
	prod := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newEngine(ffnClient *ffn.Client, resolver *commerce.Resolver, q *queue.Client, audit *events.Producer, logger *zap.Logger) *lifecycle.Engine {
	return lifecycle.New(ffnClient, resolver, q, audit, logger)
}

func newScheduler(ffnClient *ffn.Client, engine *lifecycle.Engine, resolver *commerce.Resolver, q *queue.Client, logger *zap.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(ffnClient, engine, resolver, q, logger, defaultMaxConcurrentSyncs)
}

func newWorkerPool(q *queue.Client, logger *zap.Logger) *worker.Pool {
	return worker.New(q, logger)
}

// registerWorkers binds every queue name to its handler when this process
// is allowed to run workers (spec.md §6.1 RoleWorker/RoleAll).
func registerWorkers(lc fx.Lifecycle, cfg config.Config, pool *worker.Pool, engine *lifecycle.Engine, resolver *commerce.Resolver, logger *zap.Logger) {
	if cfg.ProcessRole != config.RoleWorker && cfg.ProcessRole != config.RoleAll {
		return
	}

	h := worker.NewHandlers(engine, resolver, logger)
	pool.Register(queue.QueueOrderSyncToFFN, cfg.Worker.ConcurrencyFor(queue.QueueOrderSyncToFFN, defaultOrderFFNConcurrency), h.OrderSyncToFFN)
	pool.Register(queue.QueueOrderSyncToCommerce, cfg.Worker.ConcurrencyFor(queue.QueueOrderSyncToCommerce, defaultOrderFFNConcurrency), h.OrderSyncToCommerce)
	pool.Register(queue.QueueProductSyncToFFN, cfg.Worker.ConcurrencyFor(queue.QueueProductSyncToFFN, defaultLowVolumeConcurrency), h.ProductSyncToFFN)
	pool.Register(queue.QueueReturnSyncToFFN, cfg.Worker.ConcurrencyFor(queue.QueueReturnSyncToFFN, defaultLowVolumeConcurrency), h.ReturnSyncToFFN)
	pool.Register(queue.QueueReturnSyncToCommerce, cfg.Worker.ConcurrencyFor(queue.QueueReturnSyncToCommerce, defaultLowVolumeConcurrency), h.ReturnSyncToCommerce)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pool.Start(ctx)
			logger.Info("worker pool started")
			return nil
		},
		OnStop: func(context.Context) error {
			pool.Stop()
			return nil
		},
	})
}

// registerScheduler starts the periodic loops only on the process role
// that owns them (spec.md §9: exactly one logical process per deployment
// should run the scheduler, to avoid duplicate cron ticks across
// replicas).
func registerScheduler(lc fx.Lifecycle, cfg config.Config, sched *scheduler.Scheduler, logger *zap.Logger) {
	if cfg.ProcessRole != config.RoleScheduler && cfg.ProcessRole != config.RoleAll {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sched.Start(ctx)
			logger.Info("scheduler started")
			return nil
		},
		OnStop: func(context.Context) error {
			sched.Stop()
			return nil
		},
	})
}

// registerWebhookServer mounts the webhook HTTP endpoints. It runs on
// every role: webhook ingestion only enqueues jobs, so it's cheap enough
// to host alongside workers or the scheduler without its own role.
func registerWebhookServer(lc fx.Lifecycle, cfg config.Config, q *queue.Client, logger *zap.Logger, shutdowner fx.Shutdowner) {
	proc := webhook.NewProcessor(q, logger)
	mux := http.NewServeMux()
	webhook.RegisterRoutes(mux, proc, logger)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: otelhttp.NewHandler(mux, "webhook-server"),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("webhook server listening", zap.String("addr", cfg.HTTP.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("webhook server error", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func main() {
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			config.Load,
			logging.New,
			newVault,
			newFFNClient,
			newCommerceResolver,
			newQueueClient,
			newAuditProducer,
			newEngine,
			newScheduler,
			newWorkerPool,
		),
		fx.Invoke(
			newDatabase,
			func(logger *zap.Logger, cfg config.Config) {
				logger.Info("starting fulfillment broker", zap.String("service", cfg.ServiceName), zap.String("role", string(cfg.ProcessRole)))
			},
			registerWorkers,
			registerScheduler,
			registerWebhookServer,
		),
	)

	app.Run()
}
