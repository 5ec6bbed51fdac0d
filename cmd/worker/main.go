package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-lavault/internal/config"
	"github.com/noah-isme/backend-lavault/internal/lock"
	"github.com/noah-isme/backend-lavault/internal/notify"
	"github.com/noah-isme/backend-lavault/internal/obs"
	"github.com/noah-isme/backend-lavault/internal/project"
	"github.com/noah-isme/backend-lavault/internal/resilience"
)

const retryBase = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.ObsLogFormat, cfg.ObsLogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.ObsMetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	receipts := notify.ReceiptHandler{
		Mail:     notify.LogSender{Logger: logger, From: cfg.NotifyEmailFrom},
		Projects: project.NewCachedStore(project.NewPGStore(pool), redisClient, cfg.ProjectCacheTTL),
		Locker:   &lock.Locker{R: redisClient},
	}

	connOpt, err := notify.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("asynq redis options")
	}
	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency:    cfg.WorkerConcurrency,
		RetryDelayFunc: retryDelay,
		Logger:         asynqLogger{logger: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("task_type", task.Type()).Msg("task failed")
		}),
	})

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(newMux(logger, receipts)); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func newMux(logger zerolog.Logger, receipts asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(taskLogger(logger))
	mux.Handle(notify.TypePurchaseReceipt, receipts)
	return mux
}

// taskLogger attaches a task-scoped logger to the handler context.
func taskLogger(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			l := logger.With().Str("task_type", t.Type()).Logger()
			if id, ok := asynq.GetTaskID(ctx); ok {
				l = l.With().Str("task_id", id).Logger()
			}
			if n, ok := asynq.GetRetryCount(ctx); ok && n > 0 {
				l = l.With().Int("retry", n).Logger()
			}
			return next.ProcessTask(l.WithContext(ctx), t)
		})
	}
}

func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return resilience.Backoff(retryBase, n+1, 0.2)
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	poolConfig.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(args...))
	os.Exit(1)
}
