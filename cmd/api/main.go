package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/checkout"
	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/config"
	"github.com/noah-isme/backend-lavault/internal/db"
	dbgen "github.com/noah-isme/backend-lavault/internal/db/gen"
	"github.com/noah-isme/backend-lavault/internal/health"
	"github.com/noah-isme/backend-lavault/internal/notify"
	"github.com/noah-isme/backend-lavault/internal/obs"
	"github.com/noah-isme/backend-lavault/internal/payment"
	"github.com/noah-isme/backend-lavault/internal/project"
	"github.com/noah-isme/backend-lavault/internal/ratelimit"
	"github.com/noah-isme/backend-lavault/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.ObsLogFormat, cfg.ObsLogLevel).With().
		Str("service", cfg.ServiceName).
		Str("env", cfg.AppEnv).
		Logger()

	obs.MustRegisterDomainMetrics(cfg.ObsMetricsNamespace, nil)
	httpMetrics := obs.NewHTTPMetrics(cfg.ObsMetricsNamespace, obs.ParseBucketsCSV(cfg.ObsHTTPBuckets), nil)

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:   cfg.ServiceName,
		Endpoint:      cfg.TracingEndpoint,
		Exporter:      cfg.TracingExporter,
		SamplingRatio: cfg.TracingSampleRatio,
		Environment:   cfg.AppEnv,
	})
	tracing := err == nil && cfg.TracingExporter != "none"
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool := mustPool(ctx, cfg, logger)
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	queries := dbgen.New(pool)

	authService, err := auth.NewService(auth.Config{
		Secret:    cfg.SessionSecret,
		Issuer:    cfg.SessionIssuer,
		Audience:  cfg.SessionAudience,
		ClockSkew: cfg.SessionClockSkew,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	projects := project.NewCachedStore(project.NewPGStore(pool), redisClient, cfg.ProjectCacheTTL)

	checkoutSvc, err := checkout.NewService(checkout.Config{
		Store:         projects,
		Gateway:       newGateway(cfg, logger),
		BaseURL:       cfg.PublicBaseURL,
		Currency:      cfg.CheckoutCurrency,
		MaxUnitAmount: cfg.CheckoutMaxUnitAmount,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout service")
	}

	connOpt, err := notify.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("asynq redis options")
	}
	taskClient := asynq.NewClient(connOpt)
	defer func() { _ = taskClient.Close() }()
	webhook := payment.Webhook{
		Secret:    cfg.StripeWebhookSecret,
		Purchases: payment.PGPurchases{Q: queries},
		Notifier:  notify.Enqueuer{Client: taskClient},
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
	}

	handler := newRouter(routes{
		cfg:         cfg,
		logger:      logger,
		httpMetrics: httpMetrics,
		tracing:     tracing,
		auth:        auth.Middleware{Service: authService, SessionCookie: cfg.SessionCookieName},
		checkout:    checkout.NewHandler(checkoutSvc, cfg.LoginPath),
		webhook:     webhook.Handle,
		health: health.Handler{Probes: map[string]health.Probe{
			"db":    health.PoolProbe(pool),
			"redis": health.RedisProbe(redisClient),
		}},
		limiter: &ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		idem:    &common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, stopCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopCancel()

	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("stripe", cfg.StripeConfigured()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-stop.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func mustPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ServiceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

// newGateway returns nil when no Stripe key is configured; checkout then
// reports the missing configuration per request.
func newGateway(cfg *config.Config, logger zerolog.Logger) payment.Gateway {
	stripeGateway, err := payment.NewStripe(payment.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		APIURL:    cfg.StripeAPIURL,
		Timeout:   cfg.StripeTimeout,
		Logger:    logger,
	})
	if errors.Is(err, payment.ErrMissingSecretKey) {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set; checkout will fail until configured")
		return nil
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise stripe")
	}
	if !cfg.CircuitGatewayEnabled {
		return stripeGateway
	}
	breaker := resilience.NewBreaker(cfg.CircuitGatewayMinRequests, cfg.CircuitGatewayFailureRate, cfg.CircuitGatewayOpenFor).
		WithTarget("stripe").
		WithLogger(logger)
	return payment.BreakerGateway{Next: stripeGateway, Breaker: breaker}
}
