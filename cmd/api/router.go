package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/checkout"
	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/config"
	"github.com/noah-isme/backend-lavault/internal/health"
	"github.com/noah-isme/backend-lavault/internal/obs"
	"github.com/noah-isme/backend-lavault/internal/payment"
	"github.com/noah-isme/backend-lavault/internal/ratelimit"
	"github.com/noah-isme/backend-lavault/internal/security"
)

const webhookPrefix = "/api/v1/webhooks/"

// routes carries everything the router mounts. Nil members disable their route
// or middleware.
type routes struct {
	cfg         *config.Config
	logger      zerolog.Logger
	httpMetrics *obs.HTTPMetrics
	tracing     bool

	auth     auth.Middleware
	checkout *checkout.Handler
	webhook  http.HandlerFunc
	health   health.Handler
	limiter  *ratelimit.Limiter
	idem     *common.Idem
}

func newRouter(rt routes) http.Handler {
	cfg := rt.cfg
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RoutePatternMiddleware)
	if rt.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if rt.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: rt.httpMetrics}.Middleware)
	}
	r.Use(rt.auth.Authenticate)
	r.Use(obs.RequestLogger{Logger: rt.logger}.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeadersEnabled, EnableHSTS: cfg.SecurityHSTSEnabled}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.SecurityBodyLimitBytes, Exempt: []string{webhookPrefix}}.Middleware)
	if cfg.SecurityCSRFEnabled {
		r.Use(security.CSRF{
			TrustedOrigins: append([]string{cfg.PublicBaseURL}, cfg.CORSAllowedOrigins...),
			Exempt:         []string{webhookPrefix},
		}.Middleware)
	}

	r.Get("/health/live", rt.health.Live)
	r.Get("/health/ready", rt.health.Ready)
	if rt.httpMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug", profiler(cfg.PprofUser, cfg.PprofPass))
	}

	r.Group(func(g chi.Router) {
		g.Use(rt.auth.RequireSession(cfg.LoginPath))
		if rt.limiter != nil && cfg.CheckoutRateLimitMax > 0 {
			g.Use(ratelimit.Handler{
				Limiter: *rt.limiter,
				Config: ratelimit.Config{
					Key:    ratelimit.KeyByUserOrIP("checkout"),
					Window: cfg.CheckoutRateWindow,
					Max:    cfg.CheckoutRateLimitMax,
				},
				OnError: func(err error) {
					rt.logger.Warn().Err(err).Msg("checkout rate limiter unavailable")
				},
			}.Middleware)
		}
		if rt.idem != nil {
			g.Use(rt.idem.Middleware)
		}
		g.Post("/checkout", rt.checkout.Buy)
	})

	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/webhooks/stripe", rt.webhookHandler())
	})
	return r
}

func (rt routes) webhookHandler() http.HandlerFunc {
	if rt.webhook != nil {
		return rt.webhook
	}
	return payment.Webhook{}.Handle
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{cfg.PublicBaseURL}
	}
	return cfg.CORSAllowedOrigins
}

func profiler(user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	if user == "" {
		return http.NotFoundHandler()
	}
	return middleware.BasicAuth("restricted", map[string]string{user: pass})(middleware.Profiler())
}
