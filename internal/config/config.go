package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultPublicBaseURL is used for checkout redirect URLs when PUBLIC_BASE_URL is unset.
	DefaultPublicBaseURL = "https://free-lavault.vercel.app"
	// DefaultMaxUnitAmount is the largest charge, in minor units, accepted by the payment processor.
	DefaultMaxUnitAmount int64 = 99_999_999
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	PublicBaseURL      string
	LoginPath          string
	MigrateOnStart     bool

	SessionSecret     string
	SessionCookieName string
	SessionIssuer     string
	SessionAudience   string
	SessionClockSkew  time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeAPIURL        string
	StripeTimeout       time.Duration

	CheckoutCurrency      string
	CheckoutMaxUnitAmount int64
	CheckoutRateLimitMax  int
	CheckoutRateWindow    time.Duration
	ProjectCacheTTL       time.Duration
	IdempotencyTTL        time.Duration
	WebhookReplayTTL      time.Duration

	CircuitGatewayEnabled     bool
	CircuitGatewayMinRequests int
	CircuitGatewayFailureRate float64
	CircuitGatewayOpenFor     time.Duration

	SecurityHeadersEnabled bool
	SecurityHSTSEnabled    bool
	SecurityCSRFEnabled    bool
	SecurityBodyLimitBytes int64

	WorkerConcurrency int
	NotifyEmailFrom   string

	ServiceName         string
	ObsLogFormat        string
	ObsLogLevel         string
	ObsMetricsNamespace string
	ObsHTTPBuckets      string
	TracingExporter     string
	TracingEndpoint     string
	TracingSampleRatio  float64
	PprofEnabled        bool
	PprofUser           string
	PprofPass           string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PublicBaseURL:      strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), DefaultPublicBaseURL), "/"),
		LoginPath:          valueOrDefault(k.String("LOGIN_PATH"), "/login"),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START"), false),

		SessionSecret:     strings.TrimSpace(k.String("SESSION_SECRET")),
		SessionCookieName: valueOrDefault(k.String("SESSION_COOKIE_NAME"), "session-token"),
		SessionIssuer:     valueOrDefault(k.String("SESSION_ISSUER"), "lavault-web"),
		SessionAudience:   valueOrDefault(k.String("SESSION_AUDIENCE"), "lavault-api"),
		SessionClockSkew:  parseDuration(k.String("SESSION_CLOCK_SKEW"), "30s"),

		StripeSecretKey:     strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(k.String("STRIPE_WEBHOOK_SECRET")),
		StripeAPIURL:        strings.TrimSpace(k.String("STRIPE_API_URL")),
		StripeTimeout:       parseDuration(k.String("STRIPE_TIMEOUT"), "30s"),

		CheckoutCurrency:      strings.ToLower(valueOrDefault(k.String("CHECKOUT_CURRENCY"), "brl")),
		CheckoutMaxUnitAmount: parseInt64(k.String("CHECKOUT_MAX_UNIT_AMOUNT"), DefaultMaxUnitAmount),
		CheckoutRateLimitMax:  parseInt(k.String("CHECKOUT_RATE_LIMIT_MAX"), 10),
		CheckoutRateWindow:    parseDuration(k.String("CHECKOUT_RATE_LIMIT_WINDOW"), "1m"),
		ProjectCacheTTL:       parseDuration(k.String("PROJECT_CACHE_TTL"), "0s"),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		WebhookReplayTTL:      parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "72h"),

		CircuitGatewayEnabled:     parseBool(k.String("CIRCUIT_GATEWAY_ENABLED"), false),
		CircuitGatewayMinRequests: parseInt(k.String("CIRCUIT_GATEWAY_MIN_REQUESTS"), 10),
		CircuitGatewayFailureRate: parseFloat(k.String("CIRCUIT_GATEWAY_FAILURE_RATE"), 0.5),
		CircuitGatewayOpenFor:     parseDuration(k.String("CIRCUIT_GATEWAY_OPEN_FOR"), "30s"),

		SecurityHeadersEnabled: parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
		SecurityHSTSEnabled:    parseBool(k.String("SECURITY_HSTS_ENABLED"), false),
		SecurityCSRFEnabled:    parseBool(k.String("SECURITY_CSRF_ENABLED"), false),
		SecurityBodyLimitBytes: parseInt64(k.String("SECURITY_BODY_LIMIT_BYTES"), 64<<10),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		NotifyEmailFrom:   valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@lavault.app"),

		ServiceName:         valueOrDefault(k.String("SERVICE_NAME"), "lavault-api"),
		ObsLogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		ObsLogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		ObsMetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "lavault"),
		ObsHTTPBuckets:      k.String("OBS_HTTP_BUCKETS_MS"),
		TracingExporter:     valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "none"),
		TracingEndpoint:     k.String("OBS_TRACING_ENDPOINT"),
		TracingSampleRatio:  parseFloat(k.String("OBS_TRACING_SAMPLE_RATIO"), 1),
		PprofEnabled:        parseBool(k.String("PPROF_ENABLED"), false),
		PprofUser:           strings.TrimSpace(k.String("PPROF_BASIC_AUTH_USER")),
		PprofPass:           k.String("PPROF_BASIC_AUTH_PASS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}
	if cfg.CheckoutMaxUnitAmount <= 0 {
		return nil, errors.New("CHECKOUT_MAX_UNIT_AMOUNT must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// StripeConfigured reports whether a Stripe secret key is present.
func (c *Config) StripeConfigured() bool {
	return c != nil && c.StripeSecretKey != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
