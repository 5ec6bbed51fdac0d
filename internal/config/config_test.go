package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":             "postgres://localhost/lavault",
		"REDIS_URL":                "redis://localhost:6379/0",
		"SESSION_SECRET":           "secret",
		"PUBLIC_BASE_URL":          "",
		"STRIPE_SECRET_KEY":        "",
		"CHECKOUT_CURRENCY":        "",
		"CHECKOUT_MAX_UNIT_AMOUNT": "",
		"PROJECT_CACHE_TTL":        "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, DefaultPublicBaseURL, cfg.PublicBaseURL)
	require.Equal(t, "/login", cfg.LoginPath)
	require.Equal(t, "brl", cfg.CheckoutCurrency)
	require.Equal(t, int64(99_999_999), cfg.CheckoutMaxUnitAmount)
	require.Equal(t, time.Duration(0), cfg.ProjectCacheTTL)
	require.False(t, cfg.StripeConfigured())
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadTrimsBaseURLAndReadsStripeKey(t *testing.T) {
	env := baseEnv()
	env["PUBLIC_BASE_URL"] = "https://lavault.example.com/"
	env["STRIPE_SECRET_KEY"] = "sk_test_123"
	env["CHECKOUT_CURRENCY"] = "USD"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "https://lavault.example.com", cfg.PublicBaseURL)
	require.True(t, cfg.StripeConfigured())
	require.Equal(t, "usd", cfg.CheckoutCurrency)
}

func TestLoadRequiresSessionSecret(t *testing.T) {
	env := baseEnv()
	env["SESSION_SECRET"] = ""
	_, err := LoadForTests(env)
	require.EqualError(t, err, "SESSION_SECRET is required")
}

func TestLoadRejectsNonPositiveCeiling(t *testing.T) {
	env := baseEnv()
	env["CHECKOUT_MAX_UNIT_AMOUNT"] = "0"
	_, err := LoadForTests(env)
	require.Error(t, err)
}
