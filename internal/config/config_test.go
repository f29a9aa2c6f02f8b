package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT", "")
	t.Setenv("FRONTEND_URL", "")
	t.Setenv("SUBSCRIPTION_PRICE_CENTS", "")

	cfg := Load()

	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, int64(50000), cfg.SubscriptionPriceCents)
	assert.Equal(t, "eur", cfg.SubscriptionCurrency)
	assert.Equal(t, 30, cfg.LogRetentionDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("FRONTEND_URL", "https://links.example.com/")
	t.Setenv("SUBSCRIPTION_CURRENCY", "USD")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_ACCESS_EXPIRY", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "https://links.example.com", cfg.FrontendURL)
	assert.Equal(t, "usd", cfg.SubscriptionCurrency)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
