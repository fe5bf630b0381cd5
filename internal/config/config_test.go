package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "reviews.events", cfg.NATS.Subject)
	assert.False(t, cfg.Reviews.AutoApprove)
	assert.Equal(t, 3, cfg.Rating.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Rating.InitialBackoff)
	assert.Equal(t, "@every 5m", cfg.Rating.ReconcileSchedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REVIEWS_AUTO_APPROVE", "true")
	t.Setenv("RATING_DEBOUNCE_WINDOW", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Reviews.AutoApprove)
	assert.Equal(t, 250*time.Millisecond, cfg.Rating.DebounceWindow)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CACHE_TTL_REVIEWS_LIST", "soon")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL_REVIEWS_LIST")
}

func TestLoad_InvalidRetries(t *testing.T) {
	t.Setenv("RATING_MAX_RETRIES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_GetDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable",
	}}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.GetDSN())
}
