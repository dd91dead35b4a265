package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearLegacy hides any legacy variables set in the host environment.
func clearLegacy(t *testing.T) {
	t.Helper()
	for _, name := range legacyEnv {
		t.Setenv(name, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AURAFLOW_OPENAI_API_KEY", "sk-test")
	t.Setenv("AURAFLOW_REDDIT_CLIENT_ID", "id")
	t.Setenv("AURAFLOW_REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("AURAFLOW_REDDIT_USER_AGENT", "auraflow-test")
	t.Setenv("AURAFLOW_STRIPE_API_KEY", "sk_test_stripe")
	t.Setenv("AURAFLOW_VERCEL_TOKEN", "vercel-token")
}

func load(t *testing.T, file string) (*Config, error) {
	t.Helper()
	v := viper.New()
	require.NoError(t, Bind(v))
	return Load(v, file)
}

func TestLoad_Defaults(t *testing.T) {
	clearLegacy(t)
	setRequired(t)

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, int64(999), cfg.Product.PriceMinor)
	assert.Equal(t, "ventures", cfg.Product.VenturesDir)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Pacing)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "db/auraflow.db", cfg.Store.SQLitePath)
	assert.Equal(t, "SideProject", cfg.Reddit.Subreddit)
	assert.Equal(t, 15, cfg.Reddit.Limit)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("PRAW_CLIENT_ID", "id")
	t.Setenv("PRAW_CLIENT_SECRET", "secret")
	t.Setenv("PRAW_USER_AGENT", "ua")
	t.Setenv("STRIPE_API_KEY", "sk_legacy")
	t.Setenv("VERCEL_API_TOKEN", "tok")
	t.Setenv("VERCEL_TEAM_ID", "team_1")
	t.Setenv("VENTURE_PRODUCT_PRICE_CENTS", "1999")

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "sk-legacy", cfg.OpenAI.APIKey)
	assert.Equal(t, "team_1", cfg.Vercel.TeamID)
	assert.Equal(t, int64(1999), cfg.Product.PriceMinor)
}

func TestLoad_PrefixedNameWins(t *testing.T) {
	clearLegacy(t)
	setRequired(t)
	t.Setenv("OPENAI_API_KEY", "sk-legacy")

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoad_MissingKeysAreListed(t *testing.T) {
	clearLegacy(t)
	t.Setenv("AURAFLOW_OPENAI_API_KEY", "sk-test")

	_, err := load(t, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "stripe.api_key (AURAFLOW_STRIPE_API_KEY)")
	assert.Contains(t, err.Error(), "vercel.token")
	assert.Contains(t, err.Error(), "reddit.client_id")
	assert.NotContains(t, err.Error(), "openai.api_key")
}

func TestLoad_RedisBackendNeedsAddr(t *testing.T) {
	setRequired(t)
	t.Setenv("AURAFLOW_STORE_BACKEND", "redis")

	_, err := load(t, "")
	require.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "store.redis_addr")

	t.Setenv("AURAFLOW_STORE_REDIS_ADDR", "localhost:6379")
	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
}

func TestLoad_InvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("AURAFLOW_STORE_BACKEND", "postgres")
	t.Setenv("AURAFLOW_LOG_LEVEL", "loud")

	_, err := load(t, "")
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "store.backend")
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoad_File(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "auraflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
product:
  price_minor: 2500
scheduler:
  interval: 10m
  concurrency: 3
log:
  format: console
`), 0o644))

	cfg, err := load(t, path)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), cfg.Product.PriceMinor)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 3, cfg.Scheduler.Concurrency)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	setRequired(t)
	_, err := load(t, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "AURAFLOW_STORE_REDIS_ADDR", EnvName("store.redis_addr"))
}

func TestLoadWithoutCredentials(t *testing.T) {
	v := viper.New()
	require.NoError(t, Bind(v))

	cfg, err := LoadWithoutCredentials(v, "")
	require.NoError(t, err)
	assert.Empty(t, cfg.OpenAI.APIKey)

	t.Setenv("AURAFLOW_STORE_BACKEND", "redis")
	_, err = LoadWithoutCredentials(v, "")
	require.ErrorIs(t, err, ErrMissing)
}
