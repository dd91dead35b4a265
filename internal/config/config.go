// Package config loads process configuration from an optional YAML file and
// AURAFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "AURAFLOW"

// Config is the full process configuration.
type Config struct {
	OpenAI    OpenAI    `mapstructure:"openai"`
	Reddit    Reddit    `mapstructure:"reddit"`
	Stripe    Stripe    `mapstructure:"stripe"`
	Vercel    Vercel    `mapstructure:"vercel"`
	Product   Product   `mapstructure:"product"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Store     Store     `mapstructure:"store"`
	Retry     Retry     `mapstructure:"retry"`
	Log       Log       `mapstructure:"log"`
	Metrics   Metrics   `mapstructure:"metrics"`
	Tracing   Tracing   `mapstructure:"tracing"`
}

type OpenAI struct {
	APIKey  string `mapstructure:"api_key" validate:"required"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Model   string `mapstructure:"model"`
}

type Reddit struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	UserAgent    string `mapstructure:"user_agent" validate:"required"`
	Subreddit    string `mapstructure:"subreddit" validate:"required"`
	Limit        int    `mapstructure:"limit" validate:"min=1,max=100"`
}

type Stripe struct {
	APIKey            string `mapstructure:"api_key" validate:"required"`
	Currency          string `mapstructure:"currency" validate:"len=3"`
	MaxNetworkRetries int64  `mapstructure:"max_network_retries" validate:"min=0"`
}

type Vercel struct {
	Token  string `mapstructure:"token" validate:"required"`
	TeamID string `mapstructure:"team_id"`
}

type Product struct {
	PriceMinor  int64  `mapstructure:"price_minor" validate:"gt=0"`
	VenturesDir string `mapstructure:"ventures_dir" validate:"required"`
	TargetWords int    `mapstructure:"target_words" validate:"gt=0"`
}

type Scheduler struct {
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	Pacing       time.Duration `mapstructure:"pacing"` // negative disables pacing
	Concurrency  int           `mapstructure:"concurrency" validate:"min=1"`
	SeedWhenIdle bool          `mapstructure:"seed_when_idle"`
	LeaseTTL     time.Duration `mapstructure:"lease_ttl" validate:"gt=0"`
}

type Store struct {
	Backend     string `mapstructure:"backend" validate:"oneof=sqlite redis memory"`
	SQLitePath  string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisAddr   string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB     int    `mapstructure:"redis_db" validate:"min=0"`
	RedisPass   string `mapstructure:"redis_password"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type Retry struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"min=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"min=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"min=0"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type Metrics struct {
	// Addr serves /metrics and the ops endpoints when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

type Tracing struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter" validate:"oneof=stdout otlp"`
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Exporter otlp"`
}

// legacyEnv maps keys to the environment variable names used by earlier
// deployments, accepted alongside the AURAFLOW_ names.
var legacyEnv = map[string]string{
	"openai.api_key":       "OPENAI_API_KEY",
	"reddit.client_id":     "PRAW_CLIENT_ID",
	"reddit.client_secret": "PRAW_CLIENT_SECRET",
	"reddit.user_agent":    "PRAW_USER_AGENT",
	"stripe.api_key":       "STRIPE_API_KEY",
	"vercel.token":         "VERCEL_API_TOKEN",
	"vercel.team_id":       "VERCEL_TEAM_ID",
	"product.price_minor":  "VENTURE_PRODUCT_PRICE_CENTS",
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o")

	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.user_agent", "")
	v.SetDefault("reddit.subreddit", "SideProject")
	v.SetDefault("reddit.limit", 15)

	v.SetDefault("stripe.api_key", "")
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.max_network_retries", 2)

	v.SetDefault("vercel.token", "")
	v.SetDefault("vercel.team_id", "")

	v.SetDefault("product.price_minor", 999)
	v.SetDefault("product.ventures_dir", "ventures")
	v.SetDefault("product.target_words", 5000)

	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.pacing", 5*time.Second)
	v.SetDefault("scheduler.concurrency", 1)
	v.SetDefault("scheduler.seed_when_idle", true)
	v.SetDefault("scheduler.lease_ttl", 30*time.Minute)

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite_path", "db/auraflow.db")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_prefix", "auraflow:")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", time.Second)
	v.SetDefault("retry.max_backoff", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
}

// Bind prepares v to read AURAFLOW_* variables (dots become underscores)
// and the legacy names in legacyEnv.
func Bind(v *viper.Viper) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, EnvName(key), legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// EnvName returns the AURAFLOW_ environment variable for a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Load reads configFile (if not empty) and the environment into a validated
// Config. v must have been prepared with Bind.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	return load(v, configFile, false)
}

// LoadWithoutCredentials is Load for commands that only inspect the store;
// missing service credentials are not an error.
func LoadWithoutCredentials(v *viper.Viper, configFile string) (*Config, error) {
	return load(v, configFile, true)
}

func load(v *viper.Viper, configFile string, skipCredentials bool) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate(&cfg, skipCredentials); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// credentialSections hold the external service keys.
var credentialSections = []string{"openai.", "reddit.", "stripe.", "vercel."}

func isCredential(key string) bool {
	for _, prefix := range credentialSections {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Validate checks cfg and reports every offending key in one error.
func Validate(cfg *Config) error {
	return validate(cfg, false)
}

func validate(cfg *Config, skipCredentials bool) error {
	vd := validator.New(validator.WithRequiredStructEnabled())
	vd.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return name
	})

	err := vd.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing, invalid []string
	for _, fe := range verrs {
		// Namespace is "Config.openai.api_key"; drop the root.
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		switch fe.Tag() {
		case "required", "required_if":
			if skipCredentials && isCredential(key) {
				continue
			}
			missing = append(missing, fmt.Sprintf("%s (%s)", key, EnvName(key)))
		default:
			invalid = append(invalid, fmt.Sprintf("%s: failed %q", key, fe.Tag()))
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(invalid, ", ")))
	}
	return errors.Join(errs...)
}

var (
	ErrMissing = errors.New("missing required configuration")
	ErrInvalid = errors.New("invalid configuration")
)
