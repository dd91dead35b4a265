package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/petrijr/auraflow"
	"github.com/petrijr/auraflow/internal/config"
	"github.com/petrijr/auraflow/internal/engine"
	"github.com/petrijr/auraflow/internal/persistence"
	"github.com/petrijr/auraflow/internal/telemetry"
	"github.com/petrijr/auraflow/pkg/api"
	"github.com/petrijr/auraflow/pkg/clients/openai"
	"github.com/petrijr/auraflow/pkg/clients/reddit"
	"github.com/petrijr/auraflow/pkg/clients/stripe"
	"github.com/petrijr/auraflow/pkg/clients/vercel"
	"github.com/petrijr/auraflow/pkg/stages"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	orch    api.Orchestrator
	metrics *telemetry.Metrics

	closers []func(context.Context) error
}

// errStagesNotConfigured is returned by the placeholder executors used by
// inspection commands, which never advance ventures.
var errStagesNotConfigured = errors.New("stages are not configured for this command")

// newApp loads configuration and builds the orchestrator. With live=false
// service credentials are optional and stage executors are placeholders.
func newApp(ctx context.Context, v *viper.Viper, configFile string, live bool) (*app, error) {
	load := config.LoadWithoutCredentials
	if live {
		load = config.Load
	}
	cfg, err := load(v, configFile)
	if err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(telemetry.LoggerConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	st := placeholderStages()
	observers := []api.Observer{api.NewLoggingObserver(logger)}
	if live {
		st = a.buildStages()

		a.metrics = telemetry.NewMetrics()
		observers = append(observers, a.metrics)

		if cfg.Tracing.Enabled {
			provider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
				Exporter: cfg.Tracing.Exporter,
				Endpoint: cfg.Tracing.Endpoint,
				Insecure: true,
			})
			if err != nil {
				_ = a.Close(ctx)
				return nil, err
			}
			a.closers = append(a.closers, provider.Shutdown)
			observers = append(observers, telemetry.NewTracing(provider))
		}
	}

	orch, err := engine.NewOrchestratorWithConfig(engine.Config{
		Persistence: store,
		Stages:      st,
		Observer:    api.NewCompositeObserver(observers...),
		Logger:      &logger,
		LeaseTTL:    cfg.Scheduler.LeaseTTL,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.orch = orch
	return a, nil
}

func (a *app) openStore(ctx context.Context) (persistence.Persistence, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case "sqlite":
		if dir := filepath.Dir(sc.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return persistence.Persistence{}, fmt.Errorf("create database directory: %w", err)
			}
		}
		db, err := persistence.OpenSQLite(sc.SQLitePath)
		if err != nil {
			return persistence.Persistence{}, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		store, err := persistence.NewSQLiteStore(db)
		if err != nil {
			return persistence.Persistence{}, err
		}
		return persistence.Persistence{Ventures: store, Events: store}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPass,
			DB:       sc.RedisDB,
		})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return persistence.Persistence{}, fmt.Errorf("connect to redis at %s: %w", sc.RedisAddr, err)
		}
		store := persistence.NewRedisStore(client, sc.RedisPrefix)
		return persistence.Persistence{Ventures: store, Events: store}, nil

	case "memory":
		store := persistence.NewInMemoryStore()
		return persistence.Persistence{Ventures: store, Events: store}, nil

	default:
		return persistence.Persistence{}, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

func (a *app) buildStages() api.Stages {
	cfg := a.cfg
	retry := auraflow.Retry(cfg.Retry.MaxAttempts).
		WithExponentialBackoff(cfg.Retry.InitialBackoff, 2, cfg.Retry.MaxBackoff).
		Policy()

	llm := openai.New(openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Retry:   retry,
		Logger:  a.logger,
	})
	feed := reddit.New(reddit.Config{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		Retry:        retry,
		Logger:       a.logger,
	})
	payments := stripe.New(stripe.Config{
		APIKey:            cfg.Stripe.APIKey,
		Currency:          cfg.Stripe.Currency,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
		Logger:            a.logger,
	})
	deployer := vercel.New(vercel.Config{
		Token:  cfg.Vercel.Token,
		TeamID: cfg.Vercel.TeamID,
		Retry:  retry,
		Logger: a.logger,
	})

	return api.Stages{
		Discovery: &stages.Discovery{
			Feed:      feed,
			Completer: llm,
			Source:    cfg.Reddit.Subreddit,
			Limit:     cfg.Reddit.Limit,
			Model:     cfg.OpenAI.Model,
			Logger:    a.logger,
		},
		Production: &stages.Production{
			Completer:   llm,
			Fs:          afero.NewOsFs(),
			VenturesDir: cfg.Product.VenturesDir,
			TargetWords: cfg.Product.TargetWords,
			Model:       cfg.OpenAI.Model,
			Logger:      a.logger,
		},
		Deployment: &stages.Deployment{
			Completer:  llm,
			Payments:   payments,
			Deployer:   deployer,
			PriceMinor: cfg.Product.PriceMinor,
			Model:      cfg.OpenAI.Model,
			Logger:     a.logger,
		},
	}
}

func placeholderStages() api.Stages {
	fail := api.StageFunc(func(context.Context, api.StageInput) (any, error) {
		return nil, errStagesNotConfigured
	})
	return api.Stages{Discovery: fail, Production: fail, Deployment: fail}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
