package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/i474232898/skynow/internal/alerts"
	"github.com/i474232898/skynow/internal/assistant"
	"github.com/i474232898/skynow/internal/cache"
	"github.com/i474232898/skynow/internal/completion"
	"github.com/i474232898/skynow/internal/config"
	"github.com/i474232898/skynow/internal/metrics"
	"github.com/i474232898/skynow/internal/scheduler"
	"github.com/i474232898/skynow/internal/store"
	"github.com/i474232898/skynow/internal/weather"
	"github.com/i474232898/skynow/internal/weather/providers"
)

type recordStore interface {
	weather.Store
	alerts.Store
}

// application holds the wired components shared by every command.
type application struct {
	cfg      config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry

	store     recordStore
	closer    func() error
	closed    bool
	resolver  *weather.Resolver
	completer *completion.Client
	assistant *assistant.Assistant
	rule      *alerts.Rule
	scheduler *scheduler.Scheduler
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "skynow").Logger()
}

func openStore(cfg config.Config) (recordStore, func() error, error) {
	if cfg.DBDriver == config.DriverMemory {
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	st, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func newApplication(cfg config.Config, logger zerolog.Logger) (*application, error) {
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	st, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	clientCfg := providers.ClientConfig{
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.ProviderMaxRetries,
			InitialInterval: providers.DefaultBackoff.InitialInterval,
			MaxInterval:     providers.DefaultBackoff.MaxInterval,
		},
		Logger:  logger.With().Str("component", "provider").Logger(),
		Metrics: m,
	}
	set := providers.Select(
		providers.OpenWeatherConfig{
			APIKey:  cfg.OpenWeather.APIKey,
			BaseURL: cfg.OpenWeather.BaseURL,
			GeoURL:  cfg.OpenWeather.GeoURL,
		},
		providers.OpenMeteoConfig{
			BaseURL:       cfg.OpenMeteo.BaseURL,
			GeocodingURL:  cfg.OpenMeteo.GeocodingURL,
			AirQualityURL: cfg.OpenMeteo.AirQualityURL,
			ArchiveURL:    cfg.OpenMeteo.ArchiveURL,
		},
		clientCfg,
		cfg.Failover,
	)
	logger.Info().Str("primary", set.Primary.Name()).Bool("failover", set.Secondary != nil).Msg("weather providers selected")

	opts := append(set.Options(),
		weather.WithStalenessWindow(cfg.StalenessWindow),
		weather.WithCacheTTL(cfg.CacheTTL),
		weather.WithLogger(logger.With().Str("component", "resolver").Logger()),
		weather.WithMetrics(m),
	)
	resolver := weather.NewResolver(set.Primary, cache.NewMemory[weather.Record](cfg.CacheTTL), st, opts...)

	completer := completion.New(completion.Config{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		FallbackModel: cfg.OpenAI.FallbackModel,
		MaxTokens:     cfg.OpenAI.MaxTokens,
		Temperature:   cfg.OpenAI.Temperature,
		Timeout:       cfg.OpenAI.Timeout,
	},
		completion.WithLogger(logger.With().Str("component", "completion").Logger()),
		completion.WithMetrics(m),
	)

	rule := alerts.NewRule(st, cfg.AlertMinTemp, cfg.AlertMaxTemp, logger.With().Str("component", "alerts").Logger(), m)

	return &application{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		store:     st,
		closer:    closer,
		resolver:  resolver,
		completer: completer,
		assistant: assistant.New(resolver, completer, logger.With().Str("component", "assistant").Logger()),
		rule:      rule,
		scheduler: scheduler.New(cfg.Cities, cfg.RefreshInterval, resolver, rule, logger.With().Str("component", "scheduler").Logger()),
	}, nil
}

// Close releases the store. It is safe to call more than once.
func (a *application) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if err := a.closer(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close store")
	}
}
