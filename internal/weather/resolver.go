package weather

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/skynow/internal/metrics"
)

const (
	// DefaultStalenessWindow is the maximum age of a stored record that is
	// still served without contacting a provider.
	DefaultStalenessWindow = time.Hour
	// DefaultCacheTTL is the lifetime of a cache-fill.
	DefaultCacheTTL = time.Hour
)

// Resolver answers current, forecast and historical queries by consulting
// the cache, the record store and the providers, in that order.
type Resolver struct {
	provider Provider
	fallback Provider
	archive  ArchiveProvider
	cache    Cache
	store    Store

	staleness time.Duration
	cacheTTL  time.Duration
	horizon   int

	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback sets a secondary provider tried when the primary one is
// unavailable.
func WithFallback(p Provider) Option {
	return func(r *Resolver) { r.fallback = p }
}

// WithArchive sets the provider used for dates missing from the store.
func WithArchive(a ArchiveProvider) Option {
	return func(r *Resolver) { r.archive = a }
}

// WithStalenessWindow overrides DefaultStalenessWindow.
func WithStalenessWindow(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.staleness = d
		}
	}
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.cacheTTL = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a Resolver. provider, cache and store must be non-nil.
func NewResolver(provider Provider, cache Cache, store Store, opts ...Option) *Resolver {
	r := &Resolver{
		provider:  provider,
		cache:     cache,
		store:     store,
		staleness: DefaultStalenessWindow,
		cacheTTL:  DefaultCacheTTL,
		horizon:   ForecastHorizon,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the current observation for city.
//
// A cache hit is returned as is. On a miss, a stored record younger than the
// staleness window is re-cached and returned. Otherwise the provider is
// called, and the new record is persisted and then cached.
func (r *Resolver) Current(ctx context.Context, city string) (Record, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Record{}, NewError(ErrLocationNotResolved, "current", "", errors.New("empty city"))
	}

	key := CacheKey(city)
	if rec, ok := r.cache.Get(key); ok {
		r.logger.Debug().Str("city", city).Msg("current weather served from cache")
		r.metrics.ResolverLookup("current", metrics.SourceCache)
		return rec.Clone(), nil
	}

	now := r.now().UTC()

	latest, found, err := r.store.FindLatest(ctx, city)
	switch {
	case err != nil:
		// A failed read is treated as a miss.
		r.logger.Warn().Err(err).Str("city", city).Msg("record store lookup failed")
	case found && latest.Age(now) < r.staleness:
		r.cache.Put(key, latest.Clone(), r.cacheTTL)
		r.logger.Debug().Str("city", city).Dur("age", latest.Age(now)).Msg("current weather served from store")
		r.metrics.ResolverLookup("current", metrics.SourceStore)
		return latest, nil
	}

	var reading Reading
	err = r.withProviders(ctx, "current", func(p Provider) error {
		at, err := p.Geocode(ctx, city)
		if err != nil {
			return err
		}
		reading, err = p.Current(ctx, at)
		return err
	})
	if err != nil {
		return Record{}, err
	}

	reading.Timestamp = now
	rec := NewRecord(city, reading, now)

	if err := r.store.Save(ctx, rec); err != nil {
		// Cache-fill only follows a successful save.
		r.logger.Error().Err(err).Str("city", city).Msg("failed to persist weather record; skipping cache-fill")
	} else {
		r.cache.Put(key, rec.Clone(), r.cacheTTL)
	}

	r.logger.Info().Str("city", city).Float64("temperature", rec.Temperature).Msg("fetched current weather from provider")
	r.metrics.ResolverLookup("current", metrics.SourceProvider)
	return rec, nil
}

// Forecast always asks the provider and returns at most ForecastHorizon
// records ordered by timestamp.
func (r *Resolver) Forecast(ctx context.Context, city string) ([]Record, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, NewError(ErrLocationNotResolved, "forecast", "", errors.New("empty city"))
	}

	var points []Reading
	err := r.withProviders(ctx, "forecast", func(p Provider) error {
		at, err := p.Geocode(ctx, city)
		if err != nil {
			return err
		}
		points, err = p.Forecast(ctx, at)
		return err
	})
	if err != nil {
		return nil, err
	}

	records := forecastRecords(city, points, r.horizon, r.now().UTC())
	r.logger.Debug().Str("city", city).Int("points", len(records)).Msg("fetched forecast")
	r.metrics.ResolverLookup("forecast", metrics.SourceProvider)
	return records, nil
}

// Historical returns the records observed for city on the UTC day of date.
//
// The store is authoritative: when it has records for the day they are
// returned without a provider call. Otherwise the archive provider's best
// point for the day is persisted and returned. An empty, non-nil slice
// means no data exists for that day, which is always the case for a day
// after the current UTC day.
func (r *Resolver) Historical(ctx context.Context, city string, date time.Time) ([]Record, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, NewError(ErrLocationNotResolved, "historical", "", errors.New("empty city"))
	}

	start, end := DayBounds(date)

	records, err := r.store.FindInRange(ctx, city, start, end)
	if err != nil {
		r.logger.Warn().Err(err).Str("city", city).Time("day", start).Msg("record store range query failed")
	} else if len(records) > 0 {
		r.metrics.ResolverLookup("historical", metrics.SourceStore)
		return records, nil
	}

	// Nothing has been observed for a day that has not started yet.
	today, _ := DayBounds(r.now())
	if r.archive == nil || start.After(today) {
		r.metrics.ResolverLookup("historical", metrics.SourceNone)
		return []Record{}, nil
	}

	at, err := r.archive.Geocode(ctx, city)
	if err != nil {
		return nil, err
	}
	points, err := r.archive.Archive(ctx, at, start)
	if err != nil {
		return nil, err
	}

	best, ok := bestArchivePoint(points, start, end)
	if !ok {
		r.logger.Info().Str("city", city).Time("day", start).Msg("archive has no data for day")
		r.metrics.ResolverLookup("historical", metrics.SourceNone)
		return []Record{}, nil
	}

	rec := NewRecord(city, best, start)
	if err := r.store.Save(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("city", city).Msg("failed to persist archive record")
	}

	r.metrics.ResolverLookup("historical", metrics.SourceArchive)
	return []Record{rec}, nil
}

// Locate geocodes place with the configured provider.
func (r *Resolver) Locate(ctx context.Context, place string) (Coordinates, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return Coordinates{}, NewError(ErrLocationNotResolved, "geocode", "", errors.New("empty place"))
	}

	var at Coordinates
	err := r.withProviders(ctx, "geocode", func(p Provider) error {
		var err error
		at, err = p.Geocode(ctx, place)
		return err
	})
	return at, err
}

// withProviders runs fn against the primary provider and, when it is
// unavailable and a fallback is configured, against the fallback.
func (r *Resolver) withProviders(ctx context.Context, op string, fn func(Provider) error) error {
	err := fn(r.provider)
	if err == nil || r.fallback == nil || !errors.Is(err, ErrProviderUnavailable) || ctx.Err() != nil {
		return err
	}

	r.logger.Warn().Err(err).
		Str("op", op).
		Str("primary", r.provider.Name()).
		Str("fallback", r.fallback.Name()).
		Msg("primary provider unavailable; trying fallback")
	return fn(r.fallback)
}
