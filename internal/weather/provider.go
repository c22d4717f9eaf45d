package weather

import (
	"context"
	"time"
)

// Geocoder resolves a place name to coordinates. Implementations return an
// error of kind ErrLocationNotResolved when nothing matches and pick the
// first candidate when several do.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (Coordinates, error)
}

// Provider abstracts a weather data source (e.g. OpenWeatherMap, Open-Meteo).
type Provider interface {
	Geocoder
	Name() string
	Current(ctx context.Context, at Coordinates) (Reading, error)
	// Forecast returns upcoming points ordered by timestamp ascending.
	Forecast(ctx context.Context, at Coordinates) ([]Reading, error)
}

// ArchiveProvider serves past dates. Archive returns every point the
// provider has for the UTC day containing day; an empty slice is not an error.
type ArchiveProvider interface {
	Geocoder
	Name() string
	Archive(ctx context.Context, at Coordinates, day time.Time) ([]Reading, error)
}

// Cache is the contract for the TTL key/value accelerator in front of the
// store. A miss is reported through the boolean, never as an error.
type Cache interface {
	Get(key string) (Record, bool)
	Put(key string, rec Record, ttl time.Duration)
}

// Store is the append-only history of observed records.
type Store interface {
	// FindLatest returns the newest record for city; ok is false when none exists.
	FindLatest(ctx context.Context, city string) (rec Record, ok bool, err error)
	// FindInRange returns records with from <= ts < to, ascending by timestamp.
	FindInRange(ctx context.Context, city string, from, to time.Time) ([]Record, error)
	Save(ctx context.Context, rec Record) error
}
