package providers

import "github.com/i474232898/skynow/internal/weather"

// Set is the provider wiring handed to the resolver.
type Set struct {
	Primary weather.Provider
	// Secondary is nil unless failover is enabled and a second source exists.
	Secondary weather.Provider
	Archive   weather.ArchiveProvider
}

// Select picks the commercial provider as primary when an API key is
// configured, otherwise Open-Meteo. Open-Meteo always serves the archive.
func Select(ow OpenWeatherConfig, om OpenMeteoConfig, client ClientConfig, failover bool) Set {
	open := NewOpenMeteoProvider(om, client)
	set := Set{Primary: open, Archive: open}

	if ow.APIKey == "" {
		return set
	}
	set.Primary = NewOpenWeatherProvider(ow, client)
	if failover {
		set.Secondary = open
	}
	return set
}

// Options converts the set into resolver options.
func (s Set) Options() []weather.Option {
	opts := []weather.Option{weather.WithArchive(s.Archive)}
	if s.Secondary != nil {
		opts = append(opts, weather.WithFallback(s.Secondary))
	}
	return opts
}
