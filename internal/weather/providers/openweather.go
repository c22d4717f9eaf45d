package providers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/skynow/internal/weather"
)

// Default OpenWeatherMap endpoints.
const (
	DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"
	DefaultOpenWeatherGeoURL  = "https://api.openweathermap.org/geo/1.0"
)

const openWeatherName = "openweathermap"

// OpenWeatherConfig configures the commercial provider.
type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string
	GeoURL  string
}

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap.
type OpenWeatherProvider struct {
	endpoint
	apiKey  string
	baseURL string
	geoURL  string
}

var errMissingAPIKey = errors.New("api key is not configured")

func NewOpenWeatherProvider(cfg OpenWeatherConfig, client ClientConfig) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		endpoint: newEndpoint(openWeatherName, client),
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		geoURL:   strings.TrimRight(cfg.GeoURL, "/"),
	}
	if p.baseURL == "" {
		p.baseURL = DefaultOpenWeatherBaseURL
	}
	if p.geoURL == "" {
		p.geoURL = DefaultOpenWeatherGeoURL
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return openWeatherName
}

type owPlace struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Geocode resolves place with the direct geocoding endpoint, taking the first match.
func (p *OpenWeatherProvider) Geocode(ctx context.Context, place string) (weather.Coordinates, error) {
	const op = "geocode"
	if p.apiKey == "" {
		return weather.Coordinates{}, weather.NewError(weather.ErrProviderUnavailable, op, p.provider, errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("q", place)
	values.Set("limit", "5")
	values.Set("appid", p.apiKey)

	var places []owPlace
	if err := p.getJSON(ctx, op, p.geoURL+"/direct", values, &places); err != nil {
		return weather.Coordinates{}, err
	}
	if len(places) == 0 {
		return weather.Coordinates{}, p.notFound(op, place)
	}

	first := places[0]
	return weather.Coordinates{
		Name:      first.Name,
		Country:   first.Country,
		Latitude:  first.Lat,
		Longitude: first.Lon,
	}, nil
}

type owMain struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
	Pressure *float64 `json:"pressure"`
}

// owPoint is the shape shared by /weather and each /forecast list item.
type owPoint struct {
	Dt      int64   `json:"dt"`
	Main    *owMain `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (p *OpenWeatherProvider) query(at weather.Coordinates) url.Values {
	values := url.Values{}
	values.Set("lat", formatCoord(at.Latitude))
	values.Set("lon", formatCoord(at.Longitude))
	values.Set("units", "metric")
	values.Set("appid", p.apiKey)
	return values
}

func (p *OpenWeatherProvider) Current(ctx context.Context, at weather.Coordinates) (weather.Reading, error) {
	const op = "current"
	if p.apiKey == "" {
		return weather.Reading{}, weather.NewError(weather.ErrProviderUnavailable, op, p.provider, errMissingAPIKey)
	}

	var payload owPoint
	if err := p.getJSON(ctx, op, p.baseURL+"/weather", p.query(at), &payload); err != nil {
		return weather.Reading{}, err
	}

	reading, ok := normalizeOpenWeather(payload)
	if !ok {
		return weather.Reading{}, p.missing(op, "main")
	}
	return reading, nil
}

// Forecast returns the 3-hourly points, skipping items without a main section.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, at weather.Coordinates) ([]weather.Reading, error) {
	const op = "forecast"
	if p.apiKey == "" {
		return nil, weather.NewError(weather.ErrProviderUnavailable, op, p.provider, errMissingAPIKey)
	}

	var payload struct {
		List *[]owPoint `json:"list"`
	}
	if err := p.getJSON(ctx, op, p.baseURL+"/forecast", p.query(at), &payload); err != nil {
		return nil, err
	}
	if payload.List == nil {
		return nil, p.missing(op, "list")
	}

	readings := make([]weather.Reading, 0, len(*payload.List))
	for _, item := range *payload.List {
		if r, ok := normalizeOpenWeather(item); ok {
			readings = append(readings, r)
		}
	}
	if len(readings) == 0 && len(*payload.List) > 0 {
		return nil, p.missing(op, "list[].main")
	}
	if skipped := len(*payload.List) - len(readings); skipped > 0 {
		p.logger.Debug().Int("skipped", skipped).Msg("forecast items without main section")
	}
	return readings, nil
}

// normalizeOpenWeather maps an OpenWeatherMap document onto a Reading.
// Missing optional fields take their defaults; ok is false only when the
// main section is absent.
func normalizeOpenWeather(doc owPoint) (weather.Reading, bool) {
	if doc.Main == nil {
		return weather.Reading{}, false
	}

	r := weather.Reading{
		Temperature: valueOr(doc.Main.Temp, 0),
		Humidity:    valueOr(doc.Main.Humidity, 0),
		Pressure:    valueOr(doc.Main.Pressure, weather.DefaultPressureHpa),
	}
	if len(doc.Weather) > 0 {
		r.Description = doc.Weather[0].Description
		if r.Description == "" {
			r.Description = strings.ToLower(doc.Weather[0].Main)
		}
	}
	if doc.Wind != nil {
		r.WindSpeed = doc.Wind.Speed
	}
	if doc.Dt > 0 {
		r.Timestamp = time.Unix(doc.Dt, 0).UTC()
	}
	return r, true
}
