package providers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/skynow/internal/weather"
)

// Default Open-Meteo endpoints.
const (
	DefaultOpenMeteoBaseURL       = "https://api.open-meteo.com/v1/forecast"
	DefaultOpenMeteoGeocodingURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultOpenMeteoAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
	DefaultOpenMeteoArchiveURL    = "https://archive-api.open-meteo.com/v1/archive"
)

const (
	openMeteoName = "openmeteo"

	openMeteoFields = "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m,weather_code"
	openMeteoTime   = "2006-01-02T15:04"

	forecastDays = 2
	forecastStep = 3
)

// OpenMeteoConfig configures the open composite provider.
type OpenMeteoConfig struct {
	BaseURL       string
	GeocodingURL  string
	AirQualityURL string
	ArchiveURL    string
}

// OpenMeteoProvider implements weather.Provider and weather.ArchiveProvider
// for Open-Meteo. Geocoding, forecast, air quality and archive are separate
// upstream documents.
type OpenMeteoProvider struct {
	endpoint
	cfg OpenMeteoConfig
	now func() time.Time
}

func NewOpenMeteoProvider(cfg OpenMeteoConfig, client ClientConfig) *OpenMeteoProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenMeteoBaseURL
	}
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = DefaultOpenMeteoGeocodingURL
	}
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = DefaultOpenMeteoAirQualityURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = DefaultOpenMeteoArchiveURL
	}
	return &OpenMeteoProvider{
		endpoint: newEndpoint(openMeteoName, client),
		cfg:      cfg,
		now:      time.Now,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return openMeteoName
}

// Geocode resolves place with the Open-Meteo geocoding API, taking the first result.
func (p *OpenMeteoProvider) Geocode(ctx context.Context, place string) (weather.Coordinates, error) {
	const op = "geocode"

	values := url.Values{}
	values.Set("name", place)
	values.Set("count", "5")
	values.Set("language", "en")
	values.Set("format", "json")

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := p.getJSON(ctx, op, p.cfg.GeocodingURL, values, &payload); err != nil {
		return weather.Coordinates{}, err
	}
	if len(payload.Results) == 0 {
		return weather.Coordinates{}, p.notFound(op, place)
	}

	first := payload.Results[0]
	return weather.Coordinates{
		Name:      first.Name,
		Country:   first.Country,
		Latitude:  first.Latitude,
		Longitude: first.Longitude,
	}, nil
}

type omCurrent struct {
	Time        string   `json:"time"`
	Temperature *float64 `json:"temperature_2m"`
	Humidity    *float64 `json:"relative_humidity_2m"`
	Pressure    *float64 `json:"surface_pressure"`
	WindSpeed   *float64 `json:"wind_speed_10m"`
	WeatherCode *int     `json:"weather_code"`
}

type omHourly struct {
	Time        []string   `json:"time"`
	Temperature []*float64 `json:"temperature_2m"`
	Humidity    []*float64 `json:"relative_humidity_2m"`
	Pressure    []*float64 `json:"surface_pressure"`
	WindSpeed   []*float64 `json:"wind_speed_10m"`
	WeatherCode []*int     `json:"weather_code"`
}

func coordQuery(at weather.Coordinates) url.Values {
	values := url.Values{}
	values.Set("latitude", formatCoord(at.Latitude))
	values.Set("longitude", formatCoord(at.Longitude))
	values.Set("timezone", "UTC")
	return values
}

func (p *OpenMeteoProvider) Current(ctx context.Context, at weather.Coordinates) (weather.Reading, error) {
	const op = "current"

	values := coordQuery(at)
	values.Set("current", openMeteoFields)
	values.Set("wind_speed_unit", "ms")

	var payload struct {
		Current *omCurrent `json:"current"`
	}
	if err := p.getJSON(ctx, op, p.cfg.BaseURL, values, &payload); err != nil {
		return weather.Reading{}, err
	}
	if payload.Current == nil {
		return weather.Reading{}, p.missing(op, "current")
	}

	reading := normalizeOpenMeteoCurrent(*payload.Current)
	reading.PM25 = p.airQuality(ctx, at)
	return reading, nil
}

// airQuality fetches PM2.5 for at. Failures leave the reading without it.
func (p *OpenMeteoProvider) airQuality(ctx context.Context, at weather.Coordinates) *float64 {
	values := url.Values{}
	values.Set("latitude", formatCoord(at.Latitude))
	values.Set("longitude", formatCoord(at.Longitude))
	values.Set("current", "pm2_5")

	var payload struct {
		Current *struct {
			PM25 *float64 `json:"pm2_5"`
		} `json:"current"`
	}
	if err := p.getJSON(ctx, "air_quality", p.cfg.AirQualityURL, values, &payload); err != nil {
		p.logger.Debug().Err(err).Msg("air quality unavailable")
		return nil
	}
	if payload.Current == nil {
		return nil
	}
	return payload.Current.PM25
}

// Forecast returns every third hourly point starting at the current hour.
func (p *OpenMeteoProvider) Forecast(ctx context.Context, at weather.Coordinates) ([]weather.Reading, error) {
	const op = "forecast"

	values := coordQuery(at)
	values.Set("hourly", openMeteoFields)
	values.Set("wind_speed_unit", "ms")
	values.Set("forecast_days", strconv.Itoa(forecastDays))

	var payload struct {
		Hourly *omHourly `json:"hourly"`
	}
	if err := p.getJSON(ctx, op, p.cfg.BaseURL, values, &payload); err != nil {
		return nil, err
	}
	if payload.Hourly == nil {
		return nil, p.missing(op, "hourly")
	}

	from := p.now().UTC().Truncate(time.Hour)
	upcoming := make([]weather.Reading, 0)
	for _, r := range normalizeOpenMeteoHourly(*payload.Hourly) {
		if !r.Timestamp.Before(from) {
			upcoming = append(upcoming, r)
		}
	}

	readings := make([]weather.Reading, 0, len(upcoming)/forecastStep+1)
	for i := 0; i < len(upcoming); i += forecastStep {
		readings = append(readings, upcoming[i])
	}
	return readings, nil
}

// Archive returns the hourly points recorded for the UTC day containing day.
func (p *OpenMeteoProvider) Archive(ctx context.Context, at weather.Coordinates, day time.Time) ([]weather.Reading, error) {
	const op = "archive"

	date := day.UTC().Format("2006-01-02")
	values := coordQuery(at)
	values.Set("start_date", date)
	values.Set("end_date", date)
	values.Set("hourly", openMeteoFields)
	values.Set("wind_speed_unit", "ms")

	var payload struct {
		Hourly *omHourly `json:"hourly"`
	}
	if err := p.getJSON(ctx, op, p.cfg.ArchiveURL, values, &payload); err != nil {
		return nil, err
	}
	if payload.Hourly == nil {
		return []weather.Reading{}, nil
	}
	return normalizeOpenMeteoHourly(*payload.Hourly), nil
}

// normalizeOpenMeteoCurrent maps the current block onto a Reading. Missing
// fields take their defaults.
func normalizeOpenMeteoCurrent(c omCurrent) weather.Reading {
	r := weather.Reading{
		Temperature: valueOr(c.Temperature, 0),
		Humidity:    valueOr(c.Humidity, 0),
		Pressure:    valueOr(c.Pressure, weather.DefaultPressureHpa),
		WindSpeed:   valueOr(c.WindSpeed, 0),
	}
	if c.WeatherCode != nil {
		r.Description = describeWeatherCode(*c.WeatherCode)
	}
	if ts, ok := parseOpenMeteoTime(c.Time); ok {
		r.Timestamp = ts
	}
	return r
}

// normalizeOpenMeteoHourly zips the hourly arrays into readings. Hours with an
// unparseable time or a null temperature are dropped.
func normalizeOpenMeteoHourly(h omHourly) []weather.Reading {
	at := func(values []*float64, i int, def float64) float64 {
		if i < len(values) {
			return valueOr(values[i], def)
		}
		return def
	}

	readings := make([]weather.Reading, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, ok := parseOpenMeteoTime(raw)
		if !ok || i >= len(h.Temperature) || h.Temperature[i] == nil {
			continue
		}
		r := weather.Reading{
			Timestamp:   ts,
			Temperature: *h.Temperature[i],
			Humidity:    at(h.Humidity, i, 0),
			Pressure:    at(h.Pressure, i, weather.DefaultPressureHpa),
			WindSpeed:   at(h.WindSpeed, i, 0),
		}
		if i < len(h.WeatherCode) && h.WeatherCode[i] != nil {
			r.Description = describeWeatherCode(*h.WeatherCode[i])
		}
		readings = append(readings, r)
	}
	return readings
}

func parseOpenMeteoTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if ts, err := time.ParseInLocation(openMeteoTime, raw, time.UTC); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), true
	}
	return time.Time{}, false
}

// WMO weather interpretation codes.
var weatherCodes = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	56: "light freezing drizzle",
	57: "dense freezing drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	66: "light freezing rain",
	67: "heavy freezing rain",
	71: "slight snow fall",
	73: "moderate snow fall",
	75: "heavy snow fall",
	77: "snow grains",
	80: "slight rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	85: "slight snow showers",
	86: "heavy snow showers",
	95: "thunderstorm",
	96: "thunderstorm with slight hail",
	99: "thunderstorm with heavy hail",
}

func describeWeatherCode(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "unknown"
}
