package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type OpenWeather struct {
	APIKey  string
	BaseURL string `validate:"omitempty,url"`
	GeoURL  string `validate:"omitempty,url"`
}

type OpenMeteo struct {
	BaseURL       string `validate:"omitempty,url"`
	GeocodingURL  string `validate:"omitempty,url"`
	AirQualityURL string `validate:"omitempty,url"`
	ArchiveURL    string `validate:"omitempty,url"`
}

type OpenAI struct {
	APIKey        string
	BaseURL       string        `validate:"required,url"`
	Model         string        `validate:"required"`
	FallbackModel string
	MaxTokens     int           `validate:"gt=0"`
	Temperature   float64       `validate:"gte=0,lte=2"`
	Timeout       time.Duration `validate:"gt=0"`
}

// Config is loaded once at startup and passed by value.
type Config struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	OpenWeather OpenWeather
	OpenMeteo   OpenMeteo
	// Failover also tries the other provider when the preferred one is unavailable.
	Failover bool

	HTTPTimeout        time.Duration `validate:"gt=0"`
	ProviderMaxRetries int           `validate:"gte=0,lte=10"`

	CacheTTL        time.Duration `validate:"gt=0"`
	StalenessWindow time.Duration `validate:"gt=0"`

	DBDriver string `validate:"oneof=memory sqlite mysql"`
	DBDSN    string `validate:"required_unless=DBDriver memory"`

	OpenAI OpenAI

	// Cities are refreshed every RefreshInterval; zero disables the job.
	Cities          []string
	RefreshInterval time.Duration `validate:"gte=0"`

	AlertMinTemp float64
	AlertMaxTemp float64 `validate:"gtfield=AlertMinTemp"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OPENWEATHER_API_KEY", "")
	v.SetDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("OPENWEATHER_GEO_URL", "https://api.openweathermap.org/geo/1.0")
	v.SetDefault("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("OPENMETEO_GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("OPENMETEO_AIR_QUALITY_URL", "https://air-quality-api.open-meteo.com/v1/air-quality")
	v.SetDefault("OPENMETEO_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive")
	v.SetDefault("WEATHER_FAILOVER", false)

	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("PROVIDER_MAX_RETRIES", 2)

	v.SetDefault("CACHE_TTL", 3600) // seconds
	v.SetDefault("STALENESS_WINDOW", "1h")

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_DSN", "skynow.db")

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_FALLBACK_MODEL", "gpt-3.5-turbo")
	v.SetDefault("OPENAI_MAX_TOKENS", 200)
	v.SetDefault("OPENAI_TEMPERATURE", 0.7)
	v.SetDefault("OPENAI_TIMEOUT", "30s")

	v.SetDefault("WEATHER_CITIES", "")
	v.SetDefault("REFRESH_INTERVAL", "30m")
	v.SetDefault("ALERT_MIN_TEMP", 10.0)
	v.SetDefault("ALERT_MAX_TEMP", 35.0)
}

// Load reads configuration from .env (when present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:      v.GetString("PORT"),
		LogLevel:  strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
		OpenWeather: OpenWeather{
			APIKey:  strings.TrimSpace(v.GetString("OPENWEATHER_API_KEY")),
			BaseURL: v.GetString("OPENWEATHER_BASE_URL"),
			GeoURL:  v.GetString("OPENWEATHER_GEO_URL"),
		},
		OpenMeteo: OpenMeteo{
			BaseURL:       v.GetString("OPENMETEO_BASE_URL"),
			GeocodingURL:  v.GetString("OPENMETEO_GEOCODING_URL"),
			AirQualityURL: v.GetString("OPENMETEO_AIR_QUALITY_URL"),
			ArchiveURL:    v.GetString("OPENMETEO_ARCHIVE_URL"),
		},
		Failover:           v.GetBool("WEATHER_FAILOVER"),
		HTTPTimeout:        v.GetDuration("HTTP_TIMEOUT"),
		ProviderMaxRetries: v.GetInt("PROVIDER_MAX_RETRIES"),
		CacheTTL:           time.Duration(v.GetInt("CACHE_TTL")) * time.Second,
		StalenessWindow:    v.GetDuration("STALENESS_WINDOW"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:              v.GetString("DB_DSN"),
		OpenAI: OpenAI{
			APIKey:        strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
			BaseURL:       v.GetString("OPENAI_BASE_URL"),
			Model:         v.GetString("OPENAI_MODEL"),
			FallbackModel: v.GetString("OPENAI_FALLBACK_MODEL"),
			MaxTokens:     v.GetInt("OPENAI_MAX_TOKENS"),
			Temperature:   v.GetFloat64("OPENAI_TEMPERATURE"),
			Timeout:       v.GetDuration("OPENAI_TIMEOUT"),
		},
		Cities:          splitList(v.GetString("WEATHER_CITIES")),
		RefreshInterval: v.GetDuration("REFRESH_INTERVAL"),
		AlertMinTemp:    v.GetFloat64("ALERT_MIN_TEMP"),
		AlertMaxTemp:    v.GetFloat64("ALERT_MAX_TEMP"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// splitList splits a comma list, dropping blanks and case-insensitive duplicates.
func splitList(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
