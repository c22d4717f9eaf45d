package weather

import (
	"strings"
	"time"

	"github.com/i474232898/skynow/internal/common"
)

// DefaultPressureHpa is used when a provider omits pressure.
const DefaultPressureHpa = 1013.0

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Coordinates is a geocoded position.
type Coordinates struct {
	Name      string  `json:"name,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Reading is the canonical field set a provider extracts from its own
// document shape. It carries no city; the resolver attaches one.
type Reading struct {
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
	Pressure    float64
	Description string
	WindSpeed   float64
	PM25        *float64
}

// Record is the canonical, provider-agnostic weather observation.
// Records are values; a refresh produces a new Record.
type Record struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperatureC"`
	Humidity    float64   `json:"humidityPercent"`
	Pressure    float64   `json:"pressureHpa"`
	Description string    `json:"description"`
	WindSpeed   float64   `json:"windSpeedMs"`
	PM25        *float64  `json:"pm25,omitempty"`
	Timestamp   time.Time `json:"timestamp"` // always UTC
}

// NewRecord builds a Record for city from a provider reading.
// A zero reading timestamp is replaced with at.
func NewRecord(city string, r Reading, at time.Time) Record {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = at
	}
	return Record{
		City:        city,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Pressure:    r.Pressure,
		Description: r.Description,
		WindSpeed:   r.WindSpeed,
		PM25:        copyFloat(r.PM25),
		Timestamp:   ts.UTC(),
	}
}

// Clone returns a copy of r that shares no memory with it.
func (r Record) Clone() Record {
	r.PM25 = copyFloat(r.PM25)
	return r
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Age reports how old the record is relative to now.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Condition derives a coarse condition from the textual description.
func (r Record) Condition() Condition {
	text := strings.ToLower(r.Description)
	switch {
	case text == "":
		return ConditionUnknown
	case common.HasAny(text, "thunder", "storm"):
		return ConditionStorm
	case common.HasAny(text, "snow", "sleet", "blizzard"):
		return ConditionSnow
	case common.HasAny(text, "rain", "shower", "drizzle"):
		return ConditionRain
	case common.HasAny(text, "fog", "mist", "haze"):
		return ConditionMist
	case common.HasAny(text, "cloud", "overcast"):
		return ConditionCloudy
	case common.HasAny(text, "clear", "sunny"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

// CityKey is the case-insensitive identity used by caches and stores.
func CityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// CacheKey derives the cache key for the current observation of city.
func CacheKey(city string) string {
	return "weather:" + CityKey(city)
}

// DayBounds returns [start-of-day, start-of-next-day) in UTC for date.
func DayBounds(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
