// Package alerts raises temperature alerts for observed weather records.
package alerts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/skynow/internal/metrics"
	"github.com/i474232898/skynow/internal/weather"
)

// TypeWeather is the only alert type raised today.
const TypeWeather = "Weather"

// Default thresholds in °C.
const (
	DefaultMinTemp = 10.0
	DefaultMaxTemp = 35.0
	// duplicateDelta suppresses a new alert when an existing one for the
	// same city is within this many degrees.
	duplicateDelta = 1.0
)

// Alert is a raised temperature alert.
type Alert struct {
	ID          string    `json:"id"`
	City        string    `json:"city"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Temperature float64   `json:"temperatureC"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists alerts.
type Store interface {
	SaveAlert(ctx context.Context, a Alert) error
	// Alerts lists alerts for city (case-insensitive), newest first; an
	// empty city lists every alert.
	Alerts(ctx context.Context, city string) ([]Alert, error)
}

// Rule decides whether a record warrants an alert.
type Rule struct {
	MinTemp float64
	MaxTemp float64

	store   Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRule creates a Rule with the given thresholds.
func NewRule(store Store, minTemp, maxTemp float64, logger zerolog.Logger, m *metrics.Metrics) *Rule {
	return &Rule{
		MinTemp: minTemp,
		MaxTemp: maxTemp,
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Evaluate raises and stores an alert when rec is outside the thresholds and
// no alert with a similar temperature exists for the city. It returns the new
// alert, or nil when none was raised.
func (r *Rule) Evaluate(ctx context.Context, rec weather.Record) (*Alert, error) {
	if rec.Temperature >= r.MinTemp && rec.Temperature <= r.MaxTemp {
		return nil, nil
	}

	existing, err := r.store.Alerts(ctx, rec.City)
	if err != nil {
		return nil, fmt.Errorf("list alerts for %s: %w", rec.City, err)
	}
	for _, a := range existing {
		if a.Type == TypeWeather && math.Abs(a.Temperature-rec.Temperature) < duplicateDelta {
			r.logger.Debug().Str("city", rec.City).Msg("duplicate alert skipped")
			return nil, nil
		}
	}

	alert := Alert{
		ID:          uuid.NewString(),
		City:        rec.City,
		Type:        TypeWeather,
		Message:     Message(rec),
		Temperature: rec.Temperature,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("save alert for %s: %w", rec.City, err)
	}

	r.logger.Warn().Str("city", rec.City).Float64("temperature", rec.Temperature).Msg(alert.Message)
	r.metrics.AlertRaised(rec.City)
	return &alert, nil
}

// Message renders the alert text for rec.
func Message(rec weather.Record) string {
	msg := fmt.Sprintf("Alert in %s: Temperature = %.1f°C", rec.City, rec.Temperature)
	if rec.Description != "" {
		msg += ", " + rec.Description
	}
	return msg
}
