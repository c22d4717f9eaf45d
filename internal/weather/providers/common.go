package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/skynow/internal/metrics"
	"github.com/i474232898/skynow/internal/weather"
)

const userAgent = "skynow/1.0"

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used when a ClientConfig leaves Backoff zero.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// ClientConfig bundles HTTP client, resilience and observability settings
// shared by every provider.
type ClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = DefaultBackoff
	}
	return c
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errClientError   = errors.New("client error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. 4xx answers other than 429 are not retried.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return nil, err
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			default:
				return nil, fmt.Errorf("%w: %d", errClientError, resp.StatusCode)
			}
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if errors.Is(err, errClientError) || attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// HTTPClientConfig is the subset of ClientConfig the request loop needs.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// endpoint is the per-provider plumbing shared by all its operations.
type endpoint struct {
	provider string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func newEndpoint(provider string, cfg ClientConfig) endpoint {
	cfg = cfg.withDefaults()
	return endpoint{
		provider: provider,
		httpCfg:  HTTPClientConfig{Client: cfg.Client, Backoff: cfg.Backoff},
		circuit:  newCircuitBreaker(provider),
		logger:   cfg.Logger.With().Str("provider", provider).Logger(),
		metrics:  cfg.Metrics,
	}
}

// getJSON fetches base?query and decodes the JSON body into target.
// Transport failures map to ErrProviderUnavailable and undecodable bodies
// to ErrNormalization.
func (e endpoint) getJSON(ctx context.Context, op, base string, query url.Values, target any) error {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := base
		if len(query) > 0 {
			u = fmt.Sprintf("%s?%s", base, query.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	start := time.Now()
	resp, err := doRequestWithResilience(ctx, e.httpCfg, e.circuit, buildRequest)
	if err != nil {
		e.metrics.ProviderRequest(e.provider, op, "unavailable")
		e.logger.Warn().Err(err).Str("op", op).Dur("elapsed", time.Since(start)).Msg("provider request failed")
		return weather.NewError(weather.ErrProviderUnavailable, op, e.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.metrics.ProviderRequest(e.provider, op, "unavailable")
		return weather.NewError(weather.ErrProviderUnavailable, op, e.provider, fmt.Errorf("read body: %w", err))
	}

	if err := json.Unmarshal(body, target); err != nil {
		e.metrics.ProviderRequest(e.provider, op, "malformed")
		e.logger.Warn().Err(err).Str("op", op).Msg("provider returned malformed JSON")
		return weather.NewError(weather.ErrNormalization, op, e.provider, err)
	}

	e.metrics.ProviderRequest(e.provider, op, "success")
	e.logger.Debug().Str("op", op).Dur("elapsed", time.Since(start)).Msg("provider request succeeded")
	return nil
}

func (e endpoint) missing(op, field string) error {
	e.metrics.ProviderRequest(e.provider, op, "malformed")
	return weather.NewError(weather.ErrNormalization, op, e.provider, fmt.Errorf("response has no %q section", field))
}

func (e endpoint) notFound(op, place string) error {
	return weather.NewError(weather.ErrLocationNotResolved, op, e.provider, fmt.Errorf("no match for %q", place))
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
