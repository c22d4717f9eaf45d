package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/skynow/internal/alerts"
	"github.com/i474232898/skynow/internal/weather"
)

const serviceName = "skynow"

var validate = validator.New()

// WeatherService is the resolver surface exposed over HTTP.
type WeatherService interface {
	Current(ctx context.Context, city string) (weather.Record, error)
	Forecast(ctx context.Context, city string) ([]weather.Record, error)
	Historical(ctx context.Context, city string, date time.Time) ([]weather.Record, error)
	Locate(ctx context.Context, place string) (weather.Coordinates, error)
}

// Replier answers chat messages.
type Replier interface {
	Reply(ctx context.Context, message, username string) string
}

// AlertLister lists raised alerts.
type AlertLister interface {
	Alerts(ctx context.Context, city string) ([]alerts.Alert, error)
}

// Deps are the collaborators behind the routes. Assistant, Alerts and
// Gatherer are optional; their routes are not registered when nil.
type Deps struct {
	Weather   WeatherService
	Assistant Replier
	Alerts    AlertLister
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger
	AccessLog bool
}

// NewApp builds the Fiber app with middleware, health check and API routes.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				deps.Logger.Error().Err(err).Str("path", c.Path()).Int("status", code).Msg("request failed")
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	if deps.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	RegisterRoutes(app, deps)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")
	svc := deps.Weather

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := svc.Current(c.UserContext(), q.City)
		if err != nil {
			return weatherError(err)
		}
		return c.JSON(currentResponse{Record: rec, Condition: rec.Condition()})
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := svc.Forecast(c.UserContext(), q.City)
		if err != nil {
			return weatherError(err)
		}
		return c.JSON(fiber.Map{
			"city":    q.City,
			"records": records,
		})
	})

	// overview returns current conditions and the forecast in one response.
	v1.Get("/weather/overview", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var (
			current  weather.Record
			forecast []weather.Record
		)
		g, ctx := errgroup.WithContext(c.UserContext())
		g.Go(func() (err error) {
			current, err = svc.Current(ctx, q.City)
			return err
		})
		g.Go(func() (err error) {
			forecast, err = svc.Forecast(ctx, q.City)
			return err
		})
		if err := g.Wait(); err != nil {
			return weatherError(err)
		}

		return c.JSON(fiber.Map{
			"city":     current.City,
			"current":  currentResponse{Record: current, Condition: current.Condition()},
			"forecast": forecast,
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := svc.Historical(c.UserContext(), req.City, req.day)
		if err != nil {
			return weatherError(err)
		}
		return c.JSON(fiber.Map{
			"city":    req.City,
			"date":    req.Date,
			"records": records,
		})
	})

	v1.Get("/locations", func(c *fiber.Ctx) error {
		q := placeQuery{Place: strings.TrimSpace(c.Query("place"))}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		at, err := svc.Locate(c.UserContext(), q.Place)
		if err != nil {
			return weatherError(err)
		}
		return c.JSON(fiber.Map{
			"place":       q.Place,
			"coordinates": at,
		})
	})

	if deps.Assistant != nil {
		v1.Post("/chat", func(c *fiber.Ctx) error {
			var req chatRequest
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
			req.Message = strings.TrimSpace(req.Message)
			if err := validate.Struct(req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}

			reply := deps.Assistant.Reply(c.UserContext(), req.Message, req.Username)
			return c.JSON(fiber.Map{"reply": reply})
		})
	}

	if deps.Alerts != nil {
		v1.Get("/alerts", func(c *fiber.Ctx) error {
			list, err := deps.Alerts.Alerts(c.UserContext(), c.Query("city"))
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to list alerts")
			}
			return c.JSON(fiber.Map{"alerts": list})
		})
	}
}

// weatherError maps resolver failure kinds onto HTTP statuses.
func weatherError(err error) error {
	switch weather.KindOf(err) {
	case weather.ErrLocationNotResolved:
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case weather.ErrNormalization:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case weather.ErrProviderUnavailable:
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}

type currentResponse struct {
	weather.Record
	Condition weather.Condition `json:"condition"`
}

// cityQuery holds query parameters for identifying a city.
type cityQuery struct {
	City string `validate:"required,max=100"`
}

func parseCityQuery(c *fiber.Ctx) (cityQuery, error) {
	q := cityQuery{City: strings.TrimSpace(c.Query("city"))}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

type placeQuery struct {
	Place string `validate:"required,max=100"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	City string `validate:"required,max=100"`
	Date string `validate:"required,datetime=2006-01-02"`

	day time.Time
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.City = strings.TrimSpace(c.Query("city"))
	h.Date = strings.TrimSpace(c.Query("date"))
	if err := validate.Struct(h); err != nil {
		return err
	}

	day, err := time.ParseInLocation("2006-01-02", h.Date, time.UTC)
	if err != nil {
		return errors.New("invalid date; use YYYY-MM-DD")
	}
	h.day = day
	return nil
}

type chatRequest struct {
	Message  string `json:"message" validate:"required,max=2000"`
	Username string `json:"username" validate:"max=100"`
}
