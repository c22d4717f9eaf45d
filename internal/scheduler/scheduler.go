package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/skynow/internal/alerts"
	"github.com/i474232898/skynow/internal/weather"
)

const (
	defaultInterval = 30 * time.Minute
	cityTimeout     = 30 * time.Second
	maxConcurrent   = 4
)

// Refresher resolves the current observation for a city.
type Refresher interface {
	Current(ctx context.Context, city string) (weather.Record, error)
}

// Evaluator raises alerts for observed records.
type Evaluator interface {
	Evaluate(ctx context.Context, rec weather.Record) (*alerts.Alert, error)
}

// Scheduler periodically refreshes weather for configured cities and runs
// the alert rule over the results.
type Scheduler struct {
	scheduler *gocron.Scheduler
	resolver  Refresher
	rule      Evaluator
	cities    []string
	interval  time.Duration
	logger    zerolog.Logger
}

// New creates a new Scheduler. rule may be nil to skip alerting.
func New(cities []string, interval time.Duration, resolver Refresher, rule Evaluator, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		resolver:  resolver,
		rule:      rule,
		cities:    cities,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		s.logger.Info().Msg("no cities configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("refresh job finished with failures")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh job: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Strs("cities", s.cities).Msg("refresh job scheduled")
	return nil
}

// RunOnce refreshes every city once. One city failing does not stop the
// others; all failures are joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.logger.Debug().Int("cities", len(s.cities)).Msg("running weather refresh job")

	var (
		mu       sync.Mutex
		failures []error
	)
	fail := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for _, city := range s.cities {
		city := city
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, cityTimeout)
			defer cancel()

			rec, err := s.resolver.Current(cctx, city)
			if err != nil {
				s.logger.Warn().Err(err).Str("city", city).Msg("refresh failed")
				fail(fmt.Errorf("%s: %w", city, err))
				return nil
			}
			if s.rule == nil {
				return nil
			}
			if _, err := s.rule.Evaluate(cctx, rec); err != nil {
				s.logger.Error().Err(err).Str("city", city).Msg("alert evaluation failed")
				fail(fmt.Errorf("%s: %w", city, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug().Int("failures", len(failures)).Msg("completed weather refresh job")
	return errors.Join(failures...)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
