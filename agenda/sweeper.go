package agenda

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the cleanup twice a day
const DefaultSweepSchedule = "@every 12h"

// sweepTimeout bounds a single sweep run
const sweepTimeout = 5 * time.Minute

// Sweeper runs Service.Sweep on a cron schedule
type Sweeper struct {
	mu       sync.Mutex
	service  *Service
	schedule string
	parser   cron.Parser
	c        *cron.Cron
	logger   zerolog.Logger
}

// NewSweeper validates schedule and returns a stopped sweeper. Standard
// five-field expressions and descriptors such as "@every 12h" are accepted.
func NewSweeper(service *Service, schedule string, logger zerolog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{
		service:  service,
		schedule: schedule,
		parser:   parser,
		logger:   logger,
	}, nil
}

// Start schedules the sweep; ctx cancels in-flight runs
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(s.service.Location()))
	if _, err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	c.Start()
	s.c = c

	s.logger.Info().Str("schedule", s.schedule).Msg("cleanup sweeper started")
	return nil
}

// RunOnce performs one sweep and logs its outcome
func (s *Sweeper) RunOnce(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	deleted, err := s.service.Sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("cleanup sweep failed")
	}
	return deleted
}

// Stop stops scheduling and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info().Msg("cleanup sweeper stopped")
}
