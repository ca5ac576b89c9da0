package maintenance

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/tanya/internal/observability"
	"github.com/harun/tanya/pkg/resilience"
)

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	SessionCount() int
}

// Sweeper runs periodic housekeeping: pruning stale rate-limiter buckets and
// refreshing breaker and session gauges. It never touches session data;
// sessions live until explicitly cleared.
type Sweeper struct {
	schedule string
	limiter  *resilience.RateLimiter
	breakers *resilience.BreakerRegistry
	sessions SessionCounter
	logger   zerolog.Logger

	cron *cron.Cron
}

// Config holds sweeper configuration.
type Config struct {
	// Schedule is a cron expression, including @every descriptors.
	Schedule string
	Limiter  *resilience.RateLimiter
	Breakers *resilience.BreakerRegistry
	Sessions SessionCounter
	Logger   zerolog.Logger
}

// New creates a sweeper.
func New(cfg Config) (*Sweeper, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session counter is required")
	}

	return &Sweeper{
		schedule: cfg.Schedule,
		limiter:  cfg.Limiter,
		breakers: cfg.Breakers,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
	}, nil
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Maintenance sweeper started")
	return nil
}

// Stop stops the sweeper, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Maintenance sweeper stopped")
}

// Sweep runs one housekeeping pass.
func (s *Sweeper) Sweep() {
	pruned := 0
	if s.limiter != nil {
		pruned = s.limiter.Prune()
	}

	if s.breakers != nil {
		for _, stats := range s.breakers.Stats() {
			observability.SetBreakerOpen(stats.Name, stats.State == resilience.StateOpen)
		}
	}

	active := s.sessions.SessionCount()
	observability.SetActiveSessions(active)

	s.logger.Debug().
		Int("pruned_rate_keys", pruned).
		Int("active_sessions", active).
		Msg("Maintenance sweep completed")
}
