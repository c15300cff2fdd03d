package subscription

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/metrics"
)

// Sweeper periodically deactivates subscriptions whose end date has passed.
type Sweeper struct {
	cron     *cron.Cron
	enforcer *Enforcer
}

// NewSweeper schedules the sweep on schedule, a cron expression or "@every" descriptor.
func NewSweeper(enforcer *Enforcer, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(),
		enforcer: enforcer,
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one deactivation pass.
func (s *Sweeper) Sweep() {
	n, err := s.enforcer.DeactivateExpired(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("subscription sweep failed")
		return
	}
	if n > 0 {
		metrics.SubscriptionsExpired.Add(float64(n))
		log.Info().Int64("count", n).Msg("deactivated expired subscriptions")
	}
}
