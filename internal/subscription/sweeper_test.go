package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battery-swap-backend/internal/model"
)

func TestNewSweeper_RejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper(nil, "every tuesday-ish")
	assert.ErrorContains(t, err, "invalid sweep schedule")
}

func TestSweeper_SweepDeactivatesExpired(t *testing.T) {
	e := newEnv(t)
	_, err := e.enforcer.Subscribe(context.Background(), e.user.ID, e.plans["Standard"].ID, 1)
	require.NoError(t, err)

	s, err := NewSweeper(e.enforcer, "@every 1h")
	require.NoError(t, err)

	later := e.now.AddDate(0, 2, 0)
	e.enforcer.WithClock(func() time.Time { return later })
	s.Sweep()

	var active int64
	require.NoError(t, e.db.Model(&model.UserSubscription{}).Where("is_active = ?", true).Count(&active).Error)
	assert.Zero(t, active)

	s.Start()
	s.Stop()
}
