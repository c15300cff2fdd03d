// Package subscription decides whether a user may book a swap and manages
// the user's plan subscription.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"battery-swap-backend/internal/metrics"
	"battery-swap-backend/internal/model"
)

const (
	minDuration = 1
	maxDuration = 12
)

// Status is the read-only summary served to clients.
type Status struct {
	HasSubscription bool       `json:"has_subscription"`
	PlanName        *string    `json:"plan_name"`
	SwapLimit       int        `json:"swap_limit"`
	SwapsUsed       int64      `json:"swaps_used"`
	SwapsRemaining  int64      `json:"swaps_remaining"`
	IsExpired       bool       `json:"is_expired"`
	PrioritySupport bool       `json:"priority_support"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

// Enforcer evaluates subscriptions and swap usage against the database.
type Enforcer struct {
	db    *gorm.DB
	loc   *time.Location
	now   func() time.Time
	locks userLocks
}

// NewEnforcer creates an enforcer. Month boundaries are computed in loc;
// nil means UTC.
func NewEnforcer(db *gorm.DB, loc *time.Location) *Enforcer {
	if loc == nil {
		loc = time.UTC
	}
	return &Enforcer{db: db, loc: loc, now: time.Now}
}

// WithClock replaces the time source.
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	e.now = now
	return e
}

// LockUser holds the user's in-process lock until the returned func is
// called. Subscribe takes the same lock.
func (e *Enforcer) LockUser(userID int64) func() {
	return e.locks.Lock(userID)
}

// ActiveSubscription returns the user's live subscription with its plan, or
// nil. When several rows qualify the most recently started wins. Lookup
// errors are logged and reported as nil.
func (e *Enforcer) ActiveSubscription(ctx context.Context, userID int64) *model.UserSubscription {
	var sub model.UserSubscription
	err := e.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND is_active = ? AND end_date > ?", userID, true, e.now().UTC()).
		Order("start_date DESC").
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Int64("user_id", userID).Msg("active subscription lookup failed")
		}
		return nil
	}
	return &sub
}

// monthStart is midnight on day 1 of t's month in the enforcer's zone.
func (e *Enforcer) monthStart(t time.Time) time.Time {
	local := t.In(e.loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.loc)
}

// MonthlySwapCount counts paid orders booked since the start of the current month.
func (e *Enforcer) MonthlySwapCount(ctx context.Context, userID int64) (int64, error) {
	now := e.now()
	var count int64
	err := e.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("user_id = ? AND is_paid = ? AND booked_time >= ? AND booked_time < ?",
			userID, true, e.monthStart(now).UTC(), now.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count swaps for user %d: %w", userID, err)
	}
	return count, nil
}

// CanCreateOrder reports whether the user may book a swap now, with the
// reason when not. Checks run in order: subscription, expiry, monthly limit.
func (e *Enforcer) CanCreateOrder(ctx context.Context, userID int64) (bool, string) {
	sub := e.ActiveSubscription(ctx, userID)
	if sub == nil {
		metrics.OrderDecisions.WithLabelValues("no_subscription").Inc()
		return false, ReasonNoSubscription
	}
	// The row can be active and expired between expiry and the next save or sweep.
	if sub.IsExpired(e.now()) {
		metrics.OrderDecisions.WithLabelValues("expired").Inc()
		return false, ReasonExpired
	}

	used, err := e.MonthlySwapCount(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("swap count failed, refusing order")
		metrics.OrderDecisions.WithLabelValues("error").Inc()
		return false, ReasonUsageUnavailable
	}
	limit := int64(sub.Plan.SwapLimitPerMonth)
	if used >= limit {
		metrics.OrderDecisions.WithLabelValues("limit_reached").Inc()
		return false, fmt.Sprintf(reasonLimitFormat, used, limit)
	}
	metrics.OrderDecisions.WithLabelValues("allowed").Inc()
	return true, ""
}

// Status summarises the user's subscription and usage. A failed usage
// count is returned as an error rather than reported as zero swaps.
func (e *Enforcer) Status(ctx context.Context, userID int64) (Status, error) {
	sub := e.ActiveSubscription(ctx, userID)
	if sub == nil {
		return Status{IsExpired: true}, nil
	}

	used, err := e.MonthlySwapCount(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	limit := sub.Plan.SwapLimitPerMonth
	remaining := int64(limit) - used
	if remaining < 0 {
		remaining = 0
	}
	name := sub.Plan.Name
	end := sub.EndDate
	return Status{
		HasSubscription: true,
		PlanName:        &name,
		SwapLimit:       limit,
		SwapsUsed:       used,
		SwapsRemaining:  remaining,
		IsExpired:       sub.IsExpired(e.now()),
		PrioritySupport: sub.Plan.PrioritySupport,
		EndDate:         &end,
	}, nil
}

// Subscribe replaces the user's active subscription with a new one on planID
// lasting months calendar months, clamped to [1, 12].
//
// Deactivation and insert share one transaction, serialised per user in
// process and, on PostgreSQL, across processes with an advisory lock.
func (e *Enforcer) Subscribe(ctx context.Context, userID, planID int64, months int) (*model.UserSubscription, error) {
	months = clampDuration(months)

	unlock := e.locks.Lock(userID)
	defer unlock()

	var sub model.UserSubscription
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext('user_subscription'), ?)", int32(userID)).Error; err != nil {
				return fmt.Errorf("failed to lock subscriptions for user %d: %w", userID, err)
			}
		}

		var plan model.SubscriptionPlan
		if err := tx.First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("plan %d: %w", planID, ErrPlanNotFound)
			}
			return fmt.Errorf("failed to load plan %d: %w", planID, err)
		}
		if !plan.IsActive {
			return fmt.Errorf("plan %q: %w", plan.Name, ErrPlanInactive)
		}

		if err := tx.Model(&model.UserSubscription{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate subscriptions for user %d: %w", userID, err)
		}

		start := e.now()
		sub = model.UserSubscription{
			UserID:    userID,
			PlanID:    plan.ID,
			StartDate: start.UTC(),
			EndDate:   addMonths(start.In(e.loc), months).UTC(),
			IsActive:  true,
		}
		if err := tx.Omit(clause.Associations).Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		sub.Plan = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("user_id", userID).Str("plan", sub.Plan.Name).Int("months", months).Msg("subscription created")
	return &sub, nil
}

// MySubscription returns the user's most recent active row with its plan,
// whether or not its end date has passed.
func (e *Enforcer) MySubscription(ctx context.Context, userID int64) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := e.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("start_date DESC").
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("failed to load subscription for user %d: %w", userID, err)
	}
	return &sub, nil
}

// DeactivateExpired flips is_active off for every row past its end date and
// returns how many rows changed.
func (e *Enforcer) DeactivateExpired(ctx context.Context) (int64, error) {
	res := e.db.WithContext(ctx).
		Model(&model.UserSubscription{}).
		Where("is_active = ? AND end_date <= ?", true, e.now().UTC()).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deactivate expired subscriptions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func clampDuration(months int) int {
	if months < minDuration {
		return minDuration
	}
	if months > maxDuration {
		return maxDuration
	}
	return months
}

// addMonths moves t forward by n calendar months, pinning the day to the
// last day of the target month when it would overflow (Jan 31 + 1 = Feb 28).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
