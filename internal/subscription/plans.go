package subscription

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"battery-swap-backend/internal/model"
)

// DefaultPlans are the tiers offered out of the box.
var DefaultPlans = []model.SubscriptionPlan{
	{Name: "Basic", Price: decimal.RequireFromString("9.99"), SwapLimitPerMonth: 10, PrioritySupport: false, IsActive: true},
	{Name: "Standard", Price: decimal.RequireFromString("19.99"), SwapLimitPerMonth: 30, PrioritySupport: false, IsActive: true},
	{Name: "Premium", Price: decimal.RequireFromString("39.99"), SwapLimitPerMonth: 100, PrioritySupport: true, IsActive: true},
	{Name: "Unlimited", Price: decimal.RequireFromString("99.99"), SwapLimitPerMonth: 999, PrioritySupport: true, IsActive: true},
}

// SeedPlans inserts any of DefaultPlans missing by name. Existing plans are
// left untouched so operators can edit prices.
func SeedPlans(ctx context.Context, db *gorm.DB) error {
	for _, p := range DefaultPlans {
		plan := p
		res := db.WithContext(ctx).Where(model.SubscriptionPlan{Name: plan.Name}).FirstOrCreate(&plan)
		if res.Error != nil {
			return fmt.Errorf("failed to seed plan %q: %w", plan.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			log.Info().Str("plan", plan.Name).Msg("seeded subscription plan")
		}
	}
	return nil
}

// ListPlans returns the active plans, cheapest first.
func (e *Enforcer) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	var plans []model.SubscriptionPlan
	if err := e.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}
