package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubscriptionPlan is a tier of service. Read-mostly reference data.
type SubscriptionPlan struct {
	ID                int64           `gorm:"primaryKey" json:"id"`
	Name              string          `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Price             decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	SwapLimitPerMonth int             `gorm:"not null" json:"swap_limit_per_month"`
	PrioritySupport   bool            `gorm:"not null;default:false" json:"priority_support"`
	IsActive          bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// UserSubscription ties a user to a plan for a period.
type UserSubscription struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index:idx_user_subscriptions_active,priority:1;not null" json:"user"`
	PlanID    int64     `gorm:"index;not null" json:"plan"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"index;not null" json:"end_date"`
	IsActive  bool      `gorm:"index:idx_user_subscriptions_active,priority:2;not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	User User             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Plan SubscriptionPlan `gorm:"constraint:OnDelete:RESTRICT" json:"plan_details"`
}

// IsExpired reports whether now is past the end date.
func (s *UserSubscription) IsExpired(now time.Time) bool {
	return now.After(s.EndDate)
}

// BeforeSave forces expired subscriptions inactive on every save.
func (s *UserSubscription) BeforeSave(tx *gorm.DB) error {
	if !s.EndDate.IsZero() && s.IsExpired(time.Now()) {
		s.IsActive = false
	}
	return nil
}
