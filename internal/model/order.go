package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order records one battery swap. Paid orders count toward the monthly plan limit.
type Order struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	UserID        int64           `gorm:"index:idx_orders_user_booked,priority:1;not null" json:"user_id"`
	StationID     int64           `gorm:"index;not null" json:"station_id"`
	BatteryID     int64           `gorm:"index;not null" json:"battery_id"`
	BookedTime    time.Time       `gorm:"index:idx_orders_user_booked,priority:2;not null" json:"booked_time"`
	CollectedTime *time.Time      `json:"collected_time"`
	IsPaid        bool            `gorm:"not null;default:false" json:"is_paid"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// Associations
	User    User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Station Station `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Battery Battery `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
