package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Company manufactures batteries.
type Company struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Vehicle is a vehicle type a battery fits.
type Vehicle struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Battery is immutable after creation except for station membership.
type Battery struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	CompanyID int64           `gorm:"index;not null" json:"company_id"`
	VehicleID int64           `gorm:"index;not null" json:"vehicle_id"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	CreatedAt time.Time       `json:"-"`

	// Associations
	Company Company `gorm:"constraint:OnDelete:CASCADE" json:"company"`
	Vehicle Vehicle `gorm:"constraint:OnDelete:CASCADE" json:"vehicle"`
}

// Descriptor is the human readable "{company} - {vehicle}" label.
// Company and Vehicle must be loaded.
func (b Battery) Descriptor() string {
	return fmt.Sprintf("%s - %s", b.Company.Name, b.Vehicle.Name)
}
