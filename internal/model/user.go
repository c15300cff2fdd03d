package model

import "time"

// UserType distinguishes battery consumers from producing companies.
type UserType string

const (
	UserTypeConsumer UserType = "consumer"
	UserTypeProducer UserType = "producer"
)

// User is an account holder. Authentication lives outside this service;
// requests arrive with an already-verified user ID.
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone     string    `gorm:"size:32" json:"phone"`
	UserType  UserType  `gorm:"size:16;not null;default:consumer" json:"user_type"`
	VehicleID *int64    `json:"vehicle_id"`
	CompanyID *int64    `json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Vehicle *Vehicle `json:"vehicle,omitempty"`
	Company *Company `json:"company,omitempty"`
}
