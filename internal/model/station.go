package model

import "time"

// Station is a swap point holding two disjoint battery sets.
type Station struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations. A battery sits in at most one of the two sets per station.
	Batteries       []*Battery `gorm:"many2many:station_batteries;" json:"-"`
	BookedBatteries []*Battery `gorm:"many2many:station_booked_batteries;" json:"-"`
}

const (
	StationBatteriesTable       = "station_batteries"
	StationBookedBatteriesTable = "station_booked_batteries"
)
