package store

import (
	"errors"

	"battery-swap-backend/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrBatteryUnavailable means the battery is not in the station's available set.
	ErrBatteryUnavailable = errors.New("battery is not available at this station")
	// ErrBatteryStocked means the battery already sits in one of the station's sets.
	ErrBatteryStocked = errors.New("battery is already held by this station")
	// ErrAlreadyCollected means the order's battery was already picked up.
	ErrAlreadyCollected = errors.New("order already collected")
	// ErrEndpointOwned means the push endpoint is registered to another user.
	ErrEndpointOwned = errors.New("push endpoint is registered to another user")
)

// StationInventory is a station with its current set sizes.
type StationInventory struct {
	model.Station
	AvailableBatteries int64 `json:"available_batteries"`
	BookedBatteries    int64 `json:"booked_batteries"`
	TotalBatteries     int64 `json:"total_batteries"`
}
