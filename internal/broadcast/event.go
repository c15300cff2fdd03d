package broadcast

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names an event on the wire. It is the "type" field of every message.
type Kind string

const (
	KindInventoryUpdate  Kind = "inventory_update"
	KindBatteryBooked    Kind = "battery_booked"
	KindBatteryCollected Kind = "battery_collected"
	KindBatteryAdded     Kind = "battery_added"
	KindStationStatus    Kind = "station_status"
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingReady     Kind = "booking_ready"
	KindNotification     Kind = "notification"
)

// Action tags why an inventory_update was emitted.
type Action string

const (
	ActionUpdate  Action = "update"
	ActionAdd     Action = "add"
	ActionBook    Action = "book"
	ActionCollect Action = "collect"
	ActionCreated Action = "created"
	ActionTest    Action = "test"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionUpdate, ActionAdd, ActionBook, ActionCollect, ActionCreated, ActionTest:
		return true
	}
	return false
}

// Event is the closed set of payloads published to channel groups.
// Only types in this package implement it.
type Event interface {
	Kind() Kind
	isEvent()
}

// Channel group names. Routing depends on these matching exactly.
const AllStationsGroup = "stations_all"

func StationGroup(stationID int64) string { return fmt.Sprintf("station_%d", stationID) }

func UserGroup(userID int64) string { return fmt.Sprintf("user_%d", userID) }

// InventorySnapshot is computed fresh for every broadcast and never cached.
type InventorySnapshot struct {
	StationID          int64     `json:"station_id"`
	StationName        string    `json:"station_name"`
	AvailableBatteries int64     `json:"available_batteries"`
	BookedBatteries    int64     `json:"booked_batteries"`
	TotalBatteries     int64     `json:"total_batteries"`
	Timestamp          time.Time `json:"timestamp"`
}

type InventoryUpdate struct {
	InventorySnapshot
	Action Action `json:"action"`
}

type BatteryBooked struct {
	StationID          int64     `json:"station_id"`
	StationName        string    `json:"station_name"`
	BatteryID          int64     `json:"battery_id"`
	AvailableBatteries int64     `json:"available_batteries"`
	BookedBatteries    int64     `json:"booked_batteries"`
	User               *string   `json:"user"`
	Timestamp          time.Time `json:"timestamp"`
}

type BatteryCollected struct {
	StationID          int64     `json:"station_id"`
	StationName        string    `json:"station_name"`
	BatteryID          int64     `json:"battery_id"`
	AvailableBatteries int64     `json:"available_batteries"`
	BookedBatteries    int64     `json:"booked_batteries"`
	Timestamp          time.Time `json:"timestamp"`
}

type BatteryAdded struct {
	StationID          int64     `json:"station_id"`
	StationName        string    `json:"station_name"`
	BatteryID          int64     `json:"battery_id"`
	AvailableBatteries int64     `json:"available_batteries"`
	TotalBatteries     int64     `json:"total_batteries"`
	Timestamp          time.Time `json:"timestamp"`
}

type StationStatus struct {
	StationID   int64     `json:"station_id"`
	StationName string    `json:"station_name"`
	Status      string    `json:"status"`
	Message     *string   `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type BookingConfirmed struct {
	BookingID   *int64    `json:"booking_id"`
	StationName string    `json:"station_name"`
	BatteryInfo string    `json:"battery_info"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type BookingReady struct {
	BookingID   int64     `json:"booking_id"`
	StationName string    `json:"station_name"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

func (InventoryUpdate) Kind() Kind  { return KindInventoryUpdate }
func (BatteryBooked) Kind() Kind    { return KindBatteryBooked }
func (BatteryCollected) Kind() Kind { return KindBatteryCollected }
func (BatteryAdded) Kind() Kind     { return KindBatteryAdded }
func (StationStatus) Kind() Kind    { return KindStationStatus }
func (BookingConfirmed) Kind() Kind { return KindBookingConfirmed }
func (BookingReady) Kind() Kind     { return KindBookingReady }
func (Notification) Kind() Kind     { return KindNotification }

func (InventoryUpdate) isEvent()  {}
func (BatteryBooked) isEvent()    {}
func (BatteryCollected) isEvent() {}
func (BatteryAdded) isEvent()     {}
func (StationStatus) isEvent()    {}
func (BookingConfirmed) isEvent() {}
func (BookingReady) isEvent()     {}
func (Notification) isEvent()     {}

// Encode serializes an event for the transport, adding its "type" tag.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("flatten %s event: %w", ev.Kind(), err)
	}
	kind, _ := json.Marshal(ev.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}
