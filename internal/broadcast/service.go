package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/model"
)

// SnapshotSource reads the current size of a station's two battery sets.
type SnapshotSource interface {
	InventoryCounts(ctx context.Context, stationID int64) (available, booked int64, err error)
}

// Service turns inventory changes into channel-group events.
//
// Snapshots are read synchronously so they reflect the state the caller just
// committed; the publish itself goes through the Dispatcher. None of the
// methods return errors: a failed snapshot skips emission and a failed
// publish is logged, so notification never fails the triggering mutation.
// A nil *Service is a valid no-op broadcaster.
type Service struct {
	source     SnapshotSource
	dispatcher Dispatcher
	now        func() time.Time
}

// NewService creates a broadcaster. A nil dispatcher disables publishing.
func NewService(source SnapshotSource, dispatcher Dispatcher) *Service {
	return &Service{
		source:     source,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// WithClock replaces the timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) enabled() bool {
	return s != nil && s.dispatcher != nil
}

// Snapshot computes the current inventory of a station.
func (s *Service) Snapshot(ctx context.Context, station model.Station) (InventorySnapshot, error) {
	available, booked, err := s.source.InventoryCounts(ctx, station.ID)
	if err != nil {
		return InventorySnapshot{}, fmt.Errorf("inventory counts for station %d: %w", station.ID, err)
	}
	return InventorySnapshot{
		StationID:          station.ID,
		StationName:        station.Name,
		AvailableBatteries: available,
		BookedBatteries:    booked,
		TotalBatteries:     available + booked,
		Timestamp:          s.now(),
	}, nil
}

func (s *Service) snapshot(ctx context.Context, station model.Station, kind Kind) (InventorySnapshot, bool) {
	snap, err := s.Snapshot(ctx, station)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("skipping broadcast")
		return snap, false
	}
	return snap, true
}

// toStation sends ev to the station's own group and to the global feed.
func (s *Service) toStation(stationID int64, ev Event) {
	s.dispatcher.Dispatch(Delivery{Group: StationGroup(stationID), Event: ev})
	s.dispatcher.Dispatch(Delivery{Group: AllStationsGroup, Event: ev})
}

func (s *Service) toUser(userID int64, ev Event) {
	s.dispatcher.Dispatch(Delivery{Group: UserGroup(userID), Event: ev, UserID: userID})
}

// InventoryUpdate publishes the station's current counts tagged with action.
func (s *Service) InventoryUpdate(ctx context.Context, station model.Station, action Action) {
	if !s.enabled() {
		return
	}
	snap, ok := s.snapshot(ctx, station, KindInventoryUpdate)
	if !ok {
		return
	}
	s.toStation(station.ID, InventoryUpdate{InventorySnapshot: snap, Action: action})
}

// BatteryBooked publishes a booking to the station feeds and, when user is
// set, a booking_confirmed to the user's private group. bookingID may be nil.
func (s *Service) BatteryBooked(ctx context.Context, station model.Station, battery model.Battery, user *model.User, bookingID *int64) {
	if !s.enabled() {
		return
	}
	snap, ok := s.snapshot(ctx, station, KindBatteryBooked)
	if !ok {
		return
	}
	ev := BatteryBooked{
		StationID:          snap.StationID,
		StationName:        snap.StationName,
		BatteryID:          battery.ID,
		AvailableBatteries: snap.AvailableBatteries,
		BookedBatteries:    snap.BookedBatteries,
		Timestamp:          snap.Timestamp,
	}
	if user != nil {
		email := user.Email
		ev.User = &email
	}
	s.toStation(station.ID, ev)

	if user == nil {
		return
	}
	s.toUser(user.ID, BookingConfirmed{
		BookingID:   bookingID,
		StationName: station.Name,
		BatteryInfo: battery.Descriptor(),
		Message:     fmt.Sprintf("Battery booked successfully at %s", station.Name),
		Timestamp:   s.now(),
	})
}

// BatteryCollected publishes a collection to the station feeds.
func (s *Service) BatteryCollected(ctx context.Context, station model.Station, battery model.Battery) {
	if !s.enabled() {
		return
	}
	snap, ok := s.snapshot(ctx, station, KindBatteryCollected)
	if !ok {
		return
	}
	s.toStation(station.ID, BatteryCollected{
		StationID:          snap.StationID,
		StationName:        snap.StationName,
		BatteryID:          battery.ID,
		AvailableBatteries: snap.AvailableBatteries,
		BookedBatteries:    snap.BookedBatteries,
		Timestamp:          snap.Timestamp,
	})
}

// BatteryAdded publishes a restock to the station feeds.
func (s *Service) BatteryAdded(ctx context.Context, station model.Station, battery model.Battery) {
	if !s.enabled() {
		return
	}
	snap, ok := s.snapshot(ctx, station, KindBatteryAdded)
	if !ok {
		return
	}
	s.toStation(station.ID, BatteryAdded{
		StationID:          snap.StationID,
		StationName:        snap.StationName,
		BatteryID:          battery.ID,
		AvailableBatteries: snap.AvailableBatteries,
		TotalBatteries:     snap.TotalBatteries,
		Timestamp:          snap.Timestamp,
	})
}

// StationStatus publishes an operational status (online, offline,
// maintenance or anything else). It does not read inventory.
func (s *Service) StationStatus(_ context.Context, station model.Station, status string, message *string) {
	if !s.enabled() {
		return
	}
	s.toStation(station.ID, StationStatus{
		StationID:   station.ID,
		StationName: station.Name,
		Status:      status,
		Message:     message,
		Timestamp:   s.now(),
	})
}

// SendUserNotification sends a free-form notification to one user.
func (s *Service) SendUserNotification(_ context.Context, user model.User, title, message, level string) {
	if !s.enabled() {
		return
	}
	if level == "" {
		level = "info"
	}
	s.toUser(user.ID, Notification{
		Title:     title,
		Message:   message,
		Level:     level,
		Timestamp: s.now(),
	})
}

// NotifyBookingReady tells a user their booked battery can be collected.
func (s *Service) NotifyBookingReady(_ context.Context, user model.User, bookingID int64, stationName string) {
	if !s.enabled() {
		return
	}
	s.toUser(user.ID, BookingReady{
		BookingID:   bookingID,
		StationName: stationName,
		Message:     fmt.Sprintf("Your battery is ready for collection at %s", stationName),
		Timestamp:   s.now(),
	})
}
