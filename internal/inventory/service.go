// Package inventory applies station and booking mutations and announces
// them on the realtime channels once committed.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"battery-swap-backend/internal/broadcast"
	"battery-swap-backend/internal/model"
	"battery-swap-backend/internal/store"
)

// defaultNearbyLimit caps nearby searches when the caller gives no limit.
const defaultNearbyLimit = 10

// OrderGate decides whether a user may book. LockUser serialises a user's
// check-then-book sequence and returns the release func.
type OrderGate interface {
	CanCreateOrder(ctx context.Context, userID int64) (bool, string)
	LockUser(userID int64) func()
}

// NearbyStation is a station with its distance from the search point.
type NearbyStation struct {
	store.StationInventory
	DistanceKm float64 `json:"distance_km"`
}

// Service runs inventory mutations. Every mutation commits in the store
// first; broadcast failures are logged by the broadcaster and never undo it.
type Service struct {
	store  store.Store
	gate   OrderGate
	events *broadcast.Service
	now    func() time.Time
}

// NewService creates the inventory service. events may be nil.
func NewService(s store.Store, gate OrderGate, events *broadcast.Service) *Service {
	return &Service{store: s, gate: gate, events: events, now: time.Now}
}

// WithClock replaces the time source used for booking and collection stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Stations lists every station with its counts.
func (s *Service) Stations(ctx context.Context) ([]store.StationInventory, error) {
	return s.store.ListStations(ctx)
}

// Station returns one station with its counts.
func (s *Service) Station(ctx context.Context, id int64) (*store.StationInventory, error) {
	st, err := s.store.Station(ctx, id)
	if err != nil {
		return nil, err
	}
	available, booked, err := s.store.InventoryCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &store.StationInventory{
		Station:            *st,
		AvailableBatteries: available,
		BookedBatteries:    booked,
		TotalBatteries:     available + booked,
	}, nil
}

// NearbyStations orders stations by distance from (lat, lon), closest first.
// radiusKm <= 0 disables the radius filter; limit <= 0 uses the default.
func (s *Service) NearbyStations(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]NearbyStation, error) {
	if !validCoordinates(lat, lon) {
		return nil, invalid("coordinates (%g, %g) out of range", lat, lon)
	}
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	stations, err := s.store.ListStations(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]NearbyStation, 0, len(stations))
	for _, st := range stations {
		d := distanceKm(lat, lon, st.Latitude, st.Longitude)
		if radiusKm > 0 && d > radiusKm {
			continue
		}
		out = append(out, NearbyStation{StationInventory: st, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateStation stores a new, empty station and announces it.
func (s *Service) CreateStation(ctx context.Context, name string, lat, lon float64) (*model.Station, error) {
	if name == "" {
		return nil, invalid("station name is required")
	}
	if !validCoordinates(lat, lon) {
		return nil, invalid("coordinates (%g, %g) out of range", lat, lon)
	}
	st := &model.Station{Name: name, Latitude: lat, Longitude: lon}
	if err := s.store.CreateStation(ctx, st); err != nil {
		return nil, err
	}
	log.Info().Int64("station_id", st.ID).Str("name", name).Msg("station created")
	s.events.InventoryUpdate(ctx, *st, broadcast.ActionCreated)
	return st, nil
}

// CreateBattery registers a battery made by companyID for vehicleID.
func (s *Service) CreateBattery(ctx context.Context, companyID, vehicleID int64, price decimal.Decimal) (*model.Battery, error) {
	if price.IsNegative() {
		return nil, invalid("price %s is negative", price)
	}
	b := &model.Battery{CompanyID: companyID, VehicleID: vehicleID, Price: price}
	if err := s.store.CreateBattery(ctx, b); err != nil {
		return nil, err
	}
	return s.store.Battery(ctx, b.ID)
}

// AddBattery stocks an existing battery at a station.
func (s *Service) AddBattery(ctx context.Context, stationID, batteryID int64) (*model.Battery, error) {
	st, err := s.store.Station(ctx, stationID)
	if err != nil {
		return nil, err
	}
	battery, err := s.store.Battery(ctx, batteryID)
	if err != nil {
		return nil, err
	}
	if err := s.store.StockBattery(ctx, stationID, batteryID); err != nil {
		return nil, err
	}
	s.events.InventoryUpdate(ctx, *st, broadcast.ActionUpdate)
	s.events.BatteryAdded(ctx, *st, *battery)
	return battery, nil
}

// RemoveBattery withdraws an available battery from a station.
func (s *Service) RemoveBattery(ctx context.Context, stationID, batteryID int64) error {
	st, err := s.store.Station(ctx, stationID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveBattery(ctx, stationID, batteryID); err != nil {
		return err
	}
	s.events.InventoryUpdate(ctx, *st, broadcast.ActionUpdate)
	return nil
}

// ClearStation empties a station's available set.
func (s *Service) ClearStation(ctx context.Context, stationID int64) error {
	st, err := s.store.Station(ctx, stationID)
	if err != nil {
		return err
	}
	if err := s.store.ClearStation(ctx, stationID); err != nil {
		return err
	}
	s.events.InventoryUpdate(ctx, *st, broadcast.ActionUpdate)
	return nil
}

// BookBattery reserves an available battery for user and records a paid order.
// The subscription check runs first; a refusal is a *DeniedError.
func (s *Service) BookBattery(ctx context.Context, stationID, batteryID int64, user model.User) (*model.Order, error) {
	st, err := s.store.Station(ctx, stationID)
	if err != nil {
		return nil, err
	}
	battery, err := s.store.Battery(ctx, batteryID)
	if err != nil {
		return nil, err
	}
	// The usage count and the order insert must not interleave with another
	// booking by the same user, or both could pass at limit-1. Instances
	// sharing a database are not covered by this lock.
	unlock := s.gate.LockUser(user.ID)
	defer unlock()

	if ok, reason := s.gate.CanCreateOrder(ctx, user.ID); !ok {
		log.Info().Int64("user_id", user.ID).Str("reason", reason).Msg("booking refused")
		return nil, &DeniedError{Reason: reason}
	}

	order, err := s.store.BookBattery(ctx, stationID, batteryID, user.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	log.Info().Int64("order_id", order.ID).Int64("station_id", stationID).Int64("battery_id", batteryID).Msg("battery booked")

	s.events.InventoryUpdate(ctx, *st, broadcast.ActionUpdate)
	s.events.BatteryBooked(ctx, *st, *battery, &user, &order.ID)
	return order, nil
}

// CollectBattery completes an order owned by userID.
func (s *Service) CollectBattery(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	existing, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotOwner)
	}
	order, err := s.store.CollectOrder(ctx, orderID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	st, err := s.store.Station(ctx, order.StationID)
	if err != nil {
		log.Warn().Err(err).Int64("order_id", orderID).Msg("collected order has no station, skipping broadcast")
		return order, nil
	}
	battery, err := s.store.Battery(ctx, order.BatteryID)
	if err != nil {
		log.Warn().Err(err).Int64("order_id", orderID).Msg("collected order has no battery, skipping broadcast")
		return order, nil
	}
	s.events.InventoryUpdate(ctx, *st, broadcast.ActionUpdate)
	s.events.BatteryCollected(ctx, *st, *battery)
	return order, nil
}

// SetStatus announces a station's operational status. Nothing is stored.
func (s *Service) SetStatus(ctx context.Context, stationID int64, status string, message *string) error {
	if status == "" {
		return invalid("status is required")
	}
	st, err := s.store.Station(ctx, stationID)
	if err != nil {
		return err
	}
	s.events.StationStatus(ctx, *st, status, message)
	return nil
}

// NotifyReady tells the order's owner that the battery can be collected.
func (s *Service) NotifyReady(ctx context.Context, orderID int64) error {
	order, err := s.store.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if order.CollectedTime != nil {
		return fmt.Errorf("order %d: %w", orderID, store.ErrAlreadyCollected)
	}
	user, err := s.store.User(ctx, order.UserID)
	if err != nil {
		return err
	}
	st, err := s.store.Station(ctx, order.StationID)
	if err != nil {
		return err
	}
	s.events.NotifyBookingReady(ctx, *user, order.ID, st.Name)
	return nil
}

// Notify sends a free-form notification to one user.
func (s *Service) Notify(ctx context.Context, userID int64, title, message, level string) error {
	if title == "" || message == "" {
		return invalid("title and message are required")
	}
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return err
	}
	s.events.SendUserNotification(ctx, *user, title, message, level)
	return nil
}

// TestBroadcast publishes the station's current inventory with action,
// "test" when empty. Used to check that subscribers are receiving.
func (s *Service) TestBroadcast(ctx context.Context, stationID int64, action broadcast.Action) error {
	if action == "" {
		action = broadcast.ActionTest
	}
	if !action.Valid() {
		return invalid("unknown action %q", action)
	}
	st, err := s.store.Station(ctx, stationID)
	if err != nil {
		return err
	}
	s.events.InventoryUpdate(ctx, *st, action)
	return nil
}
