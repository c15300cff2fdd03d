package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"battery-swap-backend/internal/model"
)

// Store defines the persistence operations behind inventory and orders.
// Mutating methods commit before returning; callers fire notifications after.
type Store interface {
	DB() *gorm.DB

	User(ctx context.Context, id int64) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error

	CreateCompany(ctx context.Context, company *model.Company) error
	CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error
	CreateBattery(ctx context.Context, battery *model.Battery) error
	Battery(ctx context.Context, id int64) (*model.Battery, error)

	CreateStation(ctx context.Context, station *model.Station) error
	Station(ctx context.Context, id int64) (*model.Station, error)
	ListStations(ctx context.Context) ([]StationInventory, error)
	InventoryCounts(ctx context.Context, stationID int64) (available, booked int64, err error)

	StockBattery(ctx context.Context, stationID, batteryID int64) error
	RemoveBattery(ctx context.Context, stationID, batteryID int64) error
	ClearStation(ctx context.Context, stationID int64) error
	BookBattery(ctx context.Context, stationID, batteryID, userID int64, at time.Time) (*model.Order, error)
	CollectOrder(ctx context.Context, orderID int64, at time.Time) (*model.Order, error)
	Order(ctx context.Context, id int64) (*model.Order, error)

	SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error
	PushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	PushSubscriptions(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// notFound maps gorm's sentinel onto ErrNotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %v: %w", what, id, err)
}

func (s *gormStore) User(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

func (s *gormStore) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	return nil
}

func (s *gormStore) CreateCompany(ctx context.Context, company *model.Company) error {
	return s.db.WithContext(ctx).
		Where(model.Company{Name: company.Name}).
		FirstOrCreate(company).Error
}

func (s *gormStore) CreateVehicle(ctx context.Context, vehicle *model.Vehicle) error {
	return s.db.WithContext(ctx).
		Where(model.Vehicle{Name: vehicle.Name}).
		FirstOrCreate(vehicle).Error
}

func (s *gormStore) CreateBattery(ctx context.Context, battery *model.Battery) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(battery).Error; err != nil {
		return fmt.Errorf("failed to create battery: %w", err)
	}
	return nil
}

func (s *gormStore) Battery(ctx context.Context, id int64) (*model.Battery, error) {
	var battery model.Battery
	if err := s.db.WithContext(ctx).Preload("Company").Preload("Vehicle").First(&battery, id).Error; err != nil {
		return nil, notFound(err, "battery", id)
	}
	return &battery, nil
}

func (s *gormStore) CreateStation(ctx context.Context, station *model.Station) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(station).Error; err != nil {
		return fmt.Errorf("failed to create station %q: %w", station.Name, err)
	}
	return nil
}

func (s *gormStore) Station(ctx context.Context, id int64) (*model.Station, error) {
	var station model.Station
	if err := s.db.WithContext(ctx).First(&station, id).Error; err != nil {
		return nil, notFound(err, "station", id)
	}
	return &station, nil
}

// ListStations returns every station with its set sizes, aggregated in two queries.
func (s *gormStore) ListStations(ctx context.Context) ([]StationInventory, error) {
	var stations []model.Station
	if err := s.db.WithContext(ctx).Order("id").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}

	available, err := s.countByStation(ctx, model.StationBatteriesTable)
	if err != nil {
		return nil, err
	}
	booked, err := s.countByStation(ctx, model.StationBookedBatteriesTable)
	if err != nil {
		return nil, err
	}

	out := make([]StationInventory, 0, len(stations))
	for _, st := range stations {
		a, b := available[st.ID], booked[st.ID] // zero when absent
		out = append(out, StationInventory{
			Station:            st,
			AvailableBatteries: a,
			BookedBatteries:    b,
			TotalBatteries:     a + b,
		})
	}
	return out, nil
}

func (s *gormStore) countByStation(ctx context.Context, table string) (map[int64]int64, error) {
	type aggRow struct {
		StationID int64
		N         int64
	}
	var rows []aggRow
	if err := s.db.WithContext(ctx).
		Table(table).
		Select("station_id AS station_id, COUNT(*) AS n").
		Group("station_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", table, err)
	}
	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.StationID] = r.N
	}
	return counts, nil
}

// InventoryCounts reads both set sizes for one station.
func (s *gormStore) InventoryCounts(ctx context.Context, stationID int64) (int64, int64, error) {
	var available, booked int64
	if err := s.db.WithContext(ctx).Table(model.StationBatteriesTable).
		Where("station_id = ?", stationID).Count(&available).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count available batteries: %w", err)
	}
	if err := s.db.WithContext(ctx).Table(model.StationBookedBatteriesTable).
		Where("station_id = ?", stationID).Count(&booked).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count booked batteries: %w", err)
	}
	return available, booked, nil
}

func inSet(tx *gorm.DB, table string, stationID, batteryID int64) (bool, error) {
	var n int64
	err := tx.Table(table).
		Where("station_id = ? AND battery_id = ?", stationID, batteryID).
		Count(&n).Error
	return n > 0, err
}

func addToSet(tx *gorm.DB, table string, stationID, batteryID int64) error {
	return tx.Exec("INSERT INTO "+table+" (station_id, battery_id) VALUES (?, ?)", stationID, batteryID).Error
}

func removeFromSet(tx *gorm.DB, table string, stationID, batteryID int64) error {
	return tx.Exec("DELETE FROM "+table+" WHERE station_id = ? AND battery_id = ?", stationID, batteryID).Error
}

// StockBattery puts a battery into the station's available set.
func (s *gormStore) StockBattery(ctx context.Context, stationID, batteryID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Station{}, stationID).Error; err != nil {
			return notFound(err, "station", stationID)
		}
		if err := tx.Select("id").First(&model.Battery{}, batteryID).Error; err != nil {
			return notFound(err, "battery", batteryID)
		}
		for _, table := range []string{model.StationBatteriesTable, model.StationBookedBatteriesTable} {
			held, err := inSet(tx, table, stationID, batteryID)
			if err != nil {
				return fmt.Errorf("failed to check %s: %w", table, err)
			}
			if held {
				return ErrBatteryStocked
			}
		}
		if err := addToSet(tx, model.StationBatteriesTable, stationID, batteryID); err != nil {
			return fmt.Errorf("failed to stock battery %d at station %d: %w", batteryID, stationID, err)
		}
		return nil
	})
}

// RemoveBattery takes a battery out of the station's available set.
func (s *gormStore) RemoveBattery(ctx context.Context, stationID, batteryID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		held, err := inSet(tx, model.StationBatteriesTable, stationID, batteryID)
		if err != nil {
			return fmt.Errorf("failed to check available set: %w", err)
		}
		if !held {
			return ErrBatteryUnavailable
		}
		return removeFromSet(tx, model.StationBatteriesTable, stationID, batteryID)
	})
}

// ClearStation empties the station's available set. Booked batteries stay
// so open orders can still be collected.
func (s *gormStore) ClearStation(ctx context.Context, stationID int64) error {
	err := s.db.WithContext(ctx).
		Exec("DELETE FROM "+model.StationBatteriesTable+" WHERE station_id = ?", stationID).Error
	if err != nil {
		return fmt.Errorf("failed to clear station %d: %w", stationID, err)
	}
	return nil
}

// BookBattery moves a battery from available to booked and records a paid
// order in one transaction.
func (s *gormStore) BookBattery(ctx context.Context, stationID, batteryID, userID int64, at time.Time) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var battery model.Battery
		if err := tx.First(&battery, batteryID).Error; err != nil {
			return notFound(err, "battery", batteryID)
		}
		held, err := inSet(tx, model.StationBatteriesTable, stationID, batteryID)
		if err != nil {
			return fmt.Errorf("failed to check available set: %w", err)
		}
		if !held {
			return ErrBatteryUnavailable
		}
		if err := removeFromSet(tx, model.StationBatteriesTable, stationID, batteryID); err != nil {
			return fmt.Errorf("failed to release battery %d: %w", batteryID, err)
		}
		if err := addToSet(tx, model.StationBookedBatteriesTable, stationID, batteryID); err != nil {
			return fmt.Errorf("failed to book battery %d: %w", batteryID, err)
		}

		order = model.Order{
			UserID:     userID,
			StationID:  stationID,
			BatteryID:  batteryID,
			BookedTime: at,
			IsPaid:     true,
			Amount:     battery.Price,
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CollectOrder removes the order's battery from the booked set and stamps
// the collection time.
func (s *gormStore) CollectOrder(ctx context.Context, orderID int64, at time.Time) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, "order", orderID)
		}
		if order.CollectedTime != nil {
			return ErrAlreadyCollected
		}
		if err := removeFromSet(tx, model.StationBookedBatteriesTable, order.StationID, order.BatteryID); err != nil {
			return fmt.Errorf("failed to release booked battery %d: %w", order.BatteryID, err)
		}
		order.CollectedTime = &at
		if err := tx.Model(&order).Update("collected_time", at).Error; err != nil {
			return fmt.Errorf("failed to mark order %d collected: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *gormStore) Order(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, notFound(err, "order", id)
	}
	return &order, nil
}

// SavePushSubscription creates an endpoint or replaces its keys. An endpoint
// already registered to another user is left untouched and ErrEndpointOwned
// is returned.
func (s *gormStore) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		Where:     clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "push_subscriptions.user_id = excluded.user_id"}}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(sub)
	if res.Error != nil {
		return fmt.Errorf("failed to save push subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrEndpointOwned
	}
	return nil
}

func (s *gormStore) PushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, notFound(err, "push subscription", endpoint)
	}
	return &sub, nil
}

func (s *gormStore) PushSubscriptions(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load push subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
