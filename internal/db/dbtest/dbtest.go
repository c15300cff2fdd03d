// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"battery-swap-backend/internal/db"
	"battery-swap-backend/internal/model"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared", seq.Add(1))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// Fixture is a minimal world: one consumer, one station and one stocked battery.
type Fixture struct {
	User    model.User
	Company model.Company
	Vehicle model.Vehicle
	Battery model.Battery
	Station model.Station
}

// Seed inserts a Fixture. The battery is in the station's available set.
func Seed(t testing.TB, gormDB *gorm.DB) Fixture {
	t.Helper()
	f := Fixture{
		User:    model.User{Name: "Asha", Email: fmt.Sprintf("asha%d@example.com", seq.Add(1)), UserType: model.UserTypeConsumer},
		Company: model.Company{Name: "Tesla Energy"},
		Vehicle: model.Vehicle{Name: "Ather 450X"},
		Station: model.Station{Name: "Koramangala Hub", Latitude: 12.9352, Longitude: 77.6245},
	}
	require.NoError(t, gormDB.Create(&f.User).Error)
	require.NoError(t, gormDB.Create(&f.Company).Error)
	require.NoError(t, gormDB.Create(&f.Vehicle).Error)
	f.Battery = AddBattery(t, gormDB, f.Company, f.Vehicle, "499.00")
	require.NoError(t, gormDB.Omit("Batteries", "BookedBatteries").Create(&f.Station).Error)
	Stock(t, gormDB, f.Station.ID, f.Battery.ID)
	return f
}

// AddBattery creates a battery with loaded associations.
func AddBattery(t testing.TB, gormDB *gorm.DB, company model.Company, vehicle model.Vehicle, price string) model.Battery {
	t.Helper()
	b := model.Battery{
		CompanyID: company.ID,
		VehicleID: vehicle.ID,
		Price:     decimal.RequireFromString(price),
	}
	require.NoError(t, gormDB.Omit("Company", "Vehicle").Create(&b).Error)
	b.Company, b.Vehicle = company, vehicle
	return b
}

// Stock puts a battery into a station's available set.
func Stock(t testing.TB, gormDB *gorm.DB, stationID, batteryID int64) {
	t.Helper()
	require.NoError(t, gormDB.Exec(
		"INSERT INTO "+model.StationBatteriesTable+" (station_id, battery_id) VALUES (?, ?)",
		stationID, batteryID,
	).Error)
}
