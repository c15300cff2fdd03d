package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battery-swap-backend/internal/broadcast"
	"battery-swap-backend/internal/db/dbtest"
	"battery-swap-backend/internal/model"
	"battery-swap-backend/internal/store"
	"battery-swap-backend/internal/subscription"
)

// gateFunc adapts a function to OrderGate.
type gateFunc func(ctx context.Context, userID int64) (bool, string)

func (f gateFunc) CanCreateOrder(ctx context.Context, userID int64) (bool, string) {
	return f(ctx, userID)
}

func (gateFunc) LockUser(int64) func() { return func() {} }

func allowAll(context.Context, int64) (bool, string) { return true, "" }

type fixture struct {
	dbtest.Fixture
	store    store.Store
	recorder *broadcast.Recorder
	svc      *Service
}

func newFixture(t *testing.T, gate OrderGate) *fixture {
	gormDB := dbtest.Open(t)
	f := &fixture{
		Fixture:  dbtest.Seed(t, gormDB),
		store:    store.NewGormStore(gormDB),
		recorder: &broadcast.Recorder{},
	}
	events := broadcast.NewService(f.store, broadcast.Direct(f.recorder))
	f.svc = NewService(f.store, gate, events)
	return f
}

func kinds(evs []broadcast.Event) []broadcast.Kind {
	out := make([]broadcast.Kind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind())
	}
	return out
}

func TestBookBattery_EmitsOnAllChannels(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()

	order, err := f.svc.BookBattery(ctx, f.Station.ID, f.Battery.ID, f.User)
	require.NoError(t, err)
	assert.True(t, order.IsPaid)

	stationGroup := broadcast.StationGroup(f.Station.ID)
	assert.Equal(t, []broadcast.Kind{broadcast.KindInventoryUpdate, broadcast.KindBatteryBooked},
		kinds(f.recorder.InGroup(stationGroup)))
	assert.Equal(t, kinds(f.recorder.InGroup(stationGroup)), kinds(f.recorder.InGroup(broadcast.AllStationsGroup)))

	update := f.recorder.InGroup(stationGroup)[0].(broadcast.InventoryUpdate)
	assert.Equal(t, broadcast.ActionUpdate, update.Action)
	assert.Equal(t, int64(0), update.AvailableBatteries)
	assert.Equal(t, int64(1), update.BookedBatteries)
	assert.Equal(t, int64(1), update.TotalBatteries)

	booked := f.recorder.InGroup(stationGroup)[1].(broadcast.BatteryBooked)
	assert.Equal(t, f.Battery.ID, booked.BatteryID)
	require.NotNil(t, booked.User)
	assert.Equal(t, f.User.Email, *booked.User)

	private := f.recorder.InGroup(broadcast.UserGroup(f.User.ID))
	require.Len(t, private, 1)
	confirmed := private[0].(broadcast.BookingConfirmed)
	require.NotNil(t, confirmed.BookingID)
	assert.Equal(t, order.ID, *confirmed.BookingID)
	assert.Equal(t, "Tesla Energy - Ather 450X", confirmed.BatteryInfo)
	assert.Equal(t, "Battery booked successfully at Koramangala Hub", confirmed.Message)
}

func TestBookBattery_DeniedLeavesInventoryAlone(t *testing.T) {
	gormDB := dbtest.Open(t)
	fx := dbtest.Seed(t, gormDB)
	require.NoError(t, subscription.SeedPlans(context.Background(), gormDB))
	s := store.NewGormStore(gormDB)
	rec := &broadcast.Recorder{}
	svc := NewService(s, subscription.NewEnforcer(gormDB, time.UTC), broadcast.NewService(s, broadcast.Direct(rec)))

	_, err := svc.BookBattery(context.Background(), fx.Station.ID, fx.Battery.ID, fx.User)
	require.ErrorIs(t, err, ErrSubscriptionDenied)
	assert.Equal(t, subscription.ReasonNoSubscription, err.Error())

	available, booked, err := s.InventoryCounts(context.Background(), fx.Station.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), available)
	assert.Zero(t, booked)
	assert.Empty(t, rec.Events())
}

func TestBookBattery_ConcurrentAtLimitAdmitsOne(t *testing.T) {
	gormDB := dbtest.Open(t)
	fx := dbtest.Seed(t, gormDB)
	ctx := context.Background()
	require.NoError(t, subscription.SeedPlans(ctx, gormDB))
	second := dbtest.AddBattery(t, gormDB, fx.Company, fx.Vehicle, "499.00")
	dbtest.Stock(t, gormDB, fx.Station.ID, second.ID)

	var basic model.SubscriptionPlan
	require.NoError(t, gormDB.Where("name = ?", "Basic").First(&basic).Error)
	enforcer := subscription.NewEnforcer(gormDB, time.UTC)
	_, err := enforcer.Subscribe(ctx, fx.User.ID, basic.ID, 1)
	require.NoError(t, err)

	// Nine of ten swaps used this month.
	bookedAt := time.Now().UTC().Add(-time.Second)
	for i := 0; i < 9; i++ {
		require.NoError(t, gormDB.Omit("User", "Station", "Battery").Create(&model.Order{
			UserID: fx.User.ID, StationID: fx.Station.ID, BatteryID: fx.Battery.ID,
			BookedTime: bookedAt, IsPaid: true,
		}).Error)
	}

	s := store.NewGormStore(gormDB)
	svc := NewService(s, enforcer, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, batteryID := range []int64{fx.Battery.ID, second.ID} {
		wg.Add(1)
		go func(i int, batteryID int64) {
			defer wg.Done()
			_, errs[i] = svc.BookBattery(ctx, fx.Station.ID, batteryID, fx.User)
		}(i, batteryID)
	}
	wg.Wait()

	var booked, denied int
	for _, err := range errs {
		switch {
		case err == nil:
			booked++
		case errors.Is(err, ErrSubscriptionDenied):
			denied++
			assert.Contains(t, err.Error(), "10/10")
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, booked)
	assert.Equal(t, 1, denied)

	used, err := enforcer.MonthlySwapCount(ctx, fx.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)
}

func TestBookBattery_UnavailableBattery(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()
	_, err := f.svc.BookBattery(ctx, f.Station.ID, f.Battery.ID, f.User)
	require.NoError(t, err)
	f.recorder.Reset()

	_, err = f.svc.BookBattery(ctx, f.Station.ID, f.Battery.ID, f.User)
	assert.ErrorIs(t, err, store.ErrBatteryUnavailable)
	assert.Empty(t, f.recorder.Events())

	_, err = f.svc.BookBattery(ctx, 404, f.Battery.ID, f.User)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCollectBattery(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()
	order, err := f.svc.BookBattery(ctx, f.Station.ID, f.Battery.ID, f.User)
	require.NoError(t, err)
	f.recorder.Reset()

	_, err = f.svc.CollectBattery(ctx, order.ID, f.User.ID+1)
	assert.ErrorIs(t, err, ErrNotOwner)

	collected, err := f.svc.CollectBattery(ctx, order.ID, f.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, collected.CollectedTime)

	evs := f.recorder.InGroup(broadcast.AllStationsGroup)
	assert.Equal(t, []broadcast.Kind{broadcast.KindInventoryUpdate, broadcast.KindBatteryCollected}, kinds(evs))
	ev := evs[1].(broadcast.BatteryCollected)
	assert.Zero(t, ev.AvailableBatteries)
	assert.Zero(t, ev.BookedBatteries)

	_, err = f.svc.CollectBattery(ctx, order.ID, f.User.ID)
	assert.ErrorIs(t, err, store.ErrAlreadyCollected)
}

func TestAddBattery(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()

	b, err := f.svc.CreateBattery(ctx, f.Company.ID, f.Vehicle.ID, decimal.RequireFromString("275.25"))
	require.NoError(t, err)
	assert.Equal(t, "Tesla Energy - Ather 450X", b.Descriptor())

	_, err = f.svc.AddBattery(ctx, f.Station.ID, b.ID)
	require.NoError(t, err)

	evs := f.recorder.InGroup(broadcast.StationGroup(f.Station.ID))
	require.Len(t, evs, 2)
	added := evs[1].(broadcast.BatteryAdded)
	assert.Equal(t, b.ID, added.BatteryID)
	assert.Equal(t, int64(2), added.AvailableBatteries)
	assert.Equal(t, int64(2), added.TotalBatteries)

	f.recorder.Reset()
	_, err = f.svc.AddBattery(ctx, f.Station.ID, b.ID)
	assert.ErrorIs(t, err, store.ErrBatteryStocked)
	assert.Empty(t, f.recorder.Events())

	_, err = f.svc.CreateBattery(ctx, f.Company.ID, f.Vehicle.ID, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateStation_AnnouncesCreated(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	st, err := f.svc.CreateStation(context.Background(), "Indiranagar", 12.97, 77.64)
	require.NoError(t, err)

	evs := f.recorder.InGroup(broadcast.AllStationsGroup)
	require.Len(t, evs, 1)
	ev := evs[0].(broadcast.InventoryUpdate)
	assert.Equal(t, broadcast.ActionCreated, ev.Action)
	assert.Equal(t, st.ID, ev.StationID)
	assert.Zero(t, ev.TotalBatteries)

	_, err = f.svc.CreateStation(context.Background(), "", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CreateStation(context.Background(), "Nowhere", 91, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClearAndRemove(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()

	require.NoError(t, f.svc.RemoveBattery(ctx, f.Station.ID, f.Battery.ID))
	assert.ErrorIs(t, f.svc.RemoveBattery(ctx, f.Station.ID, f.Battery.ID), store.ErrBatteryUnavailable)

	dbtest.Stock(t, f.store.DB(), f.Station.ID, f.Battery.ID)
	require.NoError(t, f.svc.ClearStation(ctx, f.Station.ID))

	evs := f.recorder.InGroup(broadcast.StationGroup(f.Station.ID))
	require.Len(t, evs, 2)
	last := evs[1].(broadcast.InventoryUpdate)
	assert.Zero(t, last.AvailableBatteries)
}

func TestStationAndNearby(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()
	_, err := f.svc.CreateStation(ctx, "Whitefield", 12.9698, 77.7500)
	require.NoError(t, err)
	_, err = f.svc.CreateStation(ctx, "Mysuru", 12.2958, 76.6394)
	require.NoError(t, err)

	detail, err := f.svc.Station(ctx, f.Station.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.AvailableBatteries)

	near, err := f.svc.NearbyStations(ctx, 12.9352, 77.6245, 0, 0)
	require.NoError(t, err)
	require.Len(t, near, 3)
	assert.Equal(t, "Koramangala Hub", near[0].Name)
	assert.Equal(t, "Whitefield", near[1].Name)
	assert.Equal(t, "Mysuru", near[2].Name)
	assert.InDelta(t, 0, near[0].DistanceKm, 0.001)

	near, err = f.svc.NearbyStations(ctx, 12.9352, 77.6245, 50, 1)
	require.NoError(t, err)
	require.Len(t, near, 1)

	near, err = f.svc.NearbyStations(ctx, 12.9352, 77.6245, 50, 0)
	require.NoError(t, err)
	assert.Len(t, near, 2, "Mysuru is outside 50km")

	_, err = f.svc.NearbyStations(ctx, 0, 200, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNotifications(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()
	order, err := f.svc.BookBattery(ctx, f.Station.ID, f.Battery.ID, f.User)
	require.NoError(t, err)
	f.recorder.Reset()

	require.NoError(t, f.svc.NotifyReady(ctx, order.ID))
	require.NoError(t, f.svc.Notify(ctx, f.User.ID, "Hello", "Welcome aboard", ""))
	assert.ErrorIs(t, f.svc.Notify(ctx, 404, "Hello", "x", ""), store.ErrNotFound)
	assert.ErrorIs(t, f.svc.Notify(ctx, f.User.ID, "", "x", ""), ErrInvalidInput)

	private := f.recorder.InGroup(broadcast.UserGroup(f.User.ID))
	require.Len(t, private, 2)
	ready := private[0].(broadcast.BookingReady)
	assert.Equal(t, order.ID, ready.BookingID)
	assert.Equal(t, "Your battery is ready for collection at Koramangala Hub", ready.Message)
	note := private[1].(broadcast.Notification)
	assert.Equal(t, "info", note.Level)

	assert.Empty(t, f.recorder.InGroup(broadcast.AllStationsGroup), "private events stay private")
}

func TestSetStatusAndTestBroadcast(t *testing.T) {
	f := newFixture(t, gateFunc(allowAll))
	ctx := context.Background()
	msg := "Back at 6pm"

	require.NoError(t, f.svc.SetStatus(ctx, f.Station.ID, "maintenance", &msg))
	require.NoError(t, f.svc.TestBroadcast(ctx, f.Station.ID, ""))
	assert.ErrorIs(t, f.svc.TestBroadcast(ctx, f.Station.ID, "explode"), ErrInvalidInput)
	assert.ErrorIs(t, f.svc.SetStatus(ctx, f.Station.ID, "", nil), ErrInvalidInput)

	evs := f.recorder.InGroup(broadcast.StationGroup(f.Station.ID))
	require.Len(t, evs, 2)
	status := evs[0].(broadcast.StationStatus)
	assert.Equal(t, "maintenance", status.Status)
	require.NotNil(t, status.Message)
	assert.Equal(t, msg, *status.Message)
	assert.Equal(t, broadcast.ActionTest, evs[1].(broadcast.InventoryUpdate).Action)
}

func TestNilBroadcasterStillMutates(t *testing.T) {
	gormDB := dbtest.Open(t)
	fx := dbtest.Seed(t, gormDB)
	svc := NewService(store.NewGormStore(gormDB), gateFunc(allowAll), nil)

	order, err := svc.BookBattery(context.Background(), fx.Station.ID, fx.Battery.ID, fx.User)
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
}

func TestDistanceKm(t *testing.T) {
	// Bengaluru to Mysuru is roughly 128km as the crow flies.
	assert.InDelta(t, 128, distanceKm(12.9716, 77.5946, 12.2958, 76.6394), 5)
	assert.Zero(t, distanceKm(1, 1, 1, 1))
}

var _ OrderGate = (*subscription.Enforcer)(nil)
