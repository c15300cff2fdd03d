package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battery-swap-backend/internal/model"
)

// fakeSource serves fixed counts per station.
type fakeSource struct {
	counts map[int64][2]int64
	err    error
}

func (f *fakeSource) InventoryCounts(_ context.Context, stationID int64) (int64, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	c := f.counts[stationID]
	return c[0], c[1], nil
}

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(src SnapshotSource) (*Service, *Recorder) {
	rec := &Recorder{}
	return NewService(src, Direct(rec)).WithClock(tickingClock()), rec
}

var (
	downtown = model.Station{ID: 7, Name: "Downtown Charging Hub"}
	battery  = model.Battery{
		ID:      42,
		Company: model.Company{Name: "Tesla Energy"},
		Vehicle: model.Vehicle{Name: "Ather 450X"},
	}
)

func TestInventoryUpdate_FansOutToStationAndGlobal(t *testing.T) {
	svc, rec := newTestService(&fakeSource{counts: map[int64][2]int64{7: {3, 2}}})

	svc.InventoryUpdate(context.Background(), downtown, ActionUpdate)

	station := rec.InGroup("station_7")
	global := rec.InGroup(AllStationsGroup)
	require.Len(t, station, 1)
	require.Len(t, global, 1)
	assert.Equal(t, station[0], global[0])

	ev, ok := station[0].(InventoryUpdate)
	require.True(t, ok)
	assert.Equal(t, int64(7), ev.StationID)
	assert.Equal(t, "Downtown Charging Hub", ev.StationName)
	assert.Equal(t, int64(3), ev.AvailableBatteries)
	assert.Equal(t, int64(2), ev.BookedBatteries)
	assert.Equal(t, ev.AvailableBatteries+ev.BookedBatteries, ev.TotalBatteries)
	assert.Equal(t, ActionUpdate, ev.Action)
}

func TestInventoryUpdate_RepeatedCallsDifferOnlyInTimestamp(t *testing.T) {
	svc, rec := newTestService(&fakeSource{counts: map[int64][2]int64{7: {1, 0}}})

	svc.InventoryUpdate(context.Background(), downtown, ActionTest)
	svc.InventoryUpdate(context.Background(), downtown, ActionTest)

	events := rec.InGroup("station_7")
	require.Len(t, events, 2)
	first := events[0].(InventoryUpdate)
	second := events[1].(InventoryUpdate)
	assert.NotEqual(t, first.Timestamp, second.Timestamp)

	first.Timestamp, second.Timestamp = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestInventoryUpdate_SkipsWhenSnapshotFails(t *testing.T) {
	svc, rec := newTestService(&fakeSource{err: errors.New("station not found")})

	svc.InventoryUpdate(context.Background(), downtown, ActionUpdate)
	svc.BatteryAdded(context.Background(), downtown, battery)

	assert.Empty(t, rec.Events())
}

func TestBatteryBooked_PrivateConfirmationForUser(t *testing.T) {
	svc, rec := newTestService(&fakeSource{counts: map[int64][2]int64{7: {4, 1}}})
	user := &model.User{ID: 11, Email: "rider@example.com"}
	orderID := int64(900)

	svc.BatteryBooked(context.Background(), downtown, battery, user, &orderID)

	private := rec.InGroup("user_11")
	require.Len(t, private, 1)
	confirmed, ok := private[0].(BookingConfirmed)
	require.True(t, ok)
	assert.Equal(t, "Tesla Energy - Ather 450X", confirmed.BatteryInfo)
	assert.Equal(t, "Battery booked successfully at Downtown Charging Hub", confirmed.Message)
	require.NotNil(t, confirmed.BookingID)
	assert.Equal(t, orderID, *confirmed.BookingID)

	booked := rec.InGroup(AllStationsGroup)
	require.Len(t, booked, 1)
	ev := booked[0].(BatteryBooked)
	require.NotNil(t, ev.User)
	assert.Equal(t, "rider@example.com", *ev.User)
	assert.Equal(t, int64(42), ev.BatteryID)
	assert.Len(t, rec.InGroup("station_7"), 1)
}

func TestBatteryBooked_NoUserNoPrivateEvent(t *testing.T) {
	svc, rec := newTestService(&fakeSource{counts: map[int64][2]int64{7: {4, 1}}})

	svc.BatteryBooked(context.Background(), downtown, battery, nil, nil)

	assert.Len(t, rec.Events(), 2)
	ev := rec.InGroup("station_7")[0].(BatteryBooked)
	assert.Nil(t, ev.User)
}

func TestCollectedAddedAndStatus_StationScopedOnly(t *testing.T) {
	svc, rec := newTestService(&fakeSource{counts: map[int64][2]int64{7: {2, 2}}})
	ctx := context.Background()

	svc.BatteryCollected(ctx, downtown, battery)
	svc.BatteryAdded(ctx, downtown, battery)
	msg := "scheduled maintenance"
	svc.StationStatus(ctx, downtown, "maintenance", &msg)

	kinds := func(events []Event) []Kind {
		var out []Kind
		for _, e := range events {
			out = append(out, e.Kind())
		}
		return out
	}
	want := []Kind{KindBatteryCollected, KindBatteryAdded, KindStationStatus}
	assert.Equal(t, want, kinds(rec.InGroup("station_7")))
	assert.Equal(t, want, kinds(rec.InGroup(AllStationsGroup)))
	assert.Len(t, rec.Events(), 6)

	added := rec.InGroup("station_7")[1].(BatteryAdded)
	assert.Equal(t, int64(4), added.TotalBatteries)
}

func TestUserNotifications_PrivateOnly(t *testing.T) {
	svc, rec := newTestService(&fakeSource{})
	user := model.User{ID: 5}

	svc.SendUserNotification(context.Background(), user, "Welcome", "Your plan is active", "")
	svc.NotifyBookingReady(context.Background(), user, 77, "Mall Road Station")

	events := rec.InGroup("user_5")
	require.Len(t, events, 2)
	assert.Len(t, rec.Events(), 2)

	note := events[0].(Notification)
	assert.Equal(t, "info", note.Level)
	ready := events[1].(BookingReady)
	assert.Equal(t, int64(77), ready.BookingID)
	assert.Equal(t, "Your battery is ready for collection at Mall Road Station", ready.Message)
}

func TestService_NilIsNoOp(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		svc.InventoryUpdate(context.Background(), downtown, ActionUpdate)
		svc.SendUserNotification(context.Background(), model.User{ID: 1}, "t", "m", "info")
	})

	unconfigured := NewService(&fakeSource{}, nil)
	assert.NotPanics(t, func() {
		unconfigured.BatteryBooked(context.Background(), downtown, battery, &model.User{ID: 1}, nil)
	})
}

// failingPublisher always errors.
type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, Event) error {
	return errors.New("channel layer unavailable")
}

func TestDirect_PublishFailureDoesNotPanic(t *testing.T) {
	svc := NewService(&fakeSource{counts: map[int64][2]int64{7: {1, 1}}}, Direct(failingPublisher{}))
	assert.NotPanics(t, func() {
		svc.InventoryUpdate(context.Background(), downtown, ActionUpdate)
	})
}

func TestMulti_JoinsErrorsAndKeepsPublishing(t *testing.T) {
	rec := &Recorder{}
	err := Multi{failingPublisher{}, nil, rec}.Publish(context.Background(), "stations_all", Notification{Message: "x"})
	assert.ErrorContains(t, err, "channel layer unavailable")
	assert.Len(t, rec.Events(), 1)
}

func TestEncode_TagsType(t *testing.T) {
	msg := "back online"
	raw, err := Encode(StationStatus{StationID: 3, StationName: "Airport", Status: "online", Message: &msg})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "station_status", got["type"])
	assert.Equal(t, float64(3), got["station_id"])
	assert.Equal(t, "back online", got["message"])
	assert.Contains(t, got, "timestamp")

	raw, err = Encode(InventoryUpdate{InventorySnapshot: InventorySnapshot{StationID: 3, TotalBatteries: 2}, Action: ActionCreated})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "inventory_update", got["type"])
	assert.Equal(t, "created", got["action"])
	assert.Equal(t, float64(2), got["total_batteries"])
}

func TestGroupNames(t *testing.T) {
	assert.Equal(t, "station_12", StationGroup(12))
	assert.Equal(t, "user_3", UserGroup(3))

	group, ok := groupFromSubject("swap.events", subjectFor("swap.events", "station_12"))
	assert.True(t, ok)
	assert.Equal(t, "station_12", group)

	_, ok = groupFromSubject("swap.events", "other.station_12")
	assert.False(t, ok)
}

func TestAction_Valid(t *testing.T) {
	assert.True(t, ActionCollect.Valid())
	assert.False(t, Action("explode").Valid())
}
