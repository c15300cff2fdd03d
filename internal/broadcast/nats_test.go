package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectMapping(t *testing.T) {
	assert.Equal(t, "swap.events.station_4", subjectFor("swap.events", StationGroup(4)))

	group, ok := groupFromSubject("swap.events", "swap.events.stations_all")
	assert.True(t, ok)
	assert.Equal(t, AllStationsGroup, group)

	for _, subject := range []string{
		"swap.events",
		"swap.events.",
		"other.user_1",
		"swap.events.user_1.extra",
	} {
		_, ok := groupFromSubject("swap.events", subject)
		assert.False(t, ok, subject)
	}
}

func TestConnectNATS_Unreachable(t *testing.T) {
	_, err := ConnectNATS("nats://127.0.0.1:1")
	assert.ErrorContains(t, err, "connect nats")
}
