package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_SubscribeAll_CreatedOnceThenRefresh(t *testing.T) {
	r := New()

	assert.True(t, r.SubscribeAll(time.Minute))
	assert.False(t, r.SubscribeAll(time.Minute))
	assert.Equal(t, 1, r.Len())
}

func Test_Subscribe_CreatedOnceThenRefresh(t *testing.T) {
	r := New()

	assert.True(t, r.Subscribe("battery/+/Dc/0/Voltage", time.Minute))
	assert.False(t, r.Subscribe("battery/+/Dc/0/Voltage", time.Minute))
	assert.Equal(t, 1, r.Len())
}

func Test_Match(t *testing.T) {
	r := New()
	r.Subscribe("battery/+/Dc/0/Voltage", time.Minute)

	assert.True(t, r.Match([]string{"battery", "0", "Dc", "0", "Voltage"}))
	assert.False(t, r.Match([]string{"battery", "0", "Dc", "0", "Current"}))
}

func Test_Cleanup_NothingExpired(t *testing.T) {
	r := New()
	r.Subscribe("battery/0/Dc/0/Voltage", time.Minute)

	retracted := r.Cleanup([]Published{{Full: "N/s/battery/0/Dc/0/Current", Short: []string{"battery", "0", "Dc", "0", "Current"}}}, nil)
	assert.Nil(t, retracted)
}

func Test_Cleanup_ExpiredRetractsUnmatched(t *testing.T) {
	r := New()
	r.Subscribe("battery/0/Dc/0/Voltage", -time.Second) // already expired

	published := []Published{
		{Full: "N/s/battery/0/Dc/0/Voltage", Short: []string{"battery", "0", "Dc", "0", "Voltage"}},
		{Full: "N/s/battery/0/Dc/0/Current", Short: []string{"battery", "0", "Dc", "0", "Current"}},
	}

	retracted := r.Cleanup(published, nil)
	assert.ElementsMatch(t, []string{"N/s/battery/0/Dc/0/Voltage", "N/s/battery/0/Dc/0/Current"}, retracted)
	assert.Equal(t, 0, r.Len())
}

func Test_Cleanup_ExceptionsSurvive(t *testing.T) {
	r := New()
	r.Subscribe("battery/0/Dc/0/Voltage", -time.Second)

	published := []Published{
		{Full: "N/s/system/0/Serial", Short: []string{"system", "0", "Serial"}},
	}

	retracted := r.Cleanup(published, map[string]bool{"N/s/system/0/Serial": true})
	assert.Empty(t, retracted)
}

func Test_Cleanup_SurvivingAllWildcardShortCircuits(t *testing.T) {
	r := New()
	r.SubscribeAll(time.Minute)
	r.Subscribe("battery/0/Dc/0/Voltage", -time.Second)

	published := []Published{
		{Full: "N/s/battery/0/Dc/0/Current", Short: []string{"battery", "0", "Dc", "0", "Current"}},
	}

	retracted := r.Cleanup(published, nil)
	assert.Nil(t, retracted)
	assert.Equal(t, 1, r.Len())
}

func Test_Cleanup_ZeroTTLNeverExpires(t *testing.T) {
	r := New()
	r.Subscribe("battery/0/Dc/0/Voltage", 0)

	time.Sleep(5 * time.Millisecond)

	retracted := r.Cleanup(nil, nil)
	assert.Nil(t, retracted)
	assert.Equal(t, 1, r.Len())
}
