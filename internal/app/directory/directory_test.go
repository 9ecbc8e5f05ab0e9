package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Register_And_Lookup(t *testing.T) {
	d := New()
	d.Register(":1.5", "com.victronenergy.battery.ttyO1", "battery/0")

	full, ok := d.FullName("battery/0")
	assert.True(t, ok)
	assert.Equal(t, "com.victronenergy.battery.ttyO1", full)

	owner, ok := d.Owner(":1.5")
	assert.True(t, ok)
	assert.Equal(t, "com.victronenergy.battery.ttyO1", owner)
}

func Test_Forget(t *testing.T) {
	d := New()
	d.Register(":1.5", "com.victronenergy.battery.ttyO1", "battery/0")

	d.Forget(":1.5", "com.victronenergy.battery.ttyO1")

	_, ok := d.FullName("battery/0")
	assert.False(t, ok)

	_, ok = d.Owner(":1.5")
	assert.False(t, ok)

	_, ok = d.ShortNameForOwner(":1.5")
	assert.False(t, ok)
}

func Test_ShortNameForOwner(t *testing.T) {
	d := New()
	d.Register(":1.5", "com.victronenergy.battery.ttyO1", "battery/0")

	short, ok := d.ShortNameForOwner(":1.5")
	assert.True(t, ok)
	assert.Equal(t, "battery/0", short)
}

func Test_ServiceType(t *testing.T) {
	st, err := ServiceType("com.victronenergy.battery.ttyO1", "com.victronenergy.")
	require.NoError(t, err)
	assert.Equal(t, "battery", st)

	_, err = ServiceType("com.example.other", "com.victronenergy.")
	assert.Error(t, err)
}

func Test_BaseName(t *testing.T) {
	assert.Equal(t, "com.victronenergy.battery", BaseName("com.victronenergy.battery.ttyO1"))
}

func Test_ShortName(t *testing.T) {
	assert.Equal(t, "battery/0", ShortName("battery", "0"))
}
