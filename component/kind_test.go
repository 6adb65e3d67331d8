package component

import (
	"reflect"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledDriver struct{ states map[int]bool }

func (d *ledDriver) GetLEDState(identifier int) (bool, error) { return d.states[identifier], nil }
func (d *ledDriver) SetLEDState(identifier int, state bool) error {
	d.states[identifier] = state
	return nil
}

// halfLEDDriver lacks SetLEDState.
type halfLEDDriver struct{}

func (halfLEDDriver) GetLEDState(int) (bool, error) { return false, nil }

// wrongLEDDriver has SetLEDState with an incompatible signature.
type wrongLEDDriver struct{}

func (wrongLEDDriver) GetLEDState(int) (bool, error) { return false, nil }
func (wrongLEDDriver) SetLEDState(int, int) error    { return nil }

func TestKind_MissingMethods(t *testing.T) {
	assert.Empty(t, KindLED.MissingMethods(reflect.TypeFor[*ledDriver]()))
	assert.Equal(t, []string{"SetLEDState"}, KindLED.MissingMethods(reflect.TypeFor[halfLEDDriver]()))

	missing := KindLED.MissingMethods(reflect.TypeFor[wrongLEDDriver]())
	require.Len(t, missing, 1)
	assert.Contains(t, missing[0], "SetLEDState (signature func(int, int) error, want func(int, bool) error)")

	assert.ElementsMatch(t, []string{"GetMotorState", "SetMotorState"}, KindMotor.MissingMethods(reflect.TypeFor[*ledDriver]()))
}

func TestKind_MissingMethods_InterfaceType(t *testing.T) {
	assert.Empty(t, KindLED.MissingMethods(reflect.TypeFor[LEDInterface]()))
	assert.Len(t, KindButton.MissingMethods(reflect.TypeFor[LEDInterface]()), 2)
}

func TestKind_Unknown(t *testing.T) {
	k := Kind("laser")
	assert.False(t, k.Valid())
	assert.Nil(t, k.Interface())
	assert.NotEmpty(t, k.MissingMethods(reflect.TypeFor[*ledDriver]()))
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	assert.Len(t, kinds, 9)
	assert.True(t, slices.IsSorted(kinds))
	for _, k := range kinds {
		assert.True(t, k.Valid())
		assert.Equal(t, reflect.Interface, k.Interface().Kind())
	}
}

func TestLED(t *testing.T) {
	d := &ledDriver{states: map[int]bool{}}
	led := NewLED(1, d)

	require.NoError(t, led.SetState(true))
	on, err := led.State()
	require.NoError(t, err)
	assert.True(t, on)
	assert.False(t, d.states[0])
	assert.Equal(t, 1, led.Identifier())
}
