package hardware

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/protocol/sbduino"
	"github.com/arloliu/go-robohal/transport/serial"
	"github.com/arloliu/go-robohal/transport/serial/serialtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arduinoBoot = "# Booted\nSBDuino GPIO v2019.6.0\n"

func newSBArduino(t *testing.T) (*SBArduinoBackend, *serialtest.FakePort) {
	t.Helper()

	port := serialtest.New(arduinoBoot)
	b, err := NewSBArduinoBackend(newTransport(t, port))
	require.NoError(t, err)

	return b, port
}

func TestSBArduino_Init(t *testing.T) {
	b, _ := newSBArduino(t)

	fw, err := b.FirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, "2019.6.0", fw)

	mode, err := b.GetGPIOPinMode(7)
	require.NoError(t, err)
	assert.Equal(t, component.DigitalInput, mode)

	mode, err = b.GetGPIOPinMode(boards.A2)
	require.NoError(t, err)
	assert.Equal(t, component.AnalogueInput, mode)
}

func TestSBArduino_LED(t *testing.T) {
	b, port := newSBArduino(t)
	port.Respond("W 13 L", "+\n")
	port.Respond("W 13 H", "+\n")

	_, err := b.GetLEDState(0)
	require.ErrorIs(t, err, errcode.InvalidParams)

	require.NoError(t, b.SetGPIOPinMode(boards.LEDPin, component.DigitalOutput))
	require.NoError(t, b.SetLEDState(0, true))

	on, err := b.GetLEDState(0)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"W 13 L", "W 13 H"}, port.Lines())

	assert.ErrorIs(t, b.SetLEDState(1, true), errcode.InvalidParams)
}

func TestSBArduino_PinModes(t *testing.T) {
	b, port := newSBArduino(t)

	tests := []struct {
		name string
		pin  int
		mode component.GPIOPinMode
		code errcode.Code
	}{
		{"pull down", 4, component.DigitalInputPullDown, errcode.Unsupported},
		{"pwm", 4, component.PWMOutput, errcode.Unsupported},
		{"analogue on digital", 4, component.AnalogueInput, errcode.Unsupported},
		{"output on analogue", boards.A0, component.DigitalOutput, errcode.Unsupported},
		{"unknown pin", 1, component.DigitalOutput, errcode.InvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, b.SetGPIOPinMode(tt.pin, tt.mode), tt.code)
		})
	}
	require.NoError(t, b.SetGPIOPinMode(boards.A0, component.AnalogueInput))
	assert.Empty(t, port.Lines())

	assert.ErrorIs(t, b.WriteGPIOPinDACValue(4, 0.5), errcode.Unsupported)
	assert.ErrorIs(t, b.WriteGPIOPinPWMValue(4, 0.5), errcode.Unsupported)
}

func TestSBArduino_DigitalRead(t *testing.T) {
	b, port := newSBArduino(t)
	port.Respond("W 4 P", "+\n")
	port.Respond("R 4", "# reading\n> H\n+\n")
	port.Respond("R 5", "> X\n+\n")

	_, err := b.ReadGPIOPinDigitalState(boards.A1)
	require.ErrorIs(t, err, errcode.Unsupported)

	require.NoError(t, b.SetGPIOPinMode(4, component.DigitalInputPullUp))
	high, err := b.ReadGPIOPinDigitalState(4)
	require.NoError(t, err)
	assert.True(t, high)

	_, err = b.ReadGPIOPinDigitalState(5)
	assert.ErrorIs(t, err, errcode.Protocol)
}

func TestSBArduino_AnalogueRead(t *testing.T) {
	b, port := newSBArduino(t)
	port.Respond("A", "> a0 512\n> a1 1023\n> a2 0\n> a3 10\n+\n")

	v, err := b.ReadGPIOPinAnalogueValue(boards.A0)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-9)

	v, err = b.ReadGPIOPinAnalogueValue(boards.A2)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-9)

	_, err = b.ReadGPIOPinAnalogueValue(boards.A4)
	assert.ErrorIs(t, err, errcode.Unsupported)
	_, err = b.ReadGPIOPinAnalogueValue(4)
	assert.ErrorIs(t, err, errcode.Unsupported)
}

func TestSBArduino_FirmwareError(t *testing.T) {
	b, port := newSBArduino(t)
	port.Respond("W 3 L", "- pin 3 is busy\n")

	err := b.SetGPIOPinMode(3, component.DigitalOutput)
	require.ErrorIs(t, err, sbduino.ErrCommand)
	assert.ErrorIs(t, err, errcode.Communication)

	mode, err := b.GetGPIOPinMode(3)
	require.NoError(t, err)
	assert.Equal(t, component.DigitalInput, mode, "a rejected write leaves the pin unchanged")
}

func TestSBArduino_Servo(t *testing.T) {
	b, port := newSBArduino(t)
	port.Respond("S 2 350", "+\n")
	port.Respond("S 2 550", "+\n")
	port.Respond("S 2 0", "+\n")

	for _, pos := range []component.ServoPosition{component.MustPosition(0), component.MustPosition(1), component.Unpowered} {
		require.NoError(t, b.SetServoPosition(2, pos))
		got, err := b.GetServoPosition(2)
		require.NoError(t, err)
		assert.Equal(t, pos, got)
	}
	assert.Equal(t, []string{"S 2 350", "S 2 550", "S 2 0"}, port.Lines())

	assert.ErrorIs(t, b.SetServoPosition(16, component.Unpowered), errcode.InvalidParams)
}

func TestSBArduino_Ultrasound(t *testing.T) {
	b, port := newSBArduino(t)
	port.Respond("U 4 5", "> 123\n+\n")
	port.Respond("T 4 5", "> 0\n+\n")
	port.Respond("T 6 7", "> 580\n+\n")

	d, ok, err := b.GetUltrasoundDistance(4, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.123, d, 1e-9)

	mode, err := b.GetGPIOPinMode(4)
	require.NoError(t, err)
	assert.Equal(t, component.DigitalOutput, mode)
	state, err := b.GetGPIOPinDigitalState(4)
	require.NoError(t, err)
	assert.False(t, state)

	_, ok, err = b.GetUltrasoundPulse(4, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	pulse, ok, err := b.GetUltrasoundPulse(6, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 580*time.Microsecond, pulse)

	_, _, err = b.GetUltrasoundDistance(boards.A0, 5)
	assert.ErrorIs(t, err, errcode.Unsupported)
}

func TestDiscoverSBArduinos(t *testing.T) {
	sys := &fakeSystem{
		ports: []serial.PortInfo{
			{Device: "/dev/ttyACM0", IsUSB: true, USBID: ArduinoUSBIDs[0], SerialNumber: "ARD1"},
			{Device: "/dev/ttyACM1", IsUSB: true, USBID: ArduinoUSBIDs[2]},
			{Device: "/dev/ttyACM2", IsUSB: true, USBID: ArduinoUSBIDs[3], SerialNumber: "ARD2"},
		},
		serials: map[string]*serialtest.FakePort{
			"/dev/ttyACM0": serialtest.New(arduinoBoot),
			"/dev/ttyACM2": serialtest.New("# Booted\nSBDuino GPIO v2018.1.0\n"),
		},
	}
	installFakeSystem(t, sys)

	found, err := SBArduinoBackendKind.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ARD1", found[0].SerialNumber())
	assert.Same(t, boards.SBArduinoKind, found[0].Kind())
	assert.Equal(t, arduinoReadTimeout, sys.serials["/dev/ttyACM0"].ReadTimeout)
	assert.True(t, sys.serials["/dev/ttyACM2"].Closed())
}
