package hardware

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/transport/serial"
	"github.com/arloliu/go-robohal/transport/serial/serialtest"
	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPowerBoardPort() *serialtest.FakePort {
	port := serialtest.New()
	port.Respond("*IDN?", "Student Robotics:PBv4B:SR0PB1:4.4.1\n")
	port.Respond("*RESET", "ACK\n")

	return port
}

func newSRV4PowerBoard(t *testing.T) (*SRV4PowerBoardBackend, *serialtest.FakePort) {
	t.Helper()

	port := newPowerBoardPort()
	b, err := NewSRV4PowerBoardBackend(newTransport(t, port))
	require.NoError(t, err)

	return b, port
}

func TestSRV4PowerBoard_Init(t *testing.T) {
	b, port := newSRV4PowerBoard(t)

	assert.Equal(t, []string{"*IDN?", "*RESET"}, port.Lines())

	fw, err := b.FirmwareVersion()
	require.NoError(t, err)
	assert.Equal(t, "4.4.1", fw)
}

func TestSRV4PowerBoard_InitRejectsOldFirmware(t *testing.T) {
	port := serialtest.New()
	port.Respond("*IDN?", "Student Robotics:PBv4B:SR0PB1:4.3\n")

	_, err := NewSRV4PowerBoardBackend(newTransport(t, port))
	require.ErrorIs(t, err, errcode.FirmwareMismatch)
	assert.Equal(t, []string{"*IDN?"}, port.Lines())
}

func TestSRV4PowerBoard_Outputs(t *testing.T) {
	b, port := newSRV4PowerBoard(t)
	port.Respond("OUT:0:GET?", "1\n")
	port.Respond("OUT:1:GET?", "maybe\n")
	port.Respond("OUT:3:SET:1", "ACK\n")
	port.Respond("OUT:2:I?", "1500\n")
	port.Respond("OUT:4:SET:1", "NACK:Overcurrent\n")

	on, err := b.GetPowerOutputEnabled(0)
	require.NoError(t, err)
	assert.True(t, on)

	_, err = b.GetPowerOutputEnabled(1)
	assert.ErrorIs(t, err, errcode.Protocol)

	require.NoError(t, b.SetPowerOutputEnabled(3, true))

	amps, err := b.GetPowerOutputCurrent(2)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, amps, 1e-9)

	err = b.SetPowerOutputEnabled(4, true)
	require.ErrorIs(t, err, errcode.Nack)
	assert.ErrorIs(t, err, errcode.Communication)

	before := len(port.Lines())
	for _, id := range []int{-1, 6} {
		assert.ErrorIs(t, b.SetPowerOutputEnabled(id, true), errcode.InvalidParams)
	}
	assert.Len(t, port.Lines(), before)
}

func TestSRV4PowerBoard_Buzz(t *testing.T) {
	b, port := newSRV4PowerBoard(t)
	port.Respond("NOTE:1047:100", "ACK\n")

	require.NoError(t, b.Buzz(0, 100*time.Millisecond, float64(component.C6), false))
	assert.Equal(t, "NOTE:1047:100", port.Lines()[2])

	tests := []struct {
		name      string
		id        int
		duration  time.Duration
		frequency float64
		code      errcode.Code
	}{
		{"bad identifier", 1, time.Second, 440, errcode.InvalidParams},
		{"too long", 0, 65536 * time.Millisecond, 440, errcode.Unsupported},
		{"too high", 0, time.Second, 70000, errcode.Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, b.Buzz(tt.id, tt.duration, tt.frequency, false), tt.code)
		})
	}
}

func TestSRV4PowerBoard_Button(t *testing.T) {
	tests := []struct {
		reply   string
		pressed bool
		code    errcode.Code
	}{
		{"0:1\n", true, ""},
		{"1:0\n", true, ""},
		{"0:0\n", false, ""},
		{"x:y\n", false, errcode.Protocol},
		{"1\n", false, errcode.Protocol},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			b, port := newSRV4PowerBoard(t)
			port.Respond("BTN:START:GET?", tt.reply)

			pressed, err := b.GetButtonState(0)
			if tt.code != "" {
				assert.ErrorIs(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pressed, pressed)
		})
	}
}

func TestSRV4PowerBoard_WaitUntilButtonPressed(t *testing.T) {
	b, port := newSRV4PowerBoard(t)

	var polls atomic.Int32
	port.RespondFunc("BTN:START:GET?", func() string {
		if polls.Add(1) < 3 {
			return "0:0\n"
		}
		return "0:1\n"
	})

	require.NoError(t, b.WaitUntilButtonPressed(context.Background(), 0))
	assert.Equal(t, int32(3), polls.Load())
}

func TestSRV4PowerBoard_BatteryAndLEDs(t *testing.T) {
	b, port := newSRV4PowerBoard(t)
	port.Respond("BATT:V?", "12100\n")
	port.Respond("BATT:I?", "250\n")
	port.Respond("LED:ERR:SET:1", "ACK\n")

	v, err := b.GetBatterySensorVoltage(0)
	require.NoError(t, err)
	assert.InDelta(t, 12.1, v, 1e-9)

	i, err := b.GetBatterySensorCurrent(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, i, 1e-9)

	require.NoError(t, b.SetLEDState(boards.ErrorLEDID, true))
	on, err := b.GetLEDState(boards.ErrorLEDID)
	require.NoError(t, err)
	assert.True(t, on)

	assert.ErrorIs(t, b.SetLEDState(2, true), errcode.InvalidParams)
}

func newLegacyUSB(serialNumber string, firmware uint32) *fakeUSB {
	f := newFakeUSB(serialNumber)
	f.reads[legacyReadFirmware.Code] = le32(firmware)
	f.reads[legacyReadBattery.Code] = le32(1500, 12100)
	f.reads[legacyReadButton.Code] = le32(1)
	f.reads[2] = le32(2500)

	return f
}

func TestLegacyPowerBoard(t *testing.T) {
	f := newLegacyUSB("LEG1", 3)
	b, err := NewLegacyPowerBoardBackend(newRawDevice(t, f))
	require.NoError(t, err)

	require.NoError(t, b.SetPowerOutputEnabled(5, true))
	on, err := b.GetPowerOutputEnabled(5)
	require.NoError(t, err)
	assert.True(t, on)

	amps, err := b.GetPowerOutputCurrent(2)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, amps, 1e-9)

	v, err := b.GetBatterySensorVoltage(0)
	require.NoError(t, err)
	assert.InDelta(t, 12.1, v, 1e-9)
	i, err := b.GetBatterySensorCurrent(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, i, 1e-9)

	pressed, err := b.GetButtonState(0)
	require.NoError(t, err)
	assert.True(t, pressed)

	require.NoError(t, b.SetLEDState(boards.RunLEDID, true))
	require.NoError(t, b.SetLEDState(boards.ErrorLEDID, false))
	require.NoError(t, b.Buzz(0, 250*time.Millisecond, 440, false))

	assert.Equal(t, []usbWrite{
		{code: 5, value: 1},
		{code: 6, value: 1},
		{code: 7, value: 0},
		{code: 8, value: 0, data: []byte{0xb8, 0x01, 0xfa, 0x00}},
	}, f.written())
}

func TestLegacyPowerBoard_Firmware(t *testing.T) {
	_, err := NewLegacyPowerBoardBackend(newRawDevice(t, newLegacyUSB("LEG1", 4)))
	assert.ErrorIs(t, err, errcode.FirmwareMismatch)
}

func TestLegacyPowerBoard_BuzzTooFast(t *testing.T) {
	f := newLegacyUSB("LEG1", 3)
	b, err := NewLegacyPowerBoardBackend(newRawDevice(t, f))
	require.NoError(t, err)

	f.writeErr = gousb.ErrorPipe
	err = b.Buzz(0, time.Second, 440, false)
	require.ErrorIs(t, err, ErrBuzzTooFast)
	assert.ErrorIs(t, err, errcode.Communication)
}

func TestDiscoverPowerBoards(t *testing.T) {
	sys := &fakeSystem{
		ports: []serial.PortInfo{
			{Device: "/dev/ttyACM0", IsUSB: true, USBID: PowerBoardUSBID, SerialNumber: "SRPB1", Product: "PBV4B"},
			{Device: "/dev/ttyACM1", IsUSB: true, USBID: PowerBoardUSBID, Product: "PBV4B"},
			{Device: "/dev/ttyACM2", IsUSB: true, USBID: PowerBoardUSBID, SerialNumber: "OTHER", Product: "Bootloader"},
			{Device: "/dev/ttyACM3", IsUSB: true, USBID: PowerBoardUSBID, SerialNumber: "SRPB2", Product: "PBV4B"},
			{Device: "/dev/ttyS0"},
		},
		serials: map[string]*serialtest.FakePort{
			"/dev/ttyACM0": newPowerBoardPort(),
			"/dev/ttyACM3": serialtest.New(),
		},
		usb: []rawusb.ControlDevice{newLegacyUSB("LEG1", 3)},
	}
	installFakeSystem(t, sys)

	found, err := PowerBoardBackendKind.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, "LEG1", found[0].SerialNumber())
	assert.Equal(t, "SRPB1", found[1].SerialNumber())
	for _, b := range found {
		assert.Same(t, boards.PowerBoardKind, b.Kind())
	}

	assert.True(t, sys.serials["/dev/ttyACM3"].Closed(), "a board that fails to initialise is closed")
	assert.Equal(t, serial.DefaultBaudRate, sys.serials["/dev/ttyACM0"].BaudRate)
}
