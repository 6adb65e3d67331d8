package hardware

import (
	"context"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/serial"
)

// Motor board USB identity and serial settings.
var MotorBoardUSBID = serial.USBID{VID: 0x0403, PID: 0x6001}

const (
	motorBoardProduct     = "MCV4B"
	motorBoardBaudRate    = 1_000_000
	motorBoardReadTimeout = 250 * time.Millisecond

	// MotorBoardFirmware is the only firmware version supported.
	MotorBoardFirmware = "3"
)

// Motor board commands. Each is one byte, followed by one value byte for motor commands.
const (
	motorCmdVersion byte = 1

	motorSpeedCoast byte = 1
	motorSpeedBrake byte = 2
)

var motorCommands = [boards.MotorCount]byte{2, 3}

// MotorBoardBackendKind drives SR v4 motor boards.
var MotorBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4MotorBoardHardwareBackend",
	Board:           boards.MotorBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*MotorBoardBackend]()},
	Discover:        discoverMotorBoards,
})

func discoverMotorBoards(ctx context.Context) ([]hal.Board, error) {
	ports, err := serial.FindPorts(listPorts, MotorBoardUSBID)
	if err != nil {
		return nil, err
	}

	var found []hal.Board
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if port.Product != motorBoardProduct {
			continue
		}

		t, err := openSerial(port.Device, serialOptions(motorBoardBaudRate, motorBoardReadTimeout)...)
		if err != nil {
			logger.Error("hardware: cannot open motor board", "device", port.Device, "error", err)
			continue
		}
		backend, err := NewMotorBoardBackend(t)
		if err != nil {
			_ = t.Close()
			logger.Error("hardware: cannot initialise motor board", "device", port.Device, "error", err)
			continue
		}
		found = append(found, boards.NewMotorBoard(port.SerialNumber, backend))
	}

	return found, nil
}

// MotorBoardBackend drives a motor board over its binary serial protocol.
type MotorBoardBackend struct {
	t       *serial.Transport
	version string

	mu     sync.Mutex
	states [boards.MotorCount]component.MotorState
}

// NewMotorBoardBackend checks the firmware on t and brakes both motors.
func NewMotorBoardBackend(t *serial.Transport) (*MotorBoardBackend, error) {
	b := &MotorBoardBackend{t: t}

	version, err := b.readVersion()
	if err != nil {
		return nil, err
	}
	if version != MotorBoardFirmware {
		return nil, errcode.New(errcode.FirmwareMismatch, "motor board",
			"unexpected firmware version: %s, expected: %q", version, MotorBoardFirmware)
	}
	b.version = version

	brake := component.Special(component.Brake)
	for i := range b.states {
		if err := b.SetMotorState(i, brake); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *MotorBoardBackend) readVersion() (string, error) {
	var line string
	err := b.t.Exchange(func(c *serial.Conn) error {
		if err := c.Write([]byte{motorCmdVersion}); err != nil {
			return err
		}
		var err error
		line, err = c.ReadLine(false)

		return err
	})
	if err != nil {
		return "", err
	}

	model, version, _ := strings.Cut(line, ":")
	if model != motorBoardProduct {
		return "", errcode.New(errcode.FirmwareMismatch, "motor board", "unexpected model string: %q, expected %s", model, motorBoardProduct)
	}

	return version, nil
}

// FirmwareVersion returns the version read when the board was opened.
func (b *MotorBoardBackend) FirmwareVersion() (string, error) { return b.version, nil }

// GetMotorState returns the last state written; the board cannot report it.
func (b *MotorBoardBackend) GetMotorState(id int) (component.MotorState, error) {
	if err := checkIdentifier("motor board", id, boards.MotorCount); err != nil {
		return component.MotorState{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.states[id], nil
}

func (b *MotorBoardBackend) SetMotorState(id int, state component.MotorState) error {
	if err := checkIdentifier("motor board", id, boards.MotorCount); err != nil {
		return err
	}

	value, err := motorValue(state)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cmd := []byte{motorCommands[id], value}
	if err := b.t.Exchange(func(c *serial.Conn) error { return c.Write(cmd) }); err != nil {
		return err
	}
	b.states[id] = state

	return nil
}

// motorValue maps a power level to 3..253 so that full power is the same magnitude in
// both directions; 1 and 2 are coast and brake.
func motorValue(state component.MotorState) (byte, error) {
	if s, ok := state.IsSpecial(); ok {
		switch s {
		case component.Brake:
			return motorSpeedBrake, nil
		case component.Coast:
			return motorSpeedCoast, nil
		}
		return 0, errcode.New(errcode.InvalidParams, "motor board", "unknown motor state %v", s)
	}

	p, _ := state.Power()
	if math.IsNaN(p) || p < -1 || p > 1 {
		return 0, errcode.New(errcode.InvalidParams, "motor board", "only motor powers between -1 and 1 are supported")
	}

	return byte(int(math.RoundToEven(p*125)) + 128), nil
}

// Close brakes both motors and releases the port.
func (b *MotorBoardBackend) Close() error {
	brake := component.Special(component.Brake)
	for i := range b.states {
		if err := b.SetMotorState(i, brake); err != nil {
			logger.Warn("hardware: cannot brake motor before closing", "motor", i, "error", err)
		}
	}

	return b.t.Close()
}
