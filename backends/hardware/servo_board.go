package hardware

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/rawusb"
)

// Servo board USB identity.
const (
	ServoBoardVID uint16 = 0x1bda
	ServoBoardPID uint16 = 0x0011

	// ServoBoardFirmware is the only firmware version supported.
	ServoBoardFirmware = "2"
)

var (
	servoReadFirmware = rawusb.ReadCommand{Code: 9, Length: 4}
	servoWriteInit    = rawusb.WriteCommand{Code: 12}
)

// ServoBoardBackendKind drives SR v4 servo boards.
var ServoBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4ServoBoardHardwareBackend",
	Board:           boards.ServoBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*ServoBoardBackend]()},
	Discover:        discoverServoBoards,
})

func discoverServoBoards(ctx context.Context) ([]hal.Board, error) {
	devs, err := openUSB(ctx, usbMatcher(ServoBoardVID, ServoBoardPID))
	if err != nil {
		return nil, err
	}

	var found []hal.Board
	for _, dev := range devs {
		d, err := rawusb.New(dev)
		if err != nil {
			return nil, err
		}
		serialNumber, err := d.SerialNumber()
		if err != nil {
			_ = d.Close()
			logger.Warn("hardware: skipping servo board", "error", err)
			continue
		}
		backend, err := NewServoBoardBackend(d)
		if err != nil {
			_ = d.Close()
			logger.Error("hardware: cannot initialise servo board", "serial", serialNumber, "error", err)
			continue
		}
		found = append(found, boards.NewServoBoard(serialNumber, backend))
	}

	return found, nil
}

// ServoBoardBackend drives a servo board over USB control transfers.
type ServoBoardBackend struct {
	dev *rawusb.Device

	mu        sync.Mutex
	positions [boards.ServoCount]component.ServoPosition
}

// NewServoBoardBackend checks the firmware of dev, initialises the servo outputs and
// centres every servo.
func NewServoBoardBackend(dev *rawusb.Device) (*ServoBoardBackend, error) {
	b := &ServoBoardBackend{dev: dev}

	v, err := b.FirmwareVersion()
	if err != nil {
		return nil, err
	}
	if v != ServoBoardFirmware {
		return nil, errcode.New(errcode.FirmwareMismatch, "servo board",
			"servo board is running firmware version %s, but only version %s is supported", v, ServoBoardFirmware)
	}

	if err := dev.WriteValue(servoWriteInit, 0); err != nil {
		return nil, err
	}
	centre := component.MustPosition(0)
	for i := range b.positions {
		if err := b.SetServoPosition(i, centre); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *ServoBoardBackend) FirmwareVersion() (string, error) {
	v, err := b.dev.ReadUint32(servoReadFirmware)
	if err != nil {
		return "", err
	}

	return fmt.Sprint(v), nil
}

// GetServoPosition returns the last position written; the board cannot report it.
func (b *ServoBoardBackend) GetServoPosition(id int) (component.ServoPosition, error) {
	if err := checkIdentifier("servo board", id, boards.ServoCount); err != nil {
		return component.ServoPosition{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.positions[id], nil
}

func (b *ServoBoardBackend) SetServoPosition(id int, position component.ServoPosition) error {
	const op = "servo board"
	if err := checkIdentifier(op, id, boards.ServoCount); err != nil {
		return err
	}

	pos, powered := position.Value()
	if !powered {
		return errcode.New(errcode.Unsupported, op, "%s does not support unpowered servos", boards.ServoBoardKind.Name())
	}

	value := int16(math.RoundToEven(pos * 100))
	if err := b.dev.WriteValue(rawusb.WriteCommand{Code: uint16(id)}, uint16(value)); err != nil {
		return err
	}

	b.mu.Lock()
	b.positions[id] = position
	b.mu.Unlock()

	return nil
}
