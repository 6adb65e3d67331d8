// Package hardware holds the backends that drive real boards over serial and USB.
//
// Importing the package registers every backend in Environment:
//
//	group, err := hal.GroupFor[*boards.MotorBoard](ctx, hardware.Environment, boards.MotorBoardKind)
package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/transport/rawusb"
	"github.com/arloliu/go-robohal/transport/serial"
	"github.com/google/gousb"
)

// Environment binds every catalogue board that exists as real hardware.
var Environment = hal.NewEnvironment("HardwareEnvironment")

// Discovery inputs. Tests replace them with in-memory fakes.
var (
	listPorts  serial.PortLister = serial.ListPorts
	openSerial                   = serial.Open
	openUSB                      = func(ctx context.Context, match rawusb.Matcher) ([]rawusb.ControlDevice, error) {
		devs, err := rawusb.OpenDevices(ctx, match)
		if err != nil {
			return nil, err
		}

		out := make([]rawusb.ControlDevice, len(devs))
		for i, d := range devs {
			out[i] = d
		}

		return out, nil
	}
)

var (
	settingsMu          sync.RWMutex
	readTimeoutOverride time.Duration
)

// SetReadTimeout overrides the serial read timeout of every board opened afterwards.
// Zero restores the per-board defaults.
func SetReadTimeout(d time.Duration) error {
	if d != 0 && (d < serial.MinReadTimeout || d > serial.MaxReadTimeout) {
		return errcode.New(errcode.InvalidParams, "hardware", "read timeout %v is out of range [%v, %v]",
			d, serial.MinReadTimeout, serial.MaxReadTimeout)
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()
	readTimeoutOverride = d

	return nil
}

func serialOptions(baud int, timeout time.Duration) []serial.Option {
	settingsMu.RLock()
	defer settingsMu.RUnlock()

	if readTimeoutOverride != 0 {
		timeout = readTimeoutOverride
	}

	return []serial.Option{serial.WithBaudRate(baud), serial.WithReadTimeout(timeout)}
}

func checkIdentifier(op string, id int, count int) error {
	if id < 0 || id >= count {
		return errcode.New(errcode.InvalidParams, op, "invalid identifier %d, valid identifiers are 0 to %d", id, count-1)
	}

	return nil
}

// usbMatcher is the gousb descriptor filter of one board model.
func usbMatcher(vid, pid uint16, extra ...rawusb.Matcher) rawusb.Matcher {
	return rawusb.All(append([]rawusb.Matcher{rawusb.MatchID(vid, pid)}, extra...)...)
}

func singleInterface(desc *gousb.DeviceDesc) bool {
	return rawusb.InterfaceCount(desc) == 1
}
