package rawusb

import (
	"context"
	"slices"
	"sync"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/google/gousb"
)

var (
	newUSBContext = gousb.NewContext

	// usbContext is the process-wide libusb context. It lives until the process exits.
	usbContext = sync.OnceValues(func() (*gousb.Context, error) {
		return initContext(newUSBContext)
	})
)

// initContext creates a libusb context. gousb panics when libusb cannot be
// initialised; that is reported as a communication error instead.
func initContext(newCtx func() *gousb.Context) (c *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = errcode.New(errcode.Communication, "rawusb: init", "cannot initialise libusb: %v", r)
		}
	}()

	return newCtx(), nil
}

// Matcher selects devices by descriptor during enumeration.
type Matcher func(desc *gousb.DeviceDesc) bool

// MatchID matches devices with the given vendor and product ID.
func MatchID(vid, pid uint16) Matcher {
	return func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	}
}

// InterfaceCount returns the number of interfaces of the lowest numbered configuration
// of desc.
func InterfaceCount(desc *gousb.DeviceDesc) int {
	if len(desc.Configs) == 0 {
		return 0
	}
	keys := make([]int, 0, len(desc.Configs))
	for k := range desc.Configs {
		keys = append(keys, k)
	}

	return len(desc.Configs[slices.Min(keys)].Interfaces)
}

// All matches devices that every matcher matches.
func All(matchers ...Matcher) Matcher {
	return func(desc *gousb.DeviceDesc) bool {
		for _, m := range matchers {
			if !m(desc) {
				return false
			}
		}
		return true
	}
}

// OpenDevices opens every attached device that match selects. Devices that match but
// cannot be opened are logged and skipped; the call only fails when none could be
// opened.
func OpenDevices(ctx context.Context, match Matcher) ([]*gousb.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usb, err := usbContext()
	if err != nil {
		return nil, err
	}

	devs, err := usb.OpenDevices(match)
	if err != nil {
		if len(devs) == 0 && err != gousb.ErrorNotFound {
			return nil, errcode.Wrap(errcode.Communication, "rawusb: discover", &Error{Op: "enumerate", Err: err},
				"cannot enumerate USB devices: %v", err)
		}
		logger.Warn("rawusb: some matching devices could not be opened", "opened", len(devs), "error", err)
	}

	return devs, nil
}
