package hardware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/internal/poll"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/protocol/srv4"
	"github.com/arloliu/go-robohal/transport/rawusb"
	"github.com/arloliu/go-robohal/transport/serial"
	"github.com/google/gousb"
)

// Power board USB identity. Current firmware exposes a serial port; legacy firmware only
// exposes a single vendor interface.
var PowerBoardUSBID = serial.USBID{VID: 0x1bda, PID: 0x0010}

const (
	powerBoardProduct = "PBV4B"
	powerBoardOutputs = 6

	// ButtonPollInterval is the poll interval of WaitUntilButtonPressed.
	ButtonPollInterval = 50 * time.Millisecond

	maxPiezoValue = 65535
)

// PowerBoardRequirement is the firmware accepted on the serial protocol.
var PowerBoardRequirement = srv4.Requirement{Hardware: 4, MinMajor: 4}

// PowerBoardBackendKind drives power boards running either firmware.
var PowerBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:        "SRV4PowerBoardHardwareBackend",
	Board:       boards.PowerBoardKind,
	Environment: Environment,
	Implementations: []reflect.Type{
		hal.TypeOf[*SRV4PowerBoardBackend](),
		hal.TypeOf[*LegacyPowerBoardBackend](),
	},
	Discover: discoverPowerBoards,
})

func discoverPowerBoards(ctx context.Context) ([]hal.Board, error) {
	legacy, err := discoverLegacyPowerBoards(ctx)
	if err != nil {
		return nil, err
	}
	current, err := discoverSRV4PowerBoards(ctx)
	if err != nil {
		return nil, err
	}

	return append(legacy, current...), nil
}

func discoverSRV4PowerBoards(ctx context.Context) ([]hal.Board, error) {
	ports, err := serial.FindPorts(listPorts, PowerBoardUSBID)
	if err != nil {
		return nil, err
	}

	var found []hal.Board
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if port.Product != powerBoardProduct {
			continue
		}
		if port.SerialNumber == "" {
			logger.Warn("hardware: skipping power board", "device", port.Device,
				"error", errcode.New(errcode.DeviceMissingIdentifier, "hardware: discover",
					"found power board-like device %s without serial number, the power board is likely to be damaged", port.USBID))
			continue
		}

		t, err := openSerial(port.Device, serialOptions(serial.DefaultBaudRate, serial.DefaultReadTimeout)...)
		if err != nil {
			logger.Error("hardware: cannot open power board", "device", port.Device, "error", err)
			continue
		}
		backend, err := NewSRV4PowerBoardBackend(t)
		if err != nil {
			_ = t.Close()
			logger.Error("hardware: cannot initialise power board", "device", port.Device, "error", err)
			continue
		}
		found = append(found, boards.NewPowerBoard(port.SerialNumber, backend))
	}

	return found, nil
}

func discoverLegacyPowerBoards(ctx context.Context) ([]hal.Board, error) {
	devs, err := openUSB(ctx, usbMatcher(PowerBoardUSBID.VID, PowerBoardUSBID.PID, singleInterface))
	if err != nil {
		return nil, err
	}

	var found []hal.Board
	for _, dev := range devs {
		d, err := rawusb.New(dev)
		if err != nil {
			return nil, err
		}
		backend, serialNumber, err := openLegacyPowerBoard(d)
		if err != nil {
			_ = d.Close()
			logger.Error("hardware: skipping legacy power board", "error", err)
			continue
		}
		found = append(found, boards.NewPowerBoard(serialNumber, backend))
	}

	return found, nil
}

func openLegacyPowerBoard(d *rawusb.Device) (*LegacyPowerBoardBackend, string, error) {
	serialNumber, err := d.SerialNumber()
	if err != nil {
		return nil, "", err
	}
	backend, err := NewLegacyPowerBoardBackend(d)
	if err != nil {
		return nil, "", err
	}

	return backend, serialNumber, nil
}

// piezoArgs converts a tone to the integer milliseconds and hertz the firmware takes.
func piezoArgs(op string, id int, duration time.Duration, frequency float64) (ms int, hz int, err error) {
	if err := checkIdentifier(op, id, 1); err != nil {
		return 0, 0, err
	}

	ms = int(math.RoundToEven(float64(duration) / float64(time.Millisecond)))
	if ms > maxPiezoValue {
		return 0, 0, errcode.New(errcode.Unsupported, op, "maximum piezo duration is %dms", maxPiezoValue)
	}
	hz = int(math.RoundToEven(frequency))
	if hz > maxPiezoValue {
		return 0, 0, errcode.New(errcode.Unsupported, op, "maximum piezo frequency is %dHz", maxPiezoValue)
	}

	return ms, hz, nil
}

func waitForBuzz(blocking bool, duration time.Duration) {
	if blocking {
		time.Sleep(duration)
	}
}

func waitUntilPressed(ctx context.Context, pressed func() (bool, error)) error {
	return poll.Until(ctx, ButtonPollInterval, pressed, nil)
}

// SRV4PowerBoardBackend drives a power board running the serial firmware.
type SRV4PowerBoardBackend struct {
	proto *srv4.Protocol

	mu   sync.Mutex
	leds [2]bool
}

// NewSRV4PowerBoardBackend checks the firmware on t and resets the board.
func NewSRV4PowerBoardBackend(t *serial.Transport, opts ...srv4.Option) (*SRV4PowerBoardBackend, error) {
	opts = append([]srv4.Option{srv4.WithIdentityVersion(), srv4.WithRequirement(PowerBoardRequirement)}, opts...)
	proto, err := srv4.New(t, opts...)
	if err != nil {
		return nil, err
	}

	b := &SRV4PowerBoardBackend{proto: proto}
	if err := proto.Reset(); err != nil {
		return nil, err
	}

	return b, nil
}

// FirmwareVersion asks the board for its identity and returns the software version.
func (b *SRV4PowerBoardBackend) FirmwareVersion() (string, error) {
	id, err := b.proto.Identity()
	if err != nil {
		return "", err
	}

	return id.SoftwareVersion, nil
}

func (b *SRV4PowerBoardBackend) GetPowerOutputEnabled(id int) (bool, error) {
	const op = "power board: output"
	if err := checkIdentifier(op, id, powerBoardOutputs); err != nil {
		return false, err
	}

	resp, err := b.proto.RequestWithResponse(fmt.Sprintf("OUT:%d:GET?", id))
	if err != nil {
		return false, err
	}

	return parseBit(op, resp)
}

func (b *SRV4PowerBoardBackend) SetPowerOutputEnabled(id int, enabled bool) error {
	if err := checkIdentifier("power board: output", id, powerBoardOutputs); err != nil {
		return err
	}

	_, err := b.proto.Request(fmt.Sprintf("OUT:%d:SET:%s", id, bit(enabled)))

	return err
}

func (b *SRV4PowerBoardBackend) GetPowerOutputCurrent(id int) (float64, error) {
	if err := checkIdentifier("power board: output", id, powerBoardOutputs); err != nil {
		return 0, err
	}

	ma, err := b.proto.QueryFloat(fmt.Sprintf("OUT:%d:I?", id))
	if err != nil {
		return 0, err
	}

	return ma / 1000, nil
}

func (b *SRV4PowerBoardBackend) Buzz(id int, duration time.Duration, frequency float64, blocking bool) error {
	ms, hz, err := piezoArgs("power board: piezo", id, duration, frequency)
	if err != nil {
		return err
	}

	if _, err := b.proto.Request(fmt.Sprintf("NOTE:%d:%d", hz, ms)); err != nil {
		return err
	}
	waitForBuzz(blocking, duration)

	return nil
}

func (b *SRV4PowerBoardBackend) GetButtonState(id int) (bool, error) {
	const op = "power board: button"
	if err := checkIdentifier(op, id, 1); err != nil {
		return false, err
	}

	resp, err := b.proto.RequestWithResponse("BTN:START:GET?")
	if err != nil {
		return false, err
	}

	internal, external, ok := strings.Cut(resp, ":")
	switch {
	case !ok:
		return false, errcode.New(errcode.Protocol, op, "invalid response received: %q", resp)
	case internal == "1" || external == "1":
		return true, nil
	case internal == "0" || external == "0":
		return false, nil
	default:
		return false, errcode.New(errcode.Protocol, op, "invalid response received: %q", resp)
	}
}

func (b *SRV4PowerBoardBackend) WaitUntilButtonPressed(ctx context.Context, id int) error {
	return waitUntilPressed(ctx, func() (bool, error) { return b.GetButtonState(id) })
}

func (b *SRV4PowerBoardBackend) GetBatterySensorVoltage(id int) (float64, error) {
	return b.batteryQuery(id, "BATT:V?")
}

func (b *SRV4PowerBoardBackend) GetBatterySensorCurrent(id int) (float64, error) {
	return b.batteryQuery(id, "BATT:I?")
}

func (b *SRV4PowerBoardBackend) batteryQuery(id int, cmd string) (float64, error) {
	if err := checkIdentifier("power board: battery", id, 1); err != nil {
		return 0, err
	}

	milli, err := b.proto.QueryFloat(cmd)
	if err != nil {
		return 0, err
	}

	return milli / 1000, nil
}

// GetLEDState returns the last state written; the firmware cannot report it.
func (b *SRV4PowerBoardBackend) GetLEDState(id int) (bool, error) {
	if err := checkIdentifier("power board: led", id, len(b.leds)); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.leds[id], nil
}

func (b *SRV4PowerBoardBackend) SetLEDState(id int, state bool) error {
	if err := checkIdentifier("power board: led", id, len(b.leds)); err != nil {
		return err
	}

	names := [...]string{"RUN", "ERR"}
	if _, err := b.proto.Request(fmt.Sprintf("LED:%s:SET:%s", names[id], bit(state))); err != nil {
		return err
	}

	b.mu.Lock()
	b.leds[id] = state
	b.mu.Unlock()

	return nil
}

func bit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseBit(op string, s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, errcode.New(errcode.Protocol, op, "invalid response received: %q", s)
	}
}

// Legacy firmware USB commands.
var (
	legacyReadBattery  = rawusb.ReadCommand{Code: 7, Length: 8}
	legacyReadButton   = rawusb.ReadCommand{Code: 8, Length: 4}
	legacyReadFirmware = rawusb.ReadCommand{Code: 9, Length: 4}

	legacyWriteRunLED   = rawusb.WriteCommand{Code: 6}
	legacyWriteErrorLED = rawusb.WriteCommand{Code: 7}
	legacyWritePiezo    = rawusb.WriteCommand{Code: 8}
)

// LegacyPowerBoardFirmware is the only legacy firmware version supported.
const LegacyPowerBoardFirmware = "3"

// ErrBuzzTooFast is wrapped when the board rejects a tone because the previous one is
// still being queued.
var ErrBuzzTooFast = errors.New("hardware: buzz commands sent to the power board too quickly")

// LegacyPowerBoardBackend drives a power board running the legacy USB firmware.
type LegacyPowerBoardBackend struct {
	dev *rawusb.Device

	mu      sync.Mutex
	outputs [powerBoardOutputs]bool
	leds    [2]bool
}

// NewLegacyPowerBoardBackend checks the firmware version of dev.
func NewLegacyPowerBoardBackend(dev *rawusb.Device) (*LegacyPowerBoardBackend, error) {
	b := &LegacyPowerBoardBackend{dev: dev}

	v, err := b.FirmwareVersion()
	if err != nil {
		return nil, err
	}
	if v != LegacyPowerBoardFirmware {
		return nil, errcode.New(errcode.FirmwareMismatch, "power board",
			"this power board is running firmware version %s, but only version %s is supported", v, LegacyPowerBoardFirmware)
	}

	return b, nil
}

func (b *LegacyPowerBoardBackend) FirmwareVersion() (string, error) {
	v, err := b.dev.ReadUint32(legacyReadFirmware)
	if err != nil {
		return "", err
	}

	return fmt.Sprint(v), nil
}

// GetPowerOutputEnabled returns the last state written.
func (b *LegacyPowerBoardBackend) GetPowerOutputEnabled(id int) (bool, error) {
	if err := checkIdentifier("power board: output", id, powerBoardOutputs); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.outputs[id], nil
}

func (b *LegacyPowerBoardBackend) SetPowerOutputEnabled(id int, enabled bool) error {
	if err := checkIdentifier("power board: output", id, powerBoardOutputs); err != nil {
		return err
	}

	if err := b.dev.WriteValue(rawusb.WriteCommand{Code: uint16(id)}, boolValue(enabled)); err != nil {
		return err
	}

	b.mu.Lock()
	b.outputs[id] = enabled
	b.mu.Unlock()

	return nil
}

func (b *LegacyPowerBoardBackend) GetPowerOutputCurrent(id int) (float64, error) {
	if err := checkIdentifier("power board: output", id, powerBoardOutputs); err != nil {
		return 0, err
	}

	ma, err := b.dev.ReadUint32(rawusb.ReadCommand{Code: uint16(id), Length: 4})
	if err != nil {
		return 0, err
	}

	return float64(ma) / 1000, nil
}

func (b *LegacyPowerBoardBackend) Buzz(id int, duration time.Duration, frequency float64, blocking bool) error {
	ms, hz, err := piezoArgs("power board: piezo", id, duration, frequency)
	if err != nil {
		return err
	}

	data := []byte{byte(hz), byte(hz >> 8), byte(ms), byte(ms >> 8)}
	if err := b.dev.WriteData(legacyWritePiezo, data); err != nil {
		if errors.Is(err, gousb.ErrorPipe) {
			return errcode.Wrap(errcode.Communication, "power board: piezo", ErrBuzzTooFast, "%v; are you sending buzz commands too quickly", err)
		}
		return err
	}
	waitForBuzz(blocking, duration)

	return nil
}

func (b *LegacyPowerBoardBackend) GetButtonState(id int) (bool, error) {
	if err := checkIdentifier("power board: button", id, 1); err != nil {
		return false, err
	}

	v, err := b.dev.ReadUint32(legacyReadButton)
	if err != nil {
		return false, err
	}

	return v != 0, nil
}

func (b *LegacyPowerBoardBackend) WaitUntilButtonPressed(ctx context.Context, id int) error {
	return waitUntilPressed(ctx, func() (bool, error) { return b.GetButtonState(id) })
}

func (b *LegacyPowerBoardBackend) GetBatterySensorVoltage(id int) (float64, error) {
	_, mv, err := b.battery(id)
	return float64(mv) / 1000, err
}

func (b *LegacyPowerBoardBackend) GetBatterySensorCurrent(id int) (float64, error) {
	ma, _, err := b.battery(id)
	return float64(ma) / 1000, err
}

func (b *LegacyPowerBoardBackend) battery(id int) (ma, mv uint32, err error) {
	if err := checkIdentifier("power board: battery", id, 1); err != nil {
		return 0, 0, err
	}

	values, err := b.dev.ReadUint32s(legacyReadBattery)
	if err != nil {
		return 0, 0, err
	}

	return values[0], values[1], nil
}

func (b *LegacyPowerBoardBackend) GetLEDState(id int) (bool, error) {
	if err := checkIdentifier("power board: led", id, len(b.leds)); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.leds[id], nil
}

func (b *LegacyPowerBoardBackend) SetLEDState(id int, state bool) error {
	if err := checkIdentifier("power board: led", id, len(b.leds)); err != nil {
		return err
	}

	cmd := legacyWriteRunLED
	if id == boards.ErrorLEDID {
		cmd = legacyWriteErrorLED
	}
	if err := b.dev.WriteValue(cmd, boolValue(state)); err != nil {
		return err
	}

	b.mu.Lock()
	b.leds[id] = state
	b.mu.Unlock()

	return nil
}

func boolValue(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}
