package hardware

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/protocol/sbduino"
	"github.com/arloliu/go-robohal/transport/serial"
)

// ArduinoUSBIDs are the Uno and Uno-compatible boards the firmware runs on.
var ArduinoUSBIDs = []serial.USBID{
	{VID: 0x2341, PID: 0x0043},
	{VID: 0x2a03, PID: 0x0043},
	{VID: 0x1a86, PID: 0x7523},
	{VID: 0x10c4, PID: 0xea60},
	{VID: 0x16d0, PID: 0x0613},
}

const (
	arduinoReadTimeout = 1250 * time.Millisecond

	// The firmware only samples A0 to A3.
	arduinoAnalogueInputs = 4
	arduinoADCMax         = 1024.0
	arduinoVRef           = 5.0

	servoPulseMin = 150
	servoPulseMax = 550
)

// SBArduinoBackendKind drives Arduinos running the SourceBots firmware.
var SBArduinoBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SBArduinoHardwareBackend",
	Board:           boards.SBArduinoKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*SBArduinoBackend]()},
	Discover:        discoverSBArduinos,
})

func discoverSBArduinos(ctx context.Context) ([]hal.Board, error) {
	ports, err := serial.FindPorts(listPorts, ArduinoUSBIDs...)
	if err != nil {
		return nil, err
	}

	var found []hal.Board
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if port.SerialNumber == "" {
			logger.Warn("hardware: ignoring Arduino Uno-like device without a serial number", "device", port.Device, "usb_id", port.USBID)
			continue
		}

		t, err := openSerial(port.Device, serialOptions(serial.DefaultBaudRate, arduinoReadTimeout)...)
		if err != nil {
			logger.Error("hardware: cannot open arduino", "device", port.Device, "error", err)
			continue
		}
		backend, err := NewSBArduinoBackend(t)
		if err != nil {
			_ = t.Close()
			logger.Error("hardware: cannot initialise arduino", "device", port.Device, "error", err)
			continue
		}
		found = append(found, boards.NewSBArduino(port.SerialNumber, backend))
	}

	return found, nil
}

type digitalPin struct {
	mode  component.GPIOPinMode
	state bool
}

// SBArduinoBackend drives an Arduino Uno running the SourceBots firmware.
type SBArduinoBackend struct {
	proto *sbduino.Protocol

	mu     sync.Mutex
	pins   map[int]*digitalPin
	servos [boards.SBArduinoServoCount]component.ServoPosition
}

// NewSBArduinoBackend waits for the board on t to boot and checks its firmware.
func NewSBArduinoBackend(t *serial.Transport) (*SBArduinoBackend, error) {
	proto, err := sbduino.New(t)
	if err != nil {
		return nil, err
	}

	b := &SBArduinoBackend{proto: proto, pins: make(map[int]*digitalPin)}
	for id := boards.FirstDigitalPin; id < boards.FirstAnaloguePin; id++ {
		b.pins[id] = &digitalPin{mode: component.DigitalInput}
	}

	return b, nil
}

func (b *SBArduinoBackend) FirmwareVersion() (string, error) { return b.proto.FirmwareVersion(), nil }

func (b *SBArduinoBackend) digital(op string, id int) (*digitalPin, error) {
	if boards.IsAnaloguePin(id) {
		return nil, errcode.New(errcode.Unsupported, op, "digital functions not supported on analogue pins")
	}
	pin, ok := b.pins[id]
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, op, "invalid pin %d", id)
	}

	return pin, nil
}

func (b *SBArduinoBackend) SetGPIOPinMode(id int, mode component.GPIOPinMode) error {
	const op = "arduino: set pin mode"

	if boards.IsAnaloguePin(id) {
		if mode == component.AnalogueInput {
			return nil
		}
		return errcode.New(errcode.Unsupported, op, "%s does not support mode %s on pin %d", boards.SBArduinoKind.Name(), mode, id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pin, err := b.digital(op, id)
	if err != nil {
		return err
	}
	switch mode {
	case component.DigitalInput, component.DigitalInputPullUp, component.DigitalOutput:
	default:
		return errcode.New(errcode.Unsupported, op, "%s does not support mode %s on pin %d", boards.SBArduinoKind.Name(), mode, id)
	}

	return b.updateDigitalPin(id, digitalPin{mode: mode, state: pin.state})
}

func (b *SBArduinoBackend) GetGPIOPinMode(id int) (component.GPIOPinMode, error) {
	if boards.IsAnaloguePin(id) {
		return component.AnalogueInput, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pin, err := b.digital("arduino: get pin mode", id)
	if err != nil {
		return 0, err
	}

	return pin.mode, nil
}

func (b *SBArduinoBackend) WriteGPIOPinDigitalState(id int, state bool) error {
	const op = "arduino: digital write"

	b.mu.Lock()
	defer b.mu.Unlock()

	pin, err := b.digital(op, id)
	if err != nil {
		return err
	}
	if pin.mode != component.DigitalOutput {
		return errcode.New(errcode.InvalidParams, op, "pin %d mode needs to be DIGITAL_OUTPUT in order to set the digital state", id)
	}

	return b.updateDigitalPin(id, digitalPin{mode: pin.mode, state: state})
}

func (b *SBArduinoBackend) GetGPIOPinDigitalState(id int) (bool, error) {
	const op = "arduino: digital state"

	b.mu.Lock()
	defer b.mu.Unlock()

	pin, err := b.digital(op, id)
	if err != nil {
		return false, err
	}
	if pin.mode != component.DigitalOutput {
		return false, errcode.New(errcode.InvalidParams, op, "pin %d mode needs to be DIGITAL_OUTPUT in order to read the digital state", id)
	}

	return pin.state, nil
}

func (b *SBArduinoBackend) ReadGPIOPinDigitalState(id int) (bool, error) {
	const op = "arduino: digital read"

	b.mu.Lock()
	pin, err := b.digital(op, id)
	var mode component.GPIOPinMode
	if err == nil {
		mode = pin.mode
	}
	b.mu.Unlock()
	if err != nil {
		return false, err
	}
	if mode != component.DigitalInput && mode != component.DigitalInputPullUp {
		return false, errcode.New(errcode.InvalidParams, op, "pin %d mode needs to be DIGITAL_INPUT_* in order to read the digital state", id)
	}

	result, err := b.proto.CommandSingle("R", strconv.Itoa(id))
	if err != nil {
		return false, err
	}
	switch result {
	case "H":
		return true, nil
	case "L":
		return false, nil
	default:
		return false, errcode.New(errcode.Protocol, op, "invalid response from Arduino: %q", result)
	}
}

// ReadGPIOPinAnalogueValue returns volts.
func (b *SBArduinoBackend) ReadGPIOPinAnalogueValue(id int) (float64, error) {
	const op = "arduino: analogue read"

	if !boards.IsAnaloguePin(id) {
		return 0, errcode.New(errcode.Unsupported, op, "analogue functions not supported on digital pins")
	}
	if id >= boards.FirstAnaloguePin+arduinoAnalogueInputs {
		return 0, errcode.New(errcode.Unsupported, op, "Arduino Uno firmware only supports analogue pins 0-3 (IDs 14-17)")
	}

	results, err := b.proto.Command("A")
	if err != nil {
		return 0, err
	}

	want := fmt.Sprintf("a%d", id-boards.FirstAnaloguePin)
	for _, r := range results {
		name, reading, ok := strings.Cut(r, " ")
		if !ok || name != want {
			continue
		}
		raw, err := strconv.Atoi(strings.TrimSpace(reading))
		if err != nil {
			return 0, errcode.Wrap(errcode.Protocol, op, err, "invalid response from Arduino: %q", r)
		}

		return float64(raw) / arduinoADCMax * arduinoVRef, nil
	}

	return 0, errcode.New(errcode.Protocol, op, "invalid response from Arduino: %q", results)
}

func (b *SBArduinoBackend) WriteGPIOPinDACValue(int, float64) error {
	return errcode.New(errcode.Unsupported, "arduino", "%s does not have a DAC", boards.SBArduinoKind.Name())
}

func (b *SBArduinoBackend) WriteGPIOPinPWMValue(int, float64) error {
	return errcode.New(errcode.Unsupported, "arduino", "%s firmware does not implement PWM output", boards.SBArduinoKind.Name())
}

// updateDigitalPin sends pin to the board and records it once acknowledged. b.mu is held.
func (b *SBArduinoBackend) updateDigitalPin(id int, pin digitalPin) error {
	var c string
	switch pin.mode {
	case component.DigitalInput:
		c = "Z"
	case component.DigitalInputPullUp:
		c = "P"
	case component.DigitalOutput:
		c = "L"
		if pin.state {
			c = "H"
		}
	default:
		return errcode.New(errcode.Unsupported, "arduino", "pin %d cannot be set to %s", id, pin.mode)
	}

	if _, err := b.proto.Command("W", strconv.Itoa(id), c); err != nil {
		return err
	}
	*b.pins[id] = pin

	return nil
}

func (b *SBArduinoBackend) GetLEDState(id int) (bool, error) {
	if err := checkIdentifier("arduino: led", id, 1); err != nil {
		return false, err
	}

	return b.GetGPIOPinDigitalState(boards.LEDPin)
}

func (b *SBArduinoBackend) SetLEDState(id int, state bool) error {
	if err := checkIdentifier("arduino: led", id, 1); err != nil {
		return err
	}

	return b.WriteGPIOPinDigitalState(boards.LEDPin, state)
}

// GetServoPosition returns the last position written.
func (b *SBArduinoBackend) GetServoPosition(id int) (component.ServoPosition, error) {
	if err := checkIdentifier("arduino: servo", id, boards.SBArduinoServoCount); err != nil {
		return component.ServoPosition{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.servos[id], nil
}

func (b *SBArduinoBackend) SetServoPosition(id int, position component.ServoPosition) error {
	if err := checkIdentifier("arduino: servo", id, boards.SBArduinoServoCount); err != nil {
		return err
	}

	level := 0
	if pos, ok := position.Value(); ok {
		level = servoPulseMin + int(float64(servoPulseMax-servoPulseMin)*(pos+1)/2)
	}
	if _, err := b.proto.Command("S", strconv.Itoa(id), strconv.Itoa(level)); err != nil {
		return err
	}

	b.mu.Lock()
	b.servos[id] = position
	b.mu.Unlock()

	return nil
}

// GetUltrasoundPulse returns the echo pulse width reported by the firmware.
func (b *SBArduinoBackend) GetUltrasoundPulse(trigger, echo int) (time.Duration, bool, error) {
	us, err := b.ultrasound("T", trigger, echo)
	if err != nil || us == 0 {
		return 0, false, err
	}

	return time.Duration(us * float64(time.Microsecond)), true, nil
}

// GetUltrasoundDistance returns metres.
func (b *SBArduinoBackend) GetUltrasoundDistance(trigger, echo int) (float64, bool, error) {
	mm, err := b.ultrasound("U", trigger, echo)
	if err != nil || mm == 0 {
		return 0, false, err
	}

	return mm / 1000, true, nil
}

// ultrasound runs a measurement command. The firmware leaves the trigger pin as a low
// output and the echo pin as an input; zero means no echo arrived.
func (b *SBArduinoBackend) ultrasound(cmd string, trigger, echo int) (float64, error) {
	const op = "arduino: ultrasound"

	if boards.IsAnaloguePin(trigger) || boards.IsAnaloguePin(echo) {
		return 0, errcode.New(errcode.Unsupported, op, "ultrasound functions not supported on analogue pins")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tp, err := b.digital(op, trigger)
	if err != nil {
		return 0, err
	}
	ep, err := b.digital(op, echo)
	if err != nil {
		return 0, err
	}

	result, err := b.proto.CommandSingle(cmd, strconv.Itoa(trigger), strconv.Itoa(echo))
	if err != nil {
		return 0, err
	}
	*tp = digitalPin{mode: component.DigitalOutput}
	*ep = digitalPin{mode: component.DigitalInput}

	v, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return 0, errcode.Wrap(errcode.Protocol, op, err, "invalid response from Arduino: %q", result)
	}

	return v, nil
}
