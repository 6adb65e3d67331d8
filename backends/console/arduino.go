package console

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
)

// ArduinoUnoBackendKind asks the user for Arduino Uno inputs. It cannot discover
// boards; build them with NewArduinoUnoBackend.
var ArduinoUnoBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "ArduinoUnoConsoleBackend",
	Board:           boards.ArduinoUnoKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*ArduinoUnoBackend]()},
	Discover:        cannotDiscover(boards.ArduinoUnoKind),
})

// SBArduinoBackendKind asks the user for SourceBots Arduino inputs.
var SBArduinoBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SBArduinoConsoleBackend",
	Board:           boards.SBArduinoKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*SBArduinoBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return []hal.Board{boards.NewSBArduino(DefaultSerial, NewSBArduinoBackend(DefaultSerial, nil))}, nil
	},
})

type pinState struct {
	mode  component.GPIOPinMode
	state bool
}

// ArduinoUnoBackend stands in for an Arduino Uno. Every pin starts as a digital
// output driven low.
type ArduinoUnoBackend struct {
	console *Console

	mu   sync.Mutex
	pins map[int]*pinState
}

// NewArduinoUnoBackend returns a backend talking through s, or DefaultIO when s is nil.
func NewArduinoUnoBackend(serial string, s *IO) *ArduinoUnoBackend {
	return newArduinoUnoBackend(boards.ArduinoUnoKind, serial, s)
}

func newArduinoUnoBackend(kind *hal.BoardKind, serial string, s *IO) *ArduinoUnoBackend {
	b := &ArduinoUnoBackend{
		console: New(descriptor(kind, serial), s),
		pins:    make(map[int]*pinState, boards.LastPin-boards.FirstDigitalPin+1),
	}
	for id := boards.FirstDigitalPin; id <= boards.LastPin; id++ {
		b.pins[id] = &pinState{mode: component.DigitalOutput}
	}

	return b
}

func (b *ArduinoUnoBackend) FirmwareVersion() (string, error) { return "", nil }

// pin returns the state of pin id. b.mu is held.
func (b *ArduinoUnoBackend) pin(op string, id int) (*pinState, error) {
	p, ok := b.pins[id]
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, op, "invalid pin %d, valid pins are %d to %d", id, boards.FirstDigitalPin, boards.LastPin)
	}

	return p, nil
}

// pinIn returns the state of pin id after checking it is in one of modes. b.mu is held.
func (b *ArduinoUnoBackend) pinIn(op string, id int, modes ...component.GPIOPinMode) (*pinState, error) {
	p, err := b.pin(op, id)
	if err != nil {
		return nil, err
	}
	for _, m := range modes {
		if p.mode == m {
			return p, nil
		}
	}

	return nil, errcode.Wrap(errcode.InvalidParams, op, component.ErrBadPinMode, "pin %d is %s, needs %v", id, p.mode, modes)
}

func (b *ArduinoUnoBackend) SetGPIOPinMode(id int, mode component.GPIOPinMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pin("console: set pin mode", id)
	if err != nil {
		return err
	}
	b.console.Info("Set pin %d to %s", id, mode)
	p.mode = mode

	return nil
}

func (b *ArduinoUnoBackend) GetGPIOPinMode(id int) (component.GPIOPinMode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pin("console: get pin mode", id)
	if err != nil {
		return 0, err
	}

	return p.mode, nil
}

func (b *ArduinoUnoBackend) WriteGPIOPinDigitalState(id int, state bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pinIn("console: digital write", id, component.DigitalOutput)
	if err != nil {
		return err
	}
	b.console.Info("Set pin %d state to %v", id, state)
	p.state = state

	return nil
}

func (b *ArduinoUnoBackend) GetGPIOPinDigitalState(id int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pinIn("console: digital state", id, component.DigitalOutput)
	if err != nil {
		return false, err
	}

	return p.state, nil
}

func (b *ArduinoUnoBackend) ReadGPIOPinDigitalState(id int) (bool, error) {
	b.mu.Lock()
	_, err := b.pinIn("console: digital read", id,
		component.DigitalInput, component.DigitalInputPullUp, component.DigitalInputPullDown)
	b.mu.Unlock()
	if err != nil {
		return false, err
	}

	return b.console.ReadBool(fmt.Sprintf("Pin %d digital state [true/false]", id))
}

func (b *ArduinoUnoBackend) ReadGPIOPinAnalogueValue(id int) (float64, error) {
	b.mu.Lock()
	_, err := b.pinIn("console: analogue read", id, component.AnalogueInput)
	b.mu.Unlock()
	if err != nil {
		return 0, err
	}

	return b.console.ReadFloat(fmt.Sprintf("Pin %d ADC state [float]", id))
}

func (b *ArduinoUnoBackend) WriteGPIOPinDACValue(id int, _ float64) error {
	return errcode.New(errcode.Unsupported, "console: analogue write", "pin %d: the Arduino Uno has no DAC", id)
}

func (b *ArduinoUnoBackend) WriteGPIOPinPWMValue(id int, _ float64) error {
	return errcode.New(errcode.Unsupported, "console: pwm write", "pin %d: PWM output is not supported", id)
}

func (b *ArduinoUnoBackend) GetLEDState(id int) (bool, error) {
	if err := checkLED(id); err != nil {
		return false, err
	}

	return b.GetGPIOPinDigitalState(boards.LEDPin)
}

func (b *ArduinoUnoBackend) SetLEDState(id int, state bool) error {
	if err := checkLED(id); err != nil {
		return err
	}

	return b.WriteGPIOPinDigitalState(boards.LEDPin, state)
}

func checkLED(id int) error {
	if id != boards.LEDID {
		return errcode.New(errcode.InvalidParams, "console: led", "the Arduino Uno only has LED %d (digital pin %d)", boards.LEDID, boards.LEDPin)
	}

	return nil
}

// SBArduinoBackend stands in for a SourceBots Arduino.
type SBArduinoBackend struct {
	*ArduinoUnoBackend

	servoMu sync.Mutex
	servos  [boards.SBArduinoServoCount]component.ServoPosition
}

// NewSBArduinoBackend returns a backend talking through s, or DefaultIO when s is nil.
func NewSBArduinoBackend(serial string, s *IO) *SBArduinoBackend {
	return &SBArduinoBackend{ArduinoUnoBackend: newArduinoUnoBackend(boards.SBArduinoKind, serial, s)}
}

func (b *SBArduinoBackend) GetServoPosition(id int) (component.ServoPosition, error) {
	if err := checkIdentifier("console: servo", id, len(b.servos)); err != nil {
		return component.Unpowered, err
	}

	b.servoMu.Lock()
	defer b.servoMu.Unlock()

	return b.servos[id], nil
}

func (b *SBArduinoBackend) SetServoPosition(id int, position component.ServoPosition) error {
	if err := checkIdentifier("console: servo", id, len(b.servos)); err != nil {
		return err
	}

	b.servoMu.Lock()
	b.servos[id] = position
	b.servoMu.Unlock()
	b.console.Info("Set servo %d to %s", id, position)

	return nil
}

func (b *SBArduinoBackend) GetUltrasoundPulse(trigger, echo int) (time.Duration, bool, error) {
	us, err := b.readUltrasound(trigger, echo, "Response time for ultrasound sensor on pins %d/%d [microseconds]")
	if err != nil {
		return 0, false, err
	}

	return time.Duration(us * float64(time.Microsecond)), true, nil
}

func (b *SBArduinoBackend) GetUltrasoundDistance(trigger, echo int) (float64, bool, error) {
	metres, err := b.readUltrasound(trigger, echo, "Distance for ultrasound sensor on pins %d/%d [metres]")
	if err != nil {
		return 0, false, err
	}

	return metres, true, nil
}

func (b *SBArduinoBackend) readUltrasound(trigger, echo int, prompt string) (float64, error) {
	const op = "console: ultrasound"

	b.mu.Lock()
	t, err := b.pin(op, trigger)
	if err != nil {
		b.mu.Unlock()
		return 0, err
	}
	e, err := b.pin(op, echo)
	b.mu.Unlock()
	if err != nil {
		return 0, err
	}

	v, err := b.console.ReadFloat(fmt.Sprintf(prompt, trigger, echo))
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	t.mode, t.state = component.DigitalOutput, false
	e.mode = component.DigitalInput
	b.mu.Unlock()

	return v, nil
}
