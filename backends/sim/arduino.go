package sim

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
)

// ArduinoUnoBackendKind simulates Arduino Unos.
var ArduinoUnoBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "ArduinoUnoSimulationBackend",
	Board:           boards.ArduinoUnoKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*ArduinoUnoBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return discoverEach(boards.ArduinoUnoKind, func(serial string) hal.Board {
			return boards.NewArduinoUno(serial, NewArduinoUnoBackend(serial))
		}), nil
	},
})

// SBArduinoBackendKind simulates SourceBots Arduinos.
var SBArduinoBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SBArduinoSimulationBackend",
	Board:           boards.SBArduinoKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*SBArduinoBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return discoverEach(boards.SBArduinoKind, func(serial string) hal.Board {
			return boards.NewSBArduino(serial, NewSBArduinoBackend(serial))
		}), nil
	},
})

type simPin struct {
	mode  component.GPIOPinMode
	state bool
}

// ArduinoUnoBackend simulates an Arduino Uno. Digital pins start as inputs and
// analogue pins as analogue inputs; every input reads low.
type ArduinoUnoBackend struct {
	log logger.Logger

	mu   sync.Mutex
	pins map[int]*simPin
}

func NewArduinoUnoBackend(serial string) *ArduinoUnoBackend {
	return newArduinoUnoBackend(boards.ArduinoUnoKind, serial)
}

func newArduinoUnoBackend(kind *hal.BoardKind, serial string) *ArduinoUnoBackend {
	b := &ArduinoUnoBackend{
		log:  boardLogger(kind, serial),
		pins: make(map[int]*simPin, boards.LastPin-boards.FirstDigitalPin+1),
	}
	for id := boards.FirstDigitalPin; id <= boards.LastPin; id++ {
		mode := component.DigitalInput
		if boards.IsAnaloguePin(id) {
			mode = component.AnalogueInput
		}
		b.pins[id] = &simPin{mode: mode}
	}

	return b
}

func (b *ArduinoUnoBackend) FirmwareVersion() (string, error) { return "", nil }

// pin returns pin id. b.mu is held.
func (b *ArduinoUnoBackend) pin(op string, id int) (*simPin, error) {
	p, ok := b.pins[id]
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, op, "invalid pin %d, valid pins are %d to %d", id, boards.FirstDigitalPin, boards.LastPin)
	}

	return p, nil
}

func (b *ArduinoUnoBackend) SetGPIOPinMode(id int, mode component.GPIOPinMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pin("sim: set pin mode", id)
	if err != nil {
		return err
	}
	p.mode, p.state = mode, false
	b.log.Debug("sim: set pin mode", "pin", id, "mode", mode)

	return nil
}

func (b *ArduinoUnoBackend) GetGPIOPinMode(id int) (component.GPIOPinMode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pin("sim: get pin mode", id)
	if err != nil {
		return 0, err
	}

	return p.mode, nil
}

func (b *ArduinoUnoBackend) WriteGPIOPinDigitalState(id int, state bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pin("sim: digital write", id)
	if err != nil {
		return err
	}
	p.state = state
	b.log.Debug("sim: digital write", "pin", id, "state", state)

	return nil
}

func (b *ArduinoUnoBackend) GetGPIOPinDigitalState(id int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pin("sim: digital state", id)
	if err != nil {
		return false, err
	}

	return p.state, nil
}

// ReadGPIOPinDigitalState reads low, or high for a pulled-up input.
func (b *ArduinoUnoBackend) ReadGPIOPinDigitalState(id int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.pin("sim: digital read", id)
	if err != nil {
		return false, err
	}

	return p.mode == component.DigitalInputPullUp, nil
}

func (b *ArduinoUnoBackend) ReadGPIOPinAnalogueValue(id int) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.pin("sim: analogue read", id)

	return 0, err
}

func (b *ArduinoUnoBackend) WriteGPIOPinDACValue(id int, _ float64) error {
	return errcode.New(errcode.Unsupported, "sim: analogue write", "pin %d: the Arduino Uno has no DAC", id)
}

func (b *ArduinoUnoBackend) WriteGPIOPinPWMValue(id int, _ float64) error {
	return errcode.New(errcode.Unsupported, "sim: pwm write", "pin %d: PWM output is not supported", id)
}

func (b *ArduinoUnoBackend) GetLEDState(id int) (bool, error) {
	if err := checkIdentifier("sim: led", id, 1); err != nil {
		return false, err
	}

	return b.GetGPIOPinDigitalState(boards.LEDPin)
}

func (b *ArduinoUnoBackend) SetLEDState(id int, state bool) error {
	if err := checkIdentifier("sim: led", id, 1); err != nil {
		return err
	}

	return b.WriteGPIOPinDigitalState(boards.LEDPin, state)
}

// SBArduinoBackend simulates a SourceBots Arduino. Ultrasound sensors never see an echo.
type SBArduinoBackend struct {
	*ArduinoUnoBackend

	servos *servoBank
}

func NewSBArduinoBackend(serial string) *SBArduinoBackend {
	return &SBArduinoBackend{
		ArduinoUnoBackend: newArduinoUnoBackend(boards.SBArduinoKind, serial),
		servos:            newServoBank(boards.SBArduinoServoCount),
	}
}

func (b *SBArduinoBackend) GetServoPosition(id int) (component.ServoPosition, error) {
	return b.servos.get(id)
}

func (b *SBArduinoBackend) SetServoPosition(id int, position component.ServoPosition) error {
	if err := b.servos.set(id, position); err != nil {
		return err
	}
	b.log.Debug("sim: set servo", "servo", id, "position", position)

	return nil
}

func (b *SBArduinoBackend) GetUltrasoundPulse(trigger, echo int) (time.Duration, bool, error) {
	return 0, false, b.ultrasound(trigger, echo)
}

func (b *SBArduinoBackend) GetUltrasoundDistance(trigger, echo int) (float64, bool, error) {
	return 0, false, b.ultrasound(trigger, echo)
}

// ultrasound leaves the pins in the modes a real measurement does.
func (b *SBArduinoBackend) ultrasound(trigger, echo int) error {
	const op = "sim: ultrasound"

	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.pin(op, trigger)
	if err != nil {
		return err
	}
	e, err := b.pin(op, echo)
	if err != nil {
		return err
	}
	t.mode, t.state = component.DigitalOutput, false
	e.mode = component.DigitalInput

	return nil
}
