package component

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/arloliu/go-robohal/errcode"
)

// ErrBadPinMode is wrapped by errors returned when a pin operation needs a
// different pin mode than the one the pin is in.
var ErrBadPinMode = errors.New("component: pin is not in a suitable mode")

// GPIOPinMode is the hardware mode of a GPIO pin.
type GPIOPinMode uint8

const (
	DigitalInput GPIOPinMode = iota + 1
	DigitalInputPullUp
	DigitalInputPullDown
	DigitalOutput
	AnalogueInput
	AnalogueOutput
	PWMOutput
)

func (m GPIOPinMode) String() string {
	switch m {
	case DigitalInput:
		return "DIGITAL_INPUT"
	case DigitalInputPullUp:
		return "DIGITAL_INPUT_PULLUP"
	case DigitalInputPullDown:
		return "DIGITAL_INPUT_PULLDOWN"
	case DigitalOutput:
		return "DIGITAL_OUTPUT"
	case AnalogueInput:
		return "ANALOGUE_INPUT"
	case AnalogueOutput:
		return "ANALOGUE_OUTPUT"
	case PWMOutput:
		return "PWM_OUTPUT"
	default:
		return fmt.Sprintf("GPIOPinMode(%d)", uint8(m))
	}
}

// GPIOPinInterface drives general purpose I/O pins.
type GPIOPinInterface interface {
	SetGPIOPinMode(identifier int, mode GPIOPinMode) error
	GetGPIOPinMode(identifier int) (GPIOPinMode, error)
	WriteGPIOPinDigitalState(identifier int, state bool) error
	// GetGPIOPinDigitalState returns the last written digital state without I/O.
	GetGPIOPinDigitalState(identifier int) (bool, error)
	ReadGPIOPinDigitalState(identifier int) (bool, error)
	// ReadGPIOPinAnalogueValue returns a scaled reading, in volts for boards with an ADC.
	ReadGPIOPinAnalogueValue(identifier int) (float64, error)
	WriteGPIOPinDACValue(identifier int, value float64) error
	WriteGPIOPinPWMValue(identifier int, duty float64) error
}

// GPIOPin is a general purpose I/O pin supporting a fixed set of modes.
type GPIOPin struct {
	id      int
	backend GPIOPinInterface
	modes   []GPIOPinMode
}

// NewGPIOPin creates a pin supporting the given hardware modes.
// The pin's current mode is whatever the backend reports.
func NewGPIOPin(identifier int, backend GPIOPinInterface, modes ...GPIOPinMode) (*GPIOPin, error) {
	if len(modes) == 0 {
		return nil, errcode.New(errcode.InvalidParams, "gpio", "pin %d must support at least one hardware mode", identifier)
	}

	return &GPIOPin{id: identifier, backend: backend, modes: slices.Clone(modes)}, nil
}

func (p *GPIOPin) Identifier() int { return p.id }

// SupportedModes returns the hardware modes of the pin.
func (p *GPIOPin) SupportedModes() []GPIOPinMode { return slices.Clone(p.modes) }

func (p *GPIOPin) Mode() (GPIOPinMode, error) {
	return p.backend.GetGPIOPinMode(p.id)
}

// SetMode switches the pin mode; modes the pin does not support are rejected before any I/O.
func (p *GPIOPin) SetMode(mode GPIOPinMode) error {
	if !slices.Contains(p.modes, mode) {
		return errcode.New(errcode.Unsupported, "gpio", "pin %d does not support %s", p.id, mode)
	}

	return p.backend.SetGPIOPinMode(p.id, mode)
}

func (p *GPIOPin) DigitalWrite(state bool) error {
	if err := p.requireMode(DigitalOutput); err != nil {
		return err
	}

	return p.backend.WriteGPIOPinDigitalState(p.id, state)
}

// LastDigitalWrite returns the last written state without reading the pin.
func (p *GPIOPin) LastDigitalWrite() (bool, error) {
	if err := p.requireMode(DigitalOutput); err != nil {
		return false, err
	}

	return p.backend.GetGPIOPinDigitalState(p.id)
}

func (p *GPIOPin) DigitalRead() (bool, error) {
	if err := p.requireMode(DigitalInput, DigitalInputPullUp, DigitalInputPullDown); err != nil {
		return false, err
	}

	return p.backend.ReadGPIOPinDigitalState(p.id)
}

func (p *GPIOPin) AnalogueRead() (float64, error) {
	if err := p.requireMode(AnalogueInput); err != nil {
		return 0, err
	}

	return p.backend.ReadGPIOPinAnalogueValue(p.id)
}

// AnalogueWrite sets the DAC output, value in [0, 1].
func (p *GPIOPin) AnalogueWrite(value float64) error {
	if err := p.requireMode(AnalogueOutput); err != nil {
		return err
	}
	if math.IsNaN(value) || value < 0 || value > 1 {
		return errcode.New(errcode.InvalidParams, "gpio", "an analogue pin value must be between 0 and 1")
	}

	return p.backend.WriteGPIOPinDACValue(p.id, value)
}

// PWMWrite sets the PWM duty cycle, in [0, 1].
func (p *GPIOPin) PWMWrite(duty float64) error {
	if err := p.requireMode(PWMOutput); err != nil {
		return err
	}
	if math.IsNaN(duty) || duty < 0 || duty > 1 {
		return errcode.New(errcode.InvalidParams, "gpio", "a PWM pin value must be between 0 and 1")
	}

	return p.backend.WriteGPIOPinPWMValue(p.id, duty)
}

func (p *GPIOPin) requireMode(modes ...GPIOPinMode) error {
	current, err := p.Mode()
	if err != nil {
		return err
	}
	if slices.Contains(modes, current) {
		return nil
	}

	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}

	return errcode.Wrap(errcode.InvalidParams, "gpio", ErrBadPinMode,
		"pin %d needs to be in one of %s", p.id, strings.Join(names, ", "))
}
