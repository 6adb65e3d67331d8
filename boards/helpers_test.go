package boards

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/component"
)

// fakeBackend implements every component interface and records the calls it sees.
type fakeBackend struct {
	mu       sync.Mutex
	features []Feature
	firmware string

	outputs  map[int]bool
	failOut  map[int]bool
	leds     map[int]bool
	motors   map[int]component.MotorState
	servos   map[int]component.ServoPosition
	modes    map[int]component.GPIOPinMode
	digital  map[int]bool
	pressAt  int
	polls    int
	ledTrace []bool
}

func newFakeBackend(features ...Feature) *fakeBackend {
	return &fakeBackend{
		features: features,
		firmware: "4.4.1",
		outputs:  map[int]bool{},
		failOut:  map[int]bool{},
		leds:     map[int]bool{},
		motors:   map[int]component.MotorState{},
		servos:   map[int]component.ServoPosition{},
		modes:    map[int]component.GPIOPinMode{},
		digital:  map[int]bool{},
		pressAt:  -1,
	}
}

var errOutput = errors.New("output failure")

func (f *fakeBackend) Features() []Feature              { return f.features }
func (f *fakeBackend) FirmwareVersion() (string, error) { return f.firmware, nil }

func (f *fakeBackend) GetPowerOutputEnabled(id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.outputs[id], nil
}

func (f *fakeBackend) SetPowerOutputEnabled(id int, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOut[id] {
		return errOutput
	}
	f.outputs[id] = enabled

	return nil
}

func (f *fakeBackend) GetPowerOutputCurrent(int) (float64, error) { return 1.5, nil }

func (f *fakeBackend) Buzz(int, time.Duration, float64, bool) error { return nil }

func (f *fakeBackend) GetButtonState(int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++

	return f.pressAt >= 0 && f.polls > f.pressAt, nil
}

func (f *fakeBackend) WaitUntilButtonPressed(context.Context, int) error { return nil }

func (f *fakeBackend) GetBatterySensorVoltage(int) (float64, error) { return 12.1, nil }
func (f *fakeBackend) GetBatterySensorCurrent(int) (float64, error) { return 0.4, nil }

func (f *fakeBackend) GetLEDState(id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.leds[id], nil
}

func (f *fakeBackend) SetLEDState(id int, state bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.leds[id] = state
	if id == RunLEDID {
		f.ledTrace = append(f.ledTrace, state)
	}

	return nil
}

func (f *fakeBackend) GetMotorState(id int) (component.MotorState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.motors[id], nil
}

func (f *fakeBackend) SetMotorState(id int, state component.MotorState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.motors[id] = state

	return nil
}

func (f *fakeBackend) GetServoPosition(id int) (component.ServoPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.servos[id], nil
}

func (f *fakeBackend) SetServoPosition(id int, position component.ServoPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.servos[id] = position

	return nil
}

func (f *fakeBackend) SetGPIOPinMode(id int, mode component.GPIOPinMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.modes[id] = mode

	return nil
}

func (f *fakeBackend) GetGPIOPinMode(id int) (component.GPIOPinMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := f.modes[id]; ok {
		return m, nil
	}

	return component.DigitalOutput, nil
}

func (f *fakeBackend) WriteGPIOPinDigitalState(id int, state bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.digital[id] = state

	return nil
}

func (f *fakeBackend) GetGPIOPinDigitalState(id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.digital[id], nil
}

func (f *fakeBackend) ReadGPIOPinDigitalState(id int) (bool, error)  { return f.GetGPIOPinDigitalState(id) }
func (f *fakeBackend) ReadGPIOPinAnalogueValue(int) (float64, error) { return 2.5, nil }
func (f *fakeBackend) WriteGPIOPinDACValue(int, float64) error       { return nil }
func (f *fakeBackend) WriteGPIOPinPWMValue(int, float64) error       { return nil }

func (f *fakeBackend) GetUltrasoundPulse(int, int) (time.Duration, bool, error) {
	return 580 * time.Microsecond, true, nil
}

func (f *fakeBackend) GetUltrasoundDistance(int, int) (float64, bool, error) { return 0.1, true, nil }
