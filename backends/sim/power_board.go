package sim

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
)

// Nominal battery readings of a simulated power board.
const (
	BatteryVoltage = 12.0
	BatteryCurrent = 0.0
)

// PowerBoardBackendKind simulates power boards.
var PowerBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4PowerBoardSimulationBackend",
	Board:           boards.PowerBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*PowerBoardBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return discoverEach(boards.PowerBoardKind, func(serial string) hal.Board {
			return boards.NewPowerBoard(serial, NewPowerBoardBackend(serial))
		}), nil
	},
})

// PowerBoardBackend simulates a power board with a switchable 5V regulator. The start
// button reads as pressed once Press has been called.
type PowerBoardBackend struct {
	log logger.Logger

	mu      sync.Mutex
	outputs [int(boards.FiveVolt) + 1]bool
	leds    [2]bool
	pressed bool
}

func NewPowerBoardBackend(serial string) *PowerBoardBackend {
	return &PowerBoardBackend{log: boardLogger(boards.PowerBoardKind, serial)}
}

func (b *PowerBoardBackend) Features() []boards.Feature       { return []boards.Feature{boards.Reg5VControl} }
func (b *PowerBoardBackend) FirmwareVersion() (string, error) { return "", nil }

// Press presses the start button.
func (b *PowerBoardBackend) Press() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pressed = true
}

func (b *PowerBoardBackend) GetPowerOutputEnabled(id int) (bool, error) {
	if err := checkIdentifier("sim: power output", id, len(b.outputs)); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.outputs[id], nil
}

func (b *PowerBoardBackend) SetPowerOutputEnabled(id int, enabled bool) error {
	if err := checkIdentifier("sim: power output", id, len(b.outputs)); err != nil {
		return err
	}

	b.mu.Lock()
	b.outputs[id] = enabled
	b.mu.Unlock()
	b.log.Debug("sim: set power output", "output", boards.PowerOutputPosition(id), "enabled", enabled)

	return nil
}

func (b *PowerBoardBackend) GetPowerOutputCurrent(id int) (float64, error) {
	if err := checkIdentifier("sim: power output", id, len(b.outputs)); err != nil {
		return 0, err
	}

	return 0, nil
}

// Buzz logs the tone and returns without waiting, even when blocking.
func (b *PowerBoardBackend) Buzz(id int, duration time.Duration, frequency float64, _ bool) error {
	if err := checkIdentifier("sim: piezo", id, 1); err != nil {
		return err
	}
	b.log.Debug("sim: buzz", "duration", duration, "frequency", frequency)

	return nil
}

func (b *PowerBoardBackend) GetButtonState(id int) (bool, error) {
	if err := checkIdentifier("sim: button", id, 1); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pressed, nil
}

// WaitUntilButtonPressed returns at once; a simulated robot starts immediately.
func (b *PowerBoardBackend) WaitUntilButtonPressed(ctx context.Context, id int) error {
	if err := checkIdentifier("sim: button", id, 1); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.Press()

	return nil
}

func (b *PowerBoardBackend) GetBatterySensorVoltage(id int) (float64, error) {
	if err := checkIdentifier("sim: battery sensor", id, 1); err != nil {
		return 0, err
	}

	return BatteryVoltage, nil
}

func (b *PowerBoardBackend) GetBatterySensorCurrent(id int) (float64, error) {
	if err := checkIdentifier("sim: battery sensor", id, 1); err != nil {
		return 0, err
	}

	return BatteryCurrent, nil
}

func (b *PowerBoardBackend) GetLEDState(id int) (bool, error) {
	if err := checkIdentifier("sim: led", id, len(b.leds)); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.leds[id], nil
}

func (b *PowerBoardBackend) SetLEDState(id int, state bool) error {
	if err := checkIdentifier("sim: led", id, len(b.leds)); err != nil {
		return err
	}

	b.mu.Lock()
	b.leds[id] = state
	b.mu.Unlock()

	return nil
}
