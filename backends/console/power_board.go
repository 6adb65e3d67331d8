package console

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
)

const maxBuzzMillis = 65535

// PowerBoardBackendKind asks the user for power board inputs.
var PowerBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4PowerBoardConsoleBackend",
	Board:           boards.PowerBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*PowerBoardBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return []hal.Board{boards.NewPowerBoard(DefaultSerial, NewPowerBoardBackend(DefaultSerial, nil))}, nil
	},
})

// PowerBoardBackend stands in for a power board with a switchable 5V regulator.
type PowerBoardBackend struct {
	console *Console

	mu      sync.Mutex
	outputs [int(boards.FiveVolt) + 1]bool
	leds    [2]bool
}

// NewPowerBoardBackend returns a backend talking through s, or DefaultIO when s is nil.
func NewPowerBoardBackend(serial string, s *IO) *PowerBoardBackend {
	return &PowerBoardBackend{console: New(descriptor(boards.PowerBoardKind, serial), s)}
}

func descriptor(kind *hal.BoardKind, serial string) string {
	return fmt.Sprintf("%s(%s)", kind.Name(), serial)
}

func (b *PowerBoardBackend) Features() []boards.Feature       { return []boards.Feature{boards.Reg5VControl} }
func (b *PowerBoardBackend) FirmwareVersion() (string, error) { return "", nil }

func (b *PowerBoardBackend) GetPowerOutputEnabled(id int) (bool, error) {
	if err := checkIdentifier("console: power output", id, len(b.outputs)); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.outputs[id], nil
}

func (b *PowerBoardBackend) SetPowerOutputEnabled(id int, enabled bool) error {
	b.console.Info("Setting output %d to %v", id, enabled)
	if err := checkIdentifier("console: power output", id, len(b.outputs)); err != nil {
		return err
	}

	b.mu.Lock()
	b.outputs[id] = enabled
	b.mu.Unlock()

	return nil
}

func (b *PowerBoardBackend) GetPowerOutputCurrent(id int) (float64, error) {
	if err := checkIdentifier("console: power output", id, len(b.outputs)); err != nil {
		return 0, err
	}

	return b.console.ReadFloat(fmt.Sprintf("Current for power output %d [amps]", id))
}

func (b *PowerBoardBackend) Buzz(id int, duration time.Duration, frequency float64, blocking bool) error {
	const op = "console: piezo"
	if err := checkIdentifier(op, id, 1); err != nil {
		return err
	}

	ms := int(math.RoundToEven(float64(duration) / float64(time.Millisecond)))
	if ms > maxBuzzMillis {
		return errcode.New(errcode.InvalidParams, op, "maximum piezo duration is %dms", maxBuzzMillis)
	}
	b.console.Info("Buzzing at %vHz for %dms", frequency, ms)
	if blocking {
		time.Sleep(duration)
	}

	return nil
}

func (b *PowerBoardBackend) GetButtonState(id int) (bool, error) {
	if err := checkIdentifier("console: button", id, 1); err != nil {
		return false, err
	}

	return b.console.ReadBool("Start button state [true/false]")
}

// WaitUntilButtonPressed returns once the user presses return. ctx is only checked
// before prompting.
func (b *PowerBoardBackend) WaitUntilButtonPressed(ctx context.Context, id int) error {
	if err := checkIdentifier("console: button", id, 1); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.console.Info("Waiting for start button press.")

	return b.console.WaitForEnter("Hit return to press start button")
}

func (b *PowerBoardBackend) GetBatterySensorVoltage(id int) (float64, error) {
	if err := checkIdentifier("console: battery sensor", id, 1); err != nil {
		return 0, err
	}

	return b.console.ReadFloat("Battery voltage [volts]")
}

func (b *PowerBoardBackend) GetBatterySensorCurrent(id int) (float64, error) {
	if err := checkIdentifier("console: battery sensor", id, 1); err != nil {
		return 0, err
	}

	return b.console.ReadFloat("Battery current [amps]")
}

func (b *PowerBoardBackend) GetLEDState(id int) (bool, error) {
	if err := checkIdentifier("console: led", id, len(b.leds)); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.leds[id], nil
}

func (b *PowerBoardBackend) SetLEDState(id int, state bool) error {
	if err := checkIdentifier("console: led", id, len(b.leds)); err != nil {
		return err
	}

	b.mu.Lock()
	b.leds[id] = state
	b.mu.Unlock()
	b.console.Info("Set LED %d to %v", id, state)

	return nil
}
