package boards

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/internal/poll"
)

// PowerBoardKind is the Student Robotics v4 Power Board.
var PowerBoardKind = hal.NewBoardKind("PowerBoard", "Student Robotics v4 Power Board",
	component.KindPowerOutput,
	component.KindPiezo,
	component.KindButton,
	component.KindBatterySensor,
	component.KindLED,
)

// Power board features.
const (
	// BrainOutput: the robot's brain is powered from L2, which is never switched.
	BrainOutput Feature = "brain_output"
	// Reg5VControl: the 5V regulator output is switchable.
	Reg5VControl Feature = "5v_control"
)

// PowerOutputPosition names a power board output. The values are the wire numbers.
type PowerOutputPosition int

const (
	H0 PowerOutputPosition = iota
	H1
	L0
	L1
	L2
	L3
	FiveVolt
)

// PowerOutputPositions lists every output position in wire order.
var PowerOutputPositions = []PowerOutputPosition{H0, H1, L0, L1, L2, L3, FiveVolt}

func (p PowerOutputPosition) String() string {
	switch p {
	case H0:
		return "H0"
	case H1:
		return "H1"
	case L0:
		return "L0"
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	case FiveVolt:
		return "FIVE_VOLT"
	default:
		return fmt.Sprintf("PowerOutputPosition(%d)", int(p))
	}
}

// ParsePowerOutputPosition parses an output name such as "H0" or "FIVE_VOLT".
func ParsePowerOutputPosition(s string) (PowerOutputPosition, error) {
	for _, p := range PowerOutputPositions {
		if p.String() == s {
			return p, nil
		}
	}

	return 0, fmt.Errorf("boards: unknown power output %q", s)
}

// Identifiers of the single-instance power board components.
const (
	PiezoID         = 0
	StartButtonID   = 0
	BatterySensorID = 0
	RunLEDID        = 0
	ErrorLEDID      = 1
)

// StartFlashInterval is the poll interval of WaitForStartFlash; the run LED toggles
// every startFlashPolls polls.
const (
	StartFlashInterval = 50 * time.Millisecond
	startFlashPolls    = 6
)

// PowerBoardBackend is what a backend must implement to drive a PowerBoard.
type PowerBoardBackend interface {
	hal.Backend
	component.PowerOutputInterface
	component.PiezoInterface
	component.ButtonInterface
	component.BatterySensorInterface
	component.LEDInterface
}

// PowerBoard distributes battery power to the robot.
type PowerBoard struct {
	serial  string
	backend PowerBoardBackend

	outputs       *component.PowerOutputGroup[PowerOutputPosition]
	piezo         *component.Piezo
	startButton   *component.Button
	batterySensor *component.BatterySensor
	runLED        *component.LED
	errorLED      *component.LED
}

// NewPowerBoard creates a power board. Outputs the backend's features make
// uncontrollable are left out of Outputs.
func NewPowerBoard(serial string, backend PowerBoardBackend) *PowerBoard {
	features := featuresOf(backend)

	outputs := make(map[PowerOutputPosition]*component.PowerOutput)
	for _, p := range PowerOutputPositions {
		if outputIsControllable(features, p) {
			outputs[p] = component.NewPowerOutput(int(p), backend)
		}
	}

	b := &PowerBoard{
		serial:        serial,
		backend:       backend,
		outputs:       component.NewPowerOutputGroup(outputs),
		piezo:         component.NewPiezo(PiezoID, backend, false),
		startButton:   component.NewButton(StartButtonID, backend),
		batterySensor: component.NewBatterySensor(BatterySensorID, backend),
		runLED:        component.NewLED(RunLEDID, backend),
		errorLED:      component.NewLED(ErrorLEDID, backend),
	}
	hal.Track(b)

	return b
}

func outputIsControllable(features map[Feature]bool, p PowerOutputPosition) bool {
	switch {
	case p == L2 && features[BrainOutput]:
		return false
	case p == FiveVolt && !features[Reg5VControl]:
		return false
	default:
		return true
	}
}

func (b *PowerBoard) Kind() *hal.BoardKind { return PowerBoardKind }
func (b *PowerBoard) SerialNumber() string { return b.serial }

// FirmwareVersion returns the firmware version reported by the board, "" if none.
func (b *PowerBoard) FirmwareVersion() (string, error) { return b.backend.FirmwareVersion() }

func (b *PowerBoard) Outputs() *component.PowerOutputGroup[PowerOutputPosition] { return b.outputs }
func (b *PowerBoard) Piezo() *component.Piezo                                   { return b.piezo }
func (b *PowerBoard) StartButton() *component.Button                            { return b.startButton }
func (b *PowerBoard) BatterySensor() *component.BatterySensor                   { return b.batterySensor }
func (b *PowerBoard) RunLED() *component.LED                                    { return b.runLED }
func (b *PowerBoard) ErrorLED() *component.LED                                  { return b.errorLED }

// MakeSafe turns every controllable output off.
func (b *PowerBoard) MakeSafe() error {
	return b.outputs.PowerOff()
}

// WaitForStartFlash waits for the start button, flashing the run LED meanwhile. The run
// LED is left on once the button is pressed.
func (b *PowerBoard) WaitForStartFlash(ctx context.Context) error {
	led := false
	err := poll.Until(ctx, StartFlashInterval, b.startButton.IsPressed, func(n int) error {
		if n%startFlashPolls != 0 {
			return nil
		}
		led = !led

		return b.runLED.SetState(led)
	})
	if err != nil {
		return err
	}

	return b.runLED.SetState(true)
}

func (b *PowerBoard) String() string {
	return fmt.Sprintf("%s %s", PowerBoardKind.Description(), b.serial)
}
