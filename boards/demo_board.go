package boards

import (
	"slices"

	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/hal"
)

// DemoBoardKind is a board with three LEDs that only exists in simulation.
var DemoBoardKind = hal.NewBoardKind("DemoBoard", "Demo Board", component.KindLED)

const DemoLEDCount = 3

// DemoBoardBackend is what a backend must implement to drive a DemoBoard.
type DemoBoardBackend interface {
	hal.Backend
	component.LEDInterface
}

type DemoBoard struct {
	serial  string
	backend DemoBoardBackend
	leds    []*component.LED
}

func NewDemoBoard(serial string, backend DemoBoardBackend) *DemoBoard {
	b := &DemoBoard{serial: serial, backend: backend}
	for i := range DemoLEDCount {
		b.leds = append(b.leds, component.NewLED(i, backend))
	}
	hal.Track(b)

	return b
}

func (b *DemoBoard) Kind() *hal.BoardKind             { return DemoBoardKind }
func (b *DemoBoard) SerialNumber() string             { return b.serial }
func (b *DemoBoard) FirmwareVersion() (string, error) { return b.backend.FirmwareVersion() }
func (b *DemoBoard) LEDs() []*component.LED           { return slices.Clone(b.leds) }
func (b *DemoBoard) MakeSafe() error                  { return nil }
