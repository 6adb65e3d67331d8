package sim

import (
	"context"
	"reflect"
	"sync"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
)

// DemoBoardBackendKind simulates demo boards. Demo boards exist nowhere else.
var DemoBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "DemoBoardSimulationBackend",
	Board:           boards.DemoBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*DemoBoardBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return discoverEach(boards.DemoBoardKind, func(serial string) hal.Board {
			return boards.NewDemoBoard(serial, NewDemoBoardBackend(serial))
		}), nil
	},
})

type DemoBoardBackend struct {
	log logger.Logger

	mu   sync.Mutex
	leds [boards.DemoLEDCount]bool
}

func NewDemoBoardBackend(serial string) *DemoBoardBackend {
	return &DemoBoardBackend{log: boardLogger(boards.DemoBoardKind, serial)}
}

func (b *DemoBoardBackend) FirmwareVersion() (string, error) { return "", nil }

func (b *DemoBoardBackend) GetLEDState(id int) (bool, error) {
	if err := checkIdentifier("sim: led", id, len(b.leds)); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.leds[id], nil
}

func (b *DemoBoardBackend) SetLEDState(id int, state bool) error {
	if err := checkIdentifier("sim: led", id, len(b.leds)); err != nil {
		return err
	}

	b.mu.Lock()
	b.leds[id] = state
	b.mu.Unlock()
	b.log.Info("sim: set led", "led", id, "state", state)

	return nil
}
