package console

import (
	"context"
	"reflect"
	"sync"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/hal"
)

// MotorBoardBackendKind prints motor board outputs.
var MotorBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4MotorBoardConsoleBackend",
	Board:           boards.MotorBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*MotorBoardBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return []hal.Board{boards.NewMotorBoard(DefaultSerial, NewMotorBoardBackend(DefaultSerial, nil))}, nil
	},
})

// MotorBoardBackend stands in for a motor board. Motors start braked.
type MotorBoardBackend struct {
	console *Console

	mu     sync.Mutex
	states [boards.MotorCount]component.MotorState
}

// NewMotorBoardBackend returns a backend talking through s, or DefaultIO when s is nil.
func NewMotorBoardBackend(serial string, s *IO) *MotorBoardBackend {
	b := &MotorBoardBackend{console: New(descriptor(boards.MotorBoardKind, serial), s)}
	for i := range b.states {
		b.states[i] = component.Special(component.Brake)
	}

	return b
}

func (b *MotorBoardBackend) FirmwareVersion() (string, error) { return "", nil }

// GetMotorState returns the last state set, the board cannot report it.
func (b *MotorBoardBackend) GetMotorState(id int) (component.MotorState, error) {
	if err := checkIdentifier("console: motor", id, len(b.states)); err != nil {
		return component.MotorState{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.states[id], nil
}

func (b *MotorBoardBackend) SetMotorState(id int, state component.MotorState) error {
	if err := checkIdentifier("console: motor", id, len(b.states)); err != nil {
		return err
	}

	b.mu.Lock()
	b.states[id] = state
	b.mu.Unlock()
	b.console.Info("Setting motor %d to %s.", id, state)

	return nil
}
