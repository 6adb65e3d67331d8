package sim

import (
	"context"
	"reflect"
	"sync"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
)

// MotorBoardBackendKind simulates motor boards.
var MotorBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4MotorBoardSimulationBackend",
	Board:           boards.MotorBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*MotorBoardBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return discoverEach(boards.MotorBoardKind, func(serial string) hal.Board {
			return boards.NewMotorBoard(serial, NewMotorBoardBackend(serial))
		}), nil
	},
})

// MotorBoardBackend simulates a motor board. Motors start braked, as on real hardware.
type MotorBoardBackend struct {
	log logger.Logger

	mu     sync.Mutex
	states [boards.MotorCount]component.MotorState
}

func NewMotorBoardBackend(serial string) *MotorBoardBackend {
	b := &MotorBoardBackend{log: boardLogger(boards.MotorBoardKind, serial)}
	for i := range b.states {
		b.states[i] = component.Special(component.Brake)
	}

	return b
}

func (b *MotorBoardBackend) FirmwareVersion() (string, error) { return "", nil }

func (b *MotorBoardBackend) GetMotorState(id int) (component.MotorState, error) {
	if err := checkIdentifier("sim: motor", id, len(b.states)); err != nil {
		return component.MotorState{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.states[id], nil
}

func (b *MotorBoardBackend) SetMotorState(id int, state component.MotorState) error {
	if err := checkIdentifier("sim: motor", id, len(b.states)); err != nil {
		return err
	}

	b.mu.Lock()
	b.states[id] = state
	b.mu.Unlock()
	b.log.Debug("sim: set motor", "motor", id, "state", state)

	return nil
}

// ServoBoardBackendKind simulates servo boards.
var ServoBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4ServoBoardSimulationBackend",
	Board:           boards.ServoBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*ServoBoardBackend]()},
	Discover: func(_ context.Context) ([]hal.Board, error) {
		return discoverEach(boards.ServoBoardKind, func(serial string) hal.Board {
			return boards.NewServoBoard(serial, NewServoBoardBackend(serial))
		}), nil
	},
})

// ServoBoardBackend simulates a servo board. Servos start unpowered.
type ServoBoardBackend struct {
	log    logger.Logger
	servos *servoBank
}

func NewServoBoardBackend(serial string) *ServoBoardBackend {
	return &ServoBoardBackend{
		log:    boardLogger(boards.ServoBoardKind, serial),
		servos: newServoBank(boards.ServoCount),
	}
}

func (b *ServoBoardBackend) FirmwareVersion() (string, error) { return "", nil }

func (b *ServoBoardBackend) GetServoPosition(id int) (component.ServoPosition, error) {
	return b.servos.get(id)
}

func (b *ServoBoardBackend) SetServoPosition(id int, position component.ServoPosition) error {
	if err := b.servos.set(id, position); err != nil {
		return err
	}
	b.log.Debug("sim: set servo", "servo", id, "position", position)

	return nil
}

// servoBank holds the positions of a fixed number of servos.
type servoBank struct {
	mu        sync.Mutex
	positions []component.ServoPosition
}

func newServoBank(n int) *servoBank {
	return &servoBank{positions: make([]component.ServoPosition, n)}
}

func (s *servoBank) get(id int) (component.ServoPosition, error) {
	if err := checkIdentifier("sim: servo", id, len(s.positions)); err != nil {
		return component.Unpowered, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.positions[id], nil
}

func (s *servoBank) set(id int, position component.ServoPosition) error {
	if err := checkIdentifier("sim: servo", id, len(s.positions)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[id] = position

	return nil
}
