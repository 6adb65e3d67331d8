package console

import (
	"reflect"
	"sync"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/hal"
)

// ServoBoardBackendKind prints servo board outputs. It cannot discover boards; build
// them with NewServoBoardBackend.
var ServoBoardBackendKind = hal.MustDefineBackend(hal.BackendSpec{
	Name:            "SRV4ServoBoardConsoleBackend",
	Board:           boards.ServoBoardKind,
	Environment:     Environment,
	Implementations: []reflect.Type{hal.TypeOf[*ServoBoardBackend]()},
	Discover:        cannotDiscover(boards.ServoBoardKind),
})

// ServoBoardBackend stands in for a servo board. Servos start unpowered.
type ServoBoardBackend struct {
	console *Console

	mu        sync.Mutex
	positions [boards.ServoCount]component.ServoPosition
}

// NewServoBoardBackend returns a backend talking through s, or DefaultIO when s is nil.
func NewServoBoardBackend(serial string, s *IO) *ServoBoardBackend {
	return &ServoBoardBackend{console: New(descriptor(boards.ServoBoardKind, serial), s)}
}

func (b *ServoBoardBackend) FirmwareVersion() (string, error) { return "", nil }

func (b *ServoBoardBackend) GetServoPosition(id int) (component.ServoPosition, error) {
	if err := checkIdentifier("console: servo", id, len(b.positions)); err != nil {
		return component.Unpowered, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.positions[id], nil
}

func (b *ServoBoardBackend) SetServoPosition(id int, position component.ServoPosition) error {
	if err := checkIdentifier("console: servo", id, len(b.positions)); err != nil {
		return err
	}

	b.mu.Lock()
	b.positions[id] = position
	b.mu.Unlock()
	b.console.Info("Setting servo %d to %s.", id, position)

	return nil
}
