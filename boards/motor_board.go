package boards

import (
	"errors"
	"fmt"
	"slices"

	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
)

// MotorBoardKind is the Student Robotics v4 Motor Board.
var MotorBoardKind = hal.NewBoardKind("MotorBoard", "Student Robotics v4 Motor Board", component.KindMotor)

// MotorCount is the number of motor outputs of a motor board.
const MotorCount = 2

// MotorBoardBackend is what a backend must implement to drive a MotorBoard.
type MotorBoardBackend interface {
	hal.Backend
	component.MotorInterface
}

// MotorBoard drives two brushed DC motors.
type MotorBoard struct {
	serial  string
	backend MotorBoardBackend
	motors  []*component.Motor
}

func NewMotorBoard(serial string, backend MotorBoardBackend) *MotorBoard {
	b := &MotorBoard{serial: serial, backend: backend}
	for i := range MotorCount {
		b.motors = append(b.motors, component.NewMotor(i, backend))
	}
	hal.Track(b)

	return b
}

func (b *MotorBoard) Kind() *hal.BoardKind             { return MotorBoardKind }
func (b *MotorBoard) SerialNumber() string             { return b.serial }
func (b *MotorBoard) FirmwareVersion() (string, error) { return b.backend.FirmwareVersion() }
func (b *MotorBoard) Motors() []*component.Motor       { return slices.Clone(b.motors) }
func (b *MotorBoard) String() string                   { return fmt.Sprintf("%s %s", MotorBoardKind.Description(), b.serial) }

// Motor returns motor i.
func (b *MotorBoard) Motor(i int) (*component.Motor, error) {
	if i < 0 || i >= len(b.motors) {
		return nil, errcode.New(errcode.InvalidParams, "motor board", "invalid motor %d, the board has motors 0 to %d", i, len(b.motors)-1)
	}

	return b.motors[i], nil
}

// MakeSafe brakes every motor.
func (b *MotorBoard) MakeSafe() error {
	var errs []error
	for _, m := range b.motors {
		if err := m.SetPower(component.Special(component.Brake)); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
