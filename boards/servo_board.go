package boards

import (
	"fmt"
	"slices"

	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
)

// ServoBoardKind is the Student Robotics v4 Servo Board.
var ServoBoardKind = hal.NewBoardKind("ServoBoard", "Student Robotics v4 Servo Board", component.KindServo)

// ServoCount is the number of servo outputs of a servo board.
const ServoCount = 12

// ServoBoardBackend is what a backend must implement to drive a ServoBoard.
type ServoBoardBackend interface {
	hal.Backend
	component.ServoInterface
}

// ServoBoard drives twelve RC servos.
type ServoBoard struct {
	serial  string
	backend ServoBoardBackend
	servos  []*component.Servo
}

func NewServoBoard(serial string, backend ServoBoardBackend) *ServoBoard {
	b := &ServoBoard{serial: serial, backend: backend}
	for i := range ServoCount {
		b.servos = append(b.servos, component.NewServo(i, backend))
	}
	hal.Track(b)

	return b
}

func (b *ServoBoard) Kind() *hal.BoardKind             { return ServoBoardKind }
func (b *ServoBoard) SerialNumber() string             { return b.serial }
func (b *ServoBoard) FirmwareVersion() (string, error) { return b.backend.FirmwareVersion() }
func (b *ServoBoard) Servos() []*component.Servo       { return slices.Clone(b.servos) }
func (b *ServoBoard) String() string                   { return fmt.Sprintf("%s %s", ServoBoardKind.Description(), b.serial) }

// Servo returns servo i.
func (b *ServoBoard) Servo(i int) (*component.Servo, error) {
	return servoAt(b.servos, i)
}

// MakeSafe does nothing; servos hold their position.
func (b *ServoBoard) MakeSafe() error { return nil }

func servoAt(servos []*component.Servo, i int) (*component.Servo, error) {
	if i < 0 || i >= len(servos) {
		return nil, errcode.New(errcode.InvalidParams, "servo", "invalid servo %d, valid servos are 0 to %d", i, len(servos)-1)
	}

	return servos[i], nil
}
