package component

import (
	"fmt"
	"math"

	"github.com/arloliu/go-robohal/errcode"
)

// ServoPosition is either a position in [-1, 1] or unpowered.
// The zero value is unpowered.
type ServoPosition struct {
	pos     float64
	powered bool
}

// Unpowered is the position of a servo that is not being driven.
var Unpowered = ServoPosition{}

// Position returns a powered servo position. Values outside [-1, 1] and NaN are rejected.
func Position(pos float64) (ServoPosition, error) {
	if math.IsNaN(pos) || pos < -1 || pos > 1 {
		return ServoPosition{}, errcode.New(errcode.InvalidParams, "servo", "servo position must be between -1 and 1, got %v", pos)
	}

	return ServoPosition{pos: pos, powered: true}, nil
}

// MustPosition is like Position but panics on an invalid position.
func MustPosition(pos float64) ServoPosition {
	p, err := Position(pos)
	if err != nil {
		panic(err)
	}

	return p
}

// Value returns the position; ok is false when unpowered.
func (p ServoPosition) Value() (pos float64, ok bool) {
	return p.pos, p.powered
}

func (p ServoPosition) String() string {
	if !p.powered {
		return "unpowered"
	}

	return fmt.Sprintf("%g", p.pos)
}

// ServoInterface drives RC servos.
type ServoInterface interface {
	GetServoPosition(identifier int) (ServoPosition, error)
	SetServoPosition(identifier int, position ServoPosition) error
}

// Servo is an RC servo output.
type Servo struct {
	id      int
	backend ServoInterface
}

func NewServo(identifier int, backend ServoInterface) *Servo {
	return &Servo{id: identifier, backend: backend}
}

func (s *Servo) Identifier() int { return s.id }

func (s *Servo) Position() (ServoPosition, error) {
	return s.backend.GetServoPosition(s.id)
}

func (s *Servo) SetPosition(position ServoPosition) error {
	if position.powered && (math.IsNaN(position.pos) || position.pos < -1 || position.pos > 1) {
		return errcode.New(errcode.InvalidParams, "servo", "servo position must be between -1 and 1")
	}

	return s.backend.SetServoPosition(s.id, position)
}
