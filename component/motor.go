package component

import (
	"fmt"
	"math"

	"github.com/arloliu/go-robohal/errcode"
)

// MotorSpecial is a named motor state that is not a power level.
type MotorSpecial uint8

const (
	Brake MotorSpecial = iota + 1
	Coast
)

func (s MotorSpecial) String() string {
	switch s {
	case Brake:
		return "BRAKE"
	case Coast:
		return "COAST"
	default:
		return fmt.Sprintf("MotorSpecial(%d)", uint8(s))
	}
}

// MotorState is either a power level in [-1, 1] or a special state.
// The zero value is a power level of 0.
type MotorState struct {
	level   float64
	special MotorSpecial
}

// Level returns a power level state. Levels outside [-1, 1] and NaN are rejected.
func Level(power float64) (MotorState, error) {
	if math.IsNaN(power) || power < -1 || power > 1 {
		return MotorState{}, errcode.New(errcode.InvalidParams, "motor", "motor power must be between -1 and 1, got %v", power)
	}

	return MotorState{level: power}, nil
}

// MustLevel is like Level but panics on an invalid power.
func MustLevel(power float64) MotorState {
	st, err := Level(power)
	if err != nil {
		panic(err)
	}

	return st
}

// Special returns a special motor state.
func Special(s MotorSpecial) MotorState {
	return MotorState{special: s}
}

// IsSpecial reports whether the state is a special state and returns it.
func (m MotorState) IsSpecial() (MotorSpecial, bool) {
	return m.special, m.special != 0
}

// Power returns the power level; ok is false for special states.
func (m MotorState) Power() (level float64, ok bool) {
	return m.level, m.special == 0
}

func (m MotorState) String() string {
	if s, ok := m.IsSpecial(); ok {
		return s.String()
	}

	return fmt.Sprintf("%g", m.level)
}

// MotorInterface drives motor outputs.
type MotorInterface interface {
	GetMotorState(identifier int) (MotorState, error)
	SetMotorState(identifier int, state MotorState) error
}

// Motor is a DC motor output.
type Motor struct {
	id      int
	backend MotorInterface
}

func NewMotor(identifier int, backend MotorInterface) *Motor {
	return &Motor{id: identifier, backend: backend}
}

func (m *Motor) Identifier() int { return m.id }

func (m *Motor) Power() (MotorState, error) {
	return m.backend.GetMotorState(m.id)
}

// SetPower sets the motor state.
func (m *Motor) SetPower(state MotorState) error {
	if state.special == 0 && (math.IsNaN(state.level) || state.level < -1 || state.level > 1) {
		return errcode.New(errcode.InvalidParams, "motor", "motor power must be between -1 and 1")
	}
	if state.special > Coast {
		return errcode.New(errcode.InvalidParams, "motor", "unknown motor state %v", state.special)
	}

	return m.backend.SetMotorState(m.id, state)
}
