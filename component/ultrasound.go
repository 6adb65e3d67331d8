package component

import "time"

// UltrasoundInterface drives ultrasound distance sensors wired to a trigger and an echo pin.
type UltrasoundInterface interface {
	// GetUltrasoundPulse returns the echo pulse width; ok is false when no echo arrived.
	GetUltrasoundPulse(triggerPin, echoPin int) (pulse time.Duration, ok bool, err error)
	// GetUltrasoundDistance returns metres; ok is false when no echo arrived.
	GetUltrasoundDistance(triggerPin, echoPin int) (metres float64, ok bool, err error)
}

// UltrasoundSensor is a sensor built from two GPIO pins of the same board.
type UltrasoundSensor struct {
	trigger *GPIOPin
	echo    *GPIOPin
	backend UltrasoundInterface
}

func NewUltrasoundSensor(trigger, echo *GPIOPin, backend UltrasoundInterface) *UltrasoundSensor {
	return &UltrasoundSensor{trigger: trigger, echo: echo, backend: backend}
}

func (u *UltrasoundSensor) Pulse() (time.Duration, bool, error) {
	return u.backend.GetUltrasoundPulse(u.trigger.Identifier(), u.echo.Identifier())
}

func (u *UltrasoundSensor) Distance() (float64, bool, error) {
	return u.backend.GetUltrasoundDistance(u.trigger.Identifier(), u.echo.Identifier())
}
