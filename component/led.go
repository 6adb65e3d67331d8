package component

// LEDInterface drives single-colour LEDs.
type LEDInterface interface {
	GetLEDState(identifier int) (bool, error)
	SetLEDState(identifier int, state bool) error
}

// LED is a single-colour LED.
type LED struct {
	id      int
	backend LEDInterface
}

func NewLED(identifier int, backend LEDInterface) *LED {
	return &LED{id: identifier, backend: backend}
}

func (l *LED) Identifier() int { return l.id }

// State returns whether the LED is lit.
func (l *LED) State() (bool, error) {
	return l.backend.GetLEDState(l.id)
}

func (l *LED) SetState(state bool) error {
	return l.backend.SetLEDState(l.id, state)
}
