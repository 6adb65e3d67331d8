package component

// BatterySensorInterface reads battery voltage and current.
type BatterySensorInterface interface {
	// GetBatterySensorVoltage returns volts.
	GetBatterySensorVoltage(identifier int) (float64, error)
	// GetBatterySensorCurrent returns amperes.
	GetBatterySensorCurrent(identifier int) (float64, error)
}

// BatterySensor reports the state of the robot battery.
type BatterySensor struct {
	id      int
	backend BatterySensorInterface
}

func NewBatterySensor(identifier int, backend BatterySensorInterface) *BatterySensor {
	return &BatterySensor{id: identifier, backend: backend}
}

func (s *BatterySensor) Identifier() int { return s.id }

func (s *BatterySensor) Voltage() (float64, error) {
	return s.backend.GetBatterySensorVoltage(s.id)
}

func (s *BatterySensor) Current() (float64, error) {
	return s.backend.GetBatterySensorCurrent(s.id)
}
