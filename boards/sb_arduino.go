package boards

import (
	"slices"

	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
)

// SBArduinoKind is an Arduino Uno running the SourceBots firmware, which adds servo
// outputs and ultrasound sensors to the plain GPIO firmware.
var SBArduinoKind = hal.NewBoardKind("SBArduino", "SourceBots Arduino",
	component.KindGPIOPin,
	component.KindLED,
	component.KindServo,
	component.KindUltrasound,
)

// SBArduinoServoCount is the number of servo outputs of the SourceBots firmware.
const SBArduinoServoCount = 16

// SBArduinoBackend is what a backend must implement to drive an SBArduino.
type SBArduinoBackend interface {
	ArduinoBackend
	component.ServoInterface
	component.UltrasoundInterface
}

// SBArduino is an ArduinoUno with the SourceBots firmware.
type SBArduino struct {
	*ArduinoUno
	backend SBArduinoBackend
	servos  []*component.Servo
}

func NewSBArduino(serial string, backend SBArduinoBackend) *SBArduino {
	b := &SBArduino{
		ArduinoUno: newArduinoUno(SBArduinoKind, serial, backend),
		backend:    backend,
	}
	for i := range SBArduinoServoCount {
		b.servos = append(b.servos, component.NewServo(i, backend))
	}
	hal.Track(b)

	return b
}

func (b *SBArduino) Servos() []*component.Servo { return slices.Clone(b.servos) }

// Servo returns servo i.
func (b *SBArduino) Servo(i int) (*component.Servo, error) {
	return servoAt(b.servos, i)
}

// UltrasoundSensor returns a sensor wired to the trigger and echo pins. Only digital
// pins can be used.
func (b *SBArduino) UltrasoundSensor(trigger, echo int) (*component.UltrasoundSensor, error) {
	if IsAnaloguePin(trigger) || IsAnaloguePin(echo) {
		return nil, errcode.New(errcode.Unsupported, "arduino", "ultrasound functions not supported on analogue pins")
	}

	t, err := b.Pin(trigger)
	if err != nil {
		return nil, err
	}
	e, err := b.Pin(echo)
	if err != nil {
		return nil, err
	}

	return component.NewUltrasoundSensor(t, e, b.backend), nil
}
