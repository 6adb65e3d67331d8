package boards

import (
	"fmt"
	"maps"
	"slices"

	"github.com/arloliu/go-robohal/component"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
)

// ArduinoUnoKind is an Arduino Uno with plain GPIO firmware.
var ArduinoUnoKind = hal.NewBoardKind("ArduinoUno", "Arduino Uno", component.KindGPIOPin, component.KindLED)

// Arduino Uno pin numbering. Pins 2 to 13 are digital; A0 to A5 are the analogue pins.
const (
	FirstDigitalPin  = 2
	FirstAnaloguePin = 14
	LastPin          = 19

	// LEDPin drives the on-board LED.
	LEDPin = 13
	// LEDID is the identifier of the on-board LED.
	LEDID = 0
)

const (
	A0 = FirstAnaloguePin + iota
	A1
	A2
	A3
	A4
	A5
)

var (
	digitalPinModes  = []component.GPIOPinMode{component.DigitalInput, component.DigitalInputPullUp, component.DigitalOutput}
	analoguePinModes = []component.GPIOPinMode{component.AnalogueInput, component.DigitalInput, component.DigitalInputPullUp, component.DigitalOutput}
)

// IsAnaloguePin reports whether pin is one of A0 to A5.
func IsAnaloguePin(pin int) bool { return pin >= FirstAnaloguePin && pin <= LastPin }

// ArduinoBackend is what a backend must implement to drive an ArduinoUno.
type ArduinoBackend interface {
	hal.Backend
	component.GPIOPinInterface
	component.LEDInterface
}

// ArduinoUno is an Arduino Uno and its clones.
type ArduinoUno struct {
	kind    *hal.BoardKind
	serial  string
	backend ArduinoBackend
	pins    map[int]*component.GPIOPin
	led     *component.LED
}

func NewArduinoUno(serial string, backend ArduinoBackend) *ArduinoUno {
	b := newArduinoUno(ArduinoUnoKind, serial, backend)
	hal.Track(b)

	return b
}

func newArduinoUno(kind *hal.BoardKind, serial string, backend ArduinoBackend) *ArduinoUno {
	pins := make(map[int]*component.GPIOPin, LastPin-FirstDigitalPin+1)
	for id := FirstDigitalPin; id <= LastPin; id++ {
		modes := digitalPinModes
		if IsAnaloguePin(id) {
			modes = analoguePinModes
		}
		pin, err := component.NewGPIOPin(id, backend, modes...)
		if err != nil {
			panic(err)
		}
		pins[id] = pin
	}

	return &ArduinoUno{
		kind:    kind,
		serial:  serial,
		backend: backend,
		pins:    pins,
		led:     component.NewLED(LEDID, backend),
	}
}

func (b *ArduinoUno) Kind() *hal.BoardKind             { return b.kind }
func (b *ArduinoUno) SerialNumber() string             { return b.serial }
func (b *ArduinoUno) FirmwareVersion() (string, error) { return b.backend.FirmwareVersion() }
func (b *ArduinoUno) LED() *component.LED              { return b.led }
func (b *ArduinoUno) String() string                   { return fmt.Sprintf("%s %s", b.kind.Description(), b.serial) }

// Pin returns the GPIO pin with the given number, 2 to 19.
func (b *ArduinoUno) Pin(id int) (*component.GPIOPin, error) {
	pin, ok := b.pins[id]
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, "arduino", "invalid pin %d, valid pins are %d to %d", id, FirstDigitalPin, LastPin)
	}

	return pin, nil
}

// Pins returns every pin in pin number order.
func (b *ArduinoUno) Pins() []*component.GPIOPin {
	ids := slices.Sorted(maps.Keys(b.pins))
	pins := make([]*component.GPIOPin, len(ids))
	for i, id := range ids {
		pins[i] = b.pins[id]
	}

	return pins
}

// MakeSafe does nothing; pin states are left as they are.
func (b *ArduinoUno) MakeSafe() error { return nil }
