package component

import (
	"math"
	"time"

	"github.com/arloliu/go-robohal/errcode"
)

// Note is a pitch in Hz from scientific pitch notation.
type Note float64

const (
	C6 Note = 1047.0
	D6 Note = 1174.7
	E6 Note = 1318.5
	F6 Note = 1396.9
	G6 Note = 1568.0
	A6 Note = 1760.0
	B6 Note = 1975.5
	C7 Note = 2093.0
	D7 Note = 2349.3
	E7 Note = 2637.0
	F7 Note = 2793.8
	G7 Note = 3136.0
	A7 Note = 3520.0
	B7 Note = 3951.1
	C8 Note = 4186.0
)

// PiezoInterface drives piezo sounders.
type PiezoInterface interface {
	// Buzz queues a tone. A backend that cannot queue tones without blocking
	// returns an errcode.Unsupported error when blocking is false.
	Buzz(identifier int, duration time.Duration, frequency float64, blocking bool) error
}

// Piezo is a piezo sounder.
type Piezo struct {
	id              int
	backend         PiezoInterface
	defaultBlocking bool
}

func NewPiezo(identifier int, backend PiezoInterface, defaultBlocking bool) *Piezo {
	return &Piezo{id: identifier, backend: backend, defaultBlocking: defaultBlocking}
}

func (p *Piezo) Identifier() int { return p.id }

// Buzz plays a tone using the piezo's default blocking behaviour.
func (p *Piezo) Buzz(duration time.Duration, pitch Note) error {
	return p.BuzzBlocking(duration, pitch, p.defaultBlocking)
}

// BuzzBlocking plays a tone, waiting for it to finish when blocking is true.
func (p *Piezo) BuzzBlocking(duration time.Duration, pitch Note, blocking bool) error {
	if math.IsNaN(float64(pitch)) || pitch <= 0 {
		return errcode.New(errcode.InvalidParams, "piezo", "frequency must be greater than zero")
	}
	if duration < 0 {
		return errcode.New(errcode.InvalidParams, "piezo", "duration must be greater than or equal to zero")
	}

	return p.backend.Buzz(p.id, duration, float64(pitch), blocking)
}
