package component

import (
	"cmp"
	"errors"
	"iter"
	"slices"

	"github.com/arloliu/go-robohal/errcode"
)

// PowerOutputInterface drives switchable power outputs.
type PowerOutputInterface interface {
	GetPowerOutputEnabled(identifier int) (bool, error)
	SetPowerOutputEnabled(identifier int, enabled bool) error
	// GetPowerOutputCurrent returns amperes.
	GetPowerOutputCurrent(identifier int) (float64, error)
}

// PowerOutput is a switchable power output.
type PowerOutput struct {
	id      int
	backend PowerOutputInterface
}

func NewPowerOutput(identifier int, backend PowerOutputInterface) *PowerOutput {
	return &PowerOutput{id: identifier, backend: backend}
}

func (o *PowerOutput) Identifier() int { return o.id }

func (o *PowerOutput) IsEnabled() (bool, error) {
	return o.backend.GetPowerOutputEnabled(o.id)
}

func (o *PowerOutput) SetEnabled(enabled bool) error {
	return o.backend.SetPowerOutputEnabled(o.id, enabled)
}

// Current returns the current drawn by the output in amperes.
func (o *PowerOutput) Current() (float64, error) {
	return o.backend.GetPowerOutputCurrent(o.id)
}

// PowerOutputGroup is a set of power outputs addressed by position.
type PowerOutputGroup[K cmp.Ordered] struct {
	outputs map[K]*PowerOutput
	keys    []K
}

func NewPowerOutputGroup[K cmp.Ordered](outputs map[K]*PowerOutput) *PowerOutputGroup[K] {
	keys := make([]K, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return &PowerOutputGroup[K]{outputs: outputs, keys: keys}
}

// Get returns the output at position k.
func (g *PowerOutputGroup[K]) Get(k K) (*PowerOutput, error) {
	o, ok := g.outputs[k]
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, "power output", "no controllable power output %v", k)
	}

	return o, nil
}

func (g *PowerOutputGroup[K]) Len() int { return len(g.keys) }

// All iterates the outputs in position order.
func (g *PowerOutputGroup[K]) All() iter.Seq2[K, *PowerOutput] {
	return func(yield func(K, *PowerOutput) bool) {
		for _, k := range g.keys {
			if !yield(k, g.outputs[k]) {
				return
			}
		}
	}
}

// PowerOn enables every output. Every output is attempted even if one fails.
func (g *PowerOutputGroup[K]) PowerOn() error {
	return g.setAll(true)
}

// PowerOff disables every output. Every output is attempted even if one fails.
func (g *PowerOutputGroup[K]) PowerOff() error {
	return g.setAll(false)
}

func (g *PowerOutputGroup[K]) setAll(enabled bool) error {
	var errs []error
	for _, k := range g.keys {
		if err := g.outputs[k].SetEnabled(enabled); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
