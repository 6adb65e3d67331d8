// Package boards is the catalogue of boards a robot program can use.
//
// Every board type owns its components and nothing else; it is constructed by a
// backend's discover function with the backend that drives it, and registers itself
// with the process-wide safety registry:
//
//	power, err := hal.GroupFor[*boards.PowerBoard](ctx, hardware.Environment, boards.PowerBoardKind)
//	if err != nil {
//		return err
//	}
//	pb, err := power.Singular()
//	if err != nil {
//		return err
//	}
//	out, _ := pb.Outputs().Get(boards.H0)
//	err = out.SetEnabled(true)
package boards

import "github.com/arloliu/go-robohal/hal"

// Kinds returns every board kind of the catalogue in name order.
func Kinds() []*hal.BoardKind {
	return []*hal.BoardKind{
		ArduinoUnoKind,
		DemoBoardKind,
		MotorBoardKind,
		PowerBoardKind,
		SBArduinoKind,
		ServoBoardKind,
	}
}

// Feature is an optional capability a backend may report for its board.
type Feature string

// FeatureReporter is implemented by backends whose boards have optional features.
type FeatureReporter interface {
	Features() []Feature
}

func featuresOf(backend any) map[Feature]bool {
	set := map[Feature]bool{}
	if r, ok := backend.(FeatureReporter); ok {
		for _, f := range r.Features() {
			set[f] = true
		}
	}

	return set
}
