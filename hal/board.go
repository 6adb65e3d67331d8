// Package hal implements the capability contract between boards and backends, the
// per-transport environments that bind them, board discovery through board groups, and
// the process-wide safety registry that drives every live board to a safe state when
// the process exits or is signalled.
package hal

import (
	"fmt"
	"slices"

	"github.com/arloliu/go-robohal/component"
)

// BoardKind describes a board model and the closed set of component kinds it exposes.
// Board kinds are package-level values compared by identity.
type BoardKind struct {
	name        string
	description string
	components  []component.Kind
}

// NewBoardKind defines a board kind. It panics on an unknown component kind, which is a
// programming error in the board definition.
func NewBoardKind(name, description string, components ...component.Kind) *BoardKind {
	kinds := slices.Clone(components)
	for _, k := range kinds {
		if !k.Valid() {
			panic(fmt.Sprintf("hal: board kind %s declares unknown component kind %q", name, k))
		}
	}
	slices.Sort(kinds)

	return &BoardKind{
		name:        name,
		description: description,
		components:  slices.Compact(kinds),
	}
}

// Name returns the short identifier of the board kind, e.g. "PowerBoard".
func (k *BoardKind) Name() string { return k.name }

// Description returns the human readable board name.
func (k *BoardKind) Description() string { return k.description }

// SupportedComponents returns the component kinds of the board in name order.
func (k *BoardKind) SupportedComponents() []component.Kind {
	return slices.Clone(k.components)
}

// Supports reports whether the board has components of kind c.
func (k *BoardKind) Supports(c component.Kind) bool {
	_, found := slices.BinarySearch(k.components, c)
	return found
}

func (k *BoardKind) String() string { return k.name }

// Board is an addressable physical or simulated unit exposing components.
//
// Implementations register themselves with Track on construction.
type Board interface {
	Kind() *BoardKind
	SerialNumber() string
	// FirmwareVersion returns the firmware reported by the board, or "" when the
	// transport has no firmware (console and simulation).
	FirmwareVersion() (string, error)
	// MakeSafe drives every component to its safe state. It is idempotent.
	MakeSafe() error
}

// Backend is the behaviour every backend implementation has in addition to the
// component interfaces of its board.
type Backend interface {
	FirmwareVersion() (string, error)
}
