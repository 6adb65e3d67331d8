// Package sim holds backends that stand in for boards without any hardware. Outputs are
// remembered and logged; inputs read as idle.
//
// By default every board kind discovers a single board whose serial number is derived
// from the kind name, so it is stable between runs. SetSerials replaces that set.
package sim

import (
	"slices"
	"sync"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
	"github.com/google/uuid"
)

// Environment binds every catalogue board to a simulated backend.
var Environment = hal.NewEnvironment("SimulationEnvironment")

// serialNamespace scopes generated serial numbers.
var serialNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/arloliu/go-robohal/sim"))

var (
	serialsMu sync.RWMutex
	serials   = map[*hal.BoardKind][]string{}
)

// DefaultSerial returns the serial number of the board discovered for kind when no
// serials were set.
func DefaultSerial(kind *hal.BoardKind) string {
	return uuid.NewSHA1(serialNamespace, []byte(kind.Name())).String()
}

// SetSerials makes discovery of kind return one board per serial number. No serials
// restores the default single board.
func SetSerials(kind *hal.BoardKind, serialNumbers ...string) error {
	seen := make(map[string]bool, len(serialNumbers))
	for _, s := range serialNumbers {
		if s == "" {
			return errcode.New(errcode.InvalidParams, "sim", "empty serial number for %s", kind.Name())
		}
		if seen[s] {
			return errcode.New(errcode.InvalidParams, "sim", "duplicate serial number %q for %s", s, kind.Name())
		}
		seen[s] = true
	}

	serialsMu.Lock()
	defer serialsMu.Unlock()

	if len(serialNumbers) == 0 {
		delete(serials, kind)
	} else {
		serials[kind] = slices.Clone(serialNumbers)
	}

	return nil
}

// Serials returns the serial numbers discovery of kind returns.
func Serials(kind *hal.BoardKind) []string {
	serialsMu.RLock()
	defer serialsMu.RUnlock()

	if s, ok := serials[kind]; ok {
		return slices.Clone(s)
	}

	return []string{DefaultSerial(kind)}
}

func discoverEach(kind *hal.BoardKind, newBoard func(serial string) hal.Board) []hal.Board {
	var found []hal.Board
	for _, s := range Serials(kind) {
		found = append(found, newBoard(s))
	}

	return found
}

func boardLogger(kind *hal.BoardKind, serial string) logger.Logger {
	return logger.With("board", kind.Name(), "serial", serial)
}

func checkIdentifier(op string, id int, count int) error {
	if id < 0 || id >= count {
		return errcode.New(errcode.InvalidParams, op, "invalid identifier %d, valid identifiers are 0 to %d", id, count-1)
	}

	return nil
}
