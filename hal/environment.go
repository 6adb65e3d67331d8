package hal

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/go-robohal/errcode"
)

// Environment is a named registry binding each board kind to at most one backend kind.
// There is one environment per transport family, e.g. hardware, console and simulation.
type Environment struct {
	name string

	mu       sync.RWMutex
	backends map[*BoardKind]*BackendKind
}

// NewEnvironment returns an empty environment called name.
func NewEnvironment(name string) *Environment {
	return &Environment{
		name:     name,
		backends: make(map[*BoardKind]*BackendKind),
	}
}

func (e *Environment) Name() string   { return e.name }
func (e *Environment) String() string { return e.name }

// RegisterBackend binds b's board kind to b. It fails with errcode.DuplicateRegistration
// when the board kind is already bound.
func (e *Environment) RegisterBackend(b *BackendKind) error {
	if b == nil {
		return errcode.New(errcode.InvalidParams, "hal: register backend", "backend is nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.backends[b.board]; ok {
		return errcode.New(errcode.DuplicateRegistration, "hal: register backend",
			"%s already has backend %s for %s, refusing %s", e.name, existing.name, b.board.Name(), b.name)
	}
	e.backends[b.board] = b

	return nil
}

// SupportedBoards returns the board kinds bound in e, in name order.
func (e *Environment) SupportedBoards() []*BoardKind {
	e.mu.RLock()
	defer e.mu.RUnlock()

	kinds := make([]*BoardKind, 0, len(e.backends))
	for k := range e.backends {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b *BoardKind) int { return cmp.Compare(a.name, b.name) })

	return kinds
}

// Supports reports whether e has a backend for the board kind.
func (e *Environment) Supports(board *BoardKind) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.backends[board]

	return ok
}

// BackendFor returns the backend kind bound to board.
func (e *Environment) BackendFor(board *BoardKind) (*BackendKind, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.backends[board]
	if !ok {
		name := "<nil>"
		if board != nil {
			name = board.Name()
		}

		return nil, errcode.New(errcode.UnknownBoard, "hal", "the %s environment does not support %s", e.name, name)
	}

	return b, nil
}

// Merge adds every binding of other to e. It fails with errcode.DuplicateRegistration,
// and leaves both environments untouched, when they bind any common board kind.
func (e *Environment) Merge(other *Environment) error {
	if other == nil {
		return errcode.New(errcode.InvalidParams, "hal: merge", "environment is nil")
	}

	incoming := other.snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()

	var common []string
	for k := range incoming {
		if _, ok := e.backends[k]; ok {
			common = append(common, k.Name())
		}
	}
	if len(common) > 0 {
		slices.Sort(common)
		return errcode.New(errcode.DuplicateRegistration, "hal: merge",
			"cannot merge %s into %s, both support %s", other.name, e.name, strings.Join(common, ", "))
	}

	for k, b := range incoming {
		e.backends[k] = b
	}

	return nil
}

func (e *Environment) snapshot() map[*BoardKind]*BackendKind {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m := make(map[*BoardKind]*BackendKind, len(e.backends))
	for k, b := range e.backends {
		m[k] = b
	}

	return m
}

// GroupFor resolves the backend kind bound to board in env and discovers its boards.
func GroupFor[T Board](ctx context.Context, env *Environment, board *BoardKind) (*BoardGroup[T], error) {
	backend, err := env.BackendFor(board)
	if err != nil {
		return nil, err
	}

	return DiscoverFor[T](ctx, board, backend)
}
