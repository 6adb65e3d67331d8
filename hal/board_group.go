package hal

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
)

// BoardGroup is the ordered collection of boards of one kind found through one
// backend kind. Boards are addressed by serial number and always iterated in ascending
// lexicographic serial order.
type BoardGroup[T Board] struct {
	board   *BoardKind
	backend *BackendKind
	logger  logger.Logger

	mu      sync.RWMutex
	boards  map[string]T
	serials []string
}

// DiscoverFor binds a group to backend and performs one discovery pass.
func DiscoverFor[T Board](ctx context.Context, board *BoardKind, backend *BackendKind) (*BoardGroup[T], error) {
	if board == nil || backend == nil {
		return nil, errcode.New(errcode.InvalidParams, "hal: board group", "board kind and backend kind are required")
	}
	if backend.Board() != board {
		return nil, errcode.New(errcode.ContractViolation, "hal: board group",
			"backend %s drives %s, not %s", backend.Name(), backend.Board().Name(), board.Name())
	}

	g := &BoardGroup[T]{
		board:   board,
		backend: backend,
		logger:  logger.GetLogger().With("board", board.Name(), "backend", backend.Name()),
		boards:  map[string]T{},
	}
	if err := g.UpdateBoards(ctx); err != nil {
		return nil, err
	}

	return g, nil
}

// UpdateBoards runs discovery again and replaces every known board with the fresh result.
// Board instances from the previous pass are never reused.
func (g *BoardGroup[T]) UpdateBoards(ctx context.Context) error {
	found, err := g.backend.Discover(ctx)
	if err != nil {
		return err
	}

	boards := make(map[string]T, len(found))
	for _, b := range found {
		typed, ok := b.(T)
		if !ok {
			return errcode.New(errcode.ContractViolation, "hal: board group",
				"backend %s returned %T, want %T", g.backend.Name(), b, *new(T))
		}
		serial := b.SerialNumber()
		if _, dup := boards[serial]; dup {
			g.logger.Warn("hal: duplicate serial number in discovery, keeping the last board", "serial", serial)
		}
		boards[serial] = typed
	}

	serials := make([]string, 0, len(boards))
	for s := range boards {
		serials = append(serials, s)
	}
	slices.Sort(serials)

	g.mu.Lock()
	g.boards = boards
	g.serials = serials
	g.mu.Unlock()

	g.logger.Debug("hal: boards discovered", "count", len(serials), "serials", serials)

	return nil
}

// BoardKind returns the kind of board in the group.
func (g *BoardGroup[T]) BoardKind() *BoardKind { return g.board }

// Backend returns the backend kind the group discovers through.
func (g *BoardGroup[T]) Backend() *BackendKind { return g.backend }

// Len returns the number of boards in the group.
func (g *BoardGroup[T]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.serials)
}

// Serials returns the known serial numbers in ascending order.
func (g *BoardGroup[T]) Serials() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Clone(g.serials)
}

// Singular returns the only board of the group. Zero or several boards is a
// communication-class errcode.NotFound error stating the board kind and count.
func (g *BoardGroup[T]) Singular() (T, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if n := len(g.serials); n != 1 {
		var zero T
		return zero, errcode.New(errcode.NotFound, "hal",
			"expected exactly one %s to be connected, but found %d", g.board.Name(), n)
	}

	return g.boards[g.serials[0]], nil
}

// Get returns the board with the given serial number. An unknown serial fails with an
// error listing the known serials.
func (g *BoardGroup[T]) Get(serial string) (T, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if b, ok := g.boards[serial]; ok {
		return b, nil
	}

	var zero T
	if len(g.serials) == 0 {
		return zero, errcode.New(errcode.NotFound, "hal", "there are no %s boards available", g.board.Name())
	}

	return zero, errcode.New(errcode.NotFound, "hal",
		"could not find a board with the serial number %s; available board serials: %s",
		serial, strings.Join(g.serials, ", "))
}

// Lookup is Get for keys of dynamic type, such as values decoded from configuration.
// A key that is not a string fails with errcode.InvalidKey.
func (g *BoardGroup[T]) Lookup(key any) (T, error) {
	serial, ok := key.(string)
	if !ok {
		var zero T
		return zero, errcode.New(errcode.InvalidKey, "hal",
			"board serial numbers are strings, cannot index %s boards with %T", g.board.Name(), key)
	}

	return g.Get(serial)
}

// All returns an iterator over the boards in serial order. Each call iterates its own
// snapshot, so concurrent iterations never interfere.
func (g *BoardGroup[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, b := range g.Boards() {
			if !yield(b) {
				return
			}
		}
	}
}

// Boards returns the boards in serial order.
func (g *BoardGroup[T]) Boards() []T {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]T, len(g.serials))
	for i, s := range g.serials {
		out[i] = g.boards[s]
	}

	return out
}

// MakeSafe makes every known board safe. All boards are attempted; failures are joined.
func (g *BoardGroup[T]) MakeSafe() error {
	var errs []error
	for _, b := range g.Boards() {
		if err := b.MakeSafe(); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", g.board.Name(), b.SerialNumber(), err))
		}
	}

	return errors.Join(errs...)
}

func (g *BoardGroup[T]) String() string {
	return fmt.Sprintf("BoardGroup(%s, %d boards)", g.backend, g.Len())
}
