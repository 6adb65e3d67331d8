package hal

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/arloliu/go-robohal/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// SafetyRegistry tracks live boards so they can all be made safe on shutdown.
//
// Boards are held through weak pointers and drop out of the registry when collected.
// Registration is safe to run concurrently with MakeAllSafe.
type SafetyRegistry struct {
	boards *xsync.MapOf[uint64, func() Board]
	nextID atomic.Uint64
	logger logger.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

var defaultRegistry = NewSafetyRegistry(nil)

// DefaultSafetyRegistry returns the process-wide registry used by Track.
func DefaultSafetyRegistry() *SafetyRegistry {
	return defaultRegistry
}

// NewSafetyRegistry creates an empty registry. A nil logger selects the package default
// logger at the time of each log call.
func NewSafetyRegistry(l logger.Logger) *SafetyRegistry {
	return &SafetyRegistry{
		boards: xsync.NewMapOf[uint64, func() Board](),
		logger: l,
	}
}

// Track registers b with the process-wide safety registry. Every board constructor
// calls it.
func Track[T any, PT interface {
	*T
	Board
}](b PT) {
	Register(defaultRegistry, b)
}

// Register adds b to r without keeping it alive.
func Register[T any, PT interface {
	*T
	Board
}](r *SafetyRegistry, b PT) {
	ptr := (*T)(b)
	if ptr == nil {
		return
	}

	id := r.nextID.Add(1)
	wp := weak.Make(ptr)
	r.boards.Store(id, func() Board {
		if p := wp.Value(); p != nil {
			return PT(p)
		}
		return nil
	})
	runtime.AddCleanup(ptr, func(id uint64) { r.boards.Delete(id) }, id)
}

// Len returns the number of live registered boards.
func (r *SafetyRegistry) Len() int {
	n := 0
	r.boards.Range(func(_ uint64, get func() Board) bool {
		if get() != nil {
			n++
		}
		return true
	})

	return n
}

// MakeAllSafe calls MakeSafe on every live registered board in registration order.
// A board that fails or panics is logged and does not stop the others; the failures
// are joined in the returned error.
func (r *SafetyRegistry) MakeAllSafe() error {
	type entry struct {
		id    uint64
		board Board
	}

	var entries []entry
	r.boards.Range(func(id uint64, get func() Board) bool {
		if b := get(); b != nil {
			entries = append(entries, entry{id: id, board: b})
		}
		return true
	})
	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	})

	var errs []error
	for _, e := range entries {
		if err := makeSafe(e.board); err != nil {
			r.log().Error("hal: failed to make board safe",
				"board", e.board.Kind().Name(), "serial", e.board.SerialNumber(), "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", e.board.Kind().Name(), e.board.SerialNumber(), err))
		}
	}

	return errors.Join(errs...)
}

// Shutdown makes every board safe exactly once per registry; later calls return the
// first result.
func (r *SafetyRegistry) Shutdown() error {
	r.shutdownOnce.Do(func() {
		r.log().Debug("hal: making all boards safe", "boards", r.Len())
		r.shutdownErr = r.MakeAllSafe()
	})

	return r.shutdownErr
}

func (r *SafetyRegistry) log() logger.Logger {
	if r.logger != nil {
		return r.logger
	}

	return logger.GetLogger()
}

func makeSafe(b Board) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hal: make safe panicked: %v", rec)
		}
	}()

	return b.MakeSafe()
}
