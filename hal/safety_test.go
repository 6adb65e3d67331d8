package hal

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *SafetyRegistry {
	return NewSafetyRegistry(logger.NewMockLogger().Permissive())
}

func TestSafetyRegistry_MakeAllSafeContinuesPastFailures(t *testing.T) {
	r := newTestRegistry()
	first := newTestLEDBoard(r, "1")
	failing := newTestLEDBoard(r, "2")
	panicking := newTestLEDBoard(r, "3")
	last := newTestLEDBoard(r, "4")

	failing.failSafe = errcode.New(errcode.Communication, "test", "board unplugged")
	panicking.panicSafe = true
	require.NoError(t, first.led.SetState(true))
	require.NoError(t, last.led.SetState(true))

	err := r.MakeAllSafe()
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.Communication)
	assert.Contains(t, err.Error(), "TestLEDBoard 2")
	assert.Contains(t, err.Error(), "TestLEDBoard 3")
	assert.Contains(t, err.Error(), "led driver exploded")

	for _, b := range []*testLEDBoard{first, failing, panicking, last} {
		assert.Equal(t, int32(1), b.safeCalls.Load(), "board %s", b.serial)
	}
	for _, b := range []*testLEDBoard{first, last} {
		on, err := b.led.State()
		require.NoError(t, err)
		assert.False(t, on)
	}
}

func TestSafetyRegistry_ShutdownRunsOnce(t *testing.T) {
	r := newTestRegistry()
	b := newTestLEDBoard(r, "1")
	b.failSafe = errors.New("stuck relay")

	err1 := r.Shutdown()
	err2 := r.Shutdown()
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.Equal(t, int32(1), b.safeCalls.Load())

	// explicit passes still work after shutdown
	_ = r.MakeAllSafe()
	assert.Equal(t, int32(2), b.safeCalls.Load())
	runtime.KeepAlive(b)
}

func TestSafetyRegistry_DoesNotKeepBoardsAlive(t *testing.T) {
	r := newTestRegistry()
	kept := newTestLEDBoard(r, "kept")
	func() {
		for i := 0; i < 8; i++ {
			newTestLEDBoard(r, "dropped")
		}
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return r.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, r.MakeAllSafe())
	assert.Equal(t, int32(1), kept.safeCalls.Load())
	runtime.KeepAlive(kept)
}

func TestSafetyRegistry_RegisterNil(t *testing.T) {
	r := newTestRegistry()
	Register[testLEDBoard](r, nil)
	assert.Equal(t, 0, r.Len())
}

func TestRunWith(t *testing.T) {
	t.Run("returns the program error after making boards safe", func(t *testing.T) {
		r := newTestRegistry()
		b := newTestLEDBoard(r, "1")
		errProgram := errors.New("program failed")

		err := runWith(r, func() error {
			assert.Equal(t, int32(0), b.safeCalls.Load())
			return errProgram
		})
		assert.ErrorIs(t, err, errProgram)
		assert.Equal(t, int32(1), b.safeCalls.Load())
	})

	t.Run("safety failures are not returned", func(t *testing.T) {
		r := newTestRegistry()
		b := newTestLEDBoard(r, "1")
		b.failSafe = errors.New("stuck relay")

		assert.NoError(t, runWith(r, func() error { return nil }))
		assert.Equal(t, int32(1), b.safeCalls.Load())
	})

	t.Run("panic is re-raised after making boards safe", func(t *testing.T) {
		r := newTestRegistry()
		b := newTestLEDBoard(r, "1")

		assert.PanicsWithValue(t, "motor controller on fire", func() {
			_ = runWith(r, func() error { panic("motor controller on fire") })
		})
		assert.Equal(t, int32(1), b.safeCalls.Load())
	})
}
