// Package poll provides context-aware sleeping and condition polling on pooled timers.
package poll

import (
	"context"
	"sync"
	"time"
)

var timerPool sync.Pool

// getTimer returns a timer for the given duration d from the pool.
//
// Return the timer to the pool with putTimer.
func getTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// putTimer returns t to the pool. t cannot be accessed afterwards.
func putTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// Sleep pauses for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := getTimer(d)
	defer putTimer(t)

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Until calls cond every interval until it reports true, returns an error, or ctx is
// done. cond runs once immediately. tick, when not nil, is called with the zero-based
// poll count before every wait.
func Until(ctx context.Context, interval time.Duration, cond func() (bool, error), tick func(n int) error) error {
	for n := 0; ; n++ {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if tick != nil {
			if err := tick(n); err != nil {
				return err
			}
		}
		if err := Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
