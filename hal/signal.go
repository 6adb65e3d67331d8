package hal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	handledSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	installOnce    sync.Once
)

// InstallSignalHandlers makes the process-wide safety registry handle SIGHUP, SIGINT
// and SIGTERM. On the first of those signals every board is made safe, the handler
// unregisters itself and the signal is delivered again. Without other listeners the
// process then exits with the default disposition; channels the application registered
// with signal.Notify keep receiving the signal.
//
// Signals that are ignored when InstallSignalHandlers runs are left ignored. Only the
// first call has any effect; the top-level entry point calls it once at startup.
func InstallSignalHandlers() {
	installOnce.Do(func() {
		installSignalHandlers(defaultRegistry, redeliver)
	})
}

func installSignalHandlers(r *SafetyRegistry, reraise func(os.Signal)) (stop func()) {
	var sigs []os.Signal
	for _, s := range handledSignals {
		if !signal.Ignored(s) {
			sigs = append(sigs, s)
		}
	}
	if len(sigs) == 0 {
		return func() {}
	}

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		select {
		case sig := <-ch:
			r.log().Warn("hal: signal received, making boards safe", "signal", sig.String())
			_ = r.Shutdown()
			signal.Stop(ch)
			reraise(sig)
		case <-done:
			signal.Stop(ch)
		}
	}()

	var once sync.Once

	return func() { once.Do(func() { close(done) }) }
}

// redeliver sends sig to the current process. If that is impossible the process exits
// with the conventional 128+signal status.
func redeliver(sig os.Signal) {
	p, err := os.FindProcess(os.Getpid())
	if err == nil {
		err = p.Signal(sig)
	}
	if err != nil {
		code := 1
		if s, ok := sig.(syscall.Signal); ok {
			code = 128 + int(s)
		}
		os.Exit(code)
	}
}
