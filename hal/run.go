package hal

// Run is the entry point wrapper for robot programs. It installs the signal handlers,
// runs fn and makes every board safe when fn returns or panics. A panic is re-raised
// after the boards are safe. Failures to make a board safe are logged, never returned.
func Run(fn func() error) error {
	InstallSignalHandlers()

	return runWith(defaultRegistry, fn)
}

func runWith(r *SafetyRegistry, fn func() error) error {
	defer func() {
		if rec := recover(); rec != nil {
			_ = r.Shutdown()
			panic(rec)
		}
	}()

	err := fn()
	if serr := r.Shutdown(); serr != nil {
		r.log().Error("hal: shutdown left boards in an unknown state", "error", serr)
	}

	return err
}
