package activation

// process is the process-wide state behind the package functions.
var process = NewState(OSEnv{})

// Activate activates the process-wide state. Not safe for concurrent use.
func Activate(opts Options) (Config, error) {
	return process.Activate(opts)
}

// Deactivate deactivates the process-wide state.
func Deactivate() error {
	return process.Deactivate()
}

// IsActive reports whether the process-wide state is active.
func IsActive() bool {
	return process.IsActive()
}

// Current returns the process-wide configuration, and false when inactive.
func Current() (Config, bool) {
	return process.Config()
}
