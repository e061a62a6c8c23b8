package frameloop

import "errors"

// Sentinel errors for the frameloop package.
var (
	// ErrNilPlatform is returned by New when the platform is nil.
	ErrNilPlatform = errors.New("frameloop: nil platform")

	// ErrNilRenderer is returned by New when the renderer is nil.
	ErrNilRenderer = errors.New("frameloop: nil renderer")

	// ErrNilUI is returned by New when the UI is nil.
	ErrNilUI = errors.New("frameloop: nil UI")

	// ErrAlreadyRunning is returned by Run when the scheduler has already
	// been started. A Scheduler runs at most once.
	ErrAlreadyRunning = errors.New("frameloop: scheduler already started")
)

// ConfigError represents an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "frameloop: invalid config." + e.Field + ": " + e.Reason
}
