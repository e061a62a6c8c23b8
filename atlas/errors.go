package atlas

import (
	"errors"
	"fmt"
)

// Sentinel errors for the atlas package.
var (
	// ErrEmptyFontData is returned when a rasterizer is created without font data.
	ErrEmptyFontData = errors.New("atlas: empty font data")

	// ErrAtlasFull is returned when the glyphs do not fit in the maximum atlas size.
	ErrAtlasFull = errors.New("atlas: glyphs do not fit in maximum atlas size")

	// ErrNilAtlas is returned when a rasterizer reports success without an atlas.
	ErrNilAtlas = errors.New("atlas: rasterizer returned nil atlas")

	// ErrPoolClosed is returned when a build cannot be submitted.
	ErrPoolClosed = errors.New("atlas: worker pool closed")

	// ErrNotStarted is returned by Update before Start.
	ErrNotStarted = errors.New("atlas: pipeline not started")
)

// BuildError reports a faulted background build. It is fatal: the pipeline
// has no valid atlas to fall back to for the requested coverage.
type BuildError struct {
	Version uint64
	Kind    Kind
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("atlas: %s build v%d failed: %v", e.Kind, e.Version, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// SettingsError represents an invalid Settings field.
type SettingsError struct {
	Field  string
	Reason string
}

func (e *SettingsError) Error() string {
	return "atlas: invalid settings." + e.Field + ": " + e.Reason
}
