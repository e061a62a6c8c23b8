package atlas

import (
	"fmt"

	"github.com/gogpu/frameloop/glyph"
)

// Kind distinguishes the two independent build slots.
type Kind uint8

const (
	// KindIncremental builds from a snapshot of the Active set.
	KindIncremental Kind = iota
	// KindFull is the one-time warm build against the Full set.
	KindFull
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindFull {
		return "full"
	}
	return "incremental"
}

// Submitter runs background work. *parallel.WorkerPool satisfies it.
type Submitter interface {
	Submit(fn func()) bool
}

// job is one background build. The fields above done are written by the
// render goroutine before submission; atlas and err are written by the
// worker before done is closed and read by the render goroutine after.
type job struct {
	version    uint64
	kind       Kind
	codepoints *glyph.Set
	settings   Settings

	// temp marks builds requested by IME composition; their result is
	// stored in the temp-atlas cache under signature.
	temp      bool
	signature uint64

	done  chan struct{}
	atlas *Atlas
	err   error
}

// run builds the atlas. A panicking rasterizer is reported as an error.
func (j *job) run(r Rasterizer, codepoints []rune) {
	defer close(j.done)
	defer func() {
		if p := recover(); p != nil {
			j.atlas = nil
			j.err = fmt.Errorf("rasterizer panic: %v", p)
		}
	}()

	a, err := r.Build(codepoints, j.settings)
	if err == nil && a == nil {
		err = ErrNilAtlas
	}
	j.atlas, j.err = a, err
}

// completed reports whether the job has finished without blocking.
func (j *job) completed() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}
