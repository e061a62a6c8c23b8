package input

import (
	"image"
	"sync"
	"sync/atomic"
)

// Change-detection thresholds.
const (
	// MoveEpsilon is the cursor movement, in pixels, below which a move is
	// not considered a change.
	MoveEpsilon = 0.01

	// WheelEpsilon is the wheel delta below which scrolling is ignored.
	WheelEpsilon = 1e-4
)

// Source is the platform side of input capture. Implementations must return
// an all-zero Snapshot when no data is available.
type Source interface {
	// Snapshot returns the raw input gathered since the previous call.
	Snapshot() Snapshot
	// WindowSize returns the window size in logical pixels.
	WindowSize() image.Point
	// FramebufferSize returns the framebuffer size in physical pixels.
	FramebufferSize() image.Point
}

// Waker is notified when a publish contains an actionable change.
type Waker interface {
	Set()
}

// Capture is one poll cycle's worth of platform state.
type Capture struct {
	Snapshot    Snapshot
	Window      image.Point
	Framebuffer image.Point
}

// Frame is the input consumed by one render pass.
type Frame struct {
	Snapshot    Snapshot
	Window      image.Point
	Framebuffer image.Point
}

// Aggregator merges snapshots published by the poll goroutine into one
// pending snapshot consumed by the render goroutine.
//
// Publish and Consume are safe to call concurrently. The critical section
// around the pending snapshot only covers the merge or swap.
type Aggregator struct {
	src  Source
	wake Waker

	mu          sync.Mutex
	pending     Snapshot
	window      image.Point
	framebuffer image.Point

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewAggregator returns an aggregator reading from src and setting wake on
// actionable changes. Either may be nil; a nil src makes Capture return an
// empty capture.
func NewAggregator(src Source, wake Waker) *Aggregator {
	return &Aggregator{src: src, wake: wake}
}

// Capture reads the platform's current raw snapshot and window sizes.
func (a *Aggregator) Capture() Capture {
	if a.src == nil {
		return Capture{}
	}
	return Capture{
		Snapshot:    a.src.Snapshot(),
		Window:      a.src.WindowSize(),
		Framebuffer: a.src.FramebufferSize(),
	}
}

// Poll captures and publishes in one step and reports whether the capture
// was actionable.
func (a *Aggregator) Poll() bool {
	return a.Publish(a.Capture())
}

// Publish merges c into the pending snapshot and reports whether it
// contained an actionable change: a discrete event, a wheel delta, a button
// state change, cursor movement beyond MoveEpsilon, an IME composition
// change, or a window or framebuffer resize. The wake signal is set only for
// actionable changes.
func (a *Aggregator) Publish(c Capture) bool {
	a.mu.Lock()
	snap, dropped := c.Snapshot.sanitized(a.pending.Mouse)
	actionable := a.changed(snap, c.Window, c.Framebuffer)
	a.pending = a.pending.Merge(snap)
	a.window = c.Window
	a.framebuffer = c.Framebuffer
	a.mu.Unlock()

	a.published.Add(1)
	if dropped > 0 {
		a.dropped.Add(uint64(dropped)) //nolint:gosec // dropped is a small non-negative count
	}
	if actionable && a.wake != nil {
		a.wake.Set()
	}
	return actionable
}

// changed compares an incoming snapshot with the pending state.
// Caller must hold a.mu.
func (a *Aggregator) changed(in Snapshot, window, framebuffer image.Point) bool {
	if in.HasDiscrete() {
		return true
	}
	if in.Down != a.pending.Down {
		return true
	}
	if moved(a.pending.Mouse, in.Mouse) {
		return true
	}
	if in.Composing != a.pending.Composing || in.Preedit != a.pending.Preedit {
		return true
	}
	return window != a.window || framebuffer != a.framebuffer
}

// Consume swaps out the pending snapshot. The returned frame holds every
// event published since the previous Consume; the pending snapshot keeps
// only continuous state.
func (a *Aggregator) Consume() Frame {
	a.mu.Lock()
	f := Frame{
		Snapshot:    a.pending,
		Window:      a.window,
		Framebuffer: a.framebuffer,
	}
	a.pending = a.pending.Consumed()
	a.mu.Unlock()
	return f
}

// Published returns the number of Publish calls so far.
func (a *Aggregator) Published() uint64 {
	return a.published.Load()
}

// Dropped returns the number of malformed input items discarded so far.
func (a *Aggregator) Dropped() uint64 {
	return a.dropped.Load()
}

// Moved reports whether the cursor moved more than MoveEpsilon between a
// and b on either axis.
func Moved(a, b Point) bool {
	return moved(a, b)
}

func moved(a, b Point) bool {
	return abs32(a.X-b.X) > MoveEpsilon || abs32(a.Y-b.Y) > MoveEpsilon
}
