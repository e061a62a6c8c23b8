package frameloop

import (
	"image"
	"time"

	"github.com/gogpu/frameloop/atlas"
	"github.com/gogpu/frameloop/glyph"
	"github.com/gogpu/frameloop/input"
	"github.com/gogpu/frameloop/texsync"
)

// Cursor is a mouse cursor shape requested by the UI.
type Cursor uint8

// Cursor shapes.
const (
	CursorArrow Cursor = iota
	CursorText
	CursorHand
	CursorResizeH
	CursorResizeV
	CursorHidden
)

// String returns the cursor name.
func (c Cursor) String() string {
	switch c {
	case CursorArrow:
		return "arrow"
	case CursorText:
		return "text"
	case CursorHand:
		return "hand"
	case CursorResizeH:
		return "resize-h"
	case CursorResizeV:
		return "resize-v"
	case CursorHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Platform is the native windowing backend. Every method is called from
// the poll goroutine only.
type Platform interface {
	input.Source

	// PollEvents processes pending native events without blocking.
	PollEvents()

	// WaitEvents blocks until a native event arrives or timeout elapses.
	WaitEvents(timeout time.Duration)

	// SetCursor changes the cursor shape.
	SetCursor(c Cursor)
}

// EventPoster is implemented by platforms that can interrupt a blocked
// WaitEvents from another goroutine. Stop uses it to shut down promptly.
type EventPoster interface {
	PostEmptyEvent()
}

// Renderer consumes frames. Every method is called from the render
// goroutine only.
type Renderer interface {
	// Render draws one frame. textures must be applied in order before
	// draw. A returned error stops the scheduler.
	Render(draw any, textures []texsync.Command) error

	// SetVSync and SetAntiAliasing mirror UI state. They are called on the
	// first frame and whenever the value changes.
	SetVSync(enabled bool)
	SetAntiAliasing(enabled bool)
}

// UI builds frames. BuildFrame runs on the render goroutine.
type UI interface {
	BuildFrame(f *Frame) FrameOutput
}

// UIFunc adapts a function to the UI interface.
type UIFunc func(f *Frame) FrameOutput

// BuildFrame calls fn.
func (fn UIFunc) BuildFrame(f *Frame) FrameOutput {
	return fn(f)
}

// Info describes the frame being built.
type Info struct {
	// Index counts rendered frames, starting at 0.
	Index uint64

	// Time is the frame start time and Delta the time since the previous
	// rendered frame (0 for the first frame).
	Time  time.Time
	Delta time.Duration

	// FPS is the frame rate over a rolling half-second window.
	FPS float64

	// DisplaySize is the window size in logical pixels, FramebufferSize
	// the framebuffer size in physical pixels and FramebufferScale their
	// ratio.
	DisplaySize      image.Point
	FramebufferSize  image.Point
	FramebufferScale input.Point
}

// Frame is handed to the UI for one render pass.
type Frame struct {
	// Input holds everything that happened since the previous frame.
	Input input.Snapshot

	Info Info

	// Atlas is the live glyph atlas.
	Atlas *atlas.Atlas

	glyphs *glyph.Tracker
	sched  *Scheduler
}

// EnsureGlyph must be called by the text path for every codepoint it
// measures or draws. It reports whether the glyph may be drawn from Atlas;
// false means a rebuild is in flight or IME composition is active and the
// caller should draw a placeholder.
func (f *Frame) EnsureGlyph(r rune) bool {
	return f.glyphs.EnsureCovered(r)
}

// RequestFrame asks for one more render pass after this one, for example
// to drive an animation.
func (f *Frame) RequestFrame() {
	f.sched.RequestFrame()
}

// FrameOutput is what the UI returns for one frame.
type FrameOutput struct {
	// Draw is the draw-data batch, opaque to the scheduler.
	Draw any

	VSync        bool
	AntiAliasing bool

	// Cursor is applied by the poll goroutine.
	Cursor Cursor
}

func framebufferScale(window, framebuffer image.Point) input.Point {
	if window.X <= 0 || window.Y <= 0 {
		return input.Point{X: 1, Y: 1}
	}
	return input.Point{
		X: float32(framebuffer.X) / float32(window.X),
		Y: float32(framebuffer.Y) / float32(window.Y),
	}
}
