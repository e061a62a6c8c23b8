package texsync

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/frameloop/atlas"
)

// Op is a texture command kind.
type Op uint8

const (
	// OpCreate allocates a texture and uploads its pixels.
	OpCreate Op = iota
	// OpUpdate replaces the pixels of an existing texture of the same shape.
	OpUpdate
	// OpDestroy releases a texture.
	OpDestroy
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// TextureID names the textures the frame loop manages.
type TextureID uint8

const (
	// TextureFont is the glyph atlas texture.
	TextureFont TextureID = iota
	// TextureWhite is a 1x1 opaque white texture for untextured geometry.
	TextureWhite
)

// String returns the texture name.
func (t TextureID) String() string {
	if t == TextureWhite {
		return "white"
	}
	return "font"
}

// Command is one texture operation. Pixels is nil for OpDestroy and is
// shared with the source atlas otherwise; the renderer must not modify it.
type Command struct {
	Op      Op
	Texture TextureID
	Width   int
	Height  int
	Format  gputypes.TextureFormat
	Pixels  []byte
}

type shape struct {
	width, height int
	format        gputypes.TextureFormat
}

var whitePixel = []byte{0xFF, 0xFF, 0xFF, 0xFF}

// Queue accumulates texture commands for the next frame.
// It is owned by the render goroutine and not safe for concurrent use.
type Queue struct {
	font    shape
	hasFont bool
	white   bool
	cmds    []Command
}

// NewQueue returns an empty queue with no textures created.
func NewQueue() *Queue {
	return &Queue{}
}

// SyncFont appends the commands that make the font texture match a.
func (q *Queue) SyncFont(a *atlas.Atlas) {
	if a == nil {
		return
	}
	next := shape{width: a.Width, height: a.Height, format: a.Format}

	if q.hasFont && q.font == next {
		q.cmds = append(q.cmds, Command{
			Op:      OpUpdate,
			Texture: TextureFont,
			Width:   a.Width,
			Height:  a.Height,
			Format:  a.Format,
			Pixels:  a.Pixels,
		})
		return
	}

	if q.hasFont {
		q.cmds = append(q.cmds, Command{
			Op:      OpDestroy,
			Texture: TextureFont,
			Width:   q.font.width,
			Height:  q.font.height,
			Format:  q.font.format,
		})
	}
	q.cmds = append(q.cmds, Command{
		Op:      OpCreate,
		Texture: TextureFont,
		Width:   a.Width,
		Height:  a.Height,
		Format:  a.Format,
		Pixels:  a.Pixels,
	})
	q.font = next
	q.hasFont = true
}

// EnsureWhite appends a create command for the white texture the first
// time it is called.
func (q *Queue) EnsureWhite() {
	if q.white {
		return
	}
	q.white = true
	q.cmds = append(q.cmds, Command{
		Op:      OpCreate,
		Texture: TextureWhite,
		Width:   1,
		Height:  1,
		Format:  gputypes.TextureFormatRGBA8Unorm,
		Pixels:  whitePixel,
	})
}

// Flush returns the queued commands in emission order and empties the
// queue. It returns nil when nothing is queued.
func (q *Queue) Flush() []Command {
	if len(q.cmds) == 0 {
		return nil
	}
	cmds := q.cmds
	q.cmds = nil
	return cmds
}
