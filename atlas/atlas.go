package atlas

import (
	"github.com/gogpu/gputypes"
)

// Tier is the quality tier an atlas was built with.
type Tier uint8

const (
	// TierStartup is the cheap, lower fidelity tier served at startup.
	TierStartup Tier = iota
	// TierFinal is the full fidelity tier.
	TierFinal
)

// String returns the tier name.
func (t Tier) String() string {
	if t == TierFinal {
		return "final"
	}
	return "startup"
}

// Settings controls how an atlas is rasterized.
type Settings struct {
	// Tier is recorded on the built atlas and in cache signatures.
	Tier Tier

	// Size is the font size in pixels.
	Size float64

	// Oversample rasterizes glyphs at Size*Oversample. Must be >= 1.
	Oversample int

	// Padding is the gap between packed glyphs in pixels.
	Padding int

	// Format is the pixel format of the atlas bitmap. Supported formats are
	// gputypes.TextureFormatR8Unorm (coverage only) and
	// gputypes.TextureFormatRGBA8Unorm (premultiplied white).
	Format gputypes.TextureFormat

	// MinSize and MaxSize bound the atlas width and height.
	MinSize int
	MaxSize int
}

// StartupSettings returns the settings of the cheap startup atlas.
func StartupSettings() Settings {
	return Settings{
		Tier:       TierStartup,
		Size:       13,
		Oversample: 1,
		Padding:    1,
		Format:     gputypes.TextureFormatR8Unorm,
		MinSize:    128,
		MaxSize:    1024,
	}
}

// FinalSettings returns the settings of the full fidelity atlas.
func FinalSettings() Settings {
	return Settings{
		Tier:       TierFinal,
		Size:       13,
		Oversample: 2,
		Padding:    2,
		Format:     gputypes.TextureFormatRGBA8Unorm,
		MinSize:    256,
		MaxSize:    4096,
	}
}

// Validate checks if the settings are usable.
func (s *Settings) Validate() error {
	if s.Size <= 0 {
		return &SettingsError{Field: "Size", Reason: "must be positive"}
	}
	if s.Oversample < 1 {
		return &SettingsError{Field: "Oversample", Reason: "must be at least 1"}
	}
	if s.Padding < 0 {
		return &SettingsError{Field: "Padding", Reason: "must be non-negative"}
	}
	if BytesPerPixel(s.Format) == 0 {
		return &SettingsError{Field: "Format", Reason: "must be R8Unorm or RGBA8Unorm"}
	}
	if s.MinSize < 1 || s.MinSize&(s.MinSize-1) != 0 {
		return &SettingsError{Field: "MinSize", Reason: "must be a positive power of 2"}
	}
	if s.MaxSize < s.MinSize || s.MaxSize&(s.MaxSize-1) != 0 {
		return &SettingsError{Field: "MaxSize", Reason: "must be a power of 2 not below MinSize"}
	}
	return nil
}

// BytesPerPixel returns the pixel size of a supported atlas format, or 0.
func BytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm:
		return 4
	default:
		return 0
	}
}

// Glyph describes one rasterized codepoint inside an atlas.
type Glyph struct {
	// X, Y, Width, Height locate the glyph bitmap in atlas pixels.
	X, Y, Width, Height int

	// U0, V0, U1, V1 are normalized texture coordinates.
	U0, V0, U1, V1 float32

	// OffsetX and OffsetY place the bitmap relative to the pen position on
	// the baseline, in font pixels (not oversampled).
	OffsetX, OffsetY float32

	// Advance is the horizontal advance in font pixels.
	Advance float32
}

// Atlas is a rasterized bitmap holding glyphs for a codepoint set.
// An Atlas is immutable once built.
type Atlas struct {
	Width, Height int
	Format        gputypes.TextureFormat
	Pixels        []byte
	Tier          Tier

	// Ascent and LineHeight are font metrics in font pixels.
	Ascent     float32
	LineHeight float32

	glyphs map[rune]Glyph
}

// NewAtlas returns an atlas over the given pixel buffer. It is intended for
// Rasterizer implementations; glyphs may be nil.
func NewAtlas(width, height int, format gputypes.TextureFormat, tier Tier, pixels []byte, glyphs map[rune]Glyph) *Atlas {
	if glyphs == nil {
		glyphs = make(map[rune]Glyph)
	}
	return &Atlas{
		Width:  width,
		Height: height,
		Format: format,
		Pixels: pixels,
		Tier:   tier,
		glyphs: glyphs,
	}
}

// Glyph returns the glyph for r.
func (a *Atlas) Glyph(r rune) (Glyph, bool) {
	g, ok := a.glyphs[r]
	return g, ok
}

// GlyphCount returns the number of glyphs in the atlas.
func (a *Atlas) GlyphCount() int {
	return len(a.glyphs)
}

// Rasterizer builds atlases. Build must be safe to call from several
// goroutines at once and must not retain codepoints.
type Rasterizer interface {
	Build(codepoints []rune, s Settings) (*Atlas, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(codepoints []rune, s Settings) (*Atlas, error)

// Build calls f.
func (f RasterizerFunc) Build(codepoints []rune, s Settings) (*Atlas, error) {
	return f(codepoints, s)
}
