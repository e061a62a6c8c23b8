package atlas

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/gputypes"
)

// FontRasterizer rasterizes atlases from a single OpenType font using
// golang.org/x/image/font/opentype.
//
// FontRasterizer is safe for concurrent use: every Build creates its own
// face, and the parsed font is read-only.
type FontRasterizer struct {
	font     *opentype.Font
	coverage *Coverage
}

// NewFontRasterizer parses TTF/OTF data.
func NewFontRasterizer(data []byte) (*FontRasterizer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("atlas: failed to parse font: %w", err)
	}
	cov, err := NewCoverage(data)
	if err != nil {
		return nil, err
	}
	return &FontRasterizer{font: f, coverage: cov}, nil
}

// DefaultRasterizer returns a rasterizer for the Go Regular font.
func DefaultRasterizer() (*FontRasterizer, error) {
	return NewFontRasterizer(goregular.TTF)
}

type rasterGlyph struct {
	r       rune
	mask    *image.Alpha
	bounds  image.Rectangle // relative to the pen position on the baseline
	advance fixed.Int26_6
}

// Build implements Rasterizer. Codepoints the font does not map are
// skipped.
func (r *FontRasterizer) Build(codepoints []rune, s Settings) (*Atlas, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	scale := float64(s.Oversample)
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    s.Size * scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("atlas: failed to create face: %w", err)
	}
	defer face.Close()

	covered, dropped := r.coverage.Filter(codepoints)

	glyphs := make([]rasterGlyph, 0, len(covered))
	sizes := make([]image.Point, 0, len(covered))
	for _, cp := range covered {
		dr, mask, maskp, advance, ok := face.Glyph(fixed.Point26_6{}, cp)
		if !ok {
			dropped++
			continue
		}
		// The face reuses its mask buffer across Glyph calls.
		var m *image.Alpha
		if mask != nil && !dr.Empty() {
			m = image.NewAlpha(image.Rect(0, 0, dr.Dx(), dr.Dy()))
			draw.Draw(m, m.Bounds(), mask, maskp, draw.Src)
		}
		glyphs = append(glyphs, rasterGlyph{r: cp, mask: m, bounds: dr, advance: advance})
		sizes = append(sizes, dr.Size())
	}

	w, h, regions, err := pack(sizes, s.Padding, s.MinSize, s.MaxSize)
	if err != nil {
		return nil, err
	}

	alpha := image.NewAlpha(image.Rect(0, 0, w, h))
	out := make(map[rune]Glyph, len(glyphs))
	inv := float32(1 / scale)
	for i, g := range glyphs {
		reg := regions[i]
		dst := image.Rect(reg.X, reg.Y, reg.X+reg.Width, reg.Y+reg.Height)
		if g.mask != nil && !dst.Empty() {
			draw.Draw(alpha, dst, g.mask, image.Point{}, draw.Src)
		}
		out[g.r] = Glyph{
			X:       reg.X,
			Y:       reg.Y,
			Width:   reg.Width,
			Height:  reg.Height,
			U0:      float32(reg.X) / float32(w),
			V0:      float32(reg.Y) / float32(h),
			U1:      float32(reg.X+reg.Width) / float32(w),
			V1:      float32(reg.Y+reg.Height) / float32(h),
			OffsetX: float32(g.bounds.Min.X) * inv,
			OffsetY: float32(g.bounds.Min.Y) * inv,
			Advance: float32(fixedToFloat64(g.advance)) * inv,
		}
	}

	m := face.Metrics()
	a := NewAtlas(w, h, s.Format, s.Tier, expand(alpha.Pix, s.Format), out)
	a.Ascent = float32(fixedToFloat64(m.Ascent)) * inv
	a.LineHeight = float32(fixedToFloat64(m.Height)) * inv

	slogger().Debug("atlas: rasterized",
		slog.String("tier", s.Tier.String()),
		slog.Int("glyphs", len(out)),
		slog.Int("skipped", dropped),
		slog.Int("width", w),
		slog.Int("height", h))

	return a, nil
}

// expand converts an 8-bit coverage buffer to the target format.
// RGBA8Unorm output is premultiplied white.
func expand(cov []byte, f gputypes.TextureFormat) []byte {
	if f != gputypes.TextureFormatRGBA8Unorm {
		return cov
	}
	px := make([]byte, len(cov)*4)
	for i, a := range cov {
		j := i * 4
		px[j], px[j+1], px[j+2], px[j+3] = a, a, a, a
	}
	return px
}

// fixedToFloat64 converts fixed.Int26_6 to float64.
func fixedToFloat64(x fixed.Int26_6) float64 {
	return float64(x) / 64.0
}
