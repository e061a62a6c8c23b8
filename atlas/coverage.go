package atlas

import (
	"bytes"
	"fmt"

	"github.com/go-text/typesetting/font"
)

// Coverage answers whether a font maps a codepoint to a glyph, using the
// font's cmap via go-text/typesetting. The parsed font is read-only and safe
// for concurrent use.
type Coverage struct {
	font *font.Font
}

// NewCoverage parses font data for cmap lookups.
func NewCoverage(data []byte) (*Coverage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("atlas: failed to parse font: %w", err)
	}
	return &Coverage{font: face.Font}, nil
}

// Has reports whether the font has a glyph for r.
func (c *Coverage) Has(r rune) bool {
	_, ok := c.font.NominalGlyph(r)
	return ok
}

// Filter returns the codepoints the font covers, preserving order, and the
// number of codepoints dropped.
func (c *Coverage) Filter(codepoints []rune) (covered []rune, dropped int) {
	covered = make([]rune, 0, len(codepoints))
	for _, r := range codepoints {
		if c.Has(r) {
			covered = append(covered, r)
		} else {
			dropped++
		}
	}
	return covered, dropped
}
