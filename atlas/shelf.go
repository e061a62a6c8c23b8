package atlas

import (
	"fmt"
	"image"
)

// region is a rectangle allocated in an atlas.
type region struct {
	X, Y, Width, Height int
}

// String returns a string representation of the region.
func (r region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// shelf represents a horizontal shelf in the shelf-packing algorithm.
type shelf struct {
	y      int // Top Y coordinate of this shelf
	height int // Height of this shelf (tallest item so far)
	nextX  int // Next available X position on this shelf
}

// shelfPacker packs glyph rectangles into horizontal shelves.
// Not safe for concurrent use; each build owns its own packer.
type shelfPacker struct {
	width, height int
	padding       int
	shelves       []shelf
}

func newShelfPacker(width, height, padding int) *shelfPacker {
	return &shelfPacker{
		width:   width,
		height:  height,
		padding: max(padding, 0),
		shelves: make([]shelf, 0, 16),
	}
}

// allocate finds space for a w x h rectangle. The returned region excludes
// padding. ok is false when the packer is full.
func (p *shelfPacker) allocate(w, h int) (region, bool) {
	if w <= 0 || h <= 0 {
		return region{}, true
	}
	pw, ph := w+p.padding, h+p.padding
	if pw > p.width || ph > p.height {
		return region{}, false
	}

	for i := range p.shelves {
		s := &p.shelves[i]
		if s.nextX+pw > p.width {
			continue
		}
		// Only the last shelf may grow taller.
		if ph > s.height && (i != len(p.shelves)-1 || s.y+ph > p.height) {
			continue
		}
		r := region{X: s.nextX, Y: s.y, Width: w, Height: h}
		s.nextX += pw
		s.height = max(s.height, ph)
		return r, true
	}

	y := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		y = last.y + last.height
	}
	if y+ph > p.height {
		return region{}, false
	}
	p.shelves = append(p.shelves, shelf{y: y, height: ph, nextX: pw})
	return region{X: 0, Y: y, Width: w, Height: h}, true
}

// pack places every size into the smallest power-of-two square-ish atlas
// between minSize and maxSize, growing height before width. It returns the
// chosen dimensions and one region per size.
func pack(sizes []image.Point, padding, minSize, maxSize int) (w, h int, regions []region, err error) {
	w, h = minSize, minSize
	for {
		if regions, ok := tryPack(sizes, w, h, padding); ok {
			return w, h, regions, nil
		}
		switch {
		case h < maxSize && h <= w:
			h *= 2
		case w < maxSize:
			w *= 2
		case h < maxSize:
			h *= 2
		default:
			return 0, 0, nil, ErrAtlasFull
		}
	}
}

func tryPack(sizes []image.Point, w, h, padding int) ([]region, bool) {
	p := newShelfPacker(w, h, padding)
	regions := make([]region, len(sizes))
	for i, sz := range sizes {
		r, ok := p.allocate(sz.X, sz.Y)
		if !ok {
			return nil, false
		}
		regions[i] = r
	}
	return regions, true
}
