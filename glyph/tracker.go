package glyph

// Tracker answers coverage queries from the text path during frame build
// and records codepoints the live atlas does not cover.
type Tracker struct {
	full   *Set
	active *Set

	// misses holds codepoints added to Active by EnsureCovered since the
	// last TakeMisses.
	misses []rune

	// preview holds composition-preview codepoints served from temporary
	// atlases. They never enter Active.
	preview      *Set
	previewReady bool

	// blocked is set while glyph-miss fallback is disallowed.
	blocked bool
}

// NewTracker returns a tracker whose Full set is full and whose Active set
// is active. Active is added to Full.
func NewTracker(full, active *Set) *Tracker {
	t := &Tracker{full: full.Clone(), active: active.Clone(), preview: NewSet()}
	t.full.AddSet(t.active)
	return t
}

// EnsureCovered is called for every codepoint measured or drawn.
//
// A covered codepoint returns true without allocating. An uncovered one is
// added to Active and Full, so later draws in the same frame hit the fast
// path, and it is counted as a miss. In that case the result is false only
// while fallback is blocked (a rebuild is in flight or IME composition is
// active), telling the caller to draw a placeholder glyph.
//
// A composition-preview codepoint is neither added nor counted; the result
// reports whether the temporary atlas holding it is live.
func (t *Tracker) EnsureCovered(r rune) bool {
	if t.active.Has(r) {
		return true
	}
	if t.preview.Has(r) {
		return t.previewReady
	}
	t.active.Add(r)
	t.full.Add(r)
	t.misses = append(t.misses, r)
	return !t.blocked
}

// SetBlocked sets whether glyph-miss fallback is currently disallowed.
func (t *Tracker) SetBlocked(blocked bool) {
	t.blocked = blocked
}

// SetPreview sets the composition-preview codepoints and whether the live
// atlas covers them. The set is owned by the tracker afterwards.
func (t *Tracker) SetPreview(s *Set, ready bool) {
	if s == nil {
		s = NewSet()
	}
	t.preview = s
	t.previewReady = ready
}

// TakeMisses returns and resets the codepoints missed in the current frame.
func (t *Tracker) TakeMisses() []rune {
	m := t.misses
	t.misses = nil
	return m
}

// Request adds r to Full and to Active and reports whether it was new to
// Active. It is the entry point for codepoints discovered outside the text
// path, such as typed characters; unlike EnsureCovered it does not count a
// miss.
func (t *Tracker) Request(r rune) bool {
	t.full.Add(r)
	return t.active.Add(r)
}

// Active returns the active set. The caller must not modify it.
func (t *Tracker) Active() *Set {
	return t.active
}

// Full returns the full set. The caller must not modify it.
func (t *Tracker) Full() *Set {
	return t.full
}

// SetActive replaces Active wholesale, as done when an atlas build commits.
// The set is owned by the tracker afterwards.
func (t *Tracker) SetActive(s *Set) {
	if s == nil {
		s = NewSet()
	}
	t.active = s
	t.full.AddSet(s)
}

// Complete reports whether Active covers Full.
func (t *Tracker) Complete() bool {
	return t.active.Contains(t.full)
}
