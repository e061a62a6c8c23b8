// Package glyph tracks which codepoints have been requested for rendering
// and which of them the resident font atlas actually covers.
//
// Two sets matter. Full accumulates every codepoint ever requested, whether
// from startup configuration, rendered text or committed IME input. Active
// holds the codepoints covered by the live atlas, plus codepoints that were
// speculatively added after a render-time miss. Active grows toward Full
// and only shrinks when a newer atlas build replaces it wholesale.
//
// Tracker is owned by the render goroutine and is not safe for concurrent
// use.
package glyph
