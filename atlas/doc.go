// Package atlas builds font atlases in the background and decides which
// build result is live.
//
// # Overview
//
// A Rasterizer turns a codepoint list into an Atlas bitmap. It is a pure and
// possibly slow function. FontRasterizer is the default implementation,
// backed by golang.org/x/image/font/opentype.
//
// Pipeline owns the live atlas and runs on the render goroutine. It collects
// newly discovered codepoints (typed text and render-time glyph misses) into
// a pending counter and schedules versioned rebuilds on a worker pool:
//
//   - one full-warm build at startup against every requested codepoint,
//     while a cheap startup atlas is served immediately;
//   - incremental builds whenever the pending count reaches the batch size or
//     the minimum rebuild interval has elapsed.
//
// Results are version-gated: a build commits only if it is newer than the
// last committed build, so a slow stale job can never overwrite a newer
// atlas. Jobs are never cancelled.
//
// IME composition previews never join the Active set. Each distinct preview
// is served from a temporary atlas for Active plus the preview, kept in a
// small TTL cache keyed by codepoint-set signature, so cycling through
// candidates reuses atlases instead of rebuilding on every keystroke.
package atlas
