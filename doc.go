// Package frameloop is an input-driven frame loop for immediate-mode UIs.
//
// # Overview
//
// A Scheduler runs two long-lived goroutines. The poll goroutine owns the
// platform event pump: it captures raw input and publishes it into a shared
// pending snapshot. The render goroutine consumes that snapshot, decides
// whether a frame is needed at all, and if so builds it through the UI and
// hands the result to a Renderer.
//
// With idle frame skip enabled, the render goroutine parks whenever there is
// no input change, no pending font work and no explicit frame request, so an
// idle window costs no CPU or GPU time. Code outside the input path, such as
// an animation timer, calls RequestFrame to force a render pass.
//
// # Glyph atlas
//
// Text is drawn from a glyph atlas that grows on demand. A cheap startup
// atlas is built synchronously so the first frame can show text, while a
// full-fidelity atlas is built in the background. Glyphs that are drawn but
// missing from the atlas are recorded during frame build and batched into
// incremental rebuilds on a worker pool. Results are version-gated so a slow
// build never replaces a newer one. IME composition previews are served from
// a small TTL cache of temporary atlases.
//
// # Quick Start
//
//	s, err := frameloop.New(platform, renderer, ui,
//	    frameloop.WithIdleSkip(true),
//	    frameloop.WithRebuildBatchSize(16),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Architecture
//
// The module is organized into:
//   - frameloop: Scheduler, configuration and the Platform, Renderer and UI contracts
//   - input: snapshots and the Aggregator shared by the poll and render goroutines
//   - glyph: codepoint sets and the coverage Tracker used by the text path
//   - atlas: rasterization, packing and the version-gated build Pipeline
//   - cache: the FIFO plus TTL cache backing temporary atlases
//   - texsync: texture create, update and destroy commands, and an Uploader for gpucontext renderers
//
// # Logging
//
// frameloop produces no log output by default. Call SetLogger to enable it.
package frameloop
