// Package texsync turns atlas commits into an ordered list of texture
// commands for an external renderer.
//
// A Queue remembers the dimensions and format of the font texture it last
// described. A new atlas of the same shape becomes a single update; a
// different shape becomes a destroy followed by a create, in that order,
// within the same batch. The solid-white texture is created once, lazily.
//
// The queue holds no GPU state. The renderer must apply the commands of a
// batch in the order given. Uploader does that for renderers built on
// gpucontext, widening R8 coverage to RGBA on the way.
package texsync
