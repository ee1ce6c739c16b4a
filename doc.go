// Package rhi is a rendering hardware interface: one set of resource and
// command calls implemented over two native graphics APIs.
//
// # Backends
//
// BackendOpenGL executes every call immediately against an OpenGL 4.6
// context. BackendVulkan records into per-frame command buffers, keeps two
// frames in flight, and manages device memory and image layouts itself.
// Callers see the same behavior from both.
//
// # Resources
//
// Resources are referred to by typed handles (ImageID, BufferID and so on).
// A handle is a generational index into its renderer, so a destroyed
// handle never aliases a newer resource.
//
// # Pipeline state
//
// Renderer embeds state.Setter. A pipeline declares the states it treats
// as dynamic; binding it re-issues only those whose values changed since
// the pipeline was last bound. See package state.
//
// # Errors
//
// Fallible calls return errors wrapping the sentinels in this package.
// StatusOf maps them onto the integer status protocol, where
// ErrFrameRetry is the only transient condition.
//
// # Logging
//
// The package is silent by default. Pass an *slog.Logger to SetLogger to
// receive backend diagnostics.
package rhi
