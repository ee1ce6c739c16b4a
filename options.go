package rhi

import "fmt"

// VSyncMode selects how presentation synchronizes with the display.
type VSyncMode uint8

const (
	// VSyncOn waits for vertical blank. This is the default.
	VSyncOn VSyncMode = iota
	// VSyncOff presents immediately and may tear.
	VSyncOff
	// VSyncAdaptive waits for vertical blank unless the frame is late.
	VSyncAdaptive
)

func (m VSyncMode) String() string {
	switch m {
	case VSyncOff:
		return "off"
	case VSyncAdaptive:
		return "adaptive"
	default:
		return "on"
	}
}

// Options configures a renderer at construction.
type Options struct {
	// Surface is the presentation target. Nil creates a headless renderer.
	Surface Surface
	// Width and Height size the swapchain when the surface does not report
	// an extent.
	Width, Height int
	// Samples is the swapchain render pass sample count.
	Samples int
	// VSync selects the presentation mode.
	VSync VSyncMode
	// Debug enables validation layers and shader debug info where available.
	Debug bool
}

// Option configures Options using the functional options pattern.
//
// Example:
//
//	r, err := f.NewRenderer(rhi.WithSurface(win), rhi.WithSamples(4))
type Option func(*Options)

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Width:   800,
		Height:  600,
		Samples: 1,
		VSync:   VSyncOn,
	}
}

// NewOptions applies opts over DefaultOptions.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithSurface sets the presentation surface.
func WithSurface(s Surface) Option {
	return func(o *Options) { o.Surface = s }
}

// WithSize sets the fallback swapchain extent.
func WithSize(width, height int) Option {
	return func(o *Options) {
		o.Width = width
		o.Height = height
	}
}

// WithSamples sets the swapchain sample count.
func WithSamples(n int) Option {
	return func(o *Options) { o.Samples = n }
}

// WithVSync sets the presentation mode.
func WithVSync(m VSyncMode) Option {
	return func(o *Options) { o.VSync = m }
}

// WithDebug enables debug validation.
func WithDebug(enabled bool) Option {
	return func(o *Options) { o.Debug = enabled }
}

// Validate checks extents and the sample count.
func (o *Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: swapchain size %dx%d", ErrInvalidConfig, o.Width, o.Height)
	}
	if !ValidSampleCount(o.Samples) {
		return fmt.Errorf("%w: %d samples", ErrInvalidConfig, o.Samples)
	}
	return nil
}
