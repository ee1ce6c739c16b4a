// Package factory constructs renderers for the backend chosen at startup.
//
// A Factory owns the process-wide native objects of its backend. For
// Vulkan that is one instance and one logical device shared by every
// renderer the factory creates; they are created with the first renderer
// and destroyed with the last. OpenGL keeps its objects in per-window
// contexts, so only the renderer count is shared.
//
//	f, err := factory.New(factory.Config{Backend: rhi.BackendVulkan, Vulkan: vkgo.Loader(nil)})
//	if err != nil {
//		return err
//	}
//	defer f.Shutdown()
//	r, err := f.NewRenderer(rhi.WithSurface(win))
package factory

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/backend/opengl"
	"github.com/gogpu/rhi/backend/vulkan"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/hal/vkapi"
)

// GLLoader returns the OpenGL entry points of the context bound to s and
// current on the calling thread. s is nil for headless renderers.
type GLLoader func(s rhi.GLSurface) (glapi.Functions, error)

// Config selects the backend and how its native API is loaded.
type Config struct {
	Backend rhi.BackendKind

	// OpenGL is required for BackendOpenGL.
	OpenGL GLLoader
	// Vulkan is required for BackendVulkan.
	Vulkan vkapi.Loader
	// InstanceExtensions are enabled on the shared Vulkan instance along
	// with those the first renderer's surface requires. When the first
	// renderer may be headless, list the window layer's presentation
	// extensions here so later windowed renderers can create surfaces.
	InstanceExtensions []string

	// Debug enables validation layers on the shared Vulkan instance and
	// is passed to every renderer.
	Debug bool
}

// Validate checks that the loader of the selected backend is present.
func (c *Config) Validate() error {
	switch c.Backend {
	case rhi.BackendOpenGL:
		if c.OpenGL == nil {
			return fmt.Errorf("%w: OpenGL backend without a loader", rhi.ErrInvalidConfig)
		}
	case rhi.BackendVulkan:
		if c.Vulkan == nil {
			return fmt.Errorf("%w: Vulkan backend without a loader", rhi.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %v", rhi.ErrUnsupportedBackend, c.Backend)
	}
	return nil
}

// Factory creates renderers and reference-counts the native device they
// share. It is safe for concurrent use.
type Factory struct {
	cfg Config

	mu         sync.Mutex
	instance   vkapi.Instance
	extensions []string
	device     vkapi.Device
	live      map[*renderer]struct{}
	closed    bool
	lastError error
}

// New validates cfg and returns a factory. No native objects are created
// until the first renderer.
func New(cfg Config) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Factory{cfg: cfg, live: make(map[*renderer]struct{})}, nil
}

// Backend returns the configured backend.
func (f *Factory) Backend() rhi.BackendKind { return f.cfg.Backend }

// Renderers returns the number of live renderers.
func (f *Factory) Renderers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// NewRenderer creates a renderer on the configured backend. A non-nil
// surface must implement rhi.GLSurface or rhi.VulkanSurface to match.
// The returned renderer releases its share of the device on Destroy.
func (f *Factory) NewRenderer(opts ...rhi.Option) (rhi.Renderer, error) {
	o := rhi.NewOptions(opts...)
	o.Debug = o.Debug || f.cfg.Debug
	if err := o.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("%w: factory shut down", rhi.ErrDestroyed)
	}
	var (
		inner rhi.Renderer
		err   error
	)
	switch f.cfg.Backend {
	case rhi.BackendOpenGL:
		inner, err = f.newOpenGL(o)
	case rhi.BackendVulkan:
		inner, err = f.newVulkan(o)
	}
	if err != nil {
		if len(f.live) == 0 {
			f.teardown()
		}
		return nil, err
	}
	r := &renderer{Renderer: inner, f: f}
	f.live[r] = struct{}{}
	rhi.Logger().Debug("factory: renderer created", "backend", f.cfg.Backend.String(), "renderers", len(f.live))
	return r, nil
}

func (f *Factory) newOpenGL(o rhi.Options) (rhi.Renderer, error) {
	var s rhi.GLSurface
	if o.Surface != nil {
		gs, ok := o.Surface.(rhi.GLSurface)
		if !ok {
			return nil, fmt.Errorf("%w: surface %T has no OpenGL context", rhi.ErrInvalidConfig, o.Surface)
		}
		gs.MakeContextCurrent()
		s = gs
	}
	gl, err := f.cfg.OpenGL(s)
	if err != nil {
		return nil, fmt.Errorf("load OpenGL: %w", err)
	}
	r, err := opengl.New(gl, o)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (f *Factory) newVulkan(o rhi.Options) (rhi.Renderer, error) {
	var vs rhi.VulkanSurface
	if o.Surface != nil {
		s, ok := o.Surface.(rhi.VulkanSurface)
		if !ok {
			return nil, fmt.Errorf("%w: surface %T cannot present with Vulkan", rhi.ErrInvalidConfig, o.Surface)
		}
		vs = s
	}
	if f.instance == nil {
		exts := slices.Clone(f.cfg.InstanceExtensions)
		if vs != nil {
			for _, e := range vs.RequiredInstanceExtensions() {
				if !slices.Contains(exts, e) {
					exts = append(exts, e)
				}
			}
		}
		inst, err := f.cfg.Vulkan(exts, o.Debug)
		if err != nil {
			return nil, fmt.Errorf("%w: create Vulkan instance: %w", rhi.ErrUnsupportedBackend, err)
		}
		f.instance, f.extensions = inst, exts
	} else if vs != nil {
		var missing []string
		for _, e := range vs.RequiredInstanceExtensions() {
			if !slices.Contains(f.extensions, e) {
				missing = append(missing, e)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: shared Vulkan instance lacks surface extensions %v; list them in Config.InstanceExtensions",
				rhi.ErrInvalidConfig, missing)
		}
	}
	var surface vkapi.Surface
	if vs != nil {
		s, err := f.instance.CreateSurface(vs.CreateVulkanSurface)
		if err != nil {
			return nil, fmt.Errorf("create Vulkan surface: %w", err)
		}
		surface = s
	}
	if f.device == nil {
		dev, err := f.instance.CreateDevice(surface)
		if err != nil {
			if surface != 0 {
				f.instance.DestroySurface(surface)
			}
			return nil, fmt.Errorf("%w: create Vulkan device: %w", rhi.ErrUnsupportedBackend, err)
		}
		f.device = dev
		props := dev.Properties()
		rhi.Logger().Info("factory: Vulkan device selected", "device", props.DeviceName, "debug", o.Debug)
	} else if surface != 0 {
		// The shared device was selected without this surface.
		if err := f.checkPresent(surface); err != nil {
			f.instance.DestroySurface(surface)
			return nil, err
		}
	}
	r, err := vulkan.New(f.instance, f.device, surface, o)
	if err != nil {
		if surface != 0 {
			f.instance.DestroySurface(surface)
		}
		return nil, err
	}
	return r, nil
}

func (f *Factory) checkPresent(surface vkapi.Surface) error {
	ok, err := f.device.SurfaceSupported(surface)
	if err != nil {
		return fmt.Errorf("query Vulkan present support: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: Vulkan device %s cannot present to the surface",
			rhi.ErrUnsupported, f.device.Properties().DeviceName)
	}
	return nil
}

// release drops r's share of the device. The mutex must not be held.
func (f *Factory) release(r *renderer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[r]; !ok {
		return
	}
	delete(f.live, r)
	if len(f.live) == 0 {
		f.teardown()
	}
}

// teardown destroys the shared native objects. The mutex must be held.
func (f *Factory) teardown() {
	if f.device != nil {
		if err := f.device.WaitIdle(); err != nil {
			rhi.Logger().Warn("factory: wait idle before device teardown", "error", err)
			f.lastError = err
		}
		f.device.Destroy()
		f.device = nil
		rhi.Logger().Info("factory: Vulkan device destroyed")
	}
	if f.instance != nil {
		f.instance.Destroy()
		f.instance, f.extensions = nil, nil
	}
}

// Shutdown destroys the renderers still alive and the shared device, and
// closes the factory. It returns the errors met while waiting for the
// device. Calling it again does nothing.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	left := make([]*renderer, 0, len(f.live))
	for r := range f.live {
		left = append(left, r)
	}
	f.mu.Unlock()

	if n := len(left); n > 0 {
		rhi.Logger().Warn("factory: renderers alive at shutdown", "renderers", n)
	}
	var errs []error
	for _, r := range left {
		if err := r.WaitDeviceIdle(); err != nil && !errors.Is(err, rhi.ErrDestroyed) {
			errs = append(errs, err)
		}
		r.Destroy()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardown()
	errs = append(errs, f.lastError)
	f.lastError = nil
	return errors.Join(errs...)
}

// renderer forwards to a backend renderer and releases the factory's
// device share when destroyed.
type renderer struct {
	rhi.Renderer
	f    *Factory
	once sync.Once
}

// Destroy implements rhi.Renderer.
func (r *renderer) Destroy() {
	r.once.Do(func() {
		r.Renderer.Destroy()
		r.f.release(r)
	})
}

// Unwrap returns the backend renderer behind r, or r itself when it was
// not created by a Factory. Backend-specific accessors such as the Vulkan
// device are reached through it.
func Unwrap(r rhi.Renderer) rhi.Renderer {
	if w, ok := r.(*renderer); ok {
		return w.Renderer
	}
	return r
}
