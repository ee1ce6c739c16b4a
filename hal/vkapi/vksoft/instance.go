// Package vksoft is an in-memory implementation of vkapi.Instance and
// vkapi.Device.
//
// Objects live in Go maps and transfers, clears, blits and resolves run on
// the CPU. Draws and dispatches are validated and counted but rasterize
// nothing. Submitted work executes lazily, in submission order, the first
// time a fence is waited on or polled, which exposes missing waits in the
// code under test.
//
// Misuse that a validation layer would report is recorded instead of
// returned: layout mismatches, unset dynamic state, command buffers or
// descriptor sets changed while in flight, waits that can never complete.
// Tests read the log with Device.ValidationErrors.
package vksoft

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/rhi/hal/vkapi"
)

// Options configures an Instance and the devices it creates.
type Options struct {
	// DeviceName is reported in the device properties.
	DeviceName string
	// ExtendedDynamicState advertises VK_EXT_extended_dynamic_state.
	ExtendedDynamicState bool
	// ExtendedDynamicState2 advertises VK_EXT_extended_dynamic_state2.
	ExtendedDynamicState2 bool
	// UniformAlignment is minUniformBufferOffsetAlignment.
	UniformAlignment uint64
	// SampleCounts is the supported framebuffer sample count mask.
	SampleCounts uint32
	// MemoryLimit fails device allocations beyond this many bytes. Zero
	// means unlimited.
	MemoryLimit uint64
	// NoPresent makes the device queue unable to present to any surface.
	NoPresent bool
}

// Option configures Options.
type Option func(*Options)

// WithExtendedDynamicState sets whether both extended dynamic state
// extensions are advertised.
func WithExtendedDynamicState(enabled bool) Option {
	return func(o *Options) {
		o.ExtendedDynamicState = enabled
		o.ExtendedDynamicState2 = enabled
	}
}

// WithUniformAlignment sets the uniform buffer offset alignment.
func WithUniformAlignment(align uint64) Option {
	return func(o *Options) { o.UniformAlignment = align }
}

// WithSampleCounts sets the supported framebuffer sample count mask.
func WithSampleCounts(mask uint32) Option {
	return func(o *Options) { o.SampleCounts = mask }
}

// WithMemoryLimit caps the bytes of device memory allocations.
func WithMemoryLimit(n uint64) Option {
	return func(o *Options) { o.MemoryLimit = n }
}

// WithoutPresent makes devices unable to present. Surfaces can still be
// created, but no device can be selected for one.
func WithoutPresent() Option {
	return func(o *Options) { o.NoPresent = true }
}

const surfaceExtension = "VK_KHR_surface"

// Instance is an in-memory instance. It is its own native handle, so
// window layers receive an *Instance in SurfaceFactory calls.
type Instance struct {
	mu   sync.Mutex
	opts Options

	extensions []string
	debug      bool
	loads      int
	destroyed  bool

	next     uint64
	surfaces map[vkapi.Surface]*Window
	devices  []*Device
}

// NewInstance returns an instance with the given options.
func NewInstance(opts ...Option) *Instance {
	o := Options{
		DeviceName:            "vksoft",
		ExtendedDynamicState:  true,
		ExtendedDynamicState2: true,
		UniformAlignment:      256,
		SampleCounts:          0b1111,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Instance{opts: o, surfaces: make(map[vkapi.Surface]*Window)}
}

// Loader returns a vkapi.Loader that hands out this instance and records
// the requested extensions.
func (i *Instance) Loader() vkapi.Loader {
	return func(extensions []string, debug bool) (vkapi.Instance, error) {
		i.mu.Lock()
		defer i.mu.Unlock()
		if i.destroyed {
			return nil, vkapi.ErrorInitializationFail
		}
		i.extensions = append([]string(nil), extensions...)
		i.debug = debug
		i.loads++
		return i, nil
	}
}

// Extensions returns the extensions of the last load.
func (i *Instance) Extensions() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.extensions...)
}

// Debug reports whether the last load asked for validation.
func (i *Instance) Debug() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.debug
}

// Device returns the most recently created device, or nil.
func (i *Instance) Device() *Device {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.devices) == 0 {
		return nil
	}
	return i.devices[len(i.devices)-1]
}

// Destroyed reports whether Destroy was called.
func (i *Instance) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// CreateSurface implements vkapi.Instance. The instance must have been
// loaded with VK_KHR_surface.
func (i *Instance) CreateSurface(create vkapi.SurfaceFactory) (vkapi.Surface, error) {
	if !slices.Contains(i.Extensions(), surfaceExtension) {
		return 0, vkapi.ErrorExtensionNotPresent
	}
	h, err := create(i)
	if err != nil {
		return 0, fmt.Errorf("vksoft: create surface: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	s := vkapi.Surface(h)
	if i.surfaces[s] == nil {
		return 0, vkapi.ErrorSurfaceLost
	}
	return s, nil
}

func (i *Instance) addSurface(w *Window) vkapi.Surface {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.next++
	s := vkapi.Surface(i.next)
	i.surfaces[s] = w
	return s
}

func (i *Instance) window(s vkapi.Surface) *Window {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.surfaces[s]
}

// DestroySurface implements vkapi.Instance.
func (i *Instance) DestroySurface(s vkapi.Surface) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.surfaces, s)
}

// Surfaces returns the number of live surfaces.
func (i *Instance) Surfaces() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.surfaces)
}

// CreateDevice implements vkapi.Instance.
func (i *Instance) CreateDevice(surface vkapi.Surface) (vkapi.Device, error) {
	if surface != 0 {
		if i.window(surface) == nil {
			return nil, vkapi.ErrorSurfaceLost
		}
		if i.opts.NoPresent {
			return nil, vkapi.ErrorFeatureNotPresent
		}
	}
	d := newDevice(i)
	i.mu.Lock()
	i.devices = append(i.devices, d)
	i.mu.Unlock()
	return d, nil
}

// Native implements vkapi.Instance.
func (i *Instance) Native() interface{} { return i }

// Destroy implements vkapi.Instance.
func (i *Instance) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.destroyed = true
}

// Window is a presentation target. It satisfies the window contract of the
// Vulkan renderer without depending on it.
type Window struct {
	mu            sync.Mutex
	width, height int
}

// NewWindow returns a window with a width x height framebuffer.
func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

// SetSize changes the framebuffer size. Swapchains created for the old
// size go out of date.
func (w *Window) SetSize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width, w.height = width, height
}

// FramebufferSize returns the framebuffer size in pixels.
func (w *Window) FramebufferSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// RequiredInstanceExtensions returns the extensions presentation needs.
func (w *Window) RequiredInstanceExtensions() []string {
	return []string{surfaceExtension, "VK_KHR_soft_surface"}
}

// CreateVulkanSurface creates a surface on instance, which must be the
// *Instance passed to a SurfaceFactory.
func (w *Window) CreateVulkanSurface(instance interface{}) (uintptr, error) {
	inst, ok := instance.(*Instance)
	if !ok {
		return 0, fmt.Errorf("vksoft: surface for foreign instance %T", instance)
	}
	return uintptr(inst.addSurface(w)), nil
}

func (w *Window) extent() vkapi.Extent2D {
	width, height := w.FramebufferSize()
	return vkapi.Extent2D{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))}
}
