package factory

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/backend/vulkan"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/hal/glapi/glsoft"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/hal/vkapi/vksoft"
)

// softGL uses the software context that doubles as the window surface.
func softGL(s rhi.GLSurface) (glapi.Functions, error) {
	if s == nil {
		return glsoft.New(64, 64), nil
	}
	return s.(*glsoft.Context), nil
}

func newVulkanFactory(t *testing.T, inst *vksoft.Instance) *Factory {
	t.Helper()
	f, err := New(Config{Backend: rhi.BackendVulkan, Vulkan: inst.Loader()})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() { f.Shutdown() })
	return f
}

func vulkanDevice(t *testing.T, r rhi.Renderer) vkapi.Device {
	t.Helper()
	vr, ok := Unwrap(r).(*vulkan.Renderer)
	if !ok {
		t.Fatalf("Unwrap() = %T, want *vulkan.Renderer", Unwrap(r))
	}
	return vr.Device()
}

// =============================================================================
// Configuration
// =============================================================================

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no backend", Config{}, rhi.ErrUnsupportedBackend},
		{"opengl without loader", Config{Backend: rhi.BackendOpenGL}, rhi.ErrInvalidConfig},
		{"vulkan without loader", Config{Backend: rhi.BackendVulkan, OpenGL: softGL}, rhi.ErrInvalidConfig},
		{"opengl", Config{Backend: rhi.BackendOpenGL, OpenGL: softGL}, nil},
		{"vulkan", Config{Backend: rhi.BackendVulkan, Vulkan: vksoft.NewInstance().Loader()}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New() error = %v, want %v", err, tt.want)
			}
			if err == nil && f.Backend() != tt.cfg.Backend {
				t.Errorf("Backend() = %v, want %v", f.Backend(), tt.cfg.Backend)
			}
		})
	}
}

func TestSurfaceMustMatchBackend(t *testing.T) {
	gl, err := New(Config{Backend: rhi.BackendOpenGL, OpenGL: softGL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if _, err := gl.NewRenderer(rhi.WithSurface(vksoft.NewWindow(8, 8))); !errors.Is(err, rhi.ErrInvalidConfig) {
		t.Errorf("OpenGL NewRenderer(Vulkan window) = %v, want ErrInvalidConfig", err)
	}

	inst := vksoft.NewInstance()
	vk := newVulkanFactory(t, inst)
	if _, err := vk.NewRenderer(rhi.WithSurface(glsoft.New(8, 8))); !errors.Is(err, rhi.ErrInvalidConfig) {
		t.Errorf("Vulkan NewRenderer(GL context) = %v, want ErrInvalidConfig", err)
	}
	if inst.Device() != nil {
		t.Error("device created for a rejected surface")
	}
}

func TestLoaderFailure(t *testing.T) {
	boom := errors.New("no driver")
	f, err := New(Config{Backend: rhi.BackendVulkan, Vulkan: func([]string, bool) (vkapi.Instance, error) {
		return nil, boom
	}})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	_, err = f.NewRenderer()
	if !errors.Is(err, rhi.ErrUnsupportedBackend) || !errors.Is(err, boom) {
		t.Errorf("NewRenderer() = %v, want ErrUnsupportedBackend wrapping the loader error", err)
	}
	if got := rhi.StatusOf(err); got != rhi.StatusFailure {
		t.Errorf("StatusOf() = %v, want failure", got)
	}
}

// =============================================================================
// Shared device
// =============================================================================

func TestVulkanDeviceShared(t *testing.T) {
	inst := vksoft.NewInstance()
	f, err := New(Config{Backend: rhi.BackendVulkan, Vulkan: inst.Loader(), Debug: true})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	w1, w2 := vksoft.NewWindow(32, 32), vksoft.NewWindow(48, 16)
	r1, err := f.NewRenderer(rhi.WithSurface(w1))
	if err != nil {
		t.Fatalf("NewRenderer(w1) = %v", err)
	}
	r2, err := f.NewRenderer(rhi.WithSurface(w2))
	if err != nil {
		t.Fatalf("NewRenderer(w2) = %v", err)
	}
	if vulkanDevice(t, r1) != vulkanDevice(t, r2) {
		t.Error("renderers got different devices")
	}
	if got, want := inst.Extensions(), w1.RequiredInstanceExtensions(); !slices.Equal(got, want) {
		t.Errorf("instance extensions = %v, want %v", got, want)
	}
	if !inst.Debug() {
		t.Error("instance loaded without validation under Config.Debug")
	}
	if got := inst.Surfaces(); got != 2 {
		t.Errorf("Surfaces() = %d, want 2", got)
	}
	if got := f.Renderers(); got != 2 {
		t.Errorf("Renderers() = %d, want 2", got)
	}

	dev := inst.Device()
	r1.Destroy()
	r1.Destroy()
	if dev.Destroyed() {
		t.Fatal("device destroyed while a renderer is alive")
	}
	if got := inst.Surfaces(); got != 1 {
		t.Errorf("Surfaces() after first Destroy = %d, want 1", got)
	}
	if err := r2.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() on surviving renderer = %v", err)
	}
	if err := r2.EndFrame(); err != nil {
		t.Fatalf("EndFrame() on surviving renderer = %v", err)
	}

	r2.Destroy()
	if !dev.Destroyed() || !inst.Destroyed() {
		t.Errorf("after last Destroy: device destroyed %v, instance destroyed %v, want both",
			dev.Destroyed(), inst.Destroyed())
	}
	if got := dev.Objects(); got.Total() != 0 {
		t.Errorf("Objects() = %+v, want none", got)
	}
	if err := f.Shutdown(); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

func TestHeadlessThenWindowed(t *testing.T) {
	surfaceExts := vksoft.NewWindow(1, 1).RequiredInstanceExtensions()
	tests := []struct {
		name string
		opts []vksoft.Option
		exts []string
		want error
	}{
		{"instance without surface extensions", nil, nil, rhi.ErrInvalidConfig},
		{"extensions configured", nil, surfaceExts, nil},
		{"device cannot present", []vksoft.Option{vksoft.WithoutPresent()}, surfaceExts, rhi.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := vksoft.NewInstance(tt.opts...)
			f, err := New(Config{Backend: rhi.BackendVulkan, Vulkan: inst.Loader(), InstanceExtensions: tt.exts})
			if err != nil {
				t.Fatalf("New() = %v", err)
			}
			t.Cleanup(func() { f.Shutdown() })

			headless, err := f.NewRenderer(rhi.WithSize(16, 16))
			if err != nil {
				t.Fatalf("NewRenderer(headless) = %v", err)
			}
			windowed, err := f.NewRenderer(rhi.WithSurface(vksoft.NewWindow(32, 32)))
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewRenderer(window) = %v, want %v", err, tt.want)
			}
			if err != nil {
				if got := inst.Surfaces(); got != 0 {
					t.Errorf("Surfaces() after failure = %d, want 0", got)
				}
				if got := f.Renderers(); got != 1 {
					t.Errorf("Renderers() = %d, want 1", got)
				}
				return
			}
			if vulkanDevice(t, headless) != vulkanDevice(t, windowed) {
				t.Error("renderers got different devices")
			}
			if got := inst.Extensions(); !slices.Equal(got, surfaceExts) {
				t.Errorf("instance extensions = %v, want %v", got, surfaceExts)
			}
			if err := windowed.BeginFrame(); err != nil {
				t.Fatalf("BeginFrame() = %v", err)
			}
			if err := windowed.EndFrame(); err != nil {
				t.Fatalf("EndFrame() = %v", err)
			}
		})
	}
}

func TestShutdownDestroysRenderers(t *testing.T) {
	inst := vksoft.NewInstance()
	f := newVulkanFactory(t, inst)
	r, err := f.NewRenderer(rhi.WithSize(16, 16))
	if err != nil {
		t.Fatalf("NewRenderer() = %v", err)
	}
	if err := f.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	if got := f.Renderers(); got != 0 {
		t.Errorf("Renderers() after Shutdown = %d, want 0", got)
	}
	if err := r.BeginFrame(); !errors.Is(err, rhi.ErrDestroyed) {
		t.Errorf("BeginFrame() after Shutdown = %v, want ErrDestroyed", err)
	}
	if _, err := f.NewRenderer(); !errors.Is(err, rhi.ErrDestroyed) {
		t.Errorf("NewRenderer() after Shutdown = %v, want ErrDestroyed", err)
	}
	if !inst.Device().Destroyed() {
		t.Error("device survived Shutdown")
	}
	if err := f.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
	r.Destroy()
}

func TestConcurrentRenderers(t *testing.T) {
	inst := vksoft.NewInstance()
	f := newVulkanFactory(t, inst)
	keep, err := f.NewRenderer(rhi.WithSize(16, 16))
	if err != nil {
		t.Fatalf("NewRenderer() = %v", err)
	}
	defer keep.Destroy()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.NewRenderer(rhi.WithSize(16, 16))
			if err != nil {
				errs <- err
				return
			}
			r.Destroy()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("NewRenderer() = %v", err)
	}
	if got := f.Renderers(); got != 1 {
		t.Errorf("Renderers() = %d, want 1", got)
	}
	if inst.Device().Destroyed() {
		t.Error("device destroyed while a renderer is alive")
	}
}

func TestOpenGLRenderers(t *testing.T) {
	f, err := New(Config{Backend: rhi.BackendOpenGL, OpenGL: softGL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	ctx := glsoft.New(32, 32)
	r, err := f.NewRenderer(rhi.WithSurface(ctx))
	if err != nil {
		t.Fatalf("NewRenderer() = %v", err)
	}
	if r.Backend() != rhi.BackendOpenGL {
		t.Errorf("Backend() = %v, want opengl", r.Backend())
	}
	headless, err := f.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer(headless) = %v", err)
	}
	if got := f.Renderers(); got != 2 {
		t.Errorf("Renderers() = %d, want 2", got)
	}
	headless.Destroy()
	if err := f.Shutdown(); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
	if got := f.Renderers(); got != 0 {
		t.Errorf("Renderers() after Shutdown = %d, want 0", got)
	}
}

func TestUnwrapForeign(t *testing.T) {
	inst := vksoft.NewInstance()
	vi, _ := inst.Loader()(nil, false)
	dev, _ := vi.CreateDevice(0)
	r, err := vulkan.New(vi, dev, 0, rhi.NewOptions(rhi.WithSize(8, 8)))
	if err != nil {
		t.Fatalf("vulkan.New() = %v", err)
	}
	defer r.Destroy()
	if got := Unwrap(r); got != rhi.Renderer(r) {
		t.Errorf("Unwrap(backend renderer) = %v, want it unchanged", got)
	}
}
