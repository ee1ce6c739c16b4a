//go:build !nogpu

// Package window opens glfw windows that serve as rhi surfaces.
//
// glfw must be used from the main thread. Callers lock it in an init
// function before calling Open.
package window

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/rhi"
)

// Window is a glfw window. Opened for OpenGL it implements rhi.GLSurface,
// opened for Vulkan it implements rhi.VulkanSurface.
type Window struct {
	*glfw.Window
	backend rhi.BackendKind
	resized bool
}

// Init initializes glfw. Terminate must be called when done.
func Init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("window: init glfw: %w", err)
	}
	return nil
}

// Terminate releases glfw.
func Terminate() { glfw.Terminate() }

// Option adjusts window hints before creation.
type Option func()

// Hidden keeps the window off screen.
func Hidden() Option {
	return func() { glfw.WindowHint(glfw.Visible, glfw.False) }
}

// Open creates a resizable window for backend. OpenGL windows get a 4.6
// core context, Vulkan windows none.
func Open(backend rhi.BackendKind, title string, width, height int, opts ...Option) (*Window, error) {
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	for _, opt := range opts {
		opt()
	}
	switch backend {
	case rhi.BackendOpenGL:
		glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 6)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	case rhi.BackendVulkan:
		if !glfw.VulkanSupported() {
			return nil, fmt.Errorf("%w: glfw found no Vulkan loader", rhi.ErrUnsupportedBackend)
		}
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	default:
		return nil, fmt.Errorf("%w: %v", rhi.ErrUnsupportedBackend, backend)
	}
	gw, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("window: create: %w", err)
	}
	w := &Window{Window: gw, backend: backend}
	gw.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) { w.resized = true })
	gw.SetKeyCallback(func(gw *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.SetShouldClose(true)
		}
	})
	return w, nil
}

// Surface returns w as the surface type of its backend.
func (w *Window) Surface() rhi.Surface {
	if w.backend == rhi.BackendOpenGL {
		return glSurface{w}
	}
	return vulkanSurface{w}
}

// Resized reports whether the framebuffer changed size since the last
// call.
func (w *Window) Resized() bool {
	r := w.resized
	w.resized = false
	return r
}

// Present swaps the buffers of an OpenGL window. Vulkan windows present
// through the swapchain.
func (w *Window) Present() {
	if w.backend == rhi.BackendOpenGL {
		w.SwapBuffers()
	}
}

// ProcAddr returns glfw's vkGetInstanceProcAddr.
func ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

type glSurface struct{ w *Window }

func (s glSurface) FramebufferSize() (int, int) { return s.w.GetFramebufferSize() }
func (s glSurface) MakeContextCurrent()         { s.w.MakeContextCurrent() }
func (s glSurface) SwapInterval(interval int)   { glfw.SwapInterval(interval) }

type vulkanSurface struct{ w *Window }

func (s vulkanSurface) FramebufferSize() (int, int) { return s.w.GetFramebufferSize() }

func (s vulkanSurface) RequiredInstanceExtensions() []string {
	return s.w.GetRequiredInstanceExtensions()
}

func (s vulkanSurface) CreateVulkanSurface(instance interface{}) (uintptr, error) {
	return s.w.CreateWindowSurface(instance, nil)
}
