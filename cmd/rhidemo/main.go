//go:build !nogpu

// Command rhidemo opens a window and draws a tinted triangle over an
// animated background through the backend selected by RHI_BACKEND.
//
// Settings come from RHI_BACKEND, RHI_WIDTH, RHI_HEIGHT, RHI_SAMPLES,
// RHI_VSYNC and RHI_DEBUG, or a .env file setting them. Escape closes the
// window.
package main

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/factory"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/hal/glapi/gogl"
	"github.com/gogpu/rhi/hal/vkapi/vkgo"
	"github.com/gogpu/rhi/internal/window"
)

func init() {
	// glfw and OpenGL calls must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := window.Init(); err != nil {
		log.Fatal(err)
	}
	defer window.Terminate()

	win, err := window.Open(cfg.backend, "rhidemo ("+cfg.backend.String()+")", cfg.width, cfg.height)
	if err != nil {
		log.Fatal(err)
	}
	defer win.Destroy()

	f, err := factory.New(factoryConfig(cfg))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Shutdown()

	r, err := f.NewRenderer(append(cfg.options(), rhi.WithSurface(win.Surface()))...)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer r.Destroy()
	caps := r.Caps()
	log.Printf("Rendering with %s on %s (%d frames in flight)", r.Backend(), caps.DeviceName, caps.FramesInFlight)

	s, err := newScene(r)
	if err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}
	defer s.destroy()

	for !win.ShouldClose() {
		glfw.PollEvents()
		if win.Resized() {
			w, h := win.GetFramebufferSize()
			if w == 0 || h == 0 {
				glfw.WaitEvents()
				continue
			}
			if err := r.SetSwapchainSize(w, h); err != nil {
				log.Fatalf("Resize: %v", err)
			}
		}
		err := s.frame(glfw.GetTime())
		switch {
		case errors.Is(err, rhi.ErrFrameRetry):
			continue
		case err != nil:
			log.Fatalf("Frame: %v", err)
		}
		win.Present()
	}
	if err := r.WaitDeviceIdle(); err != nil {
		log.Printf("Wait idle: %v", err)
	}
}

func factoryConfig(cfg config) factory.Config {
	return factory.Config{
		Backend: cfg.backend,
		OpenGL: func(rhi.GLSurface) (glapi.Functions, error) {
			ctx, err := gogl.New()
			if err != nil {
				return nil, err
			}
			return ctx, nil
		},
		Vulkan: vkgo.Loader(window.ProcAddr()),
		Debug:  cfg.debug,
	}
}
