package factory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi/glsoft"
	"github.com/gogpu/rhi/hal/vkapi/vksoft"
)

// backendCase opens a windowed 64x64 renderer on one software backend.
type backendCase struct {
	name string
	open func(t *testing.T) rhi.Renderer
}

var backendCases = []backendCase{
	{"opengl", func(t *testing.T) rhi.Renderer {
		f, err := New(Config{Backend: rhi.BackendOpenGL, OpenGL: softGL})
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		return openRenderer(t, f, glsoft.New(64, 64))
	}},
	{"vulkan", func(t *testing.T) rhi.Renderer {
		f, err := New(Config{Backend: rhi.BackendVulkan, Vulkan: vksoft.NewInstance().Loader()})
		if err != nil {
			t.Fatalf("New() = %v", err)
		}
		return openRenderer(t, f, vksoft.NewWindow(64, 64))
	}},
}

func openRenderer(t *testing.T, f *Factory, s rhi.Surface) rhi.Renderer {
	t.Helper()
	r, err := f.NewRenderer(rhi.WithSurface(s))
	if err != nil {
		t.Fatalf("NewRenderer() = %v", err)
	}
	t.Cleanup(func() {
		if err := f.Shutdown(); err != nil {
			t.Errorf("Shutdown() = %v", err)
		}
	})
	return r
}

func forEachBackend(t *testing.T, fn func(t *testing.T, r rhi.Renderer)) {
	for _, bc := range backendCases {
		t.Run(bc.name, func(t *testing.T) {
			fn(t, bc.open(t))
		})
	}
}

func frame(t *testing.T, r rhi.Renderer, body func()) {
	t.Helper()
	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() = %v", err)
	}
	body()
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() = %v", err)
	}
}

// =============================================================================
// Frames
// =============================================================================

func TestConformanceFrameSlots(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r rhi.Renderer) {
		n := r.Caps().FramesInFlight
		for i := range 4 {
			if got, want := r.FrameSlot(), i%n; got != want {
				t.Errorf("frame %d: FrameSlot() = %d, want %d", i, got, want)
			}
			frame(t, r, func() {
				if err := r.BeginRenderPass(r.SwapchainRenderPass(), r.SwapchainFramebuffer()); err != nil {
					t.Fatalf("BeginRenderPass() = %v", err)
				}
				if err := r.ClearColorAttachment(0, mgl32.Vec4{0, 1, 0, 1}); err != nil {
					t.Errorf("ClearColorAttachment() = %v", err)
				}
				if err := r.EndRenderPass(); err != nil {
					t.Fatalf("EndRenderPass() = %v", err)
				}
			})
		}
		if err := r.WaitDeviceIdle(); err != nil {
			t.Errorf("WaitDeviceIdle() = %v", err)
		}
	})
}

// =============================================================================
// Resources
// =============================================================================

func TestConformanceTwoAttachmentClear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r rhi.Renderer) {
		desc := rhi.ImageDescriptor{Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm,
			Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding}
		var imgs [2]rhi.ImageID
		for i := range imgs {
			id, err := r.CreateImage(&desc)
			if err != nil {
				t.Fatalf("CreateImage() = %v", err)
			}
			imgs[i] = id
		}
		colors := [2]mgl32.Vec4{{1, 0, 0, 1}, {0, 0, 1, 1}}
		pass, err := r.CreateRenderPass(&rhi.RenderPassDescriptor{Colors: []rhi.AttachmentDescriptor{
			{Format: desc.Format, Load: gputypes.LoadOpClear, Store: gputypes.StoreOpStore, ClearColor: colors[0]},
			{Format: desc.Format, Load: gputypes.LoadOpClear, Store: gputypes.StoreOpStore, ClearColor: colors[1]},
		}})
		if err != nil {
			t.Fatalf("CreateRenderPass() = %v", err)
		}
		fb, err := r.CreateFramebuffer(&rhi.FramebufferDescriptor{RenderPass: pass, Colors: imgs[:]})
		if err != nil {
			t.Fatalf("CreateFramebuffer() = %v", err)
		}
		frame(t, r, func() {
			if err := r.BeginRenderPass(pass, fb); err != nil {
				t.Fatalf("BeginRenderPass() = %v", err)
			}
			if err := r.EndRenderPass(); err != nil {
				t.Fatalf("EndRenderPass() = %v", err)
			}
		})

		want := [2][]byte{
			bytes.Repeat([]byte{255, 0, 0, 255}, 64*64),
			bytes.Repeat([]byte{0, 0, 255, 255}, 64*64),
		}
		for i, id := range imgs {
			got := make([]byte, desc.LevelSize(0))
			if err := r.ReadImageData(id, 0, got); err != nil {
				t.Fatalf("ReadImageData(%d) = %v", i, err)
			}
			if !bytes.Equal(got, want[i]) {
				t.Errorf("attachment %d first pixel = %v, want %v", i, got[:4], want[i][:4])
			}
		}
	})
}

func TestConformanceDynamicUniformUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r rhi.Renderer) {
		buf, err := r.CreateBuffer(&rhi.BufferDescriptor{Size: 16, Usage: gputypes.BufferUsageUniform, Mode: rhi.BufferDynamic})
		if err != nil {
			t.Fatalf("CreateBuffer() = %v", err)
		}
		if err := r.SetBufferData(buf, make([]byte, 16)); err != nil {
			t.Fatalf("SetBufferData() = %v", err)
		}
		one := binary.LittleEndian.AppendUint32(nil, math.Float32bits(1))
		if err := r.UpdateBufferData(buf, 4, one); err != nil {
			t.Fatalf("UpdateBufferData() = %v", err)
		}
		got := make([]byte, 16)
		if err := r.ReadBufferData(buf, 0, got); err != nil {
			t.Fatalf("ReadBufferData() = %v", err)
		}
		want := []float32{0, 1, 0, 0}
		for i, w := range want {
			if v := math.Float32frombits(binary.LittleEndian.Uint32(got[4*i:])); v != w {
				t.Errorf("float %d = %v, want %v", i, v, w)
			}
		}
	})
}

func TestConformanceMipLevels(t *testing.T) {
	tests := []struct {
		width, height int
		want          int
	}{
		{1, 1, 1},
		{257, 1, 9},
		{64, 16, 7},
	}
	forEachBackend(t, func(t *testing.T, r rhi.Renderer) {
		for _, tt := range tests {
			id, err := r.CreateImage(&rhi.ImageDescriptor{Width: tt.width, Height: tt.height,
				Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageTextureBinding})
			if err != nil {
				t.Fatalf("CreateImage(%dx%d) = %v", tt.width, tt.height, err)
			}
			info, err := r.ImageInfo(id)
			if err != nil {
				t.Fatalf("ImageInfo() = %v", err)
			}
			if info.Levels != tt.want || info.Backend != r.Backend() {
				t.Errorf("%dx%d: ImageInfo() = levels %d backend %v, want %d %v",
					tt.width, tt.height, info.Levels, info.Backend, tt.want, r.Backend())
			}
			r.DestroyImage(id)
		}
	})
}

func TestConformanceDestroyedHandles(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r rhi.Renderer) {
		id, err := r.CreateImage(&rhi.ImageDescriptor{Width: 4, Height: 4,
			Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageTextureBinding})
		if err != nil {
			t.Fatalf("CreateImage() = %v", err)
		}
		if got := r.Stats().Images; got != 1 {
			t.Errorf("Stats().Images = %d, want 1", got)
		}
		r.DestroyImage(id)
		r.DestroyImage(id)
		r.DestroyImage(0)
		if got := r.Stats().Images; got != 0 {
			t.Errorf("Stats().Images after destroy = %d, want 0", got)
		}
		if _, err := r.ImageInfo(id); !errors.Is(err, rhi.ErrInvalidHandle) {
			t.Errorf("ImageInfo(destroyed) = %v, want ErrInvalidHandle", err)
		}
		next, err := r.CreateImage(&rhi.ImageDescriptor{Width: 4, Height: 4,
			Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageTextureBinding})
		if err != nil {
			t.Fatalf("CreateImage() = %v", err)
		}
		if next == id {
			t.Errorf("reused slot returned the stale handle %#x", uint64(id))
		}
		if err := r.SetImageData(id, 0, make([]byte, 64)); !errors.Is(err, rhi.ErrInvalidHandle) {
			t.Errorf("SetImageData(stale) = %v, want ErrInvalidHandle", err)
		}
	})
}

func TestConformanceShaderErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r rhi.Renderer) {
		// Neither GLSL nor WGSL accepts the directive.
		_, err := r.CreateShader(&rhi.ShaderDescriptor{Stage: gputypes.ShaderStageFragment, Source: "#error boom\n"})
		var ce *rhi.ShaderCompileError
		if !errors.As(err, &ce) {
			t.Fatalf("CreateShader() = %v, want *ShaderCompileError", err)
		}
		if ce.Stage != gputypes.ShaderStageFragment {
			t.Errorf("ShaderCompileError.Stage = %v, want fragment", ce.Stage)
		}
		if got := rhi.StatusOf(err); got != rhi.StatusFailure {
			t.Errorf("StatusOf() = %v, want failure", got)
		}
	})
}
