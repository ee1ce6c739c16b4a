package vulkan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/hal/vkapi/vksoft"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/state"
)

var testSPIRV = []uint32{0x07230203, 0x00010000, 0, 1, 0}

func newDevice(t *testing.T, opts ...vksoft.Option) (vkapi.Instance, *vksoft.Device) {
	t.Helper()
	inst, err := vksoft.NewInstance(opts...).Loader()(nil, false)
	if err != nil {
		t.Fatalf("Loader() = %v", err)
	}
	dev, err := inst.CreateDevice(0)
	if err != nil {
		t.Fatalf("CreateDevice() = %v", err)
	}
	return inst, dev.(*vksoft.Device)
}

// newRenderer returns a headless renderer with a 64x48 swapchain target.
func newRenderer(t *testing.T, opts ...vksoft.Option) (*Renderer, *vksoft.Device) {
	t.Helper()
	inst, dev := newDevice(t, opts...)
	r, err := New(inst, dev, 0, rhi.NewOptions(rhi.WithSize(64, 48)))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(r.Destroy)
	return r, dev
}

func newShader(t *testing.T, r *Renderer, stage gputypes.ShaderStage) rhi.ShaderID {
	t.Helper()
	id, err := r.CreateShader(&rhi.ShaderDescriptor{Stage: stage, SPIRV: testSPIRV})
	if err != nil {
		t.Fatalf("CreateShader(%v) = %v", stage, err)
	}
	return id
}

func newPipeline(t *testing.T, r *Renderer, desc rhi.PipelineDescriptor) rhi.PipelineID {
	t.Helper()
	desc.Vertex = newShader(t, r, gputypes.ShaderStageVertex)
	desc.Fragment = newShader(t, r, gputypes.ShaderStageFragment)
	id, err := r.CreatePipeline(&desc)
	if err != nil {
		t.Fatalf("CreatePipeline() = %v", err)
	}
	return id
}

func beginFrame(t *testing.T, r *Renderer) {
	t.Helper()
	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() = %v", err)
	}
}

func endFrame(t *testing.T, r *Renderer) {
	t.Helper()
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() = %v", err)
	}
}

func beginSwapchain(t *testing.T, r *Renderer) {
	t.Helper()
	if err := r.BeginRenderPass(r.SwapchainRenderPass(), r.SwapchainFramebuffer()); err != nil {
		t.Fatalf("BeginRenderPass() = %v", err)
	}
}

func endSwapchain(t *testing.T, r *Renderer) {
	t.Helper()
	if err := r.EndRenderPass(); err != nil {
		t.Fatalf("EndRenderPass() = %v", err)
	}
}

func expectValid(t *testing.T, r *Renderer, dev *vksoft.Device) {
	t.Helper()
	if err := r.WaitDeviceIdle(); err != nil {
		t.Fatalf("WaitDeviceIdle() = %v", err)
	}
	if errs := dev.ValidationErrors(); len(errs) != 0 {
		t.Fatalf("ValidationErrors() = %q", errs)
	}
}

// =============================================================================
// Construction and frames
// =============================================================================

func TestNewCaps(t *testing.T) {
	tests := []struct {
		name     string
		extended bool
		want     state.Set
	}{
		{"extended dynamic state", true, baseDynamic | extendedDynamic | extendedDynamic2},
		{"core only", false, baseDynamic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newRenderer(t, vksoft.WithExtendedDynamicState(tt.extended))
			caps := r.Caps()
			if caps.DynamicStates != tt.want {
				t.Errorf("Caps().DynamicStates = %v, want %v", caps.DynamicStates, tt.want)
			}
			if caps.FramesInFlight != framesInFlight || caps.UniformOffsetAlignment != 256 {
				t.Errorf("Caps() = %+v", caps)
			}
			if caps.MaxSamples != 8 {
				t.Errorf("Caps().MaxSamples = %d, want 8", caps.MaxSamples)
			}
		})
	}
}

func TestNewRejects(t *testing.T) {
	inst, dev := newDevice(t, vksoft.WithSampleCounts(0b11))
	if _, err := New(inst, nil, 0, rhi.DefaultOptions()); !errors.Is(err, rhi.ErrInvalidConfig) {
		t.Errorf("New(nil device) = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(nil, dev, 1, rhi.DefaultOptions()); !errors.Is(err, rhi.ErrInvalidConfig) {
		t.Errorf("New(surface without instance) = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(inst, dev, 0, rhi.NewOptions(rhi.WithSamples(4))); !errors.Is(err, rhi.ErrUnsupported) {
		t.Errorf("New(4 samples) = %v, want ErrUnsupported", err)
	}
}

func TestFrameSlotsAlternate(t *testing.T) {
	r, dev := newRenderer(t)
	for i := range 4 {
		if got, want := r.FrameSlot(), i%framesInFlight; got != want {
			t.Errorf("frame %d: FrameSlot() = %d, want %d", i, got, want)
		}
		beginFrame(t, r)
		beginSwapchain(t, r)
		endSwapchain(t, r)
		endFrame(t, r)
	}
	expectValid(t, r, dev)
}

func TestFrameMisuse(t *testing.T) {
	r, _ := newRenderer(t)
	if err := r.EndFrame(); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("EndFrame() without frame = %v, want ErrInvalidState", err)
	}
	if err := r.BeginRenderPass(r.SwapchainRenderPass(), r.SwapchainFramebuffer()); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("BeginRenderPass() outside frame = %v, want ErrInvalidState", err)
	}
	beginFrame(t, r)
	if err := r.BeginFrame(); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("nested BeginFrame() = %v, want ErrInvalidState", err)
	}
	beginSwapchain(t, r)
	if err := r.EndFrame(); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("EndFrame() inside pass = %v, want ErrInvalidState", err)
	}
	if err := r.SetSwapchainSize(32, 32); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("SetSwapchainSize() inside pass = %v, want ErrInvalidState", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)
}

func TestResizeRetriesFrame(t *testing.T) {
	win := vksoft.NewWindow(64, 48)
	vi, err := vksoft.NewInstance().Loader()(win.RequiredInstanceExtensions(), false)
	if err != nil {
		t.Fatalf("Loader() = %v", err)
	}
	surface, err := vi.CreateSurface(win.CreateVulkanSurface)
	if err != nil {
		t.Fatalf("CreateSurface() = %v", err)
	}
	dev, err := vi.CreateDevice(surface)
	if err != nil {
		t.Fatalf("CreateDevice() = %v", err)
	}
	r, err := New(vi, dev, surface, rhi.NewOptions(rhi.WithSurface(win)))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(r.Destroy)
	sd := dev.(*vksoft.Device)

	beginFrame(t, r)
	beginSwapchain(t, r)
	if err := r.ClearColorAttachment(0, mgl32.Vec4{0, 0, 1, 1}); err != nil {
		t.Fatalf("ClearColorAttachment() = %v", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)

	win.SetSize(32, 16)
	if err := r.BeginFrame(); !errors.Is(err, rhi.ErrFrameRetry) {
		t.Fatalf("BeginFrame() after resize = %v, want ErrFrameRetry", err)
	}
	beginFrame(t, r)
	if r.swap.width != 32 || r.swap.height != 16 {
		t.Errorf("swapchain = %dx%d, want 32x16", r.swap.width, r.swap.height)
	}
	beginSwapchain(t, r)
	if got := r.Machine().Live().Viewport; got.Width != 32 || got.Height != 16 {
		t.Errorf("viewport after begin = %+v, want 32x16", got)
	}
	endSwapchain(t, r)
	endFrame(t, r)
	expectValid(t, r, sd)

	if _, presents := sd.Presented(); presents != 2 {
		t.Errorf("Presented() count = %d, want 2", presents)
	}
}

func TestFailedSubmitLeavesSlotUsable(t *testing.T) {
	r, dev := newRenderer(t)
	beginFrame(t, r)
	slot := r.FrameSlot()
	dev.FailNextSubmit(vkapi.ErrorDeviceLost)
	if err := r.EndFrame(); !errors.Is(err, rhi.ErrDeviceLost) {
		t.Fatalf("EndFrame() = %v, want ErrDeviceLost", err)
	}
	if got := r.FrameSlot(); got != slot {
		t.Errorf("FrameSlot() after failed submit = %d, want %d", got, slot)
	}

	// The slot fence must still be signaled, or this wait never returns.
	beginFrame(t, r)
	endFrame(t, r)
	expectValid(t, r, dev)
}

func TestDestroyReleasesEverything(t *testing.T) {
	inst, dev := newDevice(t)
	r, err := New(inst, dev, 0, rhi.NewOptions(rhi.WithSize(32, 32), rhi.WithSamples(4)))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	slot := rhi.Descriptor{Type: rhi.DescriptorUniformBuffer, Binding: 0, Stages: gputypes.ShaderStageVertex}
	p := newPipeline(t, r, rhi.PipelineDescriptor{Descriptors: []rhi.Descriptor{slot}})
	buf, err := r.CreateBuffer(&rhi.BufferDescriptor{Size: 64, Usage: gputypes.BufferUsageUniform, Mode: rhi.BufferDynamic})
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	b, _ := rhi.BindBuffer(slot, buf, 0, 0)
	if _, err := r.CreateDescriptorSetBinding(p, []rhi.DescriptorBinding{b}); err != nil {
		t.Fatalf("CreateDescriptorSetBinding() = %v", err)
	}
	if _, err := r.CreateImage(&rhi.ImageDescriptor{Width: 16, Height: 16, Format: gputypes.TextureFormatRGBA8Unorm,
		Usage: gputypes.TextureUsageTextureBinding}); err != nil {
		t.Fatalf("CreateImage() = %v", err)
	}

	r.Destroy()
	if got := dev.Objects(); got.Total() != 0 {
		t.Errorf("Objects() after Destroy = %+v, want none", got)
	}
	if err := r.BeginFrame(); !errors.Is(err, rhi.ErrDestroyed) {
		t.Errorf("BeginFrame() after Destroy = %v, want ErrDestroyed", err)
	}
	r.Destroy()
}

// =============================================================================
// Render passes
// =============================================================================

func TestTwoAttachmentClearReadback(t *testing.T) {
	r, dev := newRenderer(t)
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
	pass, err := r.CreateRenderPass(&rhi.RenderPassDescriptor{Colors: []rhi.AttachmentDescriptor{
		{Format: desc.Format, Load: gputypes.LoadOpClear, Store: gputypes.StoreOpStore, ClearColor: mgl32.Vec4{1, 0, 0, 1}},
		{Format: desc.Format, Load: gputypes.LoadOpClear, Store: gputypes.StoreOpStore, ClearColor: mgl32.Vec4{0, 0, 1, 1}},
	}})
	if err != nil {
		t.Fatalf("CreateRenderPass() = %v", err)
	}
	fb, err := r.CreateFramebuffer(&rhi.FramebufferDescriptor{RenderPass: pass, Colors: imgs[:]})
	if err != nil {
		t.Fatalf("CreateFramebuffer() = %v", err)
	}
	beginFrame(t, r)
	if err := r.BeginRenderPass(pass, fb); err != nil {
		t.Fatalf("BeginRenderPass() = %v", err)
	}
	if err := r.EndRenderPass(); err != nil {
		t.Fatalf("EndRenderPass() = %v", err)
	}
	endFrame(t, r)

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
	expectValid(t, r, dev)
}

func TestFramebufferPassMismatch(t *testing.T) {
	r, _ := newRenderer(t)
	img, err := r.CreateImage(&rhi.ImageDescriptor{Width: 8, Height: 8, Format: gputypes.TextureFormatR8Unorm,
		Usage: gputypes.TextureUsageRenderAttachment})
	if err != nil {
		t.Fatalf("CreateImage() = %v", err)
	}
	pass, err := r.CreateRenderPass(&rhi.RenderPassDescriptor{Colors: []rhi.AttachmentDescriptor{{Format: gputypes.TextureFormatR8Unorm}}})
	if err != nil {
		t.Fatalf("CreateRenderPass() = %v", err)
	}
	fb, err := r.CreateFramebuffer(&rhi.FramebufferDescriptor{RenderPass: pass, Colors: []rhi.ImageID{img}})
	if err != nil {
		t.Fatalf("CreateFramebuffer() = %v", err)
	}
	beginFrame(t, r)
	defer endFrame(t, r)
	if err := r.BeginRenderPass(r.SwapchainRenderPass(), fb); !errors.Is(err, rhi.ErrMismatch) {
		t.Errorf("BeginRenderPass(incompatible) = %v, want ErrMismatch", err)
	}
	if got := r.Stats(); got.RenderPasses != 1 || got.Framebuffers != 1 {
		t.Errorf("Stats() = %+v, want one pass and one framebuffer", got)
	}
}

func TestSetSamplesRebuildsPipelines(t *testing.T) {
	r, dev := newRenderer(t)
	p := newPipeline(t, r, rhi.PipelineDescriptor{Dynamic: state.All})
	if err := r.SetSamples(4); err != nil {
		t.Fatalf("SetSamples(4) = %v", err)
	}
	if err := r.SetSamples(3); !errors.Is(err, rhi.ErrUnsupported) {
		t.Errorf("SetSamples(3) = %v, want ErrUnsupported", err)
	}
	beginFrame(t, r)
	beginSwapchain(t, r)
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	if err := r.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw() = %v", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)
	expectValid(t, r, dev)
	if got := dev.Draws(); got != 1 {
		t.Errorf("Draws() = %d, want 1", got)
	}
}

// =============================================================================
// Buffers
// =============================================================================

func TestUniformUpdateAtOffset(t *testing.T) {
	tests := []struct {
		name string
		mode rhi.BufferMode
	}{
		{"static", rhi.BufferStatic},
		{"dynamic", rhi.BufferDynamic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dev := newRenderer(t)
			buf, err := r.CreateBuffer(&rhi.BufferDescriptor{Size: 16, Usage: gputypes.BufferUsageUniform, Mode: tt.mode})
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
			want := []uint32{0, 0x3F800000, 0, 0}
			for i, w := range want {
				if v := binary.LittleEndian.Uint32(got[4*i:]); v != w {
					t.Errorf("word %d = %#x, want %#x", i, v, w)
				}
			}
			if err := r.UpdateBufferData(buf, 14, one); !errors.Is(err, rhi.ErrOutOfRange) {
				t.Errorf("UpdateBufferData(past end) = %v, want ErrOutOfRange", err)
			}
			expectValid(t, r, dev)
		})
	}
}

func TestDynamicBufferRegionsFollowSlots(t *testing.T) {
	r, _ := newRenderer(t)
	id, err := r.CreateBuffer(&rhi.BufferDescriptor{Size: 4, Usage: gputypes.BufferUsageVertex, Mode: rhi.BufferDynamic})
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	b, _ := r.buffers.Get(arena.Handle(id))
	if b.stride != 256 {
		t.Fatalf("stride = %d, want 256", b.stride)
	}
	for i := range 3 {
		beginFrame(t, r)
		if err := r.SetBufferData(id, []byte{byte(i), 0, 0, 0}); err != nil {
			t.Fatalf("SetBufferData() = %v", err)
		}
		if got, want := r.base(b), uint64(r.FrameSlot()*b.stride); got != want {
			t.Errorf("frame %d: base() = %d, want %d", i, got, want)
		}
		endFrame(t, r)
	}
	beginFrame(t, r)
	defer endFrame(t, r)
	if got := b.region(r.FrameSlot())[0]; got != 2 {
		t.Errorf("refreshed region holds %d, want the newest value 2", got)
	}
}

// =============================================================================
// Pipeline state
// =============================================================================

func TestRebindReissuesOnlyBlendConstants(t *testing.T) {
	r, dev := newRenderer(t)
	p := newPipeline(t, r, rhi.PipelineDescriptor{Dynamic: state.All})
	beginFrame(t, r)
	beginSwapchain(t, r)
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	dev.ResetCalls()
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	tests := []struct {
		call string
		want int
	}{
		{"CmdSetBlendConstants", 1},
		{"CmdSetViewport", 0},
		{"CmdSetScissor", 0},
		{"CmdSetDepthWriteEnable", 0},
		{"CmdSetLineWidth", 0},
		{"CmdBindPipeline", 1},
	}
	for _, tt := range tests {
		if got := dev.Calls(tt.call); got != tt.want {
			t.Errorf("Calls(%q) = %d, want %d", tt.call, got, tt.want)
		}
	}
	if err := r.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw() = %v", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)
	expectValid(t, r, dev)
}

func TestBakedKindsStayStale(t *testing.T) {
	r, dev := newRenderer(t, vksoft.WithExtendedDynamicState(false))
	id := newPipeline(t, r, rhi.PipelineDescriptor{Dynamic: state.All})
	p, _ := r.pipelines.Get(arena.Handle(id))
	if p.Dynamic.Has(state.KindCullMode) {
		t.Error("cull mode dynamic without extended dynamic state")
	}
	beginFrame(t, r)
	beginSwapchain(t, r)
	if err := r.BindPipeline(id); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	dev.ResetCalls()
	r.SetCullMode(gputypes.CullModeNone)
	if got := dev.Calls("CmdSetCullMode"); got != 0 {
		t.Errorf("Calls(CmdSetCullMode) = %d, want 0", got)
	}
	if !r.Machine().Stale().Has(state.KindCullMode) {
		t.Error("baked cull mode not stale after set")
	}
	r.SetBlendConstants(mgl32.Vec4{0.25, 0.5, 0.75, 1})
	if got := dev.Calls("CmdSetBlendConstants"); got != 1 {
		t.Errorf("Calls(CmdSetBlendConstants) = %d, want 1", got)
	}
	if got := p.Known.BlendConstants; got != (mgl32.Vec4{0.25, 0.5, 0.75, 1}) {
		t.Errorf("Known.BlendConstants = %v, want the value set", got)
	}
	endSwapchain(t, r)
	endFrame(t, r)
}

func TestBindPipelineChecksPass(t *testing.T) {
	r, _ := newRenderer(t)
	img, _ := r.CreateImage(&rhi.ImageDescriptor{Width: 8, Height: 8, Format: gputypes.TextureFormatR8Unorm,
		Usage: gputypes.TextureUsageRenderAttachment})
	pass, err := r.CreateRenderPass(&rhi.RenderPassDescriptor{Colors: []rhi.AttachmentDescriptor{{Format: gputypes.TextureFormatR8Unorm}}})
	if err != nil {
		t.Fatalf("CreateRenderPass() = %v", err)
	}
	fb, _ := r.CreateFramebuffer(&rhi.FramebufferDescriptor{RenderPass: pass, Colors: []rhi.ImageID{img}})
	p := newPipeline(t, r, rhi.PipelineDescriptor{})

	beginFrame(t, r)
	defer endFrame(t, r)
	if err := r.BindPipeline(p); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("BindPipeline() outside pass = %v, want ErrInvalidState", err)
	}
	if err := r.BeginRenderPass(pass, fb); err != nil {
		t.Fatalf("BeginRenderPass() = %v", err)
	}
	defer r.EndRenderPass()
	if err := r.BindPipeline(p); !errors.Is(err, rhi.ErrMismatch) {
		t.Errorf("BindPipeline(swapchain pipeline in R8 pass) = %v, want ErrMismatch", err)
	}
}

// =============================================================================
// Shaders
// =============================================================================

func TestShaderCompileError(t *testing.T) {
	r, _ := newRenderer(t)
	tests := []struct {
		name string
		desc rhi.ShaderDescriptor
	}{
		{"bad WGSL", rhi.ShaderDescriptor{Stage: gputypes.ShaderStageFragment, Source: "fn main( {"}},
		{"bad SPIR-V", rhi.ShaderDescriptor{Stage: gputypes.ShaderStageFragment, SPIRV: []uint32{1, 2, 3, 4, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.CreateShader(&tt.desc)
			var ce *rhi.ShaderCompileError
			if !errors.As(err, &ce) {
				t.Fatalf("CreateShader() = %v, want *ShaderCompileError", err)
			}
			if ce.Stage != gputypes.ShaderStageFragment || ce.Log == "" {
				t.Errorf("ShaderCompileError = %+v", ce)
			}
		})
	}
	if got := r.Stats().Shaders; got != 0 {
		t.Errorf("Stats().Shaders = %d, want 0", got)
	}
}

func TestDestroyedShaderOutlivesPipeline(t *testing.T) {
	r, dev := newRenderer(t)
	vs := newShader(t, r, gputypes.ShaderStageVertex)
	fs := newShader(t, r, gputypes.ShaderStageFragment)
	p, err := r.CreatePipeline(&rhi.PipelineDescriptor{Vertex: vs, Fragment: fs})
	if err != nil {
		t.Fatalf("CreatePipeline() = %v", err)
	}
	r.DestroyShader(vs)
	r.DestroyShader(fs)
	if got := dev.Objects().ShaderModules; got != 2 {
		t.Errorf("ShaderModules with live pipeline = %d, want 2", got)
	}
	r.DestroyPipeline(p)
	if err := r.WaitDeviceIdle(); err != nil {
		t.Fatalf("WaitDeviceIdle() = %v", err)
	}
	if got := dev.Objects().ShaderModules; got != 0 {
		t.Errorf("ShaderModules after pipeline destroy = %d, want 0", got)
	}
}

// =============================================================================
// Descriptor set bindings
// =============================================================================

func TestDescriptorPoolSizing(t *testing.T) {
	r, dev := newRenderer(t)
	ubo := rhi.Descriptor{Type: rhi.DescriptorUniformBuffer, Binding: 0, Stages: gputypes.ShaderStageVertex}
	arr := rhi.Descriptor{Type: rhi.DescriptorSampledImageArray, Binding: 1, Stages: gputypes.ShaderStageFragment, Count: 4}
	p := newPipeline(t, r, rhi.PipelineDescriptor{Descriptors: []rhi.Descriptor{ubo, arr}})
	buf, _ := r.CreateBuffer(&rhi.BufferDescriptor{Size: 64, Usage: gputypes.BufferUsageUniform})
	desc := rhi.ImageDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageTextureBinding}
	ids := make([]rhi.ImageID, 2)
	for i := range ids {
		ids[i], _ = r.CreateImage(&desc)
	}
	bb, _ := rhi.BindBuffer(ubo, buf, 0, 0)
	ba, err := rhi.BindImageArray(arr, ids)
	if err != nil {
		t.Fatalf("BindImageArray() = %v", err)
	}
	id, err := r.CreateDescriptorSetBinding(p, []rhi.DescriptorBinding{bb, ba})
	if err != nil {
		t.Fatalf("CreateDescriptorSetBinding() = %v", err)
	}
	d, _ := r.bindings.Get(arena.Handle(id))
	info, ok := dev.DescriptorPoolInfo(d.pool)
	if !ok {
		t.Fatal("DescriptorPoolInfo() found no pool")
	}
	if info.MaxSets != framesInFlight {
		t.Errorf("MaxSets = %d, want %d", info.MaxSets, framesInFlight)
	}
	want := []vkapi.DescriptorPoolSize{
		{Type: vkapi.DescriptorTypeUniformBuffer, Count: framesInFlight},
		{Type: vkapi.DescriptorTypeCombinedImageSampler, Count: 4 * framesInFlight},
	}
	if len(info.Sizes) != len(want) {
		t.Fatalf("Sizes = %+v, want %+v", info.Sizes, want)
	}
	for i := range want {
		if info.Sizes[i] != want[i] {
			t.Errorf("Sizes[%d] = %+v, want %+v", i, info.Sizes[i], want[i])
		}
	}
	if got := len(r.writes(d, 0)[1].Images); got != 4 {
		t.Errorf("image array writes = %d, want 4 padded entries", got)
	}
}

func TestUniformBindingAlignment(t *testing.T) {
	r, dev := newRenderer(t)
	slot := rhi.Descriptor{Type: rhi.DescriptorUniformBuffer, Binding: 1, Stages: gputypes.ShaderStageVertex}
	p := newPipeline(t, r, rhi.PipelineDescriptor{Descriptors: []rhi.Descriptor{slot}})
	buf, err := r.CreateBuffer(&rhi.BufferDescriptor{Size: 512, Usage: gputypes.BufferUsageUniform, Mode: rhi.BufferDynamic})
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	unaligned, _ := rhi.BindBuffer(slot, buf, 4, 16)
	if _, err := r.CreateDescriptorSetBinding(p, []rhi.DescriptorBinding{unaligned}); !errors.Is(err, rhi.ErrInvalidDescriptor) {
		t.Errorf("CreateDescriptorSetBinding(offset 4) = %v, want ErrInvalidDescriptor", err)
	}
	tail, _ := rhi.BindBuffer(slot, buf, 256, 0)
	set, err := r.CreateDescriptorSetBinding(p, []rhi.DescriptorBinding{tail})
	if err != nil {
		t.Fatalf("CreateDescriptorSetBinding() = %v", err)
	}

	for range 2 {
		beginFrame(t, r)
		if err := r.BindDescriptorSetBinding(set); !errors.Is(err, rhi.ErrInvalidState) {
			t.Errorf("BindDescriptorSetBinding() without pipeline = %v, want ErrInvalidState", err)
		}
		beginSwapchain(t, r)
		if err := r.BindPipeline(p); err != nil {
			t.Fatalf("BindPipeline() = %v", err)
		}
		if err := r.BindDescriptorSetBinding(set); err != nil {
			t.Fatalf("BindDescriptorSetBinding() = %v", err)
		}
		if err := r.UpdateDescriptorSetBinding(set, []rhi.DescriptorBinding{tail}); !errors.Is(err, rhi.ErrInvalidState) {
			t.Errorf("UpdateDescriptorSetBinding() after bind = %v, want ErrInvalidState", err)
		}
		if err := r.Draw(3, 1, 0, 0); err != nil {
			t.Fatalf("Draw() = %v", err)
		}
		endSwapchain(t, r)
		endFrame(t, r)
	}
	expectValid(t, r, dev)

	d, _ := r.bindings.Get(arena.Handle(set))
	b, _ := r.buffers.Get(arena.Handle(buf))
	for i := range framesInFlight {
		w := r.writes(d, i)[0].Buffers[0]
		if want := uint64(i*b.stride + 256); w.Offset != want || w.Range != 256 {
			t.Errorf("slot %d write = %+v, want offset %d range 256", i, w, want)
		}
	}
}

func TestUpdateDescriptorSetBinding(t *testing.T) {
	r, dev := newRenderer(t)
	slot := rhi.Descriptor{Type: rhi.DescriptorSampledImage, Binding: 0, Stages: gputypes.ShaderStageFragment}
	p := newPipeline(t, r, rhi.PipelineDescriptor{Descriptors: []rhi.Descriptor{slot}})
	desc := rhi.ImageDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageTextureBinding}
	a, _ := r.CreateImage(&desc)
	b, _ := r.CreateImage(&desc)

	ba, _ := rhi.BindImage(slot, a)
	set, err := r.CreateDescriptorSetBinding(p, []rhi.DescriptorBinding{ba})
	if err != nil {
		t.Fatalf("CreateDescriptorSetBinding() = %v", err)
	}
	bb, _ := rhi.BindImage(slot, b)
	if err := r.UpdateDescriptorSetBinding(set, []rhi.DescriptorBinding{bb}); err != nil {
		t.Fatalf("UpdateDescriptorSetBinding() = %v", err)
	}
	beginFrame(t, r)
	beginSwapchain(t, r)
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	if err := r.BindDescriptorSetBinding(set); err != nil {
		t.Fatalf("BindDescriptorSetBinding() = %v", err)
	}
	if err := r.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw() = %v", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)
	expectValid(t, r, dev)

	d, _ := r.bindings.Get(arena.Handle(set))
	img, _ := r.images.Get(arena.Handle(b))
	if got := r.writes(d, 0)[0].Images[0].View; got != img.view {
		t.Errorf("written view = %d, want updated image view %d", got, img.view)
	}
}

// =============================================================================
// Draws and dispatches
// =============================================================================

func TestDrawPreconditions(t *testing.T) {
	r, dev := newRenderer(t)
	p := newPipeline(t, r, rhi.PipelineDescriptor{})
	indirect, err := r.CreateBuffer(&rhi.BufferDescriptor{Size: 32, Usage: gputypes.BufferUsageIndirect})
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	beginFrame(t, r)
	if err := r.Draw(3, 1, 0, 0); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("Draw() outside pass = %v, want ErrInvalidState", err)
	}
	beginSwapchain(t, r)
	if err := r.Draw(3, 1, 0, 0); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("Draw() without pipeline = %v, want ErrInvalidState", err)
	}
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	if err := r.Draw(3, 1, 0, 0); err != nil {
		t.Errorf("Draw() = %v", err)
	}
	if err := r.DrawIndexed(3, 1, 0, 0, 0); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("DrawIndexed() without index buffer = %v, want ErrInvalidState", err)
	}
	if err := r.DrawIndirect(indirect, 0, 2, 0); err != nil {
		t.Errorf("DrawIndirect(2 packed) = %v", err)
	}
	if err := r.DrawIndirect(indirect, 0, 2, 20); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Errorf("DrawIndirect(2 x 20) = %v, want ErrOutOfRange", err)
	}
	if err := r.DrawIndirect(indirect, 2, 1, 0); !errors.Is(err, rhi.ErrInvalidDescriptor) {
		t.Errorf("DrawIndirect(offset 2) = %v, want ErrInvalidDescriptor", err)
	}
	if err := r.DispatchCompute(1, 1, 1); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("DispatchCompute() inside pass = %v, want ErrInvalidState", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)
	expectValid(t, r, dev)
	if got := dev.Draws(); got != 2 {
		t.Errorf("Draws() = %d, want 2", got)
	}
}

func TestIndexedDraw(t *testing.T) {
	r, dev := newRenderer(t)
	p := newPipeline(t, r, rhi.PipelineDescriptor{Layouts: []rhi.VertexLayout{{Stride: 8, Attributes: []rhi.VertexAttribute{
		{Location: 0, Format: gputypes.VertexFormatFloat32x2},
	}}}})
	vb, _ := r.CreateBuffer(&rhi.BufferDescriptor{Size: 24, Usage: gputypes.BufferUsageVertex})
	ib, _ := r.CreateBuffer(&rhi.BufferDescriptor{Size: 12, Usage: gputypes.BufferUsageIndex})
	va, err := r.CreateVertexArray(&rhi.VertexArrayDescriptor{
		Layouts: []rhi.VertexLayout{{Stride: 8, Attributes: []rhi.VertexAttribute{
			{Location: 0, Format: gputypes.VertexFormatFloat32x2},
		}}},
		VertexBuffers: []rhi.BufferID{vb},
		IndexBuffer:   ib,
		IndexFormat:   gputypes.IndexFormatUint16,
	})
	if err != nil {
		t.Fatalf("CreateVertexArray() = %v", err)
	}
	if _, err := r.CreateVertexArray(&rhi.VertexArrayDescriptor{
		Layouts:       []rhi.VertexLayout{{Stride: 4}},
		VertexBuffers: []rhi.BufferID{ib},
	}); !errors.Is(err, rhi.ErrMismatch) {
		t.Errorf("CreateVertexArray(index buffer as vertex) = %v, want ErrMismatch", err)
	}
	beginFrame(t, r)
	beginSwapchain(t, r)
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	if err := r.BindVertexArray(va); err != nil {
		t.Fatalf("BindVertexArray() = %v", err)
	}
	if err := r.DrawIndexed(3, 1, 0, 0, 0); err != nil {
		t.Fatalf("DrawIndexed() = %v", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)
	expectValid(t, r, dev)
	if got := dev.Calls("CmdBindIndexBuffer"); got != 1 {
		t.Errorf("Calls(CmdBindIndexBuffer) = %d, want 1", got)
	}
}

func TestComputeDispatch(t *testing.T) {
	r, dev := newRenderer(t)
	cs := newShader(t, r, gputypes.ShaderStageCompute)
	p, err := r.CreateComputePipeline(&rhi.ComputePipelineDescriptor{Compute: cs})
	if err != nil {
		t.Fatalf("CreateComputePipeline() = %v", err)
	}
	args, _ := r.CreateBuffer(&rhi.BufferDescriptor{Size: 12, Usage: gputypes.BufferUsageIndirect})
	if err := r.BindPipeline(p); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("BindPipeline() outside frame = %v, want ErrInvalidState", err)
	}
	beginFrame(t, r)
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline(compute) = %v", err)
	}
	if r.Machine().Bound() != nil {
		t.Error("compute bind left a graphics pipeline bound in the state machine")
	}
	if err := r.DispatchCompute(4, 4, 1); err != nil {
		t.Errorf("DispatchCompute() = %v", err)
	}
	if err := r.DispatchComputeIndirect(args, 0); err != nil {
		t.Errorf("DispatchComputeIndirect() = %v", err)
	}
	if err := r.DispatchComputeIndirect(args, 4); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Errorf("DispatchComputeIndirect(offset 4) = %v, want ErrOutOfRange", err)
	}
	dev.ResetCalls()
	if err := r.MemoryBarrier(rhi.BarrierShaderStorage | rhi.BarrierIndirect); err != nil {
		t.Errorf("MemoryBarrier() = %v", err)
	}
	if got := dev.Calls("CmdPipelineBarrier"); got != 1 {
		t.Errorf("Calls(CmdPipelineBarrier) = %d, want 1", got)
	}
	endFrame(t, r)
	expectValid(t, r, dev)
	if got := dev.Dispatches(); got != 2 {
		t.Errorf("Dispatches() = %d, want 2", got)
	}
}

// =============================================================================
// UI hooks
// =============================================================================

func TestImGuiHooks(t *testing.T) {
	r, dev := newRenderer(t)
	p := newPipeline(t, r, rhi.PipelineDescriptor{Dynamic: state.All})
	var info rhi.ImGuiInitInfo
	if err := r.InitForImGui(func(i rhi.ImGuiInitInfo) error { info = i; return nil }); err != nil {
		t.Fatalf("InitForImGui() = %v", err)
	}
	if info.Backend != rhi.BackendVulkan || info.Vulkan == nil || info.Vulkan.DescriptorPool == 0 {
		t.Fatalf("init info = %+v", info)
	}
	if info.Vulkan.MinImageCount != framesInFlight || info.Vulkan.Samples != 1 {
		t.Errorf("Vulkan init info = %+v", *info.Vulkan)
	}
	if err := r.InitForImGui(func(rhi.ImGuiInitInfo) error { return nil }); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("second InitForImGui() = %v, want ErrInvalidState", err)
	}

	beginFrame(t, r)
	if err := r.RenderForImGui(func(rhi.ImGuiRenderInfo) {}); !errors.Is(err, rhi.ErrInvalidState) {
		t.Errorf("RenderForImGui() outside pass = %v, want ErrInvalidState", err)
	}
	beginSwapchain(t, r)
	if err := r.BindPipeline(p); err != nil {
		t.Fatalf("BindPipeline() = %v", err)
	}
	dev.ResetCalls()
	var cb vkapi.CommandBuffer
	if err := r.RenderForImGui(func(i rhi.ImGuiRenderInfo) { cb = i.CommandBuffer }); err != nil {
		t.Fatalf("RenderForImGui() = %v", err)
	}
	if cb != r.frames[r.slot].cb {
		t.Errorf("render info command buffer = %d, want the frame's", cb)
	}
	if got := dev.Calls("CmdBindPipeline"); got != 1 {
		t.Errorf("Calls(CmdBindPipeline) after UI = %d, want 1", got)
	}
	if got := r.Machine().Stale() & r.Caps().DynamicStates; got != 0 {
		t.Errorf("dynamic kinds stale after UI = %v, want none", got)
	}
	if err := r.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw() after UI = %v", err)
	}
	endSwapchain(t, r)
	endFrame(t, r)
	expectValid(t, r, dev)

	pools := dev.Objects().DescriptorPools
	called := false
	if err := r.TermForImGui(func() { called = true }); err != nil || !called {
		t.Errorf("TermForImGui() = %v, called %v", err, called)
	}
	if got := dev.Objects().DescriptorPools; got != pools-1 {
		t.Errorf("DescriptorPools after TermForImGui = %d, want %d", got, pools-1)
	}
}
