package vulkan

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/state"
)

const (
	// framesInFlight is the number of frame slots recorded ahead of the
	// GPU.
	framesInFlight = 2

	// maxImageArray bounds sampled image arrays.
	maxImageArray = 16

	// fenceTimeout bounds every wait on the device. Exceeding it is
	// reported as a lost device.
	fenceTimeout = uint64(10 * time.Second)
)

// Dynamic state kinds by the device feature that provides them.
var (
	baseDynamic = state.Of(state.KindViewport, state.KindScissor, state.KindLineWidth,
		state.KindDepthBias, state.KindBlendConstants, state.KindStencilCompareMask,
		state.KindStencilWriteMask, state.KindStencilReference)
	extendedDynamic = state.Of(state.KindCullMode, state.KindFrontFace, state.KindPrimitiveTopology,
		state.KindDepthTestEnable, state.KindDepthWriteEnable, state.KindDepthCompareOp,
		state.KindStencilTestEnable, state.KindStencilOp)
	extendedDynamic2 = state.Of(state.KindDepthBiasEnable, state.KindPrimitiveRestartEnable)

	// alwaysDynamic kinds are dynamic in every graphics pipeline so that
	// render passes of any extent can share them.
	alwaysDynamic = state.Of(state.KindViewport, state.KindScissor)
)

// Renderer is the Vulkan implementation of rhi.Renderer.
type Renderer struct {
	inst     vkapi.Instance
	dev      vkapi.Device
	surface  vkapi.Surface
	window   rhi.Surface
	opts     rhi.Options
	props    vkapi.DeviceProperties
	memTypes []vkapi.MemoryType
	caps     rhi.Caps
	machine  *state.Machine

	images       arena.Arena[*image]
	buffers      arena.Arena[*buffer]
	shaders      arena.Arena[*shader]
	pipelines    arena.Arena[*pipeline]
	passes       arena.Arena[*renderPass]
	framebuffers arena.Arena[*framebuffer]
	vertexArrays arena.Arena[*vertexArray]
	bindings     arena.Arena[*descriptorSetBinding]

	pool   vkapi.CommandPool
	frames [framesInFlight]frame
	// fence signals one-off submissions made outside the frame loop.
	fence vkapi.Fence

	slot       int
	submitted  int // slot of the last frame submission, -1 before the first
	recording  bool
	frameCount uint64

	swap swapchain

	pass        *renderPass
	fb          *framebuffer
	bound       *pipeline
	vertexArray *vertexArray

	imgui     *imguiState
	destroyed bool
}

// New creates a renderer on dev. A nonzero surface makes the renderer
// present to it; the renderer then owns the surface and destroys it
// through inst. The device is not owned. A non-nil opts.Surface supplies
// the extent when the surface leaves it to the application.
func New(inst vkapi.Instance, dev vkapi.Device, surface vkapi.Surface, opts rhi.Options) (*Renderer, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: nil Vulkan device", rhi.ErrInvalidConfig)
	}
	if surface != 0 && inst == nil {
		return nil, fmt.Errorf("%w: surface without an instance", rhi.ErrInvalidConfig)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		inst:      inst,
		dev:       dev,
		surface:   surface,
		window:    opts.Surface,
		opts:      opts,
		props:     dev.Properties(),
		memTypes:  dev.MemoryTypes(),
		submitted: -1,
	}
	r.caps = r.queryCaps()
	if opts.Samples > r.caps.MaxSamples {
		return nil, fmt.Errorf("%w: %d samples, device supports %d", rhi.ErrUnsupported, opts.Samples, r.caps.MaxSamples)
	}
	r.machine = state.NewMachine(r)
	if err := r.createFrames(); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createSwapchain(); err != nil {
		r.Destroy()
		return nil, err
	}
	rhi.Logger().Info("vulkan: renderer created",
		"device", r.caps.DeviceName,
		"api", fmt.Sprintf("%d.%d", r.props.APIVersion>>22, (r.props.APIVersion>>12)&0x3FF),
		"dynamic", r.caps.DynamicStates.String(),
		"samples", opts.Samples,
		"headless", surface == 0)
	return r, nil
}

func (r *Renderer) queryCaps() rhi.Caps {
	p := r.props
	dynamic := baseDynamic
	if p.ExtendedDynamicState {
		dynamic |= extendedDynamic
	}
	if p.ExtendedDynamicState2 {
		dynamic |= extendedDynamic2
	}
	return rhi.Caps{
		DeviceName:             p.DeviceName,
		MaxImageDimension:      int(p.MaxImageDimension2D),
		MaxSamples:             maxSamples(p.FramebufferColorSampleCounts & p.FramebufferDepthSampleCounts),
		MaxImageArray:          maxImageArray,
		UniformOffsetAlignment: max(int(p.MinUniformBufferOffsetAlignment), 1),
		FramesInFlight:         framesInFlight,
		DynamicStates:          dynamic,
	}
}

// maxSamples returns the highest sample count of mask up to 8.
func maxSamples(mask uint32) int {
	for n := 8; n > 1; n >>= 1 {
		if mask&uint32(n) != 0 {
			return n
		}
	}
	return 1
}

// Backend implements rhi.Renderer.
func (r *Renderer) Backend() rhi.BackendKind { return rhi.BackendVulkan }

// Caps implements rhi.Renderer.
func (r *Renderer) Caps() rhi.Caps { return r.caps }

// Stats implements rhi.Renderer. The swapchain pass and framebuffer are
// not counted.
func (r *Renderer) Stats() rhi.Stats {
	return rhi.Stats{
		Images:                r.images.Len(),
		Buffers:               r.buffers.Len(),
		Shaders:               r.shaders.Len(),
		Pipelines:             r.pipelines.Len(),
		RenderPasses:          r.passes.Len() - 1,
		Framebuffers:          r.framebuffers.Len() - 1,
		VertexArrays:          r.vertexArrays.Len(),
		DescriptorSetBindings: r.bindings.Len(),
	}
}

// Machine returns the pipeline state machine.
func (r *Renderer) Machine() *state.Machine { return r.machine }

// Device returns the device the renderer records on.
func (r *Renderer) Device() vkapi.Device { return r.dev }

// SetVSyncMode implements rhi.Renderer. The swapchain is rebuilt with the
// matching present mode.
func (r *Renderer) SetVSyncMode(m rhi.VSyncMode) error {
	if r.surface == 0 {
		return rhi.ErrNoSurface
	}
	if r.recording {
		return fmt.Errorf("%w: vsync change inside a frame", rhi.ErrInvalidState)
	}
	r.opts.VSync = m
	return r.rebuildSwapchain()
}

// SetSwapchainSize implements rhi.Renderer. A surface that reports its own
// extent takes precedence over the requested size.
func (r *Renderer) SetSwapchainSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: swapchain size %dx%d", rhi.ErrInvalidDescriptor, width, height)
	}
	if r.pass != nil {
		return fmt.Errorf("%w: resize inside a render pass", rhi.ErrInvalidState)
	}
	if r.recording {
		return fmt.Errorf("%w: resize inside a frame", rhi.ErrInvalidState)
	}
	r.opts.Width, r.opts.Height = width, height
	return r.rebuildSwapchain()
}

// SetSamples implements rhi.Renderer. Pipelines built for the swapchain
// pass are rebuilt for the new sample count.
func (r *Renderer) SetSamples(n int) error {
	if !rhi.ValidSampleCount(n) || n > r.caps.MaxSamples {
		return fmt.Errorf("%w: %d samples", rhi.ErrUnsupported, n)
	}
	if r.pass != nil {
		return fmt.Errorf("%w: sample change inside a render pass", rhi.ErrInvalidState)
	}
	if r.recording {
		return fmt.Errorf("%w: sample change inside a frame", rhi.ErrInvalidState)
	}
	if err := r.waitIdle(); err != nil {
		return err
	}
	r.opts.Samples = n
	p, _ := r.passes.Get(arena.Handle(r.swap.pass))
	p.desc.Samples = n
	native, err := r.createNativePass(&p.desc, r.canonicalSpecs(&p.desc))
	if err != nil {
		return err
	}
	r.dev.DestroyRenderPass(p.native)
	p.native = native
	if err := r.rebuildSwapchain(); err != nil {
		return err
	}
	return r.rebuildPipelines(r.swap.pass)
}

// SwapchainRenderPass implements rhi.Renderer.
func (r *Renderer) SwapchainRenderPass() rhi.RenderPassID { return r.swap.pass }

// SwapchainFramebuffer implements rhi.Renderer.
func (r *Renderer) SwapchainFramebuffer() rhi.FramebufferID { return r.swap.framebuffer }

// Destroy implements rhi.Renderer. The surface is destroyed with the
// renderer; the device is left to its owner.
func (r *Renderer) Destroy() {
	if r.destroyed {
		return
	}
	if err := r.dev.WaitIdle(); err != nil {
		rhi.Logger().Warn("vulkan: wait idle during teardown", "error", err)
	}
	r.recording = false
	r.pass, r.fb = nil, nil
	r.drainReleases()
	r.destroyImGui()

	for _, h := range r.bindings.Handles() {
		r.DestroyDescriptorSetBinding(rhi.DescriptorSetBindingID(h))
	}
	for _, h := range r.vertexArrays.Handles() {
		r.DestroyVertexArray(rhi.VertexArrayID(h))
	}
	for _, h := range r.pipelines.Handles() {
		r.DestroyPipeline(rhi.PipelineID(h))
	}
	for _, h := range r.shaders.Handles() {
		r.DestroyShader(rhi.ShaderID(h))
	}
	r.destroySwapchain()
	for _, h := range r.framebuffers.Handles() {
		r.DestroyFramebuffer(rhi.FramebufferID(h))
	}
	for _, h := range r.passes.Handles() {
		r.DestroyRenderPass(rhi.RenderPassID(h))
	}
	for _, h := range r.images.Handles() {
		r.DestroyImage(rhi.ImageID(h))
	}
	for _, h := range r.buffers.Handles() {
		r.DestroyBuffer(rhi.BufferID(h))
	}
	r.drainReleases()
	r.destroyFrames()
	if r.surface != 0 {
		r.inst.DestroySurface(r.surface)
		r.surface = 0
	}
	r.destroyed = true
}

// vkError maps a driver result onto the rhi sentinels.
func vkError(op string, err error) error {
	if err == nil {
		return nil
	}
	var res vkapi.Result
	if errors.As(err, &res) {
		switch res {
		case vkapi.ErrorOutOfHostMemory, vkapi.ErrorOutOfDeviceMemory, vkapi.ErrorOutOfPoolMemory:
			return fmt.Errorf("%w: %s: %v", rhi.ErrOutOfMemory, op, res)
		case vkapi.ErrorFormatNotSupported, vkapi.ErrorFeatureNotPresent:
			return fmt.Errorf("%w: %s: %v", rhi.ErrUnsupported, op, res)
		case vkapi.ErrorDeviceLost, vkapi.Timeout:
			return fmt.Errorf("%w: %s: %v", rhi.ErrDeviceLost, op, res)
		}
	}
	return fmt.Errorf("vulkan: %s: %w", op, err)
}

var _ rhi.Renderer = (*Renderer)(nil)
