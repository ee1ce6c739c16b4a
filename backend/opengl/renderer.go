package opengl

import (
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/state"
)

const (
	// scratchUnit is the texture unit used for uploads and parameter
	// changes, above the units descriptor bindings occupy.
	scratchUnit = 31

	// maxImageArray bounds sampled image arrays without bindless support.
	maxImageArray = 16

	// bindlessArrayLimit is the array length reported with bindless
	// support.
	bindlessArrayLimit = 1 << 16
)

// Renderer is the OpenGL implementation of rhi.Renderer.
type Renderer struct {
	gl      glapi.Functions
	surface rhi.GLSurface
	opts    rhi.Options
	caps    rhi.Caps
	machine *state.Machine

	images       arena.Arena[*image]
	buffers      arena.Arena[*buffer]
	shaders      arena.Arena[*shader]
	pipelines    arena.Arena[*pipeline]
	passes       arena.Arena[*renderPass]
	framebuffers arena.Arena[*framebuffer]
	vertexArrays arena.Arena[*vertexArray]
	bindings     arena.Arena[*descriptorSetBinding]

	swap swapchain

	// emptyVAO is bound for draws without a vertex array; core profile
	// contexts reject draws with none bound.
	emptyVAO glapi.VertexArray

	drawFBO     glapi.Framebuffer
	pass        *renderPass
	fb          *framebuffer
	bound       *pipeline
	vertexArray *vertexArray

	imgui     bool
	destroyed bool
}

// New creates a renderer on the context current on the calling thread.
// A non-nil opts.Surface must implement rhi.GLSurface.
func New(gl glapi.Functions, opts rhi.Options) (*Renderer, error) {
	if gl == nil {
		return nil, fmt.Errorf("%w: nil OpenGL functions", rhi.ErrInvalidConfig)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{gl: gl, opts: opts}
	if opts.Surface != nil {
		s, ok := opts.Surface.(rhi.GLSurface)
		if !ok {
			return nil, fmt.Errorf("%w: surface %T has no OpenGL context", rhi.ErrInvalidConfig, opts.Surface)
		}
		r.surface = s
		s.MakeContextCurrent()
		s.SwapInterval(swapInterval(opts.VSync))
	}
	r.caps = r.queryCaps()
	if opts.Samples > r.caps.MaxSamples {
		return nil, fmt.Errorf("%w: %d samples, device supports %d", rhi.ErrUnsupported, opts.Samples, r.caps.MaxSamples)
	}
	r.machine = state.NewMachine(r)
	r.emptyVAO = gl.GenVertexArray()
	gl.Enable(glapi.SCISSOR_TEST)

	if err := r.createSwapchain(); err != nil {
		gl.DeleteVertexArray(r.emptyVAO)
		return nil, err
	}
	rhi.Logger().Info("opengl: renderer created",
		"device", r.caps.DeviceName,
		"version", gl.GetString(glapi.VERSION),
		"bindless", r.caps.Bindless,
		"samples", opts.Samples)
	return r, nil
}

func (r *Renderer) queryCaps() rhi.Caps {
	c := rhi.Caps{
		DeviceName:             r.gl.GetString(glapi.RENDERER),
		MaxImageDimension:      int(r.gl.GetInteger(glapi.MAX_TEXTURE_SIZE)),
		MaxSamples:             min(int(r.gl.GetInteger(glapi.MAX_SAMPLES)), 8),
		Bindless:               glapi.HasExtension(r.gl, glapi.ExtBindlessTexture),
		MaxImageArray:          maxImageArray,
		UniformOffsetAlignment: int(r.gl.GetInteger(glapi.UNIFORM_BUFFER_OFFSET_ALIGNMENT)),
		FramesInFlight:         1,
		DynamicStates:          state.All,
	}
	if c.Bindless {
		c.MaxImageArray = bindlessArrayLimit
	}
	if c.UniformOffsetAlignment <= 0 {
		c.UniformOffsetAlignment = 1
	}
	return c
}

func swapInterval(m rhi.VSyncMode) int {
	switch m {
	case rhi.VSyncOff:
		return 0
	case rhi.VSyncAdaptive:
		return -1
	}
	return 1
}

// Backend implements rhi.Renderer.
func (r *Renderer) Backend() rhi.BackendKind { return rhi.BackendOpenGL }

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

// BeginFrame implements rhi.Renderer. OpenGL does not pipeline frames.
func (r *Renderer) BeginFrame() error {
	if r.destroyed {
		return rhi.ErrDestroyed
	}
	return nil
}

// EndFrame implements rhi.Renderer. Buffer swaps belong to the window.
func (r *Renderer) EndFrame() error {
	if r.destroyed {
		return rhi.ErrDestroyed
	}
	if r.pass != nil {
		return fmt.Errorf("%w: frame ended inside a render pass", rhi.ErrInvalidState)
	}
	return nil
}

// FrameSlot implements rhi.Renderer.
func (r *Renderer) FrameSlot() int { return 0 }

// WaitDeviceIdle implements rhi.Renderer.
func (r *Renderer) WaitDeviceIdle() error {
	if r.destroyed {
		return rhi.ErrDestroyed
	}
	r.gl.Finish()
	return nil
}

// SetVSyncMode implements rhi.Renderer.
func (r *Renderer) SetVSyncMode(m rhi.VSyncMode) error {
	if r.surface == nil {
		return rhi.ErrNoSurface
	}
	r.opts.VSync = m
	r.surface.SwapInterval(swapInterval(m))
	return nil
}

// SetSwapchainSize implements rhi.Renderer.
func (r *Renderer) SetSwapchainSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: swapchain size %dx%d", rhi.ErrInvalidDescriptor, width, height)
	}
	if r.pass != nil {
		return fmt.Errorf("%w: resize inside a render pass", rhi.ErrInvalidState)
	}
	r.opts.Width, r.opts.Height = width, height
	return r.resizeSwapchain(width, height)
}

// SetSamples implements rhi.Renderer.
func (r *Renderer) SetSamples(n int) error {
	if !rhi.ValidSampleCount(n) || n > r.caps.MaxSamples {
		return fmt.Errorf("%w: %d samples", rhi.ErrUnsupported, n)
	}
	if r.pass != nil {
		return fmt.Errorf("%w: sample change inside a render pass", rhi.ErrInvalidState)
	}
	r.opts.Samples = n
	p, _ := r.passes.Get(arena.Handle(r.swap.pass))
	p.desc.Samples = n
	return r.resizeSwapchain(r.swap.width, r.swap.height)
}

// SwapchainRenderPass implements rhi.Renderer.
func (r *Renderer) SwapchainRenderPass() rhi.RenderPassID { return r.swap.pass }

// SwapchainFramebuffer implements rhi.Renderer.
func (r *Renderer) SwapchainFramebuffer() rhi.FramebufferID { return r.swap.framebuffer }

// Destroy implements rhi.Renderer.
func (r *Renderer) Destroy() {
	if r.destroyed {
		return
	}
	r.gl.Finish()
	r.gl.UseProgram(0)
	r.gl.BindVertexArray(0)
	r.gl.BindFramebuffer(glapi.FRAMEBUFFER, 0)

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
	r.gl.DeleteVertexArray(r.emptyVAO)
	if e := r.gl.GetError(); e != glapi.NO_ERROR {
		rhi.Logger().Warn("opengl: error during teardown", "error", fmt.Sprintf("0x%04X", uint32(e)))
	}
	r.destroyed = true
}

// glError drains the GL error flag and maps it onto a sentinel.
func (r *Renderer) glError(op string) error {
	switch e := r.gl.GetError(); e {
	case glapi.NO_ERROR:
		return nil
	case glapi.OUT_OF_MEMORY:
		return fmt.Errorf("%w: %s", rhi.ErrOutOfMemory, op)
	case glapi.INVALID_ENUM, glapi.INVALID_VALUE:
		return fmt.Errorf("%w: %s: GL error 0x%04X", rhi.ErrUnsupported, op, uint32(e))
	default:
		return fmt.Errorf("%w: %s: GL error 0x%04X", rhi.ErrInvalidState, op, uint32(e))
	}
}

// checkCommand reports driver errors after commands when debugging.
func (r *Renderer) checkCommand(op string) error {
	if !r.opts.Debug {
		return nil
	}
	return r.glError(op)
}

func (r *Renderer) bindDrawFramebuffer(fbo glapi.Framebuffer) {
	r.gl.BindFramebuffer(glapi.FRAMEBUFFER, fbo)
	r.drawFBO = fbo
}

var _ rhi.Renderer = (*Renderer)(nil)
