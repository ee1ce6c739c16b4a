// Package glsoft is a software implementation of glapi.Functions.
//
// It keeps every object the backend creates in memory and executes
// transfers, clears, blits and readbacks on the CPU. Draws and dispatches
// are validated and counted but rasterize nothing. A Context also acts as
// the window of a GL renderer: it reports a framebuffer size and accepts
// context and swap interval calls.
package glsoft

import (
	"github.com/gogpu/rhi/hal/glapi"
)

// Options configures a Context.
type Options struct {
	// Bindless advertises GL_ARB_bindless_texture.
	Bindless bool
	// MaxSamples is the reported MAX_SAMPLES.
	MaxSamples int32
	// MaxTextureSize is the reported MAX_TEXTURE_SIZE.
	MaxTextureSize int32
}

// Option configures Options.
type Option func(*Options)

// WithBindless sets whether the bindless texture extension is advertised.
func WithBindless(enabled bool) Option {
	return func(o *Options) { o.Bindless = enabled }
}

// WithMaxSamples sets the reported sample count limit.
func WithMaxSamples(n int32) Option {
	return func(o *Options) { o.MaxSamples = n }
}

const uniformAlignment = 256

type indexKey struct {
	target glapi.Enum
	index  uint32
}

type bufferRange struct {
	buffer glapi.Buffer
	offset int
	size   int
}

type imageUnit struct {
	texture glapi.Texture
	level   int32
	access  glapi.Enum
	format  glapi.Enum
}

// Context is an in-memory OpenGL context. It is not safe for concurrent
// use, like the real thing.
type Context struct {
	opts Options

	width, height int
	interval      int
	current       bool

	err  glapi.Enum
	next uint32

	textures map[glapi.Texture]*texture
	buffers  map[glapi.Buffer]*buffer
	fbos     map[glapi.Framebuffer]*framebuffer
	shaders  map[glapi.Shader]*shader
	programs map[glapi.Program]*program
	vaos     map[glapi.VertexArray]*vertexArray

	backbuffer *framebuffer

	unit      uint32
	units     map[uint32]map[glapi.Enum]glapi.Texture
	bound     map[glapi.Enum]glapi.Buffer
	indexed   map[indexKey]bufferRange
	images    map[uint32]imageUnit
	drawFBO   glapi.Framebuffer
	readFBO   glapi.Framebuffer
	program   glapi.Program
	vao       glapi.VertexArray
	handles   map[uint64]glapi.Texture
	resident  map[uint64]bool
	enabled   map[glapi.Enum]bool
	viewport  [4]int32
	scissor   [4]int32
	colorMask [4]bool
	depthMask bool
	blend     [4]float32

	calls map[string]int
}

// New returns a context whose default framebuffer is width x height with
// an RGBA8 color buffer and a 24/8 depth-stencil buffer.
func New(width, height int, opts ...Option) *Context {
	o := Options{MaxSamples: 8, MaxTextureSize: 16384}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Context{
		opts:      o,
		interval:  1,
		textures:  make(map[glapi.Texture]*texture),
		buffers:   make(map[glapi.Buffer]*buffer),
		fbos:      make(map[glapi.Framebuffer]*framebuffer),
		shaders:   make(map[glapi.Shader]*shader),
		programs:  make(map[glapi.Program]*program),
		vaos:      make(map[glapi.VertexArray]*vertexArray),
		units:     make(map[uint32]map[glapi.Enum]glapi.Texture),
		bound:     make(map[glapi.Enum]glapi.Buffer),
		indexed:   make(map[indexKey]bufferRange),
		images:    make(map[uint32]imageUnit),
		handles:   make(map[uint64]glapi.Texture),
		resident:  make(map[uint64]bool),
		enabled:   map[glapi.Enum]bool{glapi.MULTISAMPLE: true},
		colorMask: [4]bool{true, true, true, true},
		depthMask: true,
		calls:     make(map[string]int),
	}
	c.SetFramebufferSize(width, height)
	return c
}

func (c *Context) name() uint32 {
	c.next++
	return c.next
}

func (c *Context) call(name string) { c.calls[name]++ }

func (c *Context) fail(code glapi.Enum) {
	if c.err == glapi.NO_ERROR {
		c.err = code
	}
}

// SetFramebufferSize resizes the default framebuffer, discarding its
// contents.
func (c *Context) SetFramebufferSize(width, height int) {
	c.width, c.height = width, height
	color := newTexture(glapi.TEXTURE_2D)
	color.allocate(1, 1, glapi.RGBA8, int32(width), int32(height))
	depth := newTexture(glapi.TEXTURE_2D)
	depth.allocate(1, 1, glapi.DEPTH24_STENCIL8, int32(width), int32(height))
	c.backbuffer = &framebuffer{
		colors:      map[int]attachment{0: {tex: color}},
		depth:       attachment{tex: depth},
		drawBuffers: []glapi.Enum{glapi.BACK},
		readBuffer:  glapi.BACK,
	}
	c.viewport = [4]int32{0, 0, int32(width), int32(height)}
	c.scissor = c.viewport
}

// FramebufferSize returns the default framebuffer extent.
func (c *Context) FramebufferSize() (width, height int) { return c.width, c.height }

// MakeContextCurrent marks the context current.
func (c *Context) MakeContextCurrent() { c.current = true }

// IsCurrent reports whether MakeContextCurrent has been called.
func (c *Context) IsCurrent() bool { return c.current }

// SwapInterval records the swap interval.
func (c *Context) SwapInterval(interval int) { c.interval = interval }

// Interval returns the last swap interval set.
func (c *Context) Interval() int { return c.interval }

// Calls returns how many times the named entry point has been called.
func (c *Context) Calls(name string) int { return c.calls[name] }

// ResetCalls clears the call counters.
func (c *Context) ResetCalls() { clear(c.calls) }

// Objects are counts of live named objects.
type Objects struct {
	Textures, Buffers, Framebuffers, Shaders, Programs, VertexArrays int
}

// Objects returns the number of live objects of each type.
func (c *Context) Objects() Objects {
	return Objects{
		Textures:     len(c.textures),
		Buffers:      len(c.buffers),
		Framebuffers: len(c.fbos),
		Shaders:      len(c.shaders),
		Programs:     len(c.programs),
		VertexArrays: len(c.vaos),
	}
}

// IsEnabled reports whether capability is enabled.
func (c *Context) IsEnabled(capability glapi.Enum) bool { return c.enabled[capability] }

// ColorWriteMask returns the color write mask.
func (c *Context) ColorWriteMask() [4]bool { return c.colorMask }

// DepthWriteMask returns the depth write mask.
func (c *Context) DepthWriteMask() bool { return c.depthMask }

// ViewportRect returns the viewport as x, y, width, height.
func (c *Context) ViewportRect() [4]int32 { return c.viewport }

// ScissorRect returns the scissor box as x, y, width, height.
func (c *Context) ScissorRect() [4]int32 { return c.scissor }

// Resident reports whether a bindless handle is resident.
func (c *Context) Resident(handle uint64) bool { return c.resident[handle] }

// BoundTexture returns the texture bound to target on unit.
func (c *Context) BoundTexture(unit uint32, target glapi.Enum) glapi.Texture {
	return c.units[unit][target]
}

// BoundBufferRange returns the buffer range bound to an indexed target.
func (c *Context) BoundBufferRange(target glapi.Enum, index uint32) (b glapi.Buffer, offset, size int) {
	r := c.indexed[indexKey{target, index}]
	return r.buffer, r.offset, r.size
}

// BoundProgram returns the program in use.
func (c *Context) BoundProgram() glapi.Program { return c.program }

// GetInteger implements glapi.Functions.
func (c *Context) GetInteger(pname glapi.Enum) int32 {
	c.call("GetInteger")
	switch pname {
	case glapi.MAX_TEXTURE_SIZE:
		return c.opts.MaxTextureSize
	case glapi.MAX_SAMPLES:
		return c.opts.MaxSamples
	case glapi.UNIFORM_BUFFER_OFFSET_ALIGNMENT:
		return uniformAlignment
	case glapi.MAX_COMBINED_TEXTURE_IMAGE_UNITS:
		return 32
	}
	c.fail(glapi.INVALID_ENUM)
	return 0
}

// GetString implements glapi.Functions.
func (c *Context) GetString(name glapi.Enum) string {
	switch name {
	case glapi.VENDOR:
		return "gogpu"
	case glapi.RENDERER:
		return "glsoft"
	case glapi.VERSION:
		return "4.6.0 glsoft"
	}
	c.fail(glapi.INVALID_ENUM)
	return ""
}

// Extensions implements glapi.Functions.
func (c *Context) Extensions() []string {
	exts := []string{"GL_ARB_direct_state_access", "GL_ARB_shader_draw_parameters"}
	if c.opts.Bindless {
		exts = append(exts, glapi.ExtBindlessTexture)
	}
	return exts
}

// GetError implements glapi.Functions.
func (c *Context) GetError() glapi.Enum {
	err := c.err
	c.err = glapi.NO_ERROR
	return err
}

// Finish implements glapi.Functions.
func (c *Context) Finish() { c.call("Finish") }

// Enable implements glapi.Functions.
func (c *Context) Enable(capability glapi.Enum) {
	c.call("Enable")
	c.enabled[capability] = true
}

// Disable implements glapi.Functions.
func (c *Context) Disable(capability glapi.Enum) {
	c.call("Disable")
	c.enabled[capability] = false
}

// Viewport implements glapi.Functions.
func (c *Context) Viewport(x, y, width, height int32) {
	c.call("Viewport")
	c.viewport = [4]int32{x, y, width, height}
}

// DepthRangef implements glapi.Functions.
func (c *Context) DepthRangef(near, far float32) { c.call("DepthRangef") }

// Scissor implements glapi.Functions.
func (c *Context) Scissor(x, y, width, height int32) {
	c.call("Scissor")
	c.scissor = [4]int32{x, y, width, height}
}

// LineWidth implements glapi.Functions.
func (c *Context) LineWidth(w float32) {
	c.call("LineWidth")
	if w <= 0 {
		c.fail(glapi.INVALID_VALUE)
	}
}

// BlendColor implements glapi.Functions.
func (c *Context) BlendColor(r, g, b, a float32) {
	c.call("BlendColor")
	c.blend = [4]float32{r, g, b, a}
}

// BlendColorValue returns the constant blend color.
func (c *Context) BlendColorValue() [4]float32 { return c.blend }

// BlendEquationSeparate implements glapi.Functions.
func (c *Context) BlendEquationSeparate(modeRGB, modeAlpha glapi.Enum) {
	c.call("BlendEquationSeparate")
}

// BlendFuncSeparate implements glapi.Functions.
func (c *Context) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha glapi.Enum) {
	c.call("BlendFuncSeparate")
}

// ColorMask implements glapi.Functions.
func (c *Context) ColorMask(r, g, b, a bool) {
	c.call("ColorMask")
	c.colorMask = [4]bool{r, g, b, a}
}

// DepthMask implements glapi.Functions.
func (c *Context) DepthMask(flag bool) {
	c.call("DepthMask")
	c.depthMask = flag
}

// PolygonOffsetClamp implements glapi.Functions.
func (c *Context) PolygonOffsetClamp(factor, units, clamp float32) {
	c.call("PolygonOffsetClamp")
}

// DepthFunc implements glapi.Functions.
func (c *Context) DepthFunc(fn glapi.Enum) {
	c.call("DepthFunc")
	if fn < glapi.NEVER || fn > glapi.ALWAYS {
		c.fail(glapi.INVALID_ENUM)
	}
}

// StencilOpSeparate implements glapi.Functions.
func (c *Context) StencilOpSeparate(face, sfail, dpfail, dppass glapi.Enum) {
	c.call("StencilOpSeparate")
}

// StencilFuncSeparate implements glapi.Functions.
func (c *Context) StencilFuncSeparate(face, fn glapi.Enum, ref int32, mask uint32) {
	c.call("StencilFuncSeparate")
}

// StencilMaskSeparate implements glapi.Functions.
func (c *Context) StencilMaskSeparate(face glapi.Enum, mask uint32) {
	c.call("StencilMaskSeparate")
}

// CullFace implements glapi.Functions.
func (c *Context) CullFace(mode glapi.Enum) { c.call("CullFace") }

// FrontFace implements glapi.Functions.
func (c *Context) FrontFace(mode glapi.Enum) { c.call("FrontFace") }

// LogicOp implements glapi.Functions.
func (c *Context) LogicOp(op glapi.Enum) {
	c.call("LogicOp")
	if op < glapi.LOGIC_OP_CLEAR || op > glapi.SET {
		c.fail(glapi.INVALID_ENUM)
	}
}

// PolygonMode implements glapi.Functions.
func (c *Context) PolygonMode(face, mode glapi.Enum) { c.call("PolygonMode") }

// MemoryBarrier implements glapi.Functions.
func (c *Context) MemoryBarrier(barriers uint32) { c.call("MemoryBarrier") }
