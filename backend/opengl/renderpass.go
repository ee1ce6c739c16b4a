package opengl

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/state"
)

type renderPass struct {
	desc      rhi.RenderPassDescriptor
	swapchain bool
}

type framebuffer struct {
	pass          rhi.RenderPassID
	fbo           glapi.Framebuffer
	width, height int
	colors        int
	swapchain     bool

	// resolve receives the multisampled colors when the pass ends. With
	// resolveDefault set the target is the default framebuffer.
	resolve        glapi.Framebuffer
	resolveCount   int
	resolveDefault bool
}

// swapchain is the render pass and framebuffer targeting the default
// framebuffer. Multisampled swapchains render into an internal target that
// is resolved into the default framebuffer.
type swapchain struct {
	pass        rhi.RenderPassID
	framebuffer rhi.FramebufferID
	width       int
	height      int

	color glapi.Texture
	depth glapi.Texture
	fbo   glapi.Framebuffer
}

func (r *Renderer) swapchainExtent() (int, int) {
	if r.surface != nil {
		if w, h := r.surface.FramebufferSize(); w > 0 && h > 0 {
			return w, h
		}
	}
	return r.opts.Width, r.opts.Height
}

func (r *Renderer) createSwapchain() error {
	pass := &renderPass{
		swapchain: true,
		desc: rhi.RenderPassDescriptor{
			Colors: []rhi.AttachmentDescriptor{{
				Format: gputypes.TextureFormatRGBA8Unorm,
				Load:   gputypes.LoadOpClear,
				Store:  gputypes.StoreOpStore,
			}},
			Depth: &rhi.AttachmentDescriptor{
				Format:     gputypes.TextureFormatDepth24PlusStencil8,
				Load:       gputypes.LoadOpClear,
				Store:      gputypes.StoreOpDiscard,
				ClearDepth: 1,
			},
			Samples: r.opts.Samples,
		},
	}
	r.swap.pass = rhi.RenderPassID(r.passes.Insert(pass))
	r.swap.framebuffer = rhi.FramebufferID(r.framebuffers.Insert(&framebuffer{
		pass:      r.swap.pass,
		colors:    1,
		swapchain: true,
	}))
	w, h := r.swapchainExtent()
	return r.resizeSwapchain(w, h)
}

// resizeSwapchain rebuilds the multisampled swapchain target at the given
// extent.
func (r *Renderer) resizeSwapchain(width, height int) error {
	r.releaseSwapchainTargets()
	pass, _ := r.passes.Get(arena.Handle(r.swap.pass))
	fb, _ := r.framebuffers.Get(arena.Handle(r.swap.framebuffer))
	r.swap.width, r.swap.height = width, height
	fb.width, fb.height = width, height
	fb.fbo, fb.resolve, fb.resolveCount, fb.resolveDefault = 0, 0, 0, false

	samples := pass.desc.SampleCount()
	if samples > 1 {
		r.gl.GetError()
		r.swap.color = r.msaaTarget(samples, glapi.RGBA8, width, height)
		r.swap.depth = r.msaaTarget(samples, glapi.DEPTH24_STENCIL8, width, height)
		r.swap.fbo = r.gl.GenFramebuffer()
		r.gl.BindFramebuffer(glapi.FRAMEBUFFER, r.swap.fbo)
		r.gl.FramebufferTexture2D(glapi.FRAMEBUFFER, glapi.COLOR_ATTACHMENT0, glapi.TEXTURE_2D_MULTISAMPLE, r.swap.color, 0)
		r.gl.FramebufferTexture2D(glapi.FRAMEBUFFER, glapi.DEPTH_STENCIL_ATTACHMENT, glapi.TEXTURE_2D_MULTISAMPLE, r.swap.depth, 0)
		status := r.gl.CheckFramebufferStatus(glapi.FRAMEBUFFER)
		r.gl.BindFramebuffer(glapi.FRAMEBUFFER, r.drawFBO)
		if err := r.glError("create swapchain target"); err != nil {
			r.releaseSwapchainTargets()
			return err
		}
		if status != glapi.FRAMEBUFFER_COMPLETE {
			r.releaseSwapchainTargets()
			return fmt.Errorf("%w: swapchain target incomplete", rhi.ErrUnsupported)
		}
		fb.fbo = r.swap.fbo
		fb.resolveCount, fb.resolveDefault = 1, true
	}
	rhi.Logger().Info("opengl: swapchain configured", "width", width, "height", height, "samples", samples)
	return nil
}

func (r *Renderer) msaaTarget(samples int, internal glapi.Enum, width, height int) glapi.Texture {
	t := r.gl.GenTexture()
	r.gl.ActiveTexture(scratchUnit)
	r.gl.BindTexture(glapi.TEXTURE_2D_MULTISAMPLE, t)
	r.gl.TexStorage2DMultisample(glapi.TEXTURE_2D_MULTISAMPLE, int32(samples), internal, int32(width), int32(height))
	return t
}

func (r *Renderer) releaseSwapchainTargets() {
	if r.swap.fbo != 0 {
		if r.drawFBO == r.swap.fbo {
			r.bindDrawFramebuffer(0)
		}
		r.gl.DeleteFramebuffer(r.swap.fbo)
	}
	if r.swap.color != 0 {
		r.gl.DeleteTexture(r.swap.color)
	}
	if r.swap.depth != 0 {
		r.gl.DeleteTexture(r.swap.depth)
	}
	r.swap.fbo, r.swap.color, r.swap.depth = 0, 0, 0
}

func (r *Renderer) destroySwapchain() {
	r.releaseSwapchainTargets()
	r.framebuffers.Remove(arena.Handle(r.swap.framebuffer))
	r.passes.Remove(arena.Handle(r.swap.pass))
}

// CreateRenderPass implements rhi.Renderer.
func (r *Renderer) CreateRenderPass(desc *rhi.RenderPassDescriptor) (rhi.RenderPassID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	if desc.SampleCount() > r.caps.MaxSamples {
		return 0, fmt.Errorf("%w: %d samples", rhi.ErrUnsupported, desc.Samples)
	}
	p := &renderPass{desc: *desc}
	p.desc.Colors = append([]rhi.AttachmentDescriptor(nil), desc.Colors...)
	if desc.Depth != nil {
		d := *desc.Depth
		p.desc.Depth = &d
	}
	return rhi.RenderPassID(r.passes.Insert(p)), nil
}

// DestroyRenderPass implements rhi.Renderer. The swapchain pass belongs to
// the renderer and is not destroyed.
func (r *Renderer) DestroyRenderPass(id rhi.RenderPassID) {
	if id == r.swap.pass {
		return
	}
	r.passes.Remove(arena.Handle(id))
}

// CreateFramebuffer implements rhi.Renderer.
func (r *Renderer) CreateFramebuffer(desc *rhi.FramebufferDescriptor) (rhi.FramebufferID, error) {
	pass, ok := r.passes.Get(arena.Handle(desc.RenderPass))
	if !ok {
		return 0, fmt.Errorf("%w: render pass %#x", rhi.ErrInvalidHandle, uint64(desc.RenderPass))
	}
	w, h, err := rhi.ValidateFramebuffer(&pass.desc, desc, r.lookupImage)
	if err != nil {
		return 0, err
	}
	fb := &framebuffer{pass: desc.RenderPass, width: w, height: h, colors: len(desc.Colors)}

	r.gl.GetError()
	fb.fbo, err = r.attach(desc.Colors, desc.Depth)
	if err != nil {
		return 0, err
	}
	if len(desc.Resolve) > 0 {
		fb.resolve, err = r.attach(desc.Resolve, 0)
		if err != nil {
			r.gl.DeleteFramebuffer(fb.fbo)
			return 0, err
		}
		fb.resolveCount = len(desc.Resolve)
	}
	return rhi.FramebufferID(r.framebuffers.Insert(fb)), nil
}

// attach builds a framebuffer object over colors and an optional depth
// image.
func (r *Renderer) attach(colors []rhi.ImageID, depth rhi.ImageID) (glapi.Framebuffer, error) {
	fbo := r.gl.GenFramebuffer()
	r.gl.BindFramebuffer(glapi.FRAMEBUFFER, fbo)
	bufs := make([]glapi.Enum, len(colors))
	for i, id := range colors {
		img, _ := r.images.Get(arena.Handle(id))
		bufs[i] = glapi.COLOR_ATTACHMENT0 + glapi.Enum(i)
		r.gl.FramebufferTexture2D(glapi.FRAMEBUFFER, bufs[i], img.target, img.tex, 0)
	}
	if !depth.IsNull() {
		img, _ := r.images.Get(arena.Handle(depth))
		point := glapi.DEPTH_ATTACHMENT
		if rhi.HasStencil(img.desc.Format) {
			point = glapi.DEPTH_STENCIL_ATTACHMENT
		}
		r.gl.FramebufferTexture2D(glapi.FRAMEBUFFER, point, img.target, img.tex, 0)
	}
	if len(bufs) == 0 {
		bufs = []glapi.Enum{glapi.NONE}
	}
	r.gl.DrawBuffers(bufs)
	status := r.gl.CheckFramebufferStatus(glapi.FRAMEBUFFER)
	r.gl.BindFramebuffer(glapi.FRAMEBUFFER, r.drawFBO)
	if err := r.glError("create framebuffer"); err != nil {
		r.gl.DeleteFramebuffer(fbo)
		return 0, err
	}
	if status != glapi.FRAMEBUFFER_COMPLETE {
		r.gl.DeleteFramebuffer(fbo)
		return 0, fmt.Errorf("%w: framebuffer incomplete (0x%04X)", rhi.ErrMismatch, uint32(status))
	}
	return fbo, nil
}

// DestroyFramebuffer implements rhi.Renderer. The swapchain framebuffer
// belongs to the renderer and is not destroyed.
func (r *Renderer) DestroyFramebuffer(id rhi.FramebufferID) {
	if id == r.swap.framebuffer {
		return
	}
	fb, ok := r.framebuffers.Remove(arena.Handle(id))
	if !ok {
		return
	}
	if r.fb == fb {
		r.pass, r.fb = nil, nil
	}
	if r.drawFBO == fb.fbo {
		r.bindDrawFramebuffer(0)
	}
	r.gl.DeleteFramebuffer(fb.fbo)
	if fb.resolve != 0 {
		r.gl.DeleteFramebuffer(fb.resolve)
	}
}

// compatible reports whether framebuffers of b can be used with a.
func compatible(a, b *rhi.RenderPassDescriptor) bool {
	if len(a.Colors) != len(b.Colors) || a.SampleCount() != b.SampleCount() || (a.Depth == nil) != (b.Depth == nil) {
		return false
	}
	for i := range a.Colors {
		if a.Colors[i].Format != b.Colors[i].Format {
			return false
		}
	}
	return a.Depth == nil || a.Depth.Format == b.Depth.Format
}

// BeginRenderPass implements rhi.Renderer. The viewport and scissor are
// reset to the framebuffer extent and load-op clears are applied.
func (r *Renderer) BeginRenderPass(passID rhi.RenderPassID, fbID rhi.FramebufferID) error {
	if r.pass != nil {
		return fmt.Errorf("%w: render pass already active", rhi.ErrInvalidState)
	}
	pass, ok := r.passes.Get(arena.Handle(passID))
	if !ok {
		return fmt.Errorf("%w: render pass %#x", rhi.ErrInvalidHandle, uint64(passID))
	}
	fb, ok := r.framebuffers.Get(arena.Handle(fbID))
	if !ok {
		return fmt.Errorf("%w: framebuffer %#x", rhi.ErrInvalidHandle, uint64(fbID))
	}
	if fb.pass != passID {
		owner, ok := r.passes.Get(arena.Handle(fb.pass))
		if !ok || !compatible(&pass.desc, &owner.desc) {
			return fmt.Errorf("%w: framebuffer does not match render pass", rhi.ErrMismatch)
		}
	}
	r.bindDrawFramebuffer(fb.fbo)
	r.pass, r.fb = pass, fb

	r.SetViewport(state.Viewport{Width: float32(fb.width), Height: float32(fb.height), MaxDepth: 1})
	r.SetScissor(state.Rect{Width: uint32(fb.width), Height: uint32(fb.height)})
	r.withClearState(func() {
		for i, a := range pass.desc.Colors {
			if a.Load == gputypes.LoadOpClear {
				r.gl.ClearBufferfv(glapi.COLOR, int32(i), a.ClearColor)
			}
		}
		if d := pass.desc.Depth; d != nil && d.Load == gputypes.LoadOpClear {
			r.clearDepth(d.Format, d.ClearDepth, d.ClearStencil)
		}
	})
	return r.checkCommand("begin render pass")
}

// EndRenderPass implements rhi.Renderer. Multisampled colors are resolved
// with a blit.
func (r *Renderer) EndRenderPass() error {
	if r.pass == nil {
		return fmt.Errorf("%w: no active render pass", rhi.ErrInvalidState)
	}
	fb := r.fb
	if fb.resolveCount > 0 {
		r.withClearState(func() { r.resolveFramebuffer(fb) })
	}
	r.pass, r.fb = nil, nil
	return r.checkCommand("end render pass")
}

func (r *Renderer) resolveFramebuffer(fb *framebuffer) {
	w, h := int32(fb.width), int32(fb.height)
	r.gl.BindFramebuffer(glapi.READ_FRAMEBUFFER, fb.fbo)
	r.gl.BindFramebuffer(glapi.DRAW_FRAMEBUFFER, fb.resolve)
	all := make([]glapi.Enum, fb.resolveCount)
	for i := range all {
		all[i] = glapi.COLOR_ATTACHMENT0 + glapi.Enum(i)
	}
	for i := range fb.resolveCount {
		r.gl.ReadBuffer(all[i])
		if !fb.resolveDefault {
			only := make([]glapi.Enum, i+1)
			for j := range only {
				only[j] = glapi.NONE
			}
			only[i] = all[i]
			r.gl.DrawBuffers(only)
		}
		r.gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, glapi.COLOR_BUFFER_BIT, glapi.NEAREST)
	}
	if !fb.resolveDefault {
		r.gl.DrawBuffers(all)
	}
	r.gl.ReadBuffer(glapi.COLOR_ATTACHMENT0)
	r.bindDrawFramebuffer(fb.fbo)
}

// withClearState runs fn with the scissor covering the framebuffer and
// all write masks open, then restores the native state in effect.
func (r *Renderer) withClearState(fn func()) {
	fb := r.fb
	r.gl.Scissor(0, 0, int32(fb.width), int32(fb.height))
	r.gl.ColorMask(true, true, true, true)
	r.gl.DepthMask(true)
	r.gl.StencilMaskSeparate(glapi.FRONT_AND_BACK, 0xFF)
	fn()
	r.restore(state.Of(state.KindScissor, state.KindColorWriteMask, state.KindDepthWriteEnable, state.KindStencilWriteMask))
}

// restore re-issues kinds from the cache that owns them: the bound
// pipeline's baked cache for baked kinds, the live cache otherwise.
func (r *Renderer) restore(kinds state.Set) {
	for _, k := range kinds.Kinds() {
		if p := r.bound; p != nil && !p.compute && !p.Dynamic.Has(k) {
			r.issue(k, &p.baked)
			continue
		}
		r.issue(k, r.machine.Live())
		r.machine.Applied(k)
	}
}

func (r *Renderer) clearDepth(f gputypes.TextureFormat, depth float32, stencil uint32) {
	if rhi.HasStencil(f) {
		r.gl.ClearBufferfi(glapi.DEPTH_STENCIL, 0, depth, int32(stencil))
	} else {
		r.gl.ClearBufferfv(glapi.DEPTH, 0, [4]float32{depth})
	}
}

// ClearColorAttachment implements rhi.Renderer.
func (r *Renderer) ClearColorAttachment(index int, color mgl32.Vec4) error {
	if r.pass == nil {
		return fmt.Errorf("%w: clear outside a render pass", rhi.ErrInvalidState)
	}
	if index < 0 || index >= r.fb.colors {
		return fmt.Errorf("%w: color attachment %d of %d", rhi.ErrOutOfRange, index, r.fb.colors)
	}
	r.withClearState(func() { r.gl.ClearBufferfv(glapi.COLOR, int32(index), color) })
	return r.checkCommand("clear color attachment")
}

// ClearDepthStencilAttachment implements rhi.Renderer.
func (r *Renderer) ClearDepthStencilAttachment(depth float32, stencil uint32) error {
	if r.pass == nil {
		return fmt.Errorf("%w: clear outside a render pass", rhi.ErrInvalidState)
	}
	d := r.pass.desc.Depth
	if d == nil {
		return fmt.Errorf("%w: render pass has no depth attachment", rhi.ErrInvalidState)
	}
	r.withClearState(func() { r.clearDepth(d.Format, depth, stencil) })
	return r.checkCommand("clear depth attachment")
}
