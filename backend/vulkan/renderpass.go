package vulkan

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/state"
)

// renderPass keeps the descriptor and the canonical native pass pipelines
// are created against. Framebuffers begin with native passes of their own
// whose layouts follow the attached images.
type renderPass struct {
	desc      rhi.RenderPassDescriptor
	native    vkapi.RenderPass
	swapchain bool
}

type framebuffer struct {
	pass          rhi.RenderPassID
	width, height int
	colors        int
	swapchain     bool

	// images are the attachments in native order: colors, resolves, then
	// depth.
	images  []*image
	native  vkapi.Framebuffer
	natives map[nativeKey]vkapi.RenderPass
}

// nativeKey selects the native pass a render pass begins with. fresh is
// set for the first pass on an acquired swapchain image in a frame.
type nativeKey struct {
	pass  *renderPass
	fresh bool
}

// attachmentSpec is the format and layouts of one native attachment.
type attachmentSpec struct {
	format  vkapi.Format
	initial vkapi.ImageLayout
	final   vkapi.ImageLayout
}

// canonicalSpecs returns attachment specs in the attachment layouts, with
// no resolves. Single-subpass passes differing only in resolves and
// layouts are compatible, so pipelines built against the canonical pass
// run in every pass begun on a matching framebuffer.
func (r *Renderer) canonicalSpecs(desc *rhi.RenderPassDescriptor) []attachmentSpec {
	specs := make([]attachmentSpec, 0, len(desc.Colors)+1)
	for _, c := range desc.Colors {
		f, _ := formatOf(c.Format)
		specs = append(specs, attachmentSpec{format: f, initial: layoutColor, final: layoutColor})
	}
	if desc.Depth != nil {
		f, _ := formatOf(desc.Depth.Format)
		specs = append(specs, attachmentSpec{format: f, initial: layoutDepthStencil, final: layoutDepthStencil})
	}
	return specs
}

// createNativePass builds a single-subpass pass over specs, which hold the
// colors, then the resolves if any, then the depth attachment.
func (r *Renderer) createNativePass(desc *rhi.RenderPassDescriptor, specs []attachmentSpec) (vkapi.RenderPass, error) {
	colors := len(desc.Colors)
	depth := 0
	if desc.Depth != nil {
		depth = 1
	}
	resolves := len(specs) - colors - depth
	if resolves != 0 && resolves != colors {
		return 0, fmt.Errorf("%w: %d attachments for %d colors", rhi.ErrMismatch, len(specs), colors)
	}
	samples := uint32(desc.SampleCount())
	info := &vkapi.RenderPassCreateInfo{}
	for i, c := range desc.Colors {
		s := specs[i]
		info.Attachments = append(info.Attachments, vkapi.AttachmentDescription{
			Format:        s.format,
			Samples:       samples,
			Load:          loadOp(c.Load),
			Store:         storeOp(c.Store),
			StencilLoad:   vkapi.LoadOpDontCare,
			StencilStore:  vkapi.StoreOpDontCare,
			InitialLayout: s.initial,
			FinalLayout:   s.final,
		})
		info.Colors = append(info.Colors, vkapi.AttachmentReference{Attachment: uint32(i), Layout: layoutColor})
	}
	for i := range resolves {
		s := specs[colors+i]
		info.Attachments = append(info.Attachments, vkapi.AttachmentDescription{
			Format:        s.format,
			Samples:       1,
			Load:          vkapi.LoadOpDontCare,
			Store:         vkapi.StoreOpStore,
			StencilLoad:   vkapi.LoadOpDontCare,
			StencilStore:  vkapi.StoreOpDontCare,
			InitialLayout: s.initial,
			FinalLayout:   s.final,
		})
		info.Resolves = append(info.Resolves, vkapi.AttachmentReference{Attachment: uint32(colors + i), Layout: layoutColor})
	}
	if d := desc.Depth; d != nil {
		s := specs[len(specs)-1]
		a := vkapi.AttachmentDescription{
			Format:        s.format,
			Samples:       samples,
			Load:          loadOp(d.Load),
			Store:         storeOp(d.Store),
			StencilLoad:   vkapi.LoadOpDontCare,
			StencilStore:  vkapi.StoreOpDontCare,
			InitialLayout: s.initial,
			FinalLayout:   s.final,
		}
		if s.format.HasStencil() {
			a.StencilLoad, a.StencilStore = a.Load, a.Store
		}
		info.Attachments = append(info.Attachments, a)
		info.Depth = &vkapi.AttachmentReference{Attachment: uint32(len(specs) - 1), Layout: layoutDepthStencil}
	}
	rp, err := r.dev.CreateRenderPass(info)
	return rp, vkError("create render pass", err)
}

// CreateRenderPass implements rhi.Renderer.
func (r *Renderer) CreateRenderPass(desc *rhi.RenderPassDescriptor) (rhi.RenderPassID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	if desc.SampleCount() > r.caps.MaxSamples {
		return 0, fmt.Errorf("%w: %d samples", rhi.ErrUnsupported, desc.Samples)
	}
	for i, c := range desc.Colors {
		if _, ok := formatOf(c.Format); !ok {
			return 0, fmt.Errorf("%w: color attachment %d format %v", rhi.ErrUnsupported, i, c.Format)
		}
	}
	if desc.Depth != nil {
		if _, ok := formatOf(desc.Depth.Format); !ok {
			return 0, fmt.Errorf("%w: depth attachment format %v", rhi.ErrUnsupported, desc.Depth.Format)
		}
	}
	p := &renderPass{desc: *desc}
	p.desc.Colors = append([]rhi.AttachmentDescriptor(nil), desc.Colors...)
	if desc.Depth != nil {
		d := *desc.Depth
		p.desc.Depth = &d
	}
	native, err := r.createNativePass(&p.desc, r.canonicalSpecs(&p.desc))
	if err != nil {
		return 0, err
	}
	p.native = native
	return rhi.RenderPassID(r.passes.Insert(p)), nil
}

// DestroyRenderPass implements rhi.Renderer. The swapchain pass belongs to
// the renderer and is not destroyed.
func (r *Renderer) DestroyRenderPass(id rhi.RenderPassID) {
	if id == r.swap.pass {
		return
	}
	p, ok := r.passes.Remove(arena.Handle(id))
	if !ok {
		return
	}
	var natives []vkapi.RenderPass
	for k, rp := range r.swap.natives {
		if k.pass == p {
			natives = append(natives, rp)
			delete(r.swap.natives, k)
		}
	}
	r.framebuffers.Each(func(_ arena.Handle, fb *framebuffer) {
		for k, rp := range fb.natives {
			if k.pass == p {
				natives = append(natives, rp)
				delete(fb.natives, k)
			}
		}
	})
	r.release(func() {
		for _, rp := range natives {
			r.dev.DestroyRenderPass(rp)
		}
		r.dev.DestroyRenderPass(p.native)
	})
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
	ids := append(append([]rhi.ImageID(nil), desc.Colors...), desc.Resolve...)
	if !desc.Depth.IsNull() {
		ids = append(ids, desc.Depth)
	}
	views := make([]vkapi.ImageView, len(ids))
	for i, id := range ids {
		img, _ := r.images.Get(arena.Handle(id))
		fb.images = append(fb.images, img)
		views[i] = img.target
	}
	native, err := r.framebufferPass(fb, pass)
	if err != nil {
		return 0, err
	}
	fb.native, err = r.dev.CreateFramebuffer(&vkapi.FramebufferCreateInfo{
		RenderPass:  native,
		Attachments: views,
		Width:       uint32(w),
		Height:      uint32(h),
	})
	if err != nil {
		r.destroyNatives(fb)
		return 0, vkError("create framebuffer", err)
	}
	return rhi.FramebufferID(r.framebuffers.Insert(fb)), nil
}

// framebufferPass returns the native pass that begins pass on fb. Every
// attachment enters and leaves the pass in its resting layout.
func (r *Renderer) framebufferPass(fb *framebuffer, pass *renderPass) (vkapi.RenderPass, error) {
	key := nativeKey{pass: pass}
	if rp, ok := fb.natives[key]; ok {
		return rp, nil
	}
	specs := make([]attachmentSpec, len(fb.images))
	for i, img := range fb.images {
		specs[i] = attachmentSpec{format: img.format, initial: img.rest, final: img.rest}
	}
	rp, err := r.createNativePass(&pass.desc, specs)
	if err != nil {
		return 0, err
	}
	if fb.natives == nil {
		fb.natives = make(map[nativeKey]vkapi.RenderPass)
	}
	fb.natives[key] = rp
	return rp, nil
}

func (r *Renderer) destroyNatives(fb *framebuffer) {
	for _, rp := range fb.natives {
		r.dev.DestroyRenderPass(rp)
	}
	fb.natives = nil
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
	r.release(func() {
		r.dev.DestroyFramebuffer(fb.native)
		r.destroyNatives(fb)
	})
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
// reset to the framebuffer extent; load-op clears are part of the native
// pass.
func (r *Renderer) BeginRenderPass(passID rhi.RenderPassID, fbID rhi.FramebufferID) error {
	if r.pass != nil {
		return fmt.Errorf("%w: render pass already active", rhi.ErrInvalidState)
	}
	cb, err := r.frameCommands("begin render pass")
	if err != nil {
		return err
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

	var native vkapi.RenderPass
	var target vkapi.Framebuffer
	if fb.swapchain {
		if len(r.swap.framebuffers) == 0 {
			return fmt.Errorf("%w: swapchain has no extent", rhi.ErrFrameRetry)
		}
		native, err = r.swapchainPass(pass, !r.swap.touched)
		target = r.swap.framebuffers[r.swap.index]
		r.swap.touched = true
	} else {
		native, err = r.framebufferPass(fb, pass)
		target = fb.native
	}
	if err != nil {
		return err
	}

	clears := make([]vkapi.ClearValue, 0, 2*len(pass.desc.Colors)+1)
	for _, c := range pass.desc.Colors {
		clears = append(clears, vkapi.ClearValue{Color: c.ClearColor})
	}
	if n := len(pass.desc.Colors); pass.desc.SampleCount() > 1 {
		clears = append(clears, make([]vkapi.ClearValue, n)...)
	}
	if d := pass.desc.Depth; d != nil {
		clears = append(clears, vkapi.ClearValue{Depth: d.ClearDepth, Stencil: d.ClearStencil})
	}
	r.dev.CmdBeginRenderPass(cb, &vkapi.RenderPassBeginInfo{
		RenderPass:  native,
		Framebuffer: target,
		Area:        vkapi.Rect2D{Extent: vkapi.Extent2D{Width: uint32(fb.width), Height: uint32(fb.height)}},
		Clears:      clears,
	})
	r.pass, r.fb = pass, fb

	r.SetViewport(state.Viewport{Width: float32(fb.width), Height: float32(fb.height), MaxDepth: 1})
	r.SetScissor(state.Rect{Width: uint32(fb.width), Height: uint32(fb.height)})
	return nil
}

// EndRenderPass implements rhi.Renderer. Multisampled colors are resolved
// by the native pass.
func (r *Renderer) EndRenderPass() error {
	if r.pass == nil {
		return fmt.Errorf("%w: no active render pass", rhi.ErrInvalidState)
	}
	r.dev.CmdEndRenderPass(r.frames[r.slot].cb)
	r.pass, r.fb = nil, nil
	return nil
}

func (r *Renderer) clearRect() []vkapi.Rect2D {
	return []vkapi.Rect2D{{Extent: vkapi.Extent2D{Width: uint32(r.fb.width), Height: uint32(r.fb.height)}}}
}

// ClearColorAttachment implements rhi.Renderer.
func (r *Renderer) ClearColorAttachment(index int, color mgl32.Vec4) error {
	if r.pass == nil {
		return fmt.Errorf("%w: clear outside a render pass", rhi.ErrInvalidState)
	}
	if index < 0 || index >= r.fb.colors {
		return fmt.Errorf("%w: color attachment %d of %d", rhi.ErrOutOfRange, index, r.fb.colors)
	}
	r.dev.CmdClearAttachments(r.frames[r.slot].cb, []vkapi.ClearAttachment{{
		Aspect:          vkapi.AspectColor,
		ColorAttachment: uint32(index),
		Value:           vkapi.ClearValue{Color: color},
	}}, r.clearRect())
	return nil
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
	aspect := vkapi.AspectDepth
	if rhi.HasStencil(d.Format) {
		aspect |= vkapi.AspectStencil
	}
	r.dev.CmdClearAttachments(r.frames[r.slot].cb, []vkapi.ClearAttachment{{
		Aspect: aspect,
		Value:  vkapi.ClearValue{Depth: depth, Stencil: stencil},
	}}, r.clearRect())
	return nil
}
