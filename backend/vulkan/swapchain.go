package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
)

// swapchain is the render pass and framebuffer targeting the presentable
// images. Multisampled swapchains render into an internal color image that
// is resolved into the acquired image. Headless renderers draw into a
// single internal target instead of a native swapchain.
type swapchain struct {
	pass        rhi.RenderPassID
	framebuffer rhi.FramebufferID

	handle     vkapi.Swapchain
	format     vkapi.Format
	colorSpace vkapi.ColorSpace
	width      int
	height     int

	images       []vkapi.Image
	views        []vkapi.ImageView
	framebuffers []vkapi.Framebuffer
	// natives are the render passes used to begin on the swapchain
	// framebuffer, keyed by the pass begun and whether the image is still
	// undefined in this frame.
	natives map[nativeKey]vkapi.RenderPass

	index   uint32
	touched bool
	stale   bool

	color  *image
	depth  *image
	target *image
}

// surfaceFormats lists the swapchain formats in order of preference.
var surfaceFormats = []struct {
	vk  vkapi.Format
	rhi gputypes.TextureFormat
}{
	{vkapi.FormatB8G8R8A8Unorm, gputypes.TextureFormatBGRA8Unorm},
	{vkapi.FormatR8G8B8A8Unorm, gputypes.TextureFormatRGBA8Unorm},
}

func (r *Renderer) chooseFormat() (vkapi.Format, vkapi.ColorSpace, gputypes.TextureFormat, error) {
	if r.surface == 0 {
		return vkapi.FormatR8G8B8A8Unorm, vkapi.ColorSpaceSrgbNonlinear, gputypes.TextureFormatRGBA8Unorm, nil
	}
	formats, err := r.dev.SurfaceFormats(r.surface)
	if err != nil {
		return 0, 0, 0, vkError("query surface formats", err)
	}
	for _, want := range surfaceFormats {
		for _, f := range formats {
			if f.Format == want.vk && f.ColorSpace == vkapi.ColorSpaceSrgbNonlinear {
				return f.Format, f.ColorSpace, want.rhi, nil
			}
		}
	}
	return 0, 0, 0, fmt.Errorf("%w: no supported surface format among %d", rhi.ErrUnsupported, len(formats))
}

func (r *Renderer) createSwapchain() error {
	format, space, rf, err := r.chooseFormat()
	if err != nil {
		return err
	}
	r.swap.format, r.swap.colorSpace = format, space
	pass := &renderPass{
		swapchain: true,
		desc: rhi.RenderPassDescriptor{
			Colors: []rhi.AttachmentDescriptor{{
				Format: rf,
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
	if pass.native, err = r.createNativePass(&pass.desc, r.canonicalSpecs(&pass.desc)); err != nil {
		return err
	}
	r.swap.pass = rhi.RenderPassID(r.passes.Insert(pass))
	r.swap.framebuffer = rhi.FramebufferID(r.framebuffers.Insert(&framebuffer{
		pass:      r.swap.pass,
		colors:    1,
		swapchain: true,
	}))
	return r.buildSwapchain()
}

// presentLayout is the layout the acquired image is left in at the end of
// every pass.
func (r *Renderer) presentLayout() vkapi.ImageLayout {
	if r.surface == 0 {
		return layoutColor
	}
	return layoutPresent
}

// swapchainExtent returns the extent to build at, clamped to the surface
// limits.
func (r *Renderer) swapchainExtent(caps *vkapi.SurfaceCapabilities) (int, int) {
	w, h := r.opts.Width, r.opts.Height
	if r.window != nil {
		if ww, wh := r.window.FramebufferSize(); ww > 0 && wh > 0 {
			w, h = ww, wh
		}
	}
	if caps == nil {
		return w, h
	}
	if caps.CurrentExtent.Width != ^uint32(0) {
		return int(caps.CurrentExtent.Width), int(caps.CurrentExtent.Height)
	}
	w = min(max(w, int(caps.MinExtent.Width)), int(caps.MaxExtent.Width))
	h = min(max(h, int(caps.MinExtent.Height)), int(caps.MaxExtent.Height))
	return w, h
}

// rebuildSwapchain waits for the device and rebuilds the swapchain and its
// targets at the current extent.
func (r *Renderer) rebuildSwapchain() error {
	if err := r.waitIdle(); err != nil {
		return err
	}
	r.swap.stale = false
	return r.buildSwapchain()
}

func (r *Renderer) buildSwapchain() error {
	r.releaseSwapchainTargets()
	pass, _ := r.passes.Get(arena.Handle(r.swap.pass))
	fb, _ := r.framebuffers.Get(arena.Handle(r.swap.framebuffer))

	var err error
	if r.surface == 0 {
		err = r.buildHeadless()
	} else {
		err = r.buildNative()
	}
	if err != nil || r.swap.width == 0 {
		return err
	}
	fb.width, fb.height = r.swap.width, r.swap.height

	samples := pass.desc.SampleCount()
	if samples > 1 {
		r.swap.color, err = r.newImage(&rhi.ImageDescriptor{
			Width:   r.swap.width,
			Height:  r.swap.height,
			Samples: samples,
			Format:  pass.desc.Colors[0].Format,
			Usage:   gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			return err
		}
	}
	r.swap.depth, err = r.newImage(&rhi.ImageDescriptor{
		Width:   r.swap.width,
		Height:  r.swap.height,
		Samples: samples,
		Format:  pass.desc.Depth.Format,
		Usage:   gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}

	native, err := r.swapchainPass(pass, false)
	if err != nil {
		return err
	}
	for _, view := range r.swap.views {
		attachments := []vkapi.ImageView{view, r.swap.depth.target}
		if r.swap.color != nil {
			attachments = []vkapi.ImageView{r.swap.color.target, view, r.swap.depth.target}
		}
		f, err := r.dev.CreateFramebuffer(&vkapi.FramebufferCreateInfo{
			RenderPass:  native,
			Attachments: attachments,
			Width:       uint32(r.swap.width),
			Height:      uint32(r.swap.height),
		})
		if err != nil {
			return vkError("create swapchain framebuffer", err)
		}
		r.swap.framebuffers = append(r.swap.framebuffers, f)
	}
	rhi.Logger().Info("vulkan: swapchain configured",
		"width", r.swap.width,
		"height", r.swap.height,
		"images", len(r.swap.images),
		"samples", samples,
		"vsync", r.opts.VSync.String())
	return nil
}

func (r *Renderer) buildHeadless() error {
	pass, _ := r.passes.Get(arena.Handle(r.swap.pass))
	w, h := r.swapchainExtent(nil)
	target, err := r.newImage(&rhi.ImageDescriptor{
		Width:  w,
		Height: h,
		Format: pass.desc.Colors[0].Format,
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	r.swap.target = target
	r.swap.width, r.swap.height = w, h
	r.swap.images = []vkapi.Image{target.img}
	r.swap.views = []vkapi.ImageView{target.target}
	r.swap.index = 0
	return nil
}

func (r *Renderer) buildNative() error {
	caps, err := r.dev.SurfaceCapabilities(r.surface)
	if err != nil {
		return vkError("query surface capabilities", err)
	}
	w, h := r.swapchainExtent(&caps)
	if w == 0 || h == 0 {
		// Minimized windows have no extent; frames retry until one appears.
		r.swap.width, r.swap.height = 0, 0
		return nil
	}
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 {
		count = min(count, caps.MaxImageCount)
	}
	mode, err := r.presentMode()
	if err != nil {
		return err
	}
	old := r.swap.handle
	sc, err := r.dev.CreateSwapchain(&vkapi.SwapchainCreateInfo{
		Surface:       r.surface,
		MinImageCount: count,
		Format:        r.swap.format,
		ColorSpace:    r.swap.colorSpace,
		Extent:        vkapi.Extent2D{Width: uint32(w), Height: uint32(h)},
		Usage:         vkapi.ImageUsageColorAttachment | vkapi.ImageUsageTransferSrc | vkapi.ImageUsageTransferDst,
		PresentMode:   mode,
		OldSwapchain:  old,
	})
	if old != 0 {
		r.dev.DestroySwapchain(old)
		r.swap.handle = 0
	}
	if err != nil {
		return vkError("create swapchain", err)
	}
	r.swap.handle = sc
	r.swap.width, r.swap.height = w, h
	images, err := r.dev.SwapchainImages(sc)
	if err != nil {
		return vkError("query swapchain images", err)
	}
	r.swap.images = images
	for _, img := range images {
		view, err := r.dev.CreateImageView(&vkapi.ImageViewCreateInfo{
			Image:  img,
			Format: r.swap.format,
			Range:  vkapi.SubresourceRange{Aspect: vkapi.AspectColor, LevelCount: 1},
		})
		if err != nil {
			return vkError("create swapchain view", err)
		}
		r.swap.views = append(r.swap.views, view)
	}
	return nil
}

// presentMode picks the first mode the surface supports for the vsync
// setting. FIFO is always available.
func (r *Renderer) presentMode() (vkapi.PresentMode, error) {
	modes, err := r.dev.SurfacePresentModes(r.surface)
	if err != nil {
		return 0, vkError("query present modes", err)
	}
	var want []vkapi.PresentMode
	switch r.opts.VSync {
	case rhi.VSyncOff:
		want = []vkapi.PresentMode{vkapi.PresentModeMailbox, vkapi.PresentModeImmediate}
	case rhi.VSyncAdaptive:
		want = []vkapi.PresentMode{vkapi.PresentModeFifoRelaxed}
	}
	for _, w := range want {
		for _, m := range modes {
			if m == w {
				return m, nil
			}
		}
	}
	return vkapi.PresentModeFifo, nil
}

// swapchainPass returns the native pass that begins pass on the swapchain
// framebuffer.
func (r *Renderer) swapchainPass(pass *renderPass, fresh bool) (vkapi.RenderPass, error) {
	key := nativeKey{pass: pass, fresh: fresh}
	if rp, ok := r.swap.natives[key]; ok {
		return rp, nil
	}
	present := r.presentLayout()
	initial := present
	if fresh {
		initial = layoutUndefined
	}
	acquired := attachmentSpec{format: r.swap.format, initial: initial, final: present}
	var specs []attachmentSpec
	if r.swap.color != nil {
		specs = append(specs, attachmentSpec{format: r.swap.color.format, initial: layoutColor, final: layoutColor}, acquired)
	} else {
		specs = append(specs, acquired)
	}
	specs = append(specs, attachmentSpec{format: r.swap.depth.format, initial: layoutDepthStencil, final: layoutDepthStencil})
	rp, err := r.createNativePass(&pass.desc, specs)
	if err != nil {
		return 0, err
	}
	if r.swap.natives == nil {
		r.swap.natives = make(map[nativeKey]vkapi.RenderPass)
	}
	r.swap.natives[key] = rp
	return rp, nil
}

// releaseSwapchainTargets destroys everything built for the current extent
// except the native swapchain, which is retired by its replacement.
func (r *Renderer) releaseSwapchainTargets() {
	for _, f := range r.swap.framebuffers {
		r.dev.DestroyFramebuffer(f)
	}
	for _, rp := range r.swap.natives {
		r.dev.DestroyRenderPass(rp)
	}
	if r.swap.handle != 0 {
		for _, v := range r.swap.views {
			r.dev.DestroyImageView(v)
		}
	}
	for _, img := range []*image{r.swap.color, r.swap.depth, r.swap.target} {
		if img != nil {
			r.freeImage(img)
		}
	}
	r.swap.framebuffers, r.swap.natives = nil, nil
	r.swap.images, r.swap.views = nil, nil
	r.swap.color, r.swap.depth, r.swap.target = nil, nil, nil
}

func (r *Renderer) destroySwapchain() {
	r.releaseSwapchainTargets()
	if r.swap.handle != 0 {
		r.dev.DestroySwapchain(r.swap.handle)
		r.swap.handle = 0
	}
	if p, ok := r.passes.Remove(arena.Handle(r.swap.pass)); ok {
		r.dev.DestroyRenderPass(p.native)
	}
	r.framebuffers.Remove(arena.Handle(r.swap.framebuffer))
}
