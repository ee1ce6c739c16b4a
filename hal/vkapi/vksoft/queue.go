package vksoft

import (
	"github.com/gogpu/rhi/hal/vkapi"
)

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbInvalid
)

type command struct {
	name string
	run  func()
}

type commandBuffer struct {
	pool     vkapi.CommandPool
	state    cbState
	oneTime  bool
	commands []command
	pending  int

	// Record-time tracking.
	pass     *vkapi.RenderPassBeginInfo
	graphics *pipeline
	compute  *pipeline
	dynamic  map[vkapi.DynamicState]bool
	bound    map[vkapi.PipelineBindPoint]map[uint32]vkapi.DescriptorSet
	sets     map[vkapi.DescriptorSet]bool
}

type fence struct {
	signaled bool
	pending  bool
}

type semaphore struct {
	signaled bool
}

type submission struct {
	cbs     []*commandBuffer
	fence   *fence
	present *presentOp
}

type presentOp struct {
	swapchain *swapchain
	index     uint32
}

type swapchain struct {
	info    vkapi.SwapchainCreateInfo
	window  *Window
	images  []vkapi.Image
	next    uint32
	retired bool
	// acquired holds the indices handed out and not yet presented.
	acquired map[uint32]bool
}

// CreateCommandPool implements vkapi.Device.
func (d *Device) CreateCommandPool() (vkapi.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := vkapi.CommandPool(d.handle())
	d.cmdPools[p] = make(map[vkapi.CommandBuffer]bool)
	return p, nil
}

// DestroyCommandPool implements vkapi.Device. Its command buffers are
// freed.
func (d *Device) DestroyCommandPool(p vkapi.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for cb := range d.cmdPools[p] {
		d.freeCommandBuffer(cb)
	}
	delete(d.cmdPools, p)
}

// AllocateCommandBuffers implements vkapi.Device.
func (d *Device) AllocateCommandBuffers(pool vkapi.CommandPool, n int) ([]vkapi.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	members := d.cmdPools[pool]
	if members == nil {
		return nil, vkapi.ErrorInitializationFail
	}
	out := make([]vkapi.CommandBuffer, n)
	for i := range out {
		cb := vkapi.CommandBuffer(d.handle())
		d.cmds[cb] = &commandBuffer{pool: pool}
		members[cb] = true
		out[i] = cb
	}
	return out, nil
}

// FreeCommandBuffers implements vkapi.Device.
func (d *Device) FreeCommandBuffers(pool vkapi.CommandPool, cbs []vkapi.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range cbs {
		if d.cmdPools[pool][cb] {
			d.freeCommandBuffer(cb)
			delete(d.cmdPools[pool], cb)
		}
	}
}

func (d *Device) freeCommandBuffer(h vkapi.CommandBuffer) {
	if cb := d.cmds[h]; cb != nil && cb.pending > 0 {
		d.invalid("command buffer %d freed while pending", h)
	}
	delete(d.cmds, h)
}

// CreateFence implements vkapi.Device.
func (d *Device) CreateFence(signaled bool) (vkapi.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := vkapi.Fence(d.handle())
	d.fences[f] = &fence{signaled: signaled}
	return f, nil
}

// DestroyFence implements vkapi.Device.
func (d *Device) DestroyFence(f vkapi.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fe := d.fences[f]; fe != nil && fe.pending {
		d.invalid("fence %d destroyed while pending", f)
	}
	delete(d.fences, f)
}

// WaitForFences implements vkapi.Device. Submitted work runs now. A fence
// with no submission behind it never signals, so the wait times out.
func (d *Device) WaitForFences(fences []vkapi.Fence, timeout uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range fences {
		d.event("wait fence %d", h)
		f := d.fences[h]
		if f == nil {
			return vkapi.ErrorDeviceLost
		}
		if f.signaled {
			continue
		}
		if !f.pending {
			d.invalid("wait on fence %d that has no pending submission", h)
			return vkapi.Timeout
		}
		d.flush(f)
	}
	return nil
}

// ResetFences implements vkapi.Device.
func (d *Device) ResetFences(fences []vkapi.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range fences {
		d.event("reset fence %d", h)
		f := d.fences[h]
		if f == nil {
			return vkapi.ErrorDeviceLost
		}
		if f.pending {
			d.invalid("fence %d reset while pending", h)
		}
		f.signaled = false
	}
	return nil
}

// FenceStatus implements vkapi.Device. Polling completes the submission
// the fence guards.
func (d *Device) FenceStatus(h vkapi.Fence) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.fences[h]
	if f == nil {
		return false, vkapi.ErrorDeviceLost
	}
	if f.pending {
		d.flush(f)
	}
	return f.signaled, nil
}

// CreateSemaphore implements vkapi.Device.
func (d *Device) CreateSemaphore() (vkapi.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := vkapi.Semaphore(d.handle())
	d.semaphores[s] = &semaphore{}
	return s, nil
}

// DestroySemaphore implements vkapi.Device.
func (d *Device) DestroySemaphore(s vkapi.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, s)
}

// wait consumes a semaphore signal. Semaphores are queue ordered, so a
// signal from an earlier submission satisfies the wait even before it
// executes.
func (d *Device) wait(h vkapi.Semaphore, op string) {
	s := d.semaphores[h]
	if s == nil || !s.signaled {
		d.invalid("%s waits on semaphore %d that is not signaled", op, h)
		return
	}
	s.signaled = false
}

func (d *Device) signal(h vkapi.Semaphore, op string) {
	s := d.semaphores[h]
	if s == nil {
		d.invalid("%s signals unknown semaphore %d", op, h)
		return
	}
	if s.signaled {
		d.invalid("%s signals semaphore %d that is already signaled", op, h)
	}
	s.signaled = true
}

// QueueSubmit implements vkapi.Device.
func (d *Device) QueueSubmit(submits []vkapi.SubmitInfo, fh vkapi.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.submitErr; err != nil {
		d.submitErr = nil
		d.event("submit fence %d failed", fh)
		return err
	}
	var f *fence
	if fh != 0 {
		f = d.fences[fh]
		if f == nil {
			return vkapi.ErrorDeviceLost
		}
		if f.signaled || f.pending {
			d.invalid("submit with fence %d that is signaled or pending", fh)
		}
	}
	d.event("submit fence %d", fh)
	sub := &submission{fence: f}
	for _, s := range submits {
		for _, w := range s.Wait {
			d.wait(w, "submit")
		}
		for _, h := range s.CommandBuffers {
			cb := d.cmds[h]
			if cb == nil {
				return vkapi.ErrorDeviceLost
			}
			if cb.state != cbExecutable {
				d.invalid("command buffer %d submitted without being recorded", h)
				continue
			}
			if cb.pending > 0 {
				d.invalid("command buffer %d submitted while pending", h)
			}
			cb.pending++
			for set := range cb.sets {
				if ds := d.sets[set]; ds != nil {
					ds.pending++
				}
			}
			sub.cbs = append(sub.cbs, cb)
		}
		for _, sig := range s.Signal {
			d.signal(sig, "submit")
		}
	}
	if f != nil {
		f.pending = true
	}
	d.queue = append(d.queue, sub)
	return nil
}

// QueuePresent implements vkapi.Device. It returns vkapi.ErrorOutOfDate
// when the window no longer matches the swapchain; the wait semaphores
// are consumed either way.
func (d *Device) QueuePresent(info *vkapi.PresentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range info.Wait {
		d.wait(w, "present")
	}
	sc := d.swapchains[info.Swapchain]
	if sc == nil {
		return vkapi.ErrorSurfaceLost
	}
	d.event("present %d", info.ImageIndex)
	if !sc.acquired[info.ImageIndex] {
		d.invalid("present of image %d that was not acquired", info.ImageIndex)
	}
	delete(sc.acquired, info.ImageIndex)
	d.queue = append(d.queue, &submission{present: &presentOp{swapchain: sc, index: info.ImageIndex}})
	if sc.window.extent() != sc.info.Extent {
		return vkapi.ErrorOutOfDate
	}
	return nil
}

// WaitIdle implements vkapi.Device.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.event("wait idle")
	d.flush(nil)
	return nil
}

// flush executes queued submissions in order, up to and including the one
// signaling until, or all of them when until is nil.
func (d *Device) flush(until *fence) {
	for len(d.queue) > 0 {
		sub := d.queue[0]
		d.queue = d.queue[1:]
		d.execute(sub)
		if until != nil && sub.fence == until {
			return
		}
	}
}

func (d *Device) execute(sub *submission) {
	if sub.present != nil {
		d.executePresent(sub.present)
		return
	}
	for _, cb := range sub.cbs {
		for _, c := range cb.commands {
			c.run()
		}
		cb.pending--
		for set := range cb.sets {
			if ds := d.sets[set]; ds != nil {
				ds.pending--
			}
		}
		if cb.oneTime {
			cb.state = cbInvalid
		}
	}
	if sub.fence != nil {
		sub.fence.pending = false
		sub.fence.signaled = true
	}
}

func (d *Device) executePresent(p *presentOp) {
	if int(p.index) >= len(p.swapchain.images) {
		d.invalid("present of image index %d", p.index)
		return
	}
	img := d.images[p.swapchain.images[p.index]]
	if img == nil {
		return
	}
	if img.layouts[0] != vkapi.ImageLayoutPresentSrc {
		d.invalid("present of image %d in layout %v", p.index, img.layouts[0])
	}
	d.presented = append(d.presented[:0], img.levels[0]...)
	d.presents++
}

// SurfaceSupported implements vkapi.Device.
func (d *Device) SurfaceSupported(s vkapi.Surface) (bool, error) {
	if d.inst.window(s) == nil {
		return false, vkapi.ErrorSurfaceLost
	}
	return !d.inst.opts.NoPresent, nil
}

// SurfaceCapabilities implements vkapi.Device.
func (d *Device) SurfaceCapabilities(s vkapi.Surface) (vkapi.SurfaceCapabilities, error) {
	w := d.inst.window(s)
	if w == nil {
		return vkapi.SurfaceCapabilities{}, vkapi.ErrorSurfaceLost
	}
	return vkapi.SurfaceCapabilities{
		MinImageCount: 2,
		MaxImageCount: 8,
		CurrentExtent: w.extent(),
		MinExtent:     vkapi.Extent2D{Width: 1, Height: 1},
		MaxExtent:     vkapi.Extent2D{Width: d.props.MaxImageDimension2D, Height: d.props.MaxImageDimension2D},
	}, nil
}

// SurfaceFormats implements vkapi.Device.
func (d *Device) SurfaceFormats(s vkapi.Surface) ([]vkapi.SurfaceFormat, error) {
	if d.inst.window(s) == nil {
		return nil, vkapi.ErrorSurfaceLost
	}
	return []vkapi.SurfaceFormat{
		{Format: vkapi.FormatB8G8R8A8Unorm, ColorSpace: vkapi.ColorSpaceSrgbNonlinear},
		{Format: vkapi.FormatR8G8B8A8Unorm, ColorSpace: vkapi.ColorSpaceSrgbNonlinear},
	}, nil
}

// SurfacePresentModes implements vkapi.Device.
func (d *Device) SurfacePresentModes(s vkapi.Surface) ([]vkapi.PresentMode, error) {
	if d.inst.window(s) == nil {
		return nil, vkapi.ErrorSurfaceLost
	}
	return []vkapi.PresentMode{
		vkapi.PresentModeFifo,
		vkapi.PresentModeFifoRelaxed,
		vkapi.PresentModeMailbox,
		vkapi.PresentModeImmediate,
	}, nil
}

// CreateSwapchain implements vkapi.Device. The old swapchain, if any, is
// retired and can no longer acquire.
func (d *Device) CreateSwapchain(info *vkapi.SwapchainCreateInfo) (vkapi.Swapchain, error) {
	w := d.inst.window(info.Surface)
	d.mu.Lock()
	defer d.mu.Unlock()
	if w == nil {
		return 0, vkapi.ErrorSurfaceLost
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		d.invalid("swapchain of %dx%d", info.Extent.Width, info.Extent.Height)
		return 0, vkapi.ErrorInitializationFail
	}
	if info.MinImageCount < 2 || info.MinImageCount > 8 {
		d.invalid("swapchain with %d images", info.MinImageCount)
		return 0, vkapi.ErrorInitializationFail
	}
	if old := d.swapchains[info.OldSwapchain]; old != nil {
		old.retired = true
	}
	sc := &swapchain{info: *info, window: w, acquired: make(map[uint32]bool)}
	for range info.MinImageCount {
		img, err := d.newImage(&vkapi.ImageCreateInfo{
			Format:    info.Format,
			Width:     info.Extent.Width,
			Height:    info.Extent.Height,
			MipLevels: 1,
			Samples:   1,
			Usage:     info.Usage,
		})
		if err != nil {
			d.releaseSwapchain(sc)
			return 0, err
		}
		img.bound, img.swapchain = true, true
		h := vkapi.Image(d.handle())
		d.images[h] = img
		sc.images = append(sc.images, h)
	}
	h := vkapi.Swapchain(d.handle())
	d.swapchains[h] = sc
	return h, nil
}

func (d *Device) releaseSwapchain(sc *swapchain) {
	for _, img := range sc.images {
		delete(d.images, img)
	}
}

// DestroySwapchain implements vkapi.Device.
func (d *Device) DestroySwapchain(h vkapi.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.swapchains[h]
	if sc == nil {
		return
	}
	for _, sub := range d.queue {
		if sub.present != nil && sub.present.swapchain == sc {
			d.invalid("swapchain %d destroyed with a pending present", h)
			break
		}
	}
	d.releaseSwapchain(sc)
	delete(d.swapchains, h)
}

// SwapchainImages implements vkapi.Device.
func (d *Device) SwapchainImages(h vkapi.Swapchain) ([]vkapi.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.swapchains[h]
	if sc == nil {
		return nil, vkapi.ErrorSurfaceLost
	}
	return append([]vkapi.Image(nil), sc.images...), nil
}

// AcquireNextImage implements vkapi.Device. Images are handed out round
// robin.
func (d *Device) AcquireNextImage(h vkapi.Swapchain, timeout uint64, signal vkapi.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.swapchains[h]
	if sc == nil {
		return 0, vkapi.ErrorSurfaceLost
	}
	if sc.retired {
		d.invalid("acquire from retired swapchain %d", h)
		return 0, vkapi.ErrorOutOfDate
	}
	if sc.window.extent() != sc.info.Extent {
		d.event("acquire out of date")
		return 0, vkapi.ErrorOutOfDate
	}
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	sc.acquired[idx] = true
	d.event("acquire %d", idx)
	if signal != 0 {
		d.signal(signal, "acquire")
	}
	return idx, nil
}
