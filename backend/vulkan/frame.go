package vulkan

import (
	"errors"
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
)

// frame is one slot of the frame ring. The fence is always either
// signaled or pending: it is reset only immediately before a submission,
// and replaced by a signaled fence if that submission fails.
type frame struct {
	cb       vkapi.CommandBuffer
	fence    vkapi.Fence
	acquired vkapi.Semaphore
	finished vkapi.Semaphore

	// releases run once the fence has signaled for the work that may
	// still reference the objects they free.
	releases []func()
}

func (r *Renderer) createFrames() error {
	pool, err := r.dev.CreateCommandPool()
	if err != nil {
		return vkError("create command pool", err)
	}
	r.pool = pool
	cbs, err := r.dev.AllocateCommandBuffers(pool, framesInFlight)
	if err != nil {
		return vkError("allocate command buffers", err)
	}
	for i := range r.frames {
		f := &r.frames[i]
		f.cb = cbs[i]
		if f.fence, err = r.dev.CreateFence(true); err != nil {
			return vkError("create fence", err)
		}
		if r.surface == 0 {
			continue
		}
		if f.acquired, err = r.dev.CreateSemaphore(); err != nil {
			return vkError("create semaphore", err)
		}
		if f.finished, err = r.dev.CreateSemaphore(); err != nil {
			return vkError("create semaphore", err)
		}
	}
	r.fence, err = r.dev.CreateFence(false)
	return vkError("create fence", err)
}

func (r *Renderer) destroyFrames() {
	for i := range r.frames {
		f := &r.frames[i]
		if f.fence != 0 {
			r.dev.DestroyFence(f.fence)
		}
		if f.acquired != 0 {
			r.dev.DestroySemaphore(f.acquired)
		}
		if f.finished != 0 {
			r.dev.DestroySemaphore(f.finished)
		}
		*f = frame{}
	}
	if r.fence != 0 {
		r.dev.DestroyFence(r.fence)
		r.fence = 0
	}
	if r.pool != 0 {
		r.dev.DestroyCommandPool(r.pool)
		r.pool = 0
	}
}

// BeginFrame implements rhi.Renderer. It waits for the slot's previous
// submission, acquires a swapchain image and starts recording.
func (r *Renderer) BeginFrame() error {
	if r.destroyed {
		return rhi.ErrDestroyed
	}
	if r.recording {
		return fmt.Errorf("%w: frame already open", rhi.ErrInvalidState)
	}
	f := &r.frames[r.slot]
	if err := r.dev.WaitForFences([]vkapi.Fence{f.fence}, fenceTimeout); err != nil {
		return vkError("wait for frame", err)
	}
	r.runReleases(f)
	r.refreshDynamicBuffers(r.slot)

	if r.surface != 0 {
		if r.swap.handle == 0 {
			return r.recreate()
		}
		idx, err := r.dev.AcquireNextImage(r.swap.handle, fenceTimeout, f.acquired)
		switch {
		case errors.Is(err, vkapi.Suboptimal):
			r.swap.stale = true
		case errors.Is(err, vkapi.ErrorOutOfDate):
			return r.recreate()
		case err != nil:
			return vkError("acquire image", err)
		}
		r.swap.index = idx
	}
	if err := r.dev.BeginCommandBuffer(f.cb, true); err != nil {
		return vkError("begin command buffer", err)
	}
	r.recording = true
	r.frameCount++
	r.swap.touched = false
	r.bound, r.vertexArray = nil, nil
	r.machine.Unbind()
	r.machine.InvalidateAll()
	return nil
}

// EndFrame implements rhi.Renderer. The frame is submitted and presented
// and the next slot becomes current, whether or not presenting succeeds.
func (r *Renderer) EndFrame() error {
	if r.destroyed {
		return rhi.ErrDestroyed
	}
	if r.pass != nil {
		return fmt.Errorf("%w: frame ended inside a render pass", rhi.ErrInvalidState)
	}
	if !r.recording {
		return fmt.Errorf("%w: no frame open", rhi.ErrInvalidState)
	}
	f := &r.frames[r.slot]
	if r.swap.handle != 0 && !r.swap.touched {
		r.transition(f.cb, r.swap.images[r.swap.index], vkapi.AspectColor, 0, 1,
			vkapi.ImageLayoutUndefined, vkapi.ImageLayoutPresentSrc)
	}
	r.recording = false
	r.bound, r.vertexArray = nil, nil
	r.machine.Unbind()
	if err := r.dev.EndCommandBuffer(f.cb); err != nil {
		return vkError("end command buffer", err)
	}

	submit := vkapi.SubmitInfo{CommandBuffers: []vkapi.CommandBuffer{f.cb}}
	if r.swap.handle != 0 {
		submit.Wait = []vkapi.Semaphore{f.acquired}
		submit.WaitStages = []vkapi.PipelineStage{vkapi.StageColorAttachmentOutput}
		submit.Signal = []vkapi.Semaphore{f.finished}
	}
	if err := r.dev.ResetFences([]vkapi.Fence{f.fence}); err != nil {
		return vkError("reset fence", err)
	}
	if err := r.dev.QueueSubmit([]vkapi.SubmitInfo{submit}, f.fence); err != nil {
		r.recoverSlot(f)
		return vkError("submit frame", err)
	}
	r.submitted = r.slot
	r.slot = (r.slot + 1) % framesInFlight
	if r.swap.handle == 0 {
		return nil
	}

	err := r.dev.QueuePresent(&vkapi.PresentInfo{
		Wait:       []vkapi.Semaphore{f.finished},
		Swapchain:  r.swap.handle,
		ImageIndex: r.swap.index,
	})
	switch {
	case errors.Is(err, vkapi.ErrorOutOfDate), errors.Is(err, vkapi.Suboptimal):
		return r.recreate()
	case err != nil:
		return vkError("present", err)
	case r.swap.stale:
		return r.recreate()
	}
	return nil
}

// recoverSlot readies f for the next BeginFrame after its submission
// failed. Nothing will signal the reset fence or wait on the acquire
// semaphore, so both are replaced.
func (r *Renderer) recoverSlot(f *frame) {
	fence, err := r.dev.CreateFence(true)
	if err != nil {
		rhi.Logger().Warn("vulkan: replace frame fence", "error", err)
	} else {
		r.dev.DestroyFence(f.fence)
		f.fence = fence
	}
	if f.acquired == 0 {
		return
	}
	sem, err := r.dev.CreateSemaphore()
	if err != nil {
		rhi.Logger().Warn("vulkan: replace acquire semaphore", "error", err)
		return
	}
	r.dev.DestroySemaphore(f.acquired)
	f.acquired = sem
}

// recreate rebuilds a stale swapchain and asks for the frame to be
// retried.
func (r *Renderer) recreate() error {
	if err := r.rebuildSwapchain(); err != nil {
		return err
	}
	return fmt.Errorf("%w: swapchain %dx%d", rhi.ErrFrameRetry, r.swap.width, r.swap.height)
}

// FrameSlot implements rhi.Renderer.
func (r *Renderer) FrameSlot() int { return r.slot }

// WaitDeviceIdle implements rhi.Renderer.
func (r *Renderer) WaitDeviceIdle() error {
	if r.destroyed {
		return rhi.ErrDestroyed
	}
	return r.waitIdle()
}

// waitIdle waits for the device and runs the releases no open frame can
// still reference.
func (r *Renderer) waitIdle() error {
	if err := r.dev.WaitIdle(); err != nil {
		return vkError("wait idle", err)
	}
	for i := range r.frames {
		if r.recording && i == r.slot {
			continue
		}
		r.runReleases(&r.frames[i])
	}
	return nil
}

func (r *Renderer) runReleases(f *frame) {
	fns := f.releases
	f.releases = nil
	for _, fn := range fns {
		fn()
	}
}

func (r *Renderer) drainReleases() {
	for i := range r.frames {
		r.runReleases(&r.frames[i])
	}
}

// release runs fn once no submitted or recording work can reference what
// it frees.
func (r *Renderer) release(fn func()) {
	if r.recording {
		f := &r.frames[r.slot]
		f.releases = append(f.releases, fn)
		return
	}
	if r.submitted < 0 {
		fn()
		return
	}
	f := &r.frames[r.submitted]
	if done, err := r.dev.FenceStatus(f.fence); err == nil && done {
		fn()
		return
	}
	f.releases = append(f.releases, fn)
}

// frameCommands returns the command buffer of the open frame.
func (r *Renderer) frameCommands(op string) (vkapi.CommandBuffer, error) {
	if !r.recording {
		return 0, fmt.Errorf("%w: %s outside a frame", rhi.ErrInvalidState, op)
	}
	return r.frames[r.slot].cb, nil
}

// immediate records fn into a one-time command buffer, submits it and
// waits for it to complete.
func (r *Renderer) immediate(op string, fn func(cb vkapi.CommandBuffer) error) error {
	cbs, err := r.dev.AllocateCommandBuffers(r.pool, 1)
	if err != nil {
		return vkError(op, err)
	}
	defer r.dev.FreeCommandBuffers(r.pool, cbs)
	cb := cbs[0]
	if err := r.dev.BeginCommandBuffer(cb, true); err != nil {
		return vkError(op, err)
	}
	if err := fn(cb); err != nil {
		_ = r.dev.EndCommandBuffer(cb)
		return err
	}
	if err := r.dev.EndCommandBuffer(cb); err != nil {
		return vkError(op, err)
	}
	if err := r.dev.QueueSubmit([]vkapi.SubmitInfo{{CommandBuffers: cbs}}, r.fence); err != nil {
		return vkError(op, err)
	}
	if err := r.dev.WaitForFences([]vkapi.Fence{r.fence}, fenceTimeout); err != nil {
		return vkError(op, err)
	}
	return vkError(op, r.dev.ResetFences([]vkapi.Fence{r.fence}))
}

// transfer records fn into the open frame, or into an immediate
// submission outside one. Transfers are not allowed inside a render pass.
func (r *Renderer) transfer(op string, fn func(cb vkapi.CommandBuffer) error) error {
	if !r.recording {
		return r.immediate(op, fn)
	}
	if r.pass != nil {
		return fmt.Errorf("%w: %s inside a render pass", rhi.ErrInvalidState, op)
	}
	return fn(r.frames[r.slot].cb)
}
