package vulkan

import (
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/state"
)

// imguiPoolSize bounds the font and user textures a UI renderer may
// register.
const imguiPoolSize = 1000

type imguiState struct {
	pool vkapi.DescriptorPool
}

// InitForImGui implements rhi.Renderer. The UI renderer gets a descriptor
// pool of its own and the swapchain pass. Changing the sample count
// replaces that pass, so the UI renderer must be initialized again.
func (r *Renderer) InitForImGui(init func(rhi.ImGuiInitInfo) error) error {
	if r.imgui != nil {
		return fmt.Errorf("%w: UI renderer already initialized", rhi.ErrInvalidState)
	}
	pool, err := r.dev.CreateDescriptorPool(&vkapi.DescriptorPoolCreateInfo{
		MaxSets: imguiPoolSize,
		Sizes:   []vkapi.DescriptorPoolSize{{Type: vkapi.DescriptorTypeCombinedImageSampler, Count: imguiPoolSize}},
	})
	if err != nil {
		return vkError("create UI descriptor pool", err)
	}
	pass, _ := r.passes.Get(arena.Handle(r.swap.pass))
	err = init(rhi.ImGuiInitInfo{
		Backend: rhi.BackendVulkan,
		Vulkan: &rhi.VulkanImGuiInfo{
			Instance:       r.inst,
			Device:         r.dev,
			RenderPass:     pass.native,
			DescriptorPool: pool,
			MinImageCount:  framesInFlight,
			ImageCount:     max(len(r.swap.images), framesInFlight),
			Samples:        pass.desc.SampleCount(),
		},
	})
	if err != nil {
		r.dev.DestroyDescriptorPool(pool)
		return fmt.Errorf("init UI renderer: %w", err)
	}
	r.imgui = &imguiState{pool: pool}
	return nil
}

// RenderForImGui implements rhi.Renderer. The swapchain render pass must
// be active. The UI renderer binds its own pipeline and buffers, so the
// bound pipeline and vertex array are bound again afterwards and every
// dynamic state is re-issued on the next bind. Descriptor set bindings
// must be bound again by the caller.
func (r *Renderer) RenderForImGui(render func(rhi.ImGuiRenderInfo)) error {
	if r.imgui == nil {
		return fmt.Errorf("%w: UI renderer not initialized", rhi.ErrInvalidState)
	}
	if r.fb == nil || !r.fb.swapchain {
		return fmt.Errorf("%w: UI rendering outside the swapchain render pass", rhi.ErrInvalidState)
	}
	cb := r.frames[r.slot].cb
	render(rhi.ImGuiRenderInfo{Backend: rhi.BackendVulkan, CommandBuffer: cb})

	r.machine.InvalidateAll()
	if p := r.bound; p != nil && !p.compute {
		r.dev.CmdBindPipeline(cb, vkapi.BindPointGraphics, p.native)
		state.Bind(r.machine, &p.Pipeline)
		r.machine.Invalidate(state.All &^ p.Dynamic)
	} else {
		r.bound = nil
		r.machine.Unbind()
	}
	if r.vertexArray != nil {
		r.bindVertexArray(cb, r.vertexArray)
	}
	return nil
}

// TermForImGui implements rhi.Renderer.
func (r *Renderer) TermForImGui(term func()) error {
	if r.imgui == nil {
		return nil
	}
	if err := r.waitIdle(); err != nil {
		return err
	}
	term()
	r.destroyImGui()
	return nil
}

func (r *Renderer) destroyImGui() {
	if r.imgui == nil {
		return
	}
	r.dev.DestroyDescriptorPool(r.imgui.pool)
	r.imgui = nil
}
