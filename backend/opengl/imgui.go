package opengl

import (
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/state"
)

// glslVersion is the version directive handed to UI renderers.
const glslVersion = "#version 460"

// InitForImGui implements rhi.Renderer.
func (r *Renderer) InitForImGui(init func(rhi.ImGuiInitInfo) error) error {
	if r.imgui {
		return fmt.Errorf("%w: UI renderer already initialized", rhi.ErrInvalidState)
	}
	err := init(rhi.ImGuiInitInfo{
		Backend: rhi.BackendOpenGL,
		GL:      &rhi.GLImGuiInfo{GLSLVersion: glslVersion},
	})
	if err != nil {
		return fmt.Errorf("init UI renderer: %w", err)
	}
	r.imgui = true
	return nil
}

// RenderForImGui implements rhi.Renderer. The swapchain render pass must
// be active. The UI renderer changes GL state freely, so the bound objects
// and every state kind are restored afterwards.
func (r *Renderer) RenderForImGui(render func(rhi.ImGuiRenderInfo)) error {
	if !r.imgui {
		return fmt.Errorf("%w: UI renderer not initialized", rhi.ErrInvalidState)
	}
	if r.fb == nil || !r.fb.swapchain {
		return fmt.Errorf("%w: UI rendering outside the swapchain render pass", rhi.ErrInvalidState)
	}
	render(rhi.ImGuiRenderInfo{Backend: rhi.BackendOpenGL})

	r.bindDrawFramebuffer(r.fb.fbo)
	if r.bound != nil {
		r.gl.UseProgram(r.bound.program)
	} else {
		r.gl.UseProgram(0)
	}
	r.restoreVertexArray()
	r.restore(state.All)
	return r.checkCommand("render UI")
}

// TermForImGui implements rhi.Renderer.
func (r *Renderer) TermForImGui(term func()) error {
	if !r.imgui {
		return nil
	}
	r.gl.Finish()
	term()
	r.imgui = false
	return nil
}
