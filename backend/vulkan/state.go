package vulkan

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/state"
)

// set records a change of k in the live cache. The command is recorded
// only inside a frame and only when k is dynamic in the bound pipeline, or
// could be in the next one when nothing is bound. Otherwise k is left
// stale for the next pipeline bind.
func (r *Renderer) set(k state.Kind) {
	live := r.machine.Live()
	b := r.machine.Bound()
	switch {
	case !r.recording,
		b != nil && !b.Dynamic.Has(k),
		b == nil && !r.caps.DynamicStates.Has(k):
		r.machine.Invalidate(state.Of(k))
	default:
		r.issue(k, live)
		r.machine.Applied(k)
	}
	state.UpdateState(b, k, live)
}

// issue records the dynamic state command for field k of c. Kinds without
// a dynamic command are baked into pipelines and ignored here.
func (r *Renderer) issue(k state.Kind, c *state.Cache) {
	cb := r.frames[r.slot].cb
	d := r.dev
	switch k {
	case state.KindViewport:
		v := c.Viewport
		d.CmdSetViewport(cb, vkapi.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.MinDepth, MaxDepth: v.MaxDepth})
	case state.KindScissor:
		d.CmdSetScissor(cb, scissorRect(c.Scissor))
	case state.KindLineWidth:
		w := max(c.LineWidth, 1)
		if !r.props.WideLines {
			w = 1
		}
		d.CmdSetLineWidth(cb, w)
	case state.KindDepthBias:
		b := c.DepthBias
		d.CmdSetDepthBias(cb, b.Constant, b.Clamp, b.Slope)
	case state.KindBlendConstants:
		d.CmdSetBlendConstants(cb, c.BlendConstants)
	case state.KindStencilCompareMask:
		d.CmdSetStencilCompareMask(cb, vkapi.StencilFaceFrontAndBack, c.StencilCompareMask)
	case state.KindStencilWriteMask:
		d.CmdSetStencilWriteMask(cb, vkapi.StencilFaceFrontAndBack, c.StencilWriteMask)
	case state.KindStencilReference:
		d.CmdSetStencilReference(cb, vkapi.StencilFaceFrontAndBack, c.StencilReference)
	case state.KindCullMode:
		d.CmdSetCullMode(cb, cullMode(c.CullMode))
	case state.KindFrontFace:
		d.CmdSetFrontFace(cb, frontFace(c.FrontFace))
	case state.KindPrimitiveTopology:
		d.CmdSetPrimitiveTopology(cb, topology(c.PrimitiveTopology))
	case state.KindDepthTestEnable:
		d.CmdSetDepthTestEnable(cb, c.DepthTestEnable)
	case state.KindDepthWriteEnable:
		d.CmdSetDepthWriteEnable(cb, c.DepthWriteEnable)
	case state.KindDepthCompareOp:
		d.CmdSetDepthCompareOp(cb, compareOp(c.DepthCompareOp))
	case state.KindStencilTestEnable:
		d.CmdSetStencilTestEnable(cb, c.StencilTestEnable)
	case state.KindStencilOp:
		for _, f := range [2]struct {
			face vkapi.StencilFace
			ops  state.StencilFace
		}{
			{vkapi.StencilFaceFront, c.StencilOps.Front},
			{vkapi.StencilFaceBack, c.StencilOps.Back},
		} {
			d.CmdSetStencilOp(cb, f.face, stencilOp(f.ops.Fail), stencilOp(f.ops.Pass),
				stencilOp(f.ops.DepthFail), compareOp(f.ops.Compare))
		}
	case state.KindDepthBiasEnable:
		d.CmdSetDepthBiasEnable(cb, c.DepthBiasEnable)
	case state.KindPrimitiveRestartEnable:
		d.CmdSetPrimitiveRestartEnable(cb, c.PrimitiveRestartEnable)
	}
}

func scissorRect(s state.Rect) vkapi.Rect2D {
	return vkapi.Rect2D{
		Offset: vkapi.Offset2D{X: s.X, Y: s.Y},
		Extent: vkapi.Extent2D{Width: min(s.Width, math.MaxInt32), Height: min(s.Height, math.MaxInt32)},
	}
}

// SetViewport implements state.Setter.
func (r *Renderer) SetViewport(v state.Viewport) {
	r.machine.Live().Viewport = v
	r.set(state.KindViewport)
}

// SetScissor implements state.Setter.
func (r *Renderer) SetScissor(s state.Rect) {
	r.machine.Live().Scissor = s
	r.set(state.KindScissor)
}

// SetLineWidth implements state.Setter.
func (r *Renderer) SetLineWidth(w float32) {
	r.machine.Live().LineWidth = w
	r.set(state.KindLineWidth)
}

// SetBlendConstants implements state.Setter.
func (r *Renderer) SetBlendConstants(c mgl32.Vec4) {
	r.machine.Live().BlendConstants = c
	r.set(state.KindBlendConstants)
}

// SetBlendEquation implements state.Setter.
func (r *Renderer) SetBlendEquation(b gputypes.BlendState) {
	r.machine.Live().BlendEquation = b
	r.set(state.KindBlendEquation)
}

// SetBlendEnable implements state.Setter.
func (r *Renderer) SetBlendEnable(enable bool) {
	r.machine.Live().BlendEnable = enable
	r.set(state.KindBlendEnable)
}

// SetColorWriteMask implements state.Setter.
func (r *Renderer) SetColorWriteMask(m gputypes.ColorWriteMask) {
	r.machine.Live().ColorWriteMask = m
	r.set(state.KindColorWriteMask)
}

// SetDepthBias implements state.Setter.
func (r *Renderer) SetDepthBias(b state.DepthBias) {
	r.machine.Live().DepthBias = b
	r.set(state.KindDepthBias)
}

// SetDepthBiasEnable implements state.Setter.
func (r *Renderer) SetDepthBiasEnable(enable bool) {
	r.machine.Live().DepthBiasEnable = enable
	r.set(state.KindDepthBiasEnable)
}

// SetDepthTestEnable implements state.Setter.
func (r *Renderer) SetDepthTestEnable(enable bool) {
	r.machine.Live().DepthTestEnable = enable
	r.set(state.KindDepthTestEnable)
}

// SetDepthWriteEnable implements state.Setter.
func (r *Renderer) SetDepthWriteEnable(enable bool) {
	r.machine.Live().DepthWriteEnable = enable
	r.set(state.KindDepthWriteEnable)
}

// SetDepthCompareOp implements state.Setter.
func (r *Renderer) SetDepthCompareOp(op gputypes.CompareFunction) {
	r.machine.Live().DepthCompareOp = op
	r.set(state.KindDepthCompareOp)
}

// SetStencilTestEnable implements state.Setter.
func (r *Renderer) SetStencilTestEnable(enable bool) {
	r.machine.Live().StencilTestEnable = enable
	r.set(state.KindStencilTestEnable)
}

// SetStencilOps implements state.Setter.
func (r *Renderer) SetStencilOps(ops state.StencilOps) {
	r.machine.Live().StencilOps = ops
	r.set(state.KindStencilOp)
}

// SetStencilCompareMask implements state.Setter.
func (r *Renderer) SetStencilCompareMask(mask uint32) {
	r.machine.Live().StencilCompareMask = mask
	r.set(state.KindStencilCompareMask)
}

// SetStencilWriteMask implements state.Setter.
func (r *Renderer) SetStencilWriteMask(mask uint32) {
	r.machine.Live().StencilWriteMask = mask
	r.set(state.KindStencilWriteMask)
}

// SetStencilReference implements state.Setter.
func (r *Renderer) SetStencilReference(ref uint32) {
	r.machine.Live().StencilReference = ref
	r.set(state.KindStencilReference)
}

// SetCullMode implements state.Setter.
func (r *Renderer) SetCullMode(m gputypes.CullMode) {
	r.machine.Live().CullMode = m
	r.set(state.KindCullMode)
}

// SetFrontFace implements state.Setter.
func (r *Renderer) SetFrontFace(f gputypes.FrontFace) {
	r.machine.Live().FrontFace = f
	r.set(state.KindFrontFace)
}

// SetPrimitiveTopology implements state.Setter.
func (r *Renderer) SetPrimitiveTopology(t gputypes.PrimitiveTopology) {
	r.machine.Live().PrimitiveTopology = t
	r.set(state.KindPrimitiveTopology)
}

// SetPrimitiveRestartEnable implements state.Setter.
func (r *Renderer) SetPrimitiveRestartEnable(enable bool) {
	r.machine.Live().PrimitiveRestartEnable = enable
	r.set(state.KindPrimitiveRestartEnable)
}

// SetLogicOp implements state.Setter.
func (r *Renderer) SetLogicOp(op state.LogicOp) {
	r.machine.Live().LogicOp = op
	r.set(state.KindLogicOp)
}

// SetLogicOpEnable implements state.Setter.
func (r *Renderer) SetLogicOpEnable(enable bool) {
	r.machine.Live().LogicOpEnable = enable
	r.set(state.KindLogicOpEnable)
}

// SetPolygonMode implements state.Setter.
func (r *Renderer) SetPolygonMode(m state.PolygonMode) {
	r.machine.Live().PolygonMode = m
	r.set(state.KindPolygonMode)
}

// SetLineSmoothEnable implements state.Setter.
func (r *Renderer) SetLineSmoothEnable(enable bool) {
	r.machine.Live().LineSmoothEnable = enable
	r.set(state.KindLineSmoothEnable)
}
