package opengl

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/state"
)

// set records a change of k in the live cache. The native call is made
// unless the bound pipeline bakes k, in which case the native value is
// left stale until a pipeline declaring k dynamic is bound.
func (r *Renderer) set(k state.Kind) {
	live := r.machine.Live()
	if b := r.machine.Bound(); b != nil && !b.Dynamic.Has(k) {
		r.machine.Invalidate(state.Of(k))
	} else {
		r.issue(k, live)
		r.machine.Applied(k)
	}
	state.UpdateState(r.machine.Bound(), k, live)
}

func enable(gl glapi.Functions, capability glapi.Enum, on bool) {
	if on {
		gl.Enable(capability)
	} else {
		gl.Disable(capability)
	}
}

// issue makes the native calls for field k of c.
func (r *Renderer) issue(k state.Kind, c *state.Cache) {
	gl := r.gl
	switch k {
	case state.KindViewport:
		v := c.Viewport
		gl.Viewport(int32(v.X), int32(v.Y), int32(v.Width), int32(v.Height))
		gl.DepthRangef(v.MinDepth, v.MaxDepth)
	case state.KindScissor:
		s := c.Scissor
		gl.Scissor(s.X, s.Y, int32(min(s.Width, math.MaxInt32)), int32(min(s.Height, math.MaxInt32)))
	case state.KindLineWidth:
		gl.LineWidth(max(c.LineWidth, 1))
	case state.KindBlendConstants:
		b := c.BlendConstants
		gl.BlendColor(b[0], b[1], b[2], b[3])
	case state.KindBlendEquation:
		b := c.BlendEquation
		gl.BlendEquationSeparate(blendOp(b.Color.Operation), blendOp(b.Alpha.Operation))
		gl.BlendFuncSeparate(blendFactor(b.Color.SrcFactor), blendFactor(b.Color.DstFactor),
			blendFactor(b.Alpha.SrcFactor), blendFactor(b.Alpha.DstFactor))
	case state.KindBlendEnable:
		enable(gl, glapi.BLEND, c.BlendEnable)
	case state.KindColorWriteMask:
		m := c.ColorWriteMask
		gl.ColorMask(m&gputypes.ColorWriteMaskRed != 0, m&gputypes.ColorWriteMaskGreen != 0,
			m&gputypes.ColorWriteMaskBlue != 0, m&gputypes.ColorWriteMaskAlpha != 0)
	case state.KindDepthBias:
		b := c.DepthBias
		gl.PolygonOffsetClamp(b.Slope, b.Constant, b.Clamp)
	case state.KindDepthBiasEnable:
		enable(gl, glapi.POLYGON_OFFSET_FILL, c.DepthBiasEnable)
		enable(gl, glapi.POLYGON_OFFSET_LINE, c.DepthBiasEnable)
		enable(gl, glapi.POLYGON_OFFSET_POINT, c.DepthBiasEnable)
	case state.KindDepthTestEnable:
		enable(gl, glapi.DEPTH_TEST, c.DepthTestEnable)
	case state.KindDepthWriteEnable:
		gl.DepthMask(c.DepthWriteEnable)
	case state.KindDepthCompareOp:
		gl.DepthFunc(compareFunc(c.DepthCompareOp))
	case state.KindStencilTestEnable:
		enable(gl, glapi.STENCIL_TEST, c.StencilTestEnable)
	case state.KindStencilOp:
		for _, f := range faces(c) {
			gl.StencilOpSeparate(f.face, stencilOp(f.ops.Fail), stencilOp(f.ops.DepthFail), stencilOp(f.ops.Pass))
		}
		r.stencilFunc(c)
	case state.KindStencilCompareMask, state.KindStencilReference:
		r.stencilFunc(c)
	case state.KindStencilWriteMask:
		gl.StencilMaskSeparate(glapi.FRONT_AND_BACK, c.StencilWriteMask)
	case state.KindCullMode:
		switch c.CullMode {
		case gputypes.CullModeFront:
			gl.Enable(glapi.CULL_FACE)
			gl.CullFace(glapi.FRONT)
		case gputypes.CullModeBack:
			gl.Enable(glapi.CULL_FACE)
			gl.CullFace(glapi.BACK)
		default:
			gl.Disable(glapi.CULL_FACE)
		}
	case state.KindFrontFace:
		if c.FrontFace == gputypes.FrontFaceCW {
			gl.FrontFace(glapi.CW)
		} else {
			gl.FrontFace(glapi.CCW)
		}
	case state.KindPrimitiveTopology:
		// Read at draw time.
	case state.KindPrimitiveRestartEnable:
		enable(gl, glapi.PRIMITIVE_RESTART_FIXED_INDEX, c.PrimitiveRestartEnable)
	case state.KindLogicOp:
		gl.LogicOp(logicOp(c.LogicOp))
	case state.KindLogicOpEnable:
		enable(gl, glapi.COLOR_LOGIC_OP, c.LogicOpEnable)
	case state.KindPolygonMode:
		gl.PolygonMode(glapi.FRONT_AND_BACK, polygonMode(c.PolygonMode))
	case state.KindLineSmoothEnable:
		enable(gl, glapi.LINE_SMOOTH, c.LineSmoothEnable)
	}
}

type stencilFace struct {
	face glapi.Enum
	ops  state.StencilFace
}

func faces(c *state.Cache) [2]stencilFace {
	return [2]stencilFace{
		{glapi.FRONT, c.StencilOps.Front},
		{glapi.BACK, c.StencilOps.Back},
	}
}

// stencilFunc issues the compare function, reference and compare mask,
// which GL sets in one call.
func (r *Renderer) stencilFunc(c *state.Cache) {
	for _, f := range faces(c) {
		r.gl.StencilFuncSeparate(f.face, compareFunc(f.ops.Compare), int32(c.StencilReference), c.StencilCompareMask)
	}
}

// topology returns the primitive topology in effect for draws.
func (r *Renderer) topology() gputypes.PrimitiveTopology {
	if p := r.bound; p != nil && !p.Dynamic.Has(state.KindPrimitiveTopology) {
		return p.baked.PrimitiveTopology
	}
	return r.machine.Live().PrimitiveTopology
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
