// Package state tracks logical rendering state and decides which pipeline
// states must be re-issued to a backend.
//
// A Machine owns the live Cache, the state as last applied to the native
// API. Every pipeline object embeds a Pipeline holding the subset of kinds
// it declares dynamic and a last-known Cache captured on its most recent
// bind. Bind compares the two and re-issues only the dynamic kinds whose
// values changed since then.
package state

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// Viewport is a viewport rectangle with its depth range.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is an integer rectangle used for scissoring.
type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// DepthBias holds the depth bias parameters.
type DepthBias struct {
	Constant float32
	Clamp    float32
	Slope    float32
}

// StencilFace holds the stencil operations of one face.
type StencilFace struct {
	Fail      gputypes.StencilOperation
	Pass      gputypes.StencilOperation
	DepthFail gputypes.StencilOperation
	Compare   gputypes.CompareFunction
}

// StencilOps holds front and back stencil operations.
type StencilOps struct {
	Front StencilFace
	Back  StencilFace
}

// PolygonMode selects how polygons are rasterized.
type PolygonMode uint8

const (
	// PolygonModeFill rasterizes polygon interiors.
	PolygonModeFill PolygonMode = iota
	// PolygonModeLine rasterizes polygon edges.
	PolygonModeLine
	// PolygonModePoint rasterizes polygon vertices.
	PolygonModePoint
)

// LogicOp is a framebuffer logic operation.
type LogicOp uint8

// Logic operations, in the order shared by both native APIs' tables.
const (
	LogicOpClear LogicOp = iota
	LogicOpAnd
	LogicOpAndReverse
	LogicOpCopy
	LogicOpAndInverted
	LogicOpNoOp
	LogicOpXor
	LogicOpOr
	LogicOpNor
	LogicOpEquivalent
	LogicOpInvert
	LogicOpOrReverse
	LogicOpCopyInverted
	LogicOpOrInverted
	LogicOpNand
	LogicOpSet
)

// Cache is a flat record of every independently settable pipeline state.
type Cache struct {
	Viewport               Viewport
	Scissor                Rect
	LineWidth              float32
	BlendConstants         mgl32.Vec4
	BlendEquation          gputypes.BlendState
	BlendEnable            bool
	ColorWriteMask         gputypes.ColorWriteMask
	DepthBias              DepthBias
	DepthBiasEnable        bool
	DepthTestEnable        bool
	DepthWriteEnable       bool
	DepthCompareOp         gputypes.CompareFunction
	StencilTestEnable      bool
	StencilOps             StencilOps
	StencilCompareMask     uint32
	StencilWriteMask       uint32
	StencilReference       uint32
	CullMode               gputypes.CullMode
	FrontFace              gputypes.FrontFace
	PrimitiveTopology      gputypes.PrimitiveTopology
	PrimitiveRestartEnable bool
	LogicOp                LogicOp
	LogicOpEnable          bool
	PolygonMode            PolygonMode
	LineSmoothEnable       bool
}

// replace writes the source unchanged.
func replace() gputypes.BlendState {
	var b gputypes.BlendState
	b.Color.SrcFactor, b.Color.DstFactor, b.Color.Operation = gputypes.BlendFactorOne, gputypes.BlendFactorZero, gputypes.BlendOperationAdd
	b.Alpha = b.Color
	return b
}

// Default returns the initial state of a freshly created context.
func Default() Cache {
	face := StencilFace{
		Fail:      gputypes.StencilOperationKeep,
		Pass:      gputypes.StencilOperationKeep,
		DepthFail: gputypes.StencilOperationKeep,
		Compare:   gputypes.CompareFunctionAlways,
	}
	return Cache{
		Viewport:           Viewport{MaxDepth: 1},
		LineWidth:          1,
		BlendEquation:      replace(),
		ColorWriteMask:     gputypes.ColorWriteMaskAll,
		DepthCompareOp:     gputypes.CompareFunctionLess,
		StencilOps:         StencilOps{Front: face, Back: face},
		StencilCompareMask: 0xFF,
		StencilWriteMask:   0xFF,
		CullMode:           gputypes.CullModeNone,
		FrontFace:          gputypes.FrontFaceCCW,
		PrimitiveTopology:  gputypes.PrimitiveTopologyTriangleList,
		LogicOp:            LogicOpCopy,
		PolygonMode:        PolygonModeFill,
	}
}

func feq(a, b float32) bool { return math.Float32bits(a) == math.Float32bits(b) }

// Equal reports whether c and o hold the same value for k. Floating point
// fields compare bit for bit. BlendConstants never compares equal, so it is
// re-issued on every bind that declares it dynamic.
func (c *Cache) Equal(o *Cache, k Kind) bool {
	switch k {
	case KindViewport:
		a, b := c.Viewport, o.Viewport
		return feq(a.X, b.X) && feq(a.Y, b.Y) && feq(a.Width, b.Width) &&
			feq(a.Height, b.Height) && feq(a.MinDepth, b.MinDepth) && feq(a.MaxDepth, b.MaxDepth)
	case KindScissor:
		return c.Scissor == o.Scissor
	case KindLineWidth:
		return feq(c.LineWidth, o.LineWidth)
	case KindBlendConstants:
		return false
	case KindBlendEquation:
		return c.BlendEquation == o.BlendEquation
	case KindBlendEnable:
		return c.BlendEnable == o.BlendEnable
	case KindColorWriteMask:
		return c.ColorWriteMask == o.ColorWriteMask
	case KindDepthBias:
		a, b := c.DepthBias, o.DepthBias
		return feq(a.Constant, b.Constant) && feq(a.Clamp, b.Clamp) && feq(a.Slope, b.Slope)
	case KindDepthBiasEnable:
		return c.DepthBiasEnable == o.DepthBiasEnable
	case KindDepthTestEnable:
		return c.DepthTestEnable == o.DepthTestEnable
	case KindDepthWriteEnable:
		return c.DepthWriteEnable == o.DepthWriteEnable
	case KindDepthCompareOp:
		return c.DepthCompareOp == o.DepthCompareOp
	case KindStencilTestEnable:
		return c.StencilTestEnable == o.StencilTestEnable
	case KindStencilOp:
		return c.StencilOps == o.StencilOps
	case KindStencilCompareMask:
		return c.StencilCompareMask == o.StencilCompareMask
	case KindStencilWriteMask:
		return c.StencilWriteMask == o.StencilWriteMask
	case KindStencilReference:
		return c.StencilReference == o.StencilReference
	case KindCullMode:
		return c.CullMode == o.CullMode
	case KindFrontFace:
		return c.FrontFace == o.FrontFace
	case KindPrimitiveTopology:
		return c.PrimitiveTopology == o.PrimitiveTopology
	case KindPrimitiveRestartEnable:
		return c.PrimitiveRestartEnable == o.PrimitiveRestartEnable
	case KindLogicOp:
		return c.LogicOp == o.LogicOp
	case KindLogicOpEnable:
		return c.LogicOpEnable == o.LogicOpEnable
	case KindPolygonMode:
		return c.PolygonMode == o.PolygonMode
	case KindLineSmoothEnable:
		return c.LineSmoothEnable == o.LineSmoothEnable
	}
	return true
}

// CopyField copies the value of k from src into c.
func (c *Cache) CopyField(src *Cache, k Kind) {
	switch k {
	case KindViewport:
		c.Viewport = src.Viewport
	case KindScissor:
		c.Scissor = src.Scissor
	case KindLineWidth:
		c.LineWidth = src.LineWidth
	case KindBlendConstants:
		c.BlendConstants = src.BlendConstants
	case KindBlendEquation:
		c.BlendEquation = src.BlendEquation
	case KindBlendEnable:
		c.BlendEnable = src.BlendEnable
	case KindColorWriteMask:
		c.ColorWriteMask = src.ColorWriteMask
	case KindDepthBias:
		c.DepthBias = src.DepthBias
	case KindDepthBiasEnable:
		c.DepthBiasEnable = src.DepthBiasEnable
	case KindDepthTestEnable:
		c.DepthTestEnable = src.DepthTestEnable
	case KindDepthWriteEnable:
		c.DepthWriteEnable = src.DepthWriteEnable
	case KindDepthCompareOp:
		c.DepthCompareOp = src.DepthCompareOp
	case KindStencilTestEnable:
		c.StencilTestEnable = src.StencilTestEnable
	case KindStencilOp:
		c.StencilOps = src.StencilOps
	case KindStencilCompareMask:
		c.StencilCompareMask = src.StencilCompareMask
	case KindStencilWriteMask:
		c.StencilWriteMask = src.StencilWriteMask
	case KindStencilReference:
		c.StencilReference = src.StencilReference
	case KindCullMode:
		c.CullMode = src.CullMode
	case KindFrontFace:
		c.FrontFace = src.FrontFace
	case KindPrimitiveTopology:
		c.PrimitiveTopology = src.PrimitiveTopology
	case KindPrimitiveRestartEnable:
		c.PrimitiveRestartEnable = src.PrimitiveRestartEnable
	case KindLogicOp:
		c.LogicOp = src.LogicOp
	case KindLogicOpEnable:
		c.LogicOpEnable = src.LogicOpEnable
	case KindPolygonMode:
		c.PolygonMode = src.PolygonMode
	case KindLineSmoothEnable:
		c.LineSmoothEnable = src.LineSmoothEnable
	}
}
