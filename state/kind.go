package state

import (
	"math/bits"
	"strings"
)

// Kind names one independently settable field of a Cache.
type Kind uint8

const (
	// KindViewport is the viewport rectangle and depth range.
	KindViewport Kind = iota
	// KindScissor is the scissor rectangle.
	KindScissor
	// KindLineWidth is the rasterized line width.
	KindLineWidth
	// KindBlendConstants is the constant blend color.
	KindBlendConstants
	// KindBlendEquation is the color and alpha blend factors and operations.
	KindBlendEquation
	// KindBlendEnable toggles blending.
	KindBlendEnable
	// KindColorWriteMask is the per-channel color write mask.
	KindColorWriteMask
	// KindDepthBias is the depth bias constant, clamp and slope.
	KindDepthBias
	// KindDepthBiasEnable toggles depth bias.
	KindDepthBiasEnable
	// KindDepthTestEnable toggles the depth test.
	KindDepthTestEnable
	// KindDepthWriteEnable toggles depth writes.
	KindDepthWriteEnable
	// KindDepthCompareOp is the depth comparison function.
	KindDepthCompareOp
	// KindStencilTestEnable toggles the stencil test.
	KindStencilTestEnable
	// KindStencilOp is the per-face stencil operations.
	KindStencilOp
	// KindStencilCompareMask is the stencil compare mask.
	KindStencilCompareMask
	// KindStencilWriteMask is the stencil write mask.
	KindStencilWriteMask
	// KindStencilReference is the stencil reference value.
	KindStencilReference
	// KindCullMode is the face culling mode.
	KindCullMode
	// KindFrontFace is the front face winding.
	KindFrontFace
	// KindPrimitiveTopology is the primitive topology used by draws.
	KindPrimitiveTopology
	// KindPrimitiveRestartEnable toggles primitive restart.
	KindPrimitiveRestartEnable
	// KindLogicOp is the framebuffer logic operation.
	KindLogicOp
	// KindLogicOpEnable toggles the logic operation.
	KindLogicOpEnable
	// KindPolygonMode is the polygon rasterization mode.
	KindPolygonMode
	// KindLineSmoothEnable toggles line smoothing.
	KindLineSmoothEnable

	kindCount
)

var kindNames = [kindCount]string{
	"Viewport", "Scissor", "LineWidth", "BlendConstants", "BlendEquation",
	"BlendEnable", "ColorWriteMask", "DepthBias", "DepthBiasEnable",
	"DepthTestEnable", "DepthWriteEnable", "DepthCompareOp",
	"StencilTestEnable", "StencilOp", "StencilCompareMask",
	"StencilWriteMask", "StencilReference", "CullMode", "FrontFace",
	"PrimitiveTopology", "PrimitiveRestartEnable", "LogicOp",
	"LogicOpEnable", "PolygonMode", "LineSmoothEnable",
}

// String returns the field name of k.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "Unknown"
}

// NumKinds is the number of fields tracked by a Cache.
const NumKinds = int(kindCount)

// Set is a bitmask of Kinds.
type Set uint32

// All contains every Kind.
const All Set = 1<<kindCount - 1

// Of returns the Set containing kinds.
func Of(kinds ...Kind) Set {
	var s Set
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

// Has reports whether k is in s.
func (s Set) Has(k Kind) bool { return s&(1<<k) != 0 }

// Len returns the number of kinds in s.
func (s Set) Len() int { return bits.OnesCount32(uint32(s & All)) }

// Kinds returns the members of s in ascending order.
func (s Set) Kinds() []Kind {
	out := make([]Kind, 0, s.Len())
	for k := Kind(0); k < kindCount; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s Set) String() string {
	if s&All == 0 {
		return "{}"
	}
	names := make([]string, 0, s.Len())
	for _, k := range s.Kinds() {
		names = append(names, k.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
