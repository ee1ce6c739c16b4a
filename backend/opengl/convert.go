package opengl

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/state"
)

// pixelFormat is the storage and transfer description of a texture format.
type pixelFormat struct {
	internal glapi.Enum
	format   glapi.Enum
	typ      glapi.Enum
}

// formatOf maps a texture format onto GL. BGRA formats are stored as RGBA
// and swizzled on transfer.
func formatOf(f gputypes.TextureFormat) (pixelFormat, bool) {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return pixelFormat{glapi.R8, glapi.RED, glapi.UNSIGNED_BYTE}, true
	case gputypes.TextureFormatRG8Unorm:
		return pixelFormat{glapi.RG8, glapi.RG, glapi.UNSIGNED_BYTE}, true
	case gputypes.TextureFormatRGBA8Unorm:
		return pixelFormat{glapi.RGBA8, glapi.RGBA, glapi.UNSIGNED_BYTE}, true
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return pixelFormat{glapi.SRGB8_ALPHA8, glapi.RGBA, glapi.UNSIGNED_BYTE}, true
	case gputypes.TextureFormatBGRA8Unorm:
		return pixelFormat{glapi.RGBA8, glapi.BGRA, glapi.UNSIGNED_BYTE}, true
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return pixelFormat{glapi.SRGB8_ALPHA8, glapi.BGRA, glapi.UNSIGNED_BYTE}, true
	case gputypes.TextureFormatR32Float:
		return pixelFormat{glapi.R32F, glapi.RED, glapi.FLOAT}, true
	case gputypes.TextureFormatR32Uint:
		return pixelFormat{glapi.R32UI, glapi.RED_INTEGER, glapi.UNSIGNED_INT}, true
	case gputypes.TextureFormatRG32Float:
		return pixelFormat{glapi.RG32F, glapi.RG, glapi.FLOAT}, true
	case gputypes.TextureFormatRGBA16Float:
		return pixelFormat{glapi.RGBA16F, glapi.RGBA, glapi.HALF_FLOAT}, true
	case gputypes.TextureFormatRGBA32Float:
		return pixelFormat{glapi.RGBA32F, glapi.RGBA, glapi.FLOAT}, true
	case gputypes.TextureFormatDepth32Float:
		return pixelFormat{glapi.DEPTH_COMPONENT32F, glapi.DEPTH_COMPONENT, glapi.FLOAT}, true
	case gputypes.TextureFormatDepth24PlusStencil8:
		return pixelFormat{glapi.DEPTH24_STENCIL8, glapi.DEPTH_STENCIL, glapi.UNSIGNED_INT_24_8}, true
	}
	return pixelFormat{}, false
}

func minFilter(f gputypes.FilterMode, mip gputypes.MipmapFilterMode, levels int) glapi.Enum {
	linear := f == gputypes.FilterModeLinear
	switch {
	case levels <= 1 || mip == gputypes.MipmapFilterModeUndefined:
		if linear {
			return glapi.LINEAR
		}
		return glapi.NEAREST
	case mip == gputypes.MipmapFilterModeLinear:
		if linear {
			return glapi.LINEAR_MIPMAP_LINEAR
		}
		return glapi.NEAREST_MIPMAP_LINEAR
	default:
		if linear {
			return glapi.LINEAR_MIPMAP_NEAREST
		}
		return glapi.NEAREST_MIPMAP_NEAREST
	}
}

func magFilter(f gputypes.FilterMode) glapi.Enum {
	if f == gputypes.FilterModeLinear {
		return glapi.LINEAR
	}
	return glapi.NEAREST
}

func wrapMode(m gputypes.AddressMode) glapi.Enum {
	switch m {
	case gputypes.AddressModeRepeat:
		return glapi.REPEAT
	case gputypes.AddressModeMirrorRepeat:
		return glapi.MIRRORED_REPEAT
	}
	return glapi.CLAMP_TO_EDGE
}

func compareFunc(f gputypes.CompareFunction) glapi.Enum {
	switch f {
	case gputypes.CompareFunctionNever:
		return glapi.NEVER
	case gputypes.CompareFunctionLess:
		return glapi.LESS
	case gputypes.CompareFunctionEqual:
		return glapi.EQUAL
	case gputypes.CompareFunctionLessEqual:
		return glapi.LEQUAL
	case gputypes.CompareFunctionGreater:
		return glapi.GREATER
	case gputypes.CompareFunctionNotEqual:
		return glapi.NOTEQUAL
	case gputypes.CompareFunctionGreaterEqual:
		return glapi.GEQUAL
	}
	return glapi.ALWAYS
}

func blendFactor(f gputypes.BlendFactor) glapi.Enum {
	switch f {
	case gputypes.BlendFactorZero:
		return glapi.ZERO
	case gputypes.BlendFactorSrc:
		return glapi.SRC_COLOR
	case gputypes.BlendFactorOneMinusSrc:
		return glapi.ONE_MINUS_SRC_COLOR
	case gputypes.BlendFactorSrcAlpha:
		return glapi.SRC_ALPHA
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return glapi.ONE_MINUS_SRC_ALPHA
	case gputypes.BlendFactorDst:
		return glapi.DST_COLOR
	case gputypes.BlendFactorOneMinusDst:
		return glapi.ONE_MINUS_DST_COLOR
	case gputypes.BlendFactorDstAlpha:
		return glapi.DST_ALPHA
	case gputypes.BlendFactorOneMinusDstAlpha:
		return glapi.ONE_MINUS_DST_ALPHA
	case gputypes.BlendFactorSrcAlphaSaturated:
		return glapi.SRC_ALPHA_SATURATE
	case gputypes.BlendFactorConstant:
		return glapi.CONSTANT_COLOR
	case gputypes.BlendFactorOneMinusConstant:
		return glapi.ONE_MINUS_CONSTANT_COLOR
	}
	return glapi.ONE
}

func blendOp(op gputypes.BlendOperation) glapi.Enum {
	switch op {
	case gputypes.BlendOperationSubtract:
		return glapi.FUNC_SUBTRACT
	case gputypes.BlendOperationReverseSubtract:
		return glapi.FUNC_REVERSE_SUBTRACT
	case gputypes.BlendOperationMin:
		return glapi.MIN
	case gputypes.BlendOperationMax:
		return glapi.MAX
	}
	return glapi.FUNC_ADD
}

func stencilOp(op gputypes.StencilOperation) glapi.Enum {
	switch op {
	case gputypes.StencilOperationZero:
		return glapi.ZERO
	case gputypes.StencilOperationReplace:
		return glapi.REPLACE
	case gputypes.StencilOperationInvert:
		return glapi.INVERT
	case gputypes.StencilOperationIncrementClamp:
		return glapi.INCR
	case gputypes.StencilOperationDecrementClamp:
		return glapi.DECR
	case gputypes.StencilOperationIncrementWrap:
		return glapi.INCR_WRAP
	case gputypes.StencilOperationDecrementWrap:
		return glapi.DECR_WRAP
	}
	return glapi.KEEP
}

func primitiveMode(t gputypes.PrimitiveTopology) glapi.Enum {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return glapi.POINTS
	case gputypes.PrimitiveTopologyLineList:
		return glapi.LINES
	case gputypes.PrimitiveTopologyLineStrip:
		return glapi.LINE_STRIP
	case gputypes.PrimitiveTopologyTriangleStrip:
		return glapi.TRIANGLE_STRIP
	}
	return glapi.TRIANGLES
}

func polygonMode(m state.PolygonMode) glapi.Enum {
	switch m {
	case state.PolygonModeLine:
		return glapi.LINE
	case state.PolygonModePoint:
		return glapi.POINT
	}
	return glapi.FILL
}

// logicOp relies on GL numbering logic operations in the same order as
// state.LogicOp.
func logicOp(op state.LogicOp) glapi.Enum {
	return glapi.LOGIC_OP_CLEAR + glapi.Enum(op&0xF)
}

func indexType(f gputypes.IndexFormat) glapi.Enum {
	if f == gputypes.IndexFormatUint16 {
		return glapi.UNSIGNED_SHORT
	}
	return glapi.UNSIGNED_INT
}

func shaderType(s gputypes.ShaderStage) glapi.Enum {
	switch s {
	case gputypes.ShaderStageVertex:
		return glapi.VERTEX_SHADER
	case gputypes.ShaderStageFragment:
		return glapi.FRAGMENT_SHADER
	}
	return glapi.COMPUTE_SHADER
}

// vertexType returns the GL component type of a vertex format and whether
// it is read through the integer attribute path.
func vertexType(f gputypes.VertexFormat) (size int32, typ glapi.Enum, normalized, integer bool) {
	n, kind, _ := rhi.VertexFormatInfo(f)
	switch kind {
	case rhi.ComponentUnorm8:
		return int32(n), glapi.UNSIGNED_BYTE, true, false
	case rhi.ComponentUint32:
		return int32(n), glapi.UNSIGNED_INT, false, true
	case rhi.ComponentSint32:
		return int32(n), glapi.INT, false, true
	}
	return int32(n), glapi.FLOAT, false, false
}

var barrierBits = [...]struct {
	flag rhi.BarrierFlags
	bits uint32
}{
	{rhi.BarrierVertexAttrib, glapi.VERTEX_ATTRIB_ARRAY_BARRIER_BIT},
	{rhi.BarrierIndex, glapi.ELEMENT_ARRAY_BARRIER_BIT},
	{rhi.BarrierUniform, glapi.UNIFORM_BARRIER_BIT},
	{rhi.BarrierTextureFetch, glapi.TEXTURE_FETCH_BARRIER_BIT},
	{rhi.BarrierShaderImage, glapi.SHADER_IMAGE_ACCESS_BARRIER_BIT},
	{rhi.BarrierIndirect, glapi.COMMAND_BARRIER_BIT},
	{rhi.BarrierBufferUpdate, glapi.BUFFER_UPDATE_BARRIER_BIT},
	{rhi.BarrierTextureUpdate, glapi.TEXTURE_UPDATE_BARRIER_BIT},
	{rhi.BarrierFramebuffer, glapi.FRAMEBUFFER_BARRIER_BIT},
	{rhi.BarrierShaderStorage, glapi.SHADER_STORAGE_BARRIER_BIT},
}

func barrierMask(flags rhi.BarrierFlags) uint32 {
	if flags&rhi.BarrierAll == rhi.BarrierAll {
		return glapi.ALL_BARRIER_BITS
	}
	var bits uint32
	for _, b := range barrierBits {
		if flags&b.flag != 0 {
			bits |= b.bits
		}
	}
	return bits
}
