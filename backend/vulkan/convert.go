package vulkan

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/state"
)

var textureFormats = map[gputypes.TextureFormat]vkapi.Format{
	gputypes.TextureFormatR8Unorm:             vkapi.FormatR8Unorm,
	gputypes.TextureFormatRG8Unorm:            vkapi.FormatR8G8Unorm,
	gputypes.TextureFormatRGBA8Unorm:          vkapi.FormatR8G8B8A8Unorm,
	gputypes.TextureFormatRGBA8UnormSrgb:      vkapi.FormatR8G8B8A8Srgb,
	gputypes.TextureFormatBGRA8Unorm:          vkapi.FormatB8G8R8A8Unorm,
	gputypes.TextureFormatBGRA8UnormSrgb:      vkapi.FormatB8G8R8A8Srgb,
	gputypes.TextureFormatR32Float:            vkapi.FormatR32Sfloat,
	gputypes.TextureFormatR32Uint:             vkapi.FormatR32Uint,
	gputypes.TextureFormatRG32Float:           vkapi.FormatR32G32Sfloat,
	gputypes.TextureFormatRGBA16Float:         vkapi.FormatR16G16B16A16Sfloat,
	gputypes.TextureFormatRGBA32Float:         vkapi.FormatR32G32B32A32Sfloat,
	gputypes.TextureFormatDepth32Float:        vkapi.FormatD32Sfloat,
	gputypes.TextureFormatDepth24PlusStencil8: vkapi.FormatD24UnormS8Uint,
}

func formatOf(f gputypes.TextureFormat) (vkapi.Format, bool) {
	v, ok := textureFormats[f]
	return v, ok
}

// vertexFormats is indexed by component count minus one.
var vertexFormats = map[rhi.VertexComponent][4]vkapi.Format{
	rhi.ComponentFloat32: {vkapi.FormatR32Sfloat, vkapi.FormatR32G32Sfloat, vkapi.FormatR32G32B32Sfloat, vkapi.FormatR32G32B32A32Sfloat},
	rhi.ComponentUnorm8:  {vkapi.FormatUndefined, vkapi.FormatUndefined, vkapi.FormatUndefined, vkapi.FormatR8G8B8A8Unorm},
	rhi.ComponentUint32:  {vkapi.FormatR32Uint, vkapi.FormatR32G32Uint, vkapi.FormatUndefined, vkapi.FormatR32G32B32A32Uint},
	rhi.ComponentSint32:  {vkapi.FormatR32Sint, vkapi.FormatUndefined, vkapi.FormatUndefined, vkapi.FormatR32G32B32A32Sint},
}

func vertexFormat(f gputypes.VertexFormat) (vkapi.Format, bool) {
	n, kind, ok := rhi.VertexFormatInfo(f)
	if !ok {
		return 0, false
	}
	v := vertexFormats[kind][n-1]
	return v, v != vkapi.FormatUndefined
}

func filterOf(f gputypes.FilterMode) vkapi.Filter {
	if f == gputypes.FilterModeLinear {
		return vkapi.FilterLinear
	}
	return vkapi.FilterNearest
}

func mipmapModeOf(f gputypes.MipmapFilterMode) vkapi.SamplerMipmapMode {
	if f == gputypes.MipmapFilterModeLinear {
		return vkapi.MipmapModeLinear
	}
	return vkapi.MipmapModeNearest
}

// maxLod clamps sampling to the base level when no mip filter is set.
func maxLod(f gputypes.MipmapFilterMode, levels int) float32 {
	if f == gputypes.MipmapFilterModeUndefined {
		return 0
	}
	return float32(levels)
}

func addressModeOf(m gputypes.AddressMode) vkapi.SamplerAddressMode {
	switch m {
	case gputypes.AddressModeRepeat:
		return vkapi.AddressModeRepeat
	case gputypes.AddressModeMirrorRepeat:
		return vkapi.AddressModeMirroredRepeat
	}
	return vkapi.AddressModeClampToEdge
}

func loadOp(op gputypes.LoadOp) vkapi.AttachmentLoadOp {
	switch op {
	case gputypes.LoadOpClear:
		return vkapi.LoadOpClear
	case gputypes.LoadOpLoad:
		return vkapi.LoadOpLoad
	}
	return vkapi.LoadOpDontCare
}

func storeOp(op gputypes.StoreOp) vkapi.AttachmentStoreOp {
	if op == gputypes.StoreOpStore {
		return vkapi.StoreOpStore
	}
	return vkapi.StoreOpDontCare
}

func compareOp(f gputypes.CompareFunction) vkapi.CompareOp {
	switch f {
	case gputypes.CompareFunctionNever:
		return vkapi.CompareOpNever
	case gputypes.CompareFunctionLess:
		return vkapi.CompareOpLess
	case gputypes.CompareFunctionEqual:
		return vkapi.CompareOpEqual
	case gputypes.CompareFunctionLessEqual:
		return vkapi.CompareOpLessOrEqual
	case gputypes.CompareFunctionGreater:
		return vkapi.CompareOpGreater
	case gputypes.CompareFunctionNotEqual:
		return vkapi.CompareOpNotEqual
	case gputypes.CompareFunctionGreaterEqual:
		return vkapi.CompareOpGreaterOrEqual
	}
	return vkapi.CompareOpAlways
}

func blendFactor(f gputypes.BlendFactor) vkapi.BlendFactor {
	switch f {
	case gputypes.BlendFactorZero:
		return vkapi.BlendFactorZero
	case gputypes.BlendFactorSrc:
		return vkapi.BlendFactorSrcColor
	case gputypes.BlendFactorOneMinusSrc:
		return vkapi.BlendFactorOneMinusSrcColor
	case gputypes.BlendFactorSrcAlpha:
		return vkapi.BlendFactorSrcAlpha
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return vkapi.BlendFactorOneMinusSrcAlpha
	case gputypes.BlendFactorDst:
		return vkapi.BlendFactorDstColor
	case gputypes.BlendFactorOneMinusDst:
		return vkapi.BlendFactorOneMinusDstColor
	case gputypes.BlendFactorDstAlpha:
		return vkapi.BlendFactorDstAlpha
	case gputypes.BlendFactorOneMinusDstAlpha:
		return vkapi.BlendFactorOneMinusDstAlpha
	case gputypes.BlendFactorSrcAlphaSaturated:
		return vkapi.BlendFactorSrcAlphaSaturate
	case gputypes.BlendFactorConstant:
		return vkapi.BlendFactorConstantColor
	case gputypes.BlendFactorOneMinusConstant:
		return vkapi.BlendFactorOneMinusConstantColor
	}
	return vkapi.BlendFactorOne
}

func blendOp(op gputypes.BlendOperation) vkapi.BlendOp {
	switch op {
	case gputypes.BlendOperationSubtract:
		return vkapi.BlendOpSubtract
	case gputypes.BlendOperationReverseSubtract:
		return vkapi.BlendOpReverseSubtract
	case gputypes.BlendOperationMin:
		return vkapi.BlendOpMin
	case gputypes.BlendOperationMax:
		return vkapi.BlendOpMax
	}
	return vkapi.BlendOpAdd
}

func writeMask(m gputypes.ColorWriteMask) vkapi.ColorComponent {
	var c vkapi.ColorComponent
	if m&gputypes.ColorWriteMaskRed != 0 {
		c |= vkapi.ColorComponentR
	}
	if m&gputypes.ColorWriteMaskGreen != 0 {
		c |= vkapi.ColorComponentG
	}
	if m&gputypes.ColorWriteMaskBlue != 0 {
		c |= vkapi.ColorComponentB
	}
	if m&gputypes.ColorWriteMaskAlpha != 0 {
		c |= vkapi.ColorComponentA
	}
	return c
}

func stencilOp(op gputypes.StencilOperation) vkapi.StencilOp {
	switch op {
	case gputypes.StencilOperationZero:
		return vkapi.StencilOpZero
	case gputypes.StencilOperationReplace:
		return vkapi.StencilOpReplace
	case gputypes.StencilOperationInvert:
		return vkapi.StencilOpInvert
	case gputypes.StencilOperationIncrementClamp:
		return vkapi.StencilOpIncrementAndClamp
	case gputypes.StencilOperationDecrementClamp:
		return vkapi.StencilOpDecrementAndClamp
	case gputypes.StencilOperationIncrementWrap:
		return vkapi.StencilOpIncrementAndWrap
	case gputypes.StencilOperationDecrementWrap:
		return vkapi.StencilOpDecrementAndWrap
	}
	return vkapi.StencilOpKeep
}

func cullMode(m gputypes.CullMode) vkapi.CullMode {
	switch m {
	case gputypes.CullModeFront:
		return vkapi.CullModeFront
	case gputypes.CullModeBack:
		return vkapi.CullModeBack
	}
	return vkapi.CullModeNone
}

func frontFace(f gputypes.FrontFace) vkapi.FrontFace {
	if f == gputypes.FrontFaceCW {
		return vkapi.FrontFaceClockwise
	}
	return vkapi.FrontFaceCounterClockwise
}

func topology(t gputypes.PrimitiveTopology) vkapi.PrimitiveTopology {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return vkapi.TopologyPointList
	case gputypes.PrimitiveTopologyLineList:
		return vkapi.TopologyLineList
	case gputypes.PrimitiveTopologyLineStrip:
		return vkapi.TopologyLineStrip
	case gputypes.PrimitiveTopologyTriangleStrip:
		return vkapi.TopologyTriangleStrip
	}
	return vkapi.TopologyTriangleList
}

func polygonMode(m state.PolygonMode) vkapi.PolygonMode {
	switch m {
	case state.PolygonModeLine:
		return vkapi.PolygonModeLine
	case state.PolygonModePoint:
		return vkapi.PolygonModePoint
	}
	return vkapi.PolygonModeFill
}

// logicOp relies on the native enum numbering logic operations in the same
// order as state.LogicOp.
func logicOp(op state.LogicOp) vkapi.LogicOp {
	return vkapi.LogicOp(op & 0xF)
}

func indexType(f gputypes.IndexFormat) vkapi.IndexType {
	if f == gputypes.IndexFormatUint16 {
		return vkapi.IndexTypeUint16
	}
	return vkapi.IndexTypeUint32
}

func stageFlags(s gputypes.ShaderStage) vkapi.ShaderStage {
	var out vkapi.ShaderStage
	if s&gputypes.ShaderStageVertex != 0 {
		out |= vkapi.ShaderStageVertex
	}
	if s&gputypes.ShaderStageFragment != 0 {
		out |= vkapi.ShaderStageFragment
	}
	if s&gputypes.ShaderStageCompute != 0 {
		out |= vkapi.ShaderStageCompute
	}
	return out
}

func bufferUsageOf(u gputypes.BufferUsage) vkapi.BufferUsage {
	var out vkapi.BufferUsage
	for _, m := range [...]struct {
		from gputypes.BufferUsage
		to   vkapi.BufferUsage
	}{
		{gputypes.BufferUsageVertex, vkapi.BufferUsageVertex},
		{gputypes.BufferUsageIndex, vkapi.BufferUsageIndex},
		{gputypes.BufferUsageUniform, vkapi.BufferUsageUniform},
		{gputypes.BufferUsageStorage, vkapi.BufferUsageStorage},
		{gputypes.BufferUsageIndirect, vkapi.BufferUsageIndirect},
	} {
		if u&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

func descriptorType(t rhi.DescriptorType) vkapi.DescriptorType {
	switch t {
	case rhi.DescriptorUniformBuffer:
		return vkapi.DescriptorTypeUniformBuffer
	case rhi.DescriptorStorageBuffer:
		return vkapi.DescriptorTypeStorageBuffer
	case rhi.DescriptorStorageImage:
		return vkapi.DescriptorTypeStorageImage
	}
	// Sampled images and their arrays.
	return vkapi.DescriptorTypeCombinedImageSampler
}

var dynamicStates = map[state.Kind]vkapi.DynamicState{
	state.KindViewport:               vkapi.DynamicViewport,
	state.KindScissor:                vkapi.DynamicScissor,
	state.KindLineWidth:              vkapi.DynamicLineWidth,
	state.KindDepthBias:              vkapi.DynamicDepthBias,
	state.KindBlendConstants:         vkapi.DynamicBlendConstants,
	state.KindStencilCompareMask:     vkapi.DynamicStencilCompareMask,
	state.KindStencilWriteMask:       vkapi.DynamicStencilWriteMask,
	state.KindStencilReference:       vkapi.DynamicStencilReference,
	state.KindCullMode:               vkapi.DynamicCullMode,
	state.KindFrontFace:              vkapi.DynamicFrontFace,
	state.KindPrimitiveTopology:      vkapi.DynamicPrimitiveTopology,
	state.KindDepthTestEnable:        vkapi.DynamicDepthTestEnable,
	state.KindDepthWriteEnable:       vkapi.DynamicDepthWriteEnable,
	state.KindDepthCompareOp:         vkapi.DynamicDepthCompareOp,
	state.KindStencilTestEnable:      vkapi.DynamicStencilTestEnable,
	state.KindStencilOp:              vkapi.DynamicStencilOp,
	state.KindDepthBiasEnable:        vkapi.DynamicDepthBiasEnable,
	state.KindPrimitiveRestartEnable: vkapi.DynamicPrimitiveRestartEnable,
}

// nativeDynamic lists the native dynamic states of s in kind order.
func nativeDynamic(s state.Set) []vkapi.DynamicState {
	var out []vkapi.DynamicState
	for _, k := range s.Kinds() {
		if d, ok := dynamicStates[k]; ok {
			out = append(out, d)
		}
	}
	return out
}
