// Package vkapi is a Go-typed seam over the explicit graphics API used by
// the Vulkan backend.
//
// Non-dispatchable objects are 64-bit handles, as in the C API, and every
// enum and flag carries its native numeric value so drivers can convert
// with a plain type conversion. Two drivers implement the seam: vkgo over
// the goki/vulkan binding and vksoft, an in-memory emulation used by tests.
package vkapi

// Non-dispatchable object handles. Zero is the null handle.
type (
	Buffer              uint64
	DeviceMemory        uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	RenderPass          uint64
	Framebuffer         uint64
	ShaderModule        uint64
	DescriptorSetLayout uint64
	PipelineLayout      uint64
	Pipeline            uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	CommandPool         uint64
	Fence               uint64
	Semaphore           uint64
	Swapchain           uint64
	Surface             uint64
)

// WholeSize selects the remainder of a buffer or memory range.
const WholeSize = ^uint64(0)

// Format is an image or vertex attribute format.
type Format int32

// Formats.
const (
	FormatUndefined          Format = 0
	FormatR8Unorm            Format = 9
	FormatR8G8Unorm          Format = 16
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32Uint            Format = 98
	FormatR32Sint            Format = 99
	FormatR32Sfloat          Format = 100
	FormatR32G32Uint         Format = 101
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Uint   Format = 107
	FormatR32G32B32A32Sint   Format = 108
	FormatR32G32B32A32Sfloat Format = 109
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
)

// IsDepth reports whether f has a depth aspect.
func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f == FormatD24UnormS8Uint
}

// HasStencil reports whether f has a stencil aspect.
func (f Format) HasStencil() bool { return f == FormatD24UnormS8Uint }

// ColorSpace is a swapchain color space.
type ColorSpace int32

// ColorSpaceSrgbNonlinear is the standard sRGB color space.
const ColorSpaceSrgbNonlinear ColorSpace = 0

// ImageLayout is the access layout of an image subresource.
type ImageLayout int32

// Image layouts.
const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPreinitialized                ImageLayout = 8
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutGeneral:
		return "General"
	case ImageLayoutColorAttachmentOptimal:
		return "ColorAttachment"
	case ImageLayoutDepthStencilAttachmentOptimal:
		return "DepthStencilAttachment"
	case ImageLayoutDepthStencilReadOnlyOptimal:
		return "DepthStencilReadOnly"
	case ImageLayoutShaderReadOnlyOptimal:
		return "ShaderReadOnly"
	case ImageLayoutTransferSrcOptimal:
		return "TransferSrc"
	case ImageLayoutTransferDstOptimal:
		return "TransferDst"
	case ImageLayoutPreinitialized:
		return "Preinitialized"
	case ImageLayoutPresentSrc:
		return "PresentSrc"
	}
	return "Unknown"
}

// AccessFlags is a memory access mask.
type AccessFlags uint32

// Access bits.
const (
	AccessIndirectCommandRead         AccessFlags = 0x00000001
	AccessIndexRead                   AccessFlags = 0x00000002
	AccessVertexAttributeRead         AccessFlags = 0x00000004
	AccessUniformRead                 AccessFlags = 0x00000008
	AccessInputAttachmentRead         AccessFlags = 0x00000010
	AccessShaderRead                  AccessFlags = 0x00000020
	AccessShaderWrite                 AccessFlags = 0x00000040
	AccessColorAttachmentRead         AccessFlags = 0x00000080
	AccessColorAttachmentWrite        AccessFlags = 0x00000100
	AccessDepthStencilAttachmentRead  AccessFlags = 0x00000200
	AccessDepthStencilAttachmentWrite AccessFlags = 0x00000400
	AccessTransferRead                AccessFlags = 0x00000800
	AccessTransferWrite               AccessFlags = 0x00001000
	AccessHostRead                    AccessFlags = 0x00002000
	AccessHostWrite                   AccessFlags = 0x00004000
	AccessMemoryRead                  AccessFlags = 0x00008000
	AccessMemoryWrite                 AccessFlags = 0x00010000
)

// PipelineStage is a pipeline stage mask.
type PipelineStage uint32

// Pipeline stage bits.
const (
	StageTopOfPipe             PipelineStage = 0x00000001
	StageDrawIndirect          PipelineStage = 0x00000002
	StageVertexInput           PipelineStage = 0x00000004
	StageVertexShader          PipelineStage = 0x00000008
	StageFragmentShader        PipelineStage = 0x00000080
	StageEarlyFragmentTests    PipelineStage = 0x00000100
	StageLateFragmentTests     PipelineStage = 0x00000200
	StageColorAttachmentOutput PipelineStage = 0x00000400
	StageComputeShader         PipelineStage = 0x00000800
	StageTransfer              PipelineStage = 0x00001000
	StageBottomOfPipe          PipelineStage = 0x00002000
	StageHost                  PipelineStage = 0x00004000
	StageAllGraphics           PipelineStage = 0x00008000
	StageAllCommands           PipelineStage = 0x00010000
)

// ImageUsage is an image usage mask.
type ImageUsage uint32

// Image usage bits.
const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

// BufferUsage is a buffer usage mask.
type BufferUsage uint32

// Buffer usage bits.
const (
	BufferUsageTransferSrc BufferUsage = 0x001
	BufferUsageTransferDst BufferUsage = 0x002
	BufferUsageUniform     BufferUsage = 0x010
	BufferUsageStorage     BufferUsage = 0x020
	BufferUsageIndex       BufferUsage = 0x040
	BufferUsageVertex      BufferUsage = 0x080
	BufferUsageIndirect    BufferUsage = 0x100
)

// MemoryProperty is a memory property mask.
type MemoryProperty uint32

// Memory property bits.
const (
	MemoryDeviceLocal  MemoryProperty = 0x1
	MemoryHostVisible  MemoryProperty = 0x2
	MemoryHostCoherent MemoryProperty = 0x4
	MemoryHostCached   MemoryProperty = 0x8
)

// DescriptorType is the type of a descriptor.
type DescriptorType int32

// Descriptor types.
const (
	DescriptorTypeSampler              DescriptorType = 0
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeSampledImage         DescriptorType = 2
	DescriptorTypeStorageImage         DescriptorType = 3
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
)

// ShaderStage is a shader stage mask.
type ShaderStage uint32

// Shader stage bits.
const (
	ShaderStageVertex   ShaderStage = 0x01
	ShaderStageFragment ShaderStage = 0x10
	ShaderStageCompute  ShaderStage = 0x20
)

// SampleCount is a sample count bit.
type SampleCount uint32

// ImageAspect is an image aspect mask.
type ImageAspect uint32

// Image aspect bits.
const (
	AspectColor   ImageAspect = 0x1
	AspectDepth   ImageAspect = 0x2
	AspectStencil ImageAspect = 0x4
)

// AttachmentLoadOp is a render pass load operation.
type AttachmentLoadOp int32

// Load operations.
const (
	LoadOpLoad     AttachmentLoadOp = 0
	LoadOpClear    AttachmentLoadOp = 1
	LoadOpDontCare AttachmentLoadOp = 2
)

// AttachmentStoreOp is a render pass store operation.
type AttachmentStoreOp int32

// Store operations.
const (
	StoreOpStore    AttachmentStoreOp = 0
	StoreOpDontCare AttachmentStoreOp = 1
)

// PipelineBindPoint selects the graphics or compute bind point.
type PipelineBindPoint int32

// Bind points.
const (
	BindPointGraphics PipelineBindPoint = 0
	BindPointCompute  PipelineBindPoint = 1
)

// IndexType is the type of index buffer elements.
type IndexType int32

// Index types.
const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

// Filter is a texel filter.
type Filter int32

// Filters.
const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

// SamplerMipmapMode is the filter between mip levels.
type SamplerMipmapMode int32

// Mipmap modes.
const (
	MipmapModeNearest SamplerMipmapMode = 0
	MipmapModeLinear  SamplerMipmapMode = 1
)

// SamplerAddressMode is a texture coordinate wrap mode.
type SamplerAddressMode int32

// Address modes.
const (
	AddressModeRepeat         SamplerAddressMode = 0
	AddressModeMirroredRepeat SamplerAddressMode = 1
	AddressModeClampToEdge    SamplerAddressMode = 2
)

// CompareOp is a comparison function.
type CompareOp int32

// Compare operations.
const (
	CompareOpNever          CompareOp = 0
	CompareOpLess           CompareOp = 1
	CompareOpEqual          CompareOp = 2
	CompareOpLessOrEqual    CompareOp = 3
	CompareOpGreater        CompareOp = 4
	CompareOpNotEqual       CompareOp = 5
	CompareOpGreaterOrEqual CompareOp = 6
	CompareOpAlways         CompareOp = 7
)

// CullMode is a face culling mask.
type CullMode uint32

// Cull modes.
const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

// FrontFace is the winding of front-facing triangles.
type FrontFace int32

// Front faces.
const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

// PrimitiveTopology is the primitive assembly mode.
type PrimitiveTopology int32

// Topologies.
const (
	TopologyPointList     PrimitiveTopology = 0
	TopologyLineList      PrimitiveTopology = 1
	TopologyLineStrip     PrimitiveTopology = 2
	TopologyTriangleList  PrimitiveTopology = 3
	TopologyTriangleStrip PrimitiveTopology = 4
)

// PolygonMode is the polygon rasterization mode.
type PolygonMode int32

// Polygon modes.
const (
	PolygonModeFill  PolygonMode = 0
	PolygonModeLine  PolygonMode = 1
	PolygonModePoint PolygonMode = 2
)

// BlendFactor is a blend factor.
type BlendFactor int32

// Blend factors.
const (
	BlendFactorZero                  BlendFactor = 0
	BlendFactorOne                   BlendFactor = 1
	BlendFactorSrcColor              BlendFactor = 2
	BlendFactorOneMinusSrcColor      BlendFactor = 3
	BlendFactorDstColor              BlendFactor = 4
	BlendFactorOneMinusDstColor      BlendFactor = 5
	BlendFactorSrcAlpha              BlendFactor = 6
	BlendFactorOneMinusSrcAlpha      BlendFactor = 7
	BlendFactorDstAlpha              BlendFactor = 8
	BlendFactorOneMinusDstAlpha      BlendFactor = 9
	BlendFactorConstantColor         BlendFactor = 10
	BlendFactorOneMinusConstantColor BlendFactor = 11
	BlendFactorSrcAlphaSaturate      BlendFactor = 14
)

// BlendOp is a blend equation.
type BlendOp int32

// Blend operations.
const (
	BlendOpAdd             BlendOp = 0
	BlendOpSubtract        BlendOp = 1
	BlendOpReverseSubtract BlendOp = 2
	BlendOpMin             BlendOp = 3
	BlendOpMax             BlendOp = 4
)

// LogicOp is a framebuffer logic operation. Values 0 to 15 follow the
// native table.
type LogicOp int32

// ColorComponent is a color write mask.
type ColorComponent uint32

// Color component bits.
const (
	ColorComponentR ColorComponent = 0x1
	ColorComponentG ColorComponent = 0x2
	ColorComponentB ColorComponent = 0x4
	ColorComponentA ColorComponent = 0x8
)

// StencilOp is a stencil update operation.
type StencilOp int32

// Stencil operations.
const (
	StencilOpKeep              StencilOp = 0
	StencilOpZero              StencilOp = 1
	StencilOpReplace           StencilOp = 2
	StencilOpIncrementAndClamp StencilOp = 3
	StencilOpDecrementAndClamp StencilOp = 4
	StencilOpInvert            StencilOp = 5
	StencilOpIncrementAndWrap  StencilOp = 6
	StencilOpDecrementAndWrap  StencilOp = 7
)

// StencilFace selects front, back or both stencil faces.
type StencilFace uint32

// Stencil faces.
const (
	StencilFaceFront        StencilFace = 0x1
	StencilFaceBack         StencilFace = 0x2
	StencilFaceFrontAndBack StencilFace = 0x3
)

// DynamicState names a pipeline state set by command instead of baked.
type DynamicState int32

// Dynamic states of the core API and extended dynamic state.
const (
	DynamicViewport               DynamicState = 0
	DynamicScissor                DynamicState = 1
	DynamicLineWidth              DynamicState = 2
	DynamicDepthBias              DynamicState = 3
	DynamicBlendConstants         DynamicState = 4
	DynamicStencilCompareMask     DynamicState = 6
	DynamicStencilWriteMask       DynamicState = 7
	DynamicStencilReference       DynamicState = 8
	DynamicCullMode               DynamicState = 1000267000
	DynamicFrontFace              DynamicState = 1000267001
	DynamicPrimitiveTopology      DynamicState = 1000267002
	DynamicDepthTestEnable        DynamicState = 1000267006
	DynamicDepthWriteEnable       DynamicState = 1000267007
	DynamicDepthCompareOp         DynamicState = 1000267008
	DynamicStencilTestEnable      DynamicState = 1000267010
	DynamicStencilOp              DynamicState = 1000267011
	DynamicDepthBiasEnable        DynamicState = 1000377002
	DynamicPrimitiveRestartEnable DynamicState = 1000377004
)

// PresentMode is a swapchain presentation mode.
type PresentMode int32

// Present modes.
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

// VertexInputRate selects per-vertex or per-instance stepping.
type VertexInputRate int32

// Input rates.
const (
	InputRateVertex   VertexInputRate = 0
	InputRateInstance VertexInputRate = 1
)
