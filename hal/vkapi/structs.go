package vkapi

// Extent2D is a width and height in pixels.
type Extent2D struct {
	Width, Height uint32
}

// Offset2D is a signed pixel offset.
type Offset2D struct {
	X, Y int32
}

// Rect2D is a pixel rectangle.
type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

// Viewport is a viewport transform.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// MemoryRequirements are the size, alignment and allowed memory types of
// a resource.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

// MemoryType is one memory type of the device.
type MemoryType struct {
	Properties MemoryProperty
	HeapIndex  uint32
}

// BufferCreateInfo describes a buffer.
type BufferCreateInfo struct {
	Size  uint64
	Usage BufferUsage
}

// ImageCreateInfo describes a single-layer 2D image with optimal tiling.
type ImageCreateInfo struct {
	Format    Format
	Width     uint32
	Height    uint32
	MipLevels uint32
	Samples   uint32
	Usage     ImageUsage
}

// SubresourceRange selects mip levels of the single layer of an image.
type SubresourceRange struct {
	Aspect     ImageAspect
	BaseLevel  uint32
	LevelCount uint32
}

// ImageViewCreateInfo describes a 2D image view.
type ImageViewCreateInfo struct {
	Image  Image
	Format Format
	Range  SubresourceRange
}

// SamplerCreateInfo describes a sampler.
type SamplerCreateInfo struct {
	MagFilter  Filter
	MinFilter  Filter
	MipmapMode SamplerMipmapMode
	AddressU   SamplerAddressMode
	AddressV   SamplerAddressMode
	MaxLod     float32
}

// AttachmentDescription describes one render pass attachment.
type AttachmentDescription struct {
	Format        Format
	Samples       uint32
	Load          AttachmentLoadOp
	Store         AttachmentStoreOp
	StencilLoad   AttachmentLoadOp
	StencilStore  AttachmentStoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// AttachmentReference points a subpass slot at an attachment.
type AttachmentReference struct {
	Attachment uint32
	Layout     ImageLayout
}

// RenderPassCreateInfo describes a render pass with a single subpass.
type RenderPassCreateInfo struct {
	Attachments []AttachmentDescription
	Colors      []AttachmentReference
	Resolves    []AttachmentReference // empty or len(Colors)
	Depth       *AttachmentReference
}

// FramebufferCreateInfo describes a framebuffer.
type FramebufferCreateInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

// DescriptorSetLayoutBinding declares one binding of a set layout.
type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

// VertexBinding describes one vertex buffer binding.
type VertexBinding struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

// VertexAttribute describes one vertex shader input.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// StencilOpState is the stencil state of one face.
type StencilOpState struct {
	Fail        StencilOp
	Pass        StencilOp
	DepthFail   StencilOp
	Compare     CompareOp
	CompareMask uint32
	WriteMask   uint32
	Reference   uint32
}

// ColorBlendAttachment is the blend state of one color attachment.
type ColorBlendAttachment struct {
	BlendEnable bool
	SrcColor    BlendFactor
	DstColor    BlendFactor
	ColorOp     BlendOp
	SrcAlpha    BlendFactor
	DstAlpha    BlendFactor
	AlphaOp     BlendOp
	WriteMask   ColorComponent
}

// GraphicsPipelineCreateInfo is the complete baked state of a graphics
// pipeline. Fields named in DynamicStates are ignored at creation.
type GraphicsPipelineCreateInfo struct {
	Vertex         ShaderModule
	VertexEntry    string
	Fragment       ShaderModule
	FragmentEntry  string
	Bindings       []VertexBinding
	Attributes     []VertexAttribute
	Topology       PrimitiveTopology
	RestartEnable  bool
	PolygonMode    PolygonMode
	CullMode       CullMode
	FrontFace      FrontFace
	DepthBias      bool
	BiasConstant   float32
	BiasClamp      float32
	BiasSlope      float32
	LineWidth      float32
	Samples        uint32
	DepthTest      bool
	DepthWrite     bool
	DepthCompare   CompareOp
	StencilTest    bool
	Front          StencilOpState
	Back           StencilOpState
	LogicOpEnable  bool
	LogicOp        LogicOp
	Blend          []ColorBlendAttachment
	BlendConstants [4]float32
	Viewport       Viewport
	Scissor        Rect2D
	DynamicStates  []DynamicState
	Layout         PipelineLayout
	RenderPass     RenderPass
}

// ComputePipelineCreateInfo describes a compute pipeline.
type ComputePipelineCreateInfo struct {
	Module ShaderModule
	Entry  string
	Layout PipelineLayout
}

// DescriptorPoolSize is the capacity of a pool for one descriptor type.
type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorPoolCreateInfo describes a descriptor pool.
type DescriptorPoolCreateInfo struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

// DescriptorBufferInfo is a buffer range written into a descriptor.
type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorImageInfo is an image written into a descriptor.
type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// WriteDescriptorSet updates consecutive array elements of one binding.
// Exactly one of Images and Buffers is set, matching Type.
type WriteDescriptorSet struct {
	Set          DescriptorSet
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType
	Images       []DescriptorImageInfo
	Buffers      []DescriptorBufferInfo
}

// SubmitInfo is one queue submission batch.
type SubmitInfo struct {
	Wait           []Semaphore
	WaitStages     []PipelineStage
	CommandBuffers []CommandBuffer
	Signal         []Semaphore
}

// PresentInfo presents one swapchain image.
type PresentInfo struct {
	Wait       []Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

// SurfaceCapabilities are the swapchain limits of a surface.
type SurfaceCapabilities struct {
	MinImageCount uint32
	MaxImageCount uint32 // zero means unbounded
	CurrentExtent Extent2D
	MinExtent     Extent2D
	MaxExtent     Extent2D
}

// SurfaceFormat is a supported swapchain format.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SwapchainCreateInfo describes a swapchain.
type SwapchainCreateInfo struct {
	Surface       Surface
	MinImageCount uint32
	Format        Format
	ColorSpace    ColorSpace
	Extent        Extent2D
	Usage         ImageUsage
	PresentMode   PresentMode
	OldSwapchain  Swapchain
}

// DeviceProperties are the limits and features the backends consult.
type DeviceProperties struct {
	DeviceName                      string
	APIVersion                      uint32
	MaxImageDimension2D             uint32
	MinUniformBufferOffsetAlignment uint64
	MinStorageBufferOffsetAlignment uint64
	FramebufferColorSampleCounts    uint32 // bit n set means 1<<n samples
	FramebufferDepthSampleCounts    uint32
	ExtendedDynamicState            bool
	ExtendedDynamicState2           bool
	FillModeNonSolid                bool
	WideLines                       bool
}

// ClearValue is a color or depth/stencil clear value.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// RenderPassBeginInfo begins a render pass instance.
type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	Clears      []ClearValue // one per attachment
}

// MemoryBarrier is a global memory dependency.
type MemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

// BufferMemoryBarrier is a dependency on a buffer range.
type BufferMemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
	Buffer    Buffer
	Offset    uint64
	Size      uint64
}

// ImageMemoryBarrier is a dependency and layout transition of an image
// subresource range.
type ImageMemoryBarrier struct {
	SrcAccess AccessFlags
	DstAccess AccessFlags
	OldLayout ImageLayout
	NewLayout ImageLayout
	Image     Image
	Range     SubresourceRange
}

// BufferCopy is one buffer to buffer copy region.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferImageCopy copies a whole mip level between a tightly packed buffer
// region and an image.
type BufferImageCopy struct {
	BufferOffset uint64
	Aspect       ImageAspect
	MipLevel     uint32
	Extent       Extent2D
}

// ImageCopy copies a region between mip levels of two images.
type ImageCopy struct {
	Aspect   ImageAspect
	SrcLevel uint32
	DstLevel uint32
	Extent   Extent2D
}

// ImageBlit scales a whole mip level onto another.
type ImageBlit struct {
	Aspect    ImageAspect
	SrcLevel  uint32
	SrcExtent Extent2D
	DstLevel  uint32
	DstExtent Extent2D
}

// ImageResolve resolves a multisampled region into a single-sampled one.
type ImageResolve struct {
	SrcLevel uint32
	DstLevel uint32
	Extent   Extent2D
}

// ClearAttachment clears one attachment of the active subpass.
type ClearAttachment struct {
	Aspect          ImageAspect
	ColorAttachment uint32
	Value           ClearValue
}
