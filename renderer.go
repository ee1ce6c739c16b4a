package rhi

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/state"
)

// Renderer is the backend-independent interface to one device context.
//
// Resources are created and destroyed through handles; destroying a null
// or already destroyed handle does nothing. Command methods record into
// the current frame on pipelined backends and execute immediately on the
// others. The embedded state.Setter methods change the live pipeline
// state; the change is issued to the native API when the backend allows
// it and remembered for the bound pipeline.
//
// A Renderer is not safe for concurrent use.
type Renderer interface {
	state.Setter

	// Backend reports which backend implements the renderer.
	Backend() BackendKind
	// Caps reports device limits and optional features.
	Caps() Caps
	// Stats reports live resource counts.
	Stats() Stats

	// BeginFrame opens a frame. It returns an error wrapping ErrFrameRetry
	// when the swapchain was rebuilt and the frame must be started again.
	BeginFrame() error
	// EndFrame submits and presents the frame.
	EndFrame() error
	// FrameSlot returns the index of the frame slot in use.
	FrameSlot() int
	// WaitDeviceIdle blocks until the device has finished all work.
	WaitDeviceIdle() error

	SetVSyncMode(m VSyncMode) error
	SetSwapchainSize(width, height int) error
	SetSamples(n int) error
	// SwapchainRenderPass returns the render pass targeting the
	// presentable image.
	SwapchainRenderPass() RenderPassID
	// SwapchainFramebuffer returns the framebuffer of the presentable
	// image acquired for the current frame.
	SwapchainFramebuffer() FramebufferID

	CreateImage(desc *ImageDescriptor) (ImageID, error)
	DestroyImage(id ImageID)
	// SetImageData replaces mip level with tightly packed pixel rows.
	SetImageData(id ImageID, level int, data []byte) error
	// ReadImageData reads mip level into dst as tightly packed rows.
	ReadImageData(id ImageID, level int, dst []byte) error
	// CopyImage copies every common mip level of src into dst.
	CopyImage(src, dst ImageID) error
	// GenerateMipmaps fills levels 1 and up by downsampling level 0.
	GenerateMipmaps(id ImageID) error
	ImageInfo(id ImageID) (ImageInfo, error)

	CreateBuffer(desc *BufferDescriptor) (BufferID, error)
	DestroyBuffer(id BufferID)
	// SetBufferData replaces the buffer contents from offset zero.
	SetBufferData(id BufferID, data []byte) error
	UpdateBufferData(id BufferID, offset int, data []byte) error
	ReadBufferData(id BufferID, offset int, dst []byte) error
	CopyBuffer(src BufferID, srcOffset int, dst BufferID, dstOffset int, size int) error

	CreateShader(desc *ShaderDescriptor) (ShaderID, error)
	DestroyShader(id ShaderID)

	CreateRenderPass(desc *RenderPassDescriptor) (RenderPassID, error)
	DestroyRenderPass(id RenderPassID)
	CreateFramebuffer(desc *FramebufferDescriptor) (FramebufferID, error)
	DestroyFramebuffer(id FramebufferID)

	CreatePipeline(desc *PipelineDescriptor) (PipelineID, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (PipelineID, error)
	DestroyPipeline(id PipelineID)

	CreateVertexArray(desc *VertexArrayDescriptor) (VertexArrayID, error)
	DestroyVertexArray(id VertexArrayID)

	CreateDescriptorSetBinding(pipeline PipelineID, bindings []DescriptorBinding) (DescriptorSetBindingID, error)
	// UpdateDescriptorSetBinding rewrites the resources of an existing
	// binding in place.
	UpdateDescriptorSetBinding(id DescriptorSetBindingID, bindings []DescriptorBinding) error
	DestroyDescriptorSetBinding(id DescriptorSetBindingID)

	BeginRenderPass(pass RenderPassID, fb FramebufferID) error
	EndRenderPass() error
	BindPipeline(id PipelineID) error
	BindVertexArray(id VertexArrayID) error
	BindDescriptorSetBinding(id DescriptorSetBindingID) error

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error
	DrawIndirect(buf BufferID, offset int, drawCount, stride uint32) error
	DrawIndexedIndirect(buf BufferID, offset int, drawCount, stride uint32) error
	DispatchCompute(x, y, z uint32) error
	DispatchComputeIndirect(buf BufferID, offset int) error
	MemoryBarrier(flags BarrierFlags) error

	// ClearColorAttachment clears color attachment index of the active
	// render pass.
	ClearColorAttachment(index int, color mgl32.Vec4) error
	// ClearDepthStencilAttachment clears the depth attachment of the
	// active render pass.
	ClearDepthStencilAttachment(depth float32, stencil uint32) error

	// InitForImGui hands backend objects to a UI renderer's init hook.
	InitForImGui(init func(ImGuiInitInfo) error) error
	// RenderForImGui calls render inside the swapchain render pass.
	RenderForImGui(render func(ImGuiRenderInfo)) error
	// TermForImGui waits for the device, calls term and releases the
	// objects created for the UI renderer.
	TermForImGui(term func()) error

	// Destroy waits for the device and releases every resource.
	Destroy()
}

// BarrierFlags selects the memory accesses MemoryBarrier orders against
// preceding shader writes.
type BarrierFlags uint32

// Barrier bits.
const (
	BarrierVertexAttrib BarrierFlags = 1 << iota
	BarrierIndex
	BarrierUniform
	BarrierTextureFetch
	BarrierShaderImage
	BarrierIndirect
	BarrierBufferUpdate
	BarrierTextureUpdate
	BarrierFramebuffer
	BarrierShaderStorage

	BarrierAll BarrierFlags = 1<<iota - 1
)

// Caps are the limits and optional features of a renderer.
type Caps struct {
	DeviceName string
	// MaxImageDimension is the largest supported image width or height.
	MaxImageDimension int
	// MaxSamples is the largest supported framebuffer sample count.
	MaxSamples int
	// Bindless reports native support for sampled image arrays of
	// unbounded size. Without it arrays hold at most MaxImageArray images.
	Bindless      bool
	MaxImageArray int
	// UniformOffsetAlignment is the required alignment of uniform buffer
	// binding offsets.
	UniformOffsetAlignment int
	// FramesInFlight is the number of frame slots.
	FramesInFlight int
	// DynamicStates are the state kinds the backend can change without
	// rebuilding a pipeline.
	DynamicStates state.Set
}

// Stats are live resource counts.
type Stats struct {
	Images                int
	Buffers               int
	Shaders               int
	Pipelines             int
	RenderPasses          int
	Framebuffers          int
	VertexArrays          int
	DescriptorSetBindings int
}

// ImageInfo describes the native objects behind an image. Exactly one of
// GL and Vulkan is set, matching Backend.
type ImageInfo struct {
	Backend BackendKind
	Width   int
	Height  int
	Levels  int
	Samples int
	Format  gputypes.TextureFormat

	GL     *GLImageInfo
	Vulkan *VulkanImageInfo
}

// GLImageInfo holds the OpenGL objects of an image.
type GLImageInfo struct {
	Texture uint32
	Target  uint32
	// BindlessHandle is the bindless texture handle, zero without bindless
	// support or before the image is first placed in an image array. The
	// handle is resident only while an array binding references it.
	BindlessHandle uint64
}

// VulkanImageInfo holds the Vulkan objects of an image. Layout is the
// layout the image rests in between operations.
type VulkanImageInfo struct {
	Image   vkapi.Image
	View    vkapi.ImageView
	Sampler vkapi.Sampler
	Layout  vkapi.ImageLayout
}

// ImGuiInitInfo carries what a UI renderer needs to initialize against a
// backend. Exactly one of GL and Vulkan is set.
type ImGuiInitInfo struct {
	Backend BackendKind
	GL      *GLImGuiInfo
	Vulkan  *VulkanImGuiInfo
}

// GLImGuiInfo is the OpenGL part of ImGuiInitInfo.
type GLImGuiInfo struct {
	GLSLVersion string
}

// VulkanImGuiInfo is the Vulkan part of ImGuiInitInfo.
type VulkanImGuiInfo struct {
	Instance       vkapi.Instance
	Device         vkapi.Device
	RenderPass     vkapi.RenderPass
	DescriptorPool vkapi.DescriptorPool
	MinImageCount  int
	ImageCount     int
	Samples        int
}

// ImGuiRenderInfo is passed to the render hook of RenderForImGui.
type ImGuiRenderInfo struct {
	Backend       BackendKind
	CommandBuffer vkapi.CommandBuffer
}
