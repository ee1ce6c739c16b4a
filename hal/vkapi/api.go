package vkapi

// CommandBuffer is a command buffer handle.
type CommandBuffer uint64

// SurfaceFactory creates a native presentation surface for the native
// instance handle passed in. Window layers supply it.
type SurfaceFactory func(nativeInstance interface{}) (uintptr, error)

// Instance is a loaded API instance.
type Instance interface {
	// CreateSurface wraps a window surface created by create.
	CreateSurface(create SurfaceFactory) (Surface, error)
	DestroySurface(s Surface)

	// CreateDevice selects a physical device able to present to surface
	// (any device when surface is zero) and creates a logical device with
	// one graphics queue.
	CreateDevice(surface Surface) (Device, error)

	// Native returns the driver's instance object for interop.
	Native() interface{}

	Destroy()
}

// Device is a logical device with a single graphics and present queue.
// Command recording goes through the Cmd methods, keyed by command buffer.
type Device interface {
	Properties() DeviceProperties
	MemoryTypes() []MemoryType

	// Native returns the driver's device object for interop.
	Native() interface{}

	// Memory.
	AllocateMemory(size uint64, typeIndex uint32) (DeviceMemory, error)
	FreeMemory(m DeviceMemory)
	MapMemory(m DeviceMemory, offset, size uint64) ([]byte, error)
	UnmapMemory(m DeviceMemory)

	// Buffers and images.
	CreateBuffer(info *BufferCreateInfo) (Buffer, error)
	DestroyBuffer(b Buffer)
	BufferMemoryRequirements(b Buffer) MemoryRequirements
	BindBufferMemory(b Buffer, m DeviceMemory, offset uint64) error
	CreateImage(info *ImageCreateInfo) (Image, error)
	DestroyImage(img Image)
	ImageMemoryRequirements(img Image) MemoryRequirements
	BindImageMemory(img Image, m DeviceMemory, offset uint64) error
	CreateImageView(info *ImageViewCreateInfo) (ImageView, error)
	DestroyImageView(v ImageView)
	CreateSampler(info *SamplerCreateInfo) (Sampler, error)
	DestroySampler(s Sampler)

	// Passes and pipelines.
	CreateRenderPass(info *RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(info *FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)
	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreatePipelineLayout(sets []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(info *GraphicsPipelineCreateInfo) (Pipeline, error)
	CreateComputePipeline(info *ComputePipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	// Descriptors.
	CreateDescriptorPool(info *DescriptorPoolCreateInfo) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []WriteDescriptorSet)

	// Commands and synchronization.
	CreateCommandPool() (CommandPool, error)
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffers(pool CommandPool, n int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, cbs []CommandBuffer)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	WaitForFences(fences []Fence, timeout uint64) error
	ResetFences(fences []Fence) error
	FenceStatus(f Fence) (bool, error)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	QueueSubmit(submits []SubmitInfo, fence Fence) error
	QueuePresent(info *PresentInfo) error
	WaitIdle() error

	// Presentation.
	// SurfaceSupported reports whether the device queue can present to s.
	SurfaceSupported(s Surface) (bool, error)
	SurfaceCapabilities(s Surface) (SurfaceCapabilities, error)
	SurfaceFormats(s Surface) ([]SurfaceFormat, error)
	SurfacePresentModes(s Surface) ([]PresentMode, error)
	CreateSwapchain(info *SwapchainCreateInfo) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	// AcquireNextImage returns ErrorOutOfDate when the swapchain no longer
	// matches the surface.
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, error)

	Recorder

	Destroy()
}

// Recorder records commands into command buffers.
type Recorder interface {
	BeginCommandBuffer(cb CommandBuffer, oneTime bool) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	CmdBeginRenderPass(cb CommandBuffer, info *RenderPassBeginInfo)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, point PipelineBindPoint, p Pipeline)
	CmdBindVertexBuffers(cb CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer, offset uint64, t IndexType)
	CmdBindDescriptorSets(cb CommandBuffer, point PipelineBindPoint, layout PipelineLayout, first uint32, sets []DescriptorSet, dynamicOffsets []uint32)

	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdDrawIndirect(cb CommandBuffer, b Buffer, offset uint64, drawCount, stride uint32)
	CmdDrawIndexedIndirect(cb CommandBuffer, b Buffer, offset uint64, drawCount, stride uint32)
	CmdDispatch(cb CommandBuffer, x, y, z uint32)
	CmdDispatchIndirect(cb CommandBuffer, b Buffer, offset uint64)

	CmdPipelineBarrier(cb CommandBuffer, src, dst PipelineStage, memory []MemoryBarrier, buffers []BufferMemoryBarrier, images []ImageMemoryBarrier)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, layout ImageLayout, regions []BufferImageCopy)
	CmdCopyImageToBuffer(cb CommandBuffer, src Image, layout ImageLayout, dst Buffer, regions []BufferImageCopy)
	CmdCopyImage(cb CommandBuffer, src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, regions []ImageCopy)
	CmdBlitImage(cb CommandBuffer, src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, regions []ImageBlit, filter Filter)
	CmdResolveImage(cb CommandBuffer, src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, regions []ImageResolve)
	CmdClearAttachments(cb CommandBuffer, attachments []ClearAttachment, rects []Rect2D)

	CmdSetViewport(cb CommandBuffer, v Viewport)
	CmdSetScissor(cb CommandBuffer, r Rect2D)
	CmdSetLineWidth(cb CommandBuffer, w float32)
	CmdSetDepthBias(cb CommandBuffer, constant, clamp, slope float32)
	CmdSetBlendConstants(cb CommandBuffer, c [4]float32)
	CmdSetStencilCompareMask(cb CommandBuffer, face StencilFace, mask uint32)
	CmdSetStencilWriteMask(cb CommandBuffer, face StencilFace, mask uint32)
	CmdSetStencilReference(cb CommandBuffer, face StencilFace, ref uint32)

	// Extended dynamic state.
	CmdSetCullMode(cb CommandBuffer, m CullMode)
	CmdSetFrontFace(cb CommandBuffer, f FrontFace)
	CmdSetPrimitiveTopology(cb CommandBuffer, t PrimitiveTopology)
	CmdSetDepthTestEnable(cb CommandBuffer, enable bool)
	CmdSetDepthWriteEnable(cb CommandBuffer, enable bool)
	CmdSetDepthCompareOp(cb CommandBuffer, op CompareOp)
	CmdSetStencilTestEnable(cb CommandBuffer, enable bool)
	CmdSetStencilOp(cb CommandBuffer, face StencilFace, fail, pass, depthFail StencilOp, compare CompareOp)
	CmdSetDepthBiasEnable(cb CommandBuffer, enable bool)
	CmdSetPrimitiveRestartEnable(cb CommandBuffer, enable bool)
}

// Loader creates an Instance. extensions are the instance extensions the
// window system requires; debug enables validation layers.
type Loader func(extensions []string, debug bool) (Instance, error)

// FindMemoryType returns the index of the first memory type allowed by
// typeBits that has every property in want.
func FindMemoryType(types []MemoryType, typeBits uint32, want MemoryProperty) (uint32, bool) {
	for i, t := range types {
		if typeBits&(1<<uint(i)) != 0 && t.Properties&want == want {
			return uint32(i), true
		}
	}
	return 0, false
}

// AlignUp rounds n up to a multiple of align, which must be a power of two
// or zero.
func AlignUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
