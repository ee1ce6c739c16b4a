//go:build !nogpu

package vkgo

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/rhi/hal/vkapi"
)

type device struct {
	inst   *instance
	pd     vk.PhysicalDevice
	family uint32
	dev    vk.Device
	queue  vk.Queue
	props  vkapi.DeviceProperties
	types  []vkapi.MemoryType

	mu             sync.Mutex
	memory         table[vk.DeviceMemory]
	memorySize     map[uint64]uint64
	buffers        table[vk.Buffer]
	images         table[vk.Image]
	views          table[vk.ImageView]
	samplers       table[vk.Sampler]
	renderPasses   table[vk.RenderPass]
	passDepth      map[uint64][]bool
	framebuffers   table[vk.Framebuffer]
	modules        table[vk.ShaderModule]
	setLayouts     table[vk.DescriptorSetLayout]
	layouts        table[vk.PipelineLayout]
	pipelines      table[vk.Pipeline]
	pools          table[vk.DescriptorPool]
	sets           table[vk.DescriptorSet]
	poolSets       map[uint64][]uint64
	commandPools   table[vk.CommandPool]
	commands       table[vk.CommandBuffer]
	fences         table[vk.Fence]
	semaphores     table[vk.Semaphore]
	swapchains     table[vk.Swapchain]
	swapchainImage map[uint64][]vkapi.Image
}

func newDevice(inst *instance, c candidate, dev vk.Device, queue vk.Queue, features vk.PhysicalDeviceFeatures) *device {
	d := &device{
		inst:           inst,
		pd:             c.pd,
		family:         c.family,
		dev:            dev,
		queue:          queue,
		memorySize:     make(map[uint64]uint64),
		passDepth:      make(map[uint64][]bool),
		poolSets:       make(map[uint64][]uint64),
		swapchainImage: make(map[uint64][]vkapi.Image),
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(c.pd, &props)
	props.Deref()
	props.Limits.Deref()
	// The binding lacks vkCmdSetCullMode and the other extended dynamic
	// state commands, so both extensions are reported absent.
	d.props = vkapi.DeviceProperties{
		DeviceName:                      c.name,
		APIVersion:                      props.ApiVersion,
		MaxImageDimension2D:             props.Limits.MaxImageDimension2D,
		MinUniformBufferOffsetAlignment: uint64(props.Limits.MinUniformBufferOffsetAlignment),
		MinStorageBufferOffsetAlignment: uint64(props.Limits.MinStorageBufferOffsetAlignment),
		FramebufferColorSampleCounts:    uint32(props.Limits.FramebufferColorSampleCounts),
		FramebufferDepthSampleCounts:    uint32(props.Limits.FramebufferDepthSampleCounts),
		FillModeNonSolid:                features.FillModeNonSolid.B(),
		WideLines:                       features.WideLines.B(),
	}

	var mem vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.pd, &mem)
	mem.Deref()
	for i := uint32(0); i < mem.MemoryTypeCount; i++ {
		mem.MemoryTypes[i].Deref()
		d.types = append(d.types, vkapi.MemoryType{
			Properties: vkapi.MemoryProperty(mem.MemoryTypes[i].PropertyFlags),
			HeapIndex:  mem.MemoryTypes[i].HeapIndex,
		})
	}
	return d
}

func (d *device) Properties() vkapi.DeviceProperties { return d.props }

func (d *device) MemoryTypes() []vkapi.MemoryType {
	return append([]vkapi.MemoryType(nil), d.types...)
}

// Native implements vkapi.Device. It returns the vk.Device.
func (d *device) Native() interface{} { return d.dev }

func (d *device) AllocateMemory(size uint64, typeIndex uint32) (vkapi.DeviceMemory, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}
	var m vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.dev, &info, nil, &m)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.memory.put(m)
	d.memorySize[h] = size
	return vkapi.DeviceMemory(h), nil
}

func (d *device) FreeMemory(h vkapi.DeviceMemory) {
	d.mu.Lock()
	m, ok := d.memory.take(uint64(h))
	delete(d.memorySize, uint64(h))
	d.mu.Unlock()
	if ok {
		vk.FreeMemory(d.dev, m, nil)
	}
}

func (d *device) MapMemory(h vkapi.DeviceMemory, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	m := d.memory.get(uint64(h))
	total := d.memorySize[uint64(h)]
	d.mu.Unlock()
	if size == vkapi.WholeSize {
		size = total - offset
	}
	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(d.dev, m, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (d *device) UnmapMemory(h vkapi.DeviceMemory) {
	d.mu.Lock()
	m := d.memory.get(uint64(h))
	d.mu.Unlock()
	vk.UnmapMemory(d.dev, m)
}

func (d *device) CreateBuffer(info *vkapi.BufferCreateInfo) (vkapi.Buffer, error) {
	ci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var b vk.Buffer
	if err := check(vk.CreateBuffer(d.dev, &ci, nil, &b)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Buffer(d.buffers.put(b)), nil
}

func (d *device) DestroyBuffer(h vkapi.Buffer) {
	d.mu.Lock()
	b, ok := d.buffers.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyBuffer(d.dev, b, nil)
	}
}

func requirements(r vk.MemoryRequirements) vkapi.MemoryRequirements {
	r.Deref()
	return vkapi.MemoryRequirements{
		Size:      uint64(r.Size),
		Alignment: uint64(r.Alignment),
		TypeBits:  r.MemoryTypeBits,
	}
}

func (d *device) BufferMemoryRequirements(h vkapi.Buffer) vkapi.MemoryRequirements {
	d.mu.Lock()
	b := d.buffers.get(uint64(h))
	d.mu.Unlock()
	var r vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.dev, b, &r)
	return requirements(r)
}

func (d *device) BindBufferMemory(h vkapi.Buffer, m vkapi.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	b, mem := d.buffers.get(uint64(h)), d.memory.get(uint64(m))
	d.mu.Unlock()
	return check(vk.BindBufferMemory(d.dev, b, mem, vk.DeviceSize(offset)))
}

func (d *device) CreateImage(info *vkapi.ImageCreateInfo) (vkapi.Image, error) {
	ci := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     info.MipLevels,
		ArrayLayers:   1,
		Samples:       vk.SampleCountFlagBits(info.Samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if err := check(vk.CreateImage(d.dev, &ci, nil, &img)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Image(d.images.put(img)), nil
}

func (d *device) DestroyImage(h vkapi.Image) {
	d.mu.Lock()
	img, ok := d.images.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyImage(d.dev, img, nil)
	}
}

func (d *device) ImageMemoryRequirements(h vkapi.Image) vkapi.MemoryRequirements {
	d.mu.Lock()
	img := d.images.get(uint64(h))
	d.mu.Unlock()
	var r vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.dev, img, &r)
	return requirements(r)
}

func (d *device) BindImageMemory(h vkapi.Image, m vkapi.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	img, mem := d.images.get(uint64(h)), d.memory.get(uint64(m))
	d.mu.Unlock()
	return check(vk.BindImageMemory(d.dev, img, mem, vk.DeviceSize(offset)))
}

func subresourceRange(r vkapi.SubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:   vk.ImageAspectFlags(r.Aspect),
		BaseMipLevel: r.BaseLevel,
		LevelCount:   r.LevelCount,
		LayerCount:   1,
	}
}

func (d *device) CreateImageView(info *vkapi.ImageViewCreateInfo) (vkapi.ImageView, error) {
	d.mu.Lock()
	img := d.images.get(uint64(info.Image))
	d.mu.Unlock()
	ci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange(info.Range),
	}
	var v vk.ImageView
	if err := check(vk.CreateImageView(d.dev, &ci, nil, &v)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.ImageView(d.views.put(v)), nil
}

func (d *device) DestroyImageView(h vkapi.ImageView) {
	d.mu.Lock()
	v, ok := d.views.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyImageView(d.dev, v, nil)
	}
}

func (d *device) CreateSampler(info *vkapi.SamplerCreateInfo) (vkapi.Sampler, error) {
	ci := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.Filter(info.MagFilter),
		MinFilter:    vk.Filter(info.MinFilter),
		MipmapMode:   vk.SamplerMipmapMode(info.MipmapMode),
		AddressModeU: vk.SamplerAddressMode(info.AddressU),
		AddressModeV: vk.SamplerAddressMode(info.AddressV),
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		MaxLod:       info.MaxLod,
		BorderColor:  vk.BorderColorFloatTransparentBlack,
	}
	var s vk.Sampler
	if err := check(vk.CreateSampler(d.dev, &ci, nil, &s)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Sampler(d.samplers.put(s)), nil
}

func (d *device) DestroySampler(h vkapi.Sampler) {
	d.mu.Lock()
	s, ok := d.samplers.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroySampler(d.dev, s, nil)
	}
}

func (d *device) CreateCommandPool() (vkapi.CommandPool, error) {
	ci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.family,
	}
	var p vk.CommandPool
	if err := check(vk.CreateCommandPool(d.dev, &ci, nil, &p)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.CommandPool(d.commandPools.put(p)), nil
}

func (d *device) DestroyCommandPool(h vkapi.CommandPool) {
	d.mu.Lock()
	p, ok := d.commandPools.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyCommandPool(d.dev, p, nil)
	}
}

func (d *device) AllocateCommandBuffers(pool vkapi.CommandPool, n int) ([]vkapi.CommandBuffer, error) {
	d.mu.Lock()
	p := d.commandPools.get(uint64(pool))
	d.mu.Unlock()
	ci := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}
	cbs := make([]vk.CommandBuffer, n)
	if err := check(vk.AllocateCommandBuffers(d.dev, &ci, cbs)); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]vkapi.CommandBuffer, n)
	for i, cb := range cbs {
		out[i] = vkapi.CommandBuffer(d.commands.put(cb))
	}
	return out, nil
}

func (d *device) FreeCommandBuffers(pool vkapi.CommandPool, hs []vkapi.CommandBuffer) {
	d.mu.Lock()
	p := d.commandPools.get(uint64(pool))
	cbs := make([]vk.CommandBuffer, 0, len(hs))
	for _, h := range hs {
		if cb, ok := d.commands.take(uint64(h)); ok {
			cbs = append(cbs, cb)
		}
	}
	d.mu.Unlock()
	if len(cbs) > 0 {
		vk.FreeCommandBuffers(d.dev, p, uint32(len(cbs)), cbs)
	}
}

func (d *device) cb(h vkapi.CommandBuffer) vk.CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands.get(uint64(h))
}

func (d *device) CreateFence(signaled bool) (vkapi.Fence, error) {
	ci := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		ci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if err := check(vk.CreateFence(d.dev, &ci, nil, &f)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Fence(d.fences.put(f)), nil
}

func (d *device) DestroyFence(h vkapi.Fence) {
	d.mu.Lock()
	f, ok := d.fences.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyFence(d.dev, f, nil)
	}
}

func (d *device) fenceList(hs []vkapi.Fence) []vk.Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]vk.Fence, len(hs))
	for i, h := range hs {
		out[i] = d.fences.get(uint64(h))
	}
	return out
}

func (d *device) WaitForFences(hs []vkapi.Fence, timeout uint64) error {
	fs := d.fenceList(hs)
	return check(vk.WaitForFences(d.dev, uint32(len(fs)), fs, vk.True, timeout))
}

func (d *device) ResetFences(hs []vkapi.Fence) error {
	fs := d.fenceList(hs)
	return check(vk.ResetFences(d.dev, uint32(len(fs)), fs))
}

func (d *device) FenceStatus(h vkapi.Fence) (bool, error) {
	switch r := vk.GetFenceStatus(d.dev, d.fenceList([]vkapi.Fence{h})[0]); r {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, vkapi.Result(r)
	}
}

func (d *device) CreateSemaphore() (vkapi.Semaphore, error) {
	ci := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var s vk.Semaphore
	if err := check(vk.CreateSemaphore(d.dev, &ci, nil, &s)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Semaphore(d.semaphores.put(s)), nil
}

func (d *device) DestroySemaphore(h vkapi.Semaphore) {
	d.mu.Lock()
	s, ok := d.semaphores.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroySemaphore(d.dev, s, nil)
	}
}

func (d *device) semaphoreList(hs []vkapi.Semaphore) []vk.Semaphore {
	out := make([]vk.Semaphore, len(hs))
	for i, h := range hs {
		out[i] = d.semaphores.get(uint64(h))
	}
	return out
}

func (d *device) QueueSubmit(submits []vkapi.SubmitInfo, fence vkapi.Fence) error {
	d.mu.Lock()
	infos := make([]vk.SubmitInfo, len(submits))
	for i, s := range submits {
		stages := make([]vk.PipelineStageFlags, len(s.WaitStages))
		for j, st := range s.WaitStages {
			stages[j] = vk.PipelineStageFlags(st)
		}
		cbs := make([]vk.CommandBuffer, len(s.CommandBuffers))
		for j, h := range s.CommandBuffers {
			cbs[j] = d.commands.get(uint64(h))
		}
		infos[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(s.Wait)),
			PWaitSemaphores:      d.semaphoreList(s.Wait),
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cbs)),
			PCommandBuffers:      cbs,
			SignalSemaphoreCount: uint32(len(s.Signal)),
			PSignalSemaphores:    d.semaphoreList(s.Signal),
		}
	}
	f := d.fences.get(uint64(fence))
	d.mu.Unlock()
	return check(vk.QueueSubmit(d.queue, uint32(len(infos)), infos, f))
}

// QueuePresent implements vkapi.Device. A suboptimal present is returned
// as vkapi.Suboptimal.
func (d *device) QueuePresent(info *vkapi.PresentInfo) error {
	d.mu.Lock()
	pi := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.Wait)),
		PWaitSemaphores:    d.semaphoreList(info.Wait),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.swapchains.get(uint64(info.Swapchain))},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	d.mu.Unlock()
	return check(vk.QueuePresent(d.queue, &pi))
}

func (d *device) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.dev))
}

func (d *device) SurfaceSupported(s vkapi.Surface) (bool, error) {
	var supported vk.Bool32
	if err := check(vk.GetPhysicalDeviceSurfaceSupport(d.pd, d.family, d.inst.surface(s), &supported)); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (d *device) SurfaceCapabilities(s vkapi.Surface) (vkapi.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.pd, d.inst.surface(s), &caps)); err != nil {
		return vkapi.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return vkapi.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentExtent: vkapi.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinExtent:     vkapi.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxExtent:     vkapi.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}, nil
}

func (d *device) SurfaceFormats(s vkapi.Surface) ([]vkapi.SurfaceFormat, error) {
	surface := d.inst.surface(s)
	var n uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.pd, surface, &n, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, n)
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.pd, surface, &n, formats)); err != nil {
		return nil, err
	}
	out := make([]vkapi.SurfaceFormat, n)
	for i := range formats {
		formats[i].Deref()
		out[i] = vkapi.SurfaceFormat{
			Format:     vkapi.Format(formats[i].Format),
			ColorSpace: vkapi.ColorSpace(formats[i].ColorSpace),
		}
	}
	return out, nil
}

func (d *device) SurfacePresentModes(s vkapi.Surface) ([]vkapi.PresentMode, error) {
	surface := d.inst.surface(s)
	var n uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.pd, surface, &n, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, n)
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.pd, surface, &n, modes)); err != nil {
		return nil, err
	}
	out := make([]vkapi.PresentMode, n)
	for i, m := range modes {
		out[i] = vkapi.PresentMode(m)
	}
	return out, nil
}

// compositeAlpha returns the first supported mode, preferring opaque.
func compositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, f := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if supported&vk.CompositeAlphaFlags(f) != 0 {
			return f
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func (d *device) CreateSwapchain(info *vkapi.SwapchainCreateInfo) (vkapi.Swapchain, error) {
	surface := d.inst.surface(info.Surface)
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.pd, surface, &caps)); err != nil {
		return 0, err
	}
	caps.Deref()
	d.mu.Lock()
	old := d.swapchains.get(uint64(info.OldSwapchain))
	d.mu.Unlock()
	ci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         surface,
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format),
		ImageColorSpace: vk.ColorSpace(info.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   compositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}
	var sc vk.Swapchain
	if err := check(vk.CreateSwapchain(d.dev, &ci, nil, &sc)); err != nil {
		return 0, fmt.Errorf("vkgo: create swapchain: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Swapchain(d.swapchains.put(sc)), nil
}

func (d *device) DestroySwapchain(h vkapi.Swapchain) {
	d.mu.Lock()
	sc, ok := d.swapchains.take(uint64(h))
	for _, img := range d.swapchainImage[uint64(h)] {
		d.images.take(uint64(img))
	}
	delete(d.swapchainImage, uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroySwapchain(d.dev, sc, nil)
	}
}

// SwapchainImages implements vkapi.Device. The images belong to the
// swapchain and must not be destroyed.
func (d *device) SwapchainImages(h vkapi.Swapchain) ([]vkapi.Image, error) {
	d.mu.Lock()
	if imgs, ok := d.swapchainImage[uint64(h)]; ok {
		d.mu.Unlock()
		return imgs, nil
	}
	sc := d.swapchains.get(uint64(h))
	d.mu.Unlock()

	var n uint32
	if err := check(vk.GetSwapchainImages(d.dev, sc, &n, nil)); err != nil {
		return nil, err
	}
	native := make([]vk.Image, n)
	if err := check(vk.GetSwapchainImages(d.dev, sc, &n, native)); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	imgs := make([]vkapi.Image, n)
	for i, img := range native {
		imgs[i] = vkapi.Image(d.images.put(img))
	}
	d.swapchainImage[uint64(h)] = imgs
	return imgs, nil
}

// AcquireNextImage implements vkapi.Device. A suboptimal acquire succeeds.
func (d *device) AcquireNextImage(h vkapi.Swapchain, timeout uint64, signal vkapi.Semaphore) (uint32, error) {
	d.mu.Lock()
	sc, s := d.swapchains.get(uint64(h)), d.semaphores.get(uint64(signal))
	d.mu.Unlock()
	var index uint32
	r := vk.AcquireNextImage(d.dev, sc, timeout, s, nil, &index)
	if r == vk.Suboptimal {
		return index, nil
	}
	return index, check(r)
}

func (d *device) Destroy() {
	vk.DeviceWaitIdle(d.dev)
	vk.DestroyDevice(d.dev, nil)
}

var _ vkapi.Device = (*device)(nil)
