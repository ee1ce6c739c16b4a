package vksoft

import (
	"fmt"
	"sync"

	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/texel"
)

// Memory type indices.
const (
	memoryDeviceLocal = 0
	memoryHost        = 1
)

var memoryTypes = []vkapi.MemoryType{
	{Properties: vkapi.MemoryDeviceLocal, HeapIndex: 0},
	{Properties: vkapi.MemoryHostVisible | vkapi.MemoryHostCoherent, HeapIndex: 1},
}

type memory struct {
	data   []byte
	typ    uint32
	mapped bool
}

type buffer struct {
	info   vkapi.BufferCreateInfo
	mem    *memory
	offset uint64
}

// bytes returns the bound range of the buffer, nil when unbound.
func (b *buffer) bytes() []byte {
	if b.mem == nil {
		return nil
	}
	return b.mem.data[b.offset : b.offset+b.info.Size]
}

type image struct {
	info      vkapi.ImageCreateInfo
	layout    texel.Layout
	levels    [][]byte
	layouts   []vkapi.ImageLayout
	bound     bool
	swapchain bool
}

func (img *image) extent(level uint32) (int, int) {
	return max(1, int(img.info.Width)>>level), max(1, int(img.info.Height)>>level)
}

type view struct {
	image vkapi.Image
	info  vkapi.ImageViewCreateInfo
}

// Objects counts live objects by kind.
type Objects struct {
	Memory          int
	Buffers         int
	Images          int // swapchain images excluded
	Views           int
	Samplers        int
	RenderPasses    int
	Framebuffers    int
	ShaderModules   int
	SetLayouts      int
	PipelineLayouts int
	Pipelines       int
	DescriptorPools int
	CommandPools    int
	Fences          int
	Semaphores      int
	Swapchains      int
}

// Total returns the sum of all counts.
func (o Objects) Total() int {
	return o.Memory + o.Buffers + o.Images + o.Views + o.Samplers + o.RenderPasses +
		o.Framebuffers + o.ShaderModules + o.SetLayouts + o.PipelineLayouts + o.Pipelines +
		o.DescriptorPools + o.CommandPools + o.Fences + o.Semaphores + o.Swapchains
}

// Device is an in-memory logical device with one queue. Methods are safe
// for concurrent use; the queue is serialized.
type Device struct {
	mu    sync.Mutex
	inst  *Instance
	props vkapi.DeviceProperties
	limit uint64
	used  uint64
	next  uint64

	memory       map[vkapi.DeviceMemory]*memory
	buffers      map[vkapi.Buffer]*buffer
	images       map[vkapi.Image]*image
	views        map[vkapi.ImageView]*view
	samplers     map[vkapi.Sampler]vkapi.SamplerCreateInfo
	passes       map[vkapi.RenderPass]*vkapi.RenderPassCreateInfo
	framebuffers map[vkapi.Framebuffer]*vkapi.FramebufferCreateInfo
	modules      map[vkapi.ShaderModule][]uint32
	setLayouts   map[vkapi.DescriptorSetLayout][]vkapi.DescriptorSetLayoutBinding
	pipeLayouts  map[vkapi.PipelineLayout][]vkapi.DescriptorSetLayout
	pipelines    map[vkapi.Pipeline]*pipeline
	pools        map[vkapi.DescriptorPool]*descriptorPool
	sets         map[vkapi.DescriptorSet]*descriptorSet
	cmdPools     map[vkapi.CommandPool]map[vkapi.CommandBuffer]bool
	cmds         map[vkapi.CommandBuffer]*commandBuffer
	fences       map[vkapi.Fence]*fence
	semaphores   map[vkapi.Semaphore]*semaphore
	swapchains   map[vkapi.Swapchain]*swapchain

	queue     []*submission
	presented []byte
	presents  int
	draws     int
	dispatch  int

	errors    []string
	events    []string
	calls     map[string]int
	submitErr error
	destroyed bool
}

func newDevice(inst *Instance) *Device {
	o := inst.opts
	return &Device{
		inst: inst,
		props: vkapi.DeviceProperties{
			DeviceName:                      o.DeviceName,
			APIVersion:                      1<<22 | 3<<12,
			MaxImageDimension2D:             16384,
			MinUniformBufferOffsetAlignment: o.UniformAlignment,
			MinStorageBufferOffsetAlignment: 16,
			FramebufferColorSampleCounts:    o.SampleCounts,
			FramebufferDepthSampleCounts:    o.SampleCounts,
			ExtendedDynamicState:            o.ExtendedDynamicState,
			ExtendedDynamicState2:           o.ExtendedDynamicState2,
			FillModeNonSolid:                true,
			WideLines:                       true,
		},
		limit:        o.MemoryLimit,
		memory:       make(map[vkapi.DeviceMemory]*memory),
		buffers:      make(map[vkapi.Buffer]*buffer),
		images:       make(map[vkapi.Image]*image),
		views:        make(map[vkapi.ImageView]*view),
		samplers:     make(map[vkapi.Sampler]vkapi.SamplerCreateInfo),
		passes:       make(map[vkapi.RenderPass]*vkapi.RenderPassCreateInfo),
		framebuffers: make(map[vkapi.Framebuffer]*vkapi.FramebufferCreateInfo),
		modules:      make(map[vkapi.ShaderModule][]uint32),
		setLayouts:   make(map[vkapi.DescriptorSetLayout][]vkapi.DescriptorSetLayoutBinding),
		pipeLayouts:  make(map[vkapi.PipelineLayout][]vkapi.DescriptorSetLayout),
		pipelines:    make(map[vkapi.Pipeline]*pipeline),
		pools:        make(map[vkapi.DescriptorPool]*descriptorPool),
		sets:         make(map[vkapi.DescriptorSet]*descriptorSet),
		cmdPools:     make(map[vkapi.CommandPool]map[vkapi.CommandBuffer]bool),
		cmds:         make(map[vkapi.CommandBuffer]*commandBuffer),
		fences:       make(map[vkapi.Fence]*fence),
		semaphores:   make(map[vkapi.Semaphore]*semaphore),
		swapchains:   make(map[vkapi.Swapchain]*swapchain),
		calls:        make(map[string]int),
	}
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

// invalid records a validation error. The caller holds d.mu.
func (d *Device) invalid(format string, args ...interface{}) {
	d.errors = append(d.errors, fmt.Sprintf(format, args...))
}

func (d *Device) event(format string, args ...interface{}) {
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

// ValidationErrors returns the recorded validation errors.
func (d *Device) ValidationErrors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.errors...)
}

// Events returns the queue event log: submits, fence waits and resets,
// acquires and presents, in call order.
func (d *Device) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// ClearEvents empties the event log.
func (d *Device) ClearEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

// Calls returns how many times the named command was recorded, for
// example "CmdSetViewport".
func (d *Device) Calls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

// FailNextSubmit makes the next QueueSubmit return err without touching
// the fence, command buffers or semaphores it names.
func (d *Device) FailNextSubmit(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitErr = err
}

// ResetCalls zeroes the command counters.
func (d *Device) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = make(map[string]int)
}

// Draws returns the number of executed draws.
func (d *Device) Draws() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

// Dispatches returns the number of executed dispatches.
func (d *Device) Dispatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatch
}

// Pending returns the number of submissions not yet executed.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Objects counts the live objects.
func (d *Device) Objects() Objects {
	d.mu.Lock()
	defer d.mu.Unlock()
	images := 0
	for _, img := range d.images {
		if !img.swapchain {
			images++
		}
	}
	return Objects{
		Memory:          len(d.memory),
		Buffers:         len(d.buffers),
		Images:          images,
		Views:           len(d.views),
		Samplers:        len(d.samplers),
		RenderPasses:    len(d.passes),
		Framebuffers:    len(d.framebuffers),
		ShaderModules:   len(d.modules),
		SetLayouts:      len(d.setLayouts),
		PipelineLayouts: len(d.pipeLayouts),
		Pipelines:       len(d.pipelines),
		DescriptorPools: len(d.pools),
		CommandPools:    len(d.cmdPools),
		Fences:          len(d.fences),
		Semaphores:      len(d.semaphores),
		Swapchains:      len(d.swapchains),
	}
}

// ImageLayout returns the current layout of a mip level as of the last
// executed submission.
func (d *Device) ImageLayout(img vkapi.Image, level uint32) vkapi.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.images[img]
	if i == nil || int(level) >= len(i.layouts) {
		return vkapi.ImageLayoutUndefined
	}
	return i.layouts[level]
}

// ImageData returns a copy of the pixels of a mip level.
func (d *Device) ImageData(img vkapi.Image, level uint32) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.images[img]
	if i == nil || int(level) >= len(i.levels) {
		return nil
	}
	return append([]byte(nil), i.levels[level]...)
}

// BufferData returns a copy of the contents of a buffer.
func (d *Device) BufferData(b vkapi.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := d.buffers[b]
	if buf == nil {
		return nil
	}
	return append([]byte(nil), buf.bytes()...)
}

// Presented returns the pixels of the last presented image and the number
// of presents executed.
func (d *Device) Presented() ([]byte, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.presented...), d.presents
}

// Properties implements vkapi.Device.
func (d *Device) Properties() vkapi.DeviceProperties { return d.props }

// MemoryTypes implements vkapi.Device.
func (d *Device) MemoryTypes() []vkapi.MemoryType {
	return append([]vkapi.MemoryType(nil), memoryTypes...)
}

// Native implements vkapi.Device.
func (d *Device) Native() interface{} { return d }

// AllocateMemory implements vkapi.Device.
func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (vkapi.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(typeIndex) >= len(memoryTypes) || size == 0 {
		d.invalid("allocate %d bytes of memory type %d", size, typeIndex)
		return 0, vkapi.ErrorOutOfDeviceMemory
	}
	if d.limit != 0 && d.used+size > d.limit {
		return 0, vkapi.ErrorOutOfDeviceMemory
	}
	d.used += size
	m := vkapi.DeviceMemory(d.handle())
	d.memory[m] = &memory{data: make([]byte, size), typ: typeIndex}
	return m, nil
}

// FreeMemory implements vkapi.Device.
func (d *Device) FreeMemory(m vkapi.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mem := d.memory[m]; mem != nil {
		d.used -= uint64(len(mem.data))
		delete(d.memory, m)
	}
}

// MapMemory implements vkapi.Device. The returned slice aliases the
// memory.
func (d *Device) MapMemory(m vkapi.DeviceMemory, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem := d.memory[m]
	if mem == nil {
		return nil, vkapi.ErrorMemoryMapFailed
	}
	if memoryTypes[mem.typ].Properties&vkapi.MemoryHostVisible == 0 {
		d.invalid("map of memory %d that is not host visible", m)
		return nil, vkapi.ErrorMemoryMapFailed
	}
	if mem.mapped {
		d.invalid("memory %d mapped twice", m)
		return nil, vkapi.ErrorMemoryMapFailed
	}
	if size == vkapi.WholeSize {
		size = uint64(len(mem.data)) - offset
	}
	if offset+size > uint64(len(mem.data)) {
		return nil, vkapi.ErrorMemoryMapFailed
	}
	mem.mapped = true
	return mem.data[offset : offset+size : offset+size], nil
}

// UnmapMemory implements vkapi.Device.
func (d *Device) UnmapMemory(m vkapi.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mem := d.memory[m]; mem != nil {
		mem.mapped = false
	}
}

// CreateBuffer implements vkapi.Device.
func (d *Device) CreateBuffer(info *vkapi.BufferCreateInfo) (vkapi.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Size == 0 || info.Usage == 0 {
		d.invalid("buffer of %d bytes with usage %#x", info.Size, info.Usage)
		return 0, vkapi.ErrorInitializationFail
	}
	b := vkapi.Buffer(d.handle())
	d.buffers[b] = &buffer{info: *info}
	return b, nil
}

// DestroyBuffer implements vkapi.Device.
func (d *Device) DestroyBuffer(b vkapi.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, b)
}

func bufferAlignment(usage vkapi.BufferUsage) uint64 {
	if usage&(vkapi.BufferUsageUniform|vkapi.BufferUsageStorage) != 0 {
		return 256
	}
	return 16
}

// BufferMemoryRequirements implements vkapi.Device.
func (d *Device) BufferMemoryRequirements(b vkapi.Buffer) vkapi.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := d.buffers[b]
	if buf == nil {
		return vkapi.MemoryRequirements{}
	}
	align := bufferAlignment(buf.info.Usage)
	return vkapi.MemoryRequirements{
		Size:      vkapi.AlignUp(buf.info.Size, align),
		Alignment: align,
		TypeBits:  1<<memoryDeviceLocal | 1<<memoryHost,
	}
}

// BindBufferMemory implements vkapi.Device.
func (d *Device) BindBufferMemory(b vkapi.Buffer, m vkapi.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, mem := d.buffers[b], d.memory[m]
	if buf == nil || mem == nil {
		return vkapi.ErrorInitializationFail
	}
	if buf.mem != nil {
		d.invalid("buffer %d bound to memory twice", b)
		return vkapi.ErrorInitializationFail
	}
	if offset%bufferAlignment(buf.info.Usage) != 0 || offset+buf.info.Size > uint64(len(mem.data)) {
		d.invalid("buffer %d of %d bytes bound at offset %d of %d", b, buf.info.Size, offset, len(mem.data))
		return vkapi.ErrorOutOfDeviceMemory
	}
	buf.mem, buf.offset = mem, offset
	return nil
}

func layoutOf(f vkapi.Format) (texel.Layout, bool) {
	switch f {
	case vkapi.FormatR8Unorm:
		return texel.Layout{Channels: 1, Kind: texel.Unorm}, true
	case vkapi.FormatR8G8Unorm:
		return texel.Layout{Channels: 2, Kind: texel.Unorm}, true
	case vkapi.FormatR8G8B8A8Unorm:
		return texel.RGBA8, true
	case vkapi.FormatR8G8B8A8Srgb:
		return texel.RGBA8SRGB, true
	case vkapi.FormatB8G8R8A8Unorm:
		return texel.BGRA8, true
	case vkapi.FormatB8G8R8A8Srgb:
		return texel.BGRA8SRGB, true
	case vkapi.FormatR16G16B16A16Sfloat:
		return texel.Layout{Channels: 4, Kind: texel.Half}, true
	case vkapi.FormatR32Sfloat:
		return texel.Layout{Channels: 1, Kind: texel.Float}, true
	case vkapi.FormatR32G32Sfloat:
		return texel.Layout{Channels: 2, Kind: texel.Float}, true
	case vkapi.FormatR32G32B32A32Sfloat:
		return texel.Layout{Channels: 4, Kind: texel.Float}, true
	case vkapi.FormatR32Uint:
		return texel.Layout{Channels: 1, Kind: texel.Uint}, true
	case vkapi.FormatD32Sfloat:
		return texel.D32, true
	case vkapi.FormatD24UnormS8Uint:
		return texel.D24S8, true
	}
	return texel.Layout{}, false
}

func (d *Device) newImage(info *vkapi.ImageCreateInfo) (*image, error) {
	l, ok := layoutOf(info.Format)
	if !ok {
		return nil, vkapi.ErrorFormatNotSupported
	}
	if info.Width == 0 || info.Height == 0 || info.MipLevels == 0 ||
		info.Width > d.props.MaxImageDimension2D || info.Height > d.props.MaxImageDimension2D {
		d.invalid("image %dx%d with %d levels", info.Width, info.Height, info.MipLevels)
		return nil, vkapi.ErrorInitializationFail
	}
	samples := max(info.Samples, 1)
	if samples&(samples-1) != 0 || d.props.FramebufferColorSampleCounts&samples == 0 {
		return nil, vkapi.ErrorFormatNotSupported
	}
	if samples > 1 && info.MipLevels != 1 {
		d.invalid("multisampled image with %d levels", info.MipLevels)
		return nil, vkapi.ErrorInitializationFail
	}
	img := &image{info: *info, layout: l}
	img.info.Samples = samples
	img.levels = make([][]byte, info.MipLevels)
	img.layouts = make([]vkapi.ImageLayout, info.MipLevels)
	for i := range img.levels {
		w, h := img.extent(uint32(i))
		img.levels[i] = make([]byte, w*h*l.Size())
	}
	return img, nil
}

// CreateImage implements vkapi.Device.
func (d *Device) CreateImage(info *vkapi.ImageCreateInfo) (vkapi.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, err := d.newImage(info)
	if err != nil {
		return 0, err
	}
	h := vkapi.Image(d.handle())
	d.images[h] = img
	return h, nil
}

// DestroyImage implements vkapi.Device.
func (d *Device) DestroyImage(img vkapi.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.images[img]; i != nil {
		if i.swapchain {
			d.invalid("destroy of swapchain image %d", img)
			return
		}
		delete(d.images, img)
	}
}

// ImageMemoryRequirements implements vkapi.Device. Images only accept
// device-local memory.
func (d *Device) ImageMemoryRequirements(img vkapi.Image) vkapi.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.images[img]
	if i == nil {
		return vkapi.MemoryRequirements{}
	}
	var size uint64
	for _, l := range i.levels {
		size += uint64(len(l))
	}
	size *= uint64(i.info.Samples)
	return vkapi.MemoryRequirements{Size: vkapi.AlignUp(size, 4096), Alignment: 4096, TypeBits: 1 << memoryDeviceLocal}
}

// BindImageMemory implements vkapi.Device.
func (d *Device) BindImageMemory(img vkapi.Image, m vkapi.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, mem := d.images[img], d.memory[m]
	if i == nil || mem == nil {
		return vkapi.ErrorInitializationFail
	}
	if mem.typ != memoryDeviceLocal {
		d.invalid("image %d bound to memory type %d", img, mem.typ)
		return vkapi.ErrorOutOfDeviceMemory
	}
	if i.bound {
		d.invalid("image %d bound to memory twice", img)
		return vkapi.ErrorInitializationFail
	}
	if offset%4096 != 0 || offset >= uint64(len(mem.data)) {
		d.invalid("image %d bound at offset %d of %d", img, offset, len(mem.data))
		return vkapi.ErrorOutOfDeviceMemory
	}
	i.bound = true
	return nil
}

// CreateImageView implements vkapi.Device.
func (d *Device) CreateImageView(info *vkapi.ImageViewCreateInfo) (vkapi.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := d.images[info.Image]
	if img == nil {
		return 0, vkapi.ErrorInitializationFail
	}
	r := info.Range
	if r.LevelCount == 0 || r.BaseLevel+r.LevelCount > img.info.MipLevels || info.Format != img.info.Format {
		d.invalid("view of levels %d+%d of image %d with %d levels", r.BaseLevel, r.LevelCount, info.Image, img.info.MipLevels)
		return 0, vkapi.ErrorInitializationFail
	}
	v := vkapi.ImageView(d.handle())
	d.views[v] = &view{image: info.Image, info: *info}
	return v, nil
}

// DestroyImageView implements vkapi.Device.
func (d *Device) DestroyImageView(v vkapi.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, v)
}

// CreateSampler implements vkapi.Device.
func (d *Device) CreateSampler(info *vkapi.SamplerCreateInfo) (vkapi.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := vkapi.Sampler(d.handle())
	d.samplers[s] = *info
	return s, nil
}

// DestroySampler implements vkapi.Device.
func (d *Device) DestroySampler(s vkapi.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, s)
}

// Destroy implements vkapi.Device. Pending submissions execute first;
// tests check Objects for leaks.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.flush(nil)
	d.destroyed = true
	d.event("destroy")
}

// Destroyed reports whether Destroy was called.
func (d *Device) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

var _ vkapi.Device = (*Device)(nil)
