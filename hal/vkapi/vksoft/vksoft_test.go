package vksoft

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/rhi/hal/vkapi"
)

var testSPIRV = []uint32{spirvMagic, 0x00010000, 0, 1, 0}

func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	inst := NewInstance(opts...)
	vi, err := inst.Loader()(nil, true)
	if err != nil {
		t.Fatalf("Loader() error = %v", err)
	}
	dev, err := vi.CreateDevice(0)
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	return dev.(*Device)
}

// must unwraps a driver call in test setup. Setup failures panic, which
// fails the running test with a stack trace.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func expectValid(t *testing.T, d *Device) {
	t.Helper()
	if errs := d.ValidationErrors(); len(errs) != 0 {
		t.Fatalf("validation errors: %q", errs)
	}
}

func expectInvalid(t *testing.T, d *Device, substr string) {
	t.Helper()
	for _, e := range d.ValidationErrors() {
		if strings.Contains(e, substr) {
			return
		}
	}
	t.Fatalf("no validation error containing %q in %q", substr, d.ValidationErrors())
}

// hostBuffer creates a buffer bound to host visible memory.
func hostBuffer(t *testing.T, d *Device, size uint64, usage vkapi.BufferUsage) (vkapi.Buffer, []byte) {
	t.Helper()
	b := must(d.CreateBuffer(&vkapi.BufferCreateInfo{Size: size, Usage: usage}))
	req := d.BufferMemoryRequirements(b)
	m := must(d.AllocateMemory(req.Size, memoryHost))
	if err := d.BindBufferMemory(b, m, 0); err != nil {
		t.Fatalf("BindBufferMemory() error = %v", err)
	}
	return b, must(d.MapMemory(m, 0, vkapi.WholeSize))
}

func colorImage(t *testing.T, d *Device, w, h uint32, samples uint32) vkapi.Image {
	t.Helper()
	img := must(d.CreateImage(&vkapi.ImageCreateInfo{
		Format: vkapi.FormatR8G8B8A8Unorm, Width: w, Height: h, MipLevels: 1, Samples: samples,
		Usage: vkapi.ImageUsageColorAttachment | vkapi.ImageUsageTransferSrc | vkapi.ImageUsageTransferDst | vkapi.ImageUsageSampled,
	}))
	req := d.ImageMemoryRequirements(img)
	m := must(d.AllocateMemory(req.Size, memoryDeviceLocal))
	if err := d.BindImageMemory(img, m, 0); err != nil {
		t.Fatalf("BindImageMemory() error = %v", err)
	}
	return img
}

func colorView(t *testing.T, d *Device, img vkapi.Image) vkapi.ImageView {
	t.Helper()
	return must(d.CreateImageView(&vkapi.ImageViewCreateInfo{
		Image: img, Format: vkapi.FormatR8G8B8A8Unorm,
		Range: vkapi.SubresourceRange{Aspect: vkapi.AspectColor, LevelCount: 1},
	}))
}

func recorder(t *testing.T, d *Device) vkapi.CommandBuffer {
	t.Helper()
	pool := must(d.CreateCommandPool())
	cb := must(d.AllocateCommandBuffers(pool, 1))[0]
	if err := d.BeginCommandBuffer(cb, false); err != nil {
		t.Fatalf("BeginCommandBuffer() error = %v", err)
	}
	return cb
}

func submitAndWait(t *testing.T, d *Device, cb vkapi.CommandBuffer) {
	t.Helper()
	if err := d.EndCommandBuffer(cb); err != nil {
		t.Fatalf("EndCommandBuffer() error = %v", err)
	}
	f := must(d.CreateFence(false))
	if err := d.QueueSubmit([]vkapi.SubmitInfo{{CommandBuffers: []vkapi.CommandBuffer{cb}}}, f); err != nil {
		t.Fatalf("QueueSubmit() error = %v", err)
	}
	if err := d.WaitForFences([]vkapi.Fence{f}, ^uint64(0)); err != nil {
		t.Fatalf("WaitForFences() error = %v", err)
	}
	d.DestroyFence(f)
}

func barrier(img vkapi.Image, from, to vkapi.ImageLayout) vkapi.ImageMemoryBarrier {
	return vkapi.ImageMemoryBarrier{
		OldLayout: from, NewLayout: to, Image: img,
		Range: vkapi.SubresourceRange{Aspect: vkapi.AspectColor, LevelCount: 1},
	}
}

// =============================================================================
// Memory
// =============================================================================

func TestMapMemory(t *testing.T) {
	d := newTestDevice(t)
	local := must(d.AllocateMemory(64, memoryDeviceLocal))
	if _, err := d.MapMemory(local, 0, vkapi.WholeSize); !errors.Is(err, vkapi.ErrorMemoryMapFailed) {
		t.Errorf("MapMemory(device local) error = %v, want %v", err, vkapi.ErrorMemoryMapFailed)
	}
	host := must(d.AllocateMemory(64, memoryHost))
	p := must(d.MapMemory(host, 16, 32))
	if len(p) != 32 {
		t.Errorf("len(MapMemory()) = %d, want 32", len(p))
	}
	if _, err := d.MapMemory(host, 0, 8); err == nil {
		t.Error("second MapMemory() succeeded, want error")
	}
	expectInvalid(t, d, "mapped twice")
	d.UnmapMemory(host)
	if _, err := d.MapMemory(host, 0, 8); err != nil {
		t.Errorf("MapMemory() after unmap error = %v", err)
	}
}

func TestMemoryLimit(t *testing.T) {
	d := newTestDevice(t, WithMemoryLimit(100))
	m := must(d.AllocateMemory(80, memoryHost))
	if _, err := d.AllocateMemory(40, memoryHost); !errors.Is(err, vkapi.ErrorOutOfDeviceMemory) {
		t.Errorf("AllocateMemory() over limit error = %v, want %v", err, vkapi.ErrorOutOfDeviceMemory)
	}
	d.FreeMemory(m)
	must(d.AllocateMemory(40, memoryHost))
}

func TestImageRequiresDeviceLocalMemory(t *testing.T) {
	d := newTestDevice(t)
	img := must(d.CreateImage(&vkapi.ImageCreateInfo{
		Format: vkapi.FormatR8G8B8A8Unorm, Width: 4, Height: 4, MipLevels: 1, Usage: vkapi.ImageUsageSampled,
	}))
	req := d.ImageMemoryRequirements(img)
	if _, ok := vkapi.FindMemoryType(d.MemoryTypes(), req.TypeBits, vkapi.MemoryHostVisible); ok {
		t.Error("image memory may be host visible")
	}
	m := must(d.AllocateMemory(req.Size, memoryHost))
	if err := d.BindImageMemory(img, m, 0); err == nil {
		t.Error("BindImageMemory(host memory) succeeded, want error")
	}
}

// =============================================================================
// Queue and synchronization
// =============================================================================

func TestExecutionIsLazy(t *testing.T) {
	d := newTestDevice(t)
	src, sp := hostBuffer(t, d, 16, vkapi.BufferUsageTransferSrc)
	dst, dp := hostBuffer(t, d, 16, vkapi.BufferUsageTransferDst)
	copy(sp, []byte("0123456789abcdef"))

	cb := recorder(t, d)
	d.CmdCopyBuffer(cb, src, dst, []vkapi.BufferCopy{{Size: 16}})
	must(0, d.EndCommandBuffer(cb))
	f := must(d.CreateFence(false))
	must(0, d.QueueSubmit([]vkapi.SubmitInfo{{CommandBuffers: []vkapi.CommandBuffer{cb}}}, f))

	if d.Pending() != 1 || dp[0] != 0 {
		t.Fatalf("copy ran before the fence was waited on")
	}
	if done, err := d.FenceStatus(f); !done || err != nil {
		t.Fatalf("FenceStatus() = %v, %v, want true, nil", done, err)
	}
	if string(dp) != "0123456789abcdef" {
		t.Errorf("destination = %q, want the source bytes", dp)
	}
	expectValid(t, d)
}

func TestWaitWithoutSubmissionTimesOut(t *testing.T) {
	d := newTestDevice(t)
	f := must(d.CreateFence(false))
	if err := d.WaitForFences([]vkapi.Fence{f}, 0); !errors.Is(err, vkapi.Timeout) {
		t.Errorf("WaitForFences() error = %v, want %v", err, vkapi.Timeout)
	}
	expectInvalid(t, d, "no pending submission")
}

func TestPendingMisuse(t *testing.T) {
	d := newTestDevice(t)
	cb := recorder(t, d)
	must(0, d.EndCommandBuffer(cb))
	f := must(d.CreateFence(false))
	must(0, d.QueueSubmit([]vkapi.SubmitInfo{{CommandBuffers: []vkapi.CommandBuffer{cb}}}, f))

	must(0, d.ResetFences([]vkapi.Fence{f}))
	expectInvalid(t, d, "reset while pending")
	must(0, d.BeginCommandBuffer(cb, false))
	expectInvalid(t, d, "begun while pending")
}

func TestSemaphores(t *testing.T) {
	d := newTestDevice(t)
	s := must(d.CreateSemaphore())
	must(0, d.QueueSubmit([]vkapi.SubmitInfo{{Wait: []vkapi.Semaphore{s}}}, 0))
	expectInvalid(t, d, "not signaled")

	d2 := newTestDevice(t)
	s2 := must(d2.CreateSemaphore())
	must(0, d2.QueueSubmit([]vkapi.SubmitInfo{{Signal: []vkapi.Semaphore{s2}}}, 0))
	must(0, d2.QueueSubmit([]vkapi.SubmitInfo{{Wait: []vkapi.Semaphore{s2}}}, 0))
	expectValid(t, d2)
}

// =============================================================================
// Layouts
// =============================================================================

func TestBarrierTracksLayouts(t *testing.T) {
	d := newTestDevice(t)
	img := colorImage(t, d, 2, 2, 1)
	cb := recorder(t, d)
	d.CmdPipelineBarrier(cb, vkapi.StageTopOfPipe, vkapi.StageTransfer, nil, nil,
		[]vkapi.ImageMemoryBarrier{barrier(img, vkapi.ImageLayoutUndefined, vkapi.ImageLayoutTransferDstOptimal)})
	submitAndWait(t, d, cb)
	if got := d.ImageLayout(img, 0); got != vkapi.ImageLayoutTransferDstOptimal {
		t.Fatalf("ImageLayout() = %v, want TransferDst", got)
	}
	expectValid(t, d)

	cb = recorder(t, d)
	d.CmdPipelineBarrier(cb, vkapi.StageTransfer, vkapi.StageFragmentShader, nil, nil,
		[]vkapi.ImageMemoryBarrier{barrier(img, vkapi.ImageLayoutColorAttachmentOptimal, vkapi.ImageLayoutShaderReadOnlyOptimal)})
	submitAndWait(t, d, cb)
	expectInvalid(t, d, "barrier expects level 0 in layout ColorAttachment, image is in TransferDst")
}

func TestCopyBufferToImageChecksLayout(t *testing.T) {
	d := newTestDevice(t)
	img := colorImage(t, d, 2, 2, 1)
	src, sp := hostBuffer(t, d, 16, vkapi.BufferUsageTransferSrc)
	for i := range sp {
		sp[i] = byte(i)
	}
	region := []vkapi.BufferImageCopy{{Aspect: vkapi.AspectColor, Extent: vkapi.Extent2D{Width: 2, Height: 2}}}

	cb := recorder(t, d)
	d.CmdCopyBufferToImage(cb, src, img, vkapi.ImageLayoutTransferDstOptimal, region)
	submitAndWait(t, d, cb)
	expectInvalid(t, d, "CmdCopyBufferToImage expects level 0 in layout TransferDst, image is in Undefined")

	d = newTestDevice(t)
	img = colorImage(t, d, 2, 2, 1)
	src, sp = hostBuffer(t, d, 16, vkapi.BufferUsageTransferSrc)
	copy(sp, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	cb = recorder(t, d)
	d.CmdPipelineBarrier(cb, vkapi.StageTopOfPipe, vkapi.StageTransfer, nil, nil,
		[]vkapi.ImageMemoryBarrier{barrier(img, vkapi.ImageLayoutUndefined, vkapi.ImageLayoutTransferDstOptimal)})
	d.CmdCopyBufferToImage(cb, src, img, vkapi.ImageLayoutTransferDstOptimal, region)
	submitAndWait(t, d, cb)
	expectValid(t, d)
	if got := d.ImageData(img, 0); !bytes.Equal(got, sp) {
		t.Errorf("ImageData() = %v, want %v", got, sp)
	}
}

// =============================================================================
// Render passes and pipelines
// =============================================================================

type passFixture struct {
	pass   vkapi.RenderPass
	fb     vkapi.Framebuffer
	images []vkapi.Image
	layout vkapi.PipelineLayout
}

// twoColorPass builds a pass with two cleared RGBA8 attachments that end
// in TransferSrc.
func twoColorPass(t *testing.T, d *Device, w, h uint32) passFixture {
	t.Helper()
	color := vkapi.AttachmentDescription{
		Format: vkapi.FormatR8G8B8A8Unorm, Samples: 1, Load: vkapi.LoadOpClear, Store: vkapi.StoreOpStore,
		StencilLoad: vkapi.LoadOpDontCare, StencilStore: vkapi.StoreOpDontCare,
		FinalLayout: vkapi.ImageLayoutTransferSrcOptimal,
	}
	pass := must(d.CreateRenderPass(&vkapi.RenderPassCreateInfo{
		Attachments: []vkapi.AttachmentDescription{color, color},
		Colors: []vkapi.AttachmentReference{
			{Attachment: 0, Layout: vkapi.ImageLayoutColorAttachmentOptimal},
			{Attachment: 1, Layout: vkapi.ImageLayoutColorAttachmentOptimal},
		},
	}))
	a, b := colorImage(t, d, w, h, 1), colorImage(t, d, w, h, 1)
	fb := must(d.CreateFramebuffer(&vkapi.FramebufferCreateInfo{
		RenderPass: pass, Attachments: []vkapi.ImageView{colorView(t, d, a), colorView(t, d, b)}, Width: w, Height: h,
	}))
	layout := must(d.CreatePipelineLayout(nil))
	return passFixture{pass: pass, fb: fb, images: []vkapi.Image{a, b}, layout: layout}
}

func (f passFixture) begin(d *Device, cb vkapi.CommandBuffer, w, h uint32) {
	d.CmdBeginRenderPass(cb, &vkapi.RenderPassBeginInfo{
		RenderPass: f.pass, Framebuffer: f.fb,
		Area: vkapi.Rect2D{Extent: vkapi.Extent2D{Width: w, Height: h}},
		Clears: []vkapi.ClearValue{
			{Color: [4]float32{1, 0, 0, 1}},
			{Color: [4]float32{0, 0, 1, 1}},
		},
	})
}

func TestRenderPassClearsAndTransitions(t *testing.T) {
	d := newTestDevice(t)
	f := twoColorPass(t, d, 4, 4)
	cb := recorder(t, d)
	f.begin(d, cb, 4, 4)
	d.CmdEndRenderPass(cb)
	submitAndWait(t, d, cb)
	expectValid(t, d)

	for i, want := range [][]byte{{255, 0, 0, 255}, {0, 0, 255, 255}} {
		got := d.ImageData(f.images[i], 0)
		if !bytes.Equal(got[:4], want) || !bytes.Equal(got[len(got)-4:], want) {
			t.Errorf("attachment %d = %v, want %v", i, got[:4], want)
		}
		if l := d.ImageLayout(f.images[i], 0); l != vkapi.ImageLayoutTransferSrcOptimal {
			t.Errorf("attachment %d layout = %v, want TransferSrc", i, l)
		}
	}
}

func TestMultisampleResolve(t *testing.T) {
	d := newTestDevice(t)
	ms := vkapi.AttachmentDescription{
		Format: vkapi.FormatR8G8B8A8Unorm, Samples: 4, Load: vkapi.LoadOpClear, Store: vkapi.StoreOpDontCare,
		FinalLayout: vkapi.ImageLayoutColorAttachmentOptimal,
	}
	single := vkapi.AttachmentDescription{
		Format: vkapi.FormatR8G8B8A8Unorm, Samples: 1, Load: vkapi.LoadOpDontCare, Store: vkapi.StoreOpStore,
		FinalLayout: vkapi.ImageLayoutTransferSrcOptimal,
	}
	pass := must(d.CreateRenderPass(&vkapi.RenderPassCreateInfo{
		Attachments: []vkapi.AttachmentDescription{ms, single},
		Colors:      []vkapi.AttachmentReference{{Attachment: 0, Layout: vkapi.ImageLayoutColorAttachmentOptimal}},
		Resolves:    []vkapi.AttachmentReference{{Attachment: 1, Layout: vkapi.ImageLayoutColorAttachmentOptimal}},
	}))
	msImg, out := colorImage(t, d, 2, 2, 4), colorImage(t, d, 2, 2, 1)
	fb := must(d.CreateFramebuffer(&vkapi.FramebufferCreateInfo{
		RenderPass: pass, Attachments: []vkapi.ImageView{colorView(t, d, msImg), colorView(t, d, out)}, Width: 2, Height: 2,
	}))
	cb := recorder(t, d)
	d.CmdBeginRenderPass(cb, &vkapi.RenderPassBeginInfo{
		RenderPass: pass, Framebuffer: fb, Area: vkapi.Rect2D{Extent: vkapi.Extent2D{Width: 2, Height: 2}},
		Clears: []vkapi.ClearValue{{Color: [4]float32{0, 1, 0, 1}}, {}},
	})
	d.CmdEndRenderPass(cb)
	submitAndWait(t, d, cb)
	expectValid(t, d)
	if got := d.ImageData(out, 0)[:4]; !bytes.Equal(got, []byte{0, 255, 0, 255}) {
		t.Errorf("resolved pixel = %v, want green", got)
	}
}

func testPipeline(t *testing.T, d *Device, f passFixture, dynamic ...vkapi.DynamicState) vkapi.Pipeline {
	t.Helper()
	mod := must(d.CreateShaderModule(testSPIRV))
	return must(d.CreateGraphicsPipeline(&vkapi.GraphicsPipelineCreateInfo{
		Vertex: mod, Fragment: mod, LineWidth: 1, Samples: 1,
		Blend:         make([]vkapi.ColorBlendAttachment, 2),
		DynamicStates: dynamic,
		Layout:        f.layout,
		RenderPass:    f.pass,
	}))
}

func TestShaderModuleMagic(t *testing.T) {
	d := newTestDevice(t)
	if _, err := d.CreateShaderModule([]uint32{1, 2, 3, 4, 5}); !errors.Is(err, vkapi.ErrorInvalidShader) {
		t.Errorf("CreateShaderModule(bad magic) error = %v, want %v", err, vkapi.ErrorInvalidShader)
	}
}

func TestDynamicStateMustBeSet(t *testing.T) {
	d := newTestDevice(t)
	f := twoColorPass(t, d, 4, 4)
	p := testPipeline(t, d, f, vkapi.DynamicViewport, vkapi.DynamicScissor)

	cb := recorder(t, d)
	f.begin(d, cb, 4, 4)
	d.CmdBindPipeline(cb, vkapi.BindPointGraphics, p)
	d.CmdSetViewport(cb, vkapi.Viewport{Width: 4, Height: 4, MaxDepth: 1})
	d.CmdDraw(cb, 3, 1, 0, 0)
	expectInvalid(t, d, "CmdDraw with dynamic state 1 unset")

	d = newTestDevice(t)
	f = twoColorPass(t, d, 4, 4)
	p = testPipeline(t, d, f, vkapi.DynamicViewport, vkapi.DynamicScissor)
	cb = recorder(t, d)
	f.begin(d, cb, 4, 4)
	d.CmdBindPipeline(cb, vkapi.BindPointGraphics, p)
	d.CmdSetViewport(cb, vkapi.Viewport{Width: 4, Height: 4, MaxDepth: 1})
	d.CmdSetScissor(cb, vkapi.Rect2D{Extent: vkapi.Extent2D{Width: 4, Height: 4}})
	d.CmdDraw(cb, 3, 1, 0, 0)
	d.CmdEndRenderPass(cb)
	submitAndWait(t, d, cb)
	expectValid(t, d)
	if d.Draws() != 1 {
		t.Errorf("Draws() = %d, want 1", d.Draws())
	}
}

func TestBindInvalidatesStaticState(t *testing.T) {
	d := newTestDevice(t)
	f := twoColorPass(t, d, 4, 4)
	dyn := testPipeline(t, d, f, vkapi.DynamicViewport, vkapi.DynamicScissor, vkapi.DynamicCullMode)
	static := testPipeline(t, d, f, vkapi.DynamicViewport, vkapi.DynamicScissor)

	cb := recorder(t, d)
	f.begin(d, cb, 4, 4)
	d.CmdBindPipeline(cb, vkapi.BindPointGraphics, dyn)
	d.CmdSetViewport(cb, vkapi.Viewport{Width: 4, Height: 4, MaxDepth: 1})
	d.CmdSetScissor(cb, vkapi.Rect2D{Extent: vkapi.Extent2D{Width: 4, Height: 4}})
	d.CmdSetCullMode(cb, vkapi.CullModeBack)
	d.CmdBindPipeline(cb, vkapi.BindPointGraphics, static)
	d.CmdBindPipeline(cb, vkapi.BindPointGraphics, dyn)
	d.CmdDraw(cb, 3, 1, 0, 0)
	expectInvalid(t, d, "dynamic state 1000267000 unset")
}

func TestExtendedDynamicStateRequiresExtension(t *testing.T) {
	d := newTestDevice(t, WithExtendedDynamicState(false))
	f := twoColorPass(t, d, 4, 4)
	mod := must(d.CreateShaderModule(testSPIRV))
	_, err := d.CreateGraphicsPipeline(&vkapi.GraphicsPipelineCreateInfo{
		Vertex: mod, Fragment: mod, LineWidth: 1, Samples: 1, Blend: make([]vkapi.ColorBlendAttachment, 2),
		DynamicStates: []vkapi.DynamicState{vkapi.DynamicCullMode}, Layout: f.layout, RenderPass: f.pass,
	})
	if !errors.Is(err, vkapi.ErrorFeatureNotPresent) {
		t.Errorf("CreateGraphicsPipeline() error = %v, want %v", err, vkapi.ErrorFeatureNotPresent)
	}
}

// =============================================================================
// Descriptors
// =============================================================================

func TestDescriptorPoolExhaustion(t *testing.T) {
	d := newTestDevice(t)
	layout := must(d.CreateDescriptorSetLayout([]vkapi.DescriptorSetLayoutBinding{
		{Binding: 0, Type: vkapi.DescriptorTypeUniformBuffer, Count: 1, Stages: vkapi.ShaderStageVertex},
		{Binding: 1, Type: vkapi.DescriptorTypeCombinedImageSampler, Count: 2, Stages: vkapi.ShaderStageFragment},
	}))
	pool := must(d.CreateDescriptorPool(&vkapi.DescriptorPoolCreateInfo{
		MaxSets: 2,
		Sizes: []vkapi.DescriptorPoolSize{
			{Type: vkapi.DescriptorTypeUniformBuffer, Count: 2},
			{Type: vkapi.DescriptorTypeCombinedImageSampler, Count: 3},
		},
	}))
	must(d.AllocateDescriptorSets(pool, []vkapi.DescriptorSetLayout{layout}))
	if _, err := d.AllocateDescriptorSets(pool, []vkapi.DescriptorSetLayout{layout}); !errors.Is(err, vkapi.ErrorOutOfPoolMemory) {
		t.Errorf("AllocateDescriptorSets() error = %v, want %v", err, vkapi.ErrorOutOfPoolMemory)
	}
}

func TestUpdateWhilePending(t *testing.T) {
	d := newTestDevice(t)
	layout := must(d.CreateDescriptorSetLayout([]vkapi.DescriptorSetLayoutBinding{
		{Binding: 0, Type: vkapi.DescriptorTypeUniformBuffer, Count: 1, Stages: vkapi.ShaderStageCompute},
	}))
	pool := must(d.CreateDescriptorPool(&vkapi.DescriptorPoolCreateInfo{
		MaxSets: 1, Sizes: []vkapi.DescriptorPoolSize{{Type: vkapi.DescriptorTypeUniformBuffer, Count: 1}},
	}))
	set := must(d.AllocateDescriptorSets(pool, []vkapi.DescriptorSetLayout{layout}))[0]
	ubo, _ := hostBuffer(t, d, 512, vkapi.BufferUsageUniform)
	write := []vkapi.WriteDescriptorSet{{
		Set: set, Type: vkapi.DescriptorTypeUniformBuffer,
		Buffers: []vkapi.DescriptorBufferInfo{{Buffer: ubo, Range: 64}},
	}}
	d.UpdateDescriptorSets(write)
	expectValid(t, d)

	pl := must(d.CreatePipelineLayout([]vkapi.DescriptorSetLayout{layout}))
	p := must(d.CreateComputePipeline(&vkapi.ComputePipelineCreateInfo{Module: must(d.CreateShaderModule(testSPIRV)), Layout: pl}))
	cb := recorder(t, d)
	d.CmdBindPipeline(cb, vkapi.BindPointCompute, p)
	d.CmdBindDescriptorSets(cb, vkapi.BindPointCompute, pl, 0, []vkapi.DescriptorSet{set}, nil)
	d.CmdDispatch(cb, 1, 1, 1)
	must(0, d.EndCommandBuffer(cb))
	fence := must(d.CreateFence(false))
	must(0, d.QueueSubmit([]vkapi.SubmitInfo{{CommandBuffers: []vkapi.CommandBuffer{cb}}}, fence))

	d.UpdateDescriptorSets(write)
	expectInvalid(t, d, "updated while in use")
}

func TestUniformOffsetAlignment(t *testing.T) {
	d := newTestDevice(t)
	layout := must(d.CreateDescriptorSetLayout([]vkapi.DescriptorSetLayoutBinding{
		{Binding: 0, Type: vkapi.DescriptorTypeUniformBuffer, Count: 1, Stages: vkapi.ShaderStageVertex},
	}))
	pool := must(d.CreateDescriptorPool(&vkapi.DescriptorPoolCreateInfo{
		MaxSets: 1, Sizes: []vkapi.DescriptorPoolSize{{Type: vkapi.DescriptorTypeUniformBuffer, Count: 1}},
	}))
	set := must(d.AllocateDescriptorSets(pool, []vkapi.DescriptorSetLayout{layout}))[0]
	ubo, _ := hostBuffer(t, d, 1024, vkapi.BufferUsageUniform)
	d.UpdateDescriptorSets([]vkapi.WriteDescriptorSet{{
		Set: set, Type: vkapi.DescriptorTypeUniformBuffer,
		Buffers: []vkapi.DescriptorBufferInfo{{Buffer: ubo, Offset: 4, Range: 16}},
	}})
	expectInvalid(t, d, "not aligned to 256")
}

// =============================================================================
// Presentation
// =============================================================================

func TestSwapchainOutOfDate(t *testing.T) {
	inst := NewInstance()
	win := NewWindow(8, 6)
	vi := must(inst.Loader()(win.RequiredInstanceExtensions(), false))
	surface := must(vi.CreateSurface(win.CreateVulkanSurface))
	dev := must(vi.CreateDevice(surface))
	d := dev.(*Device)

	caps := must(d.SurfaceCapabilities(surface))
	if caps.CurrentExtent != (vkapi.Extent2D{Width: 8, Height: 6}) {
		t.Fatalf("CurrentExtent = %v, want 8x6", caps.CurrentExtent)
	}
	sc := must(d.CreateSwapchain(&vkapi.SwapchainCreateInfo{
		Surface: surface, MinImageCount: 2, Format: vkapi.FormatB8G8R8A8Unorm,
		Extent: caps.CurrentExtent, Usage: vkapi.ImageUsageColorAttachment, PresentMode: vkapi.PresentModeFifo,
	}))
	images := must(d.SwapchainImages(sc))
	if len(images) != 2 {
		t.Fatalf("len(SwapchainImages()) = %d, want 2", len(images))
	}
	for want := uint32(0); want < 3; want++ {
		sem := must(d.CreateSemaphore())
		idx := must(d.AcquireNextImage(sc, ^uint64(0), sem))
		if idx != want%2 {
			t.Errorf("AcquireNextImage() = %d, want %d", idx, want%2)
		}
		cb := recorder(t, d)
		d.CmdPipelineBarrier(cb, vkapi.StageTopOfPipe, vkapi.StageBottomOfPipe, nil, nil,
			[]vkapi.ImageMemoryBarrier{barrier(images[idx], vkapi.ImageLayoutUndefined, vkapi.ImageLayoutPresentSrc)})
		must(0, d.EndCommandBuffer(cb))
		done := must(d.CreateSemaphore())
		must(0, d.QueueSubmit([]vkapi.SubmitInfo{{
			Wait: []vkapi.Semaphore{sem}, WaitStages: []vkapi.PipelineStage{vkapi.StageTransfer},
			CommandBuffers: []vkapi.CommandBuffer{cb}, Signal: []vkapi.Semaphore{done},
		}}, 0))
		must(0, d.QueuePresent(&vkapi.PresentInfo{Wait: []vkapi.Semaphore{done}, Swapchain: sc, ImageIndex: idx}))
		must(0, d.WaitIdle())
	}
	expectValid(t, d)
	if _, n := d.Presented(); n != 3 {
		t.Errorf("presents = %d, want 3", n)
	}

	win.SetSize(10, 10)
	if _, err := d.AcquireNextImage(sc, ^uint64(0), 0); !errors.Is(err, vkapi.ErrorOutOfDate) {
		t.Errorf("AcquireNextImage() after resize error = %v, want %v", err, vkapi.ErrorOutOfDate)
	}
	sc2 := must(d.CreateSwapchain(&vkapi.SwapchainCreateInfo{
		Surface: surface, MinImageCount: 2, Format: vkapi.FormatB8G8R8A8Unorm,
		Extent: vkapi.Extent2D{Width: 10, Height: 10}, Usage: vkapi.ImageUsageColorAttachment, OldSwapchain: sc,
	}))
	d.DestroySwapchain(sc)
	if _, err := d.AcquireNextImage(sc2, ^uint64(0), 0); err != nil {
		t.Errorf("AcquireNextImage() on new swapchain error = %v", err)
	}
}

func TestSurfaceNeedsOwnInstance(t *testing.T) {
	win := NewWindow(4, 4)
	if _, err := win.CreateVulkanSurface("not an instance"); err == nil {
		t.Error("CreateVulkanSurface(foreign) succeeded, want error")
	}
}

func TestSurfaceNeedsExtensionAndPresent(t *testing.T) {
	win := NewWindow(4, 4)
	bare := must(NewInstance().Loader()(nil, false))
	if _, err := bare.CreateSurface(win.CreateVulkanSurface); !errors.Is(err, vkapi.ErrorExtensionNotPresent) {
		t.Errorf("CreateSurface() without %s = %v, want ErrorExtensionNotPresent", surfaceExtension, err)
	}

	tests := []struct {
		name string
		opts []Option
		want bool
	}{
		{"presents", nil, true},
		{"without present", []Option{WithoutPresent()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vi := must(NewInstance(tt.opts...).Loader()(win.RequiredInstanceExtensions(), false))
			surface := must(vi.CreateSurface(win.CreateVulkanSurface))
			dev := must(vi.CreateDevice(0))
			if got := must(dev.SurfaceSupported(surface)); got != tt.want {
				t.Errorf("SurfaceSupported() = %v, want %v", got, tt.want)
			}
			if _, err := vi.CreateDevice(surface); (err == nil) != tt.want {
				t.Errorf("CreateDevice(surface) error = %v, want success %v", err, tt.want)
			}
		})
	}
}
