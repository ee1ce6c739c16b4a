package vksoft

import (
	goimage "image"

	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/texel"
)

// BeginCommandBuffer implements vkapi.Recorder. Beginning resets the
// command buffer.
func (d *Device) BeginCommandBuffer(h vkapi.CommandBuffer, oneTime bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.cmds[h]
	if cb == nil {
		return vkapi.ErrorDeviceLost
	}
	if cb.pending > 0 {
		d.invalid("command buffer %d begun while pending", h)
	}
	*cb = commandBuffer{
		pool:    cb.pool,
		pending: cb.pending,
		state:   cbRecording,
		oneTime: oneTime,
		dynamic: make(map[vkapi.DynamicState]bool),
		bound:   make(map[vkapi.PipelineBindPoint]map[uint32]vkapi.DescriptorSet),
		sets:    make(map[vkapi.DescriptorSet]bool),
	}
	return nil
}

// EndCommandBuffer implements vkapi.Recorder.
func (d *Device) EndCommandBuffer(h vkapi.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.cmds[h]
	if cb == nil {
		return vkapi.ErrorDeviceLost
	}
	if cb.state != cbRecording {
		d.invalid("end of command buffer %d that is not recording", h)
		return vkapi.ErrorInitializationFail
	}
	if cb.pass != nil {
		d.invalid("command buffer %d ended inside a render pass", h)
	}
	cb.state = cbExecutable
	return nil
}

// ResetCommandBuffer implements vkapi.Recorder.
func (d *Device) ResetCommandBuffer(h vkapi.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.cmds[h]
	if cb == nil {
		return vkapi.ErrorDeviceLost
	}
	if cb.pending > 0 {
		d.invalid("command buffer %d reset while pending", h)
	}
	cb.state, cb.commands = cbInitial, nil
	return nil
}

// recording returns the command buffer when it accepts commands. The
// caller holds d.mu.
func (d *Device) recording(h vkapi.CommandBuffer, name string) *commandBuffer {
	d.calls[name]++
	cb := d.cmds[h]
	if cb == nil || cb.state != cbRecording {
		d.invalid("%s on command buffer %d that is not recording", name, h)
		return nil
	}
	return cb
}

func (cb *commandBuffer) record(name string, run func()) {
	cb.commands = append(cb.commands, command{name: name, run: run})
}

// outside checks a transfer or dispatch is recorded outside render passes.
func (d *Device) outside(cb *commandBuffer, name string) bool {
	if cb.pass != nil {
		d.invalid("%s inside a render pass", name)
		return false
	}
	return true
}

// CmdBeginRenderPass implements vkapi.Recorder.
func (d *Device) CmdBeginRenderPass(h vkapi.CommandBuffer, info *vkapi.RenderPassBeginInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdBeginRenderPass")
	if cb == nil {
		return
	}
	if cb.pass != nil {
		d.invalid("render pass begun inside a render pass")
		return
	}
	rp, fb := d.passes[info.RenderPass], d.framebuffers[info.Framebuffer]
	if rp == nil || fb == nil || fb.RenderPass != info.RenderPass && !compatiblePasses(rp, d.passes[fb.RenderPass]) {
		d.invalid("render pass %d with incompatible framebuffer %d", info.RenderPass, info.Framebuffer)
		return
	}
	begin := *info
	begin.Clears = append([]vkapi.ClearValue(nil), info.Clears...)
	cb.pass = &begin
	views := d.attachmentViews(fb)
	cb.record("CmdBeginRenderPass", func() { d.beginPass(rp, views, &begin) })
}

// compatiblePasses reports whether the attachments of two render passes
// agree in format and sample count.
func compatiblePasses(a, b *vkapi.RenderPassCreateInfo) bool {
	if a == nil || b == nil || len(a.Attachments) != len(b.Attachments) {
		return false
	}
	for i := range a.Attachments {
		if a.Attachments[i].Format != b.Attachments[i].Format ||
			max(a.Attachments[i].Samples, 1) != max(b.Attachments[i].Samples, 1) {
			return false
		}
	}
	return true
}

type attachment struct {
	img   *image
	level uint32
}

func (d *Device) attachmentViews(fb *vkapi.FramebufferCreateInfo) []attachment {
	out := make([]attachment, len(fb.Attachments))
	for i, vh := range fb.Attachments {
		if v := d.views[vh]; v != nil {
			out[i] = attachment{img: d.images[v.image], level: v.info.Range.BaseLevel}
		}
	}
	return out
}

// subpassLayouts returns the layout each attachment takes inside the
// subpass.
func subpassLayouts(rp *vkapi.RenderPassCreateInfo) []vkapi.ImageLayout {
	out := make([]vkapi.ImageLayout, len(rp.Attachments))
	for i := range out {
		out[i] = vkapi.ImageLayoutGeneral
	}
	for _, r := range rp.Colors {
		out[r.Attachment] = r.Layout
	}
	for _, r := range rp.Resolves {
		out[r.Attachment] = r.Layout
	}
	if rp.Depth != nil {
		out[rp.Depth.Attachment] = rp.Depth.Layout
	}
	return out
}

func (d *Device) beginPass(rp *vkapi.RenderPassCreateInfo, views []attachment, info *vkapi.RenderPassBeginInfo) {
	inner := subpassLayouts(rp)
	area := rectOf(info.Area)
	for i, a := range rp.Attachments {
		at := views[i]
		if at.img == nil {
			d.invalid("render pass attachment %d destroyed", i)
			continue
		}
		if a.InitialLayout != vkapi.ImageLayoutUndefined {
			d.expect(at.img, at.level, a.InitialLayout, "begin render pass")
		}
		load := a.Load
		if at.img.layout.IsDepth() && a.StencilLoad == vkapi.LoadOpClear {
			load = vkapi.LoadOpClear
		}
		if load == vkapi.LoadOpClear {
			if i >= len(info.Clears) {
				d.invalid("render pass clears attachment %d without a clear value", i)
			} else {
				d.fill(at, area, info.Clears[i])
			}
		}
		at.img.layouts[at.level] = inner[i]
	}
}

func (d *Device) endPass(rp *vkapi.RenderPassCreateInfo, views []attachment) {
	for i, r := range rp.Resolves {
		src, dst := views[rp.Colors[i].Attachment], views[r.Attachment]
		if src.img != nil && dst.img != nil {
			copy(dst.img.levels[dst.level], src.img.levels[src.level])
		}
	}
	for i, a := range rp.Attachments {
		if at := views[i]; at.img != nil {
			at.img.layouts[at.level] = a.FinalLayout
		}
	}
}

func rectOf(r vkapi.Rect2D) goimage.Rectangle {
	return goimage.Rect(int(r.Offset.X), int(r.Offset.Y),
		int(r.Offset.X)+int(r.Extent.Width), int(r.Offset.Y)+int(r.Extent.Height))
}

func (d *Device) fill(at attachment, r goimage.Rectangle, v vkapi.ClearValue) {
	var px []byte
	if at.img.layout.IsDepth() {
		px = at.img.layout.DepthStencil(v.Depth, v.Stencil)
	} else {
		px = at.img.layout.Color(v.Color)
	}
	w, _ := at.img.extent(at.level)
	texel.FillRect(at.img.levels[at.level], w, r, px)
}

// expect records a validation error unless the level is in layout want.
func (d *Device) expect(img *image, level uint32, want vkapi.ImageLayout, op string) {
	if got := img.layouts[level]; got != want {
		d.invalid("%s expects level %d in layout %v, image is in %v", op, level, want, got)
	}
}

// CmdEndRenderPass implements vkapi.Recorder.
func (d *Device) CmdEndRenderPass(h vkapi.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdEndRenderPass")
	if cb == nil {
		return
	}
	if cb.pass == nil {
		d.invalid("render pass ended outside a render pass")
		return
	}
	rp, fb := d.passes[cb.pass.RenderPass], d.framebuffers[cb.pass.Framebuffer]
	cb.pass = nil
	if rp == nil || fb == nil {
		return
	}
	views := d.attachmentViews(fb)
	cb.record("CmdEndRenderPass", func() { d.endPass(rp, views) })
}

// CmdBindPipeline implements vkapi.Recorder. Binding a graphics pipeline
// invalidates dynamic state it does not declare dynamic.
func (d *Device) CmdBindPipeline(h vkapi.CommandBuffer, point vkapi.PipelineBindPoint, ph vkapi.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdBindPipeline")
	if cb == nil {
		return
	}
	p := d.pipelines[ph]
	if p == nil || p.compute != (point == vkapi.BindPointCompute) {
		d.invalid("bind of pipeline %d at bind point %d", ph, point)
		return
	}
	if p.compute {
		cb.compute = p
		return
	}
	cb.graphics = p
	for s := range cb.dynamic {
		if !p.dynamic[s] {
			delete(cb.dynamic, s)
		}
	}
}

// CmdBindVertexBuffers implements vkapi.Recorder.
func (d *Device) CmdBindVertexBuffers(h vkapi.CommandBuffer, first uint32, buffers []vkapi.Buffer, offsets []uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdBindVertexBuffers")
	if cb == nil {
		return
	}
	if len(offsets) != len(buffers) {
		d.invalid("%d vertex buffers with %d offsets", len(buffers), len(offsets))
	}
	for i, b := range buffers {
		buf := d.buffers[b]
		if buf == nil || buf.info.Usage&vkapi.BufferUsageVertex == 0 {
			d.invalid("vertex binding %d: buffer %d lacks vertex usage", first+uint32(i), b)
		}
	}
}

// CmdBindIndexBuffer implements vkapi.Recorder.
func (d *Device) CmdBindIndexBuffer(h vkapi.CommandBuffer, b vkapi.Buffer, offset uint64, t vkapi.IndexType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdBindIndexBuffer")
	if cb == nil {
		return
	}
	buf := d.buffers[b]
	if buf == nil || buf.info.Usage&vkapi.BufferUsageIndex == 0 {
		d.invalid("buffer %d lacks index usage", b)
		return
	}
	size := uint64(2)
	if t == vkapi.IndexTypeUint32 {
		size = 4
	}
	if offset%size != 0 || offset >= buf.info.Size {
		d.invalid("index buffer offset %d", offset)
	}
}

// CmdBindDescriptorSets implements vkapi.Recorder.
func (d *Device) CmdBindDescriptorSets(h vkapi.CommandBuffer, point vkapi.PipelineBindPoint, layout vkapi.PipelineLayout,
	first uint32, sets []vkapi.DescriptorSet, dynamicOffsets []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdBindDescriptorSets")
	if cb == nil {
		return
	}
	layouts, ok := d.pipeLayouts[layout]
	if !ok || int(first)+len(sets) > len(layouts) {
		d.invalid("bind of %d sets at %d to pipeline layout %d", len(sets), first, layout)
		return
	}
	if len(dynamicOffsets) != 0 {
		d.invalid("dynamic offsets without dynamic descriptors")
	}
	slots := cb.bound[point]
	if slots == nil {
		slots = make(map[uint32]vkapi.DescriptorSet)
		cb.bound[point] = slots
	}
	for i, s := range sets {
		if d.sets[s] == nil {
			d.invalid("bind of unknown descriptor set %d", s)
			continue
		}
		slots[first+uint32(i)] = s
		cb.sets[s] = true
	}
}

// drawable runs the record-time checks of a draw.
func (d *Device) drawable(cb *commandBuffer, name string) bool {
	if cb.pass == nil {
		d.invalid("%s outside a render pass", name)
		return false
	}
	p := cb.graphics
	if p == nil {
		d.invalid("%s without a graphics pipeline", name)
		return false
	}
	for s := range p.dynamic {
		if !cb.dynamic[s] {
			d.invalid("%s with dynamic state %d unset", name, s)
		}
	}
	if rp := d.passes[cb.pass.RenderPass]; rp != nil {
		for _, r := range rp.Colors {
			if n := max(rp.Attachments[r.Attachment].Samples, 1); n != p.samples {
				d.invalid("%s with a %d sample pipeline in a %d sample pass", name, p.samples, n)
				break
			}
		}
	}
	return true
}

// boundImages snapshots the image descriptors of the sets bound at point.
func (d *Device) boundImages(cb *commandBuffer, point vkapi.PipelineBindPoint) []vkapi.DescriptorImageInfo {
	var out []vkapi.DescriptorImageInfo
	for _, sh := range cb.bound[point] {
		s := d.sets[sh]
		if s == nil {
			continue
		}
		for _, infos := range s.images {
			out = append(out, infos...)
		}
	}
	return out
}

// checkImages verifies at execution that every bound image is in the
// layout its descriptor names.
func (d *Device) checkImages(infos []vkapi.DescriptorImageInfo, op string) {
	for _, info := range infos {
		v := d.views[info.View]
		if v == nil {
			continue
		}
		img := d.images[v.image]
		if img == nil {
			d.invalid("%s reads destroyed image through view %d", op, info.View)
			continue
		}
		for l := v.info.Range.BaseLevel; l < v.info.Range.BaseLevel+v.info.Range.LevelCount; l++ {
			d.expect(img, l, info.Layout, op)
		}
	}
}

func (d *Device) recordDraw(cb *commandBuffer, name string) {
	images := d.boundImages(cb, vkapi.BindPointGraphics)
	cb.record(name, func() {
		d.checkImages(images, name)
		d.draws++
	})
}

// CmdDraw implements vkapi.Recorder.
func (d *Device) CmdDraw(h vkapi.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb := d.recording(h, "CmdDraw"); cb != nil && d.drawable(cb, "CmdDraw") {
		d.recordDraw(cb, "CmdDraw")
	}
}

// CmdDrawIndexed implements vkapi.Recorder.
func (d *Device) CmdDrawIndexed(h vkapi.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb := d.recording(h, "CmdDrawIndexed"); cb != nil && d.drawable(cb, "CmdDrawIndexed") {
		d.recordDraw(cb, "CmdDrawIndexed")
	}
}

func (d *Device) indirect(b vkapi.Buffer, offset uint64, n uint64, name string) bool {
	buf := d.buffers[b]
	if buf == nil || buf.info.Usage&vkapi.BufferUsageIndirect == 0 {
		d.invalid("%s with buffer %d lacking indirect usage", name, b)
		return false
	}
	if offset%4 != 0 || offset+n > buf.info.Size {
		d.invalid("%s reads %d bytes at %d of %d", name, n, offset, buf.info.Size)
		return false
	}
	return true
}

func indirectSize(drawCount, stride, record uint32) uint64 {
	if drawCount == 0 {
		return 0
	}
	return uint64(drawCount-1)*uint64(stride) + uint64(record)
}

// CmdDrawIndirect implements vkapi.Recorder.
func (d *Device) CmdDrawIndirect(h vkapi.CommandBuffer, b vkapi.Buffer, offset uint64, drawCount, stride uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdDrawIndirect")
	if cb != nil && d.drawable(cb, "CmdDrawIndirect") && d.indirect(b, offset, indirectSize(drawCount, stride, 16), "CmdDrawIndirect") {
		d.recordDraw(cb, "CmdDrawIndirect")
	}
}

// CmdDrawIndexedIndirect implements vkapi.Recorder.
func (d *Device) CmdDrawIndexedIndirect(h vkapi.CommandBuffer, b vkapi.Buffer, offset uint64, drawCount, stride uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdDrawIndexedIndirect")
	if cb != nil && d.drawable(cb, "CmdDrawIndexedIndirect") && d.indirect(b, offset, indirectSize(drawCount, stride, 20), "CmdDrawIndexedIndirect") {
		d.recordDraw(cb, "CmdDrawIndexedIndirect")
	}
}

func (d *Device) dispatchable(cb *commandBuffer, name string) bool {
	if !d.outside(cb, name) {
		return false
	}
	if cb.compute == nil {
		d.invalid("%s without a compute pipeline", name)
		return false
	}
	return true
}

func (d *Device) recordDispatch(cb *commandBuffer, name string) {
	images := d.boundImages(cb, vkapi.BindPointCompute)
	cb.record(name, func() {
		d.checkImages(images, name)
		d.dispatch++
	})
}

// CmdDispatch implements vkapi.Recorder.
func (d *Device) CmdDispatch(h vkapi.CommandBuffer, x, y, z uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb := d.recording(h, "CmdDispatch"); cb != nil && d.dispatchable(cb, "CmdDispatch") {
		d.recordDispatch(cb, "CmdDispatch")
	}
}

// CmdDispatchIndirect implements vkapi.Recorder.
func (d *Device) CmdDispatchIndirect(h vkapi.CommandBuffer, b vkapi.Buffer, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdDispatchIndirect")
	if cb != nil && d.dispatchable(cb, "CmdDispatchIndirect") && d.indirect(b, offset, 12, "CmdDispatchIndirect") {
		d.recordDispatch(cb, "CmdDispatchIndirect")
	}
}

// CmdPipelineBarrier implements vkapi.Recorder. Image barriers transition
// layouts at execution; an old layout other than Undefined must match.
func (d *Device) CmdPipelineBarrier(h vkapi.CommandBuffer, src, dst vkapi.PipelineStage,
	memory []vkapi.MemoryBarrier, buffers []vkapi.BufferMemoryBarrier, images []vkapi.ImageMemoryBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdPipelineBarrier")
	if cb == nil {
		return
	}
	if src == 0 || dst == 0 {
		d.invalid("barrier with empty stage mask")
	}
	if len(images) != 0 && cb.pass != nil {
		d.invalid("image layout transition inside a render pass")
		return
	}
	barriers := append([]vkapi.ImageMemoryBarrier(nil), images...)
	cb.record("CmdPipelineBarrier", func() {
		for _, b := range barriers {
			img := d.images[b.Image]
			if img == nil {
				d.invalid("barrier on destroyed image %d", b.Image)
				continue
			}
			r := b.Range
			if r.BaseLevel+r.LevelCount > uint32(len(img.layouts)) {
				d.invalid("barrier on levels %d+%d of %d", r.BaseLevel, r.LevelCount, len(img.layouts))
				continue
			}
			for l := r.BaseLevel; l < r.BaseLevel+r.LevelCount; l++ {
				if b.OldLayout != vkapi.ImageLayoutUndefined {
					d.expect(img, l, b.OldLayout, "barrier")
				}
				img.layouts[l] = b.NewLayout
			}
		}
	})
}

// CmdCopyBuffer implements vkapi.Recorder.
func (d *Device) CmdCopyBuffer(h vkapi.CommandBuffer, src, dst vkapi.Buffer, regions []vkapi.BufferCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, "CmdCopyBuffer")
	if cb == nil || !d.outside(cb, "CmdCopyBuffer") {
		return
	}
	s, t := d.buffers[src], d.buffers[dst]
	if s == nil || t == nil || s.info.Usage&vkapi.BufferUsageTransferSrc == 0 || t.info.Usage&vkapi.BufferUsageTransferDst == 0 {
		d.invalid("copy from buffer %d to %d without transfer usage", src, dst)
		return
	}
	for _, r := range regions {
		if r.SrcOffset+r.Size > s.info.Size || r.DstOffset+r.Size > t.info.Size {
			d.invalid("buffer copy of %d bytes out of range", r.Size)
			return
		}
	}
	regions = append([]vkapi.BufferCopy(nil), regions...)
	cb.record("CmdCopyBuffer", func() {
		sb, tb := s.bytes(), t.bytes()
		if sb == nil || tb == nil {
			d.invalid("copy with a buffer not bound to memory")
			return
		}
		for _, r := range regions {
			copy(tb[r.DstOffset:r.DstOffset+r.Size], sb[r.SrcOffset:r.SrcOffset+r.Size])
		}
	})
}

func transferLayout(l, want vkapi.ImageLayout) bool {
	return l == want || l == vkapi.ImageLayoutGeneral
}

// bufferImage checks a buffer image copy region. The caller holds d.mu.
func (d *Device) bufferImage(buf *buffer, img *image, r vkapi.BufferImageCopy, name string) bool {
	if r.MipLevel >= img.info.MipLevels || img.info.Samples > 1 {
		d.invalid("%s of level %d of a %d level x%d image", name, r.MipLevel, img.info.MipLevels, img.info.Samples)
		return false
	}
	w, h := img.extent(r.MipLevel)
	if r.Extent.Width != uint32(w) || r.Extent.Height != uint32(h) {
		d.invalid("%s of %dx%d into a %dx%d level", name, r.Extent.Width, r.Extent.Height, w, h)
		return false
	}
	if r.BufferOffset+uint64(len(img.levels[r.MipLevel])) > buf.info.Size {
		d.invalid("%s past the end of the buffer", name)
		return false
	}
	return true
}

// CmdCopyBufferToImage implements vkapi.Recorder.
func (d *Device) CmdCopyBufferToImage(h vkapi.CommandBuffer, src vkapi.Buffer, dst vkapi.Image, layout vkapi.ImageLayout, regions []vkapi.BufferImageCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const name = "CmdCopyBufferToImage"
	cb := d.recording(h, name)
	if cb == nil || !d.outside(cb, name) {
		return
	}
	buf, img := d.buffers[src], d.images[dst]
	if buf == nil || img == nil || img.info.Usage&vkapi.ImageUsageTransferDst == 0 {
		d.invalid("%s into image %d without transfer destination usage", name, dst)
		return
	}
	if !transferLayout(layout, vkapi.ImageLayoutTransferDstOptimal) {
		d.invalid("%s with destination layout %v", name, layout)
	}
	for _, r := range regions {
		if !d.bufferImage(buf, img, r, name) {
			return
		}
	}
	regions = append([]vkapi.BufferImageCopy(nil), regions...)
	cb.record(name, func() {
		data := buf.bytes()
		for _, r := range regions {
			d.expect(img, r.MipLevel, layout, name)
			lvl := img.levels[r.MipLevel]
			copy(lvl, data[r.BufferOffset:r.BufferOffset+uint64(len(lvl))])
		}
	})
}

// CmdCopyImageToBuffer implements vkapi.Recorder.
func (d *Device) CmdCopyImageToBuffer(h vkapi.CommandBuffer, src vkapi.Image, layout vkapi.ImageLayout, dst vkapi.Buffer, regions []vkapi.BufferImageCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const name = "CmdCopyImageToBuffer"
	cb := d.recording(h, name)
	if cb == nil || !d.outside(cb, name) {
		return
	}
	img, buf := d.images[src], d.buffers[dst]
	if buf == nil || img == nil || img.info.Usage&vkapi.ImageUsageTransferSrc == 0 {
		d.invalid("%s from image %d without transfer source usage", name, src)
		return
	}
	if !transferLayout(layout, vkapi.ImageLayoutTransferSrcOptimal) {
		d.invalid("%s with source layout %v", name, layout)
	}
	for _, r := range regions {
		if !d.bufferImage(buf, img, r, name) {
			return
		}
	}
	regions = append([]vkapi.BufferImageCopy(nil), regions...)
	cb.record(name, func() {
		data := buf.bytes()
		for _, r := range regions {
			d.expect(img, r.MipLevel, layout, name)
			lvl := img.levels[r.MipLevel]
			copy(data[r.BufferOffset:], lvl)
		}
	})
}

// imagePair checks the images and layouts of an image to image command.
func (d *Device) imagePair(src *image, srcLayout vkapi.ImageLayout, dst *image, dstLayout vkapi.ImageLayout, name string) bool {
	if src == nil || dst == nil {
		d.invalid("%s with a destroyed image", name)
		return false
	}
	if src.info.Usage&vkapi.ImageUsageTransferSrc == 0 || dst.info.Usage&vkapi.ImageUsageTransferDst == 0 {
		d.invalid("%s without transfer usage", name)
		return false
	}
	if !transferLayout(srcLayout, vkapi.ImageLayoutTransferSrcOptimal) || !transferLayout(dstLayout, vkapi.ImageLayoutTransferDstOptimal) {
		d.invalid("%s from layout %v to %v", name, srcLayout, dstLayout)
	}
	return true
}

// CmdCopyImage implements vkapi.Recorder.
func (d *Device) CmdCopyImage(h vkapi.CommandBuffer, src vkapi.Image, srcLayout vkapi.ImageLayout, dst vkapi.Image, dstLayout vkapi.ImageLayout, regions []vkapi.ImageCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const name = "CmdCopyImage"
	cb := d.recording(h, name)
	if cb == nil || !d.outside(cb, name) {
		return
	}
	s, t := d.images[src], d.images[dst]
	if !d.imagePair(s, srcLayout, t, dstLayout, name) {
		return
	}
	// Copies move raw texels, so formats of the same class are compatible.
	if s.layout.Kind != t.layout.Kind || s.layout.Size() != t.layout.Size() || s.info.Samples != t.info.Samples {
		d.invalid("%s between %v and %v", name, s.info.Format, t.info.Format)
		return
	}
	for _, r := range regions {
		sw, sh := s.extent(r.SrcLevel)
		tw, th := t.extent(r.DstLevel)
		if r.SrcLevel >= s.info.MipLevels || r.DstLevel >= t.info.MipLevels ||
			int(r.Extent.Width) > min(sw, tw) || int(r.Extent.Height) > min(sh, th) {
			d.invalid("%s region %dx%d out of range", name, r.Extent.Width, r.Extent.Height)
			return
		}
	}
	regions = append([]vkapi.ImageCopy(nil), regions...)
	cb.record(name, func() {
		for _, r := range regions {
			d.expect(s, r.SrcLevel, srcLayout, name)
			d.expect(t, r.DstLevel, dstLayout, name)
			sw, _ := s.extent(r.SrcLevel)
			tw, _ := t.extent(r.DstLevel)
			texel.CopyRect(s.layout.Size(), t.levels[r.DstLevel], tw, 0, 0, s.levels[r.SrcLevel], sw, 0, 0,
				int(r.Extent.Width), int(r.Extent.Height))
		}
	})
}

// CmdBlitImage implements vkapi.Recorder.
func (d *Device) CmdBlitImage(h vkapi.CommandBuffer, src vkapi.Image, srcLayout vkapi.ImageLayout, dst vkapi.Image, dstLayout vkapi.ImageLayout, regions []vkapi.ImageBlit, filter vkapi.Filter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const name = "CmdBlitImage"
	cb := d.recording(h, name)
	if cb == nil || !d.outside(cb, name) {
		return
	}
	s, t := d.images[src], d.images[dst]
	if !d.imagePair(s, srcLayout, t, dstLayout, name) {
		return
	}
	if s.info.Samples > 1 || t.info.Samples > 1 || s.layout != t.layout {
		d.invalid("%s between %v x%d and %v x%d", name, s.info.Format, s.info.Samples, t.info.Format, t.info.Samples)
		return
	}
	if filter == vkapi.FilterLinear && s.layout.IsDepth() {
		d.invalid("%s of a depth image with a linear filter", name)
		return
	}
	regions = append([]vkapi.ImageBlit(nil), regions...)
	cb.record(name, func() {
		for _, r := range regions {
			d.expect(s, r.SrcLevel, srcLayout, name)
			d.expect(t, r.DstLevel, dstLayout, name)
			texel.Scale(s.layout, t.levels[r.DstLevel], int(r.DstExtent.Width), int(r.DstExtent.Height),
				s.levels[r.SrcLevel], int(r.SrcExtent.Width), int(r.SrcExtent.Height), filter == vkapi.FilterLinear)
		}
	})
}

// CmdResolveImage implements vkapi.Recorder.
func (d *Device) CmdResolveImage(h vkapi.CommandBuffer, src vkapi.Image, srcLayout vkapi.ImageLayout, dst vkapi.Image, dstLayout vkapi.ImageLayout, regions []vkapi.ImageResolve) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const name = "CmdResolveImage"
	cb := d.recording(h, name)
	if cb == nil || !d.outside(cb, name) {
		return
	}
	s, t := d.images[src], d.images[dst]
	if s == nil || t == nil || s.info.Samples < 2 || t.info.Samples != 1 || s.layout != t.layout {
		d.invalid("%s needs a multisampled source and single sampled destination", name)
		return
	}
	regions = append([]vkapi.ImageResolve(nil), regions...)
	cb.record(name, func() {
		for _, r := range regions {
			d.expect(s, r.SrcLevel, srcLayout, name)
			d.expect(t, r.DstLevel, dstLayout, name)
			sw, _ := s.extent(r.SrcLevel)
			tw, _ := t.extent(r.DstLevel)
			texel.CopyRect(s.layout.Size(), t.levels[r.DstLevel], tw, 0, 0, s.levels[r.SrcLevel], sw, 0, 0,
				int(r.Extent.Width), int(r.Extent.Height))
		}
	})
}

// CmdClearAttachments implements vkapi.Recorder. Clears ignore write
// masks, as in the native API.
func (d *Device) CmdClearAttachments(h vkapi.CommandBuffer, attachments []vkapi.ClearAttachment, rects []vkapi.Rect2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	const name = "CmdClearAttachments"
	cb := d.recording(h, name)
	if cb == nil {
		return
	}
	if cb.pass == nil {
		d.invalid("%s outside a render pass", name)
		return
	}
	rp, fb := d.passes[cb.pass.RenderPass], d.framebuffers[cb.pass.Framebuffer]
	if rp == nil || fb == nil {
		return
	}
	views := d.attachmentViews(fb)
	var targets []attachment
	var values []vkapi.ClearValue
	for _, a := range attachments {
		switch {
		case a.Aspect&vkapi.AspectColor != 0:
			if int(a.ColorAttachment) >= len(rp.Colors) {
				d.invalid("%s of color attachment %d of %d", name, a.ColorAttachment, len(rp.Colors))
				return
			}
			targets = append(targets, views[rp.Colors[a.ColorAttachment].Attachment])
		case rp.Depth != nil:
			targets = append(targets, views[rp.Depth.Attachment])
		default:
			d.invalid("%s of depth without a depth attachment", name)
			return
		}
		values = append(values, a.Value)
	}
	rs := make([]goimage.Rectangle, len(rects))
	for i, r := range rects {
		rs[i] = rectOf(r)
	}
	cb.record(name, func() {
		for i, at := range targets {
			if at.img == nil {
				continue
			}
			for _, r := range rs {
				d.fill(at, r, values[i])
			}
		}
	})
}

// setDynamic records a dynamic state command.
func (d *Device) setDynamic(h vkapi.CommandBuffer, name string, s vkapi.DynamicState, extension bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := d.recording(h, name)
	if cb == nil {
		return
	}
	if !extension {
		d.invalid("%s without its extension", name)
		return
	}
	cb.dynamic[s] = true
}

// CmdSetViewport implements vkapi.Recorder.
func (d *Device) CmdSetViewport(cb vkapi.CommandBuffer, v vkapi.Viewport) {
	d.setDynamic(cb, "CmdSetViewport", vkapi.DynamicViewport, true)
}

// CmdSetScissor implements vkapi.Recorder.
func (d *Device) CmdSetScissor(cb vkapi.CommandBuffer, r vkapi.Rect2D) {
	d.setDynamic(cb, "CmdSetScissor", vkapi.DynamicScissor, true)
}

// CmdSetLineWidth implements vkapi.Recorder.
func (d *Device) CmdSetLineWidth(cb vkapi.CommandBuffer, w float32) {
	d.setDynamic(cb, "CmdSetLineWidth", vkapi.DynamicLineWidth, w == 1 || d.props.WideLines)
}

// CmdSetDepthBias implements vkapi.Recorder.
func (d *Device) CmdSetDepthBias(cb vkapi.CommandBuffer, constant, clamp, slope float32) {
	d.setDynamic(cb, "CmdSetDepthBias", vkapi.DynamicDepthBias, true)
}

// CmdSetBlendConstants implements vkapi.Recorder.
func (d *Device) CmdSetBlendConstants(cb vkapi.CommandBuffer, c [4]float32) {
	d.setDynamic(cb, "CmdSetBlendConstants", vkapi.DynamicBlendConstants, true)
}

// CmdSetStencilCompareMask implements vkapi.Recorder.
func (d *Device) CmdSetStencilCompareMask(cb vkapi.CommandBuffer, face vkapi.StencilFace, mask uint32) {
	d.setDynamic(cb, "CmdSetStencilCompareMask", vkapi.DynamicStencilCompareMask, true)
}

// CmdSetStencilWriteMask implements vkapi.Recorder.
func (d *Device) CmdSetStencilWriteMask(cb vkapi.CommandBuffer, face vkapi.StencilFace, mask uint32) {
	d.setDynamic(cb, "CmdSetStencilWriteMask", vkapi.DynamicStencilWriteMask, true)
}

// CmdSetStencilReference implements vkapi.Recorder.
func (d *Device) CmdSetStencilReference(cb vkapi.CommandBuffer, face vkapi.StencilFace, ref uint32) {
	d.setDynamic(cb, "CmdSetStencilReference", vkapi.DynamicStencilReference, true)
}

// CmdSetCullMode implements vkapi.Recorder.
func (d *Device) CmdSetCullMode(cb vkapi.CommandBuffer, m vkapi.CullMode) {
	d.setDynamic(cb, "CmdSetCullMode", vkapi.DynamicCullMode, d.props.ExtendedDynamicState)
}

// CmdSetFrontFace implements vkapi.Recorder.
func (d *Device) CmdSetFrontFace(cb vkapi.CommandBuffer, f vkapi.FrontFace) {
	d.setDynamic(cb, "CmdSetFrontFace", vkapi.DynamicFrontFace, d.props.ExtendedDynamicState)
}

// CmdSetPrimitiveTopology implements vkapi.Recorder.
func (d *Device) CmdSetPrimitiveTopology(cb vkapi.CommandBuffer, t vkapi.PrimitiveTopology) {
	d.setDynamic(cb, "CmdSetPrimitiveTopology", vkapi.DynamicPrimitiveTopology, d.props.ExtendedDynamicState)
}

// CmdSetDepthTestEnable implements vkapi.Recorder.
func (d *Device) CmdSetDepthTestEnable(cb vkapi.CommandBuffer, enable bool) {
	d.setDynamic(cb, "CmdSetDepthTestEnable", vkapi.DynamicDepthTestEnable, d.props.ExtendedDynamicState)
}

// CmdSetDepthWriteEnable implements vkapi.Recorder.
func (d *Device) CmdSetDepthWriteEnable(cb vkapi.CommandBuffer, enable bool) {
	d.setDynamic(cb, "CmdSetDepthWriteEnable", vkapi.DynamicDepthWriteEnable, d.props.ExtendedDynamicState)
}

// CmdSetDepthCompareOp implements vkapi.Recorder.
func (d *Device) CmdSetDepthCompareOp(cb vkapi.CommandBuffer, op vkapi.CompareOp) {
	d.setDynamic(cb, "CmdSetDepthCompareOp", vkapi.DynamicDepthCompareOp, d.props.ExtendedDynamicState)
}

// CmdSetStencilTestEnable implements vkapi.Recorder.
func (d *Device) CmdSetStencilTestEnable(cb vkapi.CommandBuffer, enable bool) {
	d.setDynamic(cb, "CmdSetStencilTestEnable", vkapi.DynamicStencilTestEnable, d.props.ExtendedDynamicState)
}

// CmdSetStencilOp implements vkapi.Recorder.
func (d *Device) CmdSetStencilOp(cb vkapi.CommandBuffer, face vkapi.StencilFace, fail, pass, depthFail vkapi.StencilOp, compare vkapi.CompareOp) {
	d.setDynamic(cb, "CmdSetStencilOp", vkapi.DynamicStencilOp, d.props.ExtendedDynamicState)
}

// CmdSetDepthBiasEnable implements vkapi.Recorder.
func (d *Device) CmdSetDepthBiasEnable(cb vkapi.CommandBuffer, enable bool) {
	d.setDynamic(cb, "CmdSetDepthBiasEnable", vkapi.DynamicDepthBiasEnable, d.props.ExtendedDynamicState2)
}

// CmdSetPrimitiveRestartEnable implements vkapi.Recorder.
func (d *Device) CmdSetPrimitiveRestartEnable(cb vkapi.CommandBuffer, enable bool) {
	d.setDynamic(cb, "CmdSetPrimitiveRestartEnable", vkapi.DynamicPrimitiveRestartEnable, d.props.ExtendedDynamicState2)
}
