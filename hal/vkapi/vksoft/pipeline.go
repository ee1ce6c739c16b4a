package vksoft

import (
	"github.com/gogpu/rhi/hal/vkapi"
)

const spirvMagic = 0x07230203

type pipeline struct {
	compute bool
	layout  vkapi.PipelineLayout
	pass    vkapi.RenderPass
	samples uint32
	dynamic map[vkapi.DynamicState]bool
}

type descriptorPool struct {
	info    vkapi.DescriptorPoolCreateInfo
	sets    uint32
	counts  map[vkapi.DescriptorType]uint32
	members map[vkapi.DescriptorSet]bool
}

type descriptorSet struct {
	pool     vkapi.DescriptorPool
	bindings map[uint32]vkapi.DescriptorSetLayoutBinding
	images   map[uint32][]vkapi.DescriptorImageInfo
	buffers  map[uint32][]vkapi.DescriptorBufferInfo
	// pending counts submissions not yet executed that bind the set.
	pending int
}

var extendedDynamic = map[vkapi.DynamicState]bool{
	vkapi.DynamicCullMode:          true,
	vkapi.DynamicFrontFace:         true,
	vkapi.DynamicPrimitiveTopology: true,
	vkapi.DynamicDepthTestEnable:   true,
	vkapi.DynamicDepthWriteEnable:  true,
	vkapi.DynamicDepthCompareOp:    true,
	vkapi.DynamicStencilTestEnable: true,
	vkapi.DynamicStencilOp:         true,
}

var extendedDynamic2 = map[vkapi.DynamicState]bool{
	vkapi.DynamicDepthBiasEnable:        true,
	vkapi.DynamicPrimitiveRestartEnable: true,
}

// CreateRenderPass implements vkapi.Device.
func (d *Device) CreateRenderPass(info *vkapi.RenderPassCreateInfo) (vkapi.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := uint32(len(info.Attachments))
	if len(info.Resolves) != 0 && len(info.Resolves) != len(info.Colors) {
		d.invalid("render pass with %d resolves for %d colors", len(info.Resolves), len(info.Colors))
		return 0, vkapi.ErrorInitializationFail
	}
	refs := append(append([]vkapi.AttachmentReference(nil), info.Colors...), info.Resolves...)
	if info.Depth != nil {
		refs = append(refs, *info.Depth)
	}
	for _, r := range refs {
		if r.Attachment >= n {
			d.invalid("render pass references attachment %d of %d", r.Attachment, n)
			return 0, vkapi.ErrorInitializationFail
		}
	}
	for _, a := range info.Attachments {
		if _, ok := layoutOf(a.Format); !ok {
			return 0, vkapi.ErrorFormatNotSupported
		}
		if a.FinalLayout == vkapi.ImageLayoutUndefined {
			d.invalid("render pass attachment with undefined final layout")
			return 0, vkapi.ErrorInitializationFail
		}
	}
	cp := *info
	cp.Attachments = append([]vkapi.AttachmentDescription(nil), info.Attachments...)
	cp.Colors = append([]vkapi.AttachmentReference(nil), info.Colors...)
	cp.Resolves = append([]vkapi.AttachmentReference(nil), info.Resolves...)
	if info.Depth != nil {
		depth := *info.Depth
		cp.Depth = &depth
	}
	rp := vkapi.RenderPass(d.handle())
	d.passes[rp] = &cp
	return rp, nil
}

// DestroyRenderPass implements vkapi.Device.
func (d *Device) DestroyRenderPass(rp vkapi.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.passes, rp)
}

// CreateFramebuffer implements vkapi.Device.
func (d *Device) CreateFramebuffer(info *vkapi.FramebufferCreateInfo) (vkapi.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rp := d.passes[info.RenderPass]
	if rp == nil || len(info.Attachments) != len(rp.Attachments) {
		d.invalid("framebuffer with %d attachments for render pass %d", len(info.Attachments), info.RenderPass)
		return 0, vkapi.ErrorInitializationFail
	}
	for i, vh := range info.Attachments {
		v := d.views[vh]
		if v == nil {
			return 0, vkapi.ErrorInitializationFail
		}
		img := d.images[v.image]
		w, h := img.extent(v.info.Range.BaseLevel)
		if uint32(w) != info.Width || uint32(h) != info.Height {
			d.invalid("framebuffer %dx%d with attachment %d of %dx%d", info.Width, info.Height, i, w, h)
			return 0, vkapi.ErrorInitializationFail
		}
		a := rp.Attachments[i]
		if img.info.Format != a.Format || img.info.Samples != max(a.Samples, 1) {
			d.invalid("framebuffer attachment %d is %v x%d, render pass wants %v x%d",
				i, img.info.Format, img.info.Samples, a.Format, a.Samples)
			return 0, vkapi.ErrorInitializationFail
		}
	}
	cp := *info
	cp.Attachments = append([]vkapi.ImageView(nil), info.Attachments...)
	fb := vkapi.Framebuffer(d.handle())
	d.framebuffers[fb] = &cp
	return fb, nil
}

// DestroyFramebuffer implements vkapi.Device.
func (d *Device) DestroyFramebuffer(fb vkapi.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebuffers, fb)
}

// CreateShaderModule implements vkapi.Device. The code must start with the
// SPIR-V magic number.
func (d *Device) CreateShaderModule(code []uint32) (vkapi.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(code) < 5 || code[0] != spirvMagic {
		return 0, vkapi.ErrorInvalidShader
	}
	m := vkapi.ShaderModule(d.handle())
	d.modules[m] = append([]uint32(nil), code...)
	return m, nil
}

// DestroyShaderModule implements vkapi.Device.
func (d *Device) DestroyShaderModule(m vkapi.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.modules, m)
}

// CreateDescriptorSetLayout implements vkapi.Device.
func (d *Device) CreateDescriptorSetLayout(bindings []vkapi.DescriptorSetLayoutBinding) (vkapi.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[uint32]bool, len(bindings))
	for _, b := range bindings {
		if seen[b.Binding] || b.Count == 0 {
			d.invalid("set layout binding %d repeated or empty", b.Binding)
			return 0, vkapi.ErrorInitializationFail
		}
		seen[b.Binding] = true
	}
	l := vkapi.DescriptorSetLayout(d.handle())
	d.setLayouts[l] = append([]vkapi.DescriptorSetLayoutBinding(nil), bindings...)
	return l, nil
}

// DestroyDescriptorSetLayout implements vkapi.Device.
func (d *Device) DestroyDescriptorSetLayout(l vkapi.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.setLayouts, l)
}

// CreatePipelineLayout implements vkapi.Device.
func (d *Device) CreatePipelineLayout(sets []vkapi.DescriptorSetLayout) (vkapi.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range sets {
		if d.setLayouts[s] == nil && s != 0 {
			return 0, vkapi.ErrorInitializationFail
		}
	}
	l := vkapi.PipelineLayout(d.handle())
	d.pipeLayouts[l] = append([]vkapi.DescriptorSetLayout(nil), sets...)
	return l, nil
}

// DestroyPipelineLayout implements vkapi.Device.
func (d *Device) DestroyPipelineLayout(l vkapi.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipeLayouts, l)
}

// CreateGraphicsPipeline implements vkapi.Device.
func (d *Device) CreateGraphicsPipeline(info *vkapi.GraphicsPipelineCreateInfo) (vkapi.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.modules[info.Vertex] == nil || d.modules[info.Fragment] == nil {
		d.invalid("graphics pipeline with missing shader module")
		return 0, vkapi.ErrorInvalidShader
	}
	if _, ok := d.pipeLayouts[info.Layout]; !ok {
		return 0, vkapi.ErrorInitializationFail
	}
	rp := d.passes[info.RenderPass]
	if rp == nil {
		return 0, vkapi.ErrorInitializationFail
	}
	p := &pipeline{
		layout:  info.Layout,
		pass:    info.RenderPass,
		samples: max(info.Samples, 1),
		dynamic: make(map[vkapi.DynamicState]bool, len(info.DynamicStates)),
	}
	for _, s := range info.DynamicStates {
		if extendedDynamic[s] && !d.props.ExtendedDynamicState ||
			extendedDynamic2[s] && !d.props.ExtendedDynamicState2 {
			d.invalid("dynamic state %d without its extension", s)
			return 0, vkapi.ErrorFeatureNotPresent
		}
		p.dynamic[s] = true
	}
	if !p.dynamic[vkapi.DynamicLineWidth] && info.LineWidth != 1 && !d.props.WideLines {
		return 0, vkapi.ErrorFeatureNotPresent
	}
	if info.PolygonMode != vkapi.PolygonModeFill && !d.props.FillModeNonSolid {
		return 0, vkapi.ErrorFeatureNotPresent
	}
	if len(info.Blend) != len(rp.Colors) {
		d.invalid("pipeline with %d blend attachments for %d colors", len(info.Blend), len(rp.Colors))
	}
	h := vkapi.Pipeline(d.handle())
	d.pipelines[h] = p
	return h, nil
}

// CreateComputePipeline implements vkapi.Device.
func (d *Device) CreateComputePipeline(info *vkapi.ComputePipelineCreateInfo) (vkapi.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.modules[info.Module] == nil {
		return 0, vkapi.ErrorInvalidShader
	}
	if _, ok := d.pipeLayouts[info.Layout]; !ok {
		return 0, vkapi.ErrorInitializationFail
	}
	h := vkapi.Pipeline(d.handle())
	d.pipelines[h] = &pipeline{compute: true, layout: info.Layout}
	return h, nil
}

// DestroyPipeline implements vkapi.Device.
func (d *Device) DestroyPipeline(p vkapi.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, p)
}

// CreateDescriptorPool implements vkapi.Device.
func (d *Device) CreateDescriptorPool(info *vkapi.DescriptorPoolCreateInfo) (vkapi.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.MaxSets == 0 {
		d.invalid("descriptor pool with no sets")
		return 0, vkapi.ErrorInitializationFail
	}
	p := &descriptorPool{
		info:    *info,
		sets:    info.MaxSets,
		counts:  make(map[vkapi.DescriptorType]uint32),
		members: make(map[vkapi.DescriptorSet]bool),
	}
	p.info.Sizes = append([]vkapi.DescriptorPoolSize(nil), info.Sizes...)
	for _, s := range info.Sizes {
		p.counts[s.Type] += s.Count
	}
	h := vkapi.DescriptorPool(d.handle())
	d.pools[h] = p
	return h, nil
}

// DescriptorPoolInfo returns the creation parameters of a pool.
func (d *Device) DescriptorPoolInfo(pool vkapi.DescriptorPool) (vkapi.DescriptorPoolCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pools[pool]
	if p == nil {
		return vkapi.DescriptorPoolCreateInfo{}, false
	}
	return p.info, true
}

// DestroyDescriptorPool implements vkapi.Device. Its sets are freed.
func (d *Device) DestroyDescriptorPool(pool vkapi.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pools[pool]
	if p == nil {
		return
	}
	for s := range p.members {
		if d.sets[s].pending > 0 {
			d.invalid("descriptor pool %d destroyed while set %d is in use", pool, s)
		}
		delete(d.sets, s)
	}
	delete(d.pools, pool)
}

// AllocateDescriptorSets implements vkapi.Device. It fails with
// vkapi.ErrorOutOfPoolMemory when the pool lacks sets or descriptors.
func (d *Device) AllocateDescriptorSets(pool vkapi.DescriptorPool, layouts []vkapi.DescriptorSetLayout) ([]vkapi.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pools[pool]
	if p == nil {
		return nil, vkapi.ErrorInitializationFail
	}
	need := make(map[vkapi.DescriptorType]uint32)
	for _, l := range layouts {
		bindings, ok := d.setLayouts[l]
		if !ok {
			return nil, vkapi.ErrorInitializationFail
		}
		for _, b := range bindings {
			need[b.Type] += b.Count
		}
	}
	if uint32(len(layouts)) > p.sets {
		return nil, vkapi.ErrorOutOfPoolMemory
	}
	for t, n := range need {
		if n > p.counts[t] {
			return nil, vkapi.ErrorOutOfPoolMemory
		}
	}
	p.sets -= uint32(len(layouts))
	for t, n := range need {
		p.counts[t] -= n
	}
	out := make([]vkapi.DescriptorSet, len(layouts))
	for i, l := range layouts {
		s := &descriptorSet{
			pool:     pool,
			bindings: make(map[uint32]vkapi.DescriptorSetLayoutBinding),
			images:   make(map[uint32][]vkapi.DescriptorImageInfo),
			buffers:  make(map[uint32][]vkapi.DescriptorBufferInfo),
		}
		for _, b := range d.setLayouts[l] {
			s.bindings[b.Binding] = b
		}
		h := vkapi.DescriptorSet(d.handle())
		d.sets[h] = s
		p.members[h] = true
		out[i] = h
	}
	return out, nil
}

// UpdateDescriptorSets implements vkapi.Device.
func (d *Device) UpdateDescriptorSets(writes []vkapi.WriteDescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		s := d.sets[w.Set]
		if s == nil {
			d.invalid("update of unknown descriptor set %d", w.Set)
			continue
		}
		if s.pending > 0 {
			d.invalid("descriptor set %d updated while in use by a pending submission", w.Set)
		}
		b, ok := s.bindings[w.Binding]
		if !ok || b.Type != w.Type {
			d.invalid("write of type %d to binding %d of set %d", w.Type, w.Binding, w.Set)
			continue
		}
		switch w.Type {
		case vkapi.DescriptorTypeUniformBuffer, vkapi.DescriptorTypeStorageBuffer:
			d.writeBuffers(s, b, w)
		default:
			d.writeImages(s, b, w)
		}
	}
}

func (d *Device) writeBuffers(s *descriptorSet, b vkapi.DescriptorSetLayoutBinding, w vkapi.WriteDescriptorSet) {
	if w.ArrayElement+uint32(len(w.Buffers)) > b.Count {
		d.invalid("write past the %d elements of binding %d", b.Count, b.Binding)
		return
	}
	align := d.props.MinStorageBufferOffsetAlignment
	usage := vkapi.BufferUsageStorage
	if w.Type == vkapi.DescriptorTypeUniformBuffer {
		align, usage = d.props.MinUniformBufferOffsetAlignment, vkapi.BufferUsageUniform
	}
	for _, info := range w.Buffers {
		buf := d.buffers[info.Buffer]
		if buf == nil || buf.info.Usage&usage == 0 {
			d.invalid("descriptor buffer %d lacks usage %#x", info.Buffer, usage)
			return
		}
		if info.Offset%align != 0 {
			d.invalid("descriptor buffer offset %d not aligned to %d", info.Offset, align)
			return
		}
		if info.Range != vkapi.WholeSize && info.Offset+info.Range > buf.info.Size {
			d.invalid("descriptor buffer range %d+%d past %d bytes", info.Offset, info.Range, buf.info.Size)
			return
		}
	}
	arr := s.buffers[w.Binding]
	if len(arr) < int(b.Count) {
		arr = append(arr, make([]vkapi.DescriptorBufferInfo, int(b.Count)-len(arr))...)
	}
	copy(arr[w.ArrayElement:], w.Buffers)
	s.buffers[w.Binding] = arr
}

func (d *Device) writeImages(s *descriptorSet, b vkapi.DescriptorSetLayoutBinding, w vkapi.WriteDescriptorSet) {
	if w.ArrayElement+uint32(len(w.Images)) > b.Count {
		d.invalid("write past the %d elements of binding %d", b.Count, b.Binding)
		return
	}
	for _, info := range w.Images {
		if w.Type != vkapi.DescriptorTypeSampler && d.views[info.View] == nil {
			d.invalid("descriptor with unknown image view %d", info.View)
			return
		}
		if w.Type == vkapi.DescriptorTypeCombinedImageSampler || w.Type == vkapi.DescriptorTypeSampler {
			if _, ok := d.samplers[info.Sampler]; !ok {
				d.invalid("descriptor with unknown sampler %d", info.Sampler)
				return
			}
		}
	}
	arr := s.images[w.Binding]
	if len(arr) < int(b.Count) {
		arr = append(arr, make([]vkapi.DescriptorImageInfo, int(b.Count)-len(arr))...)
	}
	copy(arr[w.ArrayElement:], w.Images)
	s.images[w.Binding] = arr
}
