//go:build !nogpu

package vkgo

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/rhi/hal/vkapi"
)

func attachmentRefs(refs []vkapi.AttachmentReference) []vk.AttachmentReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{
			Attachment: r.Attachment,
			Layout:     vk.ImageLayout(r.Layout),
		}
	}
	return out
}

func (d *device) CreateRenderPass(info *vkapi.RenderPassCreateInfo) (vkapi.RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, len(info.Attachments))
	for i, a := range info.Attachments {
		attachments[i] = vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCountFlagBits(a.Samples),
			LoadOp:         vk.AttachmentLoadOp(a.Load),
			StoreOp:        vk.AttachmentStoreOp(a.Store),
			StencilLoadOp:  vk.AttachmentLoadOp(a.StencilLoad),
			StencilStoreOp: vk.AttachmentStoreOp(a.StencilStore),
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		}
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(info.Colors)),
		PColorAttachments:    attachmentRefs(info.Colors),
		PResolveAttachments:  attachmentRefs(info.Resolves),
	}
	if info.Depth != nil {
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: info.Depth.Attachment,
			Layout:     vk.ImageLayout(info.Depth.Layout),
		}
	}
	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit)
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}
	ci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var rp vk.RenderPass
	if err := check(vk.CreateRenderPass(d.dev, &ci, nil, &rp)); err != nil {
		return 0, err
	}
	depth := make([]bool, len(info.Attachments))
	for i, a := range info.Attachments {
		depth[i] = a.Format.IsDepth()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.renderPasses.put(rp)
	d.passDepth[h] = depth
	return vkapi.RenderPass(h), nil
}

func (d *device) DestroyRenderPass(h vkapi.RenderPass) {
	d.mu.Lock()
	rp, ok := d.renderPasses.take(uint64(h))
	delete(d.passDepth, uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyRenderPass(d.dev, rp, nil)
	}
}

func (d *device) CreateFramebuffer(info *vkapi.FramebufferCreateInfo) (vkapi.Framebuffer, error) {
	d.mu.Lock()
	views := make([]vk.ImageView, len(info.Attachments))
	for i, v := range info.Attachments {
		views[i] = d.views.get(uint64(v))
	}
	rp := d.renderPasses.get(uint64(info.RenderPass))
	d.mu.Unlock()
	ci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Width,
		Height:          info.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := check(vk.CreateFramebuffer(d.dev, &ci, nil, &fb)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Framebuffer(d.framebuffers.put(fb)), nil
}

func (d *device) DestroyFramebuffer(h vkapi.Framebuffer) {
	d.mu.Lock()
	fb, ok := d.framebuffers.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyFramebuffer(d.dev, fb, nil)
	}
}

func (d *device) CreateShaderModule(code []uint32) (vkapi.ShaderModule, error) {
	ci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var m vk.ShaderModule
	if err := check(vk.CreateShaderModule(d.dev, &ci, nil, &m)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.ShaderModule(d.modules.put(m)), nil
}

func (d *device) DestroyShaderModule(h vkapi.ShaderModule) {
	d.mu.Lock()
	m, ok := d.modules.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyShaderModule(d.dev, m, nil)
	}
}

func (d *device) CreateDescriptorSetLayout(bindings []vkapi.DescriptorSetLayoutBinding) (vkapi.DescriptorSetLayout, error) {
	bs := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		bs[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	ci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bs)),
		PBindings:    bs,
	}
	var l vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(d.dev, &ci, nil, &l)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.DescriptorSetLayout(d.setLayouts.put(l)), nil
}

func (d *device) DestroyDescriptorSetLayout(h vkapi.DescriptorSetLayout) {
	d.mu.Lock()
	l, ok := d.setLayouts.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyDescriptorSetLayout(d.dev, l, nil)
	}
}

func (d *device) CreatePipelineLayout(sets []vkapi.DescriptorSetLayout) (vkapi.PipelineLayout, error) {
	d.mu.Lock()
	ls := make([]vk.DescriptorSetLayout, len(sets))
	for i, s := range sets {
		ls[i] = d.setLayouts.get(uint64(s))
	}
	d.mu.Unlock()
	ci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(ls)),
		PSetLayouts:    ls,
	}
	var l vk.PipelineLayout
	if err := check(vk.CreatePipelineLayout(d.dev, &ci, nil, &l)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.PipelineLayout(d.layouts.put(l)), nil
}

func (d *device) DestroyPipelineLayout(h vkapi.PipelineLayout) {
	d.mu.Lock()
	l, ok := d.layouts.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyPipelineLayout(d.dev, l, nil)
	}
}

func stencilState(s vkapi.StencilOpState) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      vk.StencilOp(s.Fail),
		PassOp:      vk.StencilOp(s.Pass),
		DepthFailOp: vk.StencilOp(s.DepthFail),
		CompareOp:   vk.CompareOp(s.Compare),
		CompareMask: s.CompareMask,
		WriteMask:   s.WriteMask,
		Reference:   s.Reference,
	}
}

func (d *device) CreateGraphicsPipeline(info *vkapi.GraphicsPipelineCreateInfo) (vkapi.Pipeline, error) {
	d.mu.Lock()
	vs, fs := d.modules.get(uint64(info.Vertex)), d.modules.get(uint64(info.Fragment))
	layout := d.layouts.get(uint64(info.Layout))
	rp := d.renderPasses.get(uint64(info.RenderPass))
	d.mu.Unlock()

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vs,
		PName:  cstr(info.VertexEntry),
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: fs,
		PName:  cstr(info.FragmentEntry),
	}}

	bindings := make([]vk.VertexInputBindingDescription, len(info.Bindings))
	for i, b := range info.Bindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRate(b.InputRate),
		}
	}
	attrs := make([]vk.VertexInputAttributeDescription, len(info.Attributes))
	for i, a := range info.Attributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	blend := make([]vk.PipelineColorBlendAttachmentState, len(info.Blend))
	for i, b := range info.Blend {
		blend[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         b32(b.BlendEnable),
			SrcColorBlendFactor: vk.BlendFactor(b.SrcColor),
			DstColorBlendFactor: vk.BlendFactor(b.DstColor),
			ColorBlendOp:        vk.BlendOp(b.ColorOp),
			SrcAlphaBlendFactor: vk.BlendFactor(b.SrcAlpha),
			DstAlphaBlendFactor: vk.BlendFactor(b.DstAlpha),
			AlphaBlendOp:        vk.BlendOp(b.AlphaOp),
			ColorWriteMask:      vk.ColorComponentFlags(b.WriteMask),
		}
	}
	dynamic := make([]vk.DynamicState, len(info.DynamicStates))
	for i, s := range info.DynamicStates {
		dynamic[i] = vk.DynamicState(s)
	}

	ci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
			VertexAttributeDescriptionCount: uint32(len(attrs)),
			PVertexAttributeDescriptions:    attrs,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vk.PrimitiveTopology(info.Topology),
			PrimitiveRestartEnable: b32(info.RestartEnable),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			PViewports: []vk.Viewport{{
				X:        info.Viewport.X,
				Y:        info.Viewport.Y,
				Width:    info.Viewport.Width,
				Height:   info.Viewport.Height,
				MinDepth: info.Viewport.MinDepth,
				MaxDepth: info.Viewport.MaxDepth,
			}},
			ScissorCount: 1,
			PScissors:    []vk.Rect2D{rect(info.Scissor)},
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode:             vk.PolygonMode(info.PolygonMode),
			CullMode:                vk.CullModeFlags(info.CullMode),
			FrontFace:               vk.FrontFace(info.FrontFace),
			DepthBiasEnable:         b32(info.DepthBias),
			DepthBiasConstantFactor: info.BiasConstant,
			DepthBiasClamp:          info.BiasClamp,
			DepthBiasSlopeFactor:    info.BiasSlope,
			LineWidth:               info.LineWidth,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCountFlagBits(info.Samples),
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:   b32(info.DepthTest),
			DepthWriteEnable:  b32(info.DepthWrite),
			DepthCompareOp:    vk.CompareOp(info.DepthCompare),
			StencilTestEnable: b32(info.StencilTest),
			Front:             stencilState(info.Front),
			Back:              stencilState(info.Back),
			MaxDepthBounds:    1,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable:   b32(info.LogicOpEnable),
			LogicOp:         vk.LogicOp(info.LogicOp),
			AttachmentCount: uint32(len(blend)),
			PAttachments:    blend,
			BlendConstants:  info.BlendConstants,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout:     layout,
		RenderPass: rp,
	}}
	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateGraphicsPipelines(d.dev, nil, 1, ci, nil, pipelines)); err != nil {
		return 0, fmt.Errorf("vkgo: create graphics pipeline: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Pipeline(d.pipelines.put(pipelines[0])), nil
}

func (d *device) CreateComputePipeline(info *vkapi.ComputePipelineCreateInfo) (vkapi.Pipeline, error) {
	d.mu.Lock()
	m, layout := d.modules.get(uint64(info.Module)), d.layouts.get(uint64(info.Layout))
	d.mu.Unlock()
	ci := []vk.ComputePipelineCreateInfo{{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: m,
			PName:  cstr(info.Entry),
		},
		Layout: layout,
	}}
	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateComputePipelines(d.dev, nil, 1, ci, nil, pipelines)); err != nil {
		return 0, fmt.Errorf("vkgo: create compute pipeline: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.Pipeline(d.pipelines.put(pipelines[0])), nil
}

func (d *device) DestroyPipeline(h vkapi.Pipeline) {
	d.mu.Lock()
	p, ok := d.pipelines.take(uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyPipeline(d.dev, p, nil)
	}
}

func (d *device) CreateDescriptorPool(info *vkapi.DescriptorPoolCreateInfo) (vkapi.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(info.Sizes))
	for i, s := range info.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	ci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var p vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(d.dev, &ci, nil, &p)); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return vkapi.DescriptorPool(d.pools.put(p)), nil
}

// DestroyDescriptorPool implements vkapi.Device. Sets allocated from the
// pool are released with it.
func (d *device) DestroyDescriptorPool(h vkapi.DescriptorPool) {
	d.mu.Lock()
	p, ok := d.pools.take(uint64(h))
	for _, s := range d.poolSets[uint64(h)] {
		d.sets.take(s)
	}
	delete(d.poolSets, uint64(h))
	d.mu.Unlock()
	if ok {
		vk.DestroyDescriptorPool(d.dev, p, nil)
	}
}

func (d *device) AllocateDescriptorSets(pool vkapi.DescriptorPool, layouts []vkapi.DescriptorSetLayout) ([]vkapi.DescriptorSet, error) {
	d.mu.Lock()
	p := d.pools.get(uint64(pool))
	ls := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		ls[i] = d.setLayouts.get(uint64(l))
	}
	d.mu.Unlock()

	sets := make([]vk.DescriptorSet, len(ls))
	for i := range ls {
		ai := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     p,
			DescriptorSetCount: 1,
			PSetLayouts:        ls[i : i+1],
		}
		if err := check(vk.AllocateDescriptorSets(d.dev, &ai, &sets[i])); err != nil {
			return nil, fmt.Errorf("vkgo: allocate descriptor set %d: %w", i, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]vkapi.DescriptorSet, len(sets))
	for i, s := range sets {
		h := d.sets.put(s)
		d.poolSets[uint64(pool)] = append(d.poolSets[uint64(pool)], h)
		out[i] = vkapi.DescriptorSet(h)
	}
	return out, nil
}

func (d *device) UpdateDescriptorSets(writes []vkapi.WriteDescriptorSet) {
	d.mu.Lock()
	ws := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		ws[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          d.sets.get(uint64(w.Set)),
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		if len(w.Buffers) > 0 {
			infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for j, b := range w.Buffers {
				infos[j] = vk.DescriptorBufferInfo{
					Buffer: d.buffers.get(uint64(b.Buffer)),
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				}
			}
			ws[i].DescriptorCount = uint32(len(infos))
			ws[i].PBufferInfo = infos
			continue
		}
		infos := make([]vk.DescriptorImageInfo, len(w.Images))
		for j, img := range w.Images {
			infos[j] = vk.DescriptorImageInfo{
				Sampler:     d.samplers.get(uint64(img.Sampler)),
				ImageView:   d.views.get(uint64(img.View)),
				ImageLayout: vk.ImageLayout(img.Layout),
			}
		}
		ws[i].DescriptorCount = uint32(len(infos))
		ws[i].PImageInfo = infos
	}
	d.mu.Unlock()
	vk.UpdateDescriptorSets(d.dev, uint32(len(ws)), ws, 0, nil)
}
