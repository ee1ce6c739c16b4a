package vulkan

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/internal/cache"
	"github.com/gogpu/rhi/state"
)

// shader is a compiled module. Pipelines hold a reference so they can be
// rebuilt after the shader itself is destroyed.
type shader struct {
	stage  gputypes.ShaderStage
	module vkapi.ShaderModule
	entry  string
	refs   int
	gone   bool
}

type pipeline struct {
	state.Pipeline

	compute     bool
	baked       state.Cache
	descriptors []rhi.Descriptor
	layouts     []rhi.VertexLayout
	shaders     []*shader

	pass     rhi.RenderPassID
	passDesc rhi.RenderPassDescriptor

	setLayout vkapi.DescriptorSetLayout
	layout    vkapi.PipelineLayout
	native    vkapi.Pipeline
}

type vertexArray struct {
	buffers     []*buffer
	index       *buffer
	indexFormat gputypes.IndexFormat
}

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// compiled holds SPIR-V compiled from WGSL, keyed by the source digest.
// It is shared by every renderer in the process.
var compiled = cache.New[[sha256.Size]byte, []uint32](256)

// compileWGSL returns the SPIR-V words for src. Failed compilations are
// not cached.
func compileWGSL(src string) ([]uint32, error) {
	key := sha256.Sum256([]byte(src))
	if words, ok := compiled.Get(key); ok {
		return words, nil
	}
	b, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	words := spirvWords(b)
	if compiled.Add(key, words) {
		rhi.Logger().Debug("vulkan: shader cache full, evicted oldest module")
	}
	return words, nil
}

// CreateShader implements rhi.Renderer. SPIR-V is used as given; source
// text is compiled from WGSL.
func (r *Renderer) CreateShader(desc *rhi.ShaderDescriptor) (rhi.ShaderID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	code := desc.SPIRV
	if len(code) == 0 {
		words, err := compileWGSL(desc.Source)
		if err != nil {
			return 0, &rhi.ShaderCompileError{Stage: desc.Stage, Log: err.Error()}
		}
		code = words
	}
	m, err := r.dev.CreateShaderModule(code)
	if errors.Is(err, vkapi.ErrorInvalidShader) {
		return 0, &rhi.ShaderCompileError{Stage: desc.Stage, Log: "invalid SPIR-V module"}
	}
	if err != nil {
		return 0, vkError("create shader module", err)
	}
	s := &shader{stage: desc.Stage, module: m, entry: desc.Entry()}
	return rhi.ShaderID(r.shaders.Insert(s)), nil
}

// DestroyShader implements rhi.Renderer. The module outlives the shader
// while pipelines reference it.
func (r *Renderer) DestroyShader(id rhi.ShaderID) {
	s, ok := r.shaders.Remove(arena.Handle(id))
	if !ok {
		return
	}
	s.gone = true
	if s.refs == 0 {
		r.dev.DestroyShaderModule(s.module)
	}
}

func (r *Renderer) unref(s *shader) {
	s.refs--
	if s.refs == 0 && s.gone {
		r.dev.DestroyShaderModule(s.module)
	}
}

func (r *Renderer) shaderOf(id rhi.ShaderID, stage gputypes.ShaderStage) (*shader, error) {
	s, ok := r.shaders.Get(arena.Handle(id))
	if !ok {
		return nil, fmt.Errorf("%w: shader %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	if s.stage != stage {
		return nil, fmt.Errorf("%w: %v shader used as %v stage", rhi.ErrMismatch, s.stage, stage)
	}
	return s, nil
}

func (r *Renderer) checkArrays(ds []rhi.Descriptor) error {
	for _, d := range ds {
		if d.Type == rhi.DescriptorSampledImageArray && int(d.Count) > r.caps.MaxImageArray {
			return fmt.Errorf("%w: image array of %d at binding %d, limit %d",
				rhi.ErrUnsupported, d.Count, d.Binding, r.caps.MaxImageArray)
		}
	}
	return nil
}

// createLayout creates the set and pipeline layouts of p. A pipeline
// without descriptors has an empty pipeline layout.
func (r *Renderer) createLayout(p *pipeline) error {
	var sets []vkapi.DescriptorSetLayout
	if len(p.descriptors) > 0 {
		bindings := make([]vkapi.DescriptorSetLayoutBinding, len(p.descriptors))
		for i, d := range p.descriptors {
			bindings[i] = vkapi.DescriptorSetLayoutBinding{
				Binding: d.Binding,
				Type:    descriptorType(d.Type),
				Count:   d.ArraySize(),
				Stages:  stageFlags(d.Stages),
			}
		}
		l, err := r.dev.CreateDescriptorSetLayout(bindings)
		if err != nil {
			return vkError("create descriptor set layout", err)
		}
		p.setLayout = l
		sets = []vkapi.DescriptorSetLayout{l}
	}
	l, err := r.dev.CreatePipelineLayout(sets)
	if err != nil {
		return vkError("create pipeline layout", err)
	}
	p.layout = l
	return nil
}

func stencilState(f state.StencilFace, c *state.Cache) vkapi.StencilOpState {
	return vkapi.StencilOpState{
		Fail:        stencilOp(f.Fail),
		Pass:        stencilOp(f.Pass),
		DepthFail:   stencilOp(f.DepthFail),
		Compare:     compareOp(f.Compare),
		CompareMask: c.StencilCompareMask,
		WriteMask:   c.StencilWriteMask,
		Reference:   c.StencilReference,
	}
}

// createGraphics builds the native pipeline of p against the canonical
// native pass of pass. Kinds dynamic in p are taken from commands instead
// of the baked cache.
func (r *Renderer) createGraphics(p *pipeline, pass *renderPass) (vkapi.Pipeline, error) {
	c := &p.baked
	info := &vkapi.GraphicsPipelineCreateInfo{
		Vertex:         p.shaders[0].module,
		VertexEntry:    p.shaders[0].entry,
		Fragment:       p.shaders[1].module,
		FragmentEntry:  p.shaders[1].entry,
		Topology:       topology(c.PrimitiveTopology),
		RestartEnable:  c.PrimitiveRestartEnable,
		PolygonMode:    polygonMode(c.PolygonMode),
		CullMode:       cullMode(c.CullMode),
		FrontFace:      frontFace(c.FrontFace),
		DepthBias:      c.DepthBiasEnable,
		BiasConstant:   c.DepthBias.Constant,
		BiasClamp:      c.DepthBias.Clamp,
		BiasSlope:      c.DepthBias.Slope,
		LineWidth:      1,
		Samples:        uint32(pass.desc.SampleCount()),
		DepthTest:      c.DepthTestEnable,
		DepthWrite:     c.DepthWriteEnable,
		DepthCompare:   compareOp(c.DepthCompareOp),
		StencilTest:    c.StencilTestEnable,
		Front:          stencilState(c.StencilOps.Front, c),
		Back:           stencilState(c.StencilOps.Back, c),
		LogicOpEnable:  c.LogicOpEnable,
		LogicOp:        logicOp(c.LogicOp),
		BlendConstants: c.BlendConstants,
		DynamicStates:  nativeDynamic(p.Dynamic),
		Layout:         p.layout,
		RenderPass:     pass.native,
	}
	if r.props.WideLines {
		info.LineWidth = max(c.LineWidth, 1)
	}
	for i, l := range p.layouts {
		rate := vkapi.InputRateVertex
		if l.PerInstance() {
			rate = vkapi.InputRateInstance
		}
		info.Bindings = append(info.Bindings, vkapi.VertexBinding{Binding: uint32(i), Stride: l.Stride, InputRate: rate})
		for _, a := range l.Attributes {
			f, ok := vertexFormat(a.Format)
			if !ok {
				return 0, fmt.Errorf("%w: vertex format %v", rhi.ErrUnsupported, a.Format)
			}
			info.Attributes = append(info.Attributes, vkapi.VertexAttribute{
				Location: a.Location,
				Binding:  uint32(i),
				Format:   f,
				Offset:   a.Offset,
			})
		}
	}
	b := c.BlendEquation
	blend := vkapi.ColorBlendAttachment{
		BlendEnable: c.BlendEnable,
		SrcColor:    blendFactor(b.Color.SrcFactor),
		DstColor:    blendFactor(b.Color.DstFactor),
		ColorOp:     blendOp(b.Color.Operation),
		SrcAlpha:    blendFactor(b.Alpha.SrcFactor),
		DstAlpha:    blendFactor(b.Alpha.DstFactor),
		AlphaOp:     blendOp(b.Alpha.Operation),
		WriteMask:   writeMask(c.ColorWriteMask),
	}
	for range pass.desc.Colors {
		info.Blend = append(info.Blend, blend)
	}
	native, err := r.dev.CreateGraphicsPipeline(info)
	if err != nil {
		return 0, vkError("create graphics pipeline", err)
	}
	return native, nil
}

// CreatePipeline implements rhi.Renderer. The requested dynamic kinds are
// narrowed to those the device supports; viewport and scissor are always
// dynamic. Everything else is baked from desc.State or the live state.
func (r *Renderer) CreatePipeline(desc *rhi.PipelineDescriptor) (rhi.PipelineID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	if err := r.checkArrays(desc.Descriptors); err != nil {
		return 0, err
	}
	vs, err := r.shaderOf(desc.Vertex, gputypes.ShaderStageVertex)
	if err != nil {
		return 0, err
	}
	fs, err := r.shaderOf(desc.Fragment, gputypes.ShaderStageFragment)
	if err != nil {
		return 0, err
	}
	passID := desc.RenderPass
	if passID.IsNull() {
		passID = r.swap.pass
	}
	pass, ok := r.passes.Get(arena.Handle(passID))
	if !ok {
		return 0, fmt.Errorf("%w: render pass %#x", rhi.ErrInvalidHandle, uint64(passID))
	}
	p := &pipeline{
		descriptors: append([]rhi.Descriptor(nil), desc.Descriptors...),
		layouts:     append([]rhi.VertexLayout(nil), desc.Layouts...),
		shaders:     []*shader{vs, fs},
		pass:        passID,
		passDesc:    pass.desc,
	}
	p.Dynamic = desc.Dynamic&r.caps.DynamicStates | alwaysDynamic
	if desc.State != nil {
		p.baked = *desc.State
	} else {
		p.baked = *r.machine.Live()
	}
	if err := r.createLayout(p); err != nil {
		r.freePipeline(p)
		return 0, err
	}
	if p.native, err = r.createGraphics(p, pass); err != nil {
		r.freePipeline(p)
		return 0, err
	}
	vs.refs++
	fs.refs++
	state.CacheState(r.machine, &p.Pipeline)
	rhi.Logger().Debug("vulkan: pipeline created", "dynamic", p.Dynamic.String(), "samples", pass.desc.SampleCount())
	return rhi.PipelineID(r.pipelines.Insert(p)), nil
}

// CreateComputePipeline implements rhi.Renderer.
func (r *Renderer) CreateComputePipeline(desc *rhi.ComputePipelineDescriptor) (rhi.PipelineID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	if err := r.checkArrays(desc.Descriptors); err != nil {
		return 0, err
	}
	cs, err := r.shaderOf(desc.Compute, gputypes.ShaderStageCompute)
	if err != nil {
		return 0, err
	}
	p := &pipeline{
		compute:     true,
		descriptors: append([]rhi.Descriptor(nil), desc.Descriptors...),
	}
	if err := r.createLayout(p); err != nil {
		r.freePipeline(p)
		return 0, err
	}
	p.native, err = r.dev.CreateComputePipeline(&vkapi.ComputePipelineCreateInfo{Module: cs.module, Entry: cs.entry, Layout: p.layout})
	if err != nil {
		r.freePipeline(p)
		return 0, vkError("create compute pipeline", err)
	}
	cs.refs++
	p.shaders = []*shader{cs}
	return rhi.PipelineID(r.pipelines.Insert(p)), nil
}

// freePipeline destroys the native objects of p and drops its shader
// references.
func (r *Renderer) freePipeline(p *pipeline) {
	if p.native != 0 {
		r.dev.DestroyPipeline(p.native)
		for _, s := range p.shaders {
			r.unref(s)
		}
	}
	if p.layout != 0 {
		r.dev.DestroyPipelineLayout(p.layout)
	}
	if p.setLayout != 0 {
		r.dev.DestroyDescriptorSetLayout(p.setLayout)
	}
	p.native, p.layout, p.setLayout = 0, 0, 0
}

// DestroyPipeline implements rhi.Renderer.
func (r *Renderer) DestroyPipeline(id rhi.PipelineID) {
	p, ok := r.pipelines.Remove(arena.Handle(id))
	if !ok {
		return
	}
	if r.bound == p {
		r.bound = nil
		r.machine.Unbind()
	}
	r.release(func() { r.freePipeline(p) })
}

// rebuildPipelines recreates the graphics pipelines built for passID
// after its native pass changed. The device must be idle.
func (r *Renderer) rebuildPipelines(passID rhi.RenderPassID) error {
	pass, ok := r.passes.Get(arena.Handle(passID))
	if !ok {
		return nil
	}
	var errs []error
	r.pipelines.Each(func(_ arena.Handle, p *pipeline) {
		if p.compute || p.pass != passID {
			return
		}
		native, err := r.createGraphics(p, pass)
		if err != nil {
			errs = append(errs, err)
			return
		}
		r.dev.DestroyPipeline(p.native)
		p.native = native
		p.passDesc = pass.desc
	})
	if n := len(errs); n > 0 {
		rhi.Logger().Warn("vulkan: pipeline rebuild failed", "pipelines", n, "error", errs[0])
	}
	return errors.Join(errs...)
}

// BindPipeline implements rhi.Renderer. Binding a graphics pipeline
// re-issues its dynamic kinds that changed since it was last bound; the
// kinds it bakes are left stale for the next pipeline.
func (r *Renderer) BindPipeline(id rhi.PipelineID) error {
	p, ok := r.pipelines.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: pipeline %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	cb, err := r.frameCommands("bind pipeline")
	if err != nil {
		return err
	}
	if p.compute {
		if r.pass != nil {
			return fmt.Errorf("%w: compute pipeline bound inside a render pass", rhi.ErrInvalidState)
		}
		r.dev.CmdBindPipeline(cb, vkapi.BindPointCompute, p.native)
		r.bound = p
		r.machine.Unbind()
		return nil
	}
	if r.pass == nil {
		return fmt.Errorf("%w: graphics pipeline bound outside a render pass", rhi.ErrInvalidState)
	}
	if !compatible(&p.passDesc, &r.pass.desc) {
		return fmt.Errorf("%w: pipeline built for an incompatible render pass", rhi.ErrMismatch)
	}
	r.dev.CmdBindPipeline(cb, vkapi.BindPointGraphics, p.native)
	r.bound = p
	state.Bind(r.machine, &p.Pipeline)
	r.machine.Invalidate(state.All &^ p.Dynamic)
	return nil
}

// CreateVertexArray implements rhi.Renderer.
func (r *Renderer) CreateVertexArray(desc *rhi.VertexArrayDescriptor) (rhi.VertexArrayID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	va := &vertexArray{indexFormat: desc.IndexFormat}
	for i, id := range desc.VertexBuffers {
		b, err := r.buffer(id)
		if err != nil {
			return 0, err
		}
		if !b.desc.Usage.Contains(gputypes.BufferUsageVertex) {
			return 0, fmt.Errorf("%w: buffer %d lacks vertex usage", rhi.ErrMismatch, i)
		}
		va.buffers = append(va.buffers, b)
	}
	if !desc.IndexBuffer.IsNull() {
		b, err := r.buffer(desc.IndexBuffer)
		if err != nil {
			return 0, err
		}
		if !b.desc.Usage.Contains(gputypes.BufferUsageIndex) {
			return 0, fmt.Errorf("%w: index buffer lacks index usage", rhi.ErrMismatch)
		}
		va.index = b
	}
	return rhi.VertexArrayID(r.vertexArrays.Insert(va)), nil
}

// DestroyVertexArray implements rhi.Renderer.
func (r *Renderer) DestroyVertexArray(id rhi.VertexArrayID) {
	va, ok := r.vertexArrays.Remove(arena.Handle(id))
	if ok && r.vertexArray == va {
		r.vertexArray = nil
	}
}

// BindVertexArray implements rhi.Renderer. Dynamic buffers bind at the
// region of the current frame slot.
func (r *Renderer) BindVertexArray(id rhi.VertexArrayID) error {
	va, ok := r.vertexArrays.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: vertex array %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	cb, err := r.frameCommands("bind vertex array")
	if err != nil {
		return err
	}
	r.bindVertexArray(cb, va)
	return nil
}

func (r *Renderer) bindVertexArray(cb vkapi.CommandBuffer, va *vertexArray) {
	if n := len(va.buffers); n > 0 {
		bufs := make([]vkapi.Buffer, n)
		offsets := make([]uint64, n)
		for i, b := range va.buffers {
			bufs[i], offsets[i] = b.buf, r.base(b)
		}
		r.dev.CmdBindVertexBuffers(cb, 0, bufs, offsets)
	}
	if va.index != nil {
		r.dev.CmdBindIndexBuffer(cb, va.index.buf, r.base(va.index), indexType(va.indexFormat))
	}
	r.vertexArray = va
}
