package opengl

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/arena"
	"github.com/gogpu/rhi/state"
)

type shader struct {
	stage gputypes.ShaderStage
	sh    glapi.Shader
}

type pipeline struct {
	state.Pipeline

	program     glapi.Program
	compute     bool
	baked       state.Cache
	descriptors []rhi.Descriptor
	pass        rhi.RenderPassID
}

type vertexArray struct {
	vao         glapi.VertexArray
	indexFormat gputypes.IndexFormat
	indexed     bool
}

// CreateShader implements rhi.Renderer. Source must be GLSL.
func (r *Renderer) CreateShader(desc *rhi.ShaderDescriptor) (rhi.ShaderID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	if desc.Source == "" {
		return 0, fmt.Errorf("%w: SPIR-V shaders on OpenGL", rhi.ErrUnsupported)
	}
	sh := r.gl.CreateShader(shaderType(desc.Stage))
	r.gl.ShaderSource(sh, desc.Source)
	r.gl.CompileShader(sh)
	if r.gl.GetShaderi(sh, glapi.COMPILE_STATUS) == 0 {
		log := r.gl.GetShaderInfoLog(sh)
		r.gl.DeleteShader(sh)
		return 0, &rhi.ShaderCompileError{Stage: desc.Stage, Log: log}
	}
	return rhi.ShaderID(r.shaders.Insert(&shader{stage: desc.Stage, sh: sh})), nil
}

// DestroyShader implements rhi.Renderer.
func (r *Renderer) DestroyShader(id rhi.ShaderID) {
	if s, ok := r.shaders.Remove(arena.Handle(id)); ok {
		r.gl.DeleteShader(s.sh)
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

func (r *Renderer) link(shaders ...*shader) (glapi.Program, error) {
	prog := r.gl.CreateProgram()
	for _, s := range shaders {
		r.gl.AttachShader(prog, s.sh)
	}
	r.gl.LinkProgram(prog)
	for _, s := range shaders {
		r.gl.DetachShader(prog, s.sh)
	}
	if r.gl.GetProgrami(prog, glapi.LINK_STATUS) == 0 {
		log := r.gl.GetProgramInfoLog(prog)
		r.gl.DeleteProgram(prog)
		return 0, &rhi.LinkError{Log: log}
	}
	return prog, nil
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

// CreatePipeline implements rhi.Renderer. Every state kind is dynamic in
// OpenGL, so desc.Dynamic is kept as given; the other kinds are issued from
// the baked cache on every bind.
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
	pass := desc.RenderPass
	if pass.IsNull() {
		pass = r.swap.pass
	}
	if !r.passes.Contains(arena.Handle(pass)) {
		return 0, fmt.Errorf("%w: render pass %#x", rhi.ErrInvalidHandle, uint64(pass))
	}
	prog, err := r.link(vs, fs)
	if err != nil {
		return 0, err
	}
	p := &pipeline{
		program:     prog,
		descriptors: append([]rhi.Descriptor(nil), desc.Descriptors...),
		pass:        pass,
	}
	p.Dynamic = desc.Dynamic & state.All
	if desc.State != nil {
		p.baked = *desc.State
	} else {
		p.baked = *r.machine.Live()
	}
	state.CacheState(r.machine, &p.Pipeline)
	rhi.Logger().Debug("opengl: pipeline created", "dynamic", p.Dynamic.String())
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
	prog, err := r.link(cs)
	if err != nil {
		return 0, err
	}
	p := &pipeline{
		program:     prog,
		compute:     true,
		descriptors: append([]rhi.Descriptor(nil), desc.Descriptors...),
	}
	return rhi.PipelineID(r.pipelines.Insert(p)), nil
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
		r.gl.UseProgram(0)
	}
	r.gl.DeleteProgram(p.program)
}

// BindPipeline implements rhi.Renderer. The kinds a graphics pipeline
// bakes are issued from its baked cache, leaving the native state out of
// step with the live cache until the next pipeline declaring them dynamic.
func (r *Renderer) BindPipeline(id rhi.PipelineID) error {
	p, ok := r.pipelines.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: pipeline %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	if !p.compute && r.pass == nil {
		return fmt.Errorf("%w: graphics pipeline bound outside a render pass", rhi.ErrInvalidState)
	}
	r.gl.UseProgram(p.program)
	r.bound = p
	if p.compute {
		r.machine.Unbind()
		return r.checkCommand("bind pipeline")
	}
	baked := state.All &^ p.Dynamic
	for _, k := range baked.Kinds() {
		r.issue(k, &p.baked)
	}
	state.Bind(r.machine, &p.Pipeline)
	r.machine.Invalidate(baked)
	return r.checkCommand("bind pipeline")
}

// CreateVertexArray implements rhi.Renderer.
func (r *Renderer) CreateVertexArray(desc *rhi.VertexArrayDescriptor) (rhi.VertexArrayID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	bufs := make([]*buffer, len(desc.VertexBuffers))
	for i, id := range desc.VertexBuffers {
		b, err := r.buffer(id)
		if err != nil {
			return 0, err
		}
		if !b.desc.Usage.Contains(gputypes.BufferUsageVertex) {
			return 0, fmt.Errorf("%w: buffer %d lacks vertex usage", rhi.ErrMismatch, i)
		}
		bufs[i] = b
	}
	var index *buffer
	if !desc.IndexBuffer.IsNull() {
		b, err := r.buffer(desc.IndexBuffer)
		if err != nil {
			return 0, err
		}
		if !b.desc.Usage.Contains(gputypes.BufferUsageIndex) {
			return 0, fmt.Errorf("%w: index buffer lacks index usage", rhi.ErrMismatch)
		}
		index = b
	}

	va := &vertexArray{vao: r.gl.GenVertexArray(), indexFormat: desc.IndexFormat, indexed: index != nil}
	r.gl.BindVertexArray(va.vao)
	for i, layout := range desc.Layouts {
		r.gl.BindBuffer(glapi.ARRAY_BUFFER, bufs[i].buf)
		for _, a := range layout.Attributes {
			size, typ, normalized, integer := vertexType(a.Format)
			r.gl.EnableVertexAttribArray(a.Location)
			if integer {
				r.gl.VertexAttribIPointer(a.Location, size, typ, int32(layout.Stride), int(a.Offset))
			} else {
				r.gl.VertexAttribPointer(a.Location, size, typ, normalized, int32(layout.Stride), int(a.Offset))
			}
			if layout.PerInstance() {
				r.gl.VertexAttribDivisor(a.Location, 1)
			}
		}
	}
	if index != nil {
		r.gl.BindBuffer(glapi.ELEMENT_ARRAY_BUFFER, index.buf)
	}
	r.restoreVertexArray()
	return rhi.VertexArrayID(r.vertexArrays.Insert(va)), nil
}

func (r *Renderer) restoreVertexArray() {
	if r.vertexArray != nil {
		r.gl.BindVertexArray(r.vertexArray.vao)
	} else {
		r.gl.BindVertexArray(0)
	}
}

// DestroyVertexArray implements rhi.Renderer.
func (r *Renderer) DestroyVertexArray(id rhi.VertexArrayID) {
	va, ok := r.vertexArrays.Remove(arena.Handle(id))
	if !ok {
		return
	}
	if r.vertexArray == va {
		r.vertexArray = nil
	}
	r.gl.DeleteVertexArray(va.vao)
}

// BindVertexArray implements rhi.Renderer.
func (r *Renderer) BindVertexArray(id rhi.VertexArrayID) error {
	va, ok := r.vertexArrays.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: vertex array %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	r.vertexArray = va
	r.gl.BindVertexArray(va.vao)
	return nil
}
