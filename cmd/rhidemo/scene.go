//go:build !nogpu

package main

import (
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
)

const glslVertex = `#version 460 core
layout(location = 0) in vec2 pos;
void main() { gl_Position = vec4(pos, 0.0, 1.0); }
`

const glslFragment = `#version 460 core
layout(std140, binding = 0) uniform Tint { vec4 color; };
layout(location = 0) out vec4 frag;
void main() { frag = color; }
`

const wgslVertex = `@vertex
fn main(@location(0) pos: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(pos, 0.0, 1.0);
}
`

const wgslFragment = `struct Tint {
    color: vec4<f32>,
};
@group(0) @binding(0) var<uniform> tint: Tint;

@fragment
fn main() -> @location(0) vec4<f32> {
    return tint.color;
}
`

var triangle = []float32{
	0, 0.6,
	-0.6, -0.5,
	0.6, -0.5,
}

var tintSlot = rhi.Descriptor{Type: rhi.DescriptorUniformBuffer, Binding: 0, Stages: gputypes.ShaderStageFragment}

// scene owns the objects drawn every frame.
type scene struct {
	r        rhi.Renderer
	shaders  [2]rhi.ShaderID
	pipeline rhi.PipelineID
	vertices rhi.BufferID
	tint     rhi.BufferID
	va       rhi.VertexArrayID
	binding  rhi.DescriptorSetBindingID
}

func newScene(r rhi.Renderer) (*scene, error) {
	s := &scene{r: r}
	if err := s.build(); err != nil {
		s.destroy()
		return nil, err
	}
	return s, nil
}

func (s *scene) build() (err error) {
	r := s.r

	vs, fs := glslVertex, glslFragment
	if r.Backend() == rhi.BackendVulkan {
		vs, fs = wgslVertex, wgslFragment
	}
	if s.shaders[0], err = r.CreateShader(&rhi.ShaderDescriptor{Stage: gputypes.ShaderStageVertex, Source: vs}); err != nil {
		return err
	}
	if s.shaders[1], err = r.CreateShader(&rhi.ShaderDescriptor{Stage: gputypes.ShaderStageFragment, Source: fs}); err != nil {
		return err
	}

	layout := rhi.VertexLayout{Stride: 8, Attributes: []rhi.VertexAttribute{
		{Location: 0, Format: gputypes.VertexFormatFloat32x2},
	}}
	s.pipeline, err = r.CreatePipeline(&rhi.PipelineDescriptor{
		Vertex:      s.shaders[0],
		Fragment:    s.shaders[1],
		Layouts:     []rhi.VertexLayout{layout},
		Descriptors: []rhi.Descriptor{tintSlot},
	})
	if err != nil {
		return err
	}

	data, err := binary.Append(nil, binary.LittleEndian, triangle)
	if err != nil {
		return err
	}
	if s.vertices, err = r.CreateBuffer(&rhi.BufferDescriptor{Size: len(data), Usage: gputypes.BufferUsageVertex}); err != nil {
		return err
	}
	if err = r.SetBufferData(s.vertices, data); err != nil {
		return err
	}
	s.va, err = r.CreateVertexArray(&rhi.VertexArrayDescriptor{
		Layouts:       []rhi.VertexLayout{layout},
		VertexBuffers: []rhi.BufferID{s.vertices},
	})
	if err != nil {
		return err
	}

	if s.tint, err = r.CreateBuffer(&rhi.BufferDescriptor{Size: 16, Usage: gputypes.BufferUsageUniform, Mode: rhi.BufferDynamic}); err != nil {
		return err
	}
	b, err := rhi.BindBuffer(tintSlot, s.tint, 0, 16)
	if err != nil {
		return err
	}
	if s.binding, err = r.CreateDescriptorSetBinding(s.pipeline, []rhi.DescriptorBinding{b}); err != nil {
		return fmt.Errorf("bind tint: %w", err)
	}
	return nil
}

// colors returns the background at time t and its complement for the
// triangle. The background hue turns around the gray axis.
func colors(t float64) (bg, tint mgl32.Vec4) {
	base := mgl32.Vec4{0.8, 0.3, 0.2, 1}
	rot := mgl32.HomogRotate3D(float32(t)*0.5, mgl32.Vec3{1, 1, 1}.Normalize())
	c := rot.Mul4x1(base)
	for i := range 3 {
		c[i] = mgl32.Clamp(c[i], 0, 1)
	}
	c[3] = 1
	return c, mgl32.Vec4{1 - c[0], 1 - c[1], 1 - c[2], 1}
}

func (s *scene) frame(t float64) error {
	r := s.r
	if err := r.BeginFrame(); err != nil {
		return err
	}
	bg, tint := colors(t)
	buf, err := binary.Append(nil, binary.LittleEndian, tint[:])
	if err != nil {
		return err
	}
	if err := r.SetBufferData(s.tint, buf); err != nil {
		return err
	}
	if err := r.BeginRenderPass(r.SwapchainRenderPass(), r.SwapchainFramebuffer()); err != nil {
		return err
	}
	if err := r.ClearColorAttachment(0, bg); err != nil {
		return err
	}
	if err := r.BindPipeline(s.pipeline); err != nil {
		return err
	}
	if err := r.BindVertexArray(s.va); err != nil {
		return err
	}
	if err := r.BindDescriptorSetBinding(s.binding); err != nil {
		return err
	}
	if err := r.Draw(uint32(len(triangle)/2), 1, 0, 0); err != nil {
		return err
	}
	if err := r.EndRenderPass(); err != nil {
		return err
	}
	return r.EndFrame()
}

func (s *scene) destroy() {
	r := s.r
	r.DestroyDescriptorSetBinding(s.binding)
	r.DestroyVertexArray(s.va)
	r.DestroyBuffer(s.tint)
	r.DestroyBuffer(s.vertices)
	r.DestroyPipeline(s.pipeline)
	for _, id := range s.shaders {
		r.DestroyShader(id)
	}
}
