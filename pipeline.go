package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi/state"
)

// VertexAttribute places one shader input inside a vertex buffer.
type VertexAttribute struct {
	Location uint32
	Format   gputypes.VertexFormat
	Offset   uint32
}

// VertexLayout describes the records of one vertex buffer.
type VertexLayout struct {
	Stride     uint32
	StepMode   gputypes.VertexStepMode // Undefined means per-vertex
	Attributes []VertexAttribute
}

// PerInstance reports whether the layout advances once per instance.
func (l *VertexLayout) PerInstance() bool {
	return l.StepMode == gputypes.VertexStepModeInstance
}

// VertexArrayDescriptor binds vertex buffers and an optional index buffer.
// Layouts[i] describes VertexBuffers[i].
type VertexArrayDescriptor struct {
	Layouts       []VertexLayout
	VertexBuffers []BufferID
	IndexBuffer   BufferID
	IndexFormat   gputypes.IndexFormat
}

// Validate checks buffer and layout counts and the index format.
func (d *VertexArrayDescriptor) Validate() error {
	if len(d.Layouts) != len(d.VertexBuffers) {
		return fmt.Errorf("%w: %d vertex layouts for %d buffers", ErrMismatch, len(d.Layouts), len(d.VertexBuffers))
	}
	if err := validateLayouts(d.Layouts); err != nil {
		return err
	}
	if !d.IndexBuffer.IsNull() && d.IndexFormat.Size() == 0 {
		return fmt.Errorf("%w: index buffer without index format", ErrInvalidDescriptor)
	}
	return nil
}

// PipelineDescriptor describes a graphics pipeline.
type PipelineDescriptor struct {
	Vertex   ShaderID
	Fragment ShaderID

	// Layouts describes the vertex buffers the pipeline consumes.
	Layouts []VertexLayout

	// Descriptors lists the shader-visible resource slots.
	Descriptors []Descriptor

	// RenderPass is the pass the pipeline renders in. Null selects the
	// swapchain pass.
	RenderPass RenderPassID

	// Dynamic lists the states re-issued on bind instead of being baked.
	// Backends may widen or narrow it to what the native API allows; see
	// Caps.DynamicStates.
	Dynamic state.Set

	// State supplies the baked values of non-dynamic states. Nil bakes the
	// renderer's live state at creation time.
	State *state.Cache
}

// Validate checks shader handles, layouts and descriptors.
func (d *PipelineDescriptor) Validate() error {
	if d.Vertex.IsNull() || d.Fragment.IsNull() {
		return fmt.Errorf("%w: graphics pipeline needs vertex and fragment shaders", ErrInvalidDescriptor)
	}
	if err := validateLayouts(d.Layouts); err != nil {
		return err
	}
	return ValidateDescriptors(d.Descriptors)
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Compute     ShaderID
	Descriptors []Descriptor
}

// Validate checks the shader handle and descriptors.
func (d *ComputePipelineDescriptor) Validate() error {
	if d.Compute.IsNull() {
		return fmt.Errorf("%w: compute pipeline needs a compute shader", ErrInvalidDescriptor)
	}
	return ValidateDescriptors(d.Descriptors)
}

func validateLayouts(layouts []VertexLayout) error {
	seen := make(map[uint32]bool)
	for i := range layouts {
		for _, a := range layouts[i].Attributes {
			if seen[a.Location] {
				return fmt.Errorf("%w: vertex location %d used twice", ErrInvalidDescriptor, a.Location)
			}
			seen[a.Location] = true
			if _, _, ok := VertexFormatInfo(a.Format); !ok {
				return fmt.Errorf("%w: vertex format %v", ErrUnsupported, a.Format)
			}
		}
	}
	return nil
}

// VertexComponent is the scalar type of a vertex attribute component.
type VertexComponent uint8

// Vertex component types.
const (
	ComponentFloat32 VertexComponent = iota
	ComponentUnorm8
	ComponentUint32
	ComponentSint32
)

// VertexFormatInfo returns the component count and type of the vertex
// formats renderers support.
func VertexFormatInfo(f gputypes.VertexFormat) (components int, kind VertexComponent, ok bool) {
	switch f {
	case gputypes.VertexFormatFloat32:
		return 1, ComponentFloat32, true
	case gputypes.VertexFormatFloat32x2:
		return 2, ComponentFloat32, true
	case gputypes.VertexFormatFloat32x3:
		return 3, ComponentFloat32, true
	case gputypes.VertexFormatFloat32x4:
		return 4, ComponentFloat32, true
	case gputypes.VertexFormatUnorm8x4:
		return 4, ComponentUnorm8, true
	case gputypes.VertexFormatUint32:
		return 1, ComponentUint32, true
	case gputypes.VertexFormatUint32x2:
		return 2, ComponentUint32, true
	case gputypes.VertexFormatUint32x4:
		return 4, ComponentUint32, true
	case gputypes.VertexFormatSint32:
		return 1, ComponentSint32, true
	case gputypes.VertexFormatSint32x4:
		return 4, ComponentSint32, true
	}
	return 0, 0, false
}
