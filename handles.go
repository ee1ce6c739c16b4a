package rhi

// Resource handles. Each is an opaque generational index into the arena of
// the renderer that created it; the zero value is the null handle.
// Destroying a resource invalidates every copy of its handle.
type (
	ImageID                uint64
	BufferID               uint64
	ShaderID               uint64
	PipelineID             uint64
	RenderPassID           uint64
	FramebufferID          uint64
	VertexArrayID          uint64
	DescriptorSetBindingID uint64
)

// IsNull reports whether id is the null handle.
func (id ImageID) IsNull() bool { return id == 0 }

// IsNull reports whether id is the null handle.
func (id BufferID) IsNull() bool { return id == 0 }

// IsNull reports whether id is the null handle.
func (id ShaderID) IsNull() bool { return id == 0 }

// IsNull reports whether id is the null handle.
func (id PipelineID) IsNull() bool { return id == 0 }

// IsNull reports whether id is the null handle.
func (id RenderPassID) IsNull() bool { return id == 0 }

// IsNull reports whether id is the null handle.
func (id FramebufferID) IsNull() bool { return id == 0 }

// IsNull reports whether id is the null handle.
func (id VertexArrayID) IsNull() bool { return id == 0 }

// IsNull reports whether id is the null handle.
func (id DescriptorSetBindingID) IsNull() bool { return id == 0 }
