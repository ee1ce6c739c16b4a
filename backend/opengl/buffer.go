package opengl

import (
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/arena"
)

type buffer struct {
	desc rhi.BufferDescriptor
	buf  glapi.Buffer
}

func (r *Renderer) buffer(id rhi.BufferID) (*buffer, error) {
	b, ok := r.buffers.Get(arena.Handle(id))
	if !ok {
		return nil, fmt.Errorf("%w: buffer %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	return b, nil
}

// CreateBuffer implements rhi.Renderer. Dynamic buffers get a streaming
// usage hint; both modes are written with BufferSubData.
func (r *Renderer) CreateBuffer(desc *rhi.BufferDescriptor) (rhi.BufferID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	usage := glapi.STATIC_DRAW
	if desc.Mode == rhi.BufferDynamic {
		usage = glapi.DYNAMIC_DRAW
	}
	r.gl.GetError()
	b := &buffer{desc: *desc, buf: r.gl.GenBuffer()}
	r.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, b.buf)
	r.gl.BufferData(glapi.COPY_WRITE_BUFFER, desc.Size, nil, usage)
	if err := r.glError("create buffer"); err != nil {
		r.gl.DeleteBuffer(b.buf)
		return 0, err
	}
	return rhi.BufferID(r.buffers.Insert(b)), nil
}

// DestroyBuffer implements rhi.Renderer.
func (r *Renderer) DestroyBuffer(id rhi.BufferID) {
	if b, ok := r.buffers.Remove(arena.Handle(id)); ok {
		r.gl.DeleteBuffer(b.buf)
	}
}

// SetBufferData implements rhi.Renderer.
func (r *Renderer) SetBufferData(id rhi.BufferID, data []byte) error {
	return r.UpdateBufferData(id, 0, data)
}

// UpdateBufferData implements rhi.Renderer.
func (r *Renderer) UpdateBufferData(id rhi.BufferID, offset int, data []byte) error {
	b, err := r.buffer(id)
	if err != nil {
		return err
	}
	if err := rhi.CheckRange(offset, len(data), b.desc.Size); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	r.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, b.buf)
	r.gl.BufferSubData(glapi.COPY_WRITE_BUFFER, offset, data)
	return r.glError("update buffer")
}

// ReadBufferData implements rhi.Renderer.
func (r *Renderer) ReadBufferData(id rhi.BufferID, offset int, dst []byte) error {
	b, err := r.buffer(id)
	if err != nil {
		return err
	}
	if err := rhi.CheckRange(offset, len(dst), b.desc.Size); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	r.gl.BindBuffer(glapi.COPY_READ_BUFFER, b.buf)
	r.gl.GetBufferSubData(glapi.COPY_READ_BUFFER, offset, dst)
	return r.glError("read buffer")
}

// CopyBuffer implements rhi.Renderer.
func (r *Renderer) CopyBuffer(srcID rhi.BufferID, srcOffset int, dstID rhi.BufferID, dstOffset int, size int) error {
	src, err := r.buffer(srcID)
	if err != nil {
		return err
	}
	dst, err := r.buffer(dstID)
	if err != nil {
		return err
	}
	if err := rhi.CheckRange(srcOffset, size, src.desc.Size); err != nil {
		return err
	}
	if err := rhi.CheckRange(dstOffset, size, dst.desc.Size); err != nil {
		return err
	}
	if src == dst && srcOffset < dstOffset+size && dstOffset < srcOffset+size {
		return fmt.Errorf("%w: overlapping copy within one buffer", rhi.ErrOutOfRange)
	}
	if size == 0 {
		return nil
	}
	r.gl.BindBuffer(glapi.COPY_READ_BUFFER, src.buf)
	r.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, dst.buf)
	r.gl.CopyBufferSubData(glapi.COPY_READ_BUFFER, glapi.COPY_WRITE_BUFFER, srcOffset, dstOffset, size)
	return r.glError("copy buffer")
}
