package opengl

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
)

const (
	drawRecordSize        = 16
	drawIndexedRecordSize = 20
	dispatchRecordSize    = 12
)

func (r *Renderer) drawable() error {
	if r.pass == nil {
		return fmt.Errorf("%w: draw outside a render pass", rhi.ErrInvalidState)
	}
	if r.bound == nil || r.bound.compute {
		return fmt.Errorf("%w: no graphics pipeline bound", rhi.ErrInvalidState)
	}
	if r.vertexArray == nil {
		r.gl.BindVertexArray(r.emptyVAO)
	}
	return nil
}

func (r *Renderer) indexed() error {
	if r.vertexArray == nil || !r.vertexArray.indexed {
		return fmt.Errorf("%w: indexed draw without an index buffer", rhi.ErrInvalidState)
	}
	return nil
}

// indirectBuffer binds the buffer holding drawCount records of the given
// size at target.
func (r *Renderer) indirectBuffer(target glapi.Enum, id rhi.BufferID, offset int, drawCount, stride uint32, record int) error {
	b, err := r.buffer(id)
	if err != nil {
		return err
	}
	if !b.desc.Usage.Contains(gputypes.BufferUsageIndirect) {
		return fmt.Errorf("%w: buffer lacks indirect usage", rhi.ErrMismatch)
	}
	if stride != 0 && int(stride) < record {
		return fmt.Errorf("%w: indirect stride %d below record size %d", rhi.ErrInvalidDescriptor, stride, record)
	}
	n := record
	if drawCount > 1 {
		n += int(drawCount-1) * int(max(stride, uint32(record)))
	}
	if err := rhi.CheckRange(offset, n, b.desc.Size); err != nil {
		return err
	}
	r.gl.BindBuffer(target, b.buf)
	return nil
}

// Draw implements rhi.Renderer.
func (r *Renderer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := r.drawable(); err != nil {
		return err
	}
	r.gl.DrawArraysInstancedBaseInstance(primitiveMode(r.topology()),
		int32(firstVertex), int32(vertexCount), int32(instanceCount), firstInstance)
	return r.checkCommand("draw")
}

// DrawIndexed implements rhi.Renderer.
func (r *Renderer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	if err := r.drawable(); err != nil {
		return err
	}
	if err := r.indexed(); err != nil {
		return err
	}
	f := r.vertexArray.indexFormat
	r.gl.DrawElementsInstancedBaseVertexBaseInstance(primitiveMode(r.topology()), int32(indexCount), indexType(f),
		int(firstIndex)*int(f.Size()), int32(instanceCount), vertexOffset, firstInstance)
	return r.checkCommand("draw indexed")
}

// DrawIndirect implements rhi.Renderer. A zero stride packs the records.
func (r *Renderer) DrawIndirect(buf rhi.BufferID, offset int, drawCount, stride uint32) error {
	if err := r.drawable(); err != nil {
		return err
	}
	if drawCount == 0 {
		return nil
	}
	if err := r.indirectBuffer(glapi.DRAW_INDIRECT_BUFFER, buf, offset, drawCount, stride, drawRecordSize); err != nil {
		return err
	}
	r.gl.MultiDrawArraysIndirect(primitiveMode(r.topology()), offset, int32(drawCount), int32(stride))
	return r.checkCommand("draw indirect")
}

// DrawIndexedIndirect implements rhi.Renderer. A zero stride packs the
// records.
func (r *Renderer) DrawIndexedIndirect(buf rhi.BufferID, offset int, drawCount, stride uint32) error {
	if err := r.drawable(); err != nil {
		return err
	}
	if err := r.indexed(); err != nil {
		return err
	}
	if drawCount == 0 {
		return nil
	}
	if err := r.indirectBuffer(glapi.DRAW_INDIRECT_BUFFER, buf, offset, drawCount, stride, drawIndexedRecordSize); err != nil {
		return err
	}
	r.gl.MultiDrawElementsIndirect(primitiveMode(r.topology()), indexType(r.vertexArray.indexFormat),
		offset, int32(drawCount), int32(stride))
	return r.checkCommand("draw indexed indirect")
}

func (r *Renderer) dispatchable() error {
	if r.pass != nil {
		return fmt.Errorf("%w: dispatch inside a render pass", rhi.ErrInvalidState)
	}
	if r.bound == nil || !r.bound.compute {
		return fmt.Errorf("%w: no compute pipeline bound", rhi.ErrInvalidState)
	}
	return nil
}

// DispatchCompute implements rhi.Renderer.
func (r *Renderer) DispatchCompute(x, y, z uint32) error {
	if err := r.dispatchable(); err != nil {
		return err
	}
	r.gl.DispatchCompute(x, y, z)
	return r.checkCommand("dispatch")
}

// DispatchComputeIndirect implements rhi.Renderer.
func (r *Renderer) DispatchComputeIndirect(buf rhi.BufferID, offset int) error {
	if err := r.dispatchable(); err != nil {
		return err
	}
	if err := r.indirectBuffer(glapi.DISPATCH_INDIRECT_BUFFER, buf, offset, 1, 0, dispatchRecordSize); err != nil {
		return err
	}
	r.gl.DispatchComputeIndirect(offset)
	return r.checkCommand("dispatch indirect")
}

// MemoryBarrier implements rhi.Renderer.
func (r *Renderer) MemoryBarrier(flags rhi.BarrierFlags) error {
	if bits := barrierMask(flags); bits != 0 {
		r.gl.MemoryBarrier(bits)
	}
	return r.checkCommand("memory barrier")
}
