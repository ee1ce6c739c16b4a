package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
)

const (
	drawRecordSize        = 16
	drawIndexedRecordSize = 20
	dispatchRecordSize    = 12
)

func (r *Renderer) drawable() (vkapi.CommandBuffer, error) {
	if r.pass == nil {
		return 0, fmt.Errorf("%w: draw outside a render pass", rhi.ErrInvalidState)
	}
	if r.bound == nil || r.bound.compute {
		return 0, fmt.Errorf("%w: no graphics pipeline bound", rhi.ErrInvalidState)
	}
	return r.frames[r.slot].cb, nil
}

func (r *Renderer) indexed() error {
	if r.vertexArray == nil || r.vertexArray.index == nil {
		return fmt.Errorf("%w: indexed draw without an index buffer", rhi.ErrInvalidState)
	}
	return nil
}

// indirectBuffer checks that id holds drawCount records of the given size
// at offset and returns it with the device offset of the first record.
func (r *Renderer) indirectBuffer(id rhi.BufferID, offset int, drawCount, stride uint32, record int) (*buffer, uint64, error) {
	b, err := r.buffer(id)
	if err != nil {
		return nil, 0, err
	}
	if !b.desc.Usage.Contains(gputypes.BufferUsageIndirect) {
		return nil, 0, fmt.Errorf("%w: buffer lacks indirect usage", rhi.ErrMismatch)
	}
	if stride != 0 && int(stride) < record {
		return nil, 0, fmt.Errorf("%w: indirect stride %d below record size %d", rhi.ErrInvalidDescriptor, stride, record)
	}
	if offset%4 != 0 {
		return nil, 0, fmt.Errorf("%w: indirect offset %d not a multiple of 4", rhi.ErrInvalidDescriptor, offset)
	}
	n := record
	if drawCount > 1 {
		n += int(drawCount-1) * int(max(stride, uint32(record)))
	}
	if err := rhi.CheckRange(offset, n, b.desc.Size); err != nil {
		return nil, 0, err
	}
	return b, r.base(b) + uint64(offset), nil
}

// Draw implements rhi.Renderer.
func (r *Renderer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	cb, err := r.drawable()
	if err != nil {
		return err
	}
	r.dev.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

// DrawIndexed implements rhi.Renderer.
func (r *Renderer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	cb, err := r.drawable()
	if err != nil {
		return err
	}
	if err := r.indexed(); err != nil {
		return err
	}
	r.dev.CmdDrawIndexed(cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	return nil
}

// DrawIndirect implements rhi.Renderer. A zero stride packs the records.
func (r *Renderer) DrawIndirect(buf rhi.BufferID, offset int, drawCount, stride uint32) error {
	cb, err := r.drawable()
	if err != nil {
		return err
	}
	if drawCount == 0 {
		return nil
	}
	b, at, err := r.indirectBuffer(buf, offset, drawCount, stride, drawRecordSize)
	if err != nil {
		return err
	}
	r.dev.CmdDrawIndirect(cb, b.buf, at, drawCount, max(stride, drawRecordSize))
	return nil
}

// DrawIndexedIndirect implements rhi.Renderer. A zero stride packs the
// records.
func (r *Renderer) DrawIndexedIndirect(buf rhi.BufferID, offset int, drawCount, stride uint32) error {
	cb, err := r.drawable()
	if err != nil {
		return err
	}
	if err := r.indexed(); err != nil {
		return err
	}
	if drawCount == 0 {
		return nil
	}
	b, at, err := r.indirectBuffer(buf, offset, drawCount, stride, drawIndexedRecordSize)
	if err != nil {
		return err
	}
	r.dev.CmdDrawIndexedIndirect(cb, b.buf, at, drawCount, max(stride, drawIndexedRecordSize))
	return nil
}

func (r *Renderer) dispatchable() (vkapi.CommandBuffer, error) {
	cb, err := r.frameCommands("dispatch")
	if err != nil {
		return 0, err
	}
	if r.pass != nil {
		return 0, fmt.Errorf("%w: dispatch inside a render pass", rhi.ErrInvalidState)
	}
	if r.bound == nil || !r.bound.compute {
		return 0, fmt.Errorf("%w: no compute pipeline bound", rhi.ErrInvalidState)
	}
	return cb, nil
}

// DispatchCompute implements rhi.Renderer.
func (r *Renderer) DispatchCompute(x, y, z uint32) error {
	cb, err := r.dispatchable()
	if err != nil {
		return err
	}
	r.dev.CmdDispatch(cb, x, y, z)
	return nil
}

// DispatchComputeIndirect implements rhi.Renderer.
func (r *Renderer) DispatchComputeIndirect(buf rhi.BufferID, offset int) error {
	cb, err := r.dispatchable()
	if err != nil {
		return err
	}
	b, at, err := r.indirectBuffer(buf, offset, 1, 0, dispatchRecordSize)
	if err != nil {
		return err
	}
	r.dev.CmdDispatchIndirect(cb, b.buf, at)
	return nil
}

// barrierScopes maps each barrier bit to the stages and accesses that
// must wait for prior shader writes.
var barrierScopes = []struct {
	flag   rhi.BarrierFlags
	stage  vkapi.PipelineStage
	access vkapi.AccessFlags
}{
	{rhi.BarrierVertexAttrib, vkapi.StageVertexInput, vkapi.AccessVertexAttributeRead},
	{rhi.BarrierIndex, vkapi.StageVertexInput, vkapi.AccessIndexRead},
	{rhi.BarrierUniform, shaderStages, vkapi.AccessUniformRead},
	{rhi.BarrierTextureFetch, shaderStages, vkapi.AccessShaderRead},
	{rhi.BarrierShaderImage, shaderStages, allShaderAccesses},
	{rhi.BarrierIndirect, vkapi.StageDrawIndirect, vkapi.AccessIndirectCommandRead},
	{rhi.BarrierBufferUpdate, vkapi.StageTransfer, vkapi.AccessTransferRead | vkapi.AccessTransferWrite},
	{rhi.BarrierTextureUpdate, vkapi.StageTransfer, vkapi.AccessTransferRead | vkapi.AccessTransferWrite},
	{rhi.BarrierFramebuffer, vkapi.StageColorAttachmentOutput | fragmentTests, colorWrite | depthWrite},
	{rhi.BarrierShaderStorage, shaderStages, allShaderAccesses},
}

// MemoryBarrier implements rhi.Renderer. It orders shader writes before
// the accesses flags select. Inside a render pass it records a global
// memory barrier only.
func (r *Renderer) MemoryBarrier(flags rhi.BarrierFlags) error {
	cb, err := r.frameCommands("memory barrier")
	if err != nil {
		return err
	}
	var stage vkapi.PipelineStage
	var access vkapi.AccessFlags
	for _, s := range barrierScopes {
		if flags&s.flag != 0 {
			stage |= s.stage
			access |= s.access
		}
	}
	if stage == 0 {
		return nil
	}
	r.dev.CmdPipelineBarrier(cb, shaderStages, stage, []vkapi.MemoryBarrier{{
		SrcAccess: vkapi.AccessShaderWrite,
		DstAccess: access,
	}}, nil, nil)
	return nil
}
