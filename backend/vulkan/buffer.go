package vulkan

import (
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
)

type buffer struct {
	desc rhi.BufferDescriptor
	buf  vkapi.Buffer
	mem  vkapi.DeviceMemory

	// Dynamic buffers hold one region of stride bytes per frame slot in
	// data, which stays mapped. latest is the region with the newest
	// contents; stale regions are refreshed from it when their slot comes
	// around.
	data   []byte
	stride int
	latest int
	stale  [framesInFlight]bool
}

func (b *buffer) dynamic() bool { return b.data != nil }

func (b *buffer) region(slot int) []byte {
	return b.data[slot*b.stride : slot*b.stride+b.desc.Size]
}

func (r *Renderer) buffer(id rhi.BufferID) (*buffer, error) {
	b, ok := r.buffers.Get(arena.Handle(id))
	if !ok {
		return nil, fmt.Errorf("%w: buffer %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	return b, nil
}

// regionAlignment is the alignment of dynamic buffer regions, which bind
// at their base as any descriptor type.
func (r *Renderer) regionAlignment() uint64 {
	return max(uint64(r.caps.UniformOffsetAlignment), r.props.MinStorageBufferOffsetAlignment, 4)
}

// CreateBuffer implements rhi.Renderer. Static buffers live in device
// memory; dynamic buffers in mapped host memory with a region per frame
// slot.
func (r *Renderer) CreateBuffer(desc *rhi.BufferDescriptor) (rhi.BufferID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	usage := bufferUsageOf(desc.Usage) | vkapi.BufferUsageTransferSrc | vkapi.BufferUsageTransferDst
	b := &buffer{desc: *desc}
	size := uint64(desc.Size)
	want := vkapi.MemoryDeviceLocal
	if desc.Mode == rhi.BufferDynamic {
		b.stride = int(vkapi.AlignUp(size, r.regionAlignment()))
		size = uint64(b.stride * framesInFlight)
		want = hostMemory
	}

	var err error
	if b.buf, err = r.dev.CreateBuffer(&vkapi.BufferCreateInfo{Size: size, Usage: usage}); err != nil {
		return 0, vkError("create buffer", err)
	}
	if b.mem, err = r.allocate(r.dev.BufferMemoryRequirements(b.buf), want); err != nil {
		r.freeBuffer(b)
		return 0, err
	}
	if err := r.dev.BindBufferMemory(b.buf, b.mem, 0); err != nil {
		r.freeBuffer(b)
		return 0, vkError("bind buffer memory", err)
	}
	if desc.Mode == rhi.BufferDynamic {
		data, err := r.dev.MapMemory(b.mem, 0, size)
		if err != nil {
			r.freeBuffer(b)
			return 0, vkError("map buffer", err)
		}
		b.data = data
	}
	return rhi.BufferID(r.buffers.Insert(b)), nil
}

func (r *Renderer) freeBuffer(b *buffer) {
	if b.data != nil {
		r.dev.UnmapMemory(b.mem)
		b.data = nil
	}
	if b.buf != 0 {
		r.dev.DestroyBuffer(b.buf)
	}
	if b.mem != 0 {
		r.dev.FreeMemory(b.mem)
	}
	b.buf, b.mem = 0, 0
}

// DestroyBuffer implements rhi.Renderer.
func (r *Renderer) DestroyBuffer(id rhi.BufferID) {
	b, ok := r.buffers.Remove(arena.Handle(id))
	if !ok {
		return
	}
	r.release(func() { r.freeBuffer(b) })
}

// base returns the offset of the contents the device reads: the current
// slot's region inside a frame, the newest region outside one.
func (r *Renderer) base(b *buffer) uint64 {
	switch {
	case !b.dynamic():
		return 0
	case r.recording:
		return uint64(r.slot * b.stride)
	}
	return uint64(b.latest * b.stride)
}

// refreshDynamicBuffers brings the regions of slot up to date before a
// frame recorded in it.
func (r *Renderer) refreshDynamicBuffers(slot int) {
	r.buffers.Each(func(_ arena.Handle, b *buffer) {
		if b.dynamic() && b.stale[slot] {
			copy(b.region(slot), b.region(b.latest))
			b.stale[slot] = false
		}
	})
}

// writeDynamic writes into the region of the current slot. Outside a
// frame the slot's previous submission is waited for first.
func (r *Renderer) writeDynamic(b *buffer, offset int, data []byte) error {
	slot := r.slot
	if !r.recording {
		if err := r.dev.WaitForFences([]vkapi.Fence{r.frames[slot].fence}, fenceTimeout); err != nil {
			return vkError("wait for frame", err)
		}
	}
	region := b.region(slot)
	if b.stale[slot] {
		copy(region, b.region(b.latest))
	}
	copy(region[offset:], data)
	b.latest = slot
	for i := range b.stale {
		b.stale[i] = i != slot
	}
	return nil
}

// SetBufferData implements rhi.Renderer.
func (r *Renderer) SetBufferData(id rhi.BufferID, data []byte) error {
	return r.UpdateBufferData(id, 0, data)
}

// UpdateBufferData implements rhi.Renderer. Dynamic buffers are written in
// place; static buffers through a staging copy submitted at once.
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
	if b.dynamic() {
		return r.writeDynamic(b, offset, data)
	}
	return r.staged("update buffer", len(data), func(s *hostBuffer, cb vkapi.CommandBuffer) error {
		copy(s.data, data)
		r.dev.CmdPipelineBarrier(cb, vkapi.StageAllCommands, vkapi.StageTransfer, []vkapi.MemoryBarrier{{
			SrcAccess: vkapi.AccessMemoryRead | vkapi.AccessMemoryWrite,
			DstAccess: vkapi.AccessTransferWrite,
		}}, nil, nil)
		r.dev.CmdCopyBuffer(cb, s.buf, b.buf, []vkapi.BufferCopy{{DstOffset: uint64(offset), Size: uint64(len(data))}})
		r.dev.CmdPipelineBarrier(cb, vkapi.StageTransfer, vkapi.StageAllCommands, nil, []vkapi.BufferMemoryBarrier{{
			SrcAccess: vkapi.AccessTransferWrite,
			DstAccess: vkapi.AccessMemoryRead | vkapi.AccessMemoryWrite,
			Buffer:    b.buf,
			Offset:    uint64(offset),
			Size:      uint64(len(data)),
		}}, nil)
		return nil
	}, nil)
}

// ReadBufferData implements rhi.Renderer. Dynamic buffers return their
// newest host-written contents; static buffers are copied back after the
// submitted work completes.
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
	if b.dynamic() {
		copy(dst, b.region(b.latest)[offset:])
		return nil
	}
	return r.staged("read buffer", len(dst), func(s *hostBuffer, cb vkapi.CommandBuffer) error {
		r.dev.CmdPipelineBarrier(cb, vkapi.StageAllCommands, vkapi.StageTransfer, []vkapi.MemoryBarrier{{
			SrcAccess: vkapi.AccessMemoryWrite,
			DstAccess: vkapi.AccessTransferRead,
		}}, nil, nil)
		r.dev.CmdCopyBuffer(cb, b.buf, s.buf, []vkapi.BufferCopy{{SrcOffset: uint64(offset), Size: uint64(len(dst))}})
		r.dev.CmdPipelineBarrier(cb, vkapi.StageTransfer, vkapi.StageHost, []vkapi.MemoryBarrier{{
			SrcAccess: vkapi.AccessTransferWrite,
			DstAccess: vkapi.AccessHostRead,
		}}, nil, nil)
		return nil
	}, func(data []byte) { copy(dst, data) })
}

// CopyBuffer implements rhi.Renderer. Copies into static buffers are
// recorded in order with the open frame; copies into dynamic buffers are
// host writes.
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
	if dst.dynamic() {
		tmp := make([]byte, size)
		if err := r.ReadBufferData(srcID, srcOffset, tmp); err != nil {
			return err
		}
		return r.writeDynamic(dst, dstOffset, tmp)
	}
	return r.transfer("copy buffer", func(cb vkapi.CommandBuffer) error {
		r.dev.CmdPipelineBarrier(cb, vkapi.StageAllCommands, vkapi.StageTransfer, []vkapi.MemoryBarrier{{
			SrcAccess: vkapi.AccessMemoryWrite,
			DstAccess: vkapi.AccessTransferRead | vkapi.AccessTransferWrite,
		}}, nil, nil)
		r.dev.CmdCopyBuffer(cb, src.buf, dst.buf, []vkapi.BufferCopy{{
			SrcOffset: r.base(src) + uint64(srcOffset),
			DstOffset: uint64(dstOffset),
			Size:      uint64(size),
		}})
		r.dev.CmdPipelineBarrier(cb, vkapi.StageTransfer, vkapi.StageAllCommands, []vkapi.MemoryBarrier{{
			SrcAccess: vkapi.AccessTransferWrite,
			DstAccess: vkapi.AccessMemoryRead | vkapi.AccessMemoryWrite,
		}}, nil, nil)
		return nil
	})
}
