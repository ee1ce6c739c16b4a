package vulkan

import (
	"fmt"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
)

// hostMemory is the property set of staging and dynamic buffer memory.
const hostMemory = vkapi.MemoryHostVisible | vkapi.MemoryHostCoherent

// allocate returns a dedicated allocation satisfying req from the first
// memory type with the wanted properties.
func (r *Renderer) allocate(req vkapi.MemoryRequirements, want vkapi.MemoryProperty) (vkapi.DeviceMemory, error) {
	idx, ok := vkapi.FindMemoryType(r.memTypes, req.TypeBits, want)
	if !ok {
		return 0, fmt.Errorf("%w: no memory type with properties %#x in %#x", rhi.ErrUnsupported, uint32(want), req.TypeBits)
	}
	mem, err := r.dev.AllocateMemory(req.Size, idx)
	if err != nil {
		return 0, vkError("allocate memory", err)
	}
	return mem, nil
}

// hostBuffer is a buffer bound to persistently mapped host memory.
type hostBuffer struct {
	buf  vkapi.Buffer
	mem  vkapi.DeviceMemory
	data []byte
}

// newHostBuffer creates a mapped buffer of size bytes.
func (r *Renderer) newHostBuffer(size int, usage vkapi.BufferUsage) (*hostBuffer, error) {
	buf, err := r.dev.CreateBuffer(&vkapi.BufferCreateInfo{Size: uint64(size), Usage: usage})
	if err != nil {
		return nil, vkError("create buffer", err)
	}
	h := &hostBuffer{buf: buf}
	if h.mem, err = r.allocate(r.dev.BufferMemoryRequirements(buf), hostMemory); err != nil {
		r.freeHostBuffer(h)
		return nil, err
	}
	if err := r.dev.BindBufferMemory(buf, h.mem, 0); err != nil {
		r.freeHostBuffer(h)
		return nil, vkError("bind buffer memory", err)
	}
	data, err := r.dev.MapMemory(h.mem, 0, vkapi.WholeSize)
	if err != nil {
		r.freeHostBuffer(h)
		return nil, vkError("map memory", err)
	}
	h.data = data[:size]
	return h, nil
}

func (r *Renderer) freeHostBuffer(h *hostBuffer) {
	if h.data != nil {
		r.dev.UnmapMemory(h.mem)
		h.data = nil
	}
	if h.buf != 0 {
		r.dev.DestroyBuffer(h.buf)
	}
	if h.mem != 0 {
		r.dev.FreeMemory(h.mem)
	}
	h.buf, h.mem = 0, 0
}

// staged runs record with a transfer-only host buffer of size bytes in an
// immediate submission. done, when not nil, sees the buffer contents after
// the work has completed.
func (r *Renderer) staged(op string, size int, record func(s *hostBuffer, cb vkapi.CommandBuffer) error, done func(data []byte)) error {
	s, err := r.newHostBuffer(size, vkapi.BufferUsageTransferSrc|vkapi.BufferUsageTransferDst)
	if err != nil {
		return err
	}
	defer r.freeHostBuffer(s)
	if err := r.immediate(op, func(cb vkapi.CommandBuffer) error { return record(s, cb) }); err != nil {
		return err
	}
	if done != nil {
		done(s.data)
	}
	return nil
}
