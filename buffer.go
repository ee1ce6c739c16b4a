package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BufferMode selects how a buffer is updated from the CPU.
type BufferMode uint8

const (
	// BufferStatic buffers live in device memory. Updates go through a
	// staging copy.
	BufferStatic BufferMode = iota
	// BufferDynamic buffers live in host-visible memory and are written in
	// place. On pipelined backends each frame slot owns its own copy.
	BufferDynamic
)

func (m BufferMode) String() string {
	if m == BufferDynamic {
		return "dynamic"
	}
	return "static"
}

// bufferBindUsages are the usages that make a buffer bindable.
const bufferBindUsages = gputypes.BufferUsageVertex | gputypes.BufferUsageIndex |
	gputypes.BufferUsageUniform | gputypes.BufferUsageStorage | gputypes.BufferUsageIndirect

// BufferDescriptor describes a linear buffer. Copy usages are implied.
type BufferDescriptor struct {
	Size  int
	Usage gputypes.BufferUsage
	Mode  BufferMode
}

// Validate checks the descriptor for contradictions.
func (d *BufferDescriptor) Validate() error {
	if d.Size <= 0 {
		return fmt.Errorf("%w: buffer size %d", ErrInvalidDescriptor, d.Size)
	}
	if d.Usage&bufferBindUsages == 0 {
		return fmt.Errorf("%w: buffer has no vertex, index, uniform, storage or indirect usage", ErrInvalidDescriptor)
	}
	return nil
}

// CheckRange returns ErrOutOfRange unless [offset, offset+n) lies within a
// resource of the given size.
func CheckRange(offset, n, size int) error {
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf("%w: [%d,%d) exceeds %d bytes", ErrOutOfRange, offset, offset+n, size)
	}
	return nil
}
