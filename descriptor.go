package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// DescriptorType is the kind of resource a shader slot expects.
type DescriptorType uint8

const (
	// DescriptorUniformBuffer is a read-only uniform block.
	DescriptorUniformBuffer DescriptorType = iota
	// DescriptorStorageBuffer is a read-write shader storage block.
	DescriptorStorageBuffer
	// DescriptorSampledImage is a combined image and sampler.
	DescriptorSampledImage
	// DescriptorStorageImage is an image accessed with loads and stores.
	DescriptorStorageImage
	// DescriptorSampledImageArray is a bindless array of sampled images.
	DescriptorSampledImageArray
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorUniformBuffer:
		return "uniform-buffer"
	case DescriptorStorageBuffer:
		return "storage-buffer"
	case DescriptorSampledImage:
		return "sampled-image"
	case DescriptorStorageImage:
		return "storage-image"
	case DescriptorSampledImageArray:
		return "sampled-image-array"
	}
	return "unknown"
}

// Descriptor declares one shader-visible resource slot.
type Descriptor struct {
	Type    DescriptorType
	Binding uint32
	Stages  gputypes.ShaderStage
	// Count is the array length of DescriptorSampledImageArray slots.
	Count uint32
}

// ArraySize returns the number of resources the slot holds.
func (d Descriptor) ArraySize() uint32 {
	if d.Type == DescriptorSampledImageArray {
		return max(d.Count, 1)
	}
	return 1
}

// ValidateDescriptors checks that slots are unique and well formed.
func ValidateDescriptors(ds []Descriptor) error {
	seen := make(map[uint32]bool, len(ds))
	for _, d := range ds {
		if seen[d.Binding] {
			return fmt.Errorf("%w: binding %d declared twice", ErrInvalidDescriptor, d.Binding)
		}
		seen[d.Binding] = true
		if d.Stages == 0 {
			return fmt.Errorf("%w: binding %d has no shader stages", ErrInvalidDescriptor, d.Binding)
		}
		if d.Type > DescriptorSampledImageArray {
			return fmt.Errorf("%w: binding %d has type %d", ErrInvalidDescriptor, d.Binding, d.Type)
		}
		if d.Type == DescriptorSampledImageArray && d.Count == 0 {
			return fmt.Errorf("%w: binding %d is an empty image array", ErrInvalidDescriptor, d.Binding)
		}
	}
	return nil
}

// ResourceKind tags the variant held by a DescriptorBinding.
type ResourceKind uint8

const (
	// ResourceImage is a single image.
	ResourceImage ResourceKind = iota + 1
	// ResourceBuffer is a buffer range.
	ResourceBuffer
	// ResourceImageArray is a list of images for a bindless slot.
	ResourceImageArray
)

// BufferRange is a byte range of a buffer. A zero Size extends to the end
// of the buffer.
type BufferRange struct {
	Buffer BufferID
	Offset int
	Size   int
}

// DescriptorBinding pairs a Descriptor with a concrete resource. It is a
// tagged union built only through BindImage, BindBuffer and BindImageArray,
// which reject resources that do not match the descriptor type.
type DescriptorBinding struct {
	desc   Descriptor
	kind   ResourceKind
	image  ImageID
	buffer BufferRange
	images []ImageID
}

// BindImage binds img to a sampled or storage image slot.
func BindImage(d Descriptor, img ImageID) (DescriptorBinding, error) {
	if d.Type != DescriptorSampledImage && d.Type != DescriptorStorageImage {
		return DescriptorBinding{}, fmt.Errorf("%w: image bound to %v slot %d", ErrMismatch, d.Type, d.Binding)
	}
	if img.IsNull() {
		return DescriptorBinding{}, fmt.Errorf("%w: null image for slot %d", ErrInvalidHandle, d.Binding)
	}
	return DescriptorBinding{desc: d, kind: ResourceImage, image: img}, nil
}

// BindBuffer binds a buffer range to a uniform or storage buffer slot.
func BindBuffer(d Descriptor, buf BufferID, offset, size int) (DescriptorBinding, error) {
	if d.Type != DescriptorUniformBuffer && d.Type != DescriptorStorageBuffer {
		return DescriptorBinding{}, fmt.Errorf("%w: buffer bound to %v slot %d", ErrMismatch, d.Type, d.Binding)
	}
	if buf.IsNull() {
		return DescriptorBinding{}, fmt.Errorf("%w: null buffer for slot %d", ErrInvalidHandle, d.Binding)
	}
	if offset < 0 || size < 0 {
		return DescriptorBinding{}, fmt.Errorf("%w: buffer range %d+%d", ErrOutOfRange, offset, size)
	}
	return DescriptorBinding{desc: d, kind: ResourceBuffer, buffer: BufferRange{Buffer: buf, Offset: offset, Size: size}}, nil
}

// BindImageArray binds imgs to a sampled image array slot. The array may
// be shorter than the slot but not longer.
func BindImageArray(d Descriptor, imgs []ImageID) (DescriptorBinding, error) {
	if d.Type != DescriptorSampledImageArray {
		return DescriptorBinding{}, fmt.Errorf("%w: image array bound to %v slot %d", ErrMismatch, d.Type, d.Binding)
	}
	if len(imgs) == 0 || uint32(len(imgs)) > d.ArraySize() {
		return DescriptorBinding{}, fmt.Errorf("%w: %d images for array of %d", ErrOutOfRange, len(imgs), d.ArraySize())
	}
	for i, img := range imgs {
		if img.IsNull() {
			return DescriptorBinding{}, fmt.Errorf("%w: null image at array index %d", ErrInvalidHandle, i)
		}
	}
	return DescriptorBinding{desc: d, kind: ResourceImageArray, images: append([]ImageID(nil), imgs...)}, nil
}

// Descriptor returns the slot the binding targets.
func (b DescriptorBinding) Descriptor() Descriptor { return b.desc }

// Kind returns the variant tag. The zero binding has kind 0.
func (b DescriptorBinding) Kind() ResourceKind { return b.kind }

// Image returns the bound image of a ResourceImage binding.
func (b DescriptorBinding) Image() ImageID { return b.image }

// Buffer returns the bound range of a ResourceBuffer binding.
func (b DescriptorBinding) Buffer() BufferRange { return b.buffer }

// Images returns the bound images of a ResourceImageArray binding.
func (b DescriptorBinding) Images() []ImageID { return b.images }

// MatchBindings checks bindings against the slots a pipeline declares.
// Every binding must target a declared slot of the same type and array
// size, at most once.
func MatchBindings(slots []Descriptor, bindings []DescriptorBinding) error {
	bySlot := make(map[uint32]Descriptor, len(slots))
	for _, d := range slots {
		bySlot[d.Binding] = d
	}
	used := make(map[uint32]bool, len(bindings))
	for _, b := range bindings {
		if b.kind == 0 {
			return fmt.Errorf("%w: zero descriptor binding", ErrInvalidDescriptor)
		}
		d, ok := bySlot[b.desc.Binding]
		if !ok {
			return fmt.Errorf("%w: pipeline has no slot %d", ErrMismatch, b.desc.Binding)
		}
		if d.Type != b.desc.Type || d.ArraySize() != b.desc.ArraySize() {
			return fmt.Errorf("%w: slot %d is %v, binding is %v", ErrMismatch, d.Binding, d.Type, b.desc.Type)
		}
		if used[d.Binding] {
			return fmt.Errorf("%w: slot %d bound twice", ErrMismatch, d.Binding)
		}
		used[d.Binding] = true
	}
	return nil
}
