package opengl

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/arena"
)

// slot is a descriptor resolved to GL objects.
type slot struct {
	desc rhi.Descriptor

	buf          glapi.Buffer
	offset, size int

	images []*image

	// handles holds the bindless handles of an image array, whose images
	// stay resident for the life of the slot.
	handles glapi.Buffer
}

type descriptorSetBinding struct {
	descriptors []rhi.Descriptor
	slots       []slot
}

// CreateDescriptorSetBinding implements rhi.Renderer. Bindings are checked
// against the slots the pipeline declares.
func (r *Renderer) CreateDescriptorSetBinding(id rhi.PipelineID, bindings []rhi.DescriptorBinding) (rhi.DescriptorSetBindingID, error) {
	p, ok := r.pipelines.Get(arena.Handle(id))
	if !ok {
		return 0, fmt.Errorf("%w: pipeline %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	d := &descriptorSetBinding{descriptors: p.descriptors}
	if err := r.fill(d, bindings); err != nil {
		return 0, err
	}
	return rhi.DescriptorSetBindingID(r.bindings.Insert(d)), nil
}

// UpdateDescriptorSetBinding implements rhi.Renderer.
func (r *Renderer) UpdateDescriptorSetBinding(id rhi.DescriptorSetBindingID, bindings []rhi.DescriptorBinding) error {
	d, ok := r.bindings.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: descriptor set binding %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	return r.fill(d, bindings)
}

// fill resolves bindings and replaces the slots of d. On error d is left
// unchanged.
func (r *Renderer) fill(d *descriptorSetBinding, bindings []rhi.DescriptorBinding) error {
	if err := rhi.MatchBindings(d.descriptors, bindings); err != nil {
		return err
	}
	slots := make([]slot, 0, len(bindings))
	for _, b := range bindings {
		s, err := r.resolve(b)
		if err != nil {
			r.releaseSlots(slots)
			return err
		}
		slots = append(slots, s)
	}
	r.releaseSlots(d.slots)
	d.slots = slots
	return nil
}

func (r *Renderer) resolve(b rhi.DescriptorBinding) (slot, error) {
	s := slot{desc: b.Descriptor()}
	switch b.Kind() {
	case rhi.ResourceBuffer:
		rng := b.Buffer()
		buf, err := r.buffer(rng.Buffer)
		if err != nil {
			return s, err
		}
		usage := gputypes.BufferUsageUniform
		if s.desc.Type == rhi.DescriptorStorageBuffer {
			usage = gputypes.BufferUsageStorage
		}
		if !buf.desc.Usage.Contains(usage) {
			return s, fmt.Errorf("%w: binding %d buffer lacks %v usage", rhi.ErrMismatch, s.desc.Binding, s.desc.Type)
		}
		size := rng.Size
		if size == 0 {
			size = buf.desc.Size - rng.Offset
		}
		if size <= 0 {
			return s, fmt.Errorf("%w: binding %d offset %d past buffer end", rhi.ErrOutOfRange, s.desc.Binding, rng.Offset)
		}
		if err := rhi.CheckRange(rng.Offset, size, buf.desc.Size); err != nil {
			return s, err
		}
		if s.desc.Type == rhi.DescriptorUniformBuffer && rng.Offset%r.caps.UniformOffsetAlignment != 0 {
			return s, fmt.Errorf("%w: binding %d offset %d not aligned to %d",
				rhi.ErrInvalidDescriptor, s.desc.Binding, rng.Offset, r.caps.UniformOffsetAlignment)
		}
		s.buf, s.offset, s.size = buf.buf, rng.Offset, size
	case rhi.ResourceImage:
		img, err := r.image(b.Image())
		if err != nil {
			return s, err
		}
		usage := gputypes.TextureUsageTextureBinding
		if s.desc.Type == rhi.DescriptorStorageImage {
			usage = gputypes.TextureUsageStorageBinding
		}
		if !img.desc.Usage.Contains(usage) {
			return s, fmt.Errorf("%w: binding %d image lacks %v usage", rhi.ErrMismatch, s.desc.Binding, s.desc.Type)
		}
		if s.desc.Binding >= scratchUnit {
			return s, fmt.Errorf("%w: binding %d collides with the scratch unit", rhi.ErrOutOfRange, s.desc.Binding)
		}
		s.images = []*image{img}
	case rhi.ResourceImageArray:
		for _, id := range b.Images() {
			img, err := r.image(id)
			if err != nil {
				return s, err
			}
			if !img.bindless() {
				return s, fmt.Errorf("%w: binding %d array holds a non-sampled image", rhi.ErrMismatch, s.desc.Binding)
			}
			s.images = append(s.images, img)
		}
		if r.caps.Bindless {
			return r.handleBuffer(s)
		}
		if s.desc.Binding+uint32(len(s.images)) > scratchUnit {
			return s, fmt.Errorf("%w: binding %d array of %d exceeds the texture units",
				rhi.ErrOutOfRange, s.desc.Binding, len(s.images))
		}
	}
	return s, nil
}

// handleBuffer makes the images of an array resident and stores their
// handles in a storage buffer bound at the array's binding.
func (r *Renderer) handleBuffer(s slot) (slot, error) {
	data := make([]byte, 8*len(s.images))
	for i, img := range s.images {
		if err := r.makeResident(img); err != nil {
			for _, held := range s.images[:i] {
				r.makeNonResident(held)
			}
			return s, err
		}
		binary.LittleEndian.PutUint64(data[8*i:], img.handle)
	}
	r.gl.GetError()
	s.handles = r.gl.GenBuffer()
	r.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, s.handles)
	r.gl.BufferData(glapi.COPY_WRITE_BUFFER, len(data), data, glapi.STATIC_DRAW)
	if err := r.glError("create bindless handle buffer"); err != nil {
		r.gl.DeleteBuffer(s.handles)
		for _, img := range s.images {
			r.makeNonResident(img)
		}
		return s, err
	}
	return s, nil
}

func (r *Renderer) releaseSlots(slots []slot) {
	for _, s := range slots {
		if s.handles == 0 {
			continue
		}
		r.gl.DeleteBuffer(s.handles)
		for _, img := range s.images {
			r.makeNonResident(img)
		}
	}
}

// DestroyDescriptorSetBinding implements rhi.Renderer.
func (r *Renderer) DestroyDescriptorSetBinding(id rhi.DescriptorSetBindingID) {
	if d, ok := r.bindings.Remove(arena.Handle(id)); ok {
		r.releaseSlots(d.slots)
	}
}

// BindDescriptorSetBinding implements rhi.Renderer. Buffers bind to the
// indexed target named by the slot binding, images to the texture or
// image unit of the same number.
func (r *Renderer) BindDescriptorSetBinding(id rhi.DescriptorSetBindingID) error {
	d, ok := r.bindings.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: descriptor set binding %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	if r.bound == nil {
		return fmt.Errorf("%w: no pipeline bound", rhi.ErrInvalidState)
	}
	if !slices.Equal(d.descriptors, r.bound.descriptors) {
		return fmt.Errorf("%w: binding layout differs from the bound pipeline", rhi.ErrMismatch)
	}
	for _, s := range d.slots {
		switch s.desc.Type {
		case rhi.DescriptorUniformBuffer:
			r.gl.BindBufferRange(glapi.UNIFORM_BUFFER, s.desc.Binding, s.buf, s.offset, s.size)
		case rhi.DescriptorStorageBuffer:
			r.gl.BindBufferRange(glapi.SHADER_STORAGE_BUFFER, s.desc.Binding, s.buf, s.offset, s.size)
		case rhi.DescriptorSampledImage:
			r.gl.ActiveTexture(s.desc.Binding)
			r.gl.BindTexture(s.images[0].target, s.images[0].tex)
		case rhi.DescriptorStorageImage:
			img := s.images[0]
			r.gl.BindImageTexture(s.desc.Binding, img.tex, 0, glapi.READ_WRITE, img.pf.internal)
		case rhi.DescriptorSampledImageArray:
			if s.handles != 0 {
				r.gl.BindBufferBase(glapi.SHADER_STORAGE_BUFFER, s.desc.Binding, s.handles)
				continue
			}
			for i, img := range s.images {
				r.gl.ActiveTexture(s.desc.Binding + uint32(i))
				r.gl.BindTexture(img.target, img.tex)
			}
		}
	}
	return r.checkCommand("bind descriptor set binding")
}
