package vulkan

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
)

// slot is a descriptor resolved to renderer objects.
type slot struct {
	desc rhi.Descriptor

	buf          *buffer
	offset, size int

	images []*image
}

// descriptorSetBinding owns a native set per frame slot. A set is
// rewritten from slots the first time it is bound after a change, when
// the frame that last used it has completed.
type descriptorSetBinding struct {
	descriptors []rhi.Descriptor
	slots       []slot

	pool  vkapi.DescriptorPool
	sets  [framesInFlight]vkapi.DescriptorSet
	dirty [framesInFlight]bool
	// used is the frame count of the last bind per set.
	used [framesInFlight]uint64
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
	if len(p.descriptors) > 0 {
		if err := r.allocateSets(d, p.setLayout); err != nil {
			return 0, err
		}
	}
	return rhi.DescriptorSetBindingID(r.bindings.Insert(d)), nil
}

// allocateSets creates a pool sized for exactly one set per frame slot.
func (r *Renderer) allocateSets(d *descriptorSetBinding, layout vkapi.DescriptorSetLayout) error {
	counts := make(map[vkapi.DescriptorType]uint32)
	var order []vkapi.DescriptorType
	for _, desc := range d.descriptors {
		t := descriptorType(desc.Type)
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t] += desc.ArraySize() * framesInFlight
	}
	sizes := make([]vkapi.DescriptorPoolSize, len(order))
	for i, t := range order {
		sizes[i] = vkapi.DescriptorPoolSize{Type: t, Count: counts[t]}
	}
	pool, err := r.dev.CreateDescriptorPool(&vkapi.DescriptorPoolCreateInfo{MaxSets: framesInFlight, Sizes: sizes})
	if err != nil {
		return vkError("create descriptor pool", err)
	}
	layouts := make([]vkapi.DescriptorSetLayout, framesInFlight)
	for i := range layouts {
		layouts[i] = layout
	}
	sets, err := r.dev.AllocateDescriptorSets(pool, layouts)
	if err != nil {
		r.dev.DestroyDescriptorPool(pool)
		return vkError("allocate descriptor sets", err)
	}
	d.pool = pool
	copy(d.sets[:], sets)
	for i := range d.dirty {
		d.dirty[i] = true
	}
	return nil
}

// UpdateDescriptorSetBinding implements rhi.Renderer. The binding cannot
// change once bound in the open frame.
func (r *Renderer) UpdateDescriptorSetBinding(id rhi.DescriptorSetBindingID, bindings []rhi.DescriptorBinding) error {
	d, ok := r.bindings.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: descriptor set binding %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	if r.recording && d.used[r.slot] == r.frameCount {
		return fmt.Errorf("%w: descriptor set binding updated after use in this frame", rhi.ErrInvalidState)
	}
	if err := r.fill(d, bindings); err != nil {
		return err
	}
	for i := range d.dirty {
		d.dirty[i] = true
	}
	return nil
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
			return err
		}
		slots = append(slots, s)
	}
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
		align := r.caps.UniformOffsetAlignment
		if s.desc.Type == rhi.DescriptorStorageBuffer {
			align = max(int(r.props.MinStorageBufferOffsetAlignment), 1)
		}
		if rng.Offset%align != 0 {
			return s, fmt.Errorf("%w: binding %d offset %d not aligned to %d",
				rhi.ErrInvalidDescriptor, s.desc.Binding, rng.Offset, align)
		}
		s.buf, s.offset, s.size = buf, rng.Offset, size
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
		s.images = []*image{img}
	case rhi.ResourceImageArray:
		for _, id := range b.Images() {
			img, err := r.image(id)
			if err != nil {
				return s, err
			}
			if !img.desc.Usage.Contains(gputypes.TextureUsageTextureBinding) {
				return s, fmt.Errorf("%w: binding %d array holds a non-sampled image", rhi.ErrMismatch, s.desc.Binding)
			}
			s.images = append(s.images, img)
		}
	}
	return s, nil
}

// writes returns the native writes of d's slots for the set of frame
// slot i. Short image arrays repeat their last image so that every
// element is valid.
func (r *Renderer) writes(d *descriptorSetBinding, i int) []vkapi.WriteDescriptorSet {
	out := make([]vkapi.WriteDescriptorSet, 0, len(d.slots))
	for _, s := range d.slots {
		w := vkapi.WriteDescriptorSet{Set: d.sets[i], Binding: s.desc.Binding, Type: descriptorType(s.desc.Type)}
		if s.buf != nil {
			base := uint64(0)
			if s.buf.dynamic() {
				base = uint64(i * s.buf.stride)
			}
			w.Buffers = []vkapi.DescriptorBufferInfo{{
				Buffer: s.buf.buf,
				Offset: base + uint64(s.offset),
				Range:  uint64(s.size),
			}}
			out = append(out, w)
			continue
		}
		n := max(int(s.desc.ArraySize()), len(s.images))
		for k := range n {
			img := s.images[min(k, len(s.images)-1)]
			info := vkapi.DescriptorImageInfo{View: img.view, Layout: img.rest}
			if s.desc.Type != rhi.DescriptorStorageImage {
				info.Sampler = img.sampler
			}
			w.Images = append(w.Images, info)
		}
		out = append(out, w)
	}
	return out
}

// DestroyDescriptorSetBinding implements rhi.Renderer.
func (r *Renderer) DestroyDescriptorSetBinding(id rhi.DescriptorSetBindingID) {
	d, ok := r.bindings.Remove(arena.Handle(id))
	if !ok || d.pool == 0 {
		return
	}
	pool := d.pool
	r.release(func() { r.dev.DestroyDescriptorPool(pool) })
}

// BindDescriptorSetBinding implements rhi.Renderer. The set of the current
// frame slot is bound at set index zero of the bound pipeline.
func (r *Renderer) BindDescriptorSetBinding(id rhi.DescriptorSetBindingID) error {
	d, ok := r.bindings.Get(arena.Handle(id))
	if !ok {
		return fmt.Errorf("%w: descriptor set binding %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	cb, err := r.frameCommands("bind descriptor set binding")
	if err != nil {
		return err
	}
	if r.bound == nil {
		return fmt.Errorf("%w: no pipeline bound", rhi.ErrInvalidState)
	}
	if !slices.Equal(d.descriptors, r.bound.descriptors) {
		return fmt.Errorf("%w: binding layout differs from the bound pipeline", rhi.ErrMismatch)
	}
	if d.pool == 0 {
		return nil
	}
	i := r.slot
	if d.dirty[i] {
		r.dev.UpdateDescriptorSets(r.writes(d, i))
		d.dirty[i] = false
	}
	point := vkapi.BindPointGraphics
	if r.bound.compute {
		point = vkapi.BindPointCompute
	}
	r.dev.CmdBindDescriptorSets(cb, point, r.bound.layout, 0, []vkapi.DescriptorSet{d.sets[i]}, nil)
	d.used[i] = r.frameCount
	return nil
}
