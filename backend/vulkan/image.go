package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/internal/arena"
)

type image struct {
	desc   rhi.ImageDescriptor
	levels int
	format vkapi.Format
	aspect vkapi.ImageAspect
	// rest is the layout every level is in between operations.
	rest vkapi.ImageLayout

	img  vkapi.Image
	mem  vkapi.DeviceMemory
	view vkapi.ImageView
	// target is the level-0 view framebuffers attach. It is view itself
	// for single-level color images.
	target  vkapi.ImageView
	sampler vkapi.Sampler
}

func (r *Renderer) image(id rhi.ImageID) (*image, error) {
	img, ok := r.images.Get(arena.Handle(id))
	if !ok {
		return nil, fmt.Errorf("%w: image %#x", rhi.ErrInvalidHandle, uint64(id))
	}
	return img, nil
}

func (r *Renderer) lookupImage(id rhi.ImageID) (*rhi.ImageDescriptor, bool) {
	img, ok := r.images.Get(arena.Handle(id))
	if !ok {
		return nil, false
	}
	return &img.desc, true
}

// CreateImage implements rhi.Renderer.
func (r *Renderer) CreateImage(desc *rhi.ImageDescriptor) (rhi.ImageID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	if desc.Width > r.caps.MaxImageDimension || desc.Height > r.caps.MaxImageDimension {
		return 0, fmt.Errorf("%w: image %dx%d exceeds %d", rhi.ErrUnsupported, desc.Width, desc.Height, r.caps.MaxImageDimension)
	}
	if desc.SampleCount() > r.caps.MaxSamples {
		return 0, fmt.Errorf("%w: %d samples", rhi.ErrUnsupported, desc.Samples)
	}
	img, err := r.newImage(desc)
	if err != nil {
		return 0, err
	}
	return rhi.ImageID(r.images.Insert(img)), nil
}

// newImage creates an image in device memory and moves it into its resting
// layout. Transfer usage is always requested so every image can be
// uploaded, read back and copied.
func (r *Renderer) newImage(desc *rhi.ImageDescriptor) (*image, error) {
	format, ok := formatOf(desc.Format)
	if !ok {
		return nil, fmt.Errorf("%w: image format %v", rhi.ErrUnsupported, desc.Format)
	}
	img := &image{
		desc:   *desc,
		levels: desc.Levels(),
		format: format,
		aspect: aspectOf(format),
		rest:   restLayout(desc),
	}
	usage := vkapi.ImageUsageTransferSrc | vkapi.ImageUsageTransferDst
	if desc.Usage.Contains(gputypes.TextureUsageTextureBinding) {
		usage |= vkapi.ImageUsageSampled
	}
	if desc.Usage.Contains(gputypes.TextureUsageStorageBinding) {
		usage |= vkapi.ImageUsageStorage
	}
	if desc.Usage.Contains(gputypes.TextureUsageRenderAttachment) {
		if format.IsDepth() {
			usage |= vkapi.ImageUsageDepthStencilAttachment
		} else {
			usage |= vkapi.ImageUsageColorAttachment
		}
	}

	var err error
	img.img, err = r.dev.CreateImage(&vkapi.ImageCreateInfo{
		Format:    format,
		Width:     uint32(desc.Width),
		Height:    uint32(desc.Height),
		MipLevels: uint32(img.levels),
		Samples:   uint32(desc.SampleCount()),
		Usage:     usage,
	})
	if err != nil {
		return nil, vkError("create image", err)
	}
	if img.mem, err = r.allocate(r.dev.ImageMemoryRequirements(img.img), vkapi.MemoryDeviceLocal); err != nil {
		r.freeImage(img)
		return nil, err
	}
	if err := r.dev.BindImageMemory(img.img, img.mem, 0); err != nil {
		r.freeImage(img)
		return nil, vkError("bind image memory", err)
	}

	// Sampled views of depth-stencil images read depth only.
	viewAspect := img.aspect
	if format.IsDepth() {
		viewAspect = vkapi.AspectDepth
	}
	img.view, err = r.dev.CreateImageView(&vkapi.ImageViewCreateInfo{
		Image:  img.img,
		Format: format,
		Range:  vkapi.SubresourceRange{Aspect: viewAspect, LevelCount: uint32(img.levels)},
	})
	if err != nil {
		r.freeImage(img)
		return nil, vkError("create image view", err)
	}
	img.target = img.view
	if img.levels > 1 || viewAspect != img.aspect {
		img.target, err = r.dev.CreateImageView(&vkapi.ImageViewCreateInfo{
			Image:  img.img,
			Format: format,
			Range:  vkapi.SubresourceRange{Aspect: img.aspect, LevelCount: 1},
		})
		if err != nil {
			r.freeImage(img)
			return nil, vkError("create image view", err)
		}
	}
	if desc.Usage.Contains(gputypes.TextureUsageTextureBinding) {
		img.sampler, err = r.dev.CreateSampler(&vkapi.SamplerCreateInfo{
			MagFilter:  filterOf(desc.MagFilter),
			MinFilter:  filterOf(desc.MinFilter),
			MipmapMode: mipmapModeOf(desc.MipFilter),
			AddressU:   addressModeOf(desc.WrapU),
			AddressV:   addressModeOf(desc.WrapV),
			MaxLod:     maxLod(desc.MipFilter, img.levels),
		})
		if err != nil {
			r.freeImage(img)
			return nil, vkError("create sampler", err)
		}
	}

	err = r.immediate("initialize image", func(cb vkapi.CommandBuffer) error {
		r.transition(cb, img.img, img.aspect, 0, img.levels, layoutUndefined, img.rest)
		return nil
	})
	if err != nil {
		r.freeImage(img)
		return nil, err
	}
	return img, nil
}

// freeImage destroys the native objects of img at once.
func (r *Renderer) freeImage(img *image) {
	if img.sampler != 0 {
		r.dev.DestroySampler(img.sampler)
	}
	if img.target != 0 && img.target != img.view {
		r.dev.DestroyImageView(img.target)
	}
	if img.view != 0 {
		r.dev.DestroyImageView(img.view)
	}
	if img.img != 0 {
		r.dev.DestroyImage(img.img)
	}
	if img.mem != 0 {
		r.dev.FreeMemory(img.mem)
	}
	*img = image{desc: img.desc}
}

// DestroyImage implements rhi.Renderer.
func (r *Renderer) DestroyImage(id rhi.ImageID) {
	img, ok := r.images.Remove(arena.Handle(id))
	if !ok {
		return
	}
	r.release(func() { r.freeImage(img) })
}

func (r *Renderer) checkLevel(img *image, level int) error {
	if level < 0 || level >= img.levels {
		return fmt.Errorf("%w: mip level %d of %d", rhi.ErrOutOfRange, level, img.levels)
	}
	if img.desc.SampleCount() > 1 {
		return fmt.Errorf("%w: transfer to a multisampled image", rhi.ErrUnsupported)
	}
	return nil
}

// copyAspect is the aspect buffer copies of img address. Depth-stencil
// images transfer their depth.
func (img *image) copyAspect() vkapi.ImageAspect {
	if img.aspect&vkapi.AspectDepth != 0 {
		return vkapi.AspectDepth
	}
	return img.aspect
}

func (img *image) extent(level int) vkapi.Extent2D {
	w, h := img.desc.LevelExtent(level)
	return vkapi.Extent2D{Width: uint32(w), Height: uint32(h)}
}

// SetImageData implements rhi.Renderer. The upload is submitted at once,
// so inside a frame it takes effect before any of the frame's commands.
func (r *Renderer) SetImageData(id rhi.ImageID, level int, data []byte) error {
	img, err := r.image(id)
	if err != nil {
		return err
	}
	if err := r.checkLevel(img, level); err != nil {
		return err
	}
	n := img.desc.LevelSize(level)
	if len(data) != n {
		return fmt.Errorf("%w: %d bytes for a %d byte level", rhi.ErrMismatch, len(data), n)
	}
	return r.staged("set image data", n, func(s *hostBuffer, cb vkapi.CommandBuffer) error {
		copy(s.data, data)
		layout := r.beginTransfer(cb, img, level, 1, layoutTransferDst)
		r.dev.CmdCopyBufferToImage(cb, s.buf, img.img, layout, []vkapi.BufferImageCopy{{
			Aspect:   img.copyAspect(),
			MipLevel: uint32(level),
			Extent:   img.extent(level),
		}})
		r.endTransfer(cb, img, level, 1, layout)
		return nil
	}, nil)
}

// ReadImageData implements rhi.Renderer. Work recorded in an open frame
// is not yet visible to the read.
func (r *Renderer) ReadImageData(id rhi.ImageID, level int, dst []byte) error {
	img, err := r.image(id)
	if err != nil {
		return err
	}
	if err := r.checkLevel(img, level); err != nil {
		return err
	}
	n := img.desc.LevelSize(level)
	if len(dst) < n {
		return fmt.Errorf("%w: %d byte destination for a %d byte level", rhi.ErrOutOfRange, len(dst), n)
	}
	return r.staged("read image data", n, func(s *hostBuffer, cb vkapi.CommandBuffer) error {
		layout := r.beginTransfer(cb, img, level, 1, layoutTransferSrc)
		r.dev.CmdCopyImageToBuffer(cb, img.img, layout, s.buf, []vkapi.BufferImageCopy{{
			Aspect:   img.copyAspect(),
			MipLevel: uint32(level),
			Extent:   img.extent(level),
		}})
		r.endTransfer(cb, img, level, 1, layout)
		return nil
	}, func(data []byte) { copy(dst, data) })
}

// CopyImage implements rhi.Renderer. Inside a frame the copy is recorded
// in order with the frame's commands.
func (r *Renderer) CopyImage(srcID, dstID rhi.ImageID) error {
	src, err := r.image(srcID)
	if err != nil {
		return err
	}
	dst, err := r.image(dstID)
	if err != nil {
		return err
	}
	if src.desc.Format != dst.desc.Format || src.desc.SampleCount() != dst.desc.SampleCount() ||
		src.desc.Width != dst.desc.Width || src.desc.Height != dst.desc.Height {
		return fmt.Errorf("%w: copy between %v %dx%d and %v %dx%d", rhi.ErrMismatch,
			src.desc.Format, src.desc.Width, src.desc.Height, dst.desc.Format, dst.desc.Width, dst.desc.Height)
	}
	if src == dst {
		return nil
	}
	levels := min(src.levels, dst.levels)
	return r.transfer("copy image", func(cb vkapi.CommandBuffer) error {
		sl := r.beginTransfer(cb, src, 0, levels, layoutTransferSrc)
		dl := r.beginTransfer(cb, dst, 0, levels, layoutTransferDst)
		regions := make([]vkapi.ImageCopy, levels)
		for level := range levels {
			regions[level] = vkapi.ImageCopy{
				Aspect:   src.aspect,
				SrcLevel: uint32(level),
				DstLevel: uint32(level),
				Extent:   src.extent(level),
			}
		}
		r.dev.CmdCopyImage(cb, src.img, sl, dst.img, dl, regions)
		r.endTransfer(cb, dst, 0, levels, dl)
		r.endTransfer(cb, src, 0, levels, sl)
		return nil
	})
}

// GenerateMipmaps implements rhi.Renderer. Each level is blitted from the
// one above it with a linear filter.
func (r *Renderer) GenerateMipmaps(id rhi.ImageID) error {
	img, err := r.image(id)
	if err != nil {
		return err
	}
	if img.desc.SampleCount() > 1 || img.desc.IsDepth() {
		return fmt.Errorf("%w: mipmaps for a %v image with %d samples", rhi.ErrUnsupported, img.desc.Format, img.desc.SampleCount())
	}
	if img.levels == 1 {
		return nil
	}
	return r.transfer("generate mipmaps", func(cb vkapi.CommandBuffer) error {
		if img.rest == layoutGeneral {
			layout := r.beginTransfer(cb, img, 0, img.levels, layoutGeneral)
			for level := 1; level < img.levels; level++ {
				r.blitLevel(cb, img, level, layout, layout)
				r.dev.CmdPipelineBarrier(cb, vkapi.StageTransfer, vkapi.StageTransfer, []vkapi.MemoryBarrier{{
					SrcAccess: vkapi.AccessTransferWrite,
					DstAccess: vkapi.AccessTransferRead,
				}}, nil, nil)
			}
			r.endTransfer(cb, img, 0, img.levels, layout)
			return nil
		}
		r.transition(cb, img.img, img.aspect, 0, 1, img.rest, layoutTransferSrc)
		r.transition(cb, img.img, img.aspect, 1, img.levels-1, img.rest, layoutTransferDst)
		for level := 1; level < img.levels; level++ {
			r.blitLevel(cb, img, level, layoutTransferSrc, layoutTransferDst)
			r.transition(cb, img.img, img.aspect, level, 1, layoutTransferDst, layoutTransferSrc)
		}
		r.transition(cb, img.img, img.aspect, 0, img.levels, layoutTransferSrc, img.rest)
		return nil
	})
}

func (r *Renderer) blitLevel(cb vkapi.CommandBuffer, img *image, level int, src, dst vkapi.ImageLayout) {
	r.dev.CmdBlitImage(cb, img.img, src, img.img, dst, []vkapi.ImageBlit{{
		Aspect:    img.aspect,
		SrcLevel:  uint32(level - 1),
		SrcExtent: img.extent(level - 1),
		DstLevel:  uint32(level),
		DstExtent: img.extent(level),
	}}, vkapi.FilterLinear)
}

// ImageInfo implements rhi.Renderer.
func (r *Renderer) ImageInfo(id rhi.ImageID) (rhi.ImageInfo, error) {
	img, err := r.image(id)
	if err != nil {
		return rhi.ImageInfo{}, err
	}
	return rhi.ImageInfo{
		Backend: rhi.BackendVulkan,
		Width:   img.desc.Width,
		Height:  img.desc.Height,
		Levels:  img.levels,
		Samples: img.desc.SampleCount(),
		Format:  img.desc.Format,
		Vulkan: &rhi.VulkanImageInfo{
			Image:   img.img,
			View:    img.view,
			Sampler: img.sampler,
			Layout:  img.rest,
		},
	}, nil
}
