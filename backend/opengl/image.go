package opengl

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/arena"
)

type image struct {
	desc   rhi.ImageDescriptor
	levels int
	pf     pixelFormat
	tex    glapi.Texture
	target glapi.Enum
	// handle is the bindless handle, zero until the image first joins a
	// bindless array. residents counts the array slots holding it; the
	// handle is resident while residents > 0.
	handle    uint64
	residents int
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

// bindScratch binds t to the scratch texture unit.
func (r *Renderer) bindScratch(img *image) {
	r.gl.ActiveTexture(scratchUnit)
	r.gl.BindTexture(img.target, img.tex)
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
	pf, ok := formatOf(desc.Format)
	if !ok {
		return 0, fmt.Errorf("%w: image format %v", rhi.ErrUnsupported, desc.Format)
	}
	img := &image{desc: *desc, levels: desc.Levels(), pf: pf, target: glapi.TEXTURE_2D}
	if desc.SampleCount() > 1 {
		img.target = glapi.TEXTURE_2D_MULTISAMPLE
	}

	r.gl.GetError()
	img.tex = r.gl.GenTexture()
	r.bindScratch(img)
	if img.target == glapi.TEXTURE_2D_MULTISAMPLE {
		r.gl.TexStorage2DMultisample(img.target, int32(desc.SampleCount()), pf.internal, int32(desc.Width), int32(desc.Height))
	} else {
		r.gl.TexStorage2D(img.target, int32(img.levels), pf.internal, int32(desc.Width), int32(desc.Height))
		r.gl.TexParameteri(img.target, glapi.TEXTURE_MIN_FILTER, int32(minFilter(desc.MinFilter, desc.MipFilter, img.levels)))
		r.gl.TexParameteri(img.target, glapi.TEXTURE_MAG_FILTER, int32(magFilter(desc.MagFilter)))
		r.gl.TexParameteri(img.target, glapi.TEXTURE_WRAP_S, int32(wrapMode(desc.WrapU)))
		r.gl.TexParameteri(img.target, glapi.TEXTURE_WRAP_T, int32(wrapMode(desc.WrapV)))
		r.gl.TexParameteri(img.target, glapi.TEXTURE_MAX_LEVEL, int32(img.levels-1))
	}
	if err := r.glError("create image"); err != nil {
		r.gl.DeleteTexture(img.tex)
		return 0, err
	}
	return rhi.ImageID(r.images.Insert(img)), nil
}

// bindless reports whether the image can be placed in a bindless array.
func (img *image) bindless() bool {
	return img.desc.Usage.Contains(gputypes.TextureUsageTextureBinding) && img.desc.SampleCount() == 1
}

// DestroyImage implements rhi.Renderer.
func (r *Renderer) DestroyImage(id rhi.ImageID) {
	img, ok := r.images.Remove(arena.Handle(id))
	if !ok {
		return
	}
	if img.residents > 0 {
		r.gl.MakeTextureHandleNonResidentARB(img.handle)
		img.residents = 0
	}
	r.gl.DeleteTexture(img.tex)
}

// makeResident takes one residency reference on img, making its bindless
// handle resident on the first.
func (r *Renderer) makeResident(img *image) error {
	if img.residents == 0 {
		r.gl.GetError()
		if img.handle == 0 {
			img.handle = r.gl.GetTextureHandleARB(img.tex)
		}
		r.gl.MakeTextureHandleResidentARB(img.handle)
		if err := r.glError("make image resident"); err != nil {
			return err
		}
	}
	img.residents++
	return nil
}

// makeNonResident drops one residency reference on img. Images destroyed
// while referenced were already made non-resident.
func (r *Renderer) makeNonResident(img *image) {
	if img.residents == 0 {
		return
	}
	img.residents--
	if img.residents == 0 {
		r.gl.MakeTextureHandleNonResidentARB(img.handle)
	}
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

// SetImageData implements rhi.Renderer.
func (r *Renderer) SetImageData(id rhi.ImageID, level int, data []byte) error {
	img, err := r.image(id)
	if err != nil {
		return err
	}
	if err := r.checkLevel(img, level); err != nil {
		return err
	}
	if n := img.desc.LevelSize(level); len(data) != n {
		return fmt.Errorf("%w: %d bytes for a %d byte level", rhi.ErrMismatch, len(data), n)
	}
	w, h := img.desc.LevelExtent(level)
	r.bindScratch(img)
	r.gl.TexSubImage2D(img.target, int32(level), 0, 0, int32(w), int32(h), img.pf.format, img.pf.typ, data)
	return r.glError("set image data")
}

// ReadImageData implements rhi.Renderer.
func (r *Renderer) ReadImageData(id rhi.ImageID, level int, dst []byte) error {
	img, err := r.image(id)
	if err != nil {
		return err
	}
	if err := r.checkLevel(img, level); err != nil {
		return err
	}
	if n := img.desc.LevelSize(level); len(dst) < n {
		return fmt.Errorf("%w: %d byte destination for a %d byte level", rhi.ErrOutOfRange, len(dst), n)
	}
	r.bindScratch(img)
	r.gl.GetTexImage(img.target, int32(level), img.pf.format, img.pf.typ, dst)
	return r.glError("read image data")
}

// CopyImage implements rhi.Renderer.
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
	for level := range min(src.levels, dst.levels) {
		w, h := src.desc.LevelExtent(level)
		r.gl.CopyImageSubData(src.tex, src.target, int32(level), dst.tex, dst.target, int32(level), int32(w), int32(h))
	}
	return r.glError("copy image")
}

// GenerateMipmaps implements rhi.Renderer.
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
	r.bindScratch(img)
	r.gl.GenerateMipmap(img.target)
	return r.glError("generate mipmaps")
}

// ImageInfo implements rhi.Renderer.
func (r *Renderer) ImageInfo(id rhi.ImageID) (rhi.ImageInfo, error) {
	img, err := r.image(id)
	if err != nil {
		return rhi.ImageInfo{}, err
	}
	return rhi.ImageInfo{
		Backend: rhi.BackendOpenGL,
		Width:   img.desc.Width,
		Height:  img.desc.Height,
		Levels:  img.levels,
		Samples: img.desc.SampleCount(),
		Format:  img.desc.Format,
		GL: &rhi.GLImageInfo{
			Texture:        uint32(img.tex),
			Target:         uint32(img.target),
			BindlessHandle: img.handle,
		},
	}, nil
}
