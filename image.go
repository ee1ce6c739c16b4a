package rhi

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"
)

// ImageDescriptor describes a two-dimensional image.
//
// Usage selects the native creation path and the layout the image rests in
// between operations: StorageBinding images rest in the general layout,
// TextureBinding images in the shader-read layout, and attachment-only
// images in their attachment layout. Format, usage and sample count are
// immutable after creation.
type ImageDescriptor struct {
	Width   int
	Height  int
	Samples int // 0 is treated as 1

	// MipLevels caps the mip chain. Zero selects the full chain.
	MipLevels int

	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage

	MinFilter gputypes.FilterMode
	MagFilter gputypes.FilterMode
	MipFilter gputypes.MipmapFilterMode
	WrapU     gputypes.AddressMode
	WrapV     gputypes.AddressMode
}

// MaxMipLevels returns floor(log2(max(width, height))) + 1.
func MaxMipLevels(width, height int) int {
	n := max(width, height)
	if n <= 0 {
		return 1
	}
	return bits.Len(uint(n))
}

// SampleCount returns the sample count with zero normalized to 1.
func (d *ImageDescriptor) SampleCount() int {
	if d.Samples <= 0 {
		return 1
	}
	return d.Samples
}

// Levels returns the number of mip levels the image is created with.
// Multisampled images always have one level.
func (d *ImageDescriptor) Levels() int {
	if d.SampleCount() > 1 {
		return 1
	}
	n := MaxMipLevels(d.Width, d.Height)
	if d.MipLevels > 0 && d.MipLevels < n {
		return d.MipLevels
	}
	return n
}

// IsDepth reports whether the image has a depth or stencil format.
func (d *ImageDescriptor) IsDepth() bool {
	return IsDepthFormat(d.Format)
}

// IsDepthFormat reports whether f is one of the supported depth formats.
func IsDepthFormat(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth32Float || f == gputypes.TextureFormatDepth24PlusStencil8
}

// HasStencil reports whether f carries a stencil aspect.
func HasStencil(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}

// LevelExtent returns the extent of mip level.
func (d *ImageDescriptor) LevelExtent(level int) (width, height int) {
	return max(1, d.Width>>level), max(1, d.Height>>level)
}

// LevelSize returns the byte size of mip level in tightly packed rows.
func (d *ImageDescriptor) LevelSize(level int) int {
	bpp, _ := FormatSize(d.Format)
	w, h := d.LevelExtent(level)
	return w * h * bpp
}

// Validate checks the descriptor for contradictions.
func (d *ImageDescriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: image extent %dx%d", ErrInvalidDescriptor, d.Width, d.Height)
	}
	if !ValidSampleCount(d.SampleCount()) {
		return fmt.Errorf("%w: %d samples", ErrUnsupported, d.Samples)
	}
	if _, ok := FormatSize(d.Format); !ok {
		return fmt.Errorf("%w: image format %v", ErrUnsupported, d.Format)
	}
	usage := d.Usage & (gputypes.TextureUsageTextureBinding | gputypes.TextureUsageStorageBinding |
		gputypes.TextureUsageRenderAttachment)
	if usage == 0 {
		return fmt.Errorf("%w: image has no sampled, storage or attachment usage", ErrInvalidDescriptor)
	}
	if d.IsDepth() && !d.Usage.Contains(gputypes.TextureUsageRenderAttachment) {
		return fmt.Errorf("%w: depth image without attachment usage", ErrInvalidDescriptor)
	}
	if d.IsDepth() && d.Usage.Contains(gputypes.TextureUsageStorageBinding) {
		return fmt.Errorf("%w: depth storage image", ErrUnsupported)
	}
	if d.SampleCount() > 1 && d.Usage.Contains(gputypes.TextureUsageStorageBinding) {
		return fmt.Errorf("%w: multisampled storage image", ErrUnsupported)
	}
	return nil
}

// ValidSampleCount reports whether n is a supported sample count.
func ValidSampleCount(n int) bool {
	switch n {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// FormatSize returns the bytes per pixel of the image formats renderers
// support. ok is false for every other format.
func FormatSize(f gputypes.TextureFormat) (bytesPerPixel int, ok bool) {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1, true
	case gputypes.TextureFormatRG8Unorm:
		return 2, true
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatR32Float, gputypes.TextureFormatR32Uint,
		gputypes.TextureFormatDepth32Float, gputypes.TextureFormatDepth24PlusStencil8:
		return 4, true
	case gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA16Float:
		return 8, true
	case gputypes.TextureFormatRGBA32Float:
		return 16, true
	}
	return 0, false
}
