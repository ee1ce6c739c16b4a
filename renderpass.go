package rhi

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// MaxColorAttachments is the largest number of color attachments a render
// pass may declare.
const MaxColorAttachments = 8

// AttachmentDescriptor describes one attachment of a render pass and how it
// is loaded and stored.
type AttachmentDescriptor struct {
	Format       gputypes.TextureFormat
	Load         gputypes.LoadOp
	Store        gputypes.StoreOp
	ClearColor   mgl32.Vec4
	ClearDepth   float32
	ClearStencil uint32
}

// RenderPassDescriptor describes the attachments of a render pass. When
// Samples is above one, every color attachment is resolved into the
// matching framebuffer resolve image when the pass ends.
type RenderPassDescriptor struct {
	Colors  []AttachmentDescriptor
	Depth   *AttachmentDescriptor
	Samples int
}

// SampleCount returns the sample count with zero normalized to 1.
func (d *RenderPassDescriptor) SampleCount() int {
	if d.Samples <= 0 {
		return 1
	}
	return d.Samples
}

// Validate checks attachment formats and counts.
func (d *RenderPassDescriptor) Validate() error {
	if len(d.Colors) == 0 && d.Depth == nil {
		return fmt.Errorf("%w: render pass without attachments", ErrInvalidDescriptor)
	}
	if len(d.Colors) > MaxColorAttachments {
		return fmt.Errorf("%w: %d color attachments", ErrUnsupported, len(d.Colors))
	}
	if !ValidSampleCount(d.SampleCount()) {
		return fmt.Errorf("%w: %d samples", ErrUnsupported, d.Samples)
	}
	for i, c := range d.Colors {
		if IsDepthFormat(c.Format) {
			return fmt.Errorf("%w: color attachment %d has depth format %v", ErrInvalidDescriptor, i, c.Format)
		}
		if _, ok := FormatSize(c.Format); !ok {
			return fmt.Errorf("%w: color attachment %d format %v", ErrUnsupported, i, c.Format)
		}
	}
	if d.Depth != nil && !IsDepthFormat(d.Depth.Format) {
		return fmt.Errorf("%w: depth attachment format %v", ErrInvalidDescriptor, d.Depth.Format)
	}
	return nil
}

// FramebufferDescriptor binds images to the attachments of a render pass.
type FramebufferDescriptor struct {
	RenderPass RenderPassID
	Colors     []ImageID
	Depth      ImageID
	Resolve    []ImageID
}

// ImageLookup resolves an image handle to its descriptor.
type ImageLookup func(ImageID) (*ImageDescriptor, bool)

// ValidateFramebuffer checks fb against pass and returns the common extent
// of its attachments. Counts, formats, sample counts and extents must all
// agree.
func ValidateFramebuffer(pass *RenderPassDescriptor, fb *FramebufferDescriptor, lookup ImageLookup) (width, height int, err error) {
	if len(fb.Colors) != len(pass.Colors) {
		return 0, 0, fmt.Errorf("%w: %d color images for %d attachments", ErrMismatch, len(fb.Colors), len(pass.Colors))
	}
	samples := pass.SampleCount()
	if samples > 1 && len(fb.Resolve) != len(fb.Colors) {
		return 0, 0, fmt.Errorf("%w: %d resolve images for %d color attachments", ErrMismatch, len(fb.Resolve), len(fb.Colors))
	}
	if samples == 1 && len(fb.Resolve) != 0 {
		return 0, 0, fmt.Errorf("%w: resolve images on a single-sampled pass", ErrMismatch)
	}
	if (pass.Depth != nil) != !fb.Depth.IsNull() {
		return 0, 0, fmt.Errorf("%w: depth image does not match render pass", ErrMismatch)
	}

	check := func(what string, id ImageID, format gputypes.TextureFormat, wantSamples int) error {
		d, ok := lookup(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidHandle, what)
		}
		if d.Format != format {
			return fmt.Errorf("%w: %s format %v, want %v", ErrMismatch, what, d.Format, format)
		}
		if d.SampleCount() != wantSamples {
			return fmt.Errorf("%w: %s has %d samples, want %d", ErrMismatch, what, d.SampleCount(), wantSamples)
		}
		if !d.Usage.Contains(gputypes.TextureUsageRenderAttachment) {
			return fmt.Errorf("%w: %s lacks attachment usage", ErrMismatch, what)
		}
		if width == 0 {
			width, height = d.Width, d.Height
		} else if d.Width != width || d.Height != height {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrMismatch, what, d.Width, d.Height, width, height)
		}
		return nil
	}
	for i, id := range fb.Colors {
		if err := check(fmt.Sprintf("color attachment %d", i), id, pass.Colors[i].Format, samples); err != nil {
			return 0, 0, err
		}
	}
	for i, id := range fb.Resolve {
		if err := check(fmt.Sprintf("resolve attachment %d", i), id, pass.Colors[i].Format, 1); err != nil {
			return 0, 0, err
		}
	}
	if pass.Depth != nil {
		if err := check("depth attachment", fb.Depth, pass.Depth.Format, samples); err != nil {
			return 0, 0, err
		}
	}
	return width, height, nil
}
