package rhi

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestRenderPassValidate(t *testing.T) {
	color := AttachmentDescriptor{Format: gputypes.TextureFormatRGBA8Unorm}
	depth := &AttachmentDescriptor{Format: gputypes.TextureFormatDepth32Float}
	tests := []struct {
		name string
		desc RenderPassDescriptor
		want error
	}{
		{"color", RenderPassDescriptor{Colors: []AttachmentDescriptor{color}}, nil},
		{"depth only", RenderPassDescriptor{Depth: depth}, nil},
		{"empty", RenderPassDescriptor{}, ErrInvalidDescriptor},
		{"depth as color", RenderPassDescriptor{Colors: []AttachmentDescriptor{*depth}}, ErrInvalidDescriptor},
		{"color as depth", RenderPassDescriptor{Depth: &color}, ErrInvalidDescriptor},
		{"samples", RenderPassDescriptor{Colors: []AttachmentDescriptor{color}, Samples: 3}, ErrUnsupported},
		{"too many", RenderPassDescriptor{Colors: make([]AttachmentDescriptor, MaxColorAttachments+1)}, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.want == nil && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateFramebuffer(t *testing.T) {
	attach := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	images := map[ImageID]*ImageDescriptor{
		1: {Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm, Usage: attach},
		2: {Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm, Usage: attach},
		3: {Width: 32, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm, Usage: attach},
		4: {Width: 64, Height: 64, Format: gputypes.TextureFormatDepth24PlusStencil8, Usage: attach},
		5: {Width: 64, Height: 64, Format: gputypes.TextureFormatR32Float, Usage: attach},
		6: {Width: 64, Height: 64, Samples: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: attach},
		7: {Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageTextureBinding},
	}
	lookup := func(id ImageID) (*ImageDescriptor, bool) {
		d, ok := images[id]
		return d, ok
	}
	rgba := AttachmentDescriptor{Format: gputypes.TextureFormatRGBA8Unorm}
	twoColor := &RenderPassDescriptor{
		Colors: []AttachmentDescriptor{rgba, rgba},
		Depth:  &AttachmentDescriptor{Format: gputypes.TextureFormatDepth24PlusStencil8},
	}
	msaa := &RenderPassDescriptor{Colors: []AttachmentDescriptor{rgba}, Samples: 4}

	tests := []struct {
		name string
		pass *RenderPassDescriptor
		fb   FramebufferDescriptor
		want error
	}{
		{"ok", twoColor, FramebufferDescriptor{Colors: []ImageID{1, 2}, Depth: 4}, nil},
		{"count", twoColor, FramebufferDescriptor{Colors: []ImageID{1}, Depth: 4}, ErrMismatch},
		{"no depth", twoColor, FramebufferDescriptor{Colors: []ImageID{1, 2}}, ErrMismatch},
		{"extent", twoColor, FramebufferDescriptor{Colors: []ImageID{1, 3}, Depth: 4}, ErrMismatch},
		{"format", twoColor, FramebufferDescriptor{Colors: []ImageID{1, 5}, Depth: 4}, ErrMismatch},
		{"usage", twoColor, FramebufferDescriptor{Colors: []ImageID{1, 7}, Depth: 4}, ErrMismatch},
		{"stale", twoColor, FramebufferDescriptor{Colors: []ImageID{1, 99}, Depth: 4}, ErrInvalidHandle},
		{"msaa", msaa, FramebufferDescriptor{Colors: []ImageID{6}, Resolve: []ImageID{1}}, nil},
		{"msaa no resolve", msaa, FramebufferDescriptor{Colors: []ImageID{6}}, ErrMismatch},
		{"msaa single sampled", msaa, FramebufferDescriptor{Colors: []ImageID{1}, Resolve: []ImageID{2}}, ErrMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := ValidateFramebuffer(tt.pass, &tt.fb, lookup)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Errorf("ValidateFramebuffer() = %v, want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateFramebuffer() = %v, want nil", err)
			}
			if w != 64 || h != 64 {
				t.Errorf("ValidateFramebuffer() extent = %dx%d, want 64x64", w, h)
			}
		})
	}
}
