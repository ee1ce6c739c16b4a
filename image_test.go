package rhi

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestImageLevels(t *testing.T) {
	tests := []struct {
		name string
		desc ImageDescriptor
		want int
	}{
		{"1x1", ImageDescriptor{Width: 1, Height: 1}, 1},
		{"2x2", ImageDescriptor{Width: 2, Height: 2}, 2},
		{"257x1", ImageDescriptor{Width: 257, Height: 1}, 9},
		{"256x256", ImageDescriptor{Width: 256, Height: 256}, 9},
		{"1x1000", ImageDescriptor{Width: 1, Height: 1000}, 10},
		{"multisampled", ImageDescriptor{Width: 512, Height: 512, Samples: 4}, 1},
		{"capped", ImageDescriptor{Width: 512, Height: 512, MipLevels: 3}, 3},
		{"cap above max", ImageDescriptor{Width: 4, Height: 4, MipLevels: 20}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.desc.Levels(); got != tt.want {
				t.Errorf("Levels() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestImageLevelExtent(t *testing.T) {
	d := ImageDescriptor{Width: 257, Height: 3, Format: gputypes.TextureFormatRGBA8Unorm}
	tests := []struct {
		level, w, h, size int
	}{
		{0, 257, 3, 257 * 3 * 4},
		{1, 128, 1, 128 * 4},
		{8, 1, 1, 4},
	}
	for _, tt := range tests {
		w, h := d.LevelExtent(tt.level)
		if w != tt.w || h != tt.h {
			t.Errorf("LevelExtent(%d) = %dx%d, want %dx%d", tt.level, w, h, tt.w, tt.h)
		}
		if got := d.LevelSize(tt.level); got != tt.size {
			t.Errorf("LevelSize(%d) = %d, want %d", tt.level, got, tt.size)
		}
	}
}

func TestImageValidate(t *testing.T) {
	sampled := gputypes.TextureUsageTextureBinding
	tests := []struct {
		name string
		desc ImageDescriptor
		want error
	}{
		{"ok", ImageDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: sampled}, nil},
		{"zero extent", ImageDescriptor{Width: 0, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: sampled}, ErrInvalidDescriptor},
		{"bad samples", ImageDescriptor{Width: 4, Height: 4, Samples: 3, Format: gputypes.TextureFormatRGBA8Unorm, Usage: sampled}, ErrUnsupported},
		{"bad format", ImageDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatUndefined, Usage: sampled}, ErrUnsupported},
		{"no usage", ImageDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Usage: gputypes.TextureUsageCopySrc}, ErrInvalidDescriptor},
		{"depth without attachment", ImageDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatDepth32Float, Usage: sampled}, ErrInvalidDescriptor},
		{"multisampled storage", ImageDescriptor{Width: 4, Height: 4, Samples: 4, Format: gputypes.TextureFormatRGBA8Unorm,
			Usage: gputypes.TextureUsageStorageBinding}, ErrUnsupported},
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

func TestCheckRange(t *testing.T) {
	tests := []struct {
		offset, n, size int
		ok              bool
	}{
		{0, 16, 16, true},
		{4, 4, 16, true},
		{12, 8, 16, false},
		{-1, 1, 16, false},
		{16, 0, 16, true},
	}
	for _, tt := range tests {
		err := CheckRange(tt.offset, tt.n, tt.size)
		if (err == nil) != tt.ok {
			t.Errorf("CheckRange(%d, %d, %d) = %v, want ok=%v", tt.offset, tt.n, tt.size, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrOutOfRange) {
			t.Errorf("CheckRange() = %v, want %v", err, ErrOutOfRange)
		}
	}
}
