package rhi

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

var (
	uniformSlot = Descriptor{Type: DescriptorUniformBuffer, Binding: 0, Stages: gputypes.ShaderStageVertex}
	imageSlot   = Descriptor{Type: DescriptorSampledImage, Binding: 1, Stages: gputypes.ShaderStageFragment}
	storageSlot = Descriptor{Type: DescriptorStorageImage, Binding: 2, Stages: gputypes.ShaderStageCompute}
	arraySlot   = Descriptor{Type: DescriptorSampledImageArray, Binding: 3, Stages: gputypes.ShaderStageFragment, Count: 4}
)

// =============================================================================
// Construction
// =============================================================================

func TestBindConstructors(t *testing.T) {
	tests := []struct {
		name string
		bind func() (DescriptorBinding, error)
		kind ResourceKind
		want error
	}{
		{"image to sampled", func() (DescriptorBinding, error) { return BindImage(imageSlot, 7) }, ResourceImage, nil},
		{"image to storage", func() (DescriptorBinding, error) { return BindImage(storageSlot, 7) }, ResourceImage, nil},
		{"image to uniform", func() (DescriptorBinding, error) { return BindImage(uniformSlot, 7) }, 0, ErrMismatch},
		{"null image", func() (DescriptorBinding, error) { return BindImage(imageSlot, 0) }, 0, ErrInvalidHandle},
		{"buffer to uniform", func() (DescriptorBinding, error) { return BindBuffer(uniformSlot, 3, 0, 16) }, ResourceBuffer, nil},
		{"buffer to image", func() (DescriptorBinding, error) { return BindBuffer(imageSlot, 3, 0, 16) }, 0, ErrMismatch},
		{"negative offset", func() (DescriptorBinding, error) { return BindBuffer(uniformSlot, 3, -4, 16) }, 0, ErrOutOfRange},
		{"array", func() (DescriptorBinding, error) { return BindImageArray(arraySlot, []ImageID{1, 2}) }, ResourceImageArray, nil},
		{"array too long", func() (DescriptorBinding, error) { return BindImageArray(arraySlot, []ImageID{1, 2, 3, 4, 5}) }, 0, ErrOutOfRange},
		{"array with null", func() (DescriptorBinding, error) { return BindImageArray(arraySlot, []ImageID{1, 0}) }, 0, ErrInvalidHandle},
		{"array to sampled", func() (DescriptorBinding, error) { return BindImageArray(imageSlot, []ImageID{1}) }, 0, ErrMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.bind()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("bind() = %v, want nil", err)
				}
				if b.Kind() != tt.kind {
					t.Errorf("Kind() = %d, want %d", b.Kind(), tt.kind)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("bind() = %v, want %v", err, tt.want)
			}
			if b.Kind() != 0 {
				t.Errorf("Kind() = %d on failure, want 0", b.Kind())
			}
		})
	}
}

func TestBindImageArrayCopies(t *testing.T) {
	imgs := []ImageID{1, 2}
	b, err := BindImageArray(arraySlot, imgs)
	if err != nil {
		t.Fatal(err)
	}
	imgs[0] = 9
	if got := b.Images()[0]; got != 1 {
		t.Errorf("Images()[0] = %d, want 1", got)
	}
}

// =============================================================================
// Matching
// =============================================================================

func TestMatchBindings(t *testing.T) {
	slots := []Descriptor{uniformSlot, imageSlot, arraySlot}
	ub, _ := BindBuffer(uniformSlot, 1, 0, 0)
	img, _ := BindImage(imageSlot, 2)
	stray, _ := BindImage(storageSlot, 2)
	wrongSize, _ := BindImageArray(Descriptor{Type: DescriptorSampledImageArray, Binding: 3,
		Stages: gputypes.ShaderStageFragment, Count: 8}, []ImageID{1})

	tests := []struct {
		name     string
		bindings []DescriptorBinding
		want     error
	}{
		{"all", []DescriptorBinding{ub, img}, nil},
		{"empty", nil, nil},
		{"unknown slot", []DescriptorBinding{stray}, ErrMismatch},
		{"twice", []DescriptorBinding{ub, ub}, ErrMismatch},
		{"array size", []DescriptorBinding{wrongSize}, ErrMismatch},
		{"zero binding", []DescriptorBinding{{}}, ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MatchBindings(slots, tt.bindings)
			if tt.want == nil && err != nil {
				t.Errorf("MatchBindings() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("MatchBindings() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateDescriptors(t *testing.T) {
	tests := []struct {
		name string
		ds   []Descriptor
		ok   bool
	}{
		{"ok", []Descriptor{uniformSlot, imageSlot, arraySlot}, true},
		{"duplicate", []Descriptor{uniformSlot, uniformSlot}, false},
		{"no stages", []Descriptor{{Type: DescriptorUniformBuffer}}, false},
		{"empty array", []Descriptor{{Type: DescriptorSampledImageArray, Stages: gputypes.ShaderStageFragment}}, false},
	}
	for _, tt := range tests {
		err := ValidateDescriptors(tt.ds)
		if (err == nil) != tt.ok {
			t.Errorf("%s: ValidateDescriptors() = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}
