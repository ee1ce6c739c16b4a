package vkapi

import (
	"errors"
	"testing"
)

func TestFindMemoryType(t *testing.T) {
	types := []MemoryType{
		{Properties: MemoryDeviceLocal},
		{Properties: MemoryHostVisible | MemoryHostCoherent},
		{Properties: MemoryDeviceLocal | MemoryHostVisible | MemoryHostCoherent},
	}
	tests := []struct {
		name   string
		bits   uint32
		want   MemoryProperty
		index  uint32
		wantOK bool
	}{
		{"device local", 0b111, MemoryDeviceLocal, 0, true},
		{"host visible", 0b111, MemoryHostVisible, 1, true},
		{"masked out", 0b101, MemoryHostVisible | MemoryHostCoherent, 2, true},
		{"none", 0b001, MemoryHostVisible, 0, false},
		{"cached", 0b111, MemoryHostCached, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindMemoryType(types, tt.bits, tt.want)
			if ok != tt.wantOK || (ok && got != tt.index) {
				t.Errorf("FindMemoryType() = %d, %v, want %d, %v", got, ok, tt.index, tt.wantOK)
			}
		})
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{16, 0, 16},
		{5, 4, 8},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestResultError(t *testing.T) {
	var err error = ErrorOutOfDate
	var r Result
	if !errors.As(err, &r) || r != ErrorOutOfDate {
		t.Errorf("errors.As() = %v, want %v", r, ErrorOutOfDate)
	}
	if Success.Err() != nil {
		t.Errorf("Success.Err() = %v, want nil", Success.Err())
	}
	if got := Result(-12345).Error(); got != "vk: result -12345" {
		t.Errorf("Error() = %q, want %q", got, "vk: result -12345")
	}
}

func TestImageLayoutString(t *testing.T) {
	if got := ImageLayoutPresentSrc.String(); got != "PresentSrc" {
		t.Errorf("String() = %q, want %q", got, "PresentSrc")
	}
	if got := ImageLayout(99).String(); got != "Unknown" {
		t.Errorf("String() = %q, want %q", got, "Unknown")
	}
}
