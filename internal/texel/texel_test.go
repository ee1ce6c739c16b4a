package texel

import (
	"bytes"
	"image"
	"math"
	"testing"
)

func TestColor(t *testing.T) {
	tests := []struct {
		name string
		l    Layout
		c    [4]float32
		want []byte
	}{
		{"rgba8", RGBA8, [4]float32{1, 0, 0.5, 1}, []byte{255, 0, 128, 255}},
		{"bgra8", BGRA8, [4]float32{1, 0, 0.5, 1}, []byte{128, 0, 255, 255}},
		{"rgba8 srgb", RGBA8SRGB, [4]float32{0.5, 0, 1, 0.5}, []byte{188, 0, 255, 128}},
		{"bgra8 srgb", BGRA8SRGB, [4]float32{1, 0, 0.5, 0.5}, []byte{188, 0, 255, 128}},
		{"clamped", RGBA8, [4]float32{2, -1, 0, 0}, []byte{255, 0, 0, 0}},
		{"r8", Layout{Channels: 1}, [4]float32{1, 1, 1, 1}, []byte{255}},
		{"r32f", Layout{Channels: 1, Kind: Float}, [4]float32{1}, []byte{0, 0, 0x80, 0x3F}},
		{"r32ui", Layout{Channels: 1, Kind: Uint}, [4]float32{7}, []byte{7, 0, 0, 0}},
		{"rg16f", Layout{Channels: 2, Kind: Half}, [4]float32{1, -2}, []byte{0x00, 0x3C, 0x00, 0xC0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.l.Color(tt.c); !bytes.Equal(got, tt.want) {
				t.Errorf("Color() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDepthStencil(t *testing.T) {
	if got := D24S8.DepthStencil(1, 0x1FF); !bytes.Equal(got, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("D24S8.DepthStencil(1, 0x1FF) = %v", got)
	}
	if got := D24S8.DepthStencil(0, 3); !bytes.Equal(got, []byte{3, 0, 0, 0}) {
		t.Errorf("D24S8.DepthStencil(0, 3) = %v", got)
	}
	if got := D32.DepthStencil(0.5, 0); !bytes.Equal(got, []byte{0, 0, 0, 0x3F}) {
		t.Errorf("D32.DepthStencil(0.5, 0) = %v", got)
	}
	if !D32.IsDepth() || RGBA8.IsDepth() {
		t.Error("IsDepth() mismatch")
	}
}

func TestFillRect(t *testing.T) {
	dst := make([]byte, 4*4)
	FillRect(dst, 4, image.Rect(1, 1, 3, 9), []byte{9})
	want := []byte{
		0, 0, 0, 0,
		0, 9, 9, 0,
		0, 9, 9, 0,
		0, 9, 9, 0,
	}
	if !bytes.Equal(dst, want) {
		t.Errorf("FillRect() = %v, want %v", dst, want)
	}
}

func TestScale(t *testing.T) {
	src := make([]byte, 4*4*4)
	Fill(src, []byte{10, 20, 30, 40})
	dst := make([]byte, 2*2*4)
	Scale(RGBA8, dst, 2, 2, src, 4, 4, true)
	for i := 0; i < len(dst); i += 4 {
		if !bytes.Equal(dst[i:i+4], []byte{10, 20, 30, 40}) {
			t.Fatalf("Scale() pixel %d = %v", i/4, dst[i:i+4])
		}
	}

	r8 := []byte{1, 2, 3, 4}
	half := make([]byte, 2)
	Scale(Layout{Channels: 1}, half, 2, 1, r8, 4, 1, false)
	if !bytes.Equal(half, []byte{2, 4}) {
		t.Errorf("Scale() nearest = %v, want [2 4]", half)
	}
}

func TestScaleSRGBFiltersLinearValues(t *testing.T) {
	src := []byte{0, 0, 0, 255, 255, 255, 255, 255}
	plain, srgb := make([]byte, 4), make([]byte, 4)
	Scale(RGBA8, plain, 1, 1, src, 2, 1, true)
	Scale(RGBA8SRGB, srgb, 1, 1, src, 2, 1, true)
	if plain[0] < 126 || plain[0] > 129 {
		t.Errorf("unorm average = %d, want about 128", plain[0])
	}
	if srgb[0] < 186 || srgb[0] > 189 {
		t.Errorf("sRGB average = %d, want about 188", srgb[0])
	}
	if srgb[3] != 255 {
		t.Errorf("sRGB alpha = %d, want 255", srgb[3])
	}
}

func TestCopyRect(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6}
	dst := make([]byte, 4)
	CopyRect(1, dst, 2, 0, 0, src, 3, 1, 0, 2, 2)
	if !bytes.Equal(dst, []byte{2, 3, 5, 6}) {
		t.Errorf("CopyRect() = %v, want [2 3 5 6]", dst)
	}
}

func TestHalfRoundTrip(t *testing.T) {
	tests := []struct {
		f    float32
		want uint16
	}{
		{0, 0x0000},
		{1, 0x3C00},
		{-2, 0xC000},
		{0.5, 0x3800},
		{65504, 0x7BFF},
		{1e6, 0x7C00},
		{float32(math.Inf(-1)), 0xFC00},
		{5.960464477539063e-08, 0x0001},
	}
	for _, tt := range tests {
		got := FloatToHalf(tt.f)
		if got != tt.want {
			t.Errorf("FloatToHalf(%v) = %#04x, want %#04x", tt.f, got, tt.want)
		}
		if tt.want != 0x7C00 && HalfToFloat(got) != tt.f {
			t.Errorf("HalfToFloat(%#04x) = %v, want %v", got, HalfToFloat(got), tt.f)
		}
	}
}
