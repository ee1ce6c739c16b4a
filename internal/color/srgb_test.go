package color

import (
	"math"
	"testing"
)

func TestCurveEndpoints(t *testing.T) {
	tests := []struct {
		name string
		fn   func(float32) float32
		in   float32
		want float32
	}{
		{"decode 0", SRGBToLinear, 0, 0},
		{"decode 1", SRGBToLinear, 1, 1},
		{"encode 0", LinearToSRGB, 0, 0},
		{"encode 1", LinearToSRGB, 1, 1},
		{"decode mid", SRGBToLinear, 0.5, 0.21404},
		{"encode mid", LinearToSRGB, 0.5, 0.73536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for i := range 256 {
		if got := Encode(Decode(uint8(i))); got != uint8(i) {
			t.Errorf("Encode(Decode(%d)) = %d", i, got)
		}
	}
}

func TestEncodeClamps(t *testing.T) {
	if got := Encode(-1); got != 0 {
		t.Errorf("Encode(-1) = %d, want 0", got)
	}
	if got := Encode(2); got != 255 {
		t.Errorf("Encode(2) = %d, want 255", got)
	}
	if got := Encode(0.5); got != 188 {
		t.Errorf("Encode(0.5) = %d, want 188", got)
	}
}
