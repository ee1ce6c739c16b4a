// Package color converts between linear and sRGB-encoded channel values
// with lookup tables.
//
// Alpha is never gamma encoded; only red, green and blue pass through
// these functions.
package color

import "math"

// decodeLUT maps an sRGB byte to its linear value.
var decodeLUT [256]float32

// encodeLUT maps linear values quantized to 12 bits to sRGB bytes, which
// is enough precision for 8-bit output.
var encodeLUT [4096]uint8

func init() {
	for i := range decodeLUT {
		decodeLUT[i] = SRGBToLinear(float32(i) / 255)
	}
	for i := range encodeLUT {
		encodeLUT[i] = uint8(math.Round(float64(clamp01(LinearToSRGB(float32(i)/4095))) * 255))
	}
}

// SRGBToLinear applies the sRGB decoding curve to s in [0, 1].
func SRGBToLinear(s float32) float32 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return float32(math.Pow(float64((s+0.055)/1.055), 2.4))
}

// LinearToSRGB applies the sRGB encoding curve to l in [0, 1].
func LinearToSRGB(l float32) float32 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*float32(math.Pow(float64(l), 1/2.4)) - 0.055
}

// Decode returns the linear value of an sRGB byte.
func Decode(s uint8) float32 {
	return decodeLUT[s]
}

// Encode returns the sRGB byte of linear value l. l is clamped to [0, 1].
func Encode(l float32) uint8 {
	return encodeLUT[int(clamp01(l)*4095+0.5)]
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
