// Package texel encodes, fills and rescales tightly packed pixel data for
// the software drivers.
package texel

import (
	"encoding/binary"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/rhi/internal/color"
)

// Kind is the storage type of one channel.
type Kind uint8

const (
	// Unorm is an 8-bit normalized unsigned integer.
	Unorm Kind = iota
	// Half is a 16-bit float.
	Half
	// Float is a 32-bit float.
	Float
	// Uint is a 32-bit unsigned integer.
	Uint
	// Depth24Stencil8 packs 24-bit depth and 8-bit stencil in one word.
	Depth24Stencil8
	// Depth32 is a 32-bit float depth value.
	Depth32
)

// Layout describes one pixel.
type Layout struct {
	Channels int
	Kind     Kind
	// BGR stores red and blue swapped.
	BGR bool
	// SRGB stores the color channels of an 8-bit layout sRGB encoded.
	SRGB bool
}

// Common layouts.
var (
	RGBA8     = Layout{Channels: 4, Kind: Unorm}
	BGRA8     = Layout{Channels: 4, Kind: Unorm, BGR: true}
	RGBA8SRGB = Layout{Channels: 4, Kind: Unorm, SRGB: true}
	BGRA8SRGB = Layout{Channels: 4, Kind: Unorm, BGR: true, SRGB: true}
	D24S8 = Layout{Channels: 1, Kind: Depth24Stencil8}
	D32   = Layout{Channels: 1, Kind: Depth32}
)

// Size returns the bytes per pixel.
func (l Layout) Size() int {
	switch l.Kind {
	case Unorm:
		return l.Channels
	case Half:
		return 2 * l.Channels
	case Depth24Stencil8, Depth32:
		return 4
	}
	return 4 * l.Channels
}

// IsDepth reports whether l is a depth layout.
func (l Layout) IsDepth() bool {
	return l.Kind == Depth24Stencil8 || l.Kind == Depth32
}

// Color encodes one pixel of color c.
func (l Layout) Color(c [4]float32) []byte {
	if l.BGR {
		c[0], c[2] = c[2], c[0]
	}
	px := make([]byte, l.Size())
	for i := 0; i < l.Channels; i++ {
		switch l.Kind {
		case Unorm:
			if l.SRGB && i < 3 {
				px[i] = color.Encode(c[i])
			} else {
				px[i] = unorm8(c[i])
			}
		case Half:
			binary.LittleEndian.PutUint16(px[2*i:], FloatToHalf(c[i]))
		case Float:
			binary.LittleEndian.PutUint32(px[4*i:], math.Float32bits(c[i]))
		case Uint:
			binary.LittleEndian.PutUint32(px[4*i:], uint32(max(c[i], 0)))
		}
	}
	return px
}

// DepthStencil encodes one depth/stencil pixel. Color layouts encode zero.
func (l Layout) DepthStencil(depth float32, stencil uint32) []byte {
	px := make([]byte, l.Size())
	switch l.Kind {
	case Depth24Stencil8:
		d := uint32(math.Round(float64(clamp01(depth)) * 0xFFFFFF))
		binary.LittleEndian.PutUint32(px, d<<8|stencil&0xFF)
	case Depth32:
		binary.LittleEndian.PutUint32(px, math.Float32bits(depth))
	}
	return px
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

func unorm8(v float32) byte {
	return byte(math.Round(float64(clamp01(v)) * 255))
}

// Fill repeats px across dst. A trailing partial pixel is left untouched.
func Fill(dst, px []byte) {
	if len(px) == 0 {
		return
	}
	for i := 0; i+len(px) <= len(dst); i += len(px) {
		copy(dst[i:], px)
	}
}

// FillRect fills the rectangle r of an image width pixels wide. r is
// clipped to the image.
func FillRect(dst []byte, width int, r image.Rectangle, px []byte) {
	if width <= 0 || len(px) == 0 {
		return
	}
	height := len(dst) / (width * len(px))
	r = r.Intersect(image.Rect(0, 0, width, height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := dst[(y*width+r.Min.X)*len(px) : (y*width+r.Max.X)*len(px)]
		Fill(row, px)
	}
}

// Scale resamples src (sw x sh) into dst (dw x dh). Linear filtering of
// four-channel 8-bit layouts uses a bilinear kernel, applied to decoded
// values for sRGB layouts; every other case picks the nearest source
// pixel.
func Scale(l Layout, dst []byte, dw, dh int, src []byte, sw, sh int, linear bool) {
	if linear && l.Kind == Unorm && l.Channels == 4 && l.SRGB {
		scaleSRGB(dst, dw, dh, src, sw, sh)
		return
	}
	if linear && l.Kind == Unorm && l.Channels == 4 {
		s := &image.RGBA{Pix: src, Stride: 4 * sw, Rect: image.Rect(0, 0, sw, sh)}
		d := &image.RGBA{Pix: dst, Stride: 4 * dw, Rect: image.Rect(0, 0, dw, dh)}
		xdraw.BiLinear.Scale(d, d.Bounds(), s, s.Bounds(), xdraw.Src, nil)
		return
	}
	bpp := l.Size()
	for y := 0; y < dh; y++ {
		sy := (2*y + 1) * sh / (2 * dh)
		for x := 0; x < dw; x++ {
			sx := (2*x + 1) * sw / (2 * dw)
			copy(dst[(y*dw+x)*bpp:(y*dw+x+1)*bpp], src[(sy*sw+sx)*bpp:])
		}
	}
}

func scaleSRGB(dst []byte, dw, dh int, src []byte, sw, sh int) {
	s := image.NewRGBA64(image.Rect(0, 0, sw, sh))
	for i := 0; i < sw*sh; i++ {
		for c := range 4 {
			v := float32(src[4*i+c]) / 255
			if c < 3 {
				v = color.Decode(src[4*i+c])
			}
			binary.BigEndian.PutUint16(s.Pix[8*i+2*c:], uint16(math.Round(float64(v)*0xFFFF)))
		}
	}
	d := image.NewRGBA64(image.Rect(0, 0, dw, dh))
	xdraw.BiLinear.Scale(d, d.Bounds(), s, s.Bounds(), xdraw.Src, nil)
	for i := 0; i < dw*dh; i++ {
		for c := range 4 {
			v := float32(binary.BigEndian.Uint16(d.Pix[8*i+2*c:])) / 0xFFFF
			if c < 3 {
				dst[4*i+c] = color.Encode(v)
			} else {
				dst[4*i+c] = unorm8(v)
			}
		}
	}
}

// CopyRect copies a w x h block between images of the same layout.
func CopyRect(bpp int, dst []byte, dstWidth int, dx, dy int, src []byte, srcWidth int, sx, sy int, w, h int) {
	for row := 0; row < h; row++ {
		d := ((dy+row)*dstWidth + dx) * bpp
		s := ((sy+row)*srcWidth + sx) * bpp
		copy(dst[d:d+w*bpp], src[s:s+w*bpp])
	}
}

// FloatToHalf converts f to an IEEE 754 binary16 value, rounding to
// nearest even and flushing values below the half subnormal range to zero.
func FloatToHalf(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23&0xFF) - 127 + 15
	mant := b & 0x7FFFFF

	switch {
	case b&0x7FFFFFFF == 0:
		return sign
	case b>>23&0xFF == 0xFF:
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exp >= 0x1F:
		return sign | 0x7C00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := mant >> shift
		rem := mant & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 != 0) {
			half++
		}
		return sign | uint16(half)
	}
	half := uint32(exp)<<10 | mant>>13
	rem := mant & 0x1FFF
	if rem > 0x1000 || (rem == 0x1000 && half&1 != 0) {
		half++
	}
	return sign | uint16(half)
}

// HalfToFloat converts an IEEE 754 binary16 value to float32.
func HalfToFloat(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h & 0x3FF)
	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3FF
	case exp == 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}
