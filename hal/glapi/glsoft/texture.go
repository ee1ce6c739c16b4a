package glsoft

import (
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/texel"
)

type texture struct {
	target   glapi.Enum
	internal glapi.Enum
	layout   texel.Layout
	width    int32
	height   int32
	samples  int32
	levels   [][]byte
	params   map[glapi.Enum]int32
	handle   uint64
}

func newTexture(target glapi.Enum) *texture {
	return &texture{target: target, params: make(map[glapi.Enum]int32)}
}

func (t *texture) allocated() bool { return t.levels != nil }

func (t *texture) allocate(levels, samples int32, internal glapi.Enum, width, height int32) bool {
	l, ok := layoutOf(internal)
	if !ok {
		return false
	}
	t.internal, t.layout = internal, l
	t.width, t.height, t.samples = width, height, samples
	t.levels = make([][]byte, levels)
	for i := range t.levels {
		w, h := t.extent(int32(i))
		t.levels[i] = make([]byte, int(w*h)*l.Size())
	}
	return true
}

func (t *texture) extent(level int32) (int32, int32) {
	return max(1, t.width>>level), max(1, t.height>>level)
}

func layoutOf(internal glapi.Enum) (texel.Layout, bool) {
	switch internal {
	case glapi.R8:
		return texel.Layout{Channels: 1, Kind: texel.Unorm}, true
	case glapi.RG8:
		return texel.Layout{Channels: 2, Kind: texel.Unorm}, true
	case glapi.RGBA8:
		return texel.RGBA8, true
	case glapi.SRGB8_ALPHA8:
		return texel.RGBA8SRGB, true
	case glapi.R32F:
		return texel.Layout{Channels: 1, Kind: texel.Float}, true
	case glapi.RG32F:
		return texel.Layout{Channels: 2, Kind: texel.Float}, true
	case glapi.R32UI:
		return texel.Layout{Channels: 1, Kind: texel.Uint}, true
	case glapi.RGBA16F:
		return texel.Layout{Channels: 4, Kind: texel.Half}, true
	case glapi.RGBA32F:
		return texel.Layout{Channels: 4, Kind: texel.Float}, true
	case glapi.DEPTH_COMPONENT32F:
		return texel.D32, true
	case glapi.DEPTH24_STENCIL8:
		return texel.D24S8, true
	}
	return texel.Layout{}, false
}

// swizzle swaps red and blue of four-byte pixels in place.
func swizzle(px []byte) {
	for i := 0; i+3 < len(px); i += 4 {
		px[i], px[i+2] = px[i+2], px[i]
	}
}

func (c *Context) boundTexture(target glapi.Enum) *texture {
	t := c.textures[c.units[c.unit][target]]
	if t == nil {
		c.fail(glapi.INVALID_OPERATION)
	}
	return t
}

// Texture returns the storage of a texture level, or nil.
func (c *Context) Texture(t glapi.Texture, level int) []byte {
	tex := c.textures[t]
	if tex == nil || level >= len(tex.levels) {
		return nil
	}
	return tex.levels[level]
}

// GenTexture implements glapi.Functions.
func (c *Context) GenTexture() glapi.Texture {
	c.call("GenTexture")
	name := glapi.Texture(c.name())
	c.textures[name] = newTexture(0)
	return name
}

// DeleteTexture implements glapi.Functions.
func (c *Context) DeleteTexture(t glapi.Texture) {
	c.call("DeleteTexture")
	tex := c.textures[t]
	if tex == nil {
		return
	}
	if tex.handle != 0 {
		delete(c.resident, tex.handle)
		delete(c.handles, tex.handle)
	}
	for _, targets := range c.units {
		for target, name := range targets {
			if name == t {
				delete(targets, target)
			}
		}
	}
	delete(c.textures, t)
}

// ActiveTexture implements glapi.Functions.
func (c *Context) ActiveTexture(unit uint32) {
	c.call("ActiveTexture")
	c.unit = unit
}

// BindTexture implements glapi.Functions.
func (c *Context) BindTexture(target glapi.Enum, t glapi.Texture) {
	c.call("BindTexture")
	if t != 0 {
		tex := c.textures[t]
		if tex == nil {
			c.fail(glapi.INVALID_VALUE)
			return
		}
		if tex.target == 0 {
			tex.target = target
		} else if tex.target != target {
			c.fail(glapi.INVALID_OPERATION)
			return
		}
	}
	if c.units[c.unit] == nil {
		c.units[c.unit] = make(map[glapi.Enum]glapi.Texture)
	}
	c.units[c.unit][target] = t
}

// TexStorage2D implements glapi.Functions.
func (c *Context) TexStorage2D(target glapi.Enum, levels int32, internalFormat glapi.Enum, width, height int32) {
	c.call("TexStorage2D")
	tex := c.boundTexture(target)
	if tex == nil {
		return
	}
	if tex.allocated() {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	if width <= 0 || height <= 0 || levels <= 0 || width > c.opts.MaxTextureSize || height > c.opts.MaxTextureSize {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	if !tex.allocate(levels, 1, internalFormat, width, height) {
		c.fail(glapi.INVALID_ENUM)
	}
}

// TexStorage2DMultisample implements glapi.Functions. Samples are not
// stored separately; every sample of a pixel holds the same value.
func (c *Context) TexStorage2DMultisample(target glapi.Enum, samples int32, internalFormat glapi.Enum, width, height int32) {
	c.call("TexStorage2DMultisample")
	tex := c.boundTexture(target)
	if tex == nil {
		return
	}
	if tex.allocated() {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	if samples > c.opts.MaxSamples || width <= 0 || height <= 0 {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	if !tex.allocate(1, samples, internalFormat, width, height) {
		c.fail(glapi.INVALID_ENUM)
	}
}

// TexSubImage2D implements glapi.Functions.
func (c *Context) TexSubImage2D(target glapi.Enum, level, x, y, width, height int32, format, typ glapi.Enum, data []byte) {
	c.call("TexSubImage2D")
	tex := c.boundTexture(target)
	if tex == nil {
		return
	}
	if !tex.allocated() || level < 0 || int(level) >= len(tex.levels) {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	lw, lh := tex.extent(level)
	bpp := tex.layout.Size()
	if x < 0 || y < 0 || x+width > lw || y+height > lh || len(data) < int(width*height)*bpp {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	src := data[:int(width*height)*bpp]
	if format == glapi.BGRA {
		src = append([]byte(nil), src...)
		swizzle(src)
	}
	texel.CopyRect(bpp, tex.levels[level], int(lw), int(x), int(y), src, int(width), 0, 0, int(width), int(height))
}

// GetTexImage implements glapi.Functions.
func (c *Context) GetTexImage(target glapi.Enum, level int32, format, typ glapi.Enum, dst []byte) {
	c.call("GetTexImage")
	tex := c.boundTexture(target)
	if tex == nil {
		return
	}
	if !tex.allocated() || level < 0 || int(level) >= len(tex.levels) {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	src := tex.levels[level]
	if len(dst) < len(src) {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	copy(dst, src)
	if format == glapi.BGRA {
		swizzle(dst[:len(src)])
	}
}

// TexParameteri implements glapi.Functions.
func (c *Context) TexParameteri(target, pname glapi.Enum, param int32) {
	c.call("TexParameteri")
	if tex := c.boundTexture(target); tex != nil {
		tex.params[pname] = param
	}
}

// TexParameter returns a texture parameter previously set.
func (c *Context) TexParameter(t glapi.Texture, pname glapi.Enum) int32 {
	if tex := c.textures[t]; tex != nil {
		return tex.params[pname]
	}
	return 0
}

// GenerateMipmap implements glapi.Functions.
func (c *Context) GenerateMipmap(target glapi.Enum) {
	c.call("GenerateMipmap")
	tex := c.boundTexture(target)
	if tex == nil {
		return
	}
	if !tex.allocated() || tex.samples > 1 {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	for i := 1; i < len(tex.levels); i++ {
		sw, sh := tex.extent(int32(i - 1))
		dw, dh := tex.extent(int32(i))
		texel.Scale(tex.layout, tex.levels[i], int(dw), int(dh), tex.levels[i-1], int(sw), int(sh), true)
	}
}

// CopyImageSubData implements glapi.Functions.
func (c *Context) CopyImageSubData(src glapi.Texture, srcTarget glapi.Enum, srcLevel int32, dst glapi.Texture, dstTarget glapi.Enum, dstLevel int32, width, height int32) {
	c.call("CopyImageSubData")
	s, d := c.textures[src], c.textures[dst]
	if s == nil || d == nil || !s.allocated() || !d.allocated() {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	if int(srcLevel) >= len(s.levels) || int(dstLevel) >= len(d.levels) || s.layout.Size() != d.layout.Size() {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	sw, sh := s.extent(srcLevel)
	dw, dh := d.extent(dstLevel)
	if width > sw || height > sh || width > dw || height > dh {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	texel.CopyRect(s.layout.Size(), d.levels[dstLevel], int(dw), 0, 0, s.levels[srcLevel], int(sw), 0, 0, int(width), int(height))
}

// BindImageTexture implements glapi.Functions.
func (c *Context) BindImageTexture(unit uint32, t glapi.Texture, level int32, access, format glapi.Enum) {
	c.call("BindImageTexture")
	if t != 0 && c.textures[t] == nil {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	c.images[unit] = imageUnit{texture: t, level: level, access: access, format: format}
}

// BoundImage returns the texture bound to an image unit.
func (c *Context) BoundImage(unit uint32) glapi.Texture { return c.images[unit].texture }

// GetTextureHandleARB implements glapi.Functions.
func (c *Context) GetTextureHandleARB(t glapi.Texture) uint64 {
	c.call("GetTextureHandleARB")
	tex := c.textures[t]
	if !c.opts.Bindless || tex == nil || !tex.allocated() {
		c.fail(glapi.INVALID_OPERATION)
		return 0
	}
	if tex.handle == 0 {
		tex.handle = 1<<40 | uint64(t)
		c.handles[tex.handle] = t
	}
	return tex.handle
}

// MakeTextureHandleResidentARB implements glapi.Functions.
func (c *Context) MakeTextureHandleResidentARB(handle uint64) {
	c.call("MakeTextureHandleResidentARB")
	if _, ok := c.handles[handle]; !ok || c.resident[handle] {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	c.resident[handle] = true
}

// MakeTextureHandleNonResidentARB implements glapi.Functions.
func (c *Context) MakeTextureHandleNonResidentARB(handle uint64) {
	c.call("MakeTextureHandleNonResidentARB")
	if !c.resident[handle] {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	delete(c.resident, handle)
}
