package glsoft

import (
	"image"

	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/internal/texel"
)

type attachment struct {
	tex   *texture
	level int32
}

type framebuffer struct {
	colors      map[int]attachment
	depth       attachment
	drawBuffers []glapi.Enum
	readBuffer  glapi.Enum
}

func (c *Context) fbOf(name glapi.Framebuffer) *framebuffer {
	if name == 0 {
		return c.backbuffer
	}
	return c.fbos[name]
}

func (c *Context) targetFramebuffer(target glapi.Enum) *framebuffer {
	if target == glapi.READ_FRAMEBUFFER {
		return c.fbOf(c.readFBO)
	}
	return c.fbOf(c.drawFBO)
}

// colorIndex maps a draw or read buffer enum to an attachment index.
func colorIndex(buf glapi.Enum) (int, bool) {
	switch {
	case buf == glapi.BACK:
		return 0, true
	case buf >= glapi.COLOR_ATTACHMENT0 && buf < glapi.COLOR_ATTACHMENT0+8:
		return int(buf - glapi.COLOR_ATTACHMENT0), true
	}
	return 0, false
}

// Pixels returns a copy of the default framebuffer color buffer as
// tightly packed RGBA8 rows.
func (c *Context) Pixels() []byte {
	return append([]byte(nil), c.backbuffer.colors[0].tex.levels[0]...)
}

// GenFramebuffer implements glapi.Functions.
func (c *Context) GenFramebuffer() glapi.Framebuffer {
	c.call("GenFramebuffer")
	name := glapi.Framebuffer(c.name())
	c.fbos[name] = &framebuffer{
		colors:      make(map[int]attachment),
		drawBuffers: []glapi.Enum{glapi.COLOR_ATTACHMENT0},
		readBuffer:  glapi.COLOR_ATTACHMENT0,
	}
	return name
}

// DeleteFramebuffer implements glapi.Functions.
func (c *Context) DeleteFramebuffer(fb glapi.Framebuffer) {
	c.call("DeleteFramebuffer")
	if fb == 0 || c.fbos[fb] == nil {
		return
	}
	if c.drawFBO == fb {
		c.drawFBO = 0
	}
	if c.readFBO == fb {
		c.readFBO = 0
	}
	delete(c.fbos, fb)
}

// BindFramebuffer implements glapi.Functions.
func (c *Context) BindFramebuffer(target glapi.Enum, fb glapi.Framebuffer) {
	c.call("BindFramebuffer")
	if c.fbOf(fb) == nil {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	switch target {
	case glapi.FRAMEBUFFER:
		c.drawFBO, c.readFBO = fb, fb
	case glapi.DRAW_FRAMEBUFFER:
		c.drawFBO = fb
	case glapi.READ_FRAMEBUFFER:
		c.readFBO = fb
	default:
		c.fail(glapi.INVALID_ENUM)
	}
}

// DrawFramebuffer returns the framebuffer bound for drawing.
func (c *Context) DrawFramebuffer() glapi.Framebuffer { return c.drawFBO }

// FramebufferTexture2D implements glapi.Functions.
func (c *Context) FramebufferTexture2D(target, attach, texTarget glapi.Enum, t glapi.Texture, level int32) {
	c.call("FramebufferTexture2D")
	name := c.drawFBO
	if target == glapi.READ_FRAMEBUFFER {
		name = c.readFBO
	}
	if name == 0 {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	fb := c.fbos[name]
	var a attachment
	if t != 0 {
		tex := c.textures[t]
		if tex == nil || tex.target != texTarget || int(level) >= len(tex.levels) {
			c.fail(glapi.INVALID_OPERATION)
			return
		}
		a = attachment{tex: tex, level: level}
	}
	switch {
	case attach == glapi.DEPTH_ATTACHMENT || attach == glapi.DEPTH_STENCIL_ATTACHMENT:
		fb.depth = a
	default:
		i, ok := colorIndex(attach)
		if !ok || attach == glapi.BACK {
			c.fail(glapi.INVALID_ENUM)
			return
		}
		if a.tex == nil {
			delete(fb.colors, i)
		} else {
			fb.colors[i] = a
		}
	}
}

// CheckFramebufferStatus implements glapi.Functions.
func (c *Context) CheckFramebufferStatus(target glapi.Enum) glapi.Enum {
	c.call("CheckFramebufferStatus")
	fb := c.targetFramebuffer(target)
	var w, h, samples int32
	check := func(a attachment) bool {
		if a.tex == nil {
			return true
		}
		aw, ah := a.tex.extent(a.level)
		if w == 0 {
			w, h, samples = aw, ah, a.tex.samples
			return true
		}
		return aw == w && ah == h && a.tex.samples == samples
	}
	for _, a := range fb.colors {
		if !check(a) {
			return glapi.FRAMEBUFFER_INCOMPLETE
		}
	}
	if !check(fb.depth) || w == 0 {
		return glapi.FRAMEBUFFER_INCOMPLETE
	}
	return glapi.FRAMEBUFFER_COMPLETE
}

// DrawBuffers implements glapi.Functions.
func (c *Context) DrawBuffers(bufs []glapi.Enum) {
	c.call("DrawBuffers")
	fb := c.fbOf(c.drawFBO)
	fb.drawBuffers = append(fb.drawBuffers[:0], bufs...)
}

// ReadBuffer implements glapi.Functions.
func (c *Context) ReadBuffer(src glapi.Enum) {
	c.call("ReadBuffer")
	c.fbOf(c.readFBO).readBuffer = src
}

func (c *Context) clearRect(a attachment) image.Rectangle {
	w, h := a.tex.extent(a.level)
	r := image.Rect(0, 0, int(w), int(h))
	if c.enabled[glapi.SCISSOR_TEST] {
		s := c.scissor
		r = r.Intersect(image.Rect(int(s[0]), int(s[1]), int(s[0]+s[2]), int(s[1]+s[3])))
	}
	return r
}

// fillMasked writes px over r, keeping the bytes of each pixel whose keep
// flag is set.
func fillMasked(a attachment, r image.Rectangle, px []byte, keep []bool) {
	w, _ := a.tex.extent(a.level)
	dst := a.tex.levels[a.level]
	bpp := len(px)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			o := (y*int(w) + x) * bpp
			for i := 0; i < bpp; i++ {
				if !keep[i] {
					dst[o+i] = px[i]
				}
			}
		}
	}
}

func (c *Context) colorKeep(l texel.Layout) []bool {
	keep := make([]bool, l.Size())
	per := l.Size() / l.Channels
	for i := range keep {
		ch := i / per
		keep[i] = ch < 4 && !c.colorMask[ch]
	}
	return keep
}

// depthKeep returns the byte mask for a depth/stencil clear. Stencil is
// the low byte of a packed 24/8 value.
func depthKeep(l texel.Layout, depth, stencil bool) []bool {
	keep := make([]bool, l.Size())
	if l.Kind == texel.Depth24Stencil8 {
		keep[0] = !stencil
		keep[1], keep[2], keep[3] = !depth, !depth, !depth
		return keep
	}
	for i := range keep {
		keep[i] = !depth
	}
	return keep
}

// ClearBufferfv implements glapi.Functions.
func (c *Context) ClearBufferfv(buf glapi.Enum, drawBuffer int32, value [4]float32) {
	c.call("ClearBufferfv")
	fb := c.fbOf(c.drawFBO)
	switch buf {
	case glapi.COLOR:
		if drawBuffer < 0 || int(drawBuffer) >= len(fb.drawBuffers) {
			c.fail(glapi.INVALID_VALUE)
			return
		}
		i, ok := colorIndex(fb.drawBuffers[drawBuffer])
		a := fb.colors[i]
		if !ok || a.tex == nil {
			return
		}
		fillMasked(a, c.clearRect(a), a.tex.layout.Color(value), c.colorKeep(a.tex.layout))
	case glapi.DEPTH:
		a := fb.depth
		if a.tex == nil || !c.depthMask {
			return
		}
		fillMasked(a, c.clearRect(a), a.tex.layout.DepthStencil(value[0], 0), depthKeep(a.tex.layout, true, false))
	default:
		c.fail(glapi.INVALID_ENUM)
	}
}

// ClearBufferfi implements glapi.Functions.
func (c *Context) ClearBufferfi(buf glapi.Enum, drawBuffer int32, depth float32, stencil int32) {
	c.call("ClearBufferfi")
	if buf != glapi.DEPTH_STENCIL {
		c.fail(glapi.INVALID_ENUM)
		return
	}
	a := c.fbOf(c.drawFBO).depth
	if a.tex == nil {
		return
	}
	px := a.tex.layout.DepthStencil(depth, uint32(stencil))
	fillMasked(a, c.clearRect(a), px, depthKeep(a.tex.layout, c.depthMask, true))
}

func region(a attachment, x0, y0, x1, y1 int32) ([]byte, int, int, bool) {
	w, h := a.tex.extent(a.level)
	if x0 < 0 || y0 < 0 || x1 > w || y1 > h || x1 <= x0 || y1 <= y0 {
		return nil, 0, 0, false
	}
	rw, rh := int(x1-x0), int(y1-y0)
	bpp := a.tex.layout.Size()
	out := make([]byte, rw*rh*bpp)
	texel.CopyRect(bpp, out, rw, 0, 0, a.tex.levels[a.level], int(w), int(x0), int(y0), rw, rh)
	return out, rw, rh, true
}

func blitInto(dst attachment, x0, y0, x1, y1 int32, src []byte, sw, sh int, linear bool) bool {
	w, h := dst.tex.extent(dst.level)
	if x0 < 0 || y0 < 0 || x1 > w || y1 > h || x1 <= x0 || y1 <= y0 {
		return false
	}
	dw, dh := int(x1-x0), int(y1-y0)
	scaled := src
	if dw != sw || dh != sh {
		scaled = make([]byte, dw*dh*dst.tex.layout.Size())
		texel.Scale(dst.tex.layout, scaled, dw, dh, src, sw, sh, linear)
	}
	texel.CopyRect(dst.tex.layout.Size(), dst.tex.levels[dst.level], int(w), int(x0), int(y0), scaled, dw, 0, 0, dw, dh)
	return true
}

// BlitFramebuffer implements glapi.Functions. Multisampled sources resolve
// by copy since samples are stored once per pixel.
func (c *Context) BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask uint32, filter glapi.Enum) {
	c.call("BlitFramebuffer")
	read, draw := c.fbOf(c.readFBO), c.fbOf(c.drawFBO)
	sameSize := srcX1-srcX0 == dstX1-dstX0 && srcY1-srcY0 == dstY1-dstY0
	linear := filter == glapi.LINEAR

	if mask&glapi.COLOR_BUFFER_BIT != 0 {
		i, ok := colorIndex(read.readBuffer)
		src := read.colors[i]
		if !ok || src.tex == nil {
			c.fail(glapi.INVALID_OPERATION)
			return
		}
		if src.tex.samples > 1 && !sameSize {
			c.fail(glapi.INVALID_OPERATION)
			return
		}
		data, sw, sh, ok := region(src, srcX0, srcY0, srcX1, srcY1)
		if !ok {
			c.fail(glapi.INVALID_VALUE)
			return
		}
		for _, buf := range draw.drawBuffers {
			j, ok := colorIndex(buf)
			dst := draw.colors[j]
			if !ok || dst.tex == nil {
				continue
			}
			if dst.tex.layout.Size() != src.tex.layout.Size() {
				c.fail(glapi.INVALID_OPERATION)
				return
			}
			if !blitInto(dst, dstX0, dstY0, dstX1, dstY1, data, sw, sh, linear) {
				c.fail(glapi.INVALID_VALUE)
				return
			}
		}
	}
	if mask&(glapi.DEPTH_BUFFER_BIT|glapi.STENCIL_BUFFER_BIT) != 0 {
		src, dst := read.depth, draw.depth
		if src.tex == nil || dst.tex == nil || linear || src.tex.internal != dst.tex.internal {
			c.fail(glapi.INVALID_OPERATION)
			return
		}
		data, sw, sh, ok := region(src, srcX0, srcY0, srcX1, srcY1)
		if !ok || !blitInto(dst, dstX0, dstY0, dstX1, dstY1, data, sw, sh, false) {
			c.fail(glapi.INVALID_VALUE)
		}
	}
}

// ReadPixels implements glapi.Functions.
func (c *Context) ReadPixels(x, y, width, height int32, format, typ glapi.Enum, dst []byte) {
	c.call("ReadPixels")
	fb := c.fbOf(c.readFBO)
	var a attachment
	if format == glapi.DEPTH_COMPONENT || format == glapi.DEPTH_STENCIL {
		a = fb.depth
	} else if i, ok := colorIndex(fb.readBuffer); ok {
		a = fb.colors[i]
	}
	if a.tex == nil || a.tex.samples > 1 {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	data, _, _, ok := region(a, x, y, x+width, y+height)
	if !ok || len(dst) < len(data) {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	copy(dst, data)
	if format == glapi.BGRA {
		swizzle(dst[:len(data)])
	}
}
