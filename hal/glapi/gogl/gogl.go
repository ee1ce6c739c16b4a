//go:build !nogpu

// Package gogl implements glapi.Functions over the go-gl all-core
// bindings. A Context must only be used on the thread that owns the GL
// context.
package gogl

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/all-core/gl"

	"github.com/gogpu/rhi/hal/glapi"
)

// Context calls the entry points of the current OpenGL context.
type Context struct {
	extensions []string
}

// New loads the entry points of the context current on the calling
// thread.
func New() (*Context, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gogl: load entry points: %w", err)
	}
	c := &Context{}
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	c.extensions = make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		c.extensions = append(c.extensions, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}
	return c, nil
}

func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func (c *Context) GetInteger(pname glapi.Enum) int32 {
	var v int32
	gl.GetIntegerv(uint32(pname), &v)
	return v
}

func (c *Context) GetString(name glapi.Enum) string { return gl.GoStr(gl.GetString(uint32(name))) }
func (c *Context) Extensions() []string             { return c.extensions }
func (c *Context) GetError() glapi.Enum             { return glapi.Enum(gl.GetError()) }
func (c *Context) Finish()                          { gl.Finish() }

func (c *Context) GenTexture() glapi.Texture {
	var t uint32
	gl.GenTextures(1, &t)
	return glapi.Texture(t)
}

func (c *Context) DeleteTexture(t glapi.Texture) {
	name := uint32(t)
	gl.DeleteTextures(1, &name)
}

func (c *Context) ActiveTexture(unit uint32) { gl.ActiveTexture(gl.TEXTURE0 + unit) }

func (c *Context) BindTexture(target glapi.Enum, t glapi.Texture) {
	gl.BindTexture(uint32(target), uint32(t))
}

func (c *Context) TexStorage2D(target glapi.Enum, levels int32, internalFormat glapi.Enum, width, height int32) {
	gl.TexStorage2D(uint32(target), levels, uint32(internalFormat), width, height)
}

func (c *Context) TexStorage2DMultisample(target glapi.Enum, samples int32, internalFormat glapi.Enum, width, height int32) {
	gl.TexStorage2DMultisample(uint32(target), samples, uint32(internalFormat), width, height, true)
}

func (c *Context) TexSubImage2D(target glapi.Enum, level, x, y, width, height int32, format, typ glapi.Enum, data []byte) {
	gl.TexSubImage2D(uint32(target), level, x, y, width, height, uint32(format), uint32(typ), ptr(data))
}

func (c *Context) GetTexImage(target glapi.Enum, level int32, format, typ glapi.Enum, dst []byte) {
	gl.GetTexImage(uint32(target), level, uint32(format), uint32(typ), ptr(dst))
}

func (c *Context) TexParameteri(target, pname glapi.Enum, param int32) {
	gl.TexParameteri(uint32(target), uint32(pname), param)
}

func (c *Context) GenerateMipmap(target glapi.Enum) { gl.GenerateMipmap(uint32(target)) }

func (c *Context) CopyImageSubData(src glapi.Texture, srcTarget glapi.Enum, srcLevel int32, dst glapi.Texture, dstTarget glapi.Enum, dstLevel int32, width, height int32) {
	gl.CopyImageSubData(uint32(src), uint32(srcTarget), srcLevel, 0, 0, 0,
		uint32(dst), uint32(dstTarget), dstLevel, 0, 0, 0, width, height, 1)
}

func (c *Context) BindImageTexture(unit uint32, t glapi.Texture, level int32, access, format glapi.Enum) {
	gl.BindImageTexture(unit, uint32(t), level, false, 0, uint32(access), uint32(format))
}

func (c *Context) GenBuffer() glapi.Buffer {
	var b uint32
	gl.GenBuffers(1, &b)
	return glapi.Buffer(b)
}

func (c *Context) DeleteBuffer(b glapi.Buffer) {
	name := uint32(b)
	gl.DeleteBuffers(1, &name)
}

func (c *Context) BindBuffer(target glapi.Enum, b glapi.Buffer) {
	gl.BindBuffer(uint32(target), uint32(b))
}

func (c *Context) BufferData(target glapi.Enum, size int, data []byte, usage glapi.Enum) {
	gl.BufferData(uint32(target), size, ptr(data), uint32(usage))
}

func (c *Context) BufferSubData(target glapi.Enum, offset int, data []byte) {
	gl.BufferSubData(uint32(target), offset, len(data), ptr(data))
}

func (c *Context) GetBufferSubData(target glapi.Enum, offset int, dst []byte) {
	gl.GetBufferSubData(uint32(target), offset, len(dst), ptr(dst))
}

func (c *Context) CopyBufferSubData(readTarget, writeTarget glapi.Enum, readOffset, writeOffset, size int) {
	gl.CopyBufferSubData(uint32(readTarget), uint32(writeTarget), readOffset, writeOffset, size)
}

func (c *Context) BindBufferBase(target glapi.Enum, index uint32, b glapi.Buffer) {
	gl.BindBufferBase(uint32(target), index, uint32(b))
}

func (c *Context) BindBufferRange(target glapi.Enum, index uint32, b glapi.Buffer, offset, size int) {
	gl.BindBufferRange(uint32(target), index, uint32(b), offset, size)
}

func (c *Context) GenFramebuffer() glapi.Framebuffer {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	return glapi.Framebuffer(fb)
}

func (c *Context) DeleteFramebuffer(fb glapi.Framebuffer) {
	name := uint32(fb)
	gl.DeleteFramebuffers(1, &name)
}

func (c *Context) BindFramebuffer(target glapi.Enum, fb glapi.Framebuffer) {
	gl.BindFramebuffer(uint32(target), uint32(fb))
}

func (c *Context) FramebufferTexture2D(target, attachment, texTarget glapi.Enum, t glapi.Texture, level int32) {
	gl.FramebufferTexture2D(uint32(target), uint32(attachment), uint32(texTarget), uint32(t), level)
}

func (c *Context) CheckFramebufferStatus(target glapi.Enum) glapi.Enum {
	return glapi.Enum(gl.CheckFramebufferStatus(uint32(target)))
}

func (c *Context) DrawBuffers(bufs []glapi.Enum) {
	if len(bufs) == 0 {
		gl.DrawBuffers(0, nil)
		return
	}
	names := make([]uint32, len(bufs))
	for i, b := range bufs {
		names[i] = uint32(b)
	}
	gl.DrawBuffers(int32(len(names)), &names[0])
}

func (c *Context) ReadBuffer(src glapi.Enum) { gl.ReadBuffer(uint32(src)) }

func (c *Context) ClearBufferfv(buf glapi.Enum, drawBuffer int32, value [4]float32) {
	gl.ClearBufferfv(uint32(buf), drawBuffer, &value[0])
}

func (c *Context) ClearBufferfi(buf glapi.Enum, drawBuffer int32, depth float32, stencil int32) {
	gl.ClearBufferfi(uint32(buf), drawBuffer, depth, stencil)
}

func (c *Context) BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask uint32, filter glapi.Enum) {
	gl.BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1, mask, uint32(filter))
}

func (c *Context) ReadPixels(x, y, width, height int32, format, typ glapi.Enum, dst []byte) {
	gl.ReadPixels(x, y, width, height, uint32(format), uint32(typ), ptr(dst))
}

func (c *Context) CreateShader(typ glapi.Enum) glapi.Shader {
	return glapi.Shader(gl.CreateShader(uint32(typ)))
}

func (c *Context) ShaderSource(s glapi.Shader, src string) {
	csrc, free := gl.Strs(src + "\x00")
	defer free()
	gl.ShaderSource(uint32(s), 1, csrc, nil)
}

func (c *Context) CompileShader(s glapi.Shader) { gl.CompileShader(uint32(s)) }

func (c *Context) GetShaderi(s glapi.Shader, pname glapi.Enum) int32 {
	var v int32
	gl.GetShaderiv(uint32(s), uint32(pname), &v)
	return v
}

func (c *Context) GetShaderInfoLog(s glapi.Shader) string {
	n := c.GetShaderi(s, glapi.INFO_LOG_LENGTH)
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	gl.GetShaderInfoLog(uint32(s), n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00")
}

func (c *Context) DeleteShader(s glapi.Shader)  { gl.DeleteShader(uint32(s)) }
func (c *Context) CreateProgram() glapi.Program { return glapi.Program(gl.CreateProgram()) }

func (c *Context) AttachShader(p glapi.Program, s glapi.Shader) {
	gl.AttachShader(uint32(p), uint32(s))
}

func (c *Context) DetachShader(p glapi.Program, s glapi.Shader) {
	gl.DetachShader(uint32(p), uint32(s))
}

func (c *Context) LinkProgram(p glapi.Program) { gl.LinkProgram(uint32(p)) }

func (c *Context) GetProgrami(p glapi.Program, pname glapi.Enum) int32 {
	var v int32
	gl.GetProgramiv(uint32(p), uint32(pname), &v)
	return v
}

func (c *Context) GetProgramInfoLog(p glapi.Program) string {
	n := c.GetProgrami(p, glapi.INFO_LOG_LENGTH)
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	gl.GetProgramInfoLog(uint32(p), n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00")
}

func (c *Context) UseProgram(p glapi.Program)    { gl.UseProgram(uint32(p)) }
func (c *Context) DeleteProgram(p glapi.Program) { gl.DeleteProgram(uint32(p)) }

func (c *Context) GenVertexArray() glapi.VertexArray {
	var v uint32
	gl.GenVertexArrays(1, &v)
	return glapi.VertexArray(v)
}

func (c *Context) DeleteVertexArray(v glapi.VertexArray) {
	name := uint32(v)
	gl.DeleteVertexArrays(1, &name)
}

func (c *Context) BindVertexArray(v glapi.VertexArray)  { gl.BindVertexArray(uint32(v)) }
func (c *Context) EnableVertexAttribArray(index uint32) { gl.EnableVertexAttribArray(index) }

func (c *Context) VertexAttribPointer(index uint32, size int32, typ glapi.Enum, normalized bool, stride int32, offset int) {
	gl.VertexAttribPointerWithOffset(index, size, uint32(typ), normalized, stride, uintptr(offset))
}

func (c *Context) VertexAttribIPointer(index uint32, size int32, typ glapi.Enum, stride int32, offset int) {
	gl.VertexAttribIPointerWithOffset(index, size, uint32(typ), stride, uintptr(offset))
}

func (c *Context) VertexAttribDivisor(index, divisor uint32) { gl.VertexAttribDivisor(index, divisor) }

func (c *Context) Enable(capability glapi.Enum)       { gl.Enable(uint32(capability)) }
func (c *Context) Disable(capability glapi.Enum)      { gl.Disable(uint32(capability)) }
func (c *Context) Viewport(x, y, width, height int32) { gl.Viewport(x, y, width, height) }
func (c *Context) DepthRangef(near, far float32)      { gl.DepthRangef(near, far) }
func (c *Context) Scissor(x, y, width, height int32)  { gl.Scissor(x, y, width, height) }
func (c *Context) LineWidth(w float32)                { gl.LineWidth(w) }
func (c *Context) BlendColor(r, g, b, a float32)      { gl.BlendColor(r, g, b, a) }
func (c *Context) ColorMask(r, g, b, a bool)          { gl.ColorMask(r, g, b, a) }
func (c *Context) DepthMask(flag bool)                { gl.DepthMask(flag) }
func (c *Context) DepthFunc(fn glapi.Enum)            { gl.DepthFunc(uint32(fn)) }
func (c *Context) CullFace(mode glapi.Enum)           { gl.CullFace(uint32(mode)) }
func (c *Context) FrontFace(mode glapi.Enum)          { gl.FrontFace(uint32(mode)) }
func (c *Context) LogicOp(op glapi.Enum)              { gl.LogicOp(uint32(op)) }
func (c *Context) PolygonMode(face, mode glapi.Enum)  { gl.PolygonMode(uint32(face), uint32(mode)) }
func (c *Context) MemoryBarrier(barriers uint32)      { gl.MemoryBarrier(barriers) }
func (c *Context) DispatchCompute(x, y, z uint32)     { gl.DispatchCompute(x, y, z) }
func (c *Context) DispatchComputeIndirect(offset int) { gl.DispatchComputeIndirect(offset) }
func (c *Context) GetTextureHandleARB(t glapi.Texture) uint64 {
	return gl.GetTextureHandleARB(uint32(t))
}

func (c *Context) BlendEquationSeparate(modeRGB, modeAlpha glapi.Enum) {
	gl.BlendEquationSeparate(uint32(modeRGB), uint32(modeAlpha))
}

func (c *Context) BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha glapi.Enum) {
	gl.BlendFuncSeparate(uint32(srcRGB), uint32(dstRGB), uint32(srcAlpha), uint32(dstAlpha))
}

func (c *Context) PolygonOffsetClamp(factor, units, clamp float32) {
	gl.PolygonOffsetClamp(factor, units, clamp)
}

func (c *Context) StencilOpSeparate(face, sfail, dpfail, dppass glapi.Enum) {
	gl.StencilOpSeparate(uint32(face), uint32(sfail), uint32(dpfail), uint32(dppass))
}

func (c *Context) StencilFuncSeparate(face, fn glapi.Enum, ref int32, mask uint32) {
	gl.StencilFuncSeparate(uint32(face), uint32(fn), ref, mask)
}

func (c *Context) StencilMaskSeparate(face glapi.Enum, mask uint32) {
	gl.StencilMaskSeparate(uint32(face), mask)
}

func (c *Context) DrawArraysInstancedBaseInstance(mode glapi.Enum, first, count, instances int32, baseInstance uint32) {
	gl.DrawArraysInstancedBaseInstance(uint32(mode), first, count, instances, baseInstance)
}

func (c *Context) DrawElementsInstancedBaseVertexBaseInstance(mode glapi.Enum, count int32, typ glapi.Enum, offset int, instances, baseVertex int32, baseInstance uint32) {
	gl.DrawElementsInstancedBaseVertexBaseInstance(uint32(mode), count, uint32(typ), gl.PtrOffset(offset), instances, baseVertex, baseInstance)
}

func (c *Context) MultiDrawArraysIndirect(mode glapi.Enum, offset int, drawCount, stride int32) {
	gl.MultiDrawArraysIndirect(uint32(mode), gl.PtrOffset(offset), drawCount, stride)
}

func (c *Context) MultiDrawElementsIndirect(mode, typ glapi.Enum, offset int, drawCount, stride int32) {
	gl.MultiDrawElementsIndirect(uint32(mode), uint32(typ), gl.PtrOffset(offset), drawCount, stride)
}

func (c *Context) MakeTextureHandleResidentARB(handle uint64) {
	gl.MakeTextureHandleResidentARB(handle)
}

func (c *Context) MakeTextureHandleNonResidentARB(handle uint64) {
	gl.MakeTextureHandleNonResidentARB(handle)
}

var _ glapi.Functions = (*Context)(nil)
