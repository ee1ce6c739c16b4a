// Package glapi is a Go-typed seam over the OpenGL 4.6 core entry points
// the OpenGL backend calls.
//
// Functions mirrors the C API one call per method, with slices in place of
// pointer and length pairs and offsets in place of buffer-relative
// pointers. gogl implements it over go-gl; glsoft is a software emulation
// used by tests and headless tools.
package glapi

import "slices"

// Functions is the set of OpenGL entry points used by the backend. All
// calls act on the context current on the calling thread.
type Functions interface {
	// Queries.
	GetInteger(pname Enum) int32
	GetString(name Enum) string
	Extensions() []string
	GetError() Enum
	Finish()

	// Textures.
	GenTexture() Texture
	DeleteTexture(t Texture)
	// ActiveTexture selects texture unit TEXTURE0+unit.
	ActiveTexture(unit uint32)
	BindTexture(target Enum, t Texture)
	TexStorage2D(target Enum, levels int32, internalFormat Enum, width, height int32)
	TexStorage2DMultisample(target Enum, samples int32, internalFormat Enum, width, height int32)
	TexSubImage2D(target Enum, level, x, y, width, height int32, format, typ Enum, data []byte)
	GetTexImage(target Enum, level int32, format, typ Enum, dst []byte)
	TexParameteri(target, pname Enum, param int32)
	GenerateMipmap(target Enum)
	CopyImageSubData(src Texture, srcTarget Enum, srcLevel int32, dst Texture, dstTarget Enum, dstLevel int32, width, height int32)
	BindImageTexture(unit uint32, t Texture, level int32, access, format Enum)

	// Buffers.
	GenBuffer() Buffer
	DeleteBuffer(b Buffer)
	BindBuffer(target Enum, b Buffer)
	// BufferData reallocates the bound buffer. A nil data leaves the new
	// storage zeroed.
	BufferData(target Enum, size int, data []byte, usage Enum)
	BufferSubData(target Enum, offset int, data []byte)
	GetBufferSubData(target Enum, offset int, dst []byte)
	CopyBufferSubData(readTarget, writeTarget Enum, readOffset, writeOffset, size int)
	BindBufferBase(target Enum, index uint32, b Buffer)
	BindBufferRange(target Enum, index uint32, b Buffer, offset, size int)

	// Framebuffers.
	GenFramebuffer() Framebuffer
	DeleteFramebuffer(fb Framebuffer)
	BindFramebuffer(target Enum, fb Framebuffer)
	FramebufferTexture2D(target, attachment, texTarget Enum, t Texture, level int32)
	CheckFramebufferStatus(target Enum) Enum
	DrawBuffers(bufs []Enum)
	ReadBuffer(src Enum)
	ClearBufferfv(buffer Enum, drawBuffer int32, value [4]float32)
	ClearBufferfi(buffer Enum, drawBuffer int32, depth float32, stencil int32)
	BlitFramebuffer(srcX0, srcY0, srcX1, srcY1, dstX0, dstY0, dstX1, dstY1 int32, mask uint32, filter Enum)
	ReadPixels(x, y, width, height int32, format, typ Enum, dst []byte)

	// Shaders and programs.
	CreateShader(typ Enum) Shader
	ShaderSource(s Shader, src string)
	CompileShader(s Shader)
	GetShaderi(s Shader, pname Enum) int32
	GetShaderInfoLog(s Shader) string
	DeleteShader(s Shader)
	CreateProgram() Program
	AttachShader(p Program, s Shader)
	DetachShader(p Program, s Shader)
	LinkProgram(p Program)
	GetProgrami(p Program, pname Enum) int32
	GetProgramInfoLog(p Program) string
	UseProgram(p Program)
	DeleteProgram(p Program)

	// Vertex arrays. Attribute pointers source the buffer bound to
	// ARRAY_BUFFER at call time.
	GenVertexArray() VertexArray
	DeleteVertexArray(v VertexArray)
	BindVertexArray(v VertexArray)
	EnableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, typ Enum, normalized bool, stride int32, offset int)
	VertexAttribIPointer(index uint32, size int32, typ Enum, stride int32, offset int)
	VertexAttribDivisor(index, divisor uint32)

	// Fixed-function state.
	Enable(capability Enum)
	Disable(capability Enum)
	Viewport(x, y, width, height int32)
	DepthRangef(near, far float32)
	Scissor(x, y, width, height int32)
	LineWidth(w float32)
	BlendColor(r, g, b, a float32)
	BlendEquationSeparate(modeRGB, modeAlpha Enum)
	BlendFuncSeparate(srcRGB, dstRGB, srcAlpha, dstAlpha Enum)
	ColorMask(r, g, b, a bool)
	PolygonOffsetClamp(factor, units, clamp float32)
	DepthMask(flag bool)
	DepthFunc(fn Enum)
	StencilOpSeparate(face, sfail, dpfail, dppass Enum)
	StencilFuncSeparate(face, fn Enum, ref int32, mask uint32)
	StencilMaskSeparate(face Enum, mask uint32)
	CullFace(mode Enum)
	FrontFace(mode Enum)
	LogicOp(op Enum)
	PolygonMode(face, mode Enum)

	// Draws and dispatches. Offsets are relative to the bound element,
	// indirect and dispatch buffers.
	DrawArraysInstancedBaseInstance(mode Enum, first, count, instances int32, baseInstance uint32)
	DrawElementsInstancedBaseVertexBaseInstance(mode Enum, count int32, typ Enum, offset int, instances, baseVertex int32, baseInstance uint32)
	MultiDrawArraysIndirect(mode Enum, offset int, drawCount, stride int32)
	MultiDrawElementsIndirect(mode, typ Enum, offset int, drawCount, stride int32)
	DispatchCompute(x, y, z uint32)
	DispatchComputeIndirect(offset int)
	MemoryBarrier(barriers uint32)

	// GL_ARB_bindless_texture. Only valid when Extensions lists
	// ExtBindlessTexture.
	GetTextureHandleARB(t Texture) uint64
	MakeTextureHandleResidentARB(handle uint64)
	MakeTextureHandleNonResidentARB(handle uint64)
}

// HasExtension reports whether f advertises ext.
func HasExtension(f Functions, ext string) bool {
	return slices.Contains(f.Extensions(), ext)
}
