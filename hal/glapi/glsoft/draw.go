package glsoft

import "github.com/gogpu/rhi/hal/glapi"

type vertexAttrib struct {
	enabled bool
	buffer  glapi.Buffer
	size    int32
	typ     glapi.Enum
	stride  int32
	offset  int
	integer bool
	divisor uint32
}

type vertexArray struct {
	attribs  map[uint32]*vertexAttrib
	elements glapi.Buffer
}

func (v *vertexArray) attrib(i uint32) *vertexAttrib {
	a := v.attribs[i]
	if a == nil {
		a = &vertexAttrib{}
		v.attribs[i] = a
	}
	return a
}

func (c *Context) boundVAO() *vertexArray {
	v := c.vaos[c.vao]
	if v == nil {
		c.fail(glapi.INVALID_OPERATION)
	}
	return v
}

// GenVertexArray implements glapi.Functions.
func (c *Context) GenVertexArray() glapi.VertexArray {
	c.call("GenVertexArray")
	name := glapi.VertexArray(c.name())
	c.vaos[name] = &vertexArray{attribs: make(map[uint32]*vertexAttrib)}
	return name
}

// DeleteVertexArray implements glapi.Functions.
func (c *Context) DeleteVertexArray(v glapi.VertexArray) {
	c.call("DeleteVertexArray")
	if c.vao == v {
		c.vao = 0
	}
	delete(c.vaos, v)
}

// BindVertexArray implements glapi.Functions.
func (c *Context) BindVertexArray(v glapi.VertexArray) {
	c.call("BindVertexArray")
	if v != 0 && c.vaos[v] == nil {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	c.vao = v
	if va := c.vaos[v]; va != nil {
		c.bound[glapi.ELEMENT_ARRAY_BUFFER] = va.elements
	}
}

// EnableVertexAttribArray implements glapi.Functions.
func (c *Context) EnableVertexAttribArray(index uint32) {
	c.call("EnableVertexAttribArray")
	if v := c.boundVAO(); v != nil {
		v.attrib(index).enabled = true
	}
}

// VertexAttribPointer implements glapi.Functions.
func (c *Context) VertexAttribPointer(index uint32, size int32, typ glapi.Enum, normalized bool, stride int32, offset int) {
	c.call("VertexAttribPointer")
	c.attribPointer(index, size, typ, stride, offset, false)
}

// VertexAttribIPointer implements glapi.Functions.
func (c *Context) VertexAttribIPointer(index uint32, size int32, typ glapi.Enum, stride int32, offset int) {
	c.call("VertexAttribIPointer")
	c.attribPointer(index, size, typ, stride, offset, true)
}

func (c *Context) attribPointer(index uint32, size int32, typ glapi.Enum, stride int32, offset int, integer bool) {
	v := c.boundVAO()
	if v == nil {
		return
	}
	buf := c.bound[glapi.ARRAY_BUFFER]
	if buf == 0 {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	a := v.attrib(index)
	a.buffer, a.size, a.typ, a.stride, a.offset, a.integer = buf, size, typ, stride, offset, integer
}

// VertexAttribDivisor implements glapi.Functions.
func (c *Context) VertexAttribDivisor(index, divisor uint32) {
	c.call("VertexAttribDivisor")
	if v := c.boundVAO(); v != nil {
		v.attrib(index).divisor = divisor
	}
}

// VertexAttribBuffer returns the buffer, stride and divisor of an
// attribute of a vertex array.
func (c *Context) VertexAttribBuffer(v glapi.VertexArray, index uint32) (b glapi.Buffer, stride int32, divisor uint32) {
	va := c.vaos[v]
	if va == nil || va.attribs[index] == nil {
		return 0, 0, 0
	}
	a := va.attribs[index]
	return a.buffer, a.stride, a.divisor
}

// drawable checks the state a graphics draw needs.
func (c *Context) drawable() bool {
	prog := c.programs[c.program]
	if prog == nil || prog.compute || c.vao == 0 {
		c.fail(glapi.INVALID_OPERATION)
		return false
	}
	return true
}

func (c *Context) indirect(target glapi.Enum, offset int, size int) bool {
	b := c.buffers[c.bound[target]]
	if b == nil || offset < 0 || offset+size > len(b.data) {
		c.fail(glapi.INVALID_OPERATION)
		return false
	}
	return true
}

// DrawArraysInstancedBaseInstance implements glapi.Functions.
func (c *Context) DrawArraysInstancedBaseInstance(mode glapi.Enum, first, count, instances int32, baseInstance uint32) {
	c.call("DrawArraysInstancedBaseInstance")
	if count < 0 || instances < 0 {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	c.drawable()
}

// DrawElementsInstancedBaseVertexBaseInstance implements glapi.Functions.
func (c *Context) DrawElementsInstancedBaseVertexBaseInstance(mode glapi.Enum, count int32, typ glapi.Enum, offset int, instances, baseVertex int32, baseInstance uint32) {
	c.call("DrawElementsInstancedBaseVertexBaseInstance")
	if !c.drawable() {
		return
	}
	if c.buffers[c.bound[glapi.ELEMENT_ARRAY_BUFFER]] == nil {
		c.fail(glapi.INVALID_OPERATION)
	}
}

// MultiDrawArraysIndirect implements glapi.Functions.
func (c *Context) MultiDrawArraysIndirect(mode glapi.Enum, offset int, drawCount, stride int32) {
	c.call("MultiDrawArraysIndirect")
	if c.drawable() {
		c.indirect(glapi.DRAW_INDIRECT_BUFFER, offset, int(max(drawCount-1, 0)*max(stride, 16))+16)
	}
}

// MultiDrawElementsIndirect implements glapi.Functions.
func (c *Context) MultiDrawElementsIndirect(mode, typ glapi.Enum, offset int, drawCount, stride int32) {
	c.call("MultiDrawElementsIndirect")
	if c.drawable() {
		c.indirect(glapi.DRAW_INDIRECT_BUFFER, offset, int(max(drawCount-1, 0)*max(stride, 20))+20)
	}
}

// DispatchCompute implements glapi.Functions.
func (c *Context) DispatchCompute(x, y, z uint32) {
	c.call("DispatchCompute")
	if prog := c.programs[c.program]; prog == nil || !prog.compute {
		c.fail(glapi.INVALID_OPERATION)
	}
}

// DispatchComputeIndirect implements glapi.Functions.
func (c *Context) DispatchComputeIndirect(offset int) {
	c.call("DispatchComputeIndirect")
	if prog := c.programs[c.program]; prog == nil || !prog.compute {
		c.fail(glapi.INVALID_OPERATION)
		return
	}
	c.indirect(glapi.DISPATCH_INDIRECT_BUFFER, offset, 12)
}

var _ glapi.Functions = (*Context)(nil)
