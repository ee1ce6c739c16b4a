package glsoft

import "github.com/gogpu/rhi/hal/glapi"

type buffer struct {
	data  []byte
	usage glapi.Enum
}

func (c *Context) boundBuffer(target glapi.Enum) *buffer {
	b := c.buffers[c.bound[target]]
	if b == nil {
		c.fail(glapi.INVALID_OPERATION)
	}
	return b
}

// BufferContents returns the storage of a buffer, or nil.
func (c *Context) BufferContents(b glapi.Buffer) []byte {
	if buf := c.buffers[b]; buf != nil {
		return buf.data
	}
	return nil
}

// GenBuffer implements glapi.Functions.
func (c *Context) GenBuffer() glapi.Buffer {
	c.call("GenBuffer")
	name := glapi.Buffer(c.name())
	c.buffers[name] = &buffer{}
	return name
}

// DeleteBuffer implements glapi.Functions.
func (c *Context) DeleteBuffer(b glapi.Buffer) {
	c.call("DeleteBuffer")
	if c.buffers[b] == nil {
		return
	}
	for target, name := range c.bound {
		if name == b {
			delete(c.bound, target)
		}
	}
	for k, r := range c.indexed {
		if r.buffer == b {
			delete(c.indexed, k)
		}
	}
	delete(c.buffers, b)
}

// BindBuffer implements glapi.Functions.
func (c *Context) BindBuffer(target glapi.Enum, b glapi.Buffer) {
	c.call("BindBuffer")
	if b != 0 && c.buffers[b] == nil {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	if target == glapi.ELEMENT_ARRAY_BUFFER {
		if v := c.vaos[c.vao]; v != nil {
			v.elements = b
		}
	}
	c.bound[target] = b
}

// BufferData implements glapi.Functions.
func (c *Context) BufferData(target glapi.Enum, size int, data []byte, usage glapi.Enum) {
	c.call("BufferData")
	b := c.boundBuffer(target)
	if b == nil {
		return
	}
	if size < 0 || (data != nil && len(data) < size) {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	b.data = make([]byte, size)
	copy(b.data, data)
	b.usage = usage
}

// BufferSubData implements glapi.Functions.
func (c *Context) BufferSubData(target glapi.Enum, offset int, data []byte) {
	c.call("BufferSubData")
	b := c.boundBuffer(target)
	if b == nil {
		return
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	copy(b.data[offset:], data)
}

// GetBufferSubData implements glapi.Functions.
func (c *Context) GetBufferSubData(target glapi.Enum, offset int, dst []byte) {
	c.call("GetBufferSubData")
	b := c.boundBuffer(target)
	if b == nil {
		return
	}
	if offset < 0 || offset+len(dst) > len(b.data) {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	copy(dst, b.data[offset:])
}

// CopyBufferSubData implements glapi.Functions.
func (c *Context) CopyBufferSubData(readTarget, writeTarget glapi.Enum, readOffset, writeOffset, size int) {
	c.call("CopyBufferSubData")
	src, dst := c.boundBuffer(readTarget), c.boundBuffer(writeTarget)
	if src == nil || dst == nil {
		return
	}
	if readOffset < 0 || writeOffset < 0 || size < 0 ||
		readOffset+size > len(src.data) || writeOffset+size > len(dst.data) {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	copy(dst.data[writeOffset:writeOffset+size], src.data[readOffset:readOffset+size])
}

// BindBufferBase implements glapi.Functions.
func (c *Context) BindBufferBase(target glapi.Enum, index uint32, b glapi.Buffer) {
	c.call("BindBufferBase")
	buf := c.buffers[b]
	if b != 0 && buf == nil {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	size := 0
	if buf != nil {
		size = len(buf.data)
	}
	c.indexed[indexKey{target, index}] = bufferRange{buffer: b, size: size}
	c.bound[target] = b
}

// BindBufferRange implements glapi.Functions.
func (c *Context) BindBufferRange(target glapi.Enum, index uint32, b glapi.Buffer, offset, size int) {
	c.call("BindBufferRange")
	buf := c.buffers[b]
	if buf == nil || offset < 0 || size <= 0 || offset+size > len(buf.data) {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	if target == glapi.UNIFORM_BUFFER && offset%uniformAlignment != 0 {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	c.indexed[indexKey{target, index}] = bufferRange{buffer: b, offset: offset, size: size}
	c.bound[target] = b
}
