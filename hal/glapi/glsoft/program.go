package glsoft

import (
	"fmt"
	"strings"

	"github.com/gogpu/rhi/hal/glapi"
)

type shader struct {
	typ      glapi.Enum
	source   string
	compiled bool
	log      string
}

type program struct {
	shaders map[glapi.Shader]bool
	linked  bool
	compute bool
	log     string
}

// compile accepts any non-empty source. A line holding "#error" fails with
// a log in the usual driver format.
func (s *shader) compile() {
	s.compiled, s.log = true, ""
	if strings.TrimSpace(s.source) == "" {
		s.compiled, s.log = false, "0:1(1): error: empty shader source"
		return
	}
	for i, line := range strings.Split(s.source, "\n") {
		if j := strings.Index(line, "#error"); j >= 0 {
			msg := strings.TrimSpace(line[j+len("#error"):])
			s.compiled, s.log = false, fmt.Sprintf("0:%d(%d): error: #error %s", i+1, j+1, msg)
			return
		}
	}
}

// CreateShader implements glapi.Functions.
func (c *Context) CreateShader(typ glapi.Enum) glapi.Shader {
	c.call("CreateShader")
	switch typ {
	case glapi.VERTEX_SHADER, glapi.FRAGMENT_SHADER, glapi.COMPUTE_SHADER:
	default:
		c.fail(glapi.INVALID_ENUM)
		return 0
	}
	name := glapi.Shader(c.name())
	c.shaders[name] = &shader{typ: typ}
	return name
}

// ShaderSource implements glapi.Functions.
func (c *Context) ShaderSource(s glapi.Shader, src string) {
	c.call("ShaderSource")
	if sh := c.shaders[s]; sh != nil {
		sh.source = src
		return
	}
	c.fail(glapi.INVALID_VALUE)
}

// CompileShader implements glapi.Functions.
func (c *Context) CompileShader(s glapi.Shader) {
	c.call("CompileShader")
	if sh := c.shaders[s]; sh != nil {
		sh.compile()
		return
	}
	c.fail(glapi.INVALID_VALUE)
}

// GetShaderi implements glapi.Functions.
func (c *Context) GetShaderi(s glapi.Shader, pname glapi.Enum) int32 {
	sh := c.shaders[s]
	if sh == nil {
		c.fail(glapi.INVALID_VALUE)
		return 0
	}
	switch pname {
	case glapi.COMPILE_STATUS:
		return boolInt(sh.compiled)
	case glapi.INFO_LOG_LENGTH:
		return infoLogLength(sh.log)
	}
	c.fail(glapi.INVALID_ENUM)
	return 0
}

// GetShaderInfoLog implements glapi.Functions.
func (c *Context) GetShaderInfoLog(s glapi.Shader) string {
	if sh := c.shaders[s]; sh != nil {
		return sh.log
	}
	return ""
}

// DeleteShader implements glapi.Functions.
func (c *Context) DeleteShader(s glapi.Shader) {
	c.call("DeleteShader")
	delete(c.shaders, s)
}

// CreateProgram implements glapi.Functions.
func (c *Context) CreateProgram() glapi.Program {
	c.call("CreateProgram")
	name := glapi.Program(c.name())
	c.programs[name] = &program{shaders: make(map[glapi.Shader]bool)}
	return name
}

// AttachShader implements glapi.Functions.
func (c *Context) AttachShader(p glapi.Program, s glapi.Shader) {
	c.call("AttachShader")
	prog := c.programs[p]
	if prog == nil || c.shaders[s] == nil {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	prog.shaders[s] = true
}

// DetachShader implements glapi.Functions.
func (c *Context) DetachShader(p glapi.Program, s glapi.Shader) {
	c.call("DetachShader")
	if prog := c.programs[p]; prog != nil {
		delete(prog.shaders, s)
	}
}

// LinkProgram implements glapi.Functions. A program links when every
// attached shader compiled and it holds either a compute shader alone or
// both a vertex and a fragment shader.
func (c *Context) LinkProgram(p glapi.Program) {
	c.call("LinkProgram")
	prog := c.programs[p]
	if prog == nil {
		c.fail(glapi.INVALID_VALUE)
		return
	}
	stages := make(map[glapi.Enum]bool)
	prog.linked, prog.log = false, ""
	for s := range prog.shaders {
		sh := c.shaders[s]
		if sh == nil || !sh.compiled {
			prog.log = "error: linking with uncompiled shader"
			return
		}
		stages[sh.typ] = true
	}
	switch {
	case stages[glapi.COMPUTE_SHADER] && len(stages) == 1:
		prog.compute = true
	case stages[glapi.VERTEX_SHADER] && stages[glapi.FRAGMENT_SHADER] && !stages[glapi.COMPUTE_SHADER]:
	default:
		prog.log = "error: program lacks a complete set of shader stages"
		return
	}
	prog.linked = true
}

// GetProgrami implements glapi.Functions.
func (c *Context) GetProgrami(p glapi.Program, pname glapi.Enum) int32 {
	prog := c.programs[p]
	if prog == nil {
		c.fail(glapi.INVALID_VALUE)
		return 0
	}
	switch pname {
	case glapi.LINK_STATUS:
		return boolInt(prog.linked)
	case glapi.INFO_LOG_LENGTH:
		return infoLogLength(prog.log)
	}
	c.fail(glapi.INVALID_ENUM)
	return 0
}

// GetProgramInfoLog implements glapi.Functions.
func (c *Context) GetProgramInfoLog(p glapi.Program) string {
	if prog := c.programs[p]; prog != nil {
		return prog.log
	}
	return ""
}

// UseProgram implements glapi.Functions.
func (c *Context) UseProgram(p glapi.Program) {
	c.call("UseProgram")
	if p != 0 {
		prog := c.programs[p]
		if prog == nil || !prog.linked {
			c.fail(glapi.INVALID_OPERATION)
			return
		}
	}
	c.program = p
}

// DeleteProgram implements glapi.Functions.
func (c *Context) DeleteProgram(p glapi.Program) {
	c.call("DeleteProgram")
	if c.program == p {
		c.program = 0
	}
	delete(c.programs, p)
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// infoLogLength counts the terminating NUL like the C API.
func infoLogLength(log string) int32 {
	if log == "" {
		return 0
	}
	return int32(len(log) + 1)
}
