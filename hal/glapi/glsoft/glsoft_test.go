package glsoft

import (
	"bytes"
	"testing"

	"github.com/gogpu/rhi/hal/glapi"
)

func newColorFBO(t *testing.T, c *Context, w, h int32, internal glapi.Enum) (glapi.Framebuffer, glapi.Texture) {
	t.Helper()
	tex := c.GenTexture()
	c.BindTexture(glapi.TEXTURE_2D, tex)
	c.TexStorage2D(glapi.TEXTURE_2D, 1, internal, w, h)
	fb := c.GenFramebuffer()
	c.BindFramebuffer(glapi.FRAMEBUFFER, fb)
	c.FramebufferTexture2D(glapi.FRAMEBUFFER, glapi.COLOR_ATTACHMENT0, glapi.TEXTURE_2D, tex, 0)
	if got := c.CheckFramebufferStatus(glapi.FRAMEBUFFER); got != glapi.FRAMEBUFFER_COMPLETE {
		t.Fatalf("CheckFramebufferStatus() = %#x, want complete", got)
	}
	return fb, tex
}

// =============================================================================
// Clears
// =============================================================================

func TestClearBufferScissorAndMask(t *testing.T) {
	c := New(4, 4)
	newColorFBO(t, c, 4, 4, glapi.RGBA8)

	c.ClearBufferfv(glapi.COLOR, 0, [4]float32{1, 1, 1, 1})
	c.Enable(glapi.SCISSOR_TEST)
	c.Scissor(0, 0, 2, 1)
	c.ColorMask(true, false, true, false)
	c.ClearBufferfv(glapi.COLOR, 0, [4]float32{0, 0, 0, 0})

	got := make([]byte, 4*4*4)
	c.ReadPixels(0, 0, 4, 4, glapi.RGBA, glapi.UNSIGNED_BYTE, got)
	if err := c.GetError(); err != glapi.NO_ERROR {
		t.Fatalf("GetError() = %#x", err)
	}
	for i := 0; i < 16; i++ {
		want := []byte{255, 255, 255, 255}
		if i < 2 {
			want = []byte{0, 255, 0, 255}
		}
		if px := got[4*i : 4*i+4]; !bytes.Equal(px, want) {
			t.Errorf("pixel %d = %v, want %v", i, px, want)
		}
	}
}

func TestClearDepthStencilPacking(t *testing.T) {
	c := New(2, 2)
	c.ClearBufferfi(glapi.DEPTH_STENCIL, 0, 1, 7)
	c.DepthMask(false)
	c.ClearBufferfi(glapi.DEPTH_STENCIL, 0, 0, 9)

	got := make([]byte, 2*2*4)
	c.ReadPixels(0, 0, 2, 2, glapi.DEPTH_STENCIL, glapi.UNSIGNED_INT_24_8, got)
	if want := []byte{9, 0xFF, 0xFF, 0xFF}; !bytes.Equal(got[:4], want) {
		t.Errorf("depth-stencil pixel = %v, want %v", got[:4], want)
	}
}

// =============================================================================
// Textures and blits
// =============================================================================

func TestTexSubImageBGRA(t *testing.T) {
	c := New(1, 1)
	tex := c.GenTexture()
	c.BindTexture(glapi.TEXTURE_2D, tex)
	c.TexStorage2D(glapi.TEXTURE_2D, 2, glapi.RGBA8, 2, 1)
	c.TexSubImage2D(glapi.TEXTURE_2D, 0, 0, 0, 2, 1, glapi.BGRA, glapi.UNSIGNED_BYTE, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	if got := c.Texture(tex, 0); !bytes.Equal(got, []byte{3, 2, 1, 4, 7, 6, 5, 8}) {
		t.Errorf("stored level 0 = %v", got)
	}
	out := make([]byte, 8)
	c.GetTexImage(glapi.TEXTURE_2D, 0, glapi.BGRA, glapi.UNSIGNED_BYTE, out)
	if !bytes.Equal(out, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("GetTexImage() = %v", out)
	}

	c.TexStorage2D(glapi.TEXTURE_2D, 1, glapi.RGBA8, 2, 1)
	if err := c.GetError(); err != glapi.INVALID_OPERATION {
		t.Errorf("second TexStorage2D error = %#x, want INVALID_OPERATION", err)
	}
}

func TestBlitResolve(t *testing.T) {
	c := New(8, 8)
	ms := c.GenTexture()
	c.BindTexture(glapi.TEXTURE_2D_MULTISAMPLE, ms)
	c.TexStorage2DMultisample(glapi.TEXTURE_2D_MULTISAMPLE, 4, glapi.RGBA8, 8, 8)
	msFB := c.GenFramebuffer()
	c.BindFramebuffer(glapi.FRAMEBUFFER, msFB)
	c.FramebufferTexture2D(glapi.FRAMEBUFFER, glapi.COLOR_ATTACHMENT0, glapi.TEXTURE_2D_MULTISAMPLE, ms, 0)
	c.ClearBufferfv(glapi.COLOR, 0, [4]float32{0, 0, 1, 1})

	c.BindFramebuffer(glapi.READ_FRAMEBUFFER, msFB)
	c.BindFramebuffer(glapi.DRAW_FRAMEBUFFER, 0)
	c.BlitFramebuffer(0, 0, 8, 8, 0, 0, 8, 8, glapi.COLOR_BUFFER_BIT, glapi.NEAREST)
	if err := c.GetError(); err != glapi.NO_ERROR {
		t.Fatalf("GetError() = %#x", err)
	}
	if px := c.Pixels()[:4]; !bytes.Equal(px, []byte{0, 0, 255, 255}) {
		t.Errorf("resolved pixel = %v, want [0 0 255 255]", px)
	}

	c.BlitFramebuffer(0, 0, 8, 8, 0, 0, 4, 4, glapi.COLOR_BUFFER_BIT, glapi.NEAREST)
	if err := c.GetError(); err != glapi.INVALID_OPERATION {
		t.Errorf("scaled multisample blit error = %#x, want INVALID_OPERATION", err)
	}
}

func TestGenerateMipmap(t *testing.T) {
	c := New(1, 1)
	tex := c.GenTexture()
	c.BindTexture(glapi.TEXTURE_2D, tex)
	c.TexStorage2D(glapi.TEXTURE_2D, 3, glapi.R8, 4, 4)
	data := bytes.Repeat([]byte{200}, 16)
	c.TexSubImage2D(glapi.TEXTURE_2D, 0, 0, 0, 4, 4, glapi.RED, glapi.UNSIGNED_BYTE, data)
	c.GenerateMipmap(glapi.TEXTURE_2D)
	if got := c.Texture(tex, 2); !bytes.Equal(got, []byte{200}) {
		t.Errorf("level 2 = %v, want [200]", got)
	}
}

// =============================================================================
// Buffers, programs, bindless
// =============================================================================

func TestBufferCopyAndRange(t *testing.T) {
	c := New(1, 1)
	a, b := c.GenBuffer(), c.GenBuffer()
	c.BindBuffer(glapi.COPY_READ_BUFFER, a)
	c.BufferData(glapi.COPY_READ_BUFFER, 8, []byte{1, 2, 3, 4, 5, 6, 7, 8}, glapi.STATIC_DRAW)
	c.BindBuffer(glapi.COPY_WRITE_BUFFER, b)
	c.BufferData(glapi.COPY_WRITE_BUFFER, 512, nil, glapi.DYNAMIC_DRAW)
	c.CopyBufferSubData(glapi.COPY_READ_BUFFER, glapi.COPY_WRITE_BUFFER, 4, 0, 4)
	if got := c.BufferContents(b)[:4]; !bytes.Equal(got, []byte{5, 6, 7, 8}) {
		t.Errorf("copied = %v, want [5 6 7 8]", got)
	}

	c.BindBufferRange(glapi.UNIFORM_BUFFER, 0, b, 100, 16)
	if err := c.GetError(); err != glapi.INVALID_VALUE {
		t.Errorf("misaligned BindBufferRange error = %#x, want INVALID_VALUE", err)
	}
	c.BindBufferRange(glapi.UNIFORM_BUFFER, 0, b, 256, 16)
	if buf, off, size := c.BoundBufferRange(glapi.UNIFORM_BUFFER, 0); buf != b || off != 256 || size != 16 {
		t.Errorf("BoundBufferRange() = %d, %d, %d", buf, off, size)
	}
}

func TestCompileAndLink(t *testing.T) {
	c := New(1, 1)
	vs := c.CreateShader(glapi.VERTEX_SHADER)
	c.ShaderSource(vs, "#version 460\nvoid main() {}\n")
	c.CompileShader(vs)
	fs := c.CreateShader(glapi.FRAGMENT_SHADER)
	c.ShaderSource(fs, "#version 460\n#error missing output\n")
	c.CompileShader(fs)

	if c.GetShaderi(vs, glapi.COMPILE_STATUS) != 1 {
		t.Error("vertex shader did not compile")
	}
	if c.GetShaderi(fs, glapi.COMPILE_STATUS) != 0 {
		t.Fatal("fragment shader compiled")
	}
	if got, want := c.GetShaderInfoLog(fs), "0:2(1): error: #error missing output"; got != want {
		t.Errorf("GetShaderInfoLog() = %q, want %q", got, want)
	}

	p := c.CreateProgram()
	c.AttachShader(p, vs)
	c.AttachShader(p, fs)
	c.LinkProgram(p)
	if c.GetProgrami(p, glapi.LINK_STATUS) != 0 {
		t.Error("program with failed shader linked")
	}
}

func TestBindlessResidency(t *testing.T) {
	c := New(1, 1, WithBindless(true))
	if !glapi.HasExtension(c, glapi.ExtBindlessTexture) {
		t.Fatal("bindless extension not advertised")
	}
	tex := c.GenTexture()
	c.BindTexture(glapi.TEXTURE_2D, tex)
	c.TexStorage2D(glapi.TEXTURE_2D, 1, glapi.RGBA8, 1, 1)
	h := c.GetTextureHandleARB(tex)
	if h == 0 {
		t.Fatal("GetTextureHandleARB() = 0")
	}
	c.MakeTextureHandleResidentARB(h)
	if !c.Resident(h) {
		t.Error("handle not resident")
	}
	c.DeleteTexture(tex)
	if c.Resident(h) {
		t.Error("handle resident after delete")
	}

	plain := New(1, 1)
	if glapi.HasExtension(plain, glapi.ExtBindlessTexture) {
		t.Error("bindless advertised without option")
	}
}
