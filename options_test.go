package rhi

import (
	"errors"
	"testing"
)

type fakeSurface struct{ w, h int }

func (s fakeSurface) FramebufferSize() (int, int) { return s.w, s.h }

func TestNewOptions(t *testing.T) {
	o := NewOptions()
	if o != DefaultOptions() {
		t.Errorf("NewOptions() = %+v, want %+v", o, DefaultOptions())
	}

	s := fakeSurface{640, 480}
	o = NewOptions(WithSurface(s), WithSize(1024, 768), WithSamples(4), WithVSync(VSyncOff), WithDebug(true))
	if o.Surface != s {
		t.Errorf("Surface = %v, want %v", o.Surface, s)
	}
	if o.Width != 1024 || o.Height != 768 {
		t.Errorf("size = %dx%d, want 1024x768", o.Width, o.Height)
	}
	if o.Samples != 4 || o.VSync != VSyncOff || !o.Debug {
		t.Errorf("options = %+v", o)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		ok   bool
	}{
		{"default", nil, true},
		{"zero size", []Option{WithSize(0, 600)}, false},
		{"bad samples", []Option{WithSamples(5)}, false},
		{"msaa", []Option{WithSamples(8)}, true},
	}
	for _, tt := range tests {
		o := NewOptions(tt.opts...)
		err := o.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tt.name, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: Validate() = %v, want %v", tt.name, err, ErrInvalidConfig)
		}
	}
}

func TestVSyncModeString(t *testing.T) {
	for m, want := range map[VSyncMode]string{VSyncOn: "on", VSyncOff: "off", VSyncAdaptive: "adaptive"} {
		if got := m.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestBarrierAll(t *testing.T) {
	flags := []BarrierFlags{BarrierVertexAttrib, BarrierIndex, BarrierUniform, BarrierTextureFetch,
		BarrierShaderImage, BarrierIndirect, BarrierBufferUpdate, BarrierTextureUpdate,
		BarrierFramebuffer, BarrierShaderStorage}
	var all BarrierFlags
	for _, f := range flags {
		all |= f
	}
	if all != BarrierAll {
		t.Errorf("BarrierAll = %#x, want %#x", BarrierAll, all)
	}
}
