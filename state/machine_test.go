package state

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// recorder is a Setter that counts calls per kind and follows the backend
// contract: write the live cache, mark it applied, update the bound pipeline.
type recorder struct {
	m     *Machine
	calls map[Kind]int
}

func newRecorder() *recorder {
	r := &recorder{calls: make(map[Kind]int)}
	r.m = NewMachine(r)
	return r
}

func (r *recorder) total() int {
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *recorder) reset() { r.calls = make(map[Kind]int) }

func (r *recorder) set(k Kind, write func(c *Cache)) {
	write(r.m.Live())
	r.calls[k]++
	r.m.Applied(k)
	UpdateState(r.m.Bound(), k, r.m.Live())
}

func (r *recorder) SetViewport(v Viewport) { r.set(KindViewport, func(c *Cache) { c.Viewport = v }) }
func (r *recorder) SetScissor(s Rect)      { r.set(KindScissor, func(c *Cache) { c.Scissor = s }) }
func (r *recorder) SetLineWidth(w float32) { r.set(KindLineWidth, func(c *Cache) { c.LineWidth = w }) }
func (r *recorder) SetBlendConstants(v mgl32.Vec4) {
	r.set(KindBlendConstants, func(c *Cache) { c.BlendConstants = v })
}
func (r *recorder) SetBlendEquation(b gputypes.BlendState) {
	r.set(KindBlendEquation, func(c *Cache) { c.BlendEquation = b })
}
func (r *recorder) SetBlendEnable(e bool) {
	r.set(KindBlendEnable, func(c *Cache) { c.BlendEnable = e })
}
func (r *recorder) SetColorWriteMask(m gputypes.ColorWriteMask) {
	r.set(KindColorWriteMask, func(c *Cache) { c.ColorWriteMask = m })
}
func (r *recorder) SetDepthBias(b DepthBias) {
	r.set(KindDepthBias, func(c *Cache) { c.DepthBias = b })
}
func (r *recorder) SetDepthBiasEnable(e bool) {
	r.set(KindDepthBiasEnable, func(c *Cache) { c.DepthBiasEnable = e })
}
func (r *recorder) SetDepthTestEnable(e bool) {
	r.set(KindDepthTestEnable, func(c *Cache) { c.DepthTestEnable = e })
}
func (r *recorder) SetDepthWriteEnable(e bool) {
	r.set(KindDepthWriteEnable, func(c *Cache) { c.DepthWriteEnable = e })
}
func (r *recorder) SetDepthCompareOp(op gputypes.CompareFunction) {
	r.set(KindDepthCompareOp, func(c *Cache) { c.DepthCompareOp = op })
}
func (r *recorder) SetStencilTestEnable(e bool) {
	r.set(KindStencilTestEnable, func(c *Cache) { c.StencilTestEnable = e })
}
func (r *recorder) SetStencilOps(ops StencilOps) {
	r.set(KindStencilOp, func(c *Cache) { c.StencilOps = ops })
}
func (r *recorder) SetStencilCompareMask(m uint32) {
	r.set(KindStencilCompareMask, func(c *Cache) { c.StencilCompareMask = m })
}
func (r *recorder) SetStencilWriteMask(m uint32) {
	r.set(KindStencilWriteMask, func(c *Cache) { c.StencilWriteMask = m })
}
func (r *recorder) SetStencilReference(ref uint32) {
	r.set(KindStencilReference, func(c *Cache) { c.StencilReference = ref })
}
func (r *recorder) SetCullMode(m gputypes.CullMode) {
	r.set(KindCullMode, func(c *Cache) { c.CullMode = m })
}
func (r *recorder) SetFrontFace(f gputypes.FrontFace) {
	r.set(KindFrontFace, func(c *Cache) { c.FrontFace = f })
}
func (r *recorder) SetPrimitiveTopology(t gputypes.PrimitiveTopology) {
	r.set(KindPrimitiveTopology, func(c *Cache) { c.PrimitiveTopology = t })
}
func (r *recorder) SetPrimitiveRestartEnable(e bool) {
	r.set(KindPrimitiveRestartEnable, func(c *Cache) { c.PrimitiveRestartEnable = e })
}
func (r *recorder) SetLogicOp(op LogicOp) { r.set(KindLogicOp, func(c *Cache) { c.LogicOp = op }) }
func (r *recorder) SetLogicOpEnable(e bool) {
	r.set(KindLogicOpEnable, func(c *Cache) { c.LogicOpEnable = e })
}
func (r *recorder) SetPolygonMode(m PolygonMode) {
	r.set(KindPolygonMode, func(c *Cache) { c.PolygonMode = m })
}
func (r *recorder) SetLineSmoothEnable(e bool) {
	r.set(KindLineSmoothEnable, func(c *Cache) { c.LineSmoothEnable = e })
}

// mutateAll changes every field of the live cache through the setter.
func mutateAll(r *recorder) {
	r.SetViewport(Viewport{X: 1, Y: 2, Width: 30, Height: 40, MaxDepth: 1})
	r.SetScissor(Rect{X: 3, Y: 4, Width: 5, Height: 6})
	r.SetLineWidth(2.5)
	r.SetBlendConstants(mgl32.Vec4{0.1, 0.2, 0.3, 0.4})
	r.SetBlendEquation(gputypes.BlendStatePremultiplied())
	r.SetBlendEnable(true)
	r.SetColorWriteMask(gputypes.ColorWriteMaskRed | gputypes.ColorWriteMaskAlpha)
	r.SetDepthBias(DepthBias{Constant: 1, Clamp: 0.5, Slope: 2})
	r.SetDepthBiasEnable(true)
	r.SetDepthTestEnable(true)
	r.SetDepthWriteEnable(true)
	r.SetDepthCompareOp(gputypes.CompareFunctionGreaterEqual)
	r.SetStencilTestEnable(true)
	r.SetStencilOps(StencilOps{
		Front: StencilFace{Fail: gputypes.StencilOperationZero, Compare: gputypes.CompareFunctionEqual},
		Back:  StencilFace{Pass: gputypes.StencilOperationReplace, Compare: gputypes.CompareFunctionNever},
	})
	r.SetStencilCompareMask(0x0F)
	r.SetStencilWriteMask(0xF0)
	r.SetStencilReference(3)
	r.SetCullMode(gputypes.CullModeBack)
	r.SetFrontFace(gputypes.FrontFaceCW)
	r.SetPrimitiveTopology(gputypes.PrimitiveTopologyLineList)
	r.SetPrimitiveRestartEnable(true)
	r.SetLogicOp(LogicOpXor)
	r.SetLogicOpEnable(true)
	r.SetPolygonMode(PolygonModeLine)
	r.SetLineSmoothEnable(true)
}

// =============================================================================
// Bind
// =============================================================================

func TestBind_KnownMatchesLiveForDynamicKinds(t *testing.T) {
	tests := []struct {
		name    string
		dynamic Set
	}{
		{"all", All},
		{"viewport scissor", Of(KindViewport, KindScissor)},
		{"depth", Of(KindDepthTestEnable, KindDepthWriteEnable, KindDepthCompareOp)},
		{"none", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			p := &Pipeline{Dynamic: tt.dynamic}
			CacheState(r.m, p)
			mutateAll(r)

			Bind(r.m, p)

			live := r.m.Live()
			for _, k := range tt.dynamic.Kinds() {
				if k == KindBlendConstants {
					if p.Known.BlendConstants != live.BlendConstants {
						t.Errorf("Known.BlendConstants = %v, want %v", p.Known.BlendConstants, live.BlendConstants)
					}
					continue
				}
				if !p.Known.Equal(live, k) {
					t.Errorf("after Bind, Known[%v] differs from live", k)
				}
			}
		})
	}
}

func TestBind_SecondBindIssuesNothingButBlendConstants(t *testing.T) {
	tests := []struct {
		name    string
		dynamic Set
		want    int
	}{
		{"all dynamic", All, 1},
		{"without blend constants", All &^ Of(KindBlendConstants), 0},
		{"only blend constants", Of(KindBlendConstants), 1},
		{"viewport only", Of(KindViewport), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			mutateAll(r)
			p := &Pipeline{Dynamic: tt.dynamic}
			Bind(r.m, p)

			r.reset()
			n := Bind(r.m, p)
			if n != tt.want {
				t.Errorf("second Bind() issued %d, want %d", n, tt.want)
			}
			if r.total() != tt.want {
				t.Errorf("setter calls = %d, want %d (%v)", r.total(), tt.want, r.calls)
			}
			if tt.dynamic.Has(KindBlendConstants) && r.calls[KindBlendConstants] != 1 {
				t.Errorf("BlendConstants calls = %d, want 1", r.calls[KindBlendConstants])
			}
		})
	}
}

func TestBind_FirstBindIssuesOnlyBlendConstants(t *testing.T) {
	r := newRecorder()
	if got := r.m.Stale(); got != 0 {
		t.Errorf("NewMachine().Stale() = %v, want empty", got)
	}
	p := &Pipeline{Dynamic: All}
	CacheState(r.m, p)

	if n := Bind(r.m, p); n != 1 {
		t.Errorf("Bind() issued %d, want 1 (%v)", n, r.calls)
	}
	if r.calls[KindBlendConstants] != 1 {
		t.Errorf("BlendConstants calls = %d, want 1", r.calls[KindBlendConstants])
	}
}

func TestBind_InvalidateAllIssuesEveryDynamicKind(t *testing.T) {
	r := newRecorder()
	p := &Pipeline{Dynamic: Of(KindViewport, KindScissor, KindLineWidth)}
	CacheState(r.m, p)
	r.m.InvalidateAll()

	// Equal values are still issued while the native state is unknown.
	if n := Bind(r.m, p); n != 3 {
		t.Errorf("Bind() issued %d, want 3", n)
	}
	if r.calls[KindCullMode] != 0 {
		t.Errorf("static kind CullMode issued %d times, want 0", r.calls[KindCullMode])
	}
	if got := r.m.Stale(); got != All&^p.Dynamic {
		t.Errorf("Stale() = %v, want %v", got, All&^p.Dynamic)
	}
}

func TestBind_ReissuesOnlyChangedKinds(t *testing.T) {
	r := newRecorder()
	dyn := Of(KindViewport, KindLineWidth)
	p1 := &Pipeline{Dynamic: dyn}
	p2 := &Pipeline{Dynamic: dyn}
	Bind(r.m, p1)
	Bind(r.m, p2)

	// Change the viewport while p2 is bound: p2 tracks it, p1 does not.
	r.SetViewport(Viewport{Width: 64, Height: 64, MaxDepth: 1})
	if p2.Known.Viewport.Width != 64 {
		t.Errorf("bound pipeline Known.Viewport.Width = %v, want 64", p2.Known.Viewport.Width)
	}

	r.reset()
	if n := Bind(r.m, p1); n != 1 {
		t.Errorf("Bind(p1) issued %d, want 1", n)
	}
	if r.calls[KindViewport] != 1 || r.calls[KindLineWidth] != 0 {
		t.Errorf("calls = %v, want one Viewport", r.calls)
	}

	r.reset()
	if n := Bind(r.m, p2); n != 0 {
		t.Errorf("Bind(p2) issued %d, want 0", n)
	}
}

func TestBind_InvalidateForcesReissue(t *testing.T) {
	r := newRecorder()
	p := &Pipeline{Dynamic: Of(KindViewport, KindScissor)}
	Bind(r.m, p)

	r.m.Invalidate(Of(KindScissor, KindCullMode))
	if !r.m.Stale().Has(KindCullMode) {
		t.Error("Stale() missing CullMode after Invalidate")
	}

	r.reset()
	if n := Bind(r.m, p); n != 1 {
		t.Errorf("Bind() issued %d, want 1", n)
	}
	if r.calls[KindScissor] != 1 {
		t.Errorf("Scissor calls = %d, want 1", r.calls[KindScissor])
	}
	if r.m.Stale().Has(KindScissor) {
		t.Error("Scissor still stale after Bind")
	}

	r.m.InvalidateAll()
	r.reset()
	if n := Bind(r.m, p); n != 2 {
		t.Errorf("Bind() after InvalidateAll issued %d, want 2", n)
	}
}

func TestBind_SetsBound(t *testing.T) {
	r := newRecorder()
	p := &Pipeline{}
	Bind(r.m, p)
	if r.m.Bound() != p {
		t.Error("Bound() is not the pipeline passed to Bind")
	}
	r.m.Unbind()
	if r.m.Bound() != nil {
		t.Error("Bound() not nil after Unbind")
	}
}

// =============================================================================
// UpdateState / CacheState
// =============================================================================

func TestUpdateState_CopiesSingleField(t *testing.T) {
	p := &Pipeline{Known: Default()}
	c := Default()
	c.LineWidth = 4
	c.CullMode = gputypes.CullModeFront

	UpdateState(p, KindLineWidth, &c)

	if p.Known.LineWidth != 4 {
		t.Errorf("Known.LineWidth = %v, want 4", p.Known.LineWidth)
	}
	if p.Known.CullMode != gputypes.CullModeNone {
		t.Errorf("Known.CullMode = %v, want untouched %v", p.Known.CullMode, gputypes.CullModeNone)
	}

	// A nil pipeline is ignored.
	UpdateState(nil, KindLineWidth, &c)
}

func TestCacheState_SnapshotsLive(t *testing.T) {
	r := newRecorder()
	r.SetLineWidth(3)
	p := &Pipeline{}
	CacheState(r.m, p)
	if p.Known.LineWidth != 3 {
		t.Errorf("Known.LineWidth = %v, want 3", p.Known.LineWidth)
	}
}

// =============================================================================
// Cache
// =============================================================================

func TestCacheEqual_FloatsCompareBitwise(t *testing.T) {
	a, b := Default(), Default()
	a.LineWidth = float32(math.Copysign(0, 1))
	b.LineWidth = float32(math.Copysign(0, -1))
	if a.Equal(&b, KindLineWidth) {
		t.Error("+0 and -0 line widths compared equal")
	}

	nan := float32(math.NaN())
	a.DepthBias.Slope = nan
	b.DepthBias.Slope = nan
	if !a.Equal(&b, KindDepthBias) {
		t.Error("identical NaN bit patterns compared unequal")
	}
}

func TestCacheEqual_BlendConstantsNeverEqual(t *testing.T) {
	a := Default()
	if a.Equal(&a, KindBlendConstants) {
		t.Error("BlendConstants compared equal to itself")
	}
}

func TestCacheCopyField_AllKinds(t *testing.T) {
	r := newRecorder()
	mutateAll(r)
	src := *r.m.Live()
	for k := Kind(0); k < kindCount; k++ {
		dst := Default()
		dst.CopyField(&src, k)
		if k != KindBlendConstants && !dst.Equal(&src, k) {
			t.Errorf("CopyField(%v) did not copy the field", k)
		}
	}
}

// =============================================================================
// Set
// =============================================================================

func TestSet(t *testing.T) {
	s := Of(KindViewport, KindCullMode)
	if !s.Has(KindViewport) || !s.Has(KindCullMode) || s.Has(KindScissor) {
		t.Errorf("Has() wrong for %v", s)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if got, want := s.String(), "{Viewport,CullMode}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if All.Len() != NumKinds {
		t.Errorf("All.Len() = %d, want %d", All.Len(), NumKinds)
	}
	if got := Set(0).String(); got != "{}" {
		t.Errorf("empty String() = %q, want {}", got)
	}
}
