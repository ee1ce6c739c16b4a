package state

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// Setter is implemented by backends. Each call writes the value into the
// live cache, issues the native call where the backend allows it, and
// records the change on the bound pipeline with UpdateState.
type Setter interface {
	SetViewport(v Viewport)
	SetScissor(r Rect)
	SetLineWidth(w float32)
	SetBlendConstants(c mgl32.Vec4)
	SetBlendEquation(b gputypes.BlendState)
	SetBlendEnable(enable bool)
	SetColorWriteMask(m gputypes.ColorWriteMask)
	SetDepthBias(b DepthBias)
	SetDepthBiasEnable(enable bool)
	SetDepthTestEnable(enable bool)
	SetDepthWriteEnable(enable bool)
	SetDepthCompareOp(op gputypes.CompareFunction)
	SetStencilTestEnable(enable bool)
	SetStencilOps(ops StencilOps)
	SetStencilCompareMask(mask uint32)
	SetStencilWriteMask(mask uint32)
	SetStencilReference(ref uint32)
	SetCullMode(m gputypes.CullMode)
	SetFrontFace(f gputypes.FrontFace)
	SetPrimitiveTopology(t gputypes.PrimitiveTopology)
	SetPrimitiveRestartEnable(enable bool)
	SetLogicOp(op LogicOp)
	SetLogicOpEnable(enable bool)
	SetPolygonMode(m PolygonMode)
	SetLineSmoothEnable(enable bool)
}

// Apply re-issues the value of k held in c through s.
func Apply(s Setter, c *Cache, k Kind) {
	switch k {
	case KindViewport:
		s.SetViewport(c.Viewport)
	case KindScissor:
		s.SetScissor(c.Scissor)
	case KindLineWidth:
		s.SetLineWidth(c.LineWidth)
	case KindBlendConstants:
		s.SetBlendConstants(c.BlendConstants)
	case KindBlendEquation:
		s.SetBlendEquation(c.BlendEquation)
	case KindBlendEnable:
		s.SetBlendEnable(c.BlendEnable)
	case KindColorWriteMask:
		s.SetColorWriteMask(c.ColorWriteMask)
	case KindDepthBias:
		s.SetDepthBias(c.DepthBias)
	case KindDepthBiasEnable:
		s.SetDepthBiasEnable(c.DepthBiasEnable)
	case KindDepthTestEnable:
		s.SetDepthTestEnable(c.DepthTestEnable)
	case KindDepthWriteEnable:
		s.SetDepthWriteEnable(c.DepthWriteEnable)
	case KindDepthCompareOp:
		s.SetDepthCompareOp(c.DepthCompareOp)
	case KindStencilTestEnable:
		s.SetStencilTestEnable(c.StencilTestEnable)
	case KindStencilOp:
		s.SetStencilOps(c.StencilOps)
	case KindStencilCompareMask:
		s.SetStencilCompareMask(c.StencilCompareMask)
	case KindStencilWriteMask:
		s.SetStencilWriteMask(c.StencilWriteMask)
	case KindStencilReference:
		s.SetStencilReference(c.StencilReference)
	case KindCullMode:
		s.SetCullMode(c.CullMode)
	case KindFrontFace:
		s.SetFrontFace(c.FrontFace)
	case KindPrimitiveTopology:
		s.SetPrimitiveTopology(c.PrimitiveTopology)
	case KindPrimitiveRestartEnable:
		s.SetPrimitiveRestartEnable(c.PrimitiveRestartEnable)
	case KindLogicOp:
		s.SetLogicOp(c.LogicOp)
	case KindLogicOpEnable:
		s.SetLogicOpEnable(c.LogicOpEnable)
	case KindPolygonMode:
		s.SetPolygonMode(c.PolygonMode)
	case KindLineSmoothEnable:
		s.SetLineSmoothEnable(c.LineSmoothEnable)
	}
}

// Pipeline is the state-tracking part of a pipeline object.
type Pipeline struct {
	// Dynamic lists the kinds re-issued on bind. Other kinds are baked
	// into the native pipeline at creation.
	Dynamic Set
	// Known is the live state as of the last bind of this pipeline.
	Known Cache
}

// Machine holds the live state shared by all pipelines of one renderer.
type Machine struct {
	live   Cache
	stale  Set
	bound  *Pipeline
	setter Setter
}

// NewMachine returns a machine whose live cache and native state are both
// Default. A backend whose native state starts unknown, such as a freshly
// begun command buffer, calls InvalidateAll before the first bind.
func NewMachine(s Setter) *Machine {
	return &Machine{live: Default(), setter: s}
}

// Live returns the live cache. Setters write through this pointer.
func (m *Machine) Live() *Cache { return &m.live }

// Bound returns the most recently bound pipeline, or nil.
func (m *Machine) Bound() *Pipeline { return m.bound }

// Unbind forgets the bound pipeline.
func (m *Machine) Unbind() { m.bound = nil }

// Invalidate marks kinds whose native value no longer matches the live
// cache, such as states clobbered by a pipeline that bakes them.
func (m *Machine) Invalidate(s Set) { m.stale |= s & All }

// InvalidateAll marks the entire native state unknown, for example when a
// new command buffer starts recording.
func (m *Machine) InvalidateAll() { m.stale = All }

// Applied records that the native value of k now matches the live cache.
func (m *Machine) Applied(k Kind) { m.stale &^= Of(k) }

// Stale returns the kinds whose native value is unknown.
func (m *Machine) Stale() Set { return m.stale }

// Bind makes p the bound pipeline and re-issues each dynamic kind of p
// whose live value differs from p's last-known value or whose native value
// is stale. It then copies the whole live cache onto p.Known and returns
// the number of kinds re-issued.
func Bind(m *Machine, p *Pipeline) int {
	m.bound = p
	issued := 0
	for k := Kind(0); k < kindCount; k++ {
		if !p.Dynamic.Has(k) {
			continue
		}
		if m.stale.Has(k) || !m.live.Equal(&p.Known, k) {
			Apply(m.setter, &m.live, k)
			m.stale &^= Of(k)
			issued++
		}
	}
	p.Known = m.live
	return issued
}

// CacheState snapshots the live cache onto a newly created pipeline.
func CacheState(m *Machine, p *Pipeline) {
	p.Known = m.live
}

// UpdateState copies field k of c onto p's last-known cache. A nil p is
// ignored.
func UpdateState(p *Pipeline, k Kind, c *Cache) {
	if p == nil {
		return
	}
	p.Known.CopyField(c, k)
}
