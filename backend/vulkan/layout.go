package vulkan

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
)

// barrier is the synchronization scope of a layout transition.
type barrier struct {
	srcStage  vkapi.PipelineStage
	srcAccess vkapi.AccessFlags
	dstStage  vkapi.PipelineStage
	dstAccess vkapi.AccessFlags
}

type layoutPair struct {
	from, to vkapi.ImageLayout
}

const (
	layoutUndefined    = vkapi.ImageLayoutUndefined
	layoutGeneral      = vkapi.ImageLayoutGeneral
	layoutColor        = vkapi.ImageLayoutColorAttachmentOptimal
	layoutDepthStencil = vkapi.ImageLayoutDepthStencilAttachmentOptimal
	layoutShaderRead   = vkapi.ImageLayoutShaderReadOnlyOptimal
	layoutTransferSrc  = vkapi.ImageLayoutTransferSrcOptimal
	layoutTransferDst  = vkapi.ImageLayoutTransferDstOptimal
	layoutPresent      = vkapi.ImageLayoutPresentSrc
)

const (
	colorWrite        = vkapi.AccessColorAttachmentRead | vkapi.AccessColorAttachmentWrite
	depthWrite        = vkapi.AccessDepthStencilAttachmentRead | vkapi.AccessDepthStencilAttachmentWrite
	fragmentTests     = vkapi.StageEarlyFragmentTests | vkapi.StageLateFragmentTests
	shaderStages      = vkapi.StageVertexShader | vkapi.StageFragmentShader | vkapi.StageComputeShader
	allShaderAccesses = vkapi.AccessShaderRead | vkapi.AccessShaderWrite
)

// transitions lists every layout change the renderer makes. Pairs that
// are absent, including a layout onto itself, need no barrier.
var transitions = map[layoutPair]barrier{
	{layoutUndefined, layoutTransferDst}:  {vkapi.StageTopOfPipe, 0, vkapi.StageTransfer, vkapi.AccessTransferWrite},
	{layoutUndefined, layoutShaderRead}:   {vkapi.StageTopOfPipe, 0, shaderStages, vkapi.AccessShaderRead},
	{layoutUndefined, layoutGeneral}:      {vkapi.StageTopOfPipe, 0, vkapi.StageAllCommands, vkapi.AccessMemoryRead | vkapi.AccessMemoryWrite},
	{layoutUndefined, layoutColor}:        {vkapi.StageTopOfPipe, 0, vkapi.StageColorAttachmentOutput, colorWrite},
	{layoutUndefined, layoutDepthStencil}: {vkapi.StageTopOfPipe, 0, fragmentTests, depthWrite},
	{layoutUndefined, layoutPresent}:      {vkapi.StageColorAttachmentOutput, 0, vkapi.StageBottomOfPipe, 0},

	{layoutShaderRead, layoutTransferDst}: {shaderStages, vkapi.AccessShaderRead, vkapi.StageTransfer, vkapi.AccessTransferWrite},
	{layoutShaderRead, layoutTransferSrc}: {shaderStages, vkapi.AccessShaderRead, vkapi.StageTransfer, vkapi.AccessTransferRead},
	{layoutTransferDst, layoutShaderRead}: {vkapi.StageTransfer, vkapi.AccessTransferWrite, shaderStages, vkapi.AccessShaderRead},
	{layoutTransferSrc, layoutShaderRead}: {vkapi.StageTransfer, vkapi.AccessTransferRead, shaderStages, vkapi.AccessShaderRead},

	{layoutColor, layoutTransferSrc}: {vkapi.StageColorAttachmentOutput, colorWrite, vkapi.StageTransfer, vkapi.AccessTransferRead},
	{layoutColor, layoutTransferDst}: {vkapi.StageColorAttachmentOutput, colorWrite, vkapi.StageTransfer, vkapi.AccessTransferWrite},
	{layoutTransferSrc, layoutColor}: {vkapi.StageTransfer, vkapi.AccessTransferRead, vkapi.StageColorAttachmentOutput, colorWrite},
	{layoutTransferDst, layoutColor}: {vkapi.StageTransfer, vkapi.AccessTransferWrite, vkapi.StageColorAttachmentOutput, colorWrite},

	{layoutDepthStencil, layoutTransferSrc}: {fragmentTests, depthWrite, vkapi.StageTransfer, vkapi.AccessTransferRead},
	{layoutDepthStencil, layoutTransferDst}: {fragmentTests, depthWrite, vkapi.StageTransfer, vkapi.AccessTransferWrite},
	{layoutTransferSrc, layoutDepthStencil}: {vkapi.StageTransfer, vkapi.AccessTransferRead, fragmentTests, depthWrite},
	{layoutTransferDst, layoutDepthStencil}: {vkapi.StageTransfer, vkapi.AccessTransferWrite, fragmentTests, depthWrite},

	{layoutTransferDst, layoutTransferSrc}: {vkapi.StageTransfer, vkapi.AccessTransferWrite, vkapi.StageTransfer, vkapi.AccessTransferRead},
	{layoutTransferSrc, layoutTransferDst}: {vkapi.StageTransfer, vkapi.AccessTransferRead, vkapi.StageTransfer, vkapi.AccessTransferWrite},
}

// transition records a layout change of levels [base, base+count) and
// reports whether a barrier was needed.
func (r *Renderer) transition(cb vkapi.CommandBuffer, img vkapi.Image, aspect vkapi.ImageAspect, base, count int, from, to vkapi.ImageLayout) bool {
	b, ok := transitions[layoutPair{from, to}]
	if !ok {
		if from != to {
			rhi.Logger().Debug("vulkan: no transition", "from", from.String(), "to", to.String())
		}
		return false
	}
	r.dev.CmdPipelineBarrier(cb, b.srcStage, b.dstStage, nil, nil, []vkapi.ImageMemoryBarrier{{
		SrcAccess: b.srcAccess,
		DstAccess: b.dstAccess,
		OldLayout: from,
		NewLayout: to,
		Image:     img,
		Range:     vkapi.SubresourceRange{Aspect: aspect, BaseLevel: uint32(base), LevelCount: uint32(count)},
	}})
	return true
}

// restLayout returns the layout an image with desc stays in between
// operations.
func restLayout(desc *rhi.ImageDescriptor) vkapi.ImageLayout {
	switch {
	case desc.Usage.Contains(gputypes.TextureUsageStorageBinding):
		return layoutGeneral
	case desc.Usage.Contains(gputypes.TextureUsageTextureBinding):
		return layoutShaderRead
	case desc.IsDepth():
		return layoutDepthStencil
	}
	return layoutColor
}

// aspectOf returns the aspects a whole-image operation on f covers.
func aspectOf(f vkapi.Format) vkapi.ImageAspect {
	switch {
	case f.HasStencil():
		return vkapi.AspectDepth | vkapi.AspectStencil
	case f.IsDepth():
		return vkapi.AspectDepth
	}
	return vkapi.AspectColor
}

// beginTransfer moves levels of img from their resting layout into want
// and returns the layout the transfer must name. Images resting in the
// general layout stay there behind a memory barrier.
func (r *Renderer) beginTransfer(cb vkapi.CommandBuffer, img *image, base, count int, want vkapi.ImageLayout) vkapi.ImageLayout {
	if img.rest == layoutGeneral {
		r.dev.CmdPipelineBarrier(cb, vkapi.StageAllCommands, vkapi.StageTransfer, []vkapi.MemoryBarrier{{
			SrcAccess: vkapi.AccessMemoryWrite,
			DstAccess: vkapi.AccessTransferRead | vkapi.AccessTransferWrite,
		}}, nil, nil)
		return layoutGeneral
	}
	r.transition(cb, img.img, img.aspect, base, count, img.rest, want)
	return want
}

// endTransfer returns levels of img from layout to their resting layout.
func (r *Renderer) endTransfer(cb vkapi.CommandBuffer, img *image, base, count int, layout vkapi.ImageLayout) {
	if layout == layoutGeneral {
		r.dev.CmdPipelineBarrier(cb, vkapi.StageTransfer, vkapi.StageAllCommands, []vkapi.MemoryBarrier{{
			SrcAccess: vkapi.AccessTransferWrite,
			DstAccess: vkapi.AccessMemoryRead | vkapi.AccessMemoryWrite,
		}}, nil, nil)
		return
	}
	r.transition(cb, img.img, img.aspect, base, count, layout, img.rest)
}
