package vulkan

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/hal/vkapi"
	"github.com/gogpu/rhi/state"
)

// =============================================================================
// Layouts
// =============================================================================

func TestRestLayout(t *testing.T) {
	tests := []struct {
		name string
		desc rhi.ImageDescriptor
		want vkapi.ImageLayout
	}{
		{"storage", rhi.ImageDescriptor{Format: gputypes.TextureFormatRGBA8Unorm,
			Usage: gputypes.TextureUsageStorageBinding | gputypes.TextureUsageTextureBinding}, layoutGeneral},
		{"sampled", rhi.ImageDescriptor{Format: gputypes.TextureFormatRGBA8Unorm,
			Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment}, layoutShaderRead},
		{"depth target", rhi.ImageDescriptor{Format: gputypes.TextureFormatDepth24PlusStencil8,
			Usage: gputypes.TextureUsageRenderAttachment}, layoutDepthStencil},
		{"color target", rhi.ImageDescriptor{Format: gputypes.TextureFormatBGRA8Unorm,
			Usage: gputypes.TextureUsageRenderAttachment}, layoutColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := restLayout(&tt.desc); got != tt.want {
				t.Errorf("restLayout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAspectOf(t *testing.T) {
	tests := []struct {
		format vkapi.Format
		want   vkapi.ImageAspect
	}{
		{vkapi.FormatR8G8B8A8Unorm, vkapi.AspectColor},
		{vkapi.FormatD32Sfloat, vkapi.AspectDepth},
		{vkapi.FormatD24UnormS8Uint, vkapi.AspectDepth | vkapi.AspectStencil},
	}
	for _, tt := range tests {
		if got := aspectOf(tt.format); got != tt.want {
			t.Errorf("aspectOf(%v) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestTransitionsAreReversible(t *testing.T) {
	for pair, b := range transitions {
		if pair.from == pair.to {
			t.Errorf("transition %v -> %v onto itself", pair.from, pair.to)
		}
		if b.srcStage == 0 || b.dstStage == 0 {
			t.Errorf("transition %v -> %v has an empty stage mask", pair.from, pair.to)
		}
		if pair.from == layoutUndefined {
			continue
		}
		if _, ok := transitions[layoutPair{pair.to, pair.from}]; !ok {
			t.Errorf("transition %v -> %v has no way back", pair.from, pair.to)
		}
	}
}

func TestTransitionWithoutBarrier(t *testing.T) {
	r := &Renderer{}
	if r.transition(0, 0, vkapi.AspectColor, 0, 1, layoutColor, layoutColor) {
		t.Error("transition() onto the same layout recorded a barrier")
	}
	if r.transition(0, 0, vkapi.AspectColor, 0, 1, layoutPresent, layoutGeneral) {
		t.Error("transition() of an unknown pair recorded a barrier")
	}
}

// =============================================================================
// Conversions
// =============================================================================

func TestNativeDynamicFollowsKindOrder(t *testing.T) {
	got := nativeDynamic(state.Of(state.KindScissor, state.KindViewport, state.KindBlendConstants))
	want := []vkapi.DynamicState{vkapi.DynamicViewport, vkapi.DynamicScissor, vkapi.DynamicBlendConstants}
	if len(got) != len(want) {
		t.Fatalf("nativeDynamic() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("nativeDynamic()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if n := len(nativeDynamic(state.All)); n != len(dynamicStates) {
		t.Errorf("len(nativeDynamic(All)) = %d, want %d", n, len(dynamicStates))
	}
}

func TestVertexFormat(t *testing.T) {
	tests := []struct {
		format gputypes.VertexFormat
		want   vkapi.Format
		ok     bool
	}{
		{gputypes.VertexFormatFloat32, vkapi.FormatR32Sfloat, true},
		{gputypes.VertexFormatFloat32x2, vkapi.FormatR32G32Sfloat, true},
		{gputypes.VertexFormatFloat32x4, vkapi.FormatR32G32B32A32Sfloat, true},
	}
	for _, tt := range tests {
		got, ok := vertexFormat(tt.format)
		if got != tt.want || ok != tt.ok {
			t.Errorf("vertexFormat(%v) = (%v, %v), want (%v, %v)", tt.format, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDescriptorTypeOfArrays(t *testing.T) {
	if got := descriptorType(rhi.DescriptorSampledImageArray); got != vkapi.DescriptorTypeCombinedImageSampler {
		t.Errorf("descriptorType(SampledImageArray) = %v, want CombinedImageSampler", got)
	}
	if got := descriptorType(rhi.DescriptorStorageImage); got != vkapi.DescriptorTypeStorageImage {
		t.Errorf("descriptorType(StorageImage) = %v, want StorageImage", got)
	}
}

// =============================================================================
// Shader cache
// =============================================================================

func TestCompileFailuresNotCached(t *testing.T) {
	before := compiled.Stats()
	for range 2 {
		if _, err := compileWGSL("fn main( {"); err == nil {
			t.Fatal("compileWGSL() accepted malformed source")
		}
	}
	after := compiled.Stats()
	if after.Len != before.Len {
		t.Errorf("cache Len = %d, want %d", after.Len, before.Len)
	}
	if got := after.Misses - before.Misses; got != 2 {
		t.Errorf("cache misses = %d, want 2", got)
	}
}
