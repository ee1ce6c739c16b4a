package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// ShaderDescriptor describes one shader stage. The source language is
// backend specific: the OpenGL backend compiles GLSL from Source, the
// Vulkan backend accepts SPIR-V words directly or compiles WGSL from Source.
type ShaderDescriptor struct {
	Stage      gputypes.ShaderStage
	Source     string
	SPIRV      []uint32
	EntryPoint string
}

// Entry returns the entry point name, "main" when unset.
func (d *ShaderDescriptor) Entry() string {
	if d.EntryPoint == "" {
		return "main"
	}
	return d.EntryPoint
}

// Validate checks that exactly one stage and some code are present.
func (d *ShaderDescriptor) Validate() error {
	switch d.Stage {
	case gputypes.ShaderStageVertex, gputypes.ShaderStageFragment, gputypes.ShaderStageCompute:
	default:
		return fmt.Errorf("%w: shader stage %v", ErrInvalidDescriptor, d.Stage)
	}
	if d.Source == "" && len(d.SPIRV) == 0 {
		return fmt.Errorf("%w: shader has no code", ErrInvalidDescriptor)
	}
	return nil
}
