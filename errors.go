package rhi

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Sentinel errors returned by renderers and the factory. Callers match them
// with errors.Is; backends wrap them with context.
var (
	// ErrInvalidConfig indicates a missing or inconsistent configuration.
	ErrInvalidConfig = errors.New("rhi: invalid configuration")

	// ErrUnsupportedBackend indicates a backend kind that is not built in.
	ErrUnsupportedBackend = errors.New("rhi: unsupported backend")

	// ErrUnsupported indicates a format, usage or feature the device lacks.
	ErrUnsupported = errors.New("rhi: unsupported")

	// ErrOutOfMemory indicates a failed host or device allocation.
	ErrOutOfMemory = errors.New("rhi: out of memory")

	// ErrInvalidDescriptor indicates a descriptor with missing or
	// contradictory fields.
	ErrInvalidDescriptor = errors.New("rhi: invalid descriptor")

	// ErrMismatch indicates attachment counts, formats, extents or sizes
	// that do not agree with each other.
	ErrMismatch = errors.New("rhi: mismatched resources")

	// ErrInvalidHandle indicates a null, stale or foreign resource handle.
	ErrInvalidHandle = errors.New("rhi: invalid handle")

	// ErrInvalidState indicates a call made in the wrong frame or pass phase.
	ErrInvalidState = errors.New("rhi: invalid state")

	// ErrOutOfRange indicates an offset or size past the end of a resource.
	ErrOutOfRange = errors.New("rhi: out of range")

	// ErrNoSurface indicates a presentation call on a headless renderer.
	ErrNoSurface = errors.New("rhi: no presentation surface")

	// ErrFrameRetry indicates that the swapchain was stale and has been
	// rebuilt. The frame should be retried; this is not a failure.
	ErrFrameRetry = errors.New("rhi: swapchain recreated, retry frame")

	// ErrDeviceLost indicates an unrecoverable driver failure, including
	// exceeded driver wait timeouts.
	ErrDeviceLost = errors.New("rhi: device lost")

	// ErrDestroyed indicates use of a renderer or factory after teardown.
	ErrDestroyed = errors.New("rhi: renderer destroyed")
)

// ShaderCompileError reports a shader the backend compiler rejected.
// Log holds the compiler diagnostic verbatim.
type ShaderCompileError struct {
	Stage gputypes.ShaderStage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("rhi: %s shader compilation failed: %s", stageName(e.Stage), e.Log)
}

// LinkError reports a program or pipeline that failed to link.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "rhi: pipeline link failed: " + e.Log
}

func stageName(s gputypes.ShaderStage) string {
	switch s {
	case gputypes.ShaderStageVertex:
		return "vertex"
	case gputypes.ShaderStageFragment:
		return "fragment"
	case gputypes.ShaderStageCompute:
		return "compute"
	}
	return "unknown"
}

// Status is the integer result code of the frame protocol: zero on
// success, negative for a transient condition the caller should retry,
// positive for a failure.
type Status int

// Status codes.
const (
	StatusSuccess Status = 0
	StatusRetry   Status = -1
	StatusFailure Status = 1
)

// StatusOf maps err onto the integer status protocol.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrFrameRetry):
		return StatusRetry
	default:
		return StatusFailure
	}
}

func (s Status) String() string {
	switch {
	case s == StatusSuccess:
		return "success"
	case s < 0:
		return "retry"
	default:
		return "failure"
	}
}
