package rhi

import (
	"fmt"
	"strings"
)

// BackendKind selects one of the two built-in backend implementations.
// The set is closed: the factory switches on it once per renderer.
type BackendKind uint8

const (
	// BackendNone is the zero value and selects nothing.
	BackendNone BackendKind = iota
	// BackendOpenGL is the immediate-mode backend over OpenGL 4.6 core.
	BackendOpenGL
	// BackendVulkan is the deferred backend over Vulkan with frame pipelining.
	BackendVulkan
)

func (k BackendKind) String() string {
	switch k {
	case BackendOpenGL:
		return "opengl"
	case BackendVulkan:
		return "vulkan"
	default:
		return "none"
	}
}

// ParseBackend parses a backend name such as "vulkan" or "gl".
func ParseBackend(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opengl", "gl":
		return BackendOpenGL, nil
	case "vulkan", "vk":
		return BackendVulkan, nil
	}
	return BackendNone, fmt.Errorf("%w: %q", ErrUnsupportedBackend, s)
}
