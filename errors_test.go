package rhi

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusSuccess},
		{"retry", ErrFrameRetry, StatusRetry},
		{"wrapped retry", fmt.Errorf("begin frame: %w", ErrFrameRetry), StatusRetry},
		{"failure", ErrDeviceLost, StatusFailure},
		{"compile", &ShaderCompileError{Stage: gputypes.ShaderStageVertex, Log: "x"}, StatusFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %v, want %v", got, tt.want)
			}
		})
	}
	if StatusRetry >= 0 || StatusFailure <= 0 {
		t.Errorf("status signs: retry %d, failure %d", StatusRetry, StatusFailure)
	}
}

func TestShaderCompileError(t *testing.T) {
	const log = "0:3(1): error: syntax error, unexpected '}'"
	var err error = fmt.Errorf("create shader: %w", &ShaderCompileError{Stage: gputypes.ShaderStageFragment, Log: log})
	var ce *ShaderCompileError
	if !errors.As(err, &ce) {
		t.Fatalf("errors.As() = false, want true")
	}
	if ce.Log != log {
		t.Errorf("Log = %q, want %q", ce.Log, log)
	}
	if !strings.Contains(err.Error(), "fragment") || !strings.Contains(err.Error(), log) {
		t.Errorf("Error() = %q, want stage and log", err.Error())
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want BackendKind
		ok   bool
	}{
		{"opengl", BackendOpenGL, true},
		{"GL", BackendOpenGL, true},
		{" vulkan ", BackendVulkan, true},
		{"vk", BackendVulkan, true},
		{"metal", BackendNone, false},
		{"", BackendNone, false},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if got != tt.want || (err == nil) != tt.ok {
			t.Errorf("ParseBackend(%q) = %v, %v, want %v, ok=%v", tt.in, got, err, tt.want, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrUnsupportedBackend) {
			t.Errorf("ParseBackend(%q) error = %v, want %v", tt.in, err, ErrUnsupportedBackend)
		}
	}
	if BackendVulkan.String() != "vulkan" || BackendOpenGL.String() != "opengl" {
		t.Errorf("String() = %q, %q", BackendVulkan, BackendOpenGL)
	}
}
