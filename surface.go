package rhi

// Surface is the presentation target supplied by the windowing layer.
type Surface interface {
	// FramebufferSize returns the drawable extent in pixels.
	FramebufferSize() (width, height int)
}

// GLSurface is a Surface backed by an OpenGL context.
type GLSurface interface {
	Surface
	MakeContextCurrent()
	// SwapInterval sets the buffer swap interval: 1 waits for vertical
	// blank, 0 does not, -1 requests adaptive sync.
	SwapInterval(interval int)
}

// VulkanSurface is a Surface that can create a Vulkan presentation surface.
type VulkanSurface interface {
	Surface
	// RequiredInstanceExtensions lists the instance extensions the window
	// system needs.
	RequiredInstanceExtensions() []string
	// CreateVulkanSurface creates a VkSurfaceKHR for the native instance
	// handle and returns it as an integer.
	CreateVulkanSurface(instance interface{}) (uintptr, error)
}
