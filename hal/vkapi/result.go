package vkapi

import "fmt"

// Result is a native result code. Negative values are errors; Result
// implements error so drivers can return it directly.
type Result int32

// Result codes the backends react to.
const (
	Success                  Result = 0
	NotReady                 Result = 1
	Timeout                  Result = 2
	Incomplete               Result = 5
	ErrorOutOfHostMemory     Result = -1
	ErrorOutOfDeviceMemory   Result = -2
	ErrorInitializationFail  Result = -3
	ErrorDeviceLost          Result = -4
	ErrorMemoryMapFailed     Result = -5
	ErrorExtensionNotPresent Result = -7
	ErrorFeatureNotPresent   Result = -8
	ErrorFormatNotSupported  Result = -11
	ErrorOutOfPoolMemory     Result = -1000069000
	ErrorInvalidShader       Result = -1000012000
	ErrorSurfaceLost         Result = -1000000000
	Suboptimal               Result = 1000001003
	ErrorOutOfDate           Result = -1000001004
)

func (r Result) Error() string {
	switch r {
	case Success:
		return "vk: success"
	case NotReady:
		return "vk: not ready"
	case Timeout:
		return "vk: timeout"
	case Incomplete:
		return "vk: incomplete"
	case ErrorOutOfHostMemory:
		return "vk: out of host memory"
	case ErrorOutOfDeviceMemory:
		return "vk: out of device memory"
	case ErrorInitializationFail:
		return "vk: initialization failed"
	case ErrorDeviceLost:
		return "vk: device lost"
	case ErrorMemoryMapFailed:
		return "vk: memory map failed"
	case ErrorOutOfPoolMemory:
		return "vk: out of pool memory"
	case ErrorInvalidShader:
		return "vk: invalid shader"
	case ErrorExtensionNotPresent:
		return "vk: extension not present"
	case ErrorFeatureNotPresent:
		return "vk: feature not present"
	case ErrorFormatNotSupported:
		return "vk: format not supported"
	case ErrorSurfaceLost:
		return "vk: surface lost"
	case Suboptimal:
		return "vk: suboptimal swapchain"
	case ErrorOutOfDate:
		return "vk: swapchain out of date"
	}
	return fmt.Sprintf("vk: result %d", int32(r))
}

// Err returns nil for Success and r otherwise.
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return r
}
