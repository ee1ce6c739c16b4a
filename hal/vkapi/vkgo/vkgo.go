//go:build !nogpu

// Package vkgo implements vkapi over the goki/vulkan cgo binding.
//
// Native handles are pointers in the binding, so each device keeps a table
// per object kind mapping the 64-bit vkapi handles onto them. Tables are
// guarded by one mutex per device.
package vkgo

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/rhi/hal/vkapi"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// table maps vkapi handles onto binding handles. Missing entries read as
// the zero value, the binding's null handle.
type table[T any] struct {
	next uint64
	m    map[uint64]T
}

func (t *table[T]) put(v T) uint64 {
	if t.m == nil {
		t.m = make(map[uint64]T)
	}
	t.next++
	t.m[t.next] = v
	return t.next
}

func (t *table[T]) get(h uint64) T { return t.m[h] }

func (t *table[T]) take(h uint64) (T, bool) {
	v, ok := t.m[h]
	delete(t.m, h)
	return v, ok
}

func cstr(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func check(r vk.Result) error {
	if r == vk.Success {
		return nil
	}
	return vkapi.Result(r)
}

func b32(v bool) vk.Bool32 {
	if v {
		return vk.True
	}
	return vk.False
}

// Loader returns a vkapi.Loader resolving entry points through procAddr,
// the vkGetInstanceProcAddr pointer a window library supplies. A nil
// procAddr loads the system Vulkan library.
func Loader(procAddr unsafe.Pointer) vkapi.Loader {
	return func(extensions []string, debug bool) (vkapi.Instance, error) {
		return newInstance(procAddr, extensions, debug)
	}
}

type instance struct {
	mu       sync.Mutex
	inst     vk.Instance
	surfaces table[vk.Surface]
}

func newInstance(procAddr unsafe.Pointer, extensions []string, debug bool) (*instance, error) {
	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, fmt.Errorf("vkgo: load library: %w", err)
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vkgo: init: %w", err)
	}

	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = cstr(e)
	}
	var layers []string
	if debug && hasLayer(validationLayer) {
		layers = append(layers, cstr(validationLayer))
	}
	info := vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         vk.MakeVersion(1, 3, 0),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PApplicationName:   "rhi\x00",
			PEngineName:        "rhi\x00",
		},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}
	var inst vk.Instance
	if err := check(vk.CreateInstance(&info, nil, &inst)); err != nil {
		return nil, fmt.Errorf("vkgo: create instance: %w", err)
	}
	if err := vk.InitInstance(inst); err != nil {
		vk.DestroyInstance(inst, nil)
		return nil, fmt.Errorf("vkgo: init instance: %w", err)
	}
	return &instance{inst: inst}, nil
}

func hasLayer(name string) bool {
	var n uint32
	if vk.EnumerateInstanceLayerProperties(&n, nil) != vk.Success || n == 0 {
		return false
	}
	props := make([]vk.LayerProperties, n)
	if vk.EnumerateInstanceLayerProperties(&n, props) != vk.Success {
		return false
	}
	for _, p := range props {
		p.Deref()
		if vk.ToString(p.LayerName[:]) == name {
			return true
		}
	}
	return false
}

// CreateSurface implements vkapi.Instance.
func (i *instance) CreateSurface(create vkapi.SurfaceFactory) (vkapi.Surface, error) {
	ptr, err := create(i.inst)
	if err != nil {
		return 0, fmt.Errorf("vkgo: create surface: %w", err)
	}
	s := vk.SurfaceFromPointer(ptr)
	i.mu.Lock()
	defer i.mu.Unlock()
	return vkapi.Surface(i.surfaces.put(s)), nil
}

// DestroySurface implements vkapi.Instance.
func (i *instance) DestroySurface(s vkapi.Surface) {
	i.mu.Lock()
	surface, ok := i.surfaces.take(uint64(s))
	i.mu.Unlock()
	if ok {
		vk.DestroySurface(i.inst, surface, nil)
	}
}

func (i *instance) surface(s vkapi.Surface) vk.Surface {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.surfaces.get(uint64(s))
}

// candidate is a physical device with a usable queue family.
type candidate struct {
	pd       vk.PhysicalDevice
	family   uint32
	discrete bool
	name     string
}

func (i *instance) candidates(surface vk.Surface, present bool) ([]candidate, error) {
	var n uint32
	if err := check(vk.EnumeratePhysicalDevices(i.inst, &n, nil)); err != nil {
		return nil, fmt.Errorf("vkgo: enumerate devices: %w", err)
	}
	pds := make([]vk.PhysicalDevice, n)
	if err := check(vk.EnumeratePhysicalDevices(i.inst, &n, pds)); err != nil {
		return nil, fmt.Errorf("vkgo: enumerate devices: %w", err)
	}
	var out []candidate
	for _, pd := range pds {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()

		var count uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
		families := make([]vk.QueueFamilyProperties, count)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
		for f := uint32(0); f < count; f++ {
			families[f].Deref()
			if families[f].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
				continue
			}
			if present {
				var supported vk.Bool32
				vk.GetPhysicalDeviceSurfaceSupport(pd, f, surface, &supported)
				if !supported.B() {
					continue
				}
			}
			out = append(out, candidate{
				pd:       pd,
				family:   f,
				discrete: props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
				name:     vk.ToString(props.DeviceName[:]),
			})
			break
		}
	}
	return out, nil
}

func deviceExtensions(pd vk.PhysicalDevice) map[string]bool {
	var n uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &n, nil) != vk.Success {
		return nil
	}
	props := make([]vk.ExtensionProperties, n)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &n, props) != vk.Success {
		return nil
	}
	out := make(map[string]bool, n)
	for _, p := range props {
		p.Deref()
		out[vk.ToString(p.ExtensionName[:])] = true
	}
	return out
}

// CreateDevice implements vkapi.Instance. Discrete GPUs are preferred.
func (i *instance) CreateDevice(s vkapi.Surface) (vkapi.Device, error) {
	surface := i.surface(s)
	cands, err := i.candidates(surface, s != 0)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, errors.New("vkgo: no device with a graphics queue that can present")
	}
	pick := cands[0]
	for _, c := range cands {
		if c.discrete {
			pick = c
			break
		}
	}

	var exts []string
	if deviceExtensions(pick.pd)[vk.KhrSwapchainExtensionName] {
		exts = append(exts, cstr(vk.KhrSwapchainExtensionName))
	}
	var supported vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pick.pd, &supported)
	supported.Deref()
	features := vk.PhysicalDeviceFeatures{
		FillModeNonSolid: supported.FillModeNonSolid,
		WideLines:        supported.WideLines,
	}
	info := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: pick.family,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		}},
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}
	var dev vk.Device
	if err := check(vk.CreateDevice(pick.pd, &info, nil, &dev)); err != nil {
		return nil, fmt.Errorf("vkgo: create device %q: %w", pick.name, err)
	}
	var queue vk.Queue
	vk.GetDeviceQueue(dev, pick.family, 0, &queue)
	return newDevice(i, pick, dev, queue, supported), nil
}

// Native implements vkapi.Instance. It returns the vk.Instance.
func (i *instance) Native() interface{} { return i.inst }

// Destroy implements vkapi.Instance.
func (i *instance) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for h, s := range i.surfaces.m {
		vk.DestroySurface(i.inst, s, nil)
		delete(i.surfaces.m, h)
	}
	vk.DestroyInstance(i.inst, nil)
}
