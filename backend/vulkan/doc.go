// Package vulkan implements rhi.Renderer over vkapi.Device.
//
// Frames are pipelined: each of FramesInFlight slots owns a command buffer,
// a fence and the presentation semaphores, and BeginFrame waits only for
// the work submitted from the same slot two frames earlier. Objects
// destroyed while the GPU may still read them are released once their
// slot's fence signals.
//
// Images rest in one layout between operations, chosen from their usage:
// storage images in the general layout, sampled images in the shader-read
// layout and attachment-only images in their attachment layout. Transfers
// move the touched levels out of the resting layout and back.
//
// Dynamic buffers live in host-visible memory with one region per frame
// slot. Writes go to the current slot's region and are copied forward into
// the other regions when their slots come around, so a buffer is never
// written while an earlier frame reads it.
//
// Pipelines declare the state kinds the device can change on a command
// buffer dynamic; everything else is baked when the native pipeline is
// created.
package vulkan
