// Package xenostex is a texture cache for Xenos guest GPU emulation.
//
// # Overview
//
// Guest shaders sample textures described by fetch constants: a guest
// physical address, dimensions, a guest texel format, tiling and an endian
// swap mode. xenostex keeps host GPU copies of those textures, converts
// guest data to host formats on upload, tracks guest writes to invalidate
// stale copies, and assembles per-draw descriptor sets of texture views and
// samplers.
//
// # Quick Start
//
//	dev, _, err := backend.OpenDefault()
//	if err != nil {
//	    return err
//	}
//	cache := texcache.New(dev, memory)
//	if err := cache.Initialize(); err != nil {
//	    return err
//	}
//	defer cache.Shutdown()
//
//	// Per draw:
//	res, err := cache.PrepareTextureSet(draw, setup, fence, vertexBindings, pixelBindings)
//
//	// Per frame:
//	cache.Scavenge()
//
// # Architecture
//
// The module is organized into:
//   - xenos: guest descriptors (TextureInfo, SamplerInfo, formats, swizzles)
//   - gpucore: the host device contract (Device, CommandBuffer, Fence)
//   - texcache: registry, regions and views, uploads, writeback,
//     invalidation, samplers, descriptor sets and the scavenger
//   - guestmem: in-process guest memory with write watches
//   - backend/native: gpucore.Device on gogpu/wgpu HAL
//   - backend/software: CPU gpucore.Device used by tests and tools
//   - cmd/xtexconv: converts guest texture dumps to PNG or TIFF
//
// # Logging
//
// Nothing is logged by default. [SetLogger] installs a log/slog logger for
// every package.
package xenostex
