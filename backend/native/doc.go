// Package native implements gpucore.Device on gogpu/wgpu's hardware
// abstraction layer (Vulkan, Metal, DX12, GLES) in Pure Go.
//
// # Opening a device
//
// Open selects an adapter from a specific HAL backend, OpenBest picks the
// most capable registered backend, and NewFromProvider shares the device of
// a host application that exposes HAL types through gpucontext:
//
//	dev, err := native.NewFromProvider(app)
//	if err != nil {
//	    return err
//	}
//	cache := texcache.New(dev, memory)
//
// Importing the package registers it with the backend registry under
// backend.BackendNative.
//
// # Differences from the gpucore contract
//
// HAL texture views have no component mapping. Swizzles requested through
// CreateTextureView are dropped; renderers that rely on them must apply
// the mapping in the shader.
//
// Each combined texture/sampler slot becomes two HAL bindings: the texture
// at TextureBinding(slot) and the sampler at SamplerBinding(slot).
//
// Fences follow queue submission indices. Flush waits for the whole device
// to go idle.
package native
