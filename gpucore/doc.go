// Package gpucore defines the host GPU contract the texture cache records
// against.
//
// The cache never talks to a graphics API directly. It creates images,
// views, samplers and bind groups through [Device], records copies and
// usage transitions into caller-owned [CommandBuffer] values, and tracks GPU
// completion through [Fence] values.
//
// # Architecture
//
//	               +-----------------+
//	               |    texcache     |
//	               +--------+--------+
//	                        |  gpucore.Device
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| backend/native  |          | backend/software|
//	|  (hal.Device)   |          |   (CPU copies)  |
//	+--------+--------+          +-----------------+
//	         |
//	+--------v--------+
//	|   gogpu/wgpu    |
//	+-----------------+
//
// # Resource Management
//
// GPU resources are referenced through opaque IDs ([TextureID],
// [TextureViewID], [SamplerID], ...). Each Device implementation maps IDs
// to backend objects. IDs become invalid after destruction and are never
// reused by the same Device.
//
// # Host-visible memory
//
// Staging buffers are created with [Device.CreateBuffer] and accessed through
// [Device.MappedRange]. The mapping behaves like non-coherent memory: host
// writes must be published with [Device.FlushMappedRange] before the GPU
// consumes them, and GPU writes must be pulled in with
// [Device.InvalidateMappedRange] once the producing fence has signaled.
package gpucore
