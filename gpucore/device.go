package gpucore

import "github.com/gogpu/gputypes"

// Fence tracks completion of submitted GPU work.
//
// A fence starts unsignaled. It becomes signaled when the command buffer
// submitted with it completes, and returns to the unsignaled state through
// Device.ResetFence.
type Fence interface {
	// Signaled reports whether all work submitted with the fence has
	// completed.
	Signaled() bool
}

// CommandBuffer records transfer commands. Recorded work executes when the
// buffer is passed to Device.Submit or Device.Flush.
type CommandBuffer interface {
	// CopyBufferToTexture copies texel blocks from a buffer into a texture.
	CopyBufferToTexture(src BufferID, dst TextureID, regions []BufferTextureCopy)

	// CopyTextureToBuffer copies texel blocks from a texture into a buffer.
	CopyTextureToBuffer(src TextureID, dst BufferID, regions []BufferTextureCopy)

	// TransitionTexture records a usage transition for every subresource
	// of the texture.
	TransitionTexture(tex TextureID, from, to gputypes.TextureUsage)
}

// Device is the host GPU the texture cache allocates from.
//
// Implementations must be safe for use from the goroutine that owns the
// cache. Resource creation may be called concurrently with fence polling.
type Device interface {
	// === Textures ===

	// CreateTexture allocates a device-local image.
	CreateTexture(desc *TextureDescriptor) (TextureID, error)

	// DestroyTexture releases an image. Views of the texture must be
	// destroyed first.
	DestroyTexture(id TextureID)

	// CreateTextureView creates a view over an existing texture.
	CreateTextureView(tex TextureID, desc *TextureViewDescriptor) (TextureViewID, error)

	// DestroyTextureView releases a texture view.
	DestroyTextureView(id TextureViewID)

	// === Samplers ===

	// CreateSampler creates an immutable sampler.
	CreateSampler(desc *SamplerDescriptor) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// === Buffers ===

	// CreateBuffer allocates a host-visible buffer of size bytes.
	CreateBuffer(label string, size uint64, usage gputypes.BufferUsage) (BufferID, error)

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// MappedRange returns the persistent host mapping of a buffer.
	// The returned slice stays valid until the buffer is destroyed.
	MappedRange(id BufferID) ([]byte, error)

	// FlushMappedRange publishes host writes in [offset, offset+size)
	// to the device.
	FlushMappedRange(id BufferID, offset, size uint64) error

	// InvalidateMappedRange makes device writes in [offset, offset+size)
	// visible through the host mapping.
	InvalidateMappedRange(id BufferID, offset, size uint64) error

	// === Binding ===

	// CreateBindGroupLayout creates a layout of combined texture/sampler
	// slots.
	CreateBindGroupLayout(label string, entries []BindGroupLayoutEntry) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreateBindGroup allocates a bind group from the layout and writes
	// the given entries into it.
	CreateBindGroup(layout BindGroupLayoutID, entries []BindGroupEntry) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// === Command Recording and Execution ===

	// NewCommandBuffer returns a command buffer in the recording state.
	NewCommandBuffer(label string) (CommandBuffer, error)

	// Submit ends recording of cmd, submits it and signals fence on
	// completion. It does not wait. The command buffer may not be used
	// after Submit.
	Submit(cmd CommandBuffer, fence Fence) error

	// Flush submits cmd with fence, waits until the fence signals and
	// leaves cmd open for further recording.
	Flush(cmd CommandBuffer, fence Fence) error

	// NewFence creates an unsignaled fence.
	NewFence() (Fence, error)

	// ResetFence returns a signaled fence to the unsignaled state.
	ResetFence(fence Fence) error

	// DestroyFence releases a fence.
	DestroyFence(fence Fence)

	// === Lifecycle ===

	// Destroy releases the device. Every resource created from it must
	// already be destroyed.
	Destroy()
}
