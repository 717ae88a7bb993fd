package gpucore

import "github.com/gogpu/gputypes"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each Device implementation
// maintains a mapping between IDs and actual backend resources.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// TextureViewID is an opaque handle to a texture view.
type TextureViewID uint64

// SamplerID is an opaque handle to a sampler.
type SamplerID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// CopyPitchAlignment is the required alignment of BytesPerRow in
// buffer/texture copies.
const CopyPitchAlignment = 256

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Size is the extent of mip level 0. DepthOrArrayLayers is the number
	// of array layers for 2D and cube textures.
	Size gputypes.Extent3D

	MipLevelCount uint32
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

// Component selects the source of one channel of a texture view.
type Component uint8

// View components.
const (
	ComponentR Component = iota
	ComponentG
	ComponentB
	ComponentA
	ComponentZero
	ComponentOne
)

// ComponentMapping is the channel remapping of a texture view.
type ComponentMapping struct {
	R, G, B, A Component
}

// IdentityMapping maps every channel to itself.
var IdentityMapping = ComponentMapping{ComponentR, ComponentG, ComponentB, ComponentA}

// TextureViewDescriptor describes a texture view to create.
type TextureViewDescriptor struct {
	Label string

	Format    gputypes.TextureFormat
	Dimension gputypes.TextureViewDimension

	BaseArrayLayer  uint32
	ArrayLayerCount uint32

	// Swizzle remaps the channels returned by sampling the view.
	Swizzle ComponentMapping
}

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label string

	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode

	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode

	LodMinClamp float32
	LodMaxClamp float32

	// MaxAnisotropy of 1 disables anisotropic filtering.
	MaxAnisotropy uint16
}

// BindGroupLayoutEntry declares one combined texture/sampler slot.
type BindGroupLayoutEntry struct {
	// Binding is the slot index.
	Binding uint32

	// Visibility selects the shader stages that read the slot.
	Visibility gputypes.ShaderStages
}

// BindGroupEntry binds a texture view and a sampler to one slot.
type BindGroupEntry struct {
	Binding uint32
	View    TextureViewID
	Sampler SamplerID
}

// BufferTextureCopy describes a copy between a buffer and a texture region.
type BufferTextureCopy struct {
	// BufferOffset is the byte offset of the first texel block in the buffer.
	BufferOffset uint64

	// BytesPerRow is the distance between rows of blocks in the buffer. It
	// must be a multiple of CopyPitchAlignment.
	BytesPerRow uint32

	// RowsPerImage is the number of texel rows between array layers.
	RowsPerImage uint32

	// Origin is the first texel of the texture region. Z selects the first
	// array layer.
	Origin gputypes.Origin3D

	// Size is the copied extent. DepthOrArrayLayers counts array layers.
	Size gputypes.Extent3D

	MipLevel uint32
}
