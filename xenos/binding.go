package xenos

// MaxFetchConstants is the number of texture fetch constant slots.
const MaxFetchConstants = 32

// TextureBinding is one texture fetch a shader stage performs, already
// resolved against the fetch constant registers.
type TextureBinding struct {
	// FetchConstant is the fetch constant slot, in [0, MaxFetchConstants).
	FetchConstant uint32

	Texture TextureInfo
	Sampler SamplerInfo

	// Swizzle is the channel mapping requested by the fetch.
	Swizzle Swizzle
}
