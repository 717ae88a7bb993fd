package texcache

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/xenos"
)

// maxLOD is the level-of-detail clamp of samplers that use mipmaps.
const maxLOD = 32

// DemandSampler returns the host sampler for info, creating it on first
// use. Samplers live until ClearCache.
func (c *Cache) DemandSampler(info xenos.SamplerInfo) (*Sampler, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	return c.samplers.GetOrCreate(info.Hash(), func() (*Sampler, error) {
		desc := samplerDescriptor(info)
		id, err := c.device.CreateSampler(&desc)
		if err != nil {
			return nil, errors.Wrapf(err, "texcache: create sampler %+v", info)
		}
		return &Sampler{Info: info, Sampler: id}, nil
	})
}

// samplerDescriptor translates guest sampler state. Border clamps map to
// edge clamps and LODBias has no host equivalent.
func samplerDescriptor(info xenos.SamplerInfo) gpucore.SamplerDescriptor {
	d := gpucore.SamplerDescriptor{
		Label:         "texcache sampler",
		AddressModeU:  addressMode(info.ClampU),
		AddressModeV:  addressMode(info.ClampV),
		AddressModeW:  addressMode(info.ClampW),
		MagFilter:     filterMode(info.MagFilter),
		MinFilter:     filterMode(info.MinFilter),
		MipmapFilter:  filterMode(info.MipFilter),
		LodMaxClamp:   maxLOD,
		MaxAnisotropy: info.Aniso.Samples(),
	}
	if info.MipFilter == xenos.FilterBaseMap {
		d.LodMaxClamp = 0
	}
	// Anisotropic sampling requires linear filtering throughout.
	if d.MaxAnisotropy > 1 {
		d.MagFilter = gputypes.FilterModeLinear
		d.MinFilter = gputypes.FilterModeLinear
		d.MipmapFilter = gputypes.FilterModeLinear
	}
	return d
}

func addressMode(m xenos.ClampMode) gputypes.AddressMode {
	switch m {
	case xenos.ClampRepeat:
		return gputypes.AddressModeRepeat
	case xenos.ClampMirroredRepeat, xenos.ClampMirrorToEdge,
		xenos.ClampMirrorToHalfway, xenos.ClampMirrorToBorder:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

func filterMode(f xenos.TextureFilter) gputypes.FilterMode {
	switch f {
	case xenos.FilterLinear, xenos.FilterUseFetchConst:
		return gputypes.FilterModeLinear
	default:
		return gputypes.FilterModeNearest
	}
}
