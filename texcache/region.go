package texcache

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/xenos"
)

// AllocateTextureRegion adds a host image for a proper sub-rectangle of
// tex. Offset and extent are in texels of the base extent and must be
// block aligned; Z and DepthOrArrayLayers select array layers. The region
// starts with stale contents.
func (c *Cache) AllocateTextureRegion(tex *Texture, offset gputypes.Origin3D, extent gputypes.Extent3D, usage gputypes.TextureUsage) (*TextureRegion, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	base := tex.BaseRegion().Extent
	l := tex.layout
	layers := max(extent.DepthOrArrayLayers, 1)
	switch {
	case extent.Width == 0 || extent.Height == 0:
		return nil, errors.Wrapf(ErrRegionOutOfBounds, "empty extent %+v", extent)
	case uint64(offset.X)+uint64(extent.Width) > uint64(base.Width),
		uint64(offset.Y)+uint64(extent.Height) > uint64(base.Height),
		uint64(offset.Z)+uint64(layers) > uint64(base.DepthOrArrayLayers):
		return nil, errors.Wrapf(ErrRegionOutOfBounds, "offset %+v extent %+v in %+v", offset, extent, base)
	case offset == (gputypes.Origin3D{}) && extent.Width == base.Width &&
		extent.Height == base.Height && layers == base.DepthOrArrayLayers:
		return nil, errors.Wrap(ErrRegionOutOfBounds, "region covers the base extent")
	case offset.X%l.BlockWidth != 0 || offset.Y%l.BlockHeight != 0 ||
		extent.Width%l.BlockWidth != 0 || extent.Height%l.BlockHeight != 0:
		return nil, errors.Wrapf(ErrRegionOutOfBounds, "offset %+v extent %+v not aligned to %dx%d blocks",
			offset, extent, l.BlockWidth, l.BlockHeight)
	}
	extent.DepthOrArrayLayers = layers
	return c.createRegion(tex, offset, extent, usage|gputypes.TextureUsageCopyDst)
}

func (c *Cache) createRegion(tex *Texture, offset gputypes.Origin3D, extent gputypes.Extent3D, usage gputypes.TextureUsage) (*TextureRegion, error) {
	image, err := c.device.CreateTexture(&gpucore.TextureDescriptor{
		Label:         fmt.Sprintf("texcache %#08x+%d,%d,%d", tex.Info.GuestAddress, offset.X, offset.Y, offset.Z),
		Size:          extent,
		MipLevelCount: 1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        tex.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "texcache: create image for %v", tex.Info)
	}
	r := &TextureRegion{
		Texture: tex,
		Offset:  offset,
		Extent:  extent,
		Image:   image,
	}
	tex.Regions = append(tex.Regions, r)
	return r, nil
}

// DemandTextureRegionView returns the view of region with swizzle, creating
// it on first use. Views are cached per canonical swizzle.
func (c *Cache) DemandTextureRegionView(region *TextureRegion, swizzle xenos.Swizzle) (*TextureRegionView, error) {
	swizzle = swizzle.Canonical()
	for _, v := range region.Views {
		if v.Swizzle == swizzle {
			return v, nil
		}
	}

	tex := region.Texture
	dim := gputypes.TextureViewDimension2D
	switch {
	case tex.Info.Dimension == xenos.DimensionCube && region.Extent.DepthOrArrayLayers == 6:
		dim = gputypes.TextureViewDimensionCube
	case region.Extent.DepthOrArrayLayers > 1:
		dim = gputypes.TextureViewDimension2DArray
	}
	view, err := c.device.CreateTextureView(region.Image, &gpucore.TextureViewDescriptor{
		Label:           fmt.Sprintf("texcache %#08x %s", tex.Info.GuestAddress, swizzle),
		Format:          tex.Format,
		Dimension:       dim,
		ArrayLayerCount: region.Extent.DepthOrArrayLayers,
		Swizzle:         componentMapping(swizzle),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "texcache: create view %s of %v", swizzle, tex.Info)
	}
	v := &TextureRegionView{Region: region, View: view, Swizzle: swizzle}
	region.Views = append(region.Views, v)
	return v, nil
}

func componentMapping(s xenos.Swizzle) gpucore.ComponentMapping {
	x, y, z, w := s.Unpack()
	return gpucore.ComponentMapping{
		R: component(x),
		G: component(y),
		B: component(z),
		A: component(w),
	}
}

func component(s xenos.Selector) gpucore.Component {
	switch s {
	case xenos.SelectR:
		return gpucore.ComponentR
	case xenos.SelectG:
		return gpucore.ComponentG
	case xenos.SelectB:
		return gpucore.ComponentB
	case xenos.SelectA:
		return gpucore.ComponentA
	case xenos.SelectOne:
		return gpucore.ComponentOne
	default:
		return gpucore.ComponentZero
	}
}
