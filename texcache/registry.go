package texcache

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/internal/convert"
	"github.com/gogpu/xenostex/xenos"
)

// Default usages of cache-created images.
const (
	textureUsage = gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageCopySrc
	resolveUsage = textureUsage | gputypes.TextureUsageRenderAttachment
)

// Lookup returns the resident or resolve texture created from info, or nil.
func (c *Cache) Lookup(info xenos.TextureInfo) *Texture {
	if tex, ok := c.textures[info.Hash()]; ok && tex.Info == info {
		return tex
	}
	for _, tex := range c.resolveTextures {
		if tex.Info == info {
			return tex
		}
	}
	return nil
}

// LookupAddress finds a resident or resolve texture whose guest memory
// holds a width x height rectangle of format starting at addr. MatchExact
// is preferred; among containing textures the smallest wins. For
// MatchContains the offset locates the rectangle inside the returned
// texture.
func (c *Cache) LookupAddress(addr, width, height uint32, format xenos.TextureFormat) (*Texture, AddressMatch, Offset2D) {
	want, ok := format.Info()
	if !ok {
		return nil, MatchNone, Offset2D{}
	}

	var (
		exact      *Texture
		best       *Texture
		bestOffset Offset2D
		bestSize   uint32
	)
	consider := func(tex *Texture) {
		info := tex.Info
		if info.GuestAddress == addr && info.Width == width && info.Height == height && info.Format == format {
			exact = tex
			return
		}
		have, ok := info.FormatInfo()
		if !ok || have.BytesPerBlock != want.BytesPerBlock ||
			have.BlockWidth != want.BlockWidth || have.BlockHeight != want.BlockHeight {
			return
		}
		if !info.Contains(addr, 1) {
			return
		}
		off, ok := texelOffset(info, have, addr-info.GuestAddress)
		if !ok || off.X+width > info.Width || off.Y+height > info.Height {
			return
		}
		_, size := info.GuestRange()
		if best == nil || size < bestSize || (size == bestSize && info.GuestAddress < best.Info.GuestAddress) {
			best, bestOffset, bestSize = tex, off, size
		}
	}

	for _, tex := range c.textures {
		if consider(tex); exact != nil {
			return exact, MatchExact, Offset2D{}
		}
	}
	for _, tex := range c.resolveTextures {
		if consider(tex); exact != nil {
			return exact, MatchExact, Offset2D{}
		}
	}
	if best == nil {
		return nil, MatchNone, Offset2D{}
	}
	return best, MatchContains, bestOffset
}

// texelOffset maps a byte offset from the start of info's first face to the
// texel it addresses. Tiled textures only resolve offsets on tile
// boundaries.
func texelOffset(info xenos.TextureInfo, f xenos.FormatInfo, off uint32) (Offset2D, bool) {
	layout, ok := info.Layout()
	if !ok || off >= layout.FaceSize {
		return Offset2D{}, false
	}
	if !info.Tiled {
		if off%f.BytesPerBlock != 0 {
			return Offset2D{}, false
		}
		by := off / layout.RowPitch
		bx := (off % layout.RowPitch) / f.BytesPerBlock
		return Offset2D{X: bx * f.BlockWidth, Y: by * f.BlockHeight}, true
	}
	const tile = xenos.TileBlocks
	tileBytes := tile * tile * f.BytesPerBlock
	if off%tileBytes != 0 {
		return Offset2D{}, false
	}
	n := off / tileBytes
	tilesWide := layout.PitchBlocks / tile
	return Offset2D{
		X: (n % tilesWide) * tile * f.BlockWidth,
		Y: (n / tilesWide) * tile * f.BlockHeight,
	}, true
}

// DemandRegion returns the base region of the texture for info, creating
// and uploading it as needed. Uploads are recorded into setup; draw
// receives the transition of GPU-written images to sampling. flushed
// reports that setup was submitted and waited on to free staging memory.
func (c *Cache) DemandRegion(info xenos.TextureInfo, draw, setup gpucore.CommandBuffer, fence gpucore.Fence) (region *TextureRegion, flushed bool, err error) {
	if !c.initialized {
		return nil, false, ErrNotInitialized
	}
	tex := c.Lookup(info)
	if tex == nil {
		if tex, err = c.AllocateTexture(info); err != nil {
			return nil, false, err
		}
	}
	region = tex.BaseRegion()
	if flushed, err = c.ensureRegion(region, draw, setup, fence); err != nil {
		return nil, flushed, err
	}
	return region, flushed, nil
}

// ensureRegion uploads r if its contents are stale and leaves it ready for
// sampling under fence.
func (c *Cache) ensureRegion(r *TextureRegion, draw, setup gpucore.CommandBuffer, fence gpucore.Fence) (flushed bool, err error) {
	if !r.ContentsValid {
		if flushed, err = c.UploadTexture(setup, fence, r, r.Texture.Info); err != nil {
			return flushed, err
		}
	}
	if r.Layout != gputypes.TextureUsageTextureBinding {
		draw.TransitionTexture(r.Image, r.Layout, gputypes.TextureUsageTextureBinding)
		r.Layout = gputypes.TextureUsageTextureBinding
	}
	r.Texture.inFlight = fence
	return flushed, nil
}

// AllocateTexture creates a resident texture for info with an empty base
// region and a write watch over its guest range. The base region is
// uploaded on first demand.
func (c *Cache) AllocateTexture(info xenos.TextureInfo) (*Texture, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	tex, err := c.newTexture(info, textureUsage)
	if err != nil {
		return nil, err
	}

	key := info.Hash()
	if old, ok := c.textures[key]; ok {
		c.logger().Warn("texcache: texture key collision",
			"key", key, "old", old.Info.String(), "new", info.String())
		c.retireTexture(old)
		c.setMemo.Clear()
	}
	base, length := info.GuestRange()
	tex.watch = c.memory.AddWatch(base, length, func(uint32) {
		c.invalidated.add(tex)
	})
	c.textures[key] = tex
	c.logger().Debug("texcache: texture allocated", "texture", info.String(), "format", tex.Format)
	return tex, nil
}

// DemandResolveTexture returns the render target texture for info,
// creating it without a guest watch. Its contents are produced by the GPU;
// it is never uploaded and leaves the cache only through
// InvalidateResolveTexture or ClearCache.
func (c *Cache) DemandResolveTexture(info xenos.TextureInfo) (*Texture, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	for _, tex := range c.resolveTextures {
		if tex.Info == info {
			return tex, nil
		}
	}
	tex, err := c.newTexture(info, resolveUsage)
	if err != nil {
		return nil, err
	}
	tex.resolve = true
	tex.BaseRegion().ContentsValid = true
	c.resolveTextures = append(c.resolveTextures, tex)
	c.logger().Debug("texcache: resolve texture allocated", "texture", info.String())
	return tex, nil
}

// newTexture creates a texture and its base region.
func (c *Cache) newTexture(info xenos.TextureInfo, usage gputypes.TextureUsage) (*Texture, error) {
	layout, err := convert.ComputeLayout(info)
	if err != nil {
		c.logger().Warn("texcache: texture rejected", "texture", info.String(), "err", err)
		err = errors.Wrapf(err, "texcache: texture %v", info)
		if errors.Is(err, convert.ErrUnsupportedFormat) {
			err = errors.WithAssertionFailure(err)
		}
		return nil, err
	}
	tex := &Texture{
		Info:   info,
		Format: layout.Format,
		layout: layout,
	}
	if _, err := c.createRegion(tex, gputypes.Origin3D{}, layout.Extent(), usage); err != nil {
		return nil, err
	}
	return tex, nil
}
