package texcache

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/internal/convert"
	"github.com/gogpu/xenostex/internal/staging"
	"github.com/gogpu/xenostex/xenos"
)

// UploadTexture converts the guest texture described by info into staging
// memory and records its copy into dst. The copy is recorded into setup and
// the staging memory is held until fence signals. flushed reports that
// setup was submitted and waited on to make room.
func (c *Cache) UploadTexture(setup gpucore.CommandBuffer, fence gpucore.Fence, dst *TextureRegion, info xenos.TextureInfo) (flushed bool, err error) {
	if !c.initialized {
		return false, ErrNotInitialized
	}
	layout, err := convert.ComputeLayout(info)
	if err != nil {
		return false, errors.Wrapf(err, "texcache: upload %v", info)
	}
	if layout.Format != dst.Texture.Format {
		return false, errors.AssertionFailedf("texcache: upload %v into %v image", layout.Format, dst.Texture.Format)
	}
	guestSize := convert.GuestStorage(info)
	src := c.memory.Translate(info.GuestAddress, uint32(guestSize))
	if src == nil {
		return false, errors.Newf("texcache: guest range %#08x+%d not mapped", info.GuestAddress, guestSize)
	}

	alloc, flushed, err := c.acquireStaging(setup, fence, layout.Size)
	if err != nil {
		return flushed, err
	}
	if _, err := convert.ConvertTexture(alloc.Data, src, info); err != nil {
		return flushed, errors.Wrapf(err, "texcache: convert %v", info)
	}
	if err := c.staging.Flush(alloc); err != nil {
		return flushed, errors.Wrap(err, "texcache: flush staging")
	}

	setup.TransitionTexture(dst.Image, dst.Layout, gputypes.TextureUsageCopyDst)
	setup.CopyBufferToTexture(alloc.Buffer, dst.Image, []gpucore.BufferTextureCopy{
		regionCopy(layout, alloc.Offset, dst),
	})
	setup.TransitionTexture(dst.Image, gputypes.TextureUsageCopyDst, gputypes.TextureUsageTextureBinding)
	dst.Layout = gputypes.TextureUsageTextureBinding
	dst.ContentsValid = true
	dst.Texture.inFlight = fence
	c.stats.Uploads++
	c.stats.UploadBytes += alloc.Length
	return flushed, nil
}

// regionCopy returns the copy of region r out of a converted texture
// placed at offset.
func regionCopy(l convert.HostLayout, offset uint64, r *TextureRegion) gpucore.BufferTextureCopy {
	offset += uint64(r.Offset.Z)*l.FaceSize +
		uint64(r.Offset.Y/l.BlockHeight)*uint64(l.RowPitch) +
		uint64(r.Offset.X/l.BlockWidth)*uint64(l.BytesPerBlock)
	return gpucore.BufferTextureCopy{
		BufferOffset: offset,
		BytesPerRow:  l.RowPitch,
		RowsPerImage: l.BlocksHigh * l.BlockHeight,
		Size:         r.Extent,
	}
}

// acquireStaging reserves n bytes of upload staging, flushing setup once
// if the ring is full.
func (c *Cache) acquireStaging(setup gpucore.CommandBuffer, fence gpucore.Fence, n uint64) (alloc *staging.Allocation, flushed bool, err error) {
	if !c.staging.CanAcquire(n) {
		if err := c.flushPendingCommands(setup, fence); err != nil {
			return nil, true, err
		}
		flushed = true
	}
	if alloc, ok := c.staging.Acquire(n, fence); ok {
		return alloc, flushed, nil
	}
	return nil, flushed, errors.Wrapf(ErrStagingExhausted, "%d bytes requested, ring holds %d", n, c.staging.Capacity())
}

// flushPendingCommands submits setup, waits for fence, reclaims staging
// memory and rearms fence for the work recorded after the flush.
func (c *Cache) flushPendingCommands(setup gpucore.CommandBuffer, fence gpucore.Fence) error {
	if err := c.device.Flush(setup, fence); err != nil {
		return errors.Wrap(err, "texcache: flush setup commands")
	}
	c.staging.Scavenge()
	if err := c.device.ResetFence(fence); err != nil {
		return errors.Wrap(err, "texcache: reset fence")
	}
	c.stats.Flushes++
	c.logger().Debug("texcache: staging full, flushed setup commands", "live", c.staging.Live())
	return nil
}
