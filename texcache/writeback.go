package texcache

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/internal/convert"
	"github.com/gogpu/xenostex/internal/staging"
)

// writeback is a pending copy of a texture back into guest memory.
type writeback struct {
	texture *Texture
	cmd     gpucore.CommandBuffer
	fence   gpucore.Fence
	alloc   *staging.Allocation

	// gate is the texture's last-use fence at the time of the request;
	// the copy is submitted once it signals.
	gate      gpucore.Fence
	submitted bool

	// layout is the base region layout before the copy was recorded.
	layout gputypes.TextureUsage
}

// WritebackTexture schedules a copy of tex's base region back into guest
// memory. The copy runs after the work that last used tex and completes
// during a later Scavenge. The texture is not destroyed while the
// writeback is pending.
func (c *Cache) WritebackTexture(tex *Texture) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if tex.writeback != nil {
		return errors.Wrapf(ErrWritebackInFlight, "texture %v", tex.Info)
	}
	if !convert.SupportsWriteback(tex.Info.Format) {
		return errors.Wrapf(ErrUnsupportedFormat, "writeback of %s", tex.Info.Format)
	}

	fence, err := c.device.NewFence()
	if err != nil {
		return errors.Wrap(err, "texcache: create writeback fence")
	}
	size := tex.layout.Size
	alloc, ok := c.writebackStaging.Acquire(size, fence)
	if !ok {
		c.writebackStaging.Scavenge()
		if alloc, ok = c.writebackStaging.Acquire(size, fence); !ok {
			c.device.DestroyFence(fence)
			return errors.Wrapf(ErrStagingExhausted, "writeback of %d bytes", size)
		}
	}
	cmd, err := c.device.NewCommandBuffer("texcache writeback")
	if err != nil {
		c.writebackStaging.Release(alloc)
		c.device.DestroyFence(fence)
		return errors.Wrap(err, "texcache: create writeback commands")
	}

	base := tex.BaseRegion()
	layout := base.Layout
	cmd.TransitionTexture(base.Image, layout, gputypes.TextureUsageCopySrc)
	cmd.CopyTextureToBuffer(base.Image, alloc.Buffer, []gpucore.BufferTextureCopy{
		regionCopy(tex.layout, alloc.Offset, base),
	})
	if layout != 0 {
		cmd.TransitionTexture(base.Image, gputypes.TextureUsageCopySrc, layout)
	} else {
		base.Layout = gputypes.TextureUsageCopySrc
	}

	wb := &writeback{
		texture: tex,
		cmd:     cmd,
		fence:   fence,
		alloc:   alloc,
		gate:    tex.inFlight,
		layout:  layout,
	}
	if signaled(wb.gate) {
		if err := c.submitWriteback(wb); err != nil {
			c.abandonWriteback(wb)
			return err
		}
	}
	tex.writeback = wb
	c.writebacks = append(c.writebacks, wb)
	return nil
}

func (c *Cache) submitWriteback(wb *writeback) error {
	if err := c.device.Submit(wb.cmd, wb.fence); err != nil {
		return errors.Wrapf(err, "texcache: submit writeback of %v", wb.texture.Info)
	}
	wb.submitted = true
	wb.cmd = nil
	return nil
}

// advanceWritebacks submits writebacks whose gate has signaled and copies
// finished ones into guest memory.
func (c *Cache) advanceWritebacks() {
	pending := c.writebacks[:0]
	for _, wb := range c.writebacks {
		if !wb.submitted {
			if signaled(wb.gate) {
				if err := c.submitWriteback(wb); err != nil {
					c.logger().Error("texcache: writeback failed", "err", err)
					c.abandonWriteback(wb)
					wb.texture.writeback = nil
					continue
				}
			}
			pending = append(pending, wb)
			continue
		}
		if !wb.fence.Signaled() {
			pending = append(pending, wb)
			continue
		}
		if err := c.completeWriteback(wb); err != nil {
			c.logger().Error("texcache: writeback failed", "err", err)
		}
		c.finishWriteback(wb)
	}
	clear(c.writebacks[len(pending):])
	c.writebacks = pending
}

// completeWriteback stores the copied texels into guest memory. Writes go
// through Translate and do not invalidate the texture.
func (c *Cache) completeWriteback(wb *writeback) error {
	info := wb.texture.Info
	if err := c.writebackStaging.Invalidate(wb.alloc); err != nil {
		return errors.Wrap(err, "texcache: invalidate writeback staging")
	}
	guestSize := convert.GuestStorage(info)
	dst := c.memory.Translate(info.GuestAddress, uint32(guestSize))
	if dst == nil {
		return errors.Newf("texcache: guest range %#08x+%d not mapped", info.GuestAddress, guestSize)
	}
	if err := convert.UnconvertTexture(dst, wb.alloc.Data, info); err != nil {
		return errors.Wrapf(err, "texcache: store %v", info)
	}
	c.logger().Debug("texcache: writeback complete", "texture", info.String())
	return nil
}

// finishWriteback unblocks the texture. The fence is destroyed once the
// staging ring no longer references it.
func (c *Cache) finishWriteback(wb *writeback) {
	wb.texture.writeback = nil
	c.retiredWritebacks = append(c.retiredWritebacks, wb)
}

// abandonWriteback frees the resources of a writeback that was never
// submitted and restores the layout its commands would have left.
func (c *Cache) abandonWriteback(wb *writeback) {
	if base := wb.texture.BaseRegion(); base.Layout == gputypes.TextureUsageCopySrc {
		base.Layout = wb.layout
	}
	c.writebackStaging.Release(wb.alloc)
	c.device.DestroyFence(wb.fence)
}
