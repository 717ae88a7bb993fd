package texcache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/xenos"
)

// descriptorSet is a bind group owned by the fenced pool.
type descriptorSet struct {
	group   gpucore.BindGroupID
	fence   gpucore.Fence
	regions []*TextureRegion
}

// PrepareResult is the outcome of PrepareTextureSet.
type PrepareResult struct {
	// Set holds one texture/sampler pair per fetch constant.
	Set gpucore.BindGroupID

	// Flushed reports that the setup command buffer was submitted and
	// waited on during the call.
	Flushed bool
}

// updateSetInfo accumulates the writes of one descriptor set.
type updateSetInfo struct {
	writes [xenos.MaxFetchConstants]gpucore.BindGroupEntry
	mask   uint32
}

func (u *updateSetInfo) set(slot uint32, view gpucore.TextureViewID, sampler gpucore.SamplerID) {
	u.writes[slot] = gpucore.BindGroupEntry{Binding: slot, View: view, Sampler: sampler}
	u.mask |= 1 << slot
}

// PrepareTextureSet returns a descriptor set binding the textures of the
// vertex and pixel shaders, demanding and uploading textures as needed.
// Binding i of the set holds fetch constant i; when both stages name the
// same fetch constant the vertex binding wins. Unbound slots and bindings
// that fail to resolve hold the placeholder. Bit-identical binding lists
// return the same set until the next Scavenge.
//
// A returned error describes failed bindings; the set in the result is
// still valid for drawing.
func (c *Cache) PrepareTextureSet(draw, setup gpucore.CommandBuffer, fence gpucore.Fence, vertex, pixel []xenos.TextureBinding) (PrepareResult, error) {
	if !c.initialized {
		return PrepareResult{}, ErrNotInitialized
	}
	c.RemoveInvalidatedTextures()

	bindings, key := c.hashBindings(vertex, pixel)
	if len(bindings) == 0 {
		return PrepareResult{Set: c.emptySet}, nil
	}

	if set, ok := c.setMemo.Get(key); ok {
		c.stats.SetHits++
		var (
			flushed bool
			errs    error
		)
		for _, r := range set.regions {
			f, err := c.ensureRegion(r, draw, setup, fence)
			flushed = flushed || f
			errs = errors.CombineErrors(errs, err)
		}
		set.fence = fence
		return PrepareResult{Set: set.group, Flushed: flushed}, errs
	}
	c.stats.SetMisses++

	var (
		update  updateSetInfo
		regions []*TextureRegion
		flushed bool
		errs    error
	)
	for _, b := range bindings {
		region, view, sampler, f, err := c.resolveBinding(b, draw, setup, fence)
		flushed = flushed || f
		if err != nil {
			c.logger().Warn("texcache: binding unresolved",
				"fetch_constant", b.FetchConstant, "texture", b.Texture.String(), "err", err)
			errs = errors.CombineErrors(errs, wrapf(err, "fetch constant %d", b.FetchConstant))
			update.set(b.FetchConstant, c.placeholderView, c.placeholderSampler)
			continue
		}
		update.set(b.FetchConstant, view, sampler)
		regions = append(regions, region)
	}
	for slot := range uint32(xenos.MaxFetchConstants) {
		if update.mask&(1<<slot) == 0 {
			update.writes[slot] = c.placeholderEntry(slot)
		}
	}

	group, err := c.device.CreateBindGroup(c.layout, update.writes[:])
	if err != nil {
		errs = errors.CombineErrors(errors.Wrap(err, "texcache: create descriptor set"), errs)
		return PrepareResult{Set: c.emptySet, Flushed: flushed}, errs
	}
	set := &descriptorSet{group: group, fence: fence, regions: regions}
	c.sets = append(c.sets, set)
	if errs == nil {
		c.setMemo.Set(key, set)
	}
	return PrepareResult{Set: group, Flushed: flushed}, errs
}

// hashBindings merges the stage binding lists into at most one binding
// per fetch constant and returns them with their memo key.
func (c *Cache) hashBindings(vertex, pixel []xenos.TextureBinding) ([]xenos.TextureBinding, uint64) {
	var (
		mask     uint32
		bindings []xenos.TextureBinding
	)
	d := xxhash.New()
	buf := c.hashBuf[:0]
	for _, stage := range [...][]xenos.TextureBinding{vertex, pixel} {
		for _, b := range stage {
			if b.FetchConstant >= xenos.MaxFetchConstants {
				c.logger().Warn("texcache: fetch constant out of range", "fetch_constant", b.FetchConstant)
				continue
			}
			if mask&(1<<b.FetchConstant) != 0 {
				continue
			}
			mask |= 1 << b.FetchConstant
			bindings = append(bindings, b)

			buf = binary.LittleEndian.AppendUint32(buf[:0], b.FetchConstant)
			buf = binary.LittleEndian.AppendUint64(buf, b.Texture.Hash())
			buf = binary.LittleEndian.AppendUint64(buf, b.Sampler.Hash())
			buf = binary.LittleEndian.AppendUint16(buf, uint16(b.Swizzle.Canonical()))
			_, _ = d.Write(buf)
		}
	}
	c.hashBuf = buf
	return bindings, d.Sum64()
}

// resolveBinding demands the region, view and sampler of one binding.
func (c *Cache) resolveBinding(b xenos.TextureBinding, draw, setup gpucore.CommandBuffer, fence gpucore.Fence) (*TextureRegion, gpucore.TextureViewID, gpucore.SamplerID, bool, error) {
	region, flushed, err := c.DemandRegion(b.Texture, draw, setup, fence)
	if err != nil {
		return nil, 0, 0, flushed, err
	}
	view, err := c.DemandTextureRegionView(region, b.Swizzle)
	if err != nil {
		return nil, 0, 0, flushed, err
	}
	sampler, err := c.DemandSampler(b.Sampler)
	if err != nil {
		return nil, 0, 0, flushed, err
	}
	return region, view.View, sampler.Sampler, flushed, nil
}
