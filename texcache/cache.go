package texcache

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/internal/cache"
	"github.com/gogpu/xenostex/internal/staging"
	"github.com/gogpu/xenostex/xenos"
)

// Default staging capacities.
const (
	DefaultStagingSize          = 32 << 20
	DefaultWritebackStagingSize = 8 << 20
)

// Option configures a Cache.
type Option func(*Cache)

// WithStagingSize sets the upload staging ring capacity in bytes.
func WithStagingSize(n uint64) Option {
	return func(c *Cache) {
		c.stagingSize = n
	}
}

// WithWritebackStagingSize sets the writeback staging ring capacity in bytes.
func WithWritebackStagingSize(n uint64) Option {
	return func(c *Cache) {
		c.writebackSize = n
	}
}

// WithLogger sets the logger of one cache. Without it the package logger
// set by SetLogger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.log = l
	}
}

// Stats describes the current contents of a Cache.
type Stats struct {
	Textures        int
	ResolveTextures int
	PendingDeletes  int
	Samplers        int
	DescriptorSets  int
	MemoizedSets    int
	Writebacks      int
	StagingLive     int

	Uploads       uint64
	Flushes       uint64
	Invalidations uint64
	SetMisses     uint64
	SetHits       uint64

	// UploadBytes counts staging bytes reserved for uploads.
	UploadBytes uint64

	// SamplerHits and SamplerMisses count sampler cache lookups since the
	// last ClearCache.
	SamplerHits   uint64
	SamplerMisses uint64
}

// Cache maps guest textures to host images, views, samplers and
// descriptor sets. See the package documentation for threading rules.
type Cache struct {
	device gpucore.Device
	memory GuestMemory
	log    *slog.Logger

	stagingSize   uint64
	writebackSize uint64
	initialized   bool

	textures        map[uint64]*Texture
	resolveTextures []*Texture
	pendingDelete   []*Texture

	invalidated       invalidationSets
	invalidResolves   resolveInvalidations
	writebacks        []*writeback
	retiredWritebacks []*writeback

	samplers        *cache.Cache[uint64, *Sampler]
	retiredSamplers []*Sampler

	layout  gpucore.BindGroupLayoutID
	sets    []*descriptorSet
	setMemo *cache.Cache[uint64, *descriptorSet]
	hashBuf []byte

	placeholderImage   gpucore.TextureID
	placeholderView    gpucore.TextureViewID
	placeholderSampler gpucore.SamplerID
	emptySet           gpucore.BindGroupID
	initFence          gpucore.Fence

	staging          *staging.Ring
	writebackStaging *staging.Ring

	stats Stats
}

// New returns an uninitialized cache over device and memory.
func New(device gpucore.Device, memory GuestMemory, opts ...Option) *Cache {
	c := &Cache{
		device:        device,
		memory:        memory,
		stagingSize:   DefaultStagingSize,
		writebackSize: DefaultWritebackStagingSize,
		textures:      make(map[uint64]*Texture),
		samplers:      cache.New[uint64, *Sampler](),
		setMemo:       cache.New[uint64, *descriptorSet](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slogger()
}

// Initialize creates the descriptor set layout, the placeholder objects and
// the staging rings. On failure everything created so far is released.
func (c *Cache) Initialize() (err error) {
	if c.initialized {
		return nil
	}
	defer func() {
		if err != nil {
			c.destroyCoreObjects()
		}
	}()

	entries := make([]gpucore.BindGroupLayoutEntry, xenos.MaxFetchConstants)
	for i := range entries {
		entries[i] = gpucore.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		}
	}
	if c.layout, err = c.device.CreateBindGroupLayout("texcache textures", entries); err != nil {
		return errors.Wrap(err, "texcache: create descriptor set layout")
	}

	if c.staging, err = staging.New(c.device, "texcache upload", c.stagingSize, gputypes.BufferUsageMapWrite); err != nil {
		return errors.Wrap(err, "texcache: create upload staging")
	}
	if c.writebackStaging, err = staging.New(c.device, "texcache writeback", c.writebackSize, gputypes.BufferUsageMapRead); err != nil {
		return errors.Wrap(err, "texcache: create writeback staging")
	}

	if err = c.createPlaceholder(); err != nil {
		return err
	}

	placeholders := make([]gpucore.BindGroupEntry, xenos.MaxFetchConstants)
	for i := range placeholders {
		placeholders[i] = c.placeholderEntry(uint32(i))
	}
	if c.emptySet, err = c.device.CreateBindGroup(c.layout, placeholders); err != nil {
		return errors.Wrap(err, "texcache: create empty descriptor set")
	}

	c.initialized = true
	c.logger().Debug("texcache: initialized",
		"staging", c.stagingSize, "writeback_staging", c.writebackSize)
	return nil
}

// createPlaceholder creates the 1x1 image bound to unused slots and
// clears it to transparent black.
func (c *Cache) createPlaceholder() error {
	var err error
	c.placeholderImage, err = c.device.CreateTexture(&gpucore.TextureDescriptor{
		Label:         "texcache placeholder",
		Size:          gputypes.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return errors.Wrap(err, "texcache: create placeholder image")
	}
	c.placeholderView, err = c.device.CreateTextureView(c.placeholderImage, &gpucore.TextureViewDescriptor{
		Label:           "texcache placeholder",
		Format:          gputypes.TextureFormatRGBA8Unorm,
		Dimension:       gputypes.TextureViewDimension2D,
		ArrayLayerCount: 1,
		Swizzle:         gpucore.IdentityMapping,
	})
	if err != nil {
		return errors.Wrap(err, "texcache: create placeholder view")
	}
	c.placeholderSampler, err = c.device.CreateSampler(&gpucore.SamplerDescriptor{
		Label:         "texcache placeholder",
		AddressModeU:  gputypes.AddressModeClampToEdge,
		AddressModeV:  gputypes.AddressModeClampToEdge,
		AddressModeW:  gputypes.AddressModeClampToEdge,
		MagFilter:     gputypes.FilterModeNearest,
		MinFilter:     gputypes.FilterModeNearest,
		MipmapFilter:  gputypes.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return errors.Wrap(err, "texcache: create placeholder sampler")
	}

	if c.initFence, err = c.device.NewFence(); err != nil {
		return errors.Wrap(err, "texcache: create fence")
	}
	cmd, err := c.device.NewCommandBuffer("texcache init")
	if err != nil {
		return errors.Wrap(err, "texcache: create init commands")
	}
	alloc, ok := c.staging.Acquire(4, c.initFence)
	if !ok {
		return errors.Wrap(ErrStagingExhausted, "texcache: placeholder upload")
	}
	clear(alloc.Data)
	if err := c.staging.Flush(alloc); err != nil {
		return errors.Wrap(err, "texcache: flush placeholder staging")
	}
	cmd.TransitionTexture(c.placeholderImage, 0, gputypes.TextureUsageCopyDst)
	cmd.CopyBufferToTexture(alloc.Buffer, c.placeholderImage, []gpucore.BufferTextureCopy{{
		BufferOffset: alloc.Offset,
		BytesPerRow:  gpucore.CopyPitchAlignment,
		RowsPerImage: 1,
		Size:         gputypes.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	}})
	cmd.TransitionTexture(c.placeholderImage, gputypes.TextureUsageCopyDst, gputypes.TextureUsageTextureBinding)
	return errors.Wrap(c.device.Submit(cmd, c.initFence), "texcache: submit placeholder upload")
}

func (c *Cache) placeholderEntry(binding uint32) gpucore.BindGroupEntry {
	return gpucore.BindGroupEntry{
		Binding: binding,
		View:    c.placeholderView,
		Sampler: c.placeholderSampler,
	}
}

// TextureDescriptorSetLayout returns the layout of every set returned by
// PrepareTextureSet: binding i holds fetch constant i.
func (c *Cache) TextureDescriptorSetLayout() gpucore.BindGroupLayoutID {
	return c.layout
}

// Shutdown releases every host object. The caller must ensure the GPU has
// finished all work that references the cache.
func (c *Cache) Shutdown() {
	if !c.initialized {
		return
	}
	c.ClearCache()
	c.invalidated.swap()
	c.invalidated.swap()
	c.invalidResolves.drain()

	for _, wb := range c.writebacks {
		wb.texture.writeback = nil
		c.device.DestroyFence(wb.fence)
	}
	c.writebacks = nil
	for _, wb := range c.retiredWritebacks {
		c.device.DestroyFence(wb.fence)
	}
	c.retiredWritebacks = nil

	for _, tex := range c.pendingDelete {
		c.destroyTexture(tex)
	}
	c.pendingDelete = nil
	for _, set := range c.sets {
		c.device.DestroyBindGroup(set.group)
	}
	c.sets = nil
	for _, s := range c.retiredSamplers {
		c.device.DestroySampler(s.Sampler)
	}
	c.retiredSamplers = nil

	c.destroyCoreObjects()
	c.initialized = false
	c.logger().Debug("texcache: shut down")
}

func (c *Cache) destroyCoreObjects() {
	if c.emptySet != gpucore.InvalidID {
		c.device.DestroyBindGroup(c.emptySet)
		c.emptySet = gpucore.InvalidID
	}
	if c.placeholderSampler != gpucore.InvalidID {
		c.device.DestroySampler(c.placeholderSampler)
		c.placeholderSampler = gpucore.InvalidID
	}
	if c.placeholderView != gpucore.InvalidID {
		c.device.DestroyTextureView(c.placeholderView)
		c.placeholderView = gpucore.InvalidID
	}
	if c.placeholderImage != gpucore.InvalidID {
		c.device.DestroyTexture(c.placeholderImage)
		c.placeholderImage = gpucore.InvalidID
	}
	if c.initFence != nil {
		c.device.DestroyFence(c.initFence)
		c.initFence = nil
	}
	if c.staging != nil {
		c.staging.Destroy()
		c.staging = nil
	}
	if c.writebackStaging != nil {
		c.writebackStaging.Destroy()
		c.writebackStaging = nil
	}
	if c.layout != gpucore.InvalidID {
		c.device.DestroyBindGroupLayout(c.layout)
		c.layout = gpucore.InvalidID
	}
}

// ClearCache evicts every texture and sampler. Textures still in use by
// the GPU are destroyed by a later Scavenge.
func (c *Cache) ClearCache() {
	for key, tex := range c.textures {
		c.retireTexture(tex)
		delete(c.textures, key)
	}
	c.pendingDelete = append(c.pendingDelete, c.resolveTextures...)
	c.resolveTextures = nil

	c.samplers.Drain(func(_ uint64, s *Sampler) {
		c.retiredSamplers = append(c.retiredSamplers, s)
	})
	c.samplers.Clear()
	c.setMemo.Clear()
	c.logger().Debug("texcache: cleared",
		"pending_delete", len(c.pendingDelete), "retired_samplers", len(c.retiredSamplers))
}

// retireTexture drops the guest watch and queues tex for destruction.
func (c *Cache) retireTexture(tex *Texture) {
	if tex.watch != 0 {
		c.memory.CancelWatch(tex.watch)
		tex.watch = 0
	}
	c.pendingDelete = append(c.pendingDelete, tex)
}

// Scavenge performs end-of-frame maintenance: it applies pending
// invalidations, completes writebacks whose copies have finished, releases
// descriptor sets, staging memory and textures whose fences have signaled,
// and clears the descriptor set memo.
func (c *Cache) Scavenge() {
	if !c.initialized {
		return
	}
	c.RemoveInvalidatedTextures()
	c.advanceWritebacks()

	c.setMemo.Clear()
	sets := c.sets[:0]
	for _, set := range c.sets {
		if signaled(set.fence) {
			c.device.DestroyBindGroup(set.group)
			continue
		}
		sets = append(sets, set)
	}
	clear(c.sets[len(sets):])
	c.sets = sets

	// Retired samplers may only be referenced by live sets.
	if len(c.sets) == 0 {
		for _, s := range c.retiredSamplers {
			c.device.DestroySampler(s.Sampler)
		}
		c.retiredSamplers = nil
	}

	c.staging.Scavenge()
	c.writebackStaging.Scavenge()
	retired := c.retiredWritebacks[:0]
	for _, wb := range c.retiredWritebacks {
		if wb.alloc.Released() {
			c.device.DestroyFence(wb.fence)
			continue
		}
		retired = append(retired, wb)
	}
	clear(c.retiredWritebacks[len(retired):])
	c.retiredWritebacks = retired

	pending := c.pendingDelete[:0]
	freed := 0
	for _, tex := range c.pendingDelete {
		if tex.writeback != nil || !signaled(tex.inFlight) {
			pending = append(pending, tex)
			continue
		}
		c.destroyTexture(tex)
		freed++
	}
	clear(c.pendingDelete[len(pending):])
	c.pendingDelete = pending

	if freed > 0 {
		c.logger().Debug("texcache: scavenged", "freed", freed, "pending", len(c.pendingDelete))
	}
}

// destroyTexture releases the host objects of tex.
func (c *Cache) destroyTexture(tex *Texture) {
	for _, r := range tex.Regions {
		for _, v := range r.Views {
			c.device.DestroyTextureView(v.View)
		}
		r.Views = nil
		c.device.DestroyTexture(r.Image)
		r.Image = gpucore.InvalidID
		r.ContentsValid = false
	}
}

// Stats returns a snapshot of the cache contents and counters.
func (c *Cache) Stats() Stats {
	s := c.stats
	s.Textures = len(c.textures)
	s.ResolveTextures = len(c.resolveTextures)
	s.PendingDeletes = len(c.pendingDelete)
	ss := c.samplers.Stats()
	s.Samplers = ss.Len
	s.SamplerHits, s.SamplerMisses = ss.Hits, ss.Misses
	s.DescriptorSets = len(c.sets)
	s.MemoizedSets = c.setMemo.Len()
	s.Writebacks = len(c.writebacks)
	if c.staging != nil {
		s.StagingLive = c.staging.Live()
	}
	return s
}

func signaled(f gpucore.Fence) bool {
	return f == nil || f.Signaled()
}
