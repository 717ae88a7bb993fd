//go:build !nogpu

package native

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	// Registers the platform HAL backends with hal.GetBackend.
	_ "github.com/gogpu/wgpu/hal/allbackends"

	"github.com/gogpu/xenostex/backend"
	"github.com/gogpu/xenostex/gpucore"
)

// init registers the native backend on package import.
func init() {
	backend.Register(backend.BackendNative, func() (gpucore.Device, error) {
		return OpenBest()
	})
}

type texture struct {
	raw  hal.Texture
	desc gpucore.TextureDescriptor
}

type buffer struct {
	raw    hal.Buffer
	label  string
	mapped []byte
}

// Stats counts live objects and executed work.
type Stats struct {
	Textures         int
	Views            int
	Samplers         int
	Buffers          int
	BindGroupLayouts int
	BindGroups       int
	InFlight         int

	Submits uint64
	Flushes uint64

	// DroppedSwizzles counts views created with a non-identity component
	// mapping, which hal views cannot express.
	DroppedSwizzles uint64
}

// Device implements gpucore.Device on a gogpu/wgpu HAL device.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
// All resource maps are protected by a mutex.
type Device struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	info   gputypes.AdapterInfo
	limits gputypes.Limits

	// Set when the Device opened the HAL device itself and must release it.
	instance hal.Instance
	owned    bool

	// ID generation
	nextID atomic.Uint64

	// Set once the first dropped swizzle has been logged.
	warnedSwizzle atomic.Bool

	// Resource tracking maps gpucore IDs to hal resources
	textures   map[gpucore.TextureID]*texture
	views      map[gpucore.TextureViewID]hal.TextureView
	samplers   map[gpucore.SamplerID]hal.Sampler
	buffers    map[gpucore.BufferID]*buffer
	layouts    map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	bindGroups map[gpucore.BindGroupID]hal.BindGroup

	// Encoders and command buffers waiting for their submission to retire.
	submitMu sync.Mutex
	inFlight []submission

	stats Stats
}

var _ gpucore.Device = (*Device)(nil)

// NewFromHAL wraps an open HAL device and queue. The caller keeps
// ownership: Destroy releases the wrapped resources but not the device.
func NewFromHAL(device hal.Device, queue hal.Queue, info gputypes.AdapterInfo, limits *gputypes.Limits) (*Device, error) {
	if device == nil || queue == nil {
		return nil, errors.New("native: nil HAL device or queue")
	}
	lim := gputypes.DefaultLimits()
	if limits != nil {
		lim = *limits
	}
	return &Device{
		device:     device,
		queue:      queue,
		info:       info,
		limits:     lim,
		textures:   make(map[gpucore.TextureID]*texture),
		views:      make(map[gpucore.TextureViewID]hal.TextureView),
		samplers:   make(map[gpucore.SamplerID]hal.Sampler),
		buffers:    make(map[gpucore.BufferID]*buffer),
		layouts:    make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		bindGroups: make(map[gpucore.BindGroupID]hal.BindGroup),
	}, nil
}

// NewFromProvider shares the GPU device of a host application. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("native: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("native: provider HalQueue is not hal.Queue")
	}
	ai := provider.AdapterInfo()
	info := gputypes.AdapterInfo{Name: ai.Name}
	switch ai.Type {
	case gpucontext.AdapterTypeDiscrete:
		info.DeviceType = gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		info.DeviceType = gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		info.DeviceType = gputypes.DeviceTypeCPU
	}
	return NewFromHAL(device, queue, info, nil)
}

// Open opens the first hardware adapter of the given HAL backend,
// falling back to the first adapter it exposes.
func Open(variant gputypes.Backend) (*Device, error) {
	b, ok := hal.GetBackend(variant)
	if !ok {
		return nil, errors.Wrapf(backend.ErrBackendNotAvailable, "hal backend %s", variant)
	}
	return openBackend(b)
}

// OpenBest opens the most capable registered HAL backend.
func OpenBest() (*Device, error) {
	b, err := hal.SelectBestBackend()
	if err != nil {
		return nil, errors.Wrap(err, "native: select hal backend")
	}
	return openBackend(b)
}

func openBackend(b hal.Backend) (*Device, error) {
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, errors.Wrap(err, "native: create instance")
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("native: no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, errors.Wrapf(err, "native: open %s", selected.Info.Name)
	}
	limits := selected.Capabilities.Limits
	d, err := NewFromHAL(openDev.Device, openDev.Queue, selected.Info, &limits)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	return d, nil
}

// newID generates a unique resource ID.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1)
}

// AdapterInfo returns the adapter the device was opened on.
func (d *Device) AdapterInfo() gputypes.AdapterInfo {
	return d.info
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.RLock()
	s := d.stats
	s.Textures = len(d.textures)
	s.Views = len(d.views)
	s.Samplers = len(d.samplers)
	s.Buffers = len(d.buffers)
	s.BindGroupLayouts = len(d.layouts)
	s.BindGroups = len(d.bindGroups)
	d.mu.RUnlock()

	d.submitMu.Lock()
	s.InFlight = len(d.inFlight)
	d.submitMu.Unlock()
	return s
}

// === Textures ===

// CreateTexture creates a device-local texture.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if desc == nil {
		return gpucore.InvalidID, errors.New("native: nil texture descriptor")
	}
	if desc.Size.Width > d.limits.MaxTextureDimension2D || desc.Size.Height > d.limits.MaxTextureDimension2D {
		return gpucore.InvalidID, errors.Newf("native: texture %q is %dx%d, limit %d",
			desc.Label, desc.Size.Width, desc.Size.Height, d.limits.MaxTextureDimension2D)
	}

	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: max(desc.Size.DepthOrArrayLayers, 1),
		},
		MipLevelCount: max(desc.MipLevelCount, 1),
		SampleCount:   1,
		Dimension:     desc.Dimension,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return gpucore.InvalidID, errors.Wrapf(err, "native: create texture %q", desc.Label)
	}

	id := gpucore.TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = &texture{raw: raw, desc: *desc}
	d.mu.Unlock()
	return id, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	if ok {
		delete(d.textures, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyTexture(t.raw)
	}
}

// CreateTextureView creates a single-mip view over a texture.
//
// HAL views carry no component mapping, so desc.Swizzle is dropped and
// counted in Stats.DroppedSwizzles. Shaders sampling through this backend
// apply the swizzle themselves.
func (d *Device) CreateTextureView(tex gpucore.TextureID, desc *gpucore.TextureViewDescriptor) (gpucore.TextureViewID, error) {
	if desc == nil {
		return gpucore.InvalidID, errors.New("native: nil texture view descriptor")
	}
	d.mu.RLock()
	t, ok := d.textures[tex]
	d.mu.RUnlock()
	if !ok {
		return gpucore.InvalidID, errors.Newf("native: texture %d not found", tex)
	}

	raw, err := d.device.CreateTextureView(t.raw, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       desc.Dimension,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: desc.ArrayLayerCount,
	})
	if err != nil {
		return gpucore.InvalidID, errors.Wrapf(err, "native: create view of texture %d", tex)
	}

	id := gpucore.TextureViewID(d.newID())
	dropped := desc.Swizzle != gpucore.IdentityMapping
	d.mu.Lock()
	d.views[id] = raw
	if dropped {
		d.stats.DroppedSwizzles++
	}
	d.mu.Unlock()
	if dropped && d.warnedSwizzle.CompareAndSwap(false, true) {
		slogger().Warn("native: view swizzles are not supported, sampling uses identity",
			"texture", tex, "swizzle", desc.Swizzle)
	}
	return id, nil
}

// DestroyTextureView releases a texture view.
func (d *Device) DestroyTextureView(id gpucore.TextureViewID) {
	d.mu.Lock()
	v, ok := d.views[id]
	if ok {
		delete(d.views, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyTextureView(v)
	}
}

// === Samplers ===

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	if desc == nil {
		return gpucore.InvalidID, errors.New("native: nil sampler descriptor")
	}
	raw, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
		LodMinClamp:  desc.LodMinClamp,
		LodMaxClamp:  desc.LodMaxClamp,
		Anisotropy:   max(desc.MaxAnisotropy, 1),
	})
	if err != nil {
		return gpucore.InvalidID, errors.Wrapf(err, "native: create sampler %q", desc.Label)
	}

	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = raw
	d.mu.Unlock()
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	s, ok := d.samplers[id]
	if ok {
		delete(d.samplers, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroySampler(s)
	}
}

// === Buffers ===

// CreateBuffer creates a host-visible buffer. The host mapping is a shadow
// copy published and refreshed through MapBuffer.
func (d *Device) CreateBuffer(label string, size uint64, usage gputypes.BufferUsage) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, errors.Newf("native: buffer %q has zero size", label)
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return gpucore.InvalidID, errors.Wrapf(err, "native: create buffer %q", label)
	}

	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{raw: raw, label: label, mapped: make([]byte, size)}
	d.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	if ok {
		delete(d.buffers, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBuffer(b.raw)
	}
}

// MappedRange returns the host mapping of a buffer.
func (d *Device) MappedRange(id gpucore.BufferID) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.buffers[id]
	if !ok {
		return nil, errors.Newf("native: buffer %d not found", id)
	}
	return b.mapped, nil
}

// FlushMappedRange copies host writes into the buffer. Buffers the backend
// cannot map are written through the queue.
func (d *Device) FlushMappedRange(id gpucore.BufferID, offset, size uint64) error {
	b, err := d.mappedRange(id, offset, size)
	if err != nil || size == 0 {
		return err
	}
	src := b.mapped[offset : offset+size]

	m, err := d.device.MapBuffer(b.raw, offset, size)
	if errors.Is(err, hal.ErrInvalidMapRange) {
		return errors.Wrapf(d.queue.WriteBuffer(b.raw, offset, src), "native: write buffer %q", b.label)
	}
	if err != nil {
		return errors.Wrapf(err, "native: map buffer %q", b.label)
	}
	copy(unsafe.Slice((*byte)(m.Ptr), size), src)
	return errors.Wrapf(d.device.UnmapBuffer(b.raw), "native: unmap buffer %q", b.label)
}

// InvalidateMappedRange copies device writes into the host mapping.
func (d *Device) InvalidateMappedRange(id gpucore.BufferID, offset, size uint64) error {
	b, err := d.mappedRange(id, offset, size)
	if err != nil || size == 0 {
		return err
	}

	m, err := d.device.MapBuffer(b.raw, offset, size)
	if err != nil {
		return errors.Wrapf(err, "native: map buffer %q", b.label)
	}
	copy(b.mapped[offset:offset+size], unsafe.Slice((*byte)(m.Ptr), size))
	return errors.Wrapf(d.device.UnmapBuffer(b.raw), "native: unmap buffer %q", b.label)
}

func (d *Device) mappedRange(id gpucore.BufferID, offset, size uint64) (*buffer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.buffers[id]
	if !ok {
		return nil, errors.Newf("native: buffer %d not found", id)
	}
	if offset+size > uint64(len(b.mapped)) {
		return nil, errors.Newf("native: range [%d, %d) outside buffer %q of %d bytes",
			offset, offset+size, b.label, len(b.mapped))
	}
	return b, nil
}

// === Binding ===

// TextureBinding returns the HAL binding number of the texture half of a
// combined slot. Shaders declare the sampler at SamplerBinding(slot).
func TextureBinding(slot uint32) uint32 { return slot * 2 }

// SamplerBinding returns the HAL binding number of the sampler half of a
// combined slot.
func SamplerBinding(slot uint32) uint32 { return slot*2 + 1 }

// CreateBindGroupLayout splits every combined slot into a texture and a
// sampler binding.
func (d *Device) CreateBindGroupLayout(label string, entries []gpucore.BindGroupLayoutEntry) (gpucore.BindGroupLayoutID, error) {
	halEntries := make([]gputypes.BindGroupLayoutEntry, 0, 2*len(entries))
	for _, e := range entries {
		halEntries = append(halEntries,
			gputypes.BindGroupLayoutEntry{
				Binding:    TextureBinding(e.Binding),
				Visibility: e.Visibility,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    SamplerBinding(e.Binding),
				Visibility: e.Visibility,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}

	raw, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: halEntries,
	})
	if err != nil {
		return gpucore.InvalidID, errors.Wrapf(err, "native: create bind group layout %q", label)
	}

	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.layouts[id] = raw
	d.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	l, ok := d.layouts[id]
	if ok {
		delete(d.layouts, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBindGroupLayout(l)
	}
}

// CreateBindGroup creates a bind group from the layout.
func (d *Device) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	d.mu.RLock()
	l, ok := d.layouts[layout]
	if !ok {
		d.mu.RUnlock()
		return gpucore.InvalidID, errors.Newf("native: bind group layout %d not found", layout)
	}
	halEntries := make([]gputypes.BindGroupEntry, 0, 2*len(entries))
	for _, e := range entries {
		v, ok := d.views[e.View]
		if !ok {
			d.mu.RUnlock()
			return gpucore.InvalidID, errors.Newf("native: binding %d: view %d not found", e.Binding, e.View)
		}
		s, ok := d.samplers[e.Sampler]
		if !ok {
			d.mu.RUnlock()
			return gpucore.InvalidID, errors.Newf("native: binding %d: sampler %d not found", e.Binding, e.Sampler)
		}
		halEntries = append(halEntries,
			gputypes.BindGroupEntry{
				Binding:  TextureBinding(e.Binding),
				Resource: gputypes.TextureViewBinding{TextureView: v.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  SamplerBinding(e.Binding),
				Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
			},
		)
	}
	d.mu.RUnlock()

	raw, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "texcache set",
		Layout:  l,
		Entries: halEntries,
	})
	if err != nil {
		return gpucore.InvalidID, errors.Wrap(err, "native: create bind group")
	}

	id := gpucore.BindGroupID(d.newID())
	d.mu.Lock()
	d.bindGroups[id] = raw
	d.mu.Unlock()
	return id, nil
}

// BindGroup returns the HAL bind group behind id for use in render passes.
func (d *Device) BindGroup(id gpucore.BindGroupID) (hal.BindGroup, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.bindGroups[id]
	return g, ok
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	g, ok := d.bindGroups[id]
	if ok {
		delete(d.bindGroups, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBindGroup(g)
	}
}

// === Lifecycle ===

// Destroy waits for the GPU to go idle and releases every resource still
// tracked. A device opened by Open or OpenBest is destroyed with it.
func (d *Device) Destroy() {
	_ = d.device.WaitIdle()
	d.retire(true)

	d.mu.Lock()
	for id, g := range d.bindGroups {
		d.device.DestroyBindGroup(g)
		delete(d.bindGroups, id)
	}
	for id, l := range d.layouts {
		d.device.DestroyBindGroupLayout(l)
		delete(d.layouts, id)
	}
	for id, v := range d.views {
		d.device.DestroyTextureView(v)
		delete(d.views, id)
	}
	for id, t := range d.textures {
		d.device.DestroyTexture(t.raw)
		delete(d.textures, id)
	}
	for id, s := range d.samplers {
		d.device.DestroySampler(s)
		delete(d.samplers, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
	d.mu.Unlock()

	if d.owned {
		d.device.Destroy()
		d.instance.Destroy()
		d.owned = false
	}
}
