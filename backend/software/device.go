package software

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/backend"
	"github.com/gogpu/xenostex/gpucore"
)

// init registers the software backend on package import.
func init() {
	backend.Register(backend.BackendSoftware, func() (gpucore.Device, error) {
		return New(), nil
	})
}

// Option configures a Device.
type Option func(*Device)

// WithManualFences keeps submitted fences unsignaled until SignalAll or
// Fence.Signal is called.
func WithManualFences() Option {
	return func(d *Device) {
		d.manualFences = true
	}
}

type texture struct {
	desc   gpucore.TextureDescriptor
	block  blockInfo
	layers [][]byte
	usage  gputypes.TextureUsage
}

// blocksWide and blocksHigh return the block grid of mip level 0.
func (t *texture) blocksWide() uint32 {
	return (t.desc.Size.Width + t.block.width - 1) / t.block.width
}

func (t *texture) blocksHigh() uint32 {
	return (t.desc.Size.Height + t.block.height - 1) / t.block.height
}

type view struct {
	texture gpucore.TextureID
	desc    gpucore.TextureViewDescriptor
}

type buffer struct {
	label  string
	data   []byte
	mapped []byte
}

type bindGroup struct {
	layout  gpucore.BindGroupLayoutID
	entries []gpucore.BindGroupEntry
}

// Stats counts live objects and executed work.
type Stats struct {
	Textures         int
	Views            int
	Samplers         int
	Buffers          int
	BindGroupLayouts int
	BindGroups       int
	Fences           int

	Submits         uint64
	Flushes         uint64
	CopiesToTexture uint64
	CopiesToBuffer  uint64
}

// Device is a CPU gpucore.Device.
//
// Thread Safety: Device is safe for concurrent use. Fences may be polled
// and signaled from any goroutine.
type Device struct {
	mu sync.Mutex

	nextID atomic.Uint64

	textures   map[gpucore.TextureID]*texture
	views      map[gpucore.TextureViewID]*view
	samplers   map[gpucore.SamplerID]gpucore.SamplerDescriptor
	buffers    map[gpucore.BufferID]*buffer
	layouts    map[gpucore.BindGroupLayoutID][]gpucore.BindGroupLayoutEntry
	bindGroups map[gpucore.BindGroupID]*bindGroup
	fences     map[*Fence]struct{}

	manualFences bool
	pending      []*Fence
	stats        Stats
}

var _ gpucore.Device = (*Device)(nil)

// New creates an empty device.
func New(opts ...Option) *Device {
	d := &Device{
		textures:   make(map[gpucore.TextureID]*texture),
		views:      make(map[gpucore.TextureViewID]*view),
		samplers:   make(map[gpucore.SamplerID]gpucore.SamplerDescriptor),
		buffers:    make(map[gpucore.BufferID]*buffer),
		layouts:    make(map[gpucore.BindGroupLayoutID][]gpucore.BindGroupLayoutEntry),
		bindGroups: make(map[gpucore.BindGroupID]*bindGroup),
		fences:     make(map[*Fence]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) newID() uint64 {
	return d.nextID.Add(1)
}

// === Textures ===

// CreateTexture allocates zeroed storage for mip level 0 of every layer.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if desc == nil {
		return gpucore.InvalidID, errors.New("software: nil texture descriptor")
	}
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return gpucore.InvalidID, errors.Newf("software: texture %q has zero extent", desc.Label)
	}
	block, ok := blockInfos[desc.Format]
	if !ok {
		return gpucore.InvalidID, errors.Newf("software: texture format %v not supported", desc.Format)
	}

	t := &texture{desc: *desc, block: block}
	layers := max(desc.Size.DepthOrArrayLayers, 1)
	size := int(t.blocksWide()) * int(t.blocksHigh()) * int(block.bytes)
	t.layers = make([][]byte, layers)
	for i := range t.layers {
		t.layers[i] = make([]byte, size)
	}

	id := gpucore.TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = t
	d.mu.Unlock()
	return id, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.textures, id)
}

// CreateTextureView creates a view over an existing texture.
func (d *Device) CreateTextureView(tex gpucore.TextureID, desc *gpucore.TextureViewDescriptor) (gpucore.TextureViewID, error) {
	if desc == nil {
		return gpucore.InvalidID, errors.New("software: nil texture view descriptor")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.textures[tex]; !ok {
		return gpucore.InvalidID, errors.Newf("software: texture %d not found", tex)
	}
	id := gpucore.TextureViewID(d.newID())
	d.views[id] = &view{texture: tex, desc: *desc}
	return id, nil
}

// DestroyTextureView releases a texture view.
func (d *Device) DestroyTextureView(id gpucore.TextureViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, id)
}

// === Samplers ===

// CreateSampler records the sampler state.
func (d *Device) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.SamplerID, error) {
	if desc == nil {
		return gpucore.InvalidID, errors.New("software: nil sampler descriptor")
	}
	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = *desc
	d.mu.Unlock()
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, id)
}

// === Buffers ===

// CreateBuffer allocates a buffer with a separate host mapping.
func (d *Device) CreateBuffer(label string, size uint64, _ gputypes.BufferUsage) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, errors.Newf("software: buffer %q has zero size", label)
	}
	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{label: label, data: make([]byte, size), mapped: make([]byte, size)}
	d.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// MappedRange returns the host mapping of a buffer.
func (d *Device) MappedRange(id gpucore.BufferID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return nil, errors.Newf("software: buffer %d not found", id)
	}
	return b.mapped, nil
}

// FlushMappedRange copies host writes to the device copy.
func (d *Device) FlushMappedRange(id gpucore.BufferID, offset, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.mappedRange(id, offset, size)
	if err != nil {
		return err
	}
	copy(b.data[offset:offset+size], b.mapped[offset:offset+size])
	return nil
}

// InvalidateMappedRange copies device writes to the host mapping.
func (d *Device) InvalidateMappedRange(id gpucore.BufferID, offset, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := d.mappedRange(id, offset, size)
	if err != nil {
		return err
	}
	copy(b.mapped[offset:offset+size], b.data[offset:offset+size])
	return nil
}

// mappedRange validates a range. Caller must hold d.mu.
func (d *Device) mappedRange(id gpucore.BufferID, offset, size uint64) (*buffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, errors.Newf("software: buffer %d not found", id)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, errors.Newf("software: range [%d, %d) outside buffer %q of %d bytes",
			offset, offset+size, b.label, len(b.data))
	}
	return b, nil
}

// === Binding ===

// CreateBindGroupLayout records a layout.
func (d *Device) CreateBindGroupLayout(_ string, entries []gpucore.BindGroupLayoutEntry) (gpucore.BindGroupLayoutID, error) {
	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.layouts[id] = append([]gpucore.BindGroupLayoutEntry(nil), entries...)
	d.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.layouts, id)
}

// CreateBindGroup validates the entries against the layout and live
// objects and records them.
func (d *Device) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slots, ok := d.layouts[layout]
	if !ok {
		return gpucore.InvalidID, errors.Newf("software: bind group layout %d not found", layout)
	}
	declared := make(map[uint32]bool, len(slots))
	for _, s := range slots {
		declared[s.Binding] = true
	}
	for _, e := range entries {
		if !declared[e.Binding] {
			return gpucore.InvalidID, errors.Newf("software: binding %d not in layout", e.Binding)
		}
		if _, ok := d.views[e.View]; !ok {
			return gpucore.InvalidID, errors.Newf("software: binding %d: view %d not found", e.Binding, e.View)
		}
		if _, ok := d.samplers[e.Sampler]; !ok {
			return gpucore.InvalidID, errors.Newf("software: binding %d: sampler %d not found", e.Binding, e.Sampler)
		}
	}

	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = &bindGroup{
		layout:  layout,
		entries: append([]gpucore.BindGroupEntry(nil), entries...),
	}
	return id, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.bindGroups, id)
}

// === Command Recording and Execution ===

// NewCommandBuffer returns an empty command buffer.
func (d *Device) NewCommandBuffer(label string) (gpucore.CommandBuffer, error) {
	return &CommandBuffer{label: label}, nil
}

// Submit executes the recorded commands. The fence signals immediately
// unless the device uses manual fences.
func (d *Device) Submit(cmd gpucore.CommandBuffer, fence gpucore.Fence) error {
	cb, f, err := d.unwrap(cmd, fence)
	if err != nil {
		return err
	}
	if cb.submitted {
		return errors.Newf("software: command buffer %q submitted twice", cb.label)
	}
	cb.submitted = true

	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Submits++
	err = d.execute(cb.commands)
	cb.commands = nil
	if f != nil {
		if d.manualFences {
			d.pending = append(d.pending, f)
		} else {
			f.Signal()
		}
	}
	return err
}

// Flush executes the recorded commands, signals fence and leaves cmd open.
func (d *Device) Flush(cmd gpucore.CommandBuffer, fence gpucore.Fence) error {
	cb, f, err := d.unwrap(cmd, fence)
	if err != nil {
		return err
	}
	if cb.submitted {
		return errors.Newf("software: command buffer %q already submitted", cb.label)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Flushes++
	err = d.execute(cb.commands)
	cb.commands = nil
	if f != nil {
		f.Signal()
	}
	return err
}

func (d *Device) unwrap(cmd gpucore.CommandBuffer, fence gpucore.Fence) (*CommandBuffer, *Fence, error) {
	cb, ok := cmd.(*CommandBuffer)
	if !ok || cb == nil {
		return nil, nil, errors.Newf("software: foreign command buffer %T", cmd)
	}
	if fence == nil {
		return cb, nil, nil
	}
	f, ok := fence.(*Fence)
	if !ok {
		return nil, nil, errors.Newf("software: foreign fence %T", fence)
	}
	return cb, f, nil
}

// SignalAll signals every fence submitted since the last call.
func (d *Device) SignalAll() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, f := range pending {
		f.Signal()
	}
}

// NewFence creates an unsignaled fence.
func (d *Device) NewFence() (gpucore.Fence, error) {
	f := &Fence{}
	d.mu.Lock()
	d.fences[f] = struct{}{}
	d.mu.Unlock()
	return f, nil
}

// ResetFence returns a fence to the unsignaled state.
func (d *Device) ResetFence(fence gpucore.Fence) error {
	f, ok := fence.(*Fence)
	if !ok {
		return errors.Newf("software: foreign fence %T", fence)
	}
	f.signaled.Store(false)
	return nil
}

// DestroyFence releases a fence.
func (d *Device) DestroyFence(fence gpucore.Fence) {
	f, ok := fence.(*Fence)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, f)
}

// Destroy releases every remaining object.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.textures)
	clear(d.views)
	clear(d.samplers)
	clear(d.buffers)
	clear(d.layouts)
	clear(d.bindGroups)
	clear(d.fences)
	d.pending = nil
}

// === Inspection ===

// Stats returns object counts and executed work.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Textures = len(d.textures)
	s.Views = len(d.views)
	s.Samplers = len(d.samplers)
	s.Buffers = len(d.buffers)
	s.BindGroupLayouts = len(d.layouts)
	s.BindGroups = len(d.bindGroups)
	s.Fences = len(d.fences)
	return s
}

// Texture returns the descriptor and current usage of a texture.
func (d *Device) Texture(id gpucore.TextureID) (gpucore.TextureDescriptor, gputypes.TextureUsage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[id]
	if !ok {
		return gpucore.TextureDescriptor{}, 0, false
	}
	return t.desc, t.usage, true
}

// TextureData returns a copy of one layer of mip level 0, tightly packed
// in block rows.
func (d *Device) TextureData(id gpucore.TextureID, layer uint32) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[id]
	if !ok || layer >= uint32(len(t.layers)) {
		return nil, false
	}
	return append([]byte(nil), t.layers[layer]...), true
}

// WriteTextureData replaces one layer of mip level 0, standing in for GPU
// rendering.
func (d *Device) WriteTextureData(id gpucore.TextureID, layer uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[id]
	if !ok || layer >= uint32(len(t.layers)) {
		return errors.Newf("software: texture %d layer %d not found", id, layer)
	}
	copy(t.layers[layer], data)
	return nil
}

// View returns the texture and descriptor of a view.
func (d *Device) View(id gpucore.TextureViewID) (gpucore.TextureID, gpucore.TextureViewDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.views[id]
	if !ok {
		return gpucore.InvalidID, gpucore.TextureViewDescriptor{}, false
	}
	return v.texture, v.desc, true
}

// Sampler returns the descriptor of a sampler.
func (d *Device) Sampler(id gpucore.SamplerID) (gpucore.SamplerDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.samplers[id]
	return s, ok
}

// BindGroupEntries returns the entries written into a bind group.
func (d *Device) BindGroupEntries(id gpucore.BindGroupID) ([]gpucore.BindGroupEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.bindGroups[id]
	if !ok {
		return nil, false
	}
	return append([]gpucore.BindGroupEntry(nil), g.entries...), true
}

// BufferData returns a copy of the device side of a buffer.
func (d *Device) BufferData(id gpucore.BufferID) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b.data...), true
}
