package texcache

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/backend/software"
	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/guestmem"
	"github.com/gogpu/xenostex/xenos"
)

type testEnv struct {
	t     *testing.T
	dev   *software.Device
	mem   *guestmem.Memory
	cache *Cache
}

// newTestEnv returns an initialized cache over a software device whose
// submitted fences stay unsignaled until SignalAll.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dev := software.New(software.WithManualFences())
	mem := guestmem.New(0, 1<<20)
	opts = append([]Option{
		WithStagingSize(1 << 20),
		WithWritebackStagingSize(1 << 18),
	}, opts...)
	c := New(dev, mem, opts...)
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	dev.SignalAll()
	t.Cleanup(func() {
		c.Shutdown()
		dev.Destroy()
	})
	return &testEnv{t: t, dev: dev, mem: mem, cache: c}
}

type frame struct {
	draw, setup gpucore.CommandBuffer
	fence       gpucore.Fence
}

func (e *testEnv) beginFrame() *frame {
	e.t.Helper()
	draw, err := e.dev.NewCommandBuffer("draw")
	if err != nil {
		e.t.Fatal(err)
	}
	setup, err := e.dev.NewCommandBuffer("setup")
	if err != nil {
		e.t.Fatal(err)
	}
	fence, err := e.dev.NewFence()
	if err != nil {
		e.t.Fatal(err)
	}
	return &frame{draw: draw, setup: setup, fence: fence}
}

// submit submits setup then draw under the frame fence, which stays
// unsignaled until SignalAll.
func (e *testEnv) submit(f *frame) {
	e.t.Helper()
	if err := e.dev.Submit(f.setup, nil); err != nil {
		e.t.Fatalf("Submit(setup) error = %v", err)
	}
	if err := e.dev.Submit(f.draw, f.fence); err != nil {
		e.t.Fatalf("Submit(draw) error = %v", err)
	}
}

// fill writes a deterministic pattern over the guest footprint of info and
// returns it.
func (e *testEnv) fill(info xenos.TextureInfo, seed byte) []byte {
	e.t.Helper()
	base, length := info.GuestRange()
	data := make([]byte, length)
	for i := range data {
		data[i] = byte(i*7) ^ seed
	}
	if err := e.mem.Write(base, data); err != nil {
		e.t.Fatalf("Write() error = %v", err)
	}
	return data
}

func rgba8(addr, width, height uint32) xenos.TextureInfo {
	return xenos.TextureInfo{
		GuestAddress: addr,
		Width:        width,
		Height:       height,
		Depth:        1,
		MipLevels:    1,
		Dimension:    xenos.Dimension2D,
		Format:       xenos.Format8_8_8_8,
	}
}

func TestNotInitialized(t *testing.T) {
	c := New(software.New(), guestmem.New(0, 4096))
	info := rgba8(0, 4, 4)

	if _, err := c.AllocateTexture(info); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("AllocateTexture() error = %v, want ErrNotInitialized", err)
	}
	if _, err := c.PrepareTextureSet(nil, nil, nil, nil, nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("PrepareTextureSet() error = %v, want ErrNotInitialized", err)
	}
	if _, err := c.DemandSampler(xenos.SamplerInfo{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("DemandSampler() error = %v, want ErrNotInitialized", err)
	}
	c.Scavenge()
	c.Shutdown()
}

func TestInitializeShutdown(t *testing.T) {
	dev := software.New()
	c := New(dev, guestmem.New(0, 4096), WithStagingSize(1<<16), WithWritebackStagingSize(1<<16))
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := c.Initialize(); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if c.TextureDescriptorSetLayout() == gpucore.InvalidID {
		t.Error("TextureDescriptorSetLayout() = InvalidID")
	}
	s := dev.Stats()
	if s.Textures != 1 || s.Views != 1 || s.Samplers != 1 || s.BindGroups != 1 || s.Buffers != 2 {
		t.Errorf("device stats after Initialize = %+v", s)
	}

	c.Shutdown()
	s = dev.Stats()
	if s.Textures != 0 || s.Views != 0 || s.Samplers != 0 || s.BindGroups != 0 ||
		s.Buffers != 0 || s.BindGroupLayouts != 0 || s.Fences != 0 {
		t.Errorf("device stats after Shutdown = %+v", s)
	}
}

func TestPlaceholderIsCleared(t *testing.T) {
	e := newTestEnv(t)
	data, ok := e.dev.TextureData(e.cache.placeholderImage, 0)
	if !ok {
		t.Fatal("placeholder image missing")
	}
	if !bytes.Equal(data, []byte{0, 0, 0, 0}) {
		t.Errorf("placeholder = %v, want zeros", data)
	}
}

func TestClearCache(t *testing.T) {
	e := newTestEnv(t)
	c := e.cache
	f := e.beginFrame()

	info := rgba8(0x1000, 16, 16)
	e.fill(info, 0)
	res, err := c.PrepareTextureSet(f.draw, f.setup, f.fence, nil, []xenos.TextureBinding{{
		FetchConstant: 0,
		Texture:       info,
		Swizzle:       xenos.SwizzleIdentity,
	}})
	if err != nil {
		t.Fatalf("PrepareTextureSet() error = %v", err)
	}
	e.submit(f)
	tex := c.Lookup(info)
	image := tex.BaseRegion().Image

	c.ClearCache()
	if c.Lookup(info) != nil {
		t.Error("Lookup() after ClearCache found the texture")
	}
	if e.mem.Watches() != 0 {
		t.Errorf("Watches() = %d after ClearCache, want 0", e.mem.Watches())
	}
	s := c.Stats()
	if s.Textures != 0 || s.Samplers != 0 || s.MemoizedSets != 0 || s.PendingDeletes != 1 {
		t.Errorf("Stats() after ClearCache = %+v", s)
	}

	// The frame still references the texture.
	c.Scavenge()
	if _, _, ok := e.dev.Texture(image); !ok {
		t.Fatal("texture destroyed while its fence was unsignaled")
	}
	if _, ok := e.dev.BindGroupEntries(res.Set); !ok {
		t.Fatal("descriptor set destroyed while its fence was unsignaled")
	}

	e.dev.SignalAll()
	c.Scavenge()
	if _, _, ok := e.dev.Texture(image); ok {
		t.Error("texture survived Scavenge after its fence signaled")
	}
	s = c.Stats()
	if s.PendingDeletes != 0 || s.DescriptorSets != 0 {
		t.Errorf("Stats() after Scavenge = %+v", s)
	}
	if got := e.dev.Stats().Samplers; got != 1 {
		t.Errorf("device samplers = %d, want only the placeholder", got)
	}
}
