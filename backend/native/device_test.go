//go:build !nogpu

package native

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/xenostex/backend"
	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/guestmem"
	"github.com/gogpu/xenostex/texcache"
	"github.com/gogpu/xenostex/xenos"
)

// newNoopDevice wraps a device opened from the noop HAL backend, whose
// submissions complete immediately.
func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	d, err := NewFromHAL(openDev.Device, openDev.Queue, adapters[0].Info, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		d.Destroy()
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return d
}

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendNative) {
		t.Error("native backend not registered on import")
	}
}

func TestNewFromHALRejectsNil(t *testing.T) {
	if _, err := NewFromHAL(nil, nil, gputypes.AdapterInfo{}, nil); err == nil {
		t.Error("NewFromHAL(nil, nil) succeeded")
	}
}

func TestMappedRangeRoundTrip(t *testing.T) {
	d := newNoopDevice(t)
	id, err := d.CreateBuffer("staging", 512, gputypes.BufferUsageMapWrite|gputypes.BufferUsageCopySrc)
	if err != nil {
		t.Fatal(err)
	}
	mapped, err := d.MappedRange(id)
	if err != nil {
		t.Fatal(err)
	}
	for i := range mapped {
		mapped[i] = byte(i)
	}
	want := bytes.Clone(mapped[128:256])
	if err := d.FlushMappedRange(id, 128, 128); err != nil {
		t.Fatalf("FlushMappedRange() error = %v", err)
	}
	clear(mapped)
	if err := d.InvalidateMappedRange(id, 128, 128); err != nil {
		t.Fatalf("InvalidateMappedRange() error = %v", err)
	}
	if !bytes.Equal(mapped[128:256], want) {
		t.Error("invalidate did not return the flushed bytes")
	}
	if mapped[0] != 0 {
		t.Error("invalidate touched bytes outside the range")
	}
	if err := d.FlushMappedRange(id, 500, 64); err == nil {
		t.Error("FlushMappedRange() past the end succeeded")
	}
}

func TestSubmitSignalsFence(t *testing.T) {
	d := newNoopDevice(t)
	tex, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Label:     "target",
		Size:      gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		Dimension: gputypes.TextureDimension2D,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Usage:     gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatal(err)
	}
	buf, err := d.CreateBuffer("staging", 64*256, gputypes.BufferUsageMapWrite|gputypes.BufferUsageCopySrc)
	if err != nil {
		t.Fatal(err)
	}
	fence, err := d.NewFence()
	if err != nil {
		t.Fatal(err)
	}
	if fence.Signaled() {
		t.Fatal("new fence is signaled")
	}

	cmd, err := d.NewCommandBuffer("upload")
	if err != nil {
		t.Fatal(err)
	}
	cmd.TransitionTexture(tex, 0, gputypes.TextureUsageCopyDst)
	cmd.CopyBufferToTexture(buf, tex, []gpucore.BufferTextureCopy{{
		BytesPerRow:  256,
		RowsPerImage: 64,
		Size:         gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
	}})
	cmd.TransitionTexture(tex, gputypes.TextureUsageCopyDst, gputypes.TextureUsageTextureBinding)
	if err := d.Submit(cmd, fence); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !fence.Signaled() {
		t.Error("fence unsignaled after the noop queue completed")
	}
	if err := d.Submit(cmd, fence); err == nil {
		t.Error("second Submit() of the same buffer succeeded")
	}
	if got := d.Stats().InFlight; got != 0 {
		t.Errorf("InFlight = %d, want 0 after completion", got)
	}

	if err := d.ResetFence(fence); err != nil {
		t.Fatal(err)
	}
	if fence.Signaled() {
		t.Error("fence signaled after ResetFence")
	}
}

func TestSubmitUnknownTexture(t *testing.T) {
	d := newNoopDevice(t)
	cmd, _ := d.NewCommandBuffer("bad")
	cmd.TransitionTexture(gpucore.TextureID(999), 0, gputypes.TextureUsageCopyDst)
	if err := d.Submit(cmd, nil); err == nil {
		t.Error("Submit() with an unknown texture succeeded")
	}
}

func TestFlushKeepsBufferOpen(t *testing.T) {
	d := newNoopDevice(t)
	cmd, _ := d.NewCommandBuffer("setup")
	fence, _ := d.NewFence()
	if err := d.Flush(cmd, fence); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !fence.Signaled() {
		t.Error("fence unsignaled after Flush")
	}
	if err := d.Submit(cmd, nil); err != nil {
		t.Errorf("Submit() after Flush error = %v", err)
	}
	if s := d.Stats(); s.Flushes != 1 || s.Submits != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestCreateTextureLimit(t *testing.T) {
	d := newNoopDevice(t)
	_, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Size:   gputypes.Extent3D{Width: 1 << 20, Height: 1, DepthOrArrayLayers: 1},
		Format: gputypes.TextureFormatRGBA8Unorm,
	})
	if err == nil {
		t.Error("CreateTexture() beyond MaxTextureDimension2D succeeded")
	}
}

func TestDroppedSwizzleWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(nil) })

	d := newNoopDevice(t)
	tex, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Size:          gputypes.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		t.Fatal(err)
	}
	view := func(swizzle gpucore.ComponentMapping) {
		t.Helper()
		if _, err := d.CreateTextureView(tex, &gpucore.TextureViewDescriptor{
			Format:          gputypes.TextureFormatRGBA8Unorm,
			Dimension:       gputypes.TextureViewDimension2D,
			ArrayLayerCount: 1,
			Swizzle:         swizzle,
		}); err != nil {
			t.Fatal(err)
		}
	}
	view(gpucore.IdentityMapping)
	if buf.Len() != 0 {
		t.Fatalf("identity view logged %q", buf.String())
	}
	bgra := gpucore.ComponentMapping{R: gpucore.ComponentB, G: gpucore.ComponentG, B: gpucore.ComponentR, A: gpucore.ComponentA}
	view(bgra)
	view(bgra)

	if got := strings.Count(buf.String(), "level=WARN"); got != 1 {
		t.Errorf("logged %d warnings, want 1:\n%s", got, buf.String())
	}
	if got := d.Stats().DroppedSwizzles; got != 2 {
		t.Errorf("DroppedSwizzles = %d, want 2", got)
	}
}

func TestBindings(t *testing.T) {
	if TextureBinding(3) != 6 || SamplerBinding(3) != 7 {
		t.Errorf("slot 3 -> %d, %d; want 6, 7", TextureBinding(3), SamplerBinding(3))
	}
}

// TestTextureCacheOnHAL runs the cache's full frame cycle on the HAL device.
func TestTextureCacheOnHAL(t *testing.T) {
	d := newNoopDevice(t)
	mem := guestmem.New(0, 1<<20)
	c := texcache.New(d, mem, texcache.WithStagingSize(1<<20), texcache.WithWritebackStagingSize(1<<18))
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer c.Shutdown()

	info := xenos.TextureInfo{
		GuestAddress: 0x1000, Width: 64, Height: 64, Depth: 1, MipLevels: 1,
		Dimension: xenos.Dimension2D, Format: xenos.Format8_8_8_8,
	}
	draw, _ := d.NewCommandBuffer("draw")
	setup, _ := d.NewCommandBuffer("setup")
	fence, _ := d.NewFence()

	res, err := c.PrepareTextureSet(draw, setup, fence, nil, []xenos.TextureBinding{
		{FetchConstant: 0, Texture: info, Swizzle: xenos.PackSwizzle(xenos.SelectB, xenos.SelectG, xenos.SelectR, xenos.SelectA)},
	})
	if err != nil {
		t.Fatalf("PrepareTextureSet() error = %v", err)
	}
	if _, ok := d.BindGroup(res.Set); !ok {
		t.Fatal("prepared set has no HAL bind group")
	}
	if err := d.Submit(setup, nil); err != nil {
		t.Fatal(err)
	}
	if err := d.Submit(draw, fence); err != nil {
		t.Fatal(err)
	}
	if d.Stats().DroppedSwizzles == 0 {
		t.Error("swizzled view not counted as dropped")
	}

	c.Scavenge()
	if got := c.Stats().DescriptorSets; got != 0 {
		t.Errorf("DescriptorSets = %d after the frame completed, want 0", got)
	}
	if c.Lookup(info) == nil {
		t.Error("texture evicted by Scavenge")
	}
}
