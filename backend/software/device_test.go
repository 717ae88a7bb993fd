package software

import (
	"bytes"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
)

func newTexture(t *testing.T, d *Device, format gputypes.TextureFormat, w, h, layers uint32) gpucore.TextureID {
	t.Helper()
	id, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Label:         "test",
		Size:          gputypes.Extent3D{Width: w, Height: h, DepthOrArrayLayers: layers},
		MipLevelCount: 1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	return id
}

func newBuffer(t *testing.T, d *Device, size uint64) (gpucore.BufferID, []byte) {
	t.Helper()
	id, err := d.CreateBuffer("staging", size, gputypes.BufferUsageMapWrite)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	mapped, err := d.MappedRange(id)
	if err != nil {
		t.Fatalf("MappedRange() error = %v", err)
	}
	return id, mapped
}

func TestCopyRoundTrip(t *testing.T) {
	d := New()
	tex := newTexture(t, d, gputypes.TextureFormatRGBA8Unorm, 4, 2, 2)
	buf, mapped := newBuffer(t, d, 2048)

	for i := range mapped {
		mapped[i] = byte(i)
	}
	if err := d.FlushMappedRange(buf, 0, 2048); err != nil {
		t.Fatalf("FlushMappedRange() error = %v", err)
	}

	region := gpucore.BufferTextureCopy{
		BytesPerRow:  256,
		RowsPerImage: 2,
		Size:         gputypes.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 2},
	}
	cmd, _ := d.NewCommandBuffer("upload")
	cmd.CopyBufferToTexture(buf, tex, []gpucore.BufferTextureCopy{region})
	fence, _ := d.NewFence()
	if err := d.Submit(cmd, fence); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !fence.Signaled() {
		t.Error("fence not signaled after Submit")
	}

	layer1, _ := d.TextureData(tex, 1)
	if !bytes.Equal(layer1[:16], mapped[512:528]) || !bytes.Equal(layer1[16:], mapped[768:784]) {
		t.Errorf("layer 1 = %v", layer1)
	}

	out, outMapped := newBuffer(t, d, 2048)
	cmd, _ = d.NewCommandBuffer("readback")
	cmd.CopyTextureToBuffer(tex, out, []gpucore.BufferTextureCopy{region})
	if err := d.Submit(cmd, fence); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if outMapped[512] != 0 {
		t.Error("device write visible before InvalidateMappedRange")
	}
	if err := d.InvalidateMappedRange(out, 0, 2048); err != nil {
		t.Fatalf("InvalidateMappedRange() error = %v", err)
	}
	if !bytes.Equal(outMapped[512:528], mapped[512:528]) {
		t.Errorf("readback = %v", outMapped[512:528])
	}

	s := d.Stats()
	if s.CopiesToTexture != 1 || s.CopiesToBuffer != 1 || s.Submits != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestUnflushedWritesInvisible(t *testing.T) {
	d := New()
	tex := newTexture(t, d, gputypes.TextureFormatR8Unorm, 4, 1, 1)
	buf, mapped := newBuffer(t, d, 256)
	copy(mapped, []byte{1, 2, 3, 4})

	cmd, _ := d.NewCommandBuffer("upload")
	cmd.CopyBufferToTexture(buf, tex, []gpucore.BufferTextureCopy{{
		BytesPerRow: 256,
		Size:        gputypes.Extent3D{Width: 4, Height: 1, DepthOrArrayLayers: 1},
	}})
	if err := d.Submit(cmd, nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	data, _ := d.TextureData(tex, 0)
	if !bytes.Equal(data, []byte{0, 0, 0, 0}) {
		t.Errorf("texture = %v, want zeros", data)
	}
}

func TestManualFences(t *testing.T) {
	d := New(WithManualFences())
	fence, _ := d.NewFence()
	cmd, _ := d.NewCommandBuffer("empty")

	if err := d.Submit(cmd, fence); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if fence.Signaled() {
		t.Fatal("fence signaled before SignalAll")
	}
	d.SignalAll()
	if !fence.Signaled() {
		t.Fatal("fence not signaled after SignalAll")
	}
	if err := d.ResetFence(fence); err != nil {
		t.Fatalf("ResetFence() error = %v", err)
	}
	if fence.Signaled() {
		t.Error("fence signaled after ResetFence")
	}
}

func TestFlushKeepsCommandBufferOpen(t *testing.T) {
	d := New(WithManualFences())
	tex := newTexture(t, d, gputypes.TextureFormatR8Unorm, 1, 1, 1)
	fence, _ := d.NewFence()
	cmd, _ := d.NewCommandBuffer("setup")

	cmd.TransitionTexture(tex, 0, gputypes.TextureUsageCopyDst)
	if err := d.Flush(cmd, fence); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !fence.Signaled() {
		t.Error("Flush() did not wait for the fence")
	}
	if cmd.(*CommandBuffer).Len() != 0 {
		t.Error("Flush() left commands recorded")
	}

	cmd.TransitionTexture(tex, gputypes.TextureUsageCopyDst, gputypes.TextureUsageTextureBinding)
	if err := d.Submit(cmd, fence); err != nil {
		t.Fatalf("Submit() after Flush error = %v", err)
	}
	if err := d.Submit(cmd, fence); err == nil {
		t.Error("second Submit() succeeded")
	}
	if _, usage, _ := d.Texture(tex); usage != gputypes.TextureUsageTextureBinding {
		t.Errorf("usage = %v", usage)
	}
}

func TestCopyOutOfBounds(t *testing.T) {
	d := New()
	tex := newTexture(t, d, gputypes.TextureFormatRGBA8Unorm, 4, 4, 1)
	buf, _ := newBuffer(t, d, 256)

	cmd, _ := d.NewCommandBuffer("bad")
	cmd.CopyBufferToTexture(buf, tex, []gpucore.BufferTextureCopy{{
		BytesPerRow: 256,
		Size:        gputypes.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
	}})
	if err := d.Submit(cmd, nil); err == nil {
		t.Error("Submit() accepted a copy past the end of the buffer")
	}
}

func TestBindGroupValidation(t *testing.T) {
	d := New()
	tex := newTexture(t, d, gputypes.TextureFormatRGBA8Unorm, 1, 1, 1)
	view, err := d.CreateTextureView(tex, &gpucore.TextureViewDescriptor{Swizzle: gpucore.IdentityMapping})
	if err != nil {
		t.Fatalf("CreateTextureView() error = %v", err)
	}
	sampler, _ := d.CreateSampler(&gpucore.SamplerDescriptor{MaxAnisotropy: 1})
	layout, _ := d.CreateBindGroupLayout("layout", []gpucore.BindGroupLayoutEntry{{Binding: 0}})

	group, err := d.CreateBindGroup(layout, []gpucore.BindGroupEntry{{Binding: 0, View: view, Sampler: sampler}})
	if err != nil {
		t.Fatalf("CreateBindGroup() error = %v", err)
	}
	if entries, ok := d.BindGroupEntries(group); !ok || len(entries) != 1 || entries[0].View != view {
		t.Errorf("BindGroupEntries() = %v, %t", entries, ok)
	}

	if _, err := d.CreateBindGroup(layout, []gpucore.BindGroupEntry{{Binding: 1, View: view, Sampler: sampler}}); err == nil {
		t.Error("CreateBindGroup() accepted an undeclared binding")
	}
	d.DestroyTextureView(view)
	if _, err := d.CreateBindGroup(layout, []gpucore.BindGroupEntry{{Binding: 0, View: view, Sampler: sampler}}); err == nil {
		t.Error("CreateBindGroup() accepted a destroyed view")
	}
}

func TestCreateTextureRejectsUnknownFormat(t *testing.T) {
	d := New()
	_, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Size:   gputypes.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		Format: gputypes.TextureFormatDepth24PlusStencil8,
	})
	if err == nil {
		t.Error("CreateTexture() accepted a depth format")
	}
}
