package texcache

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/xenos"
)

func TestAllocateTextureRegionUploadsSubRectangle(t *testing.T) {
	e := newTestEnv(t)
	c := e.cache
	info := rgba8(0x1000, 64, 4)
	guest := e.fill(info, 3)

	tex, err := c.AllocateTexture(info)
	if err != nil {
		t.Fatal(err)
	}
	region, err := c.AllocateTextureRegion(tex,
		gputypes.Origin3D{X: 16, Y: 1},
		gputypes.Extent3D{Width: 8, Height: 2},
		gputypes.TextureUsageTextureBinding)
	if err != nil {
		t.Fatalf("AllocateTextureRegion() error = %v", err)
	}
	if len(tex.Regions) != 2 || tex.BaseRegion() == region {
		t.Fatal("sub-region not appended after the base region")
	}
	if region.ContentsValid {
		t.Error("new region has valid contents")
	}

	f := e.beginFrame()
	if _, err := c.UploadTexture(f.setup, f.fence, region, info); err != nil {
		t.Fatalf("UploadTexture() error = %v", err)
	}
	e.submit(f)

	got, _ := e.dev.TextureData(region.Image, 0)
	var want []byte
	for row := uint32(1); row < 3; row++ {
		start := row*256 + 16*4
		want = append(want, guest[start:start+8*4]...)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("region texels = %v, want %v", got[:8], want[:8])
	}

	// Invalidation reaches every region.
	if err := e.mem.Write(0x1000, []byte{0}); err != nil {
		t.Fatal(err)
	}
	c.RemoveInvalidatedTextures()
	if region.ContentsValid {
		t.Error("sub-region still valid after a guest write")
	}
}

func TestAllocateTextureRegionBounds(t *testing.T) {
	e := newTestEnv(t)
	tex, err := e.cache.AllocateTexture(rgba8(0x1000, 64, 64))
	if err != nil {
		t.Fatal(err)
	}
	dxt, err := e.cache.AllocateTexture(xenos.TextureInfo{
		GuestAddress: 0x4000, Width: 64, Height: 64, Depth: 1,
		Dimension: xenos.Dimension2D, Format: xenos.FormatDXT1,
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		tex    *Texture
		offset gputypes.Origin3D
		extent gputypes.Extent3D
	}{
		{"empty", tex, gputypes.Origin3D{}, gputypes.Extent3D{Width: 0, Height: 4}},
		{"past right edge", tex, gputypes.Origin3D{X: 60}, gputypes.Extent3D{Width: 8, Height: 4}},
		{"past bottom edge", tex, gputypes.Origin3D{Y: 63}, gputypes.Extent3D{Width: 4, Height: 2}},
		{"past last layer", tex, gputypes.Origin3D{Z: 1}, gputypes.Extent3D{Width: 4, Height: 4}},
		{"full extent", tex, gputypes.Origin3D{}, gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1}},
		{"unaligned block", dxt, gputypes.Origin3D{X: 2}, gputypes.Extent3D{Width: 4, Height: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.cache.AllocateTextureRegion(tt.tex, tt.offset, tt.extent, 0)
			if !errors.Is(err, ErrRegionOutOfBounds) {
				t.Errorf("AllocateTextureRegion() error = %v, want ErrRegionOutOfBounds", err)
			}
		})
	}
	if len(tex.Regions) != 1 || len(dxt.Regions) != 1 {
		t.Error("rejected regions were added")
	}
}

func TestDemandTextureRegionView(t *testing.T) {
	e := newTestEnv(t)
	c := e.cache
	tex, err := c.AllocateTexture(rgba8(0x1000, 16, 16))
	if err != nil {
		t.Fatal(err)
	}
	region := tex.BaseRegion()

	identity, err := c.DemandTextureRegionView(region, xenos.SwizzleIdentity)
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.DemandTextureRegionView(region, xenos.SwizzleIdentity|0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if again != identity {
		t.Error("reserved swizzle bits created a second view")
	}
	zero, err := c.DemandTextureRegionView(region, xenos.PackSwizzle(xenos.SelectZero, xenos.SelectZero, xenos.SelectZero, xenos.SelectOne))
	if err != nil {
		t.Fatal(err)
	}
	if zero == identity {
		t.Fatal("different swizzles share a view")
	}
	if len(region.Views) != 2 {
		t.Errorf("len(Views) = %d, want 2", len(region.Views))
	}

	img, desc, ok := e.dev.View(zero.View)
	if !ok || img != region.Image {
		t.Fatal("view does not reference the region image")
	}
	want := gpucore.ComponentMapping{R: gpucore.ComponentZero, G: gpucore.ComponentZero, B: gpucore.ComponentZero, A: gpucore.ComponentOne}
	if desc.Swizzle != want {
		t.Errorf("view swizzle = %+v, want %+v", desc.Swizzle, want)
	}
	if desc.Dimension != gputypes.TextureViewDimension2D {
		t.Errorf("view dimension = %v, want 2D", desc.Dimension)
	}
}

func TestCubeTextureView(t *testing.T) {
	e := newTestEnv(t)
	info := rgba8(0x10000, 16, 16)
	info.Dimension = xenos.DimensionCube
	guest := e.fill(info, 9)

	f := e.beginFrame()
	region, _, err := e.cache.DemandRegion(info, f.draw, f.setup, f.fence)
	if err != nil {
		t.Fatal(err)
	}
	if region.Extent.DepthOrArrayLayers != 6 {
		t.Fatalf("cube layers = %d, want 6", region.Extent.DepthOrArrayLayers)
	}
	view, err := e.cache.DemandTextureRegionView(region, xenos.SwizzleIdentity)
	if err != nil {
		t.Fatal(err)
	}
	_, desc, _ := e.dev.View(view.View)
	if desc.Dimension != gputypes.TextureViewDimensionCube || desc.ArrayLayerCount != 6 {
		t.Errorf("cube view = %+v", desc)
	}

	e.submit(f)
	layout, _ := info.Layout()
	for face := range uint32(6) {
		got, _ := e.dev.TextureData(region.Image, face)
		var want []byte
		for row := range uint32(16) {
			start := face*layout.FaceSize + row*layout.RowPitch
			want = append(want, guest[start:start+16*4]...)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("face %d differs from guest memory", face)
		}
	}
}
