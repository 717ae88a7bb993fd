package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/gogpu/xenostex/xenos"
)

// writeDump writes a linear 4x2 RGBA8 dump whose texel (x, y) is
// {x, y, seed, 255}.
func writeDump(t *testing.T, dir, name string, seed byte) string {
	t.Helper()
	data := make([]byte, 2*xenos.LinearPitchAlignment)
	for y := range 2 {
		for x := range 4 {
			off := y*xenos.LinearPitchAlignment + x*4
			copy(data[off:], []byte{byte(x), byte(y), seed, 0xff})
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func checkImage(t *testing.T, img image.Image, seed byte) {
	t.Helper()
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("image bounds = %v, want 4x2", b)
	}
	for y := range 2 {
		for x := range 4 {
			r, g, b, a := img.At(x, y).RGBA()
			if r>>8 != uint32(x) || g>>8 != uint32(y) || b>>8 != uint32(seed) || a>>8 != 0xff {
				t.Errorf("texel (%d,%d) = %d %d %d %d", x, y, r>>8, g>>8, b>>8, a>>8)
			}
		}
	}
}

func rgbaInfo() xenos.TextureInfo {
	return xenos.TextureInfo{
		Width: 4, Height: 2, Depth: 1, MipLevels: 1,
		Dimension: xenos.Dimension2D, Format: xenos.Format8_8_8_8,
	}
}

func TestRunWritesPNG(t *testing.T) {
	for _, viaCache := range []bool{false, true} {
		name := "direct"
		if viaCache {
			name = "cache"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			inputs := []string{
				writeDump(t, dir, "a.bin", 7),
				writeDump(t, dir, "b.bin", 9),
			}
			opts := options{info: rgbaInfo(), outDir: dir, viaCache: viaCache, jobs: 2}
			results, err := run(context.Background(), opts, inputs)
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			for i, seed := range []byte{7, 9} {
				if results[i].input != inputs[i] {
					t.Errorf("results[%d].input = %s", i, results[i].input)
				}
				f, err := os.Open(results[i].output)
				if err != nil {
					t.Fatal(err)
				}
				img, err := png.Decode(f)
				f.Close()
				if err != nil {
					t.Fatal(err)
				}
				checkImage(t, img, seed)
			}
		})
	}
}

func TestRunWritesTIFF(t *testing.T) {
	dir := t.TempDir()
	in := writeDump(t, dir, "c.bin", 3)
	results, err := run(context.Background(), options{info: rgbaInfo(), outDir: dir, tiff: true, jobs: 1}, []string{in})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(results[0].output) != ".tif" {
		t.Fatalf("output = %s, want a .tif file", results[0].output)
	}
	f, err := os.Open(results[0].output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	checkImage(t, img, 3)
}

func TestRunReportsFailures(t *testing.T) {
	dir := t.TempDir()
	dxt := xenos.TextureInfo{
		Width: 8, Height: 8, Depth: 1, MipLevels: 1,
		Dimension: xenos.Dimension2D, Format: xenos.FormatDXT1,
	}
	in := filepath.Join(dir, "dxt.bin")
	if err := os.WriteFile(in, make([]byte, 512), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(context.Background(), options{info: dxt, outDir: dir, jobs: 1}, []string{in}); err == nil {
		t.Error("run() encoded a block-compressed texture")
	}
	if _, err := run(context.Background(), options{info: rgbaInfo(), outDir: dir, jobs: 1}, []string{filepath.Join(dir, "missing.bin")}); err == nil {
		t.Error("run() succeeded on a missing input")
	}
}
