package main

import (
	"bufio"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/xenostex/backend/software"
	"github.com/gogpu/xenostex/guestmem"
	"github.com/gogpu/xenostex/internal/convert"
	"github.com/gogpu/xenostex/texcache"
	"github.com/gogpu/xenostex/xenos"
)

type options struct {
	info     xenos.TextureInfo
	outDir   string
	tiff     bool
	viaCache bool
	jobs     int
}

type result struct {
	input   string
	output  string
	elapsed time.Duration
}

// run converts every input, at most opts.jobs at a time. It stops
// scheduling new work after the first failure.
func run(ctx context.Context, opts options, inputs []string) ([]result, error) {
	results := make([]result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))

	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := convertFile(opts, in)
			results[i] = r
			return errors.Wrapf(err, "%s", in)
		})
	}
	return results, g.Wait()
}

func convertFile(opts options, input string) (result, error) {
	r := result{input: input}
	data, err := os.ReadFile(input)
	if err != nil {
		return r, err
	}

	start := hrtime.Now()
	var img image.Image
	if opts.viaCache {
		img, err = decodeViaCache(opts.info, data)
	} else {
		img, err = decode(opts.info, data)
	}
	if err != nil {
		return r, err
	}

	ext := ".png"
	if opts.tiff {
		ext = ".tif"
	}
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ext
	r.output = filepath.Join(opts.outDir, name)
	if err := writeImage(r.output, img, opts.tiff); err != nil {
		return r, err
	}
	r.elapsed = hrtime.Since(start)
	return r, nil
}

// decode converts the dump on the CPU.
func decode(info xenos.TextureInfo, data []byte) (image.Image, error) {
	layout, err := convert.ComputeLayout(info)
	if err != nil {
		return nil, err
	}
	host := make([]byte, layout.Size)
	if _, err := convert.ConvertTexture(host, data, info); err != nil {
		return nil, err
	}
	return hostImage(layout, host, layout.RowPitch, layout.FaceSize)
}

// decodeViaCache uploads the dump through a texture cache on the software
// device and reads the host image back.
func decodeViaCache(info xenos.TextureInfo, data []byte) (image.Image, error) {
	layout, err := convert.ComputeLayout(info)
	if err != nil {
		return nil, err
	}
	base, length := info.GuestRange()
	if uint32(len(data)) < length {
		data = append(data, make([]byte, int(length)-len(data))...)
	}

	dev := software.New()
	defer dev.Destroy()
	cache := texcache.New(dev, guestmem.FromBytes(base, data),
		texcache.WithStagingSize(layout.Size+(64<<10)),
		texcache.WithWritebackStagingSize(64<<10))
	if err := cache.Initialize(); err != nil {
		return nil, err
	}
	defer cache.Shutdown()

	setup, err := dev.NewCommandBuffer("setup")
	if err != nil {
		return nil, err
	}
	draw, err := dev.NewCommandBuffer("draw")
	if err != nil {
		return nil, err
	}
	fence, err := dev.NewFence()
	if err != nil {
		return nil, err
	}
	defer dev.DestroyFence(fence)

	region, _, err := cache.DemandRegion(info, draw, setup, fence)
	if err != nil {
		return nil, err
	}
	if err := dev.Submit(setup, nil); err != nil {
		return nil, err
	}
	if err := dev.Submit(draw, fence); err != nil {
		return nil, err
	}

	rowPitch := layout.BlocksWide * layout.BytesPerBlock
	faceSize := uint64(rowPitch) * uint64(layout.BlocksHigh)
	host := make([]byte, 0, faceSize*uint64(layout.Faces))
	for face := range layout.Faces {
		texels, ok := dev.TextureData(region.Image, face)
		if !ok {
			return nil, errors.Newf("face %d of %s not readable", face, info)
		}
		host = append(host, texels...)
	}
	return hostImage(layout, host, rowPitch, faceSize)
}

func writeImage(path string, img image.Image, asTIFF bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if asTIFF {
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	} else {
		err = png.Encode(w, img)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}
