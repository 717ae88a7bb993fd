package main

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/internal/convert"
)

// hostImage wraps converted texels in an image. Faces are stacked
// vertically. rowPitch and faceSize describe the layout of data.
func hostImage(l convert.HostLayout, data []byte, rowPitch uint32, faceSize uint64) (image.Image, error) {
	if l.BlockWidth != 1 || l.BlockHeight != 1 {
		return nil, errors.Newf("block-compressed format %v has no image encoding", l.Format)
	}
	w, h := int(l.BlocksWide), int(l.BlocksHigh)
	rect := image.Rect(0, 0, w, h*int(l.Faces))
	if need := faceSize * uint64(l.Faces); uint64(len(data)) < need {
		return nil, errors.Newf("host data holds %d bytes, layout needs %d", len(data), need)
	}

	texel := func(face, x, y int) []byte {
		off := uint64(face)*faceSize + uint64(y)*uint64(rowPitch) + uint64(x)*uint64(l.BytesPerBlock)
		return data[off : off+uint64(l.BytesPerBlock)]
	}
	each := func(set func(x, y int, px []byte)) {
		for face := range int(l.Faces) {
			for y := range h {
				for x := range w {
					set(x, face*h+y, texel(face, x, y))
				}
			}
		}
	}

	switch l.Format {
	case gputypes.TextureFormatRGBA8Unorm:
		img := image.NewNRGBA(rect)
		each(func(x, y int, px []byte) {
			copy(img.Pix[img.PixOffset(x, y):], px)
		})
		return img, nil

	case gputypes.TextureFormatR8Unorm:
		img := image.NewGray(rect)
		each(func(x, y int, px []byte) {
			img.Pix[img.PixOffset(x, y)] = px[0]
		})
		return img, nil

	case gputypes.TextureFormatRG8Unorm:
		img := image.NewNRGBA(rect)
		each(func(x, y int, px []byte) {
			img.SetNRGBA(x, y, color.NRGBA{R: px[0], G: px[1], A: 0xff})
		})
		return img, nil

	case gputypes.TextureFormatRGB10A2Unorm:
		img := image.NewNRGBA64(rect)
		each(func(x, y int, px []byte) {
			v := binary.LittleEndian.Uint32(px)
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: unorm16(v&0x3ff, 0x3ff),
				G: unorm16(v>>10&0x3ff, 0x3ff),
				B: unorm16(v>>20&0x3ff, 0x3ff),
				A: unorm16(v>>30, 3),
			})
		})
		return img, nil

	case gputypes.TextureFormatR32Float, gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA32Float:
		channels := int(l.BytesPerBlock / 4)
		img := image.NewNRGBA64(rect)
		each(func(x, y int, px []byte) {
			c := [4]uint16{0, 0, 0, 0xffff}
			for i := range channels {
				c[i] = float16bit(math.Float32frombits(binary.LittleEndian.Uint32(px[i*4:])))
			}
			img.SetNRGBA64(x, y, color.NRGBA64{R: c[0], G: c[1], B: c[2], A: c[3]})
		})
		return img, nil
	}
	return nil, errors.Newf("host format %v has no image encoding", l.Format)
}

func unorm16(v, maxValue uint32) uint16 {
	return uint16(v * 0xffff / maxValue)
}

// float16bit maps [0, 1] to a 16-bit channel, clamping outside values.
func float16bit(f float32) uint16 {
	switch {
	case !(f > 0):
		return 0
	case f >= 1:
		return 0xffff
	}
	return uint16(f*0xffff + 0.5)
}
