package convert

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/xenos"
)

// UnconvertTexture writes host data laid out as ComputeLayout(info) back
// into the guest encoding. dst starts at the texture's guest base address.
// Guest bytes outside the texture's blocks are preserved.
func UnconvertTexture(dst, src []byte, info xenos.TextureInfo) error {
	if !SupportsWriteback(info.Format) {
		return errors.Wrapf(ErrUnsupportedFormat, "writeback of %s", info.Format)
	}
	h, err := ComputeLayout(info)
	if err != nil {
		return err
	}
	if uint64(len(src)) < h.Size {
		return errors.Newf("source holds %d bytes, %s needs %d", len(src), info, h.Size)
	}
	g, _ := info.Layout()
	for face := range uint64(h.Faces) {
		unconvertFace(guestFace(dst, g, face), src[face*h.FaceSize:(face+1)*h.FaceSize], info, g, h)
	}
	return nil
}

func unconvertFace(dst, src []byte, info xenos.TextureInfo, g xenos.GuestLayout, h HostLayout) {
	hf := hostFormats[info.Format]
	fi, _ := info.FormatInfo()

	out := dst
	if info.Endian != xenos.EndianNone {
		out = make([]byte, len(dst))
		Swap(info.Endian, out, dst)
	}

	bw, bh := info.BlockCount()
	bpb := uint64(fi.BytesPerBlock)
	for y := range bh {
		for x := range bw {
			off := guestBlockOffset(info, g, fi.BytesPerBlock, x, y)
			if off+bpb > uint64(len(out)) {
				continue
			}
			in := uint64(y)*uint64(h.RowPitch) + uint64(x)*uint64(h.BytesPerBlock)
			decodeBlock(out[off:off+bpb], src[in:in+uint64(h.BytesPerBlock)], info.Format, hf.encoding)
		}
	}

	if info.Endian != xenos.EndianNone {
		Swap(info.Endian, dst, out)
	}
}

// decodeBlock is the inverse of encodeBlock.
func decodeBlock(dst, src []byte, format xenos.TextureFormat, enc encoding) {
	switch enc {
	case encodeCopy:
		copy(dst, src)
	case encodeExpand16:
		binary.LittleEndian.PutUint16(dst, pack16(format, src[0], src[1], src[2], src[3]))
	case encodeUnorm16:
		for i := 0; i+2 <= len(dst); i += 2 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(src[i*2:]))
			v = min(max(v, 0), 1)
			binary.LittleEndian.PutUint16(dst[i:], uint16(math.Round(float64(v)*math.MaxUint16)))
		}
	}
}

// pack16 truncates 8-bit channels to the packed layouts of expand16.
func pack16(format xenos.TextureFormat, r, g, b, a uint8) uint16 {
	switch format {
	case xenos.Format5_6_5:
		return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
	case xenos.Format1_5_5_5:
		return uint16(a>>7)<<15 | uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
	default:
		return uint16(a>>4)<<12 | uint16(r>>4)<<8 | uint16(g>>4)<<4 | uint16(b>>4)
	}
}
