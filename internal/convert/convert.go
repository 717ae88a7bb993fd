package convert

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/xenos"
)

// ConvertTexture converts mip level 0 of a guest texture into dst, which
// must hold at least ComputeTextureStorage(info) bytes. src starts at the
// texture's guest base address. Blocks that fall outside src are zeroed.
func ConvertTexture(dst, src []byte, info xenos.TextureInfo) (CopyRegion, error) {
	switch info.Dimension {
	case xenos.Dimension1D, xenos.Dimension2D:
		return ConvertTexture2D(dst, src, info)
	case xenos.DimensionCube:
		return ConvertTextureCube(dst, src, info)
	default:
		return CopyRegion{}, errors.Wrapf(ErrUnsupportedFormat, "dimension %s", info.Dimension)
	}
}

// ConvertTexture2D converts a 1D or 2D texture.
func ConvertTexture2D(dst, src []byte, info xenos.TextureInfo) (CopyRegion, error) {
	h, g, err := prepare(dst, info)
	if err != nil {
		return CopyRegion{}, err
	}
	convertFace(dst[:h.FaceSize], src, info, g, h)
	return h.CopyRegion(), nil
}

// ConvertTextureCube converts the six faces of a cube map. Guest faces are
// FaceAlignment apart; host faces are stored back to back.
func ConvertTextureCube(dst, src []byte, info xenos.TextureInfo) (CopyRegion, error) {
	if info.Dimension != xenos.DimensionCube {
		return CopyRegion{}, errors.Newf("texture %s is not a cube map", info)
	}
	h, g, err := prepare(dst, info)
	if err != nil {
		return CopyRegion{}, err
	}
	for face := range uint64(h.Faces) {
		convertFace(dst[face*h.FaceSize:(face+1)*h.FaceSize], guestFace(src, g, face), info, g, h)
	}
	return h.CopyRegion(), nil
}

func prepare(dst []byte, info xenos.TextureInfo) (HostLayout, xenos.GuestLayout, error) {
	h, err := ComputeLayout(info)
	if err != nil {
		return HostLayout{}, xenos.GuestLayout{}, err
	}
	g, _ := info.Layout()
	if uint64(len(dst)) < h.Size {
		return HostLayout{}, xenos.GuestLayout{}, errors.Newf(
			"destination holds %d bytes, %s needs %d", len(dst), info, h.Size)
	}
	return h, g, nil
}

// guestFace returns the part of src holding one face, clipped to src.
func guestFace(src []byte, g xenos.GuestLayout, face uint64) []byte {
	start := face * uint64(g.FaceSize)
	if start >= uint64(len(src)) {
		return nil
	}
	end := min(start+uint64(g.FaceSize), uint64(len(src)))
	return src[start:end]
}

// guestBlockOffset returns the byte offset of block (x, y) within a face.
func guestBlockOffset(info xenos.TextureInfo, g xenos.GuestLayout, bytesPerBlock, x, y uint32) uint64 {
	if info.Tiled {
		return uint64(TiledBlockOffset(x, y, g.PitchBlocks, bytesPerBlock))
	}
	return uint64(y)*uint64(g.RowPitch) + uint64(x)*uint64(bytesPerBlock)
}

func convertFace(dst, src []byte, info xenos.TextureInfo, g xenos.GuestLayout, h HostLayout) {
	hf := hostFormats[info.Format]
	fi, _ := info.FormatInfo()

	// Byte swapping applies to guest memory words, not to blocks, so it
	// runs over the whole face before blocks are picked out. CTX1 blocks
	// are word aligned and swap themselves.
	if hf.encoding != encodeCTX1 && info.Endian != xenos.EndianNone {
		swapped := make([]byte, len(src))
		Swap(info.Endian, swapped, src)
		src = swapped
	}

	bw, bh := info.BlockCount()
	bpb := uint64(fi.BytesPerBlock)
	for y := range bh {
		for x := range bw {
			var block []byte
			if off := guestBlockOffset(info, g, fi.BytesPerBlock, x, y); off+bpb <= uint64(len(src)) {
				block = src[off : off+bpb]
			}
			if hf.encoding == encodeCTX1 {
				out := dst[uint64(y)*4*uint64(h.RowPitch)+uint64(x)*4*uint64(h.BytesPerBlock):]
				ConvertTexelCTX1(out, h.RowPitch, block, info.Endian)
				continue
			}
			off := uint64(y)*uint64(h.RowPitch) + uint64(x)*uint64(h.BytesPerBlock)
			encodeBlock(dst[off:off+uint64(h.BytesPerBlock)], block, info.Format, hf.encoding)
		}
	}
}

// encodeBlock writes one host block. A nil src produces a zero block.
func encodeBlock(dst, src []byte, format xenos.TextureFormat, enc encoding) {
	if src == nil {
		clear(dst)
		return
	}
	switch enc {
	case encodeCopy:
		copy(dst, src)
	case encodeExpand16:
		r, g, b, a := expand16(format, binary.LittleEndian.Uint16(src))
		dst[0], dst[1], dst[2], dst[3] = r, g, b, a
	case encodeUnorm16:
		for i := 0; i+2 <= len(src); i += 2 {
			v := float32(binary.LittleEndian.Uint16(src[i:])) / math.MaxUint16
			binary.LittleEndian.PutUint32(dst[i*2:], math.Float32bits(v))
		}
	}
}

// expand16 unpacks 16-bit packed color into 8-bit channels, replicating the
// high bits of each field into the low bits.
//
//	5_6_5     R[15:11] G[10:5] B[4:0]
//	1_5_5_5   A[15] R[14:10] G[9:5] B[4:0]
//	4_4_4_4   A[15:12] R[11:8] G[7:4] B[3:0]
func expand16(format xenos.TextureFormat, v uint16) (r, g, b, a uint8) {
	switch format {
	case xenos.Format5_6_5:
		return expand5(v >> 11), expand6(v >> 5), expand5(v), 0xFF
	case xenos.Format1_5_5_5:
		a = 0
		if v&0x8000 != 0 {
			a = 0xFF
		}
		return expand5(v >> 10), expand5(v >> 5), expand5(v), a
	default:
		return expand4(v >> 8), expand4(v >> 4), expand4(v), expand4(v >> 12)
	}
}

func expand4(v uint16) uint8 {
	v &= 0xF
	return uint8(v<<4 | v)
}

func expand5(v uint16) uint8 {
	v &= 0x1F
	return uint8(v<<3 | v>>2)
}

func expand6(v uint16) uint8 {
	v &= 0x3F
	return uint8(v<<2 | v>>4)
}
