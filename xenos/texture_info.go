package xenos

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Dimension is the dimensionality of a guest texture.
type Dimension uint8

// Texture dimensions.
const (
	Dimension1D Dimension = iota
	Dimension2D
	Dimension3D
	DimensionCube
)

func (d Dimension) String() string {
	switch d {
	case Dimension1D:
		return "1D"
	case Dimension2D:
		return "2D"
	case Dimension3D:
		return "3D"
	case DimensionCube:
		return "Cube"
	default:
		return fmt.Sprintf("Dimension(%d)", uint8(d))
	}
}

// Guest layout constants.
const (
	// TileBlocks is the edge of a tiled macro tile, in blocks.
	TileBlocks = 32

	// LinearPitchAlignment is the row pitch alignment of linear textures, in bytes.
	LinearPitchAlignment = 256

	// FaceAlignment is the alignment of consecutive cube faces, in bytes.
	FaceAlignment = 4096
)

// TextureInfo is an immutable description of a guest texture.
// Two descriptors that compare equal with == describe the same texture.
type TextureInfo struct {
	// GuestAddress is the physical base address of the texture data.
	GuestAddress uint32

	// Width, Height and Depth are the texel dimensions of mip level 0.
	// Depth is the number of slices for 3D textures and is ignored otherwise.
	Width, Height, Depth uint32

	// MipLevels is the number of mip levels described by the fetch constant.
	MipLevels uint32

	Dimension Dimension
	Format    TextureFormat
	Endian    Endian

	// Tiled selects the 32x32 macro tile layout.
	Tiled bool

	// Pitch is the guest row pitch in texels. Zero derives it from Width.
	Pitch uint32
}

// Hash returns a 64-bit key over the identity fields of the descriptor.
func (t TextureInfo) Hash() uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint32(buf[0:], t.GuestAddress)
	binary.LittleEndian.PutUint32(buf[4:], t.Width)
	binary.LittleEndian.PutUint32(buf[8:], t.Height)
	binary.LittleEndian.PutUint32(buf[12:], t.Depth)
	binary.LittleEndian.PutUint32(buf[16:], t.MipLevels)
	binary.LittleEndian.PutUint32(buf[20:], uint32(t.Format))
	binary.LittleEndian.PutUint32(buf[24:], t.Pitch)
	buf[28] = byte(t.Dimension)
	buf[29] = byte(t.Endian)
	if t.Tiled {
		buf[30] = 1
	}
	return xxhash.Sum64(buf[:])
}

// FormatInfo returns the storage description of the texture format.
func (t TextureInfo) FormatInfo() (FormatInfo, bool) {
	return t.Format.Info()
}

// Faces returns the number of 2D images stored for the texture.
func (t TextureInfo) Faces() uint32 {
	switch t.Dimension {
	case DimensionCube:
		return 6
	case Dimension3D:
		return max(t.Depth, 1)
	default:
		return 1
	}
}

// BlockCount returns the number of blocks per row and the number of block
// rows of mip level 0.
func (t TextureInfo) BlockCount() (width, height uint32) {
	info, ok := t.Format.Info()
	if !ok {
		return 0, 0
	}
	h := t.Height
	if t.Dimension == Dimension1D {
		h = 1
	}
	return (t.Width + info.BlockWidth - 1) / info.BlockWidth,
		(h + info.BlockHeight - 1) / info.BlockHeight
}

// GuestLayout describes where the blocks of mip level 0 live in guest memory.
type GuestLayout struct {
	// PitchBlocks is the number of blocks between vertically adjacent blocks.
	PitchBlocks uint32

	// RowPitch is PitchBlocks in bytes.
	RowPitch uint32

	// HeightBlocks is the number of block rows reserved per face.
	HeightBlocks uint32

	// FaceSize is the distance in bytes between consecutive faces.
	FaceSize uint32

	// Size is the full guest footprint in bytes.
	Size uint32
}

// Layout computes the guest layout of mip level 0.
// ok is false for formats this package does not describe.
func (t TextureInfo) Layout() (l GuestLayout, ok bool) {
	info, ok := t.Format.Info()
	if !ok {
		return GuestLayout{}, false
	}
	bw, bh := t.BlockCount()
	pitch := bw
	if t.Pitch != 0 {
		pitch = max(pitch, (t.Pitch+info.BlockWidth-1)/info.BlockWidth)
	}
	if t.Tiled {
		l.PitchBlocks = alignUp(pitch, TileBlocks)
		l.HeightBlocks = alignUp(bh, TileBlocks)
		l.RowPitch = l.PitchBlocks * info.BytesPerBlock
	} else {
		l.RowPitch = alignUp(pitch*info.BytesPerBlock, LinearPitchAlignment)
		l.PitchBlocks = l.RowPitch / info.BytesPerBlock
		l.HeightBlocks = bh
	}
	l.FaceSize = l.RowPitch * l.HeightBlocks
	if faces := t.Faces(); faces > 1 {
		l.FaceSize = alignUp(l.FaceSize, FaceAlignment)
		l.Size = l.FaceSize * faces
	} else {
		l.Size = l.FaceSize
	}
	return l, true
}

// GuestRange returns the base address and length of the guest memory the
// texture occupies.
func (t TextureInfo) GuestRange() (base, length uint32) {
	l, ok := t.Layout()
	if !ok {
		return t.GuestAddress, 0
	}
	return t.GuestAddress, l.Size
}

// Contains reports whether the guest byte range [addr, addr+n) lies inside
// the texture's footprint.
func (t TextureInfo) Contains(addr, n uint32) bool {
	base, length := t.GuestRange()
	return addr >= base && uint64(addr)+uint64(n) <= uint64(base)+uint64(length)
}

func (t TextureInfo) String() string {
	return fmt.Sprintf("%s %dx%dx%d %s @%#08x tiled=%t endian=%s",
		t.Dimension, t.Width, t.Height, t.Depth, t.Format, t.GuestAddress, t.Tiled, t.Endian)
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}
