package convert

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/xenos"
)

// ErrUnsupportedFormat is returned for guest textures the converter cannot
// express on the host.
var ErrUnsupportedFormat = errors.New("unsupported texture format")

// HostLayout describes the converted, upload-ready form of mip level 0.
type HostLayout struct {
	Format gputypes.TextureFormat

	// BlockWidth and BlockHeight are the host block dimensions in texels.
	BlockWidth, BlockHeight uint32

	// BytesPerBlock is the host size of one block.
	BytesPerBlock uint32

	// BlocksWide and BlocksHigh count the host blocks of one face.
	BlocksWide, BlocksHigh uint32

	// RowPitch is the byte distance between block rows, a multiple of
	// gpucore.CopyPitchAlignment.
	RowPitch uint32

	// FaceSize is the byte distance between faces.
	FaceSize uint64

	// Faces is the number of 2D images (6 for cube maps).
	Faces uint32

	// Size is the total number of bytes.
	Size uint64
}

// Extent returns the image extent matching the layout. Block-compressed
// images are padded to whole blocks.
func (l HostLayout) Extent() gputypes.Extent3D {
	return gputypes.Extent3D{
		Width:              l.BlocksWide * l.BlockWidth,
		Height:             l.BlocksHigh * l.BlockHeight,
		DepthOrArrayLayers: l.Faces,
	}
}

// CopyRegion is the buffer-side description of converted data.
type CopyRegion struct {
	// BytesPerRow is the buffer row pitch.
	BytesPerRow uint32

	// RowsPerImage is the number of texel rows per face.
	RowsPerImage uint32

	// Extent is the copied image extent. DepthOrArrayLayers counts faces.
	Extent gputypes.Extent3D
}

// CopyRegion returns the copy description of the layout.
func (l HostLayout) CopyRegion() CopyRegion {
	e := l.Extent()
	return CopyRegion{
		BytesPerRow:  l.RowPitch,
		RowsPerImage: e.Height,
		Extent:       e,
	}
}

// BufferTextureCopy returns the copy command for data placed at offset.
func (r CopyRegion) BufferTextureCopy(offset uint64) gpucore.BufferTextureCopy {
	return gpucore.BufferTextureCopy{
		BufferOffset: offset,
		BytesPerRow:  r.BytesPerRow,
		RowsPerImage: r.RowsPerImage,
		Size:         r.Extent,
	}
}

// ComputeLayout returns the host layout of the texture.
func ComputeLayout(info xenos.TextureInfo) (HostLayout, error) {
	hf, ok := hostFormats[info.Format]
	if !ok {
		return HostLayout{}, errors.Wrapf(ErrUnsupportedFormat, "format %s", info.Format)
	}
	if info.Dimension == xenos.Dimension3D {
		return HostLayout{}, errors.Wrapf(ErrUnsupportedFormat, "%s %s", info.Dimension, info.Format)
	}
	if info.Width == 0 {
		return HostLayout{}, errors.Newf("texture %s has zero width", info)
	}
	if info.Dimension != xenos.Dimension1D && info.Height == 0 {
		return HostLayout{}, errors.Newf("texture %s has zero height", info)
	}

	bw, bh := info.BlockCount()
	l := HostLayout{
		Format:        hf.format,
		BlockWidth:    hf.blockWidth,
		BlockHeight:   hf.blockHeight,
		BytesPerBlock: hf.bytesPerBlock,
		BlocksWide:    bw,
		BlocksHigh:    bh,
		Faces:         info.Faces(),
	}
	if hf.encoding == encodeCTX1 {
		fi, _ := info.FormatInfo()
		l.BlocksWide = bw * fi.BlockWidth
		l.BlocksHigh = bh * fi.BlockHeight
	}
	l.RowPitch = alignUp(l.BlocksWide*l.BytesPerBlock, gpucore.CopyPitchAlignment)
	l.FaceSize = uint64(l.RowPitch) * uint64(l.BlocksHigh)
	l.Size = l.FaceSize * uint64(l.Faces)
	return l, nil
}

// ComputeTextureStorage returns the number of bytes the texture occupies
// after conversion. ok is false for textures the converter cannot handle.
func ComputeTextureStorage(info xenos.TextureInfo) (size uint64, ok bool) {
	l, err := ComputeLayout(info)
	if err != nil {
		return 0, false
	}
	return l.Size, true
}

// GuestStorage returns the guest footprint of mip level 0 in bytes, or 0
// for formats without a guest description.
func GuestStorage(info xenos.TextureInfo) uint64 {
	l, ok := info.Layout()
	if !ok {
		return 0
	}
	return uint64(l.Size)
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}
