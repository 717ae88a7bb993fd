package convert

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/xenostex/xenos"
)

// encoding selects the per-block transform applied during conversion.
type encoding uint8

const (
	// encodeCopy stores guest blocks unchanged.
	encodeCopy encoding = iota
	// encodeExpand16 expands 16-bit packed color to RGBA8 by bit replication.
	encodeExpand16
	// encodeUnorm16 widens 16-bit unorm components to float32.
	encodeUnorm16
	// encodeCTX1 decodes CTX1 blocks to RG8 texels.
	encodeCTX1
)

// hostFormat describes how one guest format is stored on the host.
type hostFormat struct {
	format gputypes.TextureFormat

	// blockWidth and blockHeight are the host block dimensions in texels.
	blockWidth, blockHeight uint32

	// bytesPerBlock is the host size of one block.
	bytesPerBlock uint32

	encoding encoding
}

var hostFormats = map[xenos.TextureFormat]hostFormat{
	xenos.Format8:          {gputypes.TextureFormatR8Unorm, 1, 1, 1, encodeCopy},
	xenos.Format8_8:        {gputypes.TextureFormatRG8Unorm, 1, 1, 2, encodeCopy},
	xenos.Format8_8_8_8:    {gputypes.TextureFormatRGBA8Unorm, 1, 1, 4, encodeCopy},
	xenos.Format2_10_10_10: {gputypes.TextureFormatRGB10A2Unorm, 1, 1, 4, encodeCopy},

	xenos.Format1_5_5_5: {gputypes.TextureFormatRGBA8Unorm, 1, 1, 4, encodeExpand16},
	xenos.Format5_6_5:   {gputypes.TextureFormatRGBA8Unorm, 1, 1, 4, encodeExpand16},
	xenos.Format4_4_4_4: {gputypes.TextureFormatRGBA8Unorm, 1, 1, 4, encodeExpand16},

	xenos.Format16:          {gputypes.TextureFormatR32Float, 1, 1, 4, encodeUnorm16},
	xenos.Format16_16:       {gputypes.TextureFormatRG32Float, 1, 1, 8, encodeUnorm16},
	xenos.Format16_16_16_16: {gputypes.TextureFormatRGBA32Float, 1, 1, 16, encodeUnorm16},

	xenos.Format16Float:          {gputypes.TextureFormatR16Float, 1, 1, 2, encodeCopy},
	xenos.Format16_16Float:       {gputypes.TextureFormatRG16Float, 1, 1, 4, encodeCopy},
	xenos.Format16_16_16_16Float: {gputypes.TextureFormatRGBA16Float, 1, 1, 8, encodeCopy},

	xenos.Format32Float:          {gputypes.TextureFormatR32Float, 1, 1, 4, encodeCopy},
	xenos.Format32_32Float:       {gputypes.TextureFormatRG32Float, 1, 1, 8, encodeCopy},
	xenos.Format32_32_32_32Float: {gputypes.TextureFormatRGBA32Float, 1, 1, 16, encodeCopy},

	xenos.FormatDXT1:   {gputypes.TextureFormatBC1RGBAUnorm, 4, 4, 8, encodeCopy},
	xenos.FormatDXT2_3: {gputypes.TextureFormatBC2RGBAUnorm, 4, 4, 16, encodeCopy},
	xenos.FormatDXT4_5: {gputypes.TextureFormatBC3RGBAUnorm, 4, 4, 16, encodeCopy},
	xenos.FormatDXN:    {gputypes.TextureFormatBC5RGUnorm, 4, 4, 16, encodeCopy},

	// CTX1 has no host equivalent; each 4x4 block becomes 16 RG8 texels.
	xenos.FormatCTX1: {gputypes.TextureFormatRG8Unorm, 1, 1, 2, encodeCTX1},
}

// HostFormat returns the host format a guest format is uploaded as.
// ok is false for formats the converter does not handle.
func HostFormat(f xenos.TextureFormat) (format gputypes.TextureFormat, ok bool) {
	hf, ok := hostFormats[f]
	if !ok {
		return gputypes.TextureFormatUndefined, false
	}
	return hf.format, true
}

// SupportsWriteback reports whether host contents of the format can be
// converted back to the guest encoding. Block-compressed and decoded
// formats are upload-only.
func SupportsWriteback(f xenos.TextureFormat) bool {
	hf, ok := hostFormats[f]
	if !ok || hf.encoding == encodeCTX1 {
		return false
	}
	info, _ := f.Info()
	return !info.Compressed
}
