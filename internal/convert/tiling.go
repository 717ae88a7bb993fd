package convert

// Tiled textures store 32x32 block macro tiles. Within a tile, blocks are
// interleaved so that neighbors land in the same memory bank. The address
// of block (x, y) is the sum of a per-row part and a per-column part:
//
//	TiledOffset2DInner(x, y, logBpp, TiledOffset2DOuter(y, pitch, logBpp))
//
// Both return byte offsets; logBpp is log2 of the bytes per block.

// TiledOffset2DOuter returns the row part of a tiled address. pitch is the
// tile-aligned row pitch in blocks.
func TiledOffset2DOuter(y, pitch, logBpp uint32) uint32 {
	macro := ((y >> 5) * (pitch >> 5)) << (logBpp + 7)
	micro := ((y & 6) << 2) << logBpp
	return macro + ((micro &^ 15) << 1) + (micro & 15) +
		((y & 8) << (3 + logBpp)) + ((y & 1) << 4)
}

// TiledOffset2DInner combines the column part of a tiled address with the
// row part returned by TiledOffset2DOuter.
func TiledOffset2DInner(x, y, logBpp, base uint32) uint32 {
	macro := (x >> 5) << (logBpp + 7)
	micro := (x & 7) << logBpp
	offset := base + macro + ((micro &^ 15) << 1) + (micro & 15)
	return ((offset &^ 511) << 3) + ((offset & 448) << 2) + (offset & 63) +
		((y & 16) << 7) + (((((y & 8) >> 2) + (x >> 3)) & 3) << 6)
}

// TiledBlockOffset returns the byte offset of block (x, y) in a tiled face.
func TiledBlockOffset(x, y, pitch, bytesPerBlock uint32) uint32 {
	logBpp := log2Bpp(bytesPerBlock)
	offset := TiledOffset2DInner(x, y, logBpp, TiledOffset2DOuter(y, pitch, logBpp))
	return (offset >> logBpp) * bytesPerBlock
}

func log2Bpp(bytesPerBlock uint32) uint32 {
	return (bytesPerBlock >> 2) + ((bytesPerBlock >> 1) >> (bytesPerBlock >> 2))
}
