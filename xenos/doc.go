// Package xenos describes guest textures and samplers as the Xenos GPU
// encodes them in guest memory.
//
// The types in this package are plain values. They are produced by the
// command processor from fetch constants and consumed by the texture
// cache, which uses [TextureInfo.Hash] and [SamplerInfo.Hash] as cache keys.
//
// # Guest layout
//
// A guest texture is a grid of blocks. Uncompressed formats use 1x1 blocks,
// block-compressed formats (DXT, DXN, CTX1) use 4x4 blocks. Rows of blocks
// are either stored linearly, with the row pitch aligned to 256 bytes, or
// tiled in 32x32-block macro tiles. Every element is additionally stored in
// the byte order selected by [Endian].
package xenos
