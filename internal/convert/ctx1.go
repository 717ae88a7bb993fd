package convert

import (
	"encoding/binary"

	"github.com/gogpu/xenostex/xenos"
)

// ConvertTexelCTX1 decodes one 8-byte CTX1 block into a 4x4 tile of RG8
// texels. dst points at the top-left texel and pitch is the destination row
// pitch in bytes. A nil src produces zero texels.
//
// The block holds two RG8 endpoints followed by 16 two-bit indices. Indices
// 2 and 3 select the colors one and two thirds of the way between them.
func ConvertTexelCTX1(dst []byte, pitch uint32, src []byte, endian xenos.Endian) {
	var block [8]byte
	if src != nil {
		Swap(endian, block[:], src[:8])
	}
	r0, g0, r1, g1 := uint32(block[0]), uint32(block[1]), uint32(block[2]), uint32(block[3])
	indices := binary.LittleEndian.Uint32(block[4:])

	cr := [4]uint8{uint8(r0), uint8(r1), uint8((2*r0 + r1) / 3), uint8((r0 + 2*r1) / 3)}
	cg := [4]uint8{uint8(g0), uint8(g1), uint8((2*g0 + g1) / 3), uint8((g0 + 2*g1) / 3)}

	for oy := range uint32(4) {
		row := dst[oy*pitch:]
		for ox := range uint32(4) {
			idx := indices >> ((ox + oy*4) * 2) & 3
			row[ox*2] = cr[idx]
			row[ox*2+1] = cg[idx]
		}
	}
}
