package convert

import "github.com/gogpu/xenostex/xenos"

// Swap copies src to dst reversing the guest byte-swap mode. Every mode is
// its own inverse. Trailing bytes that do not fill a word are copied as is.
// dst and src may be the same slice.
func Swap(endian xenos.Endian, dst, src []byte) {
	n := min(len(dst), len(src))
	dst, src = dst[:n], src[:n]
	i := 0
	switch endian {
	case xenos.Endian8in16:
		for ; i+2 <= n; i += 2 {
			dst[i], dst[i+1] = src[i+1], src[i]
		}
	case xenos.Endian8in32:
		for ; i+4 <= n; i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+3], src[i+2], src[i+1], src[i]
		}
	case xenos.Endian16in32:
		for ; i+4 <= n; i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+3], src[i], src[i+1]
		}
	}
	copy(dst[i:], src[i:])
}
