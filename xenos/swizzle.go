package xenos

import "fmt"

// Swizzle is a per-channel remapping applied when a texture is sampled.
//
// The value is a plain integer with a fixed layout that does not depend on
// host byte order:
//
//	bits  0-2   X selector
//	bits  3-5   Y selector
//	bits  6-8   Z selector
//	bits  9-11  W selector
//	bits 12-15  reserved, zero
type Swizzle uint16

// Selector picks the source of one output channel.
type Selector uint8

// Channel selectors.
const (
	SelectR Selector = iota
	SelectG
	SelectB
	SelectA
	SelectZero
	SelectOne
)

const (
	selectorBits = 3
	selectorMask = 1<<selectorBits - 1
	swizzleMask  = 1<<(4*selectorBits) - 1
)

// SwizzleIdentity maps every channel to itself.
var SwizzleIdentity = PackSwizzle(SelectR, SelectG, SelectB, SelectA)

// PackSwizzle packs four selectors. Bits above the selector width are dropped.
func PackSwizzle(x, y, z, w Selector) Swizzle {
	return Swizzle(uint16(x&selectorMask) |
		uint16(y&selectorMask)<<selectorBits |
		uint16(z&selectorMask)<<(2*selectorBits) |
		uint16(w&selectorMask)<<(3*selectorBits))
}

// Unpack returns the four selectors.
func (s Swizzle) Unpack() (x, y, z, w Selector) {
	return Selector(s & selectorMask),
		Selector(s >> selectorBits & selectorMask),
		Selector(s >> (2 * selectorBits) & selectorMask),
		Selector(s >> (3 * selectorBits) & selectorMask)
}

// Canonical clears the reserved bits.
func (s Swizzle) Canonical() Swizzle {
	return s & swizzleMask
}

func (s Swizzle) String() string {
	const names = "RGBA01??"
	x, y, z, w := s.Unpack()
	return fmt.Sprintf("%c%c%c%c", names[x], names[y], names[z], names[w])
}
