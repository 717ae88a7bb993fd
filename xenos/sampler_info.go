package xenos

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// TextureFilter is a guest filter selection.
type TextureFilter uint8

// Texture filters.
const (
	FilterPoint TextureFilter = iota
	FilterLinear
	// FilterBaseMap samples mip level 0 only.
	FilterBaseMap
	// FilterUseFetchConst defers to the fetch constant; fetch instructions only.
	FilterUseFetchConst
)

// ClampMode is a guest texture addressing mode.
type ClampMode uint8

// Addressing modes.
const (
	ClampRepeat ClampMode = iota
	ClampMirroredRepeat
	ClampToEdge
	ClampMirrorToEdge
	ClampToHalfway
	ClampMirrorToHalfway
	ClampToBorder
	ClampMirrorToBorder
)

// AnisoFilter is the guest anisotropic filtering level.
type AnisoFilter uint8

// Anisotropy levels.
const (
	AnisoDisabled AnisoFilter = iota
	AnisoMax1to1
	AnisoMax2to1
	AnisoMax4to1
	AnisoMax8to1
	AnisoMax16to1
)

// Samples returns the maximum anisotropy as a sample count, 1 when disabled.
func (a AnisoFilter) Samples() uint16 {
	if a <= AnisoMax1to1 || a > AnisoMax16to1 {
		return 1
	}
	return 1 << (a - AnisoMax1to1)
}

// BorderColor selects the guest border color.
type BorderColor uint8

// Border colors.
const (
	BorderAGBRBlack BorderColor = iota
	BorderAGBRWhite
	BorderACBYCRBlack
	BorderACBCRYBlack
)

// SamplerInfo is the sampler state of one texture fetch.
type SamplerInfo struct {
	MinFilter TextureFilter
	MagFilter TextureFilter
	MipFilter TextureFilter

	ClampU, ClampV, ClampW ClampMode

	Aniso  AnisoFilter
	Border BorderColor

	// LODBias is added to the computed level of detail.
	LODBias float32
}

// Hash returns a 64-bit key over all sampler fields.
func (s SamplerInfo) Hash() uint64 {
	var buf [12]byte
	buf[0] = byte(s.MinFilter)
	buf[1] = byte(s.MagFilter)
	buf[2] = byte(s.MipFilter)
	buf[3] = byte(s.ClampU)
	buf[4] = byte(s.ClampV)
	buf[5] = byte(s.ClampW)
	buf[6] = byte(s.Aniso)
	buf[7] = byte(s.Border)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(s.LODBias))
	return xxhash.Sum64(buf[:])
}
