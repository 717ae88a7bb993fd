package xenos

import "fmt"

// TextureFormat is the guest texel encoding stored in a texture fetch constant.
// Values match the hardware enumeration.
type TextureFormat uint32

// Guest texture formats.
const (
	Format1Reverse             TextureFormat = 0
	Format1                    TextureFormat = 1
	Format8                    TextureFormat = 2
	Format1_5_5_5              TextureFormat = 3
	Format5_6_5                TextureFormat = 4
	Format6_5_5                TextureFormat = 5
	Format8_8_8_8              TextureFormat = 6
	Format2_10_10_10           TextureFormat = 7
	Format8A                   TextureFormat = 8
	Format8B                   TextureFormat = 9
	Format8_8                  TextureFormat = 10
	FormatCrY1CbY0Rep          TextureFormat = 11
	FormatY1CrY0CbRep          TextureFormat = 12
	Format16_16Edram           TextureFormat = 13
	Format8_8_8_8A             TextureFormat = 14
	Format4_4_4_4              TextureFormat = 15
	Format10_11_11             TextureFormat = 16
	Format11_11_10             TextureFormat = 17
	FormatDXT1                 TextureFormat = 18
	FormatDXT2_3               TextureFormat = 19
	FormatDXT4_5               TextureFormat = 20
	Format16_16_16_16Edram     TextureFormat = 21
	Format24_8                 TextureFormat = 22
	Format24_8Float            TextureFormat = 23
	Format16                   TextureFormat = 24
	Format16_16                TextureFormat = 25
	Format16_16_16_16          TextureFormat = 26
	Format16Expand             TextureFormat = 27
	Format16_16Expand          TextureFormat = 28
	Format16_16_16_16Expand    TextureFormat = 29
	Format16Float              TextureFormat = 30
	Format16_16Float           TextureFormat = 31
	Format16_16_16_16Float     TextureFormat = 32
	Format32                   TextureFormat = 33
	Format32_32                TextureFormat = 34
	Format32_32_32_32          TextureFormat = 35
	Format32Float              TextureFormat = 36
	Format32_32Float           TextureFormat = 37
	Format32_32_32_32Float     TextureFormat = 38
	FormatDXN                  TextureFormat = 49
	FormatDXT1As16_16_16_16    TextureFormat = 51
	FormatDXT2_3As16_16_16_16  TextureFormat = 52
	FormatDXT4_5As16_16_16_16  TextureFormat = 53
	Format32_32_32Float        TextureFormat = 57
	FormatDXT3A                TextureFormat = 58
	FormatDXT5A                TextureFormat = 59
	FormatCTX1                 TextureFormat = 60
	Format8_8_8_8GammaEdram    TextureFormat = 62
	Format2_10_10_10FloatEdram TextureFormat = 63
)

// FormatInfo describes the guest storage of one [TextureFormat].
type FormatInfo struct {
	// Name is the hardware name of the format.
	Name string

	// BlockWidth and BlockHeight are the block dimensions in texels.
	BlockWidth, BlockHeight uint32

	// BytesPerBlock is the guest size of one block.
	BytesPerBlock uint32

	// Compressed is set for block-compressed encodings.
	Compressed bool
}

var formatInfos = map[TextureFormat]FormatInfo{
	Format8:                   {"k_8", 1, 1, 1, false},
	Format1_5_5_5:             {"k_1_5_5_5", 1, 1, 2, false},
	Format5_6_5:               {"k_5_6_5", 1, 1, 2, false},
	Format6_5_5:               {"k_6_5_5", 1, 1, 2, false},
	Format8_8_8_8:             {"k_8_8_8_8", 1, 1, 4, false},
	Format2_10_10_10:          {"k_2_10_10_10", 1, 1, 4, false},
	Format8A:                  {"k_8_A", 1, 1, 1, false},
	Format8B:                  {"k_8_B", 1, 1, 1, false},
	Format8_8:                 {"k_8_8", 1, 1, 2, false},
	Format8_8_8_8A:            {"k_8_8_8_8_A", 1, 1, 4, false},
	Format4_4_4_4:             {"k_4_4_4_4", 1, 1, 2, false},
	Format10_11_11:            {"k_10_11_11", 1, 1, 4, false},
	Format11_11_10:            {"k_11_11_10", 1, 1, 4, false},
	FormatDXT1:                {"k_DXT1", 4, 4, 8, true},
	FormatDXT2_3:              {"k_DXT2_3", 4, 4, 16, true},
	FormatDXT4_5:              {"k_DXT4_5", 4, 4, 16, true},
	Format24_8:                {"k_24_8", 1, 1, 4, false},
	Format24_8Float:           {"k_24_8_FLOAT", 1, 1, 4, false},
	Format16:                  {"k_16", 1, 1, 2, false},
	Format16_16:               {"k_16_16", 1, 1, 4, false},
	Format16_16_16_16:         {"k_16_16_16_16", 1, 1, 8, false},
	Format16Float:             {"k_16_FLOAT", 1, 1, 2, false},
	Format16_16Float:          {"k_16_16_FLOAT", 1, 1, 4, false},
	Format16_16_16_16Float:    {"k_16_16_16_16_FLOAT", 1, 1, 8, false},
	Format32:                  {"k_32", 1, 1, 4, false},
	Format32_32:               {"k_32_32", 1, 1, 8, false},
	Format32_32_32_32:         {"k_32_32_32_32", 1, 1, 16, false},
	Format32Float:             {"k_32_FLOAT", 1, 1, 4, false},
	Format32_32Float:          {"k_32_32_FLOAT", 1, 1, 8, false},
	Format32_32_32_32Float:    {"k_32_32_32_32_FLOAT", 1, 1, 16, false},
	FormatDXN:                 {"k_DXN", 4, 4, 16, true},
	FormatDXT1As16_16_16_16:   {"k_DXT1_AS_16_16_16_16", 4, 4, 8, true},
	FormatDXT2_3As16_16_16_16: {"k_DXT2_3_AS_16_16_16_16", 4, 4, 16, true},
	FormatDXT4_5As16_16_16_16: {"k_DXT4_5_AS_16_16_16_16", 4, 4, 16, true},
	Format32_32_32Float:       {"k_32_32_32_FLOAT", 1, 1, 12, false},
	FormatDXT3A:               {"k_DXT3A", 4, 4, 8, true},
	FormatDXT5A:               {"k_DXT5A", 4, 4, 8, true},
	FormatCTX1:                {"k_CTX1", 4, 4, 8, true},
}

// Info returns the guest storage description of f.
// ok is false for formats this package does not describe.
func (f TextureFormat) Info() (info FormatInfo, ok bool) {
	info, ok = formatInfos[f]
	return info, ok
}

// String returns the hardware name of the format.
func (f TextureFormat) String() string {
	if info, ok := formatInfos[f]; ok {
		return info.Name
	}
	return fmt.Sprintf("TextureFormat(%d)", uint32(f))
}

// Endian is the byte-swap mode applied to guest data.
type Endian uint8

// Byte-swap modes.
const (
	// EndianNone stores data as is.
	EndianNone Endian = iota
	// Endian8in16 swaps the bytes of each 16-bit word.
	Endian8in16
	// Endian8in32 reverses the bytes of each 32-bit word.
	Endian8in32
	// Endian16in32 swaps the 16-bit halves of each 32-bit word.
	Endian16in32
)

func (e Endian) String() string {
	switch e {
	case EndianNone:
		return "none"
	case Endian8in16:
		return "8in16"
	case Endian8in32:
		return "8in32"
	case Endian16in32:
		return "16in32"
	default:
		return fmt.Sprintf("Endian(%d)", uint8(e))
	}
}
