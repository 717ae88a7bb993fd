package software

import "github.com/gogpu/gputypes"

type blockInfo struct {
	width, height uint32
	bytes         uint32
}

var blockInfos = map[gputypes.TextureFormat]blockInfo{
	gputypes.TextureFormatR8Unorm:      {1, 1, 1},
	gputypes.TextureFormatRG8Unorm:     {1, 1, 2},
	gputypes.TextureFormatRGBA8Unorm:   {1, 1, 4},
	gputypes.TextureFormatBGRA8Unorm:   {1, 1, 4},
	gputypes.TextureFormatRGB10A2Unorm: {1, 1, 4},
	gputypes.TextureFormatR16Float:     {1, 1, 2},
	gputypes.TextureFormatRG16Float:    {1, 1, 4},
	gputypes.TextureFormatRGBA16Float:  {1, 1, 8},
	gputypes.TextureFormatR32Float:     {1, 1, 4},
	gputypes.TextureFormatRG32Float:    {1, 1, 8},
	gputypes.TextureFormatRGBA32Float:  {1, 1, 16},
	gputypes.TextureFormatBC1RGBAUnorm: {4, 4, 8},
	gputypes.TextureFormatBC2RGBAUnorm: {4, 4, 16},
	gputypes.TextureFormatBC3RGBAUnorm: {4, 4, 16},
	gputypes.TextureFormatBC5RGUnorm:   {4, 4, 16},
}
