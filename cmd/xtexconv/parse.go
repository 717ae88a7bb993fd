package main

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/xenos"
)

// maxFormat bounds the hardware format enumeration.
const maxFormat = 64

func parseFormat(name string) (xenos.TextureFormat, error) {
	name = strings.ToLower(name)
	if !strings.HasPrefix(name, "k_") {
		name = "k_" + name
	}
	for f := range xenos.TextureFormat(maxFormat) {
		if info, ok := f.Info(); ok && strings.ToLower(info.Name) == name {
			return f, nil
		}
	}
	return 0, errors.Newf("unknown texture format %q", name)
}

func parseEndian(name string) (xenos.Endian, error) {
	for e := xenos.EndianNone; e <= xenos.Endian16in32; e++ {
		if e.String() == name {
			return e, nil
		}
	}
	return 0, errors.Newf("unknown endian mode %q", name)
}

func parseDimension(name string) (xenos.Dimension, error) {
	switch strings.ToLower(name) {
	case "1d":
		return xenos.Dimension1D, nil
	case "2d":
		return xenos.Dimension2D, nil
	case "cube":
		return xenos.DimensionCube, nil
	default:
		return 0, errors.Newf("unsupported dimension %q", name)
	}
}

// parseInfo builds the descriptor shared by all dumps. Dumps start at
// guest address zero.
func parseInfo(format, dimension, endian string, width, height, pitch uint32, tiled bool) (xenos.TextureInfo, error) {
	f, err := parseFormat(format)
	if err != nil {
		return xenos.TextureInfo{}, err
	}
	d, err := parseDimension(dimension)
	if err != nil {
		return xenos.TextureInfo{}, err
	}
	e, err := parseEndian(endian)
	if err != nil {
		return xenos.TextureInfo{}, err
	}
	if width == 0 || height == 0 {
		return xenos.TextureInfo{}, errors.New("width and height must be positive")
	}
	if d == xenos.Dimension1D {
		height = 1
	}
	return xenos.TextureInfo{
		Width:     width,
		Height:    height,
		Depth:     1,
		MipLevels: 1,
		Dimension: d,
		Format:    f,
		Endian:    e,
		Tiled:     tiled,
		Pitch:     pitch,
	}, nil
}
