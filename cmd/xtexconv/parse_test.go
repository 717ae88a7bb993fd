package main

import (
	"testing"

	"github.com/gogpu/xenostex/xenos"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		want xenos.TextureFormat
	}{
		{"k_8_8_8_8", xenos.Format8_8_8_8},
		{"8_8_8_8", xenos.Format8_8_8_8},
		{"k_dxt1", xenos.FormatDXT1},
		{"K_32_FLOAT", xenos.Format32Float},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFormat(tt.name)
			if err != nil {
				t.Fatalf("parseFormat() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseFormat() = %v, want %v", got, tt.want)
			}
		})
	}
	if _, err := parseFormat("k_9_9_9"); err == nil {
		t.Error("parseFormat() accepted an unknown name")
	}
}

func TestParseInfo(t *testing.T) {
	info, err := parseInfo("k_8", "1d", "8in32", 64, 16, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	want := xenos.TextureInfo{
		Width: 64, Height: 1, Depth: 1, MipLevels: 1,
		Dimension: xenos.Dimension1D, Format: xenos.Format8,
		Endian: xenos.Endian8in32, Tiled: true,
	}
	if info != want {
		t.Errorf("parseInfo() = %+v, want %+v", info, want)
	}

	bad := []struct {
		name                      string
		format, dimension, endian string
		width, height             uint32
	}{
		{"format", "k_nope", "2d", "none", 4, 4},
		{"dimension", "k_8", "3d", "none", 4, 4},
		{"endian", "k_8", "2d", "big", 4, 4},
		{"zero width", "k_8", "2d", "none", 0, 4},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseInfo(tt.format, tt.dimension, tt.endian, tt.width, tt.height, 0, false); err == nil {
				t.Error("parseInfo() succeeded")
			}
		})
	}
}
