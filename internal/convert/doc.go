// Package convert turns guest texel data into host upload layouts and back.
//
// All functions are pure: they read and write caller-owned byte slices and
// never touch GPU objects. The host layout of a texture is described by
// [HostLayout]; rows are aligned to [gpucore.CopyPitchAlignment] so the
// converted bytes can be copied into an image without repacking.
package convert
