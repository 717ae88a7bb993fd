package software

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
)

type commandKind uint8

const (
	cmdCopyBufferToTexture commandKind = iota
	cmdCopyTextureToBuffer
	cmdTransition
)

type command struct {
	kind    commandKind
	buffer  gpucore.BufferID
	texture gpucore.TextureID
	regions []gpucore.BufferTextureCopy
	from    gputypes.TextureUsage
	to      gputypes.TextureUsage
}

// CommandBuffer records commands for a software Device.
// It is not safe for concurrent use.
type CommandBuffer struct {
	label     string
	commands  []command
	submitted bool
}

var _ gpucore.CommandBuffer = (*CommandBuffer)(nil)

// CopyBufferToTexture records a buffer to texture copy.
func (c *CommandBuffer) CopyBufferToTexture(src gpucore.BufferID, dst gpucore.TextureID, regions []gpucore.BufferTextureCopy) {
	c.commands = append(c.commands, command{
		kind:    cmdCopyBufferToTexture,
		buffer:  src,
		texture: dst,
		regions: append([]gpucore.BufferTextureCopy(nil), regions...),
	})
}

// CopyTextureToBuffer records a texture to buffer copy.
func (c *CommandBuffer) CopyTextureToBuffer(src gpucore.TextureID, dst gpucore.BufferID, regions []gpucore.BufferTextureCopy) {
	c.commands = append(c.commands, command{
		kind:    cmdCopyTextureToBuffer,
		buffer:  dst,
		texture: src,
		regions: append([]gpucore.BufferTextureCopy(nil), regions...),
	})
}

// TransitionTexture records a usage transition.
func (c *CommandBuffer) TransitionTexture(tex gpucore.TextureID, from, to gputypes.TextureUsage) {
	c.commands = append(c.commands, command{
		kind:    cmdTransition,
		texture: tex,
		from:    from,
		to:      to,
	})
}

// Len returns the number of recorded, unsubmitted commands.
func (c *CommandBuffer) Len() int {
	return len(c.commands)
}

// Copies returns the number of recorded, unsubmitted copy commands.
func (c *CommandBuffer) Copies() int {
	n := 0
	for _, cmd := range c.commands {
		if cmd.kind != cmdTransition {
			n++
		}
	}
	return n
}

// execute runs commands in order. Caller must hold d.mu.
func (d *Device) execute(commands []command) error {
	var errs error
	for _, cmd := range commands {
		t, ok := d.textures[cmd.texture]
		if !ok {
			errs = errors.CombineErrors(errs, errors.Newf("software: texture %d not found", cmd.texture))
			continue
		}
		if cmd.kind == cmdTransition {
			t.usage = cmd.to
			continue
		}
		b, ok := d.buffers[cmd.buffer]
		if !ok {
			errs = errors.CombineErrors(errs, errors.Newf("software: buffer %d not found", cmd.buffer))
			continue
		}
		for _, r := range cmd.regions {
			if err := copyRegion(t, b, r, cmd.kind == cmdCopyBufferToTexture); err != nil {
				errs = errors.CombineErrors(errs, err)
				continue
			}
			if cmd.kind == cmdCopyBufferToTexture {
				d.stats.CopiesToTexture++
			} else {
				d.stats.CopiesToBuffer++
			}
		}
	}
	return errs
}

// copyRegion moves block rows between a buffer and a texture.
func copyRegion(t *texture, b *buffer, r gpucore.BufferTextureCopy, toTexture bool) error {
	if r.MipLevel != 0 {
		return errors.Newf("software: mip level %d not stored", r.MipLevel)
	}
	if r.BytesPerRow%gpucore.CopyPitchAlignment != 0 {
		return errors.Newf("software: bytes per row %d not aligned", r.BytesPerRow)
	}
	bw, bh, bpb := t.block.width, t.block.height, t.block.bytes
	if r.Origin.X%bw != 0 || r.Origin.Y%bh != 0 {
		return errors.Newf("software: origin (%d,%d) not block aligned", r.Origin.X, r.Origin.Y)
	}

	cols := (r.Size.Width + bw - 1) / bw
	rows := (r.Size.Height + bh - 1) / bh
	x0, y0 := r.Origin.X/bw, r.Origin.Y/bh
	if x0+cols > t.blocksWide() || y0+rows > t.blocksHigh() {
		return errors.Newf("software: region %+v outside texture %q", r, t.desc.Label)
	}
	layers := max(r.Size.DepthOrArrayLayers, 1)
	if r.Origin.Z+layers > uint32(len(t.layers)) {
		return errors.Newf("software: layers [%d, %d) outside texture %q", r.Origin.Z, r.Origin.Z+layers, t.desc.Label)
	}
	rowsPerImage := r.RowsPerImage
	if rowsPerImage == 0 {
		rowsPerImage = r.Size.Height
	}
	imageStride := uint64((rowsPerImage+bh-1)/bh) * uint64(r.BytesPerRow)
	rowBytes := uint64(cols * bpb)
	texPitch := uint64(t.blocksWide() * bpb)

	for layer := range layers {
		img := t.layers[r.Origin.Z+layer]
		for row := range uint64(rows) {
			bufOff := r.BufferOffset + uint64(layer)*imageStride + row*uint64(r.BytesPerRow)
			if bufOff+rowBytes > uint64(len(b.data)) {
				return errors.Newf("software: buffer %q too small for region %+v", b.label, r)
			}
			texOff := (uint64(y0)+row)*texPitch + uint64(x0*bpb)
			if toTexture {
				copy(img[texOff:texOff+rowBytes], b.data[bufOff:bufOff+rowBytes])
			} else {
				copy(b.data[bufOff:bufOff+rowBytes], img[texOff:texOff+rowBytes])
			}
		}
	}
	return nil
}
