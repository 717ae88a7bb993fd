//go:build !nogpu

package native

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

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

// CommandBuffer records commands for a native Device. IDs are resolved
// and encoded into a HAL command encoder at submission.
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

// submission keeps an encoder alive until the GPU retires its work.
type submission struct {
	index   uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
}

// === Command Recording and Execution ===

// NewCommandBuffer returns an empty command buffer.
func (d *Device) NewCommandBuffer(label string) (gpucore.CommandBuffer, error) {
	return &CommandBuffer{label: label}, nil
}

// Submit encodes and submits cmd. The fence signals when the queue
// reports the submission complete.
func (d *Device) Submit(cmd gpucore.CommandBuffer, fence gpucore.Fence) error {
	cb, f, err := unwrap(cmd, fence)
	if err != nil {
		return err
	}
	if cb.submitted {
		return errors.Newf("native: command buffer %q submitted twice", cb.label)
	}
	cb.submitted = true

	_, err = d.submit(cb, f)
	d.mu.Lock()
	d.stats.Submits++
	d.mu.Unlock()
	return err
}

// Flush submits the recorded commands, waits for the GPU to go idle and
// leaves cmd open for further recording.
func (d *Device) Flush(cmd gpucore.CommandBuffer, fence gpucore.Fence) error {
	cb, f, err := unwrap(cmd, fence)
	if err != nil {
		return err
	}
	if cb.submitted {
		return errors.Newf("native: command buffer %q already submitted", cb.label)
	}

	if _, err := d.submit(cb, f); err != nil {
		return err
	}
	if err := d.device.WaitIdle(); err != nil {
		return errors.Wrapf(err, "native: wait for %q", cb.label)
	}
	d.retire(false)

	d.mu.Lock()
	d.stats.Flushes++
	d.mu.Unlock()
	return nil
}

// submit encodes cb, submits it and attaches the submission to f.
func (d *Device) submit(cb *CommandBuffer, f *Fence) (uint64, error) {
	commands := cb.commands
	cb.commands = nil

	encoder, raw, err := d.encode(cb.label, commands)
	if err != nil {
		return 0, err
	}

	d.submitMu.Lock()
	index, err := d.queue.Submit([]hal.CommandBuffer{raw})
	if err != nil {
		d.submitMu.Unlock()
		d.device.FreeCommandBuffer(raw)
		encoder.Destroy()
		return 0, errors.Wrapf(err, "native: submit %q", cb.label)
	}
	d.inFlight = append(d.inFlight, submission{index: index, encoder: encoder, cmd: raw})
	d.submitMu.Unlock()

	if f != nil {
		f.attach(d.queue, index)
	}
	d.retire(false)
	return index, nil
}

// encode replays recorded commands into a new HAL encoder.
func (d *Device) encode(label string, commands []command) (hal.CommandEncoder, hal.CommandBuffer, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "native: create encoder %q", label)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		encoder.Destroy()
		return nil, nil, errors.Wrapf(err, "native: begin %q", label)
	}

	var errs error
	d.mu.RLock()
	for _, cmd := range commands {
		t, ok := d.textures[cmd.texture]
		if !ok {
			errs = errors.CombineErrors(errs, errors.Newf("native: texture %d not found", cmd.texture))
			continue
		}
		if cmd.kind == cmdTransition {
			encoder.TransitionTextures([]hal.TextureBarrier{{
				Texture: t.raw,
				Range: hal.TextureRange{
					Aspect:          gputypes.TextureAspectAll,
					MipLevelCount:   max(t.desc.MipLevelCount, 1),
					ArrayLayerCount: max(t.desc.Size.DepthOrArrayLayers, 1),
				},
				Usage: hal.TextureUsageTransition{OldUsage: cmd.from, NewUsage: cmd.to},
			}})
			continue
		}
		b, ok := d.buffers[cmd.buffer]
		if !ok {
			errs = errors.CombineErrors(errs, errors.Newf("native: buffer %d not found", cmd.buffer))
			continue
		}
		regions := halCopies(t.raw, cmd.regions)
		if cmd.kind == cmdCopyBufferToTexture {
			encoder.CopyBufferToTexture(b.raw, t.raw, regions)
		} else {
			encoder.CopyTextureToBuffer(t.raw, b.raw, regions)
		}
	}
	d.mu.RUnlock()

	if errs != nil {
		encoder.DiscardEncoding()
		encoder.Destroy()
		return nil, nil, errors.Wrapf(errs, "native: encode %q", label)
	}
	raw, err := encoder.EndEncoding()
	if err != nil {
		encoder.Destroy()
		return nil, nil, errors.Wrapf(err, "native: end %q", label)
	}
	return encoder, raw, nil
}

func halCopies(tex hal.Texture, regions []gpucore.BufferTextureCopy) []hal.BufferTextureCopy {
	out := make([]hal.BufferTextureCopy, len(regions))
	for i, r := range regions {
		out[i] = hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{
				Offset:       r.BufferOffset,
				BytesPerRow:  r.BytesPerRow,
				RowsPerImage: r.RowsPerImage,
			},
			TextureBase: hal.ImageCopyTexture{
				Texture:  tex,
				MipLevel: r.MipLevel,
				Origin:   hal.Origin3D{X: r.Origin.X, Y: r.Origin.Y, Z: r.Origin.Z},
				Aspect:   gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{
				Width:              r.Size.Width,
				Height:             r.Size.Height,
				DepthOrArrayLayers: max(r.Size.DepthOrArrayLayers, 1),
			},
		}
	}
	return out
}

// retire frees encoders whose submission completed, or all of them.
func (d *Device) retire(all bool) {
	completed := d.queue.PollCompleted()

	d.submitMu.Lock()
	var done []submission
	live := d.inFlight[:0]
	for _, s := range d.inFlight {
		if all || s.index <= completed {
			done = append(done, s)
		} else {
			live = append(live, s)
		}
	}
	clear(d.inFlight[len(live):])
	d.inFlight = live
	d.submitMu.Unlock()

	for _, s := range done {
		d.device.FreeCommandBuffer(s.cmd)
		s.encoder.Destroy()
	}
}

func unwrap(cmd gpucore.CommandBuffer, fence gpucore.Fence) (*CommandBuffer, *Fence, error) {
	cb, ok := cmd.(*CommandBuffer)
	if !ok || cb == nil {
		return nil, nil, errors.Newf("native: foreign command buffer %T", cmd)
	}
	if fence == nil {
		return cb, nil, nil
	}
	f, ok := fence.(*Fence)
	if !ok {
		return nil, nil, errors.Newf("native: foreign fence %T", fence)
	}
	return cb, f, nil
}
