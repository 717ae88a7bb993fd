//go:build !nogpu

package native

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/xenostex/gpucore"
)

// Fence tracks the latest queue submission made with it. It is signaled
// once the queue reports that submission index complete.
type Fence struct {
	queue atomic.Pointer[hal.Queue]
	index atomic.Uint64
}

func (f *Fence) attach(q hal.Queue, index uint64) {
	f.queue.Store(&q)
	f.index.Store(index)
}

// Signaled reports whether the last submission made with the fence has
// completed. An unused or reset fence is unsignaled.
func (f *Fence) Signaled() bool {
	q := f.queue.Load()
	index := f.index.Load()
	if q == nil || index == 0 {
		return false
	}
	return (*q).PollCompleted() >= index
}

// NewFence creates an unsignaled fence.
func (d *Device) NewFence() (gpucore.Fence, error) {
	return &Fence{}, nil
}

// ResetFence returns a fence to the unsignaled state.
func (d *Device) ResetFence(fence gpucore.Fence) error {
	f, ok := fence.(*Fence)
	if !ok || f == nil {
		return errors.Newf("native: foreign fence %T", fence)
	}
	f.index.Store(0)
	return nil
}

// DestroyFence releases a fence. Queue fences hold no device resources.
func (d *Device) DestroyFence(gpucore.Fence) {}
