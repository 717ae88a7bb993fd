// Package staging implements the fenced ring of host-visible memory used to
// move converted texel data between the host and the GPU.
package staging

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
)

// DefaultAlignment is the offset alignment of allocations. It matches the
// buffer offset requirement of texture copies.
const DefaultAlignment = 512

// Allocation is a reserved range of the ring.
type Allocation struct {
	// Offset is the byte offset of the range in the ring buffer.
	Offset uint64

	// Length is the requested length; the reserved range may be larger.
	Length uint64

	// Data is the host mapping of the range, Length bytes long.
	Data []byte

	// Buffer is the ring's buffer.
	Buffer gpucore.BufferID

	aligned  uint64
	fence    gpucore.Fence
	released bool
}

// Released reports whether the ring has reclaimed the allocation. Data must
// not be used after that.
func (a *Allocation) Released() bool { return a.released }

// Ring is a circular buffer over one host-visible GPU buffer. Allocations
// are released in order once the fence they were acquired with signals.
//
// Ring is not safe for concurrent use.
type Ring struct {
	device    gpucore.Device
	buffer    gpucore.BufferID
	mapped    []byte
	capacity  uint64
	alignment uint64

	// writeHead is where the next allocation starts; readHead is the
	// start of the oldest live allocation.
	writeHead uint64
	readHead  uint64
	live      []*Allocation
}

// New creates a ring of capacity bytes. usage is added to the copy usages
// every staging buffer needs.
func New(device gpucore.Device, label string, capacity uint64, usage gputypes.BufferUsage) (*Ring, error) {
	if capacity == 0 {
		return nil, errors.New("staging: zero capacity")
	}
	buffer, err := device.CreateBuffer(label, capacity,
		usage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, errors.Wrapf(err, "staging: create %d byte buffer", capacity)
	}
	mapped, err := device.MappedRange(buffer)
	if err != nil {
		device.DestroyBuffer(buffer)
		return nil, errors.Wrap(err, "staging: map buffer")
	}
	return &Ring{
		device:    device,
		buffer:    buffer,
		mapped:    mapped,
		capacity:  capacity,
		alignment: DefaultAlignment,
	}, nil
}

// Buffer returns the ring's buffer.
func (r *Ring) Buffer() gpucore.BufferID { return r.buffer }

// Capacity returns the size of the ring in bytes.
func (r *Ring) Capacity() uint64 { return r.capacity }

// Live returns the number of allocations not yet reclaimed.
func (r *Ring) Live() int { return len(r.live) }

// CanAcquire reports whether an allocation of n bytes would succeed now.
func (r *Ring) CanAcquire(n uint64) bool {
	_, ok := r.place(r.align(n))
	return ok
}

// Acquire reserves n contiguous bytes. The range stays reserved until a
// Scavenge observes fence signaled. ok is false when the ring lacks
// contiguous space.
func (r *Ring) Acquire(n uint64, fence gpucore.Fence) (alloc *Allocation, ok bool) {
	aligned := r.align(n)
	offset, ok := r.place(aligned)
	if !ok {
		return nil, false
	}
	if len(r.live) == 0 {
		r.readHead = offset
	}
	alloc = &Allocation{
		Offset:  offset,
		Length:  n,
		Data:    r.mapped[offset : offset+n : offset+n],
		Buffer:  r.buffer,
		aligned: aligned,
		fence:   fence,
	}
	r.live = append(r.live, alloc)
	r.writeHead = offset + aligned
	return alloc, true
}

// place returns the offset an allocation of n aligned bytes would use.
func (r *Ring) place(n uint64) (uint64, bool) {
	if n == 0 || n > r.capacity {
		return 0, false
	}
	if len(r.live) == 0 {
		return 0, true
	}
	if r.writeHead > r.readHead {
		if r.capacity-r.writeHead >= n {
			return r.writeHead, true
		}
		// Wrap; the tail past writeHead is skipped.
		if r.readHead >= n {
			return 0, true
		}
		return 0, false
	}
	if r.readHead-r.writeHead >= n {
		return r.writeHead, true
	}
	return 0, false
}

func (r *Ring) align(n uint64) uint64 {
	return (n + r.alignment - 1) / r.alignment * r.alignment
}

// Scavenge releases allocations, oldest first, up to the first one whose
// fence has not signaled. It returns the number of released allocations.
func (r *Ring) Scavenge() int {
	n := 0
	for n < len(r.live) && signaled(r.live[n].fence) {
		r.live[n].released = true
		r.live[n] = nil
		n++
	}
	r.live = r.live[n:]
	if len(r.live) == 0 {
		r.live = nil
		r.readHead, r.writeHead = 0, 0
	} else {
		r.readHead = r.live[0].Offset
	}
	return n
}

// Release gives up an allocation whose fence will never be submitted. The
// newest allocation is reclaimed at once; an older one is reclaimed by the
// next Scavenge that reaches it.
func (r *Ring) Release(alloc *Allocation) {
	if alloc == nil || alloc.released {
		return
	}
	alloc.fence = nil
	n := len(r.live)
	if n == 0 || r.live[n-1] != alloc {
		return
	}
	alloc.released = true
	r.live[n-1] = nil
	r.live = r.live[:n-1]
	if len(r.live) == 0 {
		r.live = nil
		r.readHead, r.writeHead = 0, 0
		return
	}
	r.writeHead = alloc.Offset
}

// Clear releases every allocation regardless of fences. Only valid once the
// GPU no longer reads the ring.
func (r *Ring) Clear() {
	for _, a := range r.live {
		a.released = true
	}
	r.live = nil
	r.readHead, r.writeHead = 0, 0
}

// Flush publishes host writes to the allocation.
func (r *Ring) Flush(alloc *Allocation) error {
	return r.device.FlushMappedRange(r.buffer, alloc.Offset, alloc.Length)
}

// Invalidate makes GPU writes to the allocation visible in Data.
func (r *Ring) Invalidate(alloc *Allocation) error {
	return r.device.InvalidateMappedRange(r.buffer, alloc.Offset, alloc.Length)
}

// Destroy releases the buffer.
func (r *Ring) Destroy() {
	r.Clear()
	r.mapped = nil
	if r.buffer != gpucore.InvalidID {
		r.device.DestroyBuffer(r.buffer)
		r.buffer = gpucore.InvalidID
	}
}

func signaled(f gpucore.Fence) bool {
	return f == nil || f.Signaled()
}
