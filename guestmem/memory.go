// Package guestmem is an in-process model of guest physical memory with a
// write-watch service.
//
// Watches cover a byte range and stay registered until cancelled. Every
// Write that overlaps a watched range calls the watch's callback on the
// writing goroutine, after the data is stored and without any lock held.
// Translate exposes memory directly; writes through the returned slice do
// not fire watches.
package guestmem

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrOutOfRange is returned for accesses outside the memory.
var ErrOutOfRange = errors.New("guestmem: address range out of bounds")

// WatchHandle identifies a registered watch. The zero value is never
// returned by AddWatch.
type WatchHandle uint64

// WatchCallback is called with the first written address inside the
// watched range.
type WatchCallback func(addr uint32)

type watch struct {
	base, end uint64
	fn        WatchCallback
}

// Memory is a contiguous guest address range.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	base    uint32
	data    []byte
	watches map[WatchHandle]watch
	next    WatchHandle
}

// New allocates size zeroed bytes starting at guest address base.
func New(base, size uint32) *Memory {
	return FromBytes(base, make([]byte, size))
}

// FromBytes wraps data as guest memory starting at base. The memory takes
// ownership of data.
func FromBytes(base uint32, data []byte) *Memory {
	return &Memory{
		base:    base,
		data:    data,
		watches: make(map[WatchHandle]watch),
	}
}

// Base returns the first guest address.
func (m *Memory) Base() uint32 { return m.base }

// Size returns the number of bytes.
func (m *Memory) Size() uint32 { return uint32(len(m.data)) }

func (m *Memory) span(addr, n uint32) (start, end uint64, ok bool) {
	if addr < m.base {
		return 0, 0, false
	}
	start = uint64(addr - m.base)
	end = start + uint64(n)
	return start, end, end <= uint64(len(m.data))
}

// Translate returns the host view of [addr, addr+n), or nil when the range
// is not fully inside the memory.
func (m *Memory) Translate(addr, n uint32) []byte {
	start, end, ok := m.span(addr, n)
	if !ok {
		return nil
	}
	return m.data[start:end:end]
}

// Read copies guest bytes at addr into p.
func (m *Memory) Read(addr uint32, p []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, end, ok := m.span(addr, uint32(len(p)))
	if !ok {
		return errors.Wrapf(ErrOutOfRange, "read [%#x, +%d)", addr, len(p))
	}
	copy(p, m.data[start:end])
	return nil
}

// Write stores p at addr and fires every watch overlapping the range.
func (m *Memory) Write(addr uint32, p []byte) error {
	m.mu.Lock()
	start, end, ok := m.span(addr, uint32(len(p)))
	if !ok {
		m.mu.Unlock()
		return errors.Wrapf(ErrOutOfRange, "write [%#x, +%d)", addr, len(p))
	}
	copy(m.data[start:end], p)

	type hit struct {
		handle WatchHandle
		fn     WatchCallback
		addr   uint32
	}
	var hits []hit
	wstart, wend := uint64(addr), uint64(addr)+uint64(len(p))
	for h, w := range m.watches {
		if wstart < w.end && w.base < wend {
			hits = append(hits, hit{h, w.fn, uint32(max(wstart, w.base))})
		}
	}
	m.mu.Unlock()

	// Deterministic callback order.
	sort.Slice(hits, func(i, j int) bool { return hits[i].handle < hits[j].handle })
	for _, h := range hits {
		h.fn(h.addr)
	}
	return nil
}

// AddWatch registers fn for writes to [base, base+length).
func (m *Memory) AddWatch(base, length uint32, fn WatchCallback) WatchHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.watches[m.next] = watch{
		base: uint64(base),
		end:  uint64(base) + uint64(length),
		fn:   fn,
	}
	return m.next
}

// CancelWatch unregisters a watch. Unknown handles are ignored.
func (m *Memory) CancelWatch(h WatchHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watches, h)
}

// Watches returns the number of registered watches.
func (m *Memory) Watches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watches)
}
