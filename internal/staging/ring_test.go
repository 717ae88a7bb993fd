package staging

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/backend/software"
	"github.com/gogpu/xenostex/gpucore"
)

func newRing(t *testing.T, capacity uint64) (*Ring, *software.Device) {
	t.Helper()
	dev := software.New(software.WithManualFences())
	r, err := New(dev, "staging", capacity, gputypes.BufferUsageMapWrite)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(r.Destroy)
	return r, dev
}

func newFence(t *testing.T, dev gpucore.Device) *software.Fence {
	t.Helper()
	f, err := dev.NewFence()
	if err != nil {
		t.Fatalf("NewFence() error = %v", err)
	}
	return f.(*software.Fence)
}

func TestRingAcquire(t *testing.T) {
	r, dev := newRing(t, 4096)
	f := newFence(t, dev)

	a, ok := r.Acquire(100, f)
	if !ok {
		t.Fatal("Acquire(100) failed")
	}
	if a.Offset != 0 || a.Length != 100 || len(a.Data) != 100 {
		t.Errorf("first allocation = %+v", a)
	}
	b, ok := r.Acquire(100, f)
	if !ok || b.Offset != DefaultAlignment {
		t.Errorf("second allocation offset = %d, want %d", b.Offset, DefaultAlignment)
	}
	if r.Live() != 2 {
		t.Errorf("Live() = %d, want 2", r.Live())
	}
}

func TestRingExhaustionAndScavenge(t *testing.T) {
	r, dev := newRing(t, 2048)
	f := newFence(t, dev)

	if _, ok := r.Acquire(2048, f); !ok {
		t.Fatal("Acquire(full) failed")
	}
	if r.CanAcquire(1) {
		t.Fatal("CanAcquire(1) on a full ring")
	}
	if n := r.Scavenge(); n != 0 {
		t.Fatalf("Scavenge() released %d allocations before the fence signaled", n)
	}

	f.Signal()
	if n := r.Scavenge(); n != 1 {
		t.Fatalf("Scavenge() = %d, want 1", n)
	}
	if !r.CanAcquire(2048) {
		t.Error("ring not empty after scavenge")
	}
}

func TestRingWraps(t *testing.T) {
	r, dev := newRing(t, 4096)
	first, second := newFence(t, dev), newFence(t, dev)

	a, _ := r.Acquire(1024, first)
	if _, ok := r.Acquire(2048, second); !ok {
		t.Fatal("Acquire(2048) failed")
	}
	// 1024 bytes remain at the tail; a larger request must wait for the head.
	if r.CanAcquire(1536) {
		t.Fatal("CanAcquire(1536) before the head is released")
	}

	first.Signal()
	r.Scavenge()
	c, ok := r.Acquire(1024, first)
	if !ok {
		t.Fatal("Acquire(1024) into the tail failed")
	}
	if c.Offset != 3072 {
		t.Errorf("tail allocation offset = %d, want 3072", c.Offset)
	}
	d, ok := r.Acquire(512, first)
	if !ok || d.Offset != a.Offset {
		t.Errorf("wrapped allocation = %+v, %t, want offset 0", d, ok)
	}
	if r.CanAcquire(1024) {
		t.Error("CanAcquire(1024) with only 512 free bytes before the read head")
	}
}

func TestRingScavengeStopsAtUnsignaled(t *testing.T) {
	r, dev := newRing(t, 4096)
	done, busy := newFence(t, dev), newFence(t, dev)

	first, _ := r.Acquire(512, busy)
	second, _ := r.Acquire(512, done)
	done.Signal()
	if n := r.Scavenge(); n != 0 {
		t.Errorf("Scavenge() = %d, want 0 (oldest allocation busy)", n)
	}
	if second.Released() {
		t.Error("allocation behind a busy one was released")
	}
	busy.Signal()
	if n := r.Scavenge(); n != 2 {
		t.Errorf("Scavenge() = %d, want 2", n)
	}
	if !first.Released() || !second.Released() {
		t.Error("Released() = false after Scavenge")
	}
}

func TestRingRejectsOversized(t *testing.T) {
	r, dev := newRing(t, 1024)
	if _, ok := r.Acquire(2048, newFence(t, dev)); ok {
		t.Error("Acquire larger than the ring succeeded")
	}
	if r.CanAcquire(0) {
		t.Error("CanAcquire(0) = true")
	}
}

func TestRingFlushPublishesWrites(t *testing.T) {
	r, dev := newRing(t, 1024)
	a, _ := r.Acquire(4, newFence(t, dev))
	copy(a.Data, []byte{9, 8, 7, 6})

	data, _ := dev.BufferData(r.Buffer())
	if data[0] != 0 {
		t.Fatal("write visible before Flush")
	}
	if err := r.Flush(a); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	data, _ = dev.BufferData(r.Buffer())
	if data[0] != 9 || data[3] != 6 {
		t.Errorf("device data = %v", data[:4])
	}
}

func TestRingClear(t *testing.T) {
	r, dev := newRing(t, 1024)
	r.Acquire(1024, newFence(t, dev))
	r.Clear()
	if r.Live() != 0 || !r.CanAcquire(1024) {
		t.Error("Clear() did not release allocations")
	}
}

func TestRingRelease(t *testing.T) {
	r, dev := newRing(t, 2048)
	older, newer := newFence(t, dev), newFence(t, dev)

	a, _ := r.Acquire(1024, older)
	b, ok := r.Acquire(1024, newer)
	if !ok {
		t.Fatal("Acquire() failed on an empty ring")
	}

	// The newest allocation is returned to the ring at once.
	r.Release(b)
	if !b.Released() || r.Live() != 1 {
		t.Fatalf("Release(newest): released = %v, Live() = %d", b.Released(), r.Live())
	}
	c, ok := r.Acquire(1024, newer)
	if !ok || c.Offset != 1024 {
		t.Fatalf("Acquire() after Release = %+v, %v; want offset 1024", c, ok)
	}

	// An older one no longer holds back Scavenge.
	r.Release(a)
	if a.Released() {
		t.Error("Release(older) reclaimed an allocation ahead of the read head")
	}
	older.Signal()
	newer.Signal()
	if n := r.Scavenge(); n != 2 || r.Live() != 0 {
		t.Errorf("Scavenge() = %d, Live() = %d; want 2, 0", n, r.Live())
	}
}

func TestRingReleaseUnblocksScavenge(t *testing.T) {
	r, dev := newRing(t, 2048)
	never, done := newFence(t, dev), newFence(t, dev)

	a, _ := r.Acquire(512, never)
	b, _ := r.Acquire(512, done)
	done.Signal()
	if n := r.Scavenge(); n != 0 {
		t.Fatalf("Scavenge() = %d before Release, want 0", n)
	}
	r.Release(a)
	if n := r.Scavenge(); n != 2 || !b.Released() {
		t.Errorf("Scavenge() = %d after Release, want 2", n)
	}
}
