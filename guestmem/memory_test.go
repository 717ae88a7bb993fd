package guestmem

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestTranslate(t *testing.T) {
	m := New(0x1000, 0x100)

	if got := m.Translate(0x1000, 0x100); len(got) != 0x100 {
		t.Errorf("Translate(full) len = %d", len(got))
	}
	if got := m.Translate(0x10F0, 0x20); got != nil {
		t.Error("Translate past the end returned data")
	}
	if got := m.Translate(0x0FFF, 1); got != nil {
		t.Error("Translate below base returned data")
	}

	view := m.Translate(0x1010, 4)
	copy(view, []byte{1, 2, 3, 4})
	p := make([]byte, 4)
	if err := m.Read(0x1010, p); err != nil || !bytes.Equal(p, []byte{1, 2, 3, 4}) {
		t.Errorf("Read() = %v, %v", p, err)
	}
}

func TestWriteFiresOverlappingWatches(t *testing.T) {
	m := New(0, 0x1000)
	var got []uint32
	m.AddWatch(0x100, 0x100, func(addr uint32) { got = append(got, addr) })
	m.AddWatch(0x400, 0x100, func(uint32) { t.Error("disjoint watch fired") })

	if err := m.Write(0xF0, make([]byte, 0x20)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := m.Write(0x1FF, []byte{1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := m.Write(0x200, []byte{1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(got) != 2 || got[0] != 0x100 || got[1] != 0x1FF {
		t.Errorf("callback addresses = %#x", got)
	}
}

func TestWatchesPersistUntilCancelled(t *testing.T) {
	m := New(0, 0x100)
	var fired int
	h := m.AddWatch(0, 0x10, func(uint32) { fired++ })

	for range 3 {
		_ = m.Write(0, []byte{1})
	}
	if fired != 3 {
		t.Errorf("fired = %d, want 3", fired)
	}
	m.CancelWatch(h)
	_ = m.Write(0, []byte{1})
	if fired != 3 || m.Watches() != 0 {
		t.Errorf("watch fired after cancel (fired=%d, watches=%d)", fired, m.Watches())
	}
}

func TestCallbackMayCancel(t *testing.T) {
	m := New(0, 0x100)
	var h WatchHandle
	h = m.AddWatch(0, 0x10, func(uint32) { m.CancelWatch(h) })
	_ = m.Write(0, []byte{1})
	if m.Watches() != 0 {
		t.Error("cancel from callback did not take effect")
	}
}

func TestWriteOutOfRange(t *testing.T) {
	m := New(0x100, 0x10)
	if err := m.Write(0x10F, []byte{1, 2}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Write() error = %v, want ErrOutOfRange", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	m := New(0, 0x1000)
	var fired atomic.Int32
	m.AddWatch(0, 0x1000, func(uint32) { fired.Add(1) })

	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_ = m.Write(uint32(g*0x400+i), []byte{byte(i)})
			}
		}()
	}
	wg.Wait()
	if fired.Load() != 400 {
		t.Errorf("fired = %d, want 400", fired.Load())
	}
}
