package software

import "sync/atomic"

// Fence is a CPU fence. It is safe for concurrent use.
type Fence struct {
	signaled atomic.Bool
}

// Signaled reports whether the fence has signaled.
func (f *Fence) Signaled() bool {
	return f.signaled.Load()
}

// Signal signals the fence.
func (f *Fence) Signal() {
	f.signaled.Store(true)
}
