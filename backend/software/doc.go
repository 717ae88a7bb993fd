// Package software provides a CPU implementation of gpucore.Device.
//
// Images, buffers and bind groups are plain Go values. Recorded copies run
// when a command buffer is submitted, so the device is fully deterministic.
// Buffer mappings are not coherent: host writes reach the device copy only
// through FlushMappedRange and device writes reach the host only through
// InvalidateMappedRange, which makes missing synchronization visible in
// tests.
//
// By default fences signal as soon as their submission executes. With
// [WithManualFences] they stay unsignaled until [Device.SignalAll] or
// [Fence.Signal] is called, which models a GPU that runs behind the
// recording thread.
//
// The package registers itself as the "software" backend on import.
package software
