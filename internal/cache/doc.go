// Package cache provides a generic keyed store for GPU objects that live
// until they are explicitly dropped.
//
// Unlike a general-purpose cache there is no capacity limit and no
// eviction: entries leave only through Drain or Clear, so the owner
// can release the backing GPU objects at a point it controls.
//
//	samplers := cache.New[uint64, *Sampler]()
//	s, err := samplers.GetOrCreate(key, func() (*Sampler, error) { ... })
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation
// (it contains a mutex).
package cache
