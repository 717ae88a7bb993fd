// Package texcache maps guest textures to host GPU images.
//
// A [Cache] owns every host object derived from guest texture memory:
//
//   - Texture: one guest texture, keyed by [xenos.TextureInfo.Hash], with a
//     base TextureRegion covering its full extent and optional sub-regions.
//   - TextureRegion: one host image and its cached views, one per swizzle.
//   - Sampler: host samplers keyed by [xenos.SamplerInfo.Hash].
//   - Descriptor sets: bind groups of 32 texture/sampler slots, memoized by
//     the hash of the bindings that produced them.
//
// # Threading
//
// A Cache is owned by one recording goroutine. The only entry points that
// may be called from other goroutines are the guest-memory watch callbacks
// the cache registers and [Cache.InvalidateResolveTexture]. Both only touch
// mutex-guarded invalidation lists; the recording goroutine applies them at
// the start of [Cache.PrepareTextureSet] and [Cache.Scavenge].
//
// # GPU lifetime
//
// Every host object carries the fence of its last use. Uploads record into
// the caller's setup command buffer and staging memory is released only
// after that fence signals. When the staging ring runs out of space the
// cache submits the setup buffer itself and waits; that implicit flush is
// reported through the flushed result of every call that can trigger it, so
// callers can restart any render pass they had open.
//
// Textures are destroyed only by [Cache.Scavenge], once their last-use
// fence has signaled and no writeback reads them.
package texcache
