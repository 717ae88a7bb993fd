package texcache

import "sync"

// invalidationSets collects textures hit by guest writes. Watch callbacks
// append to the active slot; maintenance swaps slots and processes the
// retired one without holding the lock.
type invalidationSets struct {
	mu     sync.Mutex
	slots  [2][]*Texture
	active int
}

// add queues tex once per swap. Safe for concurrent use.
func (s *invalidationSets) add(tex *Texture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tex.pendingInvalidation {
		return
	}
	tex.pendingInvalidation = true
	s.slots[s.active] = append(s.slots[s.active], tex)
}

// swap retires the active slot and returns its textures. The slice is
// valid until the next swap.
func (s *invalidationSets) swap() []*Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.slots[s.active]
	s.active ^= 1
	clear(s.slots[s.active])
	s.slots[s.active] = s.slots[s.active][:0]
	for _, tex := range drained {
		tex.pendingInvalidation = false
	}
	return drained
}

// resolveInvalidations collects resolve textures to drop.
type resolveInvalidations struct {
	mu       sync.Mutex
	textures []*Texture
}

func (r *resolveInvalidations) add(tex *Texture) {
	r.mu.Lock()
	r.textures = append(r.textures, tex)
	r.mu.Unlock()
}

func (r *resolveInvalidations) drain() []*Texture {
	r.mu.Lock()
	defer r.mu.Unlock()
	drained := r.textures
	r.textures = nil
	return drained
}

// InvalidateResolveTexture queues a resolve texture for removal. It may be
// called from any goroutine; the texture leaves the cache at the next
// maintenance point.
func (c *Cache) InvalidateResolveTexture(tex *Texture) {
	c.invalidResolves.add(tex)
}

// RemoveInvalidatedTextures applies queued invalidations. Resident textures
// hit by guest writes keep their images but are re-uploaded on next use;
// invalidated resolve textures are retired. It runs automatically at the
// start of PrepareTextureSet and Scavenge.
func (c *Cache) RemoveInvalidatedTextures() {
	for _, tex := range c.invalidated.swap() {
		if !tex.Resident() {
			continue
		}
		for _, r := range tex.Regions {
			r.ContentsValid = false
		}
		c.stats.Invalidations++
	}

	retired := false
	for _, tex := range c.invalidResolves.drain() {
		for i, rt := range c.resolveTextures {
			if rt != tex {
				continue
			}
			c.resolveTextures = append(c.resolveTextures[:i], c.resolveTextures[i+1:]...)
			c.pendingDelete = append(c.pendingDelete, tex)
			retired = true
			break
		}
	}
	if retired {
		c.setMemo.Clear()
	}
}
