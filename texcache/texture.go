package texcache

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/xenostex/gpucore"
	"github.com/gogpu/xenostex/guestmem"
	"github.com/gogpu/xenostex/internal/convert"
	"github.com/gogpu/xenostex/xenos"
)

// GuestMemory is the guest address space and its write-watch service.
type GuestMemory interface {
	// Translate returns the host view of [addr, addr+n), or nil when the
	// range is not mapped. Writes through the view do not fire watches.
	Translate(addr, n uint32) []byte

	// AddWatch registers fn for writes to [base, base+length). fn may be
	// called from any goroutine until the watch is cancelled.
	AddWatch(base, length uint32, fn guestmem.WatchCallback) guestmem.WatchHandle

	// CancelWatch unregisters a watch.
	CancelWatch(h guestmem.WatchHandle)
}

// Texture is the cached representation of one guest texture.
type Texture struct {
	// Info is the guest descriptor the texture was created from.
	Info xenos.TextureInfo

	// Format is the host format of every region.
	Format gputypes.TextureFormat

	// Regions are the host images of the texture. Regions[0] is the base
	// region and covers the full extent.
	Regions []*TextureRegion

	layout convert.HostLayout

	// watch is non-zero while the texture is resident in the keyed map.
	watch guestmem.WatchHandle

	// pendingInvalidation is set while the texture sits in the active
	// invalidation slot. Guarded by invalidationSets.mu.
	pendingInvalidation bool

	// inFlight is the fence of the last command buffer that used the
	// texture.
	inFlight gpucore.Fence

	// writeback is non-nil while a copy back to guest memory is pending.
	writeback *writeback

	resolve bool
}

// BaseRegion returns the region covering the full texture extent.
func (t *Texture) BaseRegion() *TextureRegion {
	return t.Regions[0]
}

// Resident reports whether the texture is reachable through Lookup.
func (t *Texture) Resident() bool {
	return t.watch != 0
}

// IsResolve reports whether the texture was created by DemandResolveTexture.
func (t *Texture) IsResolve() bool {
	return t.resolve
}

// WritebackPending reports whether a writeback has not completed yet.
func (t *Texture) WritebackPending() bool {
	return t.writeback != nil
}

// TextureRegion is one host image backing a rectangle of a Texture.
type TextureRegion struct {
	// Texture is the owning texture.
	Texture *Texture

	// Offset is the first texel of the region within the base extent. Z is
	// the first array layer.
	Offset gputypes.Origin3D

	// Extent is the size of the region. DepthOrArrayLayers counts layers.
	Extent gputypes.Extent3D

	// Image is the host image.
	Image gpucore.TextureID

	// Layout is the usage the image was last transitioned to.
	Layout gputypes.TextureUsage

	// ContentsValid is false when the image must be uploaded before it is
	// sampled.
	ContentsValid bool

	// Views are the cached views of the image, at most one per swizzle.
	Views []*TextureRegionView
}

// TextureRegionView is a view of a region with a channel swizzle.
type TextureRegionView struct {
	// Region is the owning region.
	Region *TextureRegion

	View    gpucore.TextureViewID
	Swizzle xenos.Swizzle
}

// Sampler is a cached host sampler.
type Sampler struct {
	Info    xenos.SamplerInfo
	Sampler gpucore.SamplerID
}

// AddressMatch classifies a LookupAddress result.
type AddressMatch uint8

// Address match kinds.
const (
	// MatchNone means no resident texture covers the rectangle.
	MatchNone AddressMatch = iota
	// MatchExact means a texture starts at the address with the same
	// size and format.
	MatchExact
	// MatchContains means the rectangle lies inside a larger texture at
	// the returned offset.
	MatchContains
)

func (m AddressMatch) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchContains:
		return "contains"
	default:
		return "none"
	}
}

// Offset2D is a texel offset within a texture.
type Offset2D struct {
	X, Y uint32
}
