package texcache

import (
	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/internal/convert"
)

// Errors returned by the cache. Match with errors.Is.
var (
	// ErrUnsupportedFormat marks guest textures with no host representation.
	// It indicates an emulation gap, not a transient condition.
	ErrUnsupportedFormat = convert.ErrUnsupportedFormat

	// ErrStagingExhausted is returned when an upload does not fit the
	// staging ring even after flushing pending work.
	ErrStagingExhausted = errors.New("texcache: staging buffer exhausted")

	// ErrNotInitialized is returned by calls made before Initialize or
	// after Shutdown.
	ErrNotInitialized = errors.New("texcache: not initialized")

	// ErrWritebackInFlight is returned when a texture already has a pending
	// writeback.
	ErrWritebackInFlight = errors.New("texcache: writeback in flight")

	// ErrRegionOutOfBounds is returned for regions that are not a proper
	// sub-rectangle of the base extent.
	ErrRegionOutOfBounds = errors.New("texcache: region outside texture extent")
)

// wrapf adds context to err. An assertion failure stays detectable with
// errors.IsAssertionFailure on the result.
func wrapf(err error, format string, args ...any) error {
	wrapped := errors.Wrapf(err, format, args...)
	if errors.HasAssertionFailure(err) {
		return errors.WithAssertionFailure(wrapped)
	}
	return wrapped
}
