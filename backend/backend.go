package backend

import (
	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU device.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU device (gogpu/wgpu HAL).
	BackendNative = "native"
)

// DeviceFactory opens a new device.
type DeviceFactory func() (gpucore.Device, error)
