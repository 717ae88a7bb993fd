// Package backend provides a registry of gpucore.Device implementations.
//
// Backends register a factory from an init() function and are selected at
// runtime by name:
//
//	import _ "github.com/gogpu/xenostex/backend/software"
//
//	dev, err := backend.Open(backend.BackendSoftware)
//
// # Backend Selection
//
// OpenDefault tries the native GPU backend first and falls back to the
// software device:
//
//	dev, name, err := backend.OpenDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Destroy()
//
// # Available Backends
//
//   - "native": gogpu/wgpu HAL device (backend/native)
//   - "software": CPU device executing copies in place (backend/software)
package backend
