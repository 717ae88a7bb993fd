package backend_test

import (
	"slices"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/xenostex/backend"
	"github.com/gogpu/xenostex/backend/software"
	"github.com/gogpu/xenostex/gpucore"
)

func TestSoftwareRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendSoftware) {
		t.Fatal("software backend not registered")
	}
	if !slices.Contains(backend.Available(), backend.BackendSoftware) {
		t.Errorf("Available() = %v", backend.Available())
	}

	dev, err := backend.Open(backend.BackendSoftware)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer dev.Destroy()
	if _, ok := dev.(*software.Device); !ok {
		t.Errorf("Open() = %T, want *software.Device", dev)
	}
}

func TestOpenUnknown(t *testing.T) {
	_, err := backend.Open("missing")
	if !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("Open() error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestOpenDefaultFallsBack(t *testing.T) {
	backend.Register("broken", func() (gpucore.Device, error) {
		return nil, errors.New("no adapter")
	})
	defer backend.Unregister("broken")

	dev, name, err := backend.OpenDefault()
	if err != nil {
		t.Fatalf("OpenDefault() error = %v", err)
	}
	defer dev.Destroy()
	if name == "broken" {
		t.Error("OpenDefault() picked the failing backend")
	}
}
