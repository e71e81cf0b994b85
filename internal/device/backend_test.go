package device

import (
	"testing"

	"github.com/stretchr/testify/require"

	"streamcache/internal/block"
)

func TestBackendAllocateAndFree(t *testing.T) {
	b, err := NewBackend(1, 4096)
	require.NoError(t, err)
	defer b.Close()

	addr, status := b.Allocate(0, 256)
	require.NoError(t, status)
	if addr == 0 {
		t.Fatal("Allocate returned the null address")
	}
	if status := b.Free(addr); status != nil {
		t.Fatalf("Free: %v", status)
	}
}

func TestBackendFreeUnknownAddressIsInvalidPointer(t *testing.T) {
	b, err := NewBackend(1, 4096)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	if status := b.Free(block.Address(12345)); !IsInvalidPointer(status) {
		t.Fatalf("Free(unknown) = %v, want invalid pointer status", status)
	}
}

func TestBackendDoubleFreeIsInvalidPointer(t *testing.T) {
	b, err := NewBackend(1, 4096)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	addr, _ := b.Allocate(0, 64)
	if status := b.Free(addr); status != nil {
		t.Fatalf("first Free: %v", status)
	}
	if status := b.Free(addr); !IsInvalidPointer(status) {
		t.Fatalf("second Free = %v, want invalid pointer status", status)
	}
}

func TestBackendOutOfMemory(t *testing.T) {
	b, err := NewBackend(1, 512)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	if _, status := b.Allocate(0, 1024); !IsOutOfMemory(status) {
		t.Fatalf("Allocate(too big) = %v, want out of memory status", status)
	}
}

func TestBackendCurrentDeviceDefaultsToZero(t *testing.T) {
	b, err := NewBackend(2, 4096)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	dev, status := b.CurrentDevice()
	if status != nil {
		t.Fatalf("CurrentDevice: %v", status)
	}
	if dev != 0 {
		t.Fatalf("CurrentDevice = %d, want 0", dev)
	}

	if err := b.SetCurrentDevice(1); err != nil {
		t.Fatalf("SetCurrentDevice: %v", err)
	}
	dev, _ = b.CurrentDevice()
	if dev != 1 {
		t.Fatalf("CurrentDevice after SetCurrentDevice(1) = %d, want 1", dev)
	}
}

func TestBackendViewRoundTrips(t *testing.T) {
	b, err := NewBackend(1, 4096)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	addr, status := b.Allocate(0, 16)
	if status != nil {
		t.Fatalf("Allocate: %v", status)
	}
	view, err := b.View(0, addr, 16)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	copy(view, []byte("0123456789abcdef"))

	view2, _ := b.View(0, addr, 16)
	if string(view2) != "0123456789abcdef" {
		t.Fatalf("View round-trip = %q", view2)
	}
}
