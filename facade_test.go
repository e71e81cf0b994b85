package streamcache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"streamcache/internal/device"
)

func TestCallbackTableDrivesAllocatorEndToEnd(t *testing.T) {
	// A small-class miss reserves a whole 1 MiB block from the primitive.
	backend, err := device.NewBackend(1, 1<<20)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer backend.Close()

	a := New(backend, prometheus.NewRegistry())
	cb := NewCallbackTable(a)
	if cb.Ctx != a {
		t.Fatal("CallbackTable.Ctx must be the Allocator it was built from")
	}

	addr, err := cb.Malloc(cb.Ctx, 128, 1)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if addr == 0 {
		t.Fatal("Malloc returned the null address")
	}

	if err := cb.Free(cb.Ctx, addr); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := cb.Free(cb.Ctx, addr); !device.IsInvalidPointer(err) {
		t.Fatalf("second Free = %v, want an invalid device pointer status", err)
	}

	if err := cb.EmptyCache(cb.Ctx); err != nil {
		t.Fatalf("EmptyCache: %v", err)
	}
}

func TestCallbackTableReallocIsIntentionallyUnset(t *testing.T) {
	backend, err := device.NewBackend(1, 4096)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer backend.Close()

	cb := NewCallbackTable(New(backend, nil))
	if cb.Realloc != nil {
		t.Fatal("CallbackTable.Realloc must stay unset: the allocator never resizes a live block in place")
	}
}
