package device

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"streamcache/internal/block"
)

// Backend is a Runtime implementation that emulates accelerator device
// memory with one mmap-backed arena per device. It exists so the engine,
// its tests, and the demo command can run without real accelerator
// hardware; it is not a binding to any real GPU runtime.
type Backend struct {
	mu      sync.Mutex
	current block.DeviceID
	arenas  map[block.DeviceID]*arena
	closers []func() error
}

var _ Runtime = (*Backend)(nil)

// NewBackend creates a simulated backend with deviceCount devices, each
// given an arena of capacityPerDevice bytes. Device ids are
// 0..deviceCount-1; the current device defaults to 0, mirroring a fresh
// process before any cudaSetDevice/hipSetDevice call.
func NewBackend(deviceCount int, capacityPerDevice uint64) (*Backend, error) {
	if deviceCount <= 0 {
		return nil, errors.New("device: deviceCount must be positive")
	}
	if block.Address(capacityPerDevice) >= arenaSpan {
		return nil, errors.Errorf("device: capacityPerDevice %d exceeds the %d bytes reserved per device", capacityPerDevice, arenaSpan)
	}
	b := &Backend{arenas: make(map[block.DeviceID]*arena, deviceCount)}
	for i := 0; i < deviceCount; i++ {
		id := block.DeviceID(i)
		buf, closeFn, err := newArenaBuffer(capacityPerDevice)
		if err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "device: reserve arena for device %d", id)
		}
		b.arenas[id] = newArena(buf, arenaSpan*block.Address(id))
		b.closers = append(b.closers, closeFn)
	}
	klog.V(2).InfoS("simulated device backend ready", "devices", deviceCount, "capacityPerDevice", capacityPerDevice)
	return b, nil
}

// SetCurrentDevice changes which device CurrentDevice reports, mirroring
// cudaSetDevice/hipSetDevice. Unlike those per-thread calls, the setting
// is a single value shared by every goroutine using the backend. It is a
// test/demo convenience; the engine itself never calls it.
func (b *Backend) SetCurrentDevice(id block.DeviceID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.arenas[id]; !ok {
		return ErrNoSuchDevice
	}
	b.current = id
	return nil
}

// CurrentDevice implements Runtime.
func (b *Backend) CurrentDevice() (block.DeviceID, Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, nil
}

// Allocate implements Runtime.
func (b *Backend) Allocate(device block.DeviceID, nbytes uint64) (block.Address, Status) {
	a, ok := b.arenaFor(device)
	if !ok {
		return 0, ErrNoSuchDevice
	}
	addr, ok := a.allocate(nbytes)
	if !ok {
		return 0, ErrOutOfMemory
	}
	return addr, nil
}

// Free implements Runtime. It does not know which device addr belongs
// to — exactly like a real hipFree — so it tries every arena. This is
// acceptable here because the allocator engine never calls Free with an
// address it did not itself receive from Allocate on a specific device;
// a wrong-device free is already rejected one layer up by the engine's
// allocated table before it ever reaches the backend.
func (b *Backend) Free(addr block.Address) Status {
	b.mu.Lock()
	arenas := make([]*arena, 0, len(b.arenas))
	for _, a := range b.arenas {
		arenas = append(arenas, a)
	}
	b.mu.Unlock()

	for _, a := range arenas {
		if a.release(addr) {
			return nil
		}
	}
	return ErrInvalidDevicePointer
}

// ClearLastError implements Runtime. The simulated backend keeps no
// sticky error state, but the engine still calls this between a failing
// Allocate and its OOM retry, exactly as it would against a real runtime
// with cudaGetLastError/hipGetLastError semantics.
func (b *Backend) ClearLastError() {
	klog.V(4).InfoS("device: cleared last error")
}

// View exposes the live bytes backing addr for size bytes, for
// internal/payload's typed-view helper and demo/test code that wants to
// read or write through an allocated region. It is not part of Runtime:
// a real accelerator backend would require an explicit host<->device
// copy instead of a direct view.
func (b *Backend) View(device block.DeviceID, addr block.Address, size uint64) ([]byte, error) {
	a, ok := b.arenaFor(device)
	if !ok {
		return nil, ErrNoSuchDevice
	}
	return a.view(addr, size), nil
}

// UsedBytes reports how many bytes the backend has handed out on device
// via Allocate and not yet reclaimed via Free — used by the demo command,
// never by the engine's own bookkeeping.
func (b *Backend) UsedBytes(device block.DeviceID) (uint64, error) {
	a, ok := b.arenaFor(device)
	if !ok {
		return 0, ErrNoSuchDevice
	}
	return a.usedBytes(), nil
}

func (b *Backend) arenaFor(device block.DeviceID) (*arena, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.arenas[device]
	return a, ok
}

// Close tears down every arena's backing buffer.
func (b *Backend) Close() error {
	b.mu.Lock()
	closers := b.closers
	b.closers = nil
	b.mu.Unlock()

	var firstErr error
	for _, closeFn := range closers {
		if closeFn == nil {
			continue
		}
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("device: close arena: %w", err)
		}
	}
	return firstErr
}
