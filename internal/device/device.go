// Package device declares the primitive device runtime the allocator
// engine consumes: get-current-device, allocate, free, and the sticky
// last-error reset used by OOM retry. It also carries the one concrete
// implementation this repository ships without real accelerator
// hardware — a simulated backend built on anonymous mmap, split across
// platform files by build tag.
package device

import (
	"errors"

	"streamcache/internal/block"
)

// Status is the verbatim status a caller sees back from a primitive
// runtime call. The allocator defines no replacement error type: every
// Status value returned by Runtime is propagated to engine callers
// unchanged, wrapped only for call-site context (see internal/engine).
type Status = error

// Runtime is the minimal capability set the allocator engine requires
// from a device backend.
type Runtime interface {
	// CurrentDevice returns the device the calling host thread is
	// currently bound to.
	CurrentDevice() (block.DeviceID, Status)

	// Allocate requests nbytes of device memory on device. On success it
	// returns a fresh address owned by no stream in particular; the
	// engine is responsible for stamping the returned block with the
	// requesting stream.
	Allocate(device block.DeviceID, nbytes uint64) (block.Address, Status)

	// Free returns a previously allocated address to the primitive
	// allocator. addr is always one this Runtime produced via Allocate.
	Free(addr block.Address) Status

	// ClearLastError resets any sticky error state the runtime keeps
	// between calls. The engine calls this once, after a failing
	// Allocate and before retrying it, mirroring cudaGetLastError /
	// hipGetLastError semantics.
	ClearLastError()
}

// sentinel status kinds. A real binding to a GPU runtime would return its
// own native status codes; the simulated backend in this package returns
// these so tests and the demo command can exercise the engine's OOM-retry
// and invalid-pointer paths without hardware.
type statusError string

func (s statusError) Error() string { return string(s) }

const (
	// ErrOutOfMemory is returned by Allocate when the backend has no
	// more room to satisfy the request. The engine treats this status
	// (and only this one) as OOM-class and eligible for its single
	// retry.
	ErrOutOfMemory statusError = "device: out of memory"

	// ErrInvalidDevicePointer is returned by Free when addr was never
	// allocated, or has already been freed.
	ErrInvalidDevicePointer statusError = "device: invalid device pointer"

	// ErrNoSuchDevice is returned by SetCurrentDevice/Allocate when no
	// device with the requested id has been registered with the
	// backend.
	ErrNoSuchDevice statusError = "device: no such device"
)

// IsOutOfMemory reports whether err is (or wraps) the backend's
// out-of-memory status.
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}

// IsInvalidPointer reports whether err is (or wraps) the backend's
// invalid-device-pointer status.
func IsInvalidPointer(err error) bool {
	return errors.Is(err, ErrInvalidDevicePointer)
}
