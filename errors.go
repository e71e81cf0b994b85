package streamcache

import "streamcache/internal/device"

// Sentinel statuses re-exported for errors.Is comparisons. The allocator
// defines no error type of its own: callers see the primitive device
// runtime's native status values, which for the simulated backend are
// these.
var (
	ErrOutOfMemory          = device.ErrOutOfMemory
	ErrInvalidDevicePointer = device.ErrInvalidDevicePointer
	ErrNoSuchDevice         = device.ErrNoSuchDevice
)
