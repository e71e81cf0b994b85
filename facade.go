package streamcache

import (
	"github.com/prometheus/client_golang/prometheus"

	"streamcache/internal/block"
	"streamcache/internal/device"
	"streamcache/internal/engine"
	"streamcache/internal/metrics"
)

// DeviceID, StreamID, and Address are re-exported so callers never need
// to import the internal packages directly.
type (
	DeviceID = block.DeviceID
	StreamID = block.StreamID
	Address  = block.Address
)

// Runtime is the primitive device runtime the allocator consumes:
// get-current-device, allocate, free, and the sticky last-error reset
// used by the single OOM retry.
type Runtime = device.Runtime

// Allocator is a stream-aware caching device-memory allocator. The zero
// value is not usable; construct one with New.
type Allocator struct {
	e *engine.Engine
}

// New constructs an Allocator backed by runtime. If reg is non-nil, the
// allocator registers Prometheus metrics on it; pass nil to run without
// instrumentation.
func New(runtime Runtime, reg prometheus.Registerer) *Allocator {
	var collector *metrics.Collector
	if reg != nil {
		collector = metrics.New(reg)
	}
	return &Allocator{e: engine.New(runtime, collector)}
}

// Allocate returns a device address whose block is safe to use from
// stream, satisfying at least requestedSize bytes. requestedSize == 0
// always succeeds and returns the null address without touching pools or
// the primitive allocator.
func (a *Allocator) Allocate(requestedSize uint64, stream StreamID) (Address, error) {
	return a.e.Allocate(requestedSize, stream)
}

// Deallocate marks addr's block free, eagerly coalescing it with any free
// siblings before reinserting the survivor into the appropriate free
// pool. addr == 0 is always a no-op success. An addr not currently
// allocated — unknown, already freed, or foreign — returns
// device.ErrInvalidDevicePointer (double-free produces this same
// status).
func (a *Allocator) Deallocate(addr Address) error {
	return a.e.Deallocate(addr)
}

// EmptyCache returns every root free block, on every device the
// allocator has touched, to the primitive allocator. Non-root free
// blocks are left untouched.
func (a *Allocator) EmptyCache() error {
	return a.e.EmptyCache()
}

// CallbackTable is the five-slot adapter surface a numerical library's
// allocator callback table expects: it binds malloc/free slots to this
// Allocator and leaves realloc unset. Ctx is the opaque handle such a
// five-slot struct would carry; here it is simply the Allocator itself,
// since Go methods close over their receiver instead of threading a
// void* context pointer through free functions.
type CallbackTable struct {
	Ctx *Allocator

	Malloc     func(ctx *Allocator, size uint64, stream StreamID) (Address, error)
	Realloc    func() // unused — the allocator never resizes a live block in place
	Free       func(ctx *Allocator, addr Address) error
	EmptyCache func(ctx *Allocator) error
}

// NewCallbackTable adapts a to the five-slot shape a surrounding
// numerical library expects to bind against.
func NewCallbackTable(a *Allocator) CallbackTable {
	return CallbackTable{
		Ctx: a,
		Malloc: func(ctx *Allocator, size uint64, stream StreamID) (Address, error) {
			return ctx.Allocate(size, stream)
		},
		Free: func(ctx *Allocator, addr Address) error {
			return ctx.Deallocate(addr)
		},
		EmptyCache: func(ctx *Allocator) error {
			return ctx.EmptyCache()
		},
	}
}
