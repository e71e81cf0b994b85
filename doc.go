// Package streamcache implements a stream-aware caching device-memory
// allocator: client code requests device memory by byte size and the
// stream that will first use it, and the allocator amortizes the cost of
// primitive device allocation by reusing previously freed regions,
// without ever reissuing a block on a different stream than the one that
// freed it.
//
// The allocator itself lives in internal/engine, built on internal/block,
// internal/pool, and internal/table. This package is the thin facade
// that exposes it, wrapping internal/engine.Engine behind a five-slot
// callback table in the shape of a device runtime's malloc/free surface.
package streamcache
