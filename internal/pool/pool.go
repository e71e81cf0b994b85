// Package pool implements the allocator's ordered free-block index: a set
// of currently-free Blocks keyed by the composite order
// (device, stream, size, address), supporting the lower-bound query the
// engine's best-fit search and free_cached_blocks range scan both need.
//
// The (device, stream, size, address) order is a strict total order with
// no natural bucketing, so this package keeps free blocks in a single
// ascending slice and finds the lower bound with sort.Search; see
// DESIGN.md for why this stays on the standard library rather than an
// imported ordered container.
package pool

import (
	"sort"
	"sync"

	"streamcache/internal/block"
)

// Key is the synthetic (device, stream, size, address) tuple used both to
// place a Block in the pool and to query it.
type Key struct {
	Device  block.DeviceID
	Stream  block.StreamID
	Size    uint64
	Address block.Address
}

func keyOf(b *block.Block) Key {
	return Key{Device: b.Device, Stream: b.Stream, Size: b.Size, Address: b.Address}
}

// less implements the pool's total order: device, then stream, then
// size, then address.
func less(a, b Key) bool {
	if a.Device != b.Device {
		return a.Device < b.Device
	}
	if a.Stream != b.Stream {
		return a.Stream < b.Stream
	}
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return a.Address < b.Address
}

// Pool is one of the two ordered free-block indexes (small or large) the
// engine maintains.
type Pool struct {
	mu      sync.Mutex
	entries []*block.Block
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{}
}

// Insert adds a free block to the pool, keeping entries in ascending key
// order.
func (p *Pool) Insert(b *block.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := keyOf(b)
	i := sort.Search(len(p.entries), func(i int) bool { return !less(keyOf(p.entries[i]), k) })
	p.entries = append(p.entries, nil)
	copy(p.entries[i+1:], p.entries[i:])
	p.entries[i] = b
}

// Remove deletes b from the pool. It reports whether b was found; a
// caller that just removed the only entry it expects should treat false
// as a bug, not a recoverable condition.
func (p *Pool) Remove(b *block.Block) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(b)
	if i < 0 {
		return false
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	return true
}

func (p *Pool) indexOf(b *block.Block) int {
	k := keyOf(b)
	i := sort.Search(len(p.entries), func(i int) bool { return !less(keyOf(p.entries[i]), k) })
	for ; i < len(p.entries) && keyOf(p.entries[i]) == k; i++ {
		if p.entries[i] == b {
			return i
		}
	}
	return -1
}

// BestFit runs a lower-bound search: form the
// synthetic key (device, stream, requestedSize, 0) and take the smallest
// entry at or above it. If that entry belongs to a different
// (device, stream), there is no fit and the caller must miss to the
// primitive allocator. On a hit, the block is removed from the pool
// before being returned.
func (p *Pool) BestFit(device block.DeviceID, stream block.StreamID, requestedSize uint64) *block.Block {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := Key{Device: device, Stream: stream, Size: requestedSize, Address: 0}
	i := sort.Search(len(p.entries), func(i int) bool { return !less(keyOf(p.entries[i]), k) })
	if i >= len(p.entries) {
		return nil
	}
	cand := p.entries[i]
	if cand.Device != device || cand.Stream != stream {
		return nil
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	return cand
}

// RangeDevice visits, in ascending key order, every free block belonging
// to device, as if bounded by the synthetic keys (device, nil, 0, 0) and
// (device+1, nil, 0, 0). visit returning false stops iteration early.
//
// RangeDevice does not hold the pool lock across visit: visit is expected
// to call back into Remove for blocks it decides to evict, and Remove
// must not deadlock against an already-held lock. The engine's own coarse
// mutex is what prevents any other pool mutation from interleaving.
func (p *Pool) RangeDevice(device block.DeviceID, visit func(b *block.Block) bool) {
	p.mu.Lock()
	lo := Key{Device: device, Size: 0, Address: 0}
	i := sort.Search(len(p.entries), func(i int) bool { return !less(keyOf(p.entries[i]), lo) })
	snapshot := make([]*block.Block, 0, len(p.entries)-i)
	for ; i < len(p.entries) && p.entries[i].Device == device; i++ {
		snapshot = append(snapshot, p.entries[i])
	}
	p.mu.Unlock()

	for _, b := range snapshot {
		if !visit(b) {
			return
		}
	}
}

// Len reports how many free blocks the pool currently holds.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Contains reports whether b is currently indexed in the pool — used by
// invariant checks in tests, not by the engine's hot path.
func (p *Pool) Contains(b *block.Block) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexOf(b) >= 0
}

// Snapshot returns a copy of the pool's entries in ascending key order,
// for invariant assertions in tests.
func (p *Pool) Snapshot() []*block.Block {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*block.Block, len(p.entries))
	copy(out, p.entries)
	return out
}
