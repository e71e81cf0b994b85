package device

import (
	"sync"

	"streamcache/internal/block"
)

// arena is a single simulated device's memory: a fixed-size byte buffer
// bump-allocated from the front, with freed regions kept on a
// size-keyed free list so repeated same-size primitive allocations (the
// common case once the engine is warm, since small-class misses always
// request exactly smallThreshold bytes) don't walk off the end of the
// buffer.
//
// This is deliberately "dumb" relative to the caching engine built on top
// of it: it has no notion of splitting, coalescing, or streams. It plays
// the role hipMalloc/hipFree would play against real accelerator
// hardware.
// arenaSpan is the address range reserved per device: enough that every
// device's offsets, shifted into their own span, never collide with a
// neighboring device's, no matter how many bytes either arena actually
// backs.
const arenaSpan = block.Address(1) << 48

type arena struct {
	mu sync.Mutex

	base block.Address // this device's reserved span, folded into every address it mints

	buf  []byte
	next uint64 // bump offset into buf, in [0, len(buf)]

	freeBySize map[uint64][]uint64 // size -> stack of offsets
	sizeOf     map[block.Address]uint64
}

// newArena constructs an arena over buf whose addresses are all offset by
// base, so that arenas for distinct devices never mint the same raw
// address.
func newArena(buf []byte, base block.Address) *arena {
	return &arena{
		base:       base,
		buf:        buf,
		freeBySize: make(map[uint64][]uint64),
		sizeOf:     make(map[block.Address]uint64),
	}
}

func (a *arena) allocate(nbytes uint64) (block.Address, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var off uint64
	if stack := a.freeBySize[nbytes]; len(stack) > 0 {
		off = stack[len(stack)-1]
		a.freeBySize[nbytes] = stack[:len(stack)-1]
	} else {
		if a.next+nbytes > uint64(len(a.buf)) {
			return 0, false
		}
		off = a.next
		a.next += nbytes
	}
	addr := a.base + block.Address(off) + 1 // +1 keeps offset 0 reserved for "null"
	a.sizeOf[addr] = nbytes
	return addr, true
}

// release returns addr to the free list. It reports false if addr is not
// currently allocated by this arena (unknown or double free), mirroring
// the invalid-device-pointer status the engine itself surfaces one layer
// up for its own allocated table.
func (a *arena) release(addr block.Address) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	size, ok := a.sizeOf[addr]
	if !ok {
		return false
	}
	delete(a.sizeOf, addr)
	off := uint64(addr - a.base - 1)
	a.freeBySize[size] = append(a.freeBySize[size], off)
	return true
}

// view returns the byte slice backing [addr, addr+size) for direct
// read/write by the typed-view helper in internal/payload. It does not
// bounds-check beyond what a slice expression already guarantees, since
// only the engine and backend ever mint addresses.
func (a *arena) view(addr block.Address, size uint64) []byte {
	off := uint64(addr - a.base - 1)
	return a.buf[off : off+size]
}

func (a *arena) usedBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var used uint64
	for _, size := range a.sizeOf {
		used += size
	}
	return used
}
