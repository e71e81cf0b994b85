// Package block defines the unit of bookkeeping for the caching allocator:
// one contiguous device-memory region, its owning device and stream, and
// the sibling links that record how it was split from a primitive
// allocation.
package block

import "fmt"

// DeviceID identifies a device the way the primitive runtime does: an
// integral, totally ordered value.
type DeviceID int32

// StreamID is the opaque, pointer-width handle of an asynchronous
// execution queue on a device. It is totally ordered by its bit pattern,
// matching the primitive runtime's own comparison semantics.
type StreamID uintptr

// Address is a byte-addressed device pointer. Zero is reserved for "no
// address" (the null-pointer case on a zero-size allocate or a
// deallocate(nil)).
type Address uintptr

// Block describes one contiguous device memory region.
//
// Prev/Next describe physical adjacency: if A.Next == B then
// B.Address == A.Address+A.Size, both blocks share Device and Stream, and
// both descend from the same primitive allocation. A block with both
// links nil is a root block: the exact region once returned by the
// primitive allocator, and the only kind eligible for return to the
// primitive on EmptyCache or OOM recovery.
type Block struct {
	Device    DeviceID
	Stream    StreamID
	Size      uint64
	Address   Address
	Allocated bool

	// Small records which pool this block belongs to: the small or large
	// class of the primitive allocation it descends from. Pool membership
	// is decided once at birth and carried along to split heads,
	// remainders and coalesced survivors rather than recomputed from Size.
	Small bool

	Prev *Block
	Next *Block
}

// NewRoot constructs a fresh root block for a just-completed primitive
// allocation. Its sibling links are nil and it is not yet marked
// allocated; callers set Allocated once the block is assigned to a
// request.
func NewRoot(device DeviceID, stream StreamID, size uint64, addr Address) *Block {
	return &Block{
		Device:  device,
		Stream:  stream,
		Size:    size,
		Address: addr,
	}
}

// IsRoot reports whether b descends from no split: both sibling links are
// nil, so its address range is exactly the primitive allocation that
// produced it.
func (b *Block) IsRoot() bool {
	return b.Prev == nil && b.Next == nil
}

// End returns the exclusive end of b's address range.
func (b *Block) End() Address {
	return b.Address + Address(b.Size)
}

// AdjacentTo reports whether other is physically adjacent to b on either
// side: same device, same stream, contiguous ranges. It does not consult Prev/Next; callers use this to validate the
// sibling-chain invariant.
func (b *Block) AdjacentTo(other *Block) bool {
	if other == nil {
		return false
	}
	if b.Device != other.Device || b.Stream != other.Stream {
		return false
	}
	return b.End() == other.Address || other.End() == b.Address
}

// SpliceSplitHead inserts a newly carved head block h immediately before
// b in the sibling chain, shrinking b's range to begin where h ends. b
// remains the remainder and its Prev becomes h; h takes on b's old Prev
// link.
func SpliceSplitHead(h, b *Block) {
	h.Prev = b.Prev
	if h.Prev != nil {
		h.Prev.Next = h
	}
	h.Next = b
	b.Prev = h

	b.Address += Address(h.Size)
	b.Size -= h.Size
}

// MergeInto folds src's range and sibling links into dst, leaving src
// ready for disposal. dst must be adjacent to src via exactly one of
// Prev/Next; the caller is responsible for having already verified src is
// free and unallocated.
func MergeInto(dst, src *Block) {
	if dst.Prev == src {
		dst.Address = src.Address
		dst.Prev = src.Prev
		if dst.Prev != nil {
			dst.Prev.Next = dst
		}
	} else {
		dst.Next = src.Next
		if dst.Next != nil {
			dst.Next.Prev = dst
		}
	}
	dst.Size += src.Size
}

func (b *Block) String() string {
	return fmt.Sprintf("block{dev=%d stream=%#x addr=%#x size=%d allocated=%v}",
		b.Device, uintptr(b.Stream), uintptr(b.Address), b.Size, b.Allocated)
}
