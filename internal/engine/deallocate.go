package engine

import (
	"streamcache/internal/block"
	"streamcache/internal/device"
)

// Deallocate marks addr's block free, eagerly coalescing it with any free
// siblings before reinserting the survivor into the appropriate free
// pool. A null address is always a no-op success. An address not
// currently in the allocated table — unknown, already freed, or foreign
// — yields the invalid device pointer status; this covers double-free
// without any special-casing.
func (e *Engine) Deallocate(addr block.Address) error {
	if addr == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.table.Delete(addr)
	if !ok {
		return device.ErrInvalidDevicePointer
	}

	survivor := e.coalesceLocked(b)
	survivor.Allocated = false
	e.poolForBlock(survivor).Insert(survivor)
	return nil
}

// coalesceLocked tries to merge b with each of Prev and Next in turn, but
// only if that sibling is free (not allocated). Each successful merge
// removes the sibling from whichever pool it belongs to and folds its
// range and sibling links into b, which remains the survivor throughout.
func (e *Engine) coalesceLocked(b *block.Block) *block.Block {
	if prev := b.Prev; prev != nil && !prev.Allocated {
		e.poolForBlock(prev).Remove(prev)
		block.MergeInto(b, prev)
		e.metrics.Coalesce()
	}
	if next := b.Next; next != nil && !next.Allocated {
		e.poolForBlock(next).Remove(next)
		block.MergeInto(b, next)
		e.metrics.Coalesce()
	}
	return b
}
