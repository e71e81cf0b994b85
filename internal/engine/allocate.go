package engine

import (
	"github.com/pkg/errors"

	"streamcache/internal/block"
	"streamcache/internal/device"
	"streamcache/internal/pool"
)

// Allocate returns a device address whose block is safe to use from
// stream, satisfying at least requestedSize bytes. A requestedSize of
// zero succeeds without consulting pools or the primitive allocator and
// returns the null address.
func (e *Engine) Allocate(requestedSize uint64, stream block.StreamID) (block.Address, error) {
	if requestedSize == 0 {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	addr, err := e.allocateLocked(requestedSize, stream)
	if err != nil {
		e.metrics.AllocateErr()
		return 0, err
	}
	e.metrics.AllocateOK()
	return addr, nil
}

func (e *Engine) allocateLocked(requestedSize uint64, stream block.StreamID) (block.Address, error) {
	dev, status := e.runtime.CurrentDevice()
	if status != nil {
		return 0, errors.Wrap(status, "engine: query current device")
	}

	rounded := roundSize(requestedSize)
	small := isSmallClass(rounded)
	class := classLabel(small)
	p := e.poolFor(rounded)

	b := p.BestFit(dev, stream, rounded)
	if b == nil {
		var err error
		b, err = e.missLocked(dev, stream, small, rounded)
		if err != nil {
			return 0, err
		}
		e.metrics.PrimitiveMiss(class)
	} else {
		e.metrics.PoolHit(class)
	}

	b = e.maybeSplit(b, rounded, small, p)

	b.Allocated = true
	e.table.Put(b)
	return b.Address, nil
}

// missLocked handles the miss path: request primitiveAllocSize(small,
// rounded) bytes from the primitive allocator, retrying once through
// OOM recovery on failure, and constructs the resulting root Block.
func (e *Engine) missLocked(dev block.DeviceID, stream block.StreamID, small bool, rounded uint64) (*block.Block, error) {
	allocSize := primitiveAllocSize(small, rounded)
	addr, status := e.allocatePrimitiveWithRetry(dev, allocSize)
	if status != nil {
		return nil, errors.Wrapf(status, "engine: primitive allocate %d bytes on device %d", allocSize, dev)
	}
	e.metrics.AddBytesReserved(deviceLabel(dev), float64(allocSize))
	root := block.NewRoot(dev, stream, allocSize, addr)
	root.Small = small
	return root, nil
}

// allocatePrimitiveWithRetry runs the single OOM retry: on an OOM-class
// failure, clear the runtime's sticky last-error state, return every
// root free block on dev to the primitive via freeCachedBlocksLocked, and
// retry exactly once. Any other failure, or a failure on the retry
// itself, is returned verbatim.
func (e *Engine) allocatePrimitiveWithRetry(dev block.DeviceID, nbytes uint64) (block.Address, device.Status) {
	addr, status := e.runtime.Allocate(dev, nbytes)
	if status == nil {
		return addr, nil
	}
	if !device.IsOutOfMemory(status) {
		return 0, status
	}

	logger().V(1).Info("engine: primitive allocate OOM, recovering cached blocks", "device", dev, "bytes", nbytes)
	e.runtime.ClearLastError()
	if err := e.freeCachedBlocksLocked(dev); err != nil {
		e.metrics.OOMRetry(false)
		return 0, err
	}

	addr, status = e.runtime.Allocate(dev, nbytes)
	e.metrics.OOMRetry(status == nil)
	return addr, status
}

// maybeSplit applies the split policy: if b.Size - rounded is
// at least remainderThreshold(small), carve a head block of exactly
// rounded bytes off b's front and reinsert the remainder into p. b itself
// is never removed from the caller's bookkeeping first — it was already
// popped from p by BestFit, or is a fresh root that was never in a pool.
func (e *Engine) maybeSplit(b *block.Block, rounded uint64, small bool, p *pool.Pool) *block.Block {
	if b.Size-rounded < remainderThreshold(small) {
		return b
	}

	head := &block.Block{
		Device:  b.Device,
		Stream:  b.Stream,
		Size:    rounded,
		Address: b.Address,
		Small:   b.Small,
	}
	block.SpliceSplitHead(head, b)
	p.Insert(b)
	e.metrics.Split()
	return head
}
