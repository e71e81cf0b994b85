package engine

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"streamcache/internal/block"
	"streamcache/internal/pool"
)

// EmptyCache returns every root free block, on every device, to the
// primitive allocator. Non-root free blocks (those with a still-live
// sibling) are left untouched — they are necessarily coalesced away
// before they ever become root.
func (e *Engine) EmptyCache() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	devices := e.knownDevicesLocked()
	logger().V(2).Info("engine: empty_cache invoked", "devices", devices)

	var result error
	for _, dev := range devices {
		if err := e.freeCachedBlocksLocked(dev); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// freeCachedBlocksLocked walks both pools across the half-open range
// bounded by the synthetic keys (device, nil, 0, 0) and (device+1, nil,
// 0, 0), returning every visited root block to the primitive allocator
// and erasing it. Partial success is not rolled back: blocks already
// freed stay freed even if a later primitive free call fails, and every
// failure is collected into the returned multierror rather than only the
// first.
func (e *Engine) freeCachedBlocksLocked(dev block.DeviceID) error {
	var result error
	for _, p := range []*pool.Pool{e.small, e.large} {
		p.RangeDevice(dev, func(b *block.Block) bool {
			if !b.IsRoot() {
				return true
			}
			if !p.Remove(b) {
				return true
			}
			if status := e.runtime.Free(b.Address); status != nil {
				result = multierror.Append(result, errors.Wrapf(status, "engine: free_cached_blocks: device %d addr %#x", dev, uintptr(b.Address)))
				return true
			}
			e.metrics.AddBytesReserved(deviceLabel(dev), -float64(b.Size))
			return true
		})
	}
	return result
}

// knownDevicesLocked returns the distinct devices with at least one block
// in either free pool. empty_cache only frees free blocks, so it only
// needs to visit those devices.
func (e *Engine) knownDevicesLocked() []block.DeviceID {
	seen := make(map[block.DeviceID]struct{})
	for _, p := range []*pool.Pool{e.small, e.large} {
		for _, b := range p.Snapshot() {
			seen[b.Device] = struct{}{}
		}
	}
	out := make([]block.DeviceID, 0, len(seen))
	for dev := range seen {
		out = append(out, dev)
	}
	return out
}
