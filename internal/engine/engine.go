// Package engine implements the allocator engine: the state machine and
// policy layer behind Allocate, Deallocate, and EmptyCache. It is a
// mutex-guarded struct constructed with a New-style constructor and
// split across one file per operation. There is no on-disk state and
// nothing to recover on open: no files, wire protocols, or persisted
// state exist anywhere in this package.
package engine

import (
	"strconv"
	"sync"

	"k8s.io/klog/v2"

	"streamcache/internal/block"
	"streamcache/internal/device"
	"streamcache/internal/metrics"
	"streamcache/internal/pool"
	"streamcache/internal/table"
)

// Size-class constants.
const (
	roundSmall     = 512
	roundLarge     = 131072
	smallThreshold = 1048576
)

// Engine is the allocator. All exported methods acquire mu for their full
// duration, with guaranteed release on every exit path including error
// paths; the only blocking point inside the critical section is a call
// into runtime.
type Engine struct {
	mu sync.Mutex

	runtime device.Runtime
	metrics *metrics.Collector

	small *pool.Pool // rounded size <= smallThreshold
	large *pool.Pool // rounded size >  smallThreshold
	table *table.Table
}

// New constructs an Engine against runtime. metrics may be nil, in which
// case the engine runs without instrumentation.
func New(runtime device.Runtime, metrics *metrics.Collector) *Engine {
	logger().V(1).Info("engine: constructed")
	return &Engine{
		runtime: runtime,
		metrics: metrics,
		small:   pool.New(),
		large:   pool.New(),
		table:   table.New(),
	}
}

// poolFor returns the free pool that holds (or should hold) blocks of
// roundedSize, under the consistent size-class-to-pool mapping: small
// requests search and populate the small pool, large requests the large
// pool.
func (e *Engine) poolFor(roundedSize uint64) *pool.Pool {
	if roundedSize <= smallThreshold {
		return e.small
	}
	return e.large
}

// poolForBlock returns the pool b belongs to, as recorded in b.Small when
// its primitive allocation was made. Unlike poolFor, this never
// recomputes membership from b.Size.
func (e *Engine) poolForBlock(b *block.Block) *pool.Pool {
	if b.Small {
		return e.small
	}
	return e.large
}

func isSmallClass(roundedSize uint64) bool {
	return roundedSize <= smallThreshold
}

func classLabel(small bool) string {
	if small {
		return "small"
	}
	return "large"
}

// deviceLabel formats a device id for use as a metrics label value.
func deviceLabel(dev block.DeviceID) string {
	return strconv.FormatInt(int64(dev), 10)
}

func logger() klog.Logger {
	return klog.Background()
}
