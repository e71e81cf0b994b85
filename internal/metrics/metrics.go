// Package metrics wires the allocator engine to Prometheus. It is purely
// observational: nothing in this package is permitted to influence
// allocator control flow. Device-runtime errors propagate unchanged and
// there are no internal retries beyond the engine's single OOM retry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector groups the counters and gauges the engine updates on every
// allocate/deallocate/empty_cache call. A nil *Collector is valid and
// every method on it is a no-op, so engines constructed without metrics
// enabled pay no cost and need no nil checks at call sites.
type Collector struct {
	allocations   *prometheus.CounterVec
	poolHits      *prometheus.CounterVec
	primitiveMiss *prometheus.CounterVec
	splits        prometheus.Counter
	coalesces     prometheus.Counter
	oomRetries    *prometheus.CounterVec
	bytesReserved *prometheus.GaugeVec
}

// New constructs a Collector and registers its metrics with reg. Passing
// a dedicated prometheus.NewRegistry() (rather than the global default)
// keeps tests that create multiple engines from colliding on metric
// names.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcache_allocations_total",
			Help: "Allocate calls, labeled by result (ok, error).",
		}, []string{"result"}),
		poolHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcache_pool_hits_total",
			Help: "Allocate calls satisfied from a free pool, labeled by class (small, large).",
		}, []string{"class"}),
		primitiveMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcache_primitive_allocations_total",
			Help: "Allocate calls that fell through to the primitive device allocator, labeled by class.",
		}, []string{"class"}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamcache_splits_total",
			Help: "Blocks split to satisfy a smaller request than the block found.",
		}),
		coalesces: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamcache_coalesces_total",
			Help: "Adjacent free sibling merges performed on deallocate.",
		}),
		oomRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcache_oom_retries_total",
			Help: "OOM-triggered free_cached_blocks + retry attempts, labeled by outcome.",
		}, []string{"outcome"}),
		bytesReserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamcache_bytes_reserved",
			Help: "Bytes currently reserved from the primitive allocator, by device.",
		}, []string{"device"}),
	}
	reg.MustRegister(c.allocations, c.poolHits, c.primitiveMiss, c.splits, c.coalesces, c.oomRetries, c.bytesReserved)
	return c
}

func (c *Collector) AllocateOK() {
	if c == nil {
		return
	}
	c.inc(c.allocations, "ok")
}

func (c *Collector) AllocateErr() {
	if c == nil {
		return
	}
	c.inc(c.allocations, "error")
}

func (c *Collector) PoolHit(class string) {
	if c == nil {
		return
	}
	c.inc(c.poolHits, class)
}

func (c *Collector) PrimitiveMiss(class string) {
	if c == nil {
		return
	}
	c.inc(c.primitiveMiss, class)
}

func (c *Collector) Split() {
	if c == nil {
		return
	}
	c.splits.Inc()
}

func (c *Collector) Coalesce() {
	if c == nil {
		return
	}
	c.coalesces.Inc()
}

func (c *Collector) OOMRetry(succeeded bool) {
	if c == nil {
		return
	}
	outcome := "recovered"
	if !succeeded {
		outcome = "exhausted"
	}
	c.oomRetries.WithLabelValues(outcome).Inc()
}

// AddBytesReserved adjusts the bytes-reserved gauge for device by delta:
// positive after a primitive allocate, negative after a primitive free.
func (c *Collector) AddBytesReserved(device string, delta float64) {
	if c == nil {
		return
	}
	c.bytesReserved.WithLabelValues(device).Add(delta)
}

func (c *Collector) inc(v *prometheus.CounterVec, label string) {
	if c == nil {
		return
	}
	v.WithLabelValues(label).Inc()
}
