// Command allocdemo exercises the allocator end-to-end against the
// simulated device backend: several goroutines issue allocate/deallocate
// pairs against distinct simulated streams concurrently, then the demo
// prints pool occupancy before calling EmptyCache.
package main

import (
	"fmt"
	"log"
	"sync"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"

	"streamcache"
	"streamcache/internal/device"
	"streamcache/internal/payload"
)

// tensorHeader is a stand-in for the kind of fixed-layout record a real
// tensor library might overlay on an allocation — deliberately small and
// pointer-free.
type tensorHeader struct {
	Rows, Cols uint32
	DType      uint32
}

func main() {
	backend, err := device.NewBackend(2, 64<<20)
	if err != nil {
		log.Fatalf("allocdemo: new backend: %v", err)
	}
	defer backend.Close()

	reg := prometheus.NewRegistry()
	alloc := streamcache.New(backend, reg)

	const streamsPerDevice = 4
	const opsPerStream = 200

	var wg sync.WaitGroup
	for dev := 0; dev < 2; dev++ {
		for s := 0; s < streamsPerDevice; s++ {
			wg.Add(1)
			go func(dev int, stream streamcache.StreamID) {
				defer wg.Done()
				runStream(backend, alloc, streamcache.DeviceID(dev), stream, opsPerStream)
			}(dev, streamcache.StreamID(dev*streamsPerDevice+s+1))
		}
	}
	wg.Wait()

	if err := backend.SetCurrentDevice(0); err != nil {
		log.Fatalf("allocdemo: set current device: %v", err)
	}
	if err := alloc.EmptyCache(); err != nil {
		log.Printf("allocdemo: empty cache: %v", err)
	}

	for dev := 0; dev < 2; dev++ {
		used, err := backend.UsedBytes(streamcache.DeviceID(dev))
		if err != nil {
			log.Fatalf("allocdemo: used bytes: %v", err)
		}
		fmt.Printf("device %d: %d bytes reserved from the primitive allocator after empty_cache\n", dev, used)
	}
}

// deviceMu pairs each SetCurrentDevice with the Allocate that follows it:
// the backend's current device is shared by every goroutine.
var deviceMu sync.Mutex

// runStream repeatedly allocates a small region, stamps a typed header
// into it through payload.Write, and frees it — all on the same device
// and stream, so every allocate after the first is expected to hit the
// free pool rather than the primitive allocator.
func runStream(backend *device.Backend, alloc *streamcache.Allocator, dev streamcache.DeviceID, stream streamcache.StreamID, n int) {
	for i := 0; i < n; i++ {
		deviceMu.Lock()
		err := backend.SetCurrentDevice(dev)
		var addr streamcache.Address
		if err == nil {
			addr, err = alloc.Allocate(256, stream)
		}
		deviceMu.Unlock()
		if err != nil {
			log.Printf("allocdemo: stream %d: allocate: %v", stream, err)
			return
		}

		view, err := backend.View(dev, addr, 256)
		if err != nil {
			log.Printf("allocdemo: stream %d: view: %v", stream, err)
			return
		}
		hdr := &tensorHeader{Rows: 4, Cols: 4, DType: uint32(i)}
		if err := payload.Write(view[:unsafe.Sizeof(*hdr)], hdr); err != nil {
			log.Printf("allocdemo: stream %d: write payload: %v", stream, err)
			return
		}

		if err := alloc.Deallocate(addr); err != nil {
			log.Printf("allocdemo: stream %d: deallocate: %v", stream, err)
			return
		}
	}
}
