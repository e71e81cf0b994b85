//go:build windows

package device

// newArenaBuffer reserves size bytes of heap memory. A simulated device
// arena has no file behind it, so a plain Go allocation is a faithful
// stand-in on every platform.
func newArenaBuffer(size uint64) ([]byte, func() error, error) {
	buf := make([]byte, size)
	return buf, func() error { return nil }, nil
}
