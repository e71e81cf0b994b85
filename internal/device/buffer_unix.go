//go:build unix

package device

import "golang.org/x/sys/unix"

// newArenaBuffer reserves size bytes of anonymous, private memory via
// mmap to back a simulated device arena.
func newArenaBuffer(size uint64) ([]byte, func() error, error) {
	buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error {
		return unix.Munmap(buf)
	}
	return buf, closeFn, nil
}
