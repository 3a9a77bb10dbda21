//go:build unix

package alazar

import "golang.org/x/sys/unix"

// allocPages maps anonymous memory, which is page aligned, and touches every
// page so it is committed before the driver locks it
func allocPages(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	page := unix.Getpagesize()
	for i := 0; i < len(mem); i += page {
		mem[i] = 0
	}
	return mem, nil
}

func freePages(mem []byte) error {
	return unix.Munmap(mem)
}
