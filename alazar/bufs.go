package alazar

import (
	"errors"
	"fmt"
)

var errNoDMA = errors.New("DMA buffers are not supported on this platform")

// DMABuffer is one page-aligned block of memory the board writes into.
// It is owned by its BufferPool; while posted to the board it must be
// neither read nor freed.
type DMABuffer struct {
	index int
	mem   []byte
}

// Bytes returns the memory of the buffer.  It is nil once the pool is released.
func (b *DMABuffer) Bytes() []byte {
	return b.mem
}

// Len is the size of the buffer in bytes
func (b *DMABuffer) Len() int {
	return len(b.mem)
}

// Index is the position of the buffer in its pool
func (b *DMABuffer) Index() int {
	return b.index
}

type (
	allocFunc func(size int) ([]byte, error)
	freeFunc  func(mem []byte) error
)

// BufferPool is a fixed set of equally sized DMA buffers.  Either every
// buffer is allocated or none is.
type BufferPool struct {
	size     int
	bufs     []*DMABuffer
	free     freeFunc
	released bool
}

// NewBufferPool allocates count buffers of size bytes from the OS.  size must
// be a multiple of DMAAlignment.
func NewBufferPool(size, count int) (*BufferPool, error) {
	return newBufferPool(size, count, allocPages, freePages)
}

func newBufferPool(size, count int, alloc allocFunc, free freeFunc) (*BufferPool, error) {
	if size <= 0 || size%DMAAlignment != 0 {
		return nil, AllocationError{Count: count, Size: size, Err: fmt.Errorf("size must be a positive multiple of %d", DMAAlignment)}
	}
	if count <= 0 {
		return nil, AllocationError{Count: count, Size: size, Err: errors.New("count must be positive")}
	}
	p := &BufferPool{size: size, free: free, bufs: make([]*DMABuffer, 0, count)}
	for i := 0; i < count; i++ {
		mem, err := alloc(size)
		if err != nil {
			p.Release()
			return nil, AllocationError{Count: count, Size: size, Err: err}
		}
		p.bufs = append(p.bufs, &DMABuffer{index: i, mem: mem})
	}
	return p, nil
}

// Count is the number of buffers in the pool
func (p *BufferPool) Count() int {
	return len(p.bufs)
}

// Size is the size of each buffer in bytes
func (p *BufferPool) Size() int {
	return p.size
}

// Buffer returns buffer i, which must be in [0, Count())
func (p *BufferPool) Buffer(i int) *DMABuffer {
	return p.bufs[i]
}

// Matches is true if the pool is live and has the given geometry
func (p *BufferPool) Matches(size, count int) bool {
	return p != nil && !p.released && p.size == size && len(p.bufs) == count
}

// Released is true once Release has been called
func (p *BufferPool) Released() bool {
	return p.released
}

// Bytes is the total memory held by the pool
func (p *BufferPool) Bytes() int {
	if p.released {
		return 0
	}
	return p.size * len(p.bufs)
}

// Release frees every buffer.  It is safe to call more than once; calls after
// the first do nothing.
func (p *BufferPool) Release() error {
	if p == nil || p.released {
		return nil
	}
	p.released = true
	var errs []error
	for _, b := range p.bufs {
		if b.mem == nil {
			continue
		}
		if err := p.free(b.mem); err != nil {
			errs = append(errs, fmt.Errorf("buffer %d: %w", b.index, err))
		}
		b.mem = nil
	}
	return errors.Join(errs...)
}
