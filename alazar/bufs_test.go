package alazar

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPoolFromOS(t *testing.T) {
	p, err := NewBufferPool(2*DMAAlignment, 3)
	if errors.Is(err, errNoDMA) {
		t.Skip("no page allocator on this platform")
	}
	require.NoError(t, err)
	assert.Equal(t, 3, p.Count())
	assert.Equal(t, 2*DMAAlignment, p.Size())
	assert.Equal(t, 6*DMAAlignment, p.Bytes())
	for i := 0; i < p.Count(); i++ {
		b := p.Buffer(i)
		assert.Equal(t, i, b.Index())
		require.Equal(t, 2*DMAAlignment, b.Len())
		assert.Zero(t, uintptr(unsafe.Pointer(&b.Bytes()[0]))%DMAAlignment, "buffer %d is page aligned", i)
		b.Bytes()[b.Len()-1] = 0xAB
	}
	require.NoError(t, p.Release())
	assert.True(t, p.Released())
	assert.Equal(t, 0, p.Bytes())
}

func TestBufferPoolRejectsBadGeometry(t *testing.T) {
	var ae AllocationError
	_, err := newBufferPool(100, 2, heapAlloc, heapFree)
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 100, ae.Size)
	_, err = newBufferPool(0, 2, heapAlloc, heapFree)
	require.ErrorAs(t, err, &ae)
	_, err = newBufferPool(DMAAlignment, 0, heapAlloc, heapFree)
	require.ErrorAs(t, err, &ae)
}

func TestBufferPoolAllOrNothing(t *testing.T) {
	oom := errors.New("out of memory")
	var allocs, frees int
	alloc := func(size int) ([]byte, error) {
		allocs++
		if allocs == 4 {
			return nil, oom
		}
		return make([]byte, size), nil
	}
	free := func([]byte) error {
		frees++
		return nil
	}
	p, err := newBufferPool(DMAAlignment, 8, alloc, free)
	assert.Nil(t, p)
	require.ErrorIs(t, err, oom)
	var ae AllocationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 8, ae.Count)
	assert.Equal(t, 3, frees, "every buffer allocated before the failure is freed")
}

func TestBufferPoolReleaseIdempotent(t *testing.T) {
	frees := 0
	free := func([]byte) error {
		frees++
		return nil
	}
	p, err := newBufferPool(DMAAlignment, 2, heapAlloc, free)
	require.NoError(t, err)
	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
	assert.Equal(t, 2, frees)
	assert.Nil(t, p.Buffer(1).Bytes())

	var nilPool *BufferPool
	assert.NoError(t, nilPool.Release())
	assert.False(t, nilPool.Matches(DMAAlignment, 2))
}

func TestBufferPoolReleaseJoinsErrors(t *testing.T) {
	bad := errors.New("munmap failed")
	p, err := newBufferPool(DMAAlignment, 3, heapAlloc, func([]byte) error { return bad })
	require.NoError(t, err)
	err = p.Release()
	require.ErrorIs(t, err, bad)
	assert.Contains(t, err.Error(), "buffer 2")
	assert.True(t, p.Released())
}

func TestBufferPoolMatches(t *testing.T) {
	p, err := newBufferPool(DMAAlignment, 2, heapAlloc, heapFree)
	require.NoError(t, err)
	assert.True(t, p.Matches(DMAAlignment, 2))
	assert.False(t, p.Matches(DMAAlignment, 3))
	assert.False(t, p.Matches(2*DMAAlignment, 2))
	require.NoError(t, p.Release())
	assert.False(t, p.Matches(DMAAlignment, 2))
}
