package alazar

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichBenign(t *testing.T) {
	for _, s := range []Status{ApiSuccess, ApiDmaInProgress, ApiTransferComplete} {
		assert.NoError(t, enrich(s, "AlazarWaitAsyncBufferComplete"), "status %d", s)
	}
}

func TestEnrichKnown(t *testing.T) {
	err := enrich(581, "AlazarPostAsyncBuffer")
	var he HardwareStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ApiBufferTooSmall", he.Name)
	assert.Equal(t, "AlazarPostAsyncBuffer returned 581: ApiBufferTooSmall", err.Error())
}

func TestEnrichUnknown(t *testing.T) {
	err := enrich(1234, "AlazarStartCapture")
	var ue UnknownHardwareError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "unknown status 1234")
}

func TestEnrichOverflowAndTimeout(t *testing.T) {
	var oe OverflowError
	require.ErrorAs(t, enrich(ApiBufferOverflow, "x"), &oe)
	assert.Contains(t, oe.Error(), "reduce the sample rate")
	assert.True(t, IsTimeout(enrich(ApiWaitTimeout, "x")))
}

func TestEnrichWait(t *testing.T) {
	assert.NoError(t, enrichWait(ApiTransferComplete, 3, false, time.Second))

	err := enrichWait(ApiWaitTimeout, 0, true, time.Second)
	assert.True(t, IsFirstTimeout(err))

	err = enrichWait(ApiWaitTimeout, 5, false, 2*time.Second)
	var te TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, PhaseSubsequent, te.Phase)
	assert.Equal(t, 5, te.Buffer)
	assert.Contains(t, err.Error(), "buffer 5")

	err = enrichWait(583, 2, false, time.Second)
	var he HardwareStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "buffer 2: AlazarWaitAsyncBufferComplete returned 583: ApiInvalidBuffer", err.Error())
}

func TestStatusTableCoversRange(t *testing.T) {
	for s := Status(513); s <= 591; s++ {
		_, ok := StatusCodes[s]
		assert.True(t, ok, "status %d", s)
	}
}

func TestIsTimeoutWrapped(t *testing.T) {
	err := errors.Join(errors.New("context"), TimeoutError{Phase: PhaseFirst})
	assert.True(t, IsTimeout(err))
	assert.True(t, IsFirstTimeout(err))
	assert.False(t, IsTimeout(errors.New("nope")))
}

func TestAllocationErrorUnwraps(t *testing.T) {
	inner := errors.New("ENOMEM")
	err := AllocationError{Count: 2, Size: 4096, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "2 DMA buffers of 4096 bytes")
}

func TestNamedStatusesMatchTable(t *testing.T) {
	named := map[Status]string{
		ApiFailed:           "ApiFailed",
		ApiDmaInProgress:    "ApiDmaInProgress",
		ApiWaitTimeout:      "ApiWaitTimeout",
		ApiBufferTooSmall:   "ApiBufferTooSmall",
		ApiBufferOverflow:   "ApiBufferOverflow",
		ApiInvalidBuffer:    "ApiInvalidBuffer",
		ApiTransferComplete: "ApiTransferComplete",
	}
	for s, name := range named {
		assert.True(t, strings.HasPrefix(StatusCodes[s], name), "status %d is %q", s, StatusCodes[s])
	}
}

func TestMockReportsNamedStatuses(t *testing.T) {
	m := NewMockBoard()
	buf := make([]byte, 4096)
	assert.Equal(t, ApiFailed, m.PostAsyncBuffer(buf))
	assert.Equal(t, ApiFailed, m.StartCapture())
}
