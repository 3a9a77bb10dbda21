//go:build atsapi

// Package atsapi binds alazar.Hardware to AlazarTech's ATSApi library.
//
// It is only built with the atsapi tag, on machines with the AlazarTech SDK
// installed.  Everything else in the module uses the alazar package's mock.
package atsapi

/*
#cgo CFLAGS: -I/usr/local/AlazarTech/include
#cgo LDFLAGS: -L/usr/local/AlazarTech/lib -lATSApi
#include <stdlib.h>
#include <AlazarError.h>
#include <AlazarApi.h>
#include <AlazarCmd.h>

*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/nasa-jpl/golaborate-ats/alazar"
)

// Board is a digitizer opened through ATSApi
type Board struct {
	handle C.HANDLE
}

// Open returns board boardID of board system systemID, both 1-based
func Open(systemID, boardID int) (*Board, error) {
	h := C.AlazarGetBoardBySystemID(C.U32(systemID), C.U32(boardID))
	if h == nil {
		return nil, fmt.Errorf("no AlazarTech board %d in system %d", boardID, systemID)
	}
	return &Board{handle: h}, nil
}

// channelID converts a 1-based channel number to the vendor's single-bit channel ID
func channelID(channel int) C.U32 {
	return C.U32(1) << uint(channel-1)
}

func status(rc C.RETURN_CODE) alazar.Status {
	return alazar.Status(rc)
}

// ChannelInfo returns the on-board memory per channel and the sample width
func (b *Board) ChannelInfo() (uint32, uint8, alazar.Status) {
	var (
		mem  C.U32
		bits C.U8
	)
	rc := C.AlazarGetChannelInfo(b.handle, &mem, &bits)
	return uint32(mem), uint8(bits), status(rc)
}

// BoardKind returns the vendor's board kind
func (b *Board) BoardKind() int {
	return int(C.AlazarGetBoardKind(b.handle))
}

func (b *Board) SetCaptureClock(source alazar.ClockSource, rate alazar.SampleRate, edge alazar.ClockEdge, decimation uint32) alazar.Status {
	return status(C.AlazarSetCaptureClock(b.handle, C.U32(source), C.U32(rate), C.U32(edge), C.U32(decimation)))
}

func (b *Board) SetInputControl(channel int, coupling alazar.Coupling, rng alazar.InputRange, impedance alazar.Impedance) alazar.Status {
	return status(C.AlazarInputControl(b.handle, C.U8(channelID(channel)), C.U32(coupling), C.U32(rng), C.U32(impedance)))
}

func (b *Board) SetBandwidthLimit(channel int, enabled bool) alazar.Status {
	var en C.U32
	if enabled {
		en = 1
	}
	return status(C.AlazarSetBWLimit(b.handle, channelID(channel), en))
}

// SetTriggerOperation drives trigger engine J and disables engine K
func (b *Board) SetTriggerOperation(source alazar.TriggerSource, slope alazar.TriggerSlope, level uint32) alazar.Status {
	rc := C.AlazarSetTriggerOperation(b.handle, C.TRIG_ENGINE_OP_J,
		C.TRIG_ENGINE_J, C.U32(source), C.U32(slope), C.U32(level),
		C.TRIG_ENGINE_K, C.TRIG_DISABLE, C.TRIGGER_SLOPE_POSITIVE, 128)
	return status(rc)
}

func (b *Board) SetExternalTrigger(coupling alazar.Coupling, rng alazar.ExternalTriggerRange) alazar.Status {
	return status(C.AlazarSetExternalTrigger(b.handle, C.U32(coupling), C.U32(rng)))
}

func (b *Board) SetTriggerDelay(ticks uint32) alazar.Status {
	return status(C.AlazarSetTriggerDelay(b.handle, C.U32(ticks)))
}

func (b *Board) SetTriggerTimeout(ticks uint32) alazar.Status {
	return status(C.AlazarSetTriggerTimeOut(b.handle, C.U32(ticks)))
}

func (b *Board) SetRecordSize(pre, post uint32) alazar.Status {
	return status(C.AlazarSetRecordSize(b.handle, C.U32(pre), C.U32(post)))
}

func (b *Board) SetRecordCount(n uint32) alazar.Status {
	return status(C.AlazarSetRecordCount(b.handle, C.U32(n)))
}

func (b *Board) BeforeAsyncRead(mask alazar.ChannelMask, transferOffset int32, samplesPerRecord, recordsPerBuffer, recordsPerAcquisition uint32, flags uint32) alazar.Status {
	rc := C.AlazarBeforeAsyncRead(b.handle, C.U32(mask), C.long(transferOffset),
		C.U32(samplesPerRecord), C.U32(recordsPerBuffer), C.U32(recordsPerAcquisition), C.U32(flags))
	return status(rc)
}

// PostAsyncBuffer hands buf to the driver.  buf is page-aligned memory from
// an alazar.BufferPool, outside the Go heap.
func (b *Board) PostAsyncBuffer(buf []byte) alazar.Status {
	return status(C.AlazarPostAsyncBuffer(b.handle, unsafe.Pointer(&buf[0]), C.U32(len(buf))))
}

func (b *Board) WaitAsyncBufferComplete(buf []byte, timeoutMs uint32) alazar.Status {
	return status(C.AlazarWaitAsyncBufferComplete(b.handle, unsafe.Pointer(&buf[0]), C.U32(timeoutMs)))
}

func (b *Board) StartCapture() alazar.Status {
	return status(C.AlazarStartCapture(b.handle))
}

func (b *Board) AbortCapture() alazar.Status {
	return status(C.AlazarAbortCapture(b.handle))
}

func (b *Board) AbortAsyncRead() alazar.Status {
	return status(C.AlazarAbortAsyncRead(b.handle))
}

// Busy is true while the board is acquiring
func (b *Board) Busy() bool {
	return C.AlazarBusy(b.handle) != 0
}
