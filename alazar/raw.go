package alazar

import (
	"fmt"
	"time"
)

// Status is a RETURN_CODE from the vendor library
type Status uint32

const (
	// ApiSuccess is the vendor's success code
	ApiSuccess Status = 512

	// ApiFailed is the generic failure of a call
	ApiFailed Status = 513

	// ApiDmaInProgress is returned when a DMA is already running; it is benign
	ApiDmaInProgress Status = 518

	// ApiWaitTimeout is returned when a buffer was not filled in time
	ApiWaitTimeout Status = 579

	// ApiBufferTooSmall is returned for a buffer shorter than the record geometry
	ApiBufferTooSmall Status = 581

	// ApiBufferOverflow is returned when the board outran the host
	ApiBufferOverflow Status = 582

	// ApiInvalidBuffer is returned when a waited buffer is not the head of the queue
	ApiInvalidBuffer Status = 583

	// ApiTransferComplete marks the last buffer of an acquisition
	ApiTransferComplete Status = 589
)

// StatusCodes is the vendor error table, copied here to keep C types out of
// the map keys.  It is the only place status codes are named.
var StatusCodes = map[Status]string{
	513: "ApiFailed",
	514: "ApiAccessDenied",
	515: "ApiDmaChannelUnavailable",
	516: "ApiDmaChannelInvalid",
	517: "ApiDmaChannelTypeError",
	518: "ApiDmaInProgress",
	519: "ApiDmaDone",
	520: "ApiDmaPaused",
	521: "ApiDmaNotPaused",
	522: "ApiDmaCommandInvalid",
	523: "ApiDmaManReady",
	524: "ApiDmaManNotReady",
	525: "ApiDmaInvalidChannelPriority",
	526: "ApiDmaManCorrupted",
	527: "ApiDmaInvalidElementIndex",
	528: "ApiDmaNoMoreElements",
	529: "ApiDmaSglInvalid",
	530: "ApiDmaSglQueueFull",
	531: "ApiNullParam",
	532: "ApiInvalidBusIndex",
	533: "ApiUnsupportedFunction",
	534: "ApiInvalidPciSpace",
	535: "ApiInvalidIopSpace",
	536: "ApiInvalidSize",
	537: "ApiInvalidAddress",
	538: "ApiInvalidAccessType",
	539: "ApiInvalidIndex",
	540: "ApiMuNotReady",
	541: "ApiMuFifoEmpty",
	542: "ApiMuFifoFull",
	543: "ApiInvalidRegister",
	544: "ApiDoorbellClearFailed",
	545: "ApiInvalidUserPin",
	546: "ApiInvalidUserState",
	547: "ApiEepromNotPresent",
	548: "ApiEepromTypeNotSupported",
	549: "ApiEepromBlank",
	550: "ApiConfigAccessFailed",
	551: "ApiInvalidDeviceInfo",
	552: "ApiNoActiveDriver",
	553: "ApiInsufficientResources",
	554: "ApiObjectAlreadyAllocated",
	555: "ApiAlreadyInitialized",
	556: "ApiNotInitialized",
	557: "ApiBadConfigRegEndianMode",
	558: "ApiInvalidPowerState",
	559: "ApiPowerDown",
	560: "ApiFlybyNotSupported",
	561: "ApiNotSupportThisChannel",
	562: "ApiNoAction",
	563: "ApiHSNotSupported",
	564: "ApiVPDNotSupported",
	565: "ApiVpdNotEnabled",
	566: "ApiNoMoreCap",
	567: "ApiInvalidOffset",
	568: "ApiBadPinDirection",
	569: "ApiPciTimeout",
	570: "ApiDmaChannelClosed",
	571: "ApiDmaChannelError",
	572: "ApiInvalidHandle",
	573: "ApiBufferNotReady",
	574: "ApiInvalidData",
	575: "ApiDoNothing",
	576: "ApiDmaSglBuildFailed",
	577: "ApiPMNotSupported",
	578: "ApiInvalidDriverVersion",
	579: "ApiWaitTimeout: operation did not finish during timeout interval. Check your trigger.",
	580: "ApiWaitCanceled",
	581: "ApiBufferTooSmall",
	582: "ApiBufferOverflow: rate of acquiring data > rate of transferring data to local memory.",
	583: "ApiInvalidBuffer",
	584: "ApiInvalidRecordsPerBuffer",
	585: "ApiDmaPending: async I/O operation was successfully started, it will be completed when sufficient trigger events are supplied to fill the buffer.",
	586: "ApiLockAndProbePagesFailed: driver or operating system was unable to prepare the specified buffer for DMA transfer. Try reducing buffer size or total number of buffers.",
	587: "ApiWaitAbandoned",
	588: "ApiWaitFailed",
	589: "ApiTransferComplete: this buffer is last in the current acquisition.",
	590: "ApiPllNotLocked: hardware error, contact AlazarTech",
	591: "ApiNotSupportedInDualChannelMode: requested number of samples per channel is too large to fit in on-board memory. Try reducing number of samples per channel, or switch to single channel mode.",
}

// Hardware is the narrow boundary to one digitizer board.  Every method that
// talks to the board returns the raw vendor status; translation to errors
// happens in exactly one place inside this package.
//
// Buffers are passed as the byte slices handed out by a BufferPool; an
// implementation may take the address of the first element but must not
// retain the slice after AbortAsyncRead returns.
type Hardware interface {
	// ChannelInfo returns the on-board memory in samples per channel and the sample width in bits
	ChannelInfo() (memorySamples uint32, bitsPerSample uint8, status Status)

	// BoardKind returns the vendor's board kind, see BoardName
	BoardKind() int

	SetCaptureClock(source ClockSource, rate SampleRate, edge ClockEdge, decimation uint32) Status
	SetInputControl(channel int, coupling Coupling, rng InputRange, impedance Impedance) Status
	SetBandwidthLimit(channel int, enabled bool) Status

	// SetTriggerOperation configures trigger engine J; engine K is disabled
	SetTriggerOperation(source TriggerSource, slope TriggerSlope, level uint32) Status
	SetExternalTrigger(coupling Coupling, rng ExternalTriggerRange) Status
	SetTriggerDelay(ticks uint32) Status
	SetTriggerTimeout(ticks uint32) Status
	SetRecordSize(pre, post uint32) Status
	SetRecordCount(n uint32) Status

	BeforeAsyncRead(mask ChannelMask, transferOffset int32, samplesPerRecord, recordsPerBuffer, recordsPerAcquisition uint32, flags uint32) Status
	PostAsyncBuffer(buf []byte) Status
	WaitAsyncBufferComplete(buf []byte, timeoutMs uint32) Status
	StartCapture() Status
	AbortCapture() Status
	AbortAsyncRead() Status
	Busy() bool
}

// benign reports the statuses that are not errors
func benign(s Status) bool {
	return s == ApiSuccess || s == ApiDmaInProgress || s == ApiTransferComplete
}

// enrich returns nil for a benign status, otherwise a typed error decorated
// with the procedure called.  Timeouts are classified by the caller, which
// knows the phase; here they become a TimeoutError in the first phase.
func enrich(s Status, procedure string) error {
	if benign(s) {
		return nil
	}
	switch s {
	case ApiBufferOverflow:
		return OverflowError{Procedure: procedure}
	case ApiWaitTimeout:
		return TimeoutError{Phase: PhaseFirst, Procedure: procedure}
	}
	name, ok := StatusCodes[s]
	if !ok {
		return UnknownHardwareError{Code: s, Procedure: procedure}
	}
	return HardwareStatusError{Code: s, Name: name, Procedure: procedure}
}

// enrichWait translates the status of a buffer wait, tagging timeouts with
// their phase and the deadline that was exceeded
func enrichWait(s Status, buffer int, first bool, timeout time.Duration) error {
	err := enrich(s, "AlazarWaitAsyncBufferComplete")
	if err == nil {
		return nil
	}
	if te, ok := err.(TimeoutError); ok {
		te.Phase = PhaseSubsequent
		if first {
			te.Phase = PhaseFirst
		}
		te.Buffer = buffer
		te.Timeout = timeout
		return te
	}
	return fmt.Errorf("buffer %d: %w", buffer, err)
}
