package alazar

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Signal returns the right-justified sample code of a channel (1-based) at
// sample s of acquisition-wide record r
type Signal func(channel, record, sample int) uint16

// SineSignal returns a Signal of a quarter scale sine with the given period
// in samples, shifted by a quarter period per channel
func SineSignal(bits uint8, period int) Signal {
	mid := math.Exp2(float64(bits-1)) - 0.5
	amp := mid / 2
	return func(channel, record, sample int) uint16 {
		phase := 2 * math.Pi * (float64(sample)/float64(period) + float64(channel-1)/4)
		return uint16(math.Round(mid + amp*math.Sin(phase)))
	}
}

// MockProgram is what a MockBoard was last configured with
type MockProgram struct {
	ClockSource      ClockSource
	SampleRate       SampleRate
	Inputs           map[int]InputRange
	BandwidthLimit   map[int]bool
	TriggerSource    TriggerSource
	TriggerLevel     uint32
	TriggerDelay     uint32
	TriggerTimeout   uint32
	PreTrigger       uint32
	PostTrigger      uint32
	RecordCount      uint32
	Mask             ChannelMask
	TransferOffset   int32
	SamplesPerRecord uint32
	RecordsPerBuffer uint32
	RecordsPerAcq    uint32
	Flags            uint32
}

// MockBoard is a simulated digitizer that satisfies Hardware.  Posted
// buffers are filled in FIFO order from Signal when they are waited on.
//
// Fields may be changed between acquisitions; they are read under the lock.
type MockBoard struct {
	sync.Mutex

	Kind          int
	Bits          uint8
	MemorySamples uint32
	Signal        Signal

	// FillDelay is slept by every wait before the buffer is filled
	FillDelay time.Duration

	// FirstWaitTimeouts is the number of acquisitions whose first wait times
	// out, as if no trigger arrived
	FirstWaitTimeouts int

	// TimeoutAt makes the wait for this completion index time out; negative disables
	TimeoutAt int

	// OverflowAt makes the wait for this completion index overflow; negative disables
	OverflowAt int

	// Fail forces a status from a procedure, keyed by the vendor function name
	Fail map[string]Status

	calls     map[string]int
	program   MockProgram
	armed     bool
	started   bool
	posted    [][]byte
	completed [][]byte
	records   int
}

// NewMockBoard returns a simulated 14-bit two channel ATS9440
func NewMockBoard() *MockBoard {
	return &MockBoard{
		Kind:          16,
		Bits:          14,
		MemorySamples: 128 * 1024 * 1024,
		Signal:        SineSignal(14, 100),
		TimeoutAt:     -1,
		OverflowAt:    -1,
		Fail:          map[string]Status{},
		calls:         map[string]int{},
		program:       MockProgram{Inputs: map[int]InputRange{}, BandwidthLimit: map[int]bool{}},
	}
}

// call counts a procedure and returns its forced status, if any
func (m *MockBoard) call(procedure string) (Status, bool) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[procedure]++
	s, ok := m.Fail[procedure]
	return s, ok
}

// Calls returns the number of times a vendor procedure was called
func (m *MockBoard) Calls(procedure string) int {
	m.Lock()
	defer m.Unlock()
	return m.calls[procedure]
}

// Program returns what the board was last configured with
func (m *MockBoard) Program() MockProgram {
	m.Lock()
	defer m.Unlock()
	return m.program
}

// Outstanding is the number of buffers posted and not yet completed
func (m *MockBoard) Outstanding() int {
	m.Lock()
	defer m.Unlock()
	return len(m.posted)
}

// Completed returns the buffers in the order they were filled since the last BeforeAsyncRead
func (m *MockBoard) Completed() [][]byte {
	m.Lock()
	defer m.Unlock()
	out := make([][]byte, len(m.completed))
	copy(out, m.completed)
	return out
}

func (m *MockBoard) ChannelInfo() (uint32, uint8, Status) {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarGetChannelInfo"); ok {
		return 0, 0, s
	}
	return m.MemorySamples, m.Bits, ApiSuccess
}

func (m *MockBoard) BoardKind() int {
	m.Lock()
	defer m.Unlock()
	return m.Kind
}

func (m *MockBoard) SetCaptureClock(source ClockSource, rate SampleRate, edge ClockEdge, decimation uint32) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetCaptureClock"); ok {
		return s
	}
	m.program.ClockSource = source
	m.program.SampleRate = rate
	return ApiSuccess
}

func (m *MockBoard) SetInputControl(channel int, coupling Coupling, rng InputRange, impedance Impedance) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarInputControl"); ok {
		return s
	}
	if m.program.Inputs == nil {
		m.program.Inputs = map[int]InputRange{}
	}
	m.program.Inputs[channel] = rng
	return ApiSuccess
}

func (m *MockBoard) SetBandwidthLimit(channel int, enabled bool) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetBWLimit"); ok {
		return s
	}
	if m.program.BandwidthLimit == nil {
		m.program.BandwidthLimit = map[int]bool{}
	}
	m.program.BandwidthLimit[channel] = enabled
	return ApiSuccess
}

func (m *MockBoard) SetTriggerOperation(source TriggerSource, slope TriggerSlope, level uint32) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetTriggerOperation"); ok {
		return s
	}
	m.program.TriggerSource = source
	m.program.TriggerLevel = level
	return ApiSuccess
}

func (m *MockBoard) SetExternalTrigger(coupling Coupling, rng ExternalTriggerRange) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetExternalTrigger"); ok {
		return s
	}
	return ApiSuccess
}

func (m *MockBoard) SetTriggerDelay(ticks uint32) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetTriggerDelay"); ok {
		return s
	}
	m.program.TriggerDelay = ticks
	return ApiSuccess
}

func (m *MockBoard) SetTriggerTimeout(ticks uint32) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetTriggerTimeOut"); ok {
		return s
	}
	m.program.TriggerTimeout = ticks
	return ApiSuccess
}

func (m *MockBoard) SetRecordSize(pre, post uint32) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetRecordSize"); ok {
		return s
	}
	m.program.PreTrigger = pre
	m.program.PostTrigger = post
	return ApiSuccess
}

func (m *MockBoard) SetRecordCount(n uint32) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarSetRecordCount"); ok {
		return s
	}
	m.program.RecordCount = n
	return ApiSuccess
}

func (m *MockBoard) BeforeAsyncRead(mask ChannelMask, transferOffset int32, samplesPerRecord, recordsPerBuffer, recordsPerAcquisition uint32, flags uint32) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarBeforeAsyncRead"); ok {
		return s
	}
	m.program.Mask = mask
	m.program.TransferOffset = transferOffset
	m.program.SamplesPerRecord = samplesPerRecord
	m.program.RecordsPerBuffer = recordsPerBuffer
	m.program.RecordsPerAcq = recordsPerAcquisition
	m.program.Flags = flags
	m.armed = true
	m.started = false
	m.posted = nil
	m.completed = nil
	m.records = 0
	return ApiSuccess
}

func (m *MockBoard) bytesPerBuffer() int {
	p := m.program
	bps := int(m.Bits+7) / 8
	return bps * int(p.SamplesPerRecord) * int(p.RecordsPerBuffer) * len(p.Mask.Channels())
}

func (m *MockBoard) PostAsyncBuffer(buf []byte) Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarPostAsyncBuffer"); ok {
		return s
	}
	if !m.armed {
		return ApiFailed
	}
	if len(buf) < m.bytesPerBuffer() {
		return ApiBufferTooSmall
	}
	m.posted = append(m.posted, buf)
	return ApiSuccess
}

func (m *MockBoard) WaitAsyncBufferComplete(buf []byte, timeoutMs uint32) Status {
	m.Lock()
	d := m.FillDelay
	m.Unlock()
	if d > 0 {
		time.Sleep(d)
	}

	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarWaitAsyncBufferComplete"); ok {
		return s
	}
	n := len(m.completed)
	if !m.started || len(m.posted) == 0 || int(m.program.RecordsPerAcq) <= m.records {
		return ApiWaitTimeout
	}
	if n == 0 && m.FirstWaitTimeouts > 0 {
		m.FirstWaitTimeouts--
		return ApiWaitTimeout
	}
	if n == m.TimeoutAt {
		return ApiWaitTimeout
	}
	if n == m.OverflowAt {
		return ApiBufferOverflow
	}
	head := m.posted[0]
	if len(buf) == 0 || &head[0] != &buf[0] {
		return ApiInvalidBuffer
	}
	m.fill(head)
	m.posted = m.posted[1:]
	m.completed = append(m.completed, head)
	if int(m.program.RecordsPerAcq) <= m.records {
		return ApiTransferComplete
	}
	return ApiSuccess
}

// fill writes one buffer of records, channel interleaved, MSB justified little endian words
func (m *MockBoard) fill(buf []byte) {
	p := m.program
	channels := p.Mask.Channels()
	bps := int(m.Bits+7) / 8
	shift := uint(8*bps) - uint(m.Bits)
	pos := 0
	for rec := 0; rec < int(p.RecordsPerBuffer); rec++ {
		for s := 0; s < int(p.SamplesPerRecord); s++ {
			for _, ch := range channels {
				code := m.Signal(ch, m.records, s) << shift
				if bps == 2 {
					binary.LittleEndian.PutUint16(buf[pos:], code)
				} else {
					buf[pos] = byte(code)
				}
				pos += bps
			}
		}
		m.records++
	}
}

func (m *MockBoard) StartCapture() Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarStartCapture"); ok {
		return s
	}
	if !m.armed {
		return ApiFailed
	}
	m.started = true
	return ApiSuccess
}

func (m *MockBoard) AbortCapture() Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarAbortCapture"); ok {
		return s
	}
	m.started = false
	return ApiSuccess
}

func (m *MockBoard) AbortAsyncRead() Status {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.call("AlazarAbortAsyncRead"); ok {
		return s
	}
	m.armed = false
	m.posted = nil
	return ApiSuccess
}

// Busy is true while a started acquisition has records left to acquire
func (m *MockBoard) Busy() bool {
	m.Lock()
	defer m.Unlock()
	m.call("AlazarBusy")
	return m.started && m.records < int(m.program.RecordsPerAcq)
}
