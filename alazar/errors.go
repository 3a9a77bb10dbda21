package alazar

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutPhase tells apart the wait for the first buffer from later ones
type TimeoutPhase string

const (
	// PhaseFirst is the wait on the first buffer of an acquisition
	PhaseFirst TimeoutPhase = "first"
	// PhaseSubsequent is any wait after the first buffer completed
	PhaseSubsequent TimeoutPhase = "subsequent"
)

// ConfigurationError is generated when a capture description is invalid.
// It is always returned before any call reaches the board.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// HardwareStatusError is a known vendor error code returned by a call
type HardwareStatusError struct {
	Code      Status
	Name      string
	Procedure string
}

func (e HardwareStatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Procedure, e.Code, e.Name)
}

// UnknownHardwareError is a status code absent from the vendor table
type UnknownHardwareError struct {
	Code      Status
	Procedure string
}

func (e UnknownHardwareError) Error() string {
	return fmt.Sprintf("%s returned unknown status %d", e.Procedure, e.Code)
}

// TimeoutError is generated when a buffer was not filled before its deadline
type TimeoutError struct {
	Phase     TimeoutPhase
	Buffer    int
	Timeout   time.Duration
	Procedure string
}

func (e TimeoutError) Error() string {
	if e.Phase == PhaseFirst {
		return fmt.Sprintf("timed out after %v waiting for the first buffer: check your trigger source", e.Timeout)
	}
	return fmt.Sprintf("timed out after %v waiting for buffer %d: acquisition stalled", e.Timeout, e.Buffer)
}

// OverflowError is generated when the board acquired faster than the host drained it
type OverflowError struct {
	Procedure string
}

func (e OverflowError) Error() string {
	return "buffer overflow: data was acquired faster than it could be transferred; reduce the sample rate or the number of enabled channels"
}

// AllocationError is generated when the buffer pool could not be created
type AllocationError struct {
	Count int
	Size  int
	Err   error
}

func (e AllocationError) Error() string {
	return fmt.Sprintf("could not allocate %d DMA buffers of %d bytes: %v", e.Count, e.Size, e.Err)
}

// Unwrap returns the OS error
func (e AllocationError) Unwrap() error {
	return e.Err
}

// StateError is generated when an operation is called from a state it is not legal in
type StateError struct {
	Op    string
	State EngineState
}

func (e StateError) Error() string {
	return fmt.Sprintf("%s is not allowed while the engine is %s", e.Op, e.State)
}

// IsTimeout is true if err is, or wraps, a TimeoutError of either phase
func IsTimeout(err error) bool {
	var te TimeoutError
	return errors.As(err, &te)
}

// IsFirstTimeout is true if err is a timeout waiting for the first buffer,
// which usually means no trigger arrived.  Re-arming is legitimate then.
func IsFirstTimeout(err error) bool {
	var te TimeoutError
	return errors.As(err, &te) && te.Phase == PhaseFirst
}
