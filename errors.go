package droidmedia

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotSupported     = errors.New("operation not supported")
	ErrBackendNotFound  = errors.New("recorder backend not available")
	ErrCameraBindFailed = errors.New("video source cannot bind to camera")
	ErrEncoderCreate    = errors.New("encoder cannot be created")
	ErrInvalidConfig    = errors.New("invalid encoder config")
	ErrEncoderRejected  = errors.New("encoder rejected start")
	ErrAlreadyRunning   = errors.New("recorder already running")
	ErrClosed           = errors.New("recorder closed")
	ErrCallbackPanic    = errors.New("data callback panicked")
)

// Status is a native status code. Zero means success; failures are negative.
type Status int32

const (
	StatusOK          Status = 0
	StatusUnknown     Status = -2147483648 // UNKNOWN_ERROR
	StatusNoMemory    Status = -12         // NO_MEMORY
	StatusInvalidOp   Status = -38         // INVALID_OPERATION
	StatusBadValue    Status = -22         // BAD_VALUE
	StatusNoInit      Status = -19         // NO_INIT
	StatusTimedOut    Status = -110        // TIMED_OUT
	StatusEndOfStream Status = -1011       // ERROR_END_OF_STREAM
)

func (s Status) String() string {
	// Native logs print the negated code in hex.
	return fmt.Sprintf("0x%x", -int64(s))
}

// Err returns nil for StatusOK and a *StatusError otherwise.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return &StatusError{Status: s}
}

// StatusError wraps a failing native status code.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("native status %s", e.Status)
}

// StatusOf extracts the native status code carried by err.
// It returns StatusOK for nil and StatusUnknown for errors without one.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusUnknown
}

// CreateReason classifies a recorder construction failure.
type CreateReason int

const (
	CreateCameraBindFailed CreateReason = iota + 1
	CreateEncoderFailed
	CreateBackendMissing
	CreateInvalidConfig
)

func (r CreateReason) String() string {
	switch r {
	case CreateCameraBindFailed:
		return "camera bind failed"
	case CreateEncoderFailed:
		return "encoder create failed"
	case CreateBackendMissing:
		return "backend missing"
	case CreateInvalidConfig:
		return "invalid config"
	default:
		return "unknown"
	}
}

// CreateError is returned by NewRecorder.
type CreateError struct {
	Reason CreateReason
	Err    error
}

func (e *CreateError) Error() string {
	if e.Err == nil {
		return "create recorder: " + e.Reason.String()
	}
	return fmt.Sprintf("create recorder: %s: %v", e.Reason, e.Err)
}

func (e *CreateError) Unwrap() []error {
	var sentinel error
	switch e.Reason {
	case CreateCameraBindFailed:
		sentinel = ErrCameraBindFailed
	case CreateEncoderFailed:
		sentinel = ErrEncoderCreate
	case CreateBackendMissing:
		sentinel = ErrBackendNotFound
	case CreateInvalidConfig:
		sentinel = ErrInvalidConfig
	}
	errs := make([]error, 0, 2)
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// StartError is returned by Recorder.Start when the encoder refuses to start.
type StartError struct {
	Status Status
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("error %s starting codec: %v", e.Status, e.Err)
}

func (e *StartError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEncoderRejected}
	}
	return []error{ErrEncoderRejected, e.Err}
}
