package sim

import (
	"errors"
	"fmt"
)

// Build-time errors. Construction and wiring operations return these wrapped
// with the full path of the offending component.
var (
	ErrUnknownComponent     = errors.New("unknown component")
	ErrUnknownModuleType    = errors.New("unknown module type")
	ErrUnknownGate          = errors.New("unknown gate")
	ErrUnknownParameter     = errors.New("unknown parameter")
	ErrParameterUnset       = errors.New("parameter has no value")
	ErrParameterFormat      = errors.New("parameter format error")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrGateAlreadyConnected = errors.New("gate already connected")
	ErrDirectionMismatch    = errors.New("gate direction mismatch")
)

// Run-time fatal errors. They abort Run and come back wrapped in *Error.
var (
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrNonMonotonicTime    = errors.New("event time is before current simulation time")
	ErrChannelBusy         = errors.New("channel is busy")
	ErrNotImplemented      = errors.New("duplicate not implemented")
	ErrGateNotConnected    = errors.New("gate not connected")
	ErrMessageScheduled    = errors.New("message is already scheduled")
	ErrAlreadyEncapsulated = errors.New("message already encapsulates another message")
)

// ErrInitializationDidNotConverge is returned when some component still
// reports unfinished initialization after the configured stage limit.
var ErrInitializationDidNotConverge = errors.New("initialization did not converge")

// Error attaches the simulation time and the offending component path to a
// fatal run-time error. Match the underlying cause with errors.Is.
type Error struct {
	Time Time
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("t=%s: %v", e.Time, e.Err)
	}
	return fmt.Sprintf("t=%s, in %s: %v", e.Time, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
