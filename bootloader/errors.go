package bootloader

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceError         = errors.New("device error")
	ErrCorruptImage        = errors.New("corrupt image")
	ErrAllocationConflict  = errors.New("allocation conflict")
	ErrServiceTermination  = errors.New("service termination failure")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrBufferTooSmall      = errors.New("memory map buffer too small")
	ErrHandoffMagic        = errors.New("bad handoff block magic")
	ErrHandoffVersion      = errors.New("unsupported handoff block version")
	ErrMalformedMemoryDump = errors.New("malformed memory map dump")
)

// Error is a fatal boot failure. It matches both Kind and Err through errors.Is.
type Error struct {
	State State
	Op    string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%v] %s: %v", e.State, e.Op, e.Kind)
	}
	return fmt.Sprintf("[%v] %s: %v: %v", e.State, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the failure class of err, or nil if err is not a boot failure.
func KindOf(err error) error {
	for _, kind := range []error{ErrDeviceError, ErrCorruptImage, ErrAllocationConflict, ErrServiceTermination} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
