// Package errcode defines the stable error taxonomy shared by every go-robohal package.
//
// A Code is a comparable string newtype that implements error, so callers test
// failures with errors.Is(err, errcode.Communication). Packages attach context with
// the *E wrapper, which keeps the code, the failing operation and the cause.
package errcode

import (
	"errors"
	"fmt"
)

// Code is a stable error identifier.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes.
const (
	OK Code = "ok"

	// ContractViolation: a backend does not implement an interface its board requires.
	ContractViolation Code = "contract_violation"
	// DuplicateRegistration: an environment already maps the board kind.
	DuplicateRegistration Code = "duplicate_registration"
	// UnknownBoard: an environment has no backend for the board kind.
	UnknownBoard Code = "unknown_board"

	// Communication is the base code of every transport-layer failure.
	Communication Code = "communication"
	// Timeout: a blocking read ran out of time.
	Timeout Code = "timeout"
	// Nack: the device rejected a command.
	Nack Code = "nack"
	// Protocol: a malformed, short or unexpected response.
	Protocol Code = "protocol"
	// FirmwareMismatch: boot handshake or version gate failed.
	FirmwareMismatch Code = "firmware_mismatch"
	// NotFound: a board group did not contain the requested board(s).
	NotFound Code = "not_found"

	// DeviceMissingIdentifier: a matching device without a serial number.
	DeviceMissingIdentifier Code = "device_missing_identifier"
	// Unsupported: well formed, but the hardware cannot do it.
	Unsupported Code = "unsupported"
	// InvalidParams: bad identifier or out-of-range value, raised before any I/O.
	InvalidParams Code = "invalid_params"
	// InvalidKey: a board group was indexed with a key that is not a serial number string.
	InvalidKey Code = "invalid_key"

	Error Code = "error" // generic fallback
)

// IsCommunication reports whether c belongs to the communication error class.
func (c Code) IsCommunication() bool {
	switch c {
	case Communication, Timeout, Nack, Protocol, FirmwareMismatch, NotFound:
		return true
	default:
		return false
	}
}

// E wraps a Code with the failing operation, a message and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	switch {
	case e.Op != "" && msg != "":
		return e.Op + ": " + msg
	case msg != "":
		return string(e.C) + ": " + msg
	case e.Op != "":
		return e.Op + ": " + string(e.C)
	default:
		return string(e.C)
	}
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is matches the wrapped code, and Communication for every communication-class code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	if !ok {
		return false
	}
	if c == e.C {
		return true
	}

	return c == Communication && e.C.IsCommunication()
}

// New returns an *E with a formatted message.
func New(c Code, op string, format string, args ...any) *E {
	return &E{C: c, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an *E with a formatted message and cause. It returns nil when err is nil.
func Wrap(c Code, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return &E{C: c, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}

	return Error
}
