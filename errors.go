package sssnss

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrNotFound is returned when the daemon answered with zero results. For
// GetGrEnt it marks the end of the enumeration.
var ErrNotFound = errors.New("sssnss: no such entry")

// ErrMalformed is returned when a reply is truncated or structurally invalid.
// Retrying the decode with the same reply cannot succeed.
var ErrMalformed = errors.New("sssnss: malformed reply")

// ErrOutOfSpace is returned when the caller's Arena cannot hold the decoded
// record. The call may be retried with a larger Arena.
var ErrOutOfSpace = errors.New("sssnss: arena too small for record")

// ErrOutOfMemory is returned by InitGroupsDyn when the gid list could not be
// grown. The list is left as it was.
var ErrOutOfMemory = errors.New("sssnss: cannot grow group list")

// ErrAmbiguous is returned when a single key lookup yields more than one record.
var ErrAmbiguous = errors.New("sssnss: more than one result for a single key lookup")

// ErrClosed is returned when using a Client or channel after Close.
var ErrClosed = errors.New("sssnss: client already closed")

// ErrBadProtocolVersion is returned when the daemon does not speak ProtocolVersion.
var ErrBadProtocolVersion = errors.New("sssnss: daemon protocol version mismatch")

// ErrNotRoot is returned when the daemon socket, or the process behind it, is not owned by root.
var ErrNotRoot = errors.New("sssnss: daemon socket is not owned by root")

// PacketDecodingError is returned when there was an error decoding a reply from the daemon.
// It wraps ErrMalformed.
type PacketDecodingError struct {
	Info string
}

func (err PacketDecodingError) Error() string {
	return fmt.Sprintf("sssnss: error decoding packet: %s", err.Info)
}

func (err PacketDecodingError) Unwrap() error {
	return ErrMalformed
}

// PacketEncodingError is returned from a failure while encoding a request, for
// example a name that contains a NUL byte.
type PacketEncodingError struct {
	Info string
}

func (err PacketEncodingError) Error() string {
	return fmt.Sprintf("sssnss: error encoding packet: %s", err.Info)
}

// ConfigurationError is the type of error returned from NewClient when the
// specified configuration is invalid.
type ConfigurationError string

func (err ConfigurationError) Error() string {
	return "sssnss: invalid configuration (" + string(err) + ")"
}

// Status is the outcome of an NSS lookup, using the numbering of enum nss_status.
type Status int

const (
	StatusTryAgain Status = -2
	StatusUnavail  Status = -1
	StatusNotFound Status = 0
	StatusSuccess  Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusTryAgain:
		return "TRYAGAIN"
	case StatusUnavail:
		return "UNAVAIL"
	case StatusNotFound:
		return "NOTFOUND"
	case StatusSuccess:
		return "SUCCESS"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Error is returned by every Client operation that does not succeed. It
// carries the NSS status a C caller would have seen together with the errno
// value that accompanies it.
type Error struct {
	Op     string
	Status Status
	Errno  syscall.Errno
	Err    error
}

func (e *Error) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("sssnss: %s: %s (%s): %v", e.Op, e.Status, e.Errno, e.Err)
	}
	return fmt.Sprintf("sssnss: %s: %s: %v", e.Op, e.Status, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the errno as well as the wrapped error, so that
// errors.Is(err, syscall.ERANGE) works on a Client result.
func (e *Error) Is(target error) bool {
	errno, ok := target.(syscall.Errno)
	return ok && e.Errno != 0 && errno == e.Errno
}

// StatusOf reports the NSS status of err. A nil error is StatusSuccess and an
// error not produced by this package is StatusUnavail.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	if errors.Is(err, ErrNotFound) {
		return StatusNotFound
	}
	return StatusUnavail
}

// ErrnoOf returns the errno carried by err, or 0.
func ErrnoOf(err error) syscall.Errno {
	var e *Error
	if errors.As(err, &e) {
		return e.Errno
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// wrapResult maps an internal error onto the status and errno that the
// reference client reports. Errors that already are an *Error pass through
// unchanged so channel failures keep their original errno.
func wrapResult(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &Error{Op: op, Status: StatusNotFound, Err: err}
	case errors.Is(err, ErrOutOfSpace):
		return &Error{Op: op, Status: StatusTryAgain, Errno: syscall.ERANGE, Err: err}
	case errors.Is(err, ErrOutOfMemory):
		return &Error{Op: op, Status: StatusTryAgain, Errno: syscall.ENOMEM, Err: err}
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrAmbiguous):
		return &Error{Op: op, Status: StatusTryAgain, Errno: syscall.EBADMSG, Err: err}
	}
	var encErr PacketEncodingError
	if errors.As(err, &encErr) {
		return &Error{Op: op, Status: StatusUnavail, Errno: syscall.EINVAL, Err: err}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &Error{Op: op, Status: StatusUnavail, Errno: errno, Err: err}
	}
	return &Error{Op: op, Status: StatusUnavail, Err: err}
}
