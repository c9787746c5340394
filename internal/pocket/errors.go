package pocket

import (
	"errors"
	"fmt"
)

// TransportError is a failure to exchange a request with Pocket: the
// connection failed, or the server answered with a non-2xx status. Callers
// may retry these.
type TransportError struct {
	Op         string
	StatusCode int
	// XError and XErrorCode are Pocket's X-Error and X-Error-Code headers.
	XError     string
	XErrorCode string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
	}
	if e.XError != "" {
		return fmt.Sprintf("%s: API error: %s (status: %d, code: %s)", e.Op, e.XError, e.StatusCode, e.XErrorCode)
	}
	return fmt.Sprintf("%s: API error: status %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is a well-delivered response whose body does not have the
// expected shape. Retrying will not help.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecode reports whether err is, or wraps, a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
