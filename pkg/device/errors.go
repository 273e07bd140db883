package device

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown device or command id
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a device id collision on registration
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates missing or malformed input
	ErrValidation = errors.New("validation error")

	// ErrProtocolUnimplemented indicates a protocol with no working adapter
	ErrProtocolUnimplemented = errors.New("protocol not implemented")

	// ErrNetwork indicates a transport failure reaching a device or vendor API
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates an operation timed out or was aborted
	ErrTimeout = errors.New("operation timed out")

	// ErrVendorAPI indicates a non-2xx response or a non-zero vendor error code
	ErrVendorAPI = errors.New("vendor api error")

	// ErrNotConnected indicates a transport that is not connected
	ErrNotConnected = errors.New("not connected")
)

// APIError is returned when a device or vendor endpoint answers with a failure.
// It matches ErrVendorAPI with errors.Is.
type APIError struct {
	Vendor     string // empty for the generic HTTP device protocol
	StatusCode int    // HTTP status, 0 when the failure came from a vendor error code
	Code       int    // vendor error code, if any
	Message    string
}

func (e *APIError) Error() string {
	var msg string
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	} else {
		msg = fmt.Sprintf("error code %d: %s", e.Code, e.Message)
	}
	if e.Vendor != "" {
		return e.Vendor + ": " + msg
	}
	return msg
}

func (e *APIError) Unwrap() error { return ErrVendorAPI }

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
