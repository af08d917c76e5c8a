package pve

import (
	"errors"
	"fmt"
	"net"
)

// TransportError means the API could not be reached (dial, DNS, TLS, timeout).
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("pve %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ProtocolError is a non-2xx answer.
type ProtocolError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pve %s %s: status=%d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// ParseError means the API answered but not with the expected JSON shape.
type ParseError struct {
	Method string
	Path   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pve %s %s: bad response: %v", e.Method, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Diagnostic gives a short reason for a failed call, for outcome details.
func Diagnostic(err error) string {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return fmt.Sprintf("HTTP %d: %s", pe.StatusCode, pe.Message)
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse: " + parseErr.Err.Error()
	}
	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout() {
			return "timeout: " + te.Err.Error()
		}
		return "transport: " + te.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
