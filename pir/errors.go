package pir

import (
	"errors"
	"fmt"
)

// Code classifies a request-path failure. Error bodies on the wire
// carry the code plus a fixed per-category message, so responses never
// vary with the content of the rejected query.
type Code string

const (
	// CodeConfig: fatal startup misconfiguration. Never sent on the
	// wire; the process refuses to start instead.
	CodeConfig Code = "config_error"

	// CodeParamMismatch: the query was built against scheme parameters
	// the server has not loaded.
	CodeParamMismatch Code = "param_mismatch"

	// CodeProtocol: malformed query encoding or unknown generation.
	CodeProtocol Code = "protocol_error"

	// CodeAuth: missing, invalid, or reused authorization token.
	CodeAuth Code = "auth_error"

	// CodeCompute: homomorphic evaluation failed server-side.
	CodeCompute Code = "compute_error"

	// CodeTimeout: the request deadline expired during evaluation.
	CodeTimeout Code = "timeout_error"
)

// publicMessages are the only strings returned to callers; they are
// generic with respect to query content by construction.
var publicMessages = map[Code]string{
	CodeParamMismatch: "query parameters incompatible with loaded scheme",
	CodeProtocol:      "malformed query or unknown generation",
	CodeAuth:          "request not authorized",
	CodeCompute:       "query evaluation failed",
	CodeTimeout:       "query deadline exceeded",
}

// PublicMessage returns the wire-safe message for a code.
func PublicMessage(code Code) string {
	if msg, ok := publicMessages[code]; ok {
		return msg
	}
	return publicMessages[CodeCompute]
}

// Error is a classified request-path error. The detailed reason is for
// server logs only; handlers must send PublicMessage(code) instead.
type Error struct {
	Code   Code
	reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.reason)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Errorf builds a classified error with a log-only reason.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, reason: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(code Code, reason string, cause error) *Error {
	return &Error{Code: code, reason: reason, cause: cause}
}

// CodeOf extracts the classification of an error, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
