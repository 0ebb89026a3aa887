// Package apperrors defines the tagged error variants raised by the service
// layer. Handlers map codes to HTTP statuses exhaustively instead of matching
// on message text.
package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeNotFound      Code = "NOT_FOUND"
	CodeForbidden     Code = "FORBIDDEN"
	CodeConflict      Code = "CONFLICT"
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"
	CodeInternal      Code = "INTERNAL"
)

// Machine-readable reasons carried alongside the code.
const (
	ReasonSelfRequest        = "SELF_REQUEST"
	ReasonDuplicateRequest   = "DUPLICATE_REQUEST"
	ReasonAlreadyConnected   = "ALREADY_CONNECTED"
	ReasonInvalidState       = "INVALID_STATE"
	ReasonDailyLimitExceeded = "DAILY_LIMIT_EXCEEDED"
	ReasonNoCredits          = "NO_CREDITS"
)

// Error is a service-level error with a stable code, an optional reason
// subtype, and for quota refusals a snapshot the client can render without a
// second round-trip.
type Error struct {
	Code    Code        `json:"code"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
	Quota   interface{} `json:"quota,omitempty"`
	Err     error       `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(reason, message string) *Error {
	return &Error{Code: CodeValidation, Reason: reason, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func Conflict(reason, message string) *Error {
	return &Error{Code: CodeConflict, Reason: reason, Message: message}
}

func QuotaExceeded(reason string, quota interface{}) *Error {
	return &Error{
		Code:    CodeQuotaExceeded,
		Reason:  reason,
		Message: "request quota exceeded",
		Quota:   quota,
	}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// As unwraps err into an *Error, or nil when it is not one.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf returns the code of err, defaulting to CodeInternal for untagged
// errors so store failures never leak as client faults.
func CodeOf(err error) Code {
	if appErr := As(err); appErr != nil {
		return appErr.Code
	}
	return CodeInternal
}
