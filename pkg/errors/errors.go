package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable error identifier sent to clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodePayment       Code = "PAYMENT_FAILED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is rendered over HTTP. When CallerMessage is
// set the error's own message reaches the client; otherwise only
// PublicMessage does.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	CallerMessage  bool
	DetailsAllowed bool
}

func (m Metadata) ServerFault() bool { return m.HTTPStatus >= http.StatusInternalServerError }

// Columns: status, retryable, caller message, details, public message.
var catalog = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, false, true, true, "validation failed"),
	CodeUnauthorized:  meta(http.StatusUnauthorized, false, true, false, "authentication required"),
	CodeForbidden:     meta(http.StatusForbidden, false, true, false, "access denied"),
	CodeNotFound:      meta(http.StatusNotFound, false, true, false, "resource not found"),
	CodeConflict:      meta(http.StatusConflict, false, true, false, "conflict detected"),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, false, true, true, "state transition disallowed"),
	CodeIdempotency:   meta(http.StatusConflict, false, true, true, "idempotency key reused"),
	CodeRateLimit:     meta(http.StatusTooManyRequests, false, true, false, "rate limit exceeded"),
	CodePayment:       meta(http.StatusPaymentRequired, true, true, true, "payment failed"),
	CodeInternal:      meta(http.StatusInternalServerError, true, false, false, "internal server error"),
	CodeDependency:    meta(http.StatusServiceUnavailable, true, false, true, "dependency unavailable"),
}

func meta(status int, retryable, callerMsg, details bool, public string) Metadata {
	return Metadata{
		HTTPStatus:     status,
		Retryable:      retryable,
		PublicMessage:  public,
		CallerMessage:  callerMsg,
		DetailsAllowed: details,
	}
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := catalog[code]; ok {
		return m
	}
	return catalog[CodeInternal]
}

// Error is the typed error every storefront layer returns.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err; a nil err yields New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// ClientMessage is what the response body shows for this error.
func (e *Error) ClientMessage() string {
	m := MetadataFor(e.Code())
	if m.CallerMessage && e.Message() != "" {
		return e.message
	}
	return m.PublicMessage
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Ensure passes typed errors through and wraps anything else with code.
func Ensure(err error, code Code, message string) error {
	if err == nil || As(err) != nil {
		return err
	}
	return Wrap(code, err, message)
}
