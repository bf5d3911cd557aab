// Package httperr defines the gateway error taxonomy and the uniform
// error envelope returned at the dispatch boundary. Every failure that
// reaches a caller is classified with one of the codes below; internal
// detail is attached only in development mode.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeGatewayTimeout      Code = "GATEWAY_TIMEOUT"
	CodeBadGateway          Code = "BAD_GATEWAY"
	CodeClientClosedRequest Code = "CLIENT_CLOSED_REQUEST"
	CodeTooManyRequests     Code = "TOO_MANY_REQUESTS"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is the nginx convention for a caller that
// disconnected before the response was written. net/http has no constant.
const StatusClientClosedRequest = 499

// Status maps a code to its HTTP status.
func (c Code) Status() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeGatewayTimeout:
		return http.StatusGatewayTimeout
	case CodeBadGateway:
		return http.StatusBadGateway
	case CodeClientClosedRequest:
		return StatusClientClosedRequest
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified gateway error. The wrapped cause is never shown
// to callers outside development mode.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the classification from err, defaulting to
// INTERNAL_ERROR for anything unclassified.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// Envelope is the uniform error body. Detail carries diagnostic
// information and is populated only in development mode.
type Envelope struct {
	Status    int    `json:"status"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// NewEnvelope converts err into the caller-visible envelope. Unclassified
// errors get a generic message so stack detail never leaks in production.
func NewEnvelope(err error, requestID string, development bool) Envelope {
	code := CodeOf(err)
	msg := "internal error"
	var ge *Error
	if errors.As(err, &ge) {
		msg = ge.Message
	}
	env := Envelope{
		Status:    code.Status(),
		Code:      code,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
	if development && err != nil {
		env.Detail = err.Error()
	}
	return env
}
