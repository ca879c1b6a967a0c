package api

import (
	"context"
	"errors"
	"fmt"
)

// Failure classes of a request. A Result has exactly one of them, or none.
var (
	// ErrServerResponded means the server answered with a non-2xx status.
	ErrServerResponded = errors.New("server responded with error status")

	// ErrNoResponse means the request was sent but no response arrived
	// (network failure, timeout, cancellation).
	ErrNoResponse = errors.New("no response received")

	// ErrRequest means the request could not be built.
	ErrRequest = errors.New("request construction failed")
)

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureServerResponded
	FailureNoResponse
	FailureRequest
)

func (k FailureKind) String() string {
	switch k {
	case FailureServerResponded:
		return "server_responded"
	case FailureNoResponse:
		return "no_response"
	case FailureRequest:
		return "request"
	default:
		return "none"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureServerResponded:
		return ErrServerResponded
	case FailureNoResponse:
		return ErrNoResponse
	case FailureRequest:
		return ErrRequest
	default:
		return nil
	}
}

// Error is a failed Result converted to a Go error by the typed endpoints.
type Error struct {
	Kind    FailureKind
	Message string
	Status  int
	Data    []byte
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	var errs []error
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// IsCanceled reports whether err comes from an aborted request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func serverRespondedMessage(status int) string {
	return fmt.Sprintf("Server responded. Error: Request failed with status code %d", status)
}

func noResponseMessage(err error) string {
	return fmt.Sprintf("No response received from the server. Error: %v", err)
}

func requestErrorMessage(err error) string {
	return fmt.Sprintf("Request error: %v", err)
}
