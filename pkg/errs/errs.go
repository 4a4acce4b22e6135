package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the error taxonomy shared across module boundaries. Every error
// surfaced by the payment services carries exactly one Kind so transport
// layers can map it without inspecting provider internals.
type Kind int

const (
	KindProcessing Kind = iota
	KindNotFound
	KindInvalidState
	KindInvalidAmount
	KindAuthentication
	KindGatewayUnavailable
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func InvalidAmount(format string, args ...any) error {
	return &Error{Kind: KindInvalidAmount, Msg: fmt.Sprintf(format, args...)}
}

func Authentication(format string, args ...any) error {
	return &Error{Kind: KindAuthentication, Msg: fmt.Sprintf(format, args...)}
}

func GatewayUnavailable(err error, format string, args ...any) error {
	return &Error{Kind: KindGatewayUnavailable, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Processing(err error, format string, args ...any) error {
	return &Error{Kind: KindProcessing, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the taxonomy kind; unknown errors are internal faults.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessing
}

// HTTPStatus maps a taxonomy kind to its REST status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindInvalidAmount:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-safe message. Internal faults collapse to a
// generic message so provider errors never leak to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindProcessing {
		return e.Msg
	}
	return "internal error"
}
