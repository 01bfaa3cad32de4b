package errors

import (
	"errors"
	"net/http"
)

// Kinds. Compare with errors.Is; concrete failures are *Error values carrying one of these.
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNoActiveSession  = errors.New("no active session")
	ErrNoEventSelected  = errors.New("no event selected")
	ErrAuthentication   = errors.New("authentication failure")
	ErrEventPermission  = errors.New("validator lacks permission for event")
	ErrNetwork          = errors.New("network failure")
	ErrTimeout          = errors.New("timeout")
	ErrRejected         = errors.New("redemption rejected")

	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownAttendee  = errors.New("unknown attendee")
	ErrUnknownItem      = errors.New("unknown item")
	ErrQuantityExceeded = errors.New("quantity exceeds remaining")
	ErrNotLoggedIn      = errors.New("not logged in")
)

// Error is a failure surfaced to the caller with a human-readable message.
type Error struct {
	Kind       error
	Message    string
	StatusCode int // backend HTTP status, 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// FromResponse builds an error for a backend reply with the given HTTP status.
func FromResponse(kind error, statusCode int, message string) *Error {
	return &Error{Kind: kind, Message: message, StatusCode: statusCode}
}

var kinds = []error{
	ErrMalformedPayload,
	ErrNoActiveSession,
	ErrNoEventSelected,
	ErrAuthentication,
	ErrEventPermission,
	ErrNetwork,
	ErrTimeout,
	ErrRejected,
	ErrInvalidRequest,
	ErrUnknownAttendee,
	ErrUnknownItem,
	ErrQuantityExceeded,
	ErrNotLoggedIn,
}

// KindOf returns the kind sentinel err belongs to, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Code is the stable machine-readable name of err's kind.
func Code(err error) string {
	switch KindOf(err) {
	case ErrMalformedPayload:
		return "MALFORMED_PAYLOAD"
	case ErrNoActiveSession:
		return "NO_ACTIVE_SESSION"
	case ErrNoEventSelected:
		return "NO_EVENT_SELECTED"
	case ErrAuthentication:
		return "AUTHENTICATION_FAILURE"
	case ErrEventPermission:
		return "EVENT_PERMISSION_DENIED"
	case ErrNetwork:
		return "NETWORK_FAILURE"
	case ErrTimeout:
		return "TIMEOUT"
	case ErrRejected:
		return "REDEMPTION_REJECTED"
	case ErrInvalidRequest:
		return "INVALID_REQUEST"
	case ErrUnknownAttendee:
		return "UNKNOWN_ATTENDEE"
	case ErrUnknownItem:
		return "UNKNOWN_ITEM"
	case ErrQuantityExceeded:
		return "QUANTITY_EXCEEDED"
	case ErrNotLoggedIn:
		return "NOT_LOGGED_IN"
	}
	return "INTERNAL"
}

// HTTPStatus maps err onto the status the local API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrMalformedPayload, ErrInvalidRequest, ErrUnknownAttendee, ErrUnknownItem:
		return http.StatusBadRequest
	case ErrNoActiveSession, ErrNoEventSelected, ErrQuantityExceeded:
		return http.StatusConflict
	case ErrAuthentication, ErrNotLoggedIn:
		return http.StatusUnauthorized
	case ErrEventPermission:
		return http.StatusForbidden
	case ErrNetwork:
		return http.StatusBadGateway
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrRejected:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the user may simply try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

// Message returns the text shown to the user.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if KindOf(err) != nil {
		return err.Error()
	}
	return "Internal error"
}
