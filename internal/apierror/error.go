package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNetwork    Kind = "network_error"
	KindValidation Kind = "validation_error"
	KindAuth       Kind = "auth_error"
	KindNotFound   Kind = "not_found_error"
	KindServer     Kind = "server_error"
	KindUnknown    Kind = "unknown_error"
)

// Error is a failed API call. Status and Body are empty for network
// failures, where no response was received.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		return fmt.Sprintf("failed to %s: network error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s: status %d: %s", e.Op, e.Status, messageFor(e.Status, e.Body))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FromResponse builds the error for a non-2xx response.
func FromResponse(op string, status int, body []byte) *Error {
	return &Error{
		Op:     op,
		Kind:   kindFor(status, body),
		Status: status,
		Body:   body,
	}
}

// Network builds the error for a request that never got a response.
func Network(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNetwork, Err: err}
}

func kindFor(status int, body []byte) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= http.StatusInternalServerError:
		return KindServer
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= http.StatusBadRequest && hasFieldMessages(body):
		return KindValidation
	default:
		return KindUnknown
	}
}

// PreconditionError is a local failure raised before any request is made.
// Fields holds per-field messages for form validation.
type PreconditionError struct {
	Message string
	Fields  map[string]string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

func Precondition(message string) *PreconditionError {
	return &PreconditionError{Message: message}
}

var ErrUnauthenticated = Precondition("You are not logged in. Please log in to continue.")

// ErrNotFound marks a record that is missing both locally and remotely.
var ErrNotFound = errors.New(MsgNotFound)

// Classify maps err onto the error taxonomy. It returns an empty kind for nil.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, ErrUnauthenticated) {
		return KindAuth
	}
	var pre *PreconditionError
	if errors.As(err, &pre) {
		return KindValidation
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || StatusOf(err) == http.StatusNotFound
}
