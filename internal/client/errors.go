package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the category of a failed operation. Callers branch on the kind and
// never on raw status codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimited
	KindServer
	KindTransport
	KindBusy
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindValidation:     "validation",
	KindAuthentication: "authentication",
	KindAuthorization:  "authorization",
	KindNotFound:       "not_found",
	KindConflict:       "conflict",
	KindRateLimited:    "rate_limited",
	KindServer:         "server",
	KindTransport:      "transport",
	KindBusy:           "busy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Service names a backend the client talks to.
type Service string

const (
	ServiceIdentity     Service = "identity"
	ServiceInventory    Service = "inventory"
	ServiceReservations Service = "reservations"
)

// Error is a classified failure. Message is safe to show to a user.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Field   string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified error, KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewValidationError reports a locally rejected input.
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NewBusyError reports an operation rejected because an identical one is in flight.
func NewBusyError(op string) *Error {
	return &Error{Kind: KindBusy, Op: op, Message: "another request is already in progress"}
}

// callKind selects the classification rules for a call.
type callKind int

const (
	callDefault callKind = iota
	callLogin
	callCreate
)

// apiError is the error body returned by all three services.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (a apiError) text() string {
	switch {
	case a.Message != "":
		return a.Message
	case a.Error != "":
		return a.Error
	default:
		return ""
	}
}

var conflictFields = []string{"email", "username", "number"}

// classify turns a non 2xx response into an Error.
func classify(svc Service, op string, kind callKind, status int, body []byte) *Error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)
	serverMsg := ae.text()

	e := &Error{Status: status, Op: op}

	switch {
	case kind == callLogin && (status == http.StatusUnauthorized || status == http.StatusBadRequest):
		e.Kind = KindAuthentication
		e.Message = "invalid username/email or password"
	case kind == callLogin && status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = "user not found"
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Message = "too many attempts, please wait and try again"
	case status >= http.StatusInternalServerError:
		e.Kind = KindServer
		e.Message = "the server encountered an error, please try again later"
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthorization
		if svc == ServiceIdentity {
			e.Message = "your session has expired, please sign in again"
		} else {
			e.Message = "you are not permitted to perform this action"
		}
	case status == http.StatusForbidden:
		e.Kind = KindAuthorization
		e.Message = "you are not permitted to perform this action"
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = orDefault(serverMsg, "not found")
	case status == http.StatusConflict:
		e.Kind = KindConflict
		e.Field = conflictField(serverMsg)
		e.Message = conflictMessage(e.Field, serverMsg)
	case kind == callCreate && status == http.StatusBadRequest && isDuplicate(serverMsg):
		e.Kind = KindConflict
		e.Field = conflictField(serverMsg)
		e.Message = conflictMessage(e.Field, serverMsg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		e.Message = orDefault(serverMsg, "the request was rejected as invalid")
	default:
		e.Kind = KindUnknown
		e.Message = orDefault(serverMsg, fmt.Sprintf("unexpected response status %d", status))
	}

	return e
}

// transportError wraps a failure to reach a service. Cancellation is passed
// through untouched.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{
		Kind:    KindTransport,
		Op:      op,
		Message: "unable to reach the server, check your connection",
		Err:     err,
	}
}

func isDuplicate(msg string) bool {
	m := strings.ToLower(msg)
	for _, w := range []string{"exist", "duplicate", "taken", "unique"} {
		if strings.Contains(m, w) {
			return true
		}
	}
	return false
}

func conflictField(msg string) string {
	m := strings.ToLower(msg)
	for _, f := range conflictFields {
		if strings.Contains(m, f) {
			return f
		}
	}
	return ""
}

func conflictMessage(field, serverMsg string) string {
	switch field {
	case "email":
		return "an account with this email already exists"
	case "username":
		return "this username is already taken"
	case "number":
		return "a room with this number already exists"
	}
	return orDefault(serverMsg, "the resource already exists")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
