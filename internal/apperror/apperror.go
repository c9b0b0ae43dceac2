package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure the service can return. Callers switch on the kind,
// never on the message.
type Kind struct {
	Code   string
	Status int
}

var (
	KindValidation        = Kind{Code: "validation_error", Status: http.StatusBadRequest}
	KindInvalidTransition = Kind{Code: "invalid_transition", Status: http.StatusConflict}
	KindInvalidState      = Kind{Code: "invalid_state", Status: http.StatusConflict}
	KindNotFound          = Kind{Code: "not_found", Status: http.StatusNotFound}
	KindDecode            = Kind{Code: "decryption_failed", Status: http.StatusBadRequest}
	KindExpired           = Kind{Code: "expired", Status: http.StatusBadRequest}
	KindWrongCanteen      = Kind{Code: "wrong_canteen", Status: http.StatusForbidden}
	KindUnpaid            = Kind{Code: "unpaid", Status: http.StatusBadRequest}
	KindAlreadyUsed       = Kind{Code: "already_used", Status: http.StatusConflict}
	KindAlreadyConsumed   = Kind{Code: "already_consumed", Status: http.StatusConflict}
	KindInvalidStatus     = Kind{Code: "invalid_status", Status: http.StatusConflict}

	KindUnauthorized = Kind{Code: "unauthorized", Status: http.StatusUnauthorized}
	KindForbidden    = Kind{Code: "forbidden", Status: http.StatusForbidden}
	KindRateLimited  = Kind{Code: "rate_limited", Status: http.StatusTooManyRequests}
	KindInternal     = Kind{Code: "internal", Status: http.StatusInternalServerError}
)

type AppError struct {
	Kind    Kind
	Message string         // public-facing message
	Details map[string]any // optional structured context for the caller
	Cause   error          // internal cause, never rendered to clients
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *AppError {
	return &AppError{Kind: kind, Message: msg, Cause: cause}
}

// WithDetail returns a copy of e carrying key=value in Details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func Validation(format string, args ...any) *AppError {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(what string) *AppError {
	return New(KindNotFound, what+" not found")
}

func InvalidState(format string, args ...any) *AppError {
	return New(KindInvalidState, fmt.Sprintf(format, args...))
}

func InvalidTransition(from, to string) *AppError {
	return New(KindInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetail("from", from).
		WithDetail("to", to)
}

func Internal(msg string, cause error) *AppError {
	return Wrap(KindInternal, msg, cause)
}

// KindOf reports the kind of err, or KindInternal when err carries no AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
