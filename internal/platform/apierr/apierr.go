package apierr

import (
	"errors"
	"fmt"
	"net/http"

	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps service sentinels onto an HTTP status and a stable error code.
// An *Error anywhere in the chain wins; unknown errors become 500/fallbackCode.
func FromError(err error, fallbackCode string) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperr.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, apperr.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperr.ErrRetryNotAllowed):
		return New(http.StatusConflict, "retry_not_allowed", err)
	case errors.Is(err, apperr.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, apperr.ErrConversationIneligible):
		return New(http.StatusUnprocessableEntity, "conversation_ineligible", err)
	case errors.Is(err, apperr.ErrQueueUnavailable):
		return New(http.StatusServiceUnavailable, "queue_unavailable", err)
	default:
		return New(http.StatusInternalServerError, fallbackCode, err)
	}
}
