package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

// Assessment pipeline failures. Adapter errors are always recovered by the rule-based path;
// persistence errors fail the assessment; progress/achievement errors are logged only.
var (
	ErrInsufficientData       = errors.New("insufficient conversation data")
	ErrAdapterUnavailable     = errors.New("assessment adapter unavailable")
	ErrAdapterError           = errors.New("assessment adapter error")
	ErrAdapterInvalidResult   = errors.New("assessment adapter returned an invalid result")
	ErrPersistence            = errors.New("assessment persistence failed")
	ErrRetryNotAllowed        = errors.New("retry not allowed: assessment is not failed")
	ErrConversationIneligible = errors.New("conversation is not eligible for assessment")
	ErrProgressUpdate         = errors.New("progress update failed")
	ErrAchievementEvaluation  = errors.New("achievement evaluation failed")
	ErrQueueUnavailable       = errors.New("job queue unavailable")
	ErrStaleCompletion        = errors.New("assessment already completed by a newer attempt")
)

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
