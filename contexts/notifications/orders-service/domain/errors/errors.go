package errors

import (
	"errors"
	"strings"
)

var (
	ErrValidation               = errors.New("request validation failed")
	ErrOrderNotFound            = errors.New("order not found")
	ErrCancellationProhibited   = errors.New("order cancellation prohibited")
	ErrRequestTerminated        = errors.New("request terminated by caller")
	ErrMissingCreator           = errors.New("creator is required")
	ErrMissingIdempotencyID     = errors.New("idempotency id is required")
	ErrInvalidFeedQuery         = errors.New("invalid status feed query")
	ErrInvalidStatusTransition  = errors.New("invalid order status transition")
	ErrUnknownLifecycleStatus   = errors.New("unknown processing lifecycle status")
	ErrMalformedDeliveryResult  = errors.New("malformed delivery result")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
	ErrEventInFlight            = errors.New("event is being processed elsewhere")
)

// FieldError names one failing field by its request path, for example
// Recipient.RecipientPerson.EmailSettings.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries every field failure found in a request.
type ValidationError struct {
	Failures []FieldError
}

func (e *ValidationError) Add(field string, message string) {
	e.Failures = append(e.Failures, FieldError{Field: field, Message: message})
}

// Merge appends the failures of err when it is a *ValidationError.
// It reports false for any other non-nil error.
func (e *ValidationError) Merge(err error) bool {
	if err == nil {
		return true
	}
	var other *ValidationError
	if !errors.As(err, &other) {
		return false
	}
	e.Failures = append(e.Failures, other.Failures...)
	return true
}

// MergeNew appends the failures of other whose field is not already
// reported.
func (e *ValidationError) MergeNew(other *ValidationError) {
	if other == nil {
		return
	}
	seen := make(map[string]struct{}, len(e.Failures))
	for _, failure := range e.Failures {
		seen[failure.Field] = struct{}{}
	}
	for _, failure := range other.Failures {
		if _, ok := seen[failure.Field]; ok {
			continue
		}
		seen[failure.Field] = struct{}{}
		e.Failures = append(e.Failures, failure)
	}
}

func (e *ValidationError) HasFailures() bool {
	return e != nil && len(e.Failures) > 0
}

// Err returns nil when no failure was recorded.
func (e *ValidationError) Err() error {
	if !e.HasFailures() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if !e.HasFailures() {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, failure.Field+": "+failure.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
