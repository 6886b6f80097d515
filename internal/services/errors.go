// Package services defines the business logic of the wish wall: guest
// submissions, the live feed, and the per-form guard around them.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEmail is returned when a wish already exists for the
	// normalized email. No write happens.
	ErrDuplicateEmail = errors.New("a message has already been submitted with this email address")

	// ErrStoreWrite matches every *StoreError via errors.Is.
	ErrStoreWrite = errors.New("store write failed")

	// ErrNotificationQueue additionally matches a *StoreError whose wish was
	// stored but whose thank-you mail job was not. The wish is not rolled back.
	ErrNotificationQueue = errors.New("notification queue write failed")

	// ErrSubscription wraps feed transport failures.
	ErrSubscription = errors.New("failed to load messages")

	// ErrSubmissionInFlight is returned when the same form already has a
	// submission running.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

// Validation reasons.
const (
	ReasonMissingField = "missing field"
	ReasonInvalidEmail = "invalid email"
	ReasonTooLong      = "too long"
)

// ValidationError reports a malformed submission field. It is detected before
// any store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Store operations named in StoreError.Op.
const (
	OpLookup       = "lookup"
	OpWish         = "wish"
	OpNotification = "notification"
)

// StoreError wraps an infrastructure failure during a submission. All ops
// match ErrStoreWrite; OpNotification also matches ErrNotificationQueue so
// callers can tell the two writes apart internally.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrStoreWrite:
		return true
	case ErrNotificationQueue:
		return e.Op == OpNotification
	}
	return false
}
