// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package) and to the `error` and
// `submit_result` frames of the live WebSocket session. They give clients a
// stable, machine-readable taxonomy next to the human-readable message.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes mirror common HTTP status semantics.
//   - Domain codes name the submission or feed outcome the client should branch on.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_email",
//	  "message": "A message has already been submitted with this email address. Thank you!"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-wishwall-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidInput         = "invalid_input"
	ErrCodeDuplicateEmail       = "duplicate_email"
	ErrCodeSubmissionInProgress = "submission_in_progress"
	ErrCodeStoreUnavailable     = "store_unavailable"
	ErrCodeSubscriptionFailed   = "subscription_failed"
	ErrCodeListFailed           = "list_failed"
)

// User-facing messages. Store failures share one message whichever write
// failed; logs and metrics tell them apart.
const (
	msgMissingField   = "Please fill in all fields."
	msgInvalidEmail   = "Please enter a valid email address."
	msgTooLong        = "Your message is too long."
	msgDuplicateEmail = "A message has already been submitted with this email address. Thank you!"
	msgInProgress     = "Your message is already being sent."
	msgStoreFailed    = "Failed to send message. Please try again."
	msgFeedFailed     = "Failed to load messages. Please try again."
	msgSent           = "Message sent and posted! Thank you! ❤️"
)

// classify maps a service error to (HTTP status, code, user message).
func classify(err error) (int, string, string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		switch ve.Reason {
		case services.ReasonInvalidEmail:
			return http.StatusBadRequest, ErrCodeInvalidInput, msgInvalidEmail
		case services.ReasonTooLong:
			return http.StatusBadRequest, ErrCodeInvalidInput, msgTooLong
		}
		return http.StatusBadRequest, ErrCodeInvalidInput, msgMissingField
	case errors.Is(err, services.ErrDuplicateEmail):
		return http.StatusConflict, ErrCodeDuplicateEmail, msgDuplicateEmail
	case errors.Is(err, services.ErrSubmissionInFlight):
		return http.StatusConflict, ErrCodeSubmissionInProgress, msgInProgress
	case errors.Is(err, services.ErrStoreWrite):
		return http.StatusServiceUnavailable, ErrCodeStoreUnavailable, msgStoreFailed
	case errors.Is(err, services.ErrSubscription):
		return http.StatusServiceUnavailable, ErrCodeSubscriptionFailed, msgFeedFailed
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal error"
}
