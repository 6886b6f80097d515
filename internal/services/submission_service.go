// Package services – SubmissionService
//
// SubmissionService validates a guest's wish, enforces the one-wish-per-email
// rule with a check-then-write against the store, writes the wish and then
// queues a thank-you notification. The two writes are not atomic: a failed
// notification write is reported but the wish stays.
//
// Observability: public methods open an OpenTelemetry span and update the
// wish submission counters.

package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/observability"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
)

// emailPattern is the minimal <non-space>@<non-space>.<non-space> test.
var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// WishStore is the subset of the store adapter the submission path needs.
type WishStore interface {
	FindWishesByEmail(ctx context.Context, email string) ([]domain.Wish, error)
	CreateWish(ctx context.Context, author, email, message string) (*domain.Wish, error)
	CreateMailJob(ctx context.Context, recipient, subject, html string) (*domain.MailJob, error)
}

// SubmissionService writes guest wishes and their notification jobs.
type SubmissionService struct {
	Store WishStore

	// Optional guards; zero disables the limit.
	MaxAuthorRunes  int
	MaxMessageRunes int

	// Template signs the thank-you mail. Zero value uses the defaults.
	Template MailTemplate

	guard FormGuard
}

// NewSubmissionService returns a service over store with no length limits.
func NewSubmissionService(store WishStore) *SubmissionService {
	return &SubmissionService{Store: store}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// A Caser is not safe for concurrent use, so each call builds its own.
func NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// Validate runs the local preconditions in order: every field present,
// then the email shape, then the optional rune limits.
func (s *SubmissionService) Validate(author, email, message string) error {
	author = strings.TrimSpace(author)
	message = strings.TrimSpace(message)
	switch {
	case author == "":
		return &ValidationError{Field: "author", Reason: ReasonMissingField}
	case strings.TrimSpace(email) == "":
		return &ValidationError{Field: "email", Reason: ReasonMissingField}
	case message == "":
		return &ValidationError{Field: "message", Reason: ReasonMissingField}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Reason: ReasonInvalidEmail}
	}
	if s.MaxAuthorRunes > 0 && utf8.RuneCountInString(author) > s.MaxAuthorRunes {
		return &ValidationError{Field: "author", Reason: ReasonTooLong}
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		return &ValidationError{Field: "message", Reason: ReasonTooLong}
	}
	return nil
}

// Submit validates and stores one wish, then queues its notification job.
//
// On ErrNotificationQueue the returned wish is non-nil: it was stored and is
// not rolled back.
func (s *SubmissionService) Submit(ctx context.Context, author, email, message string) (*domain.Wish, error) {
	ctx, span := observability.Tracer("services").Start(ctx, "SubmissionService.Submit")
	defer span.End()

	w, err := s.submit(ctx, author, email, message)
	submissionsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
	} else {
		span.SetAttributes(attribute.String("wish.id", w.ID))
	}
	return w, err
}

func (s *SubmissionService) submit(ctx context.Context, author, email, message string) (*domain.Wish, error) {
	if err := s.Validate(author, email, message); err != nil {
		return nil, err
	}
	author = strings.TrimSpace(author)
	message = strings.TrimSpace(message)
	normalized := NormalizeEmail(email)

	existing, err := s.Store.FindWishesByEmail(ctx, normalized)
	if err != nil {
		return nil, &StoreError{Op: OpLookup, Err: err}
	}
	if len(existing) > 0 {
		return nil, ErrDuplicateEmail
	}

	w, err := s.Store.CreateWish(ctx, author, normalized, message)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, &StoreError{Op: OpWish, Err: err}
	}

	subject, html := s.Template.Render(author)
	if _, err := s.Store.CreateMailJob(ctx, strings.TrimSpace(email), subject, html); err != nil {
		log.Warn().Err(err).Str("wish_id", w.ID).Msg("notification job not queued")
		return w, &StoreError{Op: OpNotification, Err: err}
	}
	return w, nil
}

// SubmitFrom runs Submit under the single-flight guard of formID. A second
// call for the same form while one is running fails with
// ErrSubmissionInFlight; other forms are not affected.
func (s *SubmissionService) SubmitFrom(ctx context.Context, formID, author, email, message string) (*domain.Wish, error) {
	release, ok := s.claim(formID)
	if !ok {
		return nil, ErrSubmissionInFlight
	}
	defer release()
	return s.submitClaimed(ctx, formID, author, email, message)
}

// claim takes the guard for formID and counts a rejected attempt.
func (s *SubmissionService) claim(formID string) (release func(), ok bool) {
	release, ok = s.guard.Acquire(formID)
	if !ok {
		submissionsTotal.WithLabelValues("in_flight").Inc()
	}
	return release, ok
}

// submitClaimed is Submit for a caller already holding formID's guard.
func (s *SubmissionService) submitClaimed(ctx context.Context, formID, author, email, message string) (*domain.Wish, error) {
	ctx, span := observability.Tracer("services").Start(ctx, "SubmissionService.SubmitFrom",
		trace.WithAttributes(attribute.String("form.id", formID)),
	)
	defer span.End()
	return s.Submit(ctx, author, email, message)
}

// InFlight reports whether formID has a submission running.
func (s *SubmissionService) InFlight(formID string) bool {
	return s.guard.Held(formID)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, ErrNotificationQueue):
		return "notification_failed"
	default:
		return "store_failed"
	}
}
