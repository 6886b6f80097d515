package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/effect"
)

// Celebrator plays the success effect. *effect.Controller satisfies it.
type Celebrator interface {
	Play(onFinished func()) effect.Batch
}

// Submission is the result of a successful form submit.
type Submission struct {
	Wish        *domain.Wish  `json:"wish"`
	Celebration *effect.Batch `json:"celebration,omitempty"`
}

// Form is one guest-facing form instance. It holds the draft fields, guards
// against re-entrant submits, clears itself on success and starts the
// celebration.
type Form struct {
	ID string

	svc *SubmissionService

	// Effect is optional. OnCelebrated runs when a batch clears.
	Effect       Celebrator
	OnCelebrated func()

	mu      sync.Mutex
	author  string
	email   string
	message string
}

// NewForm binds a fresh form instance to svc.
func NewForm(svc *SubmissionService) *Form {
	return &Form{ID: uuid.NewString(), svc: svc}
}

// Set replaces the draft fields.
func (f *Form) Set(author, email, message string) {
	f.mu.Lock()
	f.author, f.email, f.message = author, email, message
	f.mu.Unlock()
}

// Fields returns the current draft.
func (f *Form) Fields() (author, email, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.author, f.email, f.message
}

// Busy reports whether a submit is running.
func (f *Form) Busy() bool { return f.svc.InFlight(f.ID) }

// Submit sends the current draft. On success the fields are cleared and the
// effect is played. When the notification job fails the wish still exists,
// so the form clears and celebrates but the error is returned.
func (f *Form) Submit(ctx context.Context) (*Submission, error) {
	release, ok := f.svc.claim(f.ID)
	if !ok {
		return nil, ErrSubmissionInFlight
	}
	defer release()
	author, email, message := f.Fields()
	return f.send(ctx, author, email, message)
}

// Begin claims the form and replaces the draft in one step, for callers that
// submit on another goroutine. A second Begin while a submit is running fails
// with ErrSubmissionInFlight and leaves the running draft alone. The returned
// run sends the claimed draft and frees the form; call it exactly once.
func (f *Form) Begin(author, email, message string) (run func(context.Context) (*Submission, error), err error) {
	release, ok := f.svc.claim(f.ID)
	if !ok {
		return nil, ErrSubmissionInFlight
	}
	f.Set(author, email, message)
	return func(ctx context.Context) (*Submission, error) {
		defer release()
		return f.send(ctx, author, email, message)
	}, nil
}

func (f *Form) send(ctx context.Context, author, email, message string) (*Submission, error) {
	w, err := f.svc.submitClaimed(ctx, f.ID, author, email, message)
	if w == nil {
		return nil, err
	}

	f.mu.Lock()
	if f.author == author && f.email == email && f.message == message {
		f.author, f.email, f.message = "", "", ""
	}
	f.mu.Unlock()

	res := &Submission{Wish: w}
	if f.Effect != nil {
		b := f.Effect.Play(f.OnCelebrated)
		res.Celebration = &b
	}
	return res, err
}
