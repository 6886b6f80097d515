// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for wish submissions. The
// validator checks the header, works out which form the request comes from
// and asks an IdempotencyLookup whether that (scope, key) already produced a
// wish. Handlers read the outcome with SubmissionFrom.
//
// Two keys come out of a request. Form keys the single-flight guard and is
// shared only by requests naming the same X-Form-ID; without the header every
// request is its own form. Scope keys replay records and falls back to the
// client IP, so a retried keyed POST without X-Form-ID still replays.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderIdempotencyKey carries the client's retry key for POST /wishes.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderFormID identifies the form instance a submission comes from.
	HeaderFormID = "X-Form-ID"

	submissionKey    = "submission"
	defaultMaxKeyLen = 200
	maxFormIDLen     = 128
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// Submission is what IdempotencyValidator learned about a request. The zero
// value means no key was sent.
type Submission struct {
	Key   string
	Scope string
	// Form is the single-flight key.
	Form string
	// ReplayOf is the wish an earlier request with the same key produced.
	ReplayOf string
}

// Keyed reports whether the request carried a valid key.
func (s Submission) Keyed() bool { return s.Key != "" }

// Replay reports whether the request repeats a completed submission.
func (s Submission) Replay() bool { return s.ReplayOf != "" }

// SubmissionFrom returns the validator's result for c. Without a key, Scope
// and Form are still filled in from the request.
func SubmissionFrom(c *gin.Context) Submission {
	if v, ok := c.Get(submissionKey); ok {
		if s, ok := v.(Submission); ok {
			return s
		}
	}
	return Submission{Scope: ScopeFrom(c), Form: FormFrom(c)}
}

// ScopeFrom returns "form:<X-Form-ID>" when the header is set, otherwise
// "ip:<client ip>".
func ScopeFrom(c *gin.Context) string {
	if id := formID(c); id != "" {
		return "form:" + id
	}
	return "ip:" + c.ClientIP()
}

// FormFrom returns "form:<X-Form-ID>" when the header is set, otherwise
// "req:<request id>". Guests sharing an address never share a form.
func FormFrom(c *gin.Context) string {
	if id := formID(c); id != "" {
		return "form:" + id
	}
	rid := RequestIDFrom(c)
	if rid == "" {
		rid = uuid.NewString()
	}
	return "req:" + rid
}

func formID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(HeaderFormID))
	if len(id) > maxFormIDLen {
		id = id[:maxFormIDLen]
	}
	return id
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 mean 200.
	MaxLen int
	// Pattern restricts the key alphabet. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Now is the lookup clock. Nil means time.Now.
	Now func() time.Time
}

// IdempotencyLookup returns the wish id stored for (scope, key) if a record
// is live at now. *repo.Store's LookupReplay has this shape.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (wishID string, err error)

// IdempotencyValidator rejects malformed keys with 400 and records the
// Submission for valid ones. Requests without a key pass untouched. Lookup
// errors count as a miss, so a broken store never blocks a first submission.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultMaxKeyLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		sub := Submission{Key: key, Scope: ScopeFrom(c), Form: FormFrom(c)}
		if lookup != nil {
			if id, err := lookup(c.Request.Context(), sub.Scope, key, now().UTC()); err == nil {
				sub.ReplayOf = id
			}
		}
		c.Set(submissionKey, sub)
		c.Next()
	}
}
