// Package handlers exposes the wish wall over HTTP.
//
// Endpoints:
//   - POST /wishes     (submit, idempotent with Idempotency-Key)
//   - GET  /wishes     (ordered snapshot, ETag support)
//   - GET  /countdown  (time left until the event)
//   - GET  /live       (WebSocket: live feed, form and celebration)
//
// Handlers are transport-thin: they decode input, call the services, and map
// results and errors onto HTTP responses or WebSocket frames.
package handlers

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/tbourn/go-wishwall-backend/internal/countdown"
	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/effect"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
	"github.com/tbourn/go-wishwall-backend/internal/services"
)

//
// Store contract
//

// WishReader is the read side of the store adapter used by the handlers.
// *repo.Store satisfies it.
type WishReader interface {
	// ListWishes returns one ordered snapshot; limit <= 0 means all.
	ListWishes(ctx context.Context, order domain.SortOrder, limit int) ([]domain.Wish, error)
	// GetWish loads a single wish for idempotent replays.
	GetWish(ctx context.Context, id string) (*domain.Wish, error)
	// SubscribeWishes backs the live feed of each WebSocket session.
	SubscribeWishes(order domain.SortOrder, onChange func([]domain.Wish), onError func(error)) repo.Unsubscribe
}

//
// Handler wiring
//

// Handlers groups the wish wall endpoints.
type Handlers struct {
	wishes    WishReader
	submit    *services.SubmissionService
	countdown *countdown.Countdown

	// IdempotencyTTL is how long an Idempotency-Key replays its wish.
	// Zero disables recording.
	IdempotencyTTL time.Duration
	// MaxListLimit caps GET /wishes?limit. Zero means unbounded.
	MaxListLimit int
	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
	// NewEffect builds the celebration controller of each live session.
	NewEffect func() *effect.Controller

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New binds the handlers to the store, the submission service and the
// event countdown.
func New(wishes WishReader, submit *services.SubmissionService, cd *countdown.Countdown) *Handlers {
	return &Handlers{
		wishes:         wishes,
		submit:         submit,
		countdown:      cd,
		IdempotencyTTL: 24 * time.Hour,
		MaxListLimit:   500,
		NewEffect:      func() *effect.Controller { return effect.NewController() },
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Optional store capabilities. Without them the handlers skip replay
// records and ETags.
type (
	replayRecorder interface {
		SaveReplay(ctx context.Context, scope, key, wishID string, ttl time.Duration) error
	}
	wishVersioner interface {
		WishStats(ctx context.Context) (count int64, latest *time.Time, err error)
	}
)

// celebration draws a one-off particle batch for REST submissions, which
// have no session to drive a controller.
func (h *Handlers) celebration() *effect.Batch {
	h.rngMu.Lock()
	b := effect.NewBatch(h.rng, time.Now())
	h.rngMu.Unlock()
	return &b
}
