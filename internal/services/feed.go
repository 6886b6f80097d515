// Package services – Feed
//
// Feed keeps one viewer's materialized, ordered list of wishes in sync with
// the store. Every change notification replaces the list wholesale. Changing
// the sort order tears down the standing subscription and opens a new one so
// ordering always comes from the store.
//
// Callbacks run on the store's delivery goroutine. Subscribe, SetOrder,
// Toggle, Resubscribe and Unsubscribe wait for the previous subscription to
// drain and must not be called from inside onUpdate or onError.

package services

import (
	"fmt"
	"sync"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
)

// FeedState is the lifecycle of a Feed.
type FeedState int

const (
	FeedIdle FeedState = iota
	FeedLoading
	FeedLive
	FeedErrored
)

func (s FeedState) String() string {
	switch s {
	case FeedIdle:
		return "idle"
	case FeedLoading:
		return "loading"
	case FeedLive:
		return "live"
	case FeedErrored:
		return "errored"
	}
	return fmt.Sprintf("FeedState(%d)", int(s))
}

// WishSource is the store adapter's subscription primitive.
type WishSource interface {
	SubscribeWishes(order domain.SortOrder, onChange func([]domain.Wish), onError func(error)) repo.Unsubscribe
}

// Feed is a single standing view of the wish collection.
type Feed struct {
	src WishSource

	mu       sync.Mutex
	state    FeedState
	order    domain.SortOrder
	gen      uint64
	unsub    repo.Unsubscribe
	snapshot []domain.Wish
	onUpdate func([]domain.Wish)
	onError  func(error)
}

// NewFeed returns an idle feed over src, ordered newest first.
func NewFeed(src WishSource) *Feed {
	return &Feed{src: src, order: domain.Descending}
}

// Subscribe starts the feed. onUpdate receives every full snapshot, starting
// with the initial load. onError receives a transport failure wrapped in
// ErrSubscription, after which no updates arrive until a new subscription.
// A running subscription is replaced. The returned func releases it.
func (f *Feed) Subscribe(order domain.SortOrder, onUpdate func([]domain.Wish), onError func(error)) func() {
	if !order.Valid() {
		order = domain.Descending
	}
	f.mu.Lock()
	if f.state == FeedIdle {
		feedSubscribers.Inc()
	}
	f.onUpdate, f.onError = onUpdate, onError
	f.mu.Unlock()

	f.restart(order)
	return f.Unsubscribe
}

// SetOrder switches the direction with a full resubscribe. On an idle feed it
// only records the order for the next Subscribe.
func (f *Feed) SetOrder(order domain.SortOrder) {
	if !order.Valid() {
		return
	}
	f.mu.Lock()
	if f.state == FeedIdle {
		f.order = order
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.restart(order)
}

// Toggle flips the direction and returns the new one.
func (f *Feed) Toggle() domain.SortOrder {
	f.mu.Lock()
	next := f.order.Reverse()
	f.mu.Unlock()
	f.SetOrder(next)
	return next
}

// Resubscribe reopens the subscription in the current order. It is the way
// out of FeedErrored.
func (f *Feed) Resubscribe() {
	f.mu.Lock()
	order := f.order
	f.mu.Unlock()
	f.SetOrder(order)
}

// Unsubscribe releases the standing subscription and returns the feed to
// FeedIdle. No callback runs after it returns. Extra calls are no-ops.
func (f *Feed) Unsubscribe() {
	f.mu.Lock()
	if f.state == FeedIdle {
		f.mu.Unlock()
		return
	}
	feedSubscribers.Dec()
	old := f.unsub
	f.unsub = nil
	f.gen++
	f.state = FeedIdle
	f.snapshot = nil
	f.onUpdate, f.onError = nil, nil
	f.mu.Unlock()

	release(old)
}

// State returns the current lifecycle state.
func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Order returns the current direction.
func (f *Feed) Order() domain.SortOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order
}

// Snapshot returns the last delivered list. The slice is never mutated by the
// feed, so callers may keep it.
func (f *Feed) Snapshot() []domain.Wish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

// restart drains the current subscription, then opens one for order. The
// old delivery goroutine has exited before the new one starts, so callbacks
// never overlap. A restart superseded while draining does not subscribe.
func (f *Feed) restart(order domain.SortOrder) {
	f.mu.Lock()
	old := f.unsub
	f.unsub = nil
	f.gen++
	gen := f.gen
	f.order = order
	f.state = FeedLoading
	f.snapshot = nil
	f.mu.Unlock()

	release(old)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return
	}
	f.unsub = f.src.SubscribeWishes(order,
		func(ws []domain.Wish) { f.deliver(gen, ws) },
		func(err error) { f.fail(gen, err) },
	)
}

func (f *Feed) deliver(gen uint64, ws []domain.Wish) {
	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.state = FeedLive
	f.snapshot = ws
	cb := f.onUpdate
	f.mu.Unlock()

	if cb != nil {
		cb(ws)
	}
}

func (f *Feed) fail(gen uint64, err error) {
	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.state = FeedErrored
	f.gen++
	cb := f.onError
	f.mu.Unlock()

	if cb != nil {
		cb(fmt.Errorf("%w: %w", ErrSubscription, err))
	}
}

func release(u repo.Unsubscribe) {
	if u != nil {
		u()
	}
}
