package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
)

func ids(ws []domain.Wish) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func seed(t *testing.T, s *repo.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.CreateWish(context.Background(), "Guest", "", "hello"); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestFeed_InitialLoadThenLive(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, 2)
	f := NewFeed(s)
	c := newCollector()

	if f.State() != FeedIdle {
		t.Fatalf("new feed should be idle")
	}
	unsub := f.Subscribe(domain.Descending, c.onUpdate, c.onError)
	defer unsub()

	first := c.next(t)
	if len(first) != 2 {
		t.Fatalf("initial snapshot should hold 2, got %d", len(first))
	}
	if f.State() != FeedLive {
		t.Fatalf("want live, got %s", f.State())
	}

	w, err := s.CreateWish(context.Background(), "Aisha", "aisha@example.com", "Congrats!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap := c.until(t, 3)
	if snap[0].ID != w.ID {
		t.Fatalf("newest wish should lead a descending feed")
	}
	if got := f.Snapshot(); len(got) != 3 {
		t.Fatalf("materialized list not replaced: %d", len(got))
	}
}

func TestFeed_ToggleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, 5)
	f := NewFeed(s)
	c := newCollector()
	defer f.Subscribe(domain.Descending, c.onUpdate, c.onError)()

	desc := ids(c.next(t))
	if got := f.Toggle(); got != domain.Ascending {
		t.Fatalf("toggle should give asc, got %s", got)
	}
	asc := ids(c.next(t))
	if !equal(asc, reversed(desc)) {
		t.Fatalf("asc is not the exact reverse:\n%v\n%v", desc, asc)
	}
	f.Toggle()
	again := ids(c.next(t))
	if !equal(again, desc) {
		t.Fatalf("round trip changed order:\n%v\n%v", desc, again)
	}
	if f.Order() != domain.Descending {
		t.Fatalf("order = %s", f.Order())
	}
}

func TestFeed_SnapshotsAlwaysOrdered(t *testing.T) {
	s := newTestStore(t)
	f := NewFeed(s)
	c := newCollector()
	defer f.Subscribe(domain.Ascending, c.onUpdate, c.onError)()
	c.next(t)

	seed(t, s, 6)
	deadline := time.After(5 * time.Second)
	for {
		var ws []domain.Wish
		select {
		case ws = <-c.ch:
		case <-deadline:
			t.Fatalf("timed out")
		}
		for i := 1; i < len(ws); i++ {
			if ws[i].Timestamp.Before(ws[i-1].Timestamp) {
				t.Fatalf("snapshot out of order at %d", i)
			}
		}
		if len(ws) == 6 {
			return
		}
	}
}

func TestFeed_UnsubscribeStopsUpdates(t *testing.T) {
	s := newTestStore(t)
	f := NewFeed(s)
	c := newCollector()
	unsub := f.Subscribe(domain.Descending, c.onUpdate, c.onError)
	c.next(t)

	unsub()
	unsub()
	if f.State() != FeedIdle || s.Subscribers() != 0 {
		t.Fatalf("feed not released: state=%s subs=%d", f.State(), s.Subscribers())
	}
	seed(t, s, 3)
	select {
	case ws := <-c.ch:
		t.Fatalf("update after unsubscribe: %d wishes", len(ws))
	case <-time.After(150 * time.Millisecond):
	}
}

func TestFeed_ResubscribeReplacesSubscription(t *testing.T) {
	s := newTestStore(t)
	f := NewFeed(s)
	a, b := newCollector(), newCollector()

	f.Subscribe(domain.Descending, a.onUpdate, a.onError)
	a.next(t)
	defer f.Subscribe(domain.Ascending, b.onUpdate, b.onError)()
	b.next(t)

	if s.Subscribers() != 1 {
		t.Fatalf("old subscription leaked: %d", s.Subscribers())
	}
	seed(t, s, 1)
	b.until(t, 1)
	select {
	case <-a.ch:
		t.Fatalf("replaced callbacks still receiving")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFeed_SetOrderWhileIdle(t *testing.T) {
	f := NewFeed(&fakeSource{})
	f.SetOrder(domain.Ascending)
	f.SetOrder(domain.SortOrder("sideways"))
	if f.Order() != domain.Ascending || f.State() != FeedIdle {
		t.Fatalf("idle SetOrder should only record order")
	}
}

func TestFeed_SubscriberGauge(t *testing.T) {
	before := testutil.ToFloat64(feedSubscribers)
	f := NewFeed(&fakeSource{})
	f.Subscribe(domain.Descending, nil, nil)
	f.Subscribe(domain.Ascending, nil, nil)
	if got := testutil.ToFloat64(feedSubscribers); got != before+1 {
		t.Fatalf("gauge = %v, want %v", got, before+1)
	}
	f.Unsubscribe()
	if got := testutil.ToFloat64(feedSubscribers); got != before {
		t.Fatalf("gauge = %v after unsubscribe, want %v", got, before)
	}
}

// fakeSource hands callbacks back to the test to drive the feed directly.
type fakeSource struct {
	mu      sync.Mutex
	calls   []domain.SortOrder
	change  func([]domain.Wish)
	fail    func(error)
	unsubed int
}

func (s *fakeSource) SubscribeWishes(order domain.SortOrder, onChange func([]domain.Wish), onError func(error)) repo.Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, order)
	s.change, s.fail = onChange, onError
	return func() {
		s.mu.Lock()
		s.unsubed++
		s.mu.Unlock()
	}
}

func (s *fakeSource) callbacks() (func([]domain.Wish), func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.change, s.fail
}

func TestFeed_ErrorIsTerminalUntilResubscribe(t *testing.T) {
	src := &fakeSource{}
	f := NewFeed(src)
	var updates int
	var got error
	f.Subscribe(domain.Descending, func([]domain.Wish) { updates++ }, func(err error) { got = err })

	if f.State() != FeedLoading {
		t.Fatalf("want loading before first snapshot, got %s", f.State())
	}
	change, fail := src.callbacks()
	fail(errBoom)

	if f.State() != FeedErrored {
		t.Fatalf("want errored, got %s", f.State())
	}
	if !errors.Is(got, ErrSubscription) || !errors.Is(got, errBoom) {
		t.Fatalf("error not wrapped: %v", got)
	}
	fail(errBoom)
	change([]domain.Wish{{ID: "late"}})
	if updates != 0 {
		t.Fatalf("errored feed must not emit, got %d updates", updates)
	}

	f.Resubscribe()
	if len(src.calls) != 2 || src.unsubed != 1 {
		t.Fatalf("resubscribe should release and reopen: calls=%d unsub=%d", len(src.calls), src.unsubed)
	}
	change([]domain.Wish{{ID: "stale"}})
	if updates != 0 {
		t.Fatalf("stale subscription delivered after resubscribe")
	}
	change, _ = src.callbacks()
	change([]domain.Wish{{ID: "fresh"}})
	if updates != 1 || f.State() != FeedLive {
		t.Fatalf("fresh subscription should go live: updates=%d state=%s", updates, f.State())
	}
}
