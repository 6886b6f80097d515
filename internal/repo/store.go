// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides Store, the adapter the services use as
// their document store: create, query-by-field, and ordered subscriptions
// over the wish collection.
//
// Store is the single writer in the process, so it can fan out change
// notifications itself: every committed wish write wakes the standing
// subscriptions, each of which re-reads the full ordered collection and
// hands the caller a complete snapshot.
package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-wishwall-backend/internal/clock"
	"github.com/tbourn/go-wishwall-backend/internal/domain"
)

// wishIDNamespace seeds name-based wish ids in strict uniqueness mode.
var wishIDNamespace = uuid.MustParse("6f1f5a0c-6a43-4f5e-9d55-1d2b8e2b7c41")

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces the clock used to stamp writes.
func WithClock(c clock.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithStrictEmailIDs derives each wish id from its normalized email so that
// the primary key rejects a second wish for the same address. Without it,
// uniqueness is only the caller's check-then-write.
func WithStrictEmailIDs(on bool) StoreOption {
	return func(s *Store) { s.strict = on }
}

// Store is the document-store adapter over a GORM handle. It is safe for
// concurrent use.
type Store struct {
	DB *gorm.DB

	clock  clock.Clock
	strict bool

	tsMu sync.Mutex
	last time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]*subscription
}

// NewStore wraps db. The handle is owned by the caller.
func NewStore(db *gorm.DB, opts ...StoreOption) *Store {
	s := &Store{
		DB:    db,
		clock: clock.Real(),
		subs:  make(map[int]*subscription),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateWish writes a new wish with a store-assigned id and timestamp.
// In strict mode a second wish for the same email fails with ErrDuplicate.
func (s *Store) CreateWish(ctx context.Context, author, email, message string) (*domain.Wish, error) {
	id := uuid.NewString()
	if s.strict {
		id = uuid.NewSHA1(wishIDNamespace, []byte(email)).String()
	}
	w := NewWish(id, author, email, message, s.stamp())
	if err := InsertWish(ctx, s.DB, w); err != nil {
		if s.strict && IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	s.notify()
	return w, nil
}

// CreateMailJob queues a notification email. Jobs share the wish stamp
// sequence so queue order is the write order.
func (s *Store) CreateMailJob(ctx context.Context, recipient, subject, html string) (*domain.MailJob, error) {
	return CreateMailJob(ctx, s.DB, recipient, subject, html, s.stamp())
}

// FindWishesByEmail queries the wish collection by normalized email.
func (s *Store) FindWishesByEmail(ctx context.Context, email string) ([]domain.Wish, error) {
	return FindWishesByEmail(ctx, s.DB, email)
}

// GetWish loads one wish by id.
func (s *Store) GetWish(ctx context.Context, id string) (*domain.Wish, error) {
	return GetWish(ctx, s.DB, id)
}

// ListWishes returns one ordered snapshot of the collection.
func (s *Store) ListWishes(ctx context.Context, order domain.SortOrder, limit int) ([]domain.Wish, error) {
	return ListWishes(ctx, s.DB, order, limit)
}

// CountWishes returns the number of stored wishes.
func (s *Store) CountWishes(ctx context.Context) (int64, error) {
	return CountWishes(ctx, s.DB)
}

// ListMailJobs returns up to limit queued jobs, oldest first.
func (s *Store) ListMailJobs(ctx context.Context, limit int) ([]domain.MailJob, error) {
	return ListMailJobs(ctx, s.DB, limit)
}

// DeleteMailJob removes a delivered job.
func (s *Store) DeleteMailJob(ctx context.Context, id string) error {
	return DeleteMailJob(ctx, s.DB, id)
}

// stamp returns a strictly increasing UTC instant with microsecond
// precision, which every supported driver stores without loss.
func (s *Store) stamp() time.Time {
	s.tsMu.Lock()
	defer s.tsMu.Unlock()
	ts := s.clock.Now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}

// Unsubscribe releases a standing subscription. It is idempotent, blocks until
// the delivery goroutine has exited, and guarantees no callback runs after it
// returns. It must not be called from inside the subscription's callbacks.
type Unsubscribe func()

type subscription struct {
	order    domain.SortOrder
	onChange func([]domain.Wish)
	onError  func(error)
	wake     chan struct{}
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// SubscribeWishes opens a standing subscription ordered by timestamp. The
// initial load is delivered as the first onChange; every later committed
// wish write triggers a fresh full snapshot. Bursts of writes may coalesce
// into one snapshot. A query failure is reported once through onError and
// ends the subscription.
func (s *Store) SubscribeWishes(order domain.SortOrder, onChange func([]domain.Wish), onError func(error)) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		order:    order,
		onChange: onChange,
		onError:  onError,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = sub
	s.subMu.Unlock()

	go s.deliver(id, sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.remove(id)
		})
		<-sub.done
	}
}

// Subscribers reports the number of standing subscriptions.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Store) deliver(id int, sub *subscription) {
	defer close(sub.done)
	defer s.remove(id)

	if !s.emit(sub) {
		return
	}
	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-sub.wake:
			if !s.emit(sub) {
				return
			}
		}
	}
}

// emit reports whether the subscription is still live afterwards.
func (s *Store) emit(sub *subscription) bool {
	wishes, err := ListWishes(sub.ctx, s.DB, sub.order, 0)
	if sub.ctx.Err() != nil {
		return false
	}
	if err != nil {
		if sub.onError != nil {
			sub.onError(err)
		}
		return false
	}
	if sub.onChange != nil {
		sub.onChange(wishes)
	}
	return sub.ctx.Err() == nil
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
			// a wake-up is already pending; the next snapshot covers this write
		}
	}
}

func (s *Store) remove(id int) {
	s.subMu.Lock()
	delete(s.subs, id)
	s.subMu.Unlock()
}

// Close ends every standing subscription. Later writes still succeed.
func (s *Store) Close() {
	s.subMu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}
}
