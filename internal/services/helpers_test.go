package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
)

// newTestStore opens a WAL-mode sqlite file so the subscription goroutine and
// writers never contend on a shared-cache table lock.
func newTestStore(t *testing.T, opts ...repo.StoreOption) *repo.Store {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "wishes.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := repo.NewStore(db, opts...)
	t.Cleanup(func() {
		s.Close()
		_ = repo.Close(db)
	})
	return s
}

func countRows(t *testing.T, s *repo.Store, model any) int64 {
	t.Helper()
	var n int64
	if err := s.DB.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// fakeStore records calls and injects failures.
type fakeStore struct {
	mu      sync.Mutex
	lookups int
	wishes  []domain.Wish
	jobs    []domain.MailJob
	findErr error
	wishErr error
	jobErr  error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeStore) FindWishesByEmail(ctx context.Context, email string) ([]domain.Wish, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []domain.Wish
	for _, w := range f.wishes {
		if w.Email == email {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateWish(ctx context.Context, author, email, message string) (*domain.Wish, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wishErr != nil {
		return nil, f.wishErr
	}
	w := domain.Wish{ID: "w" + time.Now().Format("150405.000000"), Author: author, Email: email, Message: message, Timestamp: time.Now().UTC()}
	f.wishes = append(f.wishes, w)
	return &w, nil
}

func (f *fakeStore) CreateMailJob(ctx context.Context, recipient, subject, html string) (*domain.MailJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	j := domain.MailJob{ID: "j", Recipient: recipient, Subject: subject, HTML: html}
	f.jobs = append(f.jobs, j)
	return &j, nil
}

var errBoom = errors.New("boom")

// collector gathers feed callbacks.
type collector struct {
	ch   chan []domain.Wish
	errs chan error
}

func newCollector() *collector {
	return &collector{ch: make(chan []domain.Wish, 64), errs: make(chan error, 4)}
}

func (c *collector) onUpdate(ws []domain.Wish) { c.ch <- ws }
func (c *collector) onError(err error)         { c.errs <- err }

func (c *collector) next(t *testing.T) []domain.Wish {
	t.Helper()
	select {
	case ws := <-c.ch:
		return ws
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return nil
	}
}

// until waits for a snapshot of length n, skipping coalesced intermediates.
func (c *collector) until(t *testing.T, n int) []domain.Wish {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ws := <-c.ch:
			if len(ws) == n {
				return ws
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d wishes", n)
			return nil
		}
	}
}
