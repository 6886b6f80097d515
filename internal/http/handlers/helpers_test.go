package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-wishwall-backend/internal/clock"
	"github.com/tbourn/go-wishwall-backend/internal/countdown"
	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/effect"
	"github.com/tbourn/go-wishwall-backend/internal/http/middleware"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
	"github.com/tbourn/go-wishwall-backend/internal/services"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// testAPI bundles a store-backed Handlers with the engine routing to it.
type testAPI struct {
	h     *Handlers
	store *repo.Store
	svc   *services.SubmissionService
	clock *clock.Fake
	r     *gin.Engine
}

// newTestStore opens a WAL sqlite file; live sessions read while requests write.
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

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	fc := clock.NewFake(epoch)
	store := newTestStore(t, repo.WithClock(fc))
	svc := services.NewSubmissionService(store)
	return newTestAPIWith(t, store, svc, fc)
}

func newTestAPIWith(t *testing.T, store *repo.Store, svc *services.SubmissionService, fc *clock.Fake) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := New(store, svc, &countdown.Countdown{Target: epoch.Add(50 * time.Hour), Clock: fc})
	h.NewEffect = func() *effect.Controller { return effect.NewController(effect.WithClock(fc), effect.WithSeed(1)) }

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{Now: fc.Now}, store.LookupReplay))
	r.POST("/wishes", h.SubmitWish)
	r.GET("/wishes", h.ListWishes)
	r.GET("/countdown", h.Countdown)
	r.GET("/live", h.Live)

	return &testAPI{h: h, store: store, svc: svc, clock: fc, r: r}
}

// do performs a request against the engine. body may be nil.
func (a *testAPI) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

// seed writes wishes one fake minute apart.
func (a *testAPI) seed(t *testing.T, authors ...string) []*domain.Wish {
	t.Helper()
	out := make([]*domain.Wish, 0, len(authors))
	for _, name := range authors {
		w, err := a.store.CreateWish(context.Background(), name, name+"@example.com", "Congratulations!")
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		out = append(out, w)
		a.clock.Advance(time.Minute)
	}
	return out
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func wishIDs(ws []domain.Wish) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}

func sameIDs(a, b []string) bool {
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

// blockingStore parks FindWishesByEmail until release is closed.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) FindWishesByEmail(ctx context.Context, email string) ([]domain.Wish, error) {
	b.entered <- struct{}{}
	<-b.release
	return nil, nil
}

func (b *blockingStore) CreateWish(ctx context.Context, author, email, message string) (*domain.Wish, error) {
	return &domain.Wish{ID: "w-blocked", Author: author, Email: email, Message: message, Timestamp: epoch}, nil
}

func (b *blockingStore) CreateMailJob(ctx context.Context, recipient, subject, html string) (*domain.MailJob, error) {
	return &domain.MailJob{ID: "j-blocked"}, nil
}

var _ services.WishStore = (*blockingStore)(nil)
