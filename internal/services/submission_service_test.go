package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
)

func TestSubmit_HappyPath(t *testing.T) {
	s := newTestStore(t)
	svc := NewSubmissionService(s)
	ctx := context.Background()

	w, err := svc.Submit(ctx, "  Aisha ", " Aisha@Example.com ", " Congrats!\nSee you there ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.Author != "Aisha" || w.Email != "aisha@example.com" || w.Message != "Congrats!\nSee you there" {
		t.Fatalf("fields not normalized: %+v", w)
	}
	if got := countRows(t, s, &domain.Wish{}); got != 1 {
		t.Fatalf("want 1 wish, got %d", got)
	}
	jobs, err := s.ListMailJobs(ctx, 10)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("want 1 job, got %d (%v)", len(jobs), err)
	}
	if jobs[0].Recipient != "Aisha@Example.com" {
		t.Fatalf("recipient should be trimmed raw email, got %q", jobs[0].Recipient)
	}
	if jobs[0].Subject != "Thank You for Your Message, Aisha!" {
		t.Fatalf("subject: %q", jobs[0].Subject)
	}
	if !strings.Contains(jobs[0].HTML, "Dear Aisha") {
		t.Fatalf("body: %q", jobs[0].HTML)
	}
}

func TestSubmit_DuplicateEmailCaseAndSpace(t *testing.T) {
	s := newTestStore(t)
	svc := NewSubmissionService(s)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "Aisha", "aisha@example.com", "Congrats!"); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := svc.Submit(ctx, "Aisha2", "AISHA@Example.com ", "Hi")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if got := countRows(t, s, &domain.Wish{}); got != 1 {
		t.Fatalf("wish count changed: %d", got)
	}
	if got := countRows(t, s, &domain.MailJob{}); got != 1 {
		t.Fatalf("job count changed: %d", got)
	}
}

func TestSubmit_Validation(t *testing.T) {
	cases := []struct {
		name                   string
		author, email, message string
		field, reason          string
	}{
		{"no author", "   ", "a@b.co", "hi", "author", ReasonMissingField},
		{"no email", "A", " ", "hi", "email", ReasonMissingField},
		{"no message", "A", "a@b.co", "\n\t", "message", ReasonMissingField},
		{"missing wins over invalid", "", "nope", "hi", "author", ReasonMissingField},
		{"no at", "A", "example.com", "hi", "email", ReasonInvalidEmail},
		{"no dot", "A", "a@example", "hi", "email", ReasonInvalidEmail},
		{"nothing before at", "A", "@b.co", "hi", "email", ReasonInvalidEmail},
		{"author too long", strings.Repeat("é", 11), "a@b.co", "hi", "author", ReasonTooLong},
		{"message too long", "A", "a@b.co", strings.Repeat("x", 21), "message", ReasonTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeStore{}
			svc := &SubmissionService{Store: fs, MaxAuthorRunes: 10, MaxMessageRunes: 20}
			_, err := svc.Submit(context.Background(), tc.author, tc.email, tc.message)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if ve.Field != tc.field || ve.Reason != tc.reason {
				t.Fatalf("got %s/%s, want %s/%s", ve.Field, ve.Reason, tc.field, tc.reason)
			}
			if fs.lookups != 0 || len(fs.wishes) != 0 || len(fs.jobs) != 0 {
				t.Fatalf("store touched before validation passed")
			}
		})
	}
}

func TestSubmit_LimitsAtBoundary(t *testing.T) {
	fs := &fakeStore{}
	svc := &SubmissionService{Store: fs, MaxAuthorRunes: 3, MaxMessageRunes: 3}
	if _, err := svc.Submit(context.Background(), "ééé", "a@b.co", "abc"); err != nil {
		t.Fatalf("exact limit should pass: %v", err)
	}
}

func TestSubmit_StoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup", func(t *testing.T) {
		fs := &fakeStore{findErr: errBoom}
		_, err := NewSubmissionService(fs).Submit(ctx, "A", "a@b.co", "hi")
		var se *StoreError
		if !errors.As(err, &se) || se.Op != OpLookup || !errors.Is(err, errBoom) {
			t.Fatalf("want lookup StoreError, got %v", err)
		}
		if len(fs.wishes) != 0 {
			t.Fatalf("no write expected")
		}
	})

	t.Run("wish write", func(t *testing.T) {
		fs := &fakeStore{wishErr: errBoom}
		w, err := NewSubmissionService(fs).Submit(ctx, "A", "a@b.co", "hi")
		if w != nil || !errors.Is(err, ErrStoreWrite) || errors.Is(err, ErrNotificationQueue) {
			t.Fatalf("want plain store write error, got %v", err)
		}
		if len(fs.jobs) != 0 {
			t.Fatalf("job must not be queued after failed wish write")
		}
	})

	t.Run("notification write keeps wish", func(t *testing.T) {
		fs := &fakeStore{jobErr: errBoom}
		w, err := NewSubmissionService(fs).Submit(ctx, "A", "a@b.co", "hi")
		if !errors.Is(err, ErrNotificationQueue) || !errors.Is(err, ErrStoreWrite) {
			t.Fatalf("want notification error, got %v", err)
		}
		if w == nil || len(fs.wishes) != 1 {
			t.Fatalf("wish must remain when notification fails")
		}
	})

	t.Run("strict duplicate on write", func(t *testing.T) {
		fs := &fakeStore{wishErr: repo.ErrDuplicate}
		_, err := NewSubmissionService(fs).Submit(ctx, "A", "a@b.co", "hi")
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("want ErrDuplicateEmail, got %v", err)
		}
	})
}

func TestSubmit_StrictModeClosesRace(t *testing.T) {
	s := newTestStore(t, repo.WithStrictEmailIDs(true))
	svc := NewSubmissionService(s)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), "Racer", "race@example.com", "hi")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateEmail):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("want exactly one success, got %d", ok)
	}
	if got := countRows(t, s, &domain.Wish{}); got != 1 {
		t.Fatalf("want 1 wish, got %d", got)
	}
}

func TestSubmitFrom_SingleFlightPerForm(t *testing.T) {
	fs := &fakeStore{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := NewSubmissionService(fs)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.SubmitFrom(ctx, "form-1", "A", "a@b.co", "hi")
		done <- err
	}()
	<-fs.entered

	if !svc.InFlight("form-1") {
		t.Fatalf("form-1 should be in flight")
	}
	if _, err := svc.SubmitFrom(ctx, "form-1", "B", "b@b.co", "hi"); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("want ErrSubmissionInFlight, got %v", err)
	}

	// Another form is independent.
	fs.entered = nil
	other := make(chan error, 1)
	go func() {
		_, err := svc.SubmitFrom(ctx, "form-2", "C", "c@b.co", "hi")
		other <- err
	}()

	close(fs.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := <-other; err != nil {
		t.Fatalf("other form: %v", err)
	}
	if svc.InFlight("form-1") {
		t.Fatalf("guard not released")
	}
	if _, err := svc.SubmitFrom(ctx, "form-1", "D", "d@b.co", "hi"); err != nil {
		t.Fatalf("resubmit after release: %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  ÀISHA@Example.COM \n"); got != "àisha@example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeEmail_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if got := NormalizeEmail(" GUEST.ÉLAN@Example.org "); got != "guest.élan@example.org" {
					t.Errorf("got %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMailTemplate_Render(t *testing.T) {
	subj, body := MailTemplate{Event: "Riya & Dev's wedding"}.Render("<Sam>")
	if subj != "Thank You for Your Message, <Sam>!" {
		t.Fatalf("subject %q", subj)
	}
	if !strings.Contains(body, "&lt;Sam&gt;") || strings.Contains(body, "<Sam>") {
		t.Fatalf("author not escaped: %q", body)
	}
	if !strings.Contains(body, "Riya &amp; Dev&#39;s wedding") || !strings.Contains(body, defaultSignature) {
		t.Fatalf("event/signature missing: %q", body)
	}
}
