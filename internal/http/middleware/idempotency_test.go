package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSubmissionFrom_DefaultsAndScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/wishes", nil)
	c.Request.RemoteAddr = "10.1.2.3:5555"

	sub := SubmissionFrom(c)
	if sub.Keyed() || sub.Replay() || sub.Scope != "ip:10.1.2.3" {
		t.Fatalf("unkeyed submission = %+v", sub)
	}

	c.Request.Header.Set(HeaderFormID, " f-1 ")
	if got := ScopeFrom(c); got != "form:f-1" {
		t.Fatalf("ScopeFrom with form id = %q", got)
	}
	c.Request.Header.Set(HeaderFormID, strings.Repeat("x", 300))
	if got := ScopeFrom(c); len(got) != len("form:")+maxFormIDLen {
		t.Fatalf("form id not capped: len %d", len(got))
	}

	c.Request.Header.Set(HeaderFormID, "f-1")
	if got := FormFrom(c); got != "form:f-1" {
		t.Fatalf("FormFrom with form id = %q", got)
	}

	// Without a form id, two requests from one address run as separate forms.
	c.Request.Header.Del(HeaderFormID)
	c.Set(ridKey, "rid-a")
	if got := FormFrom(c); got != "req:rid-a" {
		t.Fatalf("FormFrom without form id = %q", got)
	}
	other, _ := gin.CreateTestContext(httptest.NewRecorder())
	other.Request = httptest.NewRequest(http.MethodPost, "/wishes", nil)
	other.Request.RemoteAddr = "10.1.2.3:6666"
	if a, b := FormFrom(c), FormFrom(other); a == b || !strings.HasPrefix(b, "req:") {
		t.Fatalf("same-address forms collide: %q %q", a, b)
	}
	if ScopeFrom(c) != ScopeFrom(other) {
		t.Fatalf("replay scope should still follow the address")
	}

	// Foreign values under the key are ignored.
	c.Set(submissionKey, "junk")
	if SubmissionFrom(c).Keyed() {
		t.Fatalf("non-Submission value must read as unkeyed")
	}
}

// runValidator serves one POST /wishes through the validator and returns the
// recorder plus the Submission the handler saw.
func runValidator(t *testing.T, opts IdempotencyOptions, lookup IdempotencyLookup, headers map[string]string) (*httptest.ResponseRecorder, Submission, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen Submission
	reached := false

	r := gin.New()
	r.Use(RequestID(), IdempotencyValidator(opts, lookup))
	r.POST("/wishes", func(c *gin.Context) {
		reached = true
		seen = SubmissionFrom(c)
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/wishes", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen, reached
}

func TestIdempotencyValidator_NoKeySkipsLookup(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, time.Time) (string, error) {
		called = true
		return "w1", nil
	}
	w, sub, reached := runValidator(t, IdempotencyOptions{}, lookup, nil)
	if !reached || w.Code != http.StatusCreated || called || sub.Keyed() {
		t.Fatalf("reached=%v code=%d called=%v sub=%+v", reached, w.Code, called, sub)
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"default alphabet", IdempotencyOptions{}, "has space"},
		{"custom alphabet", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _, reached := runValidator(t, tc.opts, nil, map[string]string{
				HeaderIdempotencyKey: tc.key,
				requestIDHeader:      "rid-bad",
			})
			if reached || w.Code != http.StatusBadRequest {
				t.Fatalf("reached=%v code=%d", reached, w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["request_id"] != "rid-bad" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_Lookup(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.FixedZone("IST", 19800))

	t.Run("miss keeps key and scope", func(t *testing.T) {
		lookup := func(_ context.Context, scope, key string, now time.Time) (string, error) {
			if scope != "ip:192.0.2.1" || key != "key-1" {
				t.Fatalf("unexpected scope/key: %q %q", scope, key)
			}
			if now.Location() != time.UTC || !now.Equal(fixed) {
				t.Fatalf("lookup time should be the UTC option clock: %v", now)
			}
			return "", errors.New("record not found")
		}
		_, sub, _ := runValidator(t, IdempotencyOptions{Now: func() time.Time { return fixed }}, lookup,
			map[string]string{HeaderIdempotencyKey: "key-1"})
		if !sub.Keyed() || sub.Replay() || sub.Scope != "ip:192.0.2.1" || !strings.HasPrefix(sub.Form, "req:") {
			t.Fatalf("miss submission = %+v", sub)
		}
	})

	t.Run("hit names the earlier wish", func(t *testing.T) {
		lookup := func(_ context.Context, scope, key string, _ time.Time) (string, error) {
			if scope != "form:abc" || key != "k-9" {
				t.Fatalf("unexpected scope/key: %q %q", scope, key)
			}
			return "wish-7", nil
		}
		_, sub, _ := runValidator(t, IdempotencyOptions{}, lookup,
			map[string]string{HeaderIdempotencyKey: "k-9", HeaderFormID: "abc"})
		if !sub.Replay() || sub.ReplayOf != "wish-7" {
			t.Fatalf("hit submission = %+v", sub)
		}
	})

	t.Run("lookup error is a miss", func(t *testing.T) {
		lookup := func(context.Context, string, string, time.Time) (string, error) {
			return "stale", context.DeadlineExceeded
		}
		w, sub, _ := runValidator(t, IdempotencyOptions{}, lookup, map[string]string{HeaderIdempotencyKey: "k"})
		if w.Code != http.StatusCreated || sub.Replay() {
			t.Fatalf("code=%d sub=%+v", w.Code, sub)
		}
	})
}
