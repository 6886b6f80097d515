// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders. The wall is JSON plus one WebSocket
// endpoint, so no CSP is sent; a static page hosting the wall sets its own.
// Exposing X-Request-ID and ETag to browsers is the CORS layer's job.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
//
// HSTS is sent only when EnableHSTS is set and the request arrived over HTTPS
// (directly or per X-Forwarded-Proto). HSTSMaxAge defaults to 180 days.
//
// NoStore marks every response uncacheable; NoStorePrefixes does the same
// only below the given path prefixes, so the wish list is never cached while
// the countdown and docs can be.
//
// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool

	NoStorePrefixes []string
}

type headerPair struct{ key, value string }

var (
	baselineHeaders = []headerPair{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	policyHeaders = []headerPair{
		{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
		{"X-Permitted-Cross-Domain-Policies", "none"},
	}
	noStoreHeaders = []headerPair{
		{"Cache-Control", "no-store"},
		{"Pragma", "no-cache"},
		{"Expires", "0"},
	}
)

// SecurityHeaders returns a middleware that sets the hardening headers before
// the handler runs.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	static := append([]headerPair(nil), baselineHeaders...)
	if opt.EnablePolicy {
		static = append(static, policyHeaders...)
	}

	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	prefixes := make([]string, 0, len(opt.NoStorePrefixes))
	for _, p := range opt.NoStorePrefixes {
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		setAll(h, static)
		if opt.NoStore || hasAnyPrefix(c.Request.URL.Path, prefixes) {
			setAll(h, noStoreHeaders)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

func setAll(h http.Header, pairs []headerPair) {
	for _, p := range pairs {
		h.Set(p.key, p.value)
	}
}

// isHTTPS reports whether r came in over TLS, either directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
