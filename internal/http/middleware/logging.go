// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the request correlation pieces: RequestID, the
// request-scoped zerolog.Logger that handlers and live sessions log through
// (LoggerFrom), and Recovery.
//
// Order in the router: RequestID, RedactingLogger (attaches the scoped
// logger), then Recovery, so that a panic is logged with the request and form
// it belongs to.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-wishwall-backend/internal/sysutil"
)

const (
	requestIDHeader = "X-Request-ID"
	ridKey          = "requestID"
	loggerKey       = "logger"

	maxQueryLogLength = 2048
	maxRequestIDLen   = 128
)

// RequestID propagates the caller's X-Request-ID when it looks like an id
// (at most 128 bytes of letters, digits and "-_.:"), otherwise mints a UUID.
// The id is echoed on the response and readable through RequestIDFrom.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !wellFormedID(rid) {
			rid = uuid.NewString()
		}
		c.Set(ridKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func wellFormedID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return false
		}
	}
	return true
}

// RequestIDFrom returns the correlation ID, or "" before RequestID ran.
func RequestIDFrom(c *gin.Context) string {
	rid, _ := c.Get(ridKey)
	return asString(rid)
}

// attachLogger builds the request-scoped logger and stores it in c. Only
// non-identifying fields go in: the submitter's email never reaches it.
func attachLogger(c *gin.Context, path string) *zerolog.Logger {
	rid := RequestIDFrom(c)
	if rid == "" {
		// No RequestID in front: take whatever id is already on the wire.
		rid = sysutil.FirstNonEmpty(c.Writer.Header().Get(requestIDHeader), c.GetHeader(requestIDHeader))
	}
	ctx := log.With().
		Str("request_id", rid).
		Str("method", c.Request.Method).
		Str("path", path)
	if form := c.GetHeader(HeaderFormID); form != "" {
		ctx = ctx.Str("form_id", truncate(form, 128))
	}
	l := ctx.Logger()
	c.Set(loggerKey, &l)
	return &l
}

// Recovery converts a panic into a JSON 500 in the shared error envelope
// when nothing was written yet, and logs the stack on the scoped logger.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes plus an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
