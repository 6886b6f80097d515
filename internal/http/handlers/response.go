// Package handlers exposes the wish wall over HTTP.
//
// This file holds the response helpers. Every failure leaves as an
// ErrorResponse with a stable code; server-side failures are logged on the
// request-scoped logger with the cause, which never reaches the client.
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "duplicate_email",
//	  "message": "A message has already been submitted with this email address. Thank you!"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wishwall-backend/internal/http/middleware"
	"github.com/tbourn/go-wishwall-backend/internal/sysutil"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID for matching client reports to server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"duplicate_email"`
	// Safe to show to guests
	Message string `json:"message" example:"Please enter a valid email address."`
}

func requestID(c *gin.Context) string {
	return sysutil.FirstNonEmpty(middleware.RequestIDFrom(c), c.Writer.Header().Get("X-Request-ID"))
}

// fail aborts with an ErrorResponse. 5xx responses are logged.
func fail(c *gin.Context, status int, code, msg string) {
	abortWith(c, status, code, msg, nil)
}

// failWith classifies a service error and aborts with the matching response.
func failWith(c *gin.Context, err error) {
	status, code, msg := classify(err)
	abortWith(c, status, code, msg, err)
}

func abortWith(c *gin.Context, status int, code, msg string, cause error) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error().Int("status", status).Str("code", code)
		if cause != nil {
			ev = ev.Err(cause)
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute and NoMethod in the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
