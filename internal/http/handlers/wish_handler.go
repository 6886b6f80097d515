// Wish HTTP handlers.
//
// This file exposes REST endpoints for the wish wall:
//   - POST /wishes   (submit a wish, queue the thank-you mail)
//   - GET  /wishes   (ordered snapshot, weak ETag support)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous submission
// from the same scope stored a wish under it, the handler returns that wish
// with `Idempotency-Replayed: true` instead of rejecting the retry as a
// duplicate email.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/effect"
	"github.com/tbourn/go-wishwall-backend/internal/http/middleware"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
	"github.com/tbourn/go-wishwall-backend/internal/utils"
)

//
// DTOs
//

// SubmitWishRequest is the JSON payload for submitting a wish. Fields are
// validated by the submission service, not by binding tags, so that the
// error reasons stay the same on every transport.
type SubmitWishRequest struct {
	Author  string `json:"author" example:"Aisha"`
	Email   string `json:"email" example:"aisha@example.com"`
	Message string `json:"message" example:"Wishing you a lifetime of love!"`
}

// SubmitWishResponse carries the stored wish and the celebration to play.
type SubmitWishResponse struct {
	Wish        *domain.Wish  `json:"wish"`
	Celebration *effect.Batch `json:"celebration,omitempty" swaggertype:"object"`
	Message     string        `json:"message" example:"Message sent and posted! Thank you! ❤️"`
}

// ListWishesResponse is one ordered snapshot of the wall.
type ListWishesResponse struct {
	Wishes []domain.Wish    `json:"wishes"`
	Order  domain.SortOrder `json:"order" example:"desc"`
	Count  int              `json:"count" example:"12"`
}

//
// Handlers
//

// SubmitWish godoc
// @ID          submitWish
// @Summary     Submit a wish
// @Description Stores a guest's wish and queues a thank-you email. One wish per email address (case-insensitive).
// @Description Supports idempotency via the Idempotency-Key header (same key and form → same wish).
// @Tags        Wishes
// @Accept      json
// @Produce     json
//
// @Param       X-Form-ID        header  string  false "Form instance id (single-flight key, defaults to client IP)"  example(3b0c7c2e-8a57-4c55-9b8e-0d0f1c6f4e21)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SubmitWishRequest  true  "Wish payload"
//
// @Success     201  {object}  handlers.SubmitWishResponse
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous submission"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing field or invalid email"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate email or submission in progress"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /wishes [post]
func (h *Handlers) SubmitWish(c *gin.Context) {
	ctx := c.Request.Context()

	// Replay path: the middleware already matched (scope, key).
	sub := middleware.SubmissionFrom(c)
	if sub.Replay() {
		if w, err := h.wishes.GetWish(ctx, sub.ReplayOf); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusCreated, SubmitWishResponse{Wish: w, Message: msgSent})
			return
		}
	}

	var req SubmitWishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	w, err := h.submit.SubmitFrom(ctx, sub.Form, req.Author, req.Email, req.Message)
	if w != nil {
		// The wish exists even when its notification failed; a retry with
		// the same key replays it rather than hitting the duplicate check.
		h.remember(c, sub, w.ID)
	}
	if err != nil {
		failWith(c, err)
		return
	}

	ok(c, http.StatusCreated, SubmitWishResponse{
		Wish:        w,
		Celebration: h.celebration(),
		Message:     msgSent,
	})
}

// remember stores the idempotency record for the request, best effort.
func (h *Handlers) remember(c *gin.Context, sub middleware.Submission, wishID string) {
	rec, can := h.wishes.(replayRecorder)
	if !sub.Keyed() || !can || h.IdempotencyTTL <= 0 {
		return
	}
	if err := rec.SaveReplay(c.Request.Context(), sub.Scope, sub.Key, wishID, h.IdempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Str("wish_id", wishID).Msg("idempotency record not stored")
	}
}

// ListWishes godoc
// @ID          listWishes
// @Summary     List wishes
// @Description Returns the wall ordered by timestamp. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Wishes
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"wishes:desc:500:3:1718512200\")
// @Param       order          query   string  false "Sort direction"  Enums(asc, desc) default(desc)
// @Param       limit          query   int     false "Maximum number of wishes"  minimum(1) maximum(500) default(500)
//
// @Success     200  {object} handlers.ListWishesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /wishes [get]
func (h *Handlers) ListWishes(c *gin.Context) {
	ctx := c.Request.Context()

	order, valid := domain.ParseSortOrder(c.Query("order"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order must be asc or desc")
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"), h.MaxListLimit)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
		return
	}

	// ETag pre-check (best effort).
	if v, can := h.wishes.(wishVersioner); can {
		count, maxTS, err := v.WishStats(ctx)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixMicro()
			}
			etag := fmt.Sprintf(`W/"wishes:%s:%d:%d:%d"`, order, limit, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.wishes.ListWishes(ctx, order, limit)
	if err != nil {
		abortWith(c, http.StatusInternalServerError, ErrCodeListFailed, msgFeedFailed, err)
		return
	}
	ok(c, http.StatusOK, ListWishesResponse{Wishes: items, Order: order, Count: len(items)})
}
