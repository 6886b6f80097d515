package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-wishwall-backend/internal/countdown"
)

// Countdown godoc
// @ID          getCountdown
// @Summary     Time left until the event
// @Description Returns the remaining time broken into days, hours, minutes and seconds, or the showtime label once the event has started.
// @Tags        Event
// @Produce     json
// @Success     200  {object}  countdown.Status
// @Router      /countdown [get]
func (h *Handlers) Countdown(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, h.status())
}

func (h *Handlers) status() countdown.Status {
	if h.countdown == nil {
		return countdown.Status{Started: true, Label: countdown.Showtime}
	}
	return h.countdown.Now()
}
