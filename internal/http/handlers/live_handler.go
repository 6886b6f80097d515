// Live page handler.
//
// GET /live upgrades to a WebSocket. One connection is one page instance: it
// owns a submission form, a live feed and a celebration controller, and all
// three are torn down when the connection closes.
//
// Server frames:
//
//	{"type":"order","order":"desc"}
//	{"type":"snapshot","wishes":[...]}
//	{"type":"submit_result","ok":true,"wish":{...},"message":"..."}
//	{"type":"submit_result","ok":false,"code":"duplicate_email","message":"..."}
//	{"type":"celebration","celebration":{"particles":[...],"lifetime_ms":6120}}
//	{"type":"celebration_done"}
//	{"type":"error","code":"subscription_failed","message":"..."}
//
// Client frames:
//
//	{"type":"submit","author":"...","email":"...","message":"..."}
//	{"type":"order","order":"asc"}
//	{"type":"toggle"}
//	{"type":"resubscribe"}
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-wishwall-backend/internal/domain"
	"github.com/tbourn/go-wishwall-backend/internal/effect"
	"github.com/tbourn/go-wishwall-backend/internal/http/middleware"
	"github.com/tbourn/go-wishwall-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameBytes  = 64 << 10
	outboxCapacity = 32
)

// Frame types.
const (
	frameOrder           = "order"
	frameSnapshot        = "snapshot"
	frameSubmit          = "submit"
	frameSubmitResult    = "submit_result"
	frameCelebration     = "celebration"
	frameCelebrationDone = "celebration_done"
	frameError           = "error"
	frameToggle          = "toggle"
	frameResubscribe     = "resubscribe"
)

// ClientFrame is a message sent by the live page.
type ClientFrame struct {
	Type    string `json:"type"`
	Author  string `json:"author,omitempty"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message,omitempty"`
	Order   string `json:"order,omitempty"`
}

// ServerFrame is a message pushed to the live page.
type ServerFrame struct {
	Type        string           `json:"type"`
	Order       domain.SortOrder `json:"order,omitempty"`
	OK          *bool            `json:"ok,omitempty"`
	Wish        *domain.Wish     `json:"wish,omitempty"`
	Celebration *effect.Batch    `json:"celebration,omitempty"`
	Code        string           `json:"code,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// SnapshotFrame carries one full ordered list. Wishes is never null.
type SnapshotFrame struct {
	Type   string        `json:"type"`
	Wishes []domain.Wish `json:"wishes"`
}

// Live godoc
// @ID          live
// @Summary     Live wish wall (WebSocket)
// @Description Upgrades to a WebSocket that streams ordered snapshots of the wall, accepts submissions and pushes the celebration effect.
// @Tags        Wishes
// @Param       order  query  string  false "Initial sort direction"  Enums(asc, desc) default(desc)
// @Success     101  {string}  string  "Switching Protocols"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Router      /live [get]
func (h *Handlers) Live(c *gin.Context) {
	order, valid := domain.ParseSortOrder(c.Query("order"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order must be asc or desc")
		return
	}

	up := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		lg := middleware.LoggerFrom(c)
		lg.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	done := middleware.TrackWebSocket(c)
	defer done()

	s := h.newSession(conn, *middleware.LoggerFrom(c))
	s.run(order)
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, o := range h.AllowedOrigins {
		if strings.EqualFold(o, origin) || strings.EqualFold(o, u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

// session is one live page instance.
type session struct {
	conn *websocket.Conn
	log  zerolog.Logger

	feed *services.Feed
	form *services.Form
	fx   *effect.Controller

	out        chan any
	done       chan struct{}
	writerDone chan struct{}
	once       sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func (h *Handlers) newSession(conn *websocket.Conn, lg zerolog.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		conn:       conn,
		feed:       services.NewFeed(h.wishes),
		form:       services.NewForm(h.submit),
		fx:         h.NewEffect(),
		out:        make(chan any, outboxCapacity),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.log = lg.With().Str("form_id", s.form.ID).Logger()
	s.form.Effect = s.fx
	s.form.OnCelebrated = func() { s.send(ServerFrame{Type: frameCelebrationDone}) }
	return s
}

// run serves the connection until the peer goes away. Feed and form calls
// happen only on this goroutine or on submit workers, never inside feed
// callbacks.
func (s *session) run(order domain.SortOrder) {
	go func() {
		defer close(s.writerDone)
		s.writeLoop()
	}()
	defer s.teardown()

	s.log.Info().Str("order", string(order)).Msg("live session opened")
	s.send(ServerFrame{Type: frameOrder, Order: order})
	s.feed.Subscribe(order, s.onSnapshot, s.onFeedError)

	s.conn.SetReadLimit(maxFrameBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("live session read failed")
			}
			return
		}
		var in ClientFrame
		if err := json.Unmarshal(data, &in); err != nil {
			s.send(ServerFrame{Type: frameError, Code: ErrCodeBadRequest, Message: "invalid frame"})
			continue
		}
		s.handle(in)
	}
}

func (s *session) handle(in ClientFrame) {
	switch in.Type {
	case frameSubmit:
		s.startSubmit(in.Author, in.Email, in.Message)
	case frameOrder:
		order, valid := domain.ParseSortOrder(in.Order)
		if !valid {
			s.send(ServerFrame{Type: frameError, Code: ErrCodeBadRequest, Message: "order must be asc or desc"})
			return
		}
		s.send(ServerFrame{Type: frameOrder, Order: order})
		s.feed.SetOrder(order)
	case frameToggle:
		// A snapshot already in flight may still arrive in the old order.
		next := s.feed.Order().Reverse()
		s.send(ServerFrame{Type: frameOrder, Order: next})
		s.feed.SetOrder(next)
	case frameResubscribe:
		s.feed.Resubscribe()
	default:
		s.send(ServerFrame{Type: frameError, Code: ErrCodeBadRequest, Message: "unknown frame type"})
	}
}

// startSubmit claims the form on the read loop, then sends the draft off it
// so the page stays live. A submit frame arriving while one is running is
// rejected and never replaces the running draft.
func (s *session) startSubmit(author, email, message string) {
	run, err := s.form.Begin(author, email, message)
	if err != nil {
		s.reject(ErrCodeSubmissionInProgress, msgInProgress)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := run(s.ctx)
		if err != nil {
			_, code, msg := classify(err)
			if code == ErrCodeStoreUnavailable {
				s.log.Error().Err(err).Msg("live submission failed")
			}
			s.reject(code, msg)
		} else {
			yes := true
			s.send(ServerFrame{Type: frameSubmitResult, OK: &yes, Wish: res.Wish, Message: msgSent})
		}
		if res != nil && res.Celebration != nil {
			s.send(ServerFrame{Type: frameCelebration, Celebration: res.Celebration})
		}
	}()
}

func (s *session) reject(code, msg string) {
	no := false
	s.send(ServerFrame{Type: frameSubmitResult, OK: &no, Code: code, Message: msg})
}

func (s *session) onSnapshot(ws []domain.Wish) {
	if ws == nil {
		ws = []domain.Wish{}
	}
	s.send(SnapshotFrame{Type: frameSnapshot, Wishes: ws})
}

func (s *session) onFeedError(err error) {
	s.log.Error().Err(err).Msg("live feed failed")
	_, code, msg := classify(err)
	s.send(ServerFrame{Type: frameError, Code: code, Message: msg})
}

// send queues a frame. After teardown it drops the frame instead of blocking.
func (s *session) send(f any) {
	select {
	case s.out <- f:
	case <-s.done:
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case f := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// close unblocks senders and the reader. It is safe to call repeatedly.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.SetReadDeadline(time.Now())
	})
}

// teardown releases the feed, waits for submit workers, cancels the
// celebration timer and closes the connection once the writer has exited.
func (s *session) teardown() {
	s.close()
	s.cancel()
	s.feed.Unsubscribe()
	s.wg.Wait()
	s.fx.Stop()
	<-s.writerDone
	_ = s.conn.Close()
	s.log.Info().Msg("live session closed")
}
