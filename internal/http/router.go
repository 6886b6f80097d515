// Package httpapi builds the wish wall's Gin engine: the middleware chain,
// the health and metrics endpoints, the optional Swagger UI and the public
// API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-wishwall-backend/docs"
	"github.com/tbourn/go-wishwall-backend/internal/config"
	"github.com/tbourn/go-wishwall-backend/internal/countdown"
	"github.com/tbourn/go-wishwall-backend/internal/http/handlers"
	"github.com/tbourn/go-wishwall-backend/internal/http/middleware"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
	"github.com/tbourn/go-wishwall-backend/internal/services"
)

const (
	// livePath is mounted under the API base path.
	livePath     = "/live"
	maxBodyBytes = 1 << 20
)

// NewSubmissionService builds the submission service from configuration.
func NewSubmissionService(store *repo.Store, cfg config.Config) *services.SubmissionService {
	svc := services.NewSubmissionService(store)
	svc.MaxAuthorRunes = cfg.MaxAuthorRunes
	svc.MaxMessageRunes = cfg.MaxMessageRunes
	svc.Template = services.MailTemplate{Event: cfg.Event.Name}
	return svc
}

// RegisterRoutes installs the middleware chain and mounts the public API
// under cfg.APIBasePath.
//
// Chain order: tracing, RequestID, RedactingLogger (which attaches the scoped
// logger), Recovery, body limit, metrics, idempotency, CORS, security
// headers, gzip. Recovery sits after the logger so a panic is logged with its
// request and form.
func RegisterRoutes(r *gin.Engine, store *repo.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	base := cfg.APIBasePath
	live := joinPath(base, livePath)

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
			SkipPaths:   []string{"/health", "/metrics"},
		}),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		middleware.Metrics(),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, store.LookupReplay),
		corsMiddleware(cfg.CORS),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS:      cfg.Security.EnableHSTS,
			HSTSMaxAge:      cfg.Security.HSTSMaxAge,
			EnablePolicy:    true,
			NoStorePrefixes: []string{joinPath(base, "/wishes")},
		}),
		// A hijacked WebSocket must see the raw writer.
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{live, "/metrics"})),
	)

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(store))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = base
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(store, NewSubmissionService(store, cfg), countdown.New(cfg.Event.Date))
	h.IdempotencyTTL = cfg.IdempotencyTTL
	h.AllowedOrigins = cfg.CORS.AllowedOrigins

	api := groupWithPrefix(r, base)
	api.POST("/wishes", h.SubmitWish)
	api.GET("/wishes", h.ListWishes)
	api.GET("/countdown", h.Countdown)
	api.GET(livePath, h.Live)
}

// corsMiddleware allows any origin when none are configured. Credentials are
// never allowed: the wall has no sessions.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept",
			middleware.HeaderFormID, middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cors.New(cc)
}

// health reports 200 while the store answers a ping.
func health(store *repo.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx, store); err != nil {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeStoreUnavailable, "store unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func ping(ctx context.Context, store *repo.Store) error {
	if store == nil || store.DB == nil {
		return errors.New("no store")
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// limitBody caps request bodies at maxBytes. Reads past the cap fail, which
// the submit handler answers as an invalid body.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath appends p to a base path that may be "" or "/".
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
