// Command server runs the wish wall backend: the REST and WebSocket API,
// the store, and the notification mailer.
//
//	@title			Wish Wall API
//	@version		1.0
//	@description	Guests leave a wish for the couple and watch the wall fill up live.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-wishwall-backend/internal/config"
	httpapi "github.com/tbourn/go-wishwall-backend/internal/http"
	"github.com/tbourn/go-wishwall-backend/internal/mailer"
	"github.com/tbourn/go-wishwall-backend/internal/observability"
	"github.com/tbourn/go-wishwall-backend/internal/repo"
	"github.com/tbourn/go-wishwall-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

const shutdownTimeout = 5 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	gin.SetMode(cfg.GinMode)

	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")
	log.Info().Str("version", ver).Str("db_driver", cfg.DBDriver).Msg("starting wish wall")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DBTarget())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	store := repo.NewStore(db, repo.WithStrictEmailIDs(cfg.StrictEmailUniqueness))
	stopWatch := store.StartWatch(ctx, cfg.DBPollInterval)

	var dispatcher *mailer.Dispatcher
	if cfg.Mailer.Enabled {
		m := cfg.Mailer
		dispatcher = mailer.NewDispatcher(store, mailer.NewSMTPSender(m.SMTPHost, m.SMTPPort, m.SMTPUser, m.SMTPPassword, m.SMTPFrom), m.Batch)
		dispatcher.Purger = store
		if err := dispatcher.Start(m.Schedule); err != nil {
			log.Fatal().Err(err).Msg("mailer schedule rejected")
		}
		log.Info().Str("schedule", m.Schedule).Int("batch", m.Batch).Msg("mailer started")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, store, cfg)
	srv := startHTTPServer(r, cfg)

	<-ctx.Done()
	log.Info().Msg("shutdown requested")

	shutdownHTTP(srv)
	if dispatcher != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		dispatcher.Stop(sctx)
		cancel()
	}
	stopWatch()
	store.Close()
	if err := repo.Close(db); err != nil {
		log.Warn().Err(err).Msg("database close failed")
	}

	octx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownOTel(octx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("wish wall stopped")
}

func startHTTPServer(h http.Handler, cfg config.Config) *http.Server {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()
	return srv
}

// shutdownHTTP drains in-flight requests. Hijacked WebSocket connections are
// not tracked by Shutdown and end with the process.
func shutdownHTTP(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown http server")
	}
}
