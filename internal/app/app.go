// Package app wires configuration, storage, admission control, and the HTTP
// server into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/booking"
	"github.com/imutis/imutis-api/internal/config"
	"github.com/imutis/imutis-api/internal/db"
	"github.com/imutis/imutis-api/internal/http/api"
	"github.com/imutis/imutis-api/internal/notify"
	"github.com/imutis/imutis-api/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations plus reference seeding.
func Migrate(_ context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the API server and blocks until ctx is cancelled or the
// listener fails.
func RunServer(ctx context.Context, cfg config.Config, port int) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	limiter := ratelimit.NewManager(cfg.Redis, cfg.RateLimit.FailurePolicy, nil)
	defer func() {
		if errClose := limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limiter")
		}
	}()

	hub := notify.NewHub()
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, api.Deps{
		DB:       conn,
		JWT:      cfg.JWT,
		Gateway:  admission.NewGateway(limiter, cfg.RateLimit),
		Reserver: booking.NewService(conn, nil),
		Hub:      hub,
		Notify:   notify.NewService(conn, hub),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
