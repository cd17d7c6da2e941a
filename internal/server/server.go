// Package server exposes the HTTP surface. Handlers contain transport
// concerns only: identity extraction, parameter parsing, error translation.
// All behavior sits behind domain.AppService.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/plus-me/backend/internal/config"
	"github.com/plus-me/backend/internal/domain"
	apperrors "github.com/plus-me/backend/internal/errors"
)

// pinger is the minimal health-check surface of a connection pool or client.
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    domain.AppService

	// readiness probes; nil checks are skipped (used by handler tests).
	postgres pinger
	redis    pinger
}

func NewServer(cfg *config.Config, app domain.AppService, postgres, redis pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:     e,
		config:   cfg,
		app:      app,
		postgres: postgres,
		redis:    redis,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
