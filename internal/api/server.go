// Package api exposes registered resources over HTTP with the query
// parameter surface (filter, order, fields, limit) compiled by the
// criteria package.
package api

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/config"
)

// Server wraps the fiber app and its routes.
type Server struct {
	app *fiber.App
	cfg config.APIConfig
}

// NewServer builds the HTTP server with the REST routes mounted under
// /api/v1.
func NewServer(cfg config.APIConfig, rest *RestHandler) *Server {
	app := fiber.New(fiber.Config{
		AppName: "criteria",
	})
	app.Use(requestLogger())

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")
	rest.RegisterRoutes(v1)

	return &Server{app: app, cfg: cfg}
}

// Listen blocks serving requests until Shutdown is called.
func (s *Server) Listen() error {
	log.Info().Str("listen", s.cfg.Listen).Msg("starting HTTP server")
	return s.app.Listen(s.cfg.Listen)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func requestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := uuid.NewString()
		c.Set("X-Request-ID", id)
		start := time.Now()
		err := c.Next()
		log.Info().
			Str("request_id", id).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("request")
		return err
	}
}
