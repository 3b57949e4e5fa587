// Package web serves the HTTP API.
package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/idp"
	fiberlogger "github.com/agromano/identity-gate/internal/logger/adapter/fiber"
	"github.com/agromano/identity-gate/internal/web/handler"
	"github.com/agromano/identity-gate/internal/web/handler/me"
	"github.com/agromano/identity-gate/internal/web/handler/roles"
	"github.com/agromano/identity-gate/internal/web/handler/syncadmin"
)

const healthTimeout = 2 * time.Second

// Deps are the services the web service is built on.
type Deps struct {
	handler.Deps
	Gate  *auth.Gate
	Probe *idp.Probe
}

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	deps         Deps
	fastShutDown bool
	alive        atomic.Bool
	storage      fiber.Storage
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan error, 1)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneFiber <- err
			return
		}

		doneFiber <- nil
	}()

	return <-doneFiber // wait for fiber to stop
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the server down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown stops the server. Unless fastShutDown is set the health check
// fails for ShutDownTime seconds first so load balancers drain this instance.
func (s *Service) Shutdown() {
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close rate limit storage")
		}
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates the web service and registers every route.
func New(cfg *config.Config, deps Deps) (*Service, error) {
	if cfg == nil || deps.Gate == nil || deps.Store == nil {
		return nil, handler.ErrNilDependency
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			// provider subjects contain '|' and arrive percent encoded
			UnescapePath: true,
		},
	)

	service := &Service{
		App:          app,
		cfg:          cfg,
		fastShutDown: cfg.DevMode,
	}
	service.alive.Store(true)

	if cfg.Webserver.CleanPath {
		app.Use(cleanPath)
	}

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New(recover.Config{EnableStackTrace: cfg.DevMode}))
	}

	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: handler.HealthPath,
	}))

	app.Get(handler.HealthPath, service.health)
	app.Get(handler.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	if cfg.Webserver.RateLimit.Enabled {
		limit, storage, err := newLimiter(cfg)
		if err != nil {
			return nil, err
		}

		deps.Limiter = limit
		service.storage = storage
	}

	service.deps = deps

	api := app.Group(handler.APIPath, deps.Gate.Authenticate())

	for _, h := range []handler.Service{&me.Handler, &syncadmin.Handler, &roles.Handler} {
		if err := h.Init(api, cfg, deps.Deps); err != nil {
			return nil, err
		}
	}

	return service, nil
}

// health reports liveness, database reachability and the provider breaker state.
func (s *Service) health(c *fiber.Ctx) error {
	status := fiber.StatusOK
	body := fiber.Map{"status": "ok", "db": "ok"}

	if s.deps.Probe != nil {
		body["idp"] = s.deps.Probe.State().String()
	}

	if !s.alive.Load() {
		status = fiber.StatusServiceUnavailable
		body["status"] = "shutting_down"
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := s.ping(ctx); err != nil {
		log.Error().Err(err).Msg("health check: database unreachable")

		status = fiber.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["db"] = "unreachable"
	}

	return c.Status(status).JSON(body)
}

func (s *Service) ping(ctx context.Context) error {
	sqlDB, err := s.deps.Store.DB().DB()
	if err != nil {
		return err //nolint:wrapcheck
	}

	return sqlDB.PingContext(ctx) //nolint:wrapcheck
}
