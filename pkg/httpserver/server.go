package httpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/app"
	"github.com/Nephrolytics-ai/call-auditor/pkg/config"
	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"github.com/Nephrolytics-ai/call-auditor/pkg/workflow"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Server wraps the Fiber app and the single audit session it serves.
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *app.Container

	// mu serializes handlers; a Session is not safe for concurrent use.
	mu      sync.Mutex
	session *workflow.Session
}

// New constructs a server with baseline middleware and routes ready.
func New(container *app.Container) (*Server, error) {
	if container == nil {
		return nil, fmt.Errorf("dependency container is required")
	}

	cfg := container.Config
	if cfg == nil {
		return nil, fmt.Errorf("container missing config")
	}

	bodyLimit := cfg.Server.BodyLimitMB * 1024 * 1024
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ServerHeader:          "call-auditor",
		BodyLimit:             bodyLimit,
		ReadBufferSize:        8 * 1024,
		// Metric labels and span attributes outlive the request buffers.
		Immutable: true,
	})

	fiberApp.Use(requestid.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			utils.LogPanic(logging.NewLogger(c.UserContext()), e)
		},
	}))

	if obs := container.Observability; obs != nil {
		fiberApp.Use(func(c *fiber.Ctx) error {
			start := time.Now()
			err := c.Next()
			obs.RecordHTTPRequest(c.UserContext(), c.Method(), routePath(c), c.Response().StatusCode(), time.Since(start))
			return err
		})
		if handler := obs.PrometheusHandler(); handler != nil {
			fiberApp.Get("/metrics", adaptor.HTTPHandler(handler))
		}
	}

	if container.Observability.TracerProvider() != nil {
		tracer := otel.Tracer("call-auditor/http")
		fiberApp.Use(func(c *fiber.Ctx) error {
			spanCtx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path())
			c.SetUserContext(spanCtx)
			err := c.Next()
			span.SetAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.route", routePath(c)),
				attribute.Int("http.status_code", c.Response().StatusCode()),
			)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else if status := c.Response().StatusCode(); status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
			} else {
				span.SetStatus(codes.Ok, "OK")
			}
			span.End()
			return err
		})
	}

	s := &Server{
		app:       fiberApp,
		cfg:       cfg,
		container: container,
		session:   container.NewSession(),
	}

	registerHealthRoutes(fiberApp)
	s.registerAPIRoutes(fiberApp)
	mountEmbeddedUI(fiberApp)

	return s, nil
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks until context cancellation or a fatal listen error occurs.
func (s *Server) Listen(ctx context.Context) error {
	log := logging.NewLogger(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.Server.ListenAddr)
	}()
	log.Infof("listening on %s provider=%s", s.cfg.Server.ListenAddr, s.container.Provider.Name())

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := s.app.ShutdownWithContext(shutdownCtx)
		if err == nil {
			err = <-errCh
		}
		return err
	case err := <-errCh:
		return err
	}
}

func registerHealthRoutes(fiberApp *fiber.App) {
	fiberApp.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})
}

func routePath(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// stepContext bounds a provider round trip by the configured request timeout,
// if any.
func (s *Server) stepContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := logging.WithSessionID(c.UserContext(), s.session.ID())
	timeout := s.cfg.Server.RequestTimeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
