package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"labreserve/internal/health"
	"labreserve/pkg/config"
	"labreserve/pkg/contracts"
	apperrors "labreserve/pkg/errors"
	httputil "labreserve/pkg/http"
	"labreserve/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// Application assembles the HTTP surface: health endpoints behind minimal
// middleware, application endpoints behind the full chain, and graceful
// shutdown of the server plus any registered background workers.
type Application struct {
	cfg            *config.Config
	server         *http.Server
	rateLimiter    *middleware.UserRateLimiter
	healthHandler  http.Handler
	appHTTPHandler http.Handler
	shutdownHooks  []func()
}

func NewApplication() *Application {
	return &Application{}
}

// SetApp wires the full service: health endpoints plus every application
// handler behind authentication, rate limiting and the rest of the chain.
func (a *Application) SetApp(cfg *config.Config, handlers ...contracts.Handler) {
	a.cfg = cfg
	a.setHealthHandler(health.NewHandler(cfg.Client.Mongo, cfg.Log))
	a.setAppHandler(handlers...)
	a.setAppServer()
}

// SetDegraded wires a not-ready service: health endpoints answer, the
// readiness probe reports unavailable, and every application route
// returns 503. Used when configuration is invalid or the database is
// unreachable at startup, so the process still serves diagnostics.
func (a *Application) SetDegraded(cfg *config.Config, reason string) {
	a.cfg = cfg
	a.setHealthHandler(health.NewDegradedHandler(reason, cfg.Log))

	var unavailable http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteError(w, apperrors.Unavailable("Service is not ready"))
	})
	unavailable = middleware.RequestLogging(cfg.Log)(unavailable)
	unavailable = middleware.Recovery(cfg.Log)(unavailable)
	a.appHTTPHandler = unavailable

	a.setAppServer()
	cfg.Log.Warn("Application starting degraded", "reason", reason)
}

// OnShutdown registers a hook to run during graceful shutdown, after the
// HTTP server stops accepting requests. Hooks run in registration order.
func (a *Application) OnShutdown(hook func()) {
	a.shutdownHooks = append(a.shutdownHooks, hook)
}

func (a *Application) setHealthHandler(handler contracts.Handler) {
	healthRouter := httprouter.New()
	handler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
}

func (a *Application) setAppHandler(handlers ...contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	a.rateLimiter = middleware.NewUserRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		a.cfg.Log,
	)

	var appHTTPHandler http.Handler = appRouter
	appHTTPHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHTTPHandler)
	appHTTPHandler = middleware.UserRateLimit(a.rateLimiter)(appHTTPHandler)
	appHTTPHandler = middleware.Authenticate(a.cfg.AuthSecret, a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHTTPHandler)
	appHTTPHandler = middleware.RequestLogging(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.Recovery(a.cfg.Log)(appHTTPHandler)
	a.appHTTPHandler = appHTTPHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	for _, hook := range a.shutdownHooks {
		hook()
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
