package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "FinChat/pkg/http"
	applogger "FinChat/pkg/logger"
)

// Component is a background service started before the HTTP server and
// stopped after it. Start must not block.
type Component struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	lgr             *applogger.Logger
	httpServer      *xhttp.Server
	components      []Component
	closers         []namedCloser
	shutdownTimeout time.Duration
	started         []Component
}

type namedCloser struct {
	name string
	c    io.Closer
}

// New creates an App. srv may be nil for headless runs.
func New(lgr *applogger.Logger, srv *xhttp.Server, shutdownTimeout time.Duration) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &App{lgr: lgr, httpServer: srv, shutdownTimeout: shutdownTimeout}
}

// AddComponent registers a service. Components start in registration order
// and stop in reverse.
func (a *App) AddComponent(c Component) { a.components = append(a.components, c) }

// AddCloser registers a client closed after every component has stopped.
// Nil closers are ignored.
func (a *App) AddCloser(name string, c io.Closer) {
	if c == nil {
		return
	}
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done. Components
// keep their start context until shutdown has finished so they can flush.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.start(runCtx); err != nil {
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	a.lgr.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start(ctx context.Context) error {
	for _, c := range a.components {
		if c.Start != nil {
			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("start %s: %w", c.Name, err)
			}
		}
		a.started = append(a.started, c)
		a.lgr.Info("component started", applogger.String("component", c.Name))
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
	}
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.lgr.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.lgr.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	for i := len(a.started) - 1; i >= 0; i-- {
		c := a.started[i]
		if c.Stop == nil {
			continue
		}
		if err := c.Stop(ctx); err != nil {
			a.lgr.Warn("component stop error", applogger.String("component", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name, err))
		}
	}
	a.started = nil

	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.lgr.Warn("close error", applogger.String("client", nc.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", nc.name, err))
		}
	}

	a.lgr.Info("shutdown complete")
	return errors.Join(errs...)
}
