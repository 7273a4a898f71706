package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start binds the configured address, serves in the background and returns
// a channel that is closed once a termination signal arrives.
func (a *App) Start() <-chan struct{} {
	l, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		slog.Error("failed to bind http address", "address", a.httpServer.Addr, "error", err)
		os.Exit(1)
	}

	errc := a.Serve(l)
	go func() {
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	done := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sig)

		s := <-sig
		slog.Info("termination signal received", "signal", s.String())
		close(done)
	}()

	return done
}

// Serve runs the HTTP server on l. The returned channel yields the error
// that ended serving.
func (a *App) Serve(l net.Listener) <-chan error {
	errc := make(chan error, 1)

	slog.Info("http server listening", "address", l.Addr().String())
	go func() {
		errc <- a.httpServer.Serve(l)
		close(errc)
	}()

	return errc
}

// Stop drains HTTP traffic, closes in-flight face sessions, waits for
// pending audit events and releases connections.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}

	if a.identity != nil {
		if n := a.identity.Shutdown(ctx); n > 0 {
			slog.WarnContext(ctx, "closed in-flight sessions", "count", n)
		}
	}

	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "error from goroutines executions", "error", err)
	}

	if a.cancel != nil {
		a.cancel()
	}

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}

	slog.InfoContext(ctx, "application stopped")
}
