package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mcpstudio/pkg/logging"
)

// shutdownTimeout bounds how long in-flight requests may take after a
// shutdown signal.
const shutdownTimeout = 15 * time.Second

// runServer listens on the configured address and serves until ctx ends or
// the process receives SIGINT or SIGTERM.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): Triggers graceful shutdown
//   - SIGTERM: Triggers graceful shutdown (common in container environments)
func runServer(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", services.Config.Server.Listen)
	if err != nil {
		_ = services.Close()
		return fmt.Errorf("failed to listen on %s: %w", services.Config.Server.Listen, err)
	}
	return serve(ctx, services, ln)
}

// serve runs the HTTP server on ln. It always closes services before
// returning.
func serve(ctx context.Context, services *Services, ln net.Listener) error {
	defer func() {
		if err := services.Close(); err != nil {
			logging.Error("Server", err, "Failed to close services")
		}
	}()

	if err := services.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           services.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server", "Listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Server", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
