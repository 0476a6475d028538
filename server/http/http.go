package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Serve runs an HTTP server for routes on port until ctx is cancelled, then
// shuts it down gracefully.
func Serve(ctx context.Context, logger *zap.Logger, routes http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           routes,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 1 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	// make a channel to communicate error within processes
	shutDownError := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down http server", zap.String("addr", srv.Addr))

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutDownError <- srv.Shutdown(sctx)
	}()

	logger.Info("http server listening", zap.String("addr", srv.Addr))
	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// wait to receive the value in the shutdown channel
	if err := <-shutDownError; err != nil {
		return err
	}

	logger.Info("Server successfully shutdown!")
	return nil
}
