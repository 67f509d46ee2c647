package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/basketcase/pkg/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 15 * time.Second
)

// NewServer builds the HTTP server cmd/api and the cron worker listen with.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Serve runs srv until ctx is canceled, then drains in-flight requests.
func Serve(ctx context.Context, srv *http.Server, logg *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", srv.Addr), "http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
