package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Serve runs the admin API until the context is cancelled.
func Serve(ctx context.Context, conf Config, logger kitlog.Logger, bindAddr string) error {
	server := &http.Server{
		Addr:    bindAddr,
		Handler: CreateRouter(conf),
	}

	go func() {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown API server", "err", err)
		}
	}()

	level.Info(logger).Log("msg", "starting API server", "addr", bindAddr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}
