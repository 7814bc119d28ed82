package app

import (
	"context"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
// In-flight executions keep running until the HTTP server drains or the timeout expires.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var errs error

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	err = a.hub.Close()
	if err != nil {
		a.logger.Error("progress-hub-close-error", zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	if closer, ok := a.locker.(io.Closer); ok {
		err = closer.Close()
		if err != nil {
			a.logger.Error("locker-close-error", zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	err = a.stack.Close()
	if err != nil {
		a.logger.Error("stack-close-error", zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	a.wg.Wait()

	a.stack.Session.Lock()

	a.logger.Info("application-shutdown-complete")

	return errs
}
