package app

import (
	"context"
	"errors"

	"github.com/praekelt/helpdesk/pkg/logger"
)

// Shutdown stops the labeller and the http server, then closes the event
// publisher, cache and store.
func (a *App) Shutdown(ctx context.Context) error {
	a.state = "shutting_down"
	if a.labellerCancel != nil {
		a.labellerCancel()
	}

	var errs []error
	if a.srvFast != nil {
		done := make(chan error, 1)
		go func() { done <- a.srvFast.Shutdown() }()
		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error("shutdown_failed", "error", err)
		return err
	}
	a.state = "stopped"
	logger.Info("shutdown_complete")
	return nil
}

func (a *App) close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store.Ready() {
		if err := a.store.Flush(); err != nil {
			logger.Warn("store_flush_failed", "error", err)
		}
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Close releases the store, cache and publisher of an app that never ran,
// as used by the cli.
func (a *App) Close() error {
	return a.close()
}
