package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phambaophuc/uploads-im-client/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func New(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      handler,
	}
}

// Run serves until ctx is cancelled or the process receives SIGINT, SIGTERM
// or SIGQUIT, then shuts the server down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	return Serve(ctx, srv, listener, logger)
}

// Serve is Run on an existing listener, without signal handling.
func Serve(ctx context.Context, srv *http.Server, listener net.Listener, logger *zap.Logger) error {
	eg, groupCtx := errgroup.WithContext(ctx)

	logger.Info("Starting server", zap.String("addr", listener.Addr().String()))

	eg.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
			return err
		}
		return nil
	})

	err := eg.Wait()
	logger.Info("Server exited")
	return err
}
