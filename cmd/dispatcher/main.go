// Command dispatcher serves contract-method dispatch and wallet lookup over
// HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liquichain/contract_layer/internal/config"
	"github.com/liquichain/contract_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("DISPATCH_CONFIG"), "path to the YAML config file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	boot := logger.NewDefault("dispatcher")

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		boot.WithError(err).Fatal("load config")
	}

	log := logger.New(logger.Config{
		Name:   "dispatcher",
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("dispatcher stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		return err
	}

	app.server.StartCleanup(ctx, time.Minute)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      app.server,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = app.close(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	return app.close(shutdownCtx)
}
