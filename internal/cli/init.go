// Package cli provides common CLI initialization utilities and the
// recurring-worker command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/showbox88/GTPinput/internal/backend"
	"github.com/showbox88/GTPinput/internal/config"
	"github.com/showbox88/GTPinput/internal/log"
	"github.com/showbox88/GTPinput/internal/scheduler"
	"github.com/showbox88/GTPinput/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from path (or CONFIG_FILE when
// empty) and validates it.
func LoadAndValidateConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger writing to out and installs it as
// the slog default.
func SetupLogger(level string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Output = out
	cfg.Component = log.ComponentCLI
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// App bundles the wired components shared by every command.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Location  *time.Location
	Store     backend.Store
	Processor *services.RecurringProcessor

	cleanup backend.CleanupFunc
}

// NewApp builds the backend and the recurring processor from cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	pcfg := services.DefaultRecurringProcessorConfig(bcfg.Location)
	pcfg.StoreTimeout = cfg.StoreTimeout

	return &App{
		Config:    cfg,
		Logger:    logger,
		Location:  bcfg.Location,
		Store:     res.Store,
		Processor: services.NewRecurringProcessor(res.Store, res.Ledger, pcfg),
		cleanup:   res.Cleanup,
	}, nil
}

// Scheduler builds a cron scheduler over every owner of the store.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(a.Store, a.Processor, scheduler.Config{
		Spec:        a.Config.RecurringCron,
		Location:    a.Location,
		Concurrency: a.Config.OwnerConcurrency,
		ListTimeout: a.Config.StoreTimeout,
	}, a.Logger)
}

// Close releases the backend.
func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}

// GracefulShutdown returns a child of parent that is cancelled on SIGINT or
// SIGTERM. cleanup runs before the cancellation, bounded by timeout; it does
// not run when parent is cancelled first.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			return
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
	}()

	return ctx, cancel
}

// Fail prints err to stderr and exits.
func Fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
