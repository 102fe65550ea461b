package main

import (
	"context"
	"os"

	"github.com/showbox88/GTPinput/internal/cli"
	"github.com/showbox88/GTPinput/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig("")
	if err != nil {
		cli.Fail("Configuration validation failed", err)
	}

	// Logs go to stderr so command output stays clean on stdout
	logger := cli.SetupLogger(cfg.LogLevel, os.Stderr)

	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	err = cli.NewRootCmd(app).Execute()
	if cerr := app.Close(); cerr != nil {
		logger.Warn("Backend cleanup failed", log.FieldError, cerr)
	}
	if err != nil {
		cli.Fail("recurring-worker", err)
	}
}
