// Package main is the entry point for the Learning Shelf server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// Its job here is small:
// 1. Read configuration (TOML file, .env, environment)
// 2. Create the logger
// 3. Build and start the server
//
// All actual logic lives in internal/ packages, which keeps it testable.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/learning-shelf/internal/config"
	"github.com/sakif/learning-shelf/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// -config wins over CONFIG_PATH; with neither, defaults plus env vars apply.
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a TOML config file")
	envFile := flag.String("env-file", ".env", "dotenv file to load if present")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		// No configured logger yet.
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if cfg.Session.SecretGenerated {
		logger.Warn("SESSION_SECRET not set; using a random secret, sessions end on restart")
	}

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is `mkdir -p`. ":memory:" has no directory to create.
	if cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
