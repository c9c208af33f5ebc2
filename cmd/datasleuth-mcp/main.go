package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/datasleuth/datasleuth/internal/analysis"
	"github.com/datasleuth/datasleuth/internal/config"
	"github.com/datasleuth/datasleuth/internal/engine"
	"github.com/datasleuth/datasleuth/internal/mcp/server"
	"github.com/datasleuth/datasleuth/internal/observability"
	"github.com/datasleuth/datasleuth/internal/source"
)

var version = "dev"

func main() {
	listenAddr := pflag.String("listen-addr", "", "listen address (overrides DATASLEUTH_HTTP_ADDR)")
	dbPath := pflag.String("db-path", "", "DuckDB database path (overrides DATASLEUTH_ENGINE_DB_PATH)")
	pflag.Parse()

	cfg, err := config.LoadFromEnv("datasleuth-mcp")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.HTTP.Address = *listenAddr
	}
	if *dbPath != "" {
		cfg.Engine.DBPath = *dbPath
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.New(ctx, engine.Config{DBPath: cfg.Engine.DBPath, Logger: logger})
	if err != nil {
		logger.Error("failed to open engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = e.Close() }()

	registry := source.NewRegistry(e, logger)

	policy := analysis.DefaultPolicy()
	policy.NullRateThreshold = cfg.Quality.NullRateThreshold
	policy.ZThreshold = cfg.Quality.ZThreshold
	policy.PositiveKeywords = cfg.Quality.PositiveKeywords
	policy.IDSuffixes = cfg.Quality.IDSuffixes
	analyzer := analysis.NewAnalyzer(e, policy)

	var tokens []string
	if cfg.Auth.Tokens != "" {
		for _, token := range strings.Split(cfg.Auth.Tokens, ",") {
			if token = strings.TrimSpace(token); token != "" {
				tokens = append(tokens, token)
			}
		}
	}
	if cfg.Auth.Required && len(tokens) == 0 {
		logger.Error("auth is required but DATASLEUTH_AUTH_TOKENS is empty")
		os.Exit(1)
	}

	srv, err := server.New(ctx, server.Config{
		Version:           version,
		Logger:            logger,
		Engine:            e,
		Registry:          registry,
		Analyzer:          analyzer,
		ListenAddr:        cfg.HTTP.Address,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
		AllowedTokens:     tokens,
		DefaultRowLimit:   cfg.Query.DefaultRowLimit,
		SampleRows:        cfg.Query.SampleRows,
	})
	if err != nil {
		logger.Error("failed to build server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
