// Package server exposes the data exploration tool menu over the MCP
// streamable HTTP transport. Each tool resolves its arguments through the
// source registry before any SQL is built.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datasleuth/datasleuth/internal/observability"
)

type Server struct {
	log  *slog.Logger
	cfg  Config
	mcp  *mcp.Server
	http *http.Server
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "DataSleuth MCP Server",
		Version: cfg.Version,
	}, nil)

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
		mcp: mcpServer,
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})

	var toolEndpoint http.Handler = handler
	if len(cfg.AllowedTokens) > 0 {
		toolEndpoint = s.authMiddleware(toolEndpoint)
	}
	mux.Handle("/", toolEndpoint)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.Error("failed to write healthz response", slog.Any("error", err))
		}
	})
	mux.HandleFunc("/readyz", s.readyzHandler)
	mux.Handle("/metrics", promhttp.Handler())

	chain := observability.TraceMiddleware(
		observability.MetricsMiddleware(
			observability.LoggingMiddleware(cfg.Logger)(mux)))

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           chain,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) registerTools() error {
	registrations := []func() error{
		s.registerConnectTools,
		s.registerQueryTools,
		s.registerProfileTools,
		s.registerQualityTools,
		s.registerExportTool,
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- fmt.Errorf("listen and serve: %w", err)
		}
	}()

	s.log.Info("mcp streamable http listening", slog.String("addr", s.cfg.ListenAddr))

	select {
	case <-ctx.Done():
		s.log.Info("server stopping", slog.Any("reason", ctx.Err()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serveErrCh:
		return err
	}
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	// Ready when the engine answers a trivial query.
	if _, err := s.cfg.Engine.QueryInt64(r.Context(), "SELECT 1"); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, werr := w.Write([]byte("engine not ready\n")); werr != nil {
			s.log.Error("failed to write readyz response", slog.Any("error", werr))
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", slog.Any("error", err))
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.rejectUnauthorized(w, "missing_header", "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			s.rejectUnauthorized(w, "invalid_format", "invalid authorization header format")
			return
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			s.rejectUnauthorized(w, "empty_token", "empty token")
			return
		}
		for _, allowed := range s.cfg.AllowedTokens {
			if token == allowed {
				next.ServeHTTP(w, r)
				return
			}
		}
		s.rejectUnauthorized(w, "invalid_token", "invalid token")
	})
}

func (s *Server) rejectUnauthorized(w http.ResponseWriter, reason, message string) {
	observability.IncrementAuthFailure(reason)
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte("unauthorized: " + message + "\n")); err != nil {
		s.log.Error("failed to write auth error response", slog.Any("error", err))
	}
}

// addTool registers one typed tool with generated input/output schemas and
// per-call metrics.
func addTool[In, Out any](s *Server, name, description string, handler func(context.Context, In) (Out, error)) error {
	inputSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("input schema for %s: %w", name, err)
	}
	outputSchema, err := jsonschema.For[Out](nil)
	if err != nil {
		return fmt.Errorf("output schema for %s: %w", name, err)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:         name,
		Description:  description,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		output, err := handler(ctx, input)
		observability.ObserveToolCall(name, err, time.Since(start))
		if err != nil {
			s.log.Warn("tool call failed",
				slog.String("tool", name),
				slog.Any("error", err),
			)
			var zero Out
			return nil, zero, err
		}
		return nil, output, nil
	})
	return nil
}
