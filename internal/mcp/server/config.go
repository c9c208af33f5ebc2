package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/datasleuth/datasleuth/internal/analysis"
	"github.com/datasleuth/datasleuth/internal/engine"
	"github.com/datasleuth/datasleuth/internal/source"
)

type Config struct {
	Version string
	Logger  *slog.Logger

	Engine   *engine.Engine
	Registry *source.Registry
	Analyzer *analysis.Analyzer

	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// AllowedTokens enables bearer auth when non-empty.
	AllowedTokens []string

	DefaultRowLimit int
	SampleRows      int
}

func (c Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Analyzer == nil {
		return fmt.Errorf("analyzer is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DefaultRowLimit <= 0 {
		return fmt.Errorf("default row limit must be positive")
	}
	if c.SampleRows <= 0 {
		return fmt.Errorf("sample rows must be positive")
	}
	return nil
}
