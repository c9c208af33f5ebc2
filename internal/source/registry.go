// Package source tracks named data source registrations against the shared
// engine. The registry is the only mutable shared structure in the process;
// everything else is computed fresh per call.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/datasleuth/datasleuth/internal/engine"
	"github.com/datasleuth/datasleuth/internal/observability"
)

type Kind string

const (
	KindSQLite  Kind = "sqlite"
	KindParquet Kind = "parquet"
	KindCSV     Kind = "csv"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindSQLite:
		return KindSQLite, nil
	case KindParquet:
		return KindParquet, nil
	case KindCSV:
		return KindCSV, nil
	default:
		return "", fmt.Errorf("%w: unknown source type %q: use sqlite, parquet, or csv", ErrInvalidArgument, raw)
	}
}

var (
	ErrDuplicateName  = errors.New("source name is already registered")
	ErrUnknownSource  = errors.New("source is not registered")
	ErrUnknownTable   = errors.New("table not found in any registered source")
	ErrAmbiguousTable = errors.New("table name is ambiguous across sources")
	ErrInvalidPath    = errors.New("source path is invalid")
)

// Source is a registered data source. Parquet and CSV sources expose a
// single view named after the source; SQLite sources are attached as a
// catalog exposing their own tables.
type Source struct {
	Name   string   `json:"name"`
	Kind   Kind     `json:"type"`
	Path   string   `json:"path"`
	Tables []string `json:"tables"`
}

// TableRef is a resolved (source, table) pair with the quoted identifier
// used to address the table inside the engine.
type TableRef struct {
	Source    Source
	Table     string
	Qualified string
}

type Registry struct {
	engine *engine.Engine
	log    *slog.Logger

	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry(e *engine.Engine, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		engine:  e,
		log:     log,
		sources: make(map[string]Source),
	}
}

// Connect validates, attaches, and records a new source. The registry lock
// is held across the engine attach so concurrent calls cannot observe a
// half-registered source.
func (r *Registry) Connect(ctx context.Context, name, kindRaw, path string) (Source, error) {
	name, err := ValidateIdentifier(name, "source name")
	if err != nil {
		return Source{}, err
	}
	kind, err := ParseKind(kindRaw)
	if err != nil {
		return Source{}, err
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if _, err := ValidatePath(resolved, "source path"); err != nil {
		return Source{}, err
	}
	if err := checkPathExists(resolved); err != nil {
		return Source{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return Source{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	var tables []string
	switch kind {
	case KindSQLite:
		attach := fmt.Sprintf("ATTACH %s AS %s (TYPE sqlite, READ_ONLY)", engine.QuoteLiteral(resolved), engine.QuoteIdent(name))
		if err := r.engine.Exec(ctx, attach); err != nil {
			return Source{}, fmt.Errorf("%w: attach sqlite database: %v", ErrInvalidPath, err)
		}
		tables, err = r.sqliteTables(ctx, name)
		if err != nil {
			// Roll back the attach so a failed connect leaves no state.
			if detachErr := r.engine.Exec(ctx, "DETACH "+engine.QuoteIdent(name)); detachErr != nil {
				r.log.Error("failed to detach after table discovery failure",
					slog.String("source", name), slog.Any("error", detachErr))
			}
			return Source{}, fmt.Errorf("discover tables for %q: %w", name, err)
		}
	case KindParquet:
		view := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)", engine.QuoteIdent(name), engine.QuoteLiteral(resolved))
		if err := r.engine.Exec(ctx, view); err != nil {
			return Source{}, fmt.Errorf("%w: read parquet: %v", ErrInvalidPath, err)
		}
		tables = []string{name}
	case KindCSV:
		view := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_csv_auto(%s)", engine.QuoteIdent(name), engine.QuoteLiteral(resolved))
		if err := r.engine.Exec(ctx, view); err != nil {
			return Source{}, fmt.Errorf("%w: read csv: %v", ErrInvalidPath, err)
		}
		tables = []string{name}
	}

	src := Source{Name: name, Kind: kind, Path: resolved, Tables: tables}
	r.sources[name] = src
	observability.SetRegisteredSources(len(r.sources))
	r.log.Info("source connected",
		slog.String("source", name),
		slog.String("type", string(kind)),
		slog.Int("tables", len(tables)),
	)
	return src, nil
}

// Disconnect detaches a source and removes its record. Failure on an
// unknown name mutates nothing.
func (r *Registry) Disconnect(ctx context.Context, name string) error {
	name, err := ValidateIdentifier(name, "source name")
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	src, exists := r.sources[name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}

	if src.Kind == KindSQLite {
		if err := r.engine.Exec(ctx, "DETACH "+engine.QuoteIdent(name)); err != nil {
			return fmt.Errorf("detach %q: %w", name, err)
		}
	} else {
		for _, table := range src.Tables {
			if err := r.engine.Exec(ctx, "DROP VIEW IF EXISTS "+engine.QuoteIdent(table)); err != nil {
				return fmt.Errorf("drop view %q: %w", table, err)
			}
		}
	}

	delete(r.sources, name)
	observability.SetRegisteredSources(len(r.sources))
	r.log.Info("source disconnected", slog.String("source", name))
	return nil
}

// List returns every registered source with a live table list. Never fails:
// a catalog refresh error falls back to the table list recorded at connect.
func (r *Registry) List(ctx context.Context) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Kind == KindSQLite {
			if tables, err := r.sqliteTables(ctx, src.Name); err == nil {
				src.Tables = tables
			}
		}
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources
}

// Get returns a snapshot of one source.
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	return src, ok
}

// Resolve validates a (source, table) reference against the live catalog and
// returns the qualified identifier to use in SQL. With an empty source name
// the table is located by scanning all registered sources.
func (r *Registry) Resolve(ctx context.Context, name, table string) (TableRef, error) {
	table, err := ValidateIdentifier(table, "table")
	if err != nil {
		return TableRef{}, err
	}
	if name != "" {
		if name, err = ValidateIdentifier(name, "source name"); err != nil {
			return TableRef{}, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		src, exists := r.sources[name]
		if !exists {
			return TableRef{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
		}
		return r.resolveInSource(ctx, src, table)
	}

	var matches []TableRef
	for _, src := range r.sources {
		if ref, err := r.resolveInSource(ctx, src, table); err == nil {
			matches = append(matches, ref)
		}
	}
	switch len(matches) {
	case 0:
		return TableRef{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	case 1:
		return matches[0], nil
	default:
		return TableRef{}, fmt.Errorf("%w: %q (specify a source)", ErrAmbiguousTable, table)
	}
}

func (r *Registry) resolveInSource(ctx context.Context, src Source, table string) (TableRef, error) {
	switch src.Kind {
	case KindSQLite:
		tables, err := r.sqliteTables(ctx, src.Name)
		if err != nil {
			return TableRef{}, fmt.Errorf("list tables for %q: %w", src.Name, err)
		}
		for _, candidate := range tables {
			if candidate == table {
				qualified := engine.QuoteIdent(src.Name) + "." + engine.QuoteIdent(table)
				return TableRef{Source: src, Table: table, Qualified: qualified}, nil
			}
		}
		return TableRef{}, fmt.Errorf("%w: %q in source %q", ErrUnknownTable, table, src.Name)
	default:
		if table != src.Name {
			return TableRef{}, fmt.Errorf("%w: %q in source %q", ErrUnknownTable, table, src.Name)
		}
		return TableRef{Source: src, Table: table, Qualified: engine.QuoteIdent(src.Name)}, nil
	}
}

// sqliteTables reads the attached catalog live so the list reflects the
// current file contents, never a cache.
func (r *Registry) sqliteTables(ctx context.Context, name string) ([]string, error) {
	result, err := r.engine.Query(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_catalog = ? ORDER BY table_name", name)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if table, ok := row["table_name"].(string); ok {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

func checkPathExists(resolved string) error {
	if strings.ContainsAny(resolved, "*?[") {
		// Glob pattern: the parent of the first glob segment must exist.
		dir := resolved
		for strings.ContainsAny(dir, "*?[") {
			dir = filepath.Dir(dir)
		}
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPath, resolved)
		}
		return nil
	}
	if _, err := os.Stat(resolved); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPath, resolved)
	}
	return nil
}
