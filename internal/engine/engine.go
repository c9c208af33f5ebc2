// Package engine wraps the single shared DuckDB instance that all registered
// sources are attached to. DuckDB owns query planning, file-format readers,
// and statement-level concurrency; this package only shapes rows and
// serializes catalog mutations.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/datasleuth/datasleuth/internal/observability"
)

type Config struct {
	// DBPath is the DuckDB database location. Empty or ":memory:" opens a
	// purely in-memory instance.
	DBPath string
	Logger *slog.Logger
}

type Engine struct {
	db  *sql.DB
	log *slog.Logger

	// writeMu serializes catalog mutations (ATTACH/DETACH/CREATE VIEW/COPY).
	writeMu sync.Mutex
}

type Row map[string]any

type Result struct {
	Columns []string
	Rows    []Row
}

func New(ctx context.Context, cfg Config) (*Engine, error) {
	path := strings.TrimSpace(cfg.DBPath)
	if path == ":memory:" {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{db: db, log: log}

	// The sqlite extension is needed to attach SQLite sources read-only.
	if err := e.Exec(ctx, "INSTALL sqlite; LOAD sqlite;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load sqlite extension: %w", err)
	}
	return e, nil
}

// NewWithDB wraps an existing database handle. Used by tests to drive the
// engine against a mocked driver.
func NewWithDB(db *sql.DB, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{db: db, log: log}
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// Exec runs a statement that mutates engine state. Mutations are serialized
// so concurrent tool calls cannot interleave partial catalog changes.
func (e *Engine) Exec(ctx context.Context, sqlText string, args ...any) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	start := time.Now()
	_, err := e.db.ExecContext(ctx, sqlText, args...)
	observability.ObserveEngineStatement(err, time.Since(start))
	if err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

// Query runs a read statement and materializes the full result set.
func (e *Engine) Query(ctx context.Context, sqlText string, args ...any) (Result, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	observability.ObserveEngineStatement(err, time.Since(start))
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{Columns: columns, Rows: resultRows}, nil
}

// QueryValue runs a statement expected to produce a single scalar.
func (e *Engine) QueryValue(ctx context.Context, sqlText string, args ...any) (any, error) {
	result, err := e.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 || len(result.Columns) == 0 {
		return nil, fmt.Errorf("query returned no value")
	}
	return result.Rows[0][result.Columns[0]], nil
}

// QueryInt64 runs a statement expected to produce a single integer scalar,
// typically a COUNT.
func (e *Engine) QueryInt64(ctx context.Context, sqlText string, args ...any) (int64, error) {
	value, err := e.QueryValue(ctx, sqlText, args...)
	if err != nil {
		return 0, err
	}
	converted, ok := AsInt64(value)
	if !ok {
		return 0, fmt.Errorf("query value %#v is not an integer", value)
	}
	return converted, nil
}

// AsInt64 converts the integer widths the driver may hand back.
func AsInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int32:
		return int64(typed), true
	case int16:
		return int64(typed), true
	case int8:
		return int64(typed), true
	case int:
		return int64(typed), true
	case uint64:
		return int64(typed), true
	case uint32:
		return int64(typed), true
	case float64:
		return int64(typed), true
	default:
		return 0, false
	}
}

// AsFloat64 converts the numeric types the driver may hand back.
func AsFloat64(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	default:
		converted, ok := AsInt64(value)
		if !ok {
			return 0, false
		}
		return float64(converted), true
	}
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

// QuoteIdent double-quotes a SQL identifier.
func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a SQL string literal.
func QuoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
