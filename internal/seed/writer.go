package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/datasleuth/datasleuth/internal/engine"
	"github.com/datasleuth/datasleuth/internal/storage"
)

// TableNames in write order. Orders and events reference customers and
// products by id.
var TableNames = []string{"customers", "products", "orders", "events"}

const SQLiteFileName = "ecommerce.db"

type Writer struct {
	dir string
	log *slog.Logger
}

func NewWriter(dir string, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{dir: dir, log: log}
}

// WriteParquet writes one parquet file per table and returns the paths.
func (w *Writer) WriteParquet(ds Dataset) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, 0, len(TableNames))
	writes := []struct {
		name  string
		write func(path string) (int, error)
	}{
		{"customers", func(path string) (int, error) { return writeParquetFile(path, ds.Customers) }},
		{"products", func(path string) (int, error) { return writeParquetFile(path, ds.Products) }},
		{"orders", func(path string) (int, error) { return writeParquetFile(path, ds.Orders) }},
		{"events", func(path string) (int, error) { return writeParquetFile(path, ds.Events) }},
	}
	for _, table := range writes {
		path := filepath.Join(w.dir, table.name+".parquet")
		rows, err := table.write(path)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", table.name, err)
		}
		w.log.Info("wrote parquet file", slog.String("path", path), slog.Int("rows", rows))
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteSQLite converts the parquet files into a single SQLite database by
// attaching a writable sqlite catalog to the engine and copying each table.
// WriteParquet must run first.
func (w *Writer) WriteSQLite(ctx context.Context, e *engine.Engine) (string, error) {
	dbPath := filepath.Join(w.dir, SQLiteFileName)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove previous database: %w", err)
	}

	alias := "seedout"
	attach := fmt.Sprintf("ATTACH %s AS %s (TYPE sqlite)", engine.QuoteLiteral(dbPath), engine.QuoteIdent(alias))
	if err := e.Exec(ctx, attach); err != nil {
		return "", fmt.Errorf("attach sqlite output: %w", err)
	}
	defer func() {
		if err := e.Exec(ctx, "DETACH "+engine.QuoteIdent(alias)); err != nil {
			w.log.Error("failed to detach sqlite output", slog.Any("error", err))
		}
	}()

	for _, table := range TableNames {
		parquetPath := filepath.Join(w.dir, table+".parquet")
		stmt := fmt.Sprintf("CREATE TABLE %s.%s AS SELECT * FROM read_parquet(%s)",
			engine.QuoteIdent(alias), engine.QuoteIdent(table), engine.QuoteLiteral(parquetPath))
		if err := e.Exec(ctx, stmt); err != nil {
			return "", fmt.Errorf("convert %s to sqlite: %w", table, err)
		}
	}

	w.log.Info("wrote sqlite database", slog.String("path", dbPath))
	return dbPath, nil
}

// Upload pushes the given files into the object store under the prefix.
func (w *Writer) Upload(ctx context.Context, store *storage.ObjectStore, prefix string, paths []string) error {
	for _, path := range paths {
		key := filepath.Base(path)
		if prefix != "" {
			key = prefix + "/" + key
		}
		info, err := store.PutFile(ctx, key, path)
		if err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
		w.log.Info("uploaded file",
			slog.String("key", key),
			slog.Int64("bytes", info.Size),
		)
	}
	return nil
}

func writeParquetFile[T any](path string, rows []T) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	writer := parquet.NewGenericWriter[T](f)
	if _, err := writer.Write(rows); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := writer.Close(); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return len(rows), nil
}
