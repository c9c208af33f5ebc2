package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/datasleuth/datasleuth/internal/engine"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(context.Background(), engine.Config{})
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func writeSQLiteDB(t *testing.T, e *engine.Engine) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	ctx := context.Background()
	attach := fmt.Sprintf("ATTACH %s AS seedtmp (TYPE sqlite)", engine.QuoteLiteral(path))
	if err := e.Exec(ctx, attach); err != nil {
		t.Fatalf("attach writable sqlite: %v", err)
	}
	if err := e.Exec(ctx, "CREATE TABLE seedtmp.orders AS SELECT 1 AS id, 9.5 AS total"); err != nil {
		t.Fatalf("create sqlite table: %v", err)
	}
	if err := e.Exec(ctx, "CREATE TABLE seedtmp.customers AS SELECT 1 AS id, 'ada' AS name"); err != nil {
		t.Fatalf("create sqlite table: %v", err)
	}
	if err := e.Exec(ctx, "DETACH seedtmp"); err != nil {
		t.Fatalf("detach writable sqlite: %v", err)
	}
	return path
}

func TestConnectCSVCreatesQueryableView(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)
	ctx := context.Background()

	path := writeCSV(t, "events.csv", "id,kind\n1,click\n2,view\n")
	src, err := reg.Connect(ctx, "events", "csv", path)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if src.Kind != KindCSV || len(src.Tables) != 1 || src.Tables[0] != "events" {
		t.Fatalf("src = %+v", src)
	}

	count, err := e.QueryInt64(ctx, `SELECT COUNT(*) FROM "events"`)
	if err != nil {
		t.Fatalf("query view: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
}

func TestConnectRejectsDuplicateName(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)
	ctx := context.Background()

	path := writeCSV(t, "a.csv", "x\n1\n")
	if _, err := reg.Connect(ctx, "dup", "csv", path); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	_, err := reg.Connect(ctx, "dup", "csv", path)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("error = %v, want ErrDuplicateName", err)
	}
}

func TestConnectRejectsMissingFile(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)

	_, err := reg.Connect(context.Background(), "ghost", "csv", filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("error = %v, want ErrInvalidPath", err)
	}
}

func TestConnectSQLiteDiscoversTables(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)
	ctx := context.Background()

	path := writeSQLiteDB(t, e)
	src, err := reg.Connect(ctx, "shop", "sqlite", path)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if len(src.Tables) != 2 || src.Tables[0] != "customers" || src.Tables[1] != "orders" {
		t.Fatalf("tables = %v", src.Tables)
	}

	count, err := e.QueryInt64(ctx, `SELECT COUNT(*) FROM "shop"."orders"`)
	if err != nil {
		t.Fatalf("query attached table: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
}

func TestDisconnectRemovesView(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)
	ctx := context.Background()

	path := writeCSV(t, "gone.csv", "x\n1\n")
	if _, err := reg.Connect(ctx, "gone", "csv", path); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := reg.Disconnect(ctx, "gone"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if _, err := e.Query(ctx, `SELECT * FROM "gone"`); err == nil {
		t.Fatal("view should no longer exist")
	}
	if err := reg.Disconnect(ctx, "gone"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("error = %v, want ErrUnknownSource", err)
	}
}

func TestResolveAcrossSources(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)
	ctx := context.Background()

	sqlitePath := writeSQLiteDB(t, e)
	if _, err := reg.Connect(ctx, "shop", "sqlite", sqlitePath); err != nil {
		t.Fatalf("Connect(sqlite) error = %v", err)
	}
	csvPath := writeCSV(t, "clicks.csv", "id\n1\n")
	if _, err := reg.Connect(ctx, "clicks", "csv", csvPath); err != nil {
		t.Fatalf("Connect(csv) error = %v", err)
	}

	ref, err := reg.Resolve(ctx, "", "orders")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ref.Qualified != `"shop"."orders"` {
		t.Fatalf("Qualified = %q", ref.Qualified)
	}

	ref, err = reg.Resolve(ctx, "", "clicks")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ref.Qualified != `"clicks"` {
		t.Fatalf("Qualified = %q", ref.Qualified)
	}

	if _, err := reg.Resolve(ctx, "", "nothing"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("error = %v, want ErrUnknownTable", err)
	}
	if _, err := reg.Resolve(ctx, "missing", "orders"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("error = %v, want ErrUnknownSource", err)
	}
	if _, err := reg.Resolve(ctx, "shop", "clicks"); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("error = %v, want ErrUnknownTable", err)
	}
}

func TestResolveAmbiguousTable(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)
	ctx := context.Background()

	body := "id\n1\n"
	if _, err := reg.Connect(ctx, "metrics", "csv", writeCSV(t, "metrics.csv", body)); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	sqlitePath := filepath.Join(t.TempDir(), "dup.db")
	attach := fmt.Sprintf("ATTACH %s AS duptmp (TYPE sqlite)", engine.QuoteLiteral(sqlitePath))
	if err := e.Exec(ctx, attach); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := e.Exec(ctx, "CREATE TABLE duptmp.metrics AS SELECT 1 AS id"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := e.Exec(ctx, "DETACH duptmp"); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if _, err := reg.Connect(ctx, "warehouse", "sqlite", sqlitePath); err != nil {
		t.Fatalf("Connect(sqlite) error = %v", err)
	}

	if _, err := reg.Resolve(ctx, "", "metrics"); !errors.Is(err, ErrAmbiguousTable) {
		t.Fatalf("error = %v, want ErrAmbiguousTable", err)
	}

	ref, err := reg.Resolve(ctx, "warehouse", "metrics")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ref.Qualified != `"warehouse"."metrics"` {
		t.Fatalf("Qualified = %q", ref.Qualified)
	}
}

func TestListReturnsRegisteredSources(t *testing.T) {
	e := newTestEngine(t)
	reg := NewRegistry(e, nil)
	ctx := context.Background()

	if got := reg.List(ctx); len(got) != 0 {
		t.Fatalf("List() = %v, want empty", got)
	}
	if _, err := reg.Connect(ctx, "one", "csv", writeCSV(t, "one.csv", "x\n1\n")); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	got := reg.List(ctx)
	if len(got) != 1 || got[0].Name != "one" {
		t.Fatalf("List() = %v", got)
	}
}
