package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datasleuth/datasleuth/internal/analysis"
	"github.com/datasleuth/datasleuth/internal/engine"
	"github.com/datasleuth/datasleuth/internal/source"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, tokens ...string) *Server {
	t.Helper()
	log := testLogger(t)

	e, err := engine.New(context.Background(), engine.Config{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	registry := source.NewRegistry(e, log)
	analyzer := analysis.NewAnalyzer(e, analysis.DefaultPolicy())

	s, err := New(context.Background(), Config{
		Version:           "test",
		Logger:            log,
		Engine:            e,
		Registry:          registry,
		Analyzer:          analyzer,
		ListenAddr:        "127.0.0.1:0",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       time.Minute,
		ShutdownTimeout:   5 * time.Second,
		AllowedTokens:     tokens,
		DefaultRowLimit:   1000,
		SampleRows:        10,
	})
	require.NoError(t, err)
	return s
}

func writeTestCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestConnectListDisconnect(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	path := writeTestCSV(t, "orders.csv", "id,total\n1,10.5\n2,20.0\n")
	connected, err := s.handleConnect(ctx, ConnectInput{Name: "orders", SourceType: "csv", Path: path})
	require.NoError(t, err)
	require.Equal(t, "connected", connected.Status)
	require.Equal(t, []string{"orders"}, connected.Tables)
	require.Equal(t, 1, connected.TableCount)

	listed, err := s.handleListSources(ctx, ListSourcesInput{})
	require.NoError(t, err)
	require.Equal(t, 1, listed.TotalSources)
	require.Equal(t, 1, listed.TotalTables)

	tables, err := s.handleListTables(ctx, ListTablesInput{})
	require.NoError(t, err)
	require.Equal(t, 1, tables.Count)
	require.Equal(t, "orders", tables.Tables[0].Table)
	require.Equal(t, "csv", tables.Tables[0].Type)

	disconnected, err := s.handleDisconnect(ctx, DisconnectInput{Name: "orders"})
	require.NoError(t, err)
	require.Equal(t, "disconnected", disconnected.Status)

	_, err = s.handleDisconnect(ctx, DisconnectInput{Name: "orders"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNKNOWN_SOURCE")
}

func TestConnectReportsStructuredErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	path := writeTestCSV(t, "a.csv", "x\n1\n")
	_, err := s.handleConnect(ctx, ConnectInput{Name: "dup", SourceType: "csv", Path: path})
	require.NoError(t, err)

	_, err = s.handleConnect(ctx, ConnectInput{Name: "dup", SourceType: "csv", Path: path})
	require.Error(t, err)
	require.Contains(t, err.Error(), "DUPLICATE_NAME")

	_, err = s.handleConnect(ctx, ConnectInput{Name: "ghost", SourceType: "csv", Path: filepath.Join(t.TempDir(), "nope.csv")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_PATH")
}

func TestRunQueryAppliesDefaultLimit(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleRunQuery(ctx, RunQueryInput{SQL: "SELECT i FROM range(5000) AS t(i)"})
	require.NoError(t, err)
	require.Equal(t, 1000, result.RowCount)

	result, err = s.handleRunQuery(ctx, RunQueryInput{SQL: "SELECT i FROM range(5000) AS t(i)", Limit: 7})
	require.NoError(t, err)
	require.Equal(t, 7, result.RowCount)

	result, err = s.handleRunQuery(ctx, RunQueryInput{SQL: "SELECT i FROM range(5000) AS t(i) LIMIT 3"})
	require.NoError(t, err)
	require.Equal(t, 3, result.RowCount)

	_, err = s.handleRunQuery(ctx, RunQueryInput{SQL: "SELECT FROM nowhere"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "QUERY_EXECUTION_ERROR")
}

func TestGetSampleAndSchema(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	path := writeTestCSV(t, "people.csv", "id,name\n1,ada\n2,alan\n3,grace\n")
	_, err := s.handleConnect(ctx, ConnectInput{Name: "people", SourceType: "csv", Path: path})
	require.NoError(t, err)

	sample, err := s.handleSample(ctx, SampleInput{Table: "people", N: 2})
	require.NoError(t, err)
	require.Equal(t, 2, sample.RowCount)
	require.ElementsMatch(t, []string{"id", "name"}, sample.Columns)

	schema, err := s.handleSchema(ctx, SchemaInput{Table: "people"})
	require.NoError(t, err)
	require.Equal(t, 2, schema.ColumnCount)
	require.Equal(t, "id", schema.Columns[0].Name)

	_, err = s.handleSchema(ctx, SchemaInput{Table: "missing"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNKNOWN_TABLE")
}

func TestProfileAndQualityTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	path := writeTestCSV(t, "sales.csv", "order_id,price\n1,10.0\n2,-5.0\n3,\n4,20.0\n")
	_, err := s.handleConnect(ctx, ConnectInput{Name: "sales", SourceType: "csv", Path: path})
	require.NoError(t, err)

	profile, err := s.handleProfile(ctx, ProfileInput{Table: "sales"})
	require.NoError(t, err)
	require.Equal(t, int64(4), profile.RowCount)
	require.Equal(t, 2, profile.ColumnCount)

	report, err := s.handleQuality(ctx, QualityInput{Table: "sales"})
	require.NoError(t, err)
	issueTypes := make([]string, 0, len(report.Issues))
	for _, issue := range report.Issues {
		issueTypes = append(issueTypes, issue.Type)
	}
	require.Contains(t, issueTypes, "high_null_rate")
	require.Contains(t, issueTypes, "unexpected_negatives")
}

func TestDetectAnomaliesValidatesColumns(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	path := writeTestCSV(t, "m.csv", "id,value\n1,10\n2,11\n3,12\n")
	_, err := s.handleConnect(ctx, ConnectInput{Name: "m", SourceType: "csv", Path: path})
	require.NoError(t, err)

	report, err := s.handleAnomalies(ctx, AnomaliesInput{Table: "m", Column: "value"})
	require.NoError(t, err)
	require.Equal(t, "z_score_row_level", report.Method)
	require.Equal(t, 3.0, report.ZThreshold)

	_, err = s.handleAnomalies(ctx, AnomaliesInput{Table: "m", Column: "bad;col"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_ARGUMENT")
}

func TestCompareSchemasTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	pathA := writeTestCSV(t, "a.csv", "id,name\n1,x\n")
	pathB := writeTestCSV(t, "b.csv", "id,created\n1,2024-01-01\n")
	_, err := s.handleConnect(ctx, ConnectInput{Name: "left", SourceType: "csv", Path: pathA})
	require.NoError(t, err)
	_, err = s.handleConnect(ctx, ConnectInput{Name: "right", SourceType: "csv", Path: pathB})
	require.NoError(t, err)

	diff, err := s.handleCompareSchemas(ctx, CompareSchemasInput{TableA: "left", TableB: "right"})
	require.NoError(t, err)
	require.False(t, diff.Identical)
	require.Len(t, diff.ColumnsAddedInB, 1)
	require.Equal(t, "created", diff.ColumnsAddedInB[0].Name)
	require.Len(t, diff.ColumnsRemovedInB, 1)
	require.Equal(t, "name", diff.ColumnsRemovedInB[0].Name)
}

func TestSummarizeTotals(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleConnect(ctx, ConnectInput{
		Name: "one", SourceType: "csv",
		Path: writeTestCSV(t, "one.csv", "x\n1\n2\n"),
	})
	require.NoError(t, err)
	_, err = s.handleConnect(ctx, ConnectInput{
		Name: "two", SourceType: "csv",
		Path: writeTestCSV(t, "two.csv", "y\n1\n"),
	})
	require.NoError(t, err)

	summary, err := s.handleSummarize(ctx, SummarizeInput{})
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalSources)
	require.Equal(t, 2, summary.TotalTables)
	require.Equal(t, int64(3), summary.TotalRows)
}

func TestExportRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	outDir := t.TempDir()
	csvOut := filepath.Join(outDir, "nested", "out.csv")
	exported, err := s.handleExport(ctx, ExportInput{
		SQL:        "SELECT 1 AS id, 'a' AS name UNION ALL SELECT 2, 'b';",
		OutputPath: csvOut,
		Format:     "csv",
	})
	require.NoError(t, err)
	require.Equal(t, "exported", exported.Status)
	require.Equal(t, int64(2), exported.RowCount)
	require.Greater(t, exported.FileSizeBytes, int64(0))

	// The exported file should connect back as a source.
	connected, err := s.handleConnect(ctx, ConnectInput{Name: "reimport", SourceType: "csv", Path: csvOut})
	require.NoError(t, err)
	require.Equal(t, []string{"reimport"}, connected.Tables)

	parquetSQL := "SELECT i AS id, i * 2 AS doubled FROM range(25) AS t(i)"
	original, err := s.handleRunQuery(ctx, RunQueryInput{SQL: parquetSQL})
	require.NoError(t, err)

	parquetOut := filepath.Join(outDir, "out.parquet")
	exported, err = s.handleExport(ctx, ExportInput{SQL: parquetSQL, OutputPath: parquetOut})
	require.NoError(t, err)
	require.Equal(t, "parquet", exported.Format)
	require.Equal(t, int64(25), exported.RowCount)

	// Re-connecting the parquet export yields the same rows and columns as
	// the query it came from.
	connected, err = s.handleConnect(ctx, ConnectInput{Name: "roundtrip", SourceType: "parquet", Path: parquetOut})
	require.NoError(t, err)
	require.Equal(t, []string{"roundtrip"}, connected.Tables)

	profile, err := s.handleProfile(ctx, ProfileInput{Table: "roundtrip"})
	require.NoError(t, err)
	require.Equal(t, int64(len(original.Rows)), profile.RowCount)

	schema, err := s.handleSchema(ctx, SchemaInput{Table: "roundtrip"})
	require.NoError(t, err)
	names := make([]string, 0, schema.ColumnCount)
	for _, column := range schema.Columns {
		names = append(names, column.Name)
	}
	require.ElementsMatch(t, original.Columns, names)

	_, err = s.handleExport(ctx, ExportInput{SQL: "SELECT 1", OutputPath: filepath.Join(outDir, "x.xlsx"), Format: "xlsx"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVALID_ARGUMENT")
}

func TestHealthEndpointsAndAuth(t *testing.T) {
	s := newTestServer(t, "secret-token")

	ts := httptest.NewServer(s.http.Handler)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// The tool endpoint requires a bearer token when tokens are configured.
	resp, err = http.Post(ts.URL+"/", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}
