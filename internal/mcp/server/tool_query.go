package server

import (
	"context"

	"github.com/datasleuth/datasleuth/internal/analysis"
	"github.com/datasleuth/datasleuth/internal/engine"
)

type ListTablesInput struct{}

type TableEntry struct {
	Source string `json:"source"`
	Table  string `json:"table"`
	Type   string `json:"type"`
	Path   string `json:"path"`
}

type ListTablesOutput struct {
	Tables []TableEntry `json:"tables"`
	Count  int          `json:"count"`
}

type SchemaInput struct {
	Table  string `json:"table"`
	Source string `json:"source,omitempty"`
}

type SchemaOutput struct {
	Table       string                `json:"table"`
	Columns     []analysis.ColumnInfo `json:"columns"`
	ColumnCount int                   `json:"column_count"`
}

type RunQueryInput struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit,omitempty"`
}

type RunQueryOutput struct {
	Columns  []string     `json:"columns"`
	Rows     []engine.Row `json:"rows"`
	RowCount int          `json:"row_count"`
}

type SampleInput struct {
	Table  string `json:"table"`
	N      int    `json:"n,omitempty"`
	Source string `json:"source,omitempty"`
}

type SampleOutput struct {
	Table    string       `json:"table"`
	Columns  []string     `json:"columns"`
	Rows     []engine.Row `json:"rows"`
	RowCount int          `json:"row_count"`
}

func (s *Server) registerQueryTools() error {
	if err := addTool(s, "list_tables",
		"List all tables and views across all connected sources with their source type and path.",
		s.handleListTables); err != nil {
		return err
	}
	if err := addTool(s, "get_table_schema",
		"Get the column names, types, and nullability for a table. "+
			"Pass the source name when the table name appears in more than one source.",
		s.handleSchema); err != nil {
		return err
	}
	if err := addTool(s, "run_query",
		"Execute a SQL query against any connected data source using DuckDB syntax. "+
			"SQLite tables are qualified as \"source_name\".\"table_name\"; parquet and csv sources "+
			"are available directly by their source name. A safety LIMIT is appended when the "+
			"statement carries none.",
		s.handleRunQuery); err != nil {
		return err
	}
	return addTool(s, "get_sample",
		"Get a random sample of rows from a table.",
		s.handleSample)
}

func (s *Server) handleListTables(ctx context.Context, _ ListTablesInput) (ListTablesOutput, error) {
	entries := []TableEntry{}
	for _, src := range s.cfg.Registry.List(ctx) {
		for _, table := range src.Tables {
			entries = append(entries, TableEntry{
				Source: src.Name,
				Table:  table,
				Type:   string(src.Kind),
				Path:   src.Path,
			})
		}
	}
	return ListTablesOutput{Tables: entries, Count: len(entries)}, nil
}

func (s *Server) handleSchema(ctx context.Context, input SchemaInput) (SchemaOutput, error) {
	ref, err := s.cfg.Registry.Resolve(ctx, input.Source, input.Table)
	if err != nil {
		return SchemaOutput{}, toolError(err)
	}
	columns, err := s.cfg.Analyzer.Schema(ctx, ref.Qualified)
	if err != nil {
		return SchemaOutput{}, toolError(err)
	}
	return SchemaOutput{Table: ref.Table, Columns: columns, ColumnCount: len(columns)}, nil
}

func (s *Server) handleRunQuery(ctx context.Context, input RunQueryInput) (RunQueryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultRowLimit
	}
	result, err := s.cfg.Engine.Query(ctx, analysis.EnsureLimit(input.SQL, limit))
	if err != nil {
		return RunQueryOutput{}, toolError(err)
	}
	return RunQueryOutput{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: len(result.Rows),
	}, nil
}

func (s *Server) handleSample(ctx context.Context, input SampleInput) (SampleOutput, error) {
	ref, err := s.cfg.Registry.Resolve(ctx, input.Source, input.Table)
	if err != nil {
		return SampleOutput{}, toolError(err)
	}
	n := input.N
	if n <= 0 {
		n = s.cfg.SampleRows
	}
	result, err := s.cfg.Engine.Query(ctx, analysis.SampleSQL(ref.Qualified, n))
	if err != nil {
		return SampleOutput{}, toolError(err)
	}
	return SampleOutput{
		Table:    ref.Table,
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: len(result.Rows),
	}, nil
}
