package server

import (
	"context"

	"github.com/datasleuth/datasleuth/internal/analysis"
)

type ProfileInput struct {
	Table  string `json:"table"`
	Source string `json:"source,omitempty"`
}

type SummarizeInput struct{}

type TableSummary struct {
	Name        string   `json:"name"`
	RowCount    int64    `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	Columns     []string `json:"columns"`
}

type SourceSummary struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Tables []TableSummary `json:"tables"`
}

type SummarizeOutput struct {
	TotalSources int             `json:"total_sources"`
	TotalTables  int             `json:"total_tables"`
	TotalRows    int64           `json:"total_rows"`
	Sources      []SourceSummary `json:"sources"`
}

func (s *Server) registerProfileTools() error {
	if err := addTool(s, "profile_table",
		"Generate a detailed profile of a table: row count, per-column null rates, "+
			"distinct counts, numeric statistics, and top values for low-cardinality columns.",
		s.handleProfile); err != nil {
		return err
	}
	return addTool(s, "summarize",
		"Generate a high-level summary of all connected data: source count, table count, "+
			"total rows, and per-table column lists.",
		s.handleSummarize)
}

func (s *Server) handleProfile(ctx context.Context, input ProfileInput) (analysis.TableProfile, error) {
	ref, err := s.cfg.Registry.Resolve(ctx, input.Source, input.Table)
	if err != nil {
		return analysis.TableProfile{}, toolError(err)
	}
	profile, err := s.cfg.Analyzer.Profile(ctx, ref.Table, ref.Qualified)
	if err != nil {
		return analysis.TableProfile{}, toolError(err)
	}
	return profile, nil
}

func (s *Server) handleSummarize(ctx context.Context, _ SummarizeInput) (SummarizeOutput, error) {
	output := SummarizeOutput{Sources: []SourceSummary{}}
	for _, src := range s.cfg.Registry.List(ctx) {
		summary := SourceSummary{Name: src.Name, Type: string(src.Kind), Tables: []TableSummary{}}
		for _, table := range src.Tables {
			ref, err := s.cfg.Registry.Resolve(ctx, src.Name, table)
			if err != nil {
				continue
			}

			// Row counts are best effort; an unreadable table is reported
			// as -1 rather than failing the whole summary.
			rowCount, err := s.cfg.Analyzer.RowCount(ctx, ref.Qualified)
			if err != nil {
				rowCount = -1
			}
			columns, err := s.cfg.Analyzer.Schema(ctx, ref.Qualified)
			if err != nil {
				columns = nil
			}
			names := make([]string, len(columns))
			for i, column := range columns {
				names[i] = column.Name
			}

			summary.Tables = append(summary.Tables, TableSummary{
				Name:        table,
				RowCount:    rowCount,
				ColumnCount: len(columns),
				Columns:     names,
			})
			if rowCount > 0 {
				output.TotalRows += rowCount
			}
		}
		output.TotalTables += len(summary.Tables)
		output.Sources = append(output.Sources, summary)
	}
	output.TotalSources = len(output.Sources)
	return output, nil
}
