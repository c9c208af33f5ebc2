package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datasleuth/datasleuth/internal/analysis"
	"github.com/datasleuth/datasleuth/internal/engine"
	"github.com/datasleuth/datasleuth/internal/source"
)

type ExportInput struct {
	SQL        string `json:"sql"`
	OutputPath string `json:"output_path"`
	Format     string `json:"format,omitempty"`
}

type ExportOutput struct {
	Status        string `json:"status"`
	Path          string `json:"path"`
	Format        string `json:"format"`
	RowCount      int64  `json:"row_count"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

func (s *Server) registerExportTool() error {
	return addTool(s, "export_data",
		"Export the result of a SQL query to a Parquet or CSV file on disk.",
		s.handleExport)
}

func (s *Server) handleExport(ctx context.Context, input ExportInput) (ExportOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return ExportOutput{}, toolErrorKind(kindInvalidInput,
			fmt.Errorf("unsupported format %q: use parquet or csv", input.Format))
	}

	resolved, err := filepath.Abs(input.OutputPath)
	if err != nil {
		return ExportOutput{}, toolErrorKind(kindExportError, err)
	}
	if _, err := source.ValidatePath(resolved, "output path"); err != nil {
		return ExportOutput{}, toolErrorKind(kindInvalidInput, err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return ExportOutput{}, toolErrorKind(kindExportError, fmt.Errorf("create output directory: %w", err))
	}

	trimmed := engine.StripTrailingSemicolons(input.SQL)
	if err := s.cfg.Engine.Exec(ctx, analysis.ExportSQL(trimmed, resolved, format)); err != nil {
		return ExportOutput{}, toolErrorKind(kindExportError, err)
	}

	rowCount, err := s.cfg.Engine.QueryInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s)", trimmed))
	if err != nil {
		return ExportOutput{}, toolError(err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return ExportOutput{}, toolErrorKind(kindExportError, err)
	}

	return ExportOutput{
		Status:        "exported",
		Path:          resolved,
		Format:        format,
		RowCount:      rowCount,
		FileSizeBytes: info.Size(),
	}, nil
}
