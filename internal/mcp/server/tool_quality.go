package server

import (
	"context"
	"fmt"

	"github.com/datasleuth/datasleuth/internal/analysis"
	"github.com/datasleuth/datasleuth/internal/source"
)

type QualityInput struct {
	Table  string `json:"table"`
	Source string `json:"source,omitempty"`
}

type AnomaliesInput struct {
	Table      string  `json:"table"`
	Column     string  `json:"column"`
	TimeColumn string  `json:"time_column,omitempty"`
	Source     string  `json:"source,omitempty"`
	ZThreshold float64 `json:"z_threshold,omitempty"`
}

type CompareSchemasInput struct {
	TableA  string `json:"table_a"`
	TableB  string `json:"table_b"`
	SourceA string `json:"source_a,omitempty"`
	SourceB string `json:"source_b,omitempty"`
}

func (s *Server) registerQualityTools() error {
	if err := addTool(s, "detect_quality_issues",
		"Scan a table for common data quality issues: high null rates, exact and "+
			"semantic duplicate rows, constant columns, and negative values in "+
			"likely-positive columns.",
		s.handleQuality); err != nil {
		return err
	}
	if err := addTool(s, "detect_anomalies",
		"Detect statistical anomalies in a numeric column using the z-score method. "+
			"With a time_column, values are aggregated per day first to spot unusual trends.",
		s.handleAnomalies); err != nil {
		return err
	}
	return addTool(s, "compare_schemas",
		"Compare the schemas of two tables and report added, removed, and type-changed "+
			"columns. Useful for spotting schema drift.",
		s.handleCompareSchemas)
}

func (s *Server) handleQuality(ctx context.Context, input QualityInput) (analysis.QualityReport, error) {
	ref, err := s.cfg.Registry.Resolve(ctx, input.Source, input.Table)
	if err != nil {
		return analysis.QualityReport{}, toolError(err)
	}
	report, err := s.cfg.Analyzer.QualityScan(ctx, ref.Table, ref.Qualified)
	if err != nil {
		return analysis.QualityReport{}, toolError(err)
	}
	return report, nil
}

func (s *Server) handleAnomalies(ctx context.Context, input AnomaliesInput) (analysis.AnomalyReport, error) {
	ref, err := s.cfg.Registry.Resolve(ctx, input.Source, input.Table)
	if err != nil {
		return analysis.AnomalyReport{}, toolError(err)
	}
	column, err := source.ValidateIdentifier(input.Column, "column")
	if err != nil {
		return analysis.AnomalyReport{}, toolErrorKind(kindInvalidInput, err)
	}
	timeColumn := ""
	if input.TimeColumn != "" {
		if timeColumn, err = source.ValidateIdentifier(input.TimeColumn, "time column"); err != nil {
			return analysis.AnomalyReport{}, toolErrorKind(kindInvalidInput, err)
		}
	}

	report, err := s.cfg.Analyzer.DetectAnomalies(ctx, ref.Table, column, timeColumn, ref.Qualified, input.ZThreshold)
	if err != nil {
		return analysis.AnomalyReport{}, toolError(err)
	}
	return report, nil
}

func (s *Server) handleCompareSchemas(ctx context.Context, input CompareSchemasInput) (analysis.SchemaDiff, error) {
	refA, err := s.cfg.Registry.Resolve(ctx, input.SourceA, input.TableA)
	if err != nil {
		return analysis.SchemaDiff{}, toolError(err)
	}
	refB, err := s.cfg.Registry.Resolve(ctx, input.SourceB, input.TableB)
	if err != nil {
		return analysis.SchemaDiff{}, toolError(err)
	}

	schemaA, err := s.cfg.Analyzer.Schema(ctx, refA.Qualified)
	if err != nil {
		return analysis.SchemaDiff{}, toolError(err)
	}
	schemaB, err := s.cfg.Analyzer.Schema(ctx, refB.Qualified)
	if err != nil {
		return analysis.SchemaDiff{}, toolError(err)
	}

	return analysis.CompareSchemas(tableLabel(input.SourceA, refA.Table), tableLabel(input.SourceB, refB.Table), schemaA, schemaB), nil
}

func tableLabel(sourceName, table string) string {
	if sourceName == "" {
		return table
	}
	return fmt.Sprintf("%s.%s", sourceName, table)
}
