// Package analysis builds and runs the diagnostic SQL behind the profiling,
// quality, and anomaly tools. All statistics are pushed down to the engine;
// this package only composes statements and shapes reports.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/datasleuth/datasleuth/internal/engine"
)

// Policy carries the tunable thresholds of the quality and anomaly scans.
type Policy struct {
	NullRateThreshold   float64
	HighNullRate        float64
	ZThreshold          float64
	PositiveKeywords    []string
	IDSuffixes          []string
	TopValueCardinality int64
	TopValueLimit       int
	OutlierRowLimit     int
}

func DefaultPolicy() Policy {
	return Policy{
		NullRateThreshold:   0.05,
		HighNullRate:        0.3,
		ZThreshold:          3.0,
		PositiveKeywords:    []string{"price", "amount", "total", "quantity", "qty", "count", "cost", "revenue", "fee"},
		IDSuffixes:          []string{"_id", "id"},
		TopValueCardinality: 20,
		TopValueLimit:       10,
		OutlierRowLimit:     100,
	}
}

type ColumnInfo struct {
	Name     string `json:"column"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type ColumnProfile struct {
	Column        string       `json:"column"`
	Type          string       `json:"type"`
	NullCount     int64        `json:"null_count"`
	NullRate      float64      `json:"null_rate"`
	DistinctCount int64        `json:"distinct_count"`
	UniqueRate    float64      `json:"unique_rate"`
	Min           *float64     `json:"min,omitempty"`
	Max           *float64     `json:"max,omitempty"`
	Mean          *float64     `json:"mean,omitempty"`
	Median        *float64     `json:"median,omitempty"`
	Stddev        *float64     `json:"stddev,omitempty"`
	TopValues     []ValueCount `json:"top_values,omitempty"`
}

type TableProfile struct {
	Table       string          `json:"table"`
	RowCount    int64           `json:"row_count"`
	ColumnCount int             `json:"column_count"`
	Columns     []ColumnProfile `json:"columns"`
}

type Issue struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Column          string   `json:"column,omitempty"`
	Message         string   `json:"message"`
	NullRate        float64  `json:"null_rate,omitempty"`
	NullCount       int64    `json:"null_count,omitempty"`
	DuplicateGroups int64    `json:"duplicate_groups,omitempty"`
	ColumnsChecked  []string `json:"columns_checked,omitempty"`
	NegativeCount   int64    `json:"negative_count,omitempty"`
}

type QualityReport struct {
	Table      string  `json:"table"`
	RowCount   int64   `json:"row_count"`
	Issues     []Issue `json:"issues"`
	IssueCount int     `json:"issue_count"`
}

type AnomalyStats struct {
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
	Days   int     `json:"days,omitempty"`
	Count  int64   `json:"count,omitempty"`
}

type AnomalyReport struct {
	Table        string       `json:"table"`
	Column       string       `json:"column"`
	TimeColumn   string       `json:"time_column,omitempty"`
	Method       string       `json:"method"`
	ZThreshold   float64      `json:"z_threshold"`
	Stats        AnomalyStats `json:"stats"`
	Anomalies    []engine.Row `json:"anomalies"`
	AnomalyCount int          `json:"anomaly_count"`
	Message      string       `json:"message,omitempty"`
}

type TypeChange struct {
	Column string `json:"column"`
	TypeA  string `json:"type_a"`
	TypeB  string `json:"type_b"`
}

type SchemaDiff struct {
	TableA            string       `json:"table_a"`
	TableB            string       `json:"table_b"`
	Identical         bool         `json:"identical"`
	ColumnsAddedInB   []ColumnInfo `json:"columns_added_in_b"`
	ColumnsRemovedInB []ColumnInfo `json:"columns_removed_in_b"`
	TypeChanges       []TypeChange `json:"type_changes"`
	DiffCount         int          `json:"diff_count"`
}

type Analyzer struct {
	engine *engine.Engine
	policy Policy
}

func NewAnalyzer(e *engine.Engine, policy Policy) *Analyzer {
	return &Analyzer{engine: e, policy: policy}
}

func (a *Analyzer) Policy() Policy {
	return a.policy
}

// Schema describes a table's columns through the engine catalog.
func (a *Analyzer) Schema(ctx context.Context, qualified string) ([]ColumnInfo, error) {
	result, err := a.engine.Query(ctx, DescribeSQL(qualified))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", qualified, err)
	}
	columns := make([]ColumnInfo, 0, len(result.Rows))
	for _, row := range result.Rows {
		info := ColumnInfo{}
		if name, ok := row["column_name"].(string); ok {
			info.Name = name
		}
		if typ, ok := row["column_type"].(string); ok {
			info.Type = typ
		}
		if nullable, ok := row["null"].(string); ok {
			info.Nullable = nullable
		}
		columns = append(columns, info)
	}
	return columns, nil
}

func (a *Analyzer) RowCount(ctx context.Context, qualified string) (int64, error) {
	return a.engine.QueryInt64(ctx, CountRowsSQL(qualified))
}

// Profile builds the per-column statistics report for one table.
func (a *Analyzer) Profile(ctx context.Context, table, qualified string) (TableProfile, error) {
	rowCount, err := a.RowCount(ctx, qualified)
	if err != nil {
		return TableProfile{}, err
	}
	schema, err := a.Schema(ctx, qualified)
	if err != nil {
		return TableProfile{}, err
	}

	profiles := make([]ColumnProfile, 0, len(schema))
	for _, column := range schema {
		profile := ColumnProfile{Column: column.Name, Type: column.Type}

		nullCount, err := a.engine.QueryInt64(ctx, NullCountSQL(qualified, column.Name))
		if err != nil {
			return TableProfile{}, fmt.Errorf("null count for %q: %w", column.Name, err)
		}
		profile.NullCount = nullCount
		if rowCount > 0 {
			profile.NullRate = round4(float64(nullCount) / float64(rowCount))
		}

		distinct, err := a.engine.QueryInt64(ctx, DistinctCountSQL(qualified, column.Name))
		if err != nil {
			return TableProfile{}, fmt.Errorf("distinct count for %q: %w", column.Name, err)
		}
		profile.DistinctCount = distinct
		if rowCount > 0 {
			profile.UniqueRate = round4(float64(distinct) / float64(rowCount))
		}

		if IsNumericType(column.Type) {
			stats, err := a.engine.Query(ctx, NumericStatsSQL(qualified, column.Name))
			if err != nil {
				return TableProfile{}, fmt.Errorf("numeric stats for %q: %w", column.Name, err)
			}
			if len(stats.Rows) == 1 {
				row := stats.Rows[0]
				profile.Min = roundedFloat(row["min"])
				profile.Max = roundedFloat(row["max"])
				profile.Mean = roundedFloat(row["mean"])
				profile.Median = roundedFloat(row["median"])
				profile.Stddev = roundedFloat(row["stddev"])
			}
		}

		if distinct <= a.policy.TopValueCardinality && rowCount > 0 {
			top, err := a.engine.Query(ctx, TopValuesSQL(qualified, column.Name, a.policy.TopValueLimit))
			if err != nil {
				return TableProfile{}, fmt.Errorf("top values for %q: %w", column.Name, err)
			}
			for _, row := range top.Rows {
				count, _ := engine.AsInt64(row["cnt"])
				profile.TopValues = append(profile.TopValues, ValueCount{
					Value: fmt.Sprint(row["val"]),
					Count: count,
				})
			}
		}

		profiles = append(profiles, profile)
	}

	return TableProfile{
		Table:       table,
		RowCount:    rowCount,
		ColumnCount: len(schema),
		Columns:     profiles,
	}, nil
}

// QualityScan runs the fixed battery of quality checks against a table.
func (a *Analyzer) QualityScan(ctx context.Context, table, qualified string) (QualityReport, error) {
	rowCount, err := a.RowCount(ctx, qualified)
	if err != nil {
		return QualityReport{}, err
	}
	report := QualityReport{Table: table, RowCount: rowCount, Issues: []Issue{}}
	if rowCount == 0 {
		return report, nil
	}

	schema, err := a.Schema(ctx, qualified)
	if err != nil {
		return QualityReport{}, err
	}
	allColumns := make([]string, len(schema))
	for i, column := range schema {
		allColumns[i] = column.Name
	}

	dupCount, err := a.engine.QueryInt64(ctx, DuplicateGroupsSQL(qualified, allColumns))
	if err != nil {
		return QualityReport{}, fmt.Errorf("duplicate scan: %w", err)
	}
	if dupCount > 0 {
		report.Issues = append(report.Issues, Issue{
			Type:            "duplicates",
			Severity:        duplicateSeverity(dupCount, rowCount),
			Message:         fmt.Sprintf("Found %d groups of exact duplicate rows", dupCount),
			DuplicateGroups: dupCount,
		})
	}

	// A second pass without ID-like columns catches rows that differ only
	// in their surrogate key.
	var nonIDColumns []string
	for _, column := range schema {
		if !IsIdentifierColumn(column.Name, a.policy.IDSuffixes) {
			nonIDColumns = append(nonIDColumns, column.Name)
		}
	}
	if len(nonIDColumns) > 0 && len(nonIDColumns) < len(schema) {
		semDupCount, err := a.engine.QueryInt64(ctx, DuplicateGroupsSQL(qualified, nonIDColumns))
		if err != nil {
			return QualityReport{}, fmt.Errorf("semantic duplicate scan: %w", err)
		}
		if semDupCount > 0 && semDupCount != dupCount {
			report.Issues = append(report.Issues, Issue{
				Type:            "semantic_duplicates",
				Severity:        duplicateSeverity(semDupCount, rowCount),
				Message:         fmt.Sprintf("Found %d groups of rows with identical values (excluding ID columns)", semDupCount),
				DuplicateGroups: semDupCount,
				ColumnsChecked:  nonIDColumns,
			})
		}
	}

	for _, column := range schema {
		nullCount, err := a.engine.QueryInt64(ctx, NullCountSQL(qualified, column.Name))
		if err != nil {
			return QualityReport{}, fmt.Errorf("null scan for %q: %w", column.Name, err)
		}
		nullRate := float64(nullCount) / float64(rowCount)
		if nullRate > a.policy.NullRateThreshold {
			severity := "medium"
			if nullRate > a.policy.HighNullRate {
				severity = "high"
			}
			report.Issues = append(report.Issues, Issue{
				Type:      "high_null_rate",
				Severity:  severity,
				Column:    column.Name,
				Message:   fmt.Sprintf("Column '%s' has %.1f%% null values (%d rows)", column.Name, nullRate*100, nullCount),
				NullRate:  round4(nullRate),
				NullCount: nullCount,
			})
		}

		distinct, err := a.engine.QueryInt64(ctx, DistinctCountSQL(qualified, column.Name))
		if err != nil {
			return QualityReport{}, fmt.Errorf("distinct scan for %q: %w", column.Name, err)
		}
		if distinct == 1 && rowCount > 1 {
			report.Issues = append(report.Issues, Issue{
				Type:     "constant_column",
				Severity: "low",
				Column:   column.Name,
				Message:  fmt.Sprintf("Column '%s' has a single constant value across all %d rows", column.Name, rowCount),
			})
		}

		if IsNumericType(column.Type) && LikelyNonNegative(column.Name, a.policy.PositiveKeywords) {
			negCount, err := a.engine.QueryInt64(ctx, NegativeCountSQL(qualified, column.Name))
			if err != nil {
				return QualityReport{}, fmt.Errorf("negative scan for %q: %w", column.Name, err)
			}
			if negCount > 0 {
				report.Issues = append(report.Issues, Issue{
					Type:          "unexpected_negatives",
					Severity:      "high",
					Column:        column.Name,
					Message:       fmt.Sprintf("Column '%s' has %d negative values (expected positive)", column.Name, negCount),
					NegativeCount: negCount,
				})
			}
		}
	}

	report.IssueCount = len(report.Issues)
	return report, nil
}

// DetectAnomalies finds z-score outliers in a numeric column. With a time
// column the scan aggregates per day first; otherwise individual rows are
// scored.
func (a *Analyzer) DetectAnomalies(ctx context.Context, table, column, timeColumn, qualified string, zThreshold float64) (AnomalyReport, error) {
	if zThreshold <= 0 {
		zThreshold = a.policy.ZThreshold
	}
	if err := a.requireColumns(ctx, qualified, column, timeColumn); err != nil {
		return AnomalyReport{}, err
	}

	if timeColumn != "" {
		return a.detectDailyAnomalies(ctx, table, column, timeColumn, qualified, zThreshold)
	}
	return a.detectRowAnomalies(ctx, table, column, qualified, zThreshold)
}

func (a *Analyzer) detectDailyAnomalies(ctx context.Context, table, column, timeColumn, qualified string, zThreshold float64) (AnomalyReport, error) {
	result, err := a.engine.Query(ctx, DailyAggregateSQL(qualified, column, timeColumn))
	if err != nil {
		return AnomalyReport{}, fmt.Errorf("daily aggregation: %w", err)
	}

	report := AnomalyReport{
		Table:      table,
		Column:     column,
		TimeColumn: timeColumn,
		Method:     "z_score_daily_aggregation",
		ZThreshold: zThreshold,
		Anomalies:  []engine.Row{},
	}
	if len(result.Rows) < 3 {
		report.Message = "Not enough data points for anomaly detection"
		return report, nil
	}

	values := make([]float64, 0, len(result.Rows))
	for _, row := range result.Rows {
		value, _ := engine.AsFloat64(row["daily_value"])
		values = append(values, value)
	}
	mean, stddev := MeanStddev(values)
	report.Stats = AnomalyStats{Mean: round2(mean), Stddev: round2(stddev), Days: len(result.Rows)}

	if stddev > 0 {
		for i, row := range result.Rows {
			z := (values[i] - mean) / stddev
			if math.Abs(z) >= zThreshold {
				direction := "above"
				if z < 0 {
					direction = "below"
				}
				count, _ := engine.AsInt64(row["daily_count"])
				report.Anomalies = append(report.Anomalies, engine.Row{
					"day":       fmt.Sprint(row["day"]),
					"value":     values[i],
					"count":     count,
					"z_score":   round2(z),
					"direction": direction,
				})
			}
		}
	}
	report.AnomalyCount = len(report.Anomalies)
	return report, nil
}

func (a *Analyzer) detectRowAnomalies(ctx context.Context, table, column, qualified string, zThreshold float64) (AnomalyReport, error) {
	quoted := engine.QuoteIdent(column)
	stats, err := a.engine.Query(ctx, fmt.Sprintf(
		"SELECT AVG(%s) AS mean, STDDEV(%s) AS stddev, COUNT(*) AS cnt FROM %s WHERE %s IS NOT NULL",
		quoted, quoted, qualified, quoted))
	if err != nil {
		return AnomalyReport{}, fmt.Errorf("column stats: %w", err)
	}

	report := AnomalyReport{
		Table:      table,
		Column:     column,
		Method:     "z_score_row_level",
		ZThreshold: zThreshold,
		Anomalies:  []engine.Row{},
	}
	var mean, stddev float64
	var count int64
	if len(stats.Rows) == 1 {
		mean, _ = engine.AsFloat64(stats.Rows[0]["mean"])
		stddev, _ = engine.AsFloat64(stats.Rows[0]["stddev"])
		count, _ = engine.AsInt64(stats.Rows[0]["cnt"])
	}
	report.Stats = AnomalyStats{Mean: round2(mean), Stddev: round2(stddev), Count: count}

	if stddev > 0 {
		outliers, err := a.engine.Query(ctx, RowOutliersSQL(qualified, column, mean, stddev, zThreshold, a.policy.OutlierRowLimit))
		if err != nil {
			return AnomalyReport{}, fmt.Errorf("outlier scan: %w", err)
		}
		report.Anomalies = outliers.Rows
	}
	report.AnomalyCount = len(report.Anomalies)
	return report, nil
}

// CompareSchemas diffs two column lists. Pure; callers fetch both schemas
// first.
func CompareSchemas(labelA, labelB string, schemaA, schemaB []ColumnInfo) SchemaDiff {
	typesA := make(map[string]string, len(schemaA))
	for _, column := range schemaA {
		typesA[column.Name] = column.Type
	}
	typesB := make(map[string]string, len(schemaB))
	for _, column := range schemaB {
		typesB[column.Name] = column.Type
	}

	diff := SchemaDiff{
		TableA:            labelA,
		TableB:            labelB,
		ColumnsAddedInB:   []ColumnInfo{},
		ColumnsRemovedInB: []ColumnInfo{},
		TypeChanges:       []TypeChange{},
	}
	for name, typ := range typesB {
		if _, ok := typesA[name]; !ok {
			diff.ColumnsAddedInB = append(diff.ColumnsAddedInB, ColumnInfo{Name: name, Type: typ})
		}
	}
	for name, typA := range typesA {
		typB, ok := typesB[name]
		if !ok {
			diff.ColumnsRemovedInB = append(diff.ColumnsRemovedInB, ColumnInfo{Name: name, Type: typA})
			continue
		}
		if typA != typB {
			diff.TypeChanges = append(diff.TypeChanges, TypeChange{Column: name, TypeA: typA, TypeB: typB})
		}
	}
	sort.Slice(diff.ColumnsAddedInB, func(i, j int) bool { return diff.ColumnsAddedInB[i].Name < diff.ColumnsAddedInB[j].Name })
	sort.Slice(diff.ColumnsRemovedInB, func(i, j int) bool { return diff.ColumnsRemovedInB[i].Name < diff.ColumnsRemovedInB[j].Name })
	sort.Slice(diff.TypeChanges, func(i, j int) bool { return diff.TypeChanges[i].Column < diff.TypeChanges[j].Column })

	diff.DiffCount = len(diff.ColumnsAddedInB) + len(diff.ColumnsRemovedInB) + len(diff.TypeChanges)
	diff.Identical = diff.DiffCount == 0
	return diff
}

func (a *Analyzer) requireColumns(ctx context.Context, qualified string, columns ...string) error {
	schema, err := a.Schema(ctx, qualified)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(schema))
	for _, column := range schema {
		present[column.Name] = true
	}
	for _, column := range columns {
		if column == "" {
			continue
		}
		if !present[column] {
			return fmt.Errorf("column %q not found in %s", column, qualified)
		}
	}
	return nil
}

func duplicateSeverity(groups, rowCount int64) string {
	if float64(groups) > float64(rowCount)*0.01 {
		return "high"
	}
	return "medium"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func roundedFloat(value any) *float64 {
	converted, ok := engine.AsFloat64(value)
	if !ok {
		return nil
	}
	rounded := round4(converted)
	return &rounded
}
