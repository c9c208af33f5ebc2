package analysis

import (
	"fmt"
	"strings"

	"github.com/datasleuth/datasleuth/internal/engine"
)

// SQL builders. Every table argument is an already-quoted qualified name
// produced by the source registry; column names are quoted here.

func CountRowsSQL(qualified string) string {
	return "SELECT COUNT(*) FROM " + qualified
}

func DescribeSQL(qualified string) string {
	return "DESCRIBE " + qualified
}

func SampleSQL(qualified string, n int) string {
	return fmt.Sprintf("SELECT * FROM %s USING SAMPLE %d", qualified, n)
}

func NullCountSQL(qualified, column string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", qualified, engine.QuoteIdent(column))
}

func DistinctCountSQL(qualified, column string) string {
	return fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", engine.QuoteIdent(column), qualified)
}

func NumericStatsSQL(qualified, column string) string {
	quoted := engine.QuoteIdent(column)
	return fmt.Sprintf(
		"SELECT MIN(%s) AS min, MAX(%s) AS max, AVG(%s) AS mean, MEDIAN(%s) AS median, STDDEV(%s) AS stddev FROM %s",
		quoted, quoted, quoted, quoted, quoted, qualified)
}

func TopValuesSQL(qualified, column string, limit int) string {
	quoted := engine.QuoteIdent(column)
	return fmt.Sprintf(
		"SELECT %s AS val, COUNT(*) AS cnt FROM %s GROUP BY %s ORDER BY cnt DESC LIMIT %d",
		quoted, qualified, quoted, limit)
}

// DuplicateGroupsSQL counts groups of rows whose listed columns all match.
func DuplicateGroupsSQL(qualified string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = engine.QuoteIdent(column)
	}
	list := strings.Join(quoted, ", ")
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT %s, COUNT(*) AS cnt FROM %s GROUP BY %s HAVING cnt > 1)",
		list, qualified, list)
}

func NegativeCountSQL(qualified, column string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < 0", qualified, engine.QuoteIdent(column))
}

// DailyAggregateSQL sums a value column per calendar day of the time column.
func DailyAggregateSQL(qualified, column, timeColumn string) string {
	quoted := engine.QuoteIdent(column)
	return fmt.Sprintf(
		"SELECT CAST(%s AS DATE) AS day, SUM(%s) AS daily_value, COUNT(*) AS daily_count FROM %s WHERE %s IS NOT NULL GROUP BY day ORDER BY day",
		engine.QuoteIdent(timeColumn), quoted, qualified, quoted)
}

// RowOutliersSQL selects rows whose z-score against the precomputed mean and
// stddev meets the threshold, most extreme first.
func RowOutliersSQL(qualified, column string, mean, stddev, zThreshold float64, limit int) string {
	quoted := engine.QuoteIdent(column)
	z := fmt.Sprintf("(%s - %v) / %v", quoted, mean, stddev)
	return fmt.Sprintf(
		"SELECT *, %s AS z_score FROM %s WHERE %s IS NOT NULL AND ABS(%s) >= %v ORDER BY ABS(%s) DESC LIMIT %d",
		z, qualified, quoted, z, zThreshold, z, limit)
}

func ExportSQL(query, path, format string) string {
	if strings.EqualFold(format, "csv") {
		return fmt.Sprintf("COPY (%s) TO %s (FORMAT CSV, HEADER)", query, engine.QuoteLiteral(path))
	}
	return fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET)", query, engine.QuoteLiteral(path))
}

// EnsureLimit appends a safety LIMIT when the statement carries none.
// Comment text is ignored so a mention inside a comment does not suppress
// the limit.
func EnsureLimit(sqlText string, limit int) string {
	trimmed := engine.StripTrailingSemicolons(sqlText)
	head := trimmed
	if idx := strings.Index(head, "--"); idx >= 0 {
		head = head[:idx]
	}
	if idx := strings.Index(head, "/*"); idx >= 0 {
		head = head[:idx]
	}
	if strings.Contains(strings.ToLower(head), "limit") {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}
