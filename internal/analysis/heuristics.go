package analysis

import (
	"math"
	"strings"
)

var numericTypeFragments = []string{"int", "float", "double", "decimal", "numeric", "real", "hugeint"}

// IsNumericType reports whether a column type name from DESCRIBE output
// denotes a numeric column. Matches on fragments so widths and aliases
// (BIGINT, DECIMAL(10,2), UTINYINT) are covered.
func IsNumericType(columnType string) bool {
	lowered := strings.ToLower(columnType)
	for _, fragment := range numericTypeFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

// IsIdentifierColumn reports whether a column name looks like a surrogate
// key, judged by its suffix.
func IsIdentifierColumn(column string, suffixes []string) bool {
	lowered := strings.ToLower(column)
	for _, suffix := range suffixes {
		if strings.HasSuffix(lowered, suffix) {
			return true
		}
	}
	return false
}

// LikelyNonNegative reports whether a column name suggests its values
// should never be negative, such as prices or quantities.
func LikelyNonNegative(column string, keywords []string) bool {
	lowered := strings.ToLower(column)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// MeanStddev computes the population mean and standard deviation.
func MeanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(values)))
	return mean, stddev
}
