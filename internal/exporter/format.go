package exporter

import (
	"fmt"
	"math"

	"pricinglab/internal/dataset"
)

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatCell renders a table cell. Whole numbers print without decimals so
// counts stay readable; missing cells are empty.
func formatCell(v dataset.Value) string {
	switch v.Kind() {
	case dataset.KindNumber:
		f, ok := v.Float()
		if !ok {
			return ""
		}
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return formatInt(int64(f))
		}
		return formatFloat(f)
	case dataset.KindString:
		return v.String()
	default:
		return ""
	}
}

// formatRow renders a table row with formatCell.
func formatRow(row []dataset.Value) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = formatCell(v)
	}
	return out
}
