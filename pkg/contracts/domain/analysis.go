// Package domain holds the value types shared between the service layer, the
// HTTP API and the CLI.
package domain

import (
	"fmt"
	"strings"
)

// AnalysisType selects a scoring engine.
type AnalysisType string

const (
	AnalysisMaxDiff  AnalysisType = "maxdiff"
	AnalysisComStrat AnalysisType = "comstrat"
	AnalysisMoca     AnalysisType = "moca"
)

// AnalysisTypes lists every engine in display order.
var AnalysisTypes = []AnalysisType{AnalysisMaxDiff, AnalysisComStrat, AnalysisMoca}

// ParseAnalysisType accepts any letter case.
func ParseAnalysisType(s string) (AnalysisType, error) {
	t := AnalysisType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown analysis type %q", s)
	}
	return t, nil
}

// Valid reports whether t names an engine.
func (t AnalysisType) Valid() bool {
	for _, known := range AnalysisTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Title is the human-readable engine name.
func (t AnalysisType) Title() string {
	switch t {
	case AnalysisMaxDiff:
		return "MaxDiff"
	case AnalysisComStrat:
		return "Competitive Strategy"
	case AnalysisMoca:
		return "MOCA"
	default:
		return string(t)
	}
}

// RequiredColumns lists the input columns an engine needs.
func (t AnalysisType) RequiredColumns() []string {
	switch t {
	case AnalysisMaxDiff:
		return []string{"RespondentID", "SetID", "Attribute_Best", "Attribute_Worst"}
	case AnalysisComStrat:
		return []string{"Attribute", "Importance_Score", "Performance_Us", "Performance_Competitor"}
	case AnalysisMoca:
		return []string{"EntityName", "PriceMetric", "ValueMetric"}
	default:
		return nil
	}
}

// ExportFormat is a downloadable result format.
type ExportFormat string

const (
	ExportCSV    ExportFormat = "csv"
	ExportXLSX   ExportFormat = "xlsx"
	ExportPDF    ExportFormat = "pdf"
	ExportSheets ExportFormat = "sheets"
)

// ContentType is the MIME type served for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportCSV:
		return "text/csv; charset=utf-8"
	case ExportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}
