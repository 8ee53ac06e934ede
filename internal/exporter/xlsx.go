package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"pricinglab/internal/dataset"
	"pricinglab/internal/scoring"
)

const (
	insightsSheet     = "Insights"
	maxSheetNameRunes = 31
	maxColumnWidth    = 60
)

// XLSXWriter renders a result as a workbook: one sheet per result table
// followed by an Insights sheet.
type XLSXWriter struct {
	logger *slog.Logger
}

// NewXLSXWriter creates a workbook writer.
func NewXLSXWriter(logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{logger: logger.With(slog.String("component", "xlsx_exporter"))}
}

// Write encodes r as xlsx to out.
func (x *XLSXWriter) Write(out io.Writer, r scoring.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F77B4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	first := f.GetSheetName(0)
	used := map[string]bool{}
	for i, sheet := range r.Sheets() {
		name := uniqueSheetName(sheet.Name, used)
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		if err := writeTable(f, name, sheet.Table, header); err != nil {
			return err
		}
	}

	insights := r.InsightBundle()
	rows := dataset.NewBuilder("Topic", "Insight")
	for _, key := range insights.Keys() {
		rows.Add(dataset.String(key), dataset.String(plainText(insights[key])))
	}
	name := uniqueSheetName(insightsSheet, used)
	if len(used) == 1 {
		if err := f.SetSheetName(first, name); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to add insights sheet: %w", err)
	}
	if err := writeTable(f, name, rows.Build(), header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Info("Exported result as XLSX",
		slog.String("analysis", string(r.Analysis())),
		slog.Int("sheet_count", len(used)))
	return nil
}

func writeTable(f *excelize.File, sheet string, t *dataset.Table, headerStyle int) error {
	columns := t.Columns()
	widths := make([]int, len(columns))

	values := make([]interface{}, len(columns))
	for j, c := range columns {
		values[j] = c
		widths[j] = utf8.RuneCountInString(c)
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = cellValue(v)
			if n := utf8.RuneCountInString(formatCell(v)); n > widths[j] {
				widths[j] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i, err)
		}
	}

	if len(columns) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	for j, w := range widths {
		col, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(min(w+2, maxColumnWidth))); err != nil {
			return err
		}
	}
	return nil
}

// cellValue keeps numbers numeric in the workbook.
func cellValue(v dataset.Value) interface{} {
	switch v.Kind() {
	case dataset.KindNumber:
		if f, ok := v.Float(); ok {
			return f
		}
		return nil
	case dataset.KindString:
		return v.String()
	default:
		return nil
	}
}

// uniqueSheetName applies Excel's sheet name rules and disambiguates
// repeats with a numeric suffix.
func uniqueSheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "Sheet"
	}
	clean = truncateRunes(clean, maxSheetNameRunes)

	candidate := clean
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(clean, maxSheetNameRunes-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
