package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// MaxDiffCSV is a small best/worst survey where Price dominates and Quality
// is least preferred.
const MaxDiffCSV = `RespondentID,SetID,Attribute_Best,Attribute_Worst
1,1,Price,Quality
1,2,Price,Support
2,1,Design,Quality
2,2,Price,Design
3,1,Support,Quality
3,2,Price,Quality
`

// ComStratCSV rates five attributes against one competitor and carries a
// Cost column for the price/value map.
const ComStratCSV = `Attribute,Importance_Score,Performance_Us,Performance_Competitor,Cost
Battery,9,8,6,40
Screen,7,5,7,55
Weight,5,6,6,10
Colors,3,4,5,5
Stickers,1,7,2,2
`

// MocaCSV lists four priced entities.
const MocaCSV = `EntityName,PriceMetric,ValueMetric
A,100,90
B,150,80
C,120,85
D,160,95
`

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// WriteWorkbook writes rows to the first sheet of a new xlsx file.
func WriteWorkbook(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("set row %d: %v", i, err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// CSVRows splits a fixture CSV into records. Fixtures contain no quoting.
func CSVRows(content string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		rows = append(rows, strings.Split(line, ","))
	}
	return rows
}
