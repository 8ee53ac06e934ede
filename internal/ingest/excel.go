package ingest

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "pricinglab/internal/errors"
)

// readExcel returns the rows of the first sheet that holds any data.
func readExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read sheet "+name, err)
		}
		if hasData(rows) {
			return rows, nil
		}
	}
	return nil, apperrors.NewAppValidationError("the workbook contains no data")
}

func hasData(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return true
			}
		}
	}
	return false
}
