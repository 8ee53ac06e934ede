package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
)

// Format is a supported upload format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// SupportedFormats lists accepted extensions, without the dot.
var SupportedFormats = []Format{FormatXLSX, FormatXLS, FormatCSV}

// zip local file header; every OOXML workbook starts with it
var zipMagic = []byte("PK\x03\x04")

// DetectFormat maps a filename to a Format by extension, case-insensitively.
func DetectFormat(filename string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, f := range SupportedFormats {
		if ext == string(f) {
			return f, nil
		}
	}
	return "", apperrors.NewAppValidationError(
		fmt.Sprintf("unsupported file type %q: use xlsx, xls or csv", filepath.Ext(filename)),
	).WithContext("filename", filepath.Base(filename))
}

// ReadFile loads a spreadsheet or CSV from disk.
func ReadFile(path string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open upload", err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read loads a table from r, using filename only to pick the format.
func Read(r io.Reader, filename string) (*dataset.Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read upload", err)
	}

	var records [][]string
	switch format {
	case FormatXLSX:
		records, err = readExcel(data)
	case FormatXLS:
		if !bytes.HasPrefix(data, zipMagic) {
			return nil, apperrors.NewConversionError(filepath.Base(filename),
				fmt.Errorf("legacy binary .xls workbooks are not supported, save the file as .xlsx or .csv"))
		}
		records, err = readExcel(data)
	case FormatCSV:
		records, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	return buildTable(records)
}

// buildTable treats the first non-empty row as the header, drops empty rows
// and columns and makes header names unique.
func buildTable(records [][]string) (*dataset.Table, error) {
	records = dropEmptyRows(records)
	if len(records) == 0 {
		return nil, apperrors.NewAppValidationError("the uploaded file contains no data")
	}

	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}

	keep := make([]int, 0, width)
	for j := 0; j < width; j++ {
		for _, rec := range records {
			if j < len(rec) && strings.TrimSpace(rec[j]) != "" {
				keep = append(keep, j)
				break
			}
		}
	}

	header := make([]string, len(keep))
	for k, j := range keep {
		if j < len(records[0]) {
			header[k] = strings.TrimSpace(records[0][j])
		}
	}
	header = uniqueHeaders(header, keep)

	rows := make([][]dataset.Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]dataset.Value, len(keep))
		for k, j := range keep {
			if j < len(rec) && strings.TrimSpace(rec[j]) != "" {
				row[k] = dataset.String(rec[j])
			}
		}
		rows = append(rows, row)
	}

	return dataset.New(header, rows)
}

func dropEmptyRows(records [][]string) [][]string {
	out := records[:0:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// uniqueHeaders names blank headers "Unnamed: N" after their source column
// and suffixes repeats as "name.1", "name.2".
func uniqueHeaders(header []string, sourceIdx []int) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(sourceIdx[i])
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
