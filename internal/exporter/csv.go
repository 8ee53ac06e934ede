package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pricinglab/internal/config"
	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/scoring"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer that places files under the
// exports directory of paths.
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger.With(slog.String("component", "csv_exporter"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes headers and records to w.
func (w *CSVWriter) WriteCSV(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTable writes t to out with a BOM so Excel detects UTF-8.
func (w *CSVWriter) WriteTable(out io.Writer, t *dataset.Table) error {
	records := make([][]string, t.Len())
	for i := range records {
		records[i] = formatRow(t.Row(i))
	}
	return w.WriteCSV(out, WriteOptions{
		Headers:   t.Columns(),
		Records:   records,
		BOMPrefix: true,
	})
}

// ExportResult writes one file per result sheet plus an insights file, all
// named after stem, and returns the paths written.
func (w *CSVWriter) ExportResult(r scoring.Result, stem string) ([]string, error) {
	var written []string
	for _, sheet := range r.Sheets() {
		name := fmt.Sprintf("%s_%s.csv", stem, slug(sheet.Name))
		stream, err := w.CreateStreamWriter(name, sheet.Table.Columns())
		if err != nil {
			return written, err
		}
		for i := 0; i < sheet.Table.Len(); i++ {
			if err := stream.WriteRecord(formatRow(sheet.Table.Row(i))); err != nil {
				stream.Close()
				return written, fmt.Errorf("failed to write %s row %d: %w", sheet.Name, i, err)
			}
		}
		if err := stream.Close(); err != nil {
			return written, err
		}
		written = append(written, stream.path)
	}

	insights := r.InsightBundle()
	records := make([][]string, 0, len(insights))
	for _, key := range insights.Keys() {
		records = append(records, []string{key, plainText(insights[key])})
	}
	path, err := w.WriteFile(stem+"_insights.csv", WriteOptions{
		Headers:   []string{"Topic", "Insight"},
		Records:   records,
		BOMPrefix: true,
	})
	if err != nil {
		return written, err
	}
	written = append(written, path)

	w.logger.Info("Exported result as CSV",
		slog.String("analysis", string(r.Analysis())),
		slog.Int("file_count", len(written)))
	return written, nil
}

// WriteFile writes a CSV file under the exports directory and returns its
// full path.
func (w *CSVWriter) WriteFile(filePath string, options WriteOptions) (string, error) {
	fullPath, err := w.resolvePath(filePath)
	if err != nil {
		return "", err
	}

	w.logger.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	if err := w.WriteCSV(file, options); err != nil {
		file.Close()
		return "", err
	}
	return fullPath, file.Close()
}

// StreamWriter provides streaming CSV writing for large tables
type StreamWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer under the exports
// directory. The BOM and headers are written immediately.
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath, err := w.resolvePath(filePath)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("header_count", len(headers)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{path: fullPath, file: file, writer: writer}, nil
}

// Path is the file being written.
func (s *StreamWriter) Path() string { return s.path }

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// resolvePath places relative paths in the exports directory and rejects
// anything that would land outside it.
func (w *CSVWriter) resolvePath(filePath string) (string, error) {
	fullPath := filePath
	if !filepath.IsAbs(filePath) {
		fullPath = w.paths.ExportPath(filePath)
	}
	if !config.Contains(w.paths.ExportsDir, fullPath) {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("export path %q is outside the exports directory", filePath))
	}
	return fullPath, nil
}

// slug turns a sheet name into a file name fragment.
func slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

// plainText strips markdown emphasis markers from an insight.
func plainText(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
