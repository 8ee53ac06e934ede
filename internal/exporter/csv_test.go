package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricinglab/internal/config"
	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/scoring"
	"pricinglab/internal/shared/testutil"
	"pricinglab/pkg/contracts/domain"
)

// setupTestEnv creates a writer whose exports directory is a temp dir.
func setupTestEnv(t *testing.T) (*CSVWriter, string) {
	t.Helper()
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)
	return NewCSVWriter(&config.Paths{ExportsDir: dir}, logger), dir
}

func mocaResult(t *testing.T) *scoring.MocaResult {
	t.Helper()
	rows := testutil.CSVRows(testutil.MocaCSV)
	tbl, err := dataset.FromStrings(rows[0], rows[1:])
	require.NoError(t, err)
	res, err := scoring.RunMoca(tbl)
	require.NoError(t, err)
	return res
}

// fakeResult lets tests control sheet names and insight text.
type fakeResult struct {
	sheets   []dataset.Sheet
	insights scoring.Insights
}

func (f fakeResult) Analysis() domain.AnalysisType   { return domain.AnalysisMaxDiff }
func (f fakeResult) Sheets() []dataset.Sheet         { return f.sheets }
func (f fakeResult) Charts() []scoring.NamedChart    { return nil }
func (f fakeResult) InsightBundle() scoring.Insights { return f.insights }

func stripBOM(t *testing.T, content []byte) string {
	t.Helper()
	require.True(t, bytes.HasPrefix(content, utf8BOM), "missing BOM")
	return string(content[len(utf8BOM):])
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer, _ := setupTestEnv(t)

	tests := []struct {
		name     string
		options  WriteOptions
		expected string
	}{
		{
			name: "headers and records",
			options: WriteOptions{
				Headers: []string{"Name", "Value"},
				Records: [][]string{{"Price", "50"}, {"Quality", "0"}},
			},
			expected: "Name,Value\nPrice,50\nQuality,0\n",
		},
		{
			name: "quoting",
			options: WriteOptions{
				Headers: []string{"Insight"},
				Records: [][]string{{`says "hi", twice`}},
			},
			expected: "Insight\n\"says \"\"hi\"\", twice\"\n",
		},
		{
			name:     "nothing to write",
			options:  WriteOptions{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writer.WriteCSV(&buf, tt.options))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestCSVWriter_WriteTable(t *testing.T) {
	writer, _ := setupTestEnv(t)
	tbl := dataset.NewBuilder("Attribute", "Utility", "Note").
		Add(dataset.String("Price"), dataset.Number(50), dataset.Missing()).
		Add(dataset.String("Design"), dataset.Number(100.0/3.0), dataset.String("café")).
		Build()

	var buf bytes.Buffer
	require.NoError(t, writer.WriteTable(&buf, tbl))

	body := stripBOM(t, buf.Bytes())
	assert.Equal(t, "Attribute,Utility,Note\nPrice,50,\nDesign,33.33,café\n", body)
}

func TestCSVWriter_WriteFile(t *testing.T) {
	writer, dir := setupTestEnv(t)

	path, err := writer.WriteFile("summary.csv", WriteOptions{
		Headers:   []string{"A"},
		Records:   [][]string{{"1"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summary.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\n1\n", stripBOM(t, content))

	t.Run("nested relative path is flattened", func(t *testing.T) {
		path, err := writer.WriteFile("../../escape.csv", WriteOptions{Headers: []string{"A"}})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "escape.csv"), path)
	})

	t.Run("absolute path outside exports is rejected", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "x.csv")
		_, err := writer.WriteFile(outside, WriteOptions{Headers: []string{"A"}})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.NoFileExists(t, outside)
	})
}

func TestCSVWriter_ExportResult(t *testing.T) {
	writer, dir := setupTestEnv(t)
	res := mocaResult(t)

	paths, err := writer.ExportResult(res, "prices")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "prices_moca_zones.csv"),
		filepath.Join(dir, "prices_fair_value_line.csv"),
		filepath.Join(dir, "prices_insights.csv"),
	}, paths)

	zones, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stripBOM(t, zones)), "\n")
	require.Len(t, lines, 1+len(res.ZoneTable))
	assert.Equal(t, "EntityName,PriceMetric,ValueMetric,Expected_Value,Value_Deviation,MOCA_Zone", lines[0])

	insights, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	body := stripBOM(t, insights)
	assert.True(t, strings.HasPrefix(body, "Topic,Insight\n"))
	assert.NotContains(t, body, "**", "markdown markers are stripped")
	assert.Contains(t, body, "general_strategy")
}

func TestCSVWriter_ExportResultEmptySheets(t *testing.T) {
	writer, _ := setupTestEnv(t)
	res := fakeResult{insights: scoring.Insights{"general": "Nothing to report."}}

	paths, err := writer.ExportResult(res, "empty")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "Topic,Insight\ngeneral,Nothing to report.\n", stripBOM(t, content))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "moca_zones", slug("MOCA Zones"))
	assert.Equal(t, "raw_counts", slug("  Raw   Counts "))
	assert.Equal(t, "tmb", slug("TMB"))
}
