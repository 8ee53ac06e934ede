package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/pkg/contracts/domain"
)

// table builds a string table where "" is a missing cell.
func table(t *testing.T, columns []string, rows ...[]string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.FromStrings(columns, rows)
	require.NoError(t, err)
	return tbl
}

// recorder collects observer events.
type recorder struct {
	events []Event
}

func (r *recorder) Observe(e Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func TestRequireColumns(t *testing.T) {
	tbl := table(t, []string{"Attribute", "Importance_Score"}, []string{"a", "1"})

	assert.NoError(t, RequireColumns(tbl, "Attribute"))

	err := RequireColumns(tbl, "Attribute", "Performance_Us", "Performance_Competitor")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"Performance_Us", "Performance_Competitor"}, appErr.Context["missing_columns"])
}

func TestCheckSchema(t *testing.T) {
	tests := []struct {
		name    string
		table   *dataset.Table
		at      domain.AnalysisType
		errType apperrors.ErrorType
	}{
		{
			name:    "nil table",
			at:      domain.AnalysisMoca,
			errType: apperrors.ErrTypeValidation,
		},
		{
			name:    "missing columns checked before row count",
			table:   table(t, []string{"EntityName"}),
			at:      domain.AnalysisMoca,
			errType: apperrors.ErrTypeSchema,
		},
		{
			name:    "no rows",
			table:   table(t, []string{"EntityName", "PriceMetric", "ValueMetric"}),
			at:      domain.AnalysisMoca,
			errType: apperrors.ErrTypeValidation,
		},
		{
			name:  "valid",
			table: table(t, []string{"EntityName", "PriceMetric", "ValueMetric"}, []string{"A", "1", "2"}),
			at:    domain.AnalysisMoca,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSchema(tt.table, tt.at)
			if tt.errType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
		})
	}
}

func TestNumericColumn(t *testing.T) {
	tbl := table(t, []string{"mixed", "words", "blank"},
		[]string{" 1.5 ", "abc", ""},
		[]string{"x", "def", ""},
		[]string{"", "", ""},
		[]string{"-2", "ghi", " "},
	)

	vals, err := numericColumn(tbl, "mixed", true)
	require.NoError(t, err)
	assert.Equal(t, 1.5, vals[0])
	assert.True(t, math.IsNaN(vals[1]))
	assert.True(t, math.IsNaN(vals[2]))
	assert.Equal(t, -2.0, vals[3])

	_, err = numericColumn(tbl, "words", true)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConversion))

	vals, err = numericColumn(tbl, "words", false)
	require.NoError(t, err)
	assert.True(t, isNaN(vals...))

	// Nothing to convert is not a conversion failure.
	_, err = numericColumn(tbl, "blank", true)
	assert.NoError(t, err)

	_, err = numericColumn(tbl, "nope", false)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in   dataset.Value
		want string
		ok   bool
	}{
		{dataset.String("  Brand A "), "Brand A", true},
		{dataset.Number(2024), "2024", true},
		{dataset.String("   "), "", false},
		{dataset.Missing(), "", false},
	}
	for _, tt := range tests {
		got, ok := identifier(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in.String())
		assert.Equal(t, tt.want, got)
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 7.0, median([]float64{7}))

	in := []float64{3, 1, 2}
	median(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "median must not reorder its input")
}
