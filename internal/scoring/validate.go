package scoring

import (
	"fmt"
	"math"
	"strings"

	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/pkg/contracts/domain"
)

// Input column names.
const (
	ColRespondentID = "RespondentID"
	ColSetID        = "SetID"
	ColBest         = "Attribute_Best"
	ColWorst        = "Attribute_Worst"

	ColAttribute  = "Attribute"
	ColImportance = "Importance_Score"
	ColPerfUs     = "Performance_Us"
	ColPerfThem   = "Performance_Competitor"

	ColEntity = "EntityName"
	ColPrice  = "PriceMetric"
	ColValue  = "ValueMetric"
)

// MinMocaRows is the fewest valid entities a MOCA fit accepts.
const MinMocaRows = 3

// RequireColumns fails with a SchemaError naming every missing column.
func RequireColumns(t *dataset.Table, required ...string) error {
	if missing := t.Missing(required...); len(missing) > 0 {
		return apperrors.NewSchemaError(missing)
	}
	return nil
}

// CheckSchema validates that t can be handed to the engine for at.
func CheckSchema(t *dataset.Table, at domain.AnalysisType) error {
	if t == nil {
		return apperrors.NewAppValidationError("no input table")
	}
	if err := RequireColumns(t, at.RequiredColumns()...); err != nil {
		return err
	}
	if t.Len() == 0 {
		return apperrors.NewAppValidationError(fmt.Sprintf("the %s input table has no rows", at.Title()))
	}
	return nil
}

// numericColumn coerces a column to floats with NaN marking values that did
// not convert. In strict mode a column with non-blank cells of which none
// convert is a ConversionError.
func numericColumn(t *dataset.Table, name string, strict bool) ([]float64, error) {
	cells, ok := t.Column(name)
	if !ok {
		return nil, apperrors.NewSchemaError([]string{name})
	}

	out := make([]float64, len(cells))
	nonBlank, converted := 0, 0
	var sample string
	for i, v := range cells {
		f, ok := v.Float()
		if !v.IsBlank() {
			nonBlank++
		}
		if !ok {
			if sample == "" && !v.IsBlank() {
				sample = v.String()
			}
			out[i] = math.NaN()
			continue
		}
		converted++
		out[i] = f
	}

	if strict && nonBlank > 0 && converted == 0 {
		return nil, apperrors.NewConversionError(name,
			fmt.Errorf("no value in column %q is numeric (first value: %q)", name, sample))
	}
	return out, nil
}

// identifier returns the trimmed text of a label cell. Numbers count, so an
// entity named 2024 survives a round trip through a spreadsheet.
func identifier(v dataset.Value) (string, bool) {
	s, ok := v.Text()
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func isNaN(fs ...float64) bool {
	for _, f := range fs {
		if math.IsNaN(f) {
			return true
		}
	}
	return false
}
