package scoring

import (
	"encoding/json"
	"math"
	"sort"

	"pricinglab/internal/chart"
	"pricinglab/internal/dataset"
	"pricinglab/pkg/contracts/domain"
)

// Insights maps a topic key to a templated sentence. Sentences may use
// **bold** markdown.
type Insights map[string]string

// Keys returns the topics in sorted order.
func (in Insights) Keys() []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NamedChart pairs a figure with a stable identifier.
type NamedChart struct {
	Name   string       `json:"name"`
	Figure chart.Figure `json:"figure"`
}

// Result is the common view over the three engine results used by exporters
// and the report renderer.
type Result interface {
	Analysis() domain.AnalysisType
	// Sheets returns the result tables, primary table first.
	Sheets() []dataset.Sheet
	Charts() []NamedChart
	InsightBundle() Insights
}

// nullable encodes NaN and infinities as JSON null.
type nullable float64

func (n nullable) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func num(f float64) dataset.Value { return dataset.Number(f) }
func str(s string) dataset.Value  { return dataset.String(s) }
