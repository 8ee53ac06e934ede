package scoring

import (
	"fmt"
	"strings"

	"pricinglab/internal/chart"
	"pricinglab/internal/dataset"
	"pricinglab/pkg/contracts/domain"
)

// Quadrant is a ComStrat advantage-map classification.
type Quadrant string

const (
	QuadrantKeyStrength       Quadrant = "Key Strength"
	QuadrantKeyWeakness       Quadrant = "Key Weakness"
	QuadrantSecondaryStrength Quadrant = "Secondary Strength"
	QuadrantLowPriority       Quadrant = "Low Priority"
	QuadrantIndeterminate     Quadrant = "Indeterminate"
)

// QuadrantRecord is one attribute row on the competitive advantage map.
type QuadrantRecord struct {
	Attribute             string   `json:"attribute"`
	Importance            float64  `json:"importance_score"`
	PerformanceUs         float64  `json:"performance_us"`
	PerformanceCompetitor float64  `json:"performance_competitor"`
	Advantage             float64  `json:"competitive_advantage"`
	Quadrant              Quadrant `json:"quadrant"`
}

// PriceValueRecord is one attribute on the descriptive price/value map.
type PriceValueRecord struct {
	Attribute  string  `json:"attribute"`
	ValueScore float64 `json:"value_score"`
	PriceScore float64 `json:"price_score"`
}

// ComStratResult is the output of RunComStrat. QuadrantTable keeps the input
// row order. PriceValueTable is empty unless a usable price column was named.
type ComStratResult struct {
	QuadrantTable   []QuadrantRecord   `json:"quadrant_table"`
	PriceValueTable []PriceValueRecord `json:"price_value_table"`
	AdvantageChart  chart.Figure       `json:"advantage_chart"`
	PriceValueChart chart.Figure       `json:"price_value_chart"`
	Insights        Insights           `json:"insights"`
	PriceColumn     string             `json:"price_column,omitempty"`
}

// RunComStrat maps attributes by importance and competitive advantage. When
// priceColumn is non-empty and present, a price/value map is built as well;
// any problem with it degrades to a placeholder chart and never fails the run.
func RunComStrat(t *dataset.Table, priceColumn string, opts ...Option) (*ComStratResult, error) {
	cfg := newRunConfig(opts)
	if err := CheckSchema(t, domain.AnalysisComStrat); err != nil {
		return nil, err
	}

	importance, err := numericColumn(t, ColImportance, true)
	if err != nil {
		return nil, err
	}
	us, err := numericColumn(t, ColPerfUs, true)
	if err != nil {
		return nil, err
	}
	them, err := numericColumn(t, ColPerfThem, true)
	if err != nil {
		return nil, err
	}

	records := make([]QuadrantRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		label, ok := identifier(t.At(i, ColAttribute))
		advantage := us[i] - them[i]
		if !ok || isNaN(importance[i], advantage) {
			continue
		}
		records = append(records, QuadrantRecord{
			Attribute:             label,
			Importance:            importance[i],
			PerformanceUs:         us[i],
			PerformanceCompetitor: them[i],
			Advantage:             advantage,
		})
	}
	if dropped := t.Len() - len(records); dropped > 0 {
		cfg.emit(Event{Engine: domain.AnalysisComStrat, Kind: EventRowsDropped,
			Detail: "missing attribute, importance or performance", Count: dropped})
	}

	res := &ComStratResult{
		QuadrantTable:   records,
		PriceValueTable: []PriceValueRecord{},
		PriceColumn:     strings.TrimSpace(priceColumn),
	}

	if len(records) == 0 {
		res.AdvantageChart = chart.Placeholder("Competitive Advantage Map - no valid data")
		cfg.emit(Event{Engine: domain.AnalysisComStrat, Kind: EventPlaceholder, Detail: "advantage map has no valid rows"})
	} else {
		imp := make([]float64, len(records))
		for i, r := range records {
			imp[i] = r.Importance
		}
		mid := median(imp)
		for i := range records {
			records[i].Quadrant = classifyQuadrant(records[i].Importance, records[i].Advantage, mid)
		}
		res.AdvantageChart = advantageChart(records, mid)
	}

	pvmAttempted := res.PriceColumn != ""
	res.PriceValueTable, res.PriceValueChart = priceValueMap(t, res.PriceColumn, cfg)
	res.Insights = comStratInsights(records, len(res.PriceValueTable) > 0, pvmAttempted)
	return res, nil
}

// classifyQuadrant splits at the median importance and zero advantage, both
// inclusive on the upper side.
func classifyQuadrant(importance, advantage, medianImportance float64) Quadrant {
	high := importance >= medianImportance
	low := importance < medianImportance
	switch {
	case high && advantage >= 0:
		return QuadrantKeyStrength
	case high && advantage < 0:
		return QuadrantKeyWeakness
	case low && advantage >= 0:
		return QuadrantSecondaryStrength
	case low && advantage < 0:
		return QuadrantLowPriority
	default:
		return QuadrantIndeterminate
	}
}

// priceValueMap builds the optional price/value scatter. Its row set is
// independent of the advantage filtering: label, importance and price must
// be valid.
func priceValueMap(t *dataset.Table, priceColumn string, cfg runConfig) ([]PriceValueRecord, chart.Figure) {
	empty := []PriceValueRecord{}
	degrade := func(title string) ([]PriceValueRecord, chart.Figure) {
		cfg.emit(Event{Engine: domain.AnalysisComStrat, Kind: EventPlaceholder, Detail: title})
		return empty, chart.Placeholder(title)
	}

	switch {
	case priceColumn == "":
		return empty, chart.Placeholder("Price-Value Map - price metric not provided")
	case !t.HasColumn(priceColumn):
		return degrade(fmt.Sprintf("Price-Value Map - column '%s' not found", priceColumn))
	}

	value, err := numericColumn(t, ColImportance, true)
	if err != nil {
		return degrade("Price-Value Map - error: " + err.Error())
	}
	price, err := numericColumn(t, priceColumn, true)
	if err != nil {
		return degrade("Price-Value Map - error: " + err.Error())
	}

	records := make([]PriceValueRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		label, ok := identifier(t.At(i, ColAttribute))
		if !ok || isNaN(value[i], price[i]) {
			continue
		}
		records = append(records, PriceValueRecord{Attribute: label, ValueScore: value[i], PriceScore: price[i]})
	}
	if len(records) == 0 {
		return degrade("Price-Value Map - no valid data")
	}
	return records, priceValueChart(records, priceColumn)
}

// Analysis implements Result.
func (r *ComStratResult) Analysis() domain.AnalysisType { return domain.AnalysisComStrat }

// InsightBundle implements Result.
func (r *ComStratResult) InsightBundle() Insights { return r.Insights }

// Charts implements Result.
func (r *ComStratResult) Charts() []NamedChart {
	return []NamedChart{
		{Name: "advantage_map", Figure: r.AdvantageChart},
		{Name: "price_value_map", Figure: r.PriceValueChart},
	}
}

// Sheets implements Result. The price/value sheet is omitted when the map was
// not built.
func (r *ComStratResult) Sheets() []dataset.Sheet {
	quad := dataset.NewBuilder(ColAttribute, ColImportance, ColPerfUs, ColPerfThem, "Competitive_Advantage", "Quadrant")
	for _, q := range r.QuadrantTable {
		quad.Add(str(q.Attribute), num(q.Importance), num(q.PerformanceUs), num(q.PerformanceCompetitor),
			num(q.Advantage), str(string(q.Quadrant)))
	}
	sheets := []dataset.Sheet{{Name: "Quadrants", Table: quad.Build()}}

	if len(r.PriceValueTable) > 0 {
		pvm := dataset.NewBuilder(ColAttribute, "Value_Score", "Price_Score")
		for _, p := range r.PriceValueTable {
			pvm.Add(str(p.Attribute), num(p.ValueScore), num(p.PriceScore))
		}
		sheets = append(sheets, dataset.Sheet{Name: "Price Value", Table: pvm.Build()})
	}
	return sheets
}

func (r *ComStratResult) String() string {
	return fmt.Sprintf("ComStrat(%d attributes, pvm=%t)", len(r.QuadrantTable), len(r.PriceValueTable) > 0)
}
