package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"pricinglab/internal/chart"
	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/pkg/contracts/domain"
)

// Zone is a MOCA price/value consistency zone. The numeric prefixes make the
// lexicographic order match the strategic order.
type Zone string

const (
	ZoneValueLeader   Zone = "1. Value Leader / Opportunity"
	ZonePremium       Zone = "2. Premium / Consistent"
	ZoneEconomy       Zone = "3. Economy / Potential Drag"
	ZoneInconsistent  Zone = "4. Inconsistent / Risk"
	ZoneIndeterminate Zone = "Indeterminate"
)

// Zones lists every zone in display order.
var Zones = []Zone{ZoneValueLeader, ZonePremium, ZoneEconomy, ZoneInconsistent, ZoneIndeterminate}

// Color is the fixed marker color of the zone.
func (z Zone) Color() string {
	switch z {
	case ZoneValueLeader:
		return chart.ColorGreen
	case ZonePremium:
		return chart.ColorBlue
	case ZoneEconomy:
		return chart.ColorOrange
	case ZoneInconsistent:
		return chart.ColorRed
	default:
		return chart.ColorGrey
	}
}

// ZoneRecord is one classified entity.
type ZoneRecord struct {
	Entity         string
	Price          float64
	Value          float64
	ExpectedValue  float64
	ValueDeviation float64
	Zone           Zone
}

func (z ZoneRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Entity         string   `json:"entity"`
		Price          float64  `json:"price"`
		Value          float64  `json:"value"`
		ExpectedValue  nullable `json:"expected_value"`
		ValueDeviation nullable `json:"value_deviation"`
		Zone           Zone     `json:"zone"`
	}{z.Entity, z.Price, z.Value, nullable(z.ExpectedValue), nullable(z.ValueDeviation), z.Zone})
}

// FairValue is the fitted line and the means used as zone thresholds.
type FairValue struct {
	Slope     float64
	Intercept float64
	MeanPrice float64
	MeanValue float64
}

func (f FairValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Slope     nullable `json:"slope"`
		Intercept nullable `json:"intercept"`
		MeanPrice nullable `json:"mean_price"`
		MeanValue nullable `json:"mean_value"`
	}{nullable(f.Slope), nullable(f.Intercept), nullable(f.MeanPrice), nullable(f.MeanValue)})
}

// Line returns the fair-value line.
func (f FairValue) Line() Line { return Line{Slope: f.Slope, Intercept: f.Intercept} }

// MocaResult is the output of a MOCA run. ZoneTable is sorted by zone, then by
// deviation descending.
type MocaResult struct {
	ZoneTable       []ZoneRecord `json:"zone_table"`
	PriceValueChart chart.Figure `json:"price_value_chart"`
	Insights        Insights     `json:"insights"`
	FairValue       FairValue    `json:"fair_value"`
}

// MocaEngine runs MOCA analyses with a verified regressor. It holds no
// per-run state and is safe for concurrent use.
type MocaEngine struct {
	regressor Regressor
}

// NewMocaEngine verifies r once and returns an engine bound to it. A missing
// or broken regressor is a DependencyUnavailable error.
func NewMocaEngine(r Regressor) (*MocaEngine, error) {
	if err := ProbeRegressor(r); err != nil {
		return nil, err
	}
	return &MocaEngine{regressor: r}, nil
}

var defaultMoca = sync.OnceValues(func() (*MocaEngine, error) {
	return NewMocaEngine(GonumRegressor{})
})

// RunMoca runs t through the engine backed by GonumRegressor.
func RunMoca(t *dataset.Table, opts ...Option) (*MocaResult, error) {
	engine, err := defaultMoca()
	if err != nil {
		return nil, err
	}
	return engine.Run(t, opts...)
}

type entity struct {
	label        string
	price, value float64
}

// Run fits the fair-value line over t and classifies every valid entity.
func (e *MocaEngine) Run(t *dataset.Table, opts ...Option) (*MocaResult, error) {
	cfg := newRunConfig(opts)
	entities, err := mocaEntities(t, cfg)
	if err != nil {
		return nil, err
	}

	prices := make([]float64, len(entities))
	values := make([]float64, len(entities))
	for i, en := range entities {
		prices[i], values[i] = en.price, en.value
	}

	line, err := e.regressor.Fit(prices, values)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("linear regression", err)
	}
	fv := FairValue{
		Slope:     line.Slope,
		Intercept: line.Intercept,
		MeanPrice: mean(prices),
		MeanValue: mean(values),
	}

	records := make([]ZoneRecord, len(entities))
	indeterminate := 0
	for i, en := range entities {
		expected := line.At(en.price)
		deviation := en.value - expected
		zone := classifyZone(deviation, en.price, fv.MeanPrice)
		if zone == ZoneIndeterminate {
			indeterminate++
		}
		records[i] = ZoneRecord{
			Entity:         en.label,
			Price:          en.price,
			Value:          en.value,
			ExpectedValue:  expected,
			ValueDeviation: deviation,
			Zone:           zone,
		}
	}
	if indeterminate > 0 {
		cfg.emit(Event{Engine: domain.AnalysisMoca, Kind: EventIndeterminate,
			Detail: fmt.Sprintf("fair value line undefined (slope=%g)", line.Slope), Count: indeterminate})
	}
	sortZones(records)

	return &MocaResult{
		ZoneTable:       records,
		PriceValueChart: mocaChart(records, fv),
		Insights:        mocaInsights(records),
		FairValue:       fv,
	}, nil
}

// mocaEntities coerces price and value silently, drops invalid or blank rows,
// keeps the first row per label and enforces the minimum row count.
func mocaEntities(t *dataset.Table, cfg runConfig) ([]entity, error) {
	if err := CheckSchema(t, domain.AnalysisMoca); err != nil {
		return nil, err
	}
	prices, err := numericColumn(t, ColPrice, false)
	if err != nil {
		return nil, err
	}
	values, err := numericColumn(t, ColValue, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, t.Len())
	out := make([]entity, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		label, ok := identifier(t.At(i, ColEntity))
		if !ok || isNaN(prices[i], values[i]) || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, entity{label: label, price: prices[i], value: values[i]})
	}

	if dropped := t.Len() - len(out); dropped > 0 {
		cfg.emit(Event{Engine: domain.AnalysisMoca, Kind: EventRowsDropped,
			Detail: "invalid or duplicate entity rows", Count: dropped})
	}
	if len(out) < MinMocaRows {
		return nil, apperrors.NewInsufficientDataError(len(out), MinMocaRows)
	}
	return out, nil
}

// classifyZone crosses deviation > 0 with price >= meanPrice. NaN satisfies
// none of the four conditions and lands in Indeterminate.
func classifyZone(deviation, price, meanPrice float64) Zone {
	above, below := deviation > 0, deviation <= 0
	high, low := price >= meanPrice, price < meanPrice
	switch {
	case above && low:
		return ZoneValueLeader
	case above && high:
		return ZonePremium
	case below && high:
		return ZoneInconsistent
	case below && low:
		return ZoneEconomy
	default:
		return ZoneIndeterminate
	}
}

func sortZones(records []ZoneRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Zone != b.Zone {
			return a.Zone < b.Zone
		}
		an, bn := math.IsNaN(a.ValueDeviation), math.IsNaN(b.ValueDeviation)
		if an || bn {
			return !an && bn
		}
		return a.ValueDeviation > b.ValueDeviation
	})
}

// Analysis implements Result.
func (r *MocaResult) Analysis() domain.AnalysisType { return domain.AnalysisMoca }

// InsightBundle implements Result.
func (r *MocaResult) InsightBundle() Insights { return r.Insights }

// Charts implements Result.
func (r *MocaResult) Charts() []NamedChart {
	return []NamedChart{{Name: "price_value_map", Figure: r.PriceValueChart}}
}

// Sheets implements Result.
func (r *MocaResult) Sheets() []dataset.Sheet {
	zones := dataset.NewBuilder(ColEntity, ColPrice, ColValue, "Expected_Value", "Value_Deviation", "MOCA_Zone")
	for _, z := range r.ZoneTable {
		zones.Add(str(z.Entity), num(z.Price), num(z.Value), num(z.ExpectedValue), num(z.ValueDeviation), str(string(z.Zone)))
	}

	line := dataset.NewBuilder("Parameter", "Value")
	line.Add(str("Slope"), num(r.FairValue.Slope))
	line.Add(str("Intercept"), num(r.FairValue.Intercept))
	line.Add(str("Mean_Price"), num(r.FairValue.MeanPrice))
	line.Add(str("Mean_Value"), num(r.FairValue.MeanValue))

	return []dataset.Sheet{
		{Name: "MOCA Zones", Table: zones.Build()},
		{Name: "Fair Value Line", Table: line.Build()},
	}
}

func (r *MocaResult) String() string {
	return fmt.Sprintf("MOCA(%d entities, slope=%.3f)", len(r.ZoneTable), r.FairValue.Slope)
}
