package scoring

import (
	"fmt"
	"math"
	"sort"

	"pricinglab/internal/chart"
	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/pkg/contracts/domain"
)

// Tier is a MaxDiff tercile.
type Tier string

const (
	TierTop    Tier = "Top"
	TierMiddle Tier = "Middle"
	TierBottom Tier = "Bottom"
)

// UtilityRecord is one attribute's normalized score on a 0-100 scale.
type UtilityRecord struct {
	Attribute string  `json:"attribute"`
	Score     float64 `json:"avg_utility_score"`
}

// TierRecord is one attribute's Top/Middle/Bottom membership. Exactly one of
// the three percentages is 100.
type TierRecord struct {
	Attribute string  `json:"attribute"`
	TopPct    float64 `json:"top_box_pct"`
	MiddlePct float64 `json:"middle_box_pct"`
	BottomPct float64 `json:"bottom_box_pct"`
	Tier      Tier    `json:"tier"`
}

// CountRecord holds the raw best/worst tallies.
type CountRecord struct {
	Attribute  string `json:"attribute"`
	BestCount  int    `json:"best_count"`
	WorstCount int    `json:"worst_count"`
	BWScore    int    `json:"bw_score"`
}

// MaxDiffResult is the output of RunMaxDiff. UtilityTable and TierTable are
// in rank order; RawCounts is alphabetical.
type MaxDiffResult struct {
	UtilityTable []UtilityRecord `json:"utility_table"`
	TierTable    []TierRecord    `json:"tier_table"`
	RawCounts    []CountRecord   `json:"raw_counts"`
	BarChart     chart.Figure    `json:"bar_chart"`
	StackedChart chart.Figure    `json:"stacked_chart"`
	Insights     Insights        `json:"insights"`
}

// RunMaxDiff scores best/worst choice data with the aggregate count method.
// RespondentID and SetID must be present but do not affect the scores.
func RunMaxDiff(t *dataset.Table, opts ...Option) (*MaxDiffResult, error) {
	cfg := newRunConfig(opts)
	if err := CheckSchema(t, domain.AnalysisMaxDiff); err != nil {
		return nil, err
	}

	best := make([]string, t.Len())
	worst := make([]string, t.Len())
	seen := make(map[string]bool)
	for i := 0; i < t.Len(); i++ {
		if label, ok := t.At(i, ColBest).Label(); ok {
			best[i] = label
			seen[label] = true
		}
		if label, ok := t.At(i, ColWorst).Label(); ok {
			worst[i] = label
			seen[label] = true
		}
	}
	if len(seen) == 0 {
		return nil, apperrors.NewAppValidationError("no valid attribute labels found in the Attribute_Best and Attribute_Worst columns")
	}

	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	counts := tally(labels, best, worst)
	scores := normalize(counts)
	if len(counts) > 1 && uniform(counts) {
		cfg.emit(Event{Engine: domain.AnalysisMaxDiff, Kind: EventUniformScores,
			Detail: "all best-worst scores are tied", Count: len(labels)})
	}

	utilities := make([]UtilityRecord, len(labels))
	for i, l := range labels {
		utilities[i] = UtilityRecord{Attribute: l, Score: scores[i]}
	}
	sort.SliceStable(utilities, func(a, b int) bool {
		return utilities[a].Score > utilities[b].Score
	})

	tiers := terciles(utilities)

	return &MaxDiffResult{
		UtilityTable: utilities,
		TierTable:    tiers,
		RawCounts:    counts,
		BarChart:     maxDiffBarChart(utilities),
		StackedChart: maxDiffStackedChart(tiers),
		Insights:     maxDiffInsights(utilities, tiers),
	}, nil
}

func tally(labels, best, worst []string) []CountRecord {
	index := make(map[string]int, len(labels))
	counts := make([]CountRecord, len(labels))
	for i, l := range labels {
		index[l] = i
		counts[i].Attribute = l
	}
	for _, l := range best {
		if l != "" {
			counts[index[l]].BestCount++
		}
	}
	for _, l := range worst {
		if l != "" {
			counts[index[l]].WorstCount++
		}
	}
	for i := range counts {
		counts[i].BWScore = counts[i].BestCount - counts[i].WorstCount
	}
	return counts
}

// normalize shifts scores so the minimum is zero and scales them to sum to
// 100. All-tied input gets 100/n each.
func normalize(counts []CountRecord) []float64 {
	n := len(counts)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	lowest := counts[0].BWScore
	for _, c := range counts[1:] {
		lowest = min(lowest, c.BWScore)
	}
	total := 0
	for _, c := range counts {
		total += c.BWScore - lowest
	}

	for i, c := range counts {
		if total == 0 {
			scores[i] = 100 / float64(n)
			continue
		}
		scores[i] = float64(c.BWScore-lowest) / float64(total) * 100
	}
	return scores
}

func uniform(counts []CountRecord) bool {
	for _, c := range counts[1:] {
		if c.BWScore != counts[0].BWScore {
			return false
		}
	}
	return true
}

// terciles assigns Top to ranks below ceil(n/3) and Bottom to ranks at or
// above n-ceil(n/3). Top wins the single overlap at n == 1.
func terciles(ranked []UtilityRecord) []TierRecord {
	n := len(ranked)
	cut := int(math.Ceil(float64(n) / 3))
	topIdx, bottomIdx := cut, n-cut

	out := make([]TierRecord, n)
	for rank, u := range ranked {
		rec := TierRecord{Attribute: u.Attribute}
		switch {
		case rank < topIdx:
			rec.TopPct, rec.Tier = 100, TierTop
		case rank >= bottomIdx:
			rec.BottomPct, rec.Tier = 100, TierBottom
		default:
			rec.MiddlePct, rec.Tier = 100, TierMiddle
		}
		out[rank] = rec
	}
	return out
}

// Analysis implements Result.
func (r *MaxDiffResult) Analysis() domain.AnalysisType { return domain.AnalysisMaxDiff }

// InsightBundle implements Result.
func (r *MaxDiffResult) InsightBundle() Insights { return r.Insights }

// Charts implements Result.
func (r *MaxDiffResult) Charts() []NamedChart {
	return []NamedChart{
		{Name: "utility_bar", Figure: r.BarChart},
		{Name: "tmb_stacked", Figure: r.StackedChart},
	}
}

// Sheets implements Result.
func (r *MaxDiffResult) Sheets() []dataset.Sheet {
	util := dataset.NewBuilder("Attribute", "Avg_Utility_Score")
	for _, u := range r.UtilityTable {
		util.Add(str(u.Attribute), num(u.Score))
	}

	tiers := dataset.NewBuilder("Attribute", "Top_Box_%", "Middle_Box_%", "Bottom_Box_%", "Tier")
	for _, t := range r.TierTable {
		tiers.Add(str(t.Attribute), num(t.TopPct), num(t.MiddlePct), num(t.BottomPct), str(string(t.Tier)))
	}

	counts := dataset.NewBuilder("Attribute", "Best_Count", "Worst_Count", "BW_Score")
	for _, c := range r.RawCounts {
		counts.Add(str(c.Attribute), num(float64(c.BestCount)), num(float64(c.WorstCount)), num(float64(c.BWScore)))
	}

	return []dataset.Sheet{
		{Name: "Utilities", Table: util.Build()},
		{Name: "TMB", Table: tiers.Build()},
		{Name: "Raw Counts", Table: counts.Build()},
	}
}

func (r *MaxDiffResult) String() string {
	return fmt.Sprintf("MaxDiff(%d attributes)", len(r.UtilityTable))
}
