package scoring

import (
	"strconv"

	"pricinglab/internal/chart"
)

func maxDiffBarChart(ranked []UtilityRecord) chart.Figure {
	if len(ranked) == 0 {
		return chart.Placeholder("Relative Attribute Importance (MaxDiff) - no data")
	}

	labels := make([]string, len(ranked))
	ys := make([]float64, len(ranked))
	text := make([]string, len(ranked))
	top := ranked[0].Score
	for i, u := range ranked {
		labels[i] = u.Attribute
		ys[i] = chart.Round(u.Score, 1)
		text[i] = strconv.FormatFloat(ys[i], 'f', 1, 64)
		top = max(top, u.Score)
	}

	return chart.Figure{
		Data: []chart.Trace{{
			Type:         "bar",
			Name:         "Average Utility",
			X:            chart.Categories(labels...),
			Y:            chart.Floats(ys...),
			Text:         text,
			TextPosition: "auto",
			Marker:       &chart.Marker{Color: chart.ColorBlue},
		}},
		Layout: chart.Layout{
			Title:     "Relative Attribute Importance (MaxDiff average scores)",
			XAxis:     chart.Axis{Title: "Attribute", TickAngle: -45},
			YAxis:     chart.Axis{Title: "Average Utility (0-100 scale)", Range: []float64{0, max(100, top*1.1)}},
			Margin:    &chart.Margin{B: 150},
			HoverMode: "closest",
			BarGap:    0.15,
		},
	}
}

func maxDiffStackedChart(tiers []TierRecord) chart.Figure {
	if len(tiers) == 0 {
		return chart.Placeholder("Top/Middle/Bottom Distribution (MaxDiff) - no data")
	}

	labels := make([]string, len(tiers))
	top := make([]float64, len(tiers))
	middle := make([]float64, len(tiers))
	bottom := make([]float64, len(tiers))
	for i, t := range tiers {
		labels[i] = t.Attribute
		top[i], middle[i], bottom[i] = t.TopPct, t.MiddlePct, t.BottomPct
	}

	series := func(name, color string, ys []float64) chart.Trace {
		return chart.Trace{
			Type:   "bar",
			Name:   name,
			X:      chart.Categories(labels...),
			Y:      chart.Floats(ys...),
			Marker: &chart.Marker{Color: color},
		}
	}

	return chart.Figure{
		Data: []chart.Trace{
			series("Top Box (%)", chart.ColorGreen, top),
			series("Middle Box (%)", chart.ColorOrange, middle),
			series("Bottom Box (%)", chart.ColorRed, bottom),
		},
		Layout: chart.Layout{
			Title:     "Importance Distribution by Attribute (TMB)",
			XAxis:     chart.Axis{Title: "Attribute", TickAngle: -45},
			YAxis:     chart.Axis{Title: "Share of Classification (%)", Range: []float64{0, 105}},
			BarMode:   "stack",
			Margin:    &chart.Margin{B: 150},
			HoverMode: "closest",
			Legend:    &chart.Legend{TraceOrder: "normal"},
		},
	}
}
