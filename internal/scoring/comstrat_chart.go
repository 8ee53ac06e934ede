package scoring

import (
	"strings"

	"pricinglab/internal/chart"
)

func advantageChart(records []QuadrantRecord, medianImportance float64) chart.Figure {
	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	labels := make([]string, len(records))
	for i, r := range records {
		xs[i], ys[i], labels[i] = r.Advantage, r.Importance, r.Attribute
	}
	b := chart.NewBounds(xs, ys)

	return chart.Figure{
		Data: []chart.Trace{scatterTrace("Attributes", chart.ColorBlue, xs, ys, labels)},
		Layout: chart.Layout{
			Title:       "Competitive Advantage Map",
			XAxis:       chart.Axis{Title: "Competitive Advantage (Us vs Competitor)", Range: b.XRange()},
			YAxis:       chart.Axis{Title: ColImportance + " (Importance)", Range: b.YRange()},
			HoverMode:   "closest",
			Shapes:      b.Crosshairs(0, medianImportance),
			Annotations: b.CornerLabels("Key Strengths", "Key Weaknesses", "Secondary Strengths", "Low Priority"),
			Margin:      quadrantMargin(),
		},
	}
}

func priceValueChart(records []PriceValueRecord, priceColumn string) chart.Figure {
	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	labels := make([]string, len(records))
	for i, r := range records {
		xs[i], ys[i], labels[i] = r.PriceScore, r.ValueScore, r.Attribute
	}
	b := chart.NewBounds(xs, ys)

	return chart.Figure{
		Data: []chart.Trace{scatterTrace("Attributes", chart.ColorGreen, xs, ys, labels)},
		Layout: chart.Layout{
			Title:     "Price-Value Map (Attributes)",
			XAxis:     chart.Axis{Title: priceColumn + " (Price/Cost Metric)", Range: b.XRange()},
			YAxis:     chart.Axis{Title: ColImportance + " (Perceived Value)", Range: b.YRange()},
			HoverMode: "closest",
			Shapes:    b.Crosshairs(median(xs), median(ys)),
			Annotations: b.CornerLabels(
				"High Value, High Price",
				"High Value, Low Price (Opportunity)",
				"Low Value, High Price (Danger)",
				"Low Value, Low Price",
			),
			Margin: quadrantMargin(),
		},
	}
}

// scatterTrace is a labeled marker trace with coordinates rounded to 2 places.
func scatterTrace(name, color string, xs, ys []float64, labels []string) chart.Trace {
	rx := make([]float64, len(xs))
	ry := make([]float64, len(ys))
	for i := range xs {
		rx[i] = chart.Round(xs[i], 2)
		ry[i] = chart.Round(ys[i], 2)
	}
	return chart.Trace{
		Type:         "scatter",
		Mode:         "markers+text",
		Name:         name,
		X:            chart.Floats(rx...),
		Y:            chart.Floats(ry...),
		Text:         labels,
		TextPosition: "top right",
		Marker:       &chart.Marker{Color: color, Size: 10},
	}
}

func quadrantMargin() *chart.Margin {
	m := chart.QuadrantMargin
	return &m
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "None."
	}
	return strings.Join(names, ", ")
}
