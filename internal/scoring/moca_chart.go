package scoring

import (
	"pricinglab/internal/chart"
)

func mocaChart(records []ZoneRecord, fv FairValue) chart.Figure {
	if len(records) == 0 {
		return chart.Placeholder("Price-Value Map (PVM) for MOCA - no data")
	}

	var traces []chart.Trace
	for _, zone := range Zones {
		var xs, ys []float64
		var labels []string
		for _, r := range records {
			if r.Zone == zone {
				xs = append(xs, r.Price)
				ys = append(ys, r.Value)
				labels = append(labels, r.Entity)
			}
		}
		if len(xs) == 0 {
			continue
		}
		traces = append(traces, chart.Trace{
			Type:         "scatter",
			Mode:         "markers+text",
			Name:         string(zone),
			X:            chart.Floats(xs...),
			Y:            chart.Floats(ys...),
			Text:         labels,
			TextPosition: "top right",
			Marker:       &chart.Marker{Color: zone.Color(), Size: 10},
		})
	}

	prices := make([]float64, len(records))
	values := make([]float64, len(records))
	for i, r := range records {
		prices[i], values[i] = r.Price, r.Value
	}
	minP, maxP := minMax(prices)
	minV, maxV := minMax(values)
	xRange := []float64{minP * 0.9, maxP * 1.1}
	yRange := []float64{minV * 0.9, maxV * 1.1}
	line := fv.Line()

	traces = append(traces,
		lineTrace("Fair Value Line", "grey", "dash", xRange, []float64{line.At(xRange[0]), line.At(xRange[1])}),
		lineTrace("Average Price", "lightgrey", "dot", []float64{fv.MeanPrice, fv.MeanPrice}, yRange),
		lineTrace("Average Value", "lightgrey", "dot", xRange, []float64{fv.MeanValue, fv.MeanValue}),
	)

	return chart.Figure{
		Data: traces,
		Layout: chart.Layout{
			Title:      "Price-Value Map (PVM) - MOCA Analysis",
			XAxis:      chart.Axis{Title: ColPrice},
			YAxis:      chart.Axis{Title: ColValue},
			HoverMode:  "closest",
			ShowLegend: chart.Bool(true),
			Legend:     &chart.Legend{Title: &chart.Text{Text: "MOCA Strategic Zone"}},
			Annotations: []chart.Annotation{
				{X: fv.MeanPrice, Y: yRange[0], XRef: "x", YRef: "y", Text: "Avg Price", YAnchor: "bottom"},
				{X: xRange[0], Y: fv.MeanValue, XRef: "x", YRef: "y", Text: "Avg Value", XAnchor: "left"},
			},
		},
	}
}

func lineTrace(name, color, dash string, xs, ys []float64) chart.Trace {
	return chart.Trace{
		Type: "scatter",
		Mode: "lines",
		Name: name,
		X:    chart.Floats(xs...),
		Y:    chart.Floats(ys...),
		Line: &chart.Line{Color: color, Dash: dash},
	}
}
