package chart

import (
	"encoding/json"
	"math"
)

// Figure is a declarative chart: traces plus layout, in the shape Plotly
// accepts. Built once by an engine and never modified afterwards.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one data series.
type Trace struct {
	Type         string   `json:"type"`
	Mode         string   `json:"mode,omitempty"`
	Name         string   `json:"name,omitempty"`
	X            Values   `json:"x"`
	Y            Values   `json:"y"`
	Text         []string `json:"text,omitempty"`
	TextPosition string   `json:"textposition,omitempty"`
	Marker       *Marker  `json:"marker,omitempty"`
	Line         *Line    `json:"line,omitempty"`
}

type Marker struct {
	Color string `json:"color,omitempty"`
	Size  int    `json:"size,omitempty"`
}

type Line struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
	Dash  string  `json:"dash,omitempty"`
}

type Font struct {
	Size  int    `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Layout carries titles, axes and static overlays.
type Layout struct {
	Title       string       `json:"title"`
	XAxis       Axis         `json:"xaxis"`
	YAxis       Axis         `json:"yaxis"`
	HoverMode   string       `json:"hovermode,omitempty"`
	BarMode     string       `json:"barmode,omitempty"`
	BarGap      float64      `json:"bargap,omitempty"`
	ShowLegend  *bool        `json:"showlegend,omitempty"`
	Legend      *Legend      `json:"legend,omitempty"`
	Margin      *Margin      `json:"margin,omitempty"`
	Shapes      []Shape      `json:"shapes,omitempty"`
	Annotations []Annotation `json:"annotations"`
}

type Axis struct {
	Title     string    `json:"title,omitempty"`
	Range     []float64 `json:"range,omitempty"`
	TickAngle int       `json:"tickangle,omitempty"`
	Visible   *bool     `json:"visible,omitempty"`
}

type Legend struct {
	Title      *Text  `json:"title,omitempty"`
	TraceOrder string `json:"traceorder,omitempty"`
}

type Text struct {
	Text string `json:"text"`
}

type Margin struct {
	L int `json:"l,omitempty"`
	R int `json:"r,omitempty"`
	T int `json:"t,omitempty"`
	B int `json:"b,omitempty"`
}

// Shape is a layout line, used for crosshairs and baselines.
type Shape struct {
	Type string  `json:"type"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Line *Line   `json:"line,omitempty"`
}

type Annotation struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	XRef      string  `json:"xref,omitempty"`
	YRef      string  `json:"yref,omitempty"`
	Text      string  `json:"text"`
	ShowArrow bool    `json:"showarrow"`
	XAnchor   string  `json:"xanchor,omitempty"`
	YAnchor   string  `json:"yanchor,omitempty"`
	Font      *Font   `json:"font,omitempty"`
}

// MarshalJSON always emits data and annotations as arrays.
func (f Figure) MarshalJSON() ([]byte, error) {
	type figure Figure
	out := figure(f)
	if out.Data == nil {
		out.Data = []Trace{}
	}
	if out.Layout.Annotations == nil {
		out.Layout.Annotations = []Annotation{}
	}
	return json.Marshal(out)
}

// IsEmpty reports whether the figure has no traces.
func (f Figure) IsEmpty() bool { return len(f.Data) == 0 }

// Values is a coordinate series. Non-finite numbers encode as null so a
// degenerate fit still serializes.
type Values []interface{}

// Floats wraps numeric coordinates.
func Floats(fs ...float64) Values {
	out := make(Values, len(fs))
	for i, f := range fs {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			out[i] = nil
			continue
		}
		out[i] = f
	}
	return out
}

// Categories wraps category labels.
func Categories(labels ...string) Values {
	out := make(Values, len(labels))
	for i, l := range labels {
		out[i] = l
	}
	return out
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Bool returns a pointer to b for optional layout flags.
func Bool(b bool) *bool { return &b }
