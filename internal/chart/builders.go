package chart

// Palette shared by the engines.
const (
	ColorBlue   = "#1f77b4"
	ColorOrange = "#ff7f0e"
	ColorGreen  = "#2ca02c"
	ColorRed    = "#d62728"
	ColorGrey   = "#7f7f7f"
)

// Placeholder is the empty figure shown when a chart cannot be built. The
// title carries the reason.
func Placeholder(title string) Figure {
	return Figure{
		Data: []Trace{},
		Layout: Layout{
			Title:       title,
			XAxis:       Axis{Visible: Bool(false)},
			YAxis:       Axis{Visible: Bool(false)},
			Annotations: []Annotation{},
		},
	}
}

// Bounds is the padded extent of a scatter.
type Bounds struct {
	MinX, MaxX, MinY, MaxY float64
	PadX, PadY             float64
}

// NewBounds computes extents with a 5% pad per axis, or a pad of 1 when an
// axis has zero width. xs and ys must be non-empty.
func NewBounds(xs, ys []float64) Bounds {
	b := Bounds{MinX: xs[0], MaxX: xs[0], MinY: ys[0], MaxY: ys[0]}
	for _, x := range xs[1:] {
		b.MinX = min(b.MinX, x)
		b.MaxX = max(b.MaxX, x)
	}
	for _, y := range ys[1:] {
		b.MinY = min(b.MinY, y)
		b.MaxY = max(b.MaxY, y)
	}
	b.PadX = pad(b.MaxX - b.MinX)
	b.PadY = pad(b.MaxY - b.MinY)
	return b
}

func pad(span float64) float64 {
	if span > 0 {
		return span * 0.05
	}
	return 1
}

func (b Bounds) XRange() []float64 { return []float64{b.MinX - b.PadX, b.MaxX + b.PadX} }
func (b Bounds) YRange() []float64 { return []float64{b.MinY - b.PadY, b.MaxY + b.PadY} }

// Crosshairs returns a vertical line at x and a horizontal line at y spanning
// the padded bounds.
func (b Bounds) Crosshairs(x, y float64) []Shape {
	style := &Line{Color: "grey", Width: 1, Dash: "dash"}
	return []Shape{
		{Type: "line", X0: x, Y0: b.MinY - b.PadY, X1: x, Y1: b.MaxY + b.PadY, Line: style},
		{Type: "line", X0: b.MinX - b.PadX, Y0: y, X1: b.MaxX + b.PadX, Y1: y, Line: style},
	}
}

// CornerLabels places four quadrant captions at the data corners, in the
// order top-right, top-left, bottom-right, bottom-left.
func (b Bounds) CornerLabels(topRight, topLeft, bottomRight, bottomLeft string) []Annotation {
	font := &Font{Size: 10, Color: "grey"}
	corner := func(x, y float64, text, xa, ya string) Annotation {
		return Annotation{X: x, Y: y, XRef: "x", YRef: "y", Text: text, XAnchor: xa, YAnchor: ya, Font: font}
	}
	return []Annotation{
		corner(b.MaxX, b.MaxY, topRight, "right", "top"),
		corner(b.MinX, b.MaxY, topLeft, "left", "top"),
		corner(b.MaxX, b.MinY, bottomRight, "right", "bottom"),
		corner(b.MinX, b.MinY, bottomLeft, "left", "bottom"),
	}
}

// QuadrantMargin is the margin used by the quadrant scatters.
var QuadrantMargin = Margin{L: 50, R: 20, T: 50, B: 50}
