package exporter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"pricinglab/internal/chart"
	"pricinglab/internal/dataset"
	"pricinglab/internal/scoring"
)

// DefaultPlotlyURL is the script the report loads to draw charts.
const DefaultPlotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// ReportMeta describes where a report came from.
type ReportMeta struct {
	Title       string
	Source      string
	GeneratedAt time.Time
}

// ReportRenderer turns a result into a standalone HTML document.
type ReportRenderer struct {
	md        goldmark.Markdown
	plotlyURL string
}

// NewReportRenderer creates a renderer. An empty plotlyURL uses
// DefaultPlotlyURL.
func NewReportRenderer(plotlyURL string) *ReportRenderer {
	if plotlyURL == "" {
		plotlyURL = DefaultPlotlyURL
	}
	return &ReportRenderer{md: goldmark.New(), plotlyURL: plotlyURL}
}

type reportView struct {
	ReportMeta
	PlotlyURL string
	Insights  []template.HTML
	Charts    []chartView
	Tables    []tableView
}

type chartView struct {
	Title  string
	Figure chart.Figure
}

type tableView struct {
	Name    string
	Columns []string
	Rows    [][]cellView
}

type cellView struct {
	Text    string
	Numeric bool
}

// Render writes the report for r to out.
func (rr *ReportRenderer) Render(out io.Writer, r scoring.Result, meta ReportMeta) error {
	if meta.Title == "" {
		meta.Title = r.Analysis().Title() + " Report"
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	view := reportView{ReportMeta: meta, PlotlyURL: rr.plotlyURL}

	insights := r.InsightBundle()
	for _, key := range insights.Keys() {
		h, err := rr.inline(insights[key])
		if err != nil {
			return fmt.Errorf("failed to render insight %s: %w", key, err)
		}
		view.Insights = append(view.Insights, h)
	}
	for _, c := range r.Charts() {
		view.Charts = append(view.Charts, chartView{Title: c.Figure.Layout.Title, Figure: c.Figure})
	}
	for _, s := range r.Sheets() {
		view.Tables = append(view.Tables, newTableView(s))
	}

	if err := reportTemplate.Execute(out, view); err != nil {
		return fmt.Errorf("failed to execute report template: %w", err)
	}
	return nil
}

// inline converts one markdown sentence to HTML without the wrapping
// paragraph. Raw HTML in the source is dropped by goldmark.
func (rr *ReportRenderer) inline(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := rr.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	s := strings.TrimSpace(buf.String())
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<p>"), "</p>")
	return template.HTML(s), nil
}

func newTableView(s dataset.Sheet) tableView {
	tv := tableView{Name: s.Name, Columns: s.Table.Columns()}
	for i := 0; i < s.Table.Len(); i++ {
		row := s.Table.Row(i)
		cells := make([]cellView, len(row))
		for j, v := range row {
			cells[j] = cellView{Text: formatCell(v), Numeric: v.Kind() == dataset.KindNumber}
		}
		tv.Rows = append(tv.Rows, cells)
	}
	return tv
}
