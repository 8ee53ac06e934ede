package exporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricinglab/internal/dataset"
	"pricinglab/internal/scoring"
)

func TestReportRenderer_Render(t *testing.T) {
	res := mocaResult(t)
	rr := NewReportRenderer("")

	var buf bytes.Buffer
	err := rr.Render(&buf, res, ReportMeta{
		Source:      "prices.csv",
		GeneratedAt: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	html := buf.String()

	assert.Contains(t, html, "<title>MOCA Report</title>")
	assert.Contains(t, html, "Source: prices.csv")
	assert.Contains(t, html, "2026-05-01 09:30 UTC")
	assert.Contains(t, html, DefaultPlotlyURL)
	assert.Contains(t, html, "<strong>", "bold insight markdown becomes HTML")
	assert.NotContains(t, html, "**")
	assert.Contains(t, html, "<h2>MOCA Zones</h2>")
	assert.Contains(t, html, "<th>Value_Deviation</th>")
	assert.Contains(t, html, `id="chart-0"`)
	assert.Contains(t, html, "Price-Value Map (PVM) - MOCA Analysis")
}

func TestReportRenderer_Escaping(t *testing.T) {
	tbl := dataset.NewBuilder("Attribute").Add(dataset.String("<script>alert(1)</script>")).Build()
	res := fakeResult{
		sheets:   []dataset.Sheet{{Name: "Utilities", Table: tbl}},
		insights: scoring.Insights{"top_driver": "**<img src=x onerror=alert(1)>** leads."},
	}

	var buf bytes.Buffer
	require.NoError(t, NewReportRenderer("https://example.test/plotly.js").Render(&buf, res, ReportMeta{Title: "T"}))
	html := buf.String()

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, html, "<img")
	assert.NotContains(t, html, "example.test/plotly.js", "no charts means no plotly script")
}

func TestReportRenderer_Inline(t *testing.T) {
	rr := NewReportRenderer("")
	tests := []struct {
		in, want string
	}{
		{"**Top driver:** Price.", "<strong>Top driver:</strong> Price."},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := rr.inline(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, strings.TrimSpace(string(got)))
	}
}
