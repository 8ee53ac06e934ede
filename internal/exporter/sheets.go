package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/scoring"
)

const maxSheetsTitle = 100

// SheetsPublisher writes result tables into tabs of one Google spreadsheet.
type SheetsPublisher struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsPublisher connects to the Sheets API. Callers normally pass
// option.WithCredentialsFile.
func NewSheetsPublisher(ctx context.Context, spreadsheetID string, logger *slog.Logger, opts ...option.ClientOption) (*SheetsPublisher, error) {
	if spreadsheetID == "" {
		return nil, apperrors.NewConfigError("sheets spreadsheet id is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("sheets export", err)
	}
	return &SheetsPublisher{
		service:       svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.With(slog.String("component", "sheets_publisher")),
	}, nil
}

// Publication describes what Publish wrote.
type Publication struct {
	SpreadsheetID string    `json:"spreadsheet_id"`
	URL           string    `json:"url"`
	Tabs          []string  `json:"tabs"`
	PublishedAt   time.Time `json:"published_at"`
}

// Publish replaces the contents of one tab per result sheet, plus an
// insights tab, each titled "<prefix> - <sheet>". Missing tabs are created.
func (s *SheetsPublisher) Publish(ctx context.Context, r scoring.Result, prefix string) (*Publication, error) {
	type tab struct {
		title  string
		values [][]interface{}
	}

	var tabs []tab
	for _, sheet := range r.Sheets() {
		tabs = append(tabs, tab{tabTitle(prefix, sheet.Name), sheetValues(sheet.Table)})
	}
	insights := r.InsightBundle()
	rows := [][]interface{}{{"Topic", "Insight"}}
	for _, key := range insights.Keys() {
		rows = append(rows, []interface{}{key, plainText(insights[key])})
	}
	tabs = append(tabs, tab{tabTitle(prefix, insightsSheet), rows})

	ss, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("spreadsheetUrl,sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("sheets export", fmt.Errorf("failed to read spreadsheet: %w", err))
	}
	existing := map[string]bool{}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var adds []*sheets.Request
	for _, t := range tabs {
		if !existing[t.title] {
			adds = append(adds, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: t.title}},
			})
		}
	}
	if len(adds) > 0 {
		_, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: adds}).
			Context(ctx).Do()
		if err != nil {
			return nil, apperrors.NewDependencyUnavailableError("sheets export", fmt.Errorf("failed to add tabs: %w", err))
		}
	}

	pub := &Publication{SpreadsheetID: s.spreadsheetID, URL: ss.SpreadsheetUrl, PublishedAt: time.Now().UTC()}
	for _, t := range tabs {
		rng := quoteTitle(t.title)
		if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &sheets.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return nil, apperrors.NewDependencyUnavailableError("sheets export", fmt.Errorf("failed to clear %s: %w", t.title, err))
		}
		if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng+"!A1", &sheets.ValueRange{Values: t.values}).
			ValueInputOption("RAW").
			Context(ctx).Do(); err != nil {
			return nil, apperrors.NewDependencyUnavailableError("sheets export", fmt.Errorf("failed to write %s: %w", t.title, err))
		}
		pub.Tabs = append(pub.Tabs, t.title)
	}

	s.logger.Info("Published result to Google Sheets",
		slog.String("analysis", string(r.Analysis())),
		slog.String("spreadsheet_id", s.spreadsheetID),
		slog.Int("tab_count", len(pub.Tabs)))
	return pub, nil
}

func sheetValues(t *dataset.Table) [][]interface{} {
	out := make([][]interface{}, 0, t.Len()+1)
	header := make([]interface{}, t.Width())
	for j, c := range t.Columns() {
		header[j] = c
	}
	out = append(out, header)
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		values := make([]interface{}, len(row))
		for j, v := range row {
			if c := cellValue(v); c != nil {
				values[j] = c
			} else {
				values[j] = ""
			}
		}
		out = append(out, values)
	}
	return out
}

func tabTitle(prefix, name string) string {
	title := name
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		title = prefix + " - " + name
	}
	return truncateRunes(title, maxSheetsTitle)
}

// quoteTitle quotes a tab title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
