package exporter

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/scoring"
)

const chartSettleDelay = 500 * time.Millisecond

// PDFRenderer prints the HTML report in headless Chrome.
type PDFRenderer struct {
	report     *ReportRenderer
	timeout    time.Duration
	chromePath string
	logger     *slog.Logger
}

// NewPDFRenderer creates a renderer that gives Chrome at most timeout per
// document.
func NewPDFRenderer(report *ReportRenderer, timeout time.Duration, logger *slog.Logger) *PDFRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PDFRenderer{
		report:     report,
		timeout:    timeout,
		chromePath: DetectChromePath(),
		logger:     logger.With(slog.String("component", "pdf_renderer")),
	}
}

// Available reports whether a Chrome binary was found.
func (p *PDFRenderer) Available() bool {
	return p.chromePath != ""
}

// Render returns r as a PDF document.
func (p *PDFRenderer) Render(ctx context.Context, r scoring.Result, meta ReportMeta) ([]byte, error) {
	if !p.Available() {
		return nil, apperrors.NewDependencyUnavailableError("pdf export", fmt.Errorf("no chrome or chromium binary found"))
	}

	var html bytes.Buffer
	if err := p.report.Render(&html, r, meta); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.ExecPath(p.chromePath),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	start := time.Now()
	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html.Bytes())
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(chartSettleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, apperrors.NewDependencyUnavailableError("pdf export", err)
	}

	p.logger.Info("Rendered PDF report",
		slog.String("analysis", string(r.Analysis())),
		slog.Int("bytes", len(pdf)),
		slog.Duration("duration", time.Since(start)))
	return pdf, nil
}

// DetectChromePath returns the first Chrome or Chromium binary found, or
// an empty string.
func DetectChromePath() string {
	for _, p := range []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, name := range []string{"chromium", "google-chrome", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
