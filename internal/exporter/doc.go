// Package exporter turns analysis results into downloadable files.
//
// Every writer works on scoring.Result, so it handles all three engines:
//
// CSVWriter: tables as UTF-8 CSV with a BOM for Excel, either streamed to a
// response or written as one file per sheet under the exports directory.
//
// XLSXWriter: a workbook with one sheet per result table plus an Insights
// sheet, built with excelize.
//
// ReportRenderer: a standalone HTML report. Insights are markdown rendered
// with goldmark, charts are drawn client side by Plotly.
//
// PDFRenderer: prints the HTML report with headless Chrome through chromedp.
//
// SheetsPublisher: replaces the contents of tabs in a configured Google
// spreadsheet.
//
// Example usage:
//
//	res, _ := scoring.RunMoca(table)
//
//	var buf bytes.Buffer
//	err := exporter.NewXLSXWriter(logger).Write(&buf, res)
//
//	pdf := exporter.NewPDFRenderer(exporter.NewReportRenderer(""), 30*time.Second, logger)
//	doc, err := pdf.Render(ctx, res, exporter.ReportMeta{Source: "prices.xlsx"})
package exporter
