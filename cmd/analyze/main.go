package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"pricinglab/internal/config"
	"pricinglab/internal/dataset"
	"pricinglab/internal/exporter"
	"pricinglab/internal/infrastructure"
	"pricinglab/internal/ingest"
	"pricinglab/internal/scoring"
	"pricinglab/pkg/contracts/domain"
)

// options holds the parsed command line.
type options struct {
	analysisType domain.AnalysisType
	input        string
	priceColumn  string
	outDir       string
	format       string
}

func main() {
	// A missing .env is not an error.
	_ = godotenv.Load()

	logger := infrastructure.NewLogger(config.LoggingConfig{Level: "info"}, os.Stderr)

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Invalid arguments", slog.String("error", err.Error()))
		os.Exit(2)
	}

	written, err := run(opts, logger)
	if err != nil {
		logger.Error("Analysis failed",
			slog.String("analysis_type", string(opts.analysisType)),
			slog.String("input", opts.input),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Println(path)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)

	typeFlag := fs.String("type", "", "analysis type: maxdiff | comstrat | moca")
	in := fs.String("in", "", "input file (.csv, .xlsx or .xls)")
	price := fs.String("price", "", "ComStrat price column for the price/value map")
	out := fs.String("out", "", "output directory (defaults to the exports directory)")
	format := fs.String("format", "json", "output format: json | xlsx | csv")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	at, err := domain.ParseAnalysisType(*typeFlag)
	if err != nil {
		return options{}, err
	}
	if *in == "" {
		return options{}, fmt.Errorf("-in is required")
	}
	f := strings.ToLower(*format)
	switch f {
	case "json", "xlsx", "csv":
	default:
		return options{}, fmt.Errorf("unsupported format %q: want json, xlsx or csv", *format)
	}

	return options{
		analysisType: at,
		input:        *in,
		priceColumn:  *price,
		outDir:       *out,
		format:       f,
	}, nil
}

// run reads the input, runs the engine and writes the result bundle,
// returning the paths written. Every line it logs shares one trace id.
func run(opts options, logger *slog.Logger) ([]string, error) {
	ctx := infrastructure.EnsureTraceID(context.Background())

	tbl, err := ingest.ReadFile(opts.input)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Input loaded",
		slog.String("input", opts.input),
		slog.Int("rows", tbl.Len()),
		slog.Int("columns", tbl.Width()))

	observer := scoring.ObserverFunc(func(e scoring.Event) {
		logger.WarnContext(ctx, "analysis fallback",
			slog.String("event", string(e.Kind)),
			slog.String("detail", e.Detail),
			slog.Int("count", e.Count))
	})
	result, err := analyze(tbl, opts, scoring.WithObserver(observer))
	if err != nil {
		return nil, err
	}

	paths, err := outputPaths(opts.outDir)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(opts.input), filepath.Ext(opts.input)) + "_" + string(opts.analysisType)
	switch opts.format {
	case "csv":
		return exporter.NewCSVWriter(paths, logger).ExportResult(result, stem)
	case "xlsx":
		path := paths.ExportPath(stem + ".xlsx")
		return []string{path}, writeFile(path, func(w io.Writer) error {
			return exporter.NewXLSXWriter(logger).Write(w, result)
		})
	default:
		path := paths.ExportPath(stem + ".json")
		return []string{path}, writeFile(path, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		})
	}
}

func analyze(tbl *dataset.Table, opts options, runOpts ...scoring.Option) (scoring.Result, error) {
	switch opts.analysisType {
	case domain.AnalysisMaxDiff:
		return scoring.RunMaxDiff(tbl, runOpts...)
	case domain.AnalysisComStrat:
		return scoring.RunComStrat(tbl, opts.priceColumn, runOpts...)
	default:
		return scoring.RunMoca(tbl, runOpts...)
	}
}

// outputPaths points the exports directory at dir, or at the configured
// exports directory when dir is empty.
func outputPaths(dir string) (*config.Paths, error) {
	if dir == "" {
		return config.Default().ResolvePaths()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	return &config.Paths{BaseDir: abs, DataDir: abs, UploadsDir: abs, ExportsDir: abs, LogsDir: abs}, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
