// Command cdparity runs the device/reference accuracy comparison outside of go test.
//
//	cdparity -tiers unit,quality -family lasso -chart scores.png
//
// Every scenario of the selected tiers is generated, fitted with both estimators
// and scored. A table of R² values is printed to stdout; the exit status is 1 when
// any scenario errors or falls outside the margin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/YuminosukeSato/cdlinear/datasets"
	"github.com/YuminosukeSato/cdlinear/device"
	"github.com/YuminosukeSato/cdlinear/parity"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/pkg/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "cdparity:", err)
		os.Exit(1)
	}
}

type options struct {
	tiers      []parity.Tier
	families   []parity.Family
	containers []parity.Container
	defaults   bool
	chart      string
	noProgress bool
	cfg        parity.Config
	host       device.HostBackendOptions
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("cdparity", flag.ContinueOnError)
	var (
		tiers      = fs.String("tiers", "unit", "comma-separated tiers: unit, quality, stress")
		families   = fs.String("family", "lasso,elasticnet", "comma-separated estimator families")
		containers = fs.String("container", "array", "comma-separated input containers: array, table")
		defaults   = fs.Bool("defaults", true, "also run the default-configuration scenarios")
		chart      = fs.String("chart", "", "write a PNG bar chart of the scores to this path")
		noProgress = fs.Bool("no-progress", false, "disable the progress bar")
		logLevel   = fs.String("log-level", "warn", "log level: debug, info, warn, error")
		logFormat  = fs.String("log-format", "console", "log format: console or json")
		margin     = fs.Float64("margin", parity.DefaultMargin, "allowed R² shortfall of the device estimator")
		splitSeed  = fs.Uint64("split-seed", 0, "train/test split seed")
		dataSeed   = fs.Uint64("data-seed", 0, "dataset generator seed")
		workers    = fs.Int("workers", 0, "host device goroutines, 0 for GOMAXPROCS")
		memLimit   = fs.Int64("memory-limit", 0, "device memory budget in bytes, 0 for unlimited")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := setupLogging(*logLevel, *logFormat); err != nil {
		return nil, err
	}

	opts := &options{
		defaults:   *defaults,
		chart:      *chart,
		noProgress: *noProgress,
		host:       device.HostBackendOptions{Workers: *workers, MemoryLimit: *memLimit},
	}
	var err error
	if opts.tiers, err = parity.ParseTiers(*tiers); err != nil {
		return nil, err
	}
	for _, f := range strings.Split(*families, ",") {
		family, err := parity.ParseFamily(f)
		if err != nil {
			return nil, err
		}
		opts.families = append(opts.families, family)
	}
	for _, c := range strings.Split(*containers, ",") {
		switch strings.TrimSpace(c) {
		case "array":
			opts.containers = append(opts.containers, parity.Array)
		case "table":
			opts.containers = append(opts.containers, parity.Table)
		default:
			return nil, errors.NewValidationError("container", "must be 'array' or 'table'", c)
		}
	}

	opts.cfg = parity.DefaultConfig()
	opts.cfg.Margin = *margin
	opts.cfg.SplitSeed = *splitSeed
	opts.cfg.DataSeed = *dataSeed
	if err := opts.cfg.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func setupLogging(level, format string) error {
	lvl, ok := log.ParseLevel(level)
	if !ok {
		return errors.NewValidationError("log-level", "unknown level", level)
	}
	switch format {
	case "console":
		log.SetProvider(log.NewZerologProvider(os.Stderr, log.ZerologOptions{Console: true, Level: lvl}))
	case "json":
		log.SetupLoggerTo(os.Stderr, level)
	default:
		return errors.NewValidationError("log-format", "must be 'console' or 'json'", format)
	}
	return nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	device.RegisterHostBackend(opts.host)

	spec := parity.DefaultGridSpec()
	spec.Families = opts.families
	spec.Containers = opts.containers
	scenarios := parity.Select(spec.Scenarios(), opts.tiers...)

	total := len(scenarios)
	if opts.defaults {
		total += 2 * len(opts.families)
	}
	if total == 0 {
		return errors.New("no scenarios selected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("scenarios"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!opts.noProgress),
		progressbar.OptionClearOnFinish(),
	)

	runner := parity.NewRunner(opts.cfg)
	var rows []row
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		bar.Describe(sc.Name())
		res, err := runner.Check(ctx, sc)
		rows = append(rows, newRow(sc.Name(), sc.Tier().String(), res, err))
		_ = bar.Add(1)
	}
	if opts.defaults {
		for _, family := range opts.families {
			for _, dtype := range []datasets.DType{datasets.Float32, datasets.Float64} {
				if ctx.Err() != nil {
					break
				}
				res, err := runner.RunDefault(ctx, family, dtype)
				if err == nil {
					err = res.Compare(opts.cfg.Margin)
				}
				name := fmt.Sprintf("%s/default/%s", family, dtype)
				rows = append(rows, newRow(name, parity.Unit.String(), res, err))
				_ = bar.Add(1)
			}
		}
	}
	_ = bar.Finish()

	failed := writeTable(os.Stdout, rows, opts.cfg.Margin)
	if opts.chart != "" {
		if err := writeChart(opts.chart, rows); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "interrupted after %d of %d scenarios", len(rows), total)
	}
	if failed > 0 {
		return errors.Newf("%d of %d scenarios failed", failed, len(rows))
	}
	return nil
}
