// Command train fits the six classifiers on the prepared dataset, prints
// the comparison table and writes the artifacts the dashboard serves.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/iitrpratibha/ml-wine-quality-classification/config"
	"github.com/iitrpratibha/ml-wine-quality-classification/dataset"
	"github.com/iitrpratibha/ml-wine-quality-classification/pipeline"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.GetLoggerWithName("train").Error("Training failed", log.ErrorKey, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	table, err := dataset.ReadPreparedCSV(cfg.Paths.Prepared())
	if err != nil {
		return err
	}
	notGood, good, err := table.ClassCounts()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d samples (%d Not Good, %d Good) from %s\n\n",
		table.NRows(), notGood, good, cfg.Paths.Prepared())

	rc := pipeline.DefaultRunConfig()
	rc.Seed = cfg.Training.Seed
	rc.TestSize = cfg.Training.TestSize
	rc.Store = pipeline.NewStore(cfg.Paths.ModelDir)

	report, err := pipeline.Run(ctx, rc, table)
	if err != nil {
		return err
	}
	printReport(out, report, rc.Store.Dir())
	return nil
}

func printReport(w io.Writer, r *pipeline.Report, dir string) {
	m := r.Manifest
	fmt.Fprintf(w, "Run %s: %d training and %d test samples (seed %d)\n\n",
		r.RunID, m.TrainSamples, m.TestSamples, m.Seed)

	fmt.Fprintf(w, "%-22s", "Model")
	for _, metric := range pipeline.Metrics {
		fmt.Fprintf(w, "%10s", metric)
	}
	fmt.Fprintln(w)
	for _, row := range r.Summary.Table() {
		fmt.Fprintf(w, "%-22s", row.Name)
		for _, v := range row.Values {
			fmt.Fprintf(w, "%10.4f", v)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "\nBest model per metric:")
	for _, metric := range pipeline.Metrics {
		best := m.Best[metric]
		fmt.Fprintf(w, "  %-10s %-22s %.4f\n", metric, best.Model, best.Score)
	}
	for _, mm := range m.Models {
		if mm.ProbabilityFallback {
			fmt.Fprintf(w, "\nNote: %s has no probability estimates; its AUC is computed from labels.\n", mm.Name)
		}
	}
	fmt.Fprintf(w, "\nArtifacts saved to %s\n", dir)
}
