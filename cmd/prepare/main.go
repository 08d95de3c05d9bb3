// Command prepare combines the raw UCI red and white wine files into the
// prepared CSV used for training.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/iitrpratibha/ml-wine-quality-classification/config"
	"github.com/iitrpratibha/ml-wine-quality-classification/dataset"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.GetLoggerWithName("prepare").Error("Preparation failed", log.ErrorKey, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("prepare", flag.ContinueOnError)
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
	logger := log.GetLoggerWithName("prepare")

	red, err := dataset.ReadRawCSV(cfg.Paths.Red())
	if err != nil {
		return err
	}
	white, err := dataset.ReadRawCSV(cfg.Paths.White())
	if err != nil {
		return err
	}
	prepared, err := dataset.Prepare(red, white)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(cfg.Paths.Prepared(), prepared.Table); err != nil {
		return err
	}

	s := prepared.Summary()
	logger.Info("Prepared dataset written",
		log.PathKey, cfg.Paths.Prepared(),
		log.OperationKey, log.OperationPrepare,
		log.SamplesKey, s.Total,
		log.FeaturesKey, s.Features,
		log.PositivesKey, s.Good,
	)
	printSummary(out, s, cfg.Paths.Prepared())
	return nil
}

func printSummary(w io.Writer, s dataset.Summary, path string) {
	fmt.Fprintf(w, "Red wine samples:   %d\n", s.Red)
	fmt.Fprintf(w, "White wine samples: %d\n", s.White)
	fmt.Fprintf(w, "Combined samples:   %d\n", s.Total)
	fmt.Fprintf(w, "Features:           %d\n\n", s.Features)

	fmt.Fprintln(w, "Original quality distribution:")
	for _, q := range s.QualityScores() {
		fmt.Fprintf(w, "  %2d: %d\n", q, s.RawQuality[q])
	}
	fmt.Fprintf(w, "\nBinary target (quality >= %d is Good):\n", dataset.GoodQualityThreshold)
	fmt.Fprintf(w, "  Not Good (0): %d (%.2f%%)\n", s.NotGood, 100*(1-s.GoodRatio()))
	fmt.Fprintf(w, "  Good (1):     %d (%.2f%%)\n", s.Good, 100*s.GoodRatio())
	fmt.Fprintf(w, "\nSaved %s\n", path)
}
