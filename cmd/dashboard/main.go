// Command dashboard serves the model comparison and prediction web UI from
// the artifacts written by train.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/iitrpratibha/ml-wine-quality-classification/config"
	"github.com/iitrpratibha/ml-wine-quality-classification/pipeline"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
	"github.com/iitrpratibha/ml-wine-quality-classification/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		log.GetLoggerWithName("dashboard").Error("Dashboard failed", log.ErrorKey, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
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

	registry := pipeline.NewRegistry(pipeline.NewStore(cfg.Paths.ModelDir))
	if _, err := registry.Summary(); err != nil {
		// The dashboard still starts; pages report the missing artifacts.
		log.GetLoggerWithName("dashboard").Warn("Model results not found. Please train models first.",
			log.PathKey, cfg.Paths.ModelDir, log.ErrorKey, err)
	}

	srv, err := web.New(web.Options{
		Registry:       registry,
		PreparedCSV:    cfg.Paths.Prepared(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
