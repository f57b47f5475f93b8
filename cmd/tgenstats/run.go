package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/tinytelemetry/tgenstats/internal/aggregate"
	"github.com/tinytelemetry/tgenstats/internal/backup"
	"github.com/tinytelemetry/tgenstats/internal/discover"
	"github.com/tinytelemetry/tgenstats/internal/duckdb"
	"github.com/tinytelemetry/tgenstats/internal/export"
	"github.com/tinytelemetry/tgenstats/internal/logsource"
	"github.com/tinytelemetry/tgenstats/internal/model"
	"github.com/tinytelemetry/tgenstats/internal/pipeline"
)

// runReport collects what a run produced for the summary.
type runReport struct {
	Totals    model.Totals
	Nodes     int
	Peers     int
	Bytes     int64
	Output    string
	DBPath    string
	DBRows    int64
	Published string
}

// run executes one extraction: discover, extract in parallel, merge, write
// the document, then the optional DuckDB export and publishing. Nothing is
// written when ctx is cancelled before extraction completes.
func run(ctx context.Context, cfg appConfig, stdout io.Writer) error {
	compression, err := export.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}
	patterns, err := discover.CompilePatterns(cfg.patterns())
	if err != nil {
		return err
	}
	publisher, err := backup.NewPublisher(backup.Config{
		ArchiveDir:     cfg.ArchiveDir,
		KeepLast:       cfg.ArchiveKeep,
		BucketURL:      cfg.UploadURL,
		S3Endpoint:     cfg.S3Endpoint,
		S3Region:       cfg.S3Region,
		S3AccessKey:    cfg.S3AccessKey,
		S3SecretKey:    cfg.S3SecretKey,
		S3SessionToken: cfg.S3SessionToken,
		S3UseSSL:       cfg.S3UseSSL,
	})
	if err != nil {
		return err
	}

	paths, err := discover.Find(cfg.SearchPath, patterns)
	if err != nil {
		return err
	}
	log.Printf("tgenstats: processing input from %d files...", len(paths))

	bar := newProgress(cfg.Progress, len(paths))
	results, err := pipeline.Run(ctx, paths, pipeline.Config{
		Workers:  cfg.workers(),
		Verbose:  cfg.Verbose,
		Open:     sourceOpener(cfg),
		OnResult: bar.onResult,
	})
	if err != nil {
		bar.abort()
		return err
	}
	bar.finish()

	agg := aggregate.Merge(results)
	t := agg.Totals
	log.Printf("tgenstats: done processing input: %d total successes, %d total errors, %d files with names, %d files without names, %d files failed",
		t.Successes, t.Errors, t.NamedFiles, t.UnnamedFiles, t.FailedFiles)
	if t.Malformed > 0 || t.OutOfRange > 0 {
		log.Printf("tgenstats: skipped %d malformed lines and %d transfers outside the series window", t.Malformed, t.OutOfRange)
	}

	log.Printf("tgenstats: dumping stats in %s", cfg.Prefix)
	out, err := export.WriteDocument(ctx, agg, cfg.Prefix, compression)
	if err != nil {
		return err
	}

	report := newRunReport(agg)
	report.Output = out

	if cfg.DBPath != "" {
		rows, err := exportSeries(ctx, cfg.DBPath, agg)
		if err != nil {
			return err
		}
		report.DBPath, report.DBRows = cfg.DBPath, rows
	}

	if publisher != nil {
		if report.Published, err = publisher.Publish(ctx, out); err != nil {
			return err
		}
	}

	log.Printf("tgenstats: all done!")
	printSummary(stdout, report)
	return nil
}

func sourceOpener(cfg appConfig) pipeline.OpenFunc {
	conf := logsource.Config{MaxLineSize: cfg.MaxLineSize}
	return func(ctx context.Context, path string) (logsource.LogSource, error) {
		src, err := logsource.Open(ctx, path, conf)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

func exportSeries(ctx context.Context, dbPath string, agg *model.AggregateResult) (int64, error) {
	store, err := duckdb.NewStore(ctx, dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	var exporter model.SeriesExporter = store
	rows, err := exporter.ExportAggregate(ctx, agg)
	if err != nil {
		return 0, fmt.Errorf("exporting series: %w", err)
	}
	return rows, nil
}

func newRunReport(agg *model.AggregateResult) runReport {
	r := runReport{Totals: agg.Totals, Nodes: len(agg.Nodes)}
	for _, peers := range agg.Nodes {
		r.Peers += len(peers)
		for _, s := range peers {
			for _, b := range s {
				r.Bytes += b
			}
		}
	}
	return r
}
