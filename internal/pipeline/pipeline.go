// Package pipeline runs log extraction over many files with bounded
// parallelism.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/tgenstats/internal/ingest"
	"github.com/tinytelemetry/tgenstats/internal/logsource"
	"github.com/tinytelemetry/tgenstats/internal/model"
)

// ErrInterrupted is returned when the run context is cancelled before every
// file was processed.
var ErrInterrupted = errors.New("pipeline: interrupted")

// OpenFunc opens the line source for one candidate path.
type OpenFunc func(ctx context.Context, path string) (logsource.LogSource, error)

// Config controls a Run.
type Config struct {
	// Workers bounds the number of files processed at once. Zero means one
	// per CPU.
	Workers int
	Verbose bool

	// Open defaults to logsource.Open.
	Open OpenFunc

	// OnResult is called once per file as soon as it finishes. res is nil
	// when the file could not be opened. It is called from worker goroutines
	// and must be safe for concurrent use.
	OnResult func(path string, res *model.LogFileResult, err error)
}

// DefaultOpen opens path with the default source configuration.
func DefaultOpen(ctx context.Context, path string) (logsource.LogSource, error) {
	src, err := logsource.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Run extracts every path and returns one slot per path in input order. A
// slot is nil when its file could not be opened. When ctx is cancelled Run
// waits for in-flight workers and returns ErrInterrupted with no results.
func Run(ctx context.Context, paths []string, cfg Config) ([]*model.LogFileResult, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	open := cfg.Open
	if open == nil {
		open = DefaultOpen
	}

	results := make([]*model.LogFileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := extractFile(gctx, open, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("pipeline: skipping %s: %v", path, err)
			} else {
				cfg.logf("pipeline: %s: name=%q class=%s successes=%d errors=%d malformed=%d",
					path, res.Name, res.Class, res.SuccessCount, res.ErrorCount, res.Malformed)
			}
			results[i] = res
			if cfg.OnResult != nil {
				cfg.OnResult(path, res, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil || ctx.Err() != nil {
		cause := ctx.Err()
		if cause == nil {
			cause = err
		}
		return nil, fmt.Errorf("%w: %v", ErrInterrupted, cause)
	}
	return results, nil
}

// extractFile opens one source and runs it through the extractor. The
// source is always closed, which reaps any decompressor it spawned.
func extractFile(ctx context.Context, open OpenFunc, path string) (*model.LogFileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("pipeline: close %s: %v", path, err)
		}
	}()

	res, err := ingest.Extract(ctx, src, path)
	if err != nil {
		return nil, err
	}
	if err := src.Err(); err != nil {
		log.Printf("pipeline: read %s: %v (keeping %d lines)", path, err, res.Lines)
	}
	return res, nil
}

func (c Config) logf(format string, args ...any) {
	if c.Verbose {
		log.Printf(format, args...)
	}
}
