package ingest

import (
	"context"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

// LineSource is the read side of a log source that Extract consumes.
type LineSource interface {
	Lines() <-chan string
}

// Extract feeds every line of src through a fresh Processor and returns the
// file's result. It stops early with ctx's error when ctx is cancelled; the
// caller still owns src and must close it.
func Extract(ctx context.Context, src LineSource, path string) (*model.LogFileResult, error) {
	p := NewProcessor(path)
	lines := src.Lines()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return p.Result(), nil
			}
			p.ProcessLine(line)
		}
	}
}
