package main

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

// progress counts finished files on stderr. The zero value is a no-op.
type progress struct {
	bar *progressbar.ProgressBar
}

// newProgress returns a bar for total files when enabled and stderr is a
// terminal.
func newProgress(enabled bool, total int) *progress {
	if !enabled || total == 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return &progress{}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("tgen logs"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return &progress{bar: bar}
}

// onResult is safe for concurrent use; the bar serializes Add.
func (p *progress) onResult(string, *model.LogFileResult, error) {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *progress) abort() {
	if p.bar != nil {
		_ = p.bar.Exit()
	}
}
