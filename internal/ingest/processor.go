package ingest

import (
	"github.com/tinytelemetry/tgenstats/internal/logparse"
	"github.com/tinytelemetry/tgenstats/internal/model"
)

// Processor extracts transfer events from the lines of one tgen log file.
// It is not safe for concurrent use; each file gets its own Processor.
type Processor struct {
	result *model.LogFileResult
}

// NewProcessor creates a processor with an empty result for path.
func NewProcessor(path string) *Processor {
	return &Processor{result: model.NewLogFileResult(path)}
}

// NameKnown reports whether the host identity has been seen yet.
func (p *Processor) NameKnown() bool {
	return p.result.HasName()
}

// ProcessLine applies one line to the file result. Lines that fail to parse
// are counted as malformed and otherwise leave the result untouched.
func (p *Processor) ProcessLine(line string) {
	p.result.Lines++

	if !p.NameKnown() && logparse.IsIdentityLine(line) {
		name, err := logparse.ParseIdentity(line)
		if err != nil {
			p.result.Malformed++
			return
		}
		p.result.Name = name
		return
	}

	if !logparse.IsChecksumLine(line) {
		return
	}
	ev, err := logparse.ParseChecksumEvent(line)
	if err != nil {
		p.result.Malformed++
		return
	}
	p.applyChecksum(ev)
}

func (p *Processor) applyChecksum(ev logparse.ChecksumEvent) {
	switch ev.Class {
	case model.ClassBulk:
		p.result.Class = model.ClassBulk
	case model.ClassWeb:
		if p.result.Class == model.ClassNone {
			p.result.Class = model.ClassWeb
		}
	}

	switch ev.Outcome {
	case logparse.OutcomeSuccess:
		p.result.SuccessCount++
		if !p.result.Add(ev.Peer, ev.Bucket, ev.Bytes) {
			p.result.OutOfRange++
		}
	case logparse.OutcomeError:
		p.result.ErrorCount++
	}
}

// Result returns the accumulated file result. The processor must not be
// used afterwards.
func (p *Processor) Result() *model.LogFileResult {
	return p.result
}
