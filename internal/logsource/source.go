package logsource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

const (
	// DefaultBuffer is the default channel buffer size for lines.
	DefaultBuffer = 4096

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single
	// line. Longer lines are dropped and counted, not returned.
	DefaultMaxLineSize = 1024 * 1024 // 1MB

	// XZBinary is the decompressor spawned for .xz inputs.
	XZBinary = "xz"
)

// Config holds tunable parameters for a source.
type Config struct {
	BufferSize  int
	MaxLineSize int
	// Stdin replaces os.Stdin for the "-" path.
	Stdin io.Reader
}

// Source reads lines from one input in a background goroutine.
type Source struct {
	name   string
	lines  chan string
	cancel context.CancelFunc
	done   chan struct{}

	// closer is the file or pipe read end, nil for stdin.
	closer io.Closer
	// decoder is closed after closer for in-process decompression.
	decoder func()
	cmd     *exec.Cmd
	stderr  *bytes.Buffer

	parent     context.Context
	err        error
	reachedEOF bool
	overlong   int64

	closeOnce sync.Once
	closeErr  error
}

// Open prepares a line source for path. The path "-" reads standard input,
// a ".xz" suffix spawns an xz subprocess, ".gz" and ".zst" are decoded in
// process, anything else is opened as a plain file. The subprocess is bound
// to ctx so cancelling ctx kills it. Close must be called on every path
// returned without error.
func Open(ctx context.Context, path string, conf ...Config) (*Source, error) {
	bufferSize := DefaultBuffer
	maxLineSize := DefaultMaxLineSize
	var stdin io.Reader = os.Stdin
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
		if conf[0].Stdin != nil {
			stdin = conf[0].Stdin
		}
	}

	s := &Source{
		lines:  make(chan string, bufferSize),
		done:   make(chan struct{}),
		parent: ctx,
	}

	var r io.Reader
	switch {
	case path == model.StdinPath:
		s.name = "stdin"
		r = stdin
	case strings.HasSuffix(path, ".xz"):
		s.name = "xz"
		cmd := exec.CommandContext(ctx, XZBinary, "--decompress", "--stdout", path)
		s.stderr = &bytes.Buffer{}
		cmd.Stderr = &limitedWriter{buf: s.stderr, max: 4096}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("logsource: xz pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("logsource: start xz: %w", err)
		}
		s.cmd = cmd
		s.closer = stdout
		r = stdout
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("logsource: open: %w", err)
		}
		s.closer = f
		r = f
		switch {
		case strings.HasSuffix(path, ".gz"):
			s.name = "gzip"
			zr, err := gzip.NewReader(f)
			if err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("logsource: gzip header: %w", err)
			}
			s.decoder = func() { _ = zr.Close() }
			r = zr
		case strings.HasSuffix(path, ".zst"):
			s.name = "zstd"
			zr, err := zstd.NewReader(f)
			if err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("logsource: zstd reader: %w", err)
			}
			s.decoder = zr.Close
			r = zr
		default:
			s.name = "file"
		}
	}

	readCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.read(readCtx, r, maxLineSize)
	return s, nil
}

func (s *Source) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.done)
	defer close(s.lines)

	br := bufio.NewReaderSize(r, 64*1024)
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			} else {
				s.reachedEOF = true
			}
			return
		}
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if isPrefix {
			continue
		}
		if tooLong {
			s.overlong++
			tooLong = false
			continue
		}
		if len(line) == 0 {
			continue
		}
		text := string(line)
		line = line[:0]
		select {
		case s.lines <- text:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Source) Lines() <-chan string { return s.lines }
func (s *Source) Name() string         { return s.name }

// Err returns the read error that ended the source early, if any. It
// blocks until the reader has stopped, so call it after Lines is drained or
// after Close.
func (s *Source) Err() error {
	<-s.done
	return s.err
}

// Overlong returns how many lines were dropped for exceeding the maximum
// line size. Like Err it waits for the reader to stop.
func (s *Source) Overlong() int64 {
	<-s.done
	return s.overlong
}

// Close stops reading and releases the source: a subprocess has its pipe
// closed and is waited on, a file is closed, standard input is left open.
// It is safe to call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.closer != nil {
			// Closing the read end unblocks the reader and makes a
			// still-running decompressor exit on a broken pipe.
			_ = s.closer.Close()
			<-s.done
		}
		if s.decoder != nil {
			s.decoder()
		}
		if s.cmd != nil {
			s.closeErr = s.wait()
		}
	})
	return s.closeErr
}

func (s *Source) wait() error {
	err := s.cmd.Wait()
	if err == nil {
		return nil
	}
	// The process was killed by cancellation or lost its reader early:
	// not a decode error.
	if s.parent.Err() != nil || !s.reachedEOF {
		return nil
	}
	msg := strings.TrimSpace(s.stderr.String())
	if msg != "" {
		log.Printf("logsource: xz: %s", msg)
	}
	return fmt.Errorf("logsource: xz exited: %w", err)
}

// limitedWriter keeps at most max bytes and discards the rest.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
