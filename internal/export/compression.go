package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how the result document is written to disk.
type Compression string

const (
	CompressionXZ   Compression = "xz"
	CompressionZstd Compression = "zstd"
	CompressionGzip Compression = "gzip"
	CompressionNone Compression = "none"
)

// XZBinary and XZArgs spawn the external xz compressor reading stdin.
var (
	XZBinary = "xz"
	XZArgs   = []string{"--threads=3", "-"}
)

// ErrUnknownCompression is returned for compression names ParseCompression
// does not know.
var ErrUnknownCompression = errors.New("export: unknown compression")

// ParseCompression maps a configuration value to a Compression. Matching is
// case-insensitive and the empty string means xz.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressionXZ, nil
	case CompressionXZ, CompressionZstd, CompressionGzip, CompressionNone:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// Suffix is the file name extension added for c.
func (c Compression) Suffix() string {
	switch c {
	case CompressionXZ:
		return ".xz"
	case CompressionZstd:
		return ".zst"
	case CompressionGzip:
		return ".gz"
	default:
		return ""
	}
}

// compress writes doc to dst through c.
func compress(ctx context.Context, dst *os.File, doc []byte, c Compression) error {
	switch c {
	case CompressionXZ:
		return compressXZ(ctx, dst, doc)
	case CompressionZstd:
		zw, err := zstd.NewWriter(dst)
		if err != nil {
			return fmt.Errorf("export: zstd writer: %w", err)
		}
		return writeAndClose(zw, doc, "zstd")
	case CompressionGzip:
		return writeAndClose(gzip.NewWriter(dst), doc, "gzip")
	case CompressionNone:
		if _, err := dst.Write(doc); err != nil {
			return fmt.Errorf("export: write: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCompression, string(c))
	}
}

func writeAndClose(w io.WriteCloser, doc []byte, name string) error {
	if _, err := w.Write(doc); err != nil {
		_ = w.Close()
		return fmt.Errorf("export: %s write: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("export: %s close: %w", name, err)
	}
	return nil
}

// compressXZ pipes doc through an xz process whose stdout is dst. The
// process is killed if ctx is cancelled.
func compressXZ(ctx context.Context, dst *os.File, doc []byte) error {
	cmd := exec.CommandContext(ctx, XZBinary, XZArgs...)
	cmd.Stdout = dst
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("export: xz pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("export: start xz: %w", err)
	}

	_, werr := stdin.Write(doc)
	cerr := stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("export: xz exited: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if werr != nil {
		return fmt.Errorf("export: xz write: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("export: xz close stdin: %w", cerr)
	}
	return nil
}
