// Package export renders the aggregate result document and writes it to
// disk.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

type document struct {
	Nodes map[string]model.PeerSeries `json:"nodes"`
}

// EncodeDocument renders agg as {"nodes": ...} with sorted keys, two-space
// indentation and no trailing newline. Equal aggregates always encode to
// identical bytes.
func EncodeDocument(agg *model.AggregateResult) ([]byte, error) {
	nodes := agg.Nodes
	if nodes == nil {
		nodes = map[string]model.PeerSeries{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Nodes: nodes}); err != nil {
		return nil, fmt.Errorf("export: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// OutputPath is where WriteDocument puts the document for dir and c.
func OutputPath(dir string, c Compression) string {
	return filepath.Join(dir, model.ResultFileName+c.Suffix())
}

// WriteDocument encodes agg, compresses it with c into a temporary file in
// dir and renames it to OutputPath. dir is created if missing. On any
// error, including cancellation of ctx, the destination is left untouched
// and the temporary file is removed.
func WriteDocument(ctx context.Context, agg *model.AggregateResult, dir string, c Compression) (string, error) {
	doc, err := EncodeDocument(agg)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("export: create prefix: %w", err)
	}

	dest := OutputPath(dir, c)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("export: create tmp: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := compress(ctx, tmp, doc, c); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return "", fmt.Errorf("export: chmod tmp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("export: sync tmp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("export: close tmp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("export: rename: %w", err)
	}
	committed = true
	return dest, nil
}
