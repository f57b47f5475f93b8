// Package backup archives and uploads finished result documents.
package backup

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const defaultKeepLast = 24

// archiveTimeFormat sorts lexically in chronological order.
const archiveTimeFormat = "20060102-150405.000"

// Publisher keeps local archive copies of result documents and uploads
// them when a bucket is configured.
type Publisher struct {
	cfg      Config
	uploader Uploader
	now      func() time.Time
}

// NewPublisher validates cfg. It returns nil when publishing is disabled.
func NewPublisher(cfg Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if cfg.ArchiveDir != "" {
		if err := os.MkdirAll(cfg.ArchiveDir, 0755); err != nil {
			return nil, fmt.Errorf("backup: create archive dir: %w", err)
		}
	}

	var uploader Uploader
	if strings.TrimSpace(cfg.BucketURL) != "" {
		s3u, err := NewS3Uploader(S3Config{
			BucketURL:    cfg.BucketURL,
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			SessionToken: cfg.S3SessionToken,
			UseSSL:       cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("backup: init s3 uploader: %w", err)
		}
		uploader = s3u
	}

	return &Publisher{cfg: cfg, uploader: uploader, now: time.Now}, nil
}

// Publish archives docPath when an archive dir is configured, uploads the
// archived copy (or docPath itself without an archive) and prunes old
// archive copies. It returns the path that was uploaded or archived last.
func (p *Publisher) Publish(ctx context.Context, docPath string) (string, error) {
	published := docPath

	if p.cfg.ArchiveDir != "" {
		dst := filepath.Join(p.cfg.ArchiveDir, archiveName(filepath.Base(docPath), p.now()))
		if err := copyFile(docPath, dst); err != nil {
			return "", fmt.Errorf("backup: archive: %w", err)
		}
		log.Printf("backup: archived %s", dst)
		published = dst
	}

	if p.uploader != nil {
		if err := p.uploader.UploadFile(ctx, published); err != nil {
			return "", fmt.Errorf("backup: upload: %w", err)
		}
		log.Printf("backup: uploaded %s", filepath.Base(published))
	}

	if p.cfg.ArchiveDir != "" {
		if err := pruneArchive(p.cfg.ArchiveDir, filepath.Base(docPath), p.cfg.KeepLast); err != nil {
			return "", fmt.Errorf("backup: prune archive: %w", err)
		}
	}
	return published, nil
}

// archiveName inserts a timestamp before the first dot of base, so
// "server.stats.tgen.json.xz" becomes "server-<ts>.stats.tgen.json.xz".
func archiveName(base string, t time.Time) string {
	stem, rest, _ := strings.Cut(base, ".")
	if rest != "" {
		rest = "." + rest
	}
	return stem + "-" + t.UTC().Format(archiveTimeFormat) + rest
}

// archiveGlob matches every archive copy of base.
func archiveGlob(base string) string {
	stem, rest, _ := strings.Cut(base, ".")
	if rest != "" {
		rest = "." + rest
	}
	return stem + "-*" + rest
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func pruneArchive(dir, base string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, archiveGlob(base)))
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	// newest first
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, old := range matches[keepLast:] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
