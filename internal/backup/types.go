package backup

import "github.com/tinytelemetry/tgenstats/internal/model"

// Config controls what happens to a result document after it is written.
// Both parts are optional.
type Config struct {
	// ArchiveDir receives a timestamped copy of every document. KeepLast
	// bounds how many copies are kept there.
	ArchiveDir string
	KeepLast   int

	BucketURL string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3SessionToken string
	S3UseSSL       bool
}

// Enabled reports whether cfg asks for any publishing at all.
func (c Config) Enabled() bool {
	return c.ArchiveDir != "" || c.BucketURL != ""
}

// Uploader copies one file to remote storage.
type Uploader = model.Uploader
