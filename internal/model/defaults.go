package model

// Shared constants for the tgen log format and the result document.
const (
	// SeriesLength is the number of one-second buckets kept per peer.
	SeriesLength = 240

	// BucketOrigin is the simulated second that maps to bucket 0.
	BucketOrigin = 1001

	// ServerMarker selects which host identities are kept in the result document.
	ServerMarker = "server"

	// DefaultPattern matches the log file names written by tgen under shadow.
	DefaultPattern = `tgen.*\.log`

	// ResultFileName is the base name of the result document before any
	// compression suffix is appended.
	ResultFileName = "server.stats.tgen.json"

	// StdinPath is the search path (and candidate path) meaning standard input.
	StdinPath = "-"
)
