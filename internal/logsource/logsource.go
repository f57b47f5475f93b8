package logsource

// LogSource is a unified interface for all log inputs (file, stdin,
// decompression pipe). Lines is closed at end of input or once the source
// is stopped; Err reports why reading ended early and is only valid after
// Lines has been drained.
type LogSource interface {
	Lines() <-chan string // read-only channel of log lines
	Err() error           // read error, nil at clean end of input
	Close() error         // releases files and reaps subprocesses
	Name() string         // "file", "stdin", "xz", "gzip", "zstd"
}
