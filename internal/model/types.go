package model

// Series holds cumulative bytes received from one peer, one bucket per
// simulated second starting at BucketOrigin.
type Series [SeriesLength]int64

// PeerSeries maps a peer identity to its series.
type PeerSeries map[string]*Series

// TransferClass is an informational tag for the kind of client seen in a file.
type TransferClass int

const (
	ClassNone TransferClass = iota
	ClassWeb
	ClassBulk
)

func (c TransferClass) String() string {
	switch c {
	case ClassWeb:
		return "web"
	case ClassBulk:
		return "bulk"
	default:
		return "none"
	}
}

// LogFileResult is the outcome of extracting one tgen log file.
// It is owned by a single worker until returned to the coordinator.
type LogFileResult struct {
	Path string
	// Name is the host identity announced in the file; empty when never seen.
	Name   string
	Series PeerSeries
	Class  TransferClass

	SuccessCount int64
	ErrorCount   int64

	Lines      int64
	Malformed  int64
	OutOfRange int64
}

// NewLogFileResult returns an empty result for path.
func NewLogFileResult(path string) *LogFileResult {
	return &LogFileResult{
		Path:   path,
		Series: make(PeerSeries),
	}
}

// HasName reports whether an identity announcement was seen.
func (r *LogFileResult) HasName() bool {
	return r.Name != ""
}

// Add accumulates bytes from peer into bucket. It creates the peer's series
// on first sighting and reports false, without touching any bucket, when
// bucket is outside the window.
func (r *LogFileResult) Add(peer string, bucket int, bytes int64) bool {
	s, ok := r.Series[peer]
	if !ok {
		s = new(Series)
		r.Series[peer] = s
	}
	if bucket < 0 || bucket >= SeriesLength {
		return false
	}
	s[bucket] += bytes
	return true
}

// Totals are run-wide counters reported to the operator. They are never
// written to the result document.
type Totals struct {
	Files        int
	NamedFiles   int
	UnnamedFiles int
	FailedFiles  int

	Successes  int64
	Errors     int64
	Malformed  int64
	OutOfRange int64
	Lines      int64
}

// AggregateResult is the merged output of one run.
type AggregateResult struct {
	Nodes  map[string]PeerSeries `json:"nodes"`
	Totals Totals                `json:"-"`
}

// NewAggregateResult returns an aggregate with no nodes.
func NewAggregateResult() *AggregateResult {
	return &AggregateResult{Nodes: make(map[string]PeerSeries)}
}
