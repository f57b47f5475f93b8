package logparse

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

// Substrings that identify the tgen lines we care about.
const (
	IdentityMarker      = "Initializing traffic generator on host"
	ChecksumMarker      = "_tgentransfer_readChecksum"
	SuccessMarker       = "error=NONE"
	TransferErrorMarker = "transfer-error"
	BulkClientMarker    = "bulkclient"
	WebClientMarker     = "webclient"
)

// Token positions in a whitespace-split tgen line.
const (
	identityToken  = 11
	timestampToken = 2
	statusToken    = 6
	transferToken  = 9

	bytesField = 4
	peerField  = 5
)

var (
	// ErrTooFewTokens is returned when a line has fewer whitespace-separated
	// tokens than the field being read requires.
	ErrTooFewTokens = errors.New("logparse: too few tokens")

	// ErrTooFewFields is returned when the comma-separated transfer token is
	// shorter than expected.
	ErrTooFewFields = errors.New("logparse: too few transfer fields")

	// ErrBadTimestamp is returned for timestamps that are not finite numbers.
	ErrBadTimestamp = errors.New("logparse: bad timestamp")
)

// Outcome is the result reported by a checksum line.
type Outcome int

const (
	// OutcomeOther is a checksum line that is neither a success nor a
	// transfer error. It is counted nowhere.
	OutcomeOther Outcome = iota
	OutcomeSuccess
	OutcomeError
)

// ChecksumEvent is one parsed _tgentransfer_readChecksum line.
type ChecksumEvent struct {
	Timestamp float64
	// Bucket is the series index for Timestamp. It is only meaningful when
	// InRange is true.
	Bucket  int
	InRange bool
	Outcome Outcome
	Class   model.TransferClass

	// Peer and Bytes are set for OutcomeSuccess only.
	Peer  string
	Bytes int64
}

// IsIdentityLine reports whether line announces the host name.
func IsIdentityLine(line string) bool {
	return strings.Contains(line, IdentityMarker)
}

// IsChecksumLine reports whether line is a transfer checksum event.
func IsChecksumLine(line string) bool {
	return strings.Contains(line, ChecksumMarker)
}

// ParseIdentity returns the host name announced by an identity line.
func ParseIdentity(line string) (string, error) {
	tokens := strings.Fields(line)
	if len(tokens) <= identityToken {
		return "", fmt.Errorf("%w: identity needs %d, have %d", ErrTooFewTokens, identityToken+1, len(tokens))
	}
	return tokens[identityToken], nil
}

// ClassifyTransfer tags a line by the kind of client it mentions.
func ClassifyTransfer(line string) model.TransferClass {
	switch {
	case strings.Contains(line, BulkClientMarker):
		return model.ClassBulk
	case strings.Contains(line, WebClientMarker):
		return model.ClassWeb
	default:
		return model.ClassNone
	}
}

// BucketFor maps a simulated unix timestamp to a series index. ok is false
// when the second falls outside the series window.
func BucketFor(timestamp float64) (bucket int, ok bool) {
	offset := math.Floor(timestamp) - model.BucketOrigin
	if offset < 0 || offset >= model.SeriesLength {
		return -1, false
	}
	return int(offset), true
}

// ParseChecksumEvent parses a checksum line. The returned event is only valid
// when err is nil; callers must not apply partial results.
func ParseChecksumEvent(line string) (ChecksumEvent, error) {
	var ev ChecksumEvent
	ev.Class = ClassifyTransfer(line)

	tokens := strings.Fields(line)
	if len(tokens) <= timestampToken {
		return ev, fmt.Errorf("%w: timestamp needs %d, have %d", ErrTooFewTokens, timestampToken+1, len(tokens))
	}
	ts, err := strconv.ParseFloat(tokens[timestampToken], 64)
	if err != nil {
		return ev, fmt.Errorf("logparse: parse timestamp: %w", err)
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return ev, fmt.Errorf("%w: %q", ErrBadTimestamp, tokens[timestampToken])
	}
	ev.Timestamp = ts
	ev.Bucket, ev.InRange = BucketFor(ts)

	if strings.Contains(line, SuccessMarker) {
		peer, bytes, err := parseTransfer(tokens)
		if err != nil {
			return ev, err
		}
		ev.Outcome = OutcomeSuccess
		ev.Peer = peer
		ev.Bytes = bytes
		return ev, nil
	}

	if len(tokens) <= statusToken {
		return ev, fmt.Errorf("%w: status needs %d, have %d", ErrTooFewTokens, statusToken+1, len(tokens))
	}
	if strings.Contains(tokens[statusToken], TransferErrorMarker) {
		ev.Outcome = OutcomeError
	}
	return ev, nil
}

// parseTransfer reads the sending peer and payload size from the
// comma-separated transfer token.
func parseTransfer(tokens []string) (string, int64, error) {
	if len(tokens) <= transferToken {
		return "", 0, fmt.Errorf("%w: transfer needs %d, have %d", ErrTooFewTokens, transferToken+1, len(tokens))
	}
	fields := strings.Split(tokens[transferToken], ",")
	if len(fields) <= peerField {
		return "", 0, fmt.Errorf("%w: have %d", ErrTooFewFields, len(fields))
	}
	bytes, err := strconv.ParseInt(fields[bytesField], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("logparse: parse bytes: %w", err)
	}
	return fields[peerField], bytes, nil
}
