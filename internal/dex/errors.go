package dex

import (
	"errors"
	"fmt"

	"fusiondex/internal/fusion"
)

// Reason classifies a fetch failure.
type Reason string

const (
	ReasonNetwork   Reason = "network"
	ReasonStatus    Reason = "status"
	ReasonStructure Reason = "structure"
	ReasonStats     Reason = "stats"
)

var (
	// ErrStructure reports a page missing the expected fusion panels or stats section.
	ErrStructure = errors.New("unexpected page structure")
	// ErrIncompleteStats reports a stats grid lacking one of the seven stats.
	ErrIncompleteStats = errors.New("incomplete stats")
)

// FetchError is returned by Client.Fetch for every failed pair.
type FetchError struct {
	Pair       fusion.Pair
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d): %v", e.Pair, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Pair, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from err, defaulting to network.
func ReasonOf(err error) Reason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonNetwork
}

func parseReason(err error) Reason {
	if errors.Is(err, ErrIncompleteStats) {
		return ReasonStats
	}
	return ReasonStructure
}
