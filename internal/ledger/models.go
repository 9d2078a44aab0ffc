package ledger

import (
	"time"

	"fusiondex/internal/fusion"
)

// Status is the result of resolving one pair.
type Status string

const (
	StatusFetched Status = "fetched"
	StatusCached  Status = "cached"
	StatusFailed  Status = "failed"
	// StatusSkipped marks a pair left unresolved because network access was disabled.
	StatusSkipped Status = "skipped"
)

// Batch summarizes one resolve run.
type Batch struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Requested  int
	Fetched    int
	Cached     int
	Failed     int
	Offline    bool
}

// Duration returns how long the batch ran.
func (b Batch) Duration() time.Duration {
	if b.FinishedAt.Before(b.StartedAt) {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Outcome is the recorded result of one pair within a batch.
type Outcome struct {
	BatchID    string
	Pair       fusion.Pair
	Status     Status
	Reason     string
	Error      string
	Duration   time.Duration
	RecordedAt time.Time
}

// Summary aggregates every batch in the ledger.
type Summary struct {
	Batches   int
	Fetched   int
	Cached    int
	Failed    int
	ByReason  map[string]int
	LastBatch *Batch
}
