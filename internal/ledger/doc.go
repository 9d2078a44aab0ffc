// Package ledger records fetch batches and their per-pair outcomes in SQLite.
//
// The ledger is an audit trail only; the fusion cache file remains the source
// of truth for records. Each analyze run writes one batch row keyed by its
// batch ID plus one outcome row per pair it resolved.
package ledger
