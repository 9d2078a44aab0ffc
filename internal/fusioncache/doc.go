// Package fusioncache persists fetched fusion records keyed by "#{a}.{b}".
//
// The store loads once from the primary cache file (falling back to a
// secondary full-run file) and serves concurrent reads from memory. Writes go
// through MergeAndPersist, which takes a file lock beside the primary path,
// re-reads whatever is on disk, overlays only the new entries, and replaces
// the file atomically. Existing keys are never deleted, and entries written by
// other processes survive because the on-disk JSON is merged as raw values.
//
// A read-only store (web deployments) updates memory only.
package fusioncache
