// Package analyzer resolves a set of entity IDs into scored fusions.
//
// The Coordinator enumerates every unordered pair of the requested IDs, serves
// what it can from the fusion cache, fetches the rest through a bounded worker
// pool, persists newly fetched records, and scores the combined set. Fetch
// failures never escape Resolve; they are logged, counted, and written to the
// fetch ledger.
package analyzer
