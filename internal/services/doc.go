// Package services defines shared utilities consumed by the fusion resolver,
// the JSON API, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, stages, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent HTTP statuses and CLI exit codes.
//
// Use these helpers when wiring new entry points so error handling and
// observability stay uniform across the command line and the server.
package services
