// Package config loads, normalizes, and validates fusiondex configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MAX_FUSION_WORKERS,
// WEB_DEPLOYMENT, and FUSIONDEX_OFFLINE environment overrides. Relative file
// entries under [paths] resolve against paths.data_dir so a single directory
// holds the cache, sprites, entity metadata, and fetch ledger.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
