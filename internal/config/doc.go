// Package config loads, normalizes, and validates slidecast configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies SLIDECAST_* environment overrides
// on top of file values. The Config type centralizes every knob the daemon and
// CLI need: session pool sizing, viewport dimensions, media provenance policy,
// encoder invocation, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical formats, and clear validation errors.
package config
