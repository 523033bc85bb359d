// Package preflight gates what a render job may touch before any browser
// navigation happens.
//
// Policy is the input-provenance check: every media reference in a job is
// validated against the configured scheme and directory rules, and rejections
// carry identifiable reasons (external URL blocked, traversal outside an
// allowed base, raw file:// reference). The Run* checks cover daemon
// readiness: encoder binary on PATH, writable output directories.
//
// Policy values are immutable; validation failures never touch the session
// pool.
package preflight
