// Package daemon hosts the long-running render service: single-instance
// locking, session pool lifecycle, the in-memory job registry, and the HTTP
// API that accepts render submissions and reports their progress.
package daemon
