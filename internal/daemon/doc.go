// Package daemon coordinates the long-running slidecast process.
//
// It wires configuration, job storage, the workflow manager, the HTTP JSON API
// and the inbox watcher into a single lifecycle, with flock-based locking to
// prevent multiple instances from sharing one job database. The API exposes
// the job service to remote callers behind an optional bearer token.
//
// Keep orchestration logic here: individual pipeline stages live in their own
// packages while the daemon focuses on startup, shutdown and the outer
// surfaces.
package daemon
