// Package queue persists conversion jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the database connection, schema initialization, stats
// queries, heartbeat tracking, stuck-job recovery and the status transitions
// of the job state machine. Each row carries the job settings, the serialized
// deck checkpoint, progress and failure details so stages can coordinate and
// resume without additional state.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
