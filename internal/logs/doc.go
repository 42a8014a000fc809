// Package logs tails the daemon log file for `slidecast logs`.
//
// It reads with bounded memory, supports negative offsets for "last N lines"
// and follows appended output by polling. A match filter narrows output to one
// job's lines.
package logs
