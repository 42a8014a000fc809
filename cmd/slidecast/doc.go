// Command slidecast is the command-line front end: it submits and inspects
// conversion jobs, manages the background daemon and edits configuration.
//
// Job commands talk to a running daemon over its HTTP API and fall back to the
// job database directly when no daemon answers, so inspection works offline.
package main
