// Package logging assembles structured slog loggers and formatting helpers used
// across slidecast.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage and provider code tags
// log lines with job IDs, stages, slide indices and providers. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
