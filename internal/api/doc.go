// Package api defines the caller-facing job surface and the wire-format types
// shared by the HTTP API, the CLI and the inbox watcher.
//
// # Key Types
//
// JobService: starts, inspects, retries, reruns and cancels jobs on top of the
// queue store, applying the configured job defaults to omitted settings.
//
// Job: transport representation of a queued job with progress and failure
// details.
//
// JobStatus / SlideProgress: per-slide view of how far a job has come.
//
// JobResult: artifact paths of a completed job plus the degradation warnings.
//
// WorkflowStatus / DaemonStatus: daemon running state, queue counts, stage
// health and dependency availability.
//
// # Converters
//
// FromJob: queue.Job -> Job.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// StageHealthSlice: deterministic ordering of the stage health map.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds. A failed job surfaces from
// GetResult as a *services.StageFailure so callers see the stage and the
// slide indices that failed.
package api
