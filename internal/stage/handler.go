package stage

import (
	"context"
	"log/slog"

	"slidecast/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a per-job logger before
// Prepare runs.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
