package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slidecast/internal/assembly"
	"slidecast/internal/logging"
	"slidecast/internal/notifications"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
)

func (m *Manager) notifyStageError(ctx context.Context, stageName string, job *queue.Job, stageErr error) {
	if stageErr == nil {
		return
	}
	contextLabel := fmt.Sprintf("%s (job %s)", stageName, shortID(job.ID))
	m.publish(ctx, notifications.EventError, notifications.Payload{
		"error":   stageErr,
		"context": contextLabel,
		"title":   job.Title,
	})
}

func (m *Manager) onJobStarted(ctx context.Context, job *queue.Job) {
	m.publish(ctx, notifications.EventJobStarted, notifications.Payload{
		"title":           job.Title,
		"source_language": job.SourceLanguage,
		"target_language": job.TargetLanguage,
	})
}

// onJobCompleted reports a finished lecture. Lectures carrying slide warnings
// are reported as degraded.
func (m *Manager) onJobCompleted(ctx context.Context, job *queue.Job) {
	video := assembly.LayoutForJob(m.cfg, job, time.Now()).VideoPath()
	warnings := 0
	if d, err := stage.LoadDeck(job); err == nil {
		warnings = len(d.Warnings())
	}
	payload := notifications.Payload{
		"title":      job.Title,
		"video_path": video,
		"warnings":   warnings,
	}
	if warnings > 0 {
		m.publish(ctx, notifications.EventJobDegraded, payload)
		return
	}
	m.publish(ctx, notifications.EventJobCompleted, payload)
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger := logging.WithContext(ctx, m.baseLogger())
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, notification not sent", logging.String("event", string(event)))
		} else {
			logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
