package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stg pipelineStage, job *queue.Job, stageErr error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow-manager"))

	message := classifyStageFailure(stg.name, stageErr)
	var slides []int
	var failure *services.StageFailure
	if errors.As(stageErr, &failure) {
		slides = failure.Slides
	}
	processing := job.Status
	job.SetFailed(stg.name, slides, message)

	details := services.Details(stageErr)
	attrs := []logging.Attr{
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("resume_status", string(job.ResumeStatus)),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.String("failed_slides", services.FormatSlides(slides)),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.String(logging.FieldErrorCode, details.Code),
		logging.String(logging.FieldErrorHint, details.Hint),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, logging.EventStageFailure))
	logger.Error("stage failed", logging.Args(attrs...)...)

	ok, err := m.store.UpdateIf(ctx, job, processing)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		logger.Debug("daemon shutting down, could not record stage failure")
	case err != nil:
		logger.Error("failed to persist stage failure", logging.Error(err))
	case !ok:
		logger.Info("job changed status during the failed stage; failure not recorded")
		return
	}

	m.setLastJob(job)
	m.notifyStageError(ctx, stg.name, job, stageErr)
}

func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	var failure *services.StageFailure
	if errors.As(stageErr, &failure) {
		return strings.TrimSpace(failure.Error())
	}
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}
