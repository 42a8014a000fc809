package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
)

var errJobCancelled = errors.New("job cancelled")

func (m *Manager) processJob(ctx context.Context, lane *laneState, laneLogger *slog.Logger, job *queue.Job) error {
	stg, ok := lane.stageForStatus(job.Status)
	if !ok {
		laneLogger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, lane, stg.name, job, requestID)
	stageLogger := m.stageLoggerForLane(stageCtx, laneLogger)
	if aware, ok := stg.handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	claimed, err := m.transitionToProcessing(stageCtx, stg, job)
	if err != nil {
		stageLogger.Error("failed to transition job to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}
	if !claimed {
		stageLogger.Debug("job changed status before it could be claimed")
		return nil
	}

	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *queue.Job) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, logging.EventStageStart),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("source_file", strings.TrimSpace(job.SourcePath)),
		logging.String("target_language", job.TargetLanguage),
	)

	if err := stg.handler.Prepare(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg, job, err)
		m.setLastError(err)
		return err
	}
	if ok, err := m.store.UpdateIf(ctx, job, stg.processingStatus); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	} else if !ok {
		m.logCancelled(stageLogger, stg)
		return nil
	}

	execErr := m.executeWithHeartbeat(ctx, stg.handler, job)
	if execErr != nil {
		if errors.Is(execErr, errJobCancelled) || errors.Is(execErr, queue.ErrJobCancelled) {
			m.logCancelled(stageLogger, stg)
			return nil
		}
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	job.Status = stg.doneStatus
	job.LastHeartbeat = nil
	job.ClearFailure()
	if job.Status == queue.StatusCompleted {
		job.ProgressStage = deriveStageLabel(queue.StatusCompleted)
		job.ProgressPercent = 100
		if strings.TrimSpace(job.ProgressMessage) == "" {
			job.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	ok, err := m.store.UpdateIf(ctx, job, stg.processingStatus)
	if err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	if !ok {
		m.logCancelled(stageLogger, stg)
		return nil
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, logging.EventStageComplete),
		logging.String("next_status", string(job.Status)),
		logging.String("progress_message", strings.TrimSpace(job.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	if job.Status == queue.StatusCompleted {
		m.onJobCompleted(ctx, job)
	}
	return nil
}

// executeWithHeartbeat runs the handler while a heartbeat loop keeps the job
// claimed. A cancel observed by the loop cancels the handler's context and
// surfaces as errJobCancelled.
func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	execCtx, execCancel := context.WithCancel(ctx)
	defer execCancel()
	hbCtx, hbCancel := context.WithCancel(ctx)

	var cancelled sync.Once
	userCancelled := false
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID, func() {
		cancelled.Do(func() {
			userCancelled = true
			execCancel()
		})
	})

	execErr := handler.Execute(execCtx, job)
	hbCancel()
	hbWG.Wait()
	if userCancelled && ctx.Err() == nil {
		return errJobCancelled
	}
	return execErr
}

// transitionToProcessing claims job for stg. It reports false when another
// writer changed the job since it was read.
func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, job *queue.Job) (bool, error) {
	if stg.processingStatus == "" {
		return false, errors.New("processing status must not be empty")
	}
	from := job.Status
	now := time.Now().UTC()
	job.Status = stg.processingStatus
	job.ProgressStage = deriveStageLabel(stg.processingStatus)
	job.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(stg.processingStatus))
	job.ProgressPercent = 0
	job.ErrorMessage = ""
	job.LastHeartbeat = &now
	ok, err := m.store.UpdateIf(ctx, job, from)
	if err != nil {
		return false, fmt.Errorf("persist processing transition: %w", err)
	}
	if !ok {
		return false, nil
	}
	m.setLastJob(job)
	if from == queue.StatusPending {
		m.onJobStarted(ctx, job)
	}
	return true, nil
}

func (m *Manager) logCancelled(logger *slog.Logger, stg pipelineStage) {
	logger.Info("stage stopped; job was cancelled",
		logging.String(logging.FieldEventType, "stage_cancelled"),
		logging.String("resume_status", string(stg.startStatus)),
	)
}
