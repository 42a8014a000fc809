package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTransition reports a lifecycle change the job's status does not allow.
var ErrInvalidTransition = errors.New("invalid job transition")

// ErrJobCancelled reports a checkpoint against a job the user cancelled.
var ErrJobCancelled = errors.New("job cancelled")

// rollbackCase renders a CASE expression mapping each selected processing
// status back to the status its stage started from.
func rollbackCase(selected []Status) (string, []any, []any) {
	var (
		b        strings.Builder
		caseArgs []any
		inArgs   []any
	)
	b.WriteString("CASE status")
	for _, tr := range stageRollbackTransitions {
		if len(selected) > 0 && !containsStatus(selected, tr.from) {
			continue
		}
		b.WriteString(" WHEN ? THEN ?")
		caseArgs = append(caseArgs, tr.from, tr.to)
		inArgs = append(inArgs, tr.from)
	}
	b.WriteString(" ELSE status END")
	return b.String(), caseArgs, inArgs
}

func containsStatus(list []Status, status Status) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

// ResetStuckProcessing resets jobs in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseExpr, caseArgs, inArgs := rollbackCase(nil)
	args := append([]any{}, caseArgs...)
	args = append(args, DaemonStopReason, nowString())
	args = append(args, inArgs...)
	affected, err := s.exec(
		ctx,
		`UPDATE jobs
         SET status = `+caseExpr+`,
             progress_stage = 'Reset from stuck processing', progress_message = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(inArgs))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return affected, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := nowString()
	if _, err := s.exec(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns jobs whose heartbeat expired before cutoff to
// the start of their current stage. When statuses are given only those
// processing states are considered.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	caseExpr, caseArgs, inArgs := rollbackCase(statuses)
	if len(inArgs) == 0 {
		return 0, nil
	}
	args := append([]any{}, caseArgs...)
	args = append(args, nowString())
	args = append(args, inArgs...)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))
	affected, err := s.exec(
		ctx,
		`UPDATE jobs
         SET status = `+caseExpr+`,
             progress_stage = 'Reclaimed from stale processing', progress_message = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(inArgs))+`)
           AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return affected, nil
}

// Retry moves failed or cancelled jobs back to the status their interrupted
// stage started from. With no ids every failed or cancelled job is retried.
func (s *Store) Retry(ctx context.Context, ids ...string) (int64, error) {
	query := `UPDATE jobs
        SET status = COALESCE(resume_status, ?), progress_stage = 'Retry requested',
            progress_message = NULL, error_message = NULL, failed_stage = NULL,
            failed_slides = NULL, resume_status = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?)`
	args := []any{StatusPending, nowString(), StatusFailed, StatusCancelled}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	affected, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry jobs: %w", err)
	}
	return affected, nil
}

// Cancel stops a job. A processing job resumes from the start of its current
// stage on retry; a queued job resumes where it waited. Terminal jobs cannot
// be cancelled.
func (s *Store) Cancel(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	if job.IsTerminal() {
		return job, fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, job.ID, job.Status)
	}
	resume := StageStart(job.Status)
	affected, err := s.exec(
		ctx,
		`UPDATE jobs
         SET status = ?, resume_status = ?, error_message = ?, progress_stage = 'Cancelled',
             progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCancelled,
		resume,
		UserCancelReason,
		UserCancelReason,
		nowString(),
		job.ID,
		job.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	if affected == 0 {
		// The job moved on between the read and the write; report the fresh state.
		latest, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return latest, fmt.Errorf("%w: job %s changed status concurrently", ErrInvalidTransition, id)
	}
	return s.GetByID(ctx, id)
}

// Transition moves a job from one status to another only when it is still in
// the expected status. It reports whether the row changed.
func (s *Store) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	affected, err := s.exec(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		nowString(),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition job: %w", err)
	}
	return affected > 0, nil
}
