package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/textutil"
)

// NewJob enqueues a conversion job and returns the stored row.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	sourcePath := strings.TrimSpace(params.SourcePath)
	if sourcePath == "" {
		return nil, errors.New("source path is required")
	}
	status := params.Status
	if status == "" {
		status = StatusPending
	}
	if _, ok := statusSet[status]; !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = inferTitleFromPath(sourcePath)
	}

	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.New().String()
	}
	timestamp := nowString()
	if _, err := s.exec(
		ctx,
		`INSERT INTO jobs (
            id, source_path, title, status, style, voice_quality, voice_gender,
            source_language, target_language, deck_json, output_dir, parent_job_id,
            progress_stage, progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		sourcePath,
		nullableString(title),
		status,
		params.Style,
		params.VoiceQuality,
		params.VoiceGender,
		params.SourceLanguage,
		params.TargetLanguage,
		nullableString(params.DeckJSON),
		nullableString(params.OutputDir),
		nullableString(params.ParentJobID),
		"Queued",
		status.PipelinePercent(),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job returns nil without error.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindByPrefix resolves a job from a unique id prefix, as printed in short form.
func (s *Store) FindByPrefix(ctx context.Context, prefix string) (*Job, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id LIKE ? ORDER BY created_at LIMIT 2`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("find job by prefix: %w", err)
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	switch len(jobs) {
	case 0:
		return nil, nil
	case 1:
		return jobs[0], nil
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", prefix)
	}
}

// Update persists changes to an existing job, including its deck checkpoint.
func (s *Store) Update(ctx context.Context, job *Job) error {
	_, err := s.update(ctx, job, "")
	return err
}

// UpdateIf persists job only while its stored status is still expected. It
// reports false when another writer (a cancel, a reclaim) moved the job first.
func (s *Store) UpdateIf(ctx context.Context, job *Job, expected Status) (bool, error) {
	affected, err := s.update(ctx, job, expected)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) update(ctx context.Context, job *Job, expected Status) (int64, error) {
	if job == nil {
		return 0, errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	query := `UPDATE jobs
         SET source_path = ?, title = ?, status = ?, style = ?, voice_quality = ?,
             voice_gender = ?, source_language = ?, target_language = ?, output_dir = ?,
             deck_json = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
             error_message = ?, failed_stage = ?, failed_slides = ?, resume_status = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ?`
	args := []any{
		job.SourcePath,
		nullableString(job.Title),
		job.Status,
		job.Style,
		job.VoiceQuality,
		job.VoiceGender,
		job.SourceLanguage,
		job.TargetLanguage,
		nullableString(job.OutputDir),
		nullableString(job.DeckJSON),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		nullableString(job.FailedStage),
		nullableSlides(job.FailedSlides),
		nullableString(string(job.ResumeStatus)),
		nullableTime(job.LastHeartbeat),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	}
	if expected != "" {
		query += ` AND status = ?`
		args = append(args, expected)
	}
	affected, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update job: %w", err)
	}
	return affected, nil
}

// SaveDeck checkpoints the serialized deck and progress of a job without
// touching its status. Once the job has been cancelled only the deck is
// written, the cancel's progress fields stay in place and ErrJobCancelled is
// returned so the running stage stops at its next slide.
func (s *Store) SaveDeck(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	affected, err := s.exec(
		ctx,
		`UPDATE jobs
         SET deck_json = ?, title = COALESCE(?, title), progress_stage = ?, progress_percent = ?,
             progress_message = ?, updated_at = ?
         WHERE id = ? AND status != ?`,
		nullableString(job.DeckJSON),
		nullableString(job.Title),
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
		StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	if affected > 0 {
		return nil
	}

	affected, err = s.exec(
		ctx,
		`UPDATE jobs SET deck_json = ?, updated_at = ? WHERE id = ? AND status = ?`,
		nullableString(job.DeckJSON),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
		StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("save cancelled deck: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("save deck: job %s not found", job.ID)
	}
	return fmt.Errorf("%w: job %s", ErrJobCancelled, job.ID)
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return scanJobs(rows)
}

// NextForStatuses returns the oldest job matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + makePlaceholders(len(statuses)) + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, statusArgs(statuses)...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	affected, err := s.exec(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	affected, err := s.exec(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return affected, nil
}

// Clear removes every job that is not currently processing.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	processing := make([]Status, 0, len(processingStatuses))
	for _, status := range allStatuses {
		if IsProcessingStatus(status) {
			processing = append(processing, status)
		}
	}
	query := `DELETE FROM jobs WHERE status NOT IN (` + makePlaceholders(len(processing)) + `)`
	affected, err := s.exec(ctx, query, statusArgs(processing)...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return affected, nil
}

func inferTitleFromPath(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "deck.json" {
		base = filepath.Base(filepath.Dir(path))
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "Untitled Lecture"
	}
	return textutil.TitleCase(base)
}
