package queue

import (
	"database/sql"
	"errors"
	"time"

	"slidecast/internal/services"
)

const jobColumns = "id, source_path, title, status, style, voice_quality, voice_gender, source_language, target_language, output_dir, deck_json, progress_stage, progress_percent, progress_message, error_message, failed_stage, failed_slides, resume_status, parent_job_id, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		sourcePath       string
		title            sql.NullString
		statusStr        string
		style            string
		voiceQuality     string
		voiceGender      string
		sourceLanguage   string
		targetLanguage   string
		outputDir        sql.NullString
		deckJSON         sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		errorMessage     sql.NullString
		failedStage      sql.NullString
		failedSlides     sql.NullString
		resumeStatus     sql.NullString
		parentJobID      sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&title,
		&statusStr,
		&style,
		&voiceQuality,
		&voiceGender,
		&sourceLanguage,
		&targetLanguage,
		&outputDir,
		&deckJSON,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&failedStage,
		&failedSlides,
		&resumeStatus,
		&parentJobID,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		SourcePath:      sourcePath,
		Title:           title.String,
		Status:          Status(statusStr),
		Style:           style,
		VoiceQuality:    voiceQuality,
		VoiceGender:     voiceGender,
		SourceLanguage:  sourceLanguage,
		TargetLanguage:  targetLanguage,
		OutputDir:       outputDir.String,
		DeckJSON:        deckJSON.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
		FailedStage:     failedStage.String,
		FailedSlides:    services.ParseSlides(failedSlides.String),
		ResumeStatus:    Status(resumeStatus.String),
		ParentJobID:     parentJobID.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func nullableSlides(indices []int) any {
	if len(indices) == 0 {
		return nil
	}
	return services.FormatSlides(indices)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
