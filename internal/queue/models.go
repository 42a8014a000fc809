package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusExtracting   Status = "extracting"
	StatusExtracted    Status = "extracted"
	StatusNarrating    Status = "narrating"
	StatusNarrated     Status = "narrated"
	StatusTranslating  Status = "translating"
	StatusTranslated   Status = "translated"
	StatusSynthesizing Status = "synthesizing"
	StatusSynthesized  Status = "synthesized"
	StatusTiming       Status = "timing"
	StatusTimed        Status = "timed"
	StatusAssembling   Status = "assembling"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// UserCancelReason is the error message set when a user cancels a job.
const UserCancelReason = "Cancelled by user"

// DaemonStopReason is the progress message set when jobs are rolled back due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusExtracted,
	StatusNarrating,
	StatusNarrated,
	StatusTranslating,
	StatusTranslated,
	StatusSynthesizing,
	StatusSynthesized,
	StatusTiming,
	StatusTimed,
	StatusAssembling,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting:   {},
	StatusNarrating:    {},
	StatusTranslating:  {},
	StatusSynthesizing: {},
	StatusTiming:       {},
	StatusAssembling:   {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions maps each processing status to the status the
// stage started from.
var stageRollbackTransitions = []statusTransition{
	{from: StatusExtracting, to: StatusPending},
	{from: StatusNarrating, to: StatusExtracted},
	{from: StatusTranslating, to: StatusNarrated},
	{from: StatusSynthesizing, to: StatusTranslated},
	{from: StatusTiming, to: StatusSynthesized},
	{from: StatusAssembling, to: StatusTimed},
}

// Job represents a conversion job persisted in SQLite.
type Job struct {
	ID              string
	SourcePath      string
	Title           string
	Status          Status
	Style           string
	VoiceQuality    string
	VoiceGender     string
	SourceLanguage  string
	TargetLanguage  string
	OutputDir       string
	DeckJSON        string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	FailedStage     string
	FailedSlides    []int
	// ResumeStatus is the status a failed or cancelled job returns to on retry.
	ResumeStatus  Status
	ParentJobID   string
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewJobParams describes a job to enqueue. ID, Status, DeckJSON and OutputDir
// are only set when a job is cloned from an existing checkpoint; an empty ID
// gets a fresh uuid.
type NewJobParams struct {
	ID             string
	SourcePath     string
	Title          string
	Style          string
	VoiceQuality   string
	VoiceGender    string
	SourceLanguage string
	TargetLanguage string
	Status         Status
	DeckJSON       string
	OutputDir      string
	ParentJobID    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the job will not progress without a caller action.
func (j Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// StageStart returns the status a processing stage started from. Statuses
// that are not in-flight are returned unchanged.
func StageStart(status Status) Status {
	for _, tr := range stageRollbackTransitions {
		if tr.from == status {
			return tr.to
		}
	}
	return status
}

// SetProgress updates all three progress fields atomically.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (j *Job) SetProgressComplete(stage, message string) {
	j.SetProgress(stage, message, 100)
}

// SetFailed marks the job as failed in stage, remembering where a retry resumes.
func (j *Job) SetFailed(stage string, slides []int, message string) {
	j.ResumeStatus = StageStart(j.Status)
	j.Status = StatusFailed
	j.FailedStage = stage
	j.FailedSlides = append([]int(nil), slides...)
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}

// ClearFailure resets the failure fields after a successful stage or a retry.
func (j *Job) ClearFailure() {
	j.ErrorMessage = ""
	j.FailedStage = ""
	j.FailedSlides = nil
	j.ResumeStatus = ""
}

// StageKey returns the normalized stage identifier used in API/CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "queued"
	case StatusExtracting, StatusExtracted:
		return "extraction"
	case StatusNarrating, StatusNarrated:
		return "narration"
	case StatusTranslating, StatusTranslated:
		return "translation"
	case StatusSynthesizing, StatusSynthesized:
		return "synthesis"
	case StatusTiming, StatusTimed:
		return "timing"
	case StatusAssembling:
		return "assembly"
	case StatusCompleted, StatusFailed, StatusCancelled:
		return string(s)
	default:
		return ""
	}
}

// PipelinePercent reports how far through the stage sequence a status is.
func (s Status) PipelinePercent() float64 {
	switch s {
	case StatusCompleted:
		return 100
	case StatusFailed, StatusCancelled, "":
		return 0
	}
	for i, status := range allStatuses {
		if status == s {
			return float64(i) / float64(len(allStatuses)-3) * 100
		}
	}
	return 0
}

// ProcessingLane partitions the workflow so text work and media work overlap
// across jobs.
type ProcessingLane string

const (
	LaneContent ProcessingLane = "content"
	LaneMedia   ProcessingLane = "media"
)

// LaneForStatus maps a job status to the lane that processes it.
func LaneForStatus(status Status) ProcessingLane {
	switch status {
	case StatusTranslated, StatusSynthesizing, StatusSynthesized,
		StatusTiming, StatusTimed, StatusAssembling, StatusCompleted:
		return LaneMedia
	default:
		return LaneContent
	}
}
