package api

import (
	"slices"
	"strings"
	"time"

	"slidecast/internal/deck"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
	"slidecast/internal/workflow"
)

// FromJob converts a queue job into its transport representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:             job.ID,
		Title:          job.Title,
		SourcePath:     job.SourcePath,
		Status:         string(job.Status),
		ProcessingLane: string(queue.LaneForStatus(job.Status)),
		Style:          job.Style,
		VoiceQuality:   job.VoiceQuality,
		VoiceGender:    job.VoiceGender,
		SourceLanguage: job.SourceLanguage,
		TargetLanguage: job.TargetLanguage,
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage: job.ErrorMessage,
		FailedStage:  job.FailedStage,
		FailedSlides: append([]int(nil), job.FailedSlides...),
		ResumeStatus: string(job.ResumeStatus),
		ParentJobID:  job.ParentJobID,
		OutputDir:    job.OutputDir,
		CreatedAt:    FormatTime(job.CreatedAt),
		UpdatedAt:    FormatTime(job.UpdatedAt),
	}
	if dto.Progress.Stage == "" {
		dto.Progress.Stage = job.Status.StageKey()
	}
	if d, err := deck.Decode(job.DeckJSON); err == nil {
		dto.SlideCount = len(d.Slides)
		dto.WarningCount = len(d.Warnings())
	}
	return dto
}

// FromJobs converts a slice of jobs, skipping nil entries.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// SlideProgressFor reports the derived fields each slide of d already carries.
func SlideProgressFor(d *deck.Deck) []SlideProgress {
	if d == nil {
		return nil
	}
	out := make([]SlideProgress, 0, len(d.Slides))
	for _, slide := range d.Slides {
		entry := SlideProgress{
			Index:           slide.Index,
			Narrated:        slide.Narration != nil && strings.TrimSpace(slide.Narration.Text) != "",
			Translated:      slide.Translation != nil,
			Synthesized:     slide.Audio != nil && slide.Audio.Path != "",
			DurationSeconds: slide.DurationSeconds,
		}
		for _, w := range slide.Warnings {
			entry.Warnings = append(entry.Warnings, w.Stage+": "+w.Message)
		}
		out = append(out, entry)
	}
	return out
}

// SlideWarnings flattens the deck warnings in slide order.
func SlideWarnings(d *deck.Deck) []SlideWarning {
	if d == nil {
		return nil
	}
	var out []SlideWarning
	for _, w := range d.Warnings() {
		out = append(out, SlideWarning{Index: w.Index, Stage: w.Stage, Message: w.Message})
	}
	return out
}

// FromStatusSummary converts the workflow status into its transport form.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// MergeQueueStats converts status counts into string keys and fills zero
// entries for every known status.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice returns the stage health entries sorted by name.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Summary(), Providers: h.Providers})
	}
	return out
}

// FormatTime renders t in the API timestamp format; the zero time is empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
