package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/assembly"
	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/extraction"
	"slidecast/internal/language"
	"slidecast/internal/queue"
	"slidecast/internal/services"
)

// JobStore abstracts the queue persistence needed by JobService.
type JobStore interface {
	NewJob(ctx context.Context, params queue.NewJobParams) (*queue.Job, error)
	GetByID(ctx context.Context, id string) (*queue.Job, error)
	FindByPrefix(ctx context.Context, prefix string) (*queue.Job, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	Retry(ctx context.Context, ids ...string) (int64, error)
	Cancel(ctx context.Context, id string) (*queue.Job, error)
	Remove(ctx context.Context, id string) (bool, error)
	ClearCompleted(ctx context.Context) (int64, error)
}

// ErrJobNotFound is returned when an id or id prefix matches no job.
var ErrJobNotFound = fmt.Errorf("%w: job", services.ErrNotFound)

// ErrJobNotComplete is returned by GetResult for a job still in progress.
var ErrJobNotComplete = errors.New("job has not completed")

// JobService implements the caller-facing job operations.
type JobService struct {
	cfg   *config.Config
	store JobStore
}

// NewJobService constructs a JobService around store. A nil store yields a
// nil service whose methods report ErrJobNotFound or empty results.
func NewJobService(cfg *config.Config, store JobStore) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{cfg: cfg, store: store}
}

// StartJob validates req, applies the configured defaults and enqueues a job.
func (s *JobService) StartJob(ctx context.Context, req StartRequest) (string, error) {
	if s == nil || s.store == nil {
		return "", services.Wrap(services.ErrConfiguration, "api", "start job", "job store unavailable", nil)
	}
	params, err := s.resolveStart(req)
	if err != nil {
		return "", err
	}
	job, err := s.store.NewJob(ctx, params)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func (s *JobService) resolveStart(req StartRequest) (queue.NewJobParams, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return queue.NewJobParams{}, services.Wrap(services.ErrValidation, "api", "start job", "source path is required", nil)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return queue.NewJobParams{}, services.Wrap(services.ErrValidation, "api", "start job", "resolve source path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return queue.NewJobParams{}, services.Wrap(services.ErrNotFound, "api", "start job", "source "+abs, err)
	}
	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(abs, extraction.ManifestName)); err != nil {
			return queue.NewJobParams{}, services.Wrap(services.ErrValidation, "api", "start job",
				fmt.Sprintf("directory %s has no %s", abs, extraction.ManifestName), nil)
		}
	} else if !extraction.Supported(abs) {
		return queue.NewJobParams{}, services.Wrap(services.ErrValidation, "api", "start job",
			fmt.Sprintf("unsupported source %s (want %s)", filepath.Base(abs), strings.Join(extraction.SupportedExtensions, ", ")), nil)
	}

	defaults := config.Default().Job
	if s.cfg != nil {
		defaults = s.cfg.Job
	}
	params := queue.NewJobParams{
		SourcePath:     abs,
		Title:          strings.TrimSpace(req.Title),
		Style:          firstNonEmpty(req.Style, defaults.Style),
		VoiceQuality:   firstNonEmpty(req.VoiceQuality, defaults.VoiceQuality),
		VoiceGender:    firstNonEmpty(req.VoiceGender, defaults.VoiceGender),
		SourceLanguage: firstNonEmpty(req.SourceLanguage, defaults.SourceLanguage),
		TargetLanguage: firstNonEmpty(req.TargetLanguage, defaults.TargetLanguage),
	}
	if err := validateSettings(params.Style, params.VoiceQuality, params.VoiceGender, params.SourceLanguage, params.TargetLanguage); err != nil {
		return queue.NewJobParams{}, err
	}
	params.SourceLanguage = language.Normalize(params.SourceLanguage)
	params.TargetLanguage = language.Normalize(params.TargetLanguage)
	return params, nil
}

func validateSettings(style, quality, gender, source, target string) error {
	if _, ok := deck.LookupStyle(style); !ok {
		return services.Wrap(services.ErrValidation, "api", "start job",
			fmt.Sprintf("unknown style %q (want one of %s)", style, strings.Join(deck.StyleNames(), ", ")), nil)
	}
	switch quality {
	case "premium", "standard":
	default:
		return services.Wrap(services.ErrValidation, "api", "start job",
			fmt.Sprintf("voice quality must be premium or standard, got %q", quality), nil)
	}
	switch gender {
	case "female", "male":
	default:
		return services.Wrap(services.ErrValidation, "api", "start job",
			fmt.Sprintf("voice gender must be female or male, got %q", gender), nil)
	}
	for _, code := range []string{source, target} {
		if !language.Valid(code) {
			return services.Wrap(services.ErrValidation, "api", "start job",
				fmt.Sprintf("%q is not a recognized language code", code), nil)
		}
	}
	return nil
}

// Describe resolves id, which may be a unique id prefix, to a job.
func (s *JobService) Describe(ctx context.Context, id string) (*Job, error) {
	job, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// GetStatus reports the current stage, overall progress and per-slide state.
func (s *JobService) GetStatus(ctx context.Context, id string) (JobStatus, error) {
	job, err := s.resolve(ctx, id)
	if err != nil {
		return JobStatus{}, err
	}
	status := JobStatus{
		ID:       job.ID,
		Status:   string(job.Status),
		Stage:    job.Status.StageKey(),
		Progress: job.Status.PipelinePercent(),
		Message:  job.ProgressMessage,
	}
	if job.Status == queue.StatusFailed && job.FailedStage != "" {
		status.Stage = job.FailedStage
	}
	if d, err := deck.Decode(job.DeckJSON); err == nil {
		status.Slides = SlideProgressFor(d)
	}
	return status, nil
}

// GetResult returns the artifacts of a completed job. A failed job yields a
// *services.StageFailure naming the stage and slides; any other unfinished
// job yields ErrJobNotComplete.
func (s *JobService) GetResult(ctx context.Context, id string) (JobResult, error) {
	job, err := s.resolve(ctx, id)
	if err != nil {
		return JobResult{}, err
	}
	switch job.Status {
	case queue.StatusCompleted:
	case queue.StatusFailed:
		stageName := job.FailedStage
		if stageName == "" {
			stageName = job.ResumeStatus.StageKey()
		}
		return JobResult{}, services.NewStageFailure(stageName, job.FailedSlides, errors.New(job.ErrorMessage))
	default:
		return JobResult{}, fmt.Errorf("%w: job %s is %s", ErrJobNotComplete, job.ID, job.Status)
	}

	cfg := s.config()
	layout := assembly.LayoutForJob(cfg, job, time.Now())
	result := JobResult{
		JobID:     job.ID,
		VideoPath: layout.VideoPath(),
		AudioDir:  layout.AudioDir(),
		ImageDir:  layout.ImagesDir(),
	}
	for _, format := range cfg.Assembly.ManifestFormats {
		if path := layout.ManifestPath(format); fileExists(path) {
			result.ManifestPath = path
			break
		}
	}
	if path := layout.ScriptPath(); fileExists(path) {
		result.ScriptPath = path
	}
	if d, err := deck.Decode(job.DeckJSON); err == nil {
		result.DurationSeconds = d.TotalDuration()
		result.Warnings = SlideWarnings(d)
	}
	return result, nil
}

// List returns jobs filtered by status, newest first as the store orders them.
func (s *JobService) List(ctx context.Context, statuses ...queue.Status) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Retry resumes failed or cancelled jobs from their last completed stage.
func (s *JobService) Retry(ctx context.Context, ids ...string) (RetryJobsResult, error) {
	result := RetryJobsResult{Items: make([]RetryJobResult, 0, len(ids))}
	if s == nil || s.store == nil {
		return result, nil
	}
	for _, id := range ids {
		job, err := s.resolve(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			result.Items = append(result.Items, RetryJobResult{ID: id, Outcome: RetryJobNotFound})
			continue
		}
		if err != nil {
			return RetryJobsResult{}, err
		}
		if job.Status != queue.StatusFailed && job.Status != queue.StatusCancelled {
			result.Items = append(result.Items, RetryJobResult{ID: job.ID, Outcome: RetryJobNotRetryable, NewStatus: string(job.Status)})
			continue
		}
		updated, err := s.store.Retry(ctx, job.ID)
		if err != nil {
			return RetryJobsResult{}, err
		}
		if updated == 0 {
			result.Items = append(result.Items, RetryJobResult{ID: job.ID, Outcome: RetryJobNotRetryable})
			continue
		}
		result.UpdatedCount += updated
		item := RetryJobResult{ID: job.ID, Outcome: RetryJobUpdated}
		if latest, err := s.store.GetByID(ctx, job.ID); err == nil && latest != nil {
			item.NewStatus = string(latest.Status)
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// RetryAll resumes every failed or cancelled job.
func (s *JobService) RetryAll(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.Retry(ctx)
}

// Cancel stops a queued or running job. The running stage observes the
// cancellation and the job later resumes from that stage's start.
func (s *JobService) Cancel(ctx context.Context, id string) (CancelJobResult, error) {
	job, err := s.resolve(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return CancelJobResult{ID: id, Outcome: CancelJobNotFound}, nil
	}
	if err != nil {
		return CancelJobResult{}, err
	}
	prior := string(job.Status)
	switch job.Status {
	case queue.StatusCompleted:
		return CancelJobResult{ID: job.ID, Outcome: CancelJobAlreadyCompleted, PriorStatus: prior}, nil
	case queue.StatusFailed:
		return CancelJobResult{ID: job.ID, Outcome: CancelJobAlreadyFailed, PriorStatus: prior}, nil
	case queue.StatusCancelled:
		return CancelJobResult{ID: job.ID, Outcome: CancelJobAlreadyCancelled, PriorStatus: prior}, nil
	}
	updated, err := s.store.Cancel(ctx, job.ID)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) && updated != nil {
			return CancelJobResult{ID: job.ID, Outcome: outcomeForTerminal(updated.Status), PriorStatus: string(updated.Status)}, nil
		}
		return CancelJobResult{}, err
	}
	out := CancelJobResult{ID: job.ID, Outcome: CancelJobUpdated, PriorStatus: prior}
	if updated != nil {
		out.ResumeStatus = string(updated.ResumeStatus)
	}
	return out, nil
}

// Rerun clones the narrated deck of id into a new job that starts at the
// narrated state, so extraction and narration are not repeated.
func (s *JobService) Rerun(ctx context.Context, id string, req RerunRequest) (string, error) {
	parent, err := s.resolve(ctx, id)
	if err != nil {
		return "", err
	}
	d, err := deck.Decode(parent.DeckJSON)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "api", "rerun job",
			fmt.Sprintf("job %s has no persisted deck", parent.ID), err)
	}
	for _, slide := range d.Slides {
		if slide.Narration == nil {
			return "", services.Wrap(services.ErrValidation, "api", "rerun job",
				fmt.Sprintf("job %s has not finished narration (slide %d)", parent.ID, slide.Index), nil)
		}
	}

	target := firstNonEmpty(req.TargetLanguage, parent.TargetLanguage)
	gender := firstNonEmpty(req.VoiceGender, parent.VoiceGender)
	quality := firstNonEmpty(req.VoiceQuality, parent.VoiceQuality)
	if err := validateSettings(parent.Style, quality, gender, parent.SourceLanguage, target); err != nil {
		return "", err
	}

	childID := uuid.New().String()
	layout := assembly.NewLayout(s.config().Paths.OutputDir, parent.SourcePath, childID, target, time.Now())
	clone := NarratedCopy(d)
	if err := extraction.PlaceImages(clone, layout); err != nil {
		_ = os.RemoveAll(layout.Dir)
		return "", err
	}
	raw, err := clone.Encode()
	if err != nil {
		return "", err
	}
	job, err := s.store.NewJob(ctx, queue.NewJobParams{
		ID:             childID,
		SourcePath:     parent.SourcePath,
		Title:          parent.Title,
		Style:          parent.Style,
		VoiceQuality:   quality,
		VoiceGender:    gender,
		SourceLanguage: parent.SourceLanguage,
		TargetLanguage: language.Normalize(target),
		Status:         queue.StatusNarrated,
		DeckJSON:       raw,
		OutputDir:      layout.Dir,
		ParentJobID:    parent.ID,
	})
	if err != nil {
		_ = os.RemoveAll(layout.Dir)
		return "", err
	}
	return job.ID, nil
}

// NarratedCopy returns a copy of d holding only extraction and narration
// output. Everything derived after narration is dropped with its warnings.
func NarratedCopy(d *deck.Deck) *deck.Deck {
	clone := d.Clone()
	for i := range clone.Slides {
		slide := &clone.Slides[i]
		slide.Translation = nil
		slide.TextTranslation = nil
		slide.Audio = nil
		slide.DurationSeconds = 0
		for _, stage := range []string{"translation", "synthesis", "timing", "assembly"} {
			slide.ClearWarnings(stage)
		}
	}
	return clone
}

// Remove deletes a job that is not running.
func (s *JobService) Remove(ctx context.Context, id string) (bool, error) {
	job, err := s.resolve(ctx, id)
	if err != nil {
		return false, err
	}
	if job.IsProcessing() {
		return false, fmt.Errorf("%w: job %s is %s; cancel it first", queue.ErrInvalidTransition, job.ID, job.Status)
	}
	return s.store.Remove(ctx, job.ID)
}

// ClearCompleted removes completed jobs.
func (s *JobService) ClearCompleted(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.ClearCompleted(ctx)
}

func (s *JobService) config() *config.Config {
	if s.cfg == nil {
		def := config.Default()
		return &def
	}
	return s.cfg
}

func (s *JobService) resolve(ctx context.Context, id string) (*queue.Job, error) {
	id = strings.TrimSpace(id)
	if s == nil || s.store == nil || id == "" {
		return nil, fmt.Errorf("%w %q", ErrJobNotFound, id)
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		job, err = s.store.FindByPrefix(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if job == nil {
		return nil, fmt.Errorf("%w %q", ErrJobNotFound, id)
	}
	return job, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
