package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// StartRequest describes a new conversion job. Empty fields take the
// configured job defaults.
type StartRequest struct {
	Source         string `json:"source"`
	Title          string `json:"title,omitempty"`
	Style          string `json:"style,omitempty"`
	VoiceQuality   string `json:"voiceQuality,omitempty"`
	VoiceGender    string `json:"voiceGender,omitempty"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// RerunRequest overrides the settings of a job cloned from a narrated deck.
// Empty fields keep the parent's value.
type RerunRequest struct {
	TargetLanguage string `json:"targetLanguage,omitempty"`
	VoiceGender    string `json:"voiceGender,omitempty"`
	VoiceQuality   string `json:"voiceQuality,omitempty"`
}

// Job describes a queued job in a transport-friendly format.
type Job struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	SourcePath     string      `json:"sourcePath"`
	Status         string      `json:"status"`
	ProcessingLane string      `json:"processingLane"`
	Style          string      `json:"style"`
	VoiceQuality   string      `json:"voiceQuality"`
	VoiceGender    string      `json:"voiceGender"`
	SourceLanguage string      `json:"sourceLanguage"`
	TargetLanguage string      `json:"targetLanguage"`
	Progress       JobProgress `json:"progress"`
	ErrorMessage   string      `json:"errorMessage,omitempty"`
	FailedStage    string      `json:"failedStage,omitempty"`
	FailedSlides   []int       `json:"failedSlides,omitempty"`
	ResumeStatus   string      `json:"resumeStatus,omitempty"`
	ParentJobID    string      `json:"parentJobId,omitempty"`
	OutputDir      string      `json:"outputDir,omitempty"`
	SlideCount     int         `json:"slideCount"`
	WarningCount   int         `json:"warningCount"`
	CreatedAt      string      `json:"createdAt,omitempty"`
	UpdatedAt      string      `json:"updatedAt,omitempty"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// JobStatus is the per-slide progress view of a job. Progress is the overall
// pipeline completion in percent.
type JobStatus struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Stage    string          `json:"stage"`
	Progress float64         `json:"progress"`
	Message  string          `json:"message,omitempty"`
	Slides   []SlideProgress `json:"slides"`
}

// SlideProgress reports which derived fields a slide already carries.
type SlideProgress struct {
	Index           int      `json:"index"`
	Narrated        bool     `json:"narrated"`
	Translated      bool     `json:"translated"`
	Synthesized     bool     `json:"synthesized"`
	DurationSeconds float64  `json:"durationSeconds,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// JobResult lists the artifacts of a completed job.
type JobResult struct {
	JobID           string         `json:"jobId"`
	VideoPath       string         `json:"videoPath"`
	ManifestPath    string         `json:"manifestPath,omitempty"`
	AudioDir        string         `json:"audioDir"`
	ImageDir        string         `json:"imageDir"`
	ScriptPath      string         `json:"scriptPath,omitempty"`
	DurationSeconds float64        `json:"durationSeconds"`
	Warnings        []SlideWarning `json:"warnings,omitempty"`
}

// SlideWarning is a degradation recorded for one slide.
type SlideWarning struct {
	Index   int    `json:"index"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`

	// Providers lists the fallback order the stage will try per slide.
	Providers []string `json:"providers,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	APIBind      string             `json:"apiBind"`
	InboxDir     string             `json:"inboxDir,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// StartResponse carries the id of a newly enqueued job.
type StartResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the error body returned by the HTTP API. Stage and Slides
// are set when a job failed in a stage.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Slides []int  `json:"slides,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

// JobDetailResponse pairs a job with its per-slide status.
type JobDetailResponse struct {
	Job    Job       `json:"job"`
	Status JobStatus `json:"status"`
}

// ClearResponse reports how many jobs a clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}
