package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	InboxDir  string `toml:"inbox_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Job holds the defaults applied when a caller omits a job setting.
type Job struct {
	Style          string `toml:"style"`
	VoiceQuality   string `toml:"voice_quality"`
	VoiceGender    string `toml:"voice_gender"`
	SourceLanguage string `toml:"source_language"`
	TargetLanguage string `toml:"target_language"`
}

// Narration configures the sequential narration stage.
type Narration struct {
	Provider       string `toml:"provider"`
	MaxAttempts    int    `toml:"max_attempts"`
	BaseBackoffMS  int    `toml:"base_backoff_ms"`
	MaxBackoffMS   int    `toml:"max_backoff_ms"`
	ContextSlides  int    `toml:"context_slides"`
	ContextChars   int    `toml:"context_chars"`
	MinTextChars   int    `toml:"min_text_chars"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Gemini contains Google Gemini API settings shared by narration and translation.
type Gemini struct {
	APIKeys          []string `toml:"api_keys"`
	Model            string   `toml:"model"`
	TranslationModel string   `toml:"translation_model"`
}

// LLM contains OpenAI-compatible chat completion settings (OpenRouter by default).
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Translation configures the translation provider chain.
type Translation struct {
	Chain               []string `toml:"chain"`
	TimeoutSeconds      int      `toml:"timeout_seconds"`
	GoogleFreeURL       string   `toml:"google_free_url"`
	LibreTranslateURL   string   `toml:"libretranslate_url"`
	LibreTranslateToken string   `toml:"libretranslate_api_key"`
	// SlideText also translates each slide's own text for the manifest and
	// the optional text overlay.
	SlideText bool `toml:"slide_text"`
}

// Speech configures the speech synthesis provider chain.
type Speech struct {
	Chain             []string `toml:"chain"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	GoogleCloudAPIKey string   `toml:"google_cloud_api_key"`
	GoogleCloudURL    string   `toml:"google_cloud_url"`
	GoogleFreeURL     string   `toml:"google_free_url"`
	EspeakBinary      string   `toml:"espeak_binary"`
}

// Timing configures per-slide duration derivation.
type Timing struct {
	PaddingSeconds float64 `toml:"padding_seconds"`
	FloorSeconds   float64 `toml:"floor_seconds"`
}

// Assembly configures the video encoder and the manifest outputs.
type Assembly struct {
	FPS             int      `toml:"fps"`
	Width           int      `toml:"width"`
	Height          int      `toml:"height"`
	VideoCodec      string   `toml:"video_codec"`
	AudioCodec      string   `toml:"audio_codec"`
	AudioSampleRate int      `toml:"audio_sample_rate"`
	FillerAudio     string   `toml:"filler_audio"`
	TextOverlay     bool     `toml:"text_overlay"`
	OverlayFont     string   `toml:"overlay_font"`
	ManifestFormats []string `toml:"manifest_formats"`
	ExportScript    bool     `toml:"export_script"`
	FFmpegBinary    string   `toml:"ffmpeg_binary"`
	FFprobeBinary   string   `toml:"ffprobe_binary"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
}

// Extraction configures the external slide extraction collaborators.
type Extraction struct {
	Command        string `toml:"command"`
	SofficeBinary  string `toml:"soffice_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobStarted     bool   `toml:"job_started"`
	JobCompleted   bool   `toml:"job_completed"`
	JobDegraded    bool   `toml:"job_degraded"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for daemon timing and worker pools.
type Workflow struct {
	PoolSize           int `toml:"pool_size"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for slidecast.
//
// Configuration sections by subsystem:
//   - Paths: output, work, log and inbox directories plus the API bind address
//   - Job: defaults for style, voice and languages
//   - Narration, Gemini, LLM: narration generation and LLM credentials
//   - Translation, Speech: ordered provider chains
//   - Timing, Assembly: duration policy and encoder settings
//   - Extraction: external extraction and legacy conversion commands
//   - Notifications, Workflow, Logging: daemon behaviour
type Config struct {
	Paths         Paths         `toml:"paths"`
	Job           Job           `toml:"job"`
	Narration     Narration     `toml:"narration"`
	Gemini        Gemini        `toml:"gemini"`
	LLM           LLM           `toml:"llm"`
	Translation   Translation   `toml:"translation"`
	Speech        Speech        `toml:"speech"`
	Timing        Timing        `toml:"timing"`
	Assembly      Assembly      `toml:"assembly"`
	Extraction    Extraction    `toml:"extraction"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/slidecast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slidecast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for job processing.
// The inbox directory is only created when configured.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if err := os.MkdirAll(c.Paths.InboxDir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory %q: %w", c.Paths.InboxDir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the job store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

// FFmpegBinary returns the ffmpeg executable used for segment encoding.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Assembly.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Assembly.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the OpenAI-compatible connection settings.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// HasGemini reports whether at least one Gemini API key is configured.
func (c *Config) HasGemini() bool {
	return len(c.Gemini.APIKeys) > 0
}
