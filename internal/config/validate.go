package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"slidecast/internal/deck"
	"slidecast/internal/language"
)

// Provider names accepted in the translation and speech chains. The bool marks
// providers that stay usable without a paid credential or public network service.
var (
	TranslationProviders = map[string]bool{
		"gemini":         false,
		"openrouter":     false,
		"google_free":    false,
		"libretranslate": true,
	}
	SpeechProviders = map[string]bool{
		"google_cloud": false,
		"google_free":  false,
		"espeak":       true,
	}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJob(); err != nil {
		return err
	}
	if err := c.validateNarration(); err != nil {
		return err
	}
	if err := validateChain("translation.chain", c.Translation.Chain, TranslationProviders); err != nil {
		return err
	}
	if err := validateChain("speech.chain", c.Speech.Chain, SpeechProviders); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateJob() error {
	if _, ok := deck.LookupStyle(c.Job.Style); !ok {
		return fmt.Errorf("job.style %q is not one of %s", c.Job.Style, strings.Join(deck.StyleNames(), ", "))
	}
	switch c.Job.VoiceQuality {
	case "premium", "standard":
	default:
		return fmt.Errorf("job.voice_quality must be premium or standard, got %q", c.Job.VoiceQuality)
	}
	switch c.Job.VoiceGender {
	case "female", "male":
	default:
		return fmt.Errorf("job.voice_gender must be female or male, got %q", c.Job.VoiceGender)
	}
	if c.Job.SourceLanguage == "" || c.Job.TargetLanguage == "" {
		return errors.New("job.source_language and job.target_language must be set")
	}
	for key, code := range map[string]string{"job.source_language": c.Job.SourceLanguage, "job.target_language": c.Job.TargetLanguage} {
		if !language.Valid(code) {
			return fmt.Errorf("%s %q is not a recognized language code", key, code)
		}
	}
	return nil
}

func (c *Config) validateNarration() error {
	switch c.Narration.Provider {
	case "gemini", "openrouter":
	default:
		return fmt.Errorf("narration.provider must be gemini or openrouter, got %q", c.Narration.Provider)
	}
	if c.Narration.MaxBackoffMS < c.Narration.BaseBackoffMS {
		return errors.New("narration.max_backoff_ms must be at least narration.base_backoff_ms")
	}
	return nil
}

// validateChain requires a non-empty chain of known providers whose last entry is offline.
func validateChain(field string, chain []string, known map[string]bool) error {
	if len(chain) == 0 {
		return fmt.Errorf("%s must list at least one provider", field)
	}
	for _, name := range chain {
		if _, ok := known[name]; !ok {
			names := make([]string, 0, len(known))
			for k := range known {
				names = append(names, k)
			}
			slices.Sort(names)
			return fmt.Errorf("%s: unknown provider %q (expected one of %s)", field, name, strings.Join(names, ", "))
		}
	}
	last := chain[len(chain)-1]
	if !known[last] {
		return fmt.Errorf("%s must end with an offline provider, got %q", field, last)
	}
	return nil
}

func (c *Config) validateTiming() error {
	if c.Timing.FloorSeconds <= 0 {
		return errors.New("timing.floor_seconds must be positive")
	}
	if c.Timing.PaddingSeconds < 0 {
		return errors.New("timing.padding_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateAssembly() error {
	for _, format := range c.Assembly.ManifestFormats {
		switch format {
		case "json", "yaml":
		default:
			return fmt.Errorf("assembly.manifest_formats: unsupported format %q", format)
		}
	}
	if c.Assembly.Width%2 != 0 || c.Assembly.Height%2 != 0 {
		return errors.New("assembly.width and assembly.height must be even")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.pool_size":            c.Workflow.PoolSize,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	for stage, level := range c.Logging.StageOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.stage_overrides[%s]: unsupported level %q", stage, level)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
