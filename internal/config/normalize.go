package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeJob()
	c.normalizeNarration()
	c.normalizeGemini()
	c.normalizeLLM()
	c.normalizeTranslation()
	c.normalizeSpeech()
	if err := c.normalizeAssembly(); err != nil {
		return err
	}
	c.normalizeExtraction()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
			return fmt.Errorf("paths.inbox_dir: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SLIDECAST_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeJob() {
	c.Job.Style = lowerOr(c.Job.Style, defaultStyle)
	c.Job.VoiceQuality = lowerOr(c.Job.VoiceQuality, defaultVoiceQuality)
	c.Job.VoiceGender = lowerOr(c.Job.VoiceGender, defaultVoiceGender)
	c.Job.SourceLanguage = lowerOr(c.Job.SourceLanguage, defaultSourceLanguage)
	c.Job.TargetLanguage = lowerOr(c.Job.TargetLanguage, defaultTargetLanguage)
}

func (c *Config) normalizeNarration() {
	c.Narration.Provider = lowerOr(c.Narration.Provider, defaultNarrationProvider)
	if c.Narration.MaxAttempts <= 0 {
		c.Narration.MaxAttempts = defaultNarrationMaxAttempts
	}
	if c.Narration.BaseBackoffMS <= 0 {
		c.Narration.BaseBackoffMS = defaultNarrationBaseBackoffMS
	}
	if c.Narration.MaxBackoffMS <= 0 {
		c.Narration.MaxBackoffMS = defaultNarrationMaxBackoffMS
	}
	if c.Narration.ContextSlides < 0 {
		c.Narration.ContextSlides = defaultNarrationContextSlides
	}
	if c.Narration.ContextChars <= 0 {
		c.Narration.ContextChars = defaultNarrationContextChars
	}
	if c.Narration.MinTextChars < 0 {
		c.Narration.MinTextChars = defaultNarrationMinTextChars
	}
	if c.Narration.TimeoutSeconds <= 0 {
		c.Narration.TimeoutSeconds = defaultNarrationTimeoutSeconds
	}
}

func (c *Config) normalizeGemini() {
	keys := make([]string, 0, len(c.Gemini.APIKeys)+1)
	for _, key := range c.Gemini.APIKeys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	if len(keys) == 0 {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			for _, key := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(key); trimmed != "" {
					keys = append(keys, trimmed)
				}
			}
		}
	}
	c.Gemini.APIKeys = keys
	c.Gemini.Model = trimOr(c.Gemini.Model, defaultGeminiModel)
	c.Gemini.TranslationModel = trimOr(c.Gemini.TranslationModel, c.Gemini.Model)
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = trimOr(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = trimOr(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = trimOr(c.LLM.Referer, defaultLLMReferer)
	c.LLM.Title = trimOr(c.LLM.Title, defaultLLMTitle)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.Chain = normalizeNames(c.Translation.Chain, defaultTranslationChain)
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeoutSeconds
	}
	c.Translation.GoogleFreeURL = trimOr(c.Translation.GoogleFreeURL, defaultGoogleFreeTranslateURL)
	c.Translation.LibreTranslateURL = trimOr(c.Translation.LibreTranslateURL, defaultLibreTranslateURL)
	c.Translation.LibreTranslateToken = strings.TrimSpace(c.Translation.LibreTranslateToken)
	if c.Translation.LibreTranslateToken == "" {
		if value, ok := os.LookupEnv("LIBRETRANSLATE_API_KEY"); ok {
			c.Translation.LibreTranslateToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.Chain = normalizeNames(c.Speech.Chain, defaultSpeechChain)
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
	c.Speech.GoogleCloudURL = trimOr(c.Speech.GoogleCloudURL, defaultGoogleCloudTTSURL)
	c.Speech.GoogleFreeURL = trimOr(c.Speech.GoogleFreeURL, defaultGoogleFreeTTSURL)
	c.Speech.EspeakBinary = trimOr(c.Speech.EspeakBinary, defaultEspeakBinary)
	c.Speech.GoogleCloudAPIKey = strings.TrimSpace(c.Speech.GoogleCloudAPIKey)
	if c.Speech.GoogleCloudAPIKey == "" {
		if value, ok := os.LookupEnv("GOOGLE_TTS_API_KEY"); ok {
			c.Speech.GoogleCloudAPIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeAssembly() error {
	if c.Assembly.FPS <= 0 {
		c.Assembly.FPS = defaultFPS
	}
	if c.Assembly.Width <= 0 {
		c.Assembly.Width = defaultWidth
	}
	if c.Assembly.Height <= 0 {
		c.Assembly.Height = defaultHeight
	}
	if c.Assembly.AudioSampleRate <= 0 {
		c.Assembly.AudioSampleRate = defaultAudioSampleRate
	}
	if c.Assembly.TimeoutSeconds <= 0 {
		c.Assembly.TimeoutSeconds = defaultAssemblyTimeoutSeconds
	}
	c.Assembly.VideoCodec = trimOr(c.Assembly.VideoCodec, defaultVideoCodec)
	c.Assembly.AudioCodec = trimOr(c.Assembly.AudioCodec, defaultAudioCodec)
	c.Assembly.FFmpegBinary = trimOr(c.Assembly.FFmpegBinary, defaultFFmpegBinary)
	c.Assembly.FFprobeBinary = trimOr(c.Assembly.FFprobeBinary, defaultFFprobeBinary)
	c.Assembly.ManifestFormats = normalizeNames(c.Assembly.ManifestFormats, nil)
	if strings.TrimSpace(c.Assembly.FillerAudio) != "" {
		var err error
		if c.Assembly.FillerAudio, err = expandPath(c.Assembly.FillerAudio); err != nil {
			return fmt.Errorf("assembly.filler_audio: %w", err)
		}
	}
	if strings.TrimSpace(c.Assembly.OverlayFont) != "" {
		var err error
		if c.Assembly.OverlayFont, err = expandPath(c.Assembly.OverlayFont); err != nil {
			return fmt.Errorf("assembly.overlay_font: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	c.Extraction.Command = strings.TrimSpace(c.Extraction.Command)
	c.Extraction.SofficeBinary = trimOr(c.Extraction.SofficeBinary, defaultSofficeBinary)
	if c.Extraction.TimeoutSeconds <= 0 {
		c.Extraction.TimeoutSeconds = defaultExtractionTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = lowerOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.StageOverrides) > 0 {
		normalized := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			key := strings.ToLower(strings.TrimSpace(stage))
			value := strings.ToLower(strings.TrimSpace(level))
			if key == "" || value == "" {
				continue
			}
			normalized[key] = value
		}
		c.Logging.StageOverrides = normalized
	}
}

func trimOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func lowerOr(value, fallback string) string {
	return strings.ToLower(trimOr(value, fallback))
}

// normalizeNames lowercases, trims and de-duplicates provider names while keeping order.
func normalizeNames(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		name := strings.ToLower(strings.TrimSpace(value))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 && fallback != nil {
		return append([]string(nil), fallback...)
	}
	return out
}
