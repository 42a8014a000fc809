package config

const (
	defaultOutputDir                 = "~/Videos/slidecast"
	defaultWorkDir                   = "~/.local/share/slidecast/work"
	defaultLogDir                    = "~/.local/share/slidecast/logs"
	defaultLogRetentionDays          = 30
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultAPIBind                   = "127.0.0.1:7391"
	defaultStyle                     = "engaging"
	defaultVoiceQuality              = "premium"
	defaultVoiceGender               = "female"
	defaultSourceLanguage            = "en"
	defaultTargetLanguage            = "en"
	defaultNarrationProvider         = "gemini"
	defaultNarrationMaxAttempts      = 3
	defaultNarrationBaseBackoffMS    = 2000
	defaultNarrationMaxBackoffMS     = 8000
	defaultNarrationContextSlides    = 2
	defaultNarrationContextChars     = 150
	defaultNarrationMinTextChars     = 5
	defaultNarrationTimeoutSeconds   = 60
	defaultGeminiModel               = "gemini-2.5-flash"
	defaultLLMBaseURL                = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                  = "google/gemini-2.5-flash"
	defaultLLMReferer                = "https://github.com/slidecast/slidecast"
	defaultLLMTitle                  = "slidecast"
	defaultLLMTimeoutSeconds         = 60
	defaultTranslationTimeoutSeconds = 30
	defaultGoogleFreeTranslateURL    = "https://translate.googleapis.com/translate_a/single"
	defaultLibreTranslateURL         = "http://127.0.0.1:5000/translate"
	defaultSpeechTimeoutSeconds      = 60
	defaultGoogleCloudTTSURL         = "https://texttospeech.googleapis.com/v1/text:synthesize"
	defaultGoogleFreeTTSURL          = "https://translate.google.com/translate_tts"
	defaultEspeakBinary              = "espeak-ng"
	defaultPaddingSeconds            = 0.5
	defaultFloorSeconds              = 5.0
	defaultFPS                       = 24
	defaultWidth                     = 1920
	defaultHeight                    = 1080
	defaultVideoCodec                = "libx264"
	defaultAudioCodec                = "aac"
	defaultAudioSampleRate           = 44100
	defaultAssemblyTimeoutSeconds    = 1800
	defaultFFmpegBinary              = "ffmpeg"
	defaultFFprobeBinary             = "ffprobe"
	defaultSofficeBinary             = "soffice"
	defaultExtractionTimeoutSeconds  = 600
	defaultPoolSize                  = 4
	defaultQueuePollInterval         = 5
	defaultErrorRetryInterval        = 10
	defaultHeartbeatInterval         = 15
	defaultHeartbeatTimeout          = 120
	defaultNotifyRequestTimeout      = 10
)

var (
	defaultTranslationChain = []string{"gemini", "google_free", "libretranslate"}
	defaultSpeechChain      = []string{"google_cloud", "google_free", "espeak"}
	defaultManifestFormats  = []string{"json", "yaml"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Job: Job{
			Style:          defaultStyle,
			VoiceQuality:   defaultVoiceQuality,
			VoiceGender:    defaultVoiceGender,
			SourceLanguage: defaultSourceLanguage,
			TargetLanguage: defaultTargetLanguage,
		},
		Narration: Narration{
			Provider:       defaultNarrationProvider,
			MaxAttempts:    defaultNarrationMaxAttempts,
			BaseBackoffMS:  defaultNarrationBaseBackoffMS,
			MaxBackoffMS:   defaultNarrationMaxBackoffMS,
			ContextSlides:  defaultNarrationContextSlides,
			ContextChars:   defaultNarrationContextChars,
			MinTextChars:   defaultNarrationMinTextChars,
			TimeoutSeconds: defaultNarrationTimeoutSeconds,
		},
		Gemini: Gemini{
			Model:            defaultGeminiModel,
			TranslationModel: defaultGeminiModel,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Translation: Translation{
			Chain:             append([]string(nil), defaultTranslationChain...),
			TimeoutSeconds:    defaultTranslationTimeoutSeconds,
			GoogleFreeURL:     defaultGoogleFreeTranslateURL,
			LibreTranslateURL: defaultLibreTranslateURL,
			SlideText:         true,
		},
		Speech: Speech{
			Chain:          append([]string(nil), defaultSpeechChain...),
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
			GoogleCloudURL: defaultGoogleCloudTTSURL,
			GoogleFreeURL:  defaultGoogleFreeTTSURL,
			EspeakBinary:   defaultEspeakBinary,
		},
		Timing: Timing{
			PaddingSeconds: defaultPaddingSeconds,
			FloorSeconds:   defaultFloorSeconds,
		},
		Assembly: Assembly{
			FPS:             defaultFPS,
			Width:           defaultWidth,
			Height:          defaultHeight,
			VideoCodec:      defaultVideoCodec,
			AudioCodec:      defaultAudioCodec,
			AudioSampleRate: defaultAudioSampleRate,
			ManifestFormats: append([]string(nil), defaultManifestFormats...),
			ExportScript:    true,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			TimeoutSeconds:  defaultAssemblyTimeoutSeconds,
		},
		Extraction: Extraction{
			SofficeBinary:  defaultSofficeBinary,
			TimeoutSeconds: defaultExtractionTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobStarted:     true,
			JobCompleted:   true,
			JobDegraded:    true,
			Errors:         true,
		},
		Workflow: Workflow{
			PoolSize:           defaultPoolSize,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
