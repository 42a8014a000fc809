package narration

import (
	"time"

	"slidecast/internal/config"
	"slidecast/internal/services"
	"slidecast/internal/services/gemini"
	"slidecast/internal/services/llm"
)

// NewGenerator builds the generator selected by narration.provider.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.Narration.Provider {
	case "gemini":
		client, err := gemini.New(gemini.Config{APIKeys: cfg.Gemini.APIKeys, Model: cfg.Gemini.Model})
		if err != nil {
			return nil, err
		}
		return GeminiGenerator{Client: client}, nil
	case "openrouter":
		llmCfg := cfg.GetLLM()
		client := llm.NewClient(llm.Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: cfg.Narration.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1))
		if !client.Configured() {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "new generator", "llm api_key and model required for openrouter narration", nil)
		}
		return OpenRouterGenerator{Client: client}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new generator", "unknown provider "+cfg.Narration.Provider, nil)
	}
}

// OptionsFromConfig converts the narration section into engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	n := cfg.Narration
	opts := DefaultOptions()
	opts.MaxAttempts = n.MaxAttempts
	opts.BaseBackoff = time.Duration(n.BaseBackoffMS) * time.Millisecond
	opts.MaxBackoff = time.Duration(n.MaxBackoffMS) * time.Millisecond
	opts.Timeout = time.Duration(n.TimeoutSeconds) * time.Second
	opts.ContextSlides = n.ContextSlides
	opts.ContextChars = n.ContextChars
	opts.MinTextChars = n.MinTextChars
	return opts
}
