package translation

import (
	"log/slog"
	"net/http"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/services/gemini"
	"slidecast/internal/services/llm"
)

// NewFromConfig builds the engine described by the translation section.
// Credentialed providers without credentials are left out of the chain; the
// validated offline tail always remains.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	timeout := time.Duration(cfg.Translation.TimeoutSeconds) * time.Second
	client := &http.Client{Timeout: timeout + 5*time.Second}

	var providers []Provider
	for _, name := range cfg.Translation.Chain {
		switch name {
		case "gemini":
			if !cfg.HasGemini() {
				logSkipped(logger, name, "no gemini api key")
				continue
			}
			model := cfg.Gemini.TranslationModel
			if model == "" {
				model = cfg.Gemini.Model
			}
			g, err := gemini.New(gemini.Config{APIKeys: cfg.Gemini.APIKeys, Model: model})
			if err != nil {
				return nil, err
			}
			providers = append(providers, GeminiProvider{Client: g})
		case "openrouter":
			llmCfg := cfg.GetLLM()
			c := llm.NewClient(llm.Config{
				APIKey:         llmCfg.APIKey,
				BaseURL:        llmCfg.BaseURL,
				Model:          llmCfg.Model,
				Referer:        llmCfg.Referer,
				Title:          llmCfg.Title,
				TimeoutSeconds: cfg.Translation.TimeoutSeconds,
			}, llm.WithRetryMaxAttempts(1))
			if !c.Configured() {
				logSkipped(logger, name, "no llm api key")
				continue
			}
			providers = append(providers, OpenRouterProvider{Client: c})
		case "google_free":
			providers = append(providers, GoogleFreeProvider{BaseURL: cfg.Translation.GoogleFreeURL, HTTPClient: client})
		case "libretranslate":
			providers = append(providers, LibreTranslateProvider{
				BaseURL:    cfg.Translation.LibreTranslateURL,
				APIKey:     cfg.Translation.LibreTranslateToken,
				HTTPClient: client,
			})
		}
	}
	return NewEngine(providers, Options{Timeout: timeout, PoolSize: cfg.Workflow.PoolSize, SlideText: cfg.Translation.SlideText, Logger: logger})
}

func logSkipped(logger *slog.Logger, provider, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("translation provider left out of chain",
		logging.Provider(provider),
		logging.String("reason", reason),
	)
}
