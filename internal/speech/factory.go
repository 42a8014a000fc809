package speech

import (
	"context"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/media/ffprobe"
)

// NewFromConfig builds the engine for a job asking for quality. The cloud voice
// joins the chain only for premium jobs with an API key. Clip lengths are probed
// with ffprobe when it can be found and estimated otherwise.
func NewFromConfig(cfg *config.Config, quality string, logger *slog.Logger) (*Engine, error) {
	timeout := time.Duration(cfg.Speech.TimeoutSeconds) * time.Second
	client := &http.Client{Timeout: timeout + 5*time.Second}

	var providers []Provider
	for _, name := range cfg.Speech.Chain {
		switch name {
		case "google_cloud":
			if quality != "premium" {
				logSkipped(logger, name, "job voice quality is "+quality)
				continue
			}
			if strings.TrimSpace(cfg.Speech.GoogleCloudAPIKey) == "" {
				logSkipped(logger, name, "no google cloud api key")
				continue
			}
			providers = append(providers, GoogleCloudProvider{
				APIKey:     cfg.Speech.GoogleCloudAPIKey,
				BaseURL:    cfg.Speech.GoogleCloudURL,
				HTTPClient: client,
			})
		case "google_free":
			providers = append(providers, GoogleFreeProvider{BaseURL: cfg.Speech.GoogleFreeURL, HTTPClient: client})
		case "espeak":
			providers = append(providers, EspeakProvider{Binary: cfg.Speech.EspeakBinary})
		}
	}

	var duration DurationFunc
	probe := cfg.FFprobeBinary()
	if _, err := exec.LookPath(probe); err == nil {
		duration = func(ctx context.Context, path string) (float64, error) {
			return ffprobe.Duration(ctx, probe, path)
		}
	} else if logger != nil {
		logger.Info("ffprobe not found; clip lengths will be estimated",
			logging.String("binary", probe),
			logging.Float64("words_per_second", WordsPerSecond),
		)
	}

	return NewEngine(providers, Options{
		Timeout:  timeout,
		PoolSize: cfg.Workflow.PoolSize,
		Duration: duration,
		Logger:   logger,
	})
}

func logSkipped(logger *slog.Logger, provider, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("speech provider left out of chain",
		logging.Provider(provider),
		logging.String("reason", reason),
	)
}
