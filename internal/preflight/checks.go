package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"slidecast/internal/config"
	"slidecast/internal/deps"
	"slidecast/internal/queue"
	"slidecast/internal/services/llm"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckGemini reports whether Gemini credentials are present. No request is
// issued because every call counts against the key's quota.
func CheckGemini(cfg *config.Config) Result {
	const name = "Gemini"
	if cfg == nil || !cfg.HasGemini() {
		return Result{Name: name, Detail: "no API key configured (set GEMINI_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d key(s), model %s", len(cfg.Gemini.APIKeys), cfg.Gemini.Model)}
}

// CheckLibreTranslate verifies that the self-hosted LibreTranslate server answers.
func CheckLibreTranslate(ctx context.Context, endpoint string) Result {
	const name = "LibreTranslate"

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url %q", endpoint)}
	}
	probe := parsed.Scheme + "://" + parsed.Host + "/languages"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, probe, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckQueueDatabase opens the job database and verifies its schema version,
// columns and integrity. A database that does not exist yet passes; the
// daemon creates it on first start.
func CheckQueueDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Job database"
	path := cfg.DatabasePath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: path + " (not created yet)"}
	}
	store, err := queue.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	switch {
	case err != nil:
		return Result{Name: name, Detail: err.Error()}
	case len(health.MissingColumns) > 0:
		return Result{Name: name, Detail: "missing columns: " + strings.Join(health.MissingColumns, ", ")}
	case !health.IntegrityOK:
		return Result{Name: name, Detail: "integrity check failed"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d jobs)", path, health.TotalJobs)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// The daemon and the CLI status command share this list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for segment encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for audio duration probing",
		},
		{
			Name:        "LibreOffice",
			Command:     cfg.Extraction.SofficeBinary,
			Description: "Converts legacy .ppt decks",
			Optional:    true,
		},
	}
	if fields := strings.Fields(cfg.Extraction.Command); len(fields) > 0 {
		requirements = append(requirements, deps.Requirement{
			Name:        "Extractor",
			Command:     fields[0],
			Description: "Required for slide extraction",
		})
	}
	for _, provider := range cfg.Speech.Chain {
		if provider == "espeak" {
			requirements = append(requirements, deps.Requirement{
				Name:        "espeak-ng",
				Command:     cfg.Speech.EspeakBinary,
				Description: "Offline speech fallback",
				Optional:    true,
			})
		}
	}
	return deps.CheckBinaries(requirements)
}

func fromDependency(status deps.Status) Result {
	detail := status.Command
	if !status.Available {
		detail = status.Detail
	}
	return Result{
		Name:     status.Name,
		Passed:   status.Available,
		Detail:   detail,
		Required: !status.Optional,
	}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
