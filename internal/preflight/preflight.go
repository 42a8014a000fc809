package preflight

import (
	"context"
	"slices"

	"slidecast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Required bool
}

// RunAll executes all applicable preflight checks for the given config.
// Remote provider checks only run when the provider appears in a chain.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		required(CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir)),
		required(CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir)),
		required(CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)),
		required(CheckQueueDatabase(ctx, cfg)),
	}
	if cfg.Paths.InboxDir != "" {
		results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, fromDependency(status))
	}

	if usesGemini(cfg) {
		results = append(results, CheckGemini(cfg))
	}
	if usesOpenRouter(cfg) {
		results = append(results, CheckLLM(ctx, "OpenRouter LLM", cfg.GetLLM()))
	}
	if slices.Contains(cfg.Translation.Chain, "libretranslate") {
		results = append(results, CheckLibreTranslate(ctx, cfg.Translation.LibreTranslateURL))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func required(r Result) Result {
	r.Required = true
	return r
}

func usesGemini(cfg *config.Config) bool {
	return cfg.Narration.Provider == "gemini" || slices.Contains(cfg.Translation.Chain, "gemini")
}

func usesOpenRouter(cfg *config.Config) bool {
	return cfg.Narration.Provider == "openrouter" || slices.Contains(cfg.Translation.Chain, "openrouter")
}
