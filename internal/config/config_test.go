package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"slidecast/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key-a, key-b")
	t.Setenv("GOOGLE_TTS_API_KEY", "tts-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "slidecast", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "Videos", "slidecast") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if got := cfg.Gemini.APIKeys; len(got) != 2 || got[0] != "key-a" || got[1] != "key-b" {
		t.Fatalf("expected gemini keys from env, got %v", got)
	}
	if cfg.Speech.GoogleCloudAPIKey != "tts-key" {
		t.Fatalf("expected google tts key from env, got %q", cfg.Speech.GoogleCloudAPIKey)
	}
	if cfg.Timing.FloorSeconds != 5.0 || cfg.Timing.PaddingSeconds != 0.5 {
		t.Fatalf("unexpected timing defaults: %+v", cfg.Timing)
	}
	if cfg.Assembly.FPS != 24 {
		t.Fatalf("unexpected fps default: %d", cfg.Assembly.FPS)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.LogDir, "jobs.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.WorkDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "slidecast.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Job struct {
			Style          string `toml:"style"`
			TargetLanguage string `toml:"target_language"`
		} `toml:"job"`
		Translation struct {
			Chain []string `toml:"chain"`
		} `toml:"translation"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Job.Style = " Storyteller "
	custom.Job.TargetLanguage = "FR"
	custom.Translation.Chain = []string{"google_free", "GOOGLE_FREE", "libretranslate"}

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Job.Style != "storyteller" {
		t.Fatalf("expected normalized style, got %q", cfg.Job.Style)
	}
	if cfg.Job.TargetLanguage != "fr" {
		t.Fatalf("expected lowercased target language, got %q", cfg.Job.TargetLanguage)
	}
	if got := cfg.Translation.Chain; len(got) != 2 || got[0] != "google_free" || got[1] != "libretranslate" {
		t.Fatalf("expected de-duplicated chain, got %v", got)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
}

func TestValidateRejectsChainWithoutOfflineTail(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.Chain = []string{"espeak", "google_free"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "speech.chain must end with an offline provider") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown style", func(c *config.Config) { c.Job.Style = "grumpy" }, "job.style"},
		{"unknown translation provider", func(c *config.Config) { c.Translation.Chain = []string{"babelfish", "libretranslate"} }, "unknown provider"},
		{"empty speech chain", func(c *config.Config) { c.Speech.Chain = nil }, "speech.chain must list"},
		{"zero floor", func(c *config.Config) { c.Timing.FloorSeconds = 0 }, "timing.floor_seconds"},
		{"odd width", func(c *config.Config) { c.Assembly.Width = 1921 }, "must be even"},
		{"heartbeat ordering", func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval }, "heartbeat_timeout"},
		{"bad manifest format", func(c *config.Config) { c.Assembly.ManifestFormats = []string{"xml"} }, "manifest_formats"},
		{"bad narration provider", func(c *config.Config) { c.Narration.Provider = "gpt" }, "narration.provider"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Job.Style != "engaging" {
		t.Fatalf("unexpected sample style: %q", cfg.Job.Style)
	}
}
