package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/queue"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLibreTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/languages" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[{"code":"en"}]`))
	}))
	defer srv.Close()

	if result := CheckLibreTranslate(context.Background(), srv.URL+"/translate"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckLibreTranslate(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	cfg := config.LLMConfig{APIKey: "good-key", BaseURL: srv.URL, Model: "demo"}
	if result := CheckLLM(context.Background(), "LLM", cfg); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	cfg.APIKey = "bad-key"
	if result := CheckLLM(context.Background(), "LLM", cfg); result.Passed {
		t.Fatal("expected failure for rejected key")
	}

	cfg.APIKey = ""
	if result := CheckLLM(context.Background(), "LLM", cfg); result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Narration.Provider = "none"
	cfg.Translation.Chain = []string{"google_free"}
	cfg.Speech.Chain = []string{"google_free"}
	return cfg
}

func TestRunAll_DirectoriesAreRequired(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Paths.WorkDir = filepath.Join(t.TempDir(), "missing")

	results := RunAll(context.Background(), &cfg)
	failed := Failed(results)
	found := false
	for _, r := range failed {
		if r.Name == "Work directory" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected work directory in required failures, got %+v", failed)
	}
}

func TestRunAll_MissingBinariesAreClassified(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Assembly.FFmpegBinary = "clearly-not-ffmpeg"
	cfg.Speech.Chain = []string{"espeak"}
	cfg.Speech.EspeakBinary = "clearly-not-espeak"

	byName := map[string]Result{}
	for _, r := range RunAll(context.Background(), &cfg) {
		byName[r.Name] = r
	}
	ffmpeg, ok := byName["FFmpeg"]
	if !ok || ffmpeg.Passed || !ffmpeg.Required {
		t.Fatalf("expected required ffmpeg failure, got %+v", ffmpeg)
	}
	espeak, ok := byName["espeak-ng"]
	if !ok || espeak.Passed || espeak.Required {
		t.Fatalf("expected optional espeak failure, got %+v", espeak)
	}
	if _, ok := byName["Gemini"]; ok {
		t.Fatal("gemini check should be skipped when no chain uses it")
	}
}

func TestRunAll_GeminiKeyPresence(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Narration.Provider = "gemini"

	check := func() Result {
		for _, r := range RunAll(context.Background(), &cfg) {
			if r.Name == "Gemini" {
				return r
			}
		}
		t.Fatal("expected a Gemini result")
		return Result{}
	}
	if check().Passed {
		t.Fatal("expected failure without keys")
	}
	cfg.Gemini.APIKeys = []string{"k1"}
	if got := check(); !got.Passed || got.Required {
		t.Fatalf("expected optional passing Gemini check, got %+v", got)
	}
}

func TestCheckQueueDatabase(t *testing.T) {
	cfg := offlineConfig(t)

	if got := CheckQueueDatabase(context.Background(), &cfg); !got.Passed {
		t.Fatalf("expected missing database to pass, got %+v", got)
	}

	store, err := queue.Open(&cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := CheckQueueDatabase(context.Background(), &cfg)
	if !got.Passed {
		t.Fatalf("expected healthy database, got %+v", got)
	}
	if !strings.Contains(got.Detail, "0 jobs") {
		t.Fatalf("unexpected detail %q", got.Detail)
	}
}
