package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleHeaderShowsComponentAndJobSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "subject.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldComponent, "workflow"),
		logging.String(logging.FieldJobID, "0123456789abcdef"),
		logging.String(logging.FieldStage, "translation"),
		logging.String(logging.FieldLane, "content"),
		logging.Slide(2),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, fragment := range []string{"[workflow]", "Content · Job 01234567 slide 3 (translation)", "stage completed"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in %q", fragment, text)
		}
	}
}

func TestConsoleInfoHidesDebugOnlyFieldsAndRepeats(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "fields.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logger.With(logging.String(logging.FieldJobID, "job-1"))

	logger.Info("first", logging.String("style", "academic"), logging.String("source_path", "/decks/a.pdf"))
	logger.Info("second", logging.String("style", "academic"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if strings.Contains(text, "/decks/a.pdf") {
		t.Fatalf("expected source path hidden at info level, got %q", text)
	}
	if !strings.Contains(text, "+ 1 more field hidden") {
		t.Fatalf("expected hidden field count, got %q", text)
	}
	if got := strings.Count(text, "- Style: academic"); got != 1 {
		t.Fatalf("expected repeated style printed once, got %d in %q", got, text)
	}
}

func TestNewJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["msg"] != "json message" || entry["level"] != "info" || entry["k"] != "v" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

type captureHandler struct {
	attrs   []slog.Attr
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{attrs: append(append([]slog.Attr{}, h.attrs...), attrs...), records: h.records}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-123")
	ctx = services.WithStage(ctx, "speech")
	ctx = services.WithSlideIndex(ctx, 4)
	ctx = services.WithRequestID(ctx, "req-xyz")

	base := &captureHandler{}
	logger := logging.WithContext(ctx, slog.New(base))
	handler, ok := logger.Handler().(*captureHandler)
	if !ok {
		t.Fatalf("unexpected handler type %T", logger.Handler())
	}

	want := map[string]string{
		logging.FieldJobID:         "job-123",
		logging.FieldStage:         "speech",
		logging.FieldSlideIndex:    "4",
		logging.FieldCorrelationID: "req-xyz",
	}
	for _, attr := range handler.attrs {
		if expected, ok := want[attr.Key]; ok {
			if attr.Value.String() != expected {
				t.Fatalf("field %s = %q, want %q", attr.Key, attr.Value.String(), expected)
			}
			delete(want, attr.Key)
		}
	}
	if len(want) > 0 {
		t.Fatalf("missing fields: %v", want)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	handler := &captureHandler{}
	logging.WarnWithContext(slog.New(handler), "provider failed", logging.EventProviderFailed, logging.String(logging.FieldProvider, "gemini"))
	if len(handler.records) != 1 {
		t.Fatalf("expected one record, got %d", len(handler.records))
	}
	keys := map[string]string{}
	handler.records[0].Attrs(func(a slog.Attr) bool {
		keys[a.Key] = a.Value.String()
		return true
	})
	if keys[logging.FieldEventType] != logging.EventProviderFailed {
		t.Fatalf("unexpected event type %q", keys[logging.FieldEventType])
	}
	if keys[logging.FieldErrorHint] == "" || keys[logging.FieldImpact] == "" {
		t.Fatalf("expected hint and impact defaults, got %v", keys)
	}
}

func TestLevelOverrideSuppressesInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "override.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	quiet := logging.WithLevelOverride(logger, slog.LevelWarn)
	quiet.Info("hidden line")
	quiet.Warn("visible line")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden line") || !strings.Contains(string(content), "visible line") {
		t.Fatalf("unexpected override output %q", content)
	}
}

func TestCleanupOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	newPath := filepath.Join(dir, "new.log")
	for _, path := range []string{oldPath, newPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected new log kept: %v", err)
	}
}

func TestDomainAttrKeys(t *testing.T) {
	cases := []struct {
		attr  logging.Attr
		key   string
		value string
	}{
		{logging.Provider("gemini"), logging.FieldProvider, "gemini"},
		{logging.Slide(4), logging.FieldSlideIndex, "4"},
		{logging.SourceLanguage("en"), "source_language", "en"},
		{logging.TargetLanguage("pt-BR"), "target_language", "pt-BR"},
		{logging.SlideCount(12), "slides", "12"},
	}
	for _, tc := range cases {
		if tc.attr.Key != tc.key {
			t.Fatalf("key = %q, want %q", tc.attr.Key, tc.key)
		}
		if got := tc.attr.Value.String(); got != tc.value {
			t.Fatalf("%s value = %q, want %q", tc.key, got, tc.value)
		}
	}
}
