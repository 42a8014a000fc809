package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Provider chains default to their offline tails so no test reaches the network.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Gemini.APIKeys = nil
	cfgVal.LLM.APIKey = ""
	cfgVal.Speech.GoogleCloudAPIKey = ""
	cfgVal.Translation.Chain = []string{"libretranslate"}
	cfgVal.Speech.Chain = []string{"espeak"}
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithGeminiKey configures a Gemini API key.
func WithGeminiKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gemini.APIKeys = []string{key}
	}
}

// WithTargetLanguage sets the default job target language.
func WithTargetLanguage(lang string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Job.TargetLanguage = lang
	}
}

// WithInboxDir overrides the watched inbox directory.
func WithInboxDir(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.InboxDir = dir
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "espeak-ng", "soffice"}
		}
		for _, name := range names {
			writeStub(b, name, "#!/bin/sh\nexit 0\n")
		}
	}
}

// WithBinaryScript installs name on PATH running the given shell script body.
func WithBinaryScript(name, script string) ConfigOption {
	return func(b *configBuilder) {
		writeStub(b, name, "#!/bin/sh\n"+script+"\n")
	}
}

func writeStub(b *configBuilder, name, script string) {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
	if b.cfg.Assembly.FFmpegBinary == name || (name == "ffmpeg" && b.cfg.Assembly.FFmpegBinary == "") {
		b.cfg.Assembly.FFmpegBinary = target
	}
	if b.cfg.Assembly.FFprobeBinary == name || (name == "ffprobe" && b.cfg.Assembly.FFprobeBinary == "") {
		b.cfg.Assembly.FFprobeBinary = target
	}
	if name == b.cfg.Speech.EspeakBinary {
		b.cfg.Speech.EspeakBinary = target
	}
	if name == b.cfg.Extraction.SofficeBinary {
		b.cfg.Extraction.SofficeBinary = target
	}
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		b.t.Fatalf("set PATH: %v", err)
	}
	b.t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
