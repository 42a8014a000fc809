package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"slidecast/internal/assembly"
	"slidecast/internal/config"
	"slidecast/internal/daemon"
	"slidecast/internal/deps"
	"slidecast/internal/extraction"
	"slidecast/internal/logging"
	"slidecast/internal/narration"
	"slidecast/internal/notifications"
	"slidecast/internal/preflight"
	"slidecast/internal/queue"
	"slidecast/internal/speech"
	"slidecast/internal/staging"
	"slidecast/internal/timing"
	"slidecast/internal/translation"
	"slidecast/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the slidecast daemon runtime loop and blocks until the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("slidecast-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	if pruned := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "slidecast-*.log", Exclude: []string{logPath}},
	); pruned > 0 {
		logger.Info("old daemon logs pruned", logging.Int("removed", pruned))
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	cleanWorkDir(signalCtx, cfg, store, logger)

	notifier := notifications.NewService(cfg)
	workflowManager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier,
		workflow.WithPreflight(true))
	workflowManager.ConfigureStages(Stages(cfg, store, logger))

	d, err := daemon.New(cfg, store, logger, workflowManager)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration, provider credentials and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("slidecast daemon shutting down")
	return nil
}

// Stages builds the production stage handlers for every pipeline step.
func Stages(cfg *config.Config, store *queue.Store, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Extraction:  extraction.NewStage(cfg, store, logger),
		Narration:   narration.NewStage(cfg, store, logger),
		Translation: translation.NewStage(cfg, store, logger),
		Synthesis:   speech.NewStage(cfg, store, logger),
		Timing:      timing.NewStage(cfg, store, logger),
		Assembly:    assembly.NewStage(cfg, store, logger),
	}
}

// cleanWorkDir drops work roots left behind by jobs that no longer exist and
// by finished jobs older than the log retention window.
func cleanWorkDir(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) {
	jobs, err := store.List(ctx)
	if err != nil {
		logger.Warn("skip work directory cleanup", logging.Error(err))
		return
	}
	known := make(map[string]struct{}, len(jobs))
	active := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		name := filepath.Base(job.WorkRoot(cfg.Paths.WorkDir))
		known[name] = struct{}{}
		if !job.IsTerminal() {
			active[name] = struct{}{}
		}
	}
	staging.CleanOrphaned(ctx, cfg.Paths.WorkDir, known, logger)
	if cfg.Logging.RetentionDays > 0 {
		maxAge := time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
		staging.CleanStale(ctx, cfg.Paths.WorkDir, maxAge, active, logger)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("gemini_key_present", cfg.HasGemini()),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("cloud_tts_key_present", strings.TrimSpace(cfg.Speech.GoogleCloudAPIKey) != ""),
		logging.String("translation_chain", strings.Join(cfg.Translation.Chain, ",")),
		logging.String("speech_chain", strings.Join(cfg.Speech.Chain, ",")),
		logging.String("inbox_dir", cfg.Paths.InboxDir),
	}
	for _, status := range statuses {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, missing := range deps.MissingRequired(statuses) {
		logging.WarnWithContext(logger, "required binary missing; affected stages will fail", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("reason", missing.Detail),
			logging.String(logging.FieldErrorHint, missing.Description),
			logging.String(logging.FieldImpact, "jobs fail when they reach a stage that needs it"),
		)
	}
}
