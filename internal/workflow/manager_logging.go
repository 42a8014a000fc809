package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/services"
)

func (m *Manager) baseLogger() *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger
}

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	name := string(lane.kind)
	return m.baseLogger().With(
		logging.String(logging.FieldComponent, "workflow-"+name+"-runner"),
		logging.String(logging.FieldLane, name),
	)
}

func (m *Manager) stageLoggerForLane(ctx context.Context, laneLogger *slog.Logger) *slog.Logger {
	base := laneLogger
	if base == nil {
		base = m.baseLogger()
	}
	logger := logging.WithContext(ctx, base)
	if m.cfg != nil {
		if stage, ok := services.StageFromContext(ctx); ok {
			if override := stageOverrideLevel(m.cfg.Logging.StageOverrides, stage); override != "" {
				logger = logging.WithLevelOverride(logger, logging.ParseLevel(override))
			}
		}
	}
	return logger
}

func stageOverrideLevel(overrides map[string]string, stage string) string {
	if len(overrides) == 0 {
		return ""
	}
	stage = strings.ToLower(strings.TrimSpace(stage))
	if stage == "" {
		return ""
	}
	for key, value := range overrides {
		if strings.ToLower(strings.TrimSpace(key)) == stage {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func withStageContext(ctx context.Context, lane *laneState, stageName string, job *queue.Job, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if lane != nil {
		ctx = services.WithLane(ctx, string(lane.kind))
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
