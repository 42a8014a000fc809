package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slidecast/internal/logging"
	"slidecast/internal/preflight"
)

// runPreflightChecks validates directories, tools and provider readiness
// before any job is processed. Returns nil when all checks pass, or an error
// describing all failures.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, m.cfg)
	if len(results) == 0 {
		return nil
	}

	var failures []string
	for _, r := range results {
		switch {
		case r.Passed:
			logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		case !r.Required:
			logger.Warn("preflight check failed; continuing",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_degraded"),
				logging.String(logging.FieldImpact, "the affected provider falls back to the next in its chain"),
			)
		default:
			logger.Error("preflight check failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_failed"),
				logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
			)
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
