package extraction

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/deck"
	"slidecast/internal/services"
)

// CommandExtractor runs an external extraction tool. Command is split on
// whitespace; the placeholders {source} and {workdir} are substituted per
// argument. The tool must write deck.json into the work dir.
type CommandExtractor struct {
	Command string
	Timeout time.Duration
	Import  ManifestExtractor
}

// Extract runs the tool and imports its manifest.
func (c CommandExtractor) Extract(ctx context.Context, source, workDir string) (*deck.Deck, error) {
	fields := strings.Fields(c.Command)
	if len(fields) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "run extractor", "extraction.command is not configured", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "run extractor", "create work dir", err)
	}
	args := make([]string, 0, len(fields)-1)
	for _, field := range fields[1:] {
		field = strings.ReplaceAll(field, "{source}", source)
		field = strings.ReplaceAll(field, "{workdir}", workDir)
		args = append(args, field)
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, fields[0], args...) //nolint:gosec
	cmd.Dir = workDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := fmt.Sprintf("%s: %s", fields[0], strings.TrimSpace(string(output)))
		if runCtx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, stageName, "run extractor", detail, err)
		}
		return nil, services.Wrap(services.ErrExtraction, stageName, "run extractor", detail, err)
	}

	d, err := c.Import.Extract(ctx, filepath.Join(workDir, ManifestName), workDir)
	if err != nil {
		return nil, err
	}
	d.SourcePath = source
	return d, nil
}
