package extraction

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/services"
)

// Converter upgrades a legacy presentation to .pptx and returns the new path.
type Converter interface {
	Convert(ctx context.Context, source, outDir string) (string, error)
}

// SofficeConverter converts with LibreOffice in headless mode.
type SofficeConverter struct {
	Binary  string
	Timeout time.Duration
}

// Convert runs soffice --headless --convert-to pptx.
func (s SofficeConverter) Convert(ctx context.Context, source, outDir string) (string, error) {
	binary := strings.TrimSpace(s.Binary)
	if binary == "" {
		binary = "soffice"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExtraction, stageName, "convert", "create output dir", err)
	}
	runCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, binary, "--headless", "--convert-to", "pptx", "--outdir", outDir, source) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExtraction, stageName, "convert",
			fmt.Sprintf("soffice: %s", strings.TrimSpace(string(output))), err)
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	converted := filepath.Join(outDir, base+".pptx")
	if _, err := os.Stat(converted); err != nil {
		return "", services.Wrap(services.ErrExtraction, stageName, "convert", "soffice produced no pptx", err)
	}
	return converted, nil
}
