package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/services"
)

// SupportedExtensions lists the source types the dispatcher accepts.
var SupportedExtensions = []string{".pptx", ".ppt", ".json"}

// Supported reports whether path looks like a deck source.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Dispatcher selects the extraction path by source type: directories and
// .json go to the manifest importer, .ppt is converted first, and .pptx runs
// the configured command.
type Dispatcher struct {
	Manifest  Extractor
	Command   Extractor
	Converter Converter
}

// NewFromConfig wires the extraction collaborators.
func NewFromConfig(cfg *config.Config) *Dispatcher {
	timeout := time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second
	manifest := ManifestExtractor{}
	return &Dispatcher{
		Manifest:  manifest,
		Command:   CommandExtractor{Command: cfg.Extraction.Command, Timeout: timeout, Import: manifest},
		Converter: SofficeConverter{Binary: cfg.Extraction.SofficeBinary, Timeout: timeout},
	}
}

// Extract dispatches source and validates the resulting deck.
func (d *Dispatcher) Extract(ctx context.Context, source, workDir string) (*deck.Deck, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "extract", "source not readable", err)
	}
	var out *deck.Deck
	switch ext := strings.ToLower(filepath.Ext(source)); {
	case info.IsDir() || ext == ".json":
		out, err = d.Manifest.Extract(ctx, source, workDir)
	case ext == ".ppt":
		if d.Converter == nil {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "extract", "no converter for legacy .ppt", nil)
		}
		converted, convErr := d.Converter.Convert(ctx, source, filepath.Join(workDir, "converted"))
		if convErr != nil {
			return nil, convErr
		}
		out, err = d.Command.Extract(ctx, converted, workDir)
		if out != nil {
			out.SourcePath = source
		}
	case ext == ".pptx":
		out, err = d.Command.Extract(ctx, source, workDir)
	default:
		return nil, services.Wrap(services.ErrValidation, stageName, "extract", fmt.Sprintf("unsupported source type %q", ext), nil)
	}
	if err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "extract", "invalid deck", err)
	}
	return out, nil
}
