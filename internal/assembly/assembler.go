package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/fileutil"
	"slidecast/internal/logging"
	"slidecast/internal/media/ffprobe"
	"slidecast/internal/services"
	"slidecast/internal/transcript"
	"slidecast/internal/workpool"
)

const stageName = "assembly"

// ProbeFunc measures a rendered file in seconds.
type ProbeFunc func(ctx context.Context, path string) (float64, error)

// Options configures an Assembler.
type Options struct {
	Encoder         Encoder
	Probe           ProbeFunc
	FPS             int
	Width           int
	Height          int
	ManifestFormats []string
	ExportScript    bool
	TextOverlay     bool
	PoolSize        int
	Logger          *slog.Logger
	Now             func() time.Time
}

// Assembler renders a timed deck into the final lecture.
type Assembler struct {
	opts   Options
	logger *slog.Logger
}

// Result lists the produced artifacts.
type Result struct {
	VideoPath      string
	ManifestPaths  []string
	ScriptPath     string
	Timeline       Timeline
	EncodedSeconds float64
	Warnings       []deck.SlideWarning
}

// New builds an assembler.
func New(opts Options) *Assembler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{opts: opts, logger: logger}
}

// NewFromConfig wires the ffmpeg encoder and ffprobe verification from the
// assembly section. Verification is skipped when ffprobe cannot be found.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Assembler {
	encoder := FFmpegEncoder{
		Binary:      cfg.FFmpegBinary(),
		Width:       cfg.Assembly.Width,
		Height:      cfg.Assembly.Height,
		VideoCodec:  cfg.Assembly.VideoCodec,
		AudioCodec:  cfg.Assembly.AudioCodec,
		SampleRate:  cfg.Assembly.AudioSampleRate,
		FillerAudio: cfg.Assembly.FillerAudio,
		OverlayFont: cfg.Assembly.OverlayFont,
	}
	var probe ProbeFunc
	if bin := cfg.FFprobeBinary(); bin != "" {
		if _, err := exec.LookPath(bin); err == nil {
			probe = func(ctx context.Context, path string) (float64, error) {
				return ffprobe.Duration(ctx, bin, path)
			}
		}
	}
	return New(Options{
		Encoder:         encoder,
		Probe:           probe,
		FPS:             cfg.Assembly.FPS,
		Width:           cfg.Assembly.Width,
		Height:          cfg.Assembly.Height,
		ManifestFormats: cfg.Assembly.ManifestFormats,
		ExportScript:    cfg.Assembly.ExportScript,
		TextOverlay:     cfg.Assembly.TextOverlay,
		PoolSize:        cfg.Workflow.PoolSize,
		Logger:          logger,
	})
}

// Assemble renders d into layout. Slides without an image render black. An
// image that extraction placed but that has since gone missing also adds an
// assembly warning to the slide, so d is updated in place and the caller is
// expected to persist it. Any encoder failure is an ErrAssembly.
func (a *Assembler) Assemble(ctx context.Context, d *deck.Deck, layout Layout, targetLanguage string) (Result, error) {
	if a.opts.Encoder == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "assemble", "no encoder configured", nil)
	}
	tl, err := BuildTimeline(d, a.opts.FPS)
	if err != nil {
		return Result{}, err
	}
	logger := logging.WithContext(ctx, a.logger)

	specs := make([]SegmentSpec, len(tl.Segments))
	for i, seg := range tl.Segments {
		slide := &d.Slides[i]
		spec := SegmentSpec{
			Index:  seg.Index,
			Frames: seg.Frames(),
			FPS:    tl.FPS,
			Output: layout.SegmentPath(seg.Index),
		}
		switch {
		case fileutil.NonEmptyFile(slide.ImageRef):
			spec.Image = slide.ImageRef
			slide.ClearWarnings(stageName)
			if text := slide.OverlayText(); a.opts.TextOverlay && text != "" {
				spec.Overlay = WrapOverlay(text, a.opts.Width, a.opts.Height)
			}
		case slide.ImageRef == "":
			// Extraction already recorded the missing image on the slide.
			slide.ClearWarnings(stageName)
		default:
			slide.SetWarning(stageName, fmt.Sprintf("slide image %q is missing; rendered a black frame", slide.ImageRef))
			logging.WarnWithContext(logging.WithContext(services.WithSlideIndex(ctx, i), a.logger), "slide image missing", logging.EventSlideDegraded,
				logging.String("image", slide.ImageRef),
				logging.String(logging.FieldImpact, "slide renders as a black frame"),
				logging.String(logging.FieldErrorHint, "re-run extraction or check the images directory"),
			)
		}
		if slide.Audio != nil && fileutil.NonEmptyFile(slide.Audio.Path) {
			spec.Audio = slide.Audio.Path
		}
		specs[i] = spec
	}

	if err := os.MkdirAll(layout.SegmentsDir(), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrAssembly, stageName, "assemble", "create segments directory", err)
	}
	pool := workpool.New(workpool.Unordered, a.opts.PoolSize)
	err = pool.Run(ctx, len(specs), func(ctx context.Context, i int) error {
		if err := a.opts.Encoder.EncodeSegment(ctx, specs[i]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return services.Wrap(services.ErrAssembly, stageName, "encode segment", fmt.Sprintf("slide %d", specs[i].Index), err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	segments := make([]string, len(specs))
	for i, spec := range specs {
		segments[i] = spec.Output
	}
	video := layout.VideoPath()
	if err := a.opts.Encoder.Concat(ctx, segments, video); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, services.Wrap(services.ErrAssembly, stageName, "concat", "join segments", err)
	}

	result := Result{VideoPath: video, Timeline: tl}
	result.EncodedSeconds = a.verify(ctx, logger, video, tl)

	manifest := BuildManifest(d, tl, ManifestInput{
		TargetLanguage: targetLanguage,
		Video:          video,
		Width:          a.opts.Width,
		Height:         a.opts.Height,
		EncodedSeconds: result.EncodedSeconds,
		GeneratedAt:    a.opts.Now(),
	})
	paths, err := WriteManifests(layout, manifest, a.opts.ManifestFormats)
	if err != nil {
		return Result{}, services.Wrap(services.ErrAssembly, stageName, "manifest", "write manifest", err)
	}
	result.ManifestPaths = paths

	if a.opts.ExportScript {
		title := d.Title
		if title == "" {
			title = layout.Slug
		}
		if err := transcript.Write(layout.ScriptPath(), title, d); err != nil {
			logging.WarnWithContext(logger, "script export failed", "script_export_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "lecture has no script document"),
				logging.String(logging.FieldErrorHint, "check output directory permissions"),
			)
		} else {
			result.ScriptPath = layout.ScriptPath()
		}
	}
	result.Warnings = d.Warnings()
	return result, nil
}

// verify compares the encoded length with the plan and logs a mismatch larger
// than one frame. It returns the measured length, or 0 when it was not probed.
func (a *Assembler) verify(ctx context.Context, logger *slog.Logger, video string, tl Timeline) float64 {
	if a.opts.Probe == nil {
		return 0
	}
	encoded, err := a.opts.Probe(ctx, video)
	if err != nil {
		logger.Warn("could not verify encoded duration",
			logging.String(logging.FieldEventType, "duration_unverified"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "encoded length not checked against the timeline"),
			logging.String(logging.FieldErrorHint, "check that ffprobe is installed"),
		)
		return 0
	}
	frame := 1 / float64(tl.FPS)
	if drift := math.Abs(encoded - tl.TotalSeconds()); drift > frame {
		logging.WarnWithContext(logger, "encoded duration differs from timeline", "duration_mismatch",
			logging.Float64("planned_seconds", tl.TotalSeconds()),
			logging.Float64("encoded_seconds", encoded),
			logging.Float64("drift_seconds", drift),
			logging.String(logging.FieldImpact, "audio may drift from slide changes"),
			logging.String(logging.FieldErrorHint, "inspect the segments directory"),
		)
	}
	return encoded
}
