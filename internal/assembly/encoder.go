package assembly

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// SegmentSpec is everything needed to render one slide. An empty Image renders
// a black frame; an empty Audio renders silence or the filler sound. Overlay is
// pre-wrapped text drawn over the lower part of the frame.
type SegmentSpec struct {
	Index   int
	Image   string
	Audio   string
	Overlay string
	Frames  int
	FPS     int
	Output  string
}

// OverlayPath is the text file the overlay is read from.
func (s SegmentSpec) OverlayPath() string {
	return strings.TrimSuffix(s.Output, filepath.Ext(s.Output)) + ".txt"
}

// Seconds returns the exact segment length.
func (s SegmentSpec) Seconds() float64 {
	if s.FPS <= 0 {
		return 0
	}
	return float64(s.Frames) / float64(s.FPS)
}

// Encoder renders segments and joins them.
type Encoder interface {
	EncodeSegment(ctx context.Context, spec SegmentSpec) error
	Concat(ctx context.Context, segments []string, output string) error
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// FFmpegEncoder renders segments with the ffmpeg binary. Every segment uses the
// same codecs and dimensions, so the concat step is a stream copy.
type FFmpegEncoder struct {
	Binary      string
	Width       int
	Height      int
	VideoCodec  string
	AudioCodec  string
	SampleRate  int
	FillerAudio string
	OverlayFont string
	Run         CommandRunner
}

func (e FFmpegEncoder) runner() CommandRunner {
	if e.Run != nil {
		return e.Run
	}
	return defaultCommandRunner
}

func (e FFmpegEncoder) binary() string {
	if strings.TrimSpace(e.Binary) == "" {
		return "ffmpeg"
	}
	return e.Binary
}

// EncodeSegment renders one slide segment.
func (e FFmpegEncoder) EncodeSegment(ctx context.Context, spec SegmentSpec) error {
	if err := os.MkdirAll(filepath.Dir(spec.Output), 0o755); err != nil {
		return fmt.Errorf("create segment directory: %w", err)
	}
	if spec.Overlay != "" {
		if err := os.WriteFile(spec.OverlayPath(), []byte(spec.Overlay), 0o644); err != nil {
			return fmt.Errorf("write overlay text: %w", err)
		}
	}
	return e.runner()(ctx, e.binary(), e.SegmentArgs(spec)...)
}

// SegmentArgs builds the ffmpeg arguments for spec.
func (e FFmpegEncoder) SegmentArgs(spec SegmentSpec) []string {
	fps := strconv.Itoa(spec.FPS)
	size := fmt.Sprintf("%dx%d", e.Width, e.Height)
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	if spec.Image != "" {
		args = append(args, "-loop", "1", "-framerate", fps, "-i", spec.Image)
	} else {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=%s:r=%s", size, fps))
	}
	switch {
	case spec.Audio != "":
		args = append(args, "-i", spec.Audio)
	case e.FillerAudio != "":
		args = append(args, "-stream_loop", "-1", "-i", e.FillerAudio)
	default:
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", e.SampleRate))
	}

	video := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=%s,format=yuv420p",
		e.Width, e.Height, e.Width, e.Height, fps)
	if spec.Overlay != "" {
		video += "," + overlayFilter(spec.OverlayPath(), e.OverlayFont, e.Height)
	}
	args = append(args,
		"-filter:v", video,
		"-filter:a", "apad",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-frames:v", strconv.Itoa(spec.Frames),
		"-t", strconv.FormatFloat(spec.Seconds(), 'f', 6, 64),
		"-c:v", e.VideoCodec,
		"-c:a", e.AudioCodec,
		"-ar", strconv.Itoa(e.SampleRate),
		"-ac", "2",
		"-movflags", "+faststart",
		spec.Output,
	)
	return args
}

// Concat joins segments in order with the concat demuxer.
func (e FFmpegEncoder) Concat(ctx context.Context, segments []string, output string) error {
	if len(segments) == 0 {
		return fmt.Errorf("concat: no segments")
	}
	listPath := filepath.Join(filepath.Dir(segments[0]), "concat.txt")
	var b strings.Builder
	for _, segment := range segments {
		abs, err := filepath.Abs(segment)
		if err != nil {
			return fmt.Errorf("resolve segment path: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", "-movflags", "+faststart", output}
	return e.runner()(ctx, e.binary(), args...)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
