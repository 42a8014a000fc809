package ffprobe_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/media/ffprobe"
)

func TestResultHelpers(t *testing.T) {
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "video", Width: 1920, Height: 1080, FrameRate: "24/1"},
			{CodecType: "audio", SampleRate: "44100"},
		},
		Format: ffprobe.Format{Duration: "12.5", Size: "1000"},
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1920 || video.FPS() != 24 {
		t.Fatalf("unexpected video stream %+v", video)
	}
	if _, ok := result.AudioStream(); !ok {
		t.Fatal("expected audio stream")
	}
	if result.DurationSeconds() != 12.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := ffprobe.Result{Streams: []ffprobe.Stream{{Duration: "3.2"}, {Duration: "4.1"}}}
	if got := result.DurationSeconds(); got != 4.1 {
		t.Fatalf("expected longest stream duration, got %v", got)
	}
	bad := ffprobe.Result{Format: ffprobe.Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(bad.DurationSeconds()) || bad.SizeBytes() != 0 {
		t.Fatalf("unexpected values for malformed report: %v %d", bad.DurationSeconds(), bad.SizeBytes())
	}
}

func TestDurationRunsBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\necho '{\"streams\":[],\"format\":{\"duration\":\"6.75\"}}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	got, err := ffprobe.Duration(context.Background(), script, filepath.Join(dir, "clip.mp3"))
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if got != 6.75 {
		t.Fatalf("Duration = %v", got)
	}
}
