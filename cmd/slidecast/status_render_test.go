package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"slidecast/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestColorStatus(t *testing.T) {
	if got := colorStatus("failed", false); got != "failed" {
		t.Fatalf("plain status = %q", got)
	}
	if got := colorStatus("failed", true); got != ansiRed+"failed"+ansiReset {
		t.Fatalf("coloured status = %q", got)
	}
	if got := colorStatus("narrating", true); !strings.HasPrefix(got, ansiBlue) {
		t.Fatalf("expected in-progress status in blue, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Title", "Slides"},
		[][]string{{"abc", "Entropy", "12"}, {"def"}},
		[]columnAlignment{alignLeft, alignLeft, alignRight},
		false,
	)
	for _, fragment := range []string{"ID", "TITLE", "Entropy", "12", "def"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(fragment)) {
			t.Fatalf("expected %q in table:\n%s", fragment, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline")
	}
	if renderTable(nil, nil, nil, false) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestFormatFailure(t *testing.T) {
	tests := []struct {
		name string
		job  api.Job
		want string
	}{
		{
			name: "message only",
			job:  api.Job{ErrorMessage: "source missing"},
			want: "source missing",
		},
		{
			name: "stage and slides",
			job:  api.Job{FailedStage: "synthesis", FailedSlides: []int{0, 2}, ErrorMessage: "all providers failed"},
			want: "synthesis failed on slides 1,3: all providers failed",
		},
		{
			name: "stage without slides",
			job:  api.Job{FailedStage: "assembly"},
			want: "assembly failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatFailure(tt.job); got != tt.want {
				t.Fatalf("formatFailure = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildStatsRowsFollowsPipelineOrder(t *testing.T) {
	rows := buildStatsRows(map[string]int{"failed": 1, "pending": 2, "narrated": 0})
	if len(rows) != 2 {
		t.Fatalf("expected zero counts skipped, got %v", rows)
	}
	if rows[0][0] != "pending" || rows[1][0] != "failed" {
		t.Fatalf("unexpected order %v", rows)
	}
}

func TestStylesJSON(t *testing.T) {
	out, _, err := runCLI(t, []string{"--json", "styles"}, "")
	if err != nil {
		t.Fatalf("styles: %v", err)
	}
	requireContains(t, out, `"name"`)
	requireContains(t, out, "professional")
}
