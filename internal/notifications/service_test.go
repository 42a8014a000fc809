package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobCompleted, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T) (*httptest.Server, chan captured) {
	t.Helper()
	ch := make(chan captured, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, ch
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name         string
		event        notifications.Event
		payload      notifications.Payload
		expectTitle  string
		expectBody   string
		expectTags   string
		expectUrgent bool
	}{
		{
			name:        "job started",
			event:       notifications.EventJobStarted,
			payload:     notifications.Payload{"title": "Microeconomics", "source_language": "en", "target_language": "fr"},
			expectTitle: "slidecast - Job Started",
			expectBody:  "Started: Microeconomics (en → fr)",
			expectTags:  "slidecast,job,started",
		},
		{
			name:         "job completed",
			event:        notifications.EventJobCompleted,
			payload:      notifications.Payload{"title": "Microeconomics", "video_path": "/out/micro_fr.mp4"},
			expectTitle:  "slidecast - Lecture Ready",
			expectBody:   "/out/micro_fr.mp4",
			expectTags:   "slidecast,job,completed",
			expectUrgent: true,
		},
		{
			name:         "job degraded",
			event:        notifications.EventJobDegraded,
			payload:      notifications.Payload{"title": "Microeconomics", "warnings": 2},
			expectTitle:  "slidecast - Completed With Warnings",
			expectBody:   "with 2 warning(s)",
			expectTags:   "slidecast,job,degraded",
			expectUrgent: true,
		},
		{
			name:         "stage error",
			event:        notifications.EventError,
			payload:      notifications.Payload{"error": errors.New("ffmpeg exited 1"), "context": "assembly (job 1234abcd)"},
			expectTitle:  "slidecast - Error",
			expectBody:   "in assembly (job 1234abcd): ffmpeg exited 1",
			expectTags:   "slidecast,error,alert",
			expectUrgent: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, ch := newCaptureServer(t)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := <-ch
			if got.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if !strings.Contains(got.body, tc.expectBody) {
				t.Fatalf("body %q does not contain %q", got.body, tc.expectBody)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if tc.expectUrgent && got.priority != "high" {
				t.Fatalf("expected high priority, got %q", got.priority)
			}
		})
	}
}

func TestDisabledEventIsNotSent(t *testing.T) {
	server, ch := newCaptureServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobStarted = false
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventJobStarted, notifications.Payload{"title": "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("Publish test: %v", err)
	}
	got := <-ch
	if got.title != "slidecast - Test" {
		t.Fatalf("expected only the test notification, got %q", got.title)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra notification %+v", extra)
	default:
	}
}

func TestNtfyErrorStatusIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}
