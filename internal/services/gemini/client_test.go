package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"slidecast/internal/services"
	"slidecast/internal/services/gemini"
)

func requestKey(r *http.Request) string {
	if key := r.Header.Get("x-goog-api-key"); key != "" {
		return key
	}
	return r.URL.Query().Get("key")
}

func writeCandidate(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}}},
		},
	})
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": strings.ToLower(status), "status": status},
	})
}

func TestNewRequiresKeysAndModel(t *testing.T) {
	if _, err := gemini.New(gemini.Config{Model: "m"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without keys, got %v", err)
	}
	if _, err := gemini.New(gemini.Config{APIKeys: []string{" "}, Model: "m"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected blank keys to be ignored, got %v", err)
	}
	if _, err := gemini.New(gemini.Config{APIKeys: []string{"k"}}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without model, got %v", err)
	}
}

func TestGenerateRotatesKeyOnQuota(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		key := requestKey(r)
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
		if key == "first" {
			writeStatus(w, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED")
			return
		}
		writeCandidate(w, "Good morning everyone.")
	}))
	defer server.Close()

	client, err := gemini.New(gemini.Config{APIKeys: []string{"first", "second"}, Model: "gemini-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := client.Generate(context.Background(), "Narrate the title slide.", 0.7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Good morning everyone." {
		t.Fatalf("unexpected text %q", text)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen[len(seen)-1] != "second" {
		t.Fatalf("expected rotation to the second key, saw %v", seen)
	}
}

func TestGeneratePermissionDeniedIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusForbidden, "PERMISSION_DENIED")
	}))
	defer server.Close()

	client, _ := gemini.New(gemini.Config{APIKeys: []string{"k"}, Model: "gemini-test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), "hello", 0.5)
	if !errors.Is(err, services.ErrProviderRejected) {
		t.Fatalf("expected rejected marker, got %v", err)
	}
}

func TestErrorClassifiers(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		quota    bool
		rejected bool
	}{
		{"api quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota exceeded"}, true, false},
		{"api permission", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, false, true},
		{"api bad request", fmt.Errorf("generate: %w", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}), false, true},
		{"api server error mentioning 400", genai.APIError{Code: 500, Message: "retry after 400ms"}, false, false},
		{"plain key invalid", errors.New("API_KEY_INVALID"), false, true},
		{"plain token count", errors.New("prompt has 4000 tokens, 401 over the soft limit"), false, false},
		{"plain port number", errors.New("dial tcp 10.0.0.1:4030: connection refused"), false, false},
		{"plain resource exhausted", errors.New("rpc error: RESOURCE_EXHAUSTED"), true, false},
		{"connection reset", errors.New("connection reset by peer"), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := gemini.IsQuotaError(tc.err); got != tc.quota {
				t.Fatalf("IsQuotaError(%v) = %v", tc.err, got)
			}
			if got := gemini.IsRejection(tc.err); got != tc.rejected {
				t.Fatalf("IsRejection(%v) = %v", tc.err, got)
			}
		})
	}
}

func TestGenerateServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusInternalServerError, "INTERNAL")
	}))
	defer server.Close()

	client, _ := gemini.New(gemini.Config{APIKeys: []string{"k"}, Model: "gemini-test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), "slide 400 of 4030", 0.5)
	if errors.Is(err, services.ErrProviderRejected) {
		t.Fatalf("server error must not be a rejection: %v", err)
	}
	if !errors.Is(err, services.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable marker, got %v", err)
	}
}
