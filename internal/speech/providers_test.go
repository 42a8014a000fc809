package speech_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"slidecast/internal/services"
	"slidecast/internal/speech"
	"slidecast/internal/testsupport"
)

func TestGoogleCloudProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") != "tts-key" {
			t.Errorf("missing api key header")
		}
		var body struct {
			Input struct {
				Text string `json:"text"`
			} `json:"input"`
			Voice struct {
				LanguageCode string `json:"languageCode"`
				SSMLGender   string `json:"ssmlGender"`
			} `json:"voice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Voice.LanguageCode != "fr-FR" || body.Voice.SSMLGender != "MALE" || body.Input.Text != "Bonjour." {
			t.Errorf("unexpected request %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"audioContent": base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))})
	}))
	defer server.Close()

	p := speech.GoogleCloudProvider{APIKey: "tts-key", BaseURL: server.URL}
	out := filepath.Join(t.TempDir(), "slide_001")
	clip, err := p.Attempt(context.Background(), speech.Request{Text: "Bonjour.", Language: "fr", Gender: "male", OutBase: out})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if clip.Path != out+".mp3" || clip.Bytes != int64(len("mp3-bytes")) || clip.Gender != "male" {
		t.Fatalf("unexpected clip %+v", clip)
	}
	data, err := os.ReadFile(clip.Path)
	if err != nil || string(data) != "mp3-bytes" {
		t.Fatalf("clip contents = %q, %v", data, err)
	}
}

func TestGoogleCloudProviderForbiddenIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":"PERMISSION_DENIED"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	p := speech.GoogleCloudProvider{APIKey: "bad", BaseURL: server.URL}
	_, err := p.Attempt(context.Background(), speech.Request{Text: "Hello.", Language: "en", OutBase: filepath.Join(t.TempDir(), "x")})
	if !errors.Is(err, services.ErrProviderRejected) {
		t.Fatalf("expected rejected marker, got %v", err)
	}
	if services.Details(err).Code != "403" {
		t.Fatalf("expected status code in details, got %+v", services.Details(err))
	}
}

func TestGoogleFreeProviderChunksAndConcatenates(t *testing.T) {
	var (
		mu     sync.Mutex
		chunks []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tl") != "zh-CN" || q.Get("client") != "tw-ob" {
			t.Errorf("unexpected query %v", q)
		}
		mu.Lock()
		chunks = append(chunks, q.Get("q"))
		mu.Unlock()
		_, _ = w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	defer server.Close()

	text := strings.Repeat("word ", 100)
	p := speech.GoogleFreeProvider{BaseURL: server.URL}
	clip, err := p.Attempt(context.Background(), speech.Request{Text: text, Language: "zh", Gender: "female", OutBase: filepath.Join(t.TempDir(), "slide_001")})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(chunks))
	}
	data, _ := os.ReadFile(clip.Path)
	if string(data) != "[0][1][2]" {
		t.Fatalf("unexpected concatenation %q", data)
	}
	if clip.Gender != "" {
		t.Fatalf("gender must not be reported as honoured, got %q", clip.Gender)
	}
}

func TestChunkText(t *testing.T) {
	long := strings.Repeat("x", 450)
	chunks := speech.ChunkText("short words "+long, 200)
	if len(chunks) != 4 || chunks[0] != "short words" {
		t.Fatalf("unexpected chunks %q", chunks)
	}
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 200 {
			t.Fatalf("chunk over limit: %d runes", utf8.RuneCountInString(chunk))
		}
	}
	if got := speech.ChunkText("  ", 200); len(got) != 0 {
		t.Fatalf("expected no chunks for blank text, got %q", got)
	}
}

func TestEspeakProviderWritesWav(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "espeak-ng")
	body := "#!/bin/sh\necho \"$2\" > \"" + filepath.Join(dir, "voice.txt") + "\"\ncat > \"$4\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	p := speech.EspeakProvider{Binary: script}
	clip, err := p.Attempt(context.Background(), speech.Request{Text: "Guten Tag.", Language: "de-AT", Gender: "female", OutBase: filepath.Join(dir, "slide_002")})
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if clip.Path != filepath.Join(dir, "slide_002.wav") || clip.Bytes == 0 || clip.Gender != "female" {
		t.Fatalf("unexpected clip %+v", clip)
	}
	voice, _ := os.ReadFile(filepath.Join(dir, "voice.txt"))
	if strings.TrimSpace(string(voice)) != "de+f3" {
		t.Fatalf("unexpected voice %q", voice)
	}
}

func TestEspeakVoice(t *testing.T) {
	tests := []struct {
		lang, gender, voice, honoured string
	}{
		{"en", "male", "en+m3", "male"},
		{"zh", "female", "cmn+f3", "female"},
		{"fr", "", "fr", ""},
		{"", "female", "en+f3", "female"},
	}
	for _, tc := range tests {
		voice, honoured := speech.EspeakVoice(tc.lang, tc.gender)
		if voice != tc.voice || honoured != tc.honoured {
			t.Fatalf("EspeakVoice(%q, %q) = %q, %q", tc.lang, tc.gender, voice, honoured)
		}
	}
}

func TestNewFromConfigChainForQuality(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.Chain = []string{"google_cloud", "google_free", "espeak"}
	cfg.Speech.GoogleCloudAPIKey = "key"

	premium, err := speech.NewFromConfig(cfg, "premium", nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if got := premium.Providers(); len(got) != 3 || got[0] != "google_cloud" {
		t.Fatalf("premium chain = %v", got)
	}
	standard, err := speech.NewFromConfig(cfg, "standard", nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if got := standard.Providers(); len(got) != 2 || got[0] != "google_free" || got[1] != "espeak" {
		t.Fatalf("standard chain = %v", got)
	}
}
