package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"slidecast/internal/language"
	"slidecast/internal/services"
)

// GoogleFreeChunkRunes bounds each translate_tts request.
const GoogleFreeChunkRunes = 200

// GoogleCloudProvider calls the Cloud Text-to-Speech REST API.
type GoogleCloudProvider struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (p GoogleCloudProvider) Name() string { return "google_cloud" }

func (p GoogleCloudProvider) Attempt(ctx context.Context, req Request) (Clip, error) {
	languageCode := language.Regional(req.Language)
	gender := ssmlGender(req.Gender)
	payload := map[string]any{
		"input": map[string]string{"text": req.Text},
		"voice": map[string]string{
			"languageCode": languageCode,
			"ssmlGender":   gender,
		},
		"audioConfig": map[string]string{"audioEncoding": "MP3"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Clip{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return Clip{}, services.Wrap(services.ErrConfiguration, stageName, p.Name(), "new request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", p.APIKey)

	body, err := doHTTP(httpClient(p.HTTPClient), httpReq, p.Name())
	if err != nil {
		return Clip{}, err
	}
	var parsed struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Clip{}, services.Wrap(services.ErrProviderUnavailable, stageName, p.Name(), "decode response", err)
	}
	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return Clip{}, services.Wrap(services.ErrProviderUnavailable, stageName, p.Name(), "decode audio content", err)
	}
	clip, err := writeClip(req.OutBase+".mp3", audio, p.Name())
	if err != nil {
		return Clip{}, err
	}
	clip.Voice = languageCode + "/" + gender
	if gender != "NEUTRAL" {
		clip.Gender = strings.ToLower(gender)
	}
	return clip, nil
}

func ssmlGender(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "female":
		return "FEMALE"
	case "male":
		return "MALE"
	default:
		return "NEUTRAL"
	}
}

// GoogleFreeProvider calls the public translate_tts endpoint. It has a single
// voice per language, so the requested gender is ignored.
type GoogleFreeProvider struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p GoogleFreeProvider) Name() string { return "google_free" }

func (p GoogleFreeProvider) Attempt(ctx context.Context, req Request) (Clip, error) {
	code := language.GoogleCode(req.Language)
	chunks := ChunkText(req.Text, GoogleFreeChunkRunes)
	var audio bytes.Buffer
	for i, chunk := range chunks {
		endpoint, err := url.Parse(p.BaseURL)
		if err != nil {
			return Clip{}, services.Wrap(services.ErrConfiguration, stageName, p.Name(), "parse url", err)
		}
		query := url.Values{}
		query.Set("ie", "UTF-8")
		query.Set("client", "tw-ob")
		query.Set("tl", code)
		query.Set("q", chunk)
		query.Set("total", strconv.Itoa(len(chunks)))
		query.Set("idx", strconv.Itoa(i))
		query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))
		endpoint.RawQuery = query.Encode()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return Clip{}, services.Wrap(services.ErrConfiguration, stageName, p.Name(), "new request", err)
		}
		httpReq.Header.Set("User-Agent", "Mozilla/5.0")
		body, err := doHTTP(httpClient(p.HTTPClient), httpReq, p.Name())
		if err != nil {
			return Clip{}, err
		}
		audio.Write(body)
	}
	clip, err := writeClip(req.OutBase+".mp3", audio.Bytes(), p.Name())
	if err != nil {
		return Clip{}, err
	}
	clip.Voice = code
	return clip, nil
}

// ChunkText splits text into pieces of at most limit runes, breaking between
// words. A single word longer than limit is split inside the word.
func ChunkText(text string, limit int) []string {
	words := strings.Fields(text)
	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}
	for _, word := range words {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		n := len(runes)
		if n == 0 {
			continue
		}
		if size > 0 && size+1+n > limit {
			flush()
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(string(runes))
		size += n
	}
	flush()
	return chunks
}

func writeClip(path string, audio []byte, provider string) (Clip, error) {
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return Clip{}, services.Wrap(services.ErrTransient, stageName, provider, "write audio", err)
	}
	return Clip{Path: path, Bytes: int64(len(audio))}, nil
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

func doHTTP(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, stageName, provider, "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, stageName, provider, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		err := services.Wrap(services.MarkerForHTTPStatus(resp.StatusCode), stageName, provider, fmt.Sprintf("http %d: %s", resp.StatusCode, snippet), nil)
		return nil, services.WithCode(err, resp.StatusCode)
	}
	return body, nil
}
