package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"slidecast/internal/language"
	"slidecast/internal/services"
	"slidecast/internal/services/gemini"
	"slidecast/internal/services/llm"
)

const translateInstruction = "Translate the following lecture narration from %s to %s. Keep the meaning, tone and sentence structure. Respond with the translation only, without quotes or commentary."

func instruction(req Request) string {
	return fmt.Sprintf(translateInstruction, language.DisplayName(req.Source), language.DisplayName(req.Target))
}

// GeminiProvider translates with the Gemini API.
type GeminiProvider struct {
	Client *gemini.Client
}

func (p GeminiProvider) Name() string { return "gemini" }

func (p GeminiProvider) Attempt(ctx context.Context, req Request) (string, error) {
	text, err := p.Client.Generate(ctx, instruction(req)+"\n\n"+req.Text, 0.2)
	if err != nil {
		return "", err
	}
	return llm.StripCodeFence(text), nil
}

// OpenRouterProvider translates through an OpenAI-compatible chat endpoint.
type OpenRouterProvider struct {
	Client *llm.Client
}

func (p OpenRouterProvider) Name() string { return "openrouter" }

func (p OpenRouterProvider) Attempt(ctx context.Context, req Request) (string, error) {
	text, err := p.Client.Complete(ctx, llm.Request{System: instruction(req), User: req.Text, Temperature: 0.2})
	if err != nil {
		return "", err
	}
	return llm.StripCodeFence(text), nil
}

// GoogleFreeProvider calls the public translate_a/single endpoint.
type GoogleFreeProvider struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p GoogleFreeProvider) Name() string { return "google_free" }

func (p GoogleFreeProvider) Attempt(ctx context.Context, req Request) (string, error) {
	endpoint, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, p.Name(), "parse url", err)
	}
	source := language.GoogleCode(req.Source)
	if source == "" {
		source = "auto"
	}
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", source)
	query.Set("tl", language.GoogleCode(req.Target))
	query.Set("dt", "t")
	query.Set("q", req.Text)
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, p.Name(), "new request", err)
	}
	body, err := doHTTP(httpClient(p.HTTPClient), httpReq, p.Name())
	if err != nil {
		return "", err
	}
	return parseGoogleFree(body)
}

// parseGoogleFree extracts the translated segments from the nested array
// response: [[["Bonjour.","Hello.",null,null,10],...],null,"en",...].
func parseGoogleFree(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || len(payload) == 0 {
		return "", services.Wrap(services.ErrProviderUnavailable, stageName, "google_free", "unexpected response shape", err)
	}
	var segments [][]any
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", services.Wrap(services.ErrProviderUnavailable, stageName, "google_free", "unexpected segment shape", err)
	}
	var b strings.Builder
	for _, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		if text, ok := segment[0].(string); ok {
			b.WriteString(text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// LibreTranslateProvider calls a LibreTranslate instance, usually self-hosted.
type LibreTranslateProvider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (p LibreTranslateProvider) Name() string { return "libretranslate" }

func (p LibreTranslateProvider) Attempt(ctx context.Context, req Request) (string, error) {
	payload := map[string]string{
		"q":      req.Text,
		"source": language.Base(req.Source),
		"target": language.Base(req.Target),
		"format": "text",
	}
	if payload["source"] == "" {
		payload["source"] = "auto"
	}
	if p.APIKey != "" {
		payload["api_key"] = p.APIKey
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, p.Name(), "new request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	body, err := doHTTP(httpClient(p.HTTPClient), httpReq, p.Name())
	if err != nil {
		return "", err
	}
	var parsed struct {
		TranslatedText string `json:"translatedText"`
		Error          string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrProviderUnavailable, stageName, p.Name(), "decode response", err)
	}
	if parsed.Error != "" {
		return "", services.Wrap(services.ErrProviderRejected, stageName, p.Name(), parsed.Error, nil)
	}
	return strings.TrimSpace(parsed.TranslatedText), nil
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
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
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
