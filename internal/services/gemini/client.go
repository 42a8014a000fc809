// Package gemini wraps google.golang.org/genai for single-prompt text
// generation with API-key rotation.
//
// Narration and translation both use it. Quota errors (429, RESOURCE_EXHAUSTED)
// rotate to the next configured key and are reported as
// services.ErrProviderUnavailable once every key has been tried. Permission
// and argument errors are reported as services.ErrProviderRejected.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"

	"google.golang.org/genai"

	"slidecast/internal/services"
)

const stageName = "gemini"

// Config holds the credentials and model for a client.
type Config struct {
	APIKeys    []string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Client generates text with the Gemini API.
type Client struct {
	keys       []string
	model      string
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	current int
	clients map[string]*genai.Client
}

// New returns a client. It fails when no key or model is configured.
func New(cfg Config) (*Client, error) {
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new client", "no api keys configured", nil)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new client", "model required", nil)
	}
	return &Client{
		keys:       keys,
		model:      model,
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		httpClient: cfg.HTTPClient,
		clients:    make(map[string]*genai.Client, len(keys)),
	}, nil
}

// Model reports the configured model.
func (c *Client) Model() string { return c.model }

// Generate sends prompt and returns the concatenated text parts of the first
// candidate.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "generate", "empty prompt", nil)
	}
	temp := float32(temperature)
	config := &genai.GenerateContentConfig{Temperature: &temp}

	var lastErr error
	for range c.keys {
		key := c.currentKey()
		client, err := c.clientFor(ctx, key)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, stageName, "new client", "", err)
		}
		result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if IsQuotaError(err) {
				c.rotate(key)
				lastErr = err
				continue
			}
			return "", classify("generate", err)
		}
		text := responseText(result)
		if text == "" {
			return "", services.Wrap(services.ErrProviderUnavailable, stageName, "generate", "empty response", nil)
		}
		return text, nil
	}
	return "", services.WithCode(
		services.Wrap(services.ErrProviderUnavailable, stageName, "generate", "all api keys rate limited", lastErr),
		http.StatusTooManyRequests,
	)
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *Client) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[c.current]
}

// rotate advances past key unless another goroutine already did.
func (c *Client) rotate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[c.current] == key {
		c.current = (c.current + 1) % len(c.keys)
	}
}

func (c *Client) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.clients[key] = client
	return client, nil
}

var (
	quotaMarkers    = []string{"RESOURCE_EXHAUSTED", "quota exceeded", "Quota exceeded"}
	rejectedMarkers = []string{"PERMISSION_DENIED", "API_KEY_INVALID", "API key expired", "INVALID_ARGUMENT", "UNAUTHENTICATED"}
	rejectedCodes   = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden}
)

// IsQuotaError reports whether err is a rate-limit or quota refusal.
func IsQuotaError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Code == http.StatusTooManyRequests || strings.Contains(apiErr.Status, "RESOURCE_EXHAUSTED")
	}
	return containsAny(err, quotaMarkers)
}

// IsRejection reports whether err is a permanent refusal (bad key,
// permission denied, invalid argument). API errors are judged by their HTTP
// code; other errors only by the gRPC status names in their text.
func IsRejection(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		return slices.Contains(rejectedCodes, apiErr.Code)
	}
	return containsAny(err, rejectedMarkers)
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func containsAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, op, "", err)
	}
	if IsRejection(err) {
		wrapped := services.Wrap(services.ErrProviderRejected, stageName, op, "", err)
		if code := statusCode(err); code > 0 {
			wrapped = services.WithCode(wrapped, code)
		}
		return wrapped
	}
	return services.Wrap(services.ErrProviderUnavailable, stageName, op, "", err)
}

func statusCode(err error) int {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Code
	}
	return 0
}
