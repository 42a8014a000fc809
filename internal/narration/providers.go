package narration

import (
	"context"

	"slidecast/internal/services/gemini"
	"slidecast/internal/services/llm"
)

// Generator produces narration text for a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// GeminiGenerator narrates with the Gemini API.
type GeminiGenerator struct {
	Client *gemini.Client
}

func (g GeminiGenerator) Name() string { return "gemini" }

func (g GeminiGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	text, err := g.Client.Generate(ctx, prompt.Text(), prompt.Temperature)
	if err != nil {
		return "", err
	}
	return llm.StripCodeFence(text), nil
}

// OpenRouterGenerator narrates through an OpenAI-compatible chat endpoint.
// The client should be built with llm.WithRetryMaxAttempts(1); the engine owns
// retries.
type OpenRouterGenerator struct {
	Client *llm.Client
}

func (g OpenRouterGenerator) Name() string { return "openrouter" }

func (g OpenRouterGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	text, err := g.Client.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: prompt.Temperature,
	})
	if err != nil {
		return "", err
	}
	return llm.StripCodeFence(text), nil
}
