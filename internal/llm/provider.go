// Package llm provides access to the local OpenAI-compatible model server
// (Ollama). One provider handles chat streaming, single-shot completions
// for reasoning and extraction, and embeddings.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// ChatMessage is one turn of chat context sent to the model.
type ChatMessage struct {
	Role    string
	Content string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	Model       string  // override the default model (empty = provider default)
	MaxTokens   int     // 0 = provider default
	Temperature float32 // 0 = deterministic
	System      string  // system prompt (optional)
}

// Provider is the model access interface.
type Provider interface {
	// Complete sends a single prompt and returns the full response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Stream sends a chat conversation and calls onToken for each content
	// delta. It returns the assembled full text.
	Stream(ctx context.Context, messages []ChatMessage, opts CompletionOpts, onToken func(token string) error) (string, error)
	// Embed returns embedding vectors for the inputs.
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
	// Name returns a human-readable provider name.
	Name() string
}

// Config holds provider configuration.
type Config struct {
	BaseURL     string  // e.g. http://localhost:11434/v1
	Model       string  // default chat model
	MaxTokens   int     // default max tokens (0 = unset)
	Temperature float32 // default temperature
	TimeoutSecs int     // per-request timeout (0 = 120s)
}

// NewProvider builds the Ollama-backed provider.
func NewProvider(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("llm: base URL is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm: default model is required")
	}
	return newOllamaProvider(cfg), nil
}

// SingleCompleter narrows a Provider to a fixed-model single-prompt surface.
// The validation pipeline's entity extractor consumes this.
type SingleCompleter struct {
	provider Provider
	model    string
}

// NewSingleCompleter binds a provider and model into a one-method client.
func NewSingleCompleter(p Provider, model string) *SingleCompleter {
	return &SingleCompleter{provider: p, model: model}
}

// Complete sends the prompt with deterministic settings.
func (c *SingleCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.provider.Complete(ctx, prompt, CompletionOpts{Model: c.model})
}

// BoundEmbedder fixes the embedding model so callers only pass inputs.
type BoundEmbedder struct {
	provider Provider
	model    string
}

// NewBoundEmbedder binds a provider and embedding model.
func NewBoundEmbedder(p Provider, model string) *BoundEmbedder {
	return &BoundEmbedder{provider: p, model: model}
}

// Embed returns vectors for the inputs using the bound model.
func (e *BoundEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return e.provider.Embed(ctx, e.model, inputs)
}
