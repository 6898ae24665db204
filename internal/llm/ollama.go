package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultTimeout  = 120 * time.Second
	completionTries = 3
)

// ollamaProvider speaks the OpenAI-compatible API of a local Ollama server.
type ollamaProvider struct {
	client *openai.Client
	cfg    Config
}

func newOllamaProvider(cfg Config) *ollamaProvider {
	// Ollama ignores the API key but the client requires one.
	clientConfig := openai.DefaultConfig("ollama")
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ollamaProvider{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}

// Name returns the provider name.
func (p *ollamaProvider) Name() string {
	return "ollama/" + p.cfg.Model
}

func (p *ollamaProvider) timeout() time.Duration {
	if p.cfg.TimeoutSecs > 0 {
		return time.Duration(p.cfg.TimeoutSecs) * time.Second
	}
	return defaultTimeout
}

func (p *ollamaProvider) model(opts CompletionOpts) string {
	if opts.Model != "" {
		return opts.Model
	}
	return p.cfg.Model
}

// Complete runs a single-shot completion with retry and backoff. Local
// model servers drop requests while models load; a short retry loop rides
// that out.
func (p *ollamaProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model(opts),
		Messages:    buildMessages(opts.System, []ChatMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}}),
		MaxTokens:   p.maxTokens(opts),
		Temperature: opts.Temperature,
	}

	var lastErr error
	for attempt := 0; attempt < completionTries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout())
		resp, err := p.client.CreateChatCompletion(reqCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty response from model %s", req.Model)
			continue
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("completion with %s: %w", req.Model, lastErr)
}

// Stream runs a streaming chat completion, invoking onToken per delta.
// A nil onToken collects silently. The assembled text is returned either way.
func (p *ollamaProvider) Stream(ctx context.Context, messages []ChatMessage, opts CompletionOpts, onToken func(string) error) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model(opts),
		Messages:    buildMessages(opts.System, messages),
		MaxTokens:   p.maxTokens(opts),
		Temperature: opts.Temperature,
		Stream:      true,
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	stream, err := p.client.CreateChatCompletionStream(reqCtx, req)
	if err != nil {
		return "", fmt.Errorf("starting stream with %s: %w", req.Model, err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return b.String(), fmt.Errorf("reading stream from %s: %w", req.Model, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		b.WriteString(token)
		if onToken != nil {
			if err := onToken(token); err != nil {
				return b.String(), err
			}
		}
	}
	return b.String(), nil
}

// Embed returns embedding vectors for the inputs via /embeddings.
func (p *ollamaProvider) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if model == "" {
		return nil, fmt.Errorf("llm: embedding model is required")
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", model, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding with %s: got %d vectors for %d inputs", model, len(resp.Data), len(inputs))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (p *ollamaProvider) maxTokens(opts CompletionOpts) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return p.cfg.MaxTokens
}

func buildMessages(system string, messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
