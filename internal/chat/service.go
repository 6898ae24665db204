package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/veritaslocal/veritas/internal/fusion"
	"github.com/veritaslocal/veritas/internal/llm"
	"github.com/veritaslocal/veritas/internal/store"
	"github.com/veritaslocal/veritas/internal/validate"
)

// MessageStore is the slice of persistence the service writes.
type MessageStore interface {
	AddMessage(ctx context.Context, m *store.Message) error
}

// Bundler assembles per-turn context. fusion.Builder satisfies it.
type Bundler interface {
	Build(ctx context.Context, sessionID, query string, opts fusion.Options) (*fusion.Bundle, error)
}

// Model is the slice of the LLM provider the service uses.
type Model interface {
	Stream(ctx context.Context, messages []llm.ChatMessage, opts llm.CompletionOpts, onToken func(string) error) (string, error)
	Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error)
}

// Validator runs the confidence pipeline. validate.Pipeline satisfies it.
type Validator interface {
	Evaluate(ctx context.Context, answer, reasoning string, bundle validate.ContextBundle) (*validate.ConfidenceRecord, error)
}

// Memorist records auto-memories. memory.Recorder satisfies it.
type Memorist interface {
	Record(ctx context.Context, userMessage string) (bool, error)
}

// Options toggle per-turn behavior.
type Options struct {
	UseWeb bool
	// Reason runs a self-explanation pass before validation so hidden
	// hedging in the model's rationale can veto a confident-sounding
	// answer.
	Reason bool
}

const systemPrompt = "You are a careful assistant. Ground every factual claim in the provided context. If the context does not cover something, say so plainly."

const reasoningPrompt = `You just gave the answer below. Explain step by step which parts of the provided context support it, and state plainly where you relied on assumption instead of the context.

Answer:
%s`

// Service runs chat turns.
type Service struct {
	store       MessageStore
	bundler     Bundler
	model       Model
	validator   Validator
	composer    *Composer
	memorist    Memorist
	reasonModel string
	logger      *log.Logger
}

// Config wires a Service.
type Config struct {
	Store       MessageStore
	Bundler     Bundler
	Model       Model
	Validator   Validator
	Composer    *Composer
	Memorist    Memorist
	ReasonModel string
	Logger      *log.Logger
}

// NewService builds a chat service. Memorist may be nil.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Bundler == nil || cfg.Model == nil || cfg.Validator == nil {
		return nil, fmt.Errorf("chat: store, bundler, model and validator are required")
	}
	if cfg.Composer == nil {
		cfg.Composer = NewComposer("")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[chat] ", log.LstdFlags)
	}
	return &Service{
		store:       cfg.Store,
		bundler:     cfg.Bundler,
		model:       cfg.Model,
		validator:   cfg.Validator,
		composer:    cfg.Composer,
		memorist:    cfg.Memorist,
		reasonModel: cfg.ReasonModel,
		logger:      cfg.Logger,
	}, nil
}

// StreamReply runs one turn, emitting events as they happen. The emit
// callback is invoked from this goroutine only. A returned error has
// already been emitted as an error event.
func (s *Service) StreamReply(ctx context.Context, sessionID, content string, opts Options, emit func(Event)) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return s.fail(emit, fmt.Errorf("chat: empty message"))
	}

	if err := s.store.AddMessage(ctx, &store.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
	}); err != nil {
		return s.fail(emit, fmt.Errorf("chat: saving user message: %w", err))
	}

	bundle, err := s.bundler.Build(ctx, sessionID, content, fusion.Options{UseWeb: opts.UseWeb})
	if err != nil {
		return s.fail(emit, err)
	}

	system := systemPrompt
	if bundle.Instructions != "" {
		system += "\n\n" + bundle.Instructions
	}

	answer, err := s.model.Stream(ctx,
		[]llm.ChatMessage{{Role: "user", Content: bundle.Prompt}},
		llm.CompletionOpts{System: system},
		func(token string) error {
			emit(Event{Type: EventToken, Token: token})
			return ctx.Err()
		})
	if err != nil {
		return s.fail(emit, fmt.Errorf("chat: generating answer: %w", err))
	}
	answer = strings.TrimSpace(answer)
	emit(Event{Type: EventAnswerComplete, Text: answer})

	reasoning := ""
	if opts.Reason {
		reasoning = s.reason(ctx, answer, emit)
	}

	emit(Event{Type: EventVerificationStarting})
	record, err := s.validator.Evaluate(ctx, answer, reasoning, bundle.ContextBundle)
	if err != nil {
		return s.fail(emit, fmt.Errorf("chat: validating answer: %w", err))
	}
	emit(Event{Type: EventVerificationComplete, Record: record})

	final := s.composer.Compose(answer, record)

	metadata, err := json.Marshal(record)
	if err != nil {
		return s.fail(emit, fmt.Errorf("chat: encoding confidence record: %w", err))
	}
	if err := s.store.AddMessage(ctx, &store.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "assistant",
		Content:   final,
		Metadata:  string(metadata),
	}); err != nil {
		return s.fail(emit, fmt.Errorf("chat: saving assistant message: %w", err))
	}

	if s.memorist != nil {
		if _, err := s.memorist.Record(ctx, content); err != nil {
			s.logger.Printf("auto-memory failed: %v", err)
		}
	}

	emit(Event{Type: EventDone, Text: final})
	return nil
}

// reason streams a self-explanation pass. Failures degrade to validating
// without reasoning; the answer pass already succeeded.
func (s *Service) reason(ctx context.Context, answer string, emit func(Event)) string {
	reasoning, err := s.model.Stream(ctx,
		[]llm.ChatMessage{{Role: "user", Content: fmt.Sprintf(reasoningPrompt, answer)}},
		llm.CompletionOpts{Model: s.reasonModel},
		func(token string) error {
			emit(Event{Type: EventReasoningToken, Token: token})
			return ctx.Err()
		})
	if err != nil {
		s.logger.Printf("reasoning pass failed, validating without: %v", err)
		return ""
	}
	return strings.TrimSpace(reasoning)
}

func (s *Service) fail(emit func(Event), err error) error {
	emit(Event{Type: EventError, Text: err.Error()})
	return err
}
