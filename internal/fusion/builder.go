// Package fusion assembles the context bundle for one chat turn: file
// attachments, recalled memories, web results, conversation history and
// the previous answer, in that order. The same bundle drives both prompt
// construction and answer validation, so the confidence record always
// refers to exactly the context the model saw.
package fusion

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/veritaslocal/veritas/internal/memory"
	"github.com/veritaslocal/veritas/internal/store"
	"github.com/veritaslocal/veritas/internal/validate"
	"github.com/veritaslocal/veritas/internal/websearch"
)

// Store is the slice of persistence the builder reads.
type Store interface {
	GetRules(ctx context.Context, sessionID string) (*store.Rules, error)
	ListAttachments(ctx context.Context, sessionID string) ([]*store.Attachment, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*store.Message, error)
}

// MemorySearcher ranks stored memories against the query.
type MemorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]memory.Result, error)
}

// WebSearcher runs a web search. websearch.Client satisfies it.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]websearch.Result, error)
}

// Bundle is the assembled context for one turn.
type Bundle struct {
	validate.ContextBundle

	// Prompt is the fully augmented prompt: instructions, context blocks,
	// then the user query.
	Prompt string

	// Instructions carries the session's custom instructions for the
	// system prompt.
	Instructions string
}

// Options toggle optional context sources for one turn.
type Options struct {
	UseWeb bool
}

// maxSourceChars bounds each source's text so one large attachment cannot
// crowd out the rest of the context window.
const maxSourceChars = 4000

// Builder assembles bundles. Memory and web retrieval failures degrade to
// a smaller bundle; store failures are fatal.
type Builder struct {
	store    Store
	memories MemorySearcher
	web      WebSearcher
	logger   *log.Logger
}

// NewBuilder wires the builder. memories and web may be nil.
func NewBuilder(st Store, memories MemorySearcher, web WebSearcher, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(log.Writer(), "[fusion] ", log.LstdFlags)
	}
	return &Builder{store: st, memories: memories, web: web, logger: logger}
}

// Build assembles the bundle for a session turn.
func (b *Builder) Build(ctx context.Context, sessionID, query string, opts Options) (*Bundle, error) {
	rules, err := b.store.GetRules(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fusion: loading rules: %w", err)
	}

	out := &Bundle{Instructions: rules.CustomInstructions}

	if err := b.addAttachments(ctx, sessionID, rules.FileLimit, out); err != nil {
		return nil, err
	}
	b.addMemories(ctx, query, rules.MemoryLimit, out)
	if opts.UseWeb {
		b.addWebResults(ctx, query, rules.WebLimit, out)
	}
	if err := b.addHistory(ctx, sessionID, rules, out); err != nil {
		return nil, err
	}

	out.Prompt = buildPrompt(out, query)
	return out, nil
}

func (b *Builder) addAttachments(ctx context.Context, sessionID string, limit int, out *Bundle) error {
	attachments, err := b.store.ListAttachments(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fusion: loading attachments: %w", err)
	}
	for i, a := range attachments {
		if limit > 0 && i == limit {
			break
		}
		text := truncate(a.Text, maxSourceChars)
		if text == "" {
			continue
		}
		out.Sources = append(out.Sources, validate.SourceRecord{
			Kind:      validate.SourceFile,
			ID:        "file:" + a.Filename,
			Text:      text,
			Relevance: 1.0,
		})
	}
	return nil
}

func (b *Builder) addMemories(ctx context.Context, query string, limit int, out *Bundle) {
	if b.memories == nil || limit <= 0 {
		return
	}
	results, err := b.memories.Search(ctx, query, limit)
	if err != nil {
		b.logger.Printf("memory search failed, continuing without: %v", err)
		return
	}
	for _, r := range results {
		relevance := r.Score
		if relevance > 1 {
			relevance = 1
		}
		if relevance <= 0 {
			continue
		}
		out.Sources = append(out.Sources, validate.SourceRecord{
			Kind:      validate.SourceMemory,
			ID:        fmt.Sprintf("memory:%d", r.Memory.ID),
			Text:      truncate(r.Memory.Content, maxSourceChars),
			Relevance: relevance,
		})
	}
}

func (b *Builder) addWebResults(ctx context.Context, query string, limit int, out *Bundle) {
	if b.web == nil || limit <= 0 {
		return
	}
	results, err := b.web.Search(ctx, query, limit)
	if err != nil {
		b.logger.Printf("web search failed, continuing without: %v", err)
		return
	}
	for _, r := range results {
		text := strings.TrimSpace(r.Title + ". " + r.Snippet)
		if text == "." {
			continue
		}
		out.Sources = append(out.Sources, validate.SourceRecord{
			Kind:      validate.SourceWeb,
			ID:        "web:" + r.URL,
			Text:      truncate(text, maxSourceChars),
			Relevance: 1.0,
		})
	}
}

func (b *Builder) addHistory(ctx context.Context, sessionID string, rules *store.Rules, out *Bundle) error {
	if rules.HistoryLimit <= 0 {
		return nil
	}
	messages, err := b.store.ListMessages(ctx, sessionID, rules.HistoryLimit)
	if err != nil {
		return fmt.Errorf("fusion: loading history: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	var lines []string
	var lastAssistant string
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
		if m.Role == "assistant" {
			lastAssistant = m.Content
		}
	}

	out.Sources = append(out.Sources, validate.SourceRecord{
		Kind:      validate.SourceHistory,
		ID:        "history",
		Text:      truncate(strings.Join(lines, "\n"), maxSourceChars),
		Relevance: 1.0,
	})

	if rules.FollowUp && lastAssistant != "" {
		out.Sources = append(out.Sources, validate.SourceRecord{
			Kind:      validate.SourceFollowUp,
			ID:        "follow_up",
			Text:      truncate(lastAssistant, maxSourceChars),
			Relevance: 1.0,
		})
	}
	return nil
}

var blockLabels = map[validate.SourceKind]string{
	validate.SourceFile:     "FILE",
	validate.SourceMemory:   "MEMORY",
	validate.SourceWeb:      "WEB",
	validate.SourceHistory:  "HISTORY",
	validate.SourceFollowUp: "PREVIOUS ANSWER",
}

// buildPrompt renders the context blocks and the user query. History and
// the previous answer are labeled as conversation context, not facts.
func buildPrompt(b *Bundle, query string) string {
	var sb strings.Builder

	if len(b.Sources) > 0 {
		sb.WriteString("Answer using the context below. When the context does not cover the question, say so instead of guessing.\n\n")
		for _, src := range b.Sources {
			label := blockLabels[src.Kind]
			if !src.Kind.Factual() {
				sb.WriteString(fmt.Sprintf("[%s — conversation context, not citable] %s:\n%s\n\n", label, src.ID, src.Text))
				continue
			}
			sb.WriteString(fmt.Sprintf("[%s] %s:\n%s\n\n", label, src.ID, src.Text))
		}
	}

	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	// Break on a word boundary when one is close.
	if idx := strings.LastIndexByte(cut, ' '); idx > max-200 {
		cut = cut[:idx]
	}
	return cut + "…"
}
